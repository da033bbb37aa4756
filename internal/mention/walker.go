package mention

import (
	"context"
	"fmt"
	"log/slog"
)

// Walk enumerates every accessible channel in list order and emits one
// ConversationUnit per history message, with that message's thread replies
// attached. Channels the bot is not yet a member of are joined first; the
// membership flip sticks for the rest of the walk.
//
// Per-channel failures (join, history) and per-message failures (replies) are
// logged and skipped; only a failed channel listing aborts the walk. A non-nil
// error from fn stops the walk and is returned as-is.
func Walk(ctx context.Context, conv Conversations, log *slog.Logger, fn func(ConversationUnit) error) error {
	if conv == nil {
		return fmt.Errorf("conversations client is required")
	}
	if log == nil {
		log = slog.Default()
	}

	channels, err := conv.ListChannels(ctx)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}

	for _, channel := range channels {
		if !channel.IsMember {
			if err := conv.JoinChannel(ctx, channel.ID); err != nil {
				log.Warn("scan_channel_join_failed", "channel_id", channel.ID, "error", err.Error())
				continue
			}
			channel.IsMember = true
		}

		history, err := conv.ListHistory(ctx, channel.ID)
		if err != nil {
			log.Warn("scan_channel_history_failed", "channel_id", channel.ID, "error", err.Error())
			continue
		}

		for _, msg := range history {
			// Fetch the thread even when the message carries no thread_ts:
			// a top-level message may itself be a root with replies.
			replies, err := conv.ListReplies(ctx, channel.ID, msg.RootTS())
			if err != nil {
				log.Warn("scan_replies_failed",
					"channel_id", channel.ID, "ts", msg.TS, "error", err.Error())
				continue
			}
			// conversations.replies echoes the root as its first element.
			thread := replies[:0:0]
			for _, reply := range replies {
				if reply.TS == msg.RootTS() {
					continue
				}
				thread = append(thread, reply)
			}
			if err := fn(ConversationUnit{Channel: channel, Root: msg, Thread: thread}); err != nil {
				return err
			}
		}
	}
	return nil
}
