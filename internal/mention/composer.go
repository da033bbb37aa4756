package mention

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cw35/slackminder/internal/slackapi"
)

const caughtUpText = "No unreplied mentions. You're all caught up."

// Compose turns a scan result into the reminder payload for userID. Permalinks
// are resolved one call at a time in list order; a failed resolution drops that
// entry and keeps the rest.
func Compose(ctx context.Context, links Links, log *slog.Logger, userID string, mentions []Unreplied) Reminder {
	if log == nil {
		log = slog.Default()
	}

	if len(mentions) == 0 {
		return Reminder{Recipient: userID, Text: caughtUpText}
	}

	text := fmt.Sprintf("Reminder: you have %d unreplied mention(s).", len(mentions))
	blocks := make([]slackapi.Block, 0, len(mentions))
	for _, m := range mentions {
		link, err := links.ResolvePermalink(ctx, m.ChannelID, m.Message.TS)
		if err != nil {
			log.Warn("reminder_permalink_failed",
				"channel_id", m.ChannelID, "ts", m.Message.TS, "error", err.Error())
			continue
		}
		blocks = append(blocks, slackapi.SectionBlock(fmt.Sprintf("*<%s|%s>*", link, entryLabel(m.Message.Text))))
	}
	return Reminder{Recipient: userID, Text: text, Blocks: blocks}
}

// entryLabel trims a message down to a single-line link label.
func entryLabel(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "(no text)"
	}
	const maxLabel = 120
	if runes := []rune(text); len(runes) > maxLabel {
		return string(runes[:maxLabel]) + "…"
	}
	return text
}

// Dispatch sends the reminder as one direct message to its recipient.
func Dispatch(ctx context.Context, poster Poster, reminder Reminder) error {
	if poster == nil {
		return fmt.Errorf("poster is required")
	}
	if strings.TrimSpace(reminder.Recipient) == "" {
		return fmt.Errorf("reminder recipient is required")
	}
	if err := poster.PostMessage(ctx, reminder.Recipient, reminder.Text, reminder.Blocks); err != nil {
		return fmt.Errorf("dispatch reminder: %w", err)
	}
	return nil
}
