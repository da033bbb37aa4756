package mention

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cw35/slackminder/internal/slackapi"
)

// Subtypes that tag workspace housekeeping notices. Their text can contain a
// mention token (e.g. "<@U1> has joined the channel") but they are never
// mention candidates.
var systemSubtypes = map[string]bool{
	"channel_join":  true,
	"channel_leave": true,
}

type dedupKey struct {
	channelID string
	ts        string
}

// Scan walks the workspace and returns every message that mentions userID and
// has not been acknowledged by them, in channel-list, history, reply order.
// A message reachable both from channel history and as a thread reply appears
// once. Only a failed initial channel listing fails the scan; in that case no
// partial result is returned.
func Scan(ctx context.Context, conv Conversations, log *slog.Logger, userID string) ([]Unreplied, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if log == nil {
		log = slog.Default()
	}

	var result []Unreplied
	seen := make(map[dedupKey]bool)

	appendCandidate := func(channelID string, msg slackapi.Message, thread []slackapi.Message) {
		if systemSubtypes[msg.Subtype] {
			return
		}
		if !Matches(msg.Text, userID) {
			return
		}
		if Acknowledged(msg, thread, userID) {
			return
		}
		key := dedupKey{channelID: channelID, ts: msg.TS}
		if seen[key] {
			return
		}
		seen[key] = true
		result = append(result, Unreplied{ChannelID: channelID, Message: msg})
	}

	err := Walk(ctx, conv, log, func(unit ConversationUnit) error {
		appendCandidate(unit.Channel.ID, unit.Root, unit.Thread)
		// A reply's own text may mention the user too. Its acknowledgment
		// state is judged against the same thread, cut off at the reply's
		// root timestamp, which for replies is the unit root's ts.
		for _, reply := range unit.Thread {
			appendCandidate(unit.Channel.ID, reply, unit.Thread)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("scan_done", "user_id", userID, "unreplied", len(result))
	return result, nil
}
