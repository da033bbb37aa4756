package mention

import "github.com/cw35/slackminder/internal/slackapi"

// Acknowledged reports whether userID has already dealt with msg, either by
// reacting to it or by replying in its thread. thread is the full reply set
// anchored at msg's effective root, in timestamp order.
//
// A reply only counts when it is authored by userID and strictly later than
// the root timestamp. A reaction only counts when userID appears in its user
// list.
func Acknowledged(msg slackapi.Message, thread []slackapi.Message, userID string) bool {
	for _, reaction := range msg.Reactions {
		for _, u := range reaction.Users {
			if u == userID {
				return true
			}
		}
	}

	rootTS := slackapi.TSValue(msg.RootTS())
	for _, reply := range thread {
		if reply.User != userID {
			continue
		}
		if slackapi.TSValue(reply.TS) > rootTS {
			return true
		}
	}
	return false
}
