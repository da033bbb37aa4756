// Package mention implements the unreplied-mention detection engine: the scan
// that finds messages mentioning a user which that user has neither reacted to
// nor replied to, and turns them into a single reminder.
package mention

import (
	"context"

	"github.com/cw35/slackminder/internal/slackapi"
)

// Conversations is the read side of the workspace transport consumed by the
// channel walker. *slackapi.Client satisfies it.
type Conversations interface {
	ListChannels(ctx context.Context) ([]slackapi.Channel, error)
	JoinChannel(ctx context.Context, channelID string) error
	ListHistory(ctx context.Context, channelID string) ([]slackapi.Message, error)
	ListReplies(ctx context.Context, channelID, rootTS string) ([]slackapi.Message, error)
}

// Links resolves permalinks for reminder entries.
type Links interface {
	ResolvePermalink(ctx context.Context, channelID, messageTS string) (string, error)
}

// Poster dispatches the composed reminder.
type Poster interface {
	PostMessage(ctx context.Context, destination, text string, blocks []slackapi.Block) error
}

// ConversationUnit is one (channel, root message, thread) tuple emitted by the
// walker. Thread holds the replies anchored at Root, excluding Root itself;
// it is empty for messages without a thread.
type ConversationUnit struct {
	Channel slackapi.Channel
	Root    slackapi.Message
	Thread  []slackapi.Message
}

// Unreplied is one message that mentions the scanned user and carries no
// acknowledgment from them.
type Unreplied struct {
	ChannelID string
	Message   slackapi.Message
}

// Reminder is the payload dispatched to the scanned user.
type Reminder struct {
	Recipient string
	Text      string
	Blocks    []slackapi.Block
}
