package slackapi

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

const pageLimit = "200"

type channelListResponse struct {
	apiEnvelope
	Channels []Channel `json:"channels,omitempty"`
	Metadata struct {
		NextCursor string `json:"next_cursor,omitempty"`
	} `json:"response_metadata,omitempty"`
}

// ListChannels returns every public channel visible to the token, walking
// cursor pagination to the end so callers see one logical sequence.
func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	var channels []Channel
	cursor := ""
	for {
		params := url.Values{}
		params.Set("limit", pageLimit)
		params.Set("exclude_archived", "true")
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var out channelListResponse
		if err := c.callForm(ctx, "conversations.list", params, &out); err != nil {
			return nil, err
		}
		channels = append(channels, out.Channels...)
		cursor = strings.TrimSpace(out.Metadata.NextCursor)
		if cursor == "" {
			return channels, nil
		}
	}
}

// JoinChannel joins the bot to a public channel so its history becomes readable.
func (c *Client) JoinChannel(ctx context.Context, channelID string) error {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return fmt.Errorf("channel_id is required")
	}
	params := url.Values{}
	params.Set("channel", channelID)
	return c.callForm(ctx, "conversations.join", params, nil)
}

type messageListResponse struct {
	apiEnvelope
	Messages []Message `json:"messages,omitempty"`
	Metadata struct {
		NextCursor string `json:"next_cursor,omitempty"`
	} `json:"response_metadata,omitempty"`
}

// ListHistory returns the channel's message history, all pages, in the order
// the API yields them.
func (c *Client) ListHistory(ctx context.Context, channelID string) ([]Message, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, fmt.Errorf("channel_id is required")
	}
	return c.pagedMessages(ctx, "conversations.history", url.Values{"channel": {channelID}})
}

// ListReplies returns the full thread anchored at rootTS. Slack includes the
// root message itself as the first element.
func (c *Client) ListReplies(ctx context.Context, channelID, rootTS string) ([]Message, error) {
	channelID = strings.TrimSpace(channelID)
	rootTS = strings.TrimSpace(rootTS)
	if channelID == "" {
		return nil, fmt.Errorf("channel_id is required")
	}
	if rootTS == "" {
		return nil, fmt.Errorf("thread ts is required")
	}
	return c.pagedMessages(ctx, "conversations.replies", url.Values{"channel": {channelID}, "ts": {rootTS}})
}

func (c *Client) pagedMessages(ctx context.Context, method string, base url.Values) ([]Message, error) {
	var messages []Message
	cursor := ""
	for {
		params := url.Values{}
		for k, vs := range base {
			for _, v := range vs {
				params.Add(k, v)
			}
		}
		params.Set("limit", pageLimit)
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var out messageListResponse
		if err := c.callForm(ctx, method, params, &out); err != nil {
			return nil, err
		}
		messages = append(messages, out.Messages...)
		cursor = strings.TrimSpace(out.Metadata.NextCursor)
		if cursor == "" {
			return messages, nil
		}
	}
}
