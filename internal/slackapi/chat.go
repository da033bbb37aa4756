package slackapi

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

type permalinkResponse struct {
	apiEnvelope
	Permalink string `json:"permalink,omitempty"`
}

// ResolvePermalink returns a stable link to one message.
func (c *Client) ResolvePermalink(ctx context.Context, channelID, messageTS string) (string, error) {
	channelID = strings.TrimSpace(channelID)
	messageTS = strings.TrimSpace(messageTS)
	if channelID == "" {
		return "", fmt.Errorf("channel_id is required")
	}
	if messageTS == "" {
		return "", fmt.Errorf("message_ts is required")
	}
	params := url.Values{}
	params.Set("channel", channelID)
	params.Set("message_ts", messageTS)
	var out permalinkResponse
	if err := c.callForm(ctx, "chat.getPermalink", params, &out); err != nil {
		return "", err
	}
	link := strings.TrimSpace(out.Permalink)
	if link == "" {
		return "", fmt.Errorf("chat.getPermalink returned empty permalink")
	}
	return link, nil
}

type postMessageRequest struct {
	Channel string  `json:"channel"`
	Text    string  `json:"text"`
	Blocks  []Block `json:"blocks,omitempty"`
}

type postMessageResponse struct {
	apiEnvelope
	TS string `json:"ts,omitempty"`
}

// PostMessage sends a message. A user ID as destination opens a direct
// message conversation with that user.
func (c *Client) PostMessage(ctx context.Context, destination, text string, blocks []Block) error {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return fmt.Errorf("destination is required")
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text is required")
	}
	var out postMessageResponse
	return c.callJSON(ctx, "chat.postMessage", postMessageRequest{
		Channel: destination,
		Text:    text,
		Blocks:  blocks,
	}, &out)
}
