package slackapi

import "strconv"

type Channel struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	IsMember bool   `json:"is_member,omitempty"`
}

type Reaction struct {
	Name  string   `json:"name"`
	Users []string `json:"users,omitempty"`
	Count int      `json:"count,omitempty"`
}

type Message struct {
	TS        string     `json:"ts"`
	User      string     `json:"user,omitempty"`
	Text      string     `json:"text,omitempty"`
	ThreadTS  string     `json:"thread_ts,omitempty"`
	Subtype   string     `json:"subtype,omitempty"`
	Reactions []Reaction `json:"reactions,omitempty"`
}

// IsThreadReply reports whether the message lives inside a thread anchored
// at another message.
func (m Message) IsThreadReply() bool {
	return m.ThreadTS != "" && m.ThreadTS != m.TS
}

// RootTS is the timestamp anchoring the message's thread: its own ts for a
// top-level message or thread root, the parent's ts for a reply.
func (m Message) RootTS() string {
	if m.IsThreadReply() {
		return m.ThreadTS
	}
	return m.TS
}

// TSValue parses a Slack "seconds.sequence" timestamp for ordering comparisons.
// Malformed timestamps compare as zero.
func TSValue(ts string) float64 {
	v, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return 0
	}
	return v
}

type blockText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Block is the subset of Slack Block Kit used by reminder payloads.
type Block struct {
	Type string     `json:"type"`
	Text *blockText `json:"text,omitempty"`
}

// SectionBlock builds a section block with mrkdwn text.
func SectionBlock(markdown string) Block {
	return Block{
		Type: "section",
		Text: &blockText{Type: "mrkdwn", Text: markdown},
	}
}
