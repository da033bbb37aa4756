package mention

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/cw35/slackminder/internal/slackapi"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeWorkspace implements Conversations over in-memory fixtures.
type fakeWorkspace struct {
	channels    []slackapi.Channel
	listErr     error
	history     map[string][]slackapi.Message
	historyErr  map[string]error
	replies     map[string][]slackapi.Message // key channelID\x00rootTS, root included
	repliesErr  map[string]error
	joinErr     map[string]error
	joined      []string
	joinedSeen  map[string]bool
	historyGets []string
}

func replyKey(channelID, rootTS string) string {
	return channelID + "\x00" + rootTS
}

func (f *fakeWorkspace) ListChannels(ctx context.Context) ([]slackapi.Channel, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.channels, nil
}

func (f *fakeWorkspace) JoinChannel(ctx context.Context, channelID string) error {
	if err := f.joinErr[channelID]; err != nil {
		return err
	}
	f.joined = append(f.joined, channelID)
	if f.joinedSeen == nil {
		f.joinedSeen = make(map[string]bool)
	}
	f.joinedSeen[channelID] = true
	return nil
}

func (f *fakeWorkspace) ListHistory(ctx context.Context, channelID string) ([]slackapi.Message, error) {
	f.historyGets = append(f.historyGets, channelID)
	if err := f.historyErr[channelID]; err != nil {
		return nil, err
	}
	return f.history[channelID], nil
}

func (f *fakeWorkspace) ListReplies(ctx context.Context, channelID, rootTS string) ([]slackapi.Message, error) {
	if err := f.repliesErr[replyKey(channelID, rootTS)]; err != nil {
		return nil, err
	}
	if thread, ok := f.replies[replyKey(channelID, rootTS)]; ok {
		return thread, nil
	}
	// Slack returns at least the root itself for any ts in the channel.
	for _, msg := range f.history[channelID] {
		if msg.TS == rootTS {
			return []slackapi.Message{msg}, nil
		}
	}
	return nil, nil
}

func TestScanSingleUnrepliedMention(t *testing.T) {
	t.Parallel()

	m1 := slackapi.Message{TS: "1700000100.000100", User: "U9", Text: "hey <@U1>"}
	ws := &fakeWorkspace{
		channels: []slackapi.Channel{{ID: "C1", IsMember: true}},
		history:  map[string][]slackapi.Message{"C1": {m1}},
	}

	got, err := Scan(context.Background(), ws, discardLogger(), "U1")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Scan() returned %d mentions, want 1", len(got))
	}
	if got[0].ChannelID != "C1" || got[0].Message.TS != m1.TS {
		t.Fatalf("Scan() = {%s %s}, want {C1 %s}", got[0].ChannelID, got[0].Message.TS, m1.TS)
	}
}

func TestScanSkipsNonMentions(t *testing.T) {
	t.Parallel()

	ws := &fakeWorkspace{
		channels: []slackapi.Channel{{ID: "C1", IsMember: true}},
		history: map[string][]slackapi.Message{"C1": {
			{TS: "1700000100.000100", User: "U9", Text: "no mention here"},
			{TS: "1700000200.000100", User: "U9", Text: "ping <@U2>"},
		}},
	}

	got, err := Scan(context.Background(), ws, discardLogger(), "U1")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Scan() returned %d mentions, want 0", len(got))
	}
}

func TestScanExcludesAcknowledged(t *testing.T) {
	t.Parallel()

	reacted := slackapi.Message{
		TS: "1700000100.000100", User: "U9", Text: "ping <@U1>",
		Reactions: []slackapi.Reaction{{Name: "white_check_mark", Users: []string{"U1"}}},
	}
	replied := slackapi.Message{TS: "1700000200.000100", User: "U9", Text: "ping <@U1> again"}
	ws := &fakeWorkspace{
		channels: []slackapi.Channel{{ID: "C1", IsMember: true}},
		history:  map[string][]slackapi.Message{"C1": {reacted, replied}},
		replies: map[string][]slackapi.Message{
			replyKey("C1", replied.TS): {
				replied,
				{TS: "1700000300.000100", User: "U1", ThreadTS: replied.TS, Text: "on it"},
			},
		},
	}

	got, err := Scan(context.Background(), ws, discardLogger(), "U1")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Scan() returned %d mentions, want 0 (both acknowledged)", len(got))
	}
}

func TestScanFindsMentionInThreadReply(t *testing.T) {
	t.Parallel()

	root := slackapi.Message{TS: "1700000100.000100", User: "U9", Text: "kickoff"}
	reply := slackapi.Message{TS: "1700000200.000100", User: "U8", Text: "cc <@U1>", ThreadTS: root.TS}
	ws := &fakeWorkspace{
		channels: []slackapi.Channel{{ID: "C1", IsMember: true}},
		history:  map[string][]slackapi.Message{"C1": {root}},
		replies:  map[string][]slackapi.Message{replyKey("C1", root.TS): {root, reply}},
	}

	got, err := Scan(context.Background(), ws, discardLogger(), "U1")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Scan() returned %d mentions, want 1", len(got))
	}
	if got[0].Message.TS != reply.TS {
		t.Fatalf("Scan() found ts %s, want reply ts %s", got[0].Message.TS, reply.TS)
	}
}

func TestScanDeduplicatesThreadReplyInHistory(t *testing.T) {
	t.Parallel()

	// Slack also surfaces broadcast thread replies in channel history, so the
	// same message is reachable twice.
	root := slackapi.Message{TS: "1700000100.000100", User: "U9", Text: "kickoff"}
	reply := slackapi.Message{TS: "1700000200.000100", User: "U8", Text: "cc <@U1>", ThreadTS: root.TS}
	thread := []slackapi.Message{root, reply}
	ws := &fakeWorkspace{
		channels: []slackapi.Channel{{ID: "C1", IsMember: true}},
		history:  map[string][]slackapi.Message{"C1": {root, reply}},
		replies: map[string][]slackapi.Message{
			replyKey("C1", root.TS): thread,
		},
	}

	got, err := Scan(context.Background(), ws, discardLogger(), "U1")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Scan() returned %d mentions, want 1 after dedup", len(got))
	}
}

func TestScanSkipsSystemJoinNotices(t *testing.T) {
	t.Parallel()

	ws := &fakeWorkspace{
		channels: []slackapi.Channel{{ID: "C1", IsMember: true}},
		history: map[string][]slackapi.Message{"C1": {
			{TS: "1700000100.000100", User: "U1", Text: "<@U1> has joined the channel", Subtype: "channel_join"},
		}},
	}

	got, err := Scan(context.Background(), ws, discardLogger(), "U1")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Scan() returned %d mentions, want 0 for join notice", len(got))
	}
}

func TestScanJoinsNonMemberChannels(t *testing.T) {
	t.Parallel()

	ws := &fakeWorkspace{
		channels: []slackapi.Channel{{ID: "C1", IsMember: false}},
		history: map[string][]slackapi.Message{"C1": {
			{TS: "1700000100.000100", User: "U9", Text: "hi <@U1>"},
		}},
	}

	got, err := Scan(context.Background(), ws, discardLogger(), "U1")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if !ws.joinedSeen["C1"] {
		t.Fatalf("expected join for C1 before reading history")
	}
	if len(got) != 1 {
		t.Fatalf("Scan() returned %d mentions, want 1", len(got))
	}
}

func TestScanSkipsChannelOnJoinFailure(t *testing.T) {
	t.Parallel()

	ws := &fakeWorkspace{
		channels: []slackapi.Channel{
			{ID: "C1", IsMember: false},
			{ID: "C2", IsMember: true},
		},
		joinErr: map[string]error{"C1": fmt.Errorf("is_archived")},
		history: map[string][]slackapi.Message{
			"C1": {{TS: "1700000100.000100", User: "U9", Text: "hi <@U1>"}},
			"C2": {{TS: "1700000200.000100", User: "U9", Text: "yo <@U1>"}},
		},
	}

	got, err := Scan(context.Background(), ws, discardLogger(), "U1")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got) != 1 || got[0].ChannelID != "C2" {
		t.Fatalf("Scan() = %+v, want only the C2 mention", got)
	}
	for _, ch := range ws.historyGets {
		if ch == "C1" {
			t.Fatalf("history fetched for unjoined channel C1")
		}
	}
}

func TestScanSkipsChannelOnHistoryFailure(t *testing.T) {
	t.Parallel()

	ws := &fakeWorkspace{
		channels: []slackapi.Channel{
			{ID: "C1", IsMember: true},
			{ID: "C2", IsMember: true},
		},
		historyErr: map[string]error{"C1": fmt.Errorf("channel_not_found")},
		history: map[string][]slackapi.Message{
			"C2": {{TS: "1700000200.000100", User: "U9", Text: "yo <@U1>"}},
		},
	}

	got, err := Scan(context.Background(), ws, discardLogger(), "U1")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got) != 1 || got[0].ChannelID != "C2" {
		t.Fatalf("Scan() = %+v, want only the C2 mention", got)
	}
}

func TestScanSkipsMessageOnRepliesFailure(t *testing.T) {
	t.Parallel()

	m1 := slackapi.Message{TS: "1700000100.000100", User: "U9", Text: "hi <@U1>"}
	m2 := slackapi.Message{TS: "1700000200.000100", User: "U9", Text: "yo <@U1>"}
	ws := &fakeWorkspace{
		channels:   []slackapi.Channel{{ID: "C1", IsMember: true}},
		history:    map[string][]slackapi.Message{"C1": {m1, m2}},
		repliesErr: map[string]error{replyKey("C1", m1.TS): fmt.Errorf("thread_not_found")},
	}

	got, err := Scan(context.Background(), ws, discardLogger(), "U1")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	// The message with the failed thread fetch is skipped rather than
	// reported unacknowledged on missing data; the rest of the channel scans.
	if len(got) != 1 || got[0].Message.TS != m2.TS {
		t.Fatalf("Scan() = %+v, want only %s", got, m2.TS)
	}
}

func TestScanFailsWhenChannelListFails(t *testing.T) {
	t.Parallel()

	ws := &fakeWorkspace{listErr: fmt.Errorf("invalid_auth")}
	got, err := Scan(context.Background(), ws, discardLogger(), "U1")
	if err == nil {
		t.Fatalf("Scan() error = nil, want channel list failure")
	}
	if got != nil {
		t.Fatalf("Scan() returned partial output %+v on listing failure", got)
	}
}

func TestScanOrderingIsDeterministic(t *testing.T) {
	t.Parallel()

	mk := func(channel, ts string) slackapi.Message {
		return slackapi.Message{TS: ts, User: "U9", Text: "hi <@U1>"}
	}
	ws := &fakeWorkspace{
		channels: []slackapi.Channel{
			{ID: "C1", IsMember: true},
			{ID: "C2", IsMember: true},
		},
		history: map[string][]slackapi.Message{
			"C1": {mk("C1", "1700000100.000100"), mk("C1", "1700000200.000100")},
			"C2": {mk("C2", "1700000050.000100")},
		},
	}

	got, err := Scan(context.Background(), ws, discardLogger(), "U1")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	want := []string{"1700000100.000100", "1700000200.000100", "1700000050.000100"}
	if len(got) != len(want) {
		t.Fatalf("Scan() returned %d mentions, want %d", len(got), len(want))
	}
	for i, ts := range want {
		if got[i].Message.TS != ts {
			t.Fatalf("result[%d].TS = %s, want %s (channel-list order, then history order)", i, got[i].Message.TS, ts)
		}
	}
}
