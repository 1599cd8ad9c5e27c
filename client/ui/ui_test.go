package ui

import (
	"strings"
	"testing"
	"time"

	"textchat/models"
	"textchat/protocol"
	"textchat/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTranscript(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)
	text := store.FormatLine("alice", "bob", "hi: there", ts) +
		store.FormatLine("bob", "alice", "hello", ts.Add(time.Minute)) +
		"garbled line\n"

	lines := parseTranscript(text)
	require.Len(t, lines, 3)
	assert.Equal(t, chatLine{Time: "2026-03-14 09:26:53", From: "alice", Text: "hi: there"}, lines[0])
	assert.Equal(t, chatLine{Time: "2026-03-14 09:27:53", From: "bob", Text: "hello"}, lines[1])
	assert.Equal(t, chatLine{Text: "garbled line"}, lines[2])

	assert.Nil(t, parseTranscript(protocol.NoHistory))
	assert.Nil(t, parseTranscript(""))
}

func TestLineFromRecord(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)
	rec := protocol.Record{Kind: protocol.KindChat, From: "bob", To: "alice", Content: "yo", Timestamp: ts.UnixMilli()}
	assert.Equal(t, chatLine{Time: "2026-03-14 09:26:53", From: "bob", Text: "yo"}, lineFromRecord(rec))
}

func TestRoster(t *testing.T) {
	r := newRoster()
	r.setFriends("bob|roommate;cathy")
	assert.Equal(t, []models.Friend{{Account: "bob", Remark: "roommate"}, {Account: "cathy"}}, r.friends)

	f, ok := r.friend("bob")
	assert.True(t, ok)
	assert.Equal(t, "roommate", f.Remark)
	f, ok = r.friend("zed")
	assert.False(t, ok)
	assert.Equal(t, "zed", f.Account)

	r.setStatuses("bob=ONLINE;cathy=OFFLINE;broken")
	assert.True(t, r.online["bob"])
	assert.False(t, r.online["cathy"])
	r.setStatuses("bob=OFFLINE")
	assert.False(t, r.online["bob"])

	r.receive("bob", chatLine{From: "bob", Text: "one"}, false)
	r.receive("bob", chatLine{From: "bob", Text: "two"}, false)
	r.receive("cathy", chatLine{From: "cathy", Text: "open"}, true)
	assert.Equal(t, 2, r.unread["bob"])
	assert.Zero(t, r.unread["cathy"])
	assert.Len(t, r.transcripts["bob"], 2)

	r.markRead("bob")
	assert.Zero(t, r.unread["bob"])

	r.setTranscript("bob", protocol.NoHistory)
	assert.Empty(t, r.transcripts["bob"])
	r.clearTranscript("cathy")
	assert.NotContains(t, r.transcripts, "cathy")

	r.setFriends("")
	assert.Empty(t, r.friends)
}

func TestRosterDisconnectedKeepsFriends(t *testing.T) {
	r := newRoster()
	r.setFriends("bob")
	r.setStatuses("bob=ONLINE")
	r.receive("bob", chatLine{From: "bob", Text: "hey"}, false)

	r.disconnected()
	assert.Len(t, r.friends, 1)
	assert.False(t, r.online["bob"])
	assert.Zero(t, r.unread["bob"])
	assert.Len(t, r.transcripts["bob"], 1)
}

func TestFriendItem(t *testing.T) {
	assert.Equal(t, "[gray]○[white] bob", friendItem(models.Friend{Account: "bob"}, false, 0))
	assert.Equal(t, "[green]●[white] roommate [gray](bob) [red](3)",
		friendItem(models.Friend{Account: "bob", Remark: "roommate"}, true, 3))
	assert.Equal(t, "[gray]○[white] [red[]", friendItem(models.Friend{Account: "[red]"}, false, 0))
}

func TestConversationPeer(t *testing.T) {
	assert.Equal(t, "bob", conversationPeer("alice__bob.txt", "alice"))
	assert.Equal(t, "alice", conversationPeer("alice__bob.txt", "bob"))
	assert.Equal(t, "cathy", conversationPeer("alice__cathy", "alice"))
}

func TestFormatDateSeparator(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local)

	assert.Equal(t, "Today", formatDateSeparator("2026-03-14 09:00:00", now))
	assert.Equal(t, "Yesterday", formatDateSeparator("2026-03-13 23:59:59", now))
	assert.Equal(t, "March 1", formatDateSeparator("2026-03-01 10:00:00", now))
	assert.Equal(t, "December 31, 2025", formatDateSeparator("2025-12-31 10:00:00", now))
	assert.Equal(t, "", formatDateSeparator("short", now))
	assert.Equal(t, "not-a-date", formatDateSeparator("not-a-date 10:00:00", now))
}

func TestRenderChat(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local)
	lines := []chatLine{
		{Time: "2026-03-13 22:00:00", From: "alice", Text: "night"},
		{Time: "2026-03-14 08:00:00", From: "bob", Text: "morning [red]"},
		{Text: "recipient is offline"},
	}

	out := strings.Split(strings.TrimSuffix(renderChat(lines, "alice", 29, now), "\n"), "\n")
	require.Len(t, out, 5)
	assert.Equal(t, "[gray]"+strings.Repeat(" ", 10)+"Yesterday[-]", out[0])
	assert.Equal(t, "[gray]22:00:00[-] [white]→ night[-]", out[1])
	assert.Equal(t, "[gray]"+strings.Repeat(" ", 12)+"Today[-]", out[2])
	assert.Equal(t, "[gray]08:00:00[-] [yellow]← morning [red[][-]", out[3])
	assert.Equal(t, "[gray]recipient is offline[-]", out[4])
}
