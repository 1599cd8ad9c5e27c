package ui

import (
	"fmt"
	"strings"
	"time"

	"textchat/models"
	"textchat/protocol"

	"github.com/rivo/tview"
)

const transcriptTimeLayout = "2006-01-02 15:04:05"

// parseTranscript splits a HIS_READ_RES transcript whose lines look like
// "[2006-01-02 15:04:05] alice -> bob: text".
func parseTranscript(text string) []chatLine {
	if text == protocol.NoHistory {
		return nil
	}
	var lines []chatLine
	for _, raw := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if raw == "" {
			continue
		}
		lines = append(lines, parseTranscriptLine(raw))
	}
	return lines
}

func parseTranscriptLine(raw string) chatLine {
	rest, ok := strings.CutPrefix(raw, "[")
	if !ok {
		return chatLine{Text: raw}
	}
	ts, rest, ok := strings.Cut(rest, "] ")
	if !ok {
		return chatLine{Text: raw}
	}
	from, rest, ok := strings.Cut(rest, " -> ")
	if !ok {
		return chatLine{Text: raw}
	}
	_, text, ok := strings.Cut(rest, ": ")
	if !ok {
		return chatLine{Text: raw}
	}
	return chatLine{Time: ts, From: from, Text: text}
}

func lineFromRecord(rec protocol.Record) chatLine {
	ts := time.Now()
	if rec.Timestamp != 0 {
		ts = time.UnixMilli(rec.Timestamp)
	}
	return chatLine{Time: ts.Format(transcriptTimeLayout), From: rec.From, Text: rec.Content}
}

func displayName(f models.Friend) string {
	if f.Remark != "" {
		return f.Remark
	}
	return f.Account
}

// friendItem renders one row of the friend list.
func friendItem(f models.Friend, online bool, unread int) string {
	mark := "[gray]○[white]"
	if online {
		mark = "[green]●[white]"
	}
	item := mark + " " + tview.Escape(displayName(f))
	if f.Remark != "" {
		item += " [gray](" + tview.Escape(f.Account) + ")"
	}
	if unread > 0 {
		item += fmt.Sprintf(" [red](%d)", unread)
	}
	return item
}

// conversationPeer returns the other member of a HIS_LIST_RES file name.
func conversationPeer(fileName, self string) string {
	key := models.ConversationKey(strings.TrimSuffix(fileName, ".txt"))
	a, b := key.Members()
	if a == self {
		return b
	}
	return a
}

// renderChat draws lines for the chat view; self's lines point right,
// everyone else's left, with a centered separator whenever the date changes.
func renderChat(lines []chatLine, self string, width int, now time.Time) string {
	var sb strings.Builder
	var lastDate string

	for _, l := range lines {
		if len(l.Time) >= 10 && l.Time[:10] != lastDate {
			lastDate = l.Time[:10]
			label := formatDateSeparator(l.Time, now)
			padding := max((width-len(label))/2, 0)
			fmt.Fprintf(&sb, "[gray]%s%s[-]\n", strings.Repeat(" ", padding), label)
		}

		clock := l.Time
		if len(clock) >= 19 {
			clock = clock[11:19]
		}
		text := tview.Escape(l.Text)

		switch l.From {
		case "":
			fmt.Fprintf(&sb, "[gray]%s[-]\n", text)
		case self:
			fmt.Fprintf(&sb, "[gray]%s[-] [white]→ %s[-]\n", clock, text)
		default:
			fmt.Fprintf(&sb, "[gray]%s[-] [yellow]← %s[-]\n", clock, text)
		}
	}
	return sb.String()
}

// formatDateSeparator names the day of a transcript timestamp relative to now.
func formatDateSeparator(timestamp string, now time.Time) string {
	if len(timestamp) < 10 {
		return ""
	}
	t, err := time.ParseInLocation("2006-01-02", timestamp[:10], now.Location())
	if err != nil {
		return timestamp[:10]
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch {
	case t.Equal(today):
		return "Today"
	case t.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	case t.Year() == now.Year():
		return t.Format("January 2")
	default:
		return t.Format("January 2, 2006")
	}
}
