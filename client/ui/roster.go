package ui

import (
	"strings"

	"textchat/models"
	"textchat/protocol"

	"github.com/bradenaw/juniper/xslices"
)

// chatLine is one rendered transcript entry. Lines that do not follow the
// transcript layout keep only Text.
type chatLine struct {
	Time string // 2006-01-02 15:04:05
	From string
	Text string
}

// roster is what the client knows about the logged-in account: its friends,
// their presence, unread counters and the transcripts loaded so far.
// App.mu guards it.
type roster struct {
	friends     []models.Friend
	online      map[string]bool
	unread      map[string]int
	transcripts map[string][]chatLine
}

func newRoster() *roster {
	return &roster{
		online:      make(map[string]bool),
		unread:      make(map[string]int),
		transcripts: make(map[string][]chatLine),
	}
}

// setFriends replaces the list from a FRIEND_LIST_RES payload.
func (r *roster) setFriends(data string) {
	r.friends = xslices.Map(protocol.SplitList(data), models.ParseFriend)
}

// setStatuses applies "account=STATUS" pairs from STATUS_RES or STATUS_PUSH.
func (r *roster) setStatuses(data string) {
	for _, pair := range protocol.SplitList(data) {
		account, status, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		r.online[account] = models.Status(status) == models.Online
	}
}

func (r *roster) friend(account string) (models.Friend, bool) {
	i := xslices.IndexFunc(r.friends, func(f models.Friend) bool { return f.Account == account })
	if i < 0 {
		return models.Friend{Account: account}, false
	}
	return r.friends[i], true
}

// receive appends line to the conversation with peer and counts it as unread
// unless that conversation is on screen.
func (r *roster) receive(peer string, line chatLine, open bool) {
	r.transcripts[peer] = append(r.transcripts[peer], line)
	if !open {
		r.unread[peer]++
	}
}

func (r *roster) setTranscript(peer, text string) {
	r.transcripts[peer] = parseTranscript(text)
}

func (r *roster) clearTranscript(peer string) {
	delete(r.transcripts, peer)
}

func (r *roster) markRead(peer string) {
	delete(r.unread, peer)
}

// disconnected forgets everything the server has to resend after a login.
func (r *roster) disconnected() {
	clear(r.online)
	clear(r.unread)
}
