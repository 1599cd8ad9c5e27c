package ui

import (
	"textchat/client/chatclient"
	"textchat/protocol"
)

// friendOpResult is the server's answer to the friend operation in flight.
type friendOpResult struct {
	ok      bool
	message string
}

// setupHandlers routes records from c into the roster and the screens. It is
// called before c connects so nothing the server sends is missed.
func (a *App) setupHandlers(c *chatclient.Client) {
	// on registers h for kind, dropping records from a replaced client.
	on := func(kind string, h func(protocol.Record)) {
		c.OnRecord(kind, func(rec protocol.Record) {
			if a.isCurrent(c) {
				h(rec)
			}
		})
	}

	on(protocol.KindChat, func(rec protocol.Record) {
		peer := rec.From
		a.mu.Lock()
		open := a.currentChat == peer
		a.roster.receive(peer, lineFromRecord(rec), open)
		a.mu.Unlock()

		a.app.QueueUpdateDraw(func() {
			if open {
				a.refreshChatView()
			}
			a.updateFriendsList()
		})
	})

	on(protocol.KindFriendListRes, func(rec protocol.Record) {
		a.mu.Lock()
		a.roster.setFriends(rec.Data)
		a.mu.Unlock()
		a.app.QueueUpdateDraw(a.updateFriendsList)
	})

	statuses := func(rec protocol.Record) {
		a.mu.Lock()
		a.roster.setStatuses(rec.Data)
		a.mu.Unlock()
		a.app.QueueUpdateDraw(func() {
			a.updateFriendsList()
			a.updateChatTitle()
		})
	}
	on(protocol.KindStatusRes, statuses)
	on(protocol.KindStatusPush, statuses)

	on(protocol.KindHisReadRes, func(rec protocol.Record) {
		a.mu.Lock()
		if len(a.historyQueue) == 0 {
			a.mu.Unlock()
			return
		}
		peer := a.historyQueue[0]
		a.historyQueue = a.historyQueue[1:]
		a.roster.setTranscript(peer, rec.Content)
		open := a.currentChat == peer
		a.mu.Unlock()

		if open {
			a.app.QueueUpdateDraw(a.refreshChatView)
		}
	})

	on(protocol.KindHisListRes, func(rec protocol.Record) {
		names := protocol.SplitList(rec.Data)
		a.app.QueueUpdateDraw(func() {
			a.showConversationsDialog(names)
		})
	})

	friendOp := func(ok bool) func(protocol.Record) {
		return func(rec protocol.Record) {
			a.mu.RLock()
			pending := a.pendingOp
			a.mu.RUnlock()
			if pending == nil {
				return
			}
			select {
			case pending <- friendOpResult{ok: ok, message: rec.Content}:
			default:
			}
		}
	}
	on(protocol.KindFriendOpOK, friendOp(true))
	on(protocol.KindFriendOpFail, friendOp(false))

	notice := func(rec protocol.Record) {
		a.app.QueueUpdateDraw(func() {
			a.setNotice(rec.Content)
		})
	}
	on(protocol.KindHisDelOK, notice)
	on(protocol.KindHisDelFail, notice)

	on(protocol.KindChatOfflineSaved, func(rec protocol.Record) {
		a.mu.Lock()
		peer := a.currentChat
		if peer != "" {
			a.roster.receive(peer, chatLine{Text: rec.Content}, true)
		}
		a.mu.Unlock()
		a.app.QueueUpdateDraw(func() {
			a.setNotice(rec.Content)
			a.refreshChatView()
		})
	})

	// a friend add by someone else arrives with its own FRIEND_LIST_RES
	on(protocol.KindSysNotice, notice)

	on(protocol.KindKick, func(rec protocol.Record) {
		a.mu.Lock()
		a.kickReason = rec.Content
		a.mu.Unlock()
	})

	on(chatclient.KindDisconnected, func(rec protocol.Record) {
		a.mu.Lock()
		if a.client == c {
			a.client = nil
		}
		reason := rec.Content
		if a.kickReason != "" {
			reason = a.kickReason
		}
		a.roster.disconnected()
		a.historyQueue = nil
		a.mu.Unlock()

		a.app.QueueUpdateDraw(func() {
			a.updateStatusBarText()
			a.updateFriendsList()
			a.updateChatTitle()
			a.showDisconnectNotice(reason)
		})
	})
}
