package ui

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const (
	chatKeys   = " Enter:Send | Tab:Scroll | F5:Reload | F8:Clear | Esc:Back "
	scrollKeys = " ↑↓/PgUp/PgDn:Scroll | Home:Top | End:Bottom | Tab/Esc:Input "
)

func (a *App) openChat(peer string) {
	a.mu.Lock()
	a.currentChat = peer
	a.roster.markRead(peer)
	a.mu.Unlock()

	chatPage := a.createChatPage(peer)
	a.pages.AddPage("chat", chatPage, true, true)
	a.pages.SwitchToPage("chat")

	a.updateFriendsList()
	a.refreshChatView()
	a.loadHistory(peer)
}

func (a *App) chatTitle(peer string) string {
	a.mu.RLock()
	f, _ := a.roster.friend(peer)
	online := a.roster.online[peer]
	a.mu.RUnlock()

	status := "○ offline"
	if online {
		status = "● online"
	}
	return fmt.Sprintf(" %s ─ %s ", tview.Escape(displayName(f)), status)
}

func (a *App) updateChatTitle() {
	if a.chatView == nil {
		return
	}
	a.mu.RLock()
	peer := a.currentChat
	a.mu.RUnlock()
	if peer != "" {
		a.chatView.SetTitle(a.chatTitle(peer))
	}
}

func (a *App) createChatPage(peer string) tview.Primitive {
	a.chatView = tview.NewTextView()
	a.chatView.SetBorder(true)
	a.chatView.SetBorderColor(ColorBorder)
	a.chatView.SetBackgroundColor(ColorBg)
	a.chatView.SetTitle(a.chatTitle(peer))
	a.chatView.SetTitleColor(ColorTitle)
	a.chatView.SetTextColor(ColorFg)
	a.chatView.SetDynamicColors(true)
	a.chatView.SetScrollable(true)

	a.messageInput = tview.NewInputField()
	a.messageInput.SetLabel("> ")
	a.messageInput.SetFieldWidth(0)
	a.messageInput.SetBackgroundColor(ColorBg)
	a.messageInput.SetFieldBackgroundColor(ColorFieldBg)
	a.messageInput.SetFieldTextColor(ColorFg)
	a.messageInput.SetLabelColor(ColorHighlight)
	a.messageInput.SetBorder(true)
	a.messageInput.SetBorderColor(ColorBorder)
	a.messageInput.SetTitle(" Message ")
	a.messageInput.SetTitleColor(ColorTitle)

	a.messageInput.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		if text := a.messageInput.GetText(); text != "" {
			a.sendMessage(peer, text)
			a.messageInput.SetText("")
		}
	})

	chatStatus := tview.NewTextView()
	chatStatus.SetBackgroundColor(ColorBar)
	chatStatus.SetTextColor(ColorTitle)
	chatStatus.SetTextAlign(tview.AlignCenter)
	chatStatus.SetText(chatKeys)

	mainFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.chatView, 0, 1, false).
		AddItem(a.messageInput, 3, 0, true).
		AddItem(chatStatus, 1, 0, false)
	mainFlex.SetBackgroundColor(ColorBg)

	chatViewFocused := false
	scroll := func(delta int) {
		row, col := a.chatView.GetScrollOffset()
		a.chatView.ScrollTo(row+delta, col)
	}

	mainFlex.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc:
			if chatViewFocused {
				chatViewFocused = false
				a.app.SetFocus(a.messageInput)
				chatStatus.SetText(chatKeys)
				return nil
			}
			a.closeChat()
			return nil
		case tcell.KeyTab:
			chatViewFocused = !chatViewFocused
			if chatViewFocused {
				a.app.SetFocus(a.chatView)
				chatStatus.SetText(scrollKeys)
			} else {
				a.app.SetFocus(a.messageInput)
				chatStatus.SetText(chatKeys)
			}
			return nil
		case tcell.KeyF5:
			a.loadHistory(peer)
			return nil
		case tcell.KeyF8:
			a.showClearHistoryDialog(peer)
			return nil
		case tcell.KeyPgUp:
			scroll(-10)
			return nil
		case tcell.KeyPgDn:
			scroll(10)
			return nil
		case tcell.KeyUp:
			if chatViewFocused {
				scroll(-1)
				return nil
			}
		case tcell.KeyDown:
			if chatViewFocused {
				scroll(1)
				return nil
			}
		case tcell.KeyHome:
			if chatViewFocused {
				a.chatView.ScrollToBeginning()
				return nil
			}
		case tcell.KeyEnd:
			if chatViewFocused {
				a.chatView.ScrollToEnd()
				return nil
			}
		}
		return event
	})

	return mainFlex
}

// loadHistory asks for the stored transcript with peer; the HIS_READ_RES
// handler replaces whatever the roster holds for that conversation.
func (a *App) loadHistory(peer string) {
	c := a.currentClient()
	if c == nil {
		return
	}
	a.mu.Lock()
	a.historyQueue = append(a.historyQueue, peer)
	a.mu.Unlock()

	if err := c.ReadHistory(peer); err != nil {
		a.mu.Lock()
		if n := len(a.historyQueue); n > 0 && a.historyQueue[n-1] == peer {
			a.historyQueue = a.historyQueue[:n-1]
		}
		a.mu.Unlock()
	}
}

func (a *App) refreshChatView() {
	if a.chatView == nil {
		return
	}

	a.mu.RLock()
	lines := a.roster.transcripts[a.currentChat]
	self := a.currentUser
	a.mu.RUnlock()

	_, _, width, _ := a.chatView.GetInnerRect()
	if width < 10 {
		width = 80
	}

	a.chatView.SetText(renderChat(lines, self, width, time.Now()))
	a.chatView.ScrollToEnd()
}

func (a *App) sendMessage(peer, text string) {
	c := a.currentClient()
	if c == nil {
		a.setNotice("Not connected. Press F6 to connect.")
		return
	}
	if err := c.SendMessage(peer, text); err != nil {
		a.setNotice(err.Error())
		return
	}

	a.mu.Lock()
	a.roster.receive(peer, chatLine{
		Time: time.Now().Format(transcriptTimeLayout),
		From: a.currentUser,
		Text: text,
	}, true)
	a.mu.Unlock()

	a.refreshChatView()
}

func (a *App) closeChat() {
	a.mu.Lock()
	a.currentChat = ""
	a.mu.Unlock()
	a.chatView = nil
	a.messageInput = nil
	a.pages.RemovePage("chat")
	a.pages.SwitchToPage("main")
	a.app.SetFocus(a.friendsList)
}
