package ui

import (
	"fmt"
	"strings"
	"time"

	"textchat/client/chatclient"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const friendOpTimeout = 5 * time.Second

func (a *App) newDialogForm(title string) *tview.Form {
	form := tview.NewForm()
	form.SetBackgroundColor(ColorBg)
	form.SetFieldBackgroundColor(ColorFieldBg)
	form.SetFieldTextColor(ColorFg)
	form.SetLabelColor(ColorHighlight)
	form.SetButtonBackgroundColor(ColorBar)
	form.SetButtonTextColor(ColorTitle)
	form.SetBorder(true)
	form.SetBorderColor(ColorBorder)
	form.SetTitle(title)
	form.SetTitleColor(ColorTitle)
	return form
}

func newStatusLabel() *tview.TextView {
	label := tview.NewTextView()
	label.SetBackgroundColor(ColorBg)
	label.SetTextColor(tcell.ColorRed)
	return label
}

func setText(label *tview.TextView) func(string) {
	return func(text string) { label.SetText(text) }
}

func newModal(text string, buttons ...string) *tview.Modal {
	modal := tview.NewModal()
	modal.SetText(text)
	modal.SetBackgroundColor(ColorBg)
	modal.SetTextColor(ColorFg)
	modal.SetButtonBackgroundColor(ColorBar)
	modal.SetButtonTextColor(ColorTitle)
	modal.AddButtons(buttons)
	return modal
}

// showDialog centers form above its status line.
func (a *App) showDialog(form *tview.Form, statusLabel *tview.TextView, height int) {
	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			AddItem(nil, 0, 1, false).
			AddItem(form, 50, 0, true).
			AddItem(nil, 0, 1, false), height, 0, true).
		AddItem(tview.NewFlex().
			AddItem(nil, 0, 1, false).
			AddItem(statusLabel, 50, 0, false).
			AddItem(nil, 0, 1, false), 1, 0, false).
		AddItem(nil, 0, 1, false)
	flex.SetBackgroundColor(ColorBg)

	a.pages.AddPage("dialog", flex, true, true)
	a.app.SetFocus(form)
}

func (a *App) closeDialog() {
	a.pages.RemovePage("dialog")
	a.app.SetFocus(a.friendsList)
}

// runFriendOp sends one friend request and waits for FRIEND_OP_OK or
// FRIEND_OP_FAIL. Only one operation is in flight at a time; the friend list
// is reloaded after a success. fail runs on the UI goroutine.
func (a *App) runFriendOp(send func(*chatclient.Client) error, fail func(string)) {
	c := a.currentClient()
	if c == nil {
		fail("Not connected")
		return
	}

	results := make(chan friendOpResult, 1)
	a.mu.Lock()
	if a.pendingOp != nil {
		a.mu.Unlock()
		fail("Another operation is in progress")
		return
	}
	a.pendingOp = results
	a.mu.Unlock()

	release := func() {
		a.mu.Lock()
		if a.pendingOp == results {
			a.pendingOp = nil
		}
		a.mu.Unlock()
	}

	if err := send(c); err != nil {
		release()
		fail(err.Error())
		return
	}

	go func() {
		defer release()
		select {
		case res := <-results:
			a.app.QueueUpdateDraw(func() {
				if !res.ok {
					fail(res.message)
					return
				}
				a.closeDialog()
				a.setNotice(res.message)
				a.loadFriends()
			})
		case <-time.After(friendOpTimeout):
			a.app.QueueUpdateDraw(func() {
				fail("Timeout")
			})
		}
	}()
}

func (a *App) showAddFriendDialog() {
	form := a.newDialogForm(" Add Friend ")
	statusLabel := newStatusLabel()

	accountField := tview.NewInputField()
	accountField.SetLabel("Account: ")
	accountField.SetFieldWidth(30)
	form.AddFormItem(accountField)

	form.AddButton("Add", func() {
		account := strings.TrimSpace(accountField.GetText())
		if account == "" {
			statusLabel.SetText("Account is required")
			return
		}
		a.runFriendOp(func(c *chatclient.Client) error { return c.AddFriend(account) }, setText(statusLabel))
	})
	form.AddButton("Cancel", a.closeDialog)

	a.showDialog(form, statusLabel, 7)
}

func (a *App) showRemarkDialog() {
	account, ok := a.selectedFriend()
	if !ok {
		return
	}
	a.mu.RLock()
	f, _ := a.roster.friend(account)
	a.mu.RUnlock()

	form := a.newDialogForm(fmt.Sprintf(" Remark for %s ", tview.Escape(account)))
	statusLabel := newStatusLabel()

	remarkField := tview.NewInputField()
	remarkField.SetLabel("Remark: ")
	remarkField.SetFieldWidth(30)
	remarkField.SetText(f.Remark)
	form.AddFormItem(remarkField)

	// an empty remark clears it
	form.AddButton("Save", func() {
		remark := strings.TrimSpace(remarkField.GetText())
		a.runFriendOp(func(c *chatclient.Client) error { return c.SetRemark(account, remark) }, setText(statusLabel))
	})
	form.AddButton("Cancel", a.closeDialog)

	a.showDialog(form, statusLabel, 7)
}

func (a *App) showDeleteFriendDialog() {
	account, ok := a.selectedFriend()
	if !ok {
		return
	}
	a.mu.RLock()
	f, _ := a.roster.friend(account)
	a.mu.RUnlock()

	modal := newModal(tview.Escape(fmt.Sprintf("Delete friend %s (%s)?", displayName(f), account)), "Delete", "Cancel")
	modal.SetDoneFunc(func(buttonIndex int, buttonLabel string) {
		if buttonLabel != "Delete" {
			a.closeDialog()
			return
		}
		// the modal has no status line, failures go to the connection view
		a.closeDialog()
		a.runFriendOp(func(c *chatclient.Client) error { return c.DeleteFriend(account) }, a.setNotice)
	})

	a.pages.AddPage("dialog", modal, true, true)
}

func (a *App) showClearHistoryDialog(peer string) {
	modal := newModal(tview.Escape(fmt.Sprintf("Clear history with %s?", peer)), "Clear", "Cancel")
	modal.SetDoneFunc(func(buttonIndex int, buttonLabel string) {
		if buttonLabel == "Clear" {
			if c := a.currentClient(); c != nil && c.DeleteHistory(peer) == nil {
				a.mu.Lock()
				a.roster.clearTranscript(peer)
				a.mu.Unlock()
				a.refreshChatView()
			}
		}
		a.pages.RemovePage("dialog")
		if a.messageInput != nil {
			a.app.SetFocus(a.messageInput)
		}
	})

	a.pages.AddPage("dialog", modal, true, true)
}

// showConversationsDialog lists HIS_LIST_RES transcripts; choosing one opens
// the chat with that peer.
func (a *App) showConversationsDialog(names []string) {
	if a.friendsList == nil || a.pages.HasPage("dialog") {
		return
	}
	a.mu.RLock()
	self := a.currentUser
	a.mu.RUnlock()

	list := tview.NewList()
	list.SetBorder(true)
	list.SetBorderColor(ColorBorder)
	list.SetBackgroundColor(ColorBg)
	list.SetTitle(" Conversations ")
	list.SetTitleColor(ColorTitle)
	list.SetMainTextColor(ColorFg)
	list.SetSelectedTextColor(ColorTitle)
	list.SetSelectedBackgroundColor(ColorBar)
	list.SetHighlightFullLine(true)
	list.ShowSecondaryText(false)

	peers := make([]string, len(names))
	for i, name := range names {
		peers[i] = conversationPeer(name, self)
		list.AddItem(tview.Escape(peers[i]), "", 0, nil)
	}
	if len(peers) == 0 {
		list.AddItem("[gray](no conversations)", "", 0, nil)
	}

	list.SetSelectedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
		a.closeDialog()
		if index < len(peers) {
			a.openChat(peers[index])
		}
	})
	list.SetDoneFunc(a.closeDialog)

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			AddItem(nil, 0, 1, false).
			AddItem(list, 40, 0, true).
			AddItem(nil, 0, 1, false), 15, 0, true).
		AddItem(nil, 0, 1, false)

	a.pages.AddPage("dialog", flex, true, true)
	a.app.SetFocus(list)
}

func (a *App) showDisconnectNotice(reason string) {
	if a.connectionView == nil {
		return
	}
	a.connectionView.SetText(fmt.Sprintf("[red]○ %s[-]\n[gray]Press F6 to reconnect[-]", tview.Escape(reason)))
}
