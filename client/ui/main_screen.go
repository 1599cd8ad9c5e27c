package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

func (a *App) showMainScreen() {
	a.pages.RemovePage("auth")
	a.pages.RemovePage("background")

	mainPage := a.createMainPage()
	a.pages.AddPage("main", mainPage, true, true)

	a.mu.RLock()
	a.friendsList.SetTitle(fmt.Sprintf(" Friends [%s] ", tview.Escape(a.currentUser)))
	a.mu.RUnlock()

	a.updateConnectionStatus()
	a.updateStatusBarText()
	a.loadFriends()

	a.app.SetFocus(a.friendsList)
}

func (a *App) createMainPage() tview.Primitive {
	a.friendsList = tview.NewList()
	a.friendsList.SetBorder(true)
	a.friendsList.SetBorderColor(ColorBorder)
	a.friendsList.SetBackgroundColor(ColorBg)
	a.friendsList.SetTitle(" Friends ")
	a.friendsList.SetTitleColor(ColorTitle)
	a.friendsList.SetMainTextColor(ColorFg)
	a.friendsList.SetMainTextStyle(tcell.StyleDefault.Foreground(ColorFg).Background(ColorBg))
	a.friendsList.SetSelectedTextColor(ColorTitle)
	a.friendsList.SetSelectedBackgroundColor(ColorBar)
	a.friendsList.SetHighlightFullLine(true)
	a.friendsList.ShowSecondaryText(false)

	a.friendsList.SetSelectedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
		if !a.connected() {
			a.setConnectionError("Not connected. Press F6 to connect.")
			return
		}
		a.mu.RLock()
		if index >= len(a.roster.friends) {
			a.mu.RUnlock()
			return
		}
		account := a.roster.friends[index].Account
		a.mu.RUnlock()
		a.openChat(account)
	})

	a.connectionView = tview.NewTextView()
	a.connectionView.SetBorder(true)
	a.connectionView.SetBorderColor(ColorBorder)
	a.connectionView.SetBackgroundColor(ColorBg)
	a.connectionView.SetTitle(" Connection ")
	a.connectionView.SetTitleColor(ColorTitle)
	a.connectionView.SetTextColor(ColorFg)
	a.connectionView.SetDynamicColors(true)
	a.connectionView.SetTextAlign(tview.AlignCenter)

	a.statusBar = tview.NewTextView()
	a.statusBar.SetBackgroundColor(ColorBar)
	a.statusBar.SetTextColor(ColorTitle)
	a.statusBar.SetTextAlign(tview.AlignCenter)

	mainFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.friendsList, 0, 1, true).
		AddItem(a.connectionView, 4, 0, false).
		AddItem(a.statusBar, 1, 0, false)
	mainFlex.SetBackgroundColor(ColorBg)

	mainFlex.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF1:
			a.showHelp()
			return nil
		case tcell.KeyF2:
			a.showAddFriendDialog()
			return nil
		case tcell.KeyF3:
			a.showRemarkDialog()
			return nil
		case tcell.KeyF4:
			a.showDeleteFriendDialog()
			return nil
		case tcell.KeyF5:
			a.loadFriends()
			return nil
		case tcell.KeyF6:
			a.toggleConnection()
			return nil
		case tcell.KeyF7:
			a.listConversations()
			return nil
		case tcell.KeyF10, tcell.KeyEsc:
			a.quit()
			return nil
		}
		return event
	})

	return mainFlex
}

// loadFriends asks for the friend list and then for presence, so statuses
// always land on a fresh list.
func (a *App) loadFriends() {
	c := a.currentClient()
	if c == nil {
		return
	}
	if err := c.GetFriends(); err != nil {
		a.setConnectionError(err.Error())
		return
	}
	c.GetStatus()
}

func (a *App) listConversations() {
	c := a.currentClient()
	if c == nil {
		a.setConnectionError("Not connected. Press F6 to connect.")
		return
	}
	if err := c.ListHistory(); err != nil {
		a.setConnectionError(err.Error())
	}
}

func (a *App) updateFriendsList() {
	if a.friendsList == nil {
		return
	}
	current := a.friendsList.GetCurrentItem()

	a.mu.RLock()
	items := make([]string, len(a.roster.friends))
	for i, f := range a.roster.friends {
		items[i] = friendItem(f, a.roster.online[f.Account], a.roster.unread[f.Account])
	}
	a.mu.RUnlock()

	a.friendsList.Clear()
	for _, item := range items {
		a.friendsList.AddItem(item, "", 0, nil)
	}
	if current >= 0 && current < len(items) {
		a.friendsList.SetCurrentItem(current)
	}
}

// selectedFriend is the account under the list cursor.
func (a *App) selectedFriend() (string, bool) {
	if a.friendsList == nil {
		return "", false
	}
	idx := a.friendsList.GetCurrentItem()
	a.mu.RLock()
	defer a.mu.RUnlock()
	if idx < 0 || idx >= len(a.roster.friends) {
		return "", false
	}
	return a.roster.friends[idx].Account, true
}
