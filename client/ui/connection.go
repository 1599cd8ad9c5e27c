package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

func (a *App) updateConnectionStatus() {
	if a.connectionView == nil {
		return
	}
	if a.connected() {
		a.connectionView.SetText(fmt.Sprintf("[green]● Connected to %s[-]", a.serverAddr))
	} else {
		a.connectionView.SetText(fmt.Sprintf("[red]○ Disconnected from %s[-]", a.serverAddr))
	}
}

func (a *App) setConnectionError(err string) {
	if a.connectionView == nil {
		return
	}
	a.connectionView.SetText(fmt.Sprintf("[red]✗ Error: %s[-]", tview.Escape(err)))
}

// setNotice shows a server notice under the connection line.
func (a *App) setNotice(text string) {
	if a.connectionView == nil {
		return
	}
	status := "[red]○ Disconnected[-]"
	if a.connected() {
		status = "[green]● Connected[-]"
	}
	a.connectionView.SetText(fmt.Sprintf("%s\n[yellow]%s[-]", status, tview.Escape(text)))
}

func (a *App) updateStatusBarText() {
	if a.statusBar == nil {
		return
	}
	if a.connected() {
		a.statusBar.SetText(" F1:Help | F2:Add | F3:Remark | F4:Delete | F5:Refresh | F6:Disconnect | F7:History | F10:Quit ")
	} else {
		a.statusBar.SetText(" F1:Help | F6:Connect | F10:Quit ")
	}
}

func (a *App) toggleConnection() {
	if c := a.currentClient(); c != nil && c.IsConnected() {
		// the DISCONNECTED handler resets the screens
		a.connectionView.SetText("[yellow]Disconnecting...[-]")
		a.mu.Lock()
		a.kickReason = ""
		a.mu.Unlock()
		c.Disconnect()
		return
	}

	a.mu.RLock()
	account, secret := a.currentUser, a.currentSecret
	a.mu.RUnlock()

	a.connectionView.SetText("[yellow]Connecting...[-]")
	a.connect(account, secret, func(err error) {
		if err != nil {
			a.setConnectionError(err.Error())
			a.updateStatusBarText()
			return
		}
		a.updateConnectionStatus()
		a.updateStatusBarText()
		a.loadFriends()
	})
}
