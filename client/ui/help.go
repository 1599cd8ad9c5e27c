package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const helpText = `
 [yellow]Main Screen[-]
 ───────────────────────────────────────────────────────────────
   [white]F1[-]       Show this help
   [white]F2[-]       Add a friend
   [white]F3[-]       Set the remark of the selected friend
   [white]F4[-]       Delete the selected friend
   [white]F5[-]       Refresh friends and presence
   [white]F6[-]       Connect / Disconnect
   [white]F7[-]       Browse stored conversations
   [white]F10/Esc[-]  Quit application
   [white]Enter[-]    Open chat with friend
   [white]↑ ↓[-]      Navigate friends

 [yellow]Chat Screen[-]
 ───────────────────────────────────────────────────────────────
   [white]Enter[-]    Send message
   [white]Tab[-]      Switch between input and scroll mode
   [white]Esc[-]      Back to friends (from input mode)
   [white]F5[-]       Reload history
   [white]F8[-]       Delete history

 [yellow]Scroll Mode (after pressing Tab)[-]
 ───────────────────────────────────────────────────────────────
   [white]↑ ↓[-]      Scroll one line
   [white]PgUp/Dn[-]  Scroll page (10 lines)
   [white]Home[-]     Scroll to beginning
   [white]End[-]      Scroll to end
   [white]Tab/Esc[-]  Return to input mode

 [yellow]Status Icons[-]
 ───────────────────────────────────────────────────────────────
   [green]●[-] online   Friend is connected
   [gray]○[-] offline  Friend is disconnected
   [red](n)[-]         Unread messages

 Messages to an offline friend are kept in the history and
 shown when they open the conversation.
`

func (a *App) showHelp() {
	helpView := tview.NewTextView()
	helpView.SetText(helpText)
	helpView.SetBackgroundColor(ColorBg)
	helpView.SetTextColor(ColorFg)
	helpView.SetDynamicColors(true)
	helpView.SetBorder(true)
	helpView.SetBorderColor(ColorBorder)
	helpView.SetTitle(" Help ")
	helpView.SetTitleColor(ColorTitle)
	helpView.SetScrollable(true)

	statusBar := tview.NewTextView()
	statusBar.SetBackgroundColor(ColorBar)
	statusBar.SetTextColor(ColorTitle)
	statusBar.SetTextAlign(tview.AlignCenter)
	statusBar.SetText(" ↑↓/PgUp/PgDn: Scroll | Esc/Enter/F1: Close ")

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(helpView, 0, 1, true).
		AddItem(statusBar, 1, 0, false)
	flex.SetBackgroundColor(ColorBg)

	scroll := func(delta int) {
		row, col := helpView.GetScrollOffset()
		helpView.ScrollTo(row+delta, col)
	}

	flex.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc, tcell.KeyEnter, tcell.KeyF1:
			a.pages.RemovePage("help")
			a.app.SetFocus(a.friendsList)
			return nil
		case tcell.KeyUp:
			scroll(-1)
			return nil
		case tcell.KeyDown:
			scroll(1)
			return nil
		case tcell.KeyPgUp:
			scroll(-10)
			return nil
		case tcell.KeyPgDn:
			scroll(10)
			return nil
		case tcell.KeyHome:
			helpView.ScrollToBeginning()
			return nil
		case tcell.KeyEnd:
			helpView.ScrollToEnd()
			return nil
		}
		return event
	})

	a.pages.AddPage("help", flex, true, true)
}
