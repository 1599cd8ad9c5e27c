package ui

import (
	"errors"
	"time"

	"textchat/client/chatclient"
	"textchat/protocol"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const loginTimeout = 10 * time.Second

var errLoginTimeout = errors.New("connection timeout")

func (a *App) showAuthDialog() {
	form := tview.NewForm()
	form.SetBackgroundColor(ColorBg)
	form.SetFieldBackgroundColor(ColorFieldBg)
	form.SetFieldTextColor(ColorFg)
	form.SetLabelColor(ColorHighlight)
	form.SetButtonBackgroundColor(ColorBar)
	form.SetButtonTextColor(ColorTitle)
	form.SetBorder(true)
	form.SetBorderColor(ColorBorder)
	form.SetTitle(" textchat Login ")
	form.SetTitleColor(ColorTitle)

	statusText := tview.NewTextView()
	statusText.SetBackgroundColor(ColorBg)
	statusText.SetTextColor(tcell.ColorRed)
	statusText.SetTextAlign(tview.AlignCenter)
	statusText.SetDynamicColors(true)

	accountField := tview.NewInputField()
	accountField.SetLabel("Account: ")
	accountField.SetFieldWidth(30)
	accountField.SetBackgroundColor(ColorBg)

	secretField := tview.NewInputField()
	secretField.SetLabel("Secret: ")
	secretField.SetFieldWidth(30)
	secretField.SetMaskCharacter('*')
	secretField.SetBackgroundColor(ColorBg)

	form.AddFormItem(accountField)
	form.AddFormItem(secretField)

	form.AddButton("Login", func() {
		account := accountField.GetText()
		secret := secretField.GetText()
		if account == "" || secret == "" {
			statusText.SetText("[red]Please enter account and secret[-]")
			return
		}
		statusText.SetText("Connecting...")
		a.connect(account, secret, func(err error) {
			if err != nil {
				statusText.SetText(tview.Escape(err.Error()))
				return
			}
			a.showMainScreen()
		})
	})

	form.AddButton("Quit", func() {
		a.app.Stop()
	})

	formFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(form, 0, 1, true).
		AddItem(statusText, 1, 0, false)

	width := 54
	height := 10

	modal := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			AddItem(nil, 0, 1, false).
			AddItem(formFlex, width, 0, true).
			AddItem(nil, 0, 1, false), height, 0, true).
		AddItem(nil, 0, 1, false)

	a.pages.AddPage("auth", modal, true, true)
	a.app.SetFocus(form)
}

// connect dials the server with a fresh client and logs in. done runs on the
// UI goroutine with nil once LOGIN_OK arrives.
func (a *App) connect(account, secret string, done func(error)) {
	go func() {
		c := chatclient.New()
		result := make(chan error, 1)
		report := func(err error) {
			select {
			case result <- err:
			default:
			}
		}

		c.OnRecord(protocol.KindLoginOK, func(protocol.Record) { report(nil) })
		c.OnRecord(protocol.KindLoginFail, func(rec protocol.Record) { report(errors.New(rec.Content)) })
		c.OnRecord(chatclient.KindDisconnected, func(rec protocol.Record) { report(errors.New(rec.Content)) })

		a.mu.Lock()
		prev := a.client
		a.client = c
		a.mu.Unlock()
		if prev != nil {
			prev.Disconnect()
		}
		a.setupHandlers(c)

		if err := c.Connect(a.serverAddr); err != nil {
			a.dropClient(c)
			a.app.QueueUpdateDraw(func() { done(err) })
			return
		}
		if err := c.Login(account, secret); err != nil {
			report(err)
		}

		var err error
		select {
		case err = <-result:
		case <-time.After(loginTimeout):
			err = errLoginTimeout
		}

		if err != nil {
			c.Disconnect()
			a.dropClient(c)
		} else {
			a.mu.Lock()
			a.currentUser = account
			a.currentSecret = secret
			a.kickReason = ""
			a.mu.Unlock()
		}
		a.app.QueueUpdateDraw(func() { done(err) })
	}()
}

// dropClient forgets c unless a newer client already replaced it.
func (a *App) dropClient(c *chatclient.Client) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == c {
		a.client = nil
	}
}
