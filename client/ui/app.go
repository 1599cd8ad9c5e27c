// Package ui is the terminal front end for a textchat server.
package ui

import (
	"sync"

	"textchat/client/chatclient"

	"github.com/rivo/tview"
)

// App is the main application
type App struct {
	app        *tview.Application
	pages      *tview.Pages
	serverAddr string

	mu            sync.RWMutex
	client        *chatclient.Client
	currentUser   string
	currentSecret string
	roster        *roster
	currentChat   string
	historyQueue  []string // peers of HIS_READ requests in flight
	kickReason    string
	pendingOp     chan friendOpResult

	friendsList    *tview.List
	chatView       *tview.TextView
	messageInput   *tview.InputField
	statusBar      *tview.TextView
	connectionView *tview.TextView
}

// NewApp creates a new application instance
func NewApp(serverAddr string) *App {
	return &App{
		serverAddr: serverAddr,
		roster:     newRoster(),
	}
}

// Run starts the application and blocks until it is stopped.
func (a *App) Run() error {
	a.app = tview.NewApplication()
	a.pages = tview.NewPages()

	background := tview.NewBox()
	background.SetBackgroundColor(ColorShade)
	a.pages.AddPage("background", background, true, true)

	a.showAuthDialog()

	return a.app.SetRoot(a.pages, true).EnableMouse(false).Run()
}

// quit exits the application
func (a *App) quit() {
	if c := a.currentClient(); c != nil {
		c.Disconnect()
	}
	a.app.Stop()
}

func (a *App) currentClient() *chatclient.Client {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.client
}

func (a *App) connected() bool {
	c := a.currentClient()
	return c != nil && c.IsConnected()
}

// isCurrent reports whether records from c still belong on screen. A client
// replaced by a reconnect keeps delivering until its read loop exits.
func (a *App) isCurrent(c *chatclient.Client) bool {
	return a.currentClient() == c
}
