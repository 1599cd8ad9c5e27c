// Package chatclient is a small client for the textchat line protocol.
package chatclient

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"textchat/protocol"
	"time"
)

// KindDisconnected is delivered locally to handlers when the connection
// ends. It never appears on the wire.
const KindDisconnected = "DISCONNECTED"

var ErrNotConnected = errors.New("not connected")

// Client holds one connection to a textchat server
type Client struct {
	conn      net.Conn
	reader    *bufio.Reader
	mu        sync.Mutex
	sendMu    sync.Mutex
	handlers  map[string][]func(protocol.Record)
	done      chan struct{}
	connected atomic.Bool
	account   atomic.Value // string
}

func New() *Client {
	return &Client{
		handlers: make(map[string][]func(protocol.Record)),
		done:     make(chan struct{}),
	}
}

// Connect dials addr and starts delivering incoming records to handlers.
// Handlers should be registered before Connect.
func (c *Client) Connect(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return err
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.connected.Store(true)

	go c.readLoop()
	return nil
}

// Disconnect closes the connection. Done is closed once the read loop exits.
func (c *Client) Disconnect() error {
	if !c.connected.Swap(false) {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Done is closed after the connection ends and KindDisconnected handlers ran.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Account is the account of the last successful login.
func (c *Client) Account() string {
	account, _ := c.account.Load().(string)
	return account
}

// readLoop delivers records in arrival order, one handler call at a time.
func (c *Client) readLoop() {
	defer close(c.done)

	for {
		line, err := c.reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			rec := protocol.Decode(line)
			if rec.Kind == protocol.KindLoginOK {
				c.account.Store(rec.To)
			}
			c.notifyHandlers(rec)
		}
		if err != nil {
			c.connected.Store(false)
			reason := "connection closed"
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				reason = err.Error()
			}
			c.notifyHandlers(protocol.Record{Kind: KindDisconnected, Content: reason})
			return
		}
	}
}

func (c *Client) notifyHandlers(rec protocol.Record) {
	c.mu.Lock()
	handlers := make([]func(protocol.Record), 0, len(c.handlers[rec.Kind])+len(c.handlers[""]))
	handlers = append(handlers, c.handlers[rec.Kind]...)
	handlers = append(handlers, c.handlers[""]...)
	c.mu.Unlock()

	for _, h := range handlers {
		h(rec)
	}
}

// OnRecord registers handler for kind. The empty kind matches every record.
func (c *Client) OnRecord(kind string, handler func(protocol.Record)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[kind] = append(c.handlers[kind], handler)
}

// Send writes rec as one line
func (c *Client) Send(rec protocol.Record) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	_, err := io.WriteString(c.conn, protocol.Encode(rec)+"\n")
	return err
}

func (c *Client) request(kind, content string) error {
	return c.Send(protocol.New(kind, c.Account(), protocol.ServerName, content))
}

// Login sends the credentials; the answer is LOGIN_OK or LOGIN_FAIL.
func (c *Client) Login(account, secret string) error {
	return c.Send(protocol.New(protocol.KindLogin, account, protocol.ServerName, secret))
}

func (c *Client) SendMessage(to, text string) error {
	return c.Send(protocol.New(protocol.KindChat, c.Account(), to, text))
}

func (c *Client) GetFriends() error {
	return c.request(protocol.KindFriendList, "")
}

func (c *Client) AddFriend(account string) error {
	return c.request(protocol.KindFriendAdd, account)
}

func (c *Client) SetRemark(account, remark string) error {
	return c.request(protocol.KindFriendRemark, account+"|"+remark)
}

func (c *Client) DeleteFriend(account string) error {
	return c.request(protocol.KindFriendDel, account)
}

func (c *Client) GetStatus() error {
	return c.request(protocol.KindStatusQuery, "")
}

func (c *Client) ListHistory() error {
	return c.request(protocol.KindHisList, "")
}

func (c *Client) ReadHistory(peer string) error {
	return c.request(protocol.KindHisRead, peer)
}

func (c *Client) DeleteHistory(peer string) error {
	return c.request(protocol.KindHisDel, peer)
}
