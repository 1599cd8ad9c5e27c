package server

import (
	"bufio"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"textchat/db"
	"textchat/models"
	"textchat/protocol"
	"textchat/store"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Second

// setupTestServer creates a server over fresh storage with the accounts
// alice, bob, cathy and david, all with secret "123".
func setupTestServer(t *testing.T, config *ServerConfig) *Server {
	t.Helper()
	dir := t.TempDir()

	database, err := db.New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	seed := []models.Credential{
		{Account: "alice", Secret: "123"},
		{Account: "bob", Secret: "123"},
		{Account: "cathy", Secret: "123"},
		{Account: "david", Secret: "123"},
	}
	require.NoError(t, database.SeedUsers(seed))

	creds := store.NewSQLCredentials(database)
	accounts, err := creds.Accounts()
	require.NoError(t, err)

	friends, err := store.NewFileFriendStore(filepath.Join(dir, "friends_db.txt"), accounts)
	require.NoError(t, err)

	history, err := store.NewHistoryStore(filepath.Join(dir, "history"))
	require.NoError(t, err)

	if config == nil {
		config = &ServerConfig{WriteTimeout: testTimeout}
	}
	return New(creds, friends, history, config)
}

// testClient is the client end of a net.Pipe served by handleConnection.
// Incoming records are pumped into a channel so server pushes never block.
type testClient struct {
	t       *testing.T
	conn    net.Conn
	records chan protocol.Record
}

func connect(t *testing.T, srv *Server) *testClient {
	t.Helper()

	serverConn, clientConn := net.Pipe()
	go srv.handleConnection(serverConn)

	c := &testClient{
		t:       t,
		conn:    clientConn,
		records: make(chan protocol.Record, 256),
	}
	go func() {
		defer close(c.records)
		reader := bufio.NewReader(clientConn)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			c.records <- protocol.Decode(line)
		}
	}()
	t.Cleanup(func() { clientConn.Close() })

	return c
}

func (c *testClient) send(rec protocol.Record) {
	c.t.Helper()
	c.conn.SetWriteDeadline(time.Now().Add(testTimeout))
	_, err := c.conn.Write([]byte(protocol.Encode(rec) + "\n"))
	require.NoError(c.t, err)
}

func (c *testClient) request(kind, content string) {
	c.t.Helper()
	c.send(protocol.Record{Kind: kind, Content: content})
}

// next returns the next record, whatever its kind.
func (c *testClient) next() protocol.Record {
	c.t.Helper()
	select {
	case rec, ok := <-c.records:
		if !ok {
			c.t.Fatal("connection closed while waiting for a record")
		}
		return rec
	case <-time.After(testTimeout):
		c.t.Fatal("timed out waiting for a record")
	}
	return protocol.Record{}
}

// expect skips records until one of kind arrives.
func (c *testClient) expect(kind string) protocol.Record {
	c.t.Helper()
	for {
		rec := c.next()
		if rec.Kind == kind {
			return rec
		}
	}
}

func (c *testClient) expectClosed() {
	c.t.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case _, ok := <-c.records:
			if !ok {
				return
			}
		case <-deadline:
			c.t.Fatal("connection was not closed")
		}
	}
}

func (c *testClient) login(account string) {
	c.t.Helper()
	c.send(protocol.Record{Kind: protocol.KindLogin, From: account, Content: "123"})
	c.expect(protocol.KindLoginOK)
	c.expect(protocol.KindFriendListRes)
	c.expect(protocol.KindStatusRes)
}

func TestLogin(t *testing.T) {
	srv := setupTestServer(t, nil)
	alice := connect(t, srv)

	alice.send(protocol.Record{Kind: protocol.KindLogin, From: "alice", Content: "123"})

	push := alice.next()
	assert.Equal(t, protocol.KindStatusPush, push.Kind)
	assert.Equal(t, "alice=ONLINE", push.Data)

	ok := alice.next()
	assert.Equal(t, protocol.KindLoginOK, ok.Kind)
	assert.Equal(t, "alice", ok.To)

	list := alice.next()
	assert.Equal(t, protocol.KindFriendListRes, list.Kind)
	assert.Empty(t, list.Data)

	status := alice.next()
	assert.Equal(t, protocol.KindStatusRes, status.Kind)
	assert.Empty(t, status.Data)

	assert.True(t, srv.registry.IsOnline("alice"))
}

func TestLoginFailureKeepsConnection(t *testing.T) {
	srv := setupTestServer(t, nil)
	alice := connect(t, srv)

	alice.send(protocol.Record{Kind: protocol.KindLogin, From: "alice", Content: "wrong"})
	assert.Equal(t, protocol.KindLoginFail, alice.next().Kind)

	alice.send(protocol.Record{Kind: protocol.KindLogin, From: "mallory", Content: "123"})
	assert.Equal(t, protocol.KindLoginFail, alice.next().Kind)
	assert.Equal(t, 0, srv.registry.Len())

	alice.login("alice")
	assert.True(t, srv.registry.IsOnline("alice"))
}

func TestRequestsIgnoredBeforeLogin(t *testing.T) {
	srv := setupTestServer(t, nil)
	c := connect(t, srv)

	c.request(protocol.KindFriendList, "")
	c.send(protocol.Record{Kind: protocol.KindChat, From: "alice", To: "bob", Content: "sneaky"})
	c.request(protocol.KindFriendAdd, "bob")
	c.request(protocol.KindHisList, "")
	c.send(protocol.Record{Kind: "NOT_A_KIND"})
	c.conn.Write([]byte("garbage line\n"))

	c.send(protocol.Record{Kind: protocol.KindLogin, From: "alice", Content: "bad"})
	assert.Equal(t, protocol.KindLoginFail, c.next().Kind, "earlier requests must not be answered")

	names, err := srv.history.List("alice")
	require.NoError(t, err)
	assert.Empty(t, names)

	friends, err := srv.friends.List("alice")
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestUnknownKindIgnoredAfterLogin(t *testing.T) {
	srv := setupTestServer(t, nil)
	alice := connect(t, srv)
	alice.login("alice")

	alice.send(protocol.Record{Kind: "PING"})
	alice.send(protocol.Record{Kind: protocol.KindLogin, From: "bob", Content: "123"})
	alice.request(protocol.KindHisList, "")

	assert.Equal(t, protocol.KindHisListRes, alice.next().Kind)
	assert.False(t, srv.registry.IsOnline("bob"))
}

func TestDuplicateLoginKicksPreviousSession(t *testing.T) {
	srv := setupTestServer(t, nil)

	first := connect(t, srv)
	first.login("alice")

	second := connect(t, srv)
	second.login("alice")

	kick := first.expect(protocol.KindKick)
	assert.Equal(t, "alice", kick.To)
	first.expectClosed()

	// wait for the evicted connection to be torn down
	require.Eventually(t, func() bool {
		return srv.Stats() == "connections=1,users=alice"
	}, testTimeout, 10*time.Millisecond)

	assert.Equal(t, 1, srv.registry.Len())
	assert.True(t, srv.registry.IsOnline("alice"))

	// the surviving session still works
	second.request(protocol.KindHisList, "")
	second.expect(protocol.KindHisListRes)
}

func TestChatLiveDelivery(t *testing.T) {
	srv := setupTestServer(t, nil)
	alice := connect(t, srv)
	alice.login("alice")
	bob := connect(t, srv)
	bob.login("bob")

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local).UnixMilli()
	alice.send(protocol.Record{Kind: protocol.KindChat, From: "mallory", To: "bob", Content: "hello, bob", Timestamp: ts})

	msg := bob.expect(protocol.KindChat)
	assert.Equal(t, "alice", msg.From, "sender is the authenticated account")
	assert.Equal(t, "bob", msg.To)
	assert.Equal(t, "hello, bob", msg.Content)
	assert.Equal(t, ts, msg.Timestamp)

	text, err := srv.history.Read("bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, "[2024-03-01 12:00:00] alice -> bob: hello, bob\n", text)
}

func TestChatOfflineSaved(t *testing.T) {
	srv := setupTestServer(t, nil)
	alice := connect(t, srv)
	alice.login("alice")

	alice.send(protocol.Record{Kind: protocol.KindChat, From: "alice", To: "cathy", Content: "hi"})
	alice.expect(protocol.KindChatOfflineSaved)

	alice.request(protocol.KindHisRead, "cathy")
	res := alice.expect(protocol.KindHisReadRes)
	assert.Contains(t, res.Content, "alice -> cathy: hi")
	assert.Equal(t, 1, strings.Count(res.Content, "\n"))
}

func TestChatAppendsOnceEitherWay(t *testing.T) {
	srv := setupTestServer(t, nil)
	alice := connect(t, srv)
	alice.login("alice")

	alice.send(protocol.Record{Kind: protocol.KindChat, To: "bob", Content: "while offline"})
	alice.expect(protocol.KindChatOfflineSaved)

	bob := connect(t, srv)
	bob.login("bob")

	alice.send(protocol.Record{Kind: protocol.KindChat, To: "bob", Content: "while online"})
	bob.expect(protocol.KindChat)

	text, err := srv.history.Read("alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(text, "\n"))
	assert.Contains(t, text, "alice -> bob: while offline")
	assert.Contains(t, text, "alice -> bob: while online")

	// a chat without recipient is dropped
	alice.send(protocol.Record{Kind: protocol.KindChat, Content: "nowhere"})
	alice.request(protocol.KindHisList, "")
	list := alice.expect(protocol.KindHisListRes)
	assert.Equal(t, "alice__bob.txt", list.Data)
}

func TestFriendAdd(t *testing.T) {
	srv := setupTestServer(t, nil)
	alice := connect(t, srv)
	alice.login("alice")
	bob := connect(t, srv)
	bob.login("bob")

	alice.request(protocol.KindFriendAdd, "bob")

	assert.Equal(t, protocol.KindFriendOpOK, alice.expect(protocol.KindFriendOpOK).Kind)
	assert.Equal(t, "bob", alice.expect(protocol.KindFriendListRes).Data)
	assert.Equal(t, "bob=ONLINE", alice.expect(protocol.KindStatusRes).Data)

	assert.Equal(t, "alice", bob.expect(protocol.KindFriendListRes).Data)
	assert.Equal(t, "alice=ONLINE", bob.expect(protocol.KindStatusRes).Data)
	notice := bob.expect(protocol.KindSysNotice)
	assert.Contains(t, notice.Content, "alice")

	friends, err := srv.friends.List("bob")
	require.NoError(t, err)
	assert.Equal(t, []models.Friend{{Account: "alice"}}, friends)
}

func TestFriendAddUnknownAccount(t *testing.T) {
	srv := setupTestServer(t, nil)
	alice := connect(t, srv)
	alice.login("alice")

	alice.request(protocol.KindFriendAdd, "zed")
	assert.Equal(t, protocol.KindFriendOpFail, alice.next().Kind)

	friends, err := srv.friends.List("alice")
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestFriendRemark(t *testing.T) {
	srv := setupTestServer(t, nil)
	alice := connect(t, srv)
	alice.login("alice")

	alice.request(protocol.KindFriendAdd, "bob")
	alice.expect(protocol.KindFriendOpOK)
	assert.Equal(t, "bob", alice.expect(protocol.KindFriendListRes).Data)
	alice.expect(protocol.KindStatusRes)

	alice.request(protocol.KindFriendRemark, "bob|roommate")
	assert.Equal(t, protocol.KindFriendOpOK, alice.next().Kind)
	list := alice.next()
	assert.Equal(t, protocol.KindFriendListRes, list.Kind)
	assert.Equal(t, "bob|roommate", list.Data)

	friends, err := srv.friends.List("alice")
	require.NoError(t, err)
	assert.Equal(t, []models.Friend{{Account: "bob", Remark: "roommate"}}, friends)

	// a missing edge is not an error
	alice.request(protocol.KindFriendRemark, "david|nobody")
	assert.Equal(t, protocol.KindFriendOpOK, alice.next().Kind)
	assert.Equal(t, "bob|roommate", alice.next().Data)

	alice.request(protocol.KindFriendRemark, "bob")
	assert.Equal(t, protocol.KindFriendOpFail, alice.next().Kind)
}

func TestFriendDeleteIsOneDirected(t *testing.T) {
	srv := setupTestServer(t, nil)
	alice := connect(t, srv)
	alice.login("alice")

	alice.request(protocol.KindFriendAdd, "bob")
	alice.expect(protocol.KindStatusRes)

	alice.request(protocol.KindFriendDel, "bob")
	assert.Equal(t, protocol.KindFriendOpOK, alice.next().Kind)
	list := alice.next()
	assert.Equal(t, protocol.KindFriendListRes, list.Kind)
	assert.Empty(t, list.Data)
	assert.Equal(t, protocol.KindStatusRes, alice.next().Kind)

	friends, err := srv.friends.List("bob")
	require.NoError(t, err)
	assert.Equal(t, []models.Friend{{Account: "alice"}}, friends)

	// deleting again is still acknowledged
	alice.request(protocol.KindFriendDel, "bob")
	assert.Equal(t, protocol.KindFriendOpOK, alice.next().Kind)
}

func TestStatusQuery(t *testing.T) {
	srv := setupTestServer(t, nil)
	require.NoError(t, srv.friends.Add("alice", "bob"))
	require.NoError(t, srv.friends.Add("alice", "cathy"))

	bob := connect(t, srv)
	bob.login("bob")
	alice := connect(t, srv)
	alice.login("alice")

	alice.request(protocol.KindStatusQuery, "")
	status := alice.expect(protocol.KindStatusRes)
	assert.Equal(t, "bob=ONLINE;cathy=OFFLINE", status.Data)
}

func TestHistoryRequests(t *testing.T) {
	srv := setupTestServer(t, nil)
	now := time.Now()
	require.NoError(t, srv.history.Append("bob", "alice", "one", now))
	require.NoError(t, srv.history.Append("alice", "cathy", "two", now))
	require.NoError(t, srv.history.Append("bob", "david", "three", now))

	alice := connect(t, srv)
	alice.login("alice")

	alice.request(protocol.KindHisList, "")
	list := alice.expect(protocol.KindHisListRes)
	assert.Equal(t, []string{"alice__bob.txt", "alice__cathy.txt"}, protocol.SplitList(list.Data))

	alice.request(protocol.KindHisRead, "bob")
	assert.Contains(t, alice.expect(protocol.KindHisReadRes).Content, "bob -> alice: one")

	alice.request(protocol.KindHisDel, "bob")
	assert.Equal(t, protocol.KindHisDelOK, alice.next().Kind)

	alice.request(protocol.KindHisDel, "bob")
	assert.Equal(t, protocol.KindHisDelFail, alice.next().Kind)

	alice.request(protocol.KindHisRead, "bob")
	assert.Equal(t, store.NoHistory, alice.next().Content)

	alice.request(protocol.KindHisRead, "../../etc/passwd")
	assert.Equal(t, store.NoHistory, alice.next().Content)
}

func TestDisconnectBroadcastsOffline(t *testing.T) {
	srv := setupTestServer(t, nil)
	alice := connect(t, srv)
	alice.login("alice")
	bob := connect(t, srv)
	bob.login("bob")

	assert.Equal(t, "bob=ONLINE", alice.expect(protocol.KindStatusPush).Data)

	bob.conn.Close()

	assert.Equal(t, "bob=OFFLINE", alice.expect(protocol.KindStatusPush).Data)
	assert.False(t, srv.registry.IsOnline("bob"))
}

func TestLoginThrottling(t *testing.T) {
	srv := setupTestServer(t, &ServerConfig{WriteTimeout: testTimeout, LoginRate: 0.001, LoginBurst: 1})
	c := connect(t, srv)

	c.send(protocol.Record{Kind: protocol.KindLogin, From: "alice", Content: "bad"})
	assert.Equal(t, "invalid account or secret", c.next().Content)

	c.send(protocol.Record{Kind: protocol.KindLogin, From: "alice", Content: "123"})
	fail := c.next()
	assert.Equal(t, protocol.KindLoginFail, fail.Kind)
	assert.Equal(t, "too many login attempts", fail.Content)
	assert.False(t, srv.registry.IsOnline("alice"))
}

func TestShutdownKicksEveryone(t *testing.T) {
	srv := setupTestServer(t, nil)
	alice := connect(t, srv)
	alice.login("alice")
	anon := connect(t, srv)

	require.Eventually(t, func() bool {
		return srv.Stats() == "connections=2,users=alice"
	}, testTimeout, 10*time.Millisecond)

	go srv.Shutdown("maintenance")

	assert.Equal(t, "maintenance", alice.expect(protocol.KindKick).Content)
	alice.expectClosed()
	assert.Equal(t, "maintenance", anon.expect(protocol.KindKick).Content)
	anon.expectClosed()

	require.Eventually(t, func() bool {
		return srv.Stats() == "connections=0,users="
	}, testTimeout, 10*time.Millisecond)
}

func TestServeOverTCP(t *testing.T) {
	srv := setupTestServer(t, nil)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(listener) }()

	conn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(protocol.Encode(protocol.Record{Kind: protocol.KindLogin, From: "bob", Content: "123"}) + "\n"))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(testTimeout))
	reader := bufio.NewReader(conn)
	kinds := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		kinds = append(kinds, protocol.Decode(line).Kind)
	}
	assert.Equal(t, []string{
		protocol.KindStatusPush,
		protocol.KindLoginOK,
		protocol.KindFriendListRes,
		protocol.KindStatusRes,
	}, kinds)

	srv.Shutdown("test over")
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatal("Serve did not return after Shutdown")
	}
}
