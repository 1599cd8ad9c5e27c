package server

import (
	"io"
	"net"
	"sync"
	"textchat/protocol"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type sessionState int

const (
	stateUnauthenticated sessionState = iota
	stateAuthenticated
	stateClosed
)

// Session is one accepted connection. Account and state are owned by the
// connection's goroutine; Send and Close are safe from any goroutine.
type Session struct {
	ID      string
	Account string
	Remote  string

	conn         net.Conn
	writeTimeout time.Duration
	writeMu      sync.Mutex
	closeOnce    sync.Once
	state        sessionState
	logins       *rate.Limiter
}

func newSession(conn net.Conn, config *ServerConfig) *Session {
	limit := rate.Inf
	if config.LoginRate > 0 {
		limit = rate.Limit(config.LoginRate)
	}
	burst := config.LoginBurst
	if burst <= 0 {
		burst = 1
	}

	return &Session{
		ID:           uuid.NewString(),
		Remote:       conn.RemoteAddr().String(),
		conn:         conn,
		writeTimeout: config.WriteTimeout,
		state:        stateUnauthenticated,
		logins:       rate.NewLimiter(limit, burst),
	}
}

// Send writes rec as one line. Writes from concurrent goroutines never
// interleave. A failed write closes the connection so the owning goroutine
// observes the failure on its next read and tears the session down.
func (s *Session) Send(rec protocol.Record) error {
	line := protocol.Encode(rec) + "\n"

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if _, err := io.WriteString(s.conn, line); err != nil {
		s.Close()
		return err
	}
	return nil
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.conn.Close()
	})
}
