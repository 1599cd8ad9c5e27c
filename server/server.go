package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"textchat/protocol"
	"textchat/store"
	"time"

	"github.com/sirupsen/logrus"
)

type Server struct {
	creds    store.Credentials
	friends  store.FriendStore
	history  *store.HistoryStore
	registry *Registry
	config   *ServerConfig

	mu       sync.Mutex
	conns    map[*Session]struct{}
	listener net.Listener
	closing  bool
}

type ServerConfig struct {
	Port         int
	WriteTimeout time.Duration
	LoginRate    float64 // login attempts per second per connection, 0 = unlimited
	LoginBurst   int
}

func New(creds store.Credentials, friends store.FriendStore, history *store.HistoryStore, config *ServerConfig) *Server {
	return &Server{
		creds:    creds,
		friends:  friends,
		history:  history,
		registry: NewRegistry(),
		config:   config,
		conns:    make(map[*Session]struct{}),
	}
}

func (s *Server) Start() error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(s.config.Port))
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener until Shutdown is called.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		listener.Close()
		return nil
	}
	s.listener = listener
	s.mu.Unlock()
	defer listener.Close()

	logrus.Infof("textchat server listening on %s", listener.Addr())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.isClosing() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			logrus.WithError(err).Warn("error accepting connection")
			continue
		}

		go s.handleConnection(conn)
	}
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *Server) handleConnection(conn net.Conn) {
	sess := newSession(conn, s.config)
	log := logrus.WithFields(logrus.Fields{"remote": sess.Remote, "session": sess.ID})

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conns[sess] = struct{}{}
	s.mu.Unlock()

	log.Info("client connected")

	defer func() {
		sess.state = stateClosed
		if sess.Account != "" {
			s.registry.Unregister(sess.Account, sess)
		}
		sess.Close()

		s.mu.Lock()
		delete(s.conns, sess)
		s.mu.Unlock()

		if sess.Account != "" {
			log.WithField("account", sess.Account).Info("client disconnected")
		} else {
			log.Info("client disconnected")
		}
	}()

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')

		// a final line without newline is still a record
		if line = strings.TrimSpace(line); line != "" {
			rec := protocol.Decode(line)
			if rec.Kind == protocol.KindLogin {
				log.WithField("account", rec.From).Debug("received LOGIN")
			} else {
				log.WithField("kind", rec.Kind).Debugf("received %q", line)
			}
			s.handleRecord(sess, rec)
		}

		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				log.WithError(err).Warn("read failed")
			}
			return
		}
	}
}

// Shutdown stops accepting connections and kicks every connected client
// with reason.
func (s *Server) Shutdown(reason string) {
	s.mu.Lock()
	s.closing = true
	if s.listener != nil {
		s.listener.Close()
	}
	sessions := make([]*Session, 0, len(s.conns))
	for sess := range s.conns {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Send(protocol.New(protocol.KindKick, protocol.ServerName, "", reason))
		sess.Close()
	}
	logrus.WithField("reason", reason).Infof("shutdown: closed %d connections", len(sessions))
}

// Stats reports the open connections and the online accounts:
// connections=N,users=a;b
func (s *Server) Stats() string {
	s.mu.Lock()
	connections := len(s.conns)
	s.mu.Unlock()

	users := s.registry.Accounts()

	return "connections=" + strconv.Itoa(connections) + ",users=" + strings.Join(users, ";")
}
