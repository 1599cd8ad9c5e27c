package server

import (
	"sort"
	"sync"
	"textchat/models"
	"textchat/protocol"

	"github.com/sirupsen/logrus"
)

// Registry maps every logged-in account to its single live session.
// Mutations and the status broadcast they trigger happen under one lock, so
// every session observes ONLINE/OFFLINE pushes in registry order.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register binds account to sess and broadcasts ONLINE. A different session
// previously bound to account is returned; the caller must kick and close it.
func (r *Registry) Register(account string, sess *Session) (evicted *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.sessions[account]
	r.sessions[account] = sess
	r.broadcastLocked(account, models.Online)

	if prev != nil && prev != sess {
		return prev
	}
	return nil
}

// Unregister removes account only while it is still bound to sess, and
// broadcasts OFFLINE when it did.
func (r *Registry) Unregister(account string, sess *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.sessions[account]; !ok || cur != sess {
		return false
	}
	delete(r.sessions, account)
	r.broadcastLocked(account, models.Offline)
	return true
}

func (r *Registry) IsOnline(account string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[account]
	return ok
}

// Owns reports whether account is currently bound to sess.
func (r *Registry) Owns(account string, sess *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[account] == sess
}

func (r *Registry) Get(account string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[account]
	return sess, ok
}

// BroadcastStatus pushes "account=status" to every registered session.
func (r *Registry) BroadcastStatus(account string, status models.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(account, status)
}

func (r *Registry) broadcastLocked(account string, status models.Status) {
	push := protocol.New(protocol.KindStatusPush, protocol.ServerName, "", "")
	push.Data = models.StatusPair(account, status)

	for name, sess := range r.sessions {
		push.To = name
		if err := sess.Send(push); err != nil {
			logrus.WithFields(logrus.Fields{
				"account": name,
				"session": sess.ID,
			}).WithError(err).Debug("status push failed")
		}
	}
}

// Accounts returns the online accounts in sorted order.
func (r *Registry) Accounts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts := make([]string, 0, len(r.sessions))
	for account := range r.sessions {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	return accounts
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
