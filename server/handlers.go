package server

import (
	"errors"
	"textchat/models"
	"textchat/protocol"
	"time"

	"github.com/bradenaw/juniper/xslices"
	"github.com/sirupsen/logrus"
)

// handleRecord is the per-connection state machine. Before login only LOGIN
// is served; afterwards LOGIN and unknown kinds are dropped without a reply,
// and nothing is served once the registry binds the account elsewhere.
func (s *Server) handleRecord(sess *Session, rec protocol.Record) {
	req, err := protocol.ParseRequest(rec)

	if sess.state != stateAuthenticated {
		if login, ok := req.(protocol.Login); ok && sess.state == stateUnauthenticated {
			s.handleLogin(sess, login)
		}
		return
	}

	// an evicted session keeps its state until its connection closes
	if !s.registry.Owns(sess.Account, sess) {
		return
	}

	if errors.Is(err, protocol.ErrInvalidRemark) {
		s.reply(sess, protocol.KindFriendOpFail, "remark must be formatted as account|remark")
		return
	}
	if err != nil {
		return
	}

	switch r := req.(type) {
	case protocol.Chat:
		s.handleChat(sess, r)
	case protocol.FriendList:
		s.sendFriendList(sess)
	case protocol.FriendAdd:
		s.handleFriendAdd(sess, r)
	case protocol.FriendRemark:
		s.handleFriendRemark(sess, r)
	case protocol.FriendDelete:
		s.handleFriendDelete(sess, r)
	case protocol.StatusQuery:
		s.sendStatus(sess)
	case protocol.HistoryList:
		s.handleHistoryList(sess)
	case protocol.HistoryRead:
		s.handleHistoryRead(sess, r)
	case protocol.HistoryDelete:
		s.handleHistoryDelete(sess, r)
	}
}

func (s *Server) reply(sess *Session, kind, content string) {
	s.push(sess, protocol.New(kind, protocol.ServerName, sess.Account, content))
}

func (s *Server) push(sess *Session, rec protocol.Record) {
	if err := sess.Send(rec); err != nil {
		logrus.WithFields(logrus.Fields{
			"session": sess.ID,
			"kind":    rec.Kind,
		}).WithError(err).Debug("send failed")
	}
}

func (s *Server) logFor(sess *Session) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"session": sess.ID, "account": sess.Account})
}

func (s *Server) handleLogin(sess *Session, req protocol.Login) {
	if !sess.logins.Allow() {
		s.push(sess, protocol.New(protocol.KindLoginFail, protocol.ServerName, req.Account, "too many login attempts"))
		return
	}

	valid, err := s.creds.Validate(req.Account, req.Secret)
	if err != nil {
		logrus.WithField("session", sess.ID).WithError(err).Error("login lookup failed")
		s.push(sess, protocol.New(protocol.KindLoginFail, protocol.ServerName, req.Account, "internal error"))
		return
	}
	if !valid {
		logrus.WithFields(logrus.Fields{"session": sess.ID, "account": req.Account}).Info("login rejected")
		s.push(sess, protocol.New(protocol.KindLoginFail, protocol.ServerName, req.Account, "invalid account or secret"))
		return
	}

	sess.Account = req.Account
	sess.state = stateAuthenticated

	if prev := s.registry.Register(sess.Account, sess); prev != nil {
		s.logFor(sess).WithField("evicted", prev.ID).Info("superseding previous session")
		s.push(prev, protocol.New(protocol.KindKick, protocol.ServerName, sess.Account, "account logged in elsewhere"))
		prev.Close()
	}
	s.logFor(sess).Info("login ok")

	s.reply(sess, protocol.KindLoginOK, "login ok")
	s.sendFriendList(sess)
	s.sendStatus(sess)
}

// handleChat stores the message, then relays it if the recipient is online.
// The transcript write does not depend on delivery.
func (s *Server) handleChat(sess *Session, req protocol.Chat) {
	rec := req.Record
	if rec.To == "" {
		return
	}
	rec.From = sess.Account
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}

	saved := true
	if err := s.history.Append(rec.From, rec.To, rec.Content, time.UnixMilli(rec.Timestamp)); err != nil {
		s.logFor(sess).WithField("to", rec.To).WithError(err).Error("history append failed")
		saved = false
	}

	if peer, ok := s.registry.Get(rec.To); ok {
		s.push(peer, rec)
		return
	}
	if saved {
		s.reply(sess, protocol.KindChatOfflineSaved, "recipient is offline, message saved to history")
	}
}

func (s *Server) friendList(account string) ([]models.Friend, bool) {
	friends, err := s.friends.List(account)
	if err != nil {
		logrus.WithField("account", account).WithError(err).Error("friend list failed")
		return nil, false
	}
	return friends, true
}

func (s *Server) sendFriendList(sess *Session) {
	friends, ok := s.friendList(sess.Account)
	if !ok {
		return
	}
	items := xslices.Map(friends, models.Friend.String)
	s.push(sess, protocol.NewList(protocol.KindFriendListRes, sess.Account, items))
}

// sendStatus reports ONLINE/OFFLINE for every friend, from registry
// membership only.
func (s *Server) sendStatus(sess *Session) {
	friends, ok := s.friendList(sess.Account)
	if !ok {
		return
	}
	pairs := xslices.Map(friends, func(f models.Friend) string {
		return models.StatusPair(f.Account, models.StatusOf(s.registry.IsOnline(f.Account)))
	})
	s.push(sess, protocol.NewList(protocol.KindStatusRes, sess.Account, pairs))
}

func (s *Server) handleFriendAdd(sess *Session, req protocol.FriendAdd) {
	exists, err := s.creds.Exists(req.Account)
	if err != nil {
		s.logFor(sess).WithError(err).Error("friend lookup failed")
		s.reply(sess, protocol.KindFriendOpFail, "internal error")
		return
	}
	if !exists {
		s.reply(sess, protocol.KindFriendOpFail, "account does not exist")
		return
	}

	if err := s.friends.Add(sess.Account, req.Account); err != nil {
		s.logFor(sess).WithField("friend", req.Account).WithError(err).Error("friend add failed")
		s.reply(sess, protocol.KindFriendOpFail, "internal error")
		return
	}

	s.reply(sess, protocol.KindFriendOpOK, "friend added")
	s.sendFriendList(sess)
	s.sendStatus(sess)

	if peer, ok := s.registry.Get(req.Account); ok {
		s.sendFriendList(peer)
		s.sendStatus(peer)
		s.push(peer, protocol.New(protocol.KindSysNotice, protocol.ServerName, req.Account,
			sess.Account+" added you as a friend"))
	}
}

func (s *Server) handleFriendRemark(sess *Session, req protocol.FriendRemark) {
	if err := s.friends.SetRemark(sess.Account, req.Account, req.Remark); err != nil {
		s.logFor(sess).WithField("friend", req.Account).WithError(err).Error("friend remark failed")
		s.reply(sess, protocol.KindFriendOpFail, "internal error")
		return
	}
	s.reply(sess, protocol.KindFriendOpOK, "remark updated")
	s.sendFriendList(sess)
}

// handleFriendDelete removes only the requester's edge; the peer keeps its
// own edge back to the requester.
func (s *Server) handleFriendDelete(sess *Session, req protocol.FriendDelete) {
	if err := s.friends.Delete(sess.Account, req.Account); err != nil {
		s.logFor(sess).WithField("friend", req.Account).WithError(err).Error("friend delete failed")
		s.reply(sess, protocol.KindFriendOpFail, "internal error")
		return
	}
	s.reply(sess, protocol.KindFriendOpOK, "friend deleted")
	s.sendFriendList(sess)
	s.sendStatus(sess)
}

func (s *Server) handleHistoryList(sess *Session) {
	names, err := s.history.List(sess.Account)
	if err != nil {
		s.logFor(sess).WithError(err).Error("history list failed")
		return
	}
	s.push(sess, protocol.NewList(protocol.KindHisListRes, sess.Account, names))
}

func (s *Server) handleHistoryRead(sess *Session, req protocol.HistoryRead) {
	text, err := s.history.Read(sess.Account, req.Peer)
	if err != nil {
		s.logFor(sess).WithField("peer", req.Peer).WithError(err).Error("history read failed")
		return
	}
	s.reply(sess, protocol.KindHisReadRes, text)
}

func (s *Server) handleHistoryDelete(sess *Session, req protocol.HistoryDelete) {
	removed, err := s.history.Delete(sess.Account, req.Peer)
	if err != nil {
		s.logFor(sess).WithField("peer", req.Peer).WithError(err).Error("history delete failed")
	}
	if removed {
		s.reply(sess, protocol.KindHisDelOK, "history deleted")
		return
	}
	s.reply(sess, protocol.KindHisDelFail, "no history to delete")
}
