package protocol

import (
	"errors"
	"strings"
)

var (
	ErrUnknownKind   = errors.New("unknown record kind")
	ErrInvalidRemark = errors.New("remark must be formatted as account|remark")
)

// Request is a decoded client request. The concrete type identifies the kind.
type Request interface {
	Kind() string
}

type Login struct {
	Account string
	Secret  string
}

// Chat keeps the received record so it can be relayed verbatim.
type Chat struct {
	Record Record
}

type FriendList struct{}

type FriendAdd struct {
	Account string
}

type FriendRemark struct {
	Account string
	Remark  string
}

type FriendDelete struct {
	Account string
}

type StatusQuery struct{}

type HistoryList struct{}

type HistoryRead struct {
	Peer string
}

type HistoryDelete struct {
	Peer string
}

func (Login) Kind() string         { return KindLogin }
func (Chat) Kind() string          { return KindChat }
func (FriendList) Kind() string    { return KindFriendList }
func (FriendAdd) Kind() string     { return KindFriendAdd }
func (FriendRemark) Kind() string  { return KindFriendRemark }
func (FriendDelete) Kind() string  { return KindFriendDel }
func (StatusQuery) Kind() string   { return KindStatusQuery }
func (HistoryList) Kind() string   { return KindHisList }
func (HistoryRead) Kind() string   { return KindHisRead }
func (HistoryDelete) Kind() string { return KindHisDel }

// ParseRequest maps a received record to its typed request. Records of a
// kind the server does not serve yield ErrUnknownKind; a FRIEND_REMARK whose
// content lacks the separator yields ErrInvalidRemark.
func ParseRequest(rec Record) (Request, error) {
	switch rec.Kind {
	case KindLogin:
		return Login{Account: rec.From, Secret: rec.Content}, nil
	case KindChat:
		return Chat{Record: rec}, nil
	case KindFriendList:
		return FriendList{}, nil
	case KindFriendAdd:
		return FriendAdd{Account: strings.TrimSpace(rec.Content)}, nil
	case KindFriendRemark:
		account, remark, ok := strings.Cut(rec.Content, "|")
		if !ok {
			return nil, ErrInvalidRemark
		}
		return FriendRemark{
			Account: strings.TrimSpace(account),
			Remark:  strings.TrimSpace(remark),
		}, nil
	case KindFriendDel:
		return FriendDelete{Account: strings.TrimSpace(rec.Content)}, nil
	case KindStatusQuery:
		return StatusQuery{}, nil
	case KindHisList:
		return HistoryList{}, nil
	case KindHisRead:
		return HistoryRead{Peer: strings.TrimSpace(rec.Content)}, nil
	case KindHisDel:
		return HistoryDelete{Peer: strings.TrimSpace(rec.Content)}, nil
	default:
		return nil, ErrUnknownKind
	}
}
