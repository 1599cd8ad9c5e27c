package models

import (
	"errors"
	"strings"
	"unicode"
)

// Friend is one directed edge of an owner's friend list.
type Friend struct {
	Account string
	Remark  string
}

// String renders the edge as "account|remark", or the bare account when the
// remark is empty.
func (f Friend) String() string {
	if f.Remark == "" {
		return f.Account
	}
	return f.Account + "|" + f.Remark
}

// ParseFriend is the inverse of Friend.String.
func ParseFriend(s string) Friend {
	account, remark, _ := strings.Cut(strings.TrimSpace(s), "|")
	return Friend{Account: strings.TrimSpace(account), Remark: strings.TrimSpace(remark)}
}

// Status is the presence of an account as derived from the session registry.
type Status string

const (
	Online  Status = "ONLINE"
	Offline Status = "OFFLINE"
)

// StatusOf maps registry membership to a Status.
func StatusOf(online bool) Status {
	if online {
		return Online
	}
	return Offline
}

// StatusPair renders "account=STATUS" as carried by STATUS_RES and STATUS_PUSH.
func StatusPair(account string, status Status) string {
	return account + "=" + string(status)
}

// ConversationKey identifies the transcript shared by two accounts. The pair
// is unordered: NewConversationKey(a, b) == NewConversationKey(b, a).
type ConversationKey string

const keySeparator = "__"

func NewConversationKey(a, b string) ConversationKey {
	if a <= b {
		return ConversationKey(a + keySeparator + b)
	}
	return ConversationKey(b + keySeparator + a)
}

// Members returns the two accounts of the key in sorted order.
func (k ConversationKey) Members() (string, string) {
	a, b, _ := strings.Cut(string(k), keySeparator)
	return a, b
}

// Has reports whether account is one of the two members.
func (k ConversationKey) Has(account string) bool {
	a, b := k.Members()
	return a == account || b == account
}

// ErrInvalidAccount marks an account name that cannot be stored.
var ErrInvalidAccount = errors.New("invalid account identifier")

// accountReserved holds the separators of the friends file (":", ",", "|"),
// the wire lists (";", "=") and file paths ("/", "\\", NUL).
const accountReserved = ":,|;=/\\\x00"

// ValidateAccount rejects names that would be ambiguous in a ConversationKey,
// a friends file line, a wire list or a file path.
func ValidateAccount(account string) error {
	switch {
	case account == "", account == ".", account == "..":
		return ErrInvalidAccount
	case strings.Contains(account, keySeparator):
		return ErrInvalidAccount
	case strings.ContainsAny(account, accountReserved):
		return ErrInvalidAccount
	case strings.ContainsFunc(account, unicode.IsSpace):
		return ErrInvalidAccount
	}
	return nil
}

// Credential is one entry of the account seed file.
type Credential struct {
	Account string `yaml:"account"`
	Secret  string `yaml:"secret"`
}
