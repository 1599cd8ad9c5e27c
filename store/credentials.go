// Package store holds the durable state behind the chat protocol: the
// credential lookup, the friend graph and the conversation transcripts.
package store

import (
	"fmt"
	"textchat/db"
)

// Credentials is the account table the server authenticates against.
type Credentials interface {
	Validate(account, secret string) (bool, error)
	Exists(account string) (bool, error)
	Accounts() ([]string, error)
}

// SQLCredentials serves Credentials from the users table.
type SQLCredentials struct {
	db *db.DB
}

func NewSQLCredentials(database *db.DB) *SQLCredentials {
	return &SQLCredentials{db: database}
}

func (c *SQLCredentials) Validate(account, secret string) (bool, error) {
	if account == "" || secret == "" {
		return false, nil
	}
	ok, err := c.db.AuthenticateUser(account, secret)
	if err != nil {
		return false, fmt.Errorf("validate %s: %w", account, err)
	}
	return ok, nil
}

func (c *SQLCredentials) Exists(account string) (bool, error) {
	if account == "" {
		return false, nil
	}
	ok, err := c.db.UserExists(account)
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", account, err)
	}
	return ok, nil
}

func (c *SQLCredentials) Accounts() ([]string, error) {
	accounts, err := c.db.Logins()
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}
