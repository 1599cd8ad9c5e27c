package store

import (
	"errors"
	"fmt"
	"textchat/db"
	"textchat/models"
)

// SQLFriendStore keeps the friend graph in the contacts table.
type SQLFriendStore struct {
	db *db.DB
}

func NewSQLFriendStore(database *db.DB) *SQLFriendStore {
	return &SQLFriendStore{db: database}
}

func (s *SQLFriendStore) List(owner string) ([]models.Friend, error) {
	friends, err := s.db.GetContacts(owner)
	if err != nil {
		return nil, fmt.Errorf("list friends of %s: %w", owner, err)
	}
	return friends, nil
}

func (s *SQLFriendStore) Add(owner, friend string) error {
	if err := validatePair(owner, friend); err != nil {
		return err
	}
	if err := s.db.AddContactPair(owner, friend); err != nil {
		return fmt.Errorf("add friend %s->%s: %w", owner, friend, err)
	}
	return nil
}

func (s *SQLFriendStore) SetRemark(owner, friend, remark string) error {
	err := s.db.UpdateContactRemark(owner, friend, SanitizeRemark(remark))
	if err != nil && !errors.Is(err, db.ErrNoRows) {
		return fmt.Errorf("set remark %s->%s: %w", owner, friend, err)
	}
	return nil
}

func (s *SQLFriendStore) Delete(owner, friend string) error {
	err := s.db.DeleteContact(owner, friend)
	if err != nil && !errors.Is(err, db.ErrNoRows) {
		return fmt.Errorf("delete friend %s->%s: %w", owner, friend, err)
	}
	return nil
}
