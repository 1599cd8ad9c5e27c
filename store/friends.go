package store

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"textchat/models"

	"github.com/bradenaw/juniper/xslices"
)

// FriendStore keeps every owner's ordered friend list. Add is symmetric;
// SetRemark and Delete only touch the owner's own list and treat a missing
// edge as a no-op.
type FriendStore interface {
	List(owner string) ([]models.Friend, error)
	Add(owner, friend string) error
	SetRemark(owner, friend, remark string) error
	Delete(owner, friend string) error
}

// FileFriendStore persists the graph as one line per owner:
//
//	alice:bob|roommate,cathy
//
// Every operation reads the whole file, mutates it in memory and replaces the
// file atomically, all under one mutex.
type FileFriendStore struct {
	path     string
	accounts []string
	mu       sync.Mutex
}

// NewFileFriendStore opens (creating if missing) the friends file at path.
// Every valid account in accounts is guaranteed an entry, even an empty one.
func NewFileFriendStore(path string, accounts []string) (*FileFriendStore, error) {
	s := &FileFriendStore{
		path: path,
		accounts: xslices.Filter(accounts, func(account string) bool {
			return models.ValidateAccount(account) == nil
		}),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("friends dir: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.readAll()
	if err != nil {
		return nil, err
	}
	if err := s.writeAll(table); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *FileFriendStore) List(owner string) ([]models.Friend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.readAll()
	if err != nil {
		return nil, err
	}
	return append([]models.Friend(nil), table.edges[owner]...), nil
}

func (s *FileFriendStore) Add(owner, friend string) error {
	if err := validatePair(owner, friend); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.readAll()
	if err != nil {
		return err
	}
	table.add(owner, friend)
	table.add(friend, owner)
	return s.writeAll(table)
}

func (s *FileFriendStore) SetRemark(owner, friend, remark string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.readAll()
	if err != nil {
		return err
	}
	remark = SanitizeRemark(remark)
	table.ensure(owner)
	list := table.edges[owner]
	for i := range list {
		if list[i].Account == friend {
			list[i].Remark = remark
		}
	}
	return s.writeAll(table)
}

func (s *FileFriendStore) Delete(owner, friend string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.readAll()
	if err != nil {
		return err
	}
	table.ensure(owner)
	table.edges[owner] = xslices.Filter(table.edges[owner], func(f models.Friend) bool {
		return f.Account != friend
	})
	return s.writeAll(table)
}

// validatePair keeps names that would corrupt a friends line out of the graph.
func validatePair(owner, friend string) error {
	for _, account := range []string{owner, friend} {
		if err := models.ValidateAccount(account); err != nil {
			return fmt.Errorf("friend %q: %w", account, err)
		}
	}
	return nil
}

// friendTable keeps owners in file order so rewrites are stable.
type friendTable struct {
	owners []string
	edges  map[string][]models.Friend
}

func (t *friendTable) ensure(owner string) {
	if _, ok := t.edges[owner]; !ok {
		t.owners = append(t.owners, owner)
		t.edges[owner] = []models.Friend{}
	}
}

func (t *friendTable) add(owner, friend string) {
	t.ensure(owner)
	exists := xslices.Any(t.edges[owner], func(f models.Friend) bool {
		return f.Account == friend
	})
	if !exists {
		t.edges[owner] = append(t.edges[owner], models.Friend{Account: friend})
	}
}

func (s *FileFriendStore) readAll() (*friendTable, error) {
	table := &friendTable{edges: make(map[string][]models.Friend)}

	f, err := os.Open(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("open friends: %w", err)
	}
	if err == nil {
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			owner, rest, ok := strings.Cut(line, ":")
			if !ok || owner == "" {
				continue
			}

			table.ensure(owner)
			for _, item := range strings.Split(rest, ",") {
				if strings.TrimSpace(item) == "" {
					continue
				}
				table.edges[owner] = append(table.edges[owner], models.ParseFriend(item))
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read friends: %w", err)
		}
	}

	for _, account := range s.accounts {
		table.ensure(account)
	}

	return table, nil
}

func (s *FileFriendStore) writeAll(table *friendTable) error {
	var b strings.Builder
	for _, owner := range table.owners {
		b.WriteString(owner)
		b.WriteByte(':')
		items := xslices.Map(table.edges[owner], models.Friend.String)
		b.WriteString(strings.Join(items, ","))
		b.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write friends: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		return fmt.Errorf("write friends: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write friends: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace friends: %w", err)
	}
	return nil
}

// SanitizeRemark trims remark and replaces the characters the friends file
// and the FRIEND_LIST_RES payload use as separators.
func SanitizeRemark(remark string) string {
	remark = strings.Map(func(r rune) rune {
		switch r {
		case ',', ';', '\n', '\r':
			return ' '
		}
		return r
	}, remark)
	return strings.TrimSpace(remark)
}
