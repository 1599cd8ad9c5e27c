package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"textchat/models"
	"textchat/protocol"
	"time"
)

// NoHistory is what Read returns for a pair that never exchanged a message.
const NoHistory = protocol.NoHistory

const (
	historyExt        = ".txt"
	historyTimeLayout = "2006-01-02 15:04:05"
)

var ErrInvalidAccount = models.ErrInvalidAccount

// HistoryStore keeps one append-only transcript file per unordered pair of
// accounts, named after the pair's ConversationKey.
type HistoryStore struct {
	dir string
	mu  sync.Mutex
}

func NewHistoryStore(dir string) (*HistoryStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("history dir: %w", err)
	}
	return &HistoryStore{dir: dir}, nil
}

// FormatLine renders one transcript line, newline included.
func FormatLine(from, to, text string, ts time.Time) string {
	return fmt.Sprintf("[%s] %s -> %s: %s\n", ts.Format(historyTimeLayout), from, to, text)
}

func (h *HistoryStore) Append(from, to, text string, ts time.Time) error {
	path, err := h.pathOf(from, to)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("history open: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(from, to, text, ts)); err != nil {
		return fmt.Errorf("history write: %w", err)
	}
	return nil
}

// Read returns the whole transcript of a and b, or NoHistory.
func (h *HistoryStore) Read(a, b string) (string, error) {
	path, err := h.pathOf(a, b)
	if errors.Is(err, ErrInvalidAccount) {
		return NoHistory, nil
	}
	if err != nil {
		return "", err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NoHistory, nil
	}
	if err != nil {
		return "", fmt.Errorf("history read: %w", err)
	}
	return string(data), nil
}

// Delete removes the transcript of a and b and reports whether one existed.
func (h *HistoryStore) Delete(a, b string) (bool, error) {
	path, err := h.pathOf(a, b)
	if errors.Is(err, ErrInvalidAccount) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("history delete: %w", err)
	}
	return true, nil
}

// List returns the transcript file names account takes part in.
func (h *HistoryStore) List(account string) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := os.ReadDir(h.dir)
	if err != nil {
		return nil, fmt.Errorf("history list: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, historyExt) {
			continue
		}
		key := models.ConversationKey(strings.TrimSuffix(name, historyExt))
		if key.Has(account) {
			names = append(names, name)
		}
	}
	return names, nil
}

func (h *HistoryStore) pathOf(a, b string) (string, error) {
	if models.ValidateAccount(a) != nil || models.ValidateAccount(b) != nil {
		return "", ErrInvalidAccount
	}
	return filepath.Join(h.dir, string(models.NewConversationKey(a, b))+historyExt), nil
}
