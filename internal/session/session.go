// Package session persists the active user across process restarts.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/analyst-go/internal/storage"
)

// Key is the storage key holding the active session.
const Key = "user"

// User is the session-safe projection of a credential record.
// It never carries a password.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

// Store reads and writes the active session. Entries never expire; the
// last writer wins when several processes share the same storage.
type Store struct {
	kv     storage.Store
	logger *slog.Logger
}

// NewStore wraps kv. A nil logger falls back to slog.Default().
func NewStore(kv storage.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kv, logger: logger}
}

// Load returns the persisted session user. A missing, unreadable or
// malformed entry is reported as absent.
func (s *Store) Load(ctx context.Context) (*User, bool) {
	data, err := s.kv.Get(ctx, Key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("session read failed", "error", err)
		}
		return nil, false
	}

	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		s.logger.Warn("discarding malformed session entry", "error", err)
		return nil, false
	}
	if u.ID == "" || u.Email == "" {
		s.logger.Warn("discarding incomplete session entry")
		return nil, false
	}
	return &u, true
}

// Save overwrites the persisted session.
func (s *Store) Save(ctx context.Context, u User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.kv.Set(ctx, Key, data); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear removes the persisted session.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, Key); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
