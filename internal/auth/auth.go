// Package auth simulates sign-in against a local credential store.
//
// Credentials live in the same durable medium as the session, as plaintext
// records. There is no server-side verification; it mirrors what the web
// client does and must not be mistaken for real authentication.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/raphaelgruber/analyst-go/internal/session"
	"github.com/raphaelgruber/analyst-go/internal/storage"
)

// UsersKey is the storage key holding the array of credential records.
const UsersKey = "users"

// User is the identity held by an active session.
type User = session.User

// Credential is a stored credential record.
type Credential struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Avatar   string `json:"avatar,omitempty"`
}

// User projects the record onto its session-safe form.
func (c Credential) User() User {
	return User{ID: c.ID, Name: c.Name, Email: c.Email, Avatar: c.Avatar}
}

// Facade exposes login, signup and logout plus the current session.
// It is constructed once per process and mutated only through those three
// operations.
type Facade struct {
	mu       sync.RWMutex
	kv       storage.Store
	sessions *session.Store
	logger   *slog.Logger
	current  *User
}

// New builds the facade and hydrates the current user from the session
// store. A missing or corrupt session leaves the facade signed out.
func New(ctx context.Context, kv storage.Store, logger *slog.Logger) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Facade{
		kv:       kv,
		sessions: session.NewStore(kv, logger),
		logger:   logger,
	}
	if u, ok := f.sessions.Load(ctx); ok {
		f.current = u
		logger.Debug("session restored", "email", u.Email)
	}
	return f
}

// IsAuthenticated reports whether a user is signed in.
func (f *Facade) IsAuthenticated() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current != nil
}

// Current returns a copy of the signed-in user, or nil.
func (f *Facade) Current() *User {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current == nil {
		return nil
	}
	u := *f.current
	return &u
}

// Login signs in when a credential record matches both email and password
// exactly. It returns false without side effects otherwise.
func (f *Facade) Login(ctx context.Context, email, password string) bool {
	creds, err := f.credentials(ctx)
	if err != nil {
		f.logger.Error("read credential store", "error", err)
		return false
	}

	for _, c := range creds {
		if c.Email == email && subtle.ConstantTimeCompare([]byte(c.Password), []byte(password)) == 1 {
			return f.startSession(ctx, c.User())
		}
	}

	f.logger.Info("login rejected", "email", email)
	return false
}

// Signup registers a new credential record and signs in with it. It
// returns false if the email is already registered.
func (f *Facade) Signup(ctx context.Context, name, email, password string) bool {
	// A failed read must not be mistaken for an empty store, or the write
	// below would drop every existing account.
	creds, err := f.credentials(ctx)
	if err != nil {
		f.logger.Error("read credential store", "error", err)
		return false
	}

	for _, c := range creds {
		if c.Email == email {
			f.logger.Info("signup rejected, email taken", "email", email)
			return false
		}
	}

	rec := Credential{
		ID:       uuid.NewString(),
		Name:     name,
		Email:    email,
		Password: password,
		Avatar:   AvatarURL(name),
	}
	creds = append(creds, rec)

	data, err := json.Marshal(creds)
	if err != nil {
		f.logger.Error("encode credential store", "error", err)
		return false
	}
	if err := f.kv.Set(ctx, UsersKey, data); err != nil {
		f.logger.Error("write credential store", "error", err)
		return false
	}

	f.logger.Info("user registered", "email", email, "id", rec.ID)
	return f.startSession(ctx, rec.User())
}

// Logout ends the session. Calling it while signed out is a no-op.
func (f *Facade) Logout(ctx context.Context) {
	f.mu.Lock()
	f.current = nil
	f.mu.Unlock()

	if err := f.sessions.Clear(ctx); err != nil {
		f.logger.Warn("logout could not clear stored session", "error", err)
	}
}

// credentials returns the stored credential records. A missing or malformed
// entry reads as an empty list; any other storage failure is returned.
func (f *Facade) credentials(ctx context.Context) ([]Credential, error) {
	data, err := f.kv.Get(ctx, UsersKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", UsersKey, err)
	}

	var creds []Credential
	if err := json.Unmarshal(data, &creds); err != nil {
		f.logger.Warn("treating malformed credential store as empty", "error", err)
		return nil, nil
	}
	return creds, nil
}

func (f *Facade) startSession(ctx context.Context, u User) bool {
	if err := f.sessions.Save(ctx, u); err != nil {
		f.logger.Error("persist session", "error", err)
		return false
	}

	f.mu.Lock()
	f.current = &u
	f.mu.Unlock()

	f.logger.Info("signed in", "email", u.Email)
	return true
}

// AvatarURL derives a generated avatar image location from a display name.
func AvatarURL(name string) string {
	return fmt.Sprintf("https://ui-avatars.com/api/?name=%s&background=random", url.QueryEscape(name))
}
