package auth

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/raphaelgruber/analyst-go/internal/session"
	"github.com/raphaelgruber/analyst-go/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedCredentials(t *testing.T, kv storage.Store) []Credential {
	t.Helper()
	raw, err := kv.Get(context.Background(), UsersKey)
	require.NoError(t, err)
	var creds []Credential
	require.NoError(t, json.Unmarshal(raw, &creds))
	return creds
}

func TestSignupOncePerEmail(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	f := New(ctx, kv, nil)

	require.True(t, f.Signup(ctx, "Ada Lovelace", "ada@example.com", "secret1"))
	require.Len(t, storedCredentials(t, kv), 1)

	f.Logout(ctx)
	assert.False(t, f.Signup(ctx, "Other Ada", "ada@example.com", "secret2"))
	assert.Len(t, storedCredentials(t, kv), 1, "rejected signup must not grow the store")
	assert.False(t, f.IsAuthenticated(), "rejected signup must not sign in")
}

func TestSignupSignsInWithoutPassword(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	f := New(ctx, kv, nil)

	require.True(t, f.Signup(ctx, "Ada Lovelace", "ada@example.com", "secret1"))

	require.True(t, f.IsAuthenticated())
	u := f.Current()
	require.NotNil(t, u)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, "Ada Lovelace", u.Name)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "https://ui-avatars.com/api/?name=Ada+Lovelace&background=random", u.Avatar)

	raw, err := kv.Get(ctx, session.Key)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret1")
}

func TestSignupAssignsDistinctIDs(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	f := New(ctx, kv, nil)

	require.True(t, f.Signup(ctx, "A", "a@example.com", "secret1"))
	require.True(t, f.Signup(ctx, "B", "b@example.com", "secret1"))

	creds := storedCredentials(t, kv)
	require.Len(t, creds, 2)
	assert.NotEqual(t, creds[0].ID, creds[1].ID)
}

func TestLoginExactMatch(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	f := New(ctx, kv, nil)
	require.True(t, f.Signup(ctx, "Ada", "ada@example.com", "Secret1"))
	f.Logout(ctx)

	tests := []struct {
		name     string
		email    string
		password string
		want     bool
	}{
		{"exact", "ada@example.com", "Secret1", true},
		{"email case differs", "Ada@example.com", "Secret1", false},
		{"password case differs", "ada@example.com", "secret1", false},
		{"unknown email", "bob@example.com", "Secret1", false},
		{"empty password", "ada@example.com", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.Logout(ctx)
			assert.Equal(t, tt.want, f.Login(ctx, tt.email, tt.password))
			assert.Equal(t, tt.want, f.IsAuthenticated())
		})
	}
}

func TestLoginToleratesMalformedStore(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(ctx, UsersKey, []byte("not json")))

	f := New(ctx, kv, nil)
	assert.False(t, f.Login(ctx, "ada@example.com", "secret1"))

	// signup overwrites the unreadable store with a fresh one
	require.True(t, f.Signup(ctx, "Ada", "ada@example.com", "secret1"))
	assert.Len(t, storedCredentials(t, kv), 1)
}

func TestLogoutAlwaysSignsOut(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	f := New(ctx, kv, nil)

	f.Logout(ctx)
	assert.False(t, f.IsAuthenticated())

	require.True(t, f.Signup(ctx, "Ada", "ada@example.com", "secret1"))
	f.Logout(ctx)
	f.Logout(ctx)

	assert.False(t, f.IsAuthenticated())
	assert.Nil(t, f.Current())
	_, err := kv.Get(ctx, session.Key)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNewHydratesOnce(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()

	first := New(ctx, kv, nil)
	require.True(t, first.Signup(ctx, "Ada", "ada@example.com", "secret1"))

	restored := New(ctx, kv, nil)
	require.True(t, restored.IsAuthenticated())
	assert.Equal(t, "ada@example.com", restored.Current().Email)

	// later writes by another facade do not leak into an already hydrated one
	first.Logout(ctx)
	assert.True(t, restored.IsAuthenticated())
}

func TestNewWithCorruptSession(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(ctx, session.Key, []byte("{broken")))

	f := New(ctx, kv, nil)
	assert.False(t, f.IsAuthenticated())
}

func TestCurrentReturnsCopy(t *testing.T) {
	ctx := context.Background()
	f := New(ctx, storage.NewMemory(), nil)
	require.True(t, f.Signup(ctx, "Ada", "ada@example.com", "secret1"))

	u := f.Current()
	u.Name = "Mallory"
	assert.Equal(t, "Ada", f.Current().Name)
}

// flakyStore fails reads of one key while failing is set.
type flakyStore struct {
	storage.Store
	key     string
	failing bool
}

func (s *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.failing && key == s.key {
		return nil, errors.New("database is locked")
	}
	return s.Store.Get(ctx, key)
}

func TestFailedReadKeepsCredentialStore(t *testing.T) {
	ctx := context.Background()
	kv := &flakyStore{Store: storage.NewMemory(), key: UsersKey}
	f := New(ctx, kv, nil)

	require.True(t, f.Signup(ctx, "Ada", "ada@example.com", "secret1"))
	f.Logout(ctx)
	require.True(t, f.Signup(ctx, "Bob", "bob@example.com", "secret2"))
	f.Logout(ctx)

	kv.failing = true
	assert.False(t, f.Signup(ctx, "Cy", "cy@example.com", "secret3"))
	assert.False(t, f.Login(ctx, "ada@example.com", "secret1"))
	assert.False(t, f.IsAuthenticated())

	kv.failing = false
	assert.Len(t, storedCredentials(t, kv), 2)
	assert.True(t, f.Login(ctx, "ada@example.com", "secret1"))
}
