package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go"
)

// exerciseStore runs the contract every backend must satisfy.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "user")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "user", []byte(`{"id":"1"}`)))
	got, err := s.Get(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1"}`, string(got))

	// last writer wins
	require.NoError(t, s.Set(ctx, "user", []byte(`{"id":"2"}`)))
	got, err = s.Get(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"2"}`, string(got))

	require.NoError(t, s.Delete(ctx, "user"))
	_, err = s.Get(ctx, "user")
	require.ErrorIs(t, err, ErrNotFound)

	// deleting an absent key is fine
	require.NoError(t, s.Delete(ctx, "user"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	buf := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", buf))
	buf[0] = 'x'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "analyst.db"))
	require.NoError(t, err)
	defer s.Close(ctx)

	exerciseStore(t, s)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "analyst.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "users", []byte(`[]`)))
	require.NoError(t, s.Close(ctx))

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close(ctx)

	got, err := s.Get(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunMigrations(ctx, db))
	require.NoError(t, RunMigrations(ctx, db))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='kv'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	dir := filepath.Join(t.TempDir(), "data")
	s, err = Open(ctx, Options{Backend: "sqlite", DataDir: dir})
	require.NoError(t, err)
	defer s.Close(ctx)
	assert.IsType(t, &SQLite{}, s)
	assert.FileExists(t, filepath.Join(dir, "analyst.db"))
}

func TestWrapQueryError(t *testing.T) {
	assert.NoError(t, wrapQueryError(nil))

	conflict := fmt.Errorf("query: %w", &surrealdb.QueryError{Message: "Transaction conflict: resource busy"})
	assert.ErrorIs(t, wrapQueryError(conflict), ErrConflict)

	other := &surrealdb.QueryError{Message: "Parse error"}
	assert.Equal(t, error(other), wrapQueryError(other))

	plain := errors.New("boom")
	assert.Equal(t, plain, wrapQueryError(plain))
}
