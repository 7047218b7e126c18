// Package storage provides the durable key-value medium that backs the
// client's session and credential records.
//
// Every backend stores opaque byte values under string keys. One Store is one
// "origin": two clients pointed at the same Store see the same session.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Store is a durable key-value medium. Writes are last-writer-wins.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close(ctx context.Context) error
}

// Options selects and configures a backend for Open.
type Options struct {
	Backend string // "sqlite", "surrealdb" or "memory"
	DataDir string // sqlite file location
	Surreal SurrealConfig
	Logger  *slog.Logger
}

// Open returns the backend named by opts.Backend. Unknown names fall back
// to SQLite.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "memory":
		return NewMemory(), nil
	case "surrealdb":
		return NewSurreal(ctx, opts.Surreal, opts.Logger)
	default:
		if err := os.MkdirAll(opts.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return OpenSQLite(ctx, filepath.Join(opts.DataDir, "analyst.db"))
	}
}
