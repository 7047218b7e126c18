package storage

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func init() {
	// Force HTTP/1.1 for WSS connections to prevent HTTP/2 ALPN negotiation.
	// WebSocket upgrade requires HTTP/1.1 semantics which fail under HTTP/2.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// schemaSQL defines the kv table. Record ids are the keys themselves.
const schemaSQL = `
    DEFINE TABLE IF NOT EXISTS kv SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS key ON kv TYPE string;
    DEFINE FIELD IF NOT EXISTS value ON kv TYPE string;
    DEFINE FIELD IF NOT EXISTS updated ON kv TYPE datetime DEFAULT time::now();
`

// SurrealConfig holds SurrealDB connection configuration.
type SurrealConfig struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string // "root" or "database"
}

// Surreal is a Store backed by a SurrealDB table, so several machines can
// share one session origin.
type Surreal struct {
	conn   *rews.Connection[*gorillaws.Connection]
	db     *surrealdb.DB
	logger logger.Logger
}

type kvRecord struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NewSurreal connects with an auto-reconnecting WebSocket, authenticates,
// selects namespace/database and defines the kv table.
func NewSurreal(ctx context.Context, cfg SurrealConfig, log *slog.Logger) (*Surreal, error) {
	var sdkLogger logger.Logger
	if log != nil {
		sdkLogger = logger.New(log.Handler())
	} else {
		sdkLogger = logger.New(slog.Default().Handler())
	}

	codec := surrealcbor.New()

	// gorillaws appends /rpc itself
	baseURL := strings.TrimSuffix(cfg.URL, "/rpc")

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			ws := gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			})
			return ws, nil
		},
		5*time.Second,
		codec,
		sdkLogger,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = 1 * time.Second
	retryer.MaxDelay = 30 * time.Second
	retryer.Multiplier = 2.0
	retryer.MaxRetries = 10
	conn.Retryer = retryer

	sdkLogger.Info("connecting to SurrealDB", "url", cfg.URL)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("from connection: %w", err)
	}

	auth := surrealdb.Auth{Username: cfg.Username, Password: cfg.Password}
	if cfg.AuthLevel == "database" {
		auth.Namespace = cfg.Namespace
		auth.Database = cfg.Database
	}
	if _, err := db.SignIn(ctx, auth); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("signin: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("use: %w", err)
	}

	if _, err := surrealdb.Query[any](ctx, db, schemaSQL, nil); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("init schema: %w", err)
	}

	sdkLogger.Info("SurrealDB store ready", "namespace", cfg.Namespace, "database", cfg.Database)
	return &Surreal{conn: conn, db: db, logger: sdkLogger}, nil
}

func (s *Surreal) Get(ctx context.Context, key string) ([]byte, error) {
	results, err := surrealdb.Query[[]kvRecord](ctx, s.db, `
		SELECT key, value FROM type::record("kv", $key)
	`, map[string]any{"key": key})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	return []byte((*results)[0].Result[0].Value), nil
}

// Set upserts the value. Concurrent writers conflict inside SurrealDB; the
// write is retried so the last writer still wins.
func (s *Surreal) Set(ctx context.Context, key string, value []byte) error {
	var err error
	for attempt := range maxConflictRetries {
		_, err = surrealdb.Query[any](ctx, s.db, `
			UPSERT type::record("kv", $key) SET key = $key, value = $value, updated = time::now()
		`, map[string]any{"key": key, "value": string(value)})
		err = wrapQueryError(err)
		if !errors.Is(err, ErrConflict) {
			break
		}
		s.logger.Warn("kv write conflict, retrying", "key", key, "attempt", attempt+1)
	}
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Surreal) Delete(ctx context.Context, key string) error {
	_, err := surrealdb.Query[any](ctx, s.db, `
		DELETE type::record("kv", $key)
	`, map[string]any{"key": key})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Close closes the SurrealDB connection.
func (s *Surreal) Close(ctx context.Context) error {
	s.logger.Info("closing SurrealDB connection")
	return s.conn.Close(ctx)
}
