// Package config loads runtime configuration for the analyst client.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store backends accepted by ANALYST_STORE.
const (
	StoreSQLite    = "sqlite"
	StoreSurrealDB = "surrealdb"
	StoreMemory    = "memory"
)

// Config holds all configuration values.
type Config struct {
	// Analysis backend
	ServerURL     string
	ClientTimeout time.Duration

	// Local state
	DataDir string
	Store   string

	// SurrealDB connection (Store == "surrealdb")
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Logging
	LogFile  string
	LogLevel slog.Level

	// Stub backend listen address
	StubAddr string
}

// Load reads configuration from the optional YAML file and then from
// environment variables. Environment values win over the file.
func Load() Config {
	dataDir := getEnv("ANALYST_DATA_DIR", defaultDataDir())

	fc, err := readFile(getEnv("ANALYST_CONFIG", filepath.Join(dataDir, "config.yaml")))
	if err != nil {
		slog.Warn("ignoring unreadable config file", "error", err)
		fc = fileConfig{}
	}

	return Config{
		ServerURL:     getEnv("ANALYST_SERVER_URL", or(fc.ServerURL, "http://localhost:8000")),
		ClientTimeout: parseDuration(getEnv("ANALYST_CLIENT_TIMEOUT", or(fc.ClientTimeout, "10m")), 10*time.Minute),

		DataDir: dataDir,
		Store:   parseStore(getEnv("ANALYST_STORE", or(fc.Store, StoreSQLite))),

		SurrealDBURL:       getEnv("SURREALDB_URL", or(fc.SurrealDB.URL, "ws://localhost:8001/rpc")),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", or(fc.SurrealDB.Namespace, "analyst")),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", or(fc.SurrealDB.Database, "client")),
		SurrealDBUser:      getEnv("SURREALDB_USER", or(fc.SurrealDB.User, "root")),
		SurrealDBPass:      getEnv("SURREALDB_PASS", or(fc.SurrealDB.Pass, "root")),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", or(fc.SurrealDB.AuthLevel, "root")),

		LogFile:  getEnv("ANALYST_LOG_FILE", or(fc.LogFile, filepath.Join(dataDir, "analyst.log"))),
		LogLevel: parseLogLevel(getEnv("ANALYST_LOG_LEVEL", or(fc.LogLevel, "INFO"))),

		StubAddr: getEnv("ANALYST_STUB_ADDR", or(fc.StubAddr, "127.0.0.1:8000")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func or(val, fallback string) string {
	if val != "" {
		return val
	}
	return fallback
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".analyst"
	}
	return filepath.Join(home, ".analyst")
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseStore(s string) string {
	switch strings.ToLower(s) {
	case StoreSurrealDB, "surreal":
		return StoreSurrealDB
	case StoreMemory:
		return StoreMemory
	default:
		return StoreSQLite
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
