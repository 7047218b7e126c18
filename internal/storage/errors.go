package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// maxConflictRetries bounds how often a conflicting SurrealDB write is retried.
const maxConflictRetries = 3

// Sentinel errors for storage operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotFound indicates the key holds no value.
	ErrNotFound = errors.New("key not found")

	// ErrConflict indicates a SurrealDB transaction conflict between
	// concurrent writers of the same key.
	ErrConflict = errors.New("transaction conflict")
)

// wrapQueryError maps known SurrealDB query errors onto sentinel errors.
// Other errors are returned unchanged.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) && strings.Contains(queryErr.Message, "Transaction conflict") {
		return fmt.Errorf("%w: %s", ErrConflict, queryErr.Message)
	}
	return err
}
