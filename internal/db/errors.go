package db

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for snapshot backends.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidIdentifier indicates a configured table name that is not a plain SQL identifier.
	// Table names are interpolated into queries, so anything else is rejected up front.
	ErrInvalidIdentifier = errors.New("invalid table identifier")

	// ErrSnapshotNotFound indicates the namespace, database or table of a snapshot does not exist.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotClosed is returned when a closed snapshot is queried.
	ErrSnapshotClosed = errors.New("snapshot is closed")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateIdentifiers(names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("%w: no referrer tables configured", ErrInvalidIdentifier)
	}
	for _, name := range names {
		if !identifierPattern.MatchString(name) {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
		}
	}
	return nil
}

// wrapQueryError inspects a SurrealDB error and wraps it with the appropriate
// sentinel error if it's a known query error type. Returns the original error
// if it's not a QueryError or doesn't match known patterns.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		if strings.Contains(msg, "does not exist") {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, msg)
		}
	}

	return err
}

// IsSnapshotClosed reports whether err indicates a closed connection, either
// ErrSnapshotClosed or a raw driver error saying so.
func IsSnapshotClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSnapshotClosed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "use of closed network connection")
}
