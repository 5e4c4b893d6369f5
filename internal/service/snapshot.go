// Package service provides the reference database comparison engine:
// name resolution, catalog indexing, referrer counting, classification
// and report rendering.
package service

import (
	"context"

	"github.com/raphaelgruber/refcheck/internal/models"
)

// Snapshot is the query surface of one knowledgebase snapshot.
// Implementations live in internal/db.
type Snapshot interface {
	// Name identifies the snapshot in logs and errors.
	Name() string

	// FetchReferenceDatabases returns every reference database record in the snapshot.
	FetchReferenceDatabases(ctx context.Context) ([]models.ReferenceDatabase, error)

	// CountReferrers returns the number of records whose reference database
	// field points at the record with the given identity.
	CountReferrers(ctx context.Context, identity string) (int, error)
}
