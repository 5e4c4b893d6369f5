package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/refcheck/internal/config"
	"github.com/raphaelgruber/refcheck/internal/service"
)

// Snapshot is a service.Snapshot holding an open connection.
type Snapshot interface {
	service.Snapshot
	Close(ctx context.Context) error
}

var (
	_ Snapshot = (*Client)(nil)
	_ Snapshot = (*SQLSnapshot)(nil)
)

// Open connects to the snapshot described by cfg using its backend.
func Open(ctx context.Context, cfg config.SnapshotConfig, log *slog.Logger) (Snapshot, error) {
	if err := validateIdentifiers(cfg.ReferrerTables); err != nil {
		return nil, &config.ConfigurationError{Source: "referrerTables", Err: err}
	}

	switch cfg.Backend {
	case config.BackendMySQL, config.BackendSQLite:
		return OpenSQL(ctx, cfg, log)
	case config.BackendSurrealDB:
		client, err := NewClient(ctx, Config{
			URL:            cfg.SurrealURL,
			Namespace:      cfg.SurrealNamespace,
			Database:       cfg.Database,
			Username:       cfg.User,
			Password:       cfg.Password,
			AuthLevel:      "root",
			ReferrerTables: cfg.ReferrerTables,
		}, log)
		if err != nil {
			return nil, &service.ConnectionError{Snapshot: cfg.Database, Op: "connect", Err: err}
		}
		return client, nil
	default:
		return nil, &config.ConfigurationError{
			Source: string(cfg.Side) + "DbBackend",
			Err:    fmt.Errorf("unknown backend %q", cfg.Backend),
		}
	}
}

// OpenPair opens the previous and current snapshots. If the second fails the
// first is closed again.
func OpenPair(ctx context.Context, previous, current config.SnapshotConfig, log *slog.Logger) (Snapshot, Snapshot, error) {
	prev, err := Open(ctx, previous, log)
	if err != nil {
		return nil, nil, err
	}
	cur, err := Open(ctx, current, log)
	if err != nil {
		if cerr := prev.Close(ctx); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, nil, err
	}
	return prev, cur, nil
}
