package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/raphaelgruber/refcheck/internal/config"
	"github.com/raphaelgruber/refcheck/internal/models"
	"github.com/raphaelgruber/refcheck/internal/service"
)

// Queries against the relational knowledgebase layout: every record has a
// DatabaseObject row, multi-valued attributes live in <Class>_2_<attribute>
// tables ordered by <attribute>_rank.
const (
	selectReferenceDatabasesSQL     = `SELECT DB_ID, _class, _displayName FROM DatabaseObject WHERE _class = ? ORDER BY DB_ID`
	selectReferenceDatabaseNamesSQL = `SELECT DB_ID, name FROM ReferenceDatabase_2_name ORDER BY DB_ID, name_rank`
	countReferrersSQLTemplate       = "SELECT COUNT(*) FROM `%s` WHERE referenceDatabase = ?"
)

// SQLSnapshot is a snapshot stored in a relational knowledgebase (MySQL or SQLite).
type SQLSnapshot struct {
	name           string
	db             *sql.DB
	referrerTables []string
	countQueries   []string
	logger         *slog.Logger
	closed         atomic.Bool
}

// NewSQLSnapshot wraps an open database handle. Referrer table names are
// validated and interpolated into the count queries once.
func NewSQLSnapshot(name string, conn *sql.DB, referrerTables []string, log *slog.Logger) (*SQLSnapshot, error) {
	if err := validateIdentifiers(referrerTables); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	queries := make([]string, 0, len(referrerTables))
	for _, table := range referrerTables {
		queries = append(queries, fmt.Sprintf(countReferrersSQLTemplate, table))
	}

	return &SQLSnapshot{
		name:           name,
		db:             conn,
		referrerTables: append([]string(nil), referrerTables...),
		countQueries:   queries,
		logger:         log,
	}, nil
}

// OpenSQL opens and pings a MySQL or SQLite snapshot.
func OpenSQL(ctx context.Context, cfg config.SnapshotConfig, log *slog.Logger) (*SQLSnapshot, error) {
	driver, dsn, err := sqlDSN(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	log.Debug("opening snapshot", "snapshot", cfg)
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, &service.ConnectionError{Snapshot: cfg.Database, Op: "open", Err: err}
	}
	if driver == config.BackendSQLite {
		// An in-memory database exists once per connection
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, &service.ConnectionError{Snapshot: cfg.Database, Op: "ping", Err: err}
	}

	snap, err := NewSQLSnapshot(cfg.Database, conn, cfg.ReferrerTables, log)
	if err != nil {
		conn.Close()
		return nil, err
	}
	log.Info("snapshot opened", "snapshot", cfg.Database, "backend", driver, "host", cfg.Host)
	return snap, nil
}

func sqlDSN(cfg config.SnapshotConfig) (driver, dsn string, err error) {
	switch cfg.Backend {
	case config.BackendMySQL:
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
		mc.DBName = cfg.Database
		return config.BackendMySQL, mc.FormatDSN(), nil
	case config.BackendSQLite:
		// The database name is the file path. Snapshots are opened read-only
		// so a mistyped path fails instead of creating an empty file.
		if cfg.Database == ":memory:" {
			return config.BackendSQLite, cfg.Database, nil
		}
		return config.BackendSQLite, fmt.Sprintf("file:%s?mode=ro", cfg.Database), nil
	default:
		return "", "", &config.ConfigurationError{
			Source: string(cfg.Side) + "DbBackend",
			Err:    fmt.Errorf("backend %q is not a SQL backend", cfg.Backend),
		}
	}
}

// Name returns the snapshot name.
func (s *SQLSnapshot) Name() string {
	return s.name
}

// Close closes the database handle.
func (s *SQLSnapshot) Close(ctx context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	s.logger.Info("closing snapshot", "snapshot", s.name)
	return s.db.Close()
}

// FetchReferenceDatabases returns every ReferenceDatabase record with its
// names in rank order.
func (s *SQLSnapshot) FetchReferenceDatabases(ctx context.Context) ([]models.ReferenceDatabase, error) {
	if s.closed.Load() {
		return nil, s.queryError("fetch reference databases", ErrSnapshotClosed)
	}

	rds, index, err := s.fetchRecords(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.attachNames(ctx, rds, index); err != nil {
		return nil, err
	}

	s.logger.Debug("fetched reference databases", "snapshot", s.name, "count", len(rds))
	return rds, nil
}

// fetchRecords reads the DatabaseObject rows. The rows are closed before
// returning; a SQLite snapshot has a single connection.
func (s *SQLSnapshot) fetchRecords(ctx context.Context) ([]models.ReferenceDatabase, map[int64]int, error) {
	rows, err := s.db.QueryContext(ctx, selectReferenceDatabasesSQL, models.ReferenceDatabaseClass)
	if err != nil {
		return nil, nil, s.queryError("query reference databases", err)
	}
	defer rows.Close()

	var rds []models.ReferenceDatabase
	index := make(map[int64]int)
	for rows.Next() {
		var (
			id          int64
			class       string
			displayName sql.NullString
		)
		if err := rows.Scan(&id, &class, &displayName); err != nil {
			return nil, nil, s.queryError("scan reference database", err)
		}
		identity := strconv.FormatInt(id, 10)
		index[id] = len(rds)
		rds = append(rds, models.ReferenceDatabase{
			Identity:            identity,
			SchemaClass:         class,
			DisplayName:         displayName.String,
			ExtendedDisplayName: models.InstanceLabel(class, identity, displayName.String),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, s.queryError("iterate reference databases", err)
	}
	return rds, index, nil
}

func (s *SQLSnapshot) attachNames(ctx context.Context, rds []models.ReferenceDatabase, index map[int64]int) error {
	rows, err := s.db.QueryContext(ctx, selectReferenceDatabaseNamesSQL)
	if err != nil {
		return s.queryError("query reference database names", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			name sql.NullString
		)
		if err := rows.Scan(&id, &name); err != nil {
			return s.queryError("scan reference database name", err)
		}
		i, ok := index[id]
		if !ok || !name.Valid {
			continue
		}
		rds[i].Names = append(rds[i].Names, name.String)
	}
	if err := rows.Err(); err != nil {
		return s.queryError("iterate reference database names", err)
	}
	return nil
}

// CountReferrers sums the rows of every referrer table whose
// referenceDatabase column holds identity.
func (s *SQLSnapshot) CountReferrers(ctx context.Context, identity string) (int, error) {
	if s.closed.Load() {
		return 0, s.queryError("count referrers", ErrSnapshotClosed)
	}

	id, err := strconv.ParseInt(identity, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("reference database identity %q is not a DB_ID: %w", identity, err)
	}

	total := 0
	for i, query := range s.countQueries {
		var n int
		if err := s.db.QueryRowContext(ctx, query, id).Scan(&n); err != nil {
			return 0, s.queryError("count "+s.referrerTables[i]+" referrers", err)
		}
		total += n
	}
	return total, nil
}

// queryError annotates a failed query. The comparison layer classifies it as a
// connection or count failure depending on the operation.
func (s *SQLSnapshot) queryError(op string, err error) error {
	if errors.Is(err, ErrSnapshotClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if IsSnapshotClosed(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrSnapshotClosed, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
