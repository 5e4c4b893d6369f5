// Package db provides the snapshot backends: SurrealDB over an
// auto-reconnecting websocket, and relational knowledgebases over database/sql.
package db

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func init() {
	// Force HTTP/1.1 for WSS connections to prevent HTTP/2 ALPN negotiation.
	// WebSocket upgrade requires HTTP/1.1 semantics which fail under HTTP/2.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// Config holds SurrealDB connection configuration.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string // "root" or "database"

	// ReferrerTables are the tables whose reference_database link is counted.
	ReferrerTables []string
}

// Client is a SurrealDB-backed snapshot. One database holds one snapshot.
type Client struct {
	conn   *rews.Connection[*gorillaws.Connection]
	db     *surrealdb.DB
	cfg    Config
	logger logger.Logger

	mu  sync.Mutex
	ids map[string]surrealmodels.RecordID
}

// NewClient connects to the SurrealDB database holding one snapshot.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	if err := validateIdentifiers(cfg.ReferrerTables); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	sdkLogger := logger.New(log.Handler())

	conn := dial(cfg, sdkLogger)
	sdkLogger.Info("connecting to SurrealDB", "url", cfg.URL, "namespace", cfg.Namespace, "database", cfg.Database)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("from connection: %w", err)
	}

	if err := signIn(ctx, db, cfg); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("signin as %s: %w", cfg.Username, err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("use %s/%s: %w", cfg.Namespace, cfg.Database, wrapQueryError(err))
	}

	sdkLogger.Debug("SurrealDB snapshot ready", "database", cfg.Database)
	return &Client{
		conn:   conn,
		db:     db,
		cfg:    cfg,
		logger: sdkLogger,
		ids:    make(map[string]surrealmodels.RecordID),
	}, nil
}

// dial builds the auto-reconnecting websocket connection. Snapshot queries
// are read-only and short, so a few quick retries are enough.
func dial(cfg Config, sdkLogger logger.Logger) *rews.Connection[*gorillaws.Connection] {
	// surrealcbor handles SurrealDB's custom CBOR tags (record IDs)
	codec := surrealcbor.New()

	// gorillaws appends /rpc itself
	baseURL := strings.TrimSuffix(cfg.URL, "/rpc")

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			}), nil
		},
		5*time.Second,
		codec,
		sdkLogger,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = 500 * time.Millisecond
	retryer.MaxDelay = 5 * time.Second
	retryer.Multiplier = 2.0
	retryer.MaxRetries = 3
	conn.Retryer = retryer
	return conn
}

// signIn authenticates at root level unless AuthLevel is "database".
func signIn(ctx context.Context, db *surrealdb.DB, cfg Config) error {
	auth := surrealdb.Auth{
		Username: cfg.Username,
		Password: cfg.Password,
	}
	if cfg.AuthLevel == "database" {
		auth.Namespace = cfg.Namespace
		auth.Database = cfg.Database
	}
	_, err := db.SignIn(ctx, auth)
	return err
}

// Name returns the snapshot (database) name.
func (c *Client) Name() string {
	return c.cfg.Database
}

// Close closes the SurrealDB connection.
func (c *Client) Close(ctx context.Context) error {
	c.logger.Info("closing SurrealDB connection", "database", c.cfg.Database)
	return c.conn.Close(ctx)
}

// InitSchema defines the snapshot tables. Only needed for fixtures and tests;
// a real snapshot already carries its schema.
func (c *Client) InitSchema(ctx context.Context) error {
	c.logger.Info("initializing snapshot schema")
	_, err := surrealdb.Query[any](ctx, c.db, SchemaSQL(c.referrerTables()), nil)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// WipeData deletes all snapshot records while preserving schema.
// Use for testing only.
func (c *Client) WipeData(ctx context.Context) error {
	c.logger.Warn("wiping all data from snapshot", "database", c.cfg.Database)

	// Referrers first, they link to reference_database
	tables := append(c.referrerTables(), referenceDatabaseTable)
	for _, table := range tables {
		query := fmt.Sprintf("DELETE %s", table)
		if _, err := surrealdb.Query[any](ctx, c.db, query, nil); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}

	c.mu.Lock()
	c.ids = make(map[string]surrealmodels.RecordID)
	c.mu.Unlock()
	return nil
}

func (c *Client) referrerTables() []string {
	return append([]string(nil), c.cfg.ReferrerTables...)
}

// recordID returns the RecordID seen for identity during the last fetch.
func (c *Client) recordID(identity string) surrealmodels.RecordID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.ids[identity]; ok {
		return id
	}
	return surrealmodels.NewRecordID(referenceDatabaseTable, identity)
}

func (c *Client) rememberIDs(ids map[string]surrealmodels.RecordID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range ids {
		c.ids[k] = v
	}
}
