// Package config resolves refcheck settings from a config.properties file,
// REFCHECK_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	crdb "github.com/cockroachdb/errors"
	"github.com/magiconair/properties"
	"github.com/spf13/viper"

	"github.com/raphaelgruber/refcheck/internal/service"
)

// DefaultConfigFile is read from the working directory when no path is given.
const DefaultConfigFile = "config.properties"

// EnvPrefix prefixes environment overrides, e.g. REFCHECK_CURRENTDBHOST.
const EnvPrefix = "REFCHECK"

// Backend names accepted in dbBackend / <side>DbBackend.
const (
	BackendMySQL     = "mysql"
	BackendSQLite    = "sqlite3"
	BackendSurrealDB = "surrealdb"
)

// DefaultReferrerTables lists the tables whose referenceDatabase column is counted.
var DefaultReferrerTables = []string{"ReferenceEntity", "DatabaseIdentifier"}

// Side selects which snapshot a setting applies to.
type Side string

const (
	// Current is the newer snapshot.
	Current Side = "current"
	// Previous is the older snapshot.
	Previous Side = "previous"
)

// ParseSide converts a flag value into a Side.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(s)) {
	case Current, "new":
		return Current, nil
	case Previous, "old":
		return Previous, nil
	default:
		return "", fmt.Errorf("unknown snapshot side %q (expected current or previous)", s)
	}
}

// Config holds resolved configuration values.
type Config struct {
	// Source is the properties file that was read, empty when none was found.
	Source string

	// Logging
	LogFile  string
	LogLevel slog.Level

	v *viper.Viper
}

// SnapshotConfig holds the connection settings of one snapshot.
type SnapshotConfig struct {
	Side     Side
	Backend  string
	Host     string
	Port     int
	Database string
	User     string
	Password string

	// ReferrerTables are the tables counted as referrers.
	ReferrerTables []string

	// SurrealDB connection, used when Backend is surrealdb.
	SurrealURL       string
	SurrealNamespace string
}

// LogValue keeps the password out of logs.
func (s SnapshotConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("side", string(s.Side)),
		slog.String("backend", s.Backend),
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.String("database", s.Database),
		slog.String("user", s.User),
		slog.Any("referrer_tables", s.ReferrerTables),
	)
}

// ConfigurationError reports a missing or unreadable configuration source.
type ConfigurationError struct {
	Source string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %v", e.Source, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == service.ErrConfiguration }

// Load reads configuration from path. An empty path falls back to
// $REFCHECK_CONFIG and then ./config.properties; only the implicit default
// file may be absent.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		if env := os.Getenv(EnvPrefix + "_CONFIG"); env != "" {
			path, explicit = env, true
		} else {
			path = DefaultConfigFile
		}
	}

	v := newViper()
	cfg := Config{v: v}

	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg.finish()
		}
		return Config{}, crdb.WithHint(&ConfigurationError{Source: path, Err: err},
			"pass --config with a readable config.properties file")
	}

	props, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return Config{}, crdb.WithHint(&ConfigurationError{Source: path, Err: err},
			"config.properties must use key=value lines")
	}
	if err := v.MergeConfigMap(toAnyMap(props.Map())); err != nil {
		return Config{}, &ConfigurationError{Source: path, Err: err}
	}

	cfg.Source = path
	return cfg.finish()
}

// FromMap builds a Config from in-memory key/value pairs, layered the same
// way as a properties file.
func FromMap(values map[string]string) (Config, error) {
	v := newViper()
	if err := v.MergeConfigMap(toAnyMap(values)); err != nil {
		return Config{}, &ConfigurationError{Source: "map", Err: err}
	}
	return Config{v: v}.finish()
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("dbBackend", BackendMySQL)
	v.SetDefault("dbPort", 3306)
	v.SetDefault("surrealUrl", "ws://localhost:8000/rpc")
	v.SetDefault("surrealNamespace", "reactome")
	v.SetDefault("logFile", "/tmp/refcheck.log")
	v.SetDefault("logLevel", "WARN")
	return v
}

func (c Config) finish() (Config, error) {
	c.LogFile = c.v.GetString("logFile")
	c.LogLevel = ParseLogLevel(c.v.GetString("logLevel"))
	return c, nil
}

// Snapshot resolves the connection settings of one side.
// Precedence is <side>Key > shared key > default; the database name
// comes from <side>DbName, falling back to databaseName (the CLI flag).
func (c Config) Snapshot(side Side, databaseName string) (SnapshotConfig, error) {
	p := string(side)
	v := c.v
	if v == nil {
		v = newViper()
	}

	port := v.GetInt("dbPort")
	if v.GetString(p+"DbPort") != "" {
		port = v.GetInt(p + "DbPort")
	}
	if port <= 0 {
		return SnapshotConfig{}, &ConfigurationError{Source: p + "DbPort", Err: fmt.Errorf("invalid port %d", port)}
	}

	sc := SnapshotConfig{
		Side:             side,
		Backend:          strings.ToLower(firstNonEmpty(v.GetString(p+"DbBackend"), v.GetString("dbBackend"))),
		Host:             firstNonEmpty(v.GetString(p+"DbHost"), "localhost"),
		Port:             port,
		Database:         firstNonEmpty(v.GetString(p+"DbName"), databaseName),
		User:             firstNonEmpty(v.GetString(p+"DbUser"), v.GetString("dbUser"), "root"),
		Password:         firstNonEmpty(v.GetString(p+"DbPass"), v.GetString("dbPwd"), "root"),
		ReferrerTables:   splitList(firstNonEmpty(v.GetString(p+"ReferrerTables"), v.GetString("referrerTables"))),
		SurrealURL:       firstNonEmpty(v.GetString(p+"SurrealUrl"), v.GetString("surrealUrl")),
		SurrealNamespace: firstNonEmpty(v.GetString(p+"SurrealNamespace"), v.GetString("surrealNamespace")),
	}
	if len(sc.ReferrerTables) == 0 {
		sc.ReferrerTables = append([]string(nil), DefaultReferrerTables...)
	}

	switch sc.Backend {
	case BackendMySQL, BackendSQLite, BackendSurrealDB:
	default:
		return SnapshotConfig{}, crdb.WithHint(
			&ConfigurationError{Source: p + "DbBackend", Err: fmt.Errorf("unknown backend %q", sc.Backend)},
			"supported backends are mysql, sqlite3 and surrealdb")
	}
	if sc.Database == "" {
		return SnapshotConfig{}, &ConfigurationError{Source: p + "DbName", Err: errors.New("no database name")}
	}
	return sc, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func toAnyMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ParseLogLevel maps a level name to a slog level; unknown names mean INFO.
func ParseLogLevel(s string) slog.Level {
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
