package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/roach88/golfkpi/internal/clock"
	"github.com/roach88/golfkpi/internal/metrics"
)

//go:embed schema_sqlite.sql
var schemaSQLite string

//go:embed schema_postgres.sql
var schemaPostgres string

// Schema version tracking:
// 1 - Initial governance kernel schema
const currentSchemaVersion = 1

// Store provides durable storage for kernel facts and artifacts.
type Store struct {
	db      *sql.DB
	dialect dialect
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type config struct {
	driver      string
	busyTimeout int
	clock       clock.Clock
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

func defaults() config {
	return config{
		driver:      DriverSQLite3,
		busyTimeout: 5000,
		clock:       clock.System{},
	}
}

// Option customises Open behaviour.
type Option func(*config)

// WithDriver sets the database/sql driver: DriverSQLite3 (default),
// DriverSQLite or DriverPostgres.
func WithDriver(name string) Option { return func(c *config) { c.driver = name } }

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 5000.
// Ignored for PostgreSQL.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithClock sets the clock used for created_at stamps.
func WithClock(c clock.Clock) Option { return func(cfg *config) { cfg.clock = c } }

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

// WithMetrics sets the counters updated by writes. Default: none.
func WithMetrics(m *metrics.Metrics) Option { return func(c *config) { c.metrics = m } }

// Open connects to the database named by dsn and applies pragmas and the
// schema. For SQLite dsn is a file path or ":memory:"; for PostgreSQL it
// is a connection URL.
//
// This function is idempotent - safe to call multiple times on the same
// database.
func Open(dsn string, opts ...Option) (*Store, error) {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	d, err := newDialect(cfg.driver)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if !d.postgres() {
		// SQLite only supports one writer at a time, and pragmas are
		// per-connection, so keep exactly one.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := applyPragmas(db, cfg.busyTimeout); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	s := &Store{
		db:      db,
		dialect: d,
		clock:   cfg.clock,
		logger:  cfg.logger,
		metrics: cfg.metrics,
	}

	if err := s.applySchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s.logger.Debug("store opened", "driver", d.driver)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Writes through it bypass the statement guard; the triggers still apply.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the database/sql driver name in use.
func (s *Store) Driver() string {
	return s.dialect.driver
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB, busyTimeout int) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = " + strconv.Itoa(busyTimeout),
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables and triggers if they don't exist and records
// the schema version. This function is idempotent.
func (s *Store) applySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema()); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var raw string
	err := s.db.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT value FROM schema_meta WHERE key = ?`), "schema_version",
	).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx,
			s.dialect.rebind(`INSERT INTO schema_meta (key, value) VALUES (?, ?)`),
			"schema_version", strconv.Itoa(currentSchemaVersion))
		if err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("get schema version: %w", err)
	}

	version, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("get schema version: invalid value %q", raw)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d",
			version, currentSchemaVersion)
	}
	return nil
}

// SchemaVersion returns the schema version recorded in the database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT value FROM schema_meta WHERE key = ?`), "schema_version",
	).Scan(&raw)
	if err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	return strconv.Atoi(raw)
}

// resetOrder lists every table children first, so drops never trip a
// foreign key.
var resetOrder = []string{
	"projection_club_stats",
	"hole_scores",
	"round_events",
	"round_players",
	"rounds",
	"course_snapshot_holes",
	"course_snapshots",
	"club_subsessions",
	"shots",
	"sessions",
	"template_aliases",
	"templates",
	"schema_meta",
}

// Reset drops every table and recreates the empty schema. It is the only
// supported way to remove facts and is meant for development databases.
func (s *Store) Reset(ctx context.Context) error {
	if !s.dialect.postgres() {
		// Dropping a table with foreign keys enabled runs an implicit
		// DELETE FROM that would check constraints row by row.
		if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}

	for _, table := range resetOrder {
		stmt := "DROP TABLE IF EXISTS " + table
		if s.dialect.postgres() {
			stmt += " CASCADE"
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset: drop %s: %w", table, err)
		}
	}

	if !s.dialect.postgres() {
		if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}

	if err := s.applySchema(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	s.logger.Info("store reset", "driver", s.dialect.driver)
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
