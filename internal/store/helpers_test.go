package store

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/golfkpi/internal/testutil"
)

// postgresDSNEnv enables the PostgreSQL variants of the dialect tests.
const postgresDSNEnv = "GOLFKPI_TEST_POSTGRES_DSN"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestStore opens a fresh SQLite store in a temp directory.
func setupTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	return openDriver(t, DriverSQLite3, opts...)
}

func openDriver(t *testing.T, driver string, opts ...Option) *Store {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "golfkpi.db")
	if driver == DriverPostgres {
		dsn = os.Getenv(postgresDSNEnv)
	}

	base := []Option{
		WithDriver(driver),
		WithLogger(discardLogger()),
		WithClock(testutil.NewStepClock(testutil.Epoch, time.Second)),
	}
	s, err := Open(dsn, append(base, opts...)...)
	if err != nil {
		t.Fatalf("Open(%s) failed: %v", driver, err)
	}
	t.Cleanup(func() { s.Close() })

	if driver == DriverPostgres {
		if err := s.Reset(context.Background()); err != nil {
			t.Fatalf("Reset() failed: %v", err)
		}
	}
	return s
}

// forEachDriver runs fn against every available dialect: both SQLite
// drivers always, PostgreSQL when GOLFKPI_TEST_POSTGRES_DSN is set.
func forEachDriver(t *testing.T, fn func(t *testing.T, s *Store)) {
	t.Helper()

	drivers := []string{DriverSQLite3, DriverSQLite}
	if os.Getenv(postgresDSNEnv) != "" {
		drivers = append(drivers, DriverPostgres)
	}
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			fn(t, openDriver(t, driver))
		})
	}
}

// mustInsertTemplate stores a template and returns its hash.
func mustInsertTemplate(t *testing.T, s *Store, raw string) string {
	t.Helper()
	st, _, err := s.InsertTemplate(context.Background(), []byte(raw))
	if err != nil {
		t.Fatalf("InsertTemplate() failed: %v", err)
	}
	return st.Hash
}

// mustInsertSnapshot stores a snapshot and returns its hash.
func mustInsertSnapshot(t *testing.T, s *Store, raw string) string {
	t.Helper()
	ss, _, err := s.InsertSnapshot(context.Background(), []byte(raw))
	if err != nil {
		t.Fatalf("InsertSnapshot() failed: %v", err)
	}
	return ss.Hash
}

func mustInsertSession(t *testing.T, s *Store, id string, shots ...ShotRow) {
	t.Helper()
	err := s.InsertSession(context.Background(), Session{
		ID:        id,
		Date:      "2026-01-15",
		Source:    "trackman",
		CreatedAt: testutil.Epoch,
	}, shots)
	if err != nil {
		t.Fatalf("InsertSession() failed: %v", err)
	}
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
