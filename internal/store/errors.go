package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	modsqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/roach88/golfkpi/internal/kernel"
)

const immutabilityMessage = "immutability violation: "

// PostgreSQL SQLSTATE codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgRaiseException      = "P0001"
)

// triggerViolation extracts the table named by an immutability trigger
// error, whichever driver raised it.
func triggerViolation(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgRaiseException {
		if table, ok := strings.CutPrefix(pgErr.Message, immutabilityMessage); ok {
			return table, true
		}
	}
	msg := err.Error()
	i := strings.Index(msg, immutabilityMessage)
	if i < 0 {
		return "", false
	}
	table := msg[i+len(immutabilityMessage):]
	if j := strings.IndexAny(table, " \n("); j >= 0 {
		table = table[:j]
	}
	return table, true
}

// isUniqueViolation reports a UNIQUE or PRIMARY KEY conflict.
func isUniqueViolation(err error) bool {
	var mattnErr sqlite3.Error
	if errors.As(err, &mattnErr) {
		return mattnErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			mattnErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var modErr *modsqlite.Error
	if errors.As(err, &modErr) {
		return modErr.Code() == sqlitelib.SQLITE_CONSTRAINT_UNIQUE ||
			modErr.Code() == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// isForeignKeyViolation reports a reference to a missing parent row.
func isForeignKeyViolation(err error) bool {
	var mattnErr sqlite3.Error
	if errors.As(err, &mattnErr) {
		return mattnErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	var modErr *modsqlite.Error
	if errors.As(err, &modErr) {
		return modErr.Code() == sqlitelib.SQLITE_CONSTRAINT_FOREIGNKEY
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	return false
}

// isCheckViolation reports a failed CHECK constraint.
func isCheckViolation(err error) bool {
	var mattnErr sqlite3.Error
	if errors.As(err, &mattnErr) {
		return mattnErr.ExtendedCode == sqlite3.ErrConstraintCheck
	}
	var modErr *modsqlite.Error
	if errors.As(err, &modErr) {
		return modErr.Code() == sqlitelib.SQLITE_CONSTRAINT_CHECK
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgCheckViolation
	}
	return false
}

// classify maps a driver error from a write on table into the kernel
// taxonomy. Errors it does not recognise are returned unchanged.
func (s *Store) classify(err error, table, operation string) error {
	if err == nil {
		return nil
	}
	if kernel.IsImmutability(err) {
		return err
	}
	if t, ok := triggerViolation(err); ok {
		s.metrics.ImmutabilityRejected(t, "trigger")
		return &kernel.ImmutabilityViolation{Table: t, Operation: operation, Err: err}
	}
	entity := table
	if entity == "" {
		entity = "row"
	}
	if isForeignKeyViolation(err) {
		return &kernel.ValidationError{Entity: entity, Message: "references a row that does not exist", Err: err}
	}
	if isCheckViolation(err) {
		return &kernel.ValidationError{Entity: entity, Message: "violates a table constraint", Err: err}
	}
	return err
}

// rejectedByGuard records a guard rejection.
func (s *Store) rejectedByGuard(err error) {
	var iv *kernel.ImmutabilityViolation
	if errors.As(err, &iv) {
		s.metrics.ImmutabilityRejected(iv.Table, "guard")
		s.logger.Warn("write rejected", "table", iv.Table, "operation", iv.Operation)
	}
}
