// Package kernel defines the error taxonomy shared by every layer of the
// governance kernel.
//
// Each error kind is a struct carrying the entity and field context a caller
// needs to act on it. Wrapped errors are matched with errors.As, so the
// IsXxx helpers work regardless of how many fmt.Errorf("...: %w") layers sit
// on top.
package kernel

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by read operations when no row matches the key.
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed or incomplete input: a template or
// course snapshot that fails its schema, a shot record with no usable
// metrics, a score for a hole that does not exist.
//
// Validation failures are local: the offending record is rejected and
// nothing is stored for it.
type ValidationError struct {
	// Entity is the kind of record being validated ("template", "shot", ...).
	Entity string

	// Field is the offending field path, empty for whole-record problems.
	Field string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *ValidationError) Error() string {
	var msg string
	if e.Field != "" {
		msg = fmt.Sprintf("invalid %s: %s: %s", e.Entity, e.Field, e.Message)
	} else {
		msg = fmt.Sprintf("invalid %s: %s", e.Entity, e.Message)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validationf builds a ValidationError with a formatted message.
func Validationf(entity, field, format string, args ...any) *ValidationError {
	return &ValidationError{Entity: entity, Field: field, Message: fmt.Sprintf(format, args...)}
}

// ImmutabilityViolation reports an attempt to UPDATE or DELETE a stored
// fact. It is always fatal to the attempted operation.
type ImmutabilityViolation struct {
	Table     string
	Operation string
	Err       error
}

func (e *ImmutabilityViolation) Error() string {
	op := e.Operation
	if op == "" {
		op = "mutation"
	}
	return fmt.Sprintf("immutability violation: %s on %s rejected", op, e.Table)
}

func (e *ImmutabilityViolation) Unwrap() error {
	return e.Err
}

// DuplicateAnalysisError reports a write that collides with an existing
// derived fact: a second sub-session for the same (session, club,
// template_hash), or a second completion event for a round. It signals a
// caller logic error and is never retried.
type DuplicateAnalysisError struct {
	Entity string
	Key    string
	Err    error
}

func (e *DuplicateAnalysisError) Error() string {
	return fmt.Sprintf("duplicate %s: %s already exists", e.Entity, e.Key)
}

func (e *DuplicateAnalysisError) Unwrap() error {
	return e.Err
}

// CorrectionOrderingAmbiguity reports two score corrections for the same
// (round, player, hole) that share both recorded_at and score_id. Score IDs
// are monotonic, so this is an invariant breach, not a user error.
type CorrectionOrderingAmbiguity struct {
	RoundID     string
	PlayerIndex int
	HoleNumber  int
	ScoreID     int64
	RecordedAt  time.Time
}

func (e *CorrectionOrderingAmbiguity) Error() string {
	return fmt.Sprintf("correction ordering ambiguity: round %s player %d hole %d has two rows with score_id=%d recorded_at=%s",
		e.RoundID, e.PlayerIndex, e.HoleNumber, e.ScoreID, e.RecordedAt.UTC().Format(time.RFC3339Nano))
}

// HashMismatchError is produced only by out-of-band integrity audits, when
// recomputing the hash of stored canonical bytes disagrees with the stored
// identity.
type HashMismatchError struct {
	Entity   string
	Stored   string
	Computed string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("hash mismatch for %s: stored %s, computed %s", e.Entity, e.Stored, e.Computed)
}

// IsValidation returns true if err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsImmutability returns true if err is or wraps an ImmutabilityViolation.
func IsImmutability(err error) bool {
	var iv *ImmutabilityViolation
	return errors.As(err, &iv)
}

// IsDuplicate returns true if err is or wraps a DuplicateAnalysisError.
func IsDuplicate(err error) bool {
	var de *DuplicateAnalysisError
	return errors.As(err, &de)
}

// IsOrderingAmbiguity returns true if err is or wraps a CorrectionOrderingAmbiguity.
func IsOrderingAmbiguity(err error) bool {
	var oa *CorrectionOrderingAmbiguity
	return errors.As(err, &oa)
}

// IsHashMismatch returns true if err is or wraps a HashMismatchError.
func IsHashMismatch(err error) bool {
	var hm *HashMismatchError
	return errors.As(err, &hm)
}

// IsNotFound returns true if err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
