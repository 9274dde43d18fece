package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/golfkpi/internal/kernel"
)

// Alias is mutable display metadata attached to a template. It is never
// part of the template's identity.
type Alias struct {
	TemplateHash string    `json:"template_hash"`
	DisplayName  string    `json:"display_name"`
	Notes        string    `json:"notes"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SetAlias creates or replaces the alias of a stored template.
func (s *Store) SetAlias(ctx context.Context, hash, displayName, notes string) (*Alias, error) {
	if strings.TrimSpace(displayName) == "" {
		return nil, fmt.Errorf("set alias: %w", kernel.Validationf("alias", "display_name", "must not be empty"))
	}
	a := &Alias{TemplateHash: hash, DisplayName: displayName, Notes: notes, UpdatedAt: s.clock.Now().UTC()}

	err := s.runTx(ctx, func(t *tx) error {
		_, err := t.exec(ctx, `
			INSERT INTO template_aliases (template_hash, display_name, notes, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (template_hash) DO UPDATE SET
				display_name = excluded.display_name,
				notes = excluded.notes,
				updated_at = excluded.updated_at
		`, a.TemplateHash, a.DisplayName, a.Notes, formatTime(a.UpdatedAt))
		if err != nil {
			return s.classify(err, "template_aliases", "UPSERT")
		}
		return nil
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("set alias: template %s: %w", hash, kernel.ErrNotFound)
		}
		return nil, fmt.Errorf("set alias: %w", err)
	}
	s.logger.Debug("alias set", "template_hash", hash, "display_name", displayName)
	return a, nil
}

// GetAlias returns the alias of a template.
func (s *Store) GetAlias(ctx context.Context, hash string) (*Alias, error) {
	a := &Alias{}
	var updated string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT template_hash, display_name, notes, updated_at
		FROM template_aliases WHERE template_hash = ?
	`), hash).Scan(&a.TemplateHash, &a.DisplayName, &a.Notes, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alias for %s: %w", hash, kernel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get alias: %w", err)
	}
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("get alias: %w", err)
	}
	return a, nil
}

// RemoveAlias deletes the alias of a template. Removing a missing alias is
// not an error.
func (s *Store) RemoveAlias(ctx context.Context, hash string) error {
	return s.runTx(ctx, func(t *tx) error {
		if _, err := t.exec(ctx, `DELETE FROM template_aliases WHERE template_hash = ?`, hash); err != nil {
			return fmt.Errorf("remove alias: %w", err)
		}
		return nil
	})
}
