package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/golfkpi/internal/kernel"
)

// EventCompleted marks a round as complete.
const EventCompleted = "completed"

// Round is one round of golf played on a frozen course snapshot.
type Round struct {
	ID           string    `json:"round_id"`
	SnapshotHash string    `json:"snapshot_hash"`
	Date         string    `json:"round_date"` // YYYY-MM-DD
	CreatedAt    time.Time `json:"created_at"`
	Players      []Player  `json:"players"`
}

// Player is a roster entry; Index is the position in the roster.
type Player struct {
	Index int    `json:"player_index"`
	Name  string `json:"name"`
}

// RoundEvent is a lifecycle fact about a round.
type RoundEvent struct {
	ID         string    `json:"event_id"`
	RoundID    string    `json:"round_id"`
	Type       string    `json:"event_type"`
	RecordedAt time.Time `json:"recorded_at"`
}

// InsertRound stores a round and its roster in one transaction. The
// snapshot must already be stored.
func (s *Store) InsertRound(ctx context.Context, r Round) error {
	err := s.runTx(ctx, func(t *tx) error {
		_, err := t.exec(ctx, `
			INSERT INTO rounds (round_id, snapshot_hash, round_date, created_at)
			VALUES (?, ?, ?, ?)
		`, r.ID, r.SnapshotHash, r.Date, formatTime(r.CreatedAt))
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("course snapshot %s: %w", r.SnapshotHash, kernel.ErrNotFound)
			}
			if isUniqueViolation(err) {
				return &kernel.DuplicateAnalysisError{Entity: "round", Key: r.ID, Err: err}
			}
			return fmt.Errorf("insert round: %w", s.classify(err, "rounds", "INSERT"))
		}

		for _, p := range r.Players {
			_, err := t.exec(ctx, `
				INSERT INTO round_players (round_id, player_index, player_name)
				VALUES (?, ?, ?)
			`, r.ID, p.Index, p.Name)
			if err != nil {
				return fmt.Errorf("insert player %d: %w", p.Index, s.classify(err, "round_players", "INSERT"))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write round: %w", err)
	}
	s.logger.Debug("round stored", "round_id", r.ID, "snapshot_hash", r.SnapshotHash, "players", len(r.Players))
	return nil
}

// FetchRound returns a round with its roster ordered by player index.
func (s *Store) FetchRound(ctx context.Context, id string) (*Round, error) {
	r := &Round{}
	var created string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT round_id, snapshot_hash, round_date, created_at
		FROM rounds WHERE round_id = ?
	`), id).Scan(&r.ID, &r.SnapshotHash, &r.Date, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("round %s: %w", id, kernel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch round: %w", err)
	}
	if r.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("fetch round: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT player_index, player_name
		FROM round_players
		WHERE round_id = ?
		ORDER BY player_index ASC
	`), id)
	if err != nil {
		return nil, fmt.Errorf("fetch round players: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Player
		if err := rows.Scan(&p.Index, &p.Name); err != nil {
			return nil, fmt.Errorf("fetch round players: scan: %w", err)
		}
		r.Players = append(r.Players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch round players: %w", err)
	}
	return r, nil
}

// InsertRoundEvent appends a lifecycle event. A second event of the same
// type for a round fails with *kernel.DuplicateAnalysisError.
func (s *Store) InsertRoundEvent(ctx context.Context, ev RoundEvent) error {
	err := s.runTx(ctx, func(t *tx) error {
		_, err := t.exec(ctx, `
			INSERT INTO round_events (event_id, round_id, event_type, recorded_at)
			VALUES (?, ?, ?, ?)
		`, ev.ID, ev.RoundID, ev.Type, ev.RecordedAt.UnixNano())
		if err != nil {
			if isUniqueViolation(err) {
				return &kernel.DuplicateAnalysisError{
					Entity: "round event",
					Key:    fmt.Sprintf("round=%s type=%s", ev.RoundID, ev.Type),
					Err:    err,
				}
			}
			if isForeignKeyViolation(err) {
				return fmt.Errorf("round %s: %w", ev.RoundID, kernel.ErrNotFound)
			}
			return s.classify(err, "round_events", "INSERT")
		}
		return nil
	})
	if err != nil {
		if kernel.IsDuplicate(err) {
			s.metrics.DuplicateRejected("round_event")
		}
		return fmt.Errorf("write round event: %w", err)
	}
	s.logger.Debug("round event stored", "round_id", ev.RoundID, "event_type", ev.Type)
	return nil
}

// HasRoundEvent reports whether a round has an event of the given type.
func (s *Store) HasRoundEvent(ctx context.Context, roundID, eventType string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT COUNT(*) FROM round_events WHERE round_id = ? AND event_type = ?
	`), roundID, eventType).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query round events: %w", err)
	}
	return n > 0, nil
}

// RoundEvents returns the events of a round in recording order.
func (s *Store) RoundEvents(ctx context.Context, roundID string) ([]RoundEvent, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT event_id, round_id, event_type, recorded_at
		FROM round_events
		WHERE round_id = ?
		ORDER BY recorded_at ASC, event_id ASC
	`), roundID)
	if err != nil {
		return nil, fmt.Errorf("query round events: %w", err)
	}
	defer rows.Close()

	var out []RoundEvent
	for rows.Next() {
		var ev RoundEvent
		var nanos int64
		if err := rows.Scan(&ev.ID, &ev.RoundID, &ev.Type, &nanos); err != nil {
			return nil, fmt.Errorf("scan round event: %w", err)
		}
		ev.RecordedAt = time.Unix(0, nanos).UTC()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate round events: %w", err)
	}
	return out, nil
}
