package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/golfkpi/internal/classify"
	"github.com/roach88/golfkpi/internal/kernel"
)

// Session is one practice session on a launch monitor.
type Session struct {
	ID         string    `json:"session_id"`
	Date       string    `json:"session_date"` // YYYY-MM-DD
	Source     string    `json:"source"`
	DeviceType string    `json:"device_type"`
	Location   string    `json:"location"`
	CreatedAt  time.Time `json:"created_at"`
}

// ShotRow is a validated raw shot stored with its session.
type ShotRow struct {
	Index int    `json:"shot_index"`
	Club  string `json:"club"`
	classify.Shot
}

// InsertSession stores a session, its shots, and any sub-sessions derived
// from them in one transaction: either all of them are stored or none is.
// A session ID that already exists fails with *kernel.DuplicateAnalysisError.
func (s *Store) InsertSession(ctx context.Context, sess Session, shots []ShotRow, subs ...SubSession) error {
	err := s.runTx(ctx, func(t *tx) error {
		_, err := t.exec(ctx, `
			INSERT INTO sessions (session_id, session_date, source, device_type, location, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, sess.ID, sess.Date, sess.Source, sess.DeviceType, sess.Location, formatTime(sess.CreatedAt))
		if err != nil {
			if isUniqueViolation(err) {
				return &kernel.DuplicateAnalysisError{Entity: "session", Key: sess.ID, Err: err}
			}
			return fmt.Errorf("insert session: %w", s.classify(err, "sessions", "INSERT"))
		}

		for _, shot := range shots {
			_, err := t.exec(ctx, `
				INSERT INTO shots (session_id, shot_index, club, ball_speed, smash_factor, descent_angle, spin_rate)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, sess.ID, shot.Index, shot.Club,
				nullFloat(shot.BallSpeed), nullFloat(shot.SmashFactor),
				nullFloat(shot.DescentAngle), nullFloat(shot.SpinRate))
			if err != nil {
				return fmt.Errorf("insert shot %d: %w", shot.Index, s.classify(err, "shots", "INSERT"))
			}
		}

		for _, ss := range subs {
			if ss.SessionID != sess.ID {
				return kernel.Validationf("club sub-session", "session_id",
					"sub-session %s belongs to session %q, not %q", ss.ID, ss.SessionID, sess.ID)
			}
			if err := s.insertSubSession(ctx, t, ss); err != nil {
				return fmt.Errorf("insert sub-session %s: %w", ss.Club, err)
			}
		}
		return nil
	})
	if err != nil {
		if kernel.IsDuplicate(err) {
			s.metrics.DuplicateRejected("session")
		}
		return fmt.Errorf("write session: %w", err)
	}
	for _, ss := range subs {
		s.subSessionStored(ss)
	}
	s.logger.Debug("session stored", "session_id", sess.ID, "shots", len(shots), "subsessions", len(subs))
	return nil
}

// FetchSession returns a session by ID.
func (s *Store) FetchSession(ctx context.Context, id string) (*Session, error) {
	sess := &Session{}
	var created string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT session_id, session_date, source, device_type, location, created_at
		FROM sessions WHERE session_id = ?
	`), id).Scan(&sess.ID, &sess.Date, &sess.Source, &sess.DeviceType, &sess.Location, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, kernel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch session: %w", err)
	}
	if sess.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("fetch session: %w", err)
	}
	return sess, nil
}

// SessionShots returns the stored shots of a session in shot order.
func (s *Store) SessionShots(ctx context.Context, sessionID string) ([]ShotRow, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT shot_index, club, ball_speed, smash_factor, descent_angle, spin_rate
		FROM shots
		WHERE session_id = ?
		ORDER BY shot_index ASC
	`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("session shots: %w", err)
	}
	defer rows.Close()

	var out []ShotRow
	for rows.Next() {
		var row ShotRow
		var bs, sf, da, sr sql.NullFloat64
		if err := rows.Scan(&row.Index, &row.Club, &bs, &sf, &da, &sr); err != nil {
			return nil, fmt.Errorf("session shots: scan: %w", err)
		}
		row.BallSpeed = floatPtr(bs)
		row.SmashFactor = floatPtr(sf)
		row.DescentAngle = floatPtr(da)
		row.SpinRate = floatPtr(sr)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session shots: %w", err)
	}
	return out, nil
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
