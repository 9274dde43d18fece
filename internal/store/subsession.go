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

// SubSession is the stored classification summary of one club's shots in
// one session under one template.
type SubSession struct {
	ID           string `json:"subsession_id"`
	SessionID    string `json:"session_id"`
	Club         string `json:"club"`
	TemplateHash string `json:"template_hash"`
	classify.Summary
	AnalyzedAt time.Time `json:"analyzed_at"`
}

func (ss SubSession) key() string {
	return fmt.Sprintf("session=%s club=%s template=%s", ss.SessionID, ss.Club, ss.TemplateHash)
}

// InsertSubSession stores a sub-session. A second sub-session for the same
// (session, club, template) fails with *kernel.DuplicateAnalysisError;
// stored analyses are never replaced.
func (s *Store) InsertSubSession(ctx context.Context, ss SubSession) error {
	err := s.runTx(ctx, func(t *tx) error {
		return s.insertSubSession(ctx, t, ss)
	})
	if err != nil {
		if kernel.IsDuplicate(err) {
			s.metrics.DuplicateRejected("club_subsession")
		}
		return fmt.Errorf("write sub-session: %w", err)
	}
	s.subSessionStored(ss)
	return nil
}

func (s *Store) insertSubSession(ctx context.Context, t *tx, ss SubSession) error {
	_, err := t.exec(ctx, `
		INSERT INTO club_subsessions (
			subsession_id, session_id, club, template_hash,
			shot_count, a_count, b_count, c_count, validity_status, a_percentage,
			avg_ball_speed, avg_smash_factor, avg_descent_angle, avg_spin_rate,
			analyzed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ss.ID, ss.SessionID, ss.Club, ss.TemplateHash,
		ss.ShotCount, ss.ACount, ss.BCount, ss.CCount, string(ss.Validity), nullFloat(ss.APercentage),
		nullFloat(ss.AvgBallSpeed), nullFloat(ss.AvgSmashFactor), nullFloat(ss.AvgDescentAngle), nullFloat(ss.AvgSpinRate),
		formatTime(ss.AnalyzedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &kernel.DuplicateAnalysisError{Entity: "club sub-session", Key: ss.key(), Err: err}
		}
		return s.classify(err, "club_subsessions", "INSERT")
	}
	return nil
}

func (s *Store) subSessionStored(ss SubSession) {
	s.metrics.SubSessionStored(string(ss.Validity))
	s.logger.Debug("sub-session stored",
		"session_id", ss.SessionID, "club", ss.Club, "template_hash", ss.TemplateHash,
		"validity", ss.Validity, "shots", ss.ShotCount)
}

const subSessionColumns = `
	subsession_id, session_id, club, template_hash,
	shot_count, a_count, b_count, c_count, validity_status, a_percentage,
	avg_ball_speed, avg_smash_factor, avg_descent_angle, avg_spin_rate,
	analyzed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubSession(r rowScanner) (SubSession, error) {
	var ss SubSession
	var validity, analyzed string
	var aPct, bs, sf, da, sr sql.NullFloat64
	err := r.Scan(&ss.ID, &ss.SessionID, &ss.Club, &ss.TemplateHash,
		&ss.ShotCount, &ss.ACount, &ss.BCount, &ss.CCount, &validity, &aPct,
		&bs, &sf, &da, &sr, &analyzed)
	if err != nil {
		return SubSession{}, err
	}
	ss.Validity = classify.ValidityStatus(validity)
	ss.APercentage = floatPtr(aPct)
	ss.AvgBallSpeed = floatPtr(bs)
	ss.AvgSmashFactor = floatPtr(sf)
	ss.AvgDescentAngle = floatPtr(da)
	ss.AvgSpinRate = floatPtr(sr)
	if ss.AnalyzedAt, err = parseTime(analyzed); err != nil {
		return SubSession{}, err
	}
	return ss, nil
}

// FetchSubSession returns the sub-session for (session, club, template).
func (s *Store) FetchSubSession(ctx context.Context, sessionID, club, templateHash string) (*SubSession, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT `+subSessionColumns+`
		FROM club_subsessions
		WHERE session_id = ? AND club = ? AND template_hash = ?
	`), sessionID, club, templateHash)

	ss, err := scanSubSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sub-session session=%s club=%s template=%s: %w",
			sessionID, club, templateHash, kernel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch sub-session: %w", err)
	}
	return &ss, nil
}

// ListSubSessions returns the sub-sessions of a session ordered by club,
// then template hash.
func (s *Store) ListSubSessions(ctx context.Context, sessionID string) ([]SubSession, error) {
	return s.querySubSessions(ctx, `
		SELECT `+subSessionColumns+`
		FROM club_subsessions
		WHERE session_id = ?
		ORDER BY club ASC, template_hash ASC
	`, sessionID)
}

// AllSubSessions returns every stored sub-session ordered by club,
// template hash, then ID.
func (s *Store) AllSubSessions(ctx context.Context) ([]SubSession, error) {
	return s.querySubSessions(ctx, `
		SELECT `+subSessionColumns+`
		FROM club_subsessions
		ORDER BY club ASC, template_hash ASC, subsession_id ASC
	`)
}

func (s *Store) querySubSessions(ctx context.Context, query string, args ...any) ([]SubSession, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query sub-sessions: %w", err)
	}
	defer rows.Close()

	var out []SubSession
	for rows.Next() {
		ss, err := scanSubSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sub-session: %w", err)
		}
		out = append(out, ss)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sub-sessions: %w", err)
	}
	return out, nil
}
