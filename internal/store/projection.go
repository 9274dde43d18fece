package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/golfkpi/internal/classify"
)

// ClubStat is one row of the club stats projection: every stored
// sub-session of a (club, template) folded together.
type ClubStat struct {
	Club         string                  `json:"club"`
	TemplateHash string                  `json:"template_hash"`
	Sessions     int                     `json:"sessions"`
	ShotCount    int                     `json:"shot_count"`
	ACount       int                     `json:"a_count"`
	BCount       int                     `json:"b_count"`
	CCount       int                     `json:"c_count"`
	Validity     classify.ValidityStatus `json:"validity_status"`

	// APercentage is nil when the pooled sample is insufficient.
	APercentage *float64  `json:"a_percentage"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// RefreshProjections rebuilds projection_club_stats from club_subsessions.
// The projection is disposable: it is derived only from fact tables and
// nothing reads it back into them.
func (s *Store) RefreshProjections(ctx context.Context, th classify.Thresholds) ([]ClubStat, error) {
	if err := th.Validate(); err != nil {
		return nil, fmt.Errorf("refresh projections: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT club, template_hash, COUNT(*),
		       SUM(shot_count), SUM(a_count), SUM(b_count), SUM(c_count)
		FROM club_subsessions
		GROUP BY club, template_hash
		ORDER BY club ASC, template_hash ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("refresh projections: aggregate: %w", err)
	}

	now := s.clock.Now().UTC()
	var stats []ClubStat
	for rows.Next() {
		st := ClubStat{RefreshedAt: now}
		if err := rows.Scan(&st.Club, &st.TemplateHash, &st.Sessions,
			&st.ShotCount, &st.ACount, &st.BCount, &st.CCount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("refresh projections: scan: %w", err)
		}
		st.grade(th)
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("refresh projections: %w", err)
	}
	rows.Close()

	err = s.runTx(ctx, func(t *tx) error {
		if _, err := t.exec(ctx, `DELETE FROM projection_club_stats`); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		for _, st := range stats {
			_, err := t.exec(ctx, `
				INSERT INTO projection_club_stats
				(club, template_hash, sessions, shot_count, a_count, b_count, c_count, a_percentage, refreshed_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, st.Club, st.TemplateHash, st.Sessions, st.ShotCount, st.ACount, st.BCount, st.CCount,
				nullFloat(st.APercentage), formatTime(st.RefreshedAt))
			if err != nil {
				return fmt.Errorf("insert %s/%s: %w", st.Club, st.TemplateHash, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("refresh projections: %w", err)
	}
	s.logger.Info("projections refreshed", "rows", len(stats))
	return stats, nil
}

// grade sets Validity and APercentage from the pooled counts under th.
func (st *ClubStat) grade(th classify.Thresholds) {
	st.Validity = classify.Validity(st.ShotCount, th)
	st.APercentage = nil
	if st.Validity != classify.Insufficient {
		pct := classify.Percentage(st.ACount, st.ShotCount)
		st.APercentage = &pct
	}
}

// ClearProjections empties projection_club_stats.
func (s *Store) ClearProjections(ctx context.Context) error {
	err := s.runTx(ctx, func(t *tx) error {
		_, err := t.exec(ctx, `DELETE FROM projection_club_stats`)
		return err
	})
	if err != nil {
		return fmt.Errorf("clear projections: %w", err)
	}
	return nil
}

// ClubStats reads the projection as last refreshed. Validity and A% are
// regraded from the pooled counts under th; the a_percentage column holds
// the value as of the refresh thresholds.
func (s *Store) ClubStats(ctx context.Context, th classify.Thresholds) ([]ClubStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT club, template_hash, sessions, shot_count, a_count, b_count, c_count, refreshed_at
		FROM projection_club_stats
		ORDER BY club ASC, template_hash ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("club stats: %w", err)
	}
	defer rows.Close()

	var out []ClubStat
	for rows.Next() {
		var st ClubStat
		var refreshed string
		if err := rows.Scan(&st.Club, &st.TemplateHash, &st.Sessions, &st.ShotCount,
			&st.ACount, &st.BCount, &st.CCount, &refreshed); err != nil {
			return nil, fmt.Errorf("club stats: scan: %w", err)
		}
		st.grade(th)
		if st.RefreshedAt, err = parseTime(refreshed); err != nil {
			return nil, fmt.Errorf("club stats: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("club stats: %w", err)
	}
	return out, nil
}
