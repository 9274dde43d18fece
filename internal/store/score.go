package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// HoleScore is one appended score row. Several rows may exist for the same
// (round, player, hole); later rows are corrections.
type HoleScore struct {
	ScoreID     int64     `json:"score_id"`
	RoundID     string    `json:"round_id"`
	PlayerIndex int       `json:"player_index"`
	HoleNumber  int       `json:"hole_number"`
	Strokes     int       `json:"strokes"`
	Putts       *int      `json:"putts"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// InsertHoleScore appends a score row and returns its assigned score_id.
// Score IDs increase monotonically with insertion order.
func (s *Store) InsertHoleScore(ctx context.Context, hs HoleScore) (int64, error) {
	var id int64
	err := s.runTx(ctx, func(t *tx) error {
		var putts sql.NullInt64
		if hs.Putts != nil {
			putts = sql.NullInt64{Int64: int64(*hs.Putts), Valid: true}
		}
		err := t.queryRow(ctx, `
			INSERT INTO hole_scores (round_id, player_index, hole_number, strokes, putts, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING score_id
		`, hs.RoundID, hs.PlayerIndex, hs.HoleNumber, hs.Strokes, putts, hs.RecordedAt.UnixNano()).Scan(&id)
		if err != nil {
			return s.classify(err, "hole_scores", "INSERT")
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("write hole score: %w", err)
	}
	s.metrics.ScoreRecorded()
	s.logger.Debug("hole score stored",
		"round_id", hs.RoundID, "player_index", hs.PlayerIndex, "hole", hs.HoleNumber, "score_id", id)
	return id, nil
}

// HoleScores returns every score row of a round, corrections included,
// ordered by player, hole, recorded_at, then score_id.
func (s *Store) HoleScores(ctx context.Context, roundID string) ([]HoleScore, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT score_id, round_id, player_index, hole_number, strokes, putts, recorded_at
		FROM hole_scores
		WHERE round_id = ?
		ORDER BY player_index ASC, hole_number ASC, recorded_at ASC, score_id ASC
	`), roundID)
	if err != nil {
		return nil, fmt.Errorf("query hole scores: %w", err)
	}
	defer rows.Close()

	var out []HoleScore
	for rows.Next() {
		var hs HoleScore
		var putts sql.NullInt64
		var nanos int64
		if err := rows.Scan(&hs.ScoreID, &hs.RoundID, &hs.PlayerIndex, &hs.HoleNumber, &hs.Strokes, &putts, &nanos); err != nil {
			return nil, fmt.Errorf("scan hole score: %w", err)
		}
		if putts.Valid {
			p := int(putts.Int64)
			hs.Putts = &p
		}
		hs.RecordedAt = time.Unix(0, nanos).UTC()
		out = append(out, hs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hole scores: %w", err)
	}
	return out, nil
}
