package lifecycle

import (
	"context"
	"fmt"

	"github.com/roach88/golfkpi/internal/kernel"
	"github.com/roach88/golfkpi/internal/store"
)

// ScoreInput is one score entry or correction.
type ScoreInput struct {
	RoundID     string
	PlayerIndex int
	HoleNumber  int
	Strokes     int
	Putts       *int
}

// RecordScore appends a hole score. Recording a score for a hole that
// already has one is a correction: the new row supersedes the old one at
// read time and the old row stays. Scores may be recorded after the round
// is complete.
func (s *Service) RecordScore(ctx context.Context, in ScoreInput) (*store.HoleScore, error) {
	round, err := s.store.FetchRound(ctx, in.RoundID)
	if err != nil {
		return nil, fmt.Errorf("record score: %w", err)
	}
	snap, err := s.store.FetchSnapshot(ctx, round.SnapshotHash)
	if err != nil {
		return nil, fmt.Errorf("record score: %w", err)
	}

	if !onRoster(round, in.PlayerIndex) {
		return nil, fmt.Errorf("record score: %w",
			kernel.Validationf("hole score", "player_index", "player %d is not on the roster of round %s", in.PlayerIndex, in.RoundID))
	}
	if _, ok := snap.Snapshot.Hole(in.HoleNumber); !ok {
		return nil, fmt.Errorf("record score: %w",
			kernel.Validationf("hole score", "hole_number", "hole %d does not exist on a %d-hole course", in.HoleNumber, snap.Snapshot.HoleCount))
	}
	if in.Strokes < 1 {
		return nil, fmt.Errorf("record score: %w",
			kernel.Validationf("hole score", "strokes", "must be at least 1, got %d", in.Strokes))
	}
	if in.Putts != nil && (*in.Putts < 0 || *in.Putts > in.Strokes) {
		return nil, fmt.Errorf("record score: %w",
			kernel.Validationf("hole score", "putts", "must be between 0 and strokes (%d), got %d", in.Strokes, *in.Putts))
	}

	hs := store.HoleScore{
		RoundID:     in.RoundID,
		PlayerIndex: in.PlayerIndex,
		HoleNumber:  in.HoleNumber,
		Strokes:     in.Strokes,
		Putts:       in.Putts,
		RecordedAt:  s.clock.Now().UTC(),
	}
	id, err := s.store.InsertHoleScore(ctx, hs)
	if err != nil {
		return nil, fmt.Errorf("record score: %w", err)
	}
	hs.ScoreID = id

	s.logger.Debug("score recorded",
		"round_id", in.RoundID, "player_index", in.PlayerIndex, "hole", in.HoleNumber,
		"strokes", in.Strokes, "score_id", id)
	return &hs, nil
}

// CurrentScores returns the current score of every (player, hole) of a
// round that has at least one row, ordered by player then hole.
func (s *Service) CurrentScores(ctx context.Context, roundID string) ([]store.HoleScore, error) {
	if _, err := s.store.FetchRound(ctx, roundID); err != nil {
		return nil, fmt.Errorf("current scores: %w", err)
	}
	rows, err := s.store.HoleScores(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("current scores: %w", err)
	}
	current, err := ResolveLatest(rows)
	if err != nil {
		return nil, fmt.Errorf("current scores: %w", err)
	}
	return current, nil
}

func onRoster(r *store.Round, index int) bool {
	for _, p := range r.Players {
		if p.Index == index {
			return true
		}
	}
	return false
}
