package lifecycle

import (
	"context"
	"fmt"

	"github.com/roach88/golfkpi/internal/store"
)

// HoleResult is a player's current score on one hole.
type HoleResult struct {
	HoleNumber int  `json:"hole_number"`
	Par        int  `json:"par"`
	Strokes    int  `json:"strokes"`
	Putts      *int `json:"putts,omitempty"`
	ToPar      int  `json:"to_par"`
}

// PlayerCard totals one player's current scores. ToPar compares strokes
// with the par of the holes played so far.
type PlayerCard struct {
	PlayerIndex int          `json:"player_index"`
	Name        string       `json:"name"`
	Holes       []HoleResult `json:"holes"`
	HolesPlayed int          `json:"holes_played"`
	Strokes     int          `json:"strokes"`
	Putts       int          `json:"putts"`
	ToPar       int          `json:"to_par"`
}

// Scorecard is a round's resolved scores laid out against its frozen
// course snapshot.
type Scorecard struct {
	RoundID      string       `json:"round_id"`
	RoundDate    string       `json:"round_date"`
	SnapshotHash string       `json:"snapshot_hash"`
	CourseName   string       `json:"course_name"`
	TeeSet       string       `json:"tee_set"`
	CoursePar    int          `json:"course_par"`
	Complete     bool         `json:"complete"`
	Players      []PlayerCard `json:"players"`
}

// Scorecard builds the scorecard of a round from its current scores. Pars
// always come from the snapshot the round was created on.
func (s *Service) Scorecard(ctx context.Context, roundID string) (*Scorecard, error) {
	round, err := s.store.FetchRound(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("scorecard: %w", err)
	}
	snap, err := s.store.FetchSnapshot(ctx, round.SnapshotHash)
	if err != nil {
		return nil, fmt.Errorf("scorecard: %w", err)
	}
	current, err := s.CurrentScores(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("scorecard: %w", err)
	}
	complete, err := s.IsComplete(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("scorecard: %w", err)
	}

	card := &Scorecard{
		RoundID:      round.ID,
		RoundDate:    round.Date,
		SnapshotHash: round.SnapshotHash,
		CourseName:   snap.Snapshot.CourseName,
		TeeSet:       snap.Snapshot.TeeSet,
		CoursePar:    snap.Snapshot.Par(),
		Complete:     complete,
	}

	byPlayer := make(map[int][]store.HoleScore)
	for _, hs := range current {
		byPlayer[hs.PlayerIndex] = append(byPlayer[hs.PlayerIndex], hs)
	}

	for _, p := range round.Players {
		pc := PlayerCard{PlayerIndex: p.Index, Name: p.Name, Holes: []HoleResult{}}
		for _, hs := range byPlayer[p.Index] {
			hole, ok := snap.Snapshot.Hole(hs.HoleNumber)
			if !ok {
				return nil, fmt.Errorf("scorecard: round %s has a score for hole %d outside its course", roundID, hs.HoleNumber)
			}
			hr := HoleResult{
				HoleNumber: hs.HoleNumber,
				Par:        hole.Par,
				Strokes:    hs.Strokes,
				Putts:      hs.Putts,
				ToPar:      hs.Strokes - hole.Par,
			}
			pc.Holes = append(pc.Holes, hr)
			pc.HolesPlayed++
			pc.Strokes += hr.Strokes
			pc.ToPar += hr.ToPar
			if hr.Putts != nil {
				pc.Putts += *hr.Putts
			}
		}
		card.Players = append(card.Players, pc)
	}
	return card, nil
}
