package lifecycle

import (
	"sort"

	"github.com/roach88/golfkpi/internal/kernel"
	"github.com/roach88/golfkpi/internal/store"
)

// scoreKey identifies the slot a score row belongs to.
type scoreKey struct {
	round  string
	player int
	hole   int
}

// ResolveLatest folds score rows into the current score per (round,
// player, hole) in a single pass, in any input order. The winner is the
// row with the greatest recorded_at; equal recorded_at is broken by the
// greater score_id. Two rows of one slot sharing both fail with
// *kernel.CorrectionOrderingAmbiguity.
//
// The result is ordered by round, player, then hole.
func ResolveLatest(rows []store.HoleScore) ([]store.HoleScore, error) {
	latest := make(map[scoreKey]store.HoleScore, len(rows))

	for _, row := range rows {
		key := scoreKey{round: row.RoundID, player: row.PlayerIndex, hole: row.HoleNumber}
		cur, ok := latest[key]
		if !ok {
			latest[key] = row
			continue
		}

		switch {
		case row.RecordedAt.After(cur.RecordedAt):
			latest[key] = row
		case row.RecordedAt.Before(cur.RecordedAt):
		case row.ScoreID > cur.ScoreID:
			latest[key] = row
		case row.ScoreID < cur.ScoreID:
		default:
			return nil, &kernel.CorrectionOrderingAmbiguity{
				RoundID:     row.RoundID,
				PlayerIndex: row.PlayerIndex,
				HoleNumber:  row.HoleNumber,
				ScoreID:     row.ScoreID,
				RecordedAt:  row.RecordedAt,
			}
		}
	}

	out := make([]store.HoleScore, 0, len(latest))
	for _, row := range latest {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.RoundID != b.RoundID {
			return a.RoundID < b.RoundID
		}
		if a.PlayerIndex != b.PlayerIndex {
			return a.PlayerIndex < b.PlayerIndex
		}
		return a.HoleNumber < b.HoleNumber
	})
	return out, nil
}
