package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/golfkpi/internal/kernel"
	"github.com/roach88/golfkpi/internal/store"
	"github.com/roach88/golfkpi/internal/testutil"
)

func row(id int64, player, hole, strokes int, at time.Duration) store.HoleScore {
	return store.HoleScore{
		ScoreID:     id,
		RoundID:     "round-1",
		PlayerIndex: player,
		HoleNumber:  hole,
		Strokes:     strokes,
		RecordedAt:  testutil.Epoch.Add(at),
	}
}

func TestResolveLatest_GreatestRecordedAtWins(t *testing.T) {
	rows := []store.HoleScore{
		row(1, 0, 1, 6, 0),
		row(2, 0, 1, 5, time.Minute),
		row(3, 0, 1, 4, 2*time.Minute),
	}
	got, err := ResolveLatest(rows)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].ScoreID)
}

func TestResolveLatest_RecordedAtBeatsScoreID(t *testing.T) {
	// A row with a higher score_id but an earlier timestamp loses.
	rows := []store.HoleScore{
		row(1, 0, 1, 4, time.Minute),
		row(2, 0, 1, 7, 0),
	}
	got, err := ResolveLatest(rows)
	require.NoError(t, err)
	assert.Equal(t, 4, got[0].Strokes)
}

func TestResolveLatest_TieBreaksOnScoreID(t *testing.T) {
	rows := []store.HoleScore{
		row(7, 0, 1, 4, 0),
		row(9, 0, 1, 5, 0),
		row(8, 0, 1, 6, 0),
	}
	got, err := ResolveLatest(rows)
	require.NoError(t, err)
	assert.Equal(t, int64(9), got[0].ScoreID)
}

func TestResolveLatest_OrderIndependent(t *testing.T) {
	rows := []store.HoleScore{
		row(1, 0, 1, 6, 0),
		row(2, 1, 1, 5, 0),
		row(3, 0, 1, 4, time.Second),
		row(4, 0, 2, 3, 0),
		row(5, 1, 1, 4, 0),
	}

	want, err := ResolveLatest(rows)
	require.NoError(t, err)

	// Every rotation of the input resolves identically.
	for shift := 1; shift < len(rows); shift++ {
		rotated := append(append([]store.HoleScore{}, rows[shift:]...), rows[:shift]...)
		got, err := ResolveLatest(rotated)
		require.NoError(t, err)
		assert.Equal(t, want, got, "shift %d", shift)
	}

	require.Len(t, want, 3)
	assert.Equal(t, int64(3), want[0].ScoreID)
	assert.Equal(t, int64(4), want[1].ScoreID)
	assert.Equal(t, int64(5), want[2].ScoreID)
}

func TestResolveLatest_Ambiguity(t *testing.T) {
	rows := []store.HoleScore{
		row(4, 0, 3, 5, 0),
		row(4, 0, 3, 6, 0),
	}
	_, err := ResolveLatest(rows)
	require.Error(t, err)
	assert.True(t, kernel.IsOrderingAmbiguity(err))

	var amb *kernel.CorrectionOrderingAmbiguity
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, 3, amb.HoleNumber)
	assert.Equal(t, int64(4), amb.ScoreID)
}

func TestResolveLatest_Empty(t *testing.T) {
	got, err := ResolveLatest(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
