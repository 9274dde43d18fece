package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/golfkpi/internal/classify"
	fixtures "github.com/roach88/golfkpi/internal/testutil"
)

func TestRefreshProjections(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		th := classify.DefaultThresholds()
		tmpl := mustInsertTemplate(t, s, fixtures.TemplateBasic)
		mustInsertSession(t, s, "session-1")
		mustInsertSession(t, s, "session-2")

		require.NoError(t, s.InsertSubSession(ctx, subSession("ss-1", "session-1", tmpl, 2, 1, 0, th)))
		require.NoError(t, s.InsertSubSession(ctx, subSession("ss-2", "session-2", tmpl, 1, 1, 1, th)))

		stats, err := s.RefreshProjections(ctx, th)
		require.NoError(t, err)
		require.Len(t, stats, 1)

		st := stats[0]
		assert.Equal(t, "7i", st.Club)
		assert.Equal(t, 2, st.Sessions)
		assert.Equal(t, 6, st.ShotCount)
		assert.Equal(t, 3, st.ACount)
		assert.Equal(t, classify.Warning, st.Validity)
		require.NotNil(t, st.APercentage)
		assert.Equal(t, 50.0, *st.APercentage)

		read, err := s.ClubStats(ctx, th)
		require.NoError(t, err)
		require.Len(t, read, 1)
		assert.Equal(t, st.ShotCount, read[0].ShotCount)
		assert.Equal(t, 50.0, *read[0].APercentage)

		// Refresh is repeatable and never touches the facts.
		_, err = s.RefreshProjections(ctx, th)
		require.NoError(t, err)
		assert.Equal(t, 1, countRows(t, s, "projection_club_stats"))
		assert.Equal(t, 2, countRows(t, s, "club_subsessions"))

		require.NoError(t, s.ClearProjections(ctx))
		read, err = s.ClubStats(ctx, th)
		require.NoError(t, err)
		assert.Empty(t, read)
		assert.Equal(t, 2, countRows(t, s, "club_subsessions"))
	})
}

func TestRefreshProjections_InsufficientPool(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	th := classify.DefaultThresholds()
	tmpl := mustInsertTemplate(t, s, fixtures.TemplateBasic)
	mustInsertSession(t, s, "session-1")
	require.NoError(t, s.InsertSubSession(ctx, subSession("ss-1", "session-1", tmpl, 2, 1, 0, th)))

	stats, err := s.RefreshProjections(ctx, th)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, classify.Insufficient, stats[0].Validity)
	assert.Nil(t, stats[0].APercentage)
}

func TestRefreshProjections_InvalidThresholds(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.RefreshProjections(context.Background(), classify.Thresholds{MinSample: 10, ValidSample: 5})
	assert.Error(t, err)
}

func TestClubStats_RegradesUnderReadThresholds(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	tmpl := mustInsertTemplate(t, s, fixtures.TemplateBasic)
	mustInsertSession(t, s, "session-1")
	mustInsertSession(t, s, "session-2")
	require.NoError(t, s.InsertSubSession(ctx, subSession("ss-1", "session-1", tmpl, 2, 1, 0, classify.DefaultThresholds())))
	require.NoError(t, s.InsertSubSession(ctx, subSession("ss-2", "session-2", tmpl, 1, 1, 1, classify.DefaultThresholds())))

	stats, err := s.RefreshProjections(ctx, classify.DefaultThresholds())
	require.NoError(t, err)
	require.Len(t, stats, 1)
	require.NotNil(t, stats[0].APercentage)

	strict, err := s.ClubStats(ctx, classify.Thresholds{MinSample: 10, ValidSample: 20})
	require.NoError(t, err)
	require.Len(t, strict, 1)
	assert.Equal(t, classify.Insufficient, strict[0].Validity)
	assert.Nil(t, strict[0].APercentage)

	loose, err := s.ClubStats(ctx, classify.Thresholds{MinSample: 1, ValidSample: 6})
	require.NoError(t, err)
	require.Len(t, loose, 1)
	assert.Equal(t, classify.Valid, loose[0].Validity)
	require.NotNil(t, loose[0].APercentage)
	assert.Equal(t, 50.0, *loose[0].APercentage)
}
