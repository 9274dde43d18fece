package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/golfkpi/internal/classify"
	"github.com/roach88/golfkpi/internal/kernel"
	fixtures "github.com/roach88/golfkpi/internal/testutil"
)

func TestInsertSession_WithShots(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		mustInsertSession(t, s, "session-1",
			ShotRow{Index: 0, Club: "7i", Shot: classify.Shot{BallSpeed: fixtures.F(118.5), SpinRate: fixtures.F(6900)}},
			ShotRow{Index: 1, Club: "7i", Shot: classify.Shot{SmashFactor: fixtures.F(1.31)}},
		)

		sess, err := s.FetchSession(ctx, "session-1")
		require.NoError(t, err)
		assert.Equal(t, "2026-01-15", sess.Date)
		assert.Equal(t, "trackman", sess.Source)
		assert.True(t, sess.CreatedAt.Equal(fixtures.Epoch))

		shots, err := s.SessionShots(ctx, "session-1")
		require.NoError(t, err)
		require.Len(t, shots, 2)
		require.NotNil(t, shots[0].BallSpeed)
		assert.Equal(t, 118.5, *shots[0].BallSpeed)
		assert.Nil(t, shots[0].SmashFactor)
		assert.Nil(t, shots[1].BallSpeed)
		assert.Equal(t, 1.31, *shots[1].SmashFactor)
	})
}

func TestInsertSession_DuplicateID(t *testing.T) {
	s := setupTestStore(t)
	mustInsertSession(t, s, "session-1")

	err := s.InsertSession(context.Background(), Session{ID: "session-1", Date: "2026-01-16", Source: "x", CreatedAt: time.Now()}, nil)
	require.Error(t, err)
	assert.True(t, kernel.IsDuplicate(err))
}

func TestInsertSession_AtomicOnShotFailure(t *testing.T) {
	s := setupTestStore(t)
	err := s.InsertSession(context.Background(), Session{ID: "session-1", Date: "2026-01-15", Source: "x", CreatedAt: time.Now()},
		[]ShotRow{{Index: 0, Club: "7i"}, {Index: 0, Club: "7i"}})
	require.Error(t, err)

	assert.Equal(t, 0, countRows(t, s, "sessions"))
	assert.Equal(t, 0, countRows(t, s, "shots"))
}

func TestInsertSession_WithSubSessions(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		th := classify.DefaultThresholds()
		tmpl := mustInsertTemplate(t, s, fixtures.TemplateBasic)
		sess := Session{ID: "session-1", Date: "2026-01-15", Source: "trackman", CreatedAt: fixtures.Epoch}

		require.NoError(t, s.InsertSession(ctx, sess, []ShotRow{{Index: 0, Club: "7i"}},
			subSession("ss-1", "session-1", tmpl, 3, 2, 1, th)))

		subs, err := s.ListSubSessions(ctx, "session-1")
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, 6, subs[0].ShotCount)
	})
}

func TestInsertSession_AtomicOnSubSessionFailure(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	th := classify.DefaultThresholds()
	tmpl := mustInsertTemplate(t, s, fixtures.TemplateBasic)
	sess := Session{ID: "session-1", Date: "2026-01-15", Source: "trackman", CreatedAt: fixtures.Epoch}
	shots := []ShotRow{{Index: 0, Club: "7i"}}

	// The second sub-session repeats (session, club, template).
	err := s.InsertSession(ctx, sess, shots,
		subSession("ss-1", "session-1", tmpl, 3, 2, 1, th),
		subSession("ss-2", "session-1", tmpl, 1, 1, 1, th))
	require.Error(t, err)
	assert.Equal(t, 0, countRows(t, s, "sessions"))
	assert.Equal(t, 0, countRows(t, s, "shots"))
	assert.Equal(t, 0, countRows(t, s, "club_subsessions"))

	// Nothing was left behind, so the same session ID can be written again.
	require.NoError(t, s.InsertSession(ctx, sess, shots, subSession("ss-1", "session-1", tmpl, 3, 2, 1, th)))
	assert.Equal(t, 1, countRows(t, s, "club_subsessions"))
}

func TestInsertSession_SubSessionForOtherSession(t *testing.T) {
	s := setupTestStore(t)
	tmpl := mustInsertTemplate(t, s, fixtures.TemplateBasic)

	err := s.InsertSession(context.Background(),
		Session{ID: "session-1", Date: "2026-01-15", Source: "trackman", CreatedAt: fixtures.Epoch}, nil,
		subSession("ss-1", "session-2", tmpl, 3, 2, 1, classify.DefaultThresholds()))
	require.Error(t, err)
	assert.True(t, kernel.IsValidation(err))
	assert.Equal(t, 0, countRows(t, s, "sessions"))
}

func TestFetchSession_NotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.FetchSession(context.Background(), "missing")
	assert.True(t, kernel.IsNotFound(err))
}

func subSession(id, sessionID, tmpl string, a, b, c int, th classify.Thresholds) SubSession {
	total := a + b + c
	sum := classify.Summary{ShotCount: total, ACount: a, BCount: b, CCount: c, Validity: classify.Validity(total, th)}
	if sum.Validity != classify.Insufficient {
		pct := classify.Percentage(a, total)
		sum.APercentage = &pct
	}
	return SubSession{ID: id, SessionID: sessionID, Club: "7i", TemplateHash: tmpl, Summary: sum, AnalyzedAt: fixtures.Epoch}
}

func TestInsertSubSession_UniquenessLaw(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		tmpl := mustInsertTemplate(t, s, fixtures.TemplateBasic)
		mustInsertSession(t, s, "session-1")
		th := classify.DefaultThresholds()

		require.NoError(t, s.InsertSubSession(ctx, subSession("ss-1", "session-1", tmpl, 3, 2, 1, th)))

		err := s.InsertSubSession(ctx, subSession("ss-2", "session-1", tmpl, 1, 1, 1, th))
		require.Error(t, err)
		assert.True(t, kernel.IsDuplicate(err), "got %v", err)

		got, err := s.FetchSubSession(ctx, "session-1", "7i", tmpl)
		require.NoError(t, err)
		assert.Equal(t, "ss-1", got.ID)
		assert.Equal(t, 6, got.ShotCount)
		assert.Equal(t, classify.Warning, got.Validity)
		require.NotNil(t, got.APercentage)
		assert.Equal(t, 50.0, *got.APercentage)
	})
}

func TestInsertSubSession_SameClubOtherTemplate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	t1 := mustInsertTemplate(t, s, fixtures.Template("7i", 118, 112))
	t2 := mustInsertTemplate(t, s, fixtures.Template("7i", 120, 112))
	mustInsertSession(t, s, "session-1")
	th := classify.DefaultThresholds()

	require.NoError(t, s.InsertSubSession(ctx, subSession("ss-1", "session-1", t1, 1, 1, 1, th)))
	require.NoError(t, s.InsertSubSession(ctx, subSession("ss-2", "session-1", t2, 0, 2, 1, th)))

	list, err := s.ListSubSessions(ctx, "session-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestInsertSubSession_ConstraintChecks(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	tmpl := mustInsertTemplate(t, s, fixtures.TemplateBasic)
	mustInsertSession(t, s, "session-1")
	th := classify.DefaultThresholds()

	bad := subSession("ss-1", "session-1", tmpl, 3, 2, 1, th)
	bad.ShotCount = 7
	err := s.InsertSubSession(ctx, bad)
	require.Error(t, err)
	assert.True(t, kernel.IsValidation(err), "counts must add up: %v", err)

	insufficientWithPct := subSession("ss-2", "session-1", tmpl, 1, 1, 0, th)
	pct := 50.0
	insufficientWithPct.APercentage = &pct
	err = s.InsertSubSession(ctx, insufficientWithPct)
	require.Error(t, err)
	assert.True(t, kernel.IsValidation(err))

	unknownTemplate := subSession("ss-3", "session-1", "0000000000000000000000000000000000000000000000000000000000000000", 1, 0, 0, th)
	err = s.InsertSubSession(ctx, unknownTemplate)
	require.Error(t, err)
	assert.True(t, kernel.IsValidation(err))

	assert.Equal(t, 0, countRows(t, s, "club_subsessions"))
}
