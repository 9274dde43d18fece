package ingest

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/golfkpi/internal/classify"
	"github.com/roach88/golfkpi/internal/idgen"
	"github.com/roach88/golfkpi/internal/kernel"
	"github.com/roach88/golfkpi/internal/metrics"
	"github.com/roach88/golfkpi/internal/store"
	"github.com/roach88/golfkpi/internal/testutil"
)

type fixture struct {
	st       *store.Store
	analyzer *Analyzer
	metrics  *metrics.Metrics
	sevenI   string
	wedge    string
}

func setup(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := testutil.NewStepClock(testutil.Epoch, time.Second)

	st, err := store.Open(filepath.Join(t.TempDir(), "golfkpi.db"), store.WithLogger(logger), store.WithClock(c))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	seven, _, err := st.InsertTemplate(ctx, []byte(testutil.TemplateBasic))
	require.NoError(t, err)
	wedge, _, err := st.InsertTemplate(ctx, []byte(testutil.Template("PW", 100, 95)))
	require.NoError(t, err)

	m := metrics.New()
	base := []Option{WithClock(c), WithLogger(logger), WithMetrics(m)}
	a := NewAnalyzer(st, idgen.NewSequence("id"), append(base, opts...)...)
	return &fixture{st: st, analyzer: a, metrics: m, sevenI: seven.Hash, wedge: wedge.Hash}
}

var f = testutil.F

// aShot passes every 7i threshold; bShot and cShot fail on ball speed.
func aShot(club string) ShotRecord {
	return ShotRecord{Club: club, BallSpeed: f(120), SmashFactor: f(1.34), SpinRate: f(6500)}
}

func bShot(club string) ShotRecord {
	return ShotRecord{Club: club, BallSpeed: f(114), SmashFactor: f(1.34), SpinRate: f(6500)}
}

func cShot(club string) ShotRecord {
	return ShotRecord{Club: club, BallSpeed: f(100), SmashFactor: f(1.34), SpinRate: f(6500)}
}

func session(id string) SessionInput {
	return SessionInput{ID: id, Date: "2026-01-15", Source: "trackman", DeviceType: "TM4", Location: "range"}
}

func TestIngest_ClassifiesPerClub(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	records := []ShotRecord{
		aShot("7i"), aShot("7I"), bShot("7i"), cShot(" 7i "), aShot("7i"),
		{Club: "PW", BallSpeed: f(101)},
		{Club: "Driver", BallSpeed: f(160)},
	}
	report, err := fx.analyzer.Ingest(ctx, session("session-1"), records,
		map[string]string{"7i": fx.sevenI, "pw": fx.wedge})
	require.NoError(t, err)

	assert.Equal(t, "session-1", report.SessionID)
	assert.Equal(t, 7, report.Accepted)
	assert.Equal(t, 0, report.Rejected)
	assert.Equal(t, []string{"Driver"}, report.Unanalyzed)
	require.Len(t, report.SubSessions, 2)

	seven := report.SubSessions[0]
	assert.Equal(t, "7i", seven.Club)
	assert.Equal(t, fx.sevenI, seven.TemplateHash)
	assert.Equal(t, 5, seven.ShotCount)
	assert.Equal(t, 3, seven.ACount)
	assert.Equal(t, 1, seven.BCount)
	assert.Equal(t, 1, seven.CCount)
	assert.Equal(t, classify.Warning, seven.Validity)
	require.NotNil(t, seven.APercentage)
	assert.Equal(t, 60.0, *seven.APercentage)

	wedge := report.SubSessions[1]
	assert.Equal(t, "PW", wedge.Club)
	assert.Equal(t, classify.Insufficient, wedge.Validity)
	assert.Nil(t, wedge.APercentage)

	shots, err := fx.st.SessionShots(ctx, "session-1")
	require.NoError(t, err)
	assert.Len(t, shots, 7)

	stored, err := fx.st.FetchSubSession(ctx, "session-1", "7i", fx.sevenI)
	require.NoError(t, err)
	assert.Equal(t, seven.ID, stored.ID)
}

func TestIngest_RejectsBadRowsAndContinues(t *testing.T) {
	fx := setup(t)

	records := []ShotRecord{
		aShot("7i"),
		{Club: "", BallSpeed: f(120)},
		{Club: "7i", BallSpeed: f(-3)},
		{Club: "7i", DescentAngle: f(45)}, // no graded metric present
		bShot("7i"),
	}
	report, err := fx.analyzer.Ingest(context.Background(), session("session-1"), records,
		map[string]string{"7i": fx.sevenI})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Accepted)
	assert.Equal(t, 3, report.Rejected)
	require.Len(t, report.Rejections, 3)
	assert.Equal(t, 1, report.Rejections[0].Row)
	assert.Equal(t, 2, report.Rejections[1].Row)
	assert.Contains(t, report.Rejections[1].Reason, "ball_speed")
	assert.Equal(t, 3, report.Rejections[2].Row)

	require.Len(t, report.SubSessions, 1)
	assert.Equal(t, 2, report.SubSessions[0].ShotCount)

	assert.Equal(t, 2.0, promtest.ToFloat64(fx.metrics.ShotsIngested.WithLabelValues("accepted")))
	assert.Equal(t, 3.0, promtest.ToFloat64(fx.metrics.ShotsIngested.WithLabelValues("rejected")))
}

func TestIngest_GeneratesSessionID(t *testing.T) {
	fx := setup(t)
	report, err := fx.analyzer.Ingest(context.Background(), session(""), []ShotRecord{aShot("7i")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "id-1", report.SessionID)
	assert.Empty(t, report.SubSessions)
	assert.Equal(t, []string{"7i"}, report.Unanalyzed)
}

func TestIngest_UnanalyzedClubsMatchNormalized(t *testing.T) {
	fx := setup(t)
	records := []ShotRecord{aShot("7I"), aShot("7i"), aShot(" 7i "), {Club: "driver", BallSpeed: f(160)}, {Club: "Driver", BallSpeed: f(150)}}
	report, err := fx.analyzer.Ingest(context.Background(), session("session-1"), records, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Accepted)
	assert.Equal(t, []string{"7I", "driver"}, report.Unanalyzed)
}

func TestIngest_StoresSessionAndSubSessionsTogether(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	records := []ShotRecord{aShot("7i"), bShot("7i"), {Club: "PW", BallSpeed: f(101)}}
	templates := map[string]string{"7i": fx.sevenI, "PW": fx.wedge}

	report, err := fx.analyzer.Ingest(ctx, session("session-1"), records, templates)
	require.NoError(t, err)
	require.Len(t, report.SubSessions, 2)

	list, err := fx.st.ListSubSessions(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	ids := []string{list[0].ID, list[1].ID}
	assert.ElementsMatch(t, []string{report.SubSessions[0].ID, report.SubSessions[1].ID}, ids)

	// A rejected retry adds nothing.
	_, err = fx.analyzer.Ingest(ctx, session("session-1"), records, templates)
	assert.True(t, kernel.IsDuplicate(err))
	list, err = fx.st.ListSubSessions(ctx, "session-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestIngest_SessionErrors(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	bad := session("s")
	bad.Date = "yesterday"
	_, err := fx.analyzer.Ingest(ctx, bad, nil, nil)
	assert.True(t, kernel.IsValidation(err))

	noSource := session("s")
	noSource.Source = " "
	_, err = fx.analyzer.Ingest(ctx, noSource, nil, nil)
	assert.True(t, kernel.IsValidation(err))

	_, err = fx.analyzer.Ingest(ctx, session("s"), nil, map[string]string{"7i": fx.wedge})
	assert.True(t, kernel.IsValidation(err), "template for the wrong club")

	_, err = fx.analyzer.Ingest(ctx, session("s"), nil,
		map[string]string{"7i": "0000000000000000000000000000000000000000000000000000000000000000"})
	assert.True(t, kernel.IsNotFound(err))

	_, err = fx.analyzer.Ingest(ctx, session("dup"), nil, nil)
	require.NoError(t, err)
	_, err = fx.analyzer.Ingest(ctx, session("dup"), nil, nil)
	assert.True(t, kernel.IsDuplicate(err))
}

func TestAnalyzeSession_UniquenessLaw(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	records := []ShotRecord{aShot("7i"), bShot("7i"), cShot("7i")}
	_, err := fx.analyzer.Ingest(ctx, session("session-1"), records, nil)
	require.NoError(t, err)

	ss, err := fx.analyzer.AnalyzeSession(ctx, "session-1", fx.sevenI)
	require.NoError(t, err)
	assert.Equal(t, 3, ss.ShotCount)
	assert.Equal(t, classify.Insufficient, ss.Validity)

	_, err = fx.analyzer.AnalyzeSession(ctx, "session-1", fx.sevenI)
	require.Error(t, err)
	assert.True(t, kernel.IsDuplicate(err))

	// A different template for the same club is a new analysis.
	alt, _, err := fx.st.InsertTemplate(ctx, []byte(testutil.Template("7i", 125, 115)))
	require.NoError(t, err)
	other, err := fx.analyzer.AnalyzeSession(ctx, "session-1", alt.Hash)
	require.NoError(t, err)
	assert.Equal(t, 0, other.ACount)

	list, err := fx.st.ListSubSessions(ctx, "session-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestAnalyzeSession_NoShotsForClub(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	_, err := fx.analyzer.Ingest(ctx, session("session-1"), []ShotRecord{aShot("7i")}, nil)
	require.NoError(t, err)

	_, err = fx.analyzer.AnalyzeSession(ctx, "session-1", fx.wedge)
	assert.True(t, kernel.IsValidation(err))
}

func TestIngest_CustomThresholds(t *testing.T) {
	fx := setup(t, WithThresholds(classify.Thresholds{MinSample: 1, ValidSample: 2}))
	report, err := fx.analyzer.Ingest(context.Background(), session("session-1"),
		[]ShotRecord{aShot("7i"), cShot("7i")}, map[string]string{"7i": fx.sevenI})
	require.NoError(t, err)
	require.Len(t, report.SubSessions, 1)
	assert.Equal(t, classify.Valid, report.SubSessions[0].Validity)
	assert.Equal(t, 50.0, *report.SubSessions[0].APercentage)
}
