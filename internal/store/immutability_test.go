package store

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/golfkpi/internal/kernel"
	"github.com/roach88/golfkpi/internal/metrics"
	fixtures "github.com/roach88/golfkpi/internal/testutil"
)

func TestGuardStatement(t *testing.T) {
	tests := []struct {
		name  string
		query string
		table string
		op    string
	}{
		{"update", `UPDATE templates SET club = 'x'`, "templates", "UPDATE"},
		{"update lowercase", `update hole_scores set strokes = 3`, "hole_scores", "UPDATE"},
		{"update or ignore", `UPDATE OR IGNORE rounds SET round_date = ''`, "rounds", "UPDATE"},
		{"delete", `DELETE FROM sessions WHERE session_id = ?`, "sessions", "DELETE"},
		{"quoted table", `DELETE FROM "shots"`, "shots", "DELETE"},
		{"replace", `REPLACE INTO club_subsessions VALUES (1)`, "club_subsessions", "REPLACE"},
		{"insert or replace", `INSERT OR REPLACE INTO course_snapshots VALUES (1)`, "course_snapshots", "REPLACE"},
		{"upsert", `INSERT INTO round_events (event_id) VALUES (?) ON CONFLICT (event_id) DO UPDATE SET event_type = 'x'`, "round_events", "UPSERT"},
		{"truncate", `TRUNCATE TABLE round_players`, "round_players", "TRUNCATE"},
		{"drop", `DROP TABLE IF EXISTS course_snapshot_holes`, "course_snapshot_holes", "DROP TABLE"},
		{"leading comment", "-- fix\nUPDATE templates SET club = 'x'", "templates", "UPDATE"},
		{"second statement", `INSERT INTO sessions VALUES (1); DELETE FROM templates`, "templates", "DELETE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guardStatement(tt.query)
			require.Error(t, err)

			var iv *kernel.ImmutabilityViolation
			require.True(t, errors.As(err, &iv))
			assert.Equal(t, tt.table, iv.Table)
			assert.Equal(t, tt.op, iv.Operation)
		})
	}
}

func TestGuardStatement_Allows(t *testing.T) {
	allowed := []string{
		`INSERT INTO templates (template_hash) VALUES (?) ON CONFLICT (template_hash) DO NOTHING`,
		`INSERT INTO hole_scores (round_id) VALUES (?) RETURNING score_id`,
		`UPDATE template_aliases SET notes = ''`,
		`DELETE FROM projection_club_stats`,
		`INSERT INTO template_aliases (template_hash) VALUES (?) ON CONFLICT (template_hash) DO UPDATE SET notes = excluded.notes`,
		`SELECT * FROM templates`,
	}
	for _, q := range allowed {
		assert.NoError(t, guardStatement(q), q)
	}
}

// Every fact table rejects UPDATE and DELETE through the guarded Exec path,
// and the row is unchanged afterwards.
func TestImmutability_GuardPath(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		hash := mustInsertTemplate(t, s, fixtures.TemplateBasic)
		before, err := s.FetchTemplate(ctx, hash)
		require.NoError(t, err)

		_, err = s.Exec(ctx, `UPDATE templates SET canonical_json = '{}' WHERE template_hash = ?`, hash)
		require.Error(t, err)
		assert.True(t, kernel.IsImmutability(err))

		_, err = s.Exec(ctx, `DELETE FROM templates WHERE template_hash = ?`, hash)
		require.Error(t, err)
		assert.True(t, kernel.IsImmutability(err))

		after, err := s.FetchTemplate(ctx, hash)
		require.NoError(t, err)
		assert.Equal(t, string(before.Canonical), string(after.Canonical))
	})
}

// Writes that bypass the guard still hit the triggers.
func TestImmutability_TriggerPath(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		tmpl := mustInsertTemplate(t, s, fixtures.TemplateBasic)
		snap := mustInsertSnapshot(t, s, fixtures.Snapshot("Trigger Hills", 9))
		mustInsertSession(t, s, "session-1", ShotRow{Index: 0, Club: "7i"})

		stmts := []struct {
			table string
			query string
			arg   any
		}{
			{"templates", `UPDATE templates SET club = 'hacked' WHERE template_hash = ?`, tmpl},
			{"templates", `DELETE FROM templates WHERE template_hash = ?`, tmpl},
			{"course_snapshots", `UPDATE course_snapshots SET canonical_json = '{}' WHERE snapshot_hash = ?`, snap},
			{"course_snapshot_holes", `DELETE FROM course_snapshot_holes WHERE snapshot_hash = ?`, snap},
			{"sessions", `UPDATE sessions SET source = 'x' WHERE session_id = ?`, "session-1"},
			{"shots", `DELETE FROM shots WHERE session_id = ?`, "session-1"},
		}

		for _, st := range stmts {
			_, err := s.db.ExecContext(ctx, s.dialect.rebind(st.query), st.arg)
			require.Error(t, err, st.query)

			err = s.classify(err, st.table, statementVerb(st.query))
			var iv *kernel.ImmutabilityViolation
			require.True(t, errors.As(err, &iv), "query %q: %v", st.query, err)
			assert.Equal(t, st.table, iv.Table)
		}

		after, err := s.FetchTemplate(ctx, tmpl)
		require.NoError(t, err)
		assert.Equal(t, fixtures.TemplateBasicHash, after.Hash)
		assert.Equal(t, "7i", after.Template.Club)
		assert.Equal(t, 9, countRows(t, s, "course_snapshot_holes"))
		assert.Equal(t, 1, countRows(t, s, "shots"))
	})
}

func TestImmutability_MutableTablesAccept(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	hash := mustInsertTemplate(t, s, fixtures.TemplateBasic)
	_, err := s.SetAlias(ctx, hash, "baseline", "")
	require.NoError(t, err)

	_, err = s.Exec(ctx, `UPDATE template_aliases SET notes = ? WHERE template_hash = ?`, "edited", hash)
	require.NoError(t, err)

	a, err := s.GetAlias(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, "edited", a.Notes)
}

func TestImmutability_Metrics(t *testing.T) {
	m := metrics.New()
	s := setupTestStore(t, WithMetrics(m))
	ctx := context.Background()
	hash := mustInsertTemplate(t, s, fixtures.TemplateBasic)

	_, err := s.Exec(ctx, `DELETE FROM templates WHERE template_hash = ?`, hash)
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImmutabilityRejections.WithLabelValues("templates", "guard")))

	_, err = s.db.ExecContext(ctx, `DELETE FROM templates WHERE template_hash = ?`, hash)
	require.Error(t, err)
	_ = s.classify(err, "templates", "DELETE")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImmutabilityRejections.WithLabelValues("templates", "trigger")))
}

func TestTriggerViolation_Messages(t *testing.T) {
	tests := []struct {
		msg   string
		table string
	}{
		{"immutability violation: hole_scores", "hole_scores"},
		{"constraint failed: immutability violation: rounds (1811)", "rounds"},
	}
	for _, tt := range tests {
		table, ok := triggerViolation(errors.New(tt.msg))
		require.True(t, ok, tt.msg)
		assert.Equal(t, tt.table, table)
	}

	_, ok := triggerViolation(errors.New("UNIQUE constraint failed"))
	assert.False(t, ok)
}
