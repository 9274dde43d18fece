package harness

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/golfkpi/internal/canon"
	"github.com/roach88/golfkpi/internal/kernel"
)

func mustParse(t *testing.T, doc string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(doc))
	require.NoError(t, err)
	return s
}

func TestRun_Scenarios(t *testing.T) {
	paths, err := ScenarioFiles("testdata/scenarios")
	require.NoError(t, err)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Trace, len(s.Flow))
		})
	}
}

func TestRun_Minimal(t *testing.T) {
	result, err := Run(mustParse(t, minimalScenario))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 1)
	ev := result.Trace[0]
	assert.Equal(t, 1, ev.Seq)
	assert.Equal(t, "classify.shot", ev.Op)
	assert.Equal(t, CaseSuccess, ev.Case)
	assert.Equal(t, "A", ev.Result["grade"])
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/session_ingest.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := CanonicalTrace(s.Name, first.Trace)
	require.NoError(t, err)
	b, err := CanonicalTrace(s.Name, second.Trace)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_FreshStorePerRun(t *testing.T) {
	doc := `
name: fresh
description: a template stored by one run is absent from the next
templates:
  t:
    schema_version: "1.0"
    club: 7i
    metrics:
      ball_speed: { direction: higher_is_better, a_min: 118, b_min: 112 }
    aggregation_method: worst_metric
    created_at: "2026-01-15T00:00:00Z"
flow:
  - op: template.add
    args: { template: t }
    expect:
      case: Success
      result: { inserted: true }
assertions:
  - type: trace_count
    op: template.add
    count: 1
`
	s := mustParse(t, doc)
	for i := 0; i < 2; i++ {
		result, err := Run(s)
		require.NoError(t, err)
		assert.True(t, result.Pass, "run %d: %v", i, result.Errors)
	}
}

func TestRun_UnexpectedCaseIsReported(t *testing.T) {
	doc := `
name: wrong_case
description: expects a validation error from a gradable shot
templates:
  t:
    schema_version: "1.0"
    club: 7i
    metrics:
      ball_speed: { direction: higher_is_better, a_min: 118, b_min: 112 }
    aggregation_method: worst_metric
    created_at: "2026-01-15T00:00:00Z"
flow:
  - op: classify.shot
    args: { template: t, shot: { ball_speed: 120 } }
    expect:
      case: ValidationError
  - op: classify.shot
    args: { template: t, shot: { ball_speed: 100 } }
    expect:
      case: Success
      result: { grade: B }
assertions:
  - type: trace_count
    op: classify.shot
    count: 2
`
	result, err := Run(mustParse(t, doc))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expected case ValidationError, got Success")
	assert.Contains(t, result.Errors[1], `result "grade" = C, want B`)

	// The trace records what happened, not what was expected.
	assert.Equal(t, CaseSuccess, result.Trace[0].Case)
	assert.Equal(t, "C", result.Trace[1].Result["grade"])
}

func TestRun_FailedStepHasNoResult(t *testing.T) {
	doc := `
name: immutable
description: fact tables reject updates
flow:
  - op: store.exec
    args: { sql: "UPDATE shots SET club = 'X'" }
    expect:
      case: ImmutabilityViolation
assertions:
  - type: trace_contains
    op: store.exec
    case: ImmutabilityViolation
`
	result, err := Run(mustParse(t, doc))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Nil(t, result.Trace[0].Result)
}

func TestRun_FailingAssertion(t *testing.T) {
	doc := minimalScenario + `
  - type: trace_contains
    op: template.add
`
	result, err := Run(mustParse(t, doc))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "op template.add")
}

func TestRun_ArgumentErrorsAbort(t *testing.T) {
	tests := []struct {
		name string
		step string
		want string
	}{
		{"unknown fixture", "{op: template.add, args: {template: ghost}}", `no template fixture named "ghost"`},
		{"missing arg", "{op: round.score, args: {round: r1, player: 0, hole: 1}}", `argument "strokes": is required`},
		{"wrong type", "{op: store.exec, args: {sql: 7}}", "must be a string"},
		{"non-integer", "{op: round.score, args: {round: r1, player: 0, hole: 1.5, strokes: 4}}", "must be an integer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := fmt.Sprintf("name: n\ndescription: d\nflow: [%s]\nassertions: [{type: trace_count, op: x, count: 0}]\n", tt.step)
			_, err := Run(mustParse(t, doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCaseOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, CaseSuccess},
		{"validation", kernel.Validationf("shot", "ball_speed", "negative"), CaseValidation},
		{"canonicalization", &canon.CanonicalizationError{Path: "$.a", Reason: "NaN"}, CaseValidation},
		{"immutability", fmt.Errorf("wrap: %w", &kernel.ImmutabilityViolation{Table: "shots", Operation: "UPDATE"}), CaseImmutability},
		{"duplicate", &kernel.DuplicateAnalysisError{Entity: "session", Key: "s1"}, CaseDuplicate},
		{"ordering", &kernel.CorrectionOrderingAmbiguity{RoundID: "r1"}, CaseOrderingAmbiguity},
		{"hash mismatch", &kernel.HashMismatchError{Entity: "template"}, CaseHashMismatch},
		{"not found", fmt.Errorf("round r9: %w", kernel.ErrNotFound), CaseNotFound},
		{"other", errors.New("disk on fire"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, caseOf(tt.err))
		})
	}
}

func TestResult(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)

	r.AddTrace("round.create", map[string]any{"round": "r1"}, CaseSuccess, map[string]any{"players": 2})
	r.AddTrace("round.score", nil, CaseValidation, nil)
	require.Len(t, r.Trace, 2)
	assert.Equal(t, 1, r.Trace[0].Seq)
	assert.Equal(t, 2, r.Trace[1].Seq)
	assert.True(t, r.Pass)

	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
