package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"time"

	"github.com/roach88/golfkpi/internal/canon"
	"github.com/roach88/golfkpi/internal/classify"
	"github.com/roach88/golfkpi/internal/idgen"
	"github.com/roach88/golfkpi/internal/ingest"
	"github.com/roach88/golfkpi/internal/kernel"
	"github.com/roach88/golfkpi/internal/lifecycle"
	"github.com/roach88/golfkpi/internal/store"
	"github.com/roach88/golfkpi/internal/testutil"
)

// Harness executes one scenario against one store.
type Harness struct {
	scenario   *Scenario
	store      *store.Store
	rounds     *lifecycle.Service
	analyzer   *ingest.Analyzer
	thresholds classify.Thresholds
	logger     *slog.Logger

	// roundIDs maps scenario round names to generated round IDs.
	roundIDs map[string]string
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a step clock and
// sequential IDs. Execution flow:
// 1. Open the store and wire the kernel services
// 2. Run each flow step and check its expect clause
// 3. Evaluate assertions over the trace and final state
//
// Expectation and assertion failures are reported in the Result. An
// error is returned only when the scenario cannot be executed: bad
// arguments, an unknown fixture, or a failure outside the kernel's error
// taxonomy.
func Run(scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	clk := testutil.NewStepClock(testutil.Epoch, time.Second)

	st, err := store.Open(":memory:", store.WithClock(clk), store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	th := scenario.thresholds()
	h := &Harness{
		scenario:   scenario,
		store:      st,
		rounds:     lifecycle.New(st, idgen.NewSequence("round"), lifecycle.WithClock(clk), lifecycle.WithLogger(logger)),
		thresholds: th,
		logger:     logger,
		roundIDs:   make(map[string]string),
		analyzer: ingest.NewAnalyzer(st, idgen.NewSequence("subsession"),
			ingest.WithThresholds(th), ingest.WithClock(clk), ingest.WithLogger(logger)),
	}

	ctx := context.Background()
	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeFlow runs all flow steps and validates expect clauses.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		op, ok := operations[step.Op]
		if !ok {
			return fmt.Errorf("flow step %d: unknown op %q", i, step.Op)
		}

		out, opErr := op(h, ctx, step.Args)
		var argErr *argError
		if errors.As(opErr, &argErr) {
			return fmt.Errorf("flow step %d (%s): %w", i, step.Op, opErr)
		}
		outcome := caseOf(opErr)
		if outcome == "" {
			return fmt.Errorf("flow step %d (%s): unexpected error: %w", i, step.Op, opErr)
		}
		if opErr != nil {
			out = nil
		}

		digest, err := normalize(out)
		if err != nil {
			return fmt.Errorf("flow step %d (%s): %w", i, step.Op, err)
		}
		result.AddTrace(step.Op, step.Args, outcome, digest)

		expected := CaseSuccess
		if step.Expect != nil {
			expected = step.Expect.Case
		}
		if outcome != expected {
			msg := fmt.Sprintf("flow[%d] %s: expected case %s, got %s", i, step.Op, expected, outcome)
			if opErr != nil {
				msg += ": " + opErr.Error()
			}
			result.AddError(msg)
			continue
		}
		if step.Expect != nil && len(step.Expect.Result) > 0 {
			want, err := normalize(step.Expect.Result)
			if err != nil {
				return fmt.Errorf("flow step %d (%s): expected result: %w", i, step.Op, err)
			}
			for key, wantVal := range want {
				if got, ok := digest[key]; !ok || !reflect.DeepEqual(got, wantVal) {
					result.AddError(fmt.Sprintf("flow[%d] %s: result %q = %v, want %v", i, step.Op, key, got, wantVal))
				}
			}
		}

		h.logger.Info("flow step completed", "step", i, "op", step.Op, "case", outcome)
	}
	return nil
}

// caseOf maps an operation error onto its completion case, or "" for an
// error outside the kernel taxonomy.
func caseOf(err error) string {
	var cerr *canon.CanonicalizationError
	switch {
	case err == nil:
		return CaseSuccess
	case kernel.IsImmutability(err):
		return CaseImmutability
	case kernel.IsDuplicate(err):
		return CaseDuplicate
	case kernel.IsOrderingAmbiguity(err):
		return CaseOrderingAmbiguity
	case kernel.IsHashMismatch(err):
		return CaseHashMismatch
	case kernel.IsValidation(err), errors.As(err, &cerr):
		return CaseValidation
	case kernel.IsNotFound(err):
		return CaseNotFound
	}
	return ""
}

// normalize round-trips v through JSON so that numbers are float64 and
// structs are maps, making digests and expectations comparable.
func normalize(v map[string]any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
