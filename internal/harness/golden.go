package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/golfkpi/internal/canon"
)

// TraceSnapshot is the document stored in a golden file.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// CanonicalTrace renders a trace as canonical JSON (RFC 8785), so golden
// files do not depend on map iteration order or number spelling.
func CanonicalTrace(scenarioName string, trace []TraceEvent) ([]byte, error) {
	data, err := json.Marshal(TraceSnapshot{ScenarioName: scenarioName, Trace: trace})
	if err != nil {
		return nil, err
	}
	return canon.Canonicalize(data)
}

// RunWithGolden runs scenario and compares its canonical trace with
// testdata/golden/<name>.golden; a difference fails t. Regenerate with
// `go test ./internal/harness -update`.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the canonical trace of result with the golden file
// of scenarioName.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := CanonicalTrace(scenarioName, result.Trace)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
