package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/golfkpi/internal/classify"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Thresholds overrides the sample validity cutoffs used for
	// ingestion and projections.
	Thresholds *ThresholdSpec `yaml:"thresholds,omitempty"`

	// Templates and Snapshots are artifact fixtures by name. They are
	// stored only by template.add and snapshot.add steps.
	Templates map[string]any `yaml:"templates,omitempty"`
	Snapshots map[string]any `yaml:"snapshots,omitempty"`

	// Flow is the sequence of operations to run.
	Flow []FlowStep `yaml:"flow"`

	Assertions []Assertion `yaml:"assertions"`
}

// ThresholdSpec is the YAML form of classify.Thresholds.
type ThresholdSpec struct {
	MinSample   int `yaml:"min_sample"`
	ValidSample int `yaml:"valid_sample"`
}

// thresholds returns the cutoffs for this scenario.
func (s *Scenario) thresholds() classify.Thresholds {
	if s.Thresholds == nil {
		return classify.DefaultThresholds()
	}
	return classify.Thresholds{MinSample: s.Thresholds.MinSample, ValidSample: s.Thresholds.ValidSample}
}

// FlowStep invokes one operation and optionally validates its outcome.
type FlowStep struct {
	// Op is the operation name, e.g. "session.ingest".
	Op string `yaml:"op"`

	// Args contains the operation arguments.
	Args map[string]any `yaml:"args"`

	// Expect specifies the expected outcome. When nil the step must
	// succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected completion behavior.
type ExpectClause struct {
	// Case is the expected completion case (e.g., "Success", "ValidationError").
	Case string `yaml:"case"`

	// Result is a subset of the expected result fields.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion checks the trace or the final database state. Which fields
// apply depends on Type:
//
//	trace_contains  Op, optional Case and Args (subset match)
//	trace_order     Ops, by first occurrence
//	trace_count     Op, optional Case, Count
//	final_state     Table, Where, Expect (subset of columns)
type Assertion struct {
	Type   string         `yaml:"type"`
	Op     string         `yaml:"op,omitempty"`
	Case   string         `yaml:"case,omitempty"`
	Args   map[string]any `yaml:"args,omitempty"`
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
	Count  int            `yaml:"count,omitempty"`
	Ops    []string       `yaml:"ops,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

var knownCases = []string{
	CaseSuccess, CaseValidation, CaseImmutability, CaseDuplicate,
	CaseOrderingAmbiguity, CaseHashMismatch, CaseNotFound,
}

// LoadScenario reads a scenario file and parses it with ParseScenario.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes scenario YAML. Unknown fields are errors, so a
// misspelled key fails instead of being ignored.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Thresholds != nil {
		if err := s.thresholds().Validate(); err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
	}

	for i, step := range s.Flow {
		if step.Op == "" {
			return fmt.Errorf("flow[%d]: op is required", i)
		}
		if _, ok := operations[step.Op]; !ok {
			return fmt.Errorf("flow[%d]: unknown op %q", i, step.Op)
		}
		if step.Args == nil {
			return fmt.Errorf("flow[%d]: args is required (use empty map if no args)", i)
		}
		if step.Expect != nil && !slices.Contains(knownCases, step.Expect.Case) {
			return fmt.Errorf("flow[%d].expect: unknown case %q", i, step.Expect.Case)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
