package harness

// Completion cases reported for each flow step.
const (
	CaseSuccess           = "Success"
	CaseValidation        = "ValidationError"
	CaseImmutability      = "ImmutabilityViolation"
	CaseDuplicate         = "DuplicateAnalysisError"
	CaseOrderingAmbiguity = "CorrectionOrderingAmbiguity"
	CaseHashMismatch      = "HashMismatch"
	CaseNotFound          = "NotFound"
)

// TraceEvent records one executed flow step.
type TraceEvent struct {
	Seq    int            `json:"seq"`
	Op     string         `json:"op"`
	Args   map[string]any `json:"args,omitempty"`
	Case   string         `json:"case"`
	Result map[string]any `json:"result,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step outcome to the trace.
func (r *Result) AddTrace(op string, args map[string]any, outcome string, result map[string]any) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:    len(r.Trace) + 1,
		Op:     op,
		Args:   args,
		Case:   outcome,
		Result: result,
	})
}
