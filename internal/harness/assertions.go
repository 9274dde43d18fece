package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/golfkpi/internal/store"
)

// identifierPattern restricts final_state table and column names, which are
// interpolated into SQL; values are always bound as parameters.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError describes a failed assertion together with the trace it
// was evaluated against.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&b, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&b, "  Actual: %s\n", e.Actual)
	if len(e.Trace) == 0 {
		return b.String()
	}
	b.WriteString("\nTrace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&b, "  [%d] %s %v -> %s\n", ev.Seq, ev.Op, ev.Args, ev.Case)
	}
	return b.String()
}

// AssertionContext gives final_state assertions access to the store the
// scenario ran against.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

type traceCheck func(trace []TraceEvent, a Assertion) error

var traceChecks = map[string]traceCheck{
	AssertTraceContains: assertTraceContains,
	AssertTraceOrder:    assertTraceOrder,
	AssertTraceCount:    assertTraceCount,
}

// EvaluateAssertions runs every assertion and returns one message per
// failure. actx may be nil when no assertion is final_state.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		if check, ok := traceChecks[a.Type]; ok {
			err = check(result.Trace, a)
		} else if a.Type == AssertFinalState {
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, a)
			}
		} else {
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

// matchesEvent reports whether ev is op completing with outcome; an empty
// outcome matches any case.
func matchesEvent(ev TraceEvent, op, outcome string) bool {
	return ev.Op == op && (outcome == "" || ev.Case == outcome)
}

func describeStep(a Assertion) string {
	s := "op " + a.Op
	if len(a.Args) > 0 {
		s += fmt.Sprintf(" with args %v", a.Args)
	}
	if a.Case != "" {
		s += " completing " + a.Case
	}
	return s
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if matchesEvent(ev, a.Op, a.Case) && matchArgs(ev.Args, a.Args) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describeStep(a),
		Actual:   "no matching step in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrences of a.Ops are in the
// given order. Other steps may appear in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	first := make(map[string]int, len(a.Ops))
	for _, ev := range trace {
		if _, seen := first[ev.Op]; !seen {
			first[ev.Op] = ev.Seq
		}
	}

	prev := ""
	for _, op := range a.Ops {
		seq, ok := first[op]
		if !ok {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops %v all present", a.Ops),
				Actual:   "missing op: " + op,
				Trace:    trace,
			}
		}
		if prev != "" && first[prev] >= seq {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order %v", a.Ops),
				Actual:   fmt.Sprintf("%s (seq %d) should be before %s (seq %d)", prev, first[prev], op, seq),
				Trace:    trace,
			}
		}
		prev = op
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, ev := range trace {
		if matchesEvent(ev, a.Op, a.Case) {
			n++
		}
	}
	if n == a.Count {
		return nil
	}
	what := a.Op
	if a.Case != "" {
		what += " completing " + a.Case
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%d occurrences of %s", a.Count, what),
		Actual:   fmt.Sprintf("%d occurrences", n),
		Trace:    trace,
	}
}

// assertFinalState loads the single row of a.Table selected by a.Where and
// compares the columns named in a.Expect.
func assertFinalState(ctx context.Context, st *store.Store, a Assertion) error {
	if !identifierPattern.MatchString(a.Table) {
		return fmt.Errorf("invalid table name %q", a.Table)
	}
	row, err := loadRow(ctx, st, a.Table, a.Where)
	if err != nil {
		return err
	}

	for _, col := range sortedKeys(a.Expect) {
		want := a.Expect[col]
		got, ok := row[col]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("column %q in %s", col, a.Table),
				Actual:   fmt.Sprintf("column not present; have %v", sortedKeys(row)),
			}
		}
		if !stateValuesEqual(want, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (%T)", col, want, want),
				Actual:   fmt.Sprintf("field %q = %v (%T)", col, got, got),
			}
		}
	}
	return nil
}

// loadRow returns the only row of table matching where, keyed by column.
func loadRow(ctx context.Context, st *store.Store, table string, where map[string]any) (map[string]any, error) {
	cond, args, err := buildWhereClause(where)
	if err != nil {
		return nil, err
	}
	query := "SELECT * FROM " + table
	if cond != "" {
		query += " WHERE " + cond
	}
	selector := fmt.Sprintf("%s where %s", table, formatWhereClause(where))

	rows, err := st.Query(ctx, query, args...)
	if err != nil {
		return nil, &AssertionError{
			Type:     AssertFinalState,
			Expected: "readable table " + table,
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query %s: %w", table, err)
		}
		return nil, &AssertionError{Type: AssertFinalState, Expected: "one row in " + selector, Actual: "row not found"}
	}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}
	if rows.Next() {
		return nil, &AssertionError{Type: AssertFinalState, Expected: "exactly one row in " + selector, Actual: "more than one row matched"}
	}

	row := make(map[string]any, len(cols))
	for i, c := range cols {
		row[c] = vals[i]
	}
	return row, nil
}

// buildWhereClause renders where as "col = ? AND ..." in column order with
// the values as bind arguments.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}
	cols := sortedKeys(where)
	terms := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		if !identifierPattern.MatchString(col) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause", col)
		}
		terms[i] = col + " = ?"
		args[i] = toSQLValue(where[col])
	}
	return strings.Join(terms, " AND "), args, nil
}

// toSQLValue passes scalar YAML values through and stringifies the rest.
func toSQLValue(v any) any {
	switch v.(type) {
	case string, int, int64, float64, bool:
		return v
	}
	return fmt.Sprint(v)
}

func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(all rows)"
	}
	var parts []string
	for _, col := range sortedKeys(where) {
		parts = append(parts, fmt.Sprintf("%s=%v", col, where[col]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares a YAML-decoded expected value with a scanned
// column. SQLite returns INTEGER as int64, REAL as float64, TEXT as string
// or []byte, and stores booleans as integers.
func stateValuesEqual(expected, actual any) bool {
	if b, ok := actual.([]byte); ok {
		actual = string(b)
	}
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	switch want := expected.(type) {
	case string:
		got, ok := actual.(string)
		return ok && got == want
	case int:
		return numericEqual(float64(want), actual)
	case int64:
		return numericEqual(float64(want), actual)
	case float64:
		return numericEqual(want, actual)
	case bool:
		switch got := actual.(type) {
		case bool:
			return got == want
		case int64:
			return want == (got != 0)
		}
		return false
	}
	return reflect.DeepEqual(expected, actual)
}

func numericEqual(want float64, actual any) bool {
	switch got := actual.(type) {
	case int64:
		return float64(got) == want
	case int:
		return float64(got) == want
	case int32:
		return float64(got) == want
	case float64:
		return got == want
	}
	return false
}

// matchArgs reports whether every key of expected is present in actual
// with an equal value. Extra keys in actual are ignored.
func matchArgs(actual, expected map[string]any) bool {
	for k, want := range expected {
		got, ok := actual[k]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares two decoded values after a JSON round trip, so YAML
// integers and floats of the same value are equal.
func valuesEqual(a, b any) bool {
	na, errA := jsonNormalize(a)
	nb, errB := jsonNormalize(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return reflect.DeepEqual(na, nb)
}

func jsonNormalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(data, &out)
	return out, err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
