package canon

import "fmt"

// CanonicalizationError reports input that has no canonical form.
// Path is a JSONPath-like location ("$.metrics.ball_speed") of the offending
// value, or "$" for document-level problems.
type CanonicalizationError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CanonicalizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("canonicalize %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("canonicalize %s: %s", e.Path, e.Reason)
}

func (e *CanonicalizationError) Unwrap() error {
	return e.Err
}

func errorAt(path, reason string) *CanonicalizationError {
	return &CanonicalizationError{Path: path, Reason: reason}
}
