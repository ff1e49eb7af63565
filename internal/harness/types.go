package harness

import "github.com/roach88/hypetrace/internal/graph"

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if the expected outcome and all assertions held.
	Pass bool `json:"pass"`

	// Output is the rendered document, complete or partial.
	Output string `json:"output"`

	// Elements are the rendered top-level values in output order.
	Elements []string `json:"elements"`

	// ErrorCode is the code of the terminal error, if any.
	ErrorCode string `json:"error_code,omitempty"`

	// Err is the message of the terminal error, if any.
	Err string `json:"err,omitempty"`

	// RunID is the id the run was archived under.
	RunID string `json:"run_id"`

	Stats graph.Stats `json:"stats"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Elements: []string{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
