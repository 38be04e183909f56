package harness

import "github.com/roach88/chitchat/internal/ir"

// TraceStep records one executed flow step.
type TraceStep struct {
	Step    int    `json:"step"`
	Op      string `json:"op"`
	Caller  string `json:"caller"`
	Outcome string `json:"outcome"` // "ok" or an ir.ErrorCode
	Result  any    `json:"result,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step matched its expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	// Steps lists the flow steps in execution order.
	Steps []TraceStep `json:"steps"`

	// Events is the committed change-event stream, setup included.
	Events []ir.ChangeEvent `json:"events"`

	// Errors describes each failed expectation or assertion.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []TraceStep{},
		Events: []ir.ChangeEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep appends a trace step.
func (r *Result) AddStep(step TraceStep) {
	r.Steps = append(r.Steps, step)
}
