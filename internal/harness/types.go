package harness

import "github.com/CogniPilot/modelica-ir/internal/structure"

// Result is the outcome of a scenario run.
type Result struct {
	// Pass indicates that every expectation and assertion held.
	Pass bool `json:"pass"`

	// Analysis is the evaluation plan produced for the scenario's model.
	// Nil when the analysis returned an error.
	Analysis *structure.Result `json:"analysis,omitempty"`

	// Errors contains one message per failed check. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
