package harness

import (
	"github.com/roach88/polydep/internal/compiler"
	"github.com/roach88/polydep/internal/deps"
	"github.com/roach88/polydep/internal/engine"
	"github.com/roach88/polydep/internal/store"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Errors contains one message per failed expectation or assertion.
	Errors []string `json:"errors,omitempty"`

	Scop       string `json:"scop"`
	AnalysisID string `json:"analysis_id"`

	// Status is store.StatusOK or store.StatusFailed.
	Status    string `json:"status"`
	ErrorCode string `json:"error_code,omitempty"`

	// Relations maps relation names to their printed form.
	Relations map[string]string `json:"relations"`

	Candidates  []store.CandidateRecord      `json:"candidates"`
	Recurrences []compiler.RecurrenceWarning `json:"recurrences"`
	DCE         *deps.DCEStats               `json:"dce,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Errors:      []string{},
		Relations:   make(map[string]string),
		Candidates:  []store.CandidateRecord{},
		Recurrences: []compiler.RecurrenceWarning{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// RelationName returns the scenario name of a stored relation.
func RelationName(kind string, tagged bool) string {
	if tagged {
		return "tagged_" + kind
	}
	return kind
}

// record copies an engine outcome into the result.
func (r *Result) record(out engine.Outcome) {
	r.Scop = out.Scop
	r.AnalysisID = out.ID
	r.Status = store.StatusOK
	if out.Err != nil {
		r.Status = store.StatusFailed
		r.ErrorCode = engine.ErrorCode(out.Err)
	}
	for _, d := range out.Dependences {
		r.Relations[RelationName(d.Kind, d.Tagged)] = d.Relation
	}
	if out.Candidates != nil {
		r.Candidates = out.Candidates
	}
	if out.Recurrences != nil {
		r.Recurrences = out.Recurrences
	}
	r.DCE = out.DCE
}
