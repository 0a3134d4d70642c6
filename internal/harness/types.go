package harness

import (
	"github.com/roach88/kitbash/internal/tree"
	"github.com/roach88/kitbash/internal/value"
)

// Outcome of a step that did not fail.
const OutcomeOK = "ok"

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq     int64        `json:"seq"`
	Op      string       `json:"op"`
	Ref     string       `json:"ref"`
	Args    value.Object `json:"args,omitempty"`
	Outcome string       `json:"outcome"` // OutcomeOK or the tree error code
	Result  value.Object `json:"result,omitempty"`
}

// Value converts the event for canonical encoding. Empty args and results
// are omitted.
func (e TraceEvent) Value() value.Object {
	obj := value.Object{
		"seq":     value.Int(e.Seq),
		"op":      value.String(e.Op),
		"ref":     value.String(e.Ref),
		"outcome": value.String(e.Outcome),
	}
	if len(e.Args) > 0 {
		obj["args"] = e.Args
	}
	if len(e.Result) > 0 {
		obj["result"] = e.Result
	}
	return obj
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every executed step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Refs maps scenario refs to their nodes after the last step.
	Refs map[string]*tree.Node `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Refs:   make(map[string]*tree.Node),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends ev to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
