package harness

import (
	"fmt"
	"strings"
)

// TraceEvent records what one step did.
type TraceEvent struct {
	Step   int    `json:"step"`
	Action string `json:"action"`
	Detail string `json:"detail"`
}

// String renders the event as one trace line.
func (e TraceEvent) String() string {
	return fmt.Sprintf("%02d %s %s", e.Step, e.Action, e.Detail)
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions match.
	Pass bool `json:"pass"`

	// Trace contains one entry per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Dump is the final durable store content (see store.Store.Dump).
	Dump string `json:"dump"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
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

// AddTrace appends a step trace entry.
func (r *Result) AddTrace(step int, action, detail string) {
	r.Trace = append(r.Trace, TraceEvent{Step: step, Action: action, Detail: detail})
}

// Golden renders the trace followed by the store dump.
// This is the content compared against golden files.
func (r *Result) Golden() []byte {
	var b strings.Builder
	b.WriteString("# trace\n")
	for _, e := range r.Trace {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	b.WriteString("# store\n")
	b.WriteString(r.Dump)
	return []byte(b.String())
}
