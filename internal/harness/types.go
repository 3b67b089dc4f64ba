package harness

import "encoding/json"

// TraceEvent records the outcome of one step. Pointer fields are omitted
// when they don't apply to the step's operation.
type TraceEvent struct {
	Step     int                        `json:"step"`
	Op       string                     `json:"op"`
	ID       string                     `json:"id"`
	Modified *bool                      `json:"modified,omitempty"`
	Inserted *bool                      `json:"inserted,omitempty"`
	Version  int64                      `json:"version,omitempty"`
	Payload  *string                    `json:"payload,omitempty"`
	Diff     []DiffEntry                `json:"diff,omitempty"`
	Deleted  *bool                      `json:"deleted,omitempty"`
	Released *bool                      `json:"released,omitempty"`
	Values   map[string]json.RawMessage `json:"values,omitempty"`
	Error    string                     `json:"error,omitempty"`
}

// DiffEntry is one changed field. Absent values are null.
type DiffEntry struct {
	Field  string          `json:"field"`
	Before json.RawMessage `json:"before"`
	After  json.RawMessage `json:"after"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per step.
	Trace []TraceEvent `json:"trace"`

	// Published holds the change-channel messages in delivery order.
	Published []string `json:"published"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Published: []string{},
		Errors:    []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
