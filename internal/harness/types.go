package harness

import (
	"github.com/roach88/bassline/internal/ir"
)

// TraceEvent is one engine event observed during a run, tagged with the
// step that produced it. Step is -1 for events raised while the initial
// network loads.
type TraceEvent struct {
	Step  int
	Event ir.Event
}

// ToIR renders the entry in its textual form.
func (t TraceEvent) ToIR() ir.IRObject {
	return ir.IRObject{
		"step":  ir.IRInt(t.Step),
		"event": ir.EventToIR(t.Event),
	}
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step and expectation held.
	Pass bool

	// Trace holds every event in emission order.
	Trace []TraceEvent

	// Errors holds one message per failed step or expectation.
	Errors []string

	// Values is the final contact value table.
	Values map[string]ir.IRValue
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Values: map[string]ir.IRValue{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// EventTypes lists the trace's event type tags in order.
func (r *Result) EventTypes() []string {
	out := make([]string, len(r.Trace))
	for i, t := range r.Trace {
		out[i] = t.Event.EventType()
	}
	return out
}

// CountEvents counts trace entries of the given type.
func (r *Result) CountEvents(eventType string) int {
	n := 0
	for _, t := range r.Trace {
		if t.Event.EventType() == eventType {
			n++
		}
	}
	return n
}
