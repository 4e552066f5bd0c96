package ir

import (
	"fmt"
	"slices"
)

// Event type tags used in the textual form: {"type": "valueChanged", ...}.
const (
	EventValueChanged       = "valueChanged"
	EventPropagating        = "propagating"
	EventGadgetActivated    = "gadgetActivated"
	EventContradiction      = "contradiction"
	EventConverged          = "converged"
	EventPrimitiveRequested = "primitive-requested"
	EventPrimitiveExecuted  = "primitive-executed"
	EventPrimitiveFailed    = "primitive-failed"
	EventStructureChanged   = "structureChanged"
)

// Event is an occurrence emitted by the engine to its listeners.
// Sealed: only the variants in this file implement it.
type Event interface {
	EventType() string
	isEvent()
}

// ValueChanged reports a contact's stored value changing. Old is nil on a
// stream contact's first write.
type ValueChanged struct {
	ContactID string
	Old       IRValue
	New       IRValue
}

// Propagating reports a value being queued along a wire.
type Propagating struct {
	WireID string
	FromID string
	ToID   string
	Value  IRValue
}

// GadgetActivated reports that a gadget's outputs were written back.
type GadgetActivated struct {
	GroupID   string
	Primitive string
	Outputs   IRObject
}

// Contradiction reports a merge that had no deterministic join. Only the
// propagation into ContactID stops.
type Contradiction struct {
	ContactID string
	Current   IRValue
	Incoming  IRValue
	Reason    string
}

// Converged reports that the propagation queue drained. Steps counts the
// queue entries processed by the drain.
type Converged struct {
	Steps int64
}

// PrimitiveRequested asks for a primitive to run on a gathered input
// snapshot. Generation is non-zero when the trigger was a stream contact.
type PrimitiveRequested struct {
	GroupID    string
	Primitive  string
	Inputs     IRObject
	Generation int64
}

// PrimitiveExecuted carries the outputs of a successful execution.
type PrimitiveExecuted struct {
	GroupID   string
	Primitive string
	Inputs    IRObject
	Outputs   IRObject
}

// PrimitiveFailed reports an execution error or panic.
type PrimitiveFailed struct {
	GroupID   string
	Primitive string
	Inputs    IRObject
	Error     string
}

// StructureChanged reports contacts, wires or groups added and removed by a
// structural action or a bulk change.
type StructureChanged struct {
	Added   []string
	Removed []string
}

func (ValueChanged) EventType() string       { return EventValueChanged }
func (Propagating) EventType() string        { return EventPropagating }
func (GadgetActivated) EventType() string    { return EventGadgetActivated }
func (Contradiction) EventType() string      { return EventContradiction }
func (Converged) EventType() string          { return EventConverged }
func (PrimitiveRequested) EventType() string { return EventPrimitiveRequested }
func (PrimitiveExecuted) EventType() string  { return EventPrimitiveExecuted }
func (PrimitiveFailed) EventType() string    { return EventPrimitiveFailed }
func (StructureChanged) EventType() string   { return EventStructureChanged }

func (ValueChanged) isEvent()       {}
func (Propagating) isEvent()        {}
func (GadgetActivated) isEvent()    {}
func (Contradiction) isEvent()      {}
func (Converged) isEvent()          {}
func (PrimitiveRequested) isEvent() {}
func (PrimitiveExecuted) isEvent()  {}
func (PrimitiveFailed) isEvent()    {}
func (StructureChanged) isEvent()   {}

func objOrEmpty(o IRObject) IRObject {
	if o == nil {
		return IRObject{}
	}
	return o
}

// EventToIR converts an event into its tagged object form.
func EventToIR(e Event) IRObject {
	obj := IRObject{"type": IRString(e.EventType())}
	switch ev := e.(type) {
	case ValueChanged:
		obj["contact_id"] = IRString(ev.ContactID)
		obj["old"] = orNull(ev.Old)
		obj["new"] = orNull(ev.New)
	case Propagating:
		obj["wire_id"] = IRString(ev.WireID)
		obj["from_id"] = IRString(ev.FromID)
		obj["to_id"] = IRString(ev.ToID)
		obj["value"] = orNull(ev.Value)
	case GadgetActivated:
		obj["group_id"] = IRString(ev.GroupID)
		obj["primitive"] = IRString(ev.Primitive)
		obj["outputs"] = objOrEmpty(ev.Outputs)
	case Contradiction:
		obj["contact_id"] = IRString(ev.ContactID)
		obj["current"] = orNull(ev.Current)
		obj["incoming"] = orNull(ev.Incoming)
		obj["reason"] = IRString(ev.Reason)
	case Converged:
		obj["steps"] = IRInt(ev.Steps)
	case PrimitiveRequested:
		obj["group_id"] = IRString(ev.GroupID)
		obj["primitive"] = IRString(ev.Primitive)
		obj["inputs"] = objOrEmpty(ev.Inputs)
		obj["generation"] = IRInt(ev.Generation)
	case PrimitiveExecuted:
		obj["group_id"] = IRString(ev.GroupID)
		obj["primitive"] = IRString(ev.Primitive)
		obj["inputs"] = objOrEmpty(ev.Inputs)
		obj["outputs"] = objOrEmpty(ev.Outputs)
	case PrimitiveFailed:
		obj["group_id"] = IRString(ev.GroupID)
		obj["primitive"] = IRString(ev.Primitive)
		obj["inputs"] = objOrEmpty(ev.Inputs)
		obj["error"] = IRString(ev.Error)
	case StructureChanged:
		obj["added"] = sortedStringList(ev.Added)
		obj["removed"] = sortedStringList(ev.Removed)
	}
	return obj
}

// EventFromIR decodes a tagged event object.
func EventFromIR(v IRValue) (Event, error) {
	obj, ok := v.(IRObject)
	if !ok {
		return nil, fmt.Errorf("event must be an object, got %T", v)
	}
	r := fieldReader{obj: obj}
	kind := r.str("type")

	var e Event
	switch kind {
	case EventValueChanged:
		e = ValueChanged{ContactID: r.str("contact_id"), Old: r.value("old"), New: r.value("new")}
	case EventPropagating:
		e = Propagating{WireID: r.str("wire_id"), FromID: r.str("from_id"), ToID: r.str("to_id"), Value: r.value("value")}
	case EventGadgetActivated:
		e = GadgetActivated{GroupID: r.str("group_id"), Primitive: r.str("primitive"), Outputs: r.object("outputs")}
	case EventContradiction:
		e = Contradiction{ContactID: r.str("contact_id"), Current: r.value("current"), Incoming: r.value("incoming"), Reason: r.str("reason")}
	case EventConverged:
		steps, _ := r.value("steps").(IRInt)
		e = Converged{Steps: int64(steps)}
	case EventPrimitiveRequested:
		gen, _ := r.value("generation").(IRInt)
		e = PrimitiveRequested{GroupID: r.str("group_id"), Primitive: r.str("primitive"), Inputs: r.object("inputs"), Generation: int64(gen)}
	case EventPrimitiveExecuted:
		e = PrimitiveExecuted{GroupID: r.str("group_id"), Primitive: r.str("primitive"), Inputs: r.object("inputs"), Outputs: r.object("outputs")}
	case EventPrimitiveFailed:
		e = PrimitiveFailed{GroupID: r.str("group_id"), Primitive: r.str("primitive"), Inputs: r.object("inputs"), Error: r.str("error")}
	case EventStructureChanged:
		added := r.strList("added")
		removed := r.strList("removed")
		slices.Sort(added)
		slices.Sort(removed)
		e = StructureChanged{Added: added, Removed: removed}
	default:
		return nil, fmt.Errorf("unknown event type %q", kind)
	}
	if r.err != nil {
		return nil, fmt.Errorf("%s: %w", kind, r.err)
	}
	return e, nil
}
