package engine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/bassline/internal/ir"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEngine builds an engine with a discarded log and sequential IDs.
func newTestEngine(t *testing.T, b ir.Bassline, opts ...EngineOption) *Engine {
	t.Helper()
	base := []EngineOption{
		WithLogger(quietLogger()),
		WithIDGenerator(NewSequenceGenerator("gen")),
	}
	e, err := New(b, append(base, opts...)...)
	require.NoError(t, err)
	return e
}

// eventLog collects every event an engine emits.
type eventLog struct {
	events []ir.Event
}

func watch(e *Engine) *eventLog {
	l := &eventLog{}
	e.OnEvent(func(ev ir.Event) {
		l.events = append(l.events, ev)
	})
	return l
}

func (l *eventLog) count(eventType string) int {
	n := 0
	for _, ev := range l.events {
		if ev.EventType() == eventType {
			n++
		}
	}
	return n
}

func (l *eventLog) types() []string {
	out := make([]string, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.EventType()
	}
	return out
}

func (l *eventLog) valueChanges(contactID string) []ir.ValueChanged {
	var out []ir.ValueChanged
	for _, ev := range l.events {
		if vc, ok := ev.(ir.ValueChanged); ok && vc.ContactID == contactID {
			out = append(out, vc)
		}
	}
	return out
}

func (l *eventLog) reset() {
	l.events = nil
}

// netBuilder assembles test networks and keeps group membership lists in
// step with contact ownership.
type netBuilder struct {
	b ir.Bassline
}

func newNet() *netBuilder {
	return &netBuilder{b: ir.NewBassline()}
}

func (n *netBuilder) contact(id string, mode ir.BlendMode) *netBuilder {
	n.b.Contacts[id] = ir.Contact{ID: id, BlendMode: mode}
	return n
}

func (n *netBuilder) valued(id string, mode ir.BlendMode, v ir.IRValue) *netBuilder {
	n.b.Contacts[id] = ir.Contact{ID: id, BlendMode: mode, Content: v}
	return n
}

func (n *netBuilder) group(id, parent, primitive string) *netBuilder {
	n.b.Groups[id] = ir.Group{ID: id, ParentID: parent, PrimitiveType: primitive}
	return n
}

// member adds a contact owned by group. Boundary members are named name.
func (n *netBuilder) member(group, id, name string, mode ir.BlendMode, boundary bool) *netBuilder {
	n.b.Contacts[id] = ir.Contact{
		ID:        id,
		GroupID:   group,
		Name:      name,
		BlendMode: mode,
		Flags:     ir.ContactFlags{Boundary: boundary},
	}
	g := n.b.Groups[group]
	g.ContactIDs = append(g.ContactIDs, id)
	if boundary {
		g.BoundaryContactIDs = append(g.BoundaryContactIDs, id)
	}
	n.b.Groups[group] = g
	return n
}

func (n *netBuilder) wire(id, from, to string, bidirectional bool) *netBuilder {
	n.b.Wires[id] = ir.Wire{ID: id, FromID: from, ToID: to, Bidirectional: bidirectional}
	return n
}

func (n *netBuilder) build() ir.Bassline {
	return n.b.Clone()
}

// addPrimitive sums two integer inputs.
func addPrimitive() Primitive {
	return Primitive{
		Name:    "add",
		Inputs:  []string{"a", "b"},
		Outputs: []string{"sum"},
		Execute: func(in ir.IRObject) (ir.IRObject, error) {
			a, _ := in["a"].(ir.IRInt)
			b, _ := in["b"].(ir.IRInt)
			return ir.IRObject{"sum": a + b}, nil
		},
	}
}

// adderNet is a single add gadget with boundary contacts a, b and sum.
func adderNet() *netBuilder {
	return newNet().
		group("adder", "", "add").
		member("adder", "adder.a", "a", ir.BlendMerge, true).
		member("adder", "adder.b", "b", ir.BlendMerge, true).
		member("adder", "adder.sum", "sum", ir.BlendMerge, true)
}

func mustValue(t *testing.T, e *Engine, id string) ir.IRValue {
	t.Helper()
	v, ok := e.GetValue(id)
	require.True(t, ok, "contact %s has no value", id)
	return v
}
