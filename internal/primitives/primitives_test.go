package primitives

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bassline/internal/engine"
	"github.com/roach88/bassline/internal/ir"
)

func TestExecute(t *testing.T) {
	tests := []struct {
		prim engine.Primitive
		in   ir.IRObject
		want ir.IRObject
	}{
		{AddPrimitive(), ir.IRObject{"a": ir.IRInt(2), "b": ir.IRInt(3)}, ir.IRObject{"sum": ir.IRInt(5)}},
		{SubtractPrimitive(), ir.IRObject{"a": ir.IRInt(2), "b": ir.IRInt(3)}, ir.IRObject{"difference": ir.IRInt(-1)}},
		{MultiplyPrimitive(), ir.IRObject{"a": ir.IRInt(4), "b": ir.IRInt(3)}, ir.IRObject{"product": ir.IRInt(12)}},
		{MaxPrimitive(), ir.IRObject{"a": ir.IRInt(4), "b": ir.IRInt(9)}, ir.IRObject{"result": ir.IRInt(9)}},
		{MinPrimitive(), ir.IRObject{"a": ir.IRInt(4), "b": ir.IRInt(9)}, ir.IRObject{"result": ir.IRInt(4)}},
		{ConcatPrimitive(), ir.IRObject{"a": ir.IRString("bass"), "b": ir.IRString("line")}, ir.IRObject{"result": ir.IRString("bassline")}},
		{IdentityPrimitive(), ir.IRObject{"in": ir.IRBool(true)}, ir.IRObject{"out": ir.IRBool(true)}},
		{GatePrimitive(), ir.IRObject{"value": ir.IRInt(1), "open": ir.IRBool(true)}, ir.IRObject{"out": ir.IRInt(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.prim.Name, func(t *testing.T) {
			got, err := tt.prim.Execute(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecute_WrongKind(t *testing.T) {
	_, err := AddPrimitive().Execute(ir.IRObject{"a": ir.IRString("1"), "b": ir.IRInt(1)})
	assert.ErrorContains(t, err, `input "a": want int`)

	_, err = ConcatPrimitive().Execute(ir.IRObject{"a": ir.IRString("x"), "b": ir.IRInt(1)})
	assert.ErrorContains(t, err, `input "b": want string`)
}

func TestGate_Activation(t *testing.T) {
	gate := GatePrimitive()
	assert.True(t, gate.Activation(ir.IRObject{"open": ir.IRBool(true)}))
	assert.False(t, gate.Activation(ir.IRObject{"open": ir.IRBool(false)}))
	assert.False(t, gate.Activation(ir.IRObject{"open": ir.IRInt(1)}))
}

func TestRegister(t *testing.T) {
	reg := engine.NewRegistry(nil)
	require.NoError(t, Register(reg))

	assert.Equal(t, []string{Add, Concat, Gate, Identity, Max, Min, Multiply, Subtract}, reg.Names())
	assert.Error(t, Register(reg), "names are registered once")
}

// gadget builds a one-group network whose boundary contacts are named
// after the given pins.
func gadget(groupID, primitive string, pins ...string) ir.Bassline {
	b := ir.NewBassline()
	g := ir.Group{ID: groupID, PrimitiveType: primitive}
	for _, pin := range pins {
		id := groupID + "." + pin
		b.Contacts[id] = ir.Contact{
			ID:        id,
			GroupID:   groupID,
			Name:      pin,
			BlendMode: ir.BlendMerge,
			Flags:     ir.ContactFlags{Boundary: true},
		}
		g.ContactIDs = append(g.ContactIDs, id)
		g.BoundaryContactIDs = append(g.BoundaryContactIDs, id)
	}
	b.Groups[groupID] = g
	return b
}

func newEngine(t *testing.T, b ir.Bassline) *engine.Engine {
	t.Helper()
	e, err := engine.New(b,
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithPrimitives(All()...),
	)
	require.NoError(t, err)
	return e
}

func TestAdd_InEngine(t *testing.T) {
	e := newEngine(t, gadget("g", Add, "a", "b", "sum"))

	require.NoError(t, e.SetValue("g.a", ir.IRInt(20)))
	_, ok := e.GetValue("g.sum")
	assert.False(t, ok, "one input is not enough")

	require.NoError(t, e.SetValue("g.b", ir.IRInt(22)))
	sum, ok := e.GetValue("g.sum")
	require.True(t, ok)
	assert.Equal(t, ir.IRInt(42), sum)
}

func TestGate_InEngine(t *testing.T) {
	e := newEngine(t, gadget("g", Gate, "value", "open", "out"))

	require.NoError(t, e.SetValue("g.value", ir.IRString("payload")))
	require.NoError(t, e.SetValue("g.open", ir.IRBool(false)))
	_, ok := e.GetValue("g.out")
	assert.False(t, ok)
}
