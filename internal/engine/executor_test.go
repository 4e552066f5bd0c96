package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bassline/internal/ir"
)

func TestGadget_AddFiresOnceInputsComplete(t *testing.T) {
	e := newTestEngine(t, adderNet().build(), WithPrimitives(addPrimitive()))
	log := watch(e)

	require.NoError(t, e.SetValue("adder.a", ir.IRInt(2)))
	assert.Equal(t, 0, log.count(ir.EventPrimitiveRequested), "b is still empty")

	require.NoError(t, e.SetValue("adder.b", ir.IRInt(3)))
	assert.Equal(t, ir.IRInt(5), mustValue(t, e, "adder.sum"))
	assert.Equal(t, 1, log.count(ir.EventPrimitiveRequested))
	assert.Equal(t, 1, log.count(ir.EventPrimitiveExecuted))
	assert.Equal(t, 1, log.count(ir.EventGadgetActivated))

	var order []string
	for _, typ := range log.types() {
		switch typ {
		case ir.EventPrimitiveRequested, ir.EventPrimitiveExecuted, ir.EventGadgetActivated:
			order = append(order, typ)
		}
	}
	assert.Equal(t, []string{
		ir.EventPrimitiveRequested,
		ir.EventPrimitiveExecuted,
		ir.EventGadgetActivated,
	}, order)
}

func TestGadget_OutputWriteDoesNotRetrigger(t *testing.T) {
	e := newTestEngine(t, adderNet().build(), WithPrimitives(addPrimitive()))
	log := watch(e)

	require.NoError(t, e.SetValue("adder.a", ir.IRInt(1)))
	require.NoError(t, e.SetValue("adder.b", ir.IRInt(1)))
	require.NoError(t, e.SetValue("adder.b", ir.IRInt(1)))

	assert.Equal(t, 1, log.count(ir.EventPrimitiveExecuted), "unchanged input does not reactivate")
}

func TestGadget_ExecuteError(t *testing.T) {
	failing := Primitive{
		Name:    "fail",
		Inputs:  []string{"in"},
		Outputs: []string{"out"},
		Execute: func(ir.IRObject) (ir.IRObject, error) {
			return nil, errors.New("no luck")
		},
	}
	e := newTestEngine(t, newNet().
		group("g", "", "fail").
		member("g", "g.in", "in", ir.BlendMerge, true).
		member("g", "g.out", "out", ir.BlendMerge, true).
		build(), WithPrimitives(failing))
	log := watch(e)

	require.NoError(t, e.SetValue("g.in", ir.IRInt(1)))

	require.Equal(t, 1, log.count(ir.EventPrimitiveFailed))
	for _, ev := range log.events {
		if f, ok := ev.(ir.PrimitiveFailed); ok {
			assert.Equal(t, "g", f.GroupID)
			assert.Equal(t, "no luck", f.Error)
			assert.Equal(t, ir.IRObject{"in": ir.IRInt(1)}, f.Inputs)
		}
	}
	assert.Equal(t, 0, log.count(ir.EventGadgetActivated))
	_, ok := e.GetValue("g.out")
	assert.False(t, ok)
}

func TestGadget_ExecutePanicRecovered(t *testing.T) {
	panicky := Primitive{
		Name:    "panicky",
		Inputs:  []string{"in"},
		Outputs: []string{"out"},
		Execute: func(ir.IRObject) (ir.IRObject, error) {
			panic("kaboom")
		},
	}
	e := newTestEngine(t, newNet().
		group("g", "", "panicky").
		member("g", "g.in", "in", ir.BlendMerge, true).
		build(), WithPrimitives(panicky))
	log := watch(e)

	assert.NotPanics(t, func() {
		require.NoError(t, e.SetValue("g.in", ir.IRInt(1)))
	})
	require.Equal(t, 1, log.count(ir.EventPrimitiveFailed))
	for _, ev := range log.events {
		if f, ok := ev.(ir.PrimitiveFailed); ok {
			assert.Contains(t, f.Error, "kaboom")
		}
	}
}

func TestGadget_ActivationGuard(t *testing.T) {
	positiveOnly := Primitive{
		Name:    "double",
		Inputs:  []string{"in"},
		Outputs: []string{"out"},
		Activation: func(in ir.IRObject) bool {
			n, ok := in["in"].(ir.IRInt)
			return ok && n > 0
		},
		Execute: func(in ir.IRObject) (ir.IRObject, error) {
			return ir.IRObject{"out": in["in"].(ir.IRInt) * 2}, nil
		},
	}
	e := newTestEngine(t, newNet().
		group("g", "", "double").
		member("g", "g.in", "in", ir.BlendLast, true).
		member("g", "g.out", "out", ir.BlendLast, true).
		build(), WithPrimitives(positiveOnly))
	log := watch(e)

	require.NoError(t, e.SendStream("g.in", ir.IRInt(-1)))
	assert.Equal(t, 1, log.count(ir.EventPrimitiveRequested))
	assert.Equal(t, 0, log.count(ir.EventPrimitiveExecuted))

	require.NoError(t, e.SendStream("g.in", ir.IRInt(4)))
	assert.Equal(t, ir.IRInt(8), mustValue(t, e, "g.out"))
}

func TestGadget_StreamTriggerStampsGeneration(t *testing.T) {
	echo := Primitive{
		Name:    "echo",
		Inputs:  []string{"in"},
		Outputs: []string{"out"},
		Execute: func(in ir.IRObject) (ir.IRObject, error) {
			return ir.IRObject{"out": in["in"]}, nil
		},
	}
	e := newTestEngine(t, newNet().
		group("g", "", "echo").
		member("g", "g.in", "in", ir.BlendLast, true).
		member("g", "g.out", "out", ir.BlendLast, true).
		build(), WithPrimitives(echo))
	log := watch(e)

	require.NoError(t, e.SendStream("g.in", ir.IRString("same")))
	require.NoError(t, e.SendStream("g.in", ir.IRString("same")))

	var generations []int64
	for _, ev := range log.events {
		if req, ok := ev.(ir.PrimitiveRequested); ok {
			generations = append(generations, req.Generation)
		}
	}
	assert.Equal(t, []int64{1, 2}, generations)
	assert.Len(t, log.valueChanges("g.out"), 2)
}

func TestGadget_StreamOutputSplitsArrays(t *testing.T) {
	burst := Primitive{
		Name:    "burst",
		Inputs:  []string{"in"},
		Outputs: []string{"out"},
		Execute: func(ir.IRObject) (ir.IRObject, error) {
			return ir.IRObject{"out": ir.IRArray{ir.IRInt(1), ir.IRInt(2), ir.IRInt(3)}}, nil
		},
	}
	e := newTestEngine(t, newNet().
		group("g", "", "burst").
		member("g", "g.in", "in", ir.BlendMerge, true).
		member("g", "g.out", "out", ir.BlendLast, true).
		build(), WithPrimitives(burst))
	log := watch(e)

	require.NoError(t, e.SetValue("g.in", ir.IRBool(true)))

	assert.Len(t, log.valueChanges("g.out"), 3)
	assert.Equal(t, ir.IRInt(3), mustValue(t, e, "g.out"))
}

func TestGadget_OptionalInputs(t *testing.T) {
	greet := Primitive{
		Name:     "greet",
		Inputs:   []string{"name", "greeting"},
		Optional: []string{"greeting"},
		Outputs:  []string{"out"},
		Execute: func(in ir.IRObject) (ir.IRObject, error) {
			greeting := ir.IRString("hello")
			if g, ok := in["greeting"].(ir.IRString); ok {
				greeting = g
			}
			return ir.IRObject{"out": greeting + " " + in["name"].(ir.IRString)}, nil
		},
	}
	e := newTestEngine(t, newNet().
		group("g", "", "greet").
		member("g", "g.name", "name", ir.BlendMerge, true).
		member("g", "g.greeting", "greeting", ir.BlendMerge, true).
		member("g", "g.out", "out", ir.BlendLast, true).
		build(), WithPrimitives(greet))

	require.NoError(t, e.SetValue("g.name", ir.IRString("ada")))
	assert.Equal(t, ir.IRString("hello ada"), mustValue(t, e, "g.out"))

	require.NoError(t, e.SetValue("g.greeting", ir.IRString("hi")))
	assert.Equal(t, ir.IRString("hi ada"), mustValue(t, e, "g.out"))
}

func TestGadget_NonBoundaryMemberDoesNotTrigger(t *testing.T) {
	e := newTestEngine(t, adderNet().
		member("adder", "adder.scratch", "a", ir.BlendMerge, false).
		build(), WithPrimitives(addPrimitive()))
	log := watch(e)

	require.NoError(t, e.SetValue("adder.b", ir.IRInt(1)))
	require.NoError(t, e.SetValue("adder.scratch", ir.IRInt(1)))
	assert.Equal(t, 0, log.count(ir.EventPrimitiveRequested))
}

func TestRegistry_ParentFallback(t *testing.T) {
	parent := newTestEngine(t, ir.NewBassline(), WithPrimitives(addPrimitive()))
	child := newTestEngine(t, adderNet().build(), WithParent(parent))

	require.NoError(t, child.SetValue("adder.a", ir.IRInt(20)))
	require.NoError(t, child.SetValue("adder.b", ir.IRInt(22)))
	assert.Equal(t, ir.IRInt(42), mustValue(t, child, "adder.sum"))

	assert.Empty(t, child.Registry().Names())
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(addPrimitive()))

	err := r.Register(addPrimitive())
	assert.True(t, IsCode(err, ErrCodeDuplicatePrimitive))

	err = r.Register(Primitive{Name: "noop"})
	assert.True(t, IsCode(err, ErrCodeMalformedAction))

	err = r.Register(Primitive{Execute: addPrimitive().Execute})
	assert.True(t, IsCode(err, ErrCodeMalformedAction))

	p, ok := r.Lookup("add")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, p.Inputs)

	r.Unregister("add")
	_, ok = r.Lookup("add")
	assert.False(t, ok)
}

func TestNew_DuplicatePrimitiveOption(t *testing.T) {
	_, err := New(ir.NewBassline(),
		WithLogger(quietLogger()),
		WithPrimitives(addPrimitive(), addPrimitive()),
	)
	assert.True(t, IsCode(err, ErrCodeDuplicatePrimitive))
}
