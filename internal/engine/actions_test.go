package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bassline/internal/ir"
)

func structureChanges(l *eventLog) []ir.StructureChanged {
	var out []ir.StructureChanged
	for _, ev := range l.events {
		if sc, ok := ev.(ir.StructureChanged); ok {
			out = append(out, sc)
		}
	}
	return out
}

func TestAction_CreateContact(t *testing.T) {
	e := newTestEngine(t, newNet().group("g", "", "").build())
	log := watch(e)

	err := e.ApplyAction(ir.CreateContact{Contact: ir.Contact{
		ID:        "g.in",
		GroupID:   "g",
		Name:      "in",
		BlendMode: ir.BlendMerge,
		Flags:     ir.ContactFlags{Boundary: true},
		Content:   ir.IRInt(9),
	}})
	require.NoError(t, err)

	g, _ := e.Group("g")
	assert.Contains(t, g.ContactIDs, "g.in")
	assert.Contains(t, g.BoundaryContactIDs, "g.in")
	assert.Equal(t, ir.IRInt(9), mustValue(t, e, "g.in"))

	changes := structureChanges(log)
	require.Len(t, changes, 1)
	assert.Equal(t, []string{"g.in"}, changes[0].Added)
}

func TestAction_CreateContactDefaultsToMerge(t *testing.T) {
	e := newTestEngine(t, ir.NewBassline())

	require.NoError(t, e.ApplyAction(ir.CreateContact{Contact: ir.Contact{ID: "c"}}))
	c, ok := e.Contact("c")
	require.True(t, ok)
	assert.Equal(t, ir.BlendMerge, c.BlendMode)
}

func TestAction_CreateContactErrors(t *testing.T) {
	e := newTestEngine(t, newNet().contact("taken", ir.BlendMerge).group("g", "", "").build())

	tests := []struct {
		name    string
		contact ir.Contact
		code    RuntimeErrorCode
	}{
		{"duplicate contact id", ir.Contact{ID: "taken"}, ErrCodeDuplicateID},
		{"id used by a group", ir.Contact{ID: "g"}, ErrCodeDuplicateID},
		{"unknown group", ir.Contact{ID: "new", GroupID: "nowhere"}, ErrCodeUnknownGroup},
		{"missing id", ir.Contact{}, ErrCodeMalformedAction},
		{"bad blend mode", ir.Contact{ID: "new", BlendMode: "max"}, ErrCodeMalformedAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.ApplyAction(ir.CreateContact{Contact: tt.contact})
			require.Error(t, err)
			assert.True(t, IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestAction_CreateWireSeeds(t *testing.T) {
	e := newTestEngine(t, newNet().
		valued("a", ir.BlendMerge, ir.IRInt(1)).
		contact("b", ir.BlendMerge).
		build())

	require.NoError(t, e.ApplyAction(ir.CreateWire{Wire: ir.Wire{ID: "w", FromID: "a", ToID: "b", Bidirectional: true}}))
	assert.Equal(t, ir.IRInt(1), mustValue(t, e, "b"))
}

func TestAction_CreateWireErrors(t *testing.T) {
	e := newTestEngine(t, newNet().
		contact("a", ir.BlendMerge).
		contact("b", ir.BlendMerge).
		wire("w", "a", "b", true).
		group("g", "", "").
		member("g", "g.x", "x", ir.BlendMerge, false).
		build())

	tests := []struct {
		name string
		wire ir.Wire
		code RuntimeErrorCode
	}{
		{"unknown source", ir.Wire{ID: "w2", FromID: "zz", ToID: "b"}, ErrCodeUnknownContact},
		{"unknown target", ir.Wire{ID: "w2", FromID: "a", ToID: "zz"}, ErrCodeUnknownContact},
		{"self wire", ir.Wire{ID: "w2", FromID: "a", ToID: "a"}, ErrCodeMalformedAction},
		{"duplicate id", ir.Wire{ID: "w", FromID: "a", ToID: "b"}, ErrCodeDuplicateID},
		{"into properties from inside", ir.Wire{ID: "w2", FromID: "g.x", ToID: ir.PropertiesContactID("g")}, ErrCodeIllegalWire},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.ApplyAction(ir.CreateWire{Wire: tt.wire})
			require.Error(t, err)
			assert.True(t, IsCode(err, tt.code), "got %v", err)
		})
	}

	// Writing a group's properties from outside the group is allowed.
	require.NoError(t, e.ApplyAction(ir.CreateWire{Wire: ir.Wire{ID: "w3", FromID: "a", ToID: ir.PropertiesContactID("g")}}))
}

func TestAction_DeleteContactCascades(t *testing.T) {
	e := newTestEngine(t, newNet().
		contact("a", ir.BlendMerge).
		contact("b", ir.BlendMerge).
		wire("w", "a", "b", true).
		build())
	require.NoError(t, e.SetValue("a", ir.IRInt(1)))
	log := watch(e)

	require.NoError(t, e.ApplyAction(ir.DeleteContact{ContactID: "b"}))

	snap, err := e.GetBassline(SnapshotOptions{})
	require.NoError(t, err)
	assert.NotContains(t, snap.Wires, "w")
	assert.NotContains(t, snap.Contacts, "b")
	_, ok := e.GetValue("b")
	assert.False(t, ok)

	changes := structureChanges(log)
	require.Len(t, changes, 1)
	assert.Equal(t, []string{"w", "b"}, changes[0].Removed)

	assert.False(t, e.isWireSource("a"))
	assert.Empty(t, e.wiresTouching("a"))
}

func TestAction_DeleteGroupCascades(t *testing.T) {
	e := newTestEngine(t, newNet().
		group("g", "", "").
		group("h", "g", "").
		member("g", "g.x", "x", ir.BlendMerge, true).
		member("h", "h.y", "y", ir.BlendMerge, true).
		contact("outside", ir.BlendMerge).
		wire("w", "outside", "h.y", true).
		build())
	log := watch(e)

	require.NoError(t, e.ApplyAction(ir.DeleteGroup{GroupID: "g"}))

	snap, err := e.GetBassline(SnapshotOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"outside"}, sortedIDs(snap.Contacts))
	assert.Empty(t, snap.Wires)
	assert.Empty(t, snap.Groups)

	changes := structureChanges(log)
	require.Len(t, changes, 1)
	assert.ElementsMatch(t, []string{
		"w", "h.y", ir.PropertiesContactID("h"), "h",
		"g.x", ir.PropertiesContactID("g"), "g",
	}, changes[0].Removed)
}

func TestAction_DeleteUnknown(t *testing.T) {
	e := newTestEngine(t, ir.NewBassline())

	assert.True(t, IsCode(e.ApplyAction(ir.DeleteContact{ContactID: "x"}), ErrCodeUnknownContact))
	assert.True(t, IsCode(e.ApplyAction(ir.DeleteWire{WireID: "x"}), ErrCodeUnknownWire))
	assert.True(t, IsCode(e.ApplyAction(ir.DeleteGroup{GroupID: "x"}), ErrCodeUnknownGroup))
}

func TestAction_CreateGroup(t *testing.T) {
	e := newTestEngine(t, newNet().group("parent", "", "").build())
	log := watch(e)

	require.NoError(t, e.ApplyAction(ir.CreateGroup{Group: ir.Group{
		ID:         "child",
		ParentID:   "parent",
		Properties: ir.IRObject{"color": ir.IRString("red")},
	}}))

	g, ok := e.Group("child")
	require.True(t, ok)
	assert.Equal(t, "parent", g.ParentID)
	assert.Equal(t, ir.IRObject{"color": ir.IRString("red")}, mustValue(t, e, ir.PropertiesContactID("child")))

	changes := structureChanges(log)
	require.Len(t, changes, 1)
	assert.ElementsMatch(t, []string{"child", ir.PropertiesContactID("child")}, changes[0].Added)

	err := e.ApplyAction(ir.CreateGroup{Group: ir.Group{ID: "orphan", ParentID: "missing"}})
	assert.True(t, IsCode(err, ErrCodeUnknownGroup))

	err = e.ApplyAction(ir.CreateGroup{Group: ir.Group{ID: "full", ContactIDs: []string{"x"}}})
	assert.True(t, IsCode(err, ErrCodeMalformedAction))
}

func TestAction_UpdateProperties(t *testing.T) {
	e := newTestEngine(t, newNet().
		contact("c", ir.BlendMerge).
		contact("d", ir.BlendMerge).
		wire("w", "c", "d", true).
		group("g", "", "").
		build())

	t.Run("contact", func(t *testing.T) {
		require.NoError(t, e.ApplyAction(ir.UpdateProperties{TargetID: "c", Properties: ir.IRObject{"unit": ir.IRString("m")}}))
		require.NoError(t, e.ApplyAction(ir.UpdateProperties{TargetID: "c", Properties: ir.IRObject{"label": ir.IRString("len")}}))
		c, _ := e.Contact("c")
		assert.Equal(t, ir.IRObject{"unit": ir.IRString("m"), "label": ir.IRString("len")}, c.Properties)
	})

	t.Run("blend mode is immutable", func(t *testing.T) {
		err := e.ApplyAction(ir.UpdateProperties{TargetID: "c", Properties: ir.IRObject{"blend_mode": ir.IRString("last")}})
		assert.True(t, IsCode(err, ErrCodeImmutableProperty))

		err = e.ApplyAction(ir.UpdateProperties{TargetID: "c", Properties: ir.IRObject{"blend_mode": ir.IRString("merge")}})
		assert.NoError(t, err, "restating the current mode is not a change")
	})

	t.Run("wire", func(t *testing.T) {
		require.NoError(t, e.ApplyAction(ir.UpdateProperties{TargetID: "w", Properties: ir.IRObject{"weight": ir.IRInt(2)}}))
		snap, _ := e.GetBassline(SnapshotOptions{})
		assert.Equal(t, ir.IRObject{"weight": ir.IRInt(2)}, snap.Wires["w"].Properties)
	})

	t.Run("group updates its properties contact", func(t *testing.T) {
		require.NoError(t, e.ApplyAction(ir.UpdateProperties{TargetID: "g", Properties: ir.IRObject{"allow-mutation": ir.IRBool(false)}}))
		g, _ := e.Group("g")
		assert.Equal(t, ir.IRObject{"allow-mutation": ir.IRBool(false)}, g.Properties)
		assert.Equal(t, ir.IRObject{"allow-mutation": ir.IRBool(false)}, mustValue(t, e, ir.PropertiesContactID("g")))
	})

	t.Run("unknown target", func(t *testing.T) {
		err := e.ApplyAction(ir.UpdateProperties{TargetID: "ghost", Properties: ir.IRObject{}})
		assert.True(t, IsCode(err, ErrCodeUnknownTarget))
	})
}

func TestAction_UpdatePropertiesMergesCollections(t *testing.T) {
	e := newTestEngine(t, newNet().group("g", "", "").build())
	tags := func(vals ...string) ir.IRObject {
		set := make([]ir.IRValue, len(vals))
		for i, v := range vals {
			set[i] = ir.IRString(v)
		}
		return ir.IRObject{"tags": ir.NewGrowSet(set...), "pick": ir.NewShrinkSet(ir.IRInt(1), ir.IRInt(2))}
	}

	require.NoError(t, e.ApplyAction(ir.UpdateProperties{TargetID: "g", Properties: tags("a")}))
	require.NoError(t, e.ApplyAction(ir.UpdateProperties{TargetID: "g", Properties: tags("b")}))
	g, _ := e.Group("g")
	assert.True(t, ir.Equal(tags("a", "b"), g.Properties), "growing leaves union")

	log := watch(e)
	err := e.ApplyAction(ir.UpdateProperties{TargetID: "g", Properties: ir.IRObject{"pick": ir.IRInt(3)}})
	require.NoError(t, err, "contradictions are events, not errors")

	require.Equal(t, 1, log.count(ir.EventContradiction))
	var ev ir.Contradiction
	for _, raw := range log.events {
		if c, ok := raw.(ir.Contradiction); ok {
			ev = c
		}
	}
	assert.Equal(t, "g", ev.ContactID)
	assert.Contains(t, ev.Reason, "pick: ")

	g, _ = e.Group("g")
	assert.True(t, ir.Equal(tags("a", "b"), g.Properties), "a contradicting update changes nothing")
}

func TestApplyActions_StopsAtFirstFailure(t *testing.T) {
	e := newTestEngine(t, ir.NewBassline())

	var recorded []string
	e.OnAction(func(a ir.Action) { recorded = append(recorded, a.ActionType()) })

	err := e.ApplyActions(ir.ActionSet{
		ir.CreateContact{Contact: ir.Contact{ID: "a", BlendMode: ir.BlendMerge}},
		ir.CreateContact{Contact: ir.Contact{ID: "a", BlendMode: ir.BlendMerge}},
		ir.CreateContact{Contact: ir.Contact{ID: "b", BlendMode: ir.BlendMerge}},
	})
	require.Error(t, err)

	var setErr *ActionSetError
	require.ErrorAs(t, err, &setErr)
	assert.Equal(t, 1, setErr.Index)
	assert.Equal(t, ir.ActionCreateContact, setErr.Type)
	assert.True(t, IsCode(err, ErrCodeDuplicateID))

	_, ok := e.Contact("a")
	assert.True(t, ok, "earlier actions stay applied")
	_, ok = e.Contact("b")
	assert.False(t, ok)
	assert.Equal(t, []string{ir.ActionCreateContact}, recorded)
}

func TestApplyAction_Nil(t *testing.T) {
	e := newTestEngine(t, ir.NewBassline())
	assert.True(t, IsCode(e.ApplyAction(nil), ErrCodeMalformedAction))
}
