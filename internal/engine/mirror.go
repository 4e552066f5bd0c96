package engine

import (
	"github.com/roach88/bassline/internal/ir"
)

const (
	mirrorActions   = "actions"
	mirrorStructure = "structure"
	mirrorEvents    = "events"

	// PropertyAllowMutation set to false makes a mirror ignore its actions input.
	PropertyAllowMutation = "allow-mutation"

	// PropertyTarget names the group a mirror observes.
	PropertyTarget = "target"
)

// mirror is a meta-propagation gadget bound to one group. It publishes a
// structural snapshot on its structure contact, applies action sets that
// arrive on its actions contact, and forwards engine events to its events
// contact while that contact is wired to anything.
type mirror struct {
	groupID     string
	primitive   string
	actionsID   string
	structureID string
	eventsID    string
	cancel      func()
}

func (m *mirror) unsubscribe() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// bindMirrors registers a mirror for every @mirror group in groupIDs that
// does not have one yet.
func (e *Engine) bindMirrors(groupIDs []string) error {
	for _, gid := range groupIDs {
		g, ok := e.network.Groups[gid]
		if !ok || g.PrimitiveType != ir.PrimitiveTypeMirror {
			continue
		}
		if _, bound := e.mirrors[gid]; bound {
			continue
		}
		if err := e.registerMirror(gid); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) registerMirror(groupID string) error {
	ids, err := e.ensureBoundary(groupID, map[string]ir.BlendMode{
		mirrorActions:   ir.BlendLast,
		mirrorStructure: ir.BlendLast,
		mirrorEvents:    ir.BlendLast,
	})
	if err != nil {
		return err
	}

	m := &mirror{
		groupID:     groupID,
		primitive:   "@mirror/" + groupID,
		actionsID:   ids[mirrorActions],
		structureID: ids[mirrorStructure],
		eventsID:    ids[mirrorEvents],
	}
	err = e.registry.Register(Primitive{
		Name:     m.primitive,
		Inputs:   []string{mirrorActions},
		Optional: []string{mirrorActions},
		Outputs:  []string{mirrorStructure, mirrorEvents},
		Execute: func(inputs ir.IRObject) (ir.IRObject, error) {
			return e.runMirror(m, inputs)
		},
	})
	if err != nil {
		return err
	}
	e.bindings[groupID] = m.primitive
	e.mirrors[groupID] = m
	e.logger.Debug("mirror bound", "group", groupID)

	// Publish the initial structure.
	return e.request(ir.PrimitiveRequested{GroupID: groupID, Primitive: m.primitive, Inputs: ir.IRObject{}})
}

// ensureBoundary returns the boundary contact for each name, creating
// <group>:<name> contacts for the missing ones.
func (e *Engine) ensureBoundary(groupID string, names map[string]ir.BlendMode) (map[string]string, error) {
	g := e.network.Groups[groupID]
	found := make(map[string]string, len(names))
	for _, cid := range g.BoundaryContactIDs {
		if c, ok := e.network.Contacts[cid]; ok {
			if _, wanted := names[contactName(c)]; wanted {
				found[contactName(c)] = cid
			}
		}
	}

	b := ir.NewBassline()
	for _, name := range sortedIDs(names) {
		if _, ok := found[name]; ok {
			continue
		}
		id := groupID + ":" + name
		if e.kindOf(id) != "" {
			id = e.ids.Generate()
		}
		b.Contacts[id] = ir.Contact{
			ID:        id,
			GroupID:   groupID,
			Name:      name,
			BlendMode: names[name],
			Flags:     ir.ContactFlags{Boundary: true},
		}
		found[name] = id
	}
	if len(b.Contacts) > 0 {
		if _, err := e.addStructure(b); err != nil {
			return nil, err
		}
	}
	return found, nil
}

func (e *Engine) runMirror(m *mirror, inputs ir.IRObject) (ir.IRObject, error) {
	e.refreshMirror(m)

	props := e.groupProperties(m.groupID)
	if acts, ok := inputs[mirrorActions]; ok && !ir.Equal(props[PropertyAllowMutation], ir.IRBool(false)) {
		set, err := ir.ActionsFromIR(acts)
		if err != nil {
			return nil, err
		}
		if err := e.applyActions(set); err != nil {
			return nil, err
		}
	}

	return ir.IRObject{mirrorStructure: e.mirrorSnapshot(m).ToIR()}, nil
}

// mirrorSnapshot is the observed structure: the group named by the target
// property, else the mirror's parent group, else the whole network.
func (e *Engine) mirrorSnapshot(m *mirror) ir.Bassline {
	target := ""
	if s, ok := e.groupProperties(m.groupID)[PropertyTarget].(ir.IRString); ok {
		target = string(s)
	} else if g, ok := e.network.Groups[m.groupID]; ok {
		target = g.ParentID
	}
	if _, ok := e.network.Groups[target]; !ok {
		target = ""
	}
	return e.snapshot(SnapshotOptions{GroupID: target, Recursive: true})
}

// refreshMirror subscribes the mirror to the event stream while its events
// contact feeds a wire, and unsubscribes once it no longer does.
func (e *Engine) refreshMirror(m *mirror) {
	wired := e.isWireSource(m.eventsID)
	switch {
	case wired && m.cancel == nil:
		m.cancel = e.OnEvent(func(ev ir.Event) { e.forwardEvent(m, ev) })
	case !wired && m.cancel != nil:
		m.unsubscribe()
	}
}

func (e *Engine) refreshMirrors(contactIDs ...string) {
	for _, gid := range sortedIDs(e.mirrors) {
		m := e.mirrors[gid]
		for _, id := range contactIDs {
			if id == m.eventsID {
				e.refreshMirror(m)
				break
			}
		}
	}
}

func (e *Engine) refreshAllMirrors() {
	for _, gid := range sortedIDs(e.mirrors) {
		e.refreshMirror(e.mirrors[gid])
	}
}

// forwardEvent streams ev into the events contact. Events caused by
// forwarded events are not forwarded again.
func (e *Engine) forwardEvent(m *mirror, ev ir.Event) {
	if e.derived {
		return
	}
	if _, ok := e.network.Contacts[m.eventsID]; !ok {
		return
	}
	e.queue.push(workItem{target: m.eventsID, value: ir.EventToIR(ev), derived: true})
	if err := e.processQueue(); err != nil {
		e.logger.Warn("mirror event delivery failed", "group", m.groupID, "error", err)
	}
}
