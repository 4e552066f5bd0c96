package engine

import (
	"errors"

	"github.com/roach88/bassline/internal/ir"
)

// ApplyAction applies one action and drains the queue.
func (e *Engine) ApplyAction(a ir.Action) error {
	e.enter()
	defer e.exit()

	if err := e.applyAction(a); err != nil {
		return err
	}
	e.record(a)
	return nil
}

// ApplyActions applies a set in order, stopping at the first failure.
// Actions before the failing one stay applied.
func (e *Engine) ApplyActions(set ir.ActionSet) error {
	e.enter()
	defer e.exit()

	for i, a := range set {
		if err := e.applyAction(a); err != nil {
			return &ActionSetError{Index: i, Type: a.ActionType(), Err: err}
		}
		e.record(a)
	}
	return nil
}

// applyActions is the unrecorded form used by the mirror gadget.
func (e *Engine) applyActions(set ir.ActionSet) error {
	for i, a := range set {
		if err := e.applyAction(a); err != nil {
			return &ActionSetError{Index: i, Type: a.ActionType(), Err: err}
		}
	}
	return nil
}

func (e *Engine) applyAction(a ir.Action) error {
	if a == nil {
		return newError(ErrCodeMalformedAction, "", "action is nil")
	}
	if err := a.Validate(); err != nil {
		return &RuntimeError{Code: ErrCodeMalformedAction, Message: err.Error()}
	}

	switch act := a.(type) {
	case ir.SetValue:
		if _, ok := e.network.Contacts[act.ContactID]; !ok {
			return errUnknownContact(act.ContactID)
		}
		return e.setValue(act.ContactID, act.Value)
	case ir.CreateContact:
		return e.createContact(act.Contact)
	case ir.DeleteContact:
		if _, ok := e.network.Contacts[act.ContactID]; !ok {
			return errUnknownContact(act.ContactID)
		}
		return e.removeStructure(act.ContactID)
	case ir.CreateWire:
		return e.createWire(act.Wire)
	case ir.DeleteWire:
		if _, ok := e.network.Wires[act.WireID]; !ok {
			return errUnknownWire(act.WireID)
		}
		return e.removeStructure(act.WireID)
	case ir.CreateGroup:
		return e.createGroup(act.Group)
	case ir.DeleteGroup:
		if _, ok := e.network.Groups[act.GroupID]; !ok {
			return errUnknownGroup(act.GroupID)
		}
		return e.removeStructure(act.GroupID)
	case ir.UpdateProperties:
		return e.updateProperties(act.TargetID, act.Properties)
	}
	return newError(ErrCodeMalformedAction, "", "unsupported action type %q", a.ActionType())
}

func (e *Engine) createContact(c ir.Contact) error {
	if c.GroupID != "" {
		if _, ok := e.network.Groups[c.GroupID]; !ok {
			return errUnknownGroup(c.GroupID)
		}
	}
	content := c.Content
	c.Content = nil

	b := ir.NewBassline()
	b.Contacts[c.ID] = c
	added, err := e.addStructure(b)
	if err != nil {
		return err
	}
	e.emit(ir.StructureChanged{Added: added.all()})

	if !ir.IsAbsent(content) {
		return e.setValue(c.ID, content)
	}
	return e.processQueue()
}

func (e *Engine) createWire(w ir.Wire) error {
	if _, ok := e.network.Contacts[w.FromID]; !ok {
		return errUnknownContact(w.FromID)
	}
	if _, ok := e.network.Contacts[w.ToID]; !ok {
		return errUnknownContact(w.ToID)
	}

	b := ir.NewBassline()
	b.Wires[w.ID] = w
	added, err := e.addStructure(b)
	if err != nil {
		return err
	}
	e.emit(ir.StructureChanged{Added: added.all()})
	e.refreshMirrors(w.FromID, w.ToID)
	e.seedWires(added.wires)
	return e.processQueue()
}

func (e *Engine) createGroup(g ir.Group) error {
	if g.ParentID != "" {
		if _, ok := e.network.Groups[g.ParentID]; !ok {
			return errUnknownGroup(g.ParentID)
		}
	}

	b := ir.NewBassline()
	b.Groups[g.ID] = g
	added, err := e.addStructure(b)
	if err != nil {
		return err
	}
	e.emit(ir.StructureChanged{Added: added.all()})
	if err := e.bindGadgets(added.groups); err != nil {
		return err
	}
	return e.processQueue()
}

// removeStructure deletes id with its cascade and announces the removal.
func (e *Engine) removeStructure(id string) error {
	removed := e.removeIDs([]string{id})
	if len(removed) > 0 {
		e.emit(ir.StructureChanged{Removed: removed})
	}
	return e.processQueue()
}

// updateProperties deep-merges props into a contact, wire or group.
// A contact's blend_mode property cannot change. Props that contradict the
// current properties leave them unchanged and raise a contradiction event.
func (e *Engine) updateProperties(targetID string, props ir.IRObject) error {
	switch e.kindOf(targetID) {
	case "contact":
		c := e.network.Contacts[targetID]
		if v, ok := props["blend_mode"]; ok && !ir.Equal(v, ir.IRString(c.BlendMode)) {
			return newError(ErrCodeImmutableProperty, targetID, "blend_mode cannot change after creation")
		}
		props = props.Clone()
		delete(props, "blend_mode")
		merged, ok := e.mergeProperties(targetID, c.Properties, props)
		if !ok {
			break
		}
		c.Properties = merged
		e.network.Contacts[targetID] = c
	case "wire":
		w := e.network.Wires[targetID]
		merged, ok := e.mergeProperties(targetID, w.Properties, props)
		if !ok {
			break
		}
		w.Properties = merged
		e.network.Wires[targetID] = w
	case "group":
		g := e.network.Groups[targetID]
		merged, ok := e.mergeProperties(targetID, g.Properties, props)
		if !ok {
			break
		}
		g.Properties = merged
		e.network.Groups[targetID] = g
		if _, ok := e.network.Contacts[ir.PropertiesContactID(targetID)]; ok {
			return e.setValue(ir.PropertiesContactID(targetID), props.Clone())
		}
	default:
		return newError(ErrCodeUnknownTarget, targetID, "no contact, wire or group with this id")
	}
	return e.processQueue()
}

func (e *Engine) mergeProperties(targetID string, current, incoming ir.IRObject) (ir.IRObject, bool) {
	if len(current) == 0 {
		return incoming.Clone(), true
	}
	merged, err := ir.Merge(current, incoming, ir.BlendMerge)
	if err != nil {
		var ce *ir.ContradictionError
		if !errors.As(err, &ce) {
			ce = &ir.ContradictionError{Current: current, Incoming: incoming, Reason: err.Error()}
		}
		e.logger.Warn("properties contradiction",
			"target", targetID,
			"reason", ce.Reason,
		)
		e.emit(ir.Contradiction{
			ContactID: targetID,
			Current:   ce.Current,
			Incoming:  ce.Incoming,
			Reason:    ce.Reason,
		})
		return current, false
	}
	return merged.(ir.IRObject), true
}
