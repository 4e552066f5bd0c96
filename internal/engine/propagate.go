package engine

import (
	"github.com/roach88/bassline/internal/ir"
)

// SetValue writes v into a contact and drains the queue.
//
// The write merges under the contact's blend mode. Contradictions are
// reported as events, never as errors; the error return is reserved for
// caller mistakes and quota exhaustion.
func (e *Engine) SetValue(contactID string, v ir.IRValue) error {
	e.enter()
	defer e.exit()

	if _, ok := e.network.Contacts[contactID]; !ok {
		return errUnknownContact(contactID)
	}
	if err := e.setValue(contactID, v); err != nil {
		return err
	}
	e.record(ir.SetValue{ContactID: contactID, Value: v})
	return nil
}

// SendStream pushes one event into a last-mode contact. Every call
// produces a value change, even for repeated identical values.
func (e *Engine) SendStream(contactID string, v ir.IRValue) error {
	e.enter()
	defer e.exit()

	c, ok := e.network.Contacts[contactID]
	if !ok {
		return errUnknownContact(contactID)
	}
	if c.BlendMode != ir.BlendLast {
		return newError(ErrCodeNotAStream, contactID, "contact blend mode is %q", c.BlendMode)
	}
	if err := e.setValue(contactID, v); err != nil {
		return err
	}
	e.record(ir.SetValue{ContactID: contactID, Value: v})
	return nil
}

// setValue is the unrecorded write used by gadgets and actions.
func (e *Engine) setValue(contactID string, v ir.IRValue) error {
	e.push(contactID, v, "")
	return e.processQueue()
}

func (e *Engine) push(target string, v ir.IRValue, origin string) {
	e.queue.push(workItem{target: target, value: v, origin: origin, derived: e.derived})
}

// enqueue sends v along w from one endpoint to the other.
func (e *Engine) enqueue(w ir.Wire, from, to string, v ir.IRValue) {
	e.push(to, v, from)
	e.emit(ir.Propagating{WireID: w.ID, FromID: from, ToID: to, Value: v})
}

// processQueue drains the work queue breadth-first.
//
// A call made while a drain is active returns at once; its items are picked
// up by the active drain. Each round that processed at least one item ends
// with a converged event. Listeners of that event may queue more work (a
// mirror forwarding converged), which starts another round.
func (e *Engine) processQueue() error {
	if e.draining {
		return nil
	}
	e.draining = true
	defer func() {
		e.draining = false
		e.derived = false
	}()

	quota := newStepQuota(e.maxSteps)
	for e.queue.Len() > 0 {
		steps := 0
		onlyDerived := true
		for {
			item, ok := e.queue.pop()
			if !ok {
				break
			}
			if err := quota.Check(); err != nil {
				e.queue.clear()
				e.logger.Error("propagation quota exceeded",
					"max_steps", e.maxSteps,
					"contact", item.target,
				)
				return err
			}
			steps++
			onlyDerived = onlyDerived && item.derived
			e.derived = item.derived
			if err := e.propagateOne(item); err != nil {
				e.queue.clear()
				return err
			}
		}
		if steps > 0 {
			e.derived = onlyDerived
			e.emit(ir.Converged{Steps: int64(steps)})
		}
	}
	return nil
}

// propagateOne delivers a single queued write.
func (e *Engine) propagateOne(item workItem) error {
	c, ok := e.network.Contacts[item.target]
	if !ok {
		if e.throwOnMissing {
			return errUnknownContact(item.target)
		}
		e.logger.Warn("propagation into missing contact",
			"contact", item.target,
			"origin", item.origin,
		)
		return nil
	}

	if c.Flags.ReadOnlyFromInside && c.GroupID != "" && item.origin != "" {
		if from, ok := e.network.Contacts[item.origin]; ok && from.GroupID == c.GroupID {
			return nil
		}
	}

	old, hadOld := e.values[c.ID]
	merged, err := ir.Merge(old, item.value, c.BlendMode)
	if err != nil {
		if ce, ok := err.(*ir.ContradictionError); ok {
			e.logger.Warn("contradiction",
				"contact", c.ID,
				"reason", ce.Reason,
			)
			e.emit(ir.Contradiction{
				ContactID: c.ID,
				Current:   ce.Current,
				Incoming:  ce.Incoming,
				Reason:    ce.Reason,
			})
			return nil
		}
		return err
	}

	if c.BlendMode == ir.BlendMerge {
		if ir.IsAbsent(merged) {
			return nil
		}
		if hadOld && ir.Equal(old, merged) {
			return nil
		}
	}

	e.values[c.ID] = merged
	if c.BlendMode == ir.BlendLast || hadOld || item.origin != "" {
		var prev ir.IRValue
		if hadOld {
			prev = old
		}
		e.emit(ir.ValueChanged{ContactID: c.ID, Old: prev, New: merged})
	}

	for _, w := range e.wiresTouching(c.ID) {
		if w.FromID == c.ID && w.ToID != item.origin {
			e.enqueue(w, c.ID, w.ToID, merged)
		}
		if w.Bidirectional && w.ToID == c.ID && w.FromID != item.origin {
			e.enqueue(w, c.ID, w.FromID, merged)
		}
	}

	return e.checkGadgetActivation(c)
}

// checkGadgetActivation requests the owning gadget's primitive when c is
// one of its boundary inputs and every required input holds a value.
func (e *Engine) checkGadgetActivation(c ir.Contact) error {
	g, ok := e.network.Groups[c.GroupID]
	if !ok || !g.HasBoundary(c.ID) {
		return nil
	}

	name := g.PrimitiveType
	if bound, ok := e.bindings[g.ID]; ok {
		name = bound
	}
	if name == "" {
		return nil
	}
	prim, ok := e.registry.Lookup(name)
	if !ok {
		return nil
	}

	trigger := contactName(c)
	if !prim.isInput(trigger) || prim.isOutput(trigger) {
		return nil
	}

	inputs, ok := e.gatherInputs(g, prim)
	if !ok {
		return nil
	}

	var generation int64
	if c.BlendMode == ir.BlendLast {
		generation = e.clock.Next()
	}
	return e.request(ir.PrimitiveRequested{
		GroupID:    g.ID,
		Primitive:  prim.Name,
		Inputs:     inputs,
		Generation: generation,
	})
}

// gatherInputs snapshots the boundary values a primitive reads, keyed by
// contact name. Reports false while a required input is still empty.
func (e *Engine) gatherInputs(g ir.Group, prim *Primitive) (ir.IRObject, bool) {
	byName := make(map[string]string, len(g.BoundaryContactIDs))
	for _, cid := range g.BoundaryContactIDs {
		if bc, ok := e.network.Contacts[cid]; ok {
			byName[contactName(bc)] = cid
		}
	}

	inputs := make(ir.IRObject, len(prim.Inputs))
	for _, name := range prim.Inputs {
		v, ok := e.values[byName[name]]
		if !ok || ir.IsAbsent(v) {
			if prim.isOptional(name) {
				continue
			}
			return nil, false
		}
		inputs[name] = v
	}
	return inputs, true
}
