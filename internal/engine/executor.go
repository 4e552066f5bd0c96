package engine

import (
	"fmt"

	"github.com/roach88/bassline/internal/ir"
)

// request announces a primitive request and runs it. Listeners observe
// primitive-requested, then primitive-executed or primitive-failed, then
// gadget-activated, in that order. The error is the drain failure that
// follows routing the outputs, when no outer drain is active to report it.
func (e *Engine) request(req ir.PrimitiveRequested) error {
	e.emit(req)
	return e.runPrimitive(req)
}

func (e *Engine) runPrimitive(req ir.PrimitiveRequested) error {
	prim, ok := e.registry.Lookup(req.Primitive)
	if !ok {
		e.logger.Warn("requested primitive is not registered",
			"primitive", req.Primitive,
			"group", req.GroupID,
		)
		return nil
	}
	if prim.Activation != nil && !prim.Activation(req.Inputs) {
		return nil
	}

	outputs, err := callPrimitive(prim, req.Inputs)
	if err != nil {
		e.logger.Warn("primitive failed",
			"primitive", prim.Name,
			"group", req.GroupID,
			"error", err,
		)
		e.emit(ir.PrimitiveFailed{
			GroupID:   req.GroupID,
			Primitive: prim.Name,
			Inputs:    req.Inputs,
			Error:     err.Error(),
		})
		return nil
	}
	res := ir.PrimitiveExecuted{
		GroupID:   req.GroupID,
		Primitive: prim.Name,
		Inputs:    req.Inputs,
		Outputs:   outputs,
	}
	e.emit(res)
	return e.writeOutputs(res)
}

// callPrimitive runs Execute, turning a panic into an error.
func callPrimitive(prim *Primitive, inputs ir.IRObject) (out ir.IRObject, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("primitive %s panicked: %v", prim.Name, r)
		}
	}()
	return prim.Execute(inputs.Clone())
}

// writeOutputs routes an execution result to the gadget's boundary
// contacts. Stream outputs receive one write per array element.
func (e *Engine) writeOutputs(res ir.PrimitiveExecuted) error {
	g, ok := e.network.Groups[res.GroupID]
	if !ok {
		return nil
	}
	prim, ok := e.registry.Lookup(res.Primitive)
	if !ok {
		return nil
	}

	byName := make(map[string]ir.Contact, len(g.BoundaryContactIDs))
	for _, cid := range g.BoundaryContactIDs {
		if c, ok := e.network.Contacts[cid]; ok {
			byName[contactName(c)] = c
		}
	}

	for _, name := range prim.Outputs {
		v, ok := res.Outputs[name]
		if !ok {
			continue
		}
		c, ok := byName[name]
		if !ok {
			e.logger.Debug("primitive output has no boundary contact",
				"primitive", prim.Name,
				"group", g.ID,
				"output", name,
			)
			continue
		}
		if c.BlendMode == ir.BlendLast {
			if arr, isArr := v.(ir.IRArray); isArr {
				for _, item := range arr {
					e.push(c.ID, item, "")
				}
				continue
			}
		}
		e.push(c.ID, v, "")
	}

	e.emit(ir.GadgetActivated{
		GroupID:   g.ID,
		Primitive: prim.Name,
		Outputs:   res.Outputs,
	})
	// Inside an active drain this returns nil and the outer drain reports.
	return e.processQueue()
}
