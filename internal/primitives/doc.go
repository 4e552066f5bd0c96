// Package primitives is the standard library of primitive gadgets.
//
// Every primitive is a pure function behind the engine.Primitive contract.
// A group becomes an instance by naming the primitive in its primitive
// type and declaring boundary contacts whose names match the primitive's
// inputs and outputs:
//
//	adder := ir.Group{ID: "g", PrimitiveType: "add", ...}
//	// boundary contacts named "a", "b" and "sum"
//
// Arithmetic works on integers only; other input kinds fail the execution
// and surface as primitive-failed events.
package primitives
