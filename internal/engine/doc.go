// Package engine implements the Bassline propagation runtime.
//
// A network is a graph of contacts (value cells) joined by wires and
// grouped into groups. Writing a value into a contact merges it under the
// contact's blend mode and pushes the result along every wire touching the
// contact, breadth-first, until the queue is empty.
//
// ARCHITECTURE:
//
// One FIFO queue drives everything. SetValue, SendStream, actions and bulk
// structure changes enqueue work and then drain it before returning, so a
// caller always observes a local fixed point. Drains do not nest: a drain
// started while another is running folds its items into the active one.
//
// Gadgets are groups bound to a Primitive. When a boundary input of a gadget
// changes and its required inputs are present, the engine emits a
// primitive-requested event; the built-in executor (the first listener)
// runs the primitive and routes its outputs back onto boundary contacts.
//
// CRITICAL PATTERNS:
//
// Contradictions are events, not errors. A merge with no deterministic join
// stops only the propagation into that contact.
//
// Events are delivered synchronously, in emission order. A panicking
// listener is logged and skipped.
//
// The engine has no lock. Every public call is a whole-network critical
// section and callers that share an Engine between goroutines must
// serialize access.
package engine
