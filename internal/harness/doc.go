// Package harness runs propagation scenarios against a live engine.
//
// A scenario names a network, drives it through a list of steps and checks
// the resulting values and event trace.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: adder_sums
//	description: "Both inputs reach the adder and the sum appears"
//	network: ../networks/adder.cue
//	steps:
//	  - set: { contact: x, value: 2 }
//	  - stream: { contact: log, value: "hello" }
//	  - actions:
//	      - { type: createContact, contact: { id: z, blend_mode: merge } }
//	  - set: { contact: ghost, value: 1 }
//	    expect_error: UNKNOWN_CONTACT
//	expect:
//	  values: { adder.sum: 3 }
//	  absent: [z]
//	  event_counts: { contradiction: 0 }
//	  event_order: [primitive-executed, converged]
//	golden: true
//	replay: true
//
// network is either a path (CUE file or directory, JSON or YAML Bassline),
// resolved relative to the scenario file, or an inline Bassline mapping.
//
// # Deterministic Testing
//
// Every run uses a fresh engine with sequential IDs (gen-1, gen-2, ...), a
// logical clock starting at zero and the standard primitives, so traces
// are identical across runs and can be compared against golden files.
//
// With replay set, the run is journaled into an in-memory SQLite store and
// restored into a second engine afterwards; the restored values must match
// the live ones.
package harness
