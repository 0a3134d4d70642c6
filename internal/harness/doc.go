// Package harness provides scenario tests for item definitions.
//
// A scenario loads a definitions directory, drives trees through a list
// of steps and validates the final state as an executable contract.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: hilt_blade
//	description: "A hilt is complete once a sharp blade is attached"
//	definitions: ../definitions
//	steps:
//	  - {do: new, ref: hilt, component: hilt}
//	  - {do: new, ref: blade, component: blade_steel}
//	  - {do: attach, ref: hilt, slot: blade, child: blade}
//	  - do: build
//	    ref: hilt
//	    expect:
//	      complete: true
//	      stats: {damage: 5}
//	assertions:
//	  - {type: stat, ref: hilt, stat: weight, value: 2.0}
//	  - {type: trace_order, ops: [attach, build]}
//
// # Steps
//
//   - new: instantiate component as the root of a fresh tree bound to ref
//   - attach: place child in the slot path under ref
//   - detach: empty the slot path under ref, binding the removed part to as
//   - build: rebuild ref's tree
//   - use, repair: dispatch wear or repair of amount to ref's tree
//   - copy: deep-copy ref's subtree into a new tree bound to as
//   - save_load: save ref's tree to an in-memory store and load it back
//   - represent: create the representation of ref's tree
//
// A step whose expect names an error must fail with that tree error code.
// Any other failure stops the scenario.
//
// # Assertion Types
//
//   - stat: a stat of a built tree has the given value
//   - complete: a built tree's completeness
//   - incomplete: the empty required slot paths of a built tree
//   - representation: name, lines and [value, max] bar of a tree
//   - trace_count: an operation ran exactly N times
//   - trace_order: operations first ran in the given order
//
// # Deterministic Testing
//
// Saved trees get sequential ids and traces are encoded as canonical
// JSON, so identical scenarios produce identical golden files.
package harness
