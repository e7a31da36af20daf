// Package harness runs YAML-driven end-to-end scenarios against a fresh
// runtime: builtin plugins are registered, a sequence of store and
// dispatch steps executes, and the resulting trace is checked against
// inline expectations and golden files.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: uppercase_roundtrip
//	description: "Uppercase plugin returns the uppercased input."
//	token: trace-uppercase-1
//	plugins:
//	  - text/uppercase
//	steps:
//	  - insert:
//	      as: greeting
//	      tag: text
//	      value: hello
//	  - call:
//	      ref: text/uppercase
//	      args: [greeting]
//	      as: [shout]
//	      expect:
//	        values: [HELLO]
//	assertions:
//	  - type: trace_count
//	    ref: text/uppercase
//	    count: 1
//
// Each step is exactly one of insert, call, or release. Handles are
// bound to names with "as" and referenced by name in later steps. A
// call's expect clause names either the expected output values (in
// declaration order) or the expected fault code:
//
//	expect:
//	  error: PLUGIN_FAILURE
//
// # Assertion Types
//
//   - trace_contains: some event matches every given field (kind, ref,
//     tag, outcome)
//   - trace_order: call events with the given refs appear in order
//   - trace_count: exactly count call events carry the given ref
//
// # Deterministic Traces
//
// Every run uses a fresh default runtime, a constant call token
// (scenario.token, or testutil.DefaultToken), and a logical clock for
// event sequence numbers. Content addresses are deterministic by
// construction, so a trace rendered as canonical JSON is byte-identical
// across runs and can be compared against a golden file:
//
//	go test ./internal/harness -update
//
// regenerates the golden files.
package harness
