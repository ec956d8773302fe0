// Package harness runs compiler conformance scenarios.
//
// A scenario names a story document, optional compiler config, and
// assertions on the compiled graph and its diagnostics:
//
//	name: seed
//	description: "What this scenario validates"
//	story: ../stories/seed.yaml
//	config:
//	  suppress: [W402]
//	golden: true
//	assertions:
//	  - type: node_count
//	    kind: rule
//	    count: 1
//	  - type: diagnostic
//	    code: W403
//
// The story path is relative to the scenario file.
//
// # Assertion Types
//
//   - node_count: exactly count nodes of kind
//   - database_count: exactly count databases, join databases included
//   - function_node: the function ("Name/arity") has a graph node
//   - diagnostic: code was reported (exactly count times when given)
//   - no_diagnostic: code was not reported
//   - error_count: exactly count error-level diagnostics
//
// # Golden Dumps
//
// With golden set, RunWithGolden compares the graph dump followed by the
// diagnostic codes against testdata/golden/{name}.golden. Compilation is
// deterministic, so dumps are byte-stable across runs.
package harness
