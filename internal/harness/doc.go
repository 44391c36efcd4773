// Package harness runs analysis scenarios: a scop, a set of analysis
// options and the relations the analysis is expected to produce.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: producer_consumer
//	description: "A read of the value written just before"
//	scop:
//	  name: producer_consumer
//	  params: {N: 2}
//	  statements:
//	    - name: S1
//	      domain: [{iter: i, lower: "0", upper: "N"}]
//	      schedule: ["i", "0"]
//	      accesses:
//	        - {ref: w_S1_A, kind: must_write, array: A, index: ["i"]}
//	options:
//	  target: hls
//	  dce: true
//	expect:
//	  flow: "{ S1[0] -> S2[0]; S1[1] -> S2[1] }"
//	assertions:
//	  - type: relation_size
//	    relation: tagged_flow
//	    count: 2
//
// Instead of an inline scop, scop_file names a CUE file (relative to the
// scenario) and scop_name selects one of its scops.
//
// Relations are named by dependence kind (flow, false, order, forced, rar,
// waw), by tagged_<kind> for tagged variants, and live_in, live_out and
// domain.
//
// # Assertion Types
//
//   - relation_contains: every listed pair is an element of the relation
//   - relation_size: the relation has exactly count elements
//   - candidates: a reference has count reuse candidates and the chosen index
//   - recurrence: a recurrence warning with the given path was raised
//   - error_code: the analysis failed with the given code
//   - final_state: query a store table and verify expected column values
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory store with a fresh logical
// clock and sequential analysis IDs, so results and golden snapshots are
// identical across runs.
package harness
