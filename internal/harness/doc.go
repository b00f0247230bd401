// Package harness runs push-down conformance scenarios against the embedded
// store.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: scenario_c_number_residual
//	description: "A filter without a hash-key equality scans"
//	fixture: ../fixtures/test_table.cue
//	table: testTable
//	project: [stringCol]
//	filter:
//	  attr: numberCol
//	  op: ">"
//	  value: 8
//	assertions:
//	  - type: access
//	    access: scan
//	  - type: rows
//	    rows: [stringCol9]
//
// The fixture path is relative to the scenario file. The filter uses the
// filterir YAML form; omitting it reads the whole table.
//
// # Assertion Types
//
//   - access: the plan is a query or a scan
//   - key_conditions: the plan's key conditions, in order
//   - filters: the plan's filters, in order
//   - request_count: number of store requests issued
//   - row_count: number of rows returned
//   - rows: returned rows, compared as a multiset
//   - error_code: translation failed with this fault code
//
// After a failed translation only error_code and request_count apply; any
// other assertion fails.
//
// # Deterministic Testing
//
// Every run seeds a fresh in-memory store from the fixture and uses a fixed
// execution id. Requests are recorded at the client boundary; parallel runs
// list them grouped by key condition so snapshots do not depend on
// goroutine scheduling.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/scenario_a_sort_key_range.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
