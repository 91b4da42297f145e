// Package harness runs structural-analysis scenarios against model files.
//
// A scenario names a model file, the analysis options to use and what the
// evaluation plan must look like. Scenarios double as regression tests: the
// canonical encoding of each analysis result can be compared with a golden
// snapshot.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: loop_chain
//	description: "Two coupled equations form one loop between scalar blocks"
//	model: ../models/loop_chain.yaml
//	options:
//	  parallelism: 2
//	expect:
//	  well_posed: true
//	  algebraic_loops: true
//	assertions:
//	  - type: block_order
//	    equations: [head, sum, tail]
//	  - type: block
//	    equations: [sum, ratio]
//	    kind: algebraic_loop
//	    variables: [b, c]
//	  - type: diagnostic
//	    code: W310
//	    count: 1
//
// The model path is resolved relative to the scenario file.
//
// # Assertion Types
//
//   - block_count: the plan has exactly Count blocks
//   - block_order: the blocks holding the listed equations appear in order
//   - block: one block holds exactly the listed equations, with the given
//     kind and, when listed, the given unknowns
//   - assigned: Equation is solved for Variable
//   - diagnostic: Code is reported Count times (at least once when Count is 0)
//   - unmatched: exactly the listed equations and unknowns are left unmatched
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/loop_chain.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
