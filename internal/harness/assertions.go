package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/CogniPilot/modelica-ir/internal/structure"
)

// AssertionError is returned when an assertion fails.
// It includes the evaluation plan to help debug the failure.
type AssertionError struct {
	Type     string            // Assertion type for categorization
	Expected string            // Human-readable expected outcome
	Actual   string            // Human-readable actual outcome
	Blocks   []structure.Block // Full plan for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Blocks) > 0 {
		fmt.Fprintf(&buf, "\nEvaluation plan:\n")
		for i, b := range e.Blocks {
			fmt.Fprintf(&buf, "  [%d] %s %v -> %v\n", i+1, b.Kind, b.Equations, b.Variables)
		}
	}
	return buf.String()
}

// blockOf returns the index of the block holding equation id, or -1.
func blockOf(blocks []structure.Block, id string) int {
	for i, b := range blocks {
		if slices.Contains(b.Equations, id) {
			return i
		}
	}
	return -1
}

func assertBlockCount(res *structure.Result, a Assertion) error {
	if len(res.Blocks) != a.Count {
		return &AssertionError{
			Type:     AssertBlockCount,
			Expected: fmt.Sprintf("%d block(s)", a.Count),
			Actual:   fmt.Sprintf("%d block(s)", len(res.Blocks)),
			Blocks:   res.Blocks,
		}
	}
	return nil
}

// assertBlockOrder checks that the blocks holding the listed equations come
// in the listed order. Equations may share a block only when adjacent in
// the list.
func assertBlockOrder(res *structure.Result, a Assertion) error {
	prev := -1
	for i, id := range a.Equations {
		pos := blockOf(res.Blocks, id)
		if pos < 0 {
			return &AssertionError{
				Type:     AssertBlockOrder,
				Expected: fmt.Sprintf("equation %s in the plan", id),
				Actual:   "not found in any block",
				Blocks:   res.Blocks,
			}
		}
		if pos < prev {
			return &AssertionError{
				Type:     AssertBlockOrder,
				Expected: fmt.Sprintf("blocks in order: %v", a.Equations),
				Actual: fmt.Sprintf("%s (block %d) should not precede %s (block %d)",
					id, pos+1, a.Equations[i-1], prev+1),
				Blocks: res.Blocks,
			}
		}
		prev = pos
	}
	return nil
}

// assertBlock checks that one block holds exactly the listed equations. Loop
// members are compared as sets; variables follow their equations.
func assertBlock(res *structure.Result, a Assertion) error {
	pos := blockOf(res.Blocks, a.Equations[0])
	if pos < 0 {
		return &AssertionError{
			Type:     AssertBlock,
			Expected: fmt.Sprintf("a block holding %v", a.Equations),
			Actual:   fmt.Sprintf("equation %s not found in any block", a.Equations[0]),
			Blocks:   res.Blocks,
		}
	}
	b := res.Blocks[pos]

	if !sameSet(b.Equations, a.Equations) {
		return &AssertionError{
			Type:     AssertBlock,
			Expected: fmt.Sprintf("block equations %v", a.Equations),
			Actual:   fmt.Sprintf("block %d holds %v", pos+1, b.Equations),
			Blocks:   res.Blocks,
		}
	}
	if a.Kind != "" && b.Kind.String() != a.Kind {
		return &AssertionError{
			Type:     AssertBlock,
			Expected: fmt.Sprintf("block %d of kind %s", pos+1, a.Kind),
			Actual:   fmt.Sprintf("kind %s", b.Kind),
			Blocks:   res.Blocks,
		}
	}
	for i, id := range a.Equations {
		if len(a.Variables) == 0 {
			break
		}
		k := slices.Index(b.Equations, id)
		if b.Variables[k] != a.Variables[i] {
			return &AssertionError{
				Type:     AssertBlock,
				Expected: fmt.Sprintf("equation %s solved for %s", id, a.Variables[i]),
				Actual:   fmt.Sprintf("solved for %s", b.Variables[k]),
				Blocks:   res.Blocks,
			}
		}
	}
	return nil
}

func assertAssigned(res *structure.Result, a Assertion) error {
	for _, b := range res.Blocks {
		if k := slices.Index(b.Equations, a.Equation); k >= 0 {
			if b.Variables[k] == a.Variable {
				return nil
			}
			return &AssertionError{
				Type:     AssertAssigned,
				Expected: fmt.Sprintf("equation %s solved for %s", a.Equation, a.Variable),
				Actual:   fmt.Sprintf("solved for %s", b.Variables[k]),
				Blocks:   res.Blocks,
			}
		}
	}
	return &AssertionError{
		Type:     AssertAssigned,
		Expected: fmt.Sprintf("equation %s solved for %s", a.Equation, a.Variable),
		Actual:   "equation not in the plan",
		Blocks:   res.Blocks,
	}
}

func assertDiagnostic(res *structure.Result, a Assertion) error {
	count := 0
	for _, d := range res.Diagnostics {
		if d.Code == a.Code {
			count++
		}
	}
	if (a.Count == 0 && count == 0) || (a.Count > 0 && count != a.Count) {
		want := "at least 1"
		if a.Count > 0 {
			want = fmt.Sprintf("%d", a.Count)
		}
		return &AssertionError{
			Type:     AssertDiagnostic,
			Expected: fmt.Sprintf("%s diagnostic(s) %s", want, a.Code),
			Actual:   fmt.Sprintf("%d in %v", count, res.Messages()),
		}
	}
	return nil
}

func assertUnmatched(res *structure.Result, a Assertion) error {
	if !sameSet(res.UnmatchedEquations, a.Equations) {
		return &AssertionError{
			Type:     AssertUnmatched,
			Expected: fmt.Sprintf("unmatched equations %v", a.Equations),
			Actual:   fmt.Sprintf("%v", res.UnmatchedEquations),
		}
	}
	if !sameSet(res.UnmatchedVariables, a.Variables) {
		return &AssertionError{
			Type:     AssertUnmatched,
			Expected: fmt.Sprintf("unmatched unknowns %v", a.Variables),
			Actual:   fmt.Sprintf("%v", res.UnmatchedVariables),
		}
	}
	return nil
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

// EvaluateExpect checks the top-level flags of res.
func EvaluateExpect(res *structure.Result, e Expect) []string {
	var errs []string
	if e.WellPosed != nil && res.IsWellPosed != *e.WellPosed {
		errs = append(errs, fmt.Sprintf("expected is_well_posed=%t, got %t: %v", *e.WellPosed, res.IsWellPosed, res.Messages()))
	}
	if e.AlgebraicLoops != nil && res.HasAlgebraicLoops != *e.AlgebraicLoops {
		errs = append(errs, fmt.Sprintf("expected has_algebraic_loops=%t, got %t", *e.AlgebraicLoops, res.HasAlgebraicLoops))
	}
	return errs
}

// EvaluateAssertions runs every assertion against res and returns the
// failure messages.
func EvaluateAssertions(res *structure.Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertBlockCount:
			err = assertBlockCount(res, a)
		case AssertBlockOrder:
			err = assertBlockOrder(res, a)
		case AssertBlock:
			err = assertBlock(res, a)
		case AssertAssigned:
			err = assertAssigned(res, a)
		case AssertDiagnostic:
			err = assertDiagnostic(res, a)
		case AssertUnmatched:
			err = assertUnmatched(res, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i+1, a.Type, err))
		}
	}
	return errs
}
