package structure

import (
	"fmt"
	"slices"
	"strings"
)

// Diagnostic codes (E300-E399). W-prefixed codes are warnings.
const (
	ErrStructurallySingular = "E301" // no perfect matching exists
	ErrOverDetermined       = "E302" // more equations than unknown slots
	ErrUnderDetermined      = "E303" // fewer equations than unknown slots
	ErrDuplicateAssignment  = "E304" // a slot is listed or assigned twice
	ErrBlockMismatch        = "E305" // a block disagrees with the matching
	WarnAlgebraicLoop       = "W310" // equations must be solved simultaneously
)

// Diagnostic levels.
const (
	LevelError   = "error"
	LevelWarning = "warning"
)

// Diagnostic is one finding of the well-posedness check.
type Diagnostic struct {
	Code      string   `json:"code"`
	Level     string   `json:"level"`
	Message   string   `json:"message"`
	Equations []string `json:"equations,omitempty"`
	Variables []string `json:"variables,omitempty"`
}

// String renders the diagnostic as a single line.
func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s: %s", d.Code, d.Level, d.Message)
}

// IsError reports whether the diagnostic makes the model ill-posed.
func (d Diagnostic) IsError() bool {
	return d.Level == LevelError
}

// CheckWellPosed verifies that mt is a total matching over distinct slots and
// that blocks account for exactly the assigned slots. Every violated check
// yields a diagnostic; nothing is raised. Algebraic loops are reported as
// warnings.
func CheckWellPosed(inc *Incidence, mt *Matching, blocks []Block) []Diagnostic {
	var diags []Diagnostic
	nEq, nSlots := len(inc.Equations), len(inc.Slots)

	switch {
	case nEq > nSlots:
		diags = append(diags, Diagnostic{
			Code:    ErrOverDetermined,
			Level:   LevelError,
			Message: fmt.Sprintf("over-determined system: %d equation(s) for %d unknown(s)", nEq, nSlots),
		})
	case nEq < nSlots:
		diags = append(diags, Diagnostic{
			Code:    ErrUnderDetermined,
			Level:   LevelError,
			Message: fmt.Sprintf("under-determined system: %d equation(s) for %d unknown(s)", nEq, nSlots),
		})
	}

	unmatchedEqs := mt.UnmatchedEquations()
	unmatchedSlots := mt.UnmatchedSlots()
	if len(unmatchedEqs) > 0 || len(unmatchedSlots) > 0 {
		matched := nEq - len(unmatchedEqs)
		diags = append(diags, Diagnostic{
			Code:  ErrStructurallySingular,
			Level: LevelError,
			Message: fmt.Sprintf("structurally singular: maximum matching covers %d of %d equation(s) and %d of %d unknown(s)",
				matched, nEq, nSlots-len(unmatchedSlots), nSlots),
			Equations: unmatchedEqs,
			Variables: slotNames(unmatchedSlots),
		})
	}
	for _, id := range unmatchedEqs {
		d := Diagnostic{Code: ErrStructurallySingular, Level: LevelError, Equations: []string{id}}
		if nEq > nSlots {
			d.Code = ErrOverDetermined
			d.Message = fmt.Sprintf("surplus equation %s: no unknown left for it to determine", id)
		} else {
			d.Message = fmt.Sprintf("equation %s is not matched to any unknown", id)
		}
		diags = append(diags, d)
	}
	for _, s := range unmatchedSlots {
		d := Diagnostic{Code: ErrStructurallySingular, Level: LevelError, Variables: []string{s.String()}}
		if nEq < nSlots {
			d.Code = ErrUnderDetermined
			d.Message = fmt.Sprintf("unknown %s is not determined by any equation", s)
		} else {
			d.Message = fmt.Sprintf("unknown %s is not matched to any equation", s)
		}
		diags = append(diags, d)
	}

	diags = append(diags, checkDuplicates(inc, mt)...)
	diags = append(diags, checkBlocks(inc, mt, blocks)...)

	for _, b := range blocks {
		if b.Kind != AlgebraicLoop {
			continue
		}
		diags = append(diags, Diagnostic{
			Code:  WarnAlgebraicLoop,
			Level: LevelWarning,
			Message: fmt.Sprintf("algebraic loop of %d equation(s) [%s] in unknown(s) [%s]",
				b.Size(), strings.Join(b.Equations, ", "), strings.Join(b.Variables, ", ")),
			Equations: slices.Clone(b.Equations),
			Variables: slices.Clone(b.Variables),
		})
	}
	return diags
}

func checkDuplicates(inc *Incidence, mt *Matching) []Diagnostic {
	var diags []Diagnostic
	listed := make(map[Slot]bool, len(inc.Slots))
	for _, s := range inc.Slots {
		if listed[s] {
			diags = append(diags, Diagnostic{
				Code:      ErrDuplicateAssignment,
				Level:     LevelError,
				Message:   fmt.Sprintf("unknown %s appears twice in the unknown set", s),
				Variables: []string{s.String()},
			})
		}
		listed[s] = true
	}

	owner := make(map[int]string)
	for e := range inc.Equations {
		s, ok := mt.Slot(e)
		if !ok {
			continue
		}
		id := inc.Equations[e].ID
		if first, dup := owner[s]; dup {
			diags = append(diags, Diagnostic{
				Code:      ErrDuplicateAssignment,
				Level:     LevelError,
				Message:   fmt.Sprintf("unknown %s is assigned to both %s and %s", inc.Slots[s], first, id),
				Equations: []string{first, id},
				Variables: []string{inc.Slots[s].String()},
			})
			continue
		}
		owner[s] = id
	}
	return diags
}

func checkBlocks(inc *Incidence, mt *Matching, blocks []Block) []Diagnostic {
	var diags []Diagnostic
	placed := make(map[string]int)
	byID := make(map[string]int, len(inc.Equations))
	for e, eq := range inc.Equations {
		byID[eq.ID] = e
	}
	for i, b := range blocks {
		if len(b.Equations) != len(b.Variables) {
			diags = append(diags, Diagnostic{
				Code:      ErrBlockMismatch,
				Level:     LevelError,
				Message:   fmt.Sprintf("block %d lists %d equation(s) but %d unknown(s)", i+1, len(b.Equations), len(b.Variables)),
				Equations: slices.Clone(b.Equations),
			})
			continue
		}
		for k, id := range b.Equations {
			placed[id]++
			want := ""
			if e, ok := byID[id]; ok {
				if s, ok := mt.Slot(e); ok {
					want = inc.Slots[s].String()
				}
			}
			if want != b.Variables[k] {
				diags = append(diags, Diagnostic{
					Code:      ErrBlockMismatch,
					Level:     LevelError,
					Message:   fmt.Sprintf("block %d solves equation %s for %s, but it is assigned %q", i+1, id, b.Variables[k], want),
					Equations: []string{id},
					Variables: []string{b.Variables[k]},
				})
			}
		}
	}
	for e := range inc.Equations {
		if _, ok := mt.Slot(e); !ok {
			continue
		}
		id := inc.Equations[e].ID
		if n := placed[id]; n != 1 {
			diags = append(diags, Diagnostic{
				Code:      ErrBlockMismatch,
				Level:     LevelError,
				Message:   fmt.Sprintf("matched equation %s appears in %d block(s)", id, n),
				Equations: []string{id},
			})
		}
	}
	return diags
}

func slotNames(slots []Slot) []string {
	if len(slots) == 0 {
		return nil
	}
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.String()
	}
	return out
}
