package structure

import (
	"slices"
	"strings"

	"github.com/CogniPilot/modelica-ir/internal/dae"
)

// builtinNames are references that are not model variables.
var builtinNames = map[string]bool{
	"time": true,
}

// knownCalls are functions whose arguments denote already known values.
// pre(v) is the left limit of v at an event.
var knownCalls = map[string]bool{
	"pre": true,
}

// Slot is a matchable unknown: either the value of a variable or the time
// derivative of a state.
type Slot struct {
	Variable   string
	Derivative bool
}

// String renders the slot as "x" or "der(x)".
func (s Slot) String() string {
	if s.Derivative {
		return "der(" + s.Variable + ")"
	}
	return s.Variable
}

// MarshalText encodes the slot as its string form.
func (s Slot) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes "x" or "der(x)".
func (s *Slot) UnmarshalText(text []byte) error {
	str := string(text)
	if inner, ok := strings.CutPrefix(str, "der("); ok && strings.HasSuffix(inner, ")") {
		*s = Slot{Variable: strings.TrimSuffix(inner, ")"), Derivative: true}
		return nil
	}
	*s = Slot{Variable: str}
	return nil
}

// Entry is one incidence of a slot in an equation.
type Entry struct {
	Slot  Slot `json:"slot"`
	Count int  `json:"count"`
}

// EquationIncidence lists the unknown slots one residual equation references.
type EquationIncidence struct {
	ID       string      `json:"id"`
	Origin   string      `json:"origin"`
	Section  dae.Section `json:"section"`
	Position int         `json:"position"`
	Text     string      `json:"text"`
	Entries  []Entry     `json:"entries"` // ordered by slot declaration order

	slots  []int // slot indices, parallel to Entries
	counts map[int]int
}

func (e *EquationIncidence) count(s int) int {
	return e.counts[s]
}

// Incidence is the bipartite incidence structure between residual equations
// and unknown slots.
type Incidence struct {
	Model     string              `json:"model"`
	Equations []EquationIncidence `json:"equations"`
	Slots     []Slot              `json:"slots"` // slot declaration order

	slotIndex map[Slot]int
}

// SlotIndex returns the position of s in Slots, or -1.
func (inc *Incidence) SlotIndex(s Slot) int {
	if i, ok := inc.slotIndex[s]; ok {
		return i
	}
	return -1
}

// ref is a raw occurrence found while walking an expression.
type ref struct {
	name       string
	derivative bool
}

// BuildIncidence records the unknown slots referenced by every residual
// equation of m.
//
// Parameters, constants, inputs and builtins are known quantities. A state
// contributes a derivative slot when it appears differentiated and a value
// slot only when an initial equation references its value; elsewhere its
// value is a known integrated quantity. An undeclared reference returns a
// *ReferenceError.
func BuildIncidence(m *dae.Model) (*Incidence, error) {
	residuals := m.Residuals()

	raw := make([][]map[ref]int, len(residuals))
	differentiated := make(map[string]bool)
	initialValue := make(map[string]bool)

	for i, r := range residuals {
		for _, e := range r.Exprs() {
			if err := checkReferences(m, r.ID, e); err != nil {
				return nil, err
			}
		}
		raw[i] = collectResidual(r)
		for _, part := range raw[i] {
			for rf := range part {
				v, ok := m.Variable(rf.name)
				if !ok || !v.IsState() {
					continue
				}
				if rf.derivative {
					differentiated[rf.name] = true
				} else if r.Section == dae.SectionInitial {
					initialValue[rf.name] = true
				}
			}
		}
	}

	inc := &Incidence{Model: m.Name(), slotIndex: make(map[Slot]int)}
	addSlot := func(s Slot) {
		inc.slotIndex[s] = len(inc.Slots)
		inc.Slots = append(inc.Slots, s)
	}
	for _, v := range m.Variables() {
		switch v.Category {
		case dae.CategoryState:
			if differentiated[v.Name] {
				addSlot(Slot{Variable: v.Name, Derivative: true})
			}
			if initialValue[v.Name] {
				addSlot(Slot{Variable: v.Name})
			}
		case dae.CategoryAlgebraic, dae.CategoryDiscreteReal, dae.CategoryDiscreteValued, dae.CategoryOutput:
			addSlot(Slot{Variable: v.Name})
		case dae.CategoryParameter, dae.CategoryConstant, dae.CategoryInput:
		}
	}

	inc.Equations = make([]EquationIncidence, len(residuals))
	for i, r := range residuals {
		counts := mergeCounts(raw[i], inc.slotIndex)
		eq := EquationIncidence{
			ID:       r.ID,
			Origin:   r.Origin,
			Section:  r.Section,
			Position: r.Position,
			Text:     r.String(),
			counts:   counts,
		}
		for s := range counts {
			eq.slots = append(eq.slots, s)
		}
		slices.Sort(eq.slots)
		eq.Entries = make([]Entry, len(eq.slots))
		for k, s := range eq.slots {
			eq.Entries[k] = Entry{Slot: inc.Slots[s], Count: counts[s]}
		}
		inc.Equations[i] = eq
	}
	return inc, nil
}

func checkReferences(m *dae.Model, equation string, e dae.Expr) error {
	var err error
	e.Walk(func(n dae.Expr) bool {
		if err != nil {
			return false
		}
		if n.Op != dae.OpVar {
			return true
		}
		if _, ok := m.Variable(n.Name); ok || builtinNames[n.Name] {
			return false
		}
		err = &ReferenceError{Equation: equation, Symbol: n.Name}
		return false
	})
	return err
}

// collectResidual returns occurrence counts per part of r: the guards first,
// then one map per alternative side.
func collectResidual(r dae.Residual) []map[ref]int {
	guards := make(map[ref]int)
	for _, g := range r.Guards {
		collect(g, guards)
	}
	parts := []map[ref]int{guards}
	for _, s := range r.Sides {
		side := make(map[ref]int)
		collect(s.LHS, side)
		collect(s.RHS, side)
		parts = append(parts, side)
	}
	return parts
}

func collect(e dae.Expr, into map[ref]int) {
	e.Walk(func(n dae.Expr) bool {
		switch n.Op {
		case dae.OpDer:
			if name, ok := n.DerivativeOf(); ok {
				into[ref{name: name, derivative: true}]++
			}
			return false
		case dae.OpCall:
			return !knownCalls[n.Name]
		case dae.OpVar:
			into[ref{name: n.Name}]++
			return false
		}
		return true
	})
}

// mergeCounts keeps unknown slots only. Guard occurrences add up; alternative
// sides contribute the largest count found in any one of them.
func mergeCounts(parts []map[ref]int, slotIndex map[Slot]int) map[int]int {
	counts := make(map[int]int)
	if len(parts) == 0 {
		return counts
	}
	for rf, n := range parts[0] {
		if s, ok := slotIndex[Slot{Variable: rf.name, Derivative: rf.derivative}]; ok {
			counts[s] += n
		}
	}
	best := make(map[int]int)
	for _, side := range parts[1:] {
		for rf, n := range side {
			if s, ok := slotIndex[Slot{Variable: rf.name, Derivative: rf.derivative}]; ok {
				best[s] = max(best[s], n)
			}
		}
	}
	for s, n := range best {
		counts[s] += n
	}
	return counts
}
