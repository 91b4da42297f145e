package dae

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/CogniPilot/modelica-ir/internal/canon"
)

// Model is a validated, immutable classified model.
//
// Slices returned by accessors are copies; expression trees inside them must
// not be modified by callers.
type Model struct {
	name      string
	variables []Variable
	byName    map[string]int
	equations []Equation
	residuals []Residual
}

// NewModel validates variables and equations and returns an immutable Model.
// Equations without an ID are named "<section>[<n>]", n counting from 1 within
// the section. All violations are reported together in a *ModelError.
func NewModel(name string, variables []Variable, equations []Equation) (*Model, error) {
	m := &Model{
		name:      name,
		variables: slices.Clone(variables),
		byName:    make(map[string]int, len(variables)),
		equations: slices.Clone(equations),
	}

	var violations []Violation
	violations = append(violations, m.checkVariables()...)
	violations = append(violations, m.assignEquationIDs()...)

	malformed := checkArity(m.equations)
	violations = append(violations, malformed...)
	if len(malformed) == 0 {
		violations = append(violations, m.expand()...)
		violations = append(violations, m.checkDerivatives()...)
	}

	if len(violations) > 0 {
		return nil, &ModelError{Violations: violations}
	}
	return m, nil
}

// MustModel is like NewModel but panics on error.
// Use only in tests or with inputs known to be valid.
func MustModel(name string, variables []Variable, equations []Equation) *Model {
	m, err := NewModel(name, variables, equations)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Model) checkVariables() []Violation {
	var out []Violation
	var states []int
	for i, v := range m.variables {
		field := fmt.Sprintf("variables[%d]", i)
		if v.Name == "" {
			out = append(out, Violation{Field: field + ".name", Message: "variable name is required", Code: ErrEmptyName})
			continue
		}
		if _, dup := m.byName[v.Name]; dup {
			out = append(out, Violation{Field: field + ".name", Message: fmt.Sprintf("duplicate variable %q", v.Name), Code: ErrDuplicateVariable})
			continue
		}
		m.byName[v.Name] = i
		if !v.Category.Valid() {
			out = append(out, Violation{Field: field + ".category", Message: fmt.Sprintf("invalid category %s", v.Category), Code: ErrInvalidTag})
		}
		if v.StateIndex != nil && !v.IsState() {
			out = append(out, Violation{Field: field + ".state_index", Message: fmt.Sprintf("%s variable %q cannot have a state index", v.Category, v.Name), Code: ErrStateIndexNonState})
		}
		if v.Min != nil && v.Max != nil && *v.Min > *v.Max {
			out = append(out, Violation{Field: field + ".min", Message: fmt.Sprintf("min %g exceeds max %g for %q", *v.Min, *v.Max, v.Name), Code: ErrInvalidBounds})
		}
		if v.IsState() {
			states = append(states, i)
		}
	}

	// state indices are all-or-nothing and must be a permutation of 0..n-1
	indexed := 0
	seen := make(map[int]string, len(states))
	for _, i := range states {
		v := m.variables[i]
		if v.StateIndex == nil {
			continue
		}
		indexed++
		idx := *v.StateIndex
		if idx < 0 || idx >= len(states) {
			out = append(out, Violation{Field: fmt.Sprintf("variables[%d].state_index", i), Message: fmt.Sprintf("state index %d of %q outside 0..%d", idx, v.Name, len(states)-1), Code: ErrStateIndexLayout})
			continue
		}
		if other, dup := seen[idx]; dup {
			out = append(out, Violation{Field: fmt.Sprintf("variables[%d].state_index", i), Message: fmt.Sprintf("state index %d used by both %q and %q", idx, other, v.Name), Code: ErrStateIndexLayout})
			continue
		}
		seen[idx] = v.Name
	}
	if indexed > 0 && indexed < len(states) {
		out = append(out, Violation{Field: "variables", Message: fmt.Sprintf("%d of %d states have a state index; either all or none must", indexed, len(states)), Code: ErrStateIndexLayout})
	}
	return out
}

func (m *Model) assignEquationIDs() []Violation {
	var out []Violation
	counts := make(map[Section]int)
	seen := make(map[string]bool, len(m.equations))
	for i := range m.equations {
		eq := &m.equations[i]
		if !eq.Section.Valid() || !eq.Kind.Valid() {
			out = append(out, Violation{Field: fmt.Sprintf("equations[%d]", i), Message: fmt.Sprintf("invalid section %s or kind %s", eq.Section, eq.Kind), Code: ErrInvalidTag})
			continue
		}
		counts[eq.Section]++
		if eq.ID == "" {
			eq.ID = fmt.Sprintf("%s[%d]", eq.Section, counts[eq.Section])
		}
		if seen[eq.ID] {
			out = append(out, Violation{Field: fmt.Sprintf("equations[%d].id", i), Message: fmt.Sprintf("duplicate equation id %q", eq.ID), Code: ErrDuplicateEquation})
		}
		seen[eq.ID] = true
	}
	return out
}

func checkArity(eqs []Equation) []Violation {
	var out []Violation
	var visitEq func(eq Equation, id string)
	visitExpr := func(e Expr, id string) {
		e.Walk(func(n Expr) bool {
			if n.Op < 0 || int(n.Op) >= len(opNames) {
				out = append(out, Violation{Field: "equations." + id, Message: fmt.Sprintf("invalid operator %s", n.Op), Code: ErrInvalidTag})
				return false
			}
			if want := n.Op.arity(); want >= 0 && len(n.Args) != want {
				out = append(out, Violation{Field: "equations." + id, Message: fmt.Sprintf("operator %s takes %d argument(s), got %d", n.Op, want, len(n.Args)), Code: ErrMalformedExpr})
				return false
			}
			if n.Op == OpVar && n.Name == "" {
				out = append(out, Violation{Field: "equations." + id, Message: "variable reference without a name", Code: ErrMalformedExpr})
			}
			if n.Op == OpCall && n.Name == "" {
				out = append(out, Violation{Field: "equations." + id, Message: "function call without a name", Code: ErrMalformedExpr})
			}
			return true
		})
	}
	visitEq = func(eq Equation, id string) {
		switch eq.Kind {
		case KindSimple, KindConnect:
			visitExpr(eq.LHS, id)
			visitExpr(eq.RHS, id)
		case KindFor:
			for k, child := range eq.Body {
				visitEq(child, childID(id, k, len(eq.Body), child))
			}
		case KindIf, KindWhen:
			for _, br := range eq.Branches {
				visitExpr(br.Cond, id)
				for k, child := range br.Body {
					visitEq(child, childID(id, k, len(br.Body), child))
				}
			}
			for k, child := range eq.Else {
				visitEq(child, childID(id, k, len(eq.Else), child))
			}
		}
	}
	for _, eq := range eqs {
		visitEq(eq, eq.ID)
	}
	return out
}

func (m *Model) expand() []Violation {
	var out []Violation
	for _, eq := range m.equations {
		res, err := flatten(eq, eq.ID, nil)
		if err != nil {
			var fe *flattenError
			if errors.As(err, &fe) {
				out = append(out, Violation{Field: "equations." + eq.ID, Message: fe.message, Code: fe.code})
				continue
			}
			out = append(out, Violation{Field: "equations." + eq.ID, Message: err.Error(), Code: ErrMalformedExpr})
			continue
		}
		for _, r := range res {
			r.Origin = eq.ID
			r.Section = eq.Section
			r.Kind = eq.Kind
			r.Position = len(m.residuals)
			m.residuals = append(m.residuals, r)
		}
	}

	seen := make(map[string]bool, len(m.residuals))
	for _, r := range m.residuals {
		if seen[r.ID] && r.ID != r.Origin {
			out = append(out, Violation{Field: "equations." + r.Origin, Message: fmt.Sprintf("expanded equation id %q collides with another equation", r.ID), Code: ErrDuplicateEquation})
		}
		seen[r.ID] = true
	}
	return out
}

// checkDerivatives enforces that der is applied to declared states only.
// Undeclared names are left for the incidence builder to report.
func (m *Model) checkDerivatives() []Violation {
	var out []Violation
	for _, r := range m.residuals {
		for _, e := range r.Exprs() {
			e.Walk(func(n Expr) bool {
				if n.Op != OpDer {
					return true
				}
				name, ok := n.DerivativeOf()
				if !ok {
					out = append(out, Violation{Field: "equations." + r.ID, Message: fmt.Sprintf("der argument %s is not a variable reference", n.Args[0]), Code: ErrDerNotReference})
					return false
				}
				if v, declared := m.Variable(name); declared && !v.IsState() {
					out = append(out, Violation{Field: "equations." + r.ID, Message: fmt.Sprintf("der(%s) applied to %s variable", name, v.Category), Code: ErrDerNonState})
				}
				return false
			})
		}
	}
	return out
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// Variables returns the declared variables in declaration order.
func (m *Model) Variables() []Variable { return slices.Clone(m.variables) }

// Variable looks up a variable by name.
func (m *Model) Variable(name string) (Variable, bool) {
	i, ok := m.byName[name]
	if !ok {
		return Variable{}, false
	}
	return m.variables[i], true
}

// Equations returns the top-level equations with their assigned IDs.
func (m *Model) Equations() []Equation { return slices.Clone(m.equations) }

// Residuals returns the expanded scalar equations in declaration order.
func (m *Model) Residuals() []Residual { return slices.Clone(m.residuals) }

// States returns the state variables ordered by state index, or by
// declaration order when the model carries no indices.
func (m *Model) States() []Variable {
	var states []Variable
	for _, v := range m.variables {
		if v.IsState() {
			states = append(states, v)
		}
	}
	slices.SortStableFunc(states, func(a, b Variable) int {
		if a.StateIndex == nil || b.StateIndex == nil {
			return 0
		}
		return *a.StateIndex - *b.StateIndex
	})
	return states
}

// CanonicalValue implements canon.Valuer.
func (m *Model) CanonicalValue() any {
	vars := make([]any, len(m.variables))
	for i, v := range m.variables {
		vars[i] = v.canonicalValue()
	}
	return map[string]any{
		"name":       m.name,
		"ir_version": IRVersion,
		"variables":  vars,
		"equations":  canonicalEquations(m.equations),
	}
}

// Fingerprint returns a content hash of the model. Two models with the same
// variables and equations in the same order share a fingerprint.
func (m *Model) Fingerprint() (string, error) {
	return canon.Hash(canon.DomainModel, m)
}

// MarshalJSON encodes the model with its expanded residuals.
func (m *Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name      string     `json:"name"`
		Variables []Variable `json:"variables"`
		Equations []Equation `json:"equations"`
		Residuals []Residual `json:"residuals"`
	}{m.name, m.variables, m.equations, m.residuals})
}
