package dae

import (
	"fmt"
	"slices"
)

// Side is one alternative lhs = rhs of a residual equation.
type Side struct {
	LHS Expr `json:"lhs"`
	RHS Expr `json:"rhs"`
}

// Residual is a flat scalar equation produced from a classified equation.
// Simple equations yield one residual with one side; for-equations yield one
// residual per index value; the branches of an if- or when-equation are
// merged into residuals whose Sides hold one alternative per branch and whose
// Guards hold the branch conditions. Branch equations are paired by the
// variable their left-hand side defines, in the order of the first branch,
// and by position when some left-hand side defines no variable.
type Residual struct {
	ID       string  `json:"id"`
	Origin   string  `json:"origin"` // ID of the top-level equation
	Section  Section `json:"section"`
	Kind     Kind    `json:"kind"` // kind of the top-level equation
	Guards   []Expr  `json:"guards,omitempty"`
	Sides    []Side  `json:"sides"`
	Position int     `json:"position"` // declaration order among all residuals
}

// Exprs returns every expression of r: guards first, then each side.
func (r Residual) Exprs() []Expr {
	out := slices.Clone(r.Guards)
	for _, s := range r.Sides {
		out = append(out, s.LHS, s.RHS)
	}
	return out
}

// String renders the first alternative, prefixed by a guard marker for
// conditional residuals.
func (r Residual) String() string {
	if len(r.Sides) == 0 {
		return r.ID
	}
	s := fmt.Sprintf("%s = %s", r.Sides[0].LHS, r.Sides[0].RHS)
	if len(r.Sides) > 1 {
		s += fmt.Sprintf(" (+%d alternative(s))", len(r.Sides)-1)
	}
	return s
}

// flattenError carries the violation code of a failed expansion.
type flattenError struct {
	code    string
	message string
}

func (e *flattenError) Error() string { return e.message }

func childID(parent string, k, n int, child Equation) string {
	if child.ID != "" {
		return child.ID
	}
	if n == 1 {
		return parent
	}
	return fmt.Sprintf("%s.%d", parent, k+1)
}

// flatten expands eq into residuals. env binds enclosing for-loop indices.
func flatten(eq Equation, id string, env map[string]int) ([]Residual, error) {
	switch eq.Kind {
	case KindConnect:
		return nil, nil

	case KindSimple:
		lhs, err := eq.LHS.substitute(env)
		if err != nil {
			return nil, &flattenError{ErrNonConstantSubscript, fmt.Sprintf("equation %s: %v", id, err)}
		}
		rhs, err := eq.RHS.substitute(env)
		if err != nil {
			return nil, &flattenError{ErrNonConstantSubscript, fmt.Sprintf("equation %s: %v", id, err)}
		}
		return []Residual{{ID: id, Sides: []Side{{LHS: lhs, RHS: rhs}}}}, nil

	case KindFor:
		if eq.Index == "" {
			return nil, &flattenError{ErrInvalidForRange, fmt.Sprintf("equation %s: for-equation has no index name", id)}
		}
		if eq.From > eq.To {
			return nil, &flattenError{ErrInvalidForRange, fmt.Sprintf("equation %s: empty range %d:%d", id, eq.From, eq.To)}
		}
		if _, shadow := env[eq.Index]; shadow {
			return nil, &flattenError{ErrInvalidForRange, fmt.Sprintf("equation %s: index %q shadows an enclosing index", id, eq.Index)}
		}
		var out []Residual
		for v := eq.From; v <= eq.To; v++ {
			inner := make(map[string]int, len(env)+1)
			for k, val := range env {
				inner[k] = val
			}
			inner[eq.Index] = v
			for k, child := range eq.Body {
				res, err := flatten(child, childID(id, k, len(eq.Body), child), inner)
				if err != nil {
					return nil, err
				}
				for _, r := range res {
					r.ID = fmt.Sprintf("%s[%s=%d]", r.ID, eq.Index, v)
					out = append(out, r)
				}
			}
		}
		return out, nil

	case KindIf, KindWhen:
		return flattenConditional(eq, id, env)
	}
	return nil, &flattenError{ErrInvalidTag, fmt.Sprintf("equation %s: unknown kind %s", id, eq.Kind)}
}

func flattenConditional(eq Equation, id string, env map[string]int) ([]Residual, error) {
	if len(eq.Branches) == 0 {
		return nil, &flattenError{ErrUnbalancedBranches, fmt.Sprintf("equation %s: %s-equation has no branches", id, eq.Kind)}
	}
	if eq.Kind == KindWhen && len(eq.Else) > 0 {
		return nil, &flattenError{ErrUnbalancedBranches, fmt.Sprintf("equation %s: when-equation cannot have an else branch", id)}
	}

	var guards []Expr
	var alternatives [][]Residual
	addAlternative := func(body []Equation) error {
		var alt []Residual
		for k, child := range body {
			res, err := flatten(child, childID(id, k, len(body), child), env)
			if err != nil {
				return err
			}
			alt = append(alt, res...)
		}
		alternatives = append(alternatives, alt)
		return nil
	}
	for _, br := range eq.Branches {
		cond, err := br.Cond.substitute(env)
		if err != nil {
			return nil, &flattenError{ErrNonConstantSubscript, fmt.Sprintf("equation %s: %v", id, err)}
		}
		guards = append(guards, cond)
		if err := addAlternative(br.Body); err != nil {
			return nil, err
		}
	}
	if len(eq.Else) > 0 {
		if err := addAlternative(eq.Else); err != nil {
			return nil, err
		}
	}

	if err := checkBalanced(eq.Kind, id, alternatives); err != nil {
		return nil, err
	}
	alignByDefined(alternatives)

	n := len(alternatives[0])
	out := make([]Residual, n)
	for j := 0; j < n; j++ {
		r := Residual{ID: id, Guards: slices.Clone(guards)}
		if n > 1 {
			r.ID = fmt.Sprintf("%s.%d", id, j+1)
		}
		for _, alt := range alternatives {
			r.Guards = append(r.Guards, alt[j].Guards...)
			r.Sides = append(r.Sides, alt[j].Sides...)
		}
		out[j] = r
	}
	return out, nil
}

// checkBalanced requires every alternative to define the same number of
// residuals and the same set of left-hand-side variables.
func checkBalanced(kind Kind, id string, alternatives [][]Residual) error {
	want := definedSet(alternatives[0])
	for i, alt := range alternatives {
		if len(alt) != len(alternatives[0]) {
			return &flattenError{ErrUnbalancedBranches, fmt.Sprintf(
				"equation %s: branch %d defines %d equation(s), branch 1 defines %d",
				id, i+1, len(alt), len(alternatives[0]))}
		}
		if kind == KindWhen {
			for _, r := range alt {
				for _, s := range r.Sides {
					if _, ok := s.LHS.Defines(); !ok {
						return &flattenError{ErrWhenTarget, fmt.Sprintf(
							"equation %s: when-equation left-hand side %s is not a variable", id, s.LHS)}
					}
				}
			}
		}
		if got := definedSet(alt); !slices.Equal(got, want) {
			return &flattenError{ErrUnbalancedBranches, fmt.Sprintf(
				"equation %s: branch %d assigns %v, branch 1 assigns %v", id, i+1, got, want)}
		}
	}
	return nil
}

// alignByDefined reorders every alternative after the first so that its j-th
// residual defines the same variable as the j-th residual of the first. The
// alternatives are left in declaration order unless every residual defines
// exactly one variable and no alternative defines a variable twice.
func alignByDefined(alternatives [][]Residual) {
	keys := make([][]string, len(alternatives))
	for i, alt := range alternatives {
		k, ok := definedKeys(alt)
		if !ok {
			return
		}
		keys[i] = k
	}

	orders := make([][]int, len(alternatives))
	for i := 1; i < len(alternatives); i++ {
		at := make(map[string]int, len(keys[i]))
		for j, name := range keys[i] {
			at[name] = j
		}
		order := make([]int, len(keys[0]))
		for j, name := range keys[0] {
			k, ok := at[name]
			if !ok {
				return
			}
			order[j] = k
		}
		orders[i] = order
	}
	for i := 1; i < len(alternatives); i++ {
		aligned := make([]Residual, len(orders[i]))
		for j, k := range orders[i] {
			aligned[j] = alternatives[i][k]
		}
		alternatives[i] = aligned
	}
}

// definedKeys returns the variable each residual of alt defines. It fails
// when a residual has a side that defines no variable, sides that define
// different variables, or a variable defined by two residuals.
func definedKeys(alt []Residual) ([]string, bool) {
	keys := make([]string, len(alt))
	seen := make(map[string]bool, len(alt))
	for j, r := range alt {
		for k, side := range r.Sides {
			name, ok := side.LHS.Defines()
			if !ok || (k > 0 && name != keys[j]) {
				return nil, false
			}
			keys[j] = name
		}
		if keys[j] == "" || seen[keys[j]] {
			return nil, false
		}
		seen[keys[j]] = true
	}
	return keys, true
}

func definedSet(alt []Residual) []string {
	var names []string
	for _, r := range alt {
		for _, s := range r.Sides {
			if name, ok := s.LHS.Defines(); ok {
				names = append(names, name)
			}
		}
	}
	slices.Sort(names)
	return slices.Compact(names)
}
