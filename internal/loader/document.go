package loader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/CogniPilot/modelica-ir/internal/dae"
	"github.com/CogniPilot/modelica-ir/internal/exprparse"
)

// Document is the format-neutral form of a model file. Expressions are kept
// as text until Build parses them.
type Document struct {
	Name      string        `yaml:"name"`
	Variables []VariableDoc `yaml:"variables"`
	Equations []EquationDoc `yaml:"equations"`
}

// VariableDoc declares one variable.
type VariableDoc struct {
	Name       string   `yaml:"name"`
	Category   string   `yaml:"category"`
	StateIndex *int     `yaml:"state_index"`
	Start      *float64 `yaml:"start"`
	Unit       string   `yaml:"unit"`
	Min        *float64 `yaml:"min"`
	Max        *float64 `yaml:"max"`
}

// EquationDoc declares one equation. Eq is the "lhs = rhs" shorthand for
// LHS and RHS. Kind may be omitted: branches imply "if", an index implies
// "for", anything else is "simple".
type EquationDoc struct {
	ID        string        `yaml:"id"`
	Section   string        `yaml:"section"`
	Kind      string        `yaml:"kind"`
	Eq        string        `yaml:"eq"`
	LHS       string        `yaml:"lhs"`
	RHS       string        `yaml:"rhs"`
	Index     string        `yaml:"index"`
	From      *int          `yaml:"from"`
	To        *int          `yaml:"to"`
	Equations []EquationDoc `yaml:"equations"`
	Branches  []BranchDoc   `yaml:"branches"`
	Else      []EquationDoc `yaml:"else"`

	pos Position
}

// BranchDoc is one guarded branch of an if- or when-equation.
type BranchDoc struct {
	Condition string        `yaml:"condition"`
	Equations []EquationDoc `yaml:"equations"`
}

// Build parses every expression of d and constructs the model. Invariant
// violations are returned as a *LoadError wrapping the *dae.ModelError.
func (d *Document) Build() (*dae.Model, error) {
	vars := make([]dae.Variable, len(d.Variables))
	for i, v := range d.Variables {
		field := fmt.Sprintf("variables[%d]", i)
		cat, err := dae.ParseCategory(v.Category)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeField, Field: field + ".category", Message: err.Error()}
		}
		vars[i] = dae.Variable{
			Name:       v.Name,
			Category:   cat,
			StateIndex: v.StateIndex,
			Start:      v.Start,
			Unit:       v.Unit,
			Min:        v.Min,
			Max:        v.Max,
		}
	}

	eqs := make([]dae.Equation, len(d.Equations))
	for i, e := range d.Equations {
		eq, err := e.build(fmt.Sprintf("equations[%d]", i), true)
		if err != nil {
			return nil, err
		}
		eqs[i] = eq
	}

	m, err := dae.NewModel(d.Name, vars, eqs)
	if err != nil {
		var me *dae.ModelError
		if errors.As(err, &me) {
			return nil, &LoadError{Code: ErrCodeModel, Message: me.Error(), Err: me}
		}
		return nil, err
	}
	return m, nil
}

func (e EquationDoc) build(field string, top bool) (dae.Equation, error) {
	eq := dae.Equation{ID: e.ID}
	fail := func(sub, msg string) (dae.Equation, error) {
		return dae.Equation{}, &LoadError{Code: ErrCodeField, Field: field + sub, Message: msg, Pos: e.pos}
	}

	if e.Section != "" {
		if !top {
			return fail(".section", "nested equations inherit the section of their parent")
		}
		s, err := dae.ParseSection(e.Section)
		if err != nil {
			return fail(".section", err.Error())
		}
		eq.Section = s
	}

	kind := e.Kind
	if kind == "" {
		switch {
		case len(e.Branches) > 0:
			kind = "if"
		case e.Index != "":
			kind = "for"
		default:
			kind = "simple"
		}
	}
	k, err := dae.ParseKind(kind)
	if err != nil {
		return fail(".kind", err.Error())
	}
	eq.Kind = k

	switch k {
	case dae.KindSimple, dae.KindConnect:
		lhs, rhs := e.LHS, e.RHS
		if e.Eq != "" {
			var ok bool
			if lhs, rhs, ok = splitEquation(e.Eq); !ok {
				return fail(".eq", fmt.Sprintf("%q is not of the form lhs = rhs", e.Eq))
			}
		}
		if lhs == "" || rhs == "" {
			return fail("", "equation needs eq or both lhs and rhs")
		}
		if eq.LHS, err = parseAt(field+".lhs", lhs, e.pos); err != nil {
			return dae.Equation{}, err
		}
		if eq.RHS, err = parseAt(field+".rhs", rhs, e.pos); err != nil {
			return dae.Equation{}, err
		}

	case dae.KindFor:
		if e.From == nil || e.To == nil {
			return fail("", "for-equation needs from and to")
		}
		eq.Index, eq.From, eq.To = e.Index, *e.From, *e.To
		if eq.Body, err = buildBody(field+".equations", e.Equations); err != nil {
			return dae.Equation{}, err
		}

	case dae.KindIf, dae.KindWhen:
		for j, br := range e.Branches {
			bf := fmt.Sprintf("%s.branches[%d]", field, j)
			cond, err := parseAt(bf+".condition", br.Condition, e.pos)
			if err != nil {
				return dae.Equation{}, err
			}
			body, err := buildBody(bf+".equations", br.Equations)
			if err != nil {
				return dae.Equation{}, err
			}
			eq.Branches = append(eq.Branches, dae.Branch{Cond: cond, Body: body})
		}
		if eq.Else, err = buildBody(field+".else", e.Else); err != nil {
			return dae.Equation{}, err
		}
	}
	return eq, nil
}

func buildBody(field string, docs []EquationDoc) ([]dae.Equation, error) {
	var out []dae.Equation
	for i, d := range docs {
		eq, err := d.build(fmt.Sprintf("%s[%d]", field, i), false)
		if err != nil {
			return nil, err
		}
		out = append(out, eq)
	}
	return out, nil
}

func parseAt(field, src string, pos Position) (dae.Expr, error) {
	if strings.TrimSpace(src) == "" {
		return dae.Expr{}, &LoadError{Code: ErrCodeField, Field: field, Message: "expression is required", Pos: pos}
	}
	e, err := exprparse.Parse(src)
	if err != nil {
		return dae.Expr{}, &LoadError{Code: ErrCodeExpression, Field: field, Message: err.Error(), Pos: pos, Err: err}
	}
	return e, nil
}

// splitEquation splits "lhs = rhs" at its single assignment sign, skipping
// the comparison operators ==, <=, >= and !=.
func splitEquation(s string) (string, string, bool) {
	at := -1
	for i := 0; i < len(s); i++ {
		if s[i] != '=' {
			continue
		}
		if i+1 < len(s) && s[i+1] == '=' {
			i++
			continue
		}
		if i > 0 && strings.ContainsRune("<>!=", rune(s[i-1])) {
			continue
		}
		if at >= 0 {
			return "", "", false
		}
		at = i
	}
	if at < 0 {
		return "", "", false
	}
	lhs, rhs := strings.TrimSpace(s[:at]), strings.TrimSpace(s[at+1:])
	return lhs, rhs, lhs != "" && rhs != ""
}
