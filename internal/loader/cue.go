package loader

import (
	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// DecodeCUE evaluates a CUE model document. The model may sit at the top
// level or under a "model" field. Variables may be a list or a struct keyed
// by variable name; equations are a list of strings or structs.
func DecodeCUE(data []byte, filename string) (*Document, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, cueError(ErrCodeLoadFailed, err)
	}
	if m := v.LookupPath(cue.ParsePath("model")); m.Exists() {
		v = m
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(ErrCodeBuildFailed, err)
	}

	doc := &Document{}
	var err error
	if doc.Name, err = cueString(v, "name"); err != nil {
		return nil, err
	}
	if doc.Variables, err = cueVariables(v.LookupPath(cue.ParsePath("variables"))); err != nil {
		return nil, err
	}
	if doc.Equations, err = cueEquations(v.LookupPath(cue.ParsePath("equations"))); err != nil {
		return nil, err
	}
	return doc, nil
}

// cueError converts a CUE error to a LoadError with the position of its
// first entry.
func cueError(code string, err error) *LoadError {
	le := &LoadError{Code: code, Message: err.Error(), Err: err}
	if errs := errors.Errors(err); len(errs) > 0 {
		le.Message = errs[0].Error()
		if positions := errors.Positions(errs[0]); len(positions) > 0 {
			le.Pos = cuePosition(positions[0])
		}
	}
	return le
}

func fieldError(v cue.Value, field, msg string) *LoadError {
	return &LoadError{Code: ErrCodeField, Field: field, Message: msg, Pos: cuePosition(v.Pos())}
}

func cueString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", fieldError(f, field, "expected a string")
	}
	return s, nil
}

func cueInt(v cue.Value, field string) (*int, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return nil, nil
	}
	n, err := f.Int64()
	if err != nil {
		return nil, fieldError(f, field, "expected an integer")
	}
	i := int(n)
	return &i, nil
}

func cueFloat(v cue.Value, field string) (*float64, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return nil, nil
	}
	x, err := f.Float64()
	if err != nil {
		return nil, fieldError(f, field, "expected a number")
	}
	return &x, nil
}

func cueVariables(v cue.Value) ([]VariableDoc, error) {
	if !v.Exists() {
		return nil, nil
	}
	var out []VariableDoc
	switch v.IncompleteKind() {
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, cueError(ErrCodeField, err)
		}
		for iter.Next() {
			vd, err := cueVariable(iter.Value(), "")
			if err != nil {
				return nil, err
			}
			out = append(out, vd)
		}
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, cueError(ErrCodeField, err)
		}
		for iter.Next() {
			vd, err := cueVariable(iter.Value(), iter.Label())
			if err != nil {
				return nil, err
			}
			out = append(out, vd)
		}
	default:
		return nil, fieldError(v, "variables", "expected a list or a struct")
	}
	return out, nil
}

func cueVariable(v cue.Value, label string) (VariableDoc, error) {
	vd := VariableDoc{Name: label}
	var err error
	if label == "" {
		if vd.Name, err = cueString(v, "name"); err != nil {
			return vd, err
		}
	}
	if vd.Category, err = cueString(v, "category"); err != nil {
		return vd, err
	}
	if vd.Unit, err = cueString(v, "unit"); err != nil {
		return vd, err
	}
	if vd.StateIndex, err = cueInt(v, "state_index"); err != nil {
		return vd, err
	}
	if vd.Start, err = cueFloat(v, "start"); err != nil {
		return vd, err
	}
	if vd.Min, err = cueFloat(v, "min"); err != nil {
		return vd, err
	}
	if vd.Max, err = cueFloat(v, "max"); err != nil {
		return vd, err
	}
	return vd, nil
}

func cueEquations(v cue.Value) ([]EquationDoc, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, fieldError(v, "equations", "expected a list")
	}
	var out []EquationDoc
	for iter.Next() {
		ed, err := cueEquation(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, ed)
	}
	return out, nil
}

func cueEquation(v cue.Value) (EquationDoc, error) {
	ed := EquationDoc{pos: cuePosition(v.Pos())}
	if s, err := v.String(); err == nil {
		ed.Eq = s
		return ed, nil
	}

	strs := []struct {
		field string
		dst   *string
	}{
		{"id", &ed.ID}, {"section", &ed.Section}, {"kind", &ed.Kind},
		{"eq", &ed.Eq}, {"lhs", &ed.LHS}, {"rhs", &ed.RHS}, {"index", &ed.Index},
	}
	for _, s := range strs {
		val, err := cueString(v, s.field)
		if err != nil {
			return ed, err
		}
		*s.dst = val
	}

	var err error
	if ed.From, err = cueInt(v, "from"); err != nil {
		return ed, err
	}
	if ed.To, err = cueInt(v, "to"); err != nil {
		return ed, err
	}
	if ed.Equations, err = cueEquations(v.LookupPath(cue.ParsePath("equations"))); err != nil {
		return ed, err
	}
	if ed.Else, err = cueEquations(v.LookupPath(cue.ParsePath("else"))); err != nil {
		return ed, err
	}

	branches := v.LookupPath(cue.ParsePath("branches"))
	if branches.Exists() {
		iter, err := branches.List()
		if err != nil {
			return ed, fieldError(branches, "branches", "expected a list")
		}
		for iter.Next() {
			bv := iter.Value()
			cond, err := cueString(bv, "condition")
			if err != nil {
				return ed, err
			}
			body, err := cueEquations(bv.LookupPath(cue.ParsePath("equations")))
			if err != nil {
				return ed, err
			}
			ed.Branches = append(ed.Branches, BranchDoc{Condition: cond, Equations: body})
		}
	}
	return ed, nil
}
