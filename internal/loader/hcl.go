package loader

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// hclModelFile represents the top-level structure of an HCL model file:
//
//	name = "FallingBody"
//	variable "h" {
//	  category    = "state"
//	  state_index = 0
//	}
//	equation { eq = "der(h) = v" }
//
// If-equations use branch blocks and an optional otherwise block.
type hclModelFile struct {
	Name      string         `hcl:"name,optional"`
	Variables []*hclVariable `hcl:"variable,block"`
	Equations []*hclEquation `hcl:"equation,block"`
}

type hclVariable struct {
	Name       string   `hcl:"name,label"`
	Category   string   `hcl:"category"`
	StateIndex *int     `hcl:"state_index,optional"`
	Start      *float64 `hcl:"start,optional"`
	Unit       string   `hcl:"unit,optional"`
	Min        *float64 `hcl:"min,optional"`
	Max        *float64 `hcl:"max,optional"`
}

type hclEquation struct {
	ID        string         `hcl:"id,optional"`
	Section   string         `hcl:"section,optional"`
	Kind      string         `hcl:"kind,optional"`
	Eq        string         `hcl:"eq,optional"`
	LHS       string         `hcl:"lhs,optional"`
	RHS       string         `hcl:"rhs,optional"`
	Index     string         `hcl:"index,optional"`
	From      *int           `hcl:"from,optional"`
	To        *int           `hcl:"to,optional"`
	Equations []*hclEquation `hcl:"equation,block"`
	Branches  []*hclBranch   `hcl:"branch,block"`
	Otherwise *hclOtherwise  `hcl:"otherwise,block"`
	DefRange  hcl.Range      `hcl:",def_range"`
}

type hclBranch struct {
	Condition string         `hcl:"condition"`
	Equations []*hclEquation `hcl:"equation,block"`
}

type hclOtherwise struct {
	Equations []*hclEquation `hcl:"equation,block"`
}

// DecodeHCL parses an HCL model document.
func DecodeHCL(data []byte, filename string) (*Document, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, hclError(ErrCodeLoadFailed, diags)
	}

	var parsed hclModelFile
	diags = gohcl.DecodeBody(file.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, hclError(ErrCodeField, diags)
	}

	doc := &Document{Name: parsed.Name}
	for _, v := range parsed.Variables {
		doc.Variables = append(doc.Variables, VariableDoc{
			Name:       v.Name,
			Category:   v.Category,
			StateIndex: v.StateIndex,
			Start:      v.Start,
			Unit:       v.Unit,
			Min:        v.Min,
			Max:        v.Max,
		})
	}
	doc.Equations = hclEquations(parsed.Equations)
	return doc, nil
}

func hclEquations(in []*hclEquation) []EquationDoc {
	var out []EquationDoc
	for _, e := range in {
		ed := EquationDoc{
			ID:        e.ID,
			Section:   e.Section,
			Kind:      e.Kind,
			Eq:        e.Eq,
			LHS:       e.LHS,
			RHS:       e.RHS,
			Index:     e.Index,
			From:      e.From,
			To:        e.To,
			Equations: hclEquations(e.Equations),
			pos:       hclPosition(&e.DefRange),
		}
		for _, br := range e.Branches {
			ed.Branches = append(ed.Branches, BranchDoc{Condition: br.Condition, Equations: hclEquations(br.Equations)})
		}
		if e.Otherwise != nil {
			ed.Else = hclEquations(e.Otherwise.Equations)
		}
		out = append(out, ed)
	}
	return out
}

// hclError converts diagnostics to a LoadError located at the first error.
func hclError(code string, diags hcl.Diagnostics) *LoadError {
	le := &LoadError{Code: code, Message: diags.Error(), Err: diags}
	for _, d := range diags {
		if d.Severity == hcl.DiagError {
			le.Message = d.Summary
			if d.Detail != "" {
				le.Message += ": " + d.Detail
			}
			le.Pos = hclPosition(d.Subject)
			break
		}
	}
	return le
}
