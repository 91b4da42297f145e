package structure

import (
	"github.com/CogniPilot/modelica-ir/internal/canon"
)

// Stats summarizes the size of an analysis.
type Stats struct {
	Equations    int `json:"equations"`
	Unknowns     int `json:"unknowns"`
	ScalarBlocks int `json:"scalar_blocks"`
	LoopBlocks   int `json:"loop_blocks"`
	LargestLoop  int `json:"largest_loop"`
}

// Result is the evaluation plan of one analysis run. Callers should inspect
// IsWellPosed and Diagnostics before trusting Blocks.
type Result struct {
	Model              string       `json:"model"`
	Blocks             []Block      `json:"blocks"`
	HasAlgebraicLoops  bool         `json:"has_algebraic_loops"`
	IsWellPosed        bool         `json:"is_well_posed"`
	Diagnostics        []Diagnostic `json:"diagnostics"`
	UnmatchedEquations []string     `json:"unmatched_equations"`
	UnmatchedVariables []string     `json:"unmatched_variables"`
	Stats              Stats        `json:"stats"`
}

func newResult(model string, inc *Incidence, mt *Matching, blocks []Block, diags []Diagnostic) *Result {
	r := &Result{
		Model:              model,
		Blocks:             blocks,
		IsWellPosed:        true,
		Diagnostics:        diags,
		UnmatchedEquations: mt.UnmatchedEquations(),
		UnmatchedVariables: slotNames(mt.UnmatchedSlots()),
		Stats: Stats{
			Equations: len(inc.Equations),
			Unknowns:  len(inc.Slots),
		},
	}
	if r.Blocks == nil {
		r.Blocks = []Block{}
	}
	if r.Diagnostics == nil {
		r.Diagnostics = []Diagnostic{}
	}
	if r.UnmatchedEquations == nil {
		r.UnmatchedEquations = []string{}
	}
	if r.UnmatchedVariables == nil {
		r.UnmatchedVariables = []string{}
	}
	for _, b := range blocks {
		switch b.Kind {
		case Scalar:
			r.Stats.ScalarBlocks++
		case AlgebraicLoop:
			r.HasAlgebraicLoops = true
			r.Stats.LoopBlocks++
			r.Stats.LargestLoop = max(r.Stats.LargestLoop, b.Size())
		}
	}
	for _, d := range diags {
		if d.IsError() {
			r.IsWellPosed = false
		}
	}
	return r
}

// Messages returns the diagnostics as human-readable lines, in order.
func (r *Result) Messages() []string {
	out := make([]string, len(r.Diagnostics))
	for i, d := range r.Diagnostics {
		out[i] = d.String()
	}
	return out
}

// Loops returns the algebraic loop blocks in plan order.
func (r *Result) Loops() []Block {
	var out []Block
	for _, b := range r.Blocks {
		if b.Kind == AlgebraicLoop {
			out = append(out, b)
		}
	}
	return out
}

// CanonicalValue implements canon.Valuer.
func (r *Result) CanonicalValue() any {
	blocks := make([]any, len(r.Blocks))
	for i, b := range r.Blocks {
		blocks[i] = map[string]any{
			"kind":      b.Kind.String(),
			"equations": b.Equations,
			"variables": b.Variables,
		}
	}
	diags := make([]any, len(r.Diagnostics))
	for i, d := range r.Diagnostics {
		obj := map[string]any{
			"code":    d.Code,
			"level":   d.Level,
			"message": d.Message,
		}
		if len(d.Equations) > 0 {
			obj["equations"] = d.Equations
		}
		if len(d.Variables) > 0 {
			obj["variables"] = d.Variables
		}
		diags[i] = obj
	}
	return map[string]any{
		"model":               r.Model,
		"blocks":              blocks,
		"has_algebraic_loops": r.HasAlgebraicLoops,
		"is_well_posed":       r.IsWellPosed,
		"diagnostics":         diags,
		"unmatched_equations": r.UnmatchedEquations,
		"unmatched_variables": r.UnmatchedVariables,
		"stats": map[string]any{
			"equations":     r.Stats.Equations,
			"unknowns":      r.Stats.Unknowns,
			"scalar_blocks": r.Stats.ScalarBlocks,
			"loop_blocks":   r.Stats.LoopBlocks,
			"largest_loop":  r.Stats.LargestLoop,
		},
	}
}

// Canonical returns the canonical JSON encoding of r.
func (r *Result) Canonical() ([]byte, error) {
	return canon.Marshal(r)
}

// Fingerprint returns a content hash of r. Two runs over the same model
// produce the same fingerprint.
func (r *Result) Fingerprint() (string, error) {
	return canon.Hash(canon.DomainResult, r)
}
