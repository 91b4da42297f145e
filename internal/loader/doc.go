// Package loader reads model documents from disk and builds dae models.
//
// Supported formats are chosen by file extension: .cue, .yaml, .yml, .json
// and .hcl. All formats share one shape: a model name, a list of variables
// and a list of equations whose expressions are written as text (see
// package exprparse). A YAML model looks like:
//
//	name: FallingBody
//	variables:
//	  - {name: h, category: state, state_index: 0}
//	  - {name: v, category: state, state_index: 1}
//	  - {name: g, category: parameter, start: 9.81}
//	equations:
//	  - der(h) = v
//	  - der(v) = -g
//
// Loading only decodes; model invariants are enforced by dae.NewModel.
package loader
