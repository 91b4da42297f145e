package loader

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
	"github.com/hashicorp/hcl/v2"
)

// Error code constants, shared with the CLI.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No model files found
	ErrCodeLoadFailed  = "E004" // Syntax error in the model document
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE evaluation failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeFormat      = "E008" // Unsupported file extension
	ErrCodeExpression  = "E009" // Expression text could not be parsed
	ErrCodeField       = "E010" // Missing or malformed document field
	ErrCodeModel       = "E011" // Document decodes but the model is invalid
)

// Position locates an error in a source document.
type Position struct {
	Filename string `json:"filename,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
}

// IsValid reports whether the position carries a line number.
func (p Position) IsValid() bool { return p.Line > 0 }

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

func cuePosition(pos token.Pos) Position {
	if !pos.IsValid() {
		return Position{}
	}
	return Position{Filename: pos.Filename(), Line: pos.Line(), Column: pos.Column()}
}

func hclPosition(r *hcl.Range) Position {
	if r == nil {
		return Position{}
	}
	return Position{Filename: r.Filename, Line: r.Start.Line, Column: r.Start.Column}
}

// LoadError represents an error that occurred while loading a model.
type LoadError struct {
	Code    string   `json:"code"`
	Field   string   `json:"field,omitempty"`
	Message string   `json:"message"`
	Pos     Position `json:"pos,omitzero"`
	Err     error    `json:"-"`
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause, such as a *dae.ModelError.
func (e *LoadError) Unwrap() error { return e.Err }

// IsLoadError reports whether err is or wraps a *LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}
