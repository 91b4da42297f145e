package dae

import (
	"errors"
	"fmt"
	"strings"
)

// Model violation codes (E200-E299).
const (
	ErrEmptyName            = "E201" // variable name is empty
	ErrDuplicateVariable    = "E202" // variable declared twice
	ErrStateIndexNonState   = "E203" // state_index on a non-state variable
	ErrStateIndexLayout     = "E204" // state indices not dense 0..n-1 or not unique
	ErrDerNotReference      = "E205" // der applied to something other than a variable
	ErrDerNonState          = "E206" // der applied to a non-state variable
	ErrUnbalancedBranches   = "E207" // if/when branches define different equations
	ErrDuplicateEquation    = "E208" // equation id used twice
	ErrInvalidForRange      = "E209" // for-equation index or range invalid
	ErrNonConstantSubscript = "E210" // subscript does not fold to an integer
	ErrWhenTarget           = "E211" // when-equation lhs is not a variable
	ErrMalformedExpr        = "E212" // operator arity mismatch
	ErrInvalidBounds        = "E213" // min > max
	ErrInvalidTag           = "E214" // category, section, kind or operator out of range
)

// Violation is one broken model invariant.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (v Violation) Error() string {
	return fmt.Sprintf("[%s] %s: %s", v.Code, v.Field, v.Message)
}

// ModelError reports every invariant violation found while constructing a
// Model. Construction does not stop at the first violation.
type ModelError struct {
	Violations []Violation `json:"violations"`
}

// Error implements the error interface.
func (e *ModelError) Error() string {
	lines := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		lines[i] = v.Error()
	}
	return fmt.Sprintf("invalid model (%d violation(s)): %s", len(e.Violations), strings.Join(lines, "; "))
}

// HasCode reports whether any violation carries code.
func (e *ModelError) HasCode(code string) bool {
	for _, v := range e.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// IsModelError reports whether err is or wraps a *ModelError.
func IsModelError(err error) bool {
	var me *ModelError
	return errors.As(err, &me)
}
