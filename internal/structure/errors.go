package structure

import (
	"errors"
	"fmt"
)

// ErrSearchLimit is returned by Match when augmenting-path search exceeds
// Options.MaxAugmentSteps.
var ErrSearchLimit = errors.New("augmenting path search limit exceeded")

// ReferenceError reports an equation that references an undeclared name.
// No analysis is possible past a reference error.
type ReferenceError struct {
	Equation string `json:"equation"`
	Symbol   string `json:"symbol"`
}

// Error implements the error interface.
func (e *ReferenceError) Error() string {
	return fmt.Sprintf("equation %s references undeclared variable %q", e.Equation, e.Symbol)
}

// IsReferenceError reports whether err is or wraps a *ReferenceError.
func IsReferenceError(err error) bool {
	var re *ReferenceError
	return errors.As(err, &re)
}
