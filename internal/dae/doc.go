// Package dae provides the classified model consumed by the structural analysis.
//
// The package holds variables, expression trees and equations of a
// differential-algebraic equation system after classification by a front-end
// compiler. A Model is validated once by NewModel and is immutable afterwards:
// every analysis result lives in a separate value owned by the caller.
//
// Key design constraints:
//   - Categories, operators, sections and equation kinds are closed enums
//   - der(x) is legal only when x is declared as a state
//   - if/when branches must define the same equations (balanced)
//   - for-equations and constant subscripts are expanded into residual equations
//     at construction time, so downstream packages only see flat residuals
//   - All JSON tags use snake_case
package dae
