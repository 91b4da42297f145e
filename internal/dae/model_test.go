package dae

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }

func fallingBodyVars() []Variable {
	return []Variable{
		{Name: "h", Category: CategoryState, StateIndex: intPtr(0), Start: floatPtr(10)},
		{Name: "v", Category: CategoryState, StateIndex: intPtr(1)},
		{Name: "g", Category: CategoryParameter, Start: floatPtr(9.81)},
	}
}

func TestNewModelValid(t *testing.T) {
	m, err := NewModel("FallingBody", fallingBodyVars(), []Equation{
		Simple("", Der("h"), Ref("v")),
		Simple("", Der("v"), Neg(Ref("g"))),
	})
	require.NoError(t, err)

	assert.Equal(t, "FallingBody", m.Name())
	eqs := m.Equations()
	require.Len(t, eqs, 2)
	assert.Equal(t, "continuous[1]", eqs[0].ID)
	assert.Equal(t, "continuous[2]", eqs[1].ID)

	res := m.Residuals()
	require.Len(t, res, 2)
	assert.Equal(t, 1, res[1].Position)
	assert.Equal(t, "der(v) = -g", res[1].String())

	states := m.States()
	require.Len(t, states, 2)
	assert.Equal(t, "h", states[0].Name)
}

func TestNewModelDoesNotAliasInput(t *testing.T) {
	vars := fallingBodyVars()
	eqs := []Equation{Simple("e1", Der("h"), Ref("v")), Simple("e2", Der("v"), Neg(Ref("g")))}
	m := MustModel("m", vars, eqs)

	vars[0].Name = "changed"
	eqs[0].ID = "changed"
	_, ok := m.Variable("h")
	assert.True(t, ok)
	assert.Equal(t, "e1", m.Equations()[0].ID)
}

func TestNewModelViolations(t *testing.T) {
	tests := []struct {
		name string
		vars []Variable
		eqs  []Equation
		code string
	}{
		{
			name: "empty name",
			vars: []Variable{{Name: "", Category: CategoryAlgebraic}},
			code: ErrEmptyName,
		},
		{
			name: "duplicate variable",
			vars: []Variable{{Name: "x", Category: CategoryAlgebraic}, {Name: "x", Category: CategoryState}},
			code: ErrDuplicateVariable,
		},
		{
			name: "state index on algebraic",
			vars: []Variable{{Name: "y", Category: CategoryAlgebraic, StateIndex: intPtr(0)}},
			code: ErrStateIndexNonState,
		},
		{
			name: "state index gap",
			vars: []Variable{
				{Name: "a", Category: CategoryState, StateIndex: intPtr(0)},
				{Name: "b", Category: CategoryState, StateIndex: intPtr(2)},
			},
			code: ErrStateIndexLayout,
		},
		{
			name: "state index partial",
			vars: []Variable{
				{Name: "a", Category: CategoryState, StateIndex: intPtr(0)},
				{Name: "b", Category: CategoryState},
			},
			code: ErrStateIndexLayout,
		},
		{
			name: "der of algebraic",
			vars: []Variable{{Name: "y", Category: CategoryAlgebraic}},
			eqs:  []Equation{Simple("e", Der("y"), Lit(1))},
			code: ErrDerNonState,
		},
		{
			name: "der of expression",
			vars: []Variable{{Name: "x", Category: CategoryState}},
			eqs:  []Equation{Simple("e", Expr{Op: OpDer, Args: []Expr{Add(Ref("x"), Lit(1))}}, Lit(0))},
			code: ErrDerNotReference,
		},
		{
			name: "duplicate equation id",
			vars: []Variable{{Name: "y", Category: CategoryAlgebraic}},
			eqs:  []Equation{Simple("e", Ref("y"), Lit(1)), Simple("e", Ref("y"), Lit(2))},
			code: ErrDuplicateEquation,
		},
		{
			name: "malformed expression",
			vars: []Variable{{Name: "y", Category: CategoryAlgebraic}},
			eqs:  []Equation{Simple("e", Ref("y"), Expr{Op: OpAdd, Args: []Expr{Lit(1)}})},
			code: ErrMalformedExpr,
		},
		{
			name: "bounds",
			vars: []Variable{{Name: "y", Category: CategoryAlgebraic, Min: floatPtr(2), Max: floatPtr(1)}},
			code: ErrInvalidBounds,
		},
		{
			name: "invalid category",
			vars: []Variable{{Name: "y", Category: Category(42)}},
			code: ErrInvalidTag,
		},
		{
			name: "empty for range",
			vars: []Variable{{Name: "x[1]", Category: CategoryAlgebraic}},
			eqs: []Equation{{
				ID: "loop", Kind: KindFor, Index: "i", From: 2, To: 1,
				Body: []Equation{Simple("", Index(Ref("x"), Ref("i")), Lit(0))},
			}},
			code: ErrInvalidForRange,
		},
		{
			name: "non-constant subscript",
			vars: []Variable{{Name: "x[1]", Category: CategoryAlgebraic}, {Name: "k", Category: CategoryAlgebraic}},
			eqs:  []Equation{Simple("e", Index(Ref("x"), Ref("k")), Lit(0))},
			code: ErrNonConstantSubscript,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewModel("bad", tt.vars, tt.eqs)
			require.Error(t, err)
			require.True(t, IsModelError(err))
			me := err.(*ModelError)
			assert.True(t, me.HasCode(tt.code), "expected %s in %v", tt.code, me.Violations)
		})
	}
}

func TestNewModelCollectsAllViolations(t *testing.T) {
	_, err := NewModel("bad", []Variable{
		{Name: "", Category: CategoryAlgebraic},
		{Name: "y", Category: CategoryAlgebraic, StateIndex: intPtr(0)},
	}, []Equation{Simple("e", Der("y"), Lit(0))})
	require.Error(t, err)
	me := err.(*ModelError)
	assert.True(t, me.HasCode(ErrEmptyName))
	assert.True(t, me.HasCode(ErrStateIndexNonState))
	assert.True(t, me.HasCode(ErrDerNonState))
	assert.Contains(t, err.Error(), "3 violation(s)")
}

func TestDerOfUndeclaredIsDeferred(t *testing.T) {
	// reference errors are raised by the incidence builder, not by construction
	_, err := NewModel("m", nil, []Equation{Simple("e", Der("ghost"), Lit(0))})
	assert.NoError(t, err)
}

func TestFingerprintStable(t *testing.T) {
	build := func() *Model {
		return MustModel("FallingBody", fallingBodyVars(), []Equation{
			Simple("e1", Der("h"), Ref("v")),
			Simple("e2", Der("v"), Neg(Ref("g"))),
		})
	}
	a, err := build().Fingerprint()
	require.NoError(t, err)
	b, err := build().Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other := MustModel("FallingBody", fallingBodyVars(), []Equation{
		Simple("e1", Der("h"), Ref("v")),
		Simple("e2", Der("v"), Ref("g")),
	})
	c, err := other.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("discrete-valued")
	require.NoError(t, err)
	assert.Equal(t, CategoryDiscreteValued, c)
	assert.Equal(t, "discrete_valued", c.String())
	assert.False(t, c.IsFixed())
	assert.True(t, CategoryParameter.IsFixed())

	_, err = ParseCategory("quantum")
	assert.Error(t, err)
}
