package dae

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEquationExpands(t *testing.T) {
	vars := []Variable{
		{Name: "x[1]", Category: CategoryAlgebraic},
		{Name: "x[2]", Category: CategoryAlgebraic},
		{Name: "x[3]", Category: CategoryAlgebraic},
	}
	m, err := NewModel("chain", vars, []Equation{
		Simple("first", Index(Ref("x"), Lit(1)), Lit(1)),
		{
			ID: "chain", Kind: KindFor, Index: "i", From: 2, To: 3,
			Body: []Equation{Simple("", Index(Ref("x"), Ref("i")), Add(Index(Ref("x"), Sub(Ref("i"), Lit(1))), Ref("i")))},
		},
	})
	require.NoError(t, err)

	res := m.Residuals()
	require.Len(t, res, 3)
	assert.Equal(t, "first", res[0].ID)
	assert.Equal(t, "chain[i=2]", res[1].ID)
	assert.Equal(t, "chain[i=3]", res[2].ID)
	assert.Equal(t, "chain", res[2].Origin)
	assert.Equal(t, KindFor, res[2].Kind)
	assert.Equal(t, "x[3] = x[2] + 3", res[2].String())
}

func TestIfEquationMergesBranches(t *testing.T) {
	vars := []Variable{
		{Name: "x", Category: CategoryState},
		{Name: "y", Category: CategoryAlgebraic},
		{Name: "z", Category: CategoryAlgebraic},
	}
	m, err := NewModel("switch", vars, []Equation{
		Simple("dx", Der("x"), Ref("y")),
		{
			ID: "sw", Kind: KindIf,
			Branches: []Branch{{
				Cond: Binary(OpGt, Ref("x"), Lit(0)),
				Body: []Equation{Simple("", Ref("y"), Ref("x")), Simple("", Ref("z"), Lit(1))},
			}},
			Else: []Equation{Simple("", Ref("y"), Lit(0)), Simple("", Ref("z"), Ref("y"))},
		},
	})
	require.NoError(t, err)

	res := m.Residuals()
	require.Len(t, res, 3)
	assert.Equal(t, "sw.1", res[1].ID)
	assert.Equal(t, "sw.2", res[2].ID)
	require.Len(t, res[1].Sides, 2)
	require.Len(t, res[1].Guards, 1)
	assert.Equal(t, "x > 0", res[1].Guards[0].String())
	assert.Len(t, res[2].Exprs(), 5)
}

func TestIfEquationPairsBranchesByDefinedVariable(t *testing.T) {
	vars := []Variable{
		{Name: "c", Category: CategoryParameter},
		{Name: "x", Category: CategoryAlgebraic},
		{Name: "y", Category: CategoryAlgebraic},
	}
	m, err := NewModel("swapped", vars, []Equation{{
		ID: "sw", Kind: KindIf,
		Branches: []Branch{{
			Cond: Binary(OpGt, Ref("c"), Lit(0)),
			Body: []Equation{Simple("", Ref("x"), Lit(1)), Simple("", Ref("y"), Lit(2))},
		}},
		Else: []Equation{Simple("", Ref("y"), Lit(3)), Simple("", Ref("x"), Lit(4))},
	}})
	require.NoError(t, err)

	res := m.Residuals()
	require.Len(t, res, 2)
	assert.Equal(t, "sw.1", res[0].ID)
	require.Len(t, res[0].Sides, 2)
	assert.Equal(t, "x = 1", res[0].Sides[0].LHS.String()+" = "+res[0].Sides[0].RHS.String())
	assert.Equal(t, "x = 4", res[0].Sides[1].LHS.String()+" = "+res[0].Sides[1].RHS.String())

	assert.Equal(t, "sw.2", res[1].ID)
	require.Len(t, res[1].Sides, 2)
	assert.Equal(t, "y = 2", res[1].Sides[0].LHS.String()+" = "+res[1].Sides[0].RHS.String())
	assert.Equal(t, "y = 3", res[1].Sides[1].LHS.String()+" = "+res[1].Sides[1].RHS.String())
}

func TestIfEquationPairsByPositionWithoutDefinedVariables(t *testing.T) {
	vars := []Variable{
		{Name: "c", Category: CategoryParameter},
		{Name: "x", Category: CategoryAlgebraic},
		{Name: "y", Category: CategoryAlgebraic},
	}
	m, err := NewModel("implicit", vars, []Equation{{
		ID: "sw", Kind: KindIf,
		Branches: []Branch{{
			Cond: Binary(OpGt, Ref("c"), Lit(0)),
			Body: []Equation{Simple("", Add(Ref("x"), Ref("y")), Lit(1)), Simple("", Ref("y"), Lit(2))},
		}},
		Else: []Equation{Simple("", Ref("y"), Lit(3)), Simple("", Add(Ref("x"), Ref("y")), Lit(4))},
	}})
	require.NoError(t, err)

	res := m.Residuals()
	require.Len(t, res, 2)
	assert.Equal(t, "x + y", res[0].Sides[0].LHS.String())
	assert.Equal(t, "y", res[0].Sides[1].LHS.String())
}

func TestUnbalancedIfRejected(t *testing.T) {
	vars := []Variable{{Name: "y", Category: CategoryAlgebraic}, {Name: "z", Category: CategoryAlgebraic}}
	_, err := NewModel("bad", vars, []Equation{{
		ID: "sw", Kind: KindIf,
		Branches: []Branch{{Cond: Binary(OpGt, Ref("z"), Lit(0)), Body: []Equation{Simple("", Ref("y"), Lit(1))}}},
		Else:     []Equation{Simple("", Ref("z"), Lit(0))},
	}})
	require.Error(t, err)
	assert.True(t, err.(*ModelError).HasCode(ErrUnbalancedBranches))

	_, err = NewModel("bad", vars, []Equation{{
		ID: "sw", Kind: KindIf,
		Branches: []Branch{{Cond: Binary(OpGt, Ref("z"), Lit(0)), Body: []Equation{Simple("", Ref("y"), Lit(1))}}},
		Else:     []Equation{Simple("", Ref("y"), Lit(0)), Simple("", Ref("z"), Lit(0))},
	}})
	require.Error(t, err)
	assert.True(t, err.(*ModelError).HasCode(ErrUnbalancedBranches))
}

func TestWhenEquationTargets(t *testing.T) {
	vars := []Variable{
		{Name: "x", Category: CategoryState},
		{Name: "n", Category: CategoryDiscreteValued},
	}
	m, err := NewModel("counter", vars, []Equation{
		Simple("dx", Der("x"), Lit(1)),
		{
			ID: "tick", Kind: KindWhen, Section: SectionEvent,
			Branches: []Branch{{Cond: Binary(OpGt, Ref("x"), Lit(1)), Body: []Equation{Simple("", Ref("n"), Add(Call("pre", Ref("n")), Lit(1)))}}},
		},
	})
	require.NoError(t, err)
	res := m.Residuals()
	require.Len(t, res, 2)
	assert.Equal(t, SectionEvent, res[1].Section)
	assert.Equal(t, KindWhen, res[1].Kind)

	_, err = NewModel("bad", vars, []Equation{{
		ID: "tick", Kind: KindWhen,
		Branches: []Branch{{Cond: Ref("x"), Body: []Equation{Simple("", Add(Ref("n"), Lit(1)), Lit(0))}}},
	}})
	require.Error(t, err)
	assert.True(t, err.(*ModelError).HasCode(ErrWhenTarget))
}

func TestConnectEquationsProduceNoResiduals(t *testing.T) {
	vars := []Variable{{Name: "a.p", Category: CategoryAlgebraic}, {Name: "b.p", Category: CategoryAlgebraic}}
	m, err := NewModel("wiring", vars, []Equation{
		{ID: "c1", Kind: KindConnect, LHS: Ref("a.p"), RHS: Ref("b.p")},
		Simple("e1", Ref("a.p"), Lit(1)),
	})
	require.NoError(t, err)
	assert.Len(t, m.Equations(), 2)
	assert.Len(t, m.Residuals(), 1)
}
