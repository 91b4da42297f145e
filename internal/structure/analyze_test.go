package structure

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CogniPilot/modelica-ir/internal/dae"
	"github.com/CogniPilot/modelica-ir/internal/testutil"
)

func TestAnalyzeFallingBody(t *testing.T) {
	res, err := Analyze(testutil.FallingBody())
	require.NoError(t, err)

	require.Len(t, res.Blocks, 2)
	for _, b := range res.Blocks {
		assert.Equal(t, Scalar, b.Kind)
	}
	assert.Equal(t, []string{"der(h)"}, res.Blocks[0].Variables)
	assert.Equal(t, []string{"der(v)"}, res.Blocks[1].Variables)
	assert.True(t, res.IsWellPosed)
	assert.False(t, res.HasAlgebraicLoops)
	assert.Empty(t, res.Diagnostics)
	assert.Equal(t, Stats{Equations: 2, Unknowns: 2, ScalarBlocks: 2}, res.Stats)
}

func TestAnalyzeAlgebraicLoop(t *testing.T) {
	res, err := Analyze(testutil.AlgebraicLoop())
	require.NoError(t, err)

	require.Len(t, res.Blocks, 1)
	assert.Equal(t, AlgebraicLoop, res.Blocks[0].Kind)
	assert.Equal(t, []string{"continuous[1]", "continuous[2]"}, res.Blocks[0].Equations)
	assert.True(t, res.HasAlgebraicLoops)
	assert.True(t, res.IsWellPosed)

	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, WarnAlgebraicLoop, res.Diagnostics[0].Code)
	assert.Equal(t, LevelWarning, res.Diagnostics[0].Level)
	assert.Equal(t, 2, res.Stats.LargestLoop)
}

func TestAnalyzeSelfLoop(t *testing.T) {
	res, err := Analyze(testutil.SelfLoop())
	require.NoError(t, err)

	require.Len(t, res.Blocks, 1)
	assert.Equal(t, AlgebraicLoop, res.Blocks[0].Kind)
	assert.Equal(t, 1, res.Blocks[0].Size())
	assert.True(t, res.HasAlgebraicLoops)
}

func TestAnalyzeOverDetermined(t *testing.T) {
	res, err := Analyze(testutil.OverDetermined())
	require.NoError(t, err)

	assert.False(t, res.IsWellPosed)
	assert.Equal(t, []string{"continuous[2]"}, res.UnmatchedEquations)

	var surplus *Diagnostic
	for i, d := range res.Diagnostics {
		if d.Code == ErrOverDetermined && slices.Contains(d.Equations, "continuous[2]") {
			surplus = &res.Diagnostics[i]
		}
	}
	require.NotNil(t, surplus, "diagnostics: %v", res.Messages())
	assert.Contains(t, surplus.Message, "surplus equation continuous[2]")
}

func TestAnalyzeUnderDetermined(t *testing.T) {
	res, err := Analyze(testutil.UnderDetermined())
	require.NoError(t, err)

	assert.False(t, res.IsWellPosed)
	assert.Equal(t, []string{"y"}, res.UnmatchedVariables)
	assert.Equal(t, []string{
		"[E303] error: under-determined system: 1 equation(s) for 2 unknown(s)",
		"[E301] error: structurally singular: maximum matching covers 1 of 1 equation(s) and 1 of 2 unknown(s)",
		"[E303] error: unknown y is not determined by any equation",
	}, res.Messages())
}

func TestAnalyzeSingularWithBalancedCounts(t *testing.T) {
	// two equations in x only, y never referenced
	m := dae.MustModel("Singular", []dae.Variable{
		{Name: "x", Category: dae.CategoryAlgebraic},
		{Name: "y", Category: dae.CategoryAlgebraic},
	}, []dae.Equation{
		dae.Simple("a", dae.Ref("x"), dae.Lit(1)),
		dae.Simple("b", dae.Ref("x"), dae.Lit(2)),
	})
	res, err := Analyze(m)
	require.NoError(t, err)

	assert.False(t, res.IsWellPosed)
	assert.Equal(t, []string{"b"}, res.UnmatchedEquations)
	assert.Equal(t, []string{"y"}, res.UnmatchedVariables)
	for _, d := range res.Diagnostics {
		assert.Equal(t, ErrStructurallySingular, d.Code)
	}
}

func TestAnalyzeWhenEquation(t *testing.T) {
	res, err := Analyze(testutil.BouncingCounter())
	require.NoError(t, err)

	assert.True(t, res.IsWellPosed)
	require.Len(t, res.Blocks, 3)
	assert.Equal(t, []string{"count"}, res.Blocks[2].Equations)
	assert.Equal(t, []string{"n"}, res.Blocks[2].Variables)
}

func TestAnalyzeForEquation(t *testing.T) {
	res, err := Analyze(testutil.Ladder(4))
	require.NoError(t, err)

	var order []string
	for _, b := range res.Blocks {
		order = append(order, b.Equations...)
	}
	assert.Equal(t, []string{"base", "rung[i=2]", "rung[i=3]", "rung[i=4]"}, order)
	assert.True(t, res.IsWellPosed)
}

func TestAnalyzePartition(t *testing.T) {
	for _, m := range allFixtures() {
		t.Run(m.Name(), func(t *testing.T) {
			res, err := Analyze(m)
			require.NoError(t, err)
			if len(res.UnmatchedEquations) > 0 || len(res.UnmatchedVariables) > 0 {
				t.Skip("partial matching")
			}

			var got []string
			for _, b := range res.Blocks {
				got = append(got, b.Equations...)
			}
			var want []string
			for _, r := range m.Residuals() {
				want = append(want, r.ID)
			}
			assert.ElementsMatch(t, want, got)
			assert.Len(t, got, len(want))
		})
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	for _, m := range allFixtures() {
		t.Run(m.Name(), func(t *testing.T) {
			first, err := AnalyzeContext(context.Background(), m, Options{Parallelism: 1})
			require.NoError(t, err)
			a, err := first.Canonical()
			require.NoError(t, err)

			for range 5 {
				again, err := AnalyzeContext(context.Background(), m, Options{Parallelism: 4})
				require.NoError(t, err)
				b, err := again.Canonical()
				require.NoError(t, err)
				assert.Equal(t, string(a), string(b))
			}
		})
	}
}

// Declaring equations in block order and analyzing again reproduces the
// same block sequence.
func TestAnalyzeRoundTripIdempotent(t *testing.T) {
	for _, m := range []*dae.Model{
		testutil.FallingBody(),
		testutil.AlgebraicLoop(),
		testutil.LoopChain(),
		testutil.ReversedChain(),
		testutil.InitializedDecay(),
	} {
		t.Run(m.Name(), func(t *testing.T) {
			first, err := Analyze(m)
			require.NoError(t, err)

			byID := make(map[string]dae.Equation)
			for _, eq := range m.Equations() {
				byID[eq.ID] = eq
			}
			var sorted []dae.Equation
			for _, b := range first.Blocks {
				for _, id := range b.Equations {
					sorted = append(sorted, byID[id])
				}
			}
			reordered := dae.MustModel(m.Name(), m.Variables(), sorted)

			second, err := Analyze(reordered)
			require.NoError(t, err)
			assert.Equal(t, plan(first), plan(second))
		})
	}
}

// Random structurally regular models keep their plan when redeclared in
// block order.
func TestAnalyzeRoundTripRandomModels(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for i := range 500 {
		m := randomModel(rng, 2+rng.IntN(5))
		first, err := Analyze(m)
		require.NoError(t, err)
		require.True(t, first.IsWellPosed, "model %d", i)

		byID := make(map[string]dae.Equation)
		for _, eq := range m.Equations() {
			byID[eq.ID] = eq
		}
		var sorted []dae.Equation
		for _, b := range first.Blocks {
			for _, id := range b.Equations {
				sorted = append(sorted, byID[id])
			}
		}
		second, err := Analyze(dae.MustModel(m.Name(), m.Variables(), sorted))
		require.NoError(t, err)
		require.Equal(t, plan(first), plan(second), "model %d", i)
	}
}

// randomModel builds n algebraic equations over n unknowns. Equation e<k>
// always references v<perm[k]>, so a total matching exists, plus each other
// unknown with probability 0.35. Equations are declared in random order.
func randomModel(rng *rand.Rand, n int) *dae.Model {
	vars := make([]dae.Variable, n)
	for k := range vars {
		vars[k] = dae.Variable{Name: fmt.Sprintf("v%d", k), Category: dae.CategoryAlgebraic}
	}
	perm := rng.Perm(n)
	eqs := make([]dae.Equation, n)
	for k := range eqs {
		refs := []dae.Expr{dae.Ref(vars[perm[k]].Name)}
		for j := range vars {
			if j != perm[k] && rng.Float64() < 0.35 {
				refs = append(refs, dae.Ref(vars[j].Name))
			}
		}
		rhs := dae.Lit(float64(k))
		for _, r := range refs[1:] {
			rhs = dae.Add(rhs, r)
		}
		eqs[k] = dae.Simple(fmt.Sprintf("e%d", k), refs[0], rhs)
	}
	rng.Shuffle(n, func(a, b int) { eqs[a], eqs[b] = eqs[b], eqs[a] })
	return dae.MustModel("Random", vars, eqs)
}

func TestAnalyzeIfBranchesInAnyOrder(t *testing.T) {
	m := dae.MustModel("Swapped",
		[]dae.Variable{
			{Name: "c", Category: dae.CategoryParameter},
			{Name: "x", Category: dae.CategoryAlgebraic},
			{Name: "y", Category: dae.CategoryAlgebraic},
		},
		[]dae.Equation{{
			ID: "sw", Kind: dae.KindIf,
			Branches: []dae.Branch{{
				Cond: dae.Binary(dae.OpGt, dae.Ref("c"), dae.Lit(0)),
				Body: []dae.Equation{dae.Simple("", dae.Ref("x"), dae.Lit(1)), dae.Simple("", dae.Ref("y"), dae.Lit(2))},
			}},
			Else: []dae.Equation{dae.Simple("", dae.Ref("y"), dae.Lit(3)), dae.Simple("", dae.Ref("x"), dae.Lit(4))},
		}})

	res, err := Analyze(m)
	require.NoError(t, err)
	assert.True(t, res.IsWellPosed)
	assert.False(t, res.HasAlgebraicLoops)
	assert.Equal(t, []Block{
		{Kind: Scalar, Equations: []string{"sw.1"}, Variables: []string{"x"}},
		{Kind: Scalar, Equations: []string{"sw.2"}, Variables: []string{"y"}},
	}, plan(res))
}

// plan strips block internals that depend on declaration positions.
func plan(r *Result) []Block {
	out := make([]Block, len(r.Blocks))
	for i, b := range r.Blocks {
		out[i] = Block{Kind: b.Kind, Equations: b.Equations, Variables: b.Variables}
	}
	return out
}

func TestAnalyzeDoesNotModifyModel(t *testing.T) {
	m := testutil.LoopChain()
	before, err := m.Fingerprint()
	require.NoError(t, err)

	_, err = Analyze(m)
	require.NoError(t, err)

	after, err := m.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestResultJSON(t *testing.T) {
	res, err := Analyze(testutil.LoopChain())
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, true, decoded["has_algebraic_loops"])
	assert.Equal(t, true, decoded["is_well_posed"])
	assert.Len(t, decoded["blocks"], 3)
	assert.Equal(t, []any{}, decoded["unmatched_equations"])

	blocks := decoded["blocks"].([]any)
	assert.Equal(t, "algebraic_loop", blocks[1].(map[string]any)["kind"])
}

func TestResultLoops(t *testing.T) {
	res, err := Analyze(testutil.LoopChain())
	require.NoError(t, err)
	assert.Equal(t, []Block{
		{Kind: AlgebraicLoop, Equations: []string{"sum", "ratio"}, Variables: []string{"b", "c"}},
	}, res.Loops())

	res, err = Analyze(testutil.FallingBody())
	require.NoError(t, err)
	assert.Empty(t, res.Loops())
}

func TestResultFingerprint(t *testing.T) {
	a, err := Analyze(testutil.FallingBody())
	require.NoError(t, err)
	b, err := Analyze(testutil.FallingBody())
	require.NoError(t, err)
	c, err := Analyze(testutil.AlgebraicLoop())
	require.NoError(t, err)

	fa, err := a.Fingerprint()
	require.NoError(t, err)
	fb, err := b.Fingerprint()
	require.NoError(t, err)
	fc, err := c.Fingerprint()
	require.NoError(t, err)

	assert.Equal(t, fa, fb)
	assert.NotEqual(t, fa, fc)
}
