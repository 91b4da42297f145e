// Package testutil provides fixture models and deterministic helpers shared
// by tests across packages.
package testutil

import (
	"fmt"

	"github.com/CogniPilot/modelica-ir/internal/dae"
)

func state(name string, idx int) dae.Variable {
	return dae.Variable{Name: name, Category: dae.CategoryState, StateIndex: &idx}
}

func algebraic(name string) dae.Variable {
	return dae.Variable{Name: name, Category: dae.CategoryAlgebraic}
}

func parameter(name string, value float64) dae.Variable {
	return dae.Variable{Name: name, Category: dae.CategoryParameter, Start: &value}
}

// FallingBody is der(h) = v; der(v) = -g.
func FallingBody() *dae.Model {
	return dae.MustModel("FallingBody",
		[]dae.Variable{state("h", 0), state("v", 1), parameter("g", 9.81)},
		[]dae.Equation{
			dae.Simple("", dae.Der("h"), dae.Ref("v")),
			dae.Simple("", dae.Der("v"), dae.Neg(dae.Ref("g"))),
		})
}

// AlgebraicLoop is y = x + 1; x = y - 1.
func AlgebraicLoop() *dae.Model {
	return dae.MustModel("AlgebraicLoop",
		[]dae.Variable{algebraic("x"), algebraic("y")},
		[]dae.Equation{
			dae.Simple("", dae.Ref("y"), dae.Add(dae.Ref("x"), dae.Lit(1))),
			dae.Simple("", dae.Ref("x"), dae.Sub(dae.Ref("y"), dae.Lit(1))),
		})
}

// SelfLoop is x = x + 1.
func SelfLoop() *dae.Model {
	return dae.MustModel("SelfLoop",
		[]dae.Variable{algebraic("x")},
		[]dae.Equation{
			dae.Simple("", dae.Ref("x"), dae.Add(dae.Ref("x"), dae.Lit(1))),
		})
}

// OverDetermined is y = 1; y = 2. The second equation is the surplus one.
func OverDetermined() *dae.Model {
	return dae.MustModel("OverDetermined",
		[]dae.Variable{algebraic("y")},
		[]dae.Equation{
			dae.Simple("", dae.Ref("y"), dae.Lit(1)),
			dae.Simple("", dae.Ref("y"), dae.Lit(2)),
		})
}

// UnderDetermined is x = 1 with y left undetermined.
func UnderDetermined() *dae.Model {
	return dae.MustModel("UnderDetermined",
		[]dae.Variable{algebraic("x"), algebraic("y")},
		[]dae.Equation{
			dae.Simple("", dae.Ref("x"), dae.Lit(1)),
		})
}

// LoopChain has a scalar head, a two-equation loop and a scalar tail:
//
//	a = 1; b + c = a; c = 2 * b; d = c
func LoopChain() *dae.Model {
	return dae.MustModel("LoopChain",
		[]dae.Variable{algebraic("a"), algebraic("b"), algebraic("c"), algebraic("d")},
		[]dae.Equation{
			dae.Simple("head", dae.Ref("a"), dae.Lit(1)),
			dae.Simple("sum", dae.Add(dae.Ref("b"), dae.Ref("c")), dae.Ref("a")),
			dae.Simple("ratio", dae.Ref("c"), dae.Mul(dae.Lit(2), dae.Ref("b"))),
			dae.Simple("tail", dae.Ref("d"), dae.Ref("c")),
		})
}

// ReversedChain declares its equations against the dependency order:
//
//	z = y; y = x; x = 1
func ReversedChain() *dae.Model {
	return dae.MustModel("ReversedChain",
		[]dae.Variable{algebraic("x"), algebraic("y"), algebraic("z")},
		[]dae.Equation{
			dae.Simple("z_eq", dae.Ref("z"), dae.Ref("y")),
			dae.Simple("y_eq", dae.Ref("y"), dae.Ref("x")),
			dae.Simple("x_eq", dae.Ref("x"), dae.Lit(1)),
		})
}

// InitializedDecay is der(x) = -k * x with the initial equation x = x0.
// The initial equation makes the value of x an unknown.
func InitializedDecay() *dae.Model {
	return dae.MustModel("InitializedDecay",
		[]dae.Variable{state("x", 0), parameter("k", 0.5), parameter("x0", 1)},
		[]dae.Equation{
			dae.Simple("", dae.Der("x"), dae.Neg(dae.Mul(dae.Ref("k"), dae.Ref("x")))),
			dae.Simple("", dae.Ref("x"), dae.Ref("x0")).InSection(dae.SectionInitial),
		})
}

// BouncingCounter counts zero crossings of a falling body with a
// when-equation: when h < 0 then n = pre(n) + 1.
func BouncingCounter() *dae.Model {
	return dae.MustModel("BouncingCounter",
		[]dae.Variable{
			state("h", 0), state("v", 1), parameter("g", 9.81),
			{Name: "n", Category: dae.CategoryDiscreteValued},
		},
		[]dae.Equation{
			dae.Simple("", dae.Der("h"), dae.Ref("v")),
			dae.Simple("", dae.Der("v"), dae.Neg(dae.Ref("g"))),
			{
				ID: "count", Section: dae.SectionEvent, Kind: dae.KindWhen,
				Branches: []dae.Branch{{
					Cond: dae.Binary(dae.OpLt, dae.Ref("h"), dae.Lit(0)),
					Body: []dae.Equation{dae.Simple("", dae.Ref("n"), dae.Add(dae.Call("pre", dae.Ref("n")), dae.Lit(1)))},
				}},
			},
		})
}

// Ladder is x[1] = u; x[i] = x[i-1] + u for i in 2..n, built with a
// for-equation. u is an input.
func Ladder(n int) *dae.Model {
	vars := []dae.Variable{{Name: "u", Category: dae.CategoryInput}}
	for i := 1; i <= n; i++ {
		vars = append(vars, algebraic(fmt.Sprintf("x[%d]", i)))
	}
	return dae.MustModel("Ladder", vars, []dae.Equation{
		dae.Simple("base", dae.Index(dae.Ref("x"), dae.Lit(1)), dae.Ref("u")),
		{
			ID: "rung", Kind: dae.KindFor, Index: "i", From: 2, To: n,
			Body: []dae.Equation{dae.Simple("",
				dae.Index(dae.Ref("x"), dae.Ref("i")),
				dae.Add(dae.Index(dae.Ref("x"), dae.Sub(dae.Ref("i"), dae.Lit(1))), dae.Ref("u")))},
		},
	})
}

// DisjointLoops returns n independent two-equation loops, one per pair
// (p<k>, q<k>): p<k> = q<k> + k; q<k> = p<k> - k.
func DisjointLoops(n int) *dae.Model {
	var vars []dae.Variable
	var eqs []dae.Equation
	for k := 1; k <= n; k++ {
		p, q := fmt.Sprintf("p%d", k), fmt.Sprintf("q%d", k)
		vars = append(vars, algebraic(p), algebraic(q))
		eqs = append(eqs,
			dae.Simple(fmt.Sprintf("loop%d.a", k), dae.Ref(p), dae.Add(dae.Ref(q), dae.Lit(float64(k)))),
			dae.Simple(fmt.Sprintf("loop%d.b", k), dae.Ref(q), dae.Sub(dae.Ref(p), dae.Lit(float64(k)))),
		)
	}
	return dae.MustModel("DisjointLoops", vars, eqs)
}
