// Package exprparse turns textual equation expressions into dae expression
// trees.
//
// The accepted syntax is the CEL expression grammar: arithmetic with
// + - * / and unary minus, comparisons, && || !, the ternary c ? a : b,
// subscripts a[i], dotted names, and function calls. pow(a, b) denotes
// exponentiation and der(x) the time derivative of x. Strings, lists, maps
// and member calls are rejected.
package exprparse

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	celast "github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/operators"

	"github.com/CogniPilot/modelica-ir/internal/dae"
)

// SyntaxError reports an expression that could not be parsed or has no
// counterpart in the model's operator set.
type SyntaxError struct {
	Source  string
	Message string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("expression %q: %s", e.Source, e.Message)
}

var env = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(cel.ClearMacros())
})

var binaryOps = map[string]dae.Op{
	operators.Add:           dae.OpAdd,
	operators.Subtract:      dae.OpSub,
	operators.Multiply:      dae.OpMul,
	operators.Divide:        dae.OpDiv,
	operators.Less:          dae.OpLt,
	operators.LessEquals:    dae.OpLe,
	operators.Greater:       dae.OpGt,
	operators.GreaterEquals: dae.OpGe,
	operators.Equals:        dae.OpEq,
	operators.NotEquals:     dae.OpNe,
	operators.LogicalAnd:    dae.OpAnd,
	operators.LogicalOr:     dae.OpOr,
}

// Parse converts src into an expression tree.
func Parse(src string) (dae.Expr, error) {
	e, err := env()
	if err != nil {
		return dae.Expr{}, fmt.Errorf("expression environment: %w", err)
	}
	ast, iss := e.Parse(src)
	if iss != nil && iss.Err() != nil {
		return dae.Expr{}, &SyntaxError{Source: src, Message: strings.TrimSpace(iss.Err().Error())}
	}
	c := converter{src: src}
	return c.convert(ast.NativeRep().Expr())
}

// MustParse is like Parse but panics on error. Intended for tests and
// fixtures.
func MustParse(src string) dae.Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

type converter struct {
	src string
}

func (c converter) errorf(format string, args ...any) error {
	return &SyntaxError{Source: c.src, Message: fmt.Sprintf(format, args...)}
}

func (c converter) convert(e celast.Expr) (dae.Expr, error) {
	switch e.Kind() {
	case celast.LiteralKind:
		return c.literal(e)
	case celast.IdentKind, celast.SelectKind:
		name, err := c.path(e)
		if err != nil {
			return dae.Expr{}, err
		}
		return dae.Ref(name), nil
	case celast.CallKind:
		return c.call(e.AsCall())
	}
	return dae.Expr{}, c.errorf("unsupported construct")
}

func (c converter) literal(e celast.Expr) (dae.Expr, error) {
	switch v := e.AsLiteral().Value().(type) {
	case int64:
		return dae.Lit(float64(v)), nil
	case uint64:
		return dae.Lit(float64(v)), nil
	case float64:
		return dae.Lit(v), nil
	case bool:
		if v {
			return dae.Lit(1), nil
		}
		return dae.Lit(0), nil
	default:
		return dae.Expr{}, c.errorf("unsupported literal of type %T", v)
	}
}

// path flattens identifiers, field selections and constant subscripts into
// a dotted variable name such as "body.pos[2].x".
func (c converter) path(e celast.Expr) (string, error) {
	switch e.Kind() {
	case celast.IdentKind:
		return e.AsIdent(), nil
	case celast.SelectKind:
		sel := e.AsSelect()
		if sel.IsTestOnly() {
			return "", c.errorf("presence tests are not supported")
		}
		base, err := c.path(sel.Operand())
		if err != nil {
			return "", err
		}
		return base + "." + sel.FieldName(), nil
	case celast.CallKind:
		call := e.AsCall()
		if call.FunctionName() == operators.Index && len(call.Args()) == 2 {
			idx := call.Args()[1]
			if idx.Kind() == celast.LiteralKind {
				if n, ok := idx.AsLiteral().Value().(int64); ok {
					base, err := c.path(call.Args()[0])
					if err != nil {
						return "", err
					}
					return fmt.Sprintf("%s[%d]", base, n), nil
				}
			}
		}
	}
	return "", c.errorf("expected a variable name")
}

func (c converter) args(call celast.CallExpr) ([]dae.Expr, error) {
	out := make([]dae.Expr, len(call.Args()))
	for i, a := range call.Args() {
		conv, err := c.convert(a)
		if err != nil {
			return nil, err
		}
		out[i] = conv
	}
	return out, nil
}

func (c converter) call(call celast.CallExpr) (dae.Expr, error) {
	if call.IsMemberFunction() {
		return dae.Expr{}, c.errorf("member call %s is not supported", call.FunctionName())
	}
	name := call.FunctionName()
	args, err := c.args(call)
	if err != nil {
		return dae.Expr{}, err
	}

	if op, ok := binaryOps[name]; ok {
		return dae.Binary(op, args[0], args[1]), nil
	}
	switch name {
	case operators.Negate:
		if args[0].Op == dae.OpLiteral {
			return dae.Lit(-args[0].Value), nil
		}
		return dae.Neg(args[0]), nil
	case operators.LogicalNot:
		return dae.Not(args[0]), nil
	case operators.Conditional:
		return dae.Cond(args[0], args[1], args[2]), nil
	case operators.Index:
		if args[0].Op != dae.OpVar {
			return dae.Expr{}, c.errorf("subscript base must be a variable name")
		}
		return dae.Index(args[0], args[1]), nil
	case "der":
		if len(args) != 1 || (args[0].Op != dae.OpVar && args[0].Op != dae.OpIndex) {
			return dae.Expr{}, c.errorf("der takes exactly one variable name")
		}
		return dae.Expr{Op: dae.OpDer, Args: args}, nil
	case "pow":
		if len(args) != 2 {
			return dae.Expr{}, c.errorf("pow takes two arguments")
		}
		return dae.Binary(dae.OpPow, args[0], args[1]), nil
	}
	if strings.HasPrefix(name, "_") || strings.HasPrefix(name, "@") || strings.HasPrefix(name, "!") || strings.HasPrefix(name, "-") {
		return dae.Expr{}, c.errorf("operator %s is not supported", name)
	}
	return dae.Call(name, args...), nil
}
