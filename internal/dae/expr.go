package dae

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Op is the operator tag of an expression node.
type Op int

const (
	OpLiteral Op = iota // numeric constant in Value
	OpVar               // reference to the variable named Name
	OpIndex             // Args[0] subscripted by Args[1]; folded away during construction
	OpNeg
	OpNot
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpPow
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
	OpAnd
	OpOr
	OpCond // if Args[0] then Args[1] else Args[2]
	OpCall // function Name applied to Args
	OpDer  // time derivative of the state referenced by Args[0]
)

var opNames = [...]string{
	OpLiteral: "literal",
	OpVar:     "var",
	OpIndex:   "index",
	OpNeg:     "neg",
	OpNot:     "not",
	OpAdd:     "+",
	OpSub:     "-",
	OpMul:     "*",
	OpDiv:     "/",
	OpPow:     "^",
	OpLt:      "<",
	OpLe:      "<=",
	OpGt:      ">",
	OpGe:      ">=",
	OpEq:      "==",
	OpNe:      "!=",
	OpAnd:     "and",
	OpOr:      "or",
	OpCond:    "if",
	OpCall:    "call",
	OpDer:     "der",
}

func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return fmt.Sprintf("op(%d)", int(o))
	}
	return opNames[o]
}

// ParseOp converts an operator name to an Op.
func ParseOp(s string) (Op, error) {
	for i, name := range opNames {
		if name == s {
			return Op(i), nil
		}
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}

// MarshalJSON writes the operator name.
func (o Op) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// UnmarshalJSON reads an operator name.
func (o *Op) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseOp(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// arity returns the required argument count, or -1 for variadic calls.
func (o Op) arity() int {
	switch o {
	case OpLiteral, OpVar:
		return 0
	case OpNeg, OpNot, OpDer:
		return 1
	case OpIndex, OpAdd, OpSub, OpMul, OpDiv, OpPow,
		OpLt, OpLe, OpGt, OpGe, OpEq, OpNe, OpAnd, OpOr:
		return 2
	case OpCond:
		return 3
	case OpCall:
		return -1
	}
	return -1
}

// Expr is a node of an expression tree. Trees are owned values: no node is
// shared between two parents.
type Expr struct {
	Op    Op      `json:"op"`
	Value float64 `json:"value,omitempty"`
	Name  string  `json:"name,omitempty"`
	Args  []Expr  `json:"args,omitempty"`
}

// Lit returns a literal node.
func Lit(v float64) Expr { return Expr{Op: OpLiteral, Value: v} }

// Ref returns a variable reference node.
func Ref(name string) Expr { return Expr{Op: OpVar, Name: name} }

// Der returns der(name).
func Der(name string) Expr { return Expr{Op: OpDer, Args: []Expr{Ref(name)}} }

// Neg returns -e.
func Neg(e Expr) Expr { return Expr{Op: OpNeg, Args: []Expr{e}} }

// Not returns not e.
func Not(e Expr) Expr { return Expr{Op: OpNot, Args: []Expr{e}} }

// Binary returns the binary node op(a, b).
func Binary(op Op, a, b Expr) Expr { return Expr{Op: op, Args: []Expr{a, b}} }

// Add returns a + b.
func Add(a, b Expr) Expr { return Binary(OpAdd, a, b) }

// Sub returns a - b.
func Sub(a, b Expr) Expr { return Binary(OpSub, a, b) }

// Mul returns a * b.
func Mul(a, b Expr) Expr { return Binary(OpMul, a, b) }

// Div returns a / b.
func Div(a, b Expr) Expr { return Binary(OpDiv, a, b) }

// Index returns base[idx].
func Index(base, idx Expr) Expr { return Binary(OpIndex, base, idx) }

// Cond returns the conditional expression if c then t else e.
func Cond(c, t, e Expr) Expr { return Expr{Op: OpCond, Args: []Expr{c, t, e}} }

// Call returns name(args...).
func Call(name string, args ...Expr) Expr { return Expr{Op: OpCall, Name: name, Args: args} }

// Walk visits e and its descendants depth-first, parents before children.
// Children of a node are skipped when fn returns false.
func (e Expr) Walk(fn func(Expr) bool) {
	if !fn(e) {
		return
	}
	for _, arg := range e.Args {
		arg.Walk(fn)
	}
}

// DerivativeOf returns the state name of a der node whose argument is a
// plain reference.
func (e Expr) DerivativeOf() (string, bool) {
	if e.Op != OpDer || len(e.Args) != 1 || e.Args[0].Op != OpVar {
		return "", false
	}
	return e.Args[0].Name, true
}

// Defines returns the variable an equation side defines when it is a plain
// reference or a derivative; used for branch balance checks.
func (e Expr) Defines() (string, bool) {
	switch e.Op {
	case OpVar:
		return e.Name, true
	case OpDer:
		if name, ok := e.DerivativeOf(); ok {
			return "der(" + name + ")", true
		}
	}
	return "", false
}

var binaryPrec = map[Op]int{
	OpOr: 1, OpAnd: 2,
	OpLt: 3, OpLe: 3, OpGt: 3, OpGe: 3, OpEq: 3, OpNe: 3,
	OpAdd: 4, OpSub: 4,
	OpMul: 5, OpDiv: 5,
	OpPow: 6,
}

// String renders e in infix notation.
func (e Expr) String() string {
	var b strings.Builder
	e.write(&b, 0)
	return b.String()
}

func (e Expr) write(b *strings.Builder, parent int) {
	if n := e.Op.arity(); n >= 0 && len(e.Args) != n {
		fmt.Fprintf(b, "<malformed %s>", e.Op)
		return
	}
	switch e.Op {
	case OpLiteral:
		b.WriteString(strconv.FormatFloat(e.Value, 'g', -1, 64))
	case OpVar:
		b.WriteString(e.Name)
	case OpIndex:
		e.Args[0].write(b, 7)
		b.WriteByte('[')
		e.Args[1].write(b, 0)
		b.WriteByte(']')
	case OpNeg:
		b.WriteByte('-')
		e.Args[0].write(b, 7)
	case OpNot:
		b.WriteString("not ")
		e.Args[0].write(b, 7)
	case OpCond:
		if parent > 0 {
			b.WriteByte('(')
		}
		b.WriteString("if ")
		e.Args[0].write(b, 0)
		b.WriteString(" then ")
		e.Args[1].write(b, 0)
		b.WriteString(" else ")
		e.Args[2].write(b, 0)
		if parent > 0 {
			b.WriteByte(')')
		}
	case OpCall, OpDer:
		name := e.Name
		if e.Op == OpDer {
			name = "der"
		}
		b.WriteString(name)
		b.WriteByte('(')
		for i, arg := range e.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			arg.write(b, 0)
		}
		b.WriteByte(')')
	default:
		prec, ok := binaryPrec[e.Op]
		if !ok || len(e.Args) != 2 {
			fmt.Fprintf(b, "<%s>", e.Op)
			return
		}
		if prec < parent {
			b.WriteByte('(')
		}
		e.Args[0].write(b, prec)
		b.WriteByte(' ')
		b.WriteString(e.Op.String())
		b.WriteByte(' ')
		// right operand binds tighter for left-associative operators
		e.Args[1].write(b, prec+1)
		if prec < parent {
			b.WriteByte(')')
		}
	}
}

func (e Expr) canonicalValue() map[string]any {
	obj := map[string]any{"op": e.Op.String()}
	switch e.Op {
	case OpLiteral:
		obj["value"] = e.Value
	case OpVar, OpCall:
		obj["name"] = e.Name
	}
	if len(e.Args) > 0 {
		args := make([]any, len(e.Args))
		for i, arg := range e.Args {
			args[i] = arg.canonicalValue()
		}
		obj["args"] = args
	}
	return obj
}

// substitute replaces references to for-loop indices by literals and folds
// constant subscripts into variable references named "base[n]".
func (e Expr) substitute(env map[string]int) (Expr, error) {
	switch e.Op {
	case OpLiteral:
		return e, nil
	case OpVar:
		if v, ok := env[e.Name]; ok {
			return Lit(float64(v)), nil
		}
		return e, nil
	case OpIndex:
		if len(e.Args) != 2 || e.Args[0].Op != OpVar {
			return e, fmt.Errorf("subscript base must be a variable reference")
		}
		idx, err := e.Args[1].substitute(env)
		if err != nil {
			return e, err
		}
		n, ok := idx.foldInt()
		if !ok {
			return e, fmt.Errorf("subscript %s of %s is not a constant integer", e.Args[1], e.Args[0].Name)
		}
		return Ref(fmt.Sprintf("%s[%d]", e.Args[0].Name, n)), nil
	}
	out := Expr{Op: e.Op, Value: e.Value, Name: e.Name}
	if len(e.Args) > 0 {
		out.Args = make([]Expr, len(e.Args))
		for i, arg := range e.Args {
			sub, err := arg.substitute(env)
			if err != nil {
				return e, err
			}
			out.Args[i] = sub
		}
	}
	return out, nil
}

// foldInt evaluates integer arithmetic over literals.
func (e Expr) foldInt() (int, bool) {
	v, ok := e.foldFloat()
	if !ok || v != math.Trunc(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return int(v), true
}

func (e Expr) foldFloat() (float64, bool) {
	switch e.Op {
	case OpLiteral:
		return e.Value, true
	case OpNeg:
		v, ok := e.Args[0].foldFloat()
		return -v, ok
	case OpAdd, OpSub, OpMul, OpDiv:
		a, okA := e.Args[0].foldFloat()
		b, okB := e.Args[1].foldFloat()
		if !okA || !okB {
			return 0, false
		}
		switch e.Op {
		case OpAdd:
			return a + b, true
		case OpSub:
			return a - b, true
		case OpMul:
			return a * b, true
		case OpDiv:
			if b == 0 {
				return 0, false
			}
			return a / b, true
		}
	}
	return 0, false
}
