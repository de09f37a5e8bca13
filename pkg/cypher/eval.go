package cypher

import (
	"math"

	"github.com/kkollsga/kglite/pkg/kgerr"
	"github.com/kkollsga/kglite/pkg/store"
	"github.com/kkollsga/kglite/pkg/value"
)

// eval evaluates a scalar expression against one binding (spec §4.5). Null
// propagates through arithmetic, comparison, and property access; AND/OR
// use three-valued logic so that e.g. `false AND null` is false rather than
// null (spec §4.5's Null-propagation rules).
func eval(e Expr, b Binding, ctx *execContext) (value.Value, error) {
	switch n := e.(type) {
	case *LiteralNull:
		return value.Nil, nil
	case *LiteralBool:
		return value.NewBool(n.Value), nil
	case *LiteralInt:
		return value.NewInt(n.Value), nil
	case *LiteralFloat:
		return value.NewFloat(n.Value), nil
	case *LiteralString:
		return value.NewText(n.Value), nil
	case *ListExpr:
		items := make([]value.Value, len(n.Items))
		for i, it := range n.Items {
			v, err := eval(it, b, ctx)
			if err != nil {
				return value.Nil, err
			}
			items[i] = v
		}
		return value.NewList(items), nil
	case *Ident:
		v, ok := b[n.Name]
		if !ok {
			return value.Nil, kgerr.New(kgerr.ReferenceError, "unbound variable %q", n.Name)
		}
		return v, nil
	case *Parameter:
		v, ok := ctx.params[n.Name]
		if !ok {
			return value.Nil, kgerr.New(kgerr.ReferenceError, "unbound parameter $%s", n.Name)
		}
		return v, nil
	case *PropertyAccess:
		return evalPropertyAccess(n, b, ctx)
	case *FuncCall:
		return callFunction(n, b, ctx)
	case *UnaryExpr:
		return evalUnary(n, b, ctx)
	case *BinaryExpr:
		return evalBinary(n, b, ctx)
	case *IsNullExpr:
		v, err := eval(n.Operand, b, ctx)
		if err != nil {
			return value.Nil, err
		}
		if n.Negate {
			return value.NewBool(!v.IsNull()), nil
		}
		return value.NewBool(v.IsNull()), nil
	default:
		return value.Nil, kgerr.New(kgerr.InternalError, "unhandled expression node %T", e)
	}
}

func evalPropertyAccess(n *PropertyAccess, b Binding, ctx *execContext) (value.Value, error) {
	target, err := eval(n.Target, b, ctx)
	if err != nil {
		return value.Nil, err
	}
	if target.IsNull() {
		return value.Nil, nil
	}
	switch target.Tag() {
	case value.NodeRef:
		node := ctx.store.Node(store.NodeID(target.RefID()))
		if node == nil {
			return value.Nil, nil
		}
		return node.Property(n.Property), nil
	case value.EdgeRef:
		edge := ctx.store.Edge(store.EdgeID(target.RefID()))
		if edge == nil {
			return value.Nil, nil
		}
		return edge.Property(n.Property), nil
	case value.Date:
		d := target.Date()
		switch n.Property {
		case "year":
			return value.NewInt(int64(d.Year)), nil
		case "month":
			return value.NewInt(int64(d.Month)), nil
		case "day":
			return value.NewInt(int64(d.Day)), nil
		default:
			return value.Nil, kgerr.New(kgerr.TypeError, "date values have no property %q", n.Property)
		}
	default:
		return value.Nil, kgerr.New(kgerr.TypeError, "cannot access property %q on a %s", n.Property, target.Tag())
	}
}

func evalUnary(n *UnaryExpr, b Binding, ctx *execContext) (value.Value, error) {
	v, err := eval(n.Operand, b, ctx)
	if err != nil {
		return value.Nil, err
	}
	switch n.Op {
	case "NOT":
		if v.IsNull() {
			return value.Nil, nil
		}
		if v.Tag() != value.Bool {
			return value.Nil, kgerr.New(kgerr.TypeError, "NOT requires a boolean operand, got %s", v.Tag())
		}
		return value.NewBool(!v.Bool()), nil
	case "-":
		if v.IsNull() {
			return value.Nil, nil
		}
		switch v.Tag() {
		case value.Int64:
			return value.NewInt(-v.Int()), nil
		case value.Float64:
			return value.NewFloat(-v.Float()), nil
		default:
			return value.Nil, kgerr.New(kgerr.TypeError, "unary - requires a numeric operand, got %s", v.Tag())
		}
	default:
		return value.Nil, kgerr.New(kgerr.InternalError, "unknown unary operator %q", n.Op)
	}
}

func evalBinary(n *BinaryExpr, b Binding, ctx *execContext) (value.Value, error) {
	switch n.Op {
	case "AND":
		return evalAnd(n, b, ctx)
	case "OR":
		return evalOr(n, b, ctx)
	case "XOR":
		return evalXor(n, b, ctx)
	case "IN":
		return evalIn(n, b, ctx)
	case "=", "<>", "!=", "<", "<=", ">", ">=":
		return evalComparison(n, b, ctx)
	case "+", "-", "*", "/", "%":
		return evalArithmetic(n, b, ctx)
	default:
		return value.Nil, kgerr.New(kgerr.InternalError, "unknown binary operator %q", n.Op)
	}
}

func evalAnd(n *BinaryExpr, b Binding, ctx *execContext) (value.Value, error) {
	l, err := eval(n.Left, b, ctx)
	if err != nil {
		return value.Nil, err
	}
	if l.Tag() == value.Bool && !l.Bool() {
		return value.NewBool(false), nil
	}
	r, err := eval(n.Right, b, ctx)
	if err != nil {
		return value.Nil, err
	}
	if r.Tag() == value.Bool && !r.Bool() {
		return value.NewBool(false), nil
	}
	if l.IsNull() || r.IsNull() {
		return value.Nil, nil
	}
	return value.NewBool(l.Bool() && r.Bool()), nil
}

func evalOr(n *BinaryExpr, b Binding, ctx *execContext) (value.Value, error) {
	l, err := eval(n.Left, b, ctx)
	if err != nil {
		return value.Nil, err
	}
	if l.Tag() == value.Bool && l.Bool() {
		return value.NewBool(true), nil
	}
	r, err := eval(n.Right, b, ctx)
	if err != nil {
		return value.Nil, err
	}
	if r.Tag() == value.Bool && r.Bool() {
		return value.NewBool(true), nil
	}
	if l.IsNull() || r.IsNull() {
		return value.Nil, nil
	}
	return value.NewBool(l.Bool() || r.Bool()), nil
}

func evalXor(n *BinaryExpr, b Binding, ctx *execContext) (value.Value, error) {
	l, err := eval(n.Left, b, ctx)
	if err != nil {
		return value.Nil, err
	}
	r, err := eval(n.Right, b, ctx)
	if err != nil {
		return value.Nil, err
	}
	if l.IsNull() || r.IsNull() {
		return value.Nil, nil
	}
	return value.NewBool(l.Bool() != r.Bool()), nil
}

// evalIn implements `expr IN list` (spec §4.5): Null on the left yields
// Null; an unmatched element with a Null present in the list yields Null
// rather than false, since "not equal to any known element" does not rule
// out equality with the unknown one.
func evalIn(n *BinaryExpr, b Binding, ctx *execContext) (value.Value, error) {
	l, err := eval(n.Left, b, ctx)
	if err != nil {
		return value.Nil, err
	}
	r, err := eval(n.Right, b, ctx)
	if err != nil {
		return value.Nil, err
	}
	if l.IsNull() {
		return value.Nil, nil
	}
	if r.IsNull() {
		return value.Nil, nil
	}
	if r.Tag() != value.List {
		return value.Nil, kgerr.New(kgerr.TypeError, "IN requires a list on the right-hand side, got %s", r.Tag())
	}
	sawNull := false
	for _, item := range r.List() {
		if item.IsNull() {
			sawNull = true
			continue
		}
		if value.Equal(l, item) {
			return value.NewBool(true), nil
		}
	}
	if sawNull {
		return value.Nil, nil
	}
	return value.NewBool(false), nil
}

func evalComparison(n *BinaryExpr, b Binding, ctx *execContext) (value.Value, error) {
	l, err := eval(n.Left, b, ctx)
	if err != nil {
		return value.Nil, err
	}
	r, err := eval(n.Right, b, ctx)
	if err != nil {
		return value.Nil, err
	}
	if l.IsNull() || r.IsNull() {
		return value.Nil, nil
	}
	switch n.Op {
	case "=":
		return value.NewBool(value.Equal(l, r)), nil
	case "<>", "!=":
		return value.NewBool(!value.Equal(l, r)), nil
	}
	if !orderComparable(l, r) {
		return value.Nil, nil
	}
	cmp := value.Compare(l, r)
	switch n.Op {
	case "<":
		return value.NewBool(cmp < 0), nil
	case "<=":
		return value.NewBool(cmp <= 0), nil
	case ">":
		return value.NewBool(cmp > 0), nil
	case ">=":
		return value.NewBool(cmp >= 0), nil
	default:
		return value.Nil, kgerr.New(kgerr.InternalError, "unknown comparison operator %q", n.Op)
	}
}

func orderComparable(a, b value.Value) bool {
	if a.IsNumeric() && b.IsNumeric() {
		return true
	}
	return a.Tag() == b.Tag() && (a.Tag() == value.Text || a.Tag() == value.Date)
}

func isIntLiteral(e Expr) bool {
	_, ok := e.(*LiteralInt)
	return ok
}

func evalArithmetic(n *BinaryExpr, b Binding, ctx *execContext) (value.Value, error) {
	l, err := eval(n.Left, b, ctx)
	if err != nil {
		return value.Nil, err
	}
	r, err := eval(n.Right, b, ctx)
	if err != nil {
		return value.Nil, err
	}

	// `+` doubles as string concatenation when either operand is Text
	// (spec §4.5).
	if n.Op == "+" && (l.Tag() == value.Text || r.Tag() == value.Text) {
		if l.IsNull() || r.IsNull() {
			return value.Nil, nil
		}
		return value.NewText(value.ToText(l).Text() + value.ToText(r).Text()), nil
	}

	if l.IsNull() || r.IsNull() {
		return value.Nil, nil
	}
	if !l.IsNumeric() || !r.IsNumeric() {
		return value.Nil, kgerr.New(kgerr.TypeError, "arithmetic operator %q requires numeric operands, got %s and %s", n.Op, l.Tag(), r.Tag())
	}

	bothInt := l.Tag() == value.Int64 && r.Tag() == value.Int64
	switch n.Op {
	case "+":
		if bothInt {
			return value.NewInt(l.Int() + r.Int()), nil
		}
		return value.NewFloat(l.AsFloat() + r.AsFloat()), nil
	case "-":
		if bothInt {
			return value.NewInt(l.Int() - r.Int()), nil
		}
		return value.NewFloat(l.AsFloat() - r.AsFloat()), nil
	case "*":
		if bothInt {
			return value.NewInt(l.Int() * r.Int()), nil
		}
		return value.NewFloat(l.AsFloat() * r.AsFloat()), nil
	case "/":
		// Truncating integer division applies only when both operands are
		// integer literals in the query text, not merely integer-tagged
		// values at runtime (spec §4.5). A property or parameter that
		// happens to hold an Int64 still divides as a float.
		if isIntLiteral(n.Left) && isIntLiteral(n.Right) {
			if r.Int() == 0 {
				return value.Nil, kgerr.New(kgerr.TypeError, "division by zero")
			}
			return value.NewInt(l.Int() / r.Int()), nil
		}
		return value.NewFloat(l.AsFloat() / r.AsFloat()), nil
	case "%":
		if bothInt {
			if r.Int() == 0 {
				return value.Nil, kgerr.New(kgerr.TypeError, "modulo by zero")
			}
			return value.NewInt(l.Int() % r.Int()), nil
		}
		return value.NewFloat(math.Mod(l.AsFloat(), r.AsFloat())), nil
	default:
		return value.Nil, kgerr.New(kgerr.InternalError, "unknown arithmetic operator %q", n.Op)
	}
}
