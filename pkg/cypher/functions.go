package cypher

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/kkollsga/kglite/pkg/kgerr"
	"github.com/kkollsga/kglite/pkg/store"
	"github.com/kkollsga/kglite/pkg/value"
)

// callFunction dispatches a FuncCall node to its scalar implementation
// (spec §4.8). Aggregate function names are handled entirely by
// aggregateOp before evaluation reaches a projection; a FuncCall with an
// aggregate name only reaches here when no aggregating stage consumed it.
func callFunction(n *FuncCall, b Binding, ctx *execContext) (value.Value, error) {
	name := strings.ToLower(n.Name)
	if aggregateFuncs[name] {
		return value.Nil, kgerr.New(kgerr.PlanError, "aggregate function %s() used outside of RETURN/WITH aggregation", n.Name)
	}

	args := make([]value.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := eval(a, b, ctx)
		if err != nil {
			return value.Nil, err
		}
		args[i] = v
	}

	switch name {
	case "keys":
		return fnKeys(args, ctx)
	case "log":
		return fnMathUnary(name, args, math.Log)
	case "log10":
		return fnMathUnary(name, args, math.Log10)
	case "exp":
		return fnMathUnary(name, args, math.Exp)
	case "sqrt":
		return fnMathUnary(name, args, math.Sqrt)
	case "ceil":
		return fnMathUnary(name, args, math.Ceil)
	case "floor":
		return fnMathUnary(name, args, math.Floor)
	case "round":
		return fnMathUnary(name, args, math.Round)
	case "abs":
		return fnAbs(args)
	case "sign":
		return fnSign(args)
	case "pow":
		return fnPow(args)
	case "pi":
		return fnPi(args)
	case "rand":
		return fnRand(args)
	case "substring":
		return fnSubstring(args)
	case "left":
		return fnLeft(args)
	case "right":
		return fnRight(args)
	case "reverse":
		return fnReverse(args)
	case "trim":
		return fnTrim(args)
	case "split":
		return fnSplit(args)
	case "replace":
		return fnReplace(args)
	case "date":
		return fnDate(args)
	case "datetime":
		return fnDatetime(args)
	case "tointeger":
		return fnToInteger(args)
	case "tofloat":
		return fnToFloat(args)
	case "tostring":
		return fnToString(args)
	case "toboolean":
		return fnToBoolean(args)
	default:
		return value.Nil, kgerr.New(kgerr.PlanError, "unknown function %s()", n.Name)
	}
}

func fnKeys(args []value.Value, ctx *execContext) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, kgerr.New(kgerr.PlanError, "keys() requires exactly one argument")
	}
	v := args[0]
	if v.IsNull() {
		return value.Nil, nil
	}
	switch v.Tag() {
	case value.NodeRef:
		n := ctx.store.Node(store.NodeID(v.RefID()))
		if n == nil {
			return value.Nil, nil
		}
		return value.NewList(n.Keys()), nil
	case value.EdgeRef:
		e := ctx.store.Edge(store.EdgeID(v.RefID()))
		if e == nil {
			return value.Nil, nil
		}
		return value.NewList(e.Keys()), nil
	default:
		return value.Nil, kgerr.New(kgerr.TypeError, "keys() requires a node or relationship, got %s", v.Tag())
	}
}

func fnMathUnary(name string, args []value.Value, f func(float64) float64) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, kgerr.New(kgerr.PlanError, "%s() requires exactly one numeric argument", name)
	}
	v := args[0]
	if v.IsNull() {
		return value.Nil, nil
	}
	if !v.IsNumeric() {
		return value.Nil, kgerr.New(kgerr.TypeError, "%s() requires a numeric argument, got %s", name, v.Tag())
	}
	x := v.AsFloat()
	// log/log10 are undefined at and below zero; sqrt is undefined below
	// zero. Domain errors yield Null rather than NaN/-Inf (spec §4.8).
	switch name {
	case "log", "log10":
		if x <= 0 {
			return value.Nil, nil
		}
	case "sqrt":
		if x < 0 {
			return value.Nil, nil
		}
	}
	return value.NewFloat(f(x)), nil
}

func fnAbs(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, kgerr.New(kgerr.PlanError, "abs() requires exactly one numeric argument")
	}
	v := args[0]
	if v.IsNull() {
		return value.Nil, nil
	}
	if v.Tag() == value.Int64 {
		n := v.Int()
		if n < 0 {
			n = -n
		}
		return value.NewInt(n), nil
	}
	if !v.IsNumeric() {
		return value.Nil, kgerr.New(kgerr.TypeError, "abs() requires a numeric argument, got %s", v.Tag())
	}
	return value.NewFloat(math.Abs(v.Float())), nil
}

func fnSign(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, kgerr.New(kgerr.PlanError, "sign() requires exactly one numeric argument")
	}
	v := args[0]
	if v.IsNull() {
		return value.Nil, nil
	}
	if !v.IsNumeric() {
		return value.Nil, kgerr.New(kgerr.TypeError, "sign() requires a numeric argument, got %s", v.Tag())
	}
	switch f := v.AsFloat(); {
	case f > 0:
		return value.NewInt(1), nil
	case f < 0:
		return value.NewInt(-1), nil
	default:
		return value.NewInt(0), nil
	}
}

func fnPow(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Nil, kgerr.New(kgerr.PlanError, "pow() requires exactly two numeric arguments")
	}
	if args[0].IsNull() || args[1].IsNull() {
		return value.Nil, nil
	}
	if !args[0].IsNumeric() || !args[1].IsNumeric() {
		return value.Nil, kgerr.New(kgerr.TypeError, "pow() requires numeric arguments")
	}
	return value.NewFloat(math.Pow(args[0].AsFloat(), args[1].AsFloat())), nil
}

func fnPi(args []value.Value) (value.Value, error) {
	if len(args) != 0 {
		return value.Nil, kgerr.New(kgerr.PlanError, "pi() takes no arguments")
	}
	return value.NewFloat(math.Pi), nil
}

func fnRand(args []value.Value) (value.Value, error) {
	if len(args) != 0 {
		return value.Nil, kgerr.New(kgerr.PlanError, "rand() takes no arguments")
	}
	return value.NewFloat(rand.Float64()), nil
}

// textArg coerces v to Text via the single centralized coercion point
// (spec §9), returning ok=false for Null so callers can propagate it.
func textArg(v value.Value) (string, bool) {
	if v.IsNull() {
		return "", false
	}
	return value.ToText(v).Text(), true
}

func fnSubstring(args []value.Value) (value.Value, error) {
	if len(args) < 2 || len(args) > 3 {
		return value.Nil, kgerr.New(kgerr.PlanError, "substring() requires 2 or 3 arguments")
	}
	s, ok := textArg(args[0])
	if !ok {
		return value.Nil, nil
	}
	runes := []rune(s)
	start := clampIndex(int(value.ToInteger(args[1]).Int()), len(runes))
	end := len(runes)
	if len(args) == 3 && !args[2].IsNull() {
		length := int(value.ToInteger(args[2]).Int())
		if length < 0 {
			length = 0
		}
		if start+length < end {
			end = start + length
		}
	}
	return value.NewText(string(runes[start:end])), nil
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

func fnLeft(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Nil, kgerr.New(kgerr.PlanError, "left() requires exactly two arguments")
	}
	s, ok := textArg(args[0])
	if !ok {
		return value.Nil, nil
	}
	runes := []rune(s)
	n := clampIndex(int(value.ToInteger(args[1]).Int()), len(runes))
	return value.NewText(string(runes[:n])), nil
}

func fnRight(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Nil, kgerr.New(kgerr.PlanError, "right() requires exactly two arguments")
	}
	s, ok := textArg(args[0])
	if !ok {
		return value.Nil, nil
	}
	runes := []rune(s)
	n := clampIndex(int(value.ToInteger(args[1]).Int()), len(runes))
	return value.NewText(string(runes[len(runes)-n:])), nil
}

func fnReverse(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, kgerr.New(kgerr.PlanError, "reverse() requires exactly one argument")
	}
	s, ok := textArg(args[0])
	if !ok {
		return value.Nil, nil
	}
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return value.NewText(string(runes)), nil
}

func fnTrim(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, kgerr.New(kgerr.PlanError, "trim() requires exactly one argument")
	}
	s, ok := textArg(args[0])
	if !ok {
		return value.Nil, nil
	}
	return value.NewText(strings.TrimSpace(s)), nil
}

func fnSplit(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Nil, kgerr.New(kgerr.PlanError, "split() requires exactly two arguments")
	}
	s, ok := textArg(args[0])
	if !ok {
		return value.Nil, nil
	}
	delim, ok := textArg(args[1])
	if !ok {
		return value.Nil, nil
	}
	parts := strings.Split(s, delim)
	out := make([]value.Value, len(parts))
	for i, p := range parts {
		out[i] = value.NewText(p)
	}
	return value.NewList(out), nil
}

func fnReplace(args []value.Value) (value.Value, error) {
	if len(args) != 3 {
		return value.Nil, kgerr.New(kgerr.PlanError, "replace() requires exactly three arguments")
	}
	s, ok := textArg(args[0])
	if !ok {
		return value.Nil, nil
	}
	search, ok := textArg(args[1])
	if !ok {
		return value.Nil, nil
	}
	repl, ok := textArg(args[2])
	if !ok {
		return value.Nil, nil
	}
	return value.NewText(strings.ReplaceAll(s, search, repl)), nil
}

// fnDate implements date(s), parsing an ISO-8601 calendar date (spec
// §4.8).
func fnDate(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, kgerr.New(kgerr.PlanError, "date() requires exactly one string argument")
	}
	s, ok := textArg(args[0])
	if !ok {
		return value.Nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return value.Nil, kgerr.New(kgerr.TypeError, "date(): invalid date string %q", s)
	}
	return value.NewDate(value.CivilDate{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}), nil
}

// fnDatetime implements datetime(s). KGLite has no separate
// date-with-time-of-day type (spec §4.1's Value union stops at Date), so a
// datetime string is accepted in any of several common layouts and
// truncated to its calendar date.
func fnDatetime(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, kgerr.New(kgerr.PlanError, "datetime() requires exactly one string argument")
	}
	s, ok := textArg(args[0])
	if !ok {
		return value.Nil, nil
	}
	layouts := []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return value.NewDate(value.CivilDate{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}), nil
		}
	}
	return value.Nil, kgerr.New(kgerr.TypeError, "datetime(): invalid date-time string %q", s)
}

func fnToInteger(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, kgerr.New(kgerr.PlanError, "toInteger() requires exactly one argument")
	}
	return value.ToInteger(args[0]), nil
}

func fnToFloat(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, kgerr.New(kgerr.PlanError, "toFloat() requires exactly one argument")
	}
	return value.ToFloat(args[0]), nil
}

func fnToString(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, kgerr.New(kgerr.PlanError, "toString() requires exactly one argument")
	}
	return value.ToText(args[0]), nil
}

func fnToBoolean(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, kgerr.New(kgerr.PlanError, "toBoolean() requires exactly one argument")
	}
	v := args[0]
	if v.IsNull() {
		return value.Nil, nil
	}
	switch v.Tag() {
	case value.Bool:
		return v, nil
	case value.Text:
		switch strings.ToLower(v.Text()) {
		case "true":
			return value.NewBool(true), nil
		case "false":
			return value.NewBool(false), nil
		default:
			return value.Nil, nil
		}
	default:
		return value.Nil, kgerr.New(kgerr.TypeError, "toBoolean() requires a boolean or string argument, got %s", v.Tag())
	}
}
