package formula

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// evaluation carries the state of evaluating one formula.
type evaluation struct {
	ctx      context.Context
	sheet    Sheet
	registry *Registry
	async    bool // async functions may be called
	volatile bool // an async function was called; result must not be cached
}

func (n *LiteralNode) Eval(ev *evaluation) (Value, error) {
	return n.Value, nil
}

// Eval reads the stored value. Absent cells read as Empty.
func (n *CellRefNode) Eval(ev *evaluation) (Value, error) {
	return valueAt(ev.sheet, n.Address), nil
}

func (n *RangeNode) Eval(ev *evaluation) (Value, error) {
	return n.Range.Values(ev.sheet), nil
}

func (n *UnaryOpNode) Eval(ev *evaluation) (Value, error) {
	operand, err := n.Operand.Eval(ev)
	if err != nil {
		return nil, err
	}
	if err := checkOperand(operand, n.Op.String()); err != nil {
		return nil, err
	}
	if e, ok := operand.(ErrorValue); ok {
		return e, nil
	}

	num, err := ToNumber(operand)
	if err != nil {
		return nil, err
	}
	if n.Op == UnaryOpMinus {
		return Number(-num), nil
	}
	return Number(num), nil
}

// Eval evaluates the left operand then the right, propagating an error value
// found in either.
func (n *BinaryOpNode) Eval(ev *evaluation) (Value, error) {
	left, err := n.Left.Eval(ev)
	if err != nil {
		return nil, err
	}
	right, err := n.Right.Eval(ev)
	if err != nil {
		return nil, err
	}

	for _, operand := range []Value{left, right} {
		if err := checkOperand(operand, n.Op.String()); err != nil {
			return nil, err
		}
	}
	if e, ok := left.(ErrorValue); ok {
		return e, nil
	}
	if e, ok := right.(ErrorValue); ok {
		return e, nil
	}

	switch n.Op {
	case BinOpEqual, BinOpNotEqual, BinOpLess, BinOpLessEqual, BinOpGreater, BinOpGreaterEqual:
		return compare(n.Op, left, right)
	default:
		return arithmetic(n.Op, left, right)
	}
}

// checkOperand rejects ranges used where a single value is needed.
func checkOperand(v Value, op string) error {
	if _, ok := v.(*Array); ok {
		return runtimeErrorf("operator %s cannot be applied to a range", op)
	}
	return nil
}

func arithmetic(op BinaryOp, left, right Value) (Value, error) {
	l, err := ToNumber(left)
	if err != nil {
		return nil, err
	}
	r, err := ToNumber(right)
	if err != nil {
		return nil, err
	}

	var result float64
	switch op {
	case BinOpAdd:
		result = l + r
	case BinOpSubtract:
		result = l - r
	case BinOpMultiply:
		result = l * r
	case BinOpDivide:
		if r == 0 {
			return ErrorValue{Code: ErrorCodeDiv0}, nil
		}
		result = l / r
	case BinOpModulo:
		if r == 0 {
			return ErrorValue{Code: ErrorCodeDiv0}, nil
		}
		result = math.Mod(l, r)
	case BinOpPower:
		result = math.Pow(l, r)
	default:
		return nil, runtimeErrorf("unsupported operator %s", op)
	}

	if math.IsNaN(result) || math.IsInf(result, 0) {
		return nil, runtimeErrorf("%s %s %s is not a finite number", Number(l), op, Number(r))
	}
	return Number(result), nil
}

// compare applies a comparison operator. Incomparable operands are unequal
// and cannot be ordered.
func compare(op BinaryOp, left, right Value) (Value, error) {
	cmp, ok := compareValues(left, right)
	if !ok {
		switch op {
		case BinOpEqual:
			return Boolean(false), nil
		case BinOpNotEqual:
			return Boolean(true), nil
		}
		return nil, runtimeErrorf("cannot compare %s with %s", left.Type(), right.Type())
	}

	switch op {
	case BinOpEqual:
		return Boolean(cmp == 0), nil
	case BinOpNotEqual:
		return Boolean(cmp != 0), nil
	case BinOpLess:
		return Boolean(cmp < 0), nil
	case BinOpLessEqual:
		return Boolean(cmp <= 0), nil
	case BinOpGreater:
		return Boolean(cmp > 0), nil
	default:
		return Boolean(cmp >= 0), nil
	}
}

// Eval looks the function up, checks arity and async permission, evaluates
// the arguments left to right and calls it.
func (n *FunctionCallNode) Eval(ev *evaluation) (Value, error) {
	name := strings.ToUpper(n.Name)
	spec, ok := ev.registry.Get(name)
	if !ok {
		return nil, &UnknownFunctionError{Name: name}
	}
	if spec.Arity != Variadic && len(n.Args) != spec.Arity {
		return nil, &RuntimeError{
			Func: name,
			Msg:  fmt.Sprintf("expects %d argument%s, got %d", spec.Arity, plural(spec.Arity), len(n.Args)),
		}
	}
	if spec.Async {
		if !ev.async {
			return nil, &RuntimeError{Func: name, Msg: "async functions are disabled"}
		}
		ev.volatile = true
	}

	args := make([]Value, 0, len(n.Args))
	for _, arg := range n.Args {
		v, err := arg.Eval(ev)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	result, err := spec.Fn(ev.ctx, args)
	if err != nil {
		return nil, functionError(name, err)
	}
	if result == nil {
		return Empty{}, nil
	}
	return result, nil
}

// functionError attributes err to the named function. Errors outside the
// formula taxonomy become runtime errors.
func functionError(name string, err error) error {
	var re *RuntimeError
	if errors.As(err, &re) {
		if re.Func == "" {
			re.Func = name
		}
		return re
	}
	if errors.Is(err, ErrUnknownFunction) {
		return err
	}
	return &RuntimeError{Func: name, Err: err}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
