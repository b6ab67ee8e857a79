package formula

import (
	"fmt"
	"strings"
)

type NodePosition struct {
	Start int
	End   int
}

// ASTNode is one node of a parsed formula. The set of node types is
// closed; trees are owned by the parse that produced them.
type ASTNode interface {
	Eval(ev *evaluation) (Value, error)
	GetPosition() NodePosition
	ToString() string
}

// BinaryOp represents binary operators in AST nodes
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpModulo
	BinOpPower
	BinOpEqual
	BinOpNotEqual
	BinOpLess
	BinOpLessEqual
	BinOpGreater
	BinOpGreaterEqual
)

var binaryOpText = map[BinaryOp]string{
	BinOpAdd:          "+",
	BinOpSubtract:     "-",
	BinOpMultiply:     "*",
	BinOpDivide:       "/",
	BinOpModulo:       "%",
	BinOpPower:        "^",
	BinOpEqual:        "=",
	BinOpNotEqual:     "<>",
	BinOpLess:         "<",
	BinOpLessEqual:    "<=",
	BinOpGreater:      ">",
	BinOpGreaterEqual: ">=",
}

func (op BinaryOp) String() string { return binaryOpText[op] }

// UnaryOp represents unary operators in AST nodes
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
)

func (op UnaryOp) String() string {
	if op == UnaryOpMinus {
		return "-"
	}
	return "+"
}

// LiteralNode represents a number or string literal
type LiteralNode struct {
	Value    Value
	Position NodePosition
}

func (n *LiteralNode) GetPosition() NodePosition { return n.Position }

func (n *LiteralNode) ToString() string {
	if t, ok := n.Value.(Text); ok {
		return `"` + string(t) + `"`
	}
	return n.Value.String()
}

// CellRefNode represents a single cell reference
type CellRefNode struct {
	Address  Address
	Position NodePosition
}

func (n *CellRefNode) GetPosition() NodePosition { return n.Position }

func (n *CellRefNode) ToString() string { return n.Address.String() }

// RangeNode represents a rectangular range reference, corners as written
type RangeNode struct {
	Range    Range
	Position NodePosition
}

func (n *RangeNode) GetPosition() NodePosition { return n.Position }

func (n *RangeNode) ToString() string { return n.Range.String() }

// BinaryOpNode represents a binary operation
type BinaryOpNode struct {
	Op       BinaryOp
	Left     ASTNode
	Right    ASTNode
	Position NodePosition
}

func (n *BinaryOpNode) GetPosition() NodePosition { return n.Position }

// ToString fully parenthesizes the expression, which makes grouping
// visible.
func (n *BinaryOpNode) ToString() string {
	return fmt.Sprintf("(%s%s%s)", n.Left.ToString(), n.Op, n.Right.ToString())
}

// UnaryOpNode represents a unary operation
type UnaryOpNode struct {
	Op       UnaryOp
	Operand  ASTNode
	Position NodePosition
}

func (n *UnaryOpNode) GetPosition() NodePosition { return n.Position }

func (n *UnaryOpNode) ToString() string {
	return n.Op.String() + n.Operand.ToString()
}

// FunctionCallNode represents a function call. Name is as written; lookup
// uppercases it.
type FunctionCallNode struct {
	Name     string
	Args     []ASTNode
	Position NodePosition
}

func (n *FunctionCallNode) GetPosition() NodePosition { return n.Position }

func (n *FunctionCallNode) ToString() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.ToString()
	}
	return fmt.Sprintf("%s(%s)", n.Name, strings.Join(args, ","))
}
