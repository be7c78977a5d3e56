// Package ast defines the parse tree produced by the parser and consumed
// by the object generator.
package ast

import "github.com/pi4erd/sarch32asm/internal/token"

// NodeType discriminates the polymorphic Node variants.
type NodeType int

const (
	Program NodeType = iota
	NodeLabel
	Instruction
	CompilerInstruction
	Identifier
	Register
	String
	ConstInteger
	ConstFloat
	Expression
)

// BinaryOp identifies an Expression node's binary operator.
type BinaryOp int

const (
	NoOp BinaryOp = iota
	Add
	Sub
	Mul
	Div
	Negate   // unary minus
	Identity // unary plus
)

// Node is a single AST node. Only the fields relevant to its NodeType are
// populated; children hold operands/arguments in source order.
type Node struct {
	Type NodeType
	Pos  token.Position

	Name string // Label/Instruction/CompilerInstruction/Identifier/Register name

	IntValue   int64
	FloatValue float64
	StrValue   string

	Op BinaryOp

	Children []*Node
}

// NewProgram creates an empty Program root node.
func NewProgram() *Node {
	return &Node{Type: Program}
}

func (n *Node) AddChild(child *Node) {
	n.Children = append(n.Children, child)
}
