// Package ast defines the syntax tree of an SCI script as handed to the code generator.
// The node set is closed: every expression kind has a method on Visitor, so adding
// a kind without teaching the code generator about it does not build.
package ast

import (
	"fmt"
	"strings"
)

// Pos is a source position. Line and Column are 1-based; zero means unknown.
type Pos struct {
	Line   int
	Column int
}

// Position returns the node position.
func (p Pos) Position() Pos { return p }

// Node is implemented by every syntax tree node.
type Node interface {
	Position() Pos
	String() string
}

// Expr is a node that produces code. In SCI every statement is an expression.
type Expr interface {
	Node
	Accept(v Visitor)
}

// Visitor has one method per expression kind.
type Visitor interface {
	VisitValue(*Value)
	VisitAssignment(*Assignment)
	VisitBinary(*Binary)
	VisitNary(*Nary)
	VisitUnary(*Unary)
	VisitCast(*Cast)
	VisitCall(*Call)
	VisitSend(*Send)
	VisitRest(*Rest)
	VisitReturn(*Return)
	VisitBlock(*Block)
	VisitIf(*If)
	VisitWhile(*While)
	VisitFor(*For)
	VisitDo(*Do)
	VisitSwitch(*Switch)
	VisitBreak(*Break)
	VisitContinue(*Continue)
	VisitAsm(*Asm)
}

// ValueKind classifies a literal or token.
type ValueKind int

const (
	Number ValueKind = iota
	String
	Said
	Selector
	Token
	Pointer
)

func (k ValueKind) String() string {
	switch k {
	case Number:
		return "number"
	case String:
		return "string"
	case Said:
		return "said"
	case Selector:
		return "selector"
	case Token:
		return "token"
	case Pointer:
		return "pointer"
	}
	return "unknown"
}

// Value is a literal, an identifier token, a selector literal (#name) or an
// address-of (@name). Token and Pointer values may carry an indexer.
type Value struct {
	Pos
	Kind    ValueKind
	Number  uint16
	Negated bool
	Text    string
	Indexer Expr
}

func (n *Value) Accept(v Visitor) { v.VisitValue(n) }
func (n *Value) String() string {
	var s string
	switch n.Kind {
	case Number:
		if n.Negated {
			s = fmt.Sprintf("%d", int16(n.Number))
		} else {
			s = fmt.Sprintf("%d", n.Number)
		}
	case String:
		s = fmt.Sprintf("%q", n.Text)
	case Said:
		s = "'" + n.Text + "'"
	case Selector:
		s = "#" + n.Text
	case Pointer:
		s = "@" + n.Text
	default:
		s = n.Text
	}
	if n.Indexer != nil {
		s = fmt.Sprintf("[%s %s]", s, n.Indexer)
	}
	return s
}

// AssignOp is the operator of an assignment.
type AssignOp string

const (
	Assign    AssignOp = "="
	AddAssign AssignOp = "+="
	SubAssign AssignOp = "-="
	MulAssign AssignOp = "*="
	DivAssign AssignOp = "/="
	ModAssign AssignOp = "mod="
	AndAssign AssignOp = "&="
	OrAssign  AssignOp = "|="
	XorAssign AssignOp = "^="
	ShrAssign AssignOp = ">>="
	ShlAssign AssignOp = "<<="
)

// Assignment stores Value into Name (optionally indexed).
type Assignment struct {
	Pos
	Op      AssignOp
	Name    string
	Indexer Expr
	Value   Expr
}

func (n *Assignment) Accept(v Visitor) { v.VisitAssignment(n) }
func (n *Assignment) String() string {
	target := n.Name
	if n.Indexer != nil {
		target = fmt.Sprintf("[%s %s]", n.Name, n.Indexer)
	}
	return fmt.Sprintf("(%s %s %s)", n.Op, target, n.Value)
}

// Binary is a two-operand operator, including && and ||.
type Binary struct {
	Pos
	Op    string
	Left  Expr
	Right Expr
}

func (n *Binary) Accept(v Visitor) { v.VisitBinary(n) }
func (n *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", n.Op, n.Left, n.Right)
}

// Nary is a relational or arithmetic operator applied to two or more operands.
// Relational operators chain: (< a b c) is a < b && b < c.
type Nary struct {
	Pos
	Op       string
	Operands []Expr
}

func (n *Nary) Accept(v Visitor) { v.VisitNary(n) }
func (n *Nary) String() string {
	return fmt.Sprintf("(%s %s)", n.Op, joinExprs(n.Operands))
}

// Unary is a prefix operator: -, ~, not, ++, --.
type Unary struct {
	Pos
	Op      string
	Operand Expr
}

func (n *Unary) Accept(v Visitor) { v.VisitUnary(n) }
func (n *Unary) String() string   { return fmt.Sprintf("(%s %s)", n.Op, n.Operand) }

// Cast changes the static type of Value without generating code.
type Cast struct {
	Pos
	Type  string
	Value Expr
}

func (n *Cast) Accept(v Visitor) { v.VisitCast(n) }
func (n *Cast) String() string   { return fmt.Sprintf("(%s)%s", n.Type, n.Value) }

// Call is a procedure or kernel call.
type Call struct {
	Pos
	Name string
	Args []Expr
}

func (n *Call) Accept(v Visitor) { v.VisitCall(n) }
func (n *Call) String() string {
	if len(n.Args) == 0 {
		return "(" + n.Name + ")"
	}
	return fmt.Sprintf("(%s %s)", n.Name, joinExprs(n.Args))
}

// SendParam is one selector of a send: a property read/write or a method call.
type SendParam struct {
	Pos
	Selector string
	Args     []Expr
	// Call is set when the selector was written with a trailing colon.
	Call bool
}

func (p *SendParam) String() string {
	s := p.Selector
	if p.Call {
		s += ":"
	}
	if len(p.Args) > 0 {
		s += " " + joinExprs(p.Args)
	}
	return s
}

// Send sends one or more selectors to an object. Exactly one of Target and
// TargetExpr is set. Target may name self, super, a class, an instance or a
// variable (with TargetIndexer for arrays).
type Send struct {
	Pos
	Target        string
	TargetIndexer Expr
	TargetExpr    Expr
	Params        []*SendParam
}

func (n *Send) Accept(v Visitor) { v.VisitSend(n) }
func (n *Send) String() string {
	var target string
	switch {
	case n.TargetExpr != nil:
		target = n.TargetExpr.String()
	case n.TargetIndexer != nil:
		target = fmt.Sprintf("[%s %s]", n.Target, n.TargetIndexer)
	default:
		target = n.Target
	}
	parts := make([]string, 0, len(n.Params))
	for _, p := range n.Params {
		parts = append(parts, p.String())
	}
	return fmt.Sprintf("(%s %s)", target, strings.Join(parts, " "))
}

// Rest forwards the caller's parameters starting at Param.
type Rest struct {
	Pos
	Param string
}

func (n *Rest) Accept(v Visitor) { v.VisitRest(n) }
func (n *Rest) String() string   { return "&rest " + n.Param }

// Return leaves the function, optionally with a value in the accumulator.
type Return struct {
	Pos
	Value Expr
}

func (n *Return) Accept(v Visitor) { v.VisitReturn(n) }
func (n *Return) String() string {
	if n.Value == nil {
		return "(return)"
	}
	return fmt.Sprintf("(return %s)", n.Value)
}

// Block is a sequence of expressions. Its value is the value of the last one.
type Block struct {
	Pos
	Body []Expr
}

func (n *Block) Accept(v Visitor) { v.VisitBlock(n) }
func (n *Block) String() string   { return "(" + joinExprs(n.Body) + ")" }

// If is a two-way conditional. Else may be nil.
type If struct {
	Pos
	Cond Expr
	Then Expr
	Else Expr
}

func (n *If) Accept(v Visitor) { v.VisitIf(n) }
func (n *If) String() string {
	if n.Else == nil {
		return fmt.Sprintf("(if %s %s)", n.Cond, n.Then)
	}
	return fmt.Sprintf("(if %s %s else %s)", n.Cond, n.Then, n.Else)
}

// While tests Cond before every iteration.
type While struct {
	Pos
	Cond Expr
	Body []Expr
}

func (n *While) Accept(v Visitor) { v.VisitWhile(n) }
func (n *While) String() string {
	return fmt.Sprintf("(while %s %s)", n.Cond, joinExprs(n.Body))
}

// For is a C-style loop. Cond may be nil for an endless loop.
type For struct {
	Pos
	Init []Expr
	Cond Expr
	Step []Expr
	Body []Expr
}

func (n *For) Accept(v Visitor) { v.VisitFor(n) }
func (n *For) String() string {
	return fmt.Sprintf("(for (%s) %v (%s) %s)", joinExprs(n.Init), n.Cond, joinExprs(n.Step), joinExprs(n.Body))
}

// Do runs Body once before testing Cond.
type Do struct {
	Pos
	Body []Expr
	Cond Expr
}

func (n *Do) Accept(v Visitor) { v.VisitDo(n) }
func (n *Do) String() string {
	return fmt.Sprintf("(do %s) (while %v)", joinExprs(n.Body), n.Cond)
}

// Case is one arm of a switch. Value is nil for the default arm.
type Case struct {
	Pos
	Default bool
	Value   Expr
	Body    []Expr
}

func (c *Case) String() string {
	if c.Default {
		return fmt.Sprintf("(else %s)", joinExprs(c.Body))
	}
	return fmt.Sprintf("(%s %s)", c.Value, joinExprs(c.Body))
}

// Switch compares Value against each case in order.
type Switch struct {
	Pos
	Value Expr
	Cases []*Case
}

func (n *Switch) Accept(v Visitor) { v.VisitSwitch(n) }
func (n *Switch) String() string {
	parts := make([]string, 0, len(n.Cases))
	for _, c := range n.Cases {
		parts = append(parts, c.String())
	}
	return fmt.Sprintf("(switch %s %s)", n.Value, strings.Join(parts, " "))
}

// Break leaves the Levels-th enclosing loop or switch. Zero means one.
type Break struct {
	Pos
	Levels int
}

func (n *Break) Accept(v Visitor) { v.VisitBreak(n) }
func (n *Break) String() string   { return fmt.Sprintf("(break %d)", n.Levels) }

// Continue restarts the Levels-th enclosing loop. Zero means one.
type Continue struct {
	Pos
	Levels int
}

func (n *Continue) Accept(v Visitor) { v.VisitContinue(n) }
func (n *Continue) String() string   { return fmt.Sprintf("(continue %d)", n.Levels) }

// AsmInstruction is one line of inline assembly. Operands are numbers,
// strings, saids, selectors, labels of the same block, procedure names or
// variable and property names.
type AsmInstruction struct {
	Pos
	Label    string
	Mnemonic string
	Operands []Expr
}

func (in *AsmInstruction) String() string {
	s := in.Mnemonic
	if len(in.Operands) > 0 {
		s += " " + joinExprs(in.Operands)
	}
	if in.Label != "" {
		s = in.Label + ": " + s
	}
	return s
}

// Asm is an inline assembly block. Its labels are local to the block.
type Asm struct {
	Pos
	Body []*AsmInstruction
}

func (n *Asm) Accept(v Visitor) { v.VisitAsm(n) }
func (n *Asm) String() string {
	parts := make([]string, 0, len(n.Body))
	for _, in := range n.Body {
		parts = append(parts, in.String())
	}
	return "(asm " + strings.Join(parts, "; ") + ")"
}

func joinExprs(exprs []Expr) string {
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		if e == nil {
			parts = append(parts, "nil")
			continue
		}
		parts = append(parts, e.String())
	}
	return strings.Join(parts, " ")
}
