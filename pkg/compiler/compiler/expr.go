package compiler

import (
	"github.com/zurustar/scic/pkg/compiler/ast"
	"github.com/zurustar/scic/pkg/compiler/codegen"
	"github.com/zurustar/scic/pkg/compiler/types"
	"github.com/zurustar/scic/pkg/opcode"
)

// visitor dispatches syntax tree nodes to the lowering methods.
type visitor struct {
	c *Compiler
}

func (v visitor) VisitValue(n *ast.Value)           { v.c.last = v.c.lowerValue(n) }
func (v visitor) VisitAssignment(n *ast.Assignment) { v.c.last = v.c.lowerAssignment(n) }
func (v visitor) VisitBinary(n *ast.Binary)         { v.c.last = v.c.lowerBinary(n) }
func (v visitor) VisitNary(n *ast.Nary)             { v.c.last = v.c.lowerNary(n) }
func (v visitor) VisitUnary(n *ast.Unary)           { v.c.last = v.c.lowerUnary(n) }
func (v visitor) VisitCast(n *ast.Cast)             { v.c.last = v.c.lowerCast(n) }
func (v visitor) VisitCall(n *ast.Call)             { v.c.last = v.c.lowerCall(n) }
func (v visitor) VisitSend(n *ast.Send)             { v.c.last = v.c.lowerSend(n) }
func (v visitor) VisitRest(n *ast.Rest)             { v.c.last = v.c.lowerRest(n) }
func (v visitor) VisitReturn(n *ast.Return)         { v.c.last = v.c.lowerReturn(n) }
func (v visitor) VisitBlock(n *ast.Block)           { v.c.last = v.c.lowerBlock(n) }
func (v visitor) VisitIf(n *ast.If)                 { v.c.last = v.c.lowerIf(n) }
func (v visitor) VisitWhile(n *ast.While)           { v.c.last = v.c.lowerWhile(n) }
func (v visitor) VisitFor(n *ast.For)               { v.c.last = v.c.lowerFor(n) }
func (v visitor) VisitDo(n *ast.Do)                 { v.c.last = v.c.lowerDo(n) }
func (v visitor) VisitSwitch(n *ast.Switch)         { v.c.last = v.c.lowerSwitch(n) }
func (v visitor) VisitBreak(n *ast.Break)           { v.c.last = v.c.lowerBreak(n) }
func (v visitor) VisitContinue(n *ast.Continue)     { v.c.last = v.c.lowerContinue(n) }
func (v visitor) VisitAsm(n *ast.Asm)               { v.c.last = v.c.lowerAsm(n) }

// lower writes the code of e under the current scope. Only && and || keep
// the conditional flag of their parent; everything else is lowered as a
// plain value.
func (c *Compiler) lower(e ast.Expr) CodeResult {
	if e == nil {
		return CodeResult{Type: types.Void}
	}
	if !isLogical(e) {
		defer c.withConditional(false)()
	}
	if line := e.Position().Line; line > 0 {
		prev := c.code.Line()
		c.code.SetLine(line)
		defer c.code.SetLine(prev)
	}
	c.last = CodeResult{}
	e.Accept(visitor{c})
	return c.last
}

func (c *Compiler) toAcc(e ast.Expr) CodeResult {
	defer c.withOutput(ocAcc)()
	return c.lower(e)
}

// accValue lowers a value somebody uses into the accumulator.
func (c *Compiler) accValue(e ast.Expr) CodeResult {
	defer c.withMeaning(true)()
	defer c.withOutput(ocAcc)()
	return c.lower(e)
}

// stackValue lowers a value somebody uses onto the stack.
func (c *Compiler) stackValue(e ast.Expr) CodeResult {
	defer c.withMeaning(true)()
	defer c.withOutput(ocStack)()
	return c.lower(e)
}

// pushIfStack moves the accumulator to the stack when the value is wanted there.
func (c *Compiler) pushIfStack() int {
	if c.out() == ocStack {
		c.code.Emit(opcode.PUSH)
		return 2
	}
	return 0
}

func pushInstr(v uint16) codegen.Instruction {
	switch v {
	case 0:
		return codegen.Instr(opcode.PUSH0)
	case 1:
		return codegen.Instr(opcode.PUSH1)
	case 2:
		return codegen.Instr(opcode.PUSH2)
	}
	return codegen.Instr(opcode.PUSHI, v)
}

// immediate loads a constant the cheapest way for the output context.
func (c *Compiler) immediate(v uint16) int {
	if c.out() == ocStack {
		c.code.Append(pushInstr(v))
		return 2
	}
	c.code.Emit(opcode.LDI, v)
	return 0
}

// neutral stands in for a value that could not be lowered.
func (c *Compiler) neutral() CodeResult {
	return CodeResult{Bytes: c.immediate(0), Type: types.Any}
}

func (c *Compiler) loadString(entry uint16, kind codegen.RelocKind, typ types.Species) CodeResult {
	op, bytes := opcode.LOFSA, 0
	if c.out() == ocStack {
		op, bytes = opcode.LOFSS, 2
	}
	in := codegen.Instr(op, entry)
	in.Reloc = codegen.Reloc{Kind: kind}
	c.code.Append(in)
	return CodeResult{Bytes: bytes, Type: typ}
}

// numberConstant evaluates a number literal or define.
func (c *Compiler) numberConstant(e ast.Expr) (uint16, bool) {
	v, ok := e.(*ast.Value)
	if !ok || v.Indexer != nil {
		return 0, false
	}
	switch v.Kind {
	case ast.Number:
		return v.Number, true
	case ast.Token:
		return c.define(v.Text)
	}
	return 0, false
}

func (c *Compiler) lowerValue(n *ast.Value) CodeResult {
	switch n.Kind {
	case ast.Number:
		return CodeResult{Bytes: c.immediate(n.Number), Type: types.Int}
	case ast.String:
		return c.loadString(uint16(c.strings.Add(codegen.RelocString, n.Text)), codegen.RelocString, types.String)
	case ast.Said:
		return c.loadString(uint16(c.strings.Add(codegen.RelocSaid, saidText(n.Text))), codegen.RelocSaid, types.Said)
	case ast.Selector:
		sel, ok := c.db.Selector(n.Text)
		if !ok {
			c.addError(n.Pos, "Unknown property or method: '%s'.", n.Text)
			return c.neutral()
		}
		return CodeResult{Bytes: c.immediate(sel), Type: types.Selector}
	case ast.Pointer:
		return c.lowerPointer(n)
	}
	return c.lowerToken(n)
}

func varType(k TokenKind) opcode.VarType {
	switch k {
	case TokenScriptVar:
		return opcode.Local
	case TokenTemp:
		return opcode.Temp
	case TokenParam:
		return opcode.Param
	}
	return opcode.Global
}

func (c *Compiler) lowerToken(n *ast.Value) CodeResult {
	if v, ok := c.define(n.Text); ok {
		if n.Indexer != nil {
			c.addError(n.Pos, "Can't use array index on this type.")
		}
		return CodeResult{Bytes: c.immediate(v), Type: types.Int}
	}
	t := c.lookupToken(n.Text)
	if t.isVariable() {
		return c.loadVariable(n, t)
	}
	if n.Indexer != nil && t.Kind != TokenUnknown {
		if t.Kind == TokenProperty {
			c.addError(n.Pos, "Property '%s' cannot be indexed like an array.", n.Text)
		} else {
			c.addError(n.Pos, "Can't use array index on this type.")
		}
	}
	stack := c.out() == ocStack
	switch t.Kind {
	case TokenProperty:
		access := opcode.Load
		switch c.takeModifier() {
		case modInc:
			access = opcode.Inc
		case modDec:
			access = opcode.Dec
		}
		c.code.Emit(opcode.PropertyOp(access, stack), t.Index)
		if stack {
			return CodeResult{Bytes: 2, Type: t.Type}
		}
		return CodeResult{Type: t.Type}
	case TokenScriptString:
		return c.loadString(t.Index, codegen.RelocString, types.String)
	case TokenClass:
		c.code.Emit(opcode.CLASS, t.Index)
		return CodeResult{Bytes: c.pushIfStack(), Type: t.Type}
	case TokenInstance:
		op, bytes := opcode.LOFSA, 0
		if stack {
			op, bytes = opcode.LOFSS, 2
		}
		in := codegen.Instr(op, t.Index)
		in.Reloc = codegen.Reloc{Kind: codegen.RelocObject, Name: n.Text}
		c.code.Append(in)
		return CodeResult{Bytes: bytes, Type: t.Type}
	case TokenExportInstance:
		return c.scriptID(n, t)
	case TokenSelf:
		if stack {
			c.code.Emit(opcode.PUSHSELF)
			return CodeResult{Bytes: 2, Type: t.Type}
		}
		c.code.Emit(opcode.SELFID)
		return CodeResult{Type: t.Type}
	}

	switch _, isProc := c.lookupProc(n.Text); {
	case isProc:
		c.addError(n.Pos, "The '(' character must immediately follow the function call '%s'.", n.Text)
	case isKeyword(n.Text) || n.Text == "super":
		c.addError(n.Pos, "'%s' cannot be used here.", n.Text)
	default:
		c.addErrorHint(n.Pos, c.useHint(n.Text), "Undeclared identifier '%s'.", n.Text)
	}
	return c.neutral()
}

// loadVariable reads a variable, applying a pending ++/--. A constant index
// is folded into the operand; any other index goes through the accumulator.
func (c *Compiler) loadVariable(n *ast.Value, t token) CodeResult {
	access := opcode.Load
	switch c.takeModifier() {
	case modInc:
		access = opcode.Inc
	case modDec:
		access = opcode.Dec
	}
	index, indexed := c.variableIndex(t, n.Indexer)
	stack := c.out() == ocStack
	c.code.Emit(opcode.VarOp(varType(t.Kind), access, stack, indexed), index)
	if stack {
		return CodeResult{Bytes: 2, Type: t.Type}
	}
	return CodeResult{Type: t.Type}
}

// variableIndex returns the operand for a variable reference. When the index
// is not constant its code is written and indexed is true.
func (c *Compiler) variableIndex(t token, indexer ast.Expr) (index uint16, indexed bool) {
	if indexer == nil {
		return t.Index, false
	}
	if k, ok := c.numberConstant(indexer); ok {
		return t.Index + k, false
	}
	defer c.withModifier(modNone)()
	c.accValue(indexer)
	return t.Index, true
}

// lowerPointer takes the address of a variable with lea.
func (c *Compiler) lowerPointer(n *ast.Value) CodeResult {
	t := c.lookupToken(n.Text)
	if !t.isVariable() {
		c.addError(n.Pos, "Expected something to which we could get a pointer: %s", n.Text)
		return c.neutral()
	}
	if t.Type == types.Pointer {
		c.addError(n.Pos, "Can't apply '@' to type '%s'.", c.typeName(t.Type))
	}
	index, indexed := c.variableIndex(t, n.Indexer)
	kind := uint16(varType(t.Kind))
	if indexed {
		kind |= 0x08
	}
	c.code.Emit(opcode.LEA, kind<<1, index)
	return CodeResult{Bytes: c.pushIfStack(), Type: types.Pointer}
}

// scriptID loads an instance exported by another script through the
// ScriptID kernel call.
func (c *Compiler) scriptID(n *ast.Value, t token) CodeResult {
	k, ok := c.db.Kernel("ScriptID")
	if !ok {
		c.addError(n.Pos, "Kernel function 'ScriptID' is unknown; can't reference '%s'.", n.Text)
		return c.neutral()
	}
	c.code.Append(pushInstr(2))
	c.code.Append(pushInstr(t.Script))
	c.code.Append(pushInstr(t.Index))
	c.code.Emit(opcode.CALLK, k, 4)
	return CodeResult{Bytes: c.pushIfStack(), Type: t.Type}
}

var compoundOps = map[ast.AssignOp]opcode.Opcode{
	ast.AddAssign: opcode.ADD,
	ast.SubAssign: opcode.SUB,
	ast.MulAssign: opcode.MUL,
	ast.DivAssign: opcode.DIV,
	ast.ModAssign: opcode.MOD,
	ast.AndAssign: opcode.AND,
	ast.OrAssign:  opcode.OR,
	ast.XorAssign: opcode.XOR,
	ast.ShrAssign: opcode.SHR,
	ast.ShlAssign: opcode.SHL,
}

func (c *Compiler) lowerAssignment(n *ast.Assignment) CodeResult {
	defer c.withMeaning(true)()
	binop, compound := compoundOps[n.Op]
	if n.Op != ast.Assign && !compound {
		c.addError(n.Pos, "Unknown assignment operator '%s'.", n.Op)
	}

	t := c.lookupToken(n.Name)
	switch {
	case t.Kind == TokenProperty:
		if n.Indexer != nil {
			c.addError(n.Pos, "Property '%s' cannot be indexed like an array.", n.Name)
		}
		if compound {
			c.code.Emit(opcode.PTOS, t.Index)
		}
		r := c.accValue(n.Value)
		if compound {
			c.code.Emit(binop)
		} else {
			c.checkAssign(n.Pos, t.Type, r.Type)
		}
		c.code.Emit(opcode.ATOP, t.Index)
	case t.isVariable():
		c.assignVariable(n, t, binop, compound)
	default:
		if _, isProc := c.lookupProc(n.Name); t.Kind == TokenUnknown && !isProc {
			c.addErrorHint(n.Pos, c.useHint(n.Name), "Unknown variable '%s'.", n.Name)
		} else {
			c.addError(n.Pos, "'%s' cannot be assigned to.", n.Name)
		}
		c.accValue(n.Value)
		return CodeResult{Bytes: c.pushIfStack(), Type: types.Any}
	}
	return CodeResult{Bytes: c.pushIfStack(), Type: t.Type}
}

func (c *Compiler) checkAssign(pos ast.Pos, dest, src types.Species) {
	if !c.match(dest, src) {
		c.addError(pos, "type '%s' cannot be assigned to type '%s'.", c.typeName(src), c.typeName(dest))
	}
}

// assignVariable stores into a variable. The stored value ends in the
// accumulator in every form.
func (c *Compiler) assignVariable(n *ast.Assignment, t token, binop opcode.Opcode, compound bool) {
	vt := varType(t.Kind)
	if k, ok := c.numberConstant(n.Indexer); ok || n.Indexer == nil {
		index := t.Index + k
		if compound {
			c.code.Emit(opcode.VarOp(vt, opcode.Load, true, false), index)
		}
		r := c.accValue(n.Value)
		if compound {
			c.code.Emit(binop)
		} else {
			c.checkAssign(n.Pos, t.Type, r.Type)
		}
		c.code.Emit(opcode.VarOp(vt, opcode.Store, false, false), index)
		return
	}

	if !compound {
		r := c.stackValue(n.Value)
		c.checkAssign(n.Pos, t.Type, r.Type)
		c.accValue(n.Indexer)
		c.code.Emit(opcode.VarOp(vt, opcode.Store, false, true), t.Index)
		return
	}
	// index twice on the stack, element on top
	c.accValue(n.Indexer)
	c.code.Emit(opcode.PUSH)
	c.code.Emit(opcode.PUSH)
	c.code.Emit(opcode.VarOp(vt, opcode.Load, true, true), t.Index)
	c.accValue(n.Value)
	c.code.Emit(binop)
	// eq? parks the result in prev and drops one index; 0+pop brings the
	// other back to the accumulator.
	c.code.Emit(opcode.EQ)
	c.code.Emit(opcode.LDI, 0)
	c.code.Emit(opcode.ADD)
	c.code.Emit(opcode.PPREV)
	c.code.Emit(opcode.VarOp(vt, opcode.Store, false, true), t.Index)
}

var binaryOps = map[string]opcode.Opcode{
	"+": opcode.ADD, "-": opcode.SUB, "*": opcode.MUL, "/": opcode.DIV,
	"mod": opcode.MOD, "%": opcode.MOD,
	">>": opcode.SHR, "<<": opcode.SHL,
	"^": opcode.XOR, "&": opcode.AND, "|": opcode.OR,
	"==": opcode.EQ, "!=": opcode.NE,
	">": opcode.GT, ">=": opcode.GE, "<": opcode.LT, "<=": opcode.LE,
	"u>": opcode.UGT, "u>=": opcode.UGE, "u<": opcode.ULT, "u<=": opcode.ULE,
}

var unsignedOps = map[opcode.Opcode]opcode.Opcode{
	opcode.GT: opcode.UGT,
	opcode.GE: opcode.UGE,
	opcode.LT: opcode.ULT,
	opcode.LE: opcode.ULE,
}

func isComparison(op opcode.Opcode) bool {
	return op >= opcode.EQ && op <= opcode.ULE
}

func logicalOp(op string) (and, ok bool) {
	switch op {
	case "&&", "and":
		return true, true
	case "||", "or":
		return false, true
	}
	return false, false
}

func isLogical(e ast.Expr) bool {
	b, ok := e.(*ast.Binary)
	if !ok {
		return false
	}
	_, ok = logicalOp(b.Op)
	return ok
}

// operator picks the opcode, switching comparisons to their unsigned form
// when an operand is unsigned.
func operator(name string, operands ...types.Species) (opcode.Opcode, bool) {
	op, ok := binaryOps[name]
	if !ok {
		return 0, false
	}
	if u, ok := unsignedOps[op]; ok {
		for _, t := range operands {
			if t == types.UInt {
				return u, true
			}
		}
	}
	return op, true
}

func (c *Compiler) lowerBinary(n *ast.Binary) CodeResult {
	if and, ok := logicalOp(n.Op); ok {
		if c.inConditional() {
			if and {
				return c.lowerAnd(n)
			}
			return c.lowerOr(n)
		}
		return c.fakeIf(n)
	}
	if _, ok := binaryOps[n.Op]; !ok {
		c.addError(n.Pos, "Unknown operator '%s'.", n.Op)
		return c.neutral()
	}
	left := c.stackValue(n.Left)
	right := c.accValue(n.Right)
	op, _ := operator(n.Op, left.Type, right.Type)
	c.code.Emit(op)
	typ := left.Type
	if isComparison(op) {
		typ = types.Bool
	}
	return CodeResult{Bytes: c.pushIfStack(), Type: typ}
}

// condTerm lowers an operand of && or || keeping the conditional flag.
func (c *Compiler) condTerm(e ast.Expr) CodeResult {
	defer c.withMeaning(true)()
	defer c.withOutput(ocAcc)()
	return c.lower(e)
}

func (c *Compiler) lowerAnd(n *ast.Binary) CodeResult {
	success := c.code.EnterBlock(codegen.Success)
	defer success.Leave()
	c.condTerm(n.Left)
	if _, ok := c.code.Jump(opcode.BNT, codegen.Failure, 1); !ok {
		c.addInternal(n.Pos, "'&&' lowered without a failure block")
	}
	success.Leave()
	c.condTerm(n.Right)
	return CodeResult{Type: types.Bool}
}

func (c *Compiler) lowerOr(n *ast.Binary) CodeResult {
	failure := c.code.EnterBlock(codegen.Failure)
	defer failure.Leave()
	c.condTerm(n.Left)
	if _, ok := c.code.Jump(opcode.BT, codegen.Success, 1); !ok {
		c.addInternal(n.Pos, "'||' lowered without a success block")
	}
	failure.Leave()
	c.condTerm(n.Right)
	return CodeResult{Type: types.Bool}
}

// fakeIf lowers a && or || used as a value as (if expr 1). When the test
// fails the accumulator already holds 0.
func (c *Compiler) fakeIf(n *ast.Binary) CodeResult {
	one := &ast.Value{Pos: n.Pos, Kind: ast.Number, Number: 1}
	func() {
		defer c.withMeaning(true)()
		defer c.withOutput(ocAcc)()
		c.ifHelper(n.Pos, n, one, nil)
	}()
	return CodeResult{Bytes: c.pushIfStack(), Type: types.Bool}
}

// lowerNary chains comparisons with pprev, (< a b c) being a<b && b<c, and
// folds arithmetic left to right.
func (c *Compiler) lowerNary(n *ast.Nary) CodeResult {
	if len(n.Operands) < 2 {
		c.addError(n.Pos, "'%s' needs at least two operands.", n.Op)
		return c.neutral()
	}
	if _, ok := binaryOps[n.Op]; !ok {
		c.addError(n.Pos, "Unknown operator '%s'.", n.Op)
		return c.neutral()
	}
	defer c.withMeaning(true)()

	op, _ := operator(n.Op)
	if !isComparison(op) {
		typ := c.stackValue(n.Operands[0]).Type
		for i, e := range n.Operands[1:] {
			if i > 0 {
				c.code.Emit(opcode.PUSH)
			}
			c.accValue(e)
			c.code.Emit(op)
		}
		return CodeResult{Bytes: c.pushIfStack(), Type: typ}
	}

	failure := c.code.EnterBlock(codegen.Failure)
	defer failure.Leave()
	prev := c.stackValue(n.Operands[0]).Type
	for i, e := range n.Operands[1:] {
		if i > 0 {
			failure.Jump(opcode.BNT)
			c.code.Emit(opcode.PPREV)
		}
		r := c.accValue(e)
		cmp, _ := operator(n.Op, prev, r.Type)
		c.code.Emit(cmp)
		prev = r.Type
	}
	failure.Leave()
	return CodeResult{Bytes: c.pushIfStack(), Type: types.Bool}
}

var unaryOps = map[string]opcode.Opcode{
	"-": opcode.NEG, "neg": opcode.NEG,
	"~": opcode.BNOT, "bnot": opcode.BNOT,
	"not": opcode.NOT, "!": opcode.NOT,
}

func (c *Compiler) lowerUnary(n *ast.Unary) CodeResult {
	if n.Op == "++" || n.Op == "--" {
		v, ok := n.Operand.(*ast.Value)
		if !ok || v.Kind != ast.Token {
			c.addError(n.Pos, "Can only increment simple values.")
			return c.lower(n.Operand)
		}
		m := modInc
		if n.Op == "--" {
			m = modDec
		}
		defer c.withMeaning(true)()
		restore := c.withModifier(m)
		r := c.lower(v)
		if c.pendingModifier() != modNone {
			c.addError(n.Pos, "++ and -- may only be applied to variables or properties.")
		}
		restore()
		return r
	}
	op, ok := unaryOps[n.Op]
	if !ok {
		c.addError(n.Pos, "Unknown operator '%s'.", n.Op)
		return c.neutral()
	}
	r := c.accValue(n.Operand)
	c.code.Emit(op)
	typ := r.Type
	if op == opcode.NOT {
		typ = types.Bool
	}
	return CodeResult{Bytes: c.pushIfStack(), Type: typ}
}

// lowerCast changes the static type only.
func (c *Compiler) lowerCast(n *ast.Cast) CodeResult {
	r := c.lower(n.Value)
	r.Type = c.declaredType(n.Pos, n.Type)
	return r
}

// lowerRest forwards the caller's parameters from the named one on. Without
// a name it forwards the parameters after the declared ones.
func (c *Compiler) lowerRest(n *ast.Rest) CodeResult {
	if c.out() != ocStack {
		c.addError(n.Pos, "The rest modifier cannot be used here.")
		return CodeResult{Type: types.Any}
	}
	if n.Param == "" && c.fn != nil {
		c.code.Emit(opcode.REST, uint16(len(c.fn.params)+1))
		return CodeResult{Type: types.Any}
	}
	t := c.lookupToken(n.Param)
	if t.Kind != TokenParam {
		c.addError(n.Pos, "The rest modifier must be followed by a parameter name.")
		return CodeResult{Type: types.Any}
	}
	c.code.Emit(opcode.REST, t.Index)
	return CodeResult{Type: types.Any}
}

func (c *Compiler) lowerReturn(n *ast.Return) CodeResult {
	if n.Value != nil {
		r := c.accValue(n.Value)
		if c.fn != nil && !c.match(c.fn.returnType, r.Type) {
			c.addError(n.Pos, "'%s' returns type '%s', but the value is of type '%s'.", c.fn.name, c.typeName(c.fn.returnType), c.typeName(r.Type))
		}
	} else if c.fn != nil && c.fn.returnType != types.Any && c.fn.returnType != types.Void {
		c.addError(n.Pos, "'%s' must return a value of type '%s'.", c.fn.name, c.typeName(c.fn.returnType))
	}
	c.code.Emit(opcode.RET)
	return CodeResult{Type: types.Void}
}

// lowerBlock lowers a sequence; only the last expression goes to the
// current output context.
func (c *Compiler) lowerBlock(n *ast.Block) CodeResult {
	if len(n.Body) == 0 {
		return CodeResult{Type: types.Void}
	}
	func() {
		defer c.withMeaning(false)()
		for _, e := range n.Body[:len(n.Body)-1] {
			c.toAcc(e)
		}
	}()
	return c.lower(n.Body[len(n.Body)-1])
}
