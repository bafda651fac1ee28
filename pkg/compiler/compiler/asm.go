package compiler

import (
	"github.com/zurustar/scic/pkg/compiler/ast"
	"github.com/zurustar/scic/pkg/compiler/codegen"
	"github.com/zurustar/scic/pkg/compiler/symbols"
	"github.com/zurustar/scic/pkg/compiler/types"
	"github.com/zurustar/scic/pkg/opcode"
)

// asmLabels tracks the labels of one inline assembly block. Jumps to a
// label that is not placed yet wait in pending.
type asmLabels struct {
	declared map[string]bool
	placed   map[string]codegen.Pos
	pending  map[string][]codegen.Pos
}

// place points label at p. A duplicate label keeps its first place.
func (l *asmLabels) place(code *codegen.Code, label string, p codegen.Pos) {
	if _, ok := l.placed[label]; ok {
		return
	}
	l.placed[label] = p
	for _, j := range l.pending[label] {
		code.SetTarget(j, p)
	}
	delete(l.pending, label)
}

// lowerAsm writes an inline assembly block instruction by instruction.
// A label marks the first instruction its line produced; a line that
// produced nothing hands its label to the next one.
func (c *Compiler) lowerAsm(n *ast.Asm) CodeResult {
	labels := &asmLabels{
		declared: map[string]bool{},
		placed:   map[string]codegen.Pos{},
		pending:  map[string][]codegen.Pos{},
	}
	for _, in := range n.Body {
		if in.Label == "" {
			continue
		}
		if labels.declared[in.Label] {
			c.addError(in.Pos, "Duplicate label '%s'.", in.Label)
		}
		labels.declared[in.Label] = true
	}

	var unplaced []string
	for _, in := range n.Body {
		if in.Label != "" {
			unplaced = append(unplaced, in.Label)
		}
		before := c.code.Last()
		c.asmLine(in, labels)
		if c.code.Last() == before {
			continue
		}
		first := c.code.Next(before)
		for _, l := range unplaced {
			labels.place(c.code, l, first)
		}
		unplaced = unplaced[:0]
	}
	for _, l := range unplaced {
		if len(labels.pending[l]) > 0 {
			c.addError(n.Pos, "Label '%s' does not mark an instruction.", l)
		}
	}
	return CodeResult{Type: types.Any}
}

func (c *Compiler) asmLine(in *ast.AsmInstruction, labels *asmLabels) {
	if in.Line > 0 {
		prev := c.code.Line()
		c.code.SetLine(in.Line)
		defer c.code.SetLine(prev)
	}

	op, ok := opcode.Lookup(in.Mnemonic)
	indexedLea := false
	if !ok && in.Mnemonic == "leai" {
		// lea with the index already in the accumulator
		op, ok, indexedLea = opcode.LEA, true, true
	}
	if !ok {
		c.addError(in.Pos, "Unknown instruction '%s'", in.Mnemonic)
		return
	}
	switch op {
	case opcode.JMP, opcode.BT, opcode.BNT:
		c.asmBranch(in, op, labels)
	case opcode.CALL, opcode.CALLB, opcode.CALLE, opcode.CALLK:
		c.asmCall(in, op)
	case opcode.LEA:
		c.asmLea(in, indexedLea)
	default:
		c.asmInstruction(in, op)
	}
}

func (c *Compiler) asmBranch(in *ast.AsmInstruction, op opcode.Opcode, labels *asmLabels) {
	var label string
	if len(in.Operands) == 1 {
		if v, ok := in.Operands[0].(*ast.Value); ok && v.Kind == ast.Token {
			label = v.Text
		}
	}
	if label == "" {
		c.addError(in.Pos, "Expected a single label value.")
		return
	}
	if !labels.declared[label] {
		c.addError(in.Pos, "Unknown label '%s'", label)
		return
	}
	if p, ok := labels.placed[label]; ok {
		c.code.JumpTo(op, p)
		return
	}
	j := c.code.JumpTo(op, codegen.NoPos)
	labels.pending[label] = append(labels.pending[label], j)
}

// asmCall writes a call by procedure name. The opcode has to match the
// kind of procedure the name resolves to.
func (c *Compiler) asmCall(in *ast.AsmInstruction, op opcode.Opcode) {
	if len(in.Operands) != 2 {
		c.addError(in.Pos, "Expected 2 arguments.")
		return
	}
	name, ok := in.Operands[0].(*ast.Value)
	if !ok || name.Kind != ast.Token {
		c.addError(in.Pos, "Expected procedure name: '%s'", in.Operands[0])
		return
	}
	frame, ok := c.numberConstant(in.Operands[1])
	if !ok {
		c.addError(in.Pos, "Expected a number for the second argument.")
		return
	}
	c.checkFrame(in.Pos, name.Text, int(frame))

	ref, found := c.lookupProc(name.Text)
	switch {
	case !found:
		c.addErrorHint(in.Pos, c.useHint(name.Text), "Unknown procedure '%s'.", name.Text)
	case ref.Kind == symbols.ProcKernel && op == opcode.CALLK:
		c.code.Emit(opcode.CALLK, ref.Index, frame)
	case ref.Kind == symbols.ProcMain && op == opcode.CALLB:
		c.code.Emit(opcode.CALLB, ref.Index, frame)
	case ref.Kind == symbols.ProcExternal && op == opcode.CALLE:
		c.code.Emit(opcode.CALLE, ref.Script, ref.Index, frame)
	case ref.Kind == symbols.ProcLocal && op == opcode.CALL:
		call := codegen.Instr(opcode.CALL, 0, frame)
		call.Reloc = codegen.Reloc{Kind: codegen.RelocLocalProc, Name: name.Text}
		c.code.Append(call)
	default:
		c.addError(in.Pos, "Procedure type does not match call type.")
	}
}

func (c *Compiler) asmLea(in *ast.AsmInstruction, indexed bool) {
	if len(in.Operands) == 0 {
		c.addError(in.Pos, "Not enough arguments for this opcode.")
		return
	}
	if len(in.Operands) > 1 {
		c.addError(in.Pos, "Too many arguments for '%s'.", in.Mnemonic)
	}
	v, ok := in.Operands[0].(*ast.Value)
	if !ok || v.Kind != ast.Token {
		c.addError(in.Pos, "Expected something to which we could get a pointer: %s", in.Operands[0])
		return
	}
	if v.Indexer != nil {
		c.addError(v.Pos, "An indexer is not allowed.")
	}
	t := c.lookupToken(v.Text)
	if !t.isVariable() {
		c.addError(v.Pos, "Expected something to which we could get a pointer: %s", v.Text)
		return
	}
	kind := uint16(varType(t.Kind))
	if indexed {
		kind |= 0x08
	}
	c.code.Emit(opcode.LEA, kind<<1, t.Index)
}

// asmInstruction writes any other instruction with its operands resolved
// one by one. String and object operands are only valid for lofsa/lofss.
func (c *Compiler) asmInstruction(in *ast.AsmInstruction, op opcode.Opcode) {
	kinds := op.Operands()
	if len(in.Operands) < len(kinds) {
		c.addError(in.Pos, "'%s' requires %d arguments.", in.Mnemonic, len(kinds))
		return
	}
	if len(in.Operands) > len(kinds) {
		c.addError(in.Pos, "Too many arguments for '%s'.", in.Mnemonic)
	}
	instr := codegen.Instr(op, make([]uint16, len(kinds))...)
	for i := range kinds {
		v, reloc := c.asmOperand(in, op, in.Operands[i])
		instr.Operands[i] = v
		if reloc.Kind == codegen.RelocNone {
			continue
		}
		if i != 0 || (op != opcode.LOFSA && op != opcode.LOFSS) {
			c.addError(in.Pos, "'%s' cannot take '%s' as an operand.", in.Mnemonic, in.Operands[i])
			continue
		}
		instr.Reloc = reloc
	}
	c.code.Append(instr)
}

func (c *Compiler) asmOperand(in *ast.AsmInstruction, op opcode.Opcode, e ast.Expr) (uint16, codegen.Reloc) {
	none := codegen.Reloc{}
	v, ok := e.(*ast.Value)
	if !ok {
		c.addError(in.Pos, "Unable to process operand '%s' of '%s'.", e, in.Mnemonic)
		return 0, none
	}
	switch v.Kind {
	case ast.Number:
		return v.Number, none
	case ast.String:
		return uint16(c.strings.Add(codegen.RelocString, v.Text)), codegen.Reloc{Kind: codegen.RelocString}
	case ast.Said:
		return uint16(c.strings.Add(codegen.RelocSaid, saidText(v.Text))), codegen.Reloc{Kind: codegen.RelocSaid}
	case ast.Selector:
		sel, ok := c.db.Selector(v.Text)
		if !ok {
			c.addError(v.Pos, "Unknown property or method: '%s'.", v.Text)
		}
		return sel, none
	case ast.Pointer:
		c.addError(v.Pos, "Pointer syntax is not valid for this opcode.")
		return 0, none
	}

	if n, ok := c.define(v.Text); ok {
		return n, none
	}
	t := c.lookupToken(v.Text)
	switch {
	case t.Kind == TokenInstance:
		return t.Index, codegen.Reloc{Kind: codegen.RelocObject, Name: v.Text}
	case t.Kind == TokenClass:
		return t.Index, none
	case t.Kind == TokenScriptString:
		return t.Index, codegen.Reloc{Kind: codegen.RelocString}
	case t.Kind == TokenProperty:
		if !op.IsProperty() {
			c.addError(v.Pos, "Invalid opcode to use with property '%s'.", v.Text)
		}
		return t.Index, none
	case t.isVariable():
		c.checkAsmVariable(v, op, t)
		return t.Index, none
	}
	c.addError(v.Pos, "Unknown token '%s'.", v.Text)
	return 0, none
}

// checkAsmVariable makes sure a variable opcode addresses the block the
// variable lives in. Script 0 owns the globals, so there global and local
// are the same block.
func (c *Compiler) checkAsmVariable(v *ast.Value, op opcode.Opcode, t token) {
	var have opcode.VarType
	switch {
	case op == opcode.REST:
		have = opcode.Param
	case op.IsVar():
		have, _, _, _ = opcode.VarParts(op)
	default:
		c.addError(v.Pos, "Invalid opcode to use with variable '%s'.", v.Text)
		return
	}
	want := varType(t.Kind)
	if c.script.Number == 0 {
		if have == opcode.Global {
			have = opcode.Local
		}
		if want == opcode.Global {
			want = opcode.Local
		}
	}
	if have != want {
		c.addError(v.Pos, "Opcode is '%s', but variable is '%s'.", varTypeNames[have], varTypeNames[want])
	}
}

var varTypeNames = map[opcode.VarType]string{
	opcode.Global: "global",
	opcode.Local:  "local",
	opcode.Temp:   "temp",
	opcode.Param:  "param",
}
