package compiler

import (
	"github.com/zurustar/scic/pkg/compiler/ast"
	"github.com/zurustar/scic/pkg/compiler/codegen"
	"github.com/zurustar/scic/pkg/compiler/symbols"
	"github.com/zurustar/scic/pkg/compiler/types"
	"github.com/zurustar/scic/pkg/opcode"
)

// pushArgs pushes the argument count and the arguments and returns the
// size of the arguments in bytes. The count is known only afterwards, so a
// placeholder stands in for it.
func (c *Compiler) pushArgs(args []ast.Expr) ([]CodeResult, int) {
	placeholder := c.code.Emit(opcode.Indeterminate)
	results := make([]CodeResult, 0, len(args))
	bytes := 0
	for _, a := range args {
		r := c.stackValue(a)
		results = append(results, r)
		bytes += r.Bytes
	}
	c.code.Replace(placeholder, pushInstr(uint16(bytes/2)))
	return results, bytes
}

func (c *Compiler) lowerCall(n *ast.Call) CodeResult {
	ref, ok := c.lookupProc(n.Name)
	if !ok {
		c.addErrorHint(n.Pos, c.useHint(n.Name), "Unknown procedure '%s'.", n.Name)
		// 引数の中のエラーも報告する
		c.pushArgs(n.Args)
		return c.neutral()
	}
	if ref.Owner != "" {
		owner := c.declaredType(n.Pos, ref.Owner)
		if cls := c.currentClass(); cls == nil || !c.match(owner, cls.species) {
			c.addError(n.Pos, "'%s' can only be called from class '%s'.", n.Name, ref.Owner)
		}
	}

	_, bytes := c.pushArgs(n.Args)
	c.checkFrame(n.Pos, n.Name, bytes)
	frame := uint16(bytes)
	switch ref.Kind {
	case symbols.ProcMain:
		c.code.Emit(opcode.CALLB, ref.Index, frame)
	case symbols.ProcExternal:
		c.code.Emit(opcode.CALLE, ref.Script, ref.Index, frame)
	case symbols.ProcKernel:
		c.code.Emit(opcode.CALLK, ref.Index, frame)
	default:
		in := codegen.Instr(opcode.CALL, 0, frame)
		in.Reloc = codegen.Reloc{Kind: codegen.RelocLocalProc, Name: n.Name}
		c.code.Append(in)
	}
	return CodeResult{Bytes: c.pushIfStack(), Type: ref.ReturnType}
}

// lowerSend writes the target into the accumulator followed by the send,
// then goes back and writes the selector pushes in front of the target:
// the selectors are checked against the target type, which is known only
// once the target is lowered.
func (c *Compiler) lowerSend(n *ast.Send) CodeResult {
	meaning := c.hasMeaning()
	if len(n.Params) == 0 {
		c.addWarning(n.Pos, "empty send call.")
	}

	before := c.code.Last()
	var (
		sendPos codegen.Pos
		frameAt int
		species types.Species
		lc      *localClass
	)
	switch {
	case n.TargetExpr == nil && n.TargetIndexer == nil && n.Target == "super":
		cls := c.currentClass()
		if cls == nil || !c.fn.method {
			c.addError(n.Pos, "'super' can only be used within an object method.")
			return c.neutral()
		}
		if cls.super == nil {
			c.addError(n.Pos, "'%s' has no superclass to send to.", cls.decl.Name)
			return c.neutral()
		}
		species = types.Species(cls.super.Species)
		lc = c.unit.bySpecies[species]
		sendPos = c.code.Emit(opcode.SUPER, cls.super.Species, 0)
		frameAt = 1
	case n.TargetExpr == nil && n.TargetIndexer == nil && n.Target == "self":
		if c.currentClass() == nil {
			c.addError(n.Pos, "'self' can only be used within an object method.")
			return c.neutral()
		}
		species = types.Any
		sendPos = c.code.Emit(opcode.SELF, 0)
	default:
		species, lc = c.loadSendTarget(n)
		if c.restWithNestedTarget(n) {
			c.addError(n.Pos, "&rest cannot be used if the send target itself contains nested procedure calls or sends. Assign the result of the procedure call or send to a temporary variable and use that instead.")
		}
		sendPos = c.code.Emit(opcode.SEND, 0)
	}

	first := c.code.Next(before)
	c.code.PushInsertionPoint(first)
	bytes := 0
	func() {
		defer c.withOutput(ocStack)()
		for _, p := range n.Params {
			bytes += c.sendParam(p, species, lc, meaning)
		}
	}()
	c.code.PopInsertionPoint()
	if head := c.code.Next(before); head != first {
		c.code.Retarget(first, head)
	}
	c.checkFrame(n.Pos, "send", bytes)
	c.code.SetOperand(sendPos, frameAt, uint16(bytes))
	return CodeResult{Bytes: c.pushIfStack(), Type: types.Any}
}

// maxFrame is the largest argument frame the byte operand of call and send holds.
const maxFrame = 0xff

func (c *Compiler) checkFrame(pos ast.Pos, what string, bytes int) {
	if bytes > maxFrame {
		c.addError(pos, "Too many parameters for '%s': %d bytes do not fit in a %d byte frame.", what, bytes, maxFrame)
	}
}

// restWithNestedTarget reports a send that forwards &rest while its target
// calls something: the nested call would run after the rest was pushed.
func (c *Compiler) restWithNestedTarget(n *ast.Send) bool {
	rest := false
	for _, p := range n.Params {
		for _, a := range p.Args {
			if _, ok := a.(*ast.Rest); ok {
				rest = true
			}
		}
	}
	if !rest {
		return false
	}
	nested := false
	find := func(e ast.Expr) bool {
		switch e.(type) {
		case *ast.Call, *ast.Send:
			nested = true
		}
		return !nested
	}
	ast.Inspect(n.TargetExpr, find)
	ast.Inspect(n.TargetIndexer, find)
	return nested
}

// loadSendTarget lowers the receiver of a send into the accumulator and
// returns its type and, for objects of this script, their declaration.
func (c *Compiler) loadSendTarget(n *ast.Send) (types.Species, *localClass) {
	defer c.withMeaning(true)()
	defer c.withOutput(ocAcc)()
	if n.TargetExpr != nil {
		r := c.lower(n.TargetExpr)
		return r.Type, c.unit.bySpecies[r.Type]
	}
	_, isDefine := c.define(n.Target)
	t := c.lookupToken(n.Target)
	if t.Kind == TokenUnknown && !isDefine {
		c.addError(n.Pos, "Unknown identifier: can not send to '%s'.", n.Target)
		c.immediate(0)
		return types.Any, nil
	}
	r := c.lower(&ast.Value{Pos: n.Pos, Kind: ast.Token, Text: n.Target, Indexer: n.TargetIndexer})
	if lc, ok := c.unit.classes[n.Target]; ok && (t.Kind == TokenClass || t.Kind == TokenInstance) {
		return r.Type, lc
	}
	return r.Type, c.unit.bySpecies[r.Type]
}

// sendParam pushes one selector with its arguments and returns the bytes
// pushed. Selectors on a known class are checked against its layout.
func (c *Compiler) sendParam(p *ast.SendParam, species types.Species, lc *localClass, meaning bool) int {
	sel, known := c.db.Selector(p.Selector)
	if known {
		c.code.Append(pushInstr(sel))
	} else {
		t := c.lookupToken(p.Selector)
		if t.isVariable() {
			r := c.stackValue(&ast.Value{Pos: p.Pos, Kind: ast.Token, Text: p.Selector})
			if !c.match(types.Selector, r.Type) {
				c.addError(p.Pos, "'%s' must be of type 'selector' to be used here.", p.Selector)
			}
		} else {
			c.addError(p.Pos, "Unknown property or method: '%s'.", p.Selector)
			c.code.Append(pushInstr(0))
		}
	}

	args, bytes := c.pushArgs(p.Args)
	if !known {
		return 4 + bytes
	}
	cls, ok := c.classBySpecies(species)
	if !ok {
		return 4 + bytes
	}
	if i, isProp := cls.PropertyIndex(sel); isProp {
		prop := cls.Properties[i]
		switch {
		case len(args) > 1:
			c.addError(p.Pos, "%s is a property.  Only one parameter may be supplied.", p.Selector)
		case len(args) == 1:
			if !c.match(prop.Type, args[0].Type) {
				c.addError(p.Pos, "Type '%s' does not match property '%s' of type '%s'.", c.typeName(args[0].Type), p.Selector, c.typeName(prop.Type))
			}
		case !meaning && !p.Call:
			c.addWarning(p.Pos, "'%s' has no effect on code.", p.Selector)
		}
		return 4 + bytes
	}
	if (lc == nil || lc.methods[p.Selector] == nil) && !cls.HasMethod(p.Selector) {
		c.addError(p.Pos, "%s is not a property or method on type '%s'.", p.Selector, c.typeName(species))
	}
	return 4 + bytes
}
