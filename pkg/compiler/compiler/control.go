package compiler

import (
	"github.com/zurustar/scic/pkg/compiler/ast"
	"github.com/zurustar/scic/pkg/compiler/codegen"
	"github.com/zurustar/scic/pkg/compiler/types"
	"github.com/zurustar/scic/pkg/opcode"
)

// condition lowers the test of a branch into the accumulator. In a
// sequence only the last term decides the branch.
func (c *Compiler) condition(pos ast.Pos, e ast.Expr) CodeResult {
	if e == nil {
		c.addError(pos, "Empty condition statement.")
		return CodeResult{Type: types.Void}
	}
	defer c.withMeaning(true)()
	defer c.withOutput(ocAcc)()
	if b, ok := e.(*ast.Block); ok && len(b.Body) > 0 {
		func() {
			defer c.withMeaning(false)()
			for _, s := range b.Body[:len(b.Body)-1] {
				c.lower(s)
			}
		}()
		e = b.Body[len(b.Body)-1]
	}
	defer c.withConditional(true)()
	r := c.lower(e)
	if !types.Truthy(r.Type) {
		c.addError(pos, "A value of type '%s' cannot be used as a condition.", c.typeName(r.Type))
	}
	return r
}

// ifHelper writes a two-way branch whose value ends in the accumulator.
// The branches keep the meaning of the surrounding code.
func (c *Compiler) ifHelper(pos ast.Pos, cond, then, els ast.Expr) CodeResult {
	success := c.code.EnterBlock(codegen.Success)
	defer success.Leave()
	failure := c.code.EnterBlock(codegen.Failure)
	defer failure.Leave()

	c.condition(pos, cond)
	failure.Jump(opcode.BNT)
	success.Leave()
	r := c.toAcc(then)
	if els == nil {
		failure.Leave()
		return r
	}

	post := c.code.EnterBlock(codegen.PostElse)
	defer post.Leave()
	post.Jump(opcode.JMP)
	failure.Leave()
	e := c.toAcc(els)
	post.Leave()
	if !c.match(r.Type, e.Type) || !c.match(e.Type, r.Type) {
		r.Type = types.Any
	}
	return r
}

func (c *Compiler) lowerIf(n *ast.If) CodeResult {
	restore := c.withOutput(ocAcc)
	r := c.ifHelper(n.Pos, n.Cond, n.Then, n.Else)
	restore()
	return CodeResult{Bytes: c.pushIfStack(), Type: r.Type}
}

// loopBody lowers statements whose values nobody reads.
func (c *Compiler) loopBody(body []ast.Expr) {
	defer c.withMeaning(false)()
	defer c.withOutput(ocAcc)()
	for _, e := range body {
		c.lower(e)
	}
}

func (c *Compiler) enterBreakable(isSwitch bool) func() {
	c.breakables = append(c.breakables, isSwitch)
	n := len(c.breakables)
	return func() { c.breakables = c.breakables[:n-1] }
}

func (c *Compiler) lowerWhile(n *ast.While) CodeResult {
	before := c.code.Last()
	brk := c.code.EnterBlock(codegen.Break)
	defer brk.Leave()
	failure := c.code.EnterBlock(codegen.Failure)
	defer failure.Leave()
	success := c.code.EnterBlock(codegen.Success)
	defer success.Leave()
	defer c.enterBreakable(false)()

	c.condition(n.Pos, n.Cond)
	test := c.code.Next(before)
	frame := c.code.EnterContinueFrame(test)
	defer frame.Leave()
	failure.Jump(opcode.BNT)
	success.Leave()

	c.loopBody(n.Body)
	c.code.JumpTo(opcode.JMP, test)
	frame.Leave()
	failure.Leave()
	brk.Leave()
	return CodeResult{Type: types.Void}
}

func (c *Compiler) lowerFor(n *ast.For) CodeResult {
	c.loopBody(n.Init)

	before := c.code.Last()
	brk := c.code.EnterBlock(codegen.Break)
	defer brk.Leave()
	failure := c.code.EnterBlock(codegen.Failure)
	defer failure.Leave()
	success := c.code.EnterBlock(codegen.Success)
	defer success.Leave()
	defer c.enterBreakable(false)()

	if n.Cond != nil {
		c.condition(n.Pos, n.Cond)
		failure.Jump(opcode.BNT)
	}
	success.Leave()

	frame := c.code.EnterForwardContinueFrame()
	defer frame.Leave()
	c.loopBody(n.Body)
	frame.Leave()
	c.loopBody(n.Step)

	// 先頭は戻りジャンプを書いてからでないと決まらない
	jmp := c.code.JumpTo(opcode.JMP, codegen.NoPos)
	c.code.SetTarget(jmp, c.code.Next(before))
	failure.Leave()
	brk.Leave()
	return CodeResult{Type: types.Void}
}

func (c *Compiler) lowerDo(n *ast.Do) CodeResult {
	before := c.code.Last()
	brk := c.code.EnterBlock(codegen.Break)
	defer brk.Leave()
	defer c.enterBreakable(false)()

	frame := c.code.EnterDoFrame()
	defer frame.Leave()
	c.loopBody(n.Body)
	frame.Leave()

	failure := c.code.EnterBlock(codegen.Failure)
	defer failure.Leave()
	success := c.code.EnterBlock(codegen.Success)
	defer success.Leave()
	if n.Cond == nil {
		c.addError(n.Pos, "Empty condition statement.")
	} else {
		c.condition(n.Pos, n.Cond)
		failure.Jump(opcode.BNT)
	}
	success.Leave()

	jmp := c.code.JumpTo(opcode.JMP, codegen.NoPos)
	c.code.SetTarget(jmp, c.code.Next(before))
	failure.Leave()
	brk.Leave()
	return CodeResult{Type: types.Void}
}

// lowerSwitch keeps the scrutinee on the stack while the cases dup and
// compare it, and tosses it at the end.
func (c *Compiler) lowerSwitch(n *ast.Switch) CodeResult {
	c.stackValue(n.Value)

	end := c.code.EnterBlock(codegen.Break)
	defer end.Leave()
	defer c.enterBreakable(true)()

	var def *ast.Case
	var cases []*ast.Case
	for _, cs := range n.Cases {
		if !cs.Default {
			cases = append(cases, cs)
			continue
		}
		if def != nil {
			c.addError(cs.Pos, "Only one 'default' case is allowed in a switch statement.")
			continue
		}
		def = cs
	}

	restore := c.withOutput(ocAcc)
	seen := map[uint16]bool{}
	var next *codegen.Block
	for i, cs := range cases {
		if next != nil {
			next.Leave()
		}
		c.code.SetLine(cs.Line)
		c.code.Emit(opcode.DUP)
		if v, ok := c.numberConstant(cs.Value); ok {
			if seen[v] {
				c.addWarning(cs.Pos, "Duplicate case values. Already encountered a case for '%d'", v)
			}
			seen[v] = true
		}
		c.accValue(cs.Value)
		c.code.Emit(opcode.EQ)
		next = c.code.EnterBlock(codegen.Default)
		next.Jump(opcode.BNT)
		c.statements(cs.Body)
		if i < len(cases)-1 || def != nil {
			end.Jump(opcode.JMP)
		}
	}
	if next != nil {
		next.Leave()
	}
	if def != nil {
		c.statements(def.Body)
	}
	end.Leave()
	c.code.Emit(opcode.TOSS)
	restore()
	return CodeResult{Bytes: c.pushIfStack(), Type: types.Any}
}

// lowerBreak jumps past the levels-th enclosing loop or switch. Every switch
// it leaves gets its scrutinee tossed first.
func (c *Compiler) lowerBreak(n *ast.Break) CodeResult {
	levels := max(n.Levels, 1)
	if levels > len(c.breakables) {
		if len(c.breakables) == 0 {
			c.addError(n.Pos, "'break' can only be used inside a loop or switch.")
		} else {
			c.addError(n.Pos, "'break %d' exits more loops than are open.", levels)
		}
		return CodeResult{Type: types.Void}
	}
	for _, isSwitch := range c.breakables[len(c.breakables)-levels+1:] {
		if isSwitch {
			c.code.Emit(opcode.TOSS)
		}
	}
	if _, ok := c.code.Jump(opcode.JMP, codegen.Break, levels); !ok {
		c.addInternal(n.Pos, "no break block for 'break %d'", levels)
	}
	return CodeResult{Type: types.Void}
}

// lowerContinue jumps to the test of the levels-th enclosing loop,
// tossing the scrutinee of every switch on the way.
func (c *Compiler) lowerContinue(n *ast.Continue) CodeResult {
	levels := max(n.Levels, 1)
	tosses, loops := 0, 0
	for i := len(c.breakables) - 1; i >= 0 && loops < levels; i-- {
		if c.breakables[i] {
			tosses++
		} else {
			loops++
		}
	}
	if loops < levels {
		if loops == 0 {
			c.addError(n.Pos, "'continue' can only be used inside a loop.")
		} else {
			c.addError(n.Pos, "'continue %d' exits more loops than are open.", levels)
		}
		return CodeResult{Type: types.Void}
	}
	for range tosses {
		c.code.Emit(opcode.TOSS)
	}
	if _, err := c.code.Continue(levels); err != nil {
		c.addInternal(n.Pos, "continue: %v", err)
	}
	return CodeResult{Type: types.Void}
}
