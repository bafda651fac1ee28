// Package codegen holds the instruction buffer the code generator writes into,
// and turns a finished buffer into addressed instructions and bytes.
//
// Instructions live in an arena and are linked in program order, so a Pos
// handle stays valid when code is inserted before it. Forward jumps are
// registered against branch blocks; when a block is left its jumps target
// whatever instruction is written next.
package codegen

import (
	"errors"
	"fmt"

	"github.com/zurustar/scic/pkg/opcode"
)

// Pos is a stable handle to an instruction in a Code buffer.
type Pos int32

// NoPos is the absent position. As a branch target it means "not yet known".
const NoPos Pos = -1

// BlockKind names the role of a branch block.
type BlockKind int

const (
	Success BlockKind = iota
	Failure
	Break
	Continue
	Or
	PostElse
	Default
	numBlockKinds
)

func (k BlockKind) String() string {
	switch k {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Break:
		return "break"
	case Continue:
		return "continue"
	case Or:
		return "or"
	case PostElse:
		return "postelse"
	case Default:
		return "default"
	}
	return fmt.Sprintf("block(%d)", int(k))
}

// RelocKind says what an operand refers to outside the code.
type RelocKind int

const (
	RelocNone RelocKind = iota
	// RelocString and RelocSaid refer to the string table; operand is the entry index until assembly.
	RelocString
	RelocSaid
	// RelocObject refers to an object of this script; operand is its index.
	RelocObject
	// RelocLocalProc refers to a labelled procedure of this script.
	RelocLocalProc
)

// Reloc attaches a symbolic reference to an instruction operand.
type Reloc struct {
	Kind RelocKind
	Name string
}

// Instruction is one p-code instruction.
type Instruction struct {
	Op       opcode.Opcode
	Operands []uint16
	Line     int
	// Target is the branch target of bt/bnt/jmp.
	Target Pos
	// Block is the kind of block a forward jump was registered with, for listings.
	Block BlockKind
	Reloc Reloc
	// Address and Size are filled in by Finalize.
	Address uint16
	Size    int
}

// Instr builds an instruction without a branch target.
func Instr(op opcode.Opcode, operands ...uint16) Instruction {
	return Instruction{Op: op, Operands: operands, Target: NoPos, Block: -1}
}

// String formats the instruction like an assembler listing line.
func (in Instruction) String() string {
	s := in.Op.String()
	for _, o := range in.Operands {
		s += fmt.Sprintf(" $%x", o)
	}
	if in.Reloc.Name != "" {
		s += " ; " + in.Reloc.Name
	}
	return s
}

type node struct {
	instr      Instruction
	prev, next Pos
}

// Code is the instruction buffer of one script.
type Code struct {
	nodes      []node
	head, tail Pos
	insertion  []Pos
	blocks     [numBlockKinds][]*Block
	waiting    []Pos
	frames     []*Frame
	labels     map[string]Pos
	line       int
}

// New returns an empty buffer.
func New() *Code {
	return &Code{head: NoPos, tail: NoPos, labels: map[string]Pos{}}
}

// SetLine sets the source line stamped on instructions written from now on.
func (c *Code) SetLine(line int) {
	if line > 0 {
		c.line = line
	}
}

// Line returns the current source line.
func (c *Code) Line() int { return c.line }

// Len returns the number of instructions.
func (c *Code) Len() int { return len(c.nodes) }

// First returns the first instruction in program order.
func (c *Code) First() Pos { return c.head }

// Next returns the instruction after p in program order.
func (c *Code) Next(p Pos) Pos {
	if p == NoPos {
		return c.head
	}
	return c.nodes[p].next
}

// Prev returns the instruction before p in program order.
func (c *Code) Prev(p Pos) Pos {
	if p == NoPos {
		return c.tail
	}
	return c.nodes[p].prev
}

// Last returns the most recently placed instruction at the current write
// position: the one just before the active insertion point, or the tail.
func (c *Code) Last() Pos {
	if n := len(c.insertion); n > 0 {
		return c.nodes[c.insertion[n-1]].prev
	}
	return c.tail
}

// At returns a copy of the instruction at p.
func (c *Code) At(p Pos) Instruction {
	return c.nodes[p].instr
}

// Replace overwrites the instruction at p, keeping its line and its place.
func (c *Code) Replace(p Pos, in Instruction) {
	in.Line = c.nodes[p].instr.Line
	c.nodes[p].instr = in
}

// SetOperand changes one operand of the instruction at p.
func (c *Code) SetOperand(p Pos, i int, v uint16) {
	in := &c.nodes[p].instr
	for len(in.Operands) <= i {
		in.Operands = append(in.Operands, 0)
	}
	in.Operands[i] = v
}

// Append writes in at the current write position and returns its handle.
// Jumps waiting for "the next instruction" now target it.
func (c *Code) Append(in Instruction) Pos {
	if in.Line == 0 {
		in.Line = c.line
	}
	if n := len(c.insertion); n > 0 {
		p := c.insertBefore(c.insertion[n-1], in)
		c.resolveWaiting(p)
		return p
	}
	p := Pos(len(c.nodes))
	c.nodes = append(c.nodes, node{instr: in, prev: c.tail, next: NoPos})
	if c.tail != NoPos {
		c.nodes[c.tail].next = p
	} else {
		c.head = p
	}
	c.tail = p
	c.resolveWaiting(p)
	return p
}

// Emit appends an instruction built from op and operands.
func (c *Code) Emit(op opcode.Opcode, operands ...uint16) Pos {
	return c.Append(Instr(op, operands...))
}

// InsertBefore writes in immediately before p without moving the write position.
func (c *Code) InsertBefore(p Pos, in Instruction) Pos {
	if in.Line == 0 {
		in.Line = c.line
	}
	return c.insertBefore(p, in)
}

func (c *Code) insertBefore(at Pos, in Instruction) Pos {
	p := Pos(len(c.nodes))
	prev := c.nodes[at].prev
	c.nodes = append(c.nodes, node{instr: in, prev: prev, next: at})
	c.nodes[at].prev = p
	if prev != NoPos {
		c.nodes[prev].next = p
	} else {
		c.head = p
	}
	return p
}

func (c *Code) resolveWaiting(p Pos) {
	for _, j := range c.waiting {
		c.nodes[j].instr.Target = p
	}
	c.waiting = c.waiting[:0]
}

// PushInsertionPoint makes subsequent writes go just before p.
func (c *Code) PushInsertionPoint(p Pos) {
	c.insertion = append(c.insertion, p)
}

// PopInsertionPoint restores the previous write position.
func (c *Code) PopInsertionPoint() {
	c.insertion = c.insertion[:len(c.insertion)-1]
}

// Label names the instruction at p, for local procedure calls.
func (c *Code) Label(name string, p Pos) {
	c.labels[name] = p
}

// Block is an open branch block.
type Block struct {
	code   *Code
	kind   BlockKind
	jumps  []Pos
	closed bool
}

// EnterBlock opens a block of the given kind. Leave it with Leave, usually deferred.
func (c *Code) EnterBlock(kind BlockKind) *Block {
	b := &Block{code: c, kind: kind}
	c.blocks[kind] = append(c.blocks[kind], b)
	return b
}

// Leave closes the block. Its jumps will target the next instruction written.
// Leaving twice is a no-op. Leaving a block that is not the innermost of its
// kind panics.
func (b *Block) Leave() {
	if b.closed {
		return
	}
	stack := b.code.blocks[b.kind]
	if len(stack) == 0 || stack[len(stack)-1] != b {
		panic(fmt.Sprintf("codegen: %s block left out of order", b.kind))
	}
	b.code.blocks[b.kind] = stack[:len(stack)-1]
	b.closed = true
	b.code.waiting = append(b.code.waiting, b.jumps...)
	b.jumps = nil
}

// Jump writes a forward jump that will be patched when b is left.
func (b *Block) Jump(op opcode.Opcode) Pos {
	in := Instr(op, 0)
	in.Block = b.kind
	p := b.code.Append(in)
	b.jumps = append(b.jumps, p)
	return p
}

// Jump writes a forward jump to the levels-th innermost open block of kind.
// It reports false, writing nothing, when there is no such block.
func (c *Code) Jump(op opcode.Opcode, kind BlockKind, levels int) (Pos, bool) {
	b := c.block(kind, levels)
	if b == nil {
		return NoPos, false
	}
	return b.Jump(op), true
}

// JumpTo writes a jump to a known instruction.
func (c *Code) JumpTo(op opcode.Opcode, target Pos) Pos {
	in := Instr(op, 0)
	in.Target = target
	return c.Append(in)
}

// SetTarget points the jump at p to target. Loops whose first instruction is
// only known after the back jump is written use it.
func (c *Code) SetTarget(p, target Pos) {
	c.nodes[p].instr.Target = target
}

// Retarget moves every jump, continue frame and label aimed at from onto to.
// Used after writing code in front of an instruction that jumps already reach.
func (c *Code) Retarget(from, to Pos) {
	for i := range c.nodes {
		if c.nodes[i].instr.Target == from && Pos(i) != to {
			c.nodes[i].instr.Target = to
		}
	}
	for _, f := range c.frames {
		if f.target == from {
			f.target = to
		}
	}
	for name, p := range c.labels {
		if p == from {
			c.labels[name] = to
		}
	}
}

// InBlock reports whether at least levels blocks of kind are open.
func (c *Code) InBlock(kind BlockKind, levels int) bool {
	return c.block(kind, levels) != nil
}

func (c *Code) block(kind BlockKind, levels int) *Block {
	if levels < 1 {
		levels = 1
	}
	stack := c.blocks[kind]
	if len(stack) < levels {
		return nil
	}
	return stack[len(stack)-levels]
}

// Errors returned by Continue.
var (
	ErrNotInLoop    = errors.New("not inside a loop")
	ErrContinueInDo = errors.New("continue inside a do loop")
)

// Frame is a continue frame: where a continue at this loop level goes.
type Frame struct {
	code   *Code
	target Pos
	block  *Block
	do     bool
	closed bool
}

// EnterContinueFrame opens a frame whose continue target is already written.
func (c *Code) EnterContinueFrame(target Pos) *Frame {
	f := &Frame{code: c, target: target}
	c.frames = append(c.frames, f)
	return f
}

// EnterForwardContinueFrame opens a frame whose continue target is the first
// instruction written after the frame is left.
func (c *Code) EnterForwardContinueFrame() *Frame {
	f := &Frame{code: c, target: NoPos, block: c.EnterBlock(Continue)}
	c.frames = append(c.frames, f)
	return f
}

// EnterDoFrame opens the frame of a do loop, which has no continue target.
func (c *Code) EnterDoFrame() *Frame {
	f := &Frame{code: c, target: NoPos, do: true}
	c.frames = append(c.frames, f)
	return f
}

// Leave closes the frame. Leaving twice is a no-op.
func (f *Frame) Leave() {
	if f.closed {
		return
	}
	frames := f.code.frames
	if len(frames) == 0 || frames[len(frames)-1] != f {
		panic("codegen: continue frame left out of order")
	}
	f.code.frames = frames[:len(frames)-1]
	f.closed = true
	if f.block != nil {
		f.block.Leave()
	}
}

// Continue writes a jump to the continue target of the levels-th enclosing loop.
func (c *Code) Continue(levels int) (Pos, error) {
	if levels < 1 {
		levels = 1
	}
	if len(c.frames) < levels {
		return NoPos, ErrNotInLoop
	}
	f := c.frames[len(c.frames)-levels]
	switch {
	case f.do:
		return NoPos, ErrContinueInDo
	case f.block != nil:
		return f.block.Jump(opcode.JMP), nil
	}
	return c.JumpTo(opcode.JMP, f.target), nil
}

// HasDanglingBranches reports whether some forward jump still waits for a target.
func (c *Code) HasDanglingBranches() bool {
	if len(c.waiting) > 0 {
		return true
	}
	for _, stack := range c.blocks {
		for _, b := range stack {
			if len(b.jumps) > 0 {
				return true
			}
		}
	}
	return false
}

// Each calls fn for every instruction in program order.
func (c *Code) Each(fn func(Pos, Instruction)) {
	for p := c.head; p != NoPos; p = c.nodes[p].next {
		fn(p, c.nodes[p].instr)
	}
}
