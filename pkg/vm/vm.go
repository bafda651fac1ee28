// Package vm is a reference interpreter for SCI p-code. It runs the
// procedural subset of the instruction set: arithmetic, branches, the
// variable blocks, local and kernel calls, &rest, and property access on a
// single self object. Object sends and cross-script calls are reported as
// unsupported.
//
// It decodes the assembled bytes rather than the instruction list, so a run
// checks the encoder and the branch offsets as well as the lowering.
package vm

import (
	"context"
	"log/slog"

	"github.com/zurustar/scic/pkg/logger"
	"github.com/zurustar/scic/pkg/opcode"
)

const (
	// DefaultMaxStack is the stack size in words.
	DefaultMaxStack = 4096
	// DefaultMaxSteps bounds a run so that a broken loop ends.
	DefaultMaxSteps = 1_000_000
	// MaxCallDepth is the maximum number of nested calls.
	MaxCallDepth = 256

	checkInterval = 1024
)

// Kernel is an interpreter function reached with callk. args excludes argc.
type Kernel func(args []uint16) uint16

// Options configures a Machine.
type Options struct {
	Globals    []uint16
	Locals     []uint16
	Properties []uint16
	// SelfID is what selfID and pushSelf produce.
	SelfID   uint16
	Kernels  map[uint16]Kernel
	MaxStack int
	MaxSteps int
	Logger   *slog.Logger
}

type frame struct {
	// paramBase is the stack index of argc; params follow it.
	paramBase int
	tempBase  int
	temps     int
	retPC     int
}

// Machine executes one code block. It is not safe for concurrent use.
type Machine struct {
	code []byte

	acc, prev uint16
	stack     []uint16
	frames    []*frame
	// rest words pushed since the last call, added to the next argc
	restAdjust int

	Globals    []uint16
	Locals     []uint16
	Properties []uint16
	selfID     uint16
	kernels    map[uint16]Kernel

	maxStack int
	maxSteps int
	steps    int

	log *slog.Logger
}

// New creates a Machine over assembled code.
func New(code []byte, opts Options) *Machine {
	m := &Machine{
		code:       code,
		Globals:    append([]uint16(nil), opts.Globals...),
		Locals:     append([]uint16(nil), opts.Locals...),
		Properties: append([]uint16(nil), opts.Properties...),
		selfID:     opts.SelfID,
		kernels:    opts.Kernels,
		maxStack:   opts.MaxStack,
		maxSteps:   opts.MaxSteps,
		log:        opts.Logger,
	}
	if m.maxStack <= 0 {
		m.maxStack = DefaultMaxStack
	}
	if m.maxSteps <= 0 {
		m.maxSteps = DefaultMaxSteps
	}
	if m.log == nil {
		m.log = logger.GetLogger()
	}
	return m
}

// Acc returns the accumulator.
func (m *Machine) Acc() uint16 { return m.acc }

// StackDepth returns the number of words on the stack.
func (m *Machine) StackDepth() int { return len(m.stack) }

// Steps returns the number of instructions executed by the last Run.
func (m *Machine) Steps() int { return m.steps }

// Run calls the procedure at entry with args and returns the accumulator
// when it returns.
func (m *Machine) Run(ctx context.Context, entry uint16, args ...uint16) (uint16, error) {
	m.stack = m.stack[:0]
	m.frames = m.frames[:0]
	m.restAdjust = 0
	m.steps = 0
	m.acc, m.prev = 0, 0

	if err := m.push(-1, uint16(len(args))); err != nil {
		return 0, err
	}
	for _, a := range args {
		if err := m.push(-1, a); err != nil {
			return 0, err
		}
	}
	m.frames = append(m.frames, &frame{paramBase: 0, retPC: -1})

	trace := m.log.Enabled(ctx, slog.LevelDebug)
	pc := int(entry)
	for {
		if m.steps%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		m.steps++
		if m.steps > m.maxSteps {
			return 0, NewRuntimeError(ErrorStepLimit, pc, "more than %d steps", m.maxSteps)
		}
		if pc < 0 || pc >= len(m.code) {
			return 0, NewRuntimeError(ErrorInvalidOperation, pc, "pc outside code")
		}
		op, operands, n, err := opcode.Decode(m.code[pc:])
		if err != nil {
			return 0, NewRuntimeError(ErrorInvalidOpcode, pc, "%v", err)
		}
		if trace {
			m.log.Debug("step", "pc", pc, "op", op.String(), "operands", operands, "acc", m.acc, "sp", len(m.stack))
		}
		next, done, err := m.exec(pc, pc+n, op, operands)
		if err != nil {
			return 0, err
		}
		if done {
			return m.acc, nil
		}
		pc = next
	}
}

func (m *Machine) push(pc int, v uint16) error {
	if len(m.stack) >= m.maxStack {
		return NewRuntimeError(ErrorStackOverflow, pc, "stack exceeds %d words", m.maxStack)
	}
	m.stack = append(m.stack, v)
	return nil
}

func (m *Machine) pop(pc int) (uint16, error) {
	if len(m.stack) <= m.frames[len(m.frames)-1].floor(m) {
		return 0, NewRuntimeError(ErrorStackUnderflow, pc, "pop below the frame")
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

func (f *frame) argc(m *Machine) int { return int(m.stack[f.paramBase]) }

// floor is the stack size below which the frame's own words lie.
func (f *frame) floor(m *Machine) int {
	if f.temps > 0 {
		return f.tempBase + f.temps
	}
	return f.paramBase + f.argc(m) + 1
}

func boolWord(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}

// exec runs one instruction and returns the next pc.
func (m *Machine) exec(pc, next int, op opcode.Opcode, operands []uint16) (int, bool, error) {
	if op.IsVar() {
		return next, false, m.variable(pc, op, operands[0])
	}

	switch op {
	case opcode.ADD, opcode.SUB, opcode.MUL, opcode.DIV, opcode.MOD,
		opcode.SHR, opcode.SHL, opcode.XOR, opcode.AND, opcode.OR:
		left, err := m.pop(pc)
		if err != nil {
			return 0, false, err
		}
		v, err := arith(pc, op, left, m.acc)
		if err != nil {
			return 0, false, err
		}
		m.acc = v

	case opcode.EQ, opcode.NE, opcode.GT, opcode.GE, opcode.LT, opcode.LE,
		opcode.UGT, opcode.UGE, opcode.ULT, opcode.ULE:
		left, err := m.pop(pc)
		if err != nil {
			return 0, false, err
		}
		m.prev = m.acc
		m.acc = boolWord(compare(op, left, m.acc))

	case opcode.BNOT:
		m.acc = ^m.acc
	case opcode.NOT:
		m.acc = boolWord(m.acc == 0)
	case opcode.NEG:
		m.acc = -m.acc

	case opcode.BT:
		if m.acc != 0 {
			return next + int(int16(operands[0])), false, nil
		}
	case opcode.BNT:
		if m.acc == 0 {
			return next + int(int16(operands[0])), false, nil
		}
	case opcode.JMP:
		return next + int(int16(operands[0])), false, nil

	case opcode.LDI:
		m.acc = operands[0]
	case opcode.PUSH:
		return next, false, m.push(pc, m.acc)
	case opcode.PUSHI:
		return next, false, m.push(pc, operands[0])
	case opcode.PUSH0, opcode.PUSH1, opcode.PUSH2:
		return next, false, m.push(pc, uint16(op-opcode.PUSH0))
	case opcode.PPREV:
		return next, false, m.push(pc, m.prev)
	case opcode.TOSS:
		_, err := m.pop(pc)
		return next, false, err
	case opcode.DUP:
		if len(m.stack) <= m.frames[len(m.frames)-1].floor(m) {
			return 0, false, NewRuntimeError(ErrorStackUnderflow, pc, "dup on an empty stack")
		}
		return next, false, m.push(pc, m.stack[len(m.stack)-1])
	case opcode.LINK:
		f := m.frames[len(m.frames)-1]
		f.tempBase = len(m.stack)
		f.temps = int(operands[0])
		for range f.temps {
			if err := m.push(pc, 0); err != nil {
				return 0, false, err
			}
		}

	case opcode.CALL:
		return m.call(pc, next, next+int(int16(operands[0])), operands[1])
	case opcode.CALLK:
		return next, false, m.callKernel(pc, operands[0], operands[1])
	case opcode.RET:
		return m.ret()
	case opcode.REST:
		return next, false, m.rest(pc, int(operands[0]))

	case opcode.SELFID:
		m.acc = m.selfID
	case opcode.PUSHSELF:
		return next, false, m.push(pc, m.selfID)
	case opcode.PTOA, opcode.ATOP, opcode.PTOS, opcode.STOP,
		opcode.IPTOA, opcode.DPTOA, opcode.IPTOS, opcode.DPTOS:
		return next, false, m.property(pc, op, operands[0])

	case opcode.SEND, opcode.SELF, opcode.SUPER, opcode.CLASS,
		opcode.CALLB, opcode.CALLE, opcode.LOFSA, opcode.LOFSS, opcode.LEA:
		return 0, false, NewRuntimeError(ErrorUnsupported, pc, "%s needs the object system", op)
	default:
		return 0, false, NewRuntimeError(ErrorInvalidOpcode, pc, "unexpected %s", op)
	}
	return next, false, nil
}

func arith(pc int, op opcode.Opcode, a, b uint16) (uint16, error) {
	switch op {
	case opcode.ADD:
		return a + b, nil
	case opcode.SUB:
		return a - b, nil
	case opcode.MUL:
		return uint16(int16(a) * int16(b)), nil
	case opcode.DIV, opcode.MOD:
		if b == 0 {
			return 0, NewRuntimeError(ErrorDivisionByZero, pc, "%s by zero", op)
		}
		if op == opcode.DIV {
			return uint16(int16(a) / int16(b)), nil
		}
		return uint16(int16(a) % int16(b)), nil
	case opcode.SHR:
		return a >> (b & 0x0f), nil
	case opcode.SHL:
		return a << (b & 0x0f), nil
	case opcode.XOR:
		return a ^ b, nil
	case opcode.AND:
		return a & b, nil
	}
	return a | b, nil
}

func compare(op opcode.Opcode, a, b uint16) bool {
	switch op {
	case opcode.EQ:
		return a == b
	case opcode.NE:
		return a != b
	case opcode.GT:
		return int16(a) > int16(b)
	case opcode.GE:
		return int16(a) >= int16(b)
	case opcode.LT:
		return int16(a) < int16(b)
	case opcode.LE:
		return int16(a) <= int16(b)
	case opcode.UGT:
		return a > b
	case opcode.UGE:
		return a >= b
	case opcode.ULT:
		return a < b
	}
	return a <= b
}

// args returns the stack index of argc for a call whose arguments take
// frame bytes, folding in words pushed by &rest.
func (m *Machine) args(pc int, frameBytes uint16) (int, error) {
	words := int(frameBytes)/2 + m.restAdjust
	base := len(m.stack) - words - 1
	if base < m.frames[len(m.frames)-1].floor(m) {
		return 0, NewRuntimeError(ErrorStackUnderflow, pc, "call frame of %d words reaches below the caller", words)
	}
	m.stack[base] += uint16(m.restAdjust)
	m.restAdjust = 0
	return base, nil
}

func (m *Machine) call(pc, next, target int, frameBytes uint16) (int, bool, error) {
	if len(m.frames) >= MaxCallDepth {
		return 0, false, NewRuntimeError(ErrorStackOverflow, pc, "call depth exceeds %d", MaxCallDepth)
	}
	base, err := m.args(pc, frameBytes)
	if err != nil {
		return 0, false, err
	}
	m.frames = append(m.frames, &frame{paramBase: base, retPC: next})
	return target, false, nil
}

func (m *Machine) callKernel(pc int, index, frameBytes uint16) error {
	k, ok := m.kernels[index]
	if !ok {
		return NewRuntimeError(ErrorUndefinedKernel, pc, "kernel %d", index)
	}
	base, err := m.args(pc, frameBytes)
	if err != nil {
		return err
	}
	argc := int(m.stack[base])
	args := append([]uint16(nil), m.stack[base+1:base+1+argc]...)
	m.acc = k(args)
	m.stack = m.stack[:base]
	return nil
}

func (m *Machine) ret() (int, bool, error) {
	f := m.frames[len(m.frames)-1]
	m.frames = m.frames[:len(m.frames)-1]
	m.stack = m.stack[:f.paramBase]
	if len(m.frames) == 0 {
		return 0, true, nil
	}
	return f.retPC, false, nil
}

// rest pushes the current parameters from index on.
func (m *Machine) rest(pc, index int) error {
	f := m.frames[len(m.frames)-1]
	argc := f.argc(m)
	for i := index; i <= argc; i++ {
		if err := m.push(pc, m.stack[f.paramBase+i]); err != nil {
			return err
		}
		m.restAdjust++
	}
	return nil
}

// slot returns the storage of a variable.
func (m *Machine) slot(pc int, t opcode.VarType, index int) (*uint16, error) {
	f := m.frames[len(m.frames)-1]
	var block []uint16
	switch t {
	case opcode.Global:
		block = m.Globals
	case opcode.Local:
		block = m.Locals
	case opcode.Temp:
		if index >= f.temps {
			return nil, NewRuntimeError(ErrorIndexOutOfRange, pc, "temp %d of %d", index, f.temps)
		}
		return &m.stack[f.tempBase+index], nil
	case opcode.Param:
		if index > f.argc(m) {
			return nil, NewRuntimeError(ErrorIndexOutOfRange, pc, "param %d of %d", index, f.argc(m))
		}
		return &m.stack[f.paramBase+index], nil
	}
	if index < 0 || index >= len(block) {
		return nil, NewRuntimeError(ErrorIndexOutOfRange, pc, "variable %d of %d", index, len(block))
	}
	return &block[index], nil
}

func (m *Machine) variable(pc int, op opcode.Opcode, operand uint16) error {
	t, access, stack, indexed := opcode.VarParts(op)
	index := int(operand)
	if indexed {
		index += int(m.acc)
	}
	v, err := m.slot(pc, t, index)
	if err != nil {
		return err
	}
	switch access {
	case opcode.Store:
		// indexed acc stores take the value from the stack, the index being in acc
		if stack || indexed {
			val, err := m.pop(pc)
			if err != nil {
				return err
			}
			if !stack {
				m.acc = val
			}
			*v = val
			return nil
		}
		*v = m.acc
		return nil
	case opcode.Inc:
		*v++
	case opcode.Dec:
		*v--
	}
	if stack {
		return m.push(pc, *v)
	}
	m.acc = *v
	return nil
}

func (m *Machine) property(pc int, op opcode.Opcode, offset uint16) error {
	i := int(offset / 2)
	if i >= len(m.Properties) {
		return NewRuntimeError(ErrorIndexOutOfRange, pc, "property %d of %d", i, len(m.Properties))
	}
	p := &m.Properties[i]
	switch op {
	case opcode.ATOP:
		*p = m.acc
		return nil
	case opcode.STOP:
		v, err := m.pop(pc)
		if err != nil {
			return err
		}
		*p = v
		return nil
	case opcode.IPTOA, opcode.IPTOS:
		*p++
	case opcode.DPTOA, opcode.DPTOS:
		*p--
	}
	switch op {
	case opcode.PTOS, opcode.IPTOS, opcode.DPTOS:
		return m.push(pc, *p)
	}
	m.acc = *p
	return nil
}
