package codegen

import (
	"fmt"

	"github.com/zurustar/scic/pkg/opcode"
)

// Program is a finalized buffer: instructions in program order with
// addresses assigned and branch and local call offsets resolved.
type Program struct {
	Instructions []Instruction
	Size         int
	// Labels maps procedure labels to their addresses.
	Labels map[string]uint16
	index  map[Pos]int
}

// Address returns the address of the instruction at p.
func (p *Program) Address(pos Pos) (uint16, bool) {
	i, ok := p.index[pos]
	if !ok {
		return 0, false
	}
	return p.Instructions[i].Address, true
}

// Finalize lays out the code. It fails when a forward jump never got a
// target, a placeholder was never replaced, or a local call names no label.
func (c *Code) Finalize() (*Program, error) {
	if c.HasDanglingBranches() {
		return nil, fmt.Errorf("finalize: dangling branches at end of code")
	}
	prog := &Program{Labels: map[string]uint16{}, index: map[Pos]int{}}
	addr := 0
	for p := c.head; p != NoPos; p = c.nodes[p].next {
		in := c.nodes[p].instr
		if in.Op == opcode.Indeterminate {
			return nil, fmt.Errorf("finalize: unresolved placeholder (line %d)", in.Line)
		}
		if !in.Op.Valid() {
			return nil, fmt.Errorf("finalize: invalid opcode 0x%02x (line %d)", uint8(in.Op), in.Line)
		}
		in.Operands = append([]uint16(nil), in.Operands...)
		for len(in.Operands) < len(in.Op.Operands()) {
			in.Operands = append(in.Operands, 0)
		}
		in.Address = uint16(addr)
		in.Size = opcode.Size(in.Op, in.Operands)
		addr += in.Size
		if addr > 0xffff {
			return nil, fmt.Errorf("finalize: code exceeds 64K (line %d)", in.Line)
		}
		prog.index[p] = len(prog.Instructions)
		prog.Instructions = append(prog.Instructions, in)
	}
	prog.Size = addr

	for name, p := range c.labels {
		i, ok := prog.index[p]
		if !ok {
			return nil, fmt.Errorf("finalize: label %s points nowhere", name)
		}
		prog.Labels[name] = prog.Instructions[i].Address
	}

	for i := range prog.Instructions {
		in := &prog.Instructions[i]
		next := int(in.Address) + in.Size
		switch {
		case in.Op.IsBranch():
			j, ok := prog.index[in.Target]
			if in.Target == NoPos || !ok {
				return nil, fmt.Errorf("finalize: %s without target (line %d)", in.Op, in.Line)
			}
			in.Operands[0] = uint16(int(prog.Instructions[j].Address) - next)
		case in.Op == opcode.CALL:
			if in.Reloc.Kind != RelocLocalProc {
				return nil, fmt.Errorf("finalize: call without procedure (line %d)", in.Line)
			}
			target, ok := prog.Labels[in.Reloc.Name]
			if !ok {
				return nil, fmt.Errorf("finalize: call to undefined procedure %s (line %d)", in.Reloc.Name, in.Line)
			}
			in.Operands[0] = uint16(int(target) - next)
		}
	}
	return prog, nil
}
