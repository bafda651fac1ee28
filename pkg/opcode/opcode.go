// Package opcode defines the SCI p-code instruction set.
// This package is the foundation that both the compiler and the reference VM depend on.
// The compiler emits Opcode sequences, the assembler encodes them, and the VM executes them.
package opcode

import "fmt"

// Opcode is an SCI instruction number in the range 0..127.
// The encoded byte is (Opcode << 1) | byteForm.
type Opcode uint8

// Fixed opcodes. Numbers without a constant are unused in SCI0.
const (
	BNOT Opcode = 0x00
	ADD  Opcode = 0x01
	SUB  Opcode = 0x02
	MUL  Opcode = 0x03
	DIV  Opcode = 0x04
	MOD  Opcode = 0x05
	SHR  Opcode = 0x06
	SHL  Opcode = 0x07
	XOR  Opcode = 0x08
	AND  Opcode = 0x09
	OR   Opcode = 0x0a
	NEG  Opcode = 0x0b
	NOT  Opcode = 0x0c
	EQ   Opcode = 0x0d
	NE   Opcode = 0x0e
	GT   Opcode = 0x0f
	GE   Opcode = 0x10
	LT   Opcode = 0x11
	LE   Opcode = 0x12
	UGT  Opcode = 0x13
	UGE  Opcode = 0x14
	ULT  Opcode = 0x15
	ULE  Opcode = 0x16

	BT  Opcode = 0x17
	BNT Opcode = 0x18
	JMP Opcode = 0x19

	LDI   Opcode = 0x1a
	PUSH  Opcode = 0x1b
	PUSHI Opcode = 0x1c
	TOSS  Opcode = 0x1d
	DUP   Opcode = 0x1e
	LINK  Opcode = 0x1f

	CALL  Opcode = 0x20
	CALLK Opcode = 0x21
	CALLB Opcode = 0x22
	CALLE Opcode = 0x23
	RET   Opcode = 0x24
	SEND  Opcode = 0x25

	CLASS  Opcode = 0x28
	SELF   Opcode = 0x2a
	SUPER  Opcode = 0x2b
	REST   Opcode = 0x2c
	LEA    Opcode = 0x2d
	SELFID Opcode = 0x2e

	PPREV Opcode = 0x30
	PTOA  Opcode = 0x31
	ATOP  Opcode = 0x32
	PTOS  Opcode = 0x33
	STOP  Opcode = 0x34
	IPTOA Opcode = 0x35
	DPTOA Opcode = 0x36
	IPTOS Opcode = 0x37
	DPTOS Opcode = 0x38
	LOFSA Opcode = 0x39
	LOFSS Opcode = 0x3a

	PUSH0    Opcode = 0x3b
	PUSH1    Opcode = 0x3c
	PUSH2    Opcode = 0x3d
	PUSHSELF Opcode = 0x3e

	// VarBase is the first variable load/store opcode. Opcodes 0x40..0x7f
	// are composed with Var.
	VarBase Opcode = 0x40

	// Indeterminate marks a placeholder that must be replaced before assembly.
	Indeterminate Opcode = 0xff
)

// OperandKind describes how one operand is encoded.
type OperandKind uint8

const (
	// Var operands are 16-bit in the word form and 8-bit in the byte form.
	Var OperandKind = iota + 1
	// Byte operands are always 8-bit.
	Byte
	// Word operands are always 16-bit. Instructions carrying one are never
	// encoded in the byte form.
	Word
	// Branch is a 16-bit signed offset relative to the following instruction.
	Branch
)

type info struct {
	name     string
	operands []OperandKind
}

var table = map[Opcode]info{
	BNOT: {"bnot", nil},
	ADD:  {"add", nil},
	SUB:  {"sub", nil},
	MUL:  {"mul", nil},
	DIV:  {"div", nil},
	MOD:  {"mod", nil},
	SHR:  {"shr", nil},
	SHL:  {"shl", nil},
	XOR:  {"xor", nil},
	AND:  {"and", nil},
	OR:   {"or", nil},
	NEG:  {"neg", nil},
	NOT:  {"not", nil},
	EQ:   {"eq?", nil},
	NE:   {"ne?", nil},
	GT:   {"gt?", nil},
	GE:   {"ge?", nil},
	LT:   {"lt?", nil},
	LE:   {"le?", nil},
	UGT:  {"ugt?", nil},
	UGE:  {"uge?", nil},
	ULT:  {"ult?", nil},
	ULE:  {"ule?", nil},

	BT:  {"bt", []OperandKind{Branch}},
	BNT: {"bnt", []OperandKind{Branch}},
	JMP: {"jmp", []OperandKind{Branch}},

	LDI:   {"ldi", []OperandKind{Word}},
	PUSH:  {"push", nil},
	PUSHI: {"pushi", []OperandKind{Word}},
	TOSS:  {"toss", nil},
	DUP:   {"dup", nil},
	LINK:  {"link", []OperandKind{Var}},

	CALL:  {"call", []OperandKind{Branch, Byte}},
	CALLK: {"callk", []OperandKind{Var, Byte}},
	CALLB: {"callb", []OperandKind{Var, Byte}},
	CALLE: {"calle", []OperandKind{Var, Var, Byte}},
	RET:   {"ret", nil},
	SEND:  {"send", []OperandKind{Byte}},

	CLASS:  {"class", []OperandKind{Var}},
	SELF:   {"self", []OperandKind{Byte}},
	SUPER:  {"super", []OperandKind{Var, Byte}},
	REST:   {"&rest", []OperandKind{Byte}},
	LEA:    {"lea", []OperandKind{Var, Var}},
	SELFID: {"selfID", nil},

	PPREV: {"pprev", nil},
	PTOA:  {"pToa", []OperandKind{Var}},
	ATOP:  {"aTop", []OperandKind{Var}},
	PTOS:  {"pTos", []OperandKind{Var}},
	STOP:  {"sTop", []OperandKind{Var}},
	IPTOA: {"ipToa", []OperandKind{Var}},
	DPTOA: {"dpToa", []OperandKind{Var}},
	IPTOS: {"ipTos", []OperandKind{Var}},
	DPTOS: {"dpTos", []OperandKind{Var}},
	LOFSA: {"lofsa", []OperandKind{Word}},
	LOFSS: {"lofss", []OperandKind{Word}},

	PUSH0:    {"push0", nil},
	PUSH1:    {"push1", nil},
	PUSH2:    {"push2", nil},
	PUSHSELF: {"pushSelf", nil},

	Indeterminate: {"INDETERMINATE", nil},
}

// Valid reports whether op is a defined instruction (placeholders excluded).
func (op Opcode) Valid() bool {
	if op.IsVar() {
		return true
	}
	_, ok := table[op]
	return ok && op != Indeterminate
}

// IsVar reports whether op is a variable load/store/inc/dec opcode.
func (op Opcode) IsVar() bool {
	return op >= VarBase && op < 0x80
}

// IsBranch reports whether op is bt, bnt or jmp.
func (op Opcode) IsBranch() bool {
	return op == BT || op == BNT || op == JMP
}

// Operands returns the operand kinds of op.
func (op Opcode) Operands() []OperandKind {
	if op.IsVar() {
		return []OperandKind{Var}
	}
	return table[op].operands
}

// String returns the assembler mnemonic.
func (op Opcode) String() string {
	if op.IsVar() {
		return varName(op)
	}
	if i, ok := table[op]; ok {
		return i.name
	}
	return fmt.Sprintf("op_%02x", uint8(op))
}

var byName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(table)+0x40)
	for op, i := range table {
		if op != Indeterminate {
			m[i.name] = op
		}
	}
	for op := VarBase; op < 0x80; op++ {
		m[varName(op)] = op
	}
	return m
}()

// Lookup returns the instruction with the given assembler mnemonic.
func Lookup(mnemonic string) (Opcode, bool) {
	op, ok := byName[mnemonic]
	return op, ok
}

// IsProperty reports whether op addresses a property of the current object.
func (op Opcode) IsProperty() bool {
	return op >= PTOA && op <= DPTOS
}

// ByteForm reports whether an instruction with these operand values can use
// the byte encoding. Only instructions whose operands are all Var or Byte
// qualify, and each Var operand must fit in 8 bits.
func ByteForm(op Opcode, operands []uint16) bool {
	kinds := op.Operands()
	hasVar := false
	for i, k := range kinds {
		switch k {
		case Word, Branch:
			return false
		case Var:
			hasVar = true
			if i < len(operands) && operands[i] > 0xff {
				return false
			}
		}
	}
	return hasVar
}

// Size returns the encoded size in bytes of op with the given operand values.
func Size(op Opcode, operands []uint16) int {
	byteForm := ByteForm(op, operands)
	size := 1
	for _, k := range op.Operands() {
		switch k {
		case Byte:
			size++
		case Var:
			if byteForm {
				size++
			} else {
				size += 2
			}
		default:
			size += 2
		}
	}
	return size
}

// Encode writes op and its operands (little endian) to dst.
func Encode(dst []byte, op Opcode, operands []uint16) []byte {
	byteForm := ByteForm(op, operands)
	b := byte(op) << 1
	if byteForm {
		b |= 1
	}
	dst = append(dst, b)
	for i, k := range op.Operands() {
		var v uint16
		if i < len(operands) {
			v = operands[i]
		}
		if k == Byte || (k == Var && byteForm) {
			dst = append(dst, byte(v))
		} else {
			dst = append(dst, byte(v), byte(v>>8))
		}
	}
	return dst
}

// Decode reads one instruction from src, returning the opcode, its operands and
// the number of bytes consumed.
func Decode(src []byte) (Opcode, []uint16, int, error) {
	if len(src) == 0 {
		return 0, nil, 0, fmt.Errorf("decode: empty input")
	}
	op := Opcode(src[0] >> 1)
	byteForm := src[0]&1 == 1
	if !op.Valid() {
		return 0, nil, 0, fmt.Errorf("decode: invalid opcode 0x%02x", src[0])
	}
	n := 1
	var operands []uint16
	for _, k := range op.Operands() {
		width := 2
		if k == Byte || (k == Var && byteForm) {
			width = 1
		}
		if n+width > len(src) {
			return 0, nil, 0, fmt.Errorf("decode: truncated %s operand", op)
		}
		if width == 1 {
			operands = append(operands, uint16(src[n]))
		} else {
			operands = append(operands, uint16(src[n])|uint16(src[n+1])<<8)
		}
		n += width
	}
	return op, operands, n, nil
}
