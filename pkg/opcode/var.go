package opcode

import "strings"

// VarType selects the variable block a variable opcode addresses.
type VarType uint8

const (
	Global VarType = iota
	Local
	Temp
	Param
)

// Access selects what a variable opcode does with its variable.
type Access uint8

const (
	Load Access = iota
	Store
	Inc
	Dec
)

// VarOp composes a variable opcode.
// Layout: 0x40 | access<<4 | indexed<<3 | stack<<2 | type.
func VarOp(t VarType, a Access, stack, indexed bool) Opcode {
	op := VarBase | Opcode(a)<<4 | Opcode(t)
	if indexed {
		op |= 0x08
	}
	if stack {
		op |= 0x04
	}
	return op
}

// VarParts splits a variable opcode into its components.
func VarParts(op Opcode) (t VarType, a Access, stack, indexed bool) {
	t = VarType(op & 0x03)
	a = Access((op >> 4) & 0x03)
	stack = op&0x04 != 0
	indexed = op&0x08 != 0
	return
}

func varName(op Opcode) string {
	t, a, stack, indexed := VarParts(op)
	var sb strings.Builder
	sb.WriteByte("ls+-"[a])
	if stack {
		sb.WriteByte('s')
	} else {
		sb.WriteByte('a')
	}
	sb.WriteByte("gltp"[t])
	if indexed {
		sb.WriteByte('i')
	}
	return sb.String()
}

// PropertyOp returns the property opcode for an access on the current object.
// Stores always take their value from the accumulator (aTop) unless stack is
// set (sTop).
func PropertyOp(a Access, stack bool) Opcode {
	switch a {
	case Store:
		if stack {
			return STOP
		}
		return ATOP
	case Inc:
		if stack {
			return IPTOS
		}
		return IPTOA
	case Dec:
		if stack {
			return DPTOS
		}
		return DPTOA
	}
	if stack {
		return PTOS
	}
	return PTOA
}
