package codegen

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/zurustar/scic/pkg/opcode"
)

// LookupEncoding returns the character set used for the string table.
// The empty name selects code page 437, the DOS default.
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(name) {
	case "", "cp437", "ibm437":
		return charmap.CodePage437, nil
	case "cp850", "ibm850":
		return charmap.CodePage850, nil
	case "cp1252", "windows-1252":
		return charmap.Windows1252, nil
	case "shift-jis", "shift_jis", "sjis":
		return japanese.ShiftJIS, nil
	}
	return nil, fmt.Errorf("unknown encoding: %s", name)
}

// StringEntry is one string or said spec of the string table.
type StringEntry struct {
	Kind RelocKind
	Text string
	// Offset is the entry's position in the assembled image.
	Offset uint16
}

type stringKey struct {
	kind RelocKind
	text string
}

// StringTable collects the strings and said specs a script references.
// Identical entries are stored once.
type StringTable struct {
	entries []StringEntry
	index   map[stringKey]int
}

// NewStringTable returns an empty table.
func NewStringTable() *StringTable {
	return &StringTable{index: map[stringKey]int{}}
}

// Add returns the index of the entry, adding it if needed.
func (t *StringTable) Add(kind RelocKind, text string) int {
	key := stringKey{kind, text}
	if i, ok := t.index[key]; ok {
		return i
	}
	t.entries = append(t.entries, StringEntry{Kind: kind, Text: text})
	t.index[key] = len(t.entries) - 1
	return len(t.entries) - 1
}

// Len returns the number of entries.
func (t *StringTable) Len() int { return len(t.entries) }

// Relocation is an operand the loader must fix up.
type Relocation struct {
	Offset uint16
	Kind   RelocKind
	Name   string
	Index  uint16
}

// Image is assembled code followed by the string table.
type Image struct {
	Bytes       []byte
	CodeSize    int
	Strings     []StringEntry
	Relocations []Relocation
}

// Assemble encodes a finalized program. String references (lofsa/lofss) are
// made relative to the following instruction; object references are left as
// indices and listed as relocations.
func Assemble(prog *Program, table *StringTable, enc encoding.Encoding) (*Image, error) {
	img := &Image{CodeSize: prog.Size}

	var data []byte
	offsets := make([]int, 0, table.Len())
	for _, e := range table.entries {
		encoded, _, err := transform.String(enc.NewEncoder(), e.Text)
		if err != nil {
			return nil, fmt.Errorf("assemble: cannot encode %q: %w", e.Text, err)
		}
		offsets = append(offsets, prog.Size+len(data))
		data = append(data, encoded...)
		data = append(data, 0)
	}
	if prog.Size+len(data) > 0xffff {
		return nil, fmt.Errorf("assemble: script exceeds 64K")
	}
	for i, e := range table.entries {
		e.Offset = uint16(offsets[i])
		img.Strings = append(img.Strings, e)
	}

	code := make([]byte, 0, prog.Size+len(data))
	for _, in := range prog.Instructions {
		operands := in.Operands
		switch in.Reloc.Kind {
		case RelocString, RelocSaid:
			i := int(operands[0])
			if i >= len(offsets) {
				return nil, fmt.Errorf("assemble: string %d out of range (line %d)", i, in.Line)
			}
			operands = append([]uint16(nil), operands...)
			operands[0] = uint16(offsets[i] - (int(in.Address) + in.Size))
		case RelocObject:
			img.Relocations = append(img.Relocations, Relocation{
				Offset: in.Address + 1,
				Kind:   RelocObject,
				Name:   in.Reloc.Name,
				Index:  operands[0],
			})
		}
		code = opcode.Encode(code, in.Op, operands)
	}
	if len(code) != prog.Size {
		return nil, fmt.Errorf("assemble: encoded %d bytes, expected %d", len(code), prog.Size)
	}
	img.Bytes = append(code, data...)
	return img, nil
}
