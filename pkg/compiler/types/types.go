// Package types implements the small static type system of SCI scripts.
// Builtin types are negative; class species numbers are used directly for objects.
package types

import "fmt"

// Species is a static type. Non-negative values are class species numbers.
type Species int32

const (
	Any Species = -1 - iota
	Void
	None
	Int
	UInt
	Bool
	String
	Said
	Selector
	Pointer
	// Invalid is the type of an expression that already produced an error.
	// It matches everything so one mistake is reported once.
	Invalid
)

var builtinNames = map[Species]string{
	Any:      "var",
	Void:     "void",
	None:     "none",
	Int:      "int",
	UInt:     "uint",
	Bool:     "bool",
	String:   "string",
	Said:     "said",
	Selector: "selector",
	Pointer:  "pointer",
	Invalid:  "invalid",
}

var builtinByName = map[string]Species{
	"":         Any,
	"var":      Any,
	"void":     Void,
	"int":      Int,
	"uint":     UInt,
	"bool":     Bool,
	"string":   String,
	"said":     Said,
	"selector": Selector,
	"pointer":  Pointer,
	"k":        Pointer,
}

// IsClass reports whether s is a class species.
func (s Species) IsClass() bool { return s >= 0 }

// Builtin returns the builtin type with the given name.
func Builtin(name string) (Species, bool) {
	s, ok := builtinByName[name]
	return s, ok
}

// Hierarchy answers questions about class species.
type Hierarchy interface {
	// SuperSpecies returns the superclass species of a class species.
	SuperSpecies(s Species) (Species, bool)
	// SpeciesName returns the class name of a class species.
	SpeciesName(s Species) string
}

// Name returns a readable name for s.
func Name(s Species, h Hierarchy) string {
	if n, ok := builtinNames[s]; ok {
		return n
	}
	if h != nil {
		if n := h.SpeciesName(s); n != "" {
			return n
		}
	}
	return fmt.Sprintf("species %d", int32(s))
}

func numeric(s Species) bool {
	return s == Int || s == UInt || s == Bool || s == Selector
}

// Match reports whether a value of type src may be stored where dest is expected.
func Match(dest, src Species, h Hierarchy) bool {
	if dest == Invalid || src == Invalid {
		return true
	}
	if src == Void || dest == Void {
		return src == dest
	}
	if dest == Any || src == Any {
		return true
	}
	if src == None || dest == None {
		return src == dest
	}
	switch {
	case numeric(dest):
		return numeric(src)
	case dest == String:
		return src == String || src == Pointer
	case dest == Said:
		return src == Said || src == Pointer
	case dest == Pointer:
		return src == String || src == Said || src == Pointer || src.IsClass()
	}
	// dest is a class: src must be that class or a subclass.
	if !src.IsClass() {
		return false
	}
	seen := 0
	for s := src; s.IsClass() && seen < 256; seen++ {
		if s == dest {
			return true
		}
		if h == nil {
			return false
		}
		super, ok := h.SuperSpecies(s)
		if !ok || super == s {
			return false
		}
		s = super
	}
	return false
}

// Truthy reports whether a value of type s can be tested in a condition.
func Truthy(s Species) bool {
	return s != Void && s != None
}
