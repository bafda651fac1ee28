// Package symbols provides the project-wide symbol database the code generator
// resolves names against: selectors, the class table, kernel functions, public
// procedures and instances of other scripts, globals and defines.
package symbols

import "github.com/zurustar/scic/pkg/compiler/types"

// ProcKind is how a procedure is reached from a call site.
type ProcKind int

const (
	ProcUnknown ProcKind = iota
	// ProcLocal is a procedure of the script being compiled (call).
	ProcLocal
	// ProcMain is a public procedure of script 0 (callb).
	ProcMain
	// ProcExternal is a public procedure of another script (calle).
	ProcExternal
	// ProcKernel is an interpreter function (callk).
	ProcKernel
)

func (k ProcKind) String() string {
	switch k {
	case ProcLocal:
		return "local"
	case ProcMain:
		return "main"
	case ProcExternal:
		return "external"
	case ProcKernel:
		return "kernel"
	}
	return "unknown"
}

// Procedure is a public procedure of some script.
type Procedure struct {
	Name       string
	Script     uint16
	Index      uint16
	ReturnType types.Species
}

// Property is one slot of a class layout.
type Property struct {
	Name     string
	Selector uint16
	Type     types.Species
	Value    uint16
}

// Class is an entry of the class table. Properties is the complete layout,
// inherited properties first.
type Class struct {
	Name       string
	Species    uint16
	Super      string
	Script     uint16
	Properties []Property
	Methods    []string
}

// PropertyIndex returns the slot of the property with the given selector.
func (c *Class) PropertyIndex(selector uint16) (int, bool) {
	for i, p := range c.Properties {
		if p.Selector == selector {
			return i, true
		}
	}
	return 0, false
}

// HasMethod reports whether the class or one of its ancestors, as recorded
// in this entry, responds to the method.
func (c *Class) HasMethod(name string) bool {
	for _, m := range c.Methods {
		if m == name {
			return true
		}
	}
	return false
}

// Instance is a public instance of another script.
type Instance struct {
	Name   string
	Script uint16
	Index  uint16
	Class  string
}

// Variable is a global variable.
type Variable struct {
	Name  string
	Index uint16
	Type  types.Species
	Size  uint16
}

//go:generate mockgen -write_package_comment=false -package=compiler -destination=../compiler/mock_database_test.go github.com/zurustar/scic/pkg/compiler/symbols Database

// Database is the read-only view of the project symbols used while compiling.
// Implementations must be safe for concurrent readers.
type Database interface {
	Selector(name string) (uint16, bool)
	SelectorName(id uint16) (string, bool)
	Class(name string) (*Class, bool)
	ClassBySpecies(species uint16) (*Class, bool)
	// NextSpecies is the species number the next new class would receive.
	NextSpecies() uint16
	Instance(name string) (*Instance, bool)
	Procedure(name string) (*Procedure, bool)
	Kernel(name string) (uint16, bool)
	Global(name string) (*Variable, bool)
	Define(name string) (uint16, bool)
	ScriptName(number uint16) (string, bool)
}
