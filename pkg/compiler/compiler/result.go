package compiler

import (
	"github.com/zurustar/scic/pkg/compiler/ast"
	"github.com/zurustar/scic/pkg/compiler/codegen"
	"github.com/zurustar/scic/pkg/compiler/symbols"
)

// Result is the output of compiling one script.
type Result struct {
	Script *ast.Script
	// Program is nil when errors were reported.
	Program *codegen.Program
	Strings *codegen.StringTable
	Exports []symbols.Export
	// Procedures maps local procedure names to entry addresses.
	Procedures map[string]uint16
	// Methods maps "Class::method" to entry addresses.
	Methods map[string]uint16
	Objects []*Object
	// Locals are the initial values of the script variables.
	Locals []Constant
	// Code is the unfinalized buffer, for listings of failed units.
	Code        *codegen.Code
	Diagnostics []*Diagnostic
}

// HasErrors reports whether any error or internal error was reported.
func (r *Result) HasErrors() bool {
	return hasErrors(r.Diagnostics)
}

// Rejected reports whether an internal error was reported.
func (r *Result) Rejected() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityInternal {
			return true
		}
	}
	return false
}

// Object is the layout of a class or instance defined by the script.
type Object struct {
	Name     string
	Index    uint16
	Instance bool
	Public   bool
	Species  uint16
	// Super is the superclass species; HasSuper is false for root classes.
	Super      uint16
	HasSuper   bool
	Properties []ObjectProperty
	Methods    []ObjectMethod
}

// ObjectProperty is a property slot with its initial value.
type ObjectProperty struct {
	Name     string
	Selector uint16
	Constant
}

// ObjectMethod is a method the object defines, with its entry address.
type ObjectMethod struct {
	Name     string
	Selector uint16
	Address  uint16
	entry    codegen.Pos
}
