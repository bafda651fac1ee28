package ast

// Script is one compile unit.
type Script struct {
	Pos
	Number uint16
	Name   string
	// Uses lists the scripts whose public symbols this script imports.
	Uses       []string
	Defines    []*Define
	Variables  []*VarDecl
	Strings    []*VarDecl
	Procedures []*Procedure
	Classes    []*Class
	// Exports assigns export slots explicitly. When empty the public
	// procedures and instances are exported in declaration order.
	Exports []*Export
	// Source is the original source text, used for error context only.
	Source string
}

func (s *Script) String() string { return s.Name }

// Define is a named constant.
type Define struct {
	Pos
	Name  string
	Value uint16
}

func (d *Define) String() string { return d.Name }

// VarDecl declares a script variable, a string or a function temp.
// Size is zero for scalars. Init holds the initial values.
type VarDecl struct {
	Pos
	Name string
	Type string
	Size uint16
	// SizeUnspecified marks an array declared as name[] whose size comes
	// from the initializers.
	SizeUnspecified bool
	Init            []Expr
}

func (d *VarDecl) String() string { return d.Name }

// Param is a function parameter.
type Param struct {
	Pos
	Name string
	Type string
}

func (p *Param) String() string { return p.Name }

// Function holds what procedures and methods share.
type Function struct {
	Pos
	Name       string
	Params     []*Param
	Temps      []*VarDecl
	ReturnType string
	Body       []Expr
}

// Procedure is a script-level function. Class is set for class procedures,
// which may only be called from methods of that class.
type Procedure struct {
	Function
	Public bool
	Class  string
}

func (p *Procedure) String() string { return p.Name }

// Method is a function belonging to a class or instance.
type Method struct {
	Function
}

func (m *Method) String() string { return m.Name }

// Property is a property declaration with its initial value.
type Property struct {
	Pos
	Name  string
	Value Expr
}

func (p *Property) String() string { return p.Name }

// Class declares a class or, when Instance is set, an instance of Super.
type Class struct {
	Pos
	Name       string
	Super      string
	Instance   bool
	Public     bool
	Properties []*Property
	Methods    []*Method
}

func (c *Class) String() string { return c.Name }

// Export binds an export slot to a public procedure or instance.
type Export struct {
	Pos
	Slot int
	Name string
}

func (e *Export) String() string { return e.Name }
