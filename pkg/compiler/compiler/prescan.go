package compiler

import (
	"strconv"
	"strings"

	"github.com/zurustar/scic/pkg/compiler/ast"
	"github.com/zurustar/scic/pkg/compiler/codegen"
	"github.com/zurustar/scic/pkg/compiler/symbols"
	"github.com/zurustar/scic/pkg/compiler/types"
)

// unit holds what the pre-scan learned about the script being compiled.
type unit struct {
	defines   map[string]uint16
	vars      map[string]*variable
	varOrder  []*variable
	strings   map[string]*stringDecl
	procs     map[string]*ast.Procedure
	classes   map[string]*localClass
	objects   []*localClass
	bySpecies map[types.Species]*localClass
	uses      map[string]bool
	exports   []*ast.Export
}

// variable is a script variable or a function temp.
type variable struct {
	name  string
	index uint16
	// size is the number of words, 1 for scalars
	size  uint16
	array bool
	typ   types.Species
	decl  *ast.VarDecl
}

type stringDecl struct {
	entry int
	decl  *ast.VarDecl
}

// localClass is a class or instance defined by the script.
type localClass struct {
	decl *ast.Class
	// class is the complete layout; for an instance it is the layout of its class.
	class   *symbols.Class
	super   *symbols.Class
	species types.Species
	index   uint16
	methods map[string]*ast.Method
}

// Constant is a value known at compile time. When Reloc is RelocString or
// RelocSaid, Value is a string table index.
type Constant struct {
	Value uint16
	Reloc codegen.RelocKind
}

func (k Constant) species() types.Species {
	switch k.Reloc {
	case codegen.RelocString:
		return types.String
	case codegen.RelocSaid:
		return types.Said
	}
	return types.Int
}

func (c *Compiler) prescan(s *ast.Script) *unit {
	u := &unit{
		defines:   map[string]uint16{"true": 1, "false": 0, "null": 0},
		vars:      map[string]*variable{},
		strings:   map[string]*stringDecl{},
		procs:     map[string]*ast.Procedure{},
		classes:   map[string]*localClass{},
		bySpecies: map[types.Species]*localClass{},
		uses:      map[string]bool{},
	}
	c.unit = u
	for _, name := range s.Uses {
		u.uses[name] = true
	}
	for _, d := range s.Defines {
		if _, dup := u.defines[d.Name]; dup {
			c.addError(d.Pos, "'%s' is already defined.", d.Name)
			continue
		}
		u.defines[d.Name] = d.Value
	}

	// Names first: initializers and layouts may refer to anything declared.
	for _, p := range s.Procedures {
		c.prescanProcedure(p)
	}
	c.prescanClasses(s.Classes)
	for _, p := range s.Procedures {
		if p.Class == "" {
			continue
		}
		if p.Public {
			c.addError(p.Pos, "Class procedures cannot be public: '%s'.", p.Class)
		}
		if _, ok := c.classByName(p.Class); !ok {
			c.addError(p.Pos, "Can't find class '%s'.", p.Class)
		}
	}

	var next uint16
	for _, d := range s.Variables {
		if v := c.prescanVariable(d, next, "variable"); v != nil {
			if c.isDeclared(d.Name) {
				c.addError(d.Pos, "'%s' is already defined.", d.Name)
				continue
			}
			u.vars[d.Name] = v
			u.varOrder = append(u.varOrder, v)
			next += v.size
		}
	}
	for _, d := range s.Strings {
		c.prescanString(d)
	}
	c.prescanExports(s)
	return u
}

// isDeclared reports whether name is already a script-level symbol.
func (c *Compiler) isDeclared(name string) bool {
	u := c.unit
	if _, ok := u.vars[name]; ok {
		return true
	}
	if _, ok := u.strings[name]; ok {
		return true
	}
	if _, ok := u.procs[name]; ok {
		return true
	}
	_, ok := u.classes[name]
	return ok
}

func (c *Compiler) prescanProcedure(p *ast.Procedure) {
	if !c.checkName(p.Pos, p.Name, "procedure") {
		return
	}
	if _, dup := c.unit.procs[p.Name]; dup {
		c.addError(p.Pos, "'%s' is already defined.", p.Name)
		return
	}
	c.unit.procs[p.Name] = p
}

// prescanVariable sizes a script variable or temp declared at index.
func (c *Compiler) prescanVariable(d *ast.VarDecl, index uint16, what string) *variable {
	if !c.checkName(d.Pos, d.Name, what) {
		return nil
	}
	if _, ok := c.unit.defines[d.Name]; ok {
		c.addError(d.Pos, "'%s' is already defined as a constant.", d.Name)
		return nil
	}
	v := &variable{name: d.Name, index: index, size: 1, typ: c.declaredType(d.Pos, d.Type), decl: d}
	switch {
	case d.SizeUnspecified:
		v.array = true
		v.size = uint16(max(len(d.Init), 1))
	case d.Size > 0:
		v.array = true
		v.size = d.Size
	}
	if len(d.Init) > int(v.size) {
		c.addError(d.Pos, "Too many initializers (%d) for variable '%s'[%d].", len(d.Init), d.Name, v.size)
	}
	return v
}

func (c *Compiler) prescanString(d *ast.VarDecl) {
	if !c.checkName(d.Pos, d.Name, "string") {
		return
	}
	if c.isDeclared(d.Name) {
		c.addError(d.Pos, "'%s' is already defined.", d.Name)
		return
	}
	var text string
	if len(d.Init) > 0 {
		v, ok := d.Init[0].(*ast.Value)
		if !ok || v.Kind != ast.String || len(d.Init) > 1 {
			c.addError(d.Pos, "String '%s' must be initialized with a single string.", d.Name)
			return
		}
		text = v.Text
	}
	if d.Size > 0 {
		need := len(text) + 1
		if int(d.Size) < need {
			c.addError(d.Pos, "String size is %d, but requires %d characters.", d.Size, need)
			return
		}
		text += strings.Repeat("\x00", int(d.Size)-need)
	}
	c.unit.strings[d.Name] = &stringDecl{entry: c.strings.Add(codegen.RelocString, text), decl: d}
}

// declaredType resolves a type annotation. Unknown names are reported and
// typed Any.
func (c *Compiler) declaredType(pos ast.Pos, name string) types.Species {
	if s, ok := types.Builtin(name); ok {
		return s
	}
	if lc, ok := c.unit.classes[name]; ok && !lc.decl.Instance {
		return lc.species
	}
	if cls, ok := c.db.Class(name); ok {
		return types.Species(cls.Species)
	}
	c.addError(pos, "Unknown type '%s'.", name)
	return types.Any
}

func (c *Compiler) prescanClasses(decls []*ast.Class) {
	u := c.unit
	nextSpecies := c.db.NextSpecies()
	for _, d := range decls {
		if !c.checkName(d.Pos, d.Name, "class") {
			continue
		}
		if _, dup := u.classes[d.Name]; dup || u.procs[d.Name] != nil {
			c.addError(d.Pos, "'%s' is already defined.", d.Name)
			continue
		}
		lc := &localClass{decl: d, index: uint16(len(u.objects)), methods: map[string]*ast.Method{}}
		if !d.Instance {
			if known, ok := c.db.Class(d.Name); ok && known.Script == c.script.Number {
				lc.species = types.Species(known.Species)
			} else {
				lc.species = types.Species(nextSpecies)
				nextSpecies++
			}
			u.bySpecies[lc.species] = lc
		}
		u.classes[d.Name] = lc
		u.objects = append(u.objects, lc)
	}
	visiting := map[string]bool{}
	for _, lc := range u.objects {
		c.layoutClass(lc, visiting)
	}
}

// layoutClass builds the property and method layout of lc from its superclass.
func (c *Compiler) layoutClass(lc *localClass, visiting map[string]bool) *symbols.Class {
	if lc.class != nil {
		return lc.class
	}
	d := lc.decl
	if visiting[d.Name] {
		c.addError(d.Pos, "Class '%s' inherits from itself.", d.Name)
		return nil
	}
	visiting[d.Name] = true
	defer delete(visiting, d.Name)

	var super *symbols.Class
	if d.Super != "" {
		if other, ok := c.unit.classes[d.Super]; ok {
			if other.decl.Instance {
				c.addError(d.Pos, "'%s' is an instance and cannot be used as a superclass.", d.Super)
			} else {
				super = c.layoutClass(other, visiting)
			}
		} else if cls, ok := c.db.Class(d.Super); ok && c.visibleScript(cls.Script) {
			super = cls
		} else {
			c.addErrorHint(d.Pos, c.useHint(d.Super), "Unknown superclass '%s'.", d.Super)
		}
	} else if d.Instance {
		c.addError(d.Pos, "Instance '%s' needs a class.", d.Name)
	}
	lc.super = super

	if d.Instance {
		lc.class = &symbols.Class{Name: d.Name, Script: c.script.Number}
		if super != nil {
			lc.class.Species = super.Species
			lc.species = types.Species(super.Species)
			lc.class.Properties = append(lc.class.Properties, super.Properties...)
			lc.class.Methods = append(lc.class.Methods, super.Methods...)
		}
	} else {
		lc.class = &symbols.Class{Name: d.Name, Species: uint16(lc.species), Super: d.Super, Script: c.script.Number}
		if super != nil {
			lc.class.Properties = append(lc.class.Properties, super.Properties...)
			lc.class.Methods = append(lc.class.Methods, super.Methods...)
		}
	}

	seen := map[string]bool{}
	for _, p := range d.Properties {
		if seen[p.Name] {
			c.addError(p.Pos, "Duplicate property name: %s", p.Name)
			continue
		}
		seen[p.Name] = true
		sel, ok := c.db.Selector(p.Name)
		if !ok {
			c.addError(p.Pos, "'%s' is not a known selector.", p.Name)
			continue
		}
		if _, ok := lc.class.PropertyIndex(sel); ok {
			continue
		}
		if d.Instance {
			c.addError(p.Pos, "'%s' is not a property of class '%s'.", p.Name, d.Super)
			continue
		}
		lc.class.Properties = append(lc.class.Properties, symbols.Property{Name: p.Name, Selector: sel, Type: types.Any})
	}
	for _, m := range d.Methods {
		if _, ok := c.db.Selector(m.Name); !ok {
			c.addError(m.Pos, "'%s' is not a known selector.", m.Name)
		}
		if _, dup := lc.methods[m.Name]; dup {
			c.addWarning(m.Pos, "'%s' is already defined on '%s'.", m.Name, d.Name)
			continue
		}
		lc.methods[m.Name] = m
		if !lc.class.HasMethod(m.Name) {
			lc.class.Methods = append(lc.class.Methods, m.Name)
		}
	}
	return lc.class
}

func (c *Compiler) prescanExports(s *ast.Script) {
	u := c.unit
	if len(s.Exports) == 0 {
		slot := 0
		for _, p := range s.Procedures {
			if p.Public && p.Class == "" {
				u.exports = append(u.exports, &ast.Export{Pos: p.Pos, Slot: slot, Name: p.Name})
				slot++
			}
		}
		for _, d := range s.Classes {
			if d.Public {
				u.exports = append(u.exports, &ast.Export{Pos: d.Pos, Slot: slot, Name: d.Name})
				slot++
			}
		}
		return
	}
	slots := map[int]bool{}
	for _, e := range s.Exports {
		if slots[e.Slot] {
			c.addError(e.Pos, "Export slot %d is already used.", e.Slot)
			continue
		}
		slots[e.Slot] = true
		if p, ok := u.procs[e.Name]; ok {
			if !p.Public {
				c.addError(e.Pos, "'%s' is not public and cannot be exported.", e.Name)
				continue
			}
		} else if lc, ok := u.classes[e.Name]; ok {
			if !lc.decl.Public {
				c.addError(e.Pos, "'%s' is not public and cannot be exported.", e.Name)
				continue
			}
		} else {
			c.addError(e.Pos, "Unknown export '%s'.", e.Name)
			continue
		}
		u.exports = append(u.exports, e)
	}
}

// constant evaluates a compile-time value: a number, string, said, selector
// literal or define.
func (c *Compiler) constant(e ast.Expr) (Constant, bool) {
	v, ok := e.(*ast.Value)
	if !ok || v.Indexer != nil {
		return Constant{}, false
	}
	switch v.Kind {
	case ast.Number:
		return Constant{Value: v.Number}, true
	case ast.String:
		return Constant{Value: uint16(c.strings.Add(codegen.RelocString, v.Text)), Reloc: codegen.RelocString}, true
	case ast.Said:
		return Constant{Value: uint16(c.strings.Add(codegen.RelocSaid, saidText(v.Text))), Reloc: codegen.RelocSaid}, true
	case ast.Selector:
		if sel, ok := c.db.Selector(v.Text); ok {
			return Constant{Value: sel}, true
		}
	case ast.Token:
		if n, ok := c.define(v.Text); ok {
			return Constant{Value: n}, true
		}
	}
	return Constant{}, false
}

// define looks a constant up in the script and then in the database.
func (c *Compiler) define(name string) (uint16, bool) {
	if n, ok := c.unit.defines[name]; ok {
		return n, true
	}
	return c.db.Define(name)
}

// saidText removes the whitespace of a said spec.
func saidText(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// visibleScript reports whether public symbols of script n may be used:
// it is this script or named by a use.
func (c *Compiler) visibleScript(n uint16) bool {
	if n == c.script.Number {
		return true
	}
	if c.unit.uses[strconv.Itoa(int(n))] {
		return true
	}
	name, ok := c.db.ScriptName(n)
	return ok && c.unit.uses[name]
}

// useHint suggests the use that would make name visible.
func (c *Compiler) useHint(name string) string {
	var script uint16
	switch {
	case c.lookupDBProc(name, &script):
	case c.lookupDBInstance(name, &script):
	case c.lookupDBClass(name, &script):
	default:
		return ""
	}
	if c.visibleScript(script) {
		return ""
	}
	if n, ok := c.db.ScriptName(script); ok {
		return `Did you forget to use "` + n + `"?`
	}
	return `Did you forget to use "` + strconv.Itoa(int(script)) + `"?`
}

func (c *Compiler) lookupDBProc(name string, script *uint16) bool {
	p, ok := c.db.Procedure(name)
	if ok {
		*script = p.Script
	}
	return ok
}

func (c *Compiler) lookupDBInstance(name string, script *uint16) bool {
	in, ok := c.db.Instance(name)
	if ok {
		*script = in.Script
	}
	return ok
}

func (c *Compiler) lookupDBClass(name string, script *uint16) bool {
	cls, ok := c.db.Class(name)
	if ok {
		*script = cls.Script
	}
	return ok
}
