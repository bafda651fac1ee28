package compiler

import (
	"github.com/zurustar/scic/pkg/compiler/ast"
	"github.com/zurustar/scic/pkg/compiler/codegen"
	"github.com/zurustar/scic/pkg/compiler/symbols"
	"github.com/zurustar/scic/pkg/compiler/types"
	"github.com/zurustar/scic/pkg/opcode"
)

type param struct {
	index uint16
	typ   types.Species
}

// function is the state of the procedure or method being lowered.
type function struct {
	name       string
	params     map[string]param
	temps      map[string]*variable
	tempOrder  []*variable
	tempWords  uint16
	returnType types.Species
	// class is the object of a method or the owner of a class procedure.
	class  *localClass
	method bool
}

func (c *Compiler) newFunction(f *ast.Function, class *localClass, method bool) *function {
	fn := &function{
		name:       f.Name,
		params:     map[string]param{},
		temps:      map[string]*variable{},
		returnType: types.Any,
		class:      class,
		method:     method,
	}
	if f.ReturnType != "" {
		fn.returnType = c.declaredType(f.Pos, f.ReturnType)
	}
	for i, p := range f.Params {
		if !c.checkName(p.Pos, p.Name, "parameter") {
			continue
		}
		if _, dup := fn.params[p.Name]; dup {
			c.addError(p.Pos, "Duplicate parameter name: %s", p.Name)
			continue
		}
		typ := types.Any
		if p.Type != "" {
			typ = c.declaredType(p.Pos, p.Type)
		}
		fn.params[p.Name] = param{index: uint16(i + 1), typ: typ}
	}
	for _, d := range f.Temps {
		v := c.prescanVariable(d, fn.tempWords, "variable")
		if v == nil {
			continue
		}
		_, isParam := fn.params[d.Name]
		_, isTemp := fn.temps[d.Name]
		switch {
		case isParam:
			c.addError(d.Pos, "'%s' is already defined as a parameter.", d.Name)
			continue
		case isTemp:
			c.addError(d.Pos, "'%s' is already defined.", d.Name)
			continue
		}
		if _, ok := c.unit.vars[d.Name]; ok {
			c.addError(d.Pos, "'%s' is already defined as a script variable.", d.Name)
			continue
		}
		fn.temps[d.Name] = v
		fn.tempOrder = append(fn.tempOrder, v)
		fn.tempWords += v.size
	}
	return fn
}

// emitFunction lowers a procedure or method and returns its entry.
func (c *Compiler) emitFunction(f *ast.Function, class *localClass, method bool) codegen.Pos {
	c.fn = c.newFunction(f, class, method)
	defer func() { c.fn = nil }()
	defer c.withOutput(ocAcc)()
	defer c.withMeaning(false)()
	defer c.withConditional(false)()
	defer c.withModifier(modNone)()

	c.code.SetLine(f.Line)
	before := c.code.Last()
	if c.fn.tempWords > 0 {
		c.code.Emit(opcode.LINK, c.fn.tempWords)
	}
	for _, v := range c.fn.tempOrder {
		for i, init := range v.decl.Init {
			r := c.toAcc(init)
			if !c.match(v.typ, r.Type) {
				c.addError(v.decl.Pos, "type '%s' cannot be assigned to type '%s'.", c.typeName(r.Type), c.typeName(v.typ))
			}
			c.code.Emit(opcode.VarOp(opcode.Temp, opcode.Store, false, false), v.index+uint16(i))
		}
	}
	c.statements(f.Body)

	last := c.code.Last()
	if last == before || c.code.At(last).Op != opcode.RET || c.code.HasDanglingBranches() {
		c.code.SetLine(f.Line)
		c.code.Emit(opcode.RET)
	}
	if c.code.HasDanglingBranches() {
		c.addInternal(f.Pos, "branches left dangling at the end of '%s'", f.Name)
	}
	c.log.Debug("lowered function", "name", f.Name, "temps", c.fn.tempWords)
	return c.code.Next(before)
}

// statements lowers a body whose values are discarded, except that the last
// one stays in the accumulator.
func (c *Compiler) statements(body []ast.Expr) CodeResult {
	r := CodeResult{Type: types.Void}
	for _, e := range body {
		r = c.toAcc(e)
	}
	return r
}

// ownerContext returns the class context of a class procedure.
func (c *Compiler) ownerContext(name string) *localClass {
	if lc, ok := c.unit.classes[name]; ok && !lc.decl.Instance {
		return lc
	}
	cls, ok := c.db.Class(name)
	if !ok {
		return nil
	}
	lc := &localClass{
		decl:    &ast.Class{Name: cls.Name, Super: cls.Super},
		class:   cls,
		species: types.Species(cls.Species),
	}
	if cls.Super != "" {
		lc.super, _ = c.db.Class(cls.Super)
	}
	return lc
}

// emitScript lowers every procedure and object of the script.
func (c *Compiler) emitScript(res *Result) {
	res.Code = c.code
	entries := map[string]codegen.Pos{}
	for _, p := range c.script.Procedures {
		if c.unit.procs[p.Name] != p {
			continue
		}
		var owner *localClass
		if p.Class != "" {
			if owner = c.ownerContext(p.Class); owner == nil {
				continue
			}
		}
		entry := c.emitFunction(&p.Function, owner, false)
		c.code.Label(p.Name, entry)
		entries[p.Name] = entry
	}
	for _, lc := range c.unit.objects {
		res.Objects = append(res.Objects, c.emitObject(lc))
	}
	for _, v := range c.unit.varOrder {
		c.emitLocal(res, v)
	}
	c.procEntries = entries
}

func (c *Compiler) emitLocal(res *Result, v *variable) {
	for len(res.Locals) < int(v.index) {
		res.Locals = append(res.Locals, Constant{})
	}
	values := make([]Constant, v.size)
	for i, e := range v.decl.Init {
		if i >= len(values) {
			break
		}
		k, ok := c.constant(e)
		if !ok {
			c.addError(v.decl.Pos, "Initializer must be a constant: %s", e)
			continue
		}
		values[i] = k
	}
	res.Locals = append(res.Locals, values...)
}

// emitObject lowers the methods of a class or instance and builds its layout.
func (c *Compiler) emitObject(lc *localClass) *Object {
	d := lc.decl
	obj := &Object{
		Name:     d.Name,
		Index:    lc.index,
		Instance: d.Instance,
		Public:   d.Public,
		Species:  uint16(lc.species),
	}
	if lc.super != nil {
		obj.Super = lc.super.Species
		obj.HasSuper = true
	}

	values := map[uint16]ast.Expr{}
	for _, p := range d.Properties {
		if sel, ok := c.db.Selector(p.Name); ok && p.Value != nil {
			values[sel] = p.Value
		}
	}
	if lc.class != nil {
		for _, p := range lc.class.Properties {
			prop := ObjectProperty{Name: p.Name, Selector: p.Selector, Constant: Constant{Value: p.Value}}
			switch p.Name {
			case "species":
				prop.Value = obj.Species
			case "superClass":
				prop.Value = obj.Super
			case "name":
				prop.Constant = Constant{Value: uint16(c.strings.Add(codegen.RelocString, d.Name)), Reloc: codegen.RelocString}
			}
			if e, ok := values[p.Selector]; ok {
				k, ok := c.constant(e)
				if !ok {
					c.addError(d.Pos, "Property value must be a constant: %s", e)
				} else {
					if kt := k.species(); k.Value != 0 && !c.match(p.Type, kt) {
						c.addError(d.Pos, "Type '%s' does not match property '%s' of type '%s'.", c.typeName(kt), p.Name, c.typeName(p.Type))
					}
					prop.Constant = k
				}
			}
			obj.Properties = append(obj.Properties, prop)
		}
	}

	for _, m := range d.Methods {
		if lc.methods[m.Name] != m {
			continue
		}
		sel, _ := c.db.Selector(m.Name)
		entry := c.emitFunction(&m.Function, lc, true)
		obj.Methods = append(obj.Methods, ObjectMethod{Name: m.Name, Selector: sel, entry: entry})
	}
	return obj
}

// resolveAddresses fills in entry addresses once the program is laid out.
func (c *Compiler) resolveAddresses(res *Result) {
	prog := res.Program
	res.Procedures = map[string]uint16{}
	res.Methods = map[string]uint16{}
	for name, entry := range c.procEntries {
		if addr, ok := prog.Address(entry); ok {
			res.Procedures[name] = addr
		}
	}
	for _, obj := range res.Objects {
		for i := range obj.Methods {
			m := &obj.Methods[i]
			if addr, ok := prog.Address(m.entry); ok {
				m.Address = addr
				res.Methods[obj.Name+"::"+m.Name] = addr
			}
		}
	}
	for _, e := range c.unit.exports {
		exp := symbols.Export{Slot: e.Slot, Name: e.Name}
		if addr, ok := res.Procedures[e.Name]; ok {
			exp.Offset = addr
		} else if lc, ok := c.unit.classes[e.Name]; ok {
			exp.Object = true
			exp.Offset = lc.index
		}
		res.Exports = append(res.Exports, exp)
	}
}
