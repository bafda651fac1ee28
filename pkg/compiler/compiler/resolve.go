package compiler

import (
	"github.com/zurustar/scic/pkg/compiler/symbols"
	"github.com/zurustar/scic/pkg/compiler/types"
)

// TokenKind is what an identifier resolved to.
type TokenKind int

const (
	TokenUnknown TokenKind = iota
	TokenGlobal
	TokenScriptVar
	TokenParam
	TokenTemp
	TokenProperty
	TokenClass
	TokenInstance
	TokenExportInstance
	TokenScriptString
	TokenSelf
)

func (k TokenKind) String() string {
	switch k {
	case TokenGlobal:
		return "global variable"
	case TokenScriptVar:
		return "script variable"
	case TokenParam:
		return "parameter"
	case TokenTemp:
		return "temp variable"
	case TokenProperty:
		return "property"
	case TokenClass:
		return "class"
	case TokenInstance:
		return "instance"
	case TokenExportInstance:
		return "exported instance"
	case TokenScriptString:
		return "string"
	case TokenSelf:
		return "self"
	}
	return "unknown"
}

// token is a resolved identifier. Index is the variable index, the property
// offset (slot*2), the class species, the object index or the string entry,
// depending on Kind. Script is set for exported instances.
type token struct {
	Kind   TokenKind
	Index  uint16
	Type   types.Species
	Script uint16
	Array  bool
}

// isVariable reports whether the token names a variable block entry.
func (t token) isVariable() bool {
	switch t.Kind {
	case TokenGlobal, TokenScriptVar, TokenParam, TokenTemp:
		return true
	}
	return false
}

// lookupToken resolves an identifier in the order: parameters, temps,
// script variables, globals, properties of the current class, self, objects
// of this script, database classes, exported instances, script strings.
func (c *Compiler) lookupToken(name string) token {
	if f := c.fn; f != nil {
		if name == "argc" {
			return token{Kind: TokenParam, Index: 0, Type: types.Int}
		}
		if p, ok := f.params[name]; ok {
			return token{Kind: TokenParam, Index: p.index, Type: p.typ}
		}
		if v, ok := f.temps[name]; ok {
			return token{Kind: TokenTemp, Index: v.index, Type: v.typ, Array: v.array}
		}
	}
	if v, ok := c.unit.vars[name]; ok {
		return token{Kind: TokenScriptVar, Index: v.index, Type: v.typ, Array: v.array}
	}
	if g, ok := c.db.Global(name); ok {
		return token{Kind: TokenGlobal, Index: g.Index, Type: g.Type, Array: g.Size > 1}
	}
	if cls := c.currentClass(); cls != nil {
		if sel, ok := c.db.Selector(name); ok {
			if i, ok := cls.class.PropertyIndex(sel); ok {
				return token{Kind: TokenProperty, Index: uint16(i * 2), Type: cls.class.Properties[i].Type}
			}
		}
		if name == "self" {
			return token{Kind: TokenSelf, Type: cls.species}
		}
	}
	if lc, ok := c.unit.classes[name]; ok {
		if lc.decl.Instance {
			return token{Kind: TokenInstance, Index: lc.index, Type: lc.species}
		}
		return token{Kind: TokenClass, Index: uint16(lc.species), Type: lc.species}
	}
	if cls, ok := c.db.Class(name); ok && c.visibleScript(cls.Script) {
		return token{Kind: TokenClass, Index: cls.Species, Type: types.Species(cls.Species)}
	}
	if in, ok := c.db.Instance(name); ok && in.Script != c.script.Number && c.visibleScript(in.Script) {
		t := token{Kind: TokenExportInstance, Index: in.Index, Script: in.Script, Type: types.Any}
		if cls, ok := c.db.Class(in.Class); ok {
			t.Type = types.Species(cls.Species)
		}
		return t
	}
	if s, ok := c.unit.strings[name]; ok {
		return token{Kind: TokenScriptString, Index: uint16(s.entry), Type: types.String}
	}
	return token{Kind: TokenUnknown, Type: types.Any}
}

// procRef is a resolved procedure.
type procRef struct {
	Kind       symbols.ProcKind
	Name       string
	Script     uint16
	Index      uint16
	ReturnType types.Species
	// Owner is the class a class procedure belongs to.
	Owner string
}

// lookupProc resolves a procedure name: local procedures, kernels, public
// procedures of script 0, then public procedures of other used scripts.
func (c *Compiler) lookupProc(name string) (procRef, bool) {
	if p, ok := c.unit.procs[name]; ok {
		ref := procRef{Kind: symbols.ProcLocal, Name: name, Script: c.script.Number, Owner: p.Class, ReturnType: types.Any}
		if p.ReturnType != "" {
			if s, ok := types.Builtin(p.ReturnType); ok {
				ref.ReturnType = s
			}
		}
		return ref, true
	}
	if k, ok := c.db.Kernel(name); ok {
		return procRef{Kind: symbols.ProcKernel, Name: name, Index: k, ReturnType: types.Any}, true
	}
	p, ok := c.db.Procedure(name)
	if !ok || !c.visibleScript(p.Script) || p.Script == c.script.Number {
		return procRef{}, false
	}
	ref := procRef{Kind: symbols.ProcExternal, Name: name, Script: p.Script, Index: p.Index, ReturnType: p.ReturnType}
	if p.Script == 0 {
		ref.Kind = symbols.ProcMain
	}
	return ref, true
}

// classByName finds a class of this script or the database.
func (c *Compiler) classByName(name string) (*symbols.Class, bool) {
	if lc, ok := c.unit.classes[name]; ok && !lc.decl.Instance {
		return lc.class, lc.class != nil
	}
	return c.db.Class(name)
}

// classBySpecies finds the layout of a class species.
func (c *Compiler) classBySpecies(s types.Species) (*symbols.Class, bool) {
	if !s.IsClass() {
		return nil, false
	}
	if lc, ok := c.unit.bySpecies[s]; ok {
		return lc.class, lc.class != nil
	}
	return c.db.ClassBySpecies(uint16(s))
}

// currentClass is the class or instance whose method is being lowered,
// or the owner class of a class procedure.
func (c *Compiler) currentClass() *localClass {
	if c.fn == nil {
		return nil
	}
	return c.fn.class
}
