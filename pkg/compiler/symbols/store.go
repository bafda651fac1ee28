package symbols

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zurustar/scic/pkg/compiler/types"
)

// Store is a Database loaded from a YAML document.
//
//	selectors: {init: 110, x: 4}
//	kernels:   {Load: 0, Printf: 7}
//	scripts:   {0: Main, 255: Print}
//	defines:   {TRUE: 1}
//	globals:   [{name: gEgo, index: 0, type: Ego}]
//	classes:   [{name: Actor, species: 1, super: Obj, script: 998,
//	             properties: [{name: x, type: int, value: 0}], methods: [doit]}]
//	procedures: [{name: Display, script: 0, index: 3, returns: void}]
//	instances:  [{name: ego, script: 0, index: 1, class: Ego}]
//
// Class properties list only what the class adds; inherited slots come first
// in the resolved layout. A property with a type names a builtin or a class.
type Store struct {
	selectors     map[string]uint16
	selectorNames map[uint16]string
	kernels       map[string]uint16
	scripts       map[uint16]string
	defines       map[string]uint16
	globals       map[string]*Variable
	classes       map[string]*Class
	bySpecies     map[uint16]*Class
	procedures    map[string]*Procedure
	instances     map[string]*Instance
	nextSpecies   uint16
}

type storeDoc struct {
	Selectors  map[string]uint16 `yaml:"selectors"`
	Kernels    map[string]uint16 `yaml:"kernels"`
	Scripts    map[uint16]string `yaml:"scripts"`
	Defines    map[string]uint16 `yaml:"defines"`
	Globals    []globalDoc       `yaml:"globals"`
	Classes    []classDoc        `yaml:"classes"`
	Procedures []procDoc         `yaml:"procedures"`
	Instances  []Instance        `yaml:"instances"`
}

type globalDoc struct {
	Name  string `yaml:"name"`
	Index uint16 `yaml:"index"`
	Type  string `yaml:"type"`
	Size  uint16 `yaml:"size"`
}

type propDoc struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Value uint16 `yaml:"value"`
}

type classDoc struct {
	Name       string    `yaml:"name"`
	Species    uint16    `yaml:"species"`
	Super      string    `yaml:"super"`
	Script     uint16    `yaml:"script"`
	Properties []propDoc `yaml:"properties"`
	Methods    []string  `yaml:"methods"`
}

type procDoc struct {
	Name    string `yaml:"name"`
	Script  uint16 `yaml:"script"`
	Index   uint16 `yaml:"index"`
	Returns string `yaml:"returns"`
}

// LoadFile reads a symbol database from path.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read symbol database: %w", err)
	}
	s, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Load parses a symbol database document.
func Load(data []byte) (*Store, error) {
	var doc storeDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse symbol database: %w", err)
	}
	return newStore(&doc)
}

func newStore(doc *storeDoc) (*Store, error) {
	s := &Store{
		selectors:     map[string]uint16{},
		selectorNames: map[uint16]string{},
		kernels:       map[string]uint16{},
		scripts:       map[uint16]string{},
		defines:       map[string]uint16{},
		globals:       map[string]*Variable{},
		classes:       map[string]*Class{},
		bySpecies:     map[uint16]*Class{},
		procedures:    map[string]*Procedure{},
		instances:     map[string]*Instance{},
	}
	for name, id := range doc.Selectors {
		if other, dup := s.selectorNames[id]; dup {
			return nil, fmt.Errorf("selectors %q and %q share id %d", other, name, id)
		}
		s.selectors[name] = id
		s.selectorNames[id] = name
	}
	for name, idx := range doc.Kernels {
		s.kernels[name] = idx
	}
	for n, name := range doc.Scripts {
		s.scripts[n] = name
	}
	for name, v := range doc.Defines {
		s.defines[name] = v
	}

	// classes first so globals and properties can be typed by class
	pending := map[string]classDoc{}
	for _, c := range doc.Classes {
		if _, dup := pending[c.Name]; dup {
			return nil, fmt.Errorf("duplicate class %q", c.Name)
		}
		pending[c.Name] = c
	}
	for _, c := range doc.Classes {
		if _, err := s.resolveClass(c.Name, pending, map[string]bool{}); err != nil {
			return nil, err
		}
	}

	for _, g := range doc.Globals {
		t, err := s.species(g.Type)
		if err != nil {
			return nil, fmt.Errorf("global %q: %w", g.Name, err)
		}
		s.globals[g.Name] = &Variable{Name: g.Name, Index: g.Index, Type: t, Size: g.Size}
	}
	for _, p := range doc.Procedures {
		t, err := s.species(p.Returns)
		if err != nil {
			return nil, fmt.Errorf("procedure %q: %w", p.Name, err)
		}
		s.procedures[p.Name] = &Procedure{Name: p.Name, Script: p.Script, Index: p.Index, ReturnType: t}
	}
	for i := range doc.Instances {
		inst := doc.Instances[i]
		if _, ok := s.classes[inst.Class]; !ok {
			return nil, fmt.Errorf("instance %q of unknown class %q", inst.Name, inst.Class)
		}
		s.instances[inst.Name] = &inst
	}
	return s, nil
}

func (s *Store) resolveClass(name string, pending map[string]classDoc, visiting map[string]bool) (*Class, error) {
	if c, ok := s.classes[name]; ok {
		return c, nil
	}
	doc, ok := pending[name]
	if !ok {
		return nil, fmt.Errorf("unknown class %q", name)
	}
	if visiting[name] {
		return nil, fmt.Errorf("class %q inherits from itself", name)
	}
	visiting[name] = true

	c := &Class{Name: doc.Name, Species: doc.Species, Super: doc.Super, Script: doc.Script}
	if doc.Super != "" {
		super, err := s.resolveClass(doc.Super, pending, visiting)
		if err != nil {
			return nil, fmt.Errorf("class %q: %w", name, err)
		}
		c.Properties = append(c.Properties, super.Properties...)
		c.Methods = append(c.Methods, super.Methods...)
	}
	for _, p := range doc.Properties {
		sel, ok := s.selectors[p.Name]
		if !ok {
			return nil, fmt.Errorf("class %q: property %q is not a selector", name, p.Name)
		}
		t, err := s.species(p.Type)
		if err != nil {
			// property types may refer to classes declared later
			t = types.Any
		}
		prop := Property{Name: p.Name, Selector: sel, Type: t, Value: p.Value}
		if i, ok := c.PropertyIndex(sel); ok {
			c.Properties[i] = prop
		} else {
			c.Properties = append(c.Properties, prop)
		}
	}
	for _, m := range doc.Methods {
		if !c.HasMethod(m) {
			c.Methods = append(c.Methods, m)
		}
	}
	if other, dup := s.bySpecies[c.Species]; dup {
		return nil, fmt.Errorf("classes %q and %q share species %d", other.Name, c.Name, c.Species)
	}
	s.classes[name] = c
	s.bySpecies[c.Species] = c
	if c.Species >= s.nextSpecies {
		s.nextSpecies = c.Species + 1
	}
	return c, nil
}

func (s *Store) species(name string) (types.Species, error) {
	if t, ok := types.Builtin(name); ok {
		return t, nil
	}
	if c, ok := s.classes[name]; ok {
		return types.Species(c.Species), nil
	}
	return types.Invalid, fmt.Errorf("unknown type %q", name)
}

func (s *Store) Selector(name string) (uint16, bool) {
	id, ok := s.selectors[name]
	return id, ok
}

func (s *Store) SelectorName(id uint16) (string, bool) {
	name, ok := s.selectorNames[id]
	return name, ok
}

func (s *Store) Class(name string) (*Class, bool) {
	c, ok := s.classes[name]
	return c, ok
}

func (s *Store) ClassBySpecies(species uint16) (*Class, bool) {
	c, ok := s.bySpecies[species]
	return c, ok
}

func (s *Store) NextSpecies() uint16 { return s.nextSpecies }

func (s *Store) Instance(name string) (*Instance, bool) {
	i, ok := s.instances[name]
	return i, ok
}

func (s *Store) Procedure(name string) (*Procedure, bool) {
	p, ok := s.procedures[name]
	return p, ok
}

func (s *Store) Kernel(name string) (uint16, bool) {
	k, ok := s.kernels[name]
	return k, ok
}

func (s *Store) Global(name string) (*Variable, bool) {
	g, ok := s.globals[name]
	return g, ok
}

func (s *Store) Define(name string) (uint16, bool) {
	v, ok := s.defines[name]
	return v, ok
}

func (s *Store) ScriptName(number uint16) (string, bool) {
	n, ok := s.scripts[number]
	return n, ok
}

// SuperSpecies implements types.Hierarchy.
func (s *Store) SuperSpecies(sp types.Species) (types.Species, bool) {
	return SuperSpecies(s, sp)
}

// SpeciesName implements types.Hierarchy.
func (s *Store) SpeciesName(sp types.Species) string {
	return SpeciesName(s, sp)
}

// SuperSpecies walks one step up the class table of db.
func SuperSpecies(db Database, sp types.Species) (types.Species, bool) {
	if !sp.IsClass() {
		return 0, false
	}
	c, ok := db.ClassBySpecies(uint16(sp))
	if !ok || c.Super == "" {
		return 0, false
	}
	super, ok := db.Class(c.Super)
	if !ok {
		return 0, false
	}
	return types.Species(super.Species), true
}

// SpeciesName returns the class name of sp in db, or "".
func SpeciesName(db Database, sp types.Species) string {
	if !sp.IsClass() {
		return ""
	}
	if c, ok := db.ClassBySpecies(uint16(sp)); ok {
		return c.Name
	}
	return ""
}
