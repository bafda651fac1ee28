package symbols

import (
	"sync"
	"testing"

	"github.com/zurustar/scic/pkg/compiler/types"
)

const sampleDB = `
selectors: {species: 0, superClass: 1, name: 2, x: 3, y: 4, init: 5, doit: 6, view: 7}
kernels: {Load: 0, Printf: 7}
scripts: {0: Main, 998: Actor, 999: Obj}
defines: {TRUE: 1, FALSE: 0}
globals:
  - {name: gEgo, index: 0, type: Ego}
  - {name: gFlags, index: 10, size: 14}
classes:
  - {name: Ego, species: 2, super: Actor, script: 998, properties: [{name: view, value: 0}], methods: [doit]}
  - {name: Obj, species: 0, script: 999, properties: [{name: species}, {name: superClass}, {name: name}], methods: [init]}
  - {name: Actor, species: 1, super: Obj, script: 998, properties: [{name: x, type: int}, {name: y, type: int}, {name: name, value: 5}], methods: [doit]}
procedures:
  - {name: Display, script: 0, index: 3, returns: void}
  - {name: Print, script: 255, index: 0}
instances:
  - {name: ego, script: 0, index: 1, class: Ego}
`

func TestLoad(t *testing.T) {
	s, err := Load([]byte(sampleDB))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	ego, ok := s.Class("Ego")
	if !ok {
		t.Fatal("Ego not found")
	}
	want := []string{"species", "superClass", "name", "x", "y", "view"}
	if len(ego.Properties) != len(want) {
		t.Fatalf("Ego has %d properties, want %d", len(ego.Properties), len(want))
	}
	for i, name := range want {
		if ego.Properties[i].Name != name {
			t.Errorf("property %d = %s, want %s", i, ego.Properties[i].Name, name)
		}
	}
	// Actor overrides name without adding a slot
	actor, _ := s.Class("Actor")
	if actor.Properties[2].Value != 5 {
		t.Errorf("overridden name value = %d", actor.Properties[2].Value)
	}
	if !ego.HasMethod("init") || !ego.HasMethod("doit") {
		t.Errorf("Ego methods = %v", ego.Methods)
	}
	if s.NextSpecies() != 3 {
		t.Errorf("NextSpecies() = %d, want 3", s.NextSpecies())
	}
	if g, _ := s.Global("gEgo"); g.Type != 2 {
		t.Errorf("gEgo type = %d", g.Type)
	}
	if p, _ := s.Procedure("Display"); p.ReturnType != types.Void {
		t.Errorf("Display return type = %d", p.ReturnType)
	}
	if sp, ok := s.SuperSpecies(2); !ok || sp != 1 {
		t.Errorf("SuperSpecies(Ego) = %d %v", sp, ok)
	}
	if !types.Match(types.Species(0), types.Species(2), s) {
		t.Error("Ego should match Obj")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"duplicate selector id", "selectors: {a: 1, b: 1}"},
		{"unknown superclass", "classes: [{name: A, super: B}]"},
		{"inheritance cycle", "classes: [{name: A, species: 0, super: B}, {name: B, species: 1, super: A}]"},
		{"property is not a selector", "classes: [{name: A, properties: [{name: nope}]}]"},
		{"shared species", "classes: [{name: A, species: 1}, {name: B, species: 1}]"},
		{"instance of unknown class", "instances: [{name: i, class: Nope}]"},
		{"global of unknown type", "globals: [{name: g, type: Nope}]"},
		{"malformed yaml", "selectors: [1, 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load([]byte(tt.input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRegistryPublish(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n uint16) {
			defer wg.Done()
			r.Publish(n, []Export{{Slot: 1, Name: "b"}, {Slot: 0, Name: "a"}})
		}(uint16(i))
	}
	wg.Wait()

	if got := len(r.Scripts()); got != 8 {
		t.Fatalf("Scripts() = %d, want 8", got)
	}
	table, ok := r.Exports(3)
	if !ok || len(table) != 2 || table[0].Name != "a" {
		t.Errorf("Exports(3) = %v", table)
	}
	if _, ok := r.Exports(99); ok {
		t.Error("unpublished script reported")
	}
}
