package types

import "testing"

// 0: Obj, 1: Actor(Obj), 2: Ego(Actor), 3: Room(Obj)
type fakeHierarchy map[Species]Species

func (h fakeHierarchy) SuperSpecies(s Species) (Species, bool) {
	sp, ok := h[s]
	return sp, ok
}

func (h fakeHierarchy) SpeciesName(s Species) string {
	return []string{"Obj", "Actor", "Ego", "Room"}[s]
}

func TestMatch(t *testing.T) {
	h := fakeHierarchy{1: 0, 2: 1, 3: 0}
	tests := []struct {
		name string
		dest Species
		src  Species
		want bool
	}{
		{"any accepts int", Any, Int, true},
		{"int accepts any", Int, Any, true},
		{"void into var fails", Any, Void, false},
		{"void into void", Void, Void, true},
		{"int into void fails", Void, Int, false},
		{"bool and int interchange", Bool, Int, true},
		{"selector accepts int", Selector, UInt, true},
		{"string into int fails", Int, String, false},
		{"string accepts pointer", String, Pointer, true},
		{"said rejects string", Said, String, false},
		{"pointer accepts object", Pointer, 2, true},
		{"subclass into class", 1, 2, true},
		{"class into subclass fails", 2, 1, false},
		{"sibling fails", 3, 1, false},
		{"int into class fails", 1, Int, false},
		{"invalid matches anything", 2, Invalid, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Match(tt.dest, tt.src, h); got != tt.want {
				t.Errorf("Match(%s, %s) = %v, want %v", Name(tt.dest, h), Name(tt.src, h), got, tt.want)
			}
		})
	}
}

func TestName(t *testing.T) {
	h := fakeHierarchy{}
	if got := Name(2, h); got != "Ego" {
		t.Errorf("Name(2) = %q", got)
	}
	if got := Name(Said, nil); got != "said" {
		t.Errorf("Name(Said) = %q", got)
	}
	if s, ok := Builtin("k"); !ok || s != Pointer {
		t.Errorf("Builtin(k) = %v %v", s, ok)
	}
}
