package symbols

import (
	"sort"
	"sync"
)

// Export is one entry of a script's export table.
type Export struct {
	Slot   int
	Name   string
	Offset uint16
	// Object marks an exported instance; Offset is then the object's index.
	Object bool
}

// Registry collects the export tables of successfully compiled scripts.
// Scripts compiled in parallel publish through it; a table becomes visible
// all at once and never partially.
type Registry struct {
	mu      sync.RWMutex
	exports map[uint16][]Export
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{exports: map[uint16][]Export{}}
}

// Publish replaces the export table of script.
func (r *Registry) Publish(script uint16, exports []Export) {
	table := make([]Export, len(exports))
	copy(table, exports)
	sort.Slice(table, func(i, j int) bool { return table[i].Slot < table[j].Slot })

	r.mu.Lock()
	defer r.mu.Unlock()
	r.exports[script] = table
}

// Exports returns a copy of the export table of script.
func (r *Registry) Exports(script uint16) ([]Export, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	table, ok := r.exports[script]
	if !ok {
		return nil, false
	}
	out := make([]Export, len(table))
	copy(out, table)
	return out, true
}

// Scripts returns the numbers of all published scripts in ascending order.
func (r *Registry) Scripts() []uint16 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]uint16, 0, len(r.exports))
	for n := range r.exports {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
