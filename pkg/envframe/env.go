// Package envframe implements the lexical environment a Lambda closes over
// (the "Environment" collaborator type referenced by spec.md §3.3's Lambda
// cell). It satisfies heap.Environment, so the collector can find every
// Value a closure keeps alive without knowing anything about scoping rules.
package envframe

import "github.com/oisee/nanvm/pkg/value"

// Frame is one lexical scope: a symbol-ID-keyed binding table with a parent
// pointer, the same shape as a classic Scheme environment chain.
type Frame struct {
	parent *Frame
	vars   map[uint64]value.Value
}

// New returns a fresh frame chained to parent (nil for the global frame).
func New(parent *Frame) *Frame {
	return &Frame{parent: parent, vars: make(map[uint64]value.Value)}
}

// Define binds id to v in this frame, shadowing any outer binding.
func (f *Frame) Define(id uint64, v value.Value) {
	f.vars[id] = v
}

// Lookup searches this frame and its ancestors for id.
func (f *Frame) Lookup(id uint64) (value.Value, bool) {
	for fr := f; fr != nil; fr = fr.parent {
		if v, ok := fr.vars[id]; ok {
			return v, true
		}
	}
	return 0, false
}

// Set mutates the nearest binding of id in this frame or an ancestor,
// reporting whether one was found (set! on an unbound symbol is the
// caller's error to raise).
func (f *Frame) Set(id uint64, v value.Value) bool {
	for fr := f; fr != nil; fr = fr.parent {
		if _, ok := fr.vars[id]; ok {
			fr.vars[id] = v
			return true
		}
	}
	return false
}

// Child returns a new frame nested under f, the shape every lambda call and
// `let`-like form needs.
func (f *Frame) Child() *Frame { return New(f) }

// Roots implements heap.Environment: every Value bound in this frame or any
// ancestor is a GC root for a Lambda that closes over it.
func (f *Frame) Roots() []value.Value {
	var out []value.Value
	for fr := f; fr != nil; fr = fr.parent {
		for _, v := range fr.vars {
			out = append(out, v)
		}
	}
	return out
}
