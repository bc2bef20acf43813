// Package interner implements the symbol table collaborator described in
// spec.md §6.2: a two-way mapping between symbol text and a small integer ID
// that fits inside a Value immediate. It is never traced by the
// collector — symbol IDs embedded in Values are immediates, not pointers.
package interner

// Table is a single-threaded symbol interner, matching the single-mutator
// model of spec.md §5 (no locking).
type Table struct {
	ids  map[string]uint64
	text []string
}

// New returns an empty interner.
func New() *Table {
	return &Table{ids: make(map[string]uint64)}
}

// Intern returns the ID for text, assigning a fresh one on first sight.
func (t *Table) Intern(text string) uint64 {
	if id, ok := t.ids[text]; ok {
		return id
	}
	id := uint64(len(t.text))
	t.text = append(t.text, text)
	t.ids[text] = id
	return id
}

// Text returns the string an ID was interned from, or false if id is
// unknown (spec.md §7, UnknownSymbol).
func (t *Table) Text(id uint64) (string, bool) {
	if id >= uint64(len(t.text)) {
		return "", false
	}
	return t.text[id], true
}

// Len reports how many distinct symbols have been interned.
func (t *Table) Len() int { return len(t.text) }
