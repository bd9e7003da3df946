// Package symtab interns identifiers and literal spellings for one
// compilation unit. Every downstream stage — AST, IR, instructions —
// refers to a string by its Key rather than by the bytes themselves, which
// makes node comparison and hashing O(1) and cloning free.
//
// Get(key) returns a byte-identical copy of the interned string, and
// keys are dense and monotonic, so a Key is safe to use as a slice index
// downstream.
package symtab

// Key is an opaque, dense, monotonically increasing handle into a Table.
type Key int

// invalidKey is returned by lookups that fail.
const invalidKey Key = -1

// Table is the sole owner of interned string bytes for a compilation unit.
type Table struct {
	strings []string
	index   map[string]Key
}

// New returns an empty string table.
func New() *Table {
	return &Table{
		index: make(map[string]Key),
	}
}

// Intern returns the Key for s, allocating a new one if s hasn't been seen.
// Interning the same bytes twice returns the same Key.
func (t *Table) Intern(s string) Key {
	if k, ok := t.index[s]; ok {
		return k
	}
	k := Key(len(t.strings))
	t.strings = append(t.strings, s)
	t.index[s] = k
	return k
}

// Get returns the original bytes for key. It panics on an out-of-range
// key since that indicates a compiler bug, not a user error.
func (t *Table) Get(key Key) string {
	if key < 0 || int(key) >= len(t.strings) {
		panic("symtab: key out of range")
	}
	return t.strings[key]
}

// Lookup returns the Key for s without interning it, and whether s has
// already been interned.
func (t *Table) Lookup(s string) (Key, bool) {
	k, ok := t.index[s]
	if !ok {
		return invalidKey, false
	}
	return k, ok
}

// Len reports how many distinct strings have been interned.
func (t *Table) Len() int {
	return len(t.strings)
}
