// Package objfile assembles every function's internal/emit.Object into a
// single relocatable container: Microsoft COFF (.obj) or ELF64 (.o),
// chosen by the target triple.
//
// The container is deliberately minimal: a platform linker supplies
// everything beyond the section data, symbol table, and relocations.
package objfile

import "github.com/Goubermouche/sigma-sub002/internal/emit"

// Format selects the container flavor written by Write.
type Format int

const (
	FormatCOFF Format = iota // Windows .obj, consumed by link.exe/lld-link
	FormatELF                // Linux .o, consumed by ld/lld
)

// symbol is one entry of the combined symbol table: a defined function,
// a rodata string constant, or an external reference pulled in by a
// CALL/LEA this module does not itself define.
type symbol struct {
	name    string
	section int // 0 = undefined, 1 = .text, 2 = .rdata
	value   uint32
	global  bool
}

// relocation is one .text patch site, resolved to a symbol table index.
// Every CALL/LEA to an external or cross-function symbol becomes one
// relocation entry.
type relocation struct {
	offset int
	symIdx int
}

// Module is the layout-independent intermediate form writeCOFF and
// writeELF both consume: flat .text/.rdata buffers, a symbol table, and
// .text relocations.
type Module struct {
	Text   []byte
	Rdata  []byte
	syms   []symbol
	relocs []relocation

	symIndex map[string]int
}

// Build concatenates every function's emitted code into one .text
// section in the order given, interning rodata string constants by name
// so two functions referencing the same literal share one entry, and
// resolving every emit.Relocation's symbol name to a table index.
func Build(objects []*emit.Object) *Module {
	m := &Module{symIndex: make(map[string]int)}
	funcOffset := make(map[string]int)
	for _, o := range objects {
		funcOffset[o.Name] = len(m.Text)
		m.addSymbol(o.Name, 1, uint32(len(m.Text)), true)
		m.Text = append(m.Text, o.Code...)
	}
	for _, o := range objects {
		base := funcOffset[o.Name]
		for _, rd := range o.Rodata {
			m.internRodata(rd.Value)
		}
		for _, r := range o.Relocs {
			idx := m.resolveSymbol(r.Symbol)
			m.relocs = append(m.relocs, relocation{offset: base + r.Offset, symIdx: idx})
		}
	}
	return m
}

func (m *Module) addSymbol(name string, section int, value uint32, global bool) int {
	if idx, ok := m.symIndex[name]; ok {
		return idx
	}
	idx := len(m.syms)
	m.syms = append(m.syms, symbol{name: name, section: section, value: value, global: global})
	m.symIndex[name] = idx
	return idx
}

func (m *Module) internRodata(s string) int {
	if idx, ok := m.symIndex[s]; ok {
		return idx
	}
	off := len(m.Rdata)
	m.Rdata = append(m.Rdata, []byte(s)...)
	m.Rdata = append(m.Rdata, 0)
	return m.addSymbol(s, 2, uint32(off), false)
}

// resolveSymbol returns name's symbol index, adding it as an undefined
// external reference if this module defines neither a function nor a
// rodata entry for it — calls into the C runtime or another translation
// unit.
func (m *Module) resolveSymbol(name string) int {
	if idx, ok := m.symIndex[name]; ok {
		return idx
	}
	return m.addSymbol(name, 0, 0, true)
}

// Write renders m as the requested container format.
func Write(m *Module, format Format) []byte {
	switch format {
	case FormatELF:
		return writeELF(m)
	default:
		return writeCOFF(m)
	}
}
