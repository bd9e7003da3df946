package objfile

import (
	"bytes"
	"encoding/binary"
)

const (
	elfMachineX86_64 = 62
	elfTypeRel       = 1
	elfClass64       = 2
	elfDataLSB       = 1
	elfVersionCur    = 1

	shtNull    = 0
	shtProgbits = 1
	shtSymtab  = 2
	shtStrtab  = 3
	shtRela    = 4

	shfWrite     = 0x1
	shfAlloc     = 0x2
	shfExecInstr = 0x4

	stbLocal  = 0
	stbGlobal = 1
	sttNotype = 0
	sttObject = 1
	sttFunc   = 2

	relX8664PLT32 = 4

	elfEhdrSize   = 64
	elfShdrSize   = 64
	elfSymSize    = 24
	elfRelaSize   = 24
)

type elfSection struct {
	name      string
	typ       uint32
	flags     uint64
	offset    uint64
	size      uint64
	link, info uint32
	addralign, entsize uint64
}

// writeELF renders m as an ELF64 relocatable object: a null section, a
// loadable .text/.rodata pair, a RELA section carrying R_X86_64_PLT32
// relocations against .text, a symbol table, and the two string tables
// ELF requires (.strtab for symbol names, .shstrtab for section names).
func writeELF(m *Module) []byte {
	var shstrtab bytes.Buffer
	shstrtab.WriteByte(0)
	nameOff := func(buf *bytes.Buffer, s string) uint32 {
		off := uint32(buf.Len())
		buf.WriteString(s)
		buf.WriteByte(0)
		return off
	}

	var strtab bytes.Buffer
	strtab.WriteByte(0)
	strOff := make(map[string]uint32)
	internStr := func(s string) uint32 {
		if off, ok := strOff[s]; ok {
			return off
		}
		off := nameOff(&strtab, s)
		strOff[s] = off
		return off
	}

	// Symbols must be emitted local-then-global for sh_info to mark the
	// boundary correctly; section 0 (undefined) symbols are global.
	type ordered struct {
		sym   symbol
		index int // original Module index, used to remap relocations
	}
	var locals, globals []ordered
	for i, s := range m.syms {
		if s.section != 0 && !s.global {
			locals = append(locals, ordered{s, i})
		} else {
			globals = append(globals, ordered{s, i})
		}
	}
	remap := make(map[int]int, len(m.syms))
	var symtab bytes.Buffer
	// Null symbol, index 0.
	symtab.Write(make([]byte, elfSymSize))
	writeSym := func(o ordered) {
		remap[o.index] = symtab.Len() / elfSymSize
		var info byte
		bind := byte(stbLocal)
		if o.sym.global || o.sym.section == 0 {
			bind = stbGlobal
		}
		typ := byte(sttNotype)
		switch o.sym.section {
		case 1:
			typ = sttFunc
		case 2:
			typ = sttObject
		}
		info = bind<<4 | typ
		binary.Write(&symtab, binary.LittleEndian, internStr(o.sym.name))
		symtab.WriteByte(info)
		symtab.WriteByte(0) // st_other
		binary.Write(&symtab, binary.LittleEndian, uint16(o.sym.section))
		binary.Write(&symtab, binary.LittleEndian, uint64(o.sym.value))
		binary.Write(&symtab, binary.LittleEndian, uint64(0)) // st_size
	}
	for _, o := range locals {
		writeSym(o)
	}
	for _, o := range globals {
		writeSym(o)
	}
	numLocal := uint32(1 + len(locals)) // +1 for the null symbol

	var rela bytes.Buffer
	for _, r := range m.relocs {
		symIdx := remap[r.symIdx]
		info := uint64(symIdx)<<32 | relX8664PLT32
		binary.Write(&rela, binary.LittleEndian, uint64(r.offset))
		binary.Write(&rela, binary.LittleEndian, info)
		binary.Write(&rela, binary.LittleEndian, int64(-4)) // addend: PC-relative disp base is the next instruction
	}

	// Section names must be fully interned into shstrtab before its size
	// is used to lay out the rest of the file.
	sectionNames := []string{".text", ".rodata", ".rela.text", ".symtab", ".strtab", ".shstrtab"}
	nameOffsets := make([]uint32, len(sectionNames)+1) // +1 for the null section
	for i, n := range sectionNames {
		nameOffsets[i+1] = nameOff(&shstrtab, n)
	}

	// Layout: Ehdr, .text, .rodata, .rela.text, .symtab, .strtab,
	// .shstrtab, then the section header table.
	textOff := uint64(elfEhdrSize)
	rodataOff := textOff + uint64(len(m.Text))
	relaOff := rodataOff + uint64(len(m.Rdata))
	symtabOff := relaOff + uint64(rela.Len())
	strtabOff := symtabOff + uint64(symtab.Len())
	shstrtabOff := strtabOff + uint64(strtab.Len())
	shOff := shstrtabOff + uint64(shstrtab.Len())

	sections := []elfSection{
		{},
		{name: ".text", typ: shtProgbits, flags: shfAlloc | shfExecInstr, offset: textOff, size: uint64(len(m.Text)), addralign: 16},
		{name: ".rodata", typ: shtProgbits, flags: shfAlloc, offset: rodataOff, size: uint64(len(m.Rdata)), addralign: 1},
		{name: ".rela.text", typ: shtRela, offset: relaOff, size: uint64(rela.Len()), link: 4, info: 1, entsize: elfRelaSize, addralign: 8},
		{name: ".symtab", typ: shtSymtab, offset: symtabOff, size: uint64(symtab.Len()), link: 5, info: numLocal, entsize: elfSymSize, addralign: 8},
		{name: ".strtab", typ: shtStrtab, offset: strtabOff, size: uint64(strtab.Len()), addralign: 1},
		{name: ".shstrtab", typ: shtStrtab, offset: shstrtabOff, size: uint64(shstrtab.Len()), addralign: 1},
	}

	var out bytes.Buffer
	out.Write(make([]byte, elfEhdrSize))
	out.Write(m.Text)
	out.Write(m.Rdata)
	out.Write(rela.Bytes())
	out.Write(symtab.Bytes())
	out.Write(strtab.Bytes())
	out.Write(shstrtab.Bytes())

	for i, s := range sections {
		var hdr bytes.Buffer
		binary.Write(&hdr, binary.LittleEndian, nameOffsets[i])
		binary.Write(&hdr, binary.LittleEndian, s.typ)
		binary.Write(&hdr, binary.LittleEndian, s.flags)
		binary.Write(&hdr, binary.LittleEndian, uint64(0)) // sh_addr
		binary.Write(&hdr, binary.LittleEndian, s.offset)
		binary.Write(&hdr, binary.LittleEndian, s.size)
		binary.Write(&hdr, binary.LittleEndian, s.link)
		binary.Write(&hdr, binary.LittleEndian, s.info)
		binary.Write(&hdr, binary.LittleEndian, s.addralign)
		binary.Write(&hdr, binary.LittleEndian, s.entsize)
		out.Write(hdr.Bytes())
	}

	buf := out.Bytes()
	copy(buf[0:4], []byte{0x7f, 'E', 'L', 'F'})
	buf[4] = elfClass64
	buf[5] = elfDataLSB
	buf[6] = elfVersionCur
	binary.LittleEndian.PutUint16(buf[16:], elfTypeRel)
	binary.LittleEndian.PutUint16(buf[18:], elfMachineX86_64)
	binary.LittleEndian.PutUint32(buf[20:], elfVersionCur)
	binary.LittleEndian.PutUint64(buf[24:], 0) // e_entry
	binary.LittleEndian.PutUint64(buf[32:], 0) // e_phoff
	binary.LittleEndian.PutUint64(buf[40:], shOff)
	binary.LittleEndian.PutUint32(buf[48:], 0) // e_flags
	binary.LittleEndian.PutUint16(buf[52:], elfEhdrSize)
	binary.LittleEndian.PutUint16(buf[54:], 0) // e_phentsize
	binary.LittleEndian.PutUint16(buf[56:], 0) // e_phnum
	binary.LittleEndian.PutUint16(buf[58:], elfShdrSize)
	binary.LittleEndian.PutUint16(buf[60:], uint16(len(sections)))
	binary.LittleEndian.PutUint16(buf[62:], 6) // e_shstrndx

	return buf
}
