package objfile

import (
	"bytes"
	"encoding/binary"
)

const (
	imageFileMachineAMD64 = 0x8664
	imageRelAMD64Rel32    = 0x0004

	imageSCNCntCode       = 0x00000020
	imageSCNCntInitData   = 0x00000040
	imageSCNMemExecute    = 0x20000000
	imageSCNMemRead       = 0x40000000

	imageSymClassExternal = 2
	imageSymClassStatic   = 3
	imageSymDTypeFunction = 0x20

	coffFileHeaderSize = 20
	coffSectionHeaderSize = 40
	coffSymbolSize = 18
)

// writeCOFF renders m as a Microsoft COFF object: IMAGE_FILE_HEADER, two
// section headers (.text, .rdata), their raw data, .text's relocations
// (IMAGE_REL_AMD64_REL32), the symbol table, and a length-prefixed
// string table for names over 8 bytes.
func writeCOFF(m *Module) []byte {
	var strtab bytes.Buffer
	strtab.Write([]byte{0, 0, 0, 0}) // placeholder for the 4-byte total size

	shortName := func(name string) (raw [8]byte, longOff uint32) {
		if len(name) <= 8 {
			copy(raw[:], name)
			return raw, 0
		}
		off := uint32(strtab.Len())
		strtab.WriteString(name)
		strtab.WriteByte(0)
		binary.LittleEndian.PutUint32(raw[4:], off)
		return raw, off
	}

	textOff := coffFileHeaderSize + 2*coffSectionHeaderSize
	rdataOff := textOff + len(m.Text)
	relocOff := rdataOff + len(m.Rdata)
	numRelocs := len(m.relocs)
	symtabOff := relocOff + numRelocs*10

	var syms bytes.Buffer
	for _, s := range m.syms {
		raw, _ := shortName(s.name)
		syms.Write(raw[:])
		binary.Write(&syms, binary.LittleEndian, s.value)
		section := int16(s.section)
		binary.Write(&syms, binary.LittleEndian, section)
		var typ uint16
		class := byte(imageSymClassStatic)
		if s.section == 1 {
			typ = imageSymDTypeFunction
		}
		if s.global || s.section == 0 {
			class = imageSymClassExternal
		}
		binary.Write(&syms, binary.LittleEndian, typ)
		syms.WriteByte(class)
		syms.WriteByte(0) // NumberOfAuxSymbols
	}

	var out bytes.Buffer
	// IMAGE_FILE_HEADER
	binary.Write(&out, binary.LittleEndian, uint16(imageFileMachineAMD64))
	binary.Write(&out, binary.LittleEndian, uint16(2)) // NumberOfSections
	binary.Write(&out, binary.LittleEndian, uint32(0)) // TimeDateStamp
	binary.Write(&out, binary.LittleEndian, uint32(symtabOff))
	binary.Write(&out, binary.LittleEndian, uint32(len(m.syms)))
	binary.Write(&out, binary.LittleEndian, uint16(0)) // SizeOfOptionalHeader
	binary.Write(&out, binary.LittleEndian, uint16(0)) // Characteristics

	writeSectionHeader(&out, ".text", len(m.Text), textOff, relocOff, numRelocs,
		imageSCNCntCode|imageSCNMemExecute|imageSCNMemRead)
	writeSectionHeader(&out, ".rdata", len(m.Rdata), rdataOff, 0, 0,
		imageSCNCntInitData|imageSCNMemRead)

	out.Write(m.Text)
	out.Write(m.Rdata)
	for _, r := range m.relocs {
		binary.Write(&out, binary.LittleEndian, uint32(r.offset))
		binary.Write(&out, binary.LittleEndian, uint32(r.symIdx))
		binary.Write(&out, binary.LittleEndian, uint16(imageRelAMD64Rel32))
	}
	out.Write(syms.Bytes())

	strtabBytes := strtab.Bytes()
	binary.LittleEndian.PutUint32(strtabBytes[0:4], uint32(len(strtabBytes)))
	out.Write(strtabBytes)

	return out.Bytes()
}

func writeSectionHeader(out *bytes.Buffer, name string, size, fileOff, relocOff, numRelocs int, characteristics uint32) {
	var raw [8]byte
	copy(raw[:], name)
	out.Write(raw[:])
	binary.Write(out, binary.LittleEndian, uint32(0)) // VirtualSize
	binary.Write(out, binary.LittleEndian, uint32(0)) // VirtualAddress
	binary.Write(out, binary.LittleEndian, uint32(size))
	binary.Write(out, binary.LittleEndian, uint32(fileOff))
	binary.Write(out, binary.LittleEndian, uint32(relocOff))
	binary.Write(out, binary.LittleEndian, uint32(0)) // PointerToLinenumbers
	binary.Write(out, binary.LittleEndian, uint16(numRelocs))
	binary.Write(out, binary.LittleEndian, uint16(0)) // NumberOfLinenumbers
	binary.Write(out, binary.LittleEndian, characteristics)
}
