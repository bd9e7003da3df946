package objfile_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Goubermouche/sigma-sub002/internal/emit"
	"github.com/Goubermouche/sigma-sub002/internal/objfile"
)

func sampleObjects() []*emit.Object {
	return []*emit.Object{
		{
			Name: "main",
			Code: []byte{0x90, 0xe8, 0, 0, 0, 0, 0xc3}, // nop; call rel32; ret
			Relocs: []emit.Relocation{
				{Offset: 2, Symbol: "helper", Type: emit.RelPC32},
			},
		},
		{
			Name: "helper",
			Code: []byte{0xc3},
		},
	}
}

func TestBuildConcatenatesTextInOrder(t *testing.T) {
	m := objfile.Build(sampleObjects())
	require.Len(t, m.Text, 8)
	require.Equal(t, byte(0x90), m.Text[0])
	require.Equal(t, byte(0xc3), m.Text[7]) // helper's single ret follows main's 7 bytes
}

func TestBuildInternsRodataOncePerSharedString(t *testing.T) {
	objs := []*emit.Object{
		{Name: "a", Code: []byte{0x90}, Rodata: []emit.RodataString{{Value: "hi", Offset: 0}}},
		{Name: "b", Code: []byte{0x90}, Rodata: []emit.RodataString{{Value: "hi", Offset: 0}}},
	}
	m := objfile.Build(objs)
	// "hi\0" appears exactly once even though two functions reference it.
	require.Equal(t, 3, len(m.Rdata))
}

func TestWriteCOFFStartsWithAMD64MachineID(t *testing.T) {
	m := objfile.Build(sampleObjects())
	bytes := objfile.Write(m, objfile.FormatCOFF)
	require.GreaterOrEqual(t, len(bytes), 20)
	machine := binary.LittleEndian.Uint16(bytes[0:2])
	require.Equal(t, uint16(0x8664), machine)
}

func TestWriteELFStartsWithElfMagic(t *testing.T) {
	m := objfile.Build(sampleObjects())
	bytes := objfile.Write(m, objfile.FormatELF)
	require.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, bytes[0:4])
}

func TestWriteELFDefaultsToRelocatableType(t *testing.T) {
	m := objfile.Build(sampleObjects())
	bytes := objfile.Write(m, objfile.FormatELF)
	// e_type lives at offset 16 as a little-endian uint16; ET_REL == 1.
	etype := binary.LittleEndian.Uint16(bytes[16:18])
	require.Equal(t, uint16(1), etype)
}

func TestWriteProducesNonEmptyContainerForEitherFormat(t *testing.T) {
	m := objfile.Build(sampleObjects())
	require.NotEmpty(t, objfile.Write(m, objfile.FormatCOFF))
	require.NotEmpty(t, objfile.Write(m, objfile.FormatELF))
}
