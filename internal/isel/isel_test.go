package isel_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Goubermouche/sigma-sub002/internal/cfg"
	"github.com/Goubermouche/sigma-sub002/internal/ir"
	"github.com/Goubermouche/sigma-sub002/internal/isel"
	"github.com/Goubermouche/sigma-sub002/internal/sched"
)

// buildAdd constructs `fn add(a, b: i32) i32 { return a + b; }`, the
// smallest function that exercises a binary op and a return.
func buildAdd(t *testing.T) *isel.Function {
	t.Helper()
	fn := ir.NewFunction("add", ir.TypeI32, []ir.DataType{ir.TypeI32, ir.TypeI32})
	b := ir.NewBuilder(fn)
	a := b.GetFunctionParameter(0)
	c := b.GetFunctionParameter(1)
	sum := b.CreateAdd(a, c, ir.TypeI32)
	b.CreateReturn(sum)

	g := cfg.Build(fn)
	schedule := sched.Schedule(fn, g)
	return isel.Select(fn, g, schedule)
}

func TestSelectProducesOneBlockWorthOfInstructions(t *testing.T) {
	selected := buildAdd(t)
	require.NotNil(t, selected.First)
	require.Len(t, selected.Blocks, 1)

	var ops []isel.Opcode
	for i := selected.First; i != nil; i = i.Next {
		ops = append(ops, i.Op)
	}
	require.Contains(t, ops, isel.OpAdd)
	require.Contains(t, ops, isel.OpEpilogue)
}

func TestSelectAssignsDistinctVRegsToParameters(t *testing.T) {
	selected := buildAdd(t)
	require.Greater(t, selected.NumVRegs, isel.NumFixedRegs)
}

func TestAllOperandsConcatenatesInCanonicalOrder(t *testing.T) {
	instr := &isel.Instruction{Out: []int{1}, In: []int{2, 3}, Tmp: []int{4}}
	require.Equal(t, []int{1, 2, 3, 4}, instr.AllOperands())
}

func TestDataTypeOfMapsIRWidths(t *testing.T) {
	require.Equal(t, isel.Byte, isel.DataTypeOf(ir.TypeI8))
	require.Equal(t, isel.Byte, isel.DataTypeOf(ir.TypeBool))
	require.Equal(t, isel.Dword, isel.DataTypeOf(ir.TypeI32))
	require.Equal(t, isel.Qword, isel.DataTypeOf(ir.TypeI64))
	require.Equal(t, isel.Pointer, isel.DataTypeOf(ir.TypePtr))
}

func TestCalleeSavedAndCallerSavedAreDisjoint(t *testing.T) {
	for reg := range isel.CalleeSaved {
		require.False(t, isel.Win64CallerSaved[reg])
	}
}
