package emit_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Goubermouche/sigma-sub002/internal/cfg"
	"github.com/Goubermouche/sigma-sub002/internal/emit"
	"github.com/Goubermouche/sigma-sub002/internal/ir"
	"github.com/Goubermouche/sigma-sub002/internal/isel"
	"github.com/Goubermouche/sigma-sub002/internal/liverange"
	"github.com/Goubermouche/sigma-sub002/internal/regalloc"
	"github.com/Goubermouche/sigma-sub002/internal/sched"
)

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

func TestEmitProducesNonEmptyCodeAndMatchingAssembly(t *testing.T) {
	selected := buildAdd(t)
	intervals := liverange.Analyze(selected)
	result := regalloc.Allocate(selected, intervals)

	obj, err := emit.Emit(selected, result)
	require.NoError(t, err)
	require.Equal(t, "add", obj.Name)
	require.NotEmpty(t, obj.Code)
	require.NotEmpty(t, obj.Assembly)
	require.Contains(t, obj.Assembly, "add")
}

func TestEmitRejectsOversizedFrame(t *testing.T) {
	selected := buildAdd(t)
	selected.Locals = append(selected.Locals, isel.LocalSlot{Size: 8192, Align: 8, Name: "big"})
	intervals := liverange.Analyze(selected)
	result := regalloc.Allocate(selected, intervals)

	_, err := emit.Emit(selected, result)
	require.ErrorIs(t, err, emit.ErrStackProbeUnsupported)
}
