package regalloc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Goubermouche/sigma-sub002/internal/cfg"
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

// Every non-fixed vreg a small function like this one uses must end up
// with either a physical register or a stack slot at every
// instruction that reads or writes it, and the allocator must never
// hand out rsp, rbp, r10 or r11 (reserved for frame management and
// internal/emit's spill scratch registers).
func TestAllocateAssignsEveryVRegAndAvoidsReservedRegs(t *testing.T) {
	selected := buildAdd(t)
	intervals := liverange.Analyze(selected)
	result := regalloc.Allocate(selected, intervals)
	require.NotNil(t, result)

	for i := selected.First; i != nil; i = i.Next {
		for _, v := range i.AllOperands() {
			if v < isel.NumFixedRegs {
				continue
			}
			reg, ok := result.PhysRegAt(v, i.Time)
			if !ok {
				_, hasSlot := result.SlotAt(v, i.Time)
				require.Truef(t, hasSlot, "vreg %d at time %d has neither a register nor a slot", v, i.Time)
				continue
			}
			require.NotEqual(t, isel.RSP, reg)
			require.NotEqual(t, isel.RBP, reg)
			require.NotEqual(t, isel.R10, reg)
			require.NotEqual(t, isel.R11, reg)
		}
	}
}

// buildPressure builds a function with 20 simultaneously-live i64 values
// (loads from distinct stack slots, all consumed only by the final sum
// chain), more than the allocatable GPR set can hold.
func buildPressure(t *testing.T) *isel.Function {
	t.Helper()
	fn := ir.NewFunction("pressure", ir.TypeI64, nil)
	b := ir.NewBuilder(fn)

	const n = 20
	vals := make([]*ir.Node, n)
	for i := 0; i < n; i++ {
		local := b.CreateLocal(8, 8, "v")
		b.CreateStore(local, b.CreateSignedInteger(int64(i+1), 64))
		vals[i] = b.CreateLoad(local, ir.TypeI64)
	}
	sum := vals[0]
	for i := 1; i < n; i++ {
		sum = b.CreateAdd(sum, vals[i], ir.TypeI64)
	}
	b.CreateReturn(sum)

	g := cfg.Build(fn)
	schedule := sched.Schedule(fn, g)
	return isel.Select(fn, g, schedule)
}

// With 20 live values the allocator has to spill, and no two values may
// hold the same physical register at the same instruction.
func TestAllocateSpillsUnderPressureWithoutRegisterClashes(t *testing.T) {
	selected := buildPressure(t)
	intervals := liverange.Analyze(selected)
	result := regalloc.Allocate(selected, intervals)

	require.Greater(t, result.NumSpillSlots, 0, "20 live i64 values must force at least one spill")

	for i := selected.First; i != nil; i = i.Next {
		taken := map[int]int{}
		for _, v := range i.AllOperands() {
			if v < isel.NumFixedRegs {
				continue
			}
			reg, ok := result.PhysRegAt(v, i.Time)
			if !ok {
				continue
			}
			if prev, clash := taken[reg]; clash && prev != v {
				t.Fatalf("vregs %d and %d both assigned r%d at time %d", prev, v, reg, i.Time)
			}
			taken[reg] = v
		}
	}
}

func TestAllocateIsDeterministicAcrossRuns(t *testing.T) {
	selected := buildAdd(t)
	intervals := liverange.Analyze(selected)
	first := regalloc.Allocate(selected, intervals)

	selected2 := buildAdd(t)
	intervals2 := liverange.Analyze(selected2)
	second := regalloc.Allocate(selected2, intervals2)

	require.Equal(t, first.NumSpillSlots, second.NumSpillSlots)
}
