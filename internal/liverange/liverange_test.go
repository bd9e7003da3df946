package liverange_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Goubermouche/sigma-sub002/internal/cfg"
	"github.com/Goubermouche/sigma-sub002/internal/ir"
	"github.com/Goubermouche/sigma-sub002/internal/isel"
	"github.com/Goubermouche/sigma-sub002/internal/liverange"
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

func TestDenseSetAddAndHas(t *testing.T) {
	d := liverange.NewDenseSet(4)
	require.False(t, d.Has(2))
	d.Add(2)
	require.True(t, d.Has(2))
	require.False(t, d.Has(3))
}

func TestDenseSetGrowsOnDemand(t *testing.T) {
	d := liverange.NewDenseSet(1)
	d.Add(200)
	require.True(t, d.Has(200))
}

func TestUnionIntoReportsChange(t *testing.T) {
	dst := liverange.NewDenseSet(8)
	src := liverange.NewDenseSet(8)
	src.Add(3)
	changed := liverange.UnionInto(dst, src)
	require.True(t, changed)
	require.True(t, dst.Has(3))

	changedAgain := liverange.UnionInto(dst, src)
	require.False(t, changedAgain)
}

func TestSubRemovesKillMembers(t *testing.T) {
	dst := liverange.NewDenseSet(8)
	dst.Add(1)
	dst.Add(2)
	kill := liverange.NewDenseSet(8)
	kill.Add(1)

	out := liverange.Sub(dst, kill)
	require.ElementsMatch(t, []int{2}, out.Members())
}

func TestIntervalCoversHalfOpenRange(t *testing.T) {
	iv := &liverange.Interval{Ranges: []liverange.Range{{Start: 10, End: 20}}}
	require.True(t, iv.Covers(10))
	require.True(t, iv.Covers(19))
	require.False(t, iv.Covers(20))
	require.False(t, iv.Covers(9))
}

func TestIntervalStartEndOfEmptyIsMinusOne(t *testing.T) {
	iv := &liverange.Interval{}
	require.Equal(t, -1, iv.Start())
	require.Equal(t, -1, iv.End())
}

// Every virtual register the selector allocates, including the ones
// materialized for the two parameters and the add's result, must get a
// corresponding interval out of Analyze.
func TestAnalyzeProducesAnIntervalPerVReg(t *testing.T) {
	selected := buildAdd(t)
	intervals := liverange.Analyze(selected)

	seen := map[int]bool{}
	for i := selected.First; i != nil; i = i.Next {
		for _, v := range i.AllOperands() {
			seen[v] = true
		}
	}
	for v := range seen {
		if v < isel.NumFixedRegs {
			continue
		}
		iv, ok := intervals[v]
		require.Truef(t, ok, "vreg %d has no interval", v)
		require.NotEmpty(t, iv.Ranges)
	}
}
