// Package liverange turns a selected instruction list into the
// per-virtual-register live intervals internal/regalloc consumes: a
// timing pass assigning instruction times and local gen/kill sets, an
// iterative bit-parallel global liveness pass, and a reverse-walk
// interval-construction pass.
package liverange

import (
	"sort"

	"github.com/Goubermouche/sigma-sub002/internal/cfg"
	"github.com/Goubermouche/sigma-sub002/internal/isel"
)

// DenseSet is a bit-parallel set of virtual-register indices, 64 per
// word.
type DenseSet struct {
	words []uint64
}

func NewDenseSet(n int) *DenseSet {
	return &DenseSet{words: make([]uint64, (n+63)/64)}
}

func (d *DenseSet) ensure(i int) {
	need := i/64 + 1
	for len(d.words) < need {
		d.words = append(d.words, 0)
	}
}

func (d *DenseSet) Add(i int) {
	d.ensure(i)
	d.words[i/64] |= 1 << uint(i%64)
}

func (d *DenseSet) Has(i int) bool {
	if i/64 >= len(d.words) {
		return false
	}
	return d.words[i/64]&(1<<uint(i%64)) != 0
}

// UnionInto ORs src into dst, reporting whether dst changed.
func UnionInto(dst, src *DenseSet) bool {
	dst.ensure(len(src.words)*64 - 1)
	changed := false
	for i, w := range src.words {
		if dst.words[i]|w != dst.words[i] {
			dst.words[i] |= w
			changed = true
		}
	}
	return changed
}

// Sub computes dst AND NOT kill into a fresh set.
func Sub(dst, kill *DenseSet) *DenseSet {
	out := &DenseSet{words: make([]uint64, len(dst.words))}
	copy(out.words, dst.words)
	for i := range kill.words {
		if i < len(out.words) {
			out.words[i] &^= kill.words[i]
		}
	}
	return out
}

func (d *DenseSet) Members() []int {
	var out []int
	for w, word := range d.words {
		for b := 0; b < 64; b++ {
			if word&(1<<uint(b)) != 0 {
				out = append(out, w*64+b)
			}
		}
	}
	return out
}

// UseKind distinguishes a use that must sit in a register from one the
// allocator may leave in memory.
type UseKind int

const (
	UseMemOrReg UseKind = iota
	UseReg
)

// UsePosition is one read or write of a vreg at a given instruction time.
type UsePosition struct {
	Pos  int
	Kind UseKind
	Def  bool // true for a write (instruction Out), false for a read (In/Tmp)
}

// Range is a half-open live range [Start, End) over instruction
// timestamps.
type Range struct {
	Start, End int
}

// Interval is the per-virtual-register output: a sorted, coalesced
// range list plus tagged use positions.
type Interval struct {
	VReg    int
	Ranges  []Range
	Uses    []UsePosition
	Fixed   bool // one of the 32 pre-allocated physical-register aliases
	SpillSlot int
	HasSpillSlot bool

	// SplitParent/SplitKids link an interval to the children produced by
	// internal/regalloc's splitting.
	SplitParent *Interval
	SplitKids   []*Interval
}

// Covers reports whether pos falls inside one of iv's ranges.
func (iv *Interval) Covers(pos int) bool {
	for _, r := range iv.Ranges {
		if pos >= r.Start && pos < r.End {
			return true
		}
	}
	return false
}

// Start returns the interval's first live position, or -1 if empty.
func (iv *Interval) Start() int {
	if len(iv.Ranges) == 0 {
		return -1
	}
	return iv.Ranges[0].Start
}

// End returns the interval's last live position, or -1 if empty.
func (iv *Interval) End() int {
	if len(iv.Ranges) == 0 {
		return -1
	}
	return iv.Ranges[len(iv.Ranges)-1].End
}

// NextUseAfter returns the first use position >= from, of any kind, or
// -1 if none.
func (iv *Interval) NextUseAfter(from int) int {
	for _, u := range iv.Uses {
		if u.Pos >= from {
			return u.Pos
		}
	}
	return -1
}

// NextRegUseAfter returns the first UseReg-tagged use position >= from,
// used by allocate_blocked_reg's "is this interval's first required-
// register use past the blocking point" test.
func (iv *Interval) NextRegUseAfter(from int) int {
	for _, u := range iv.Uses {
		if u.Pos >= from && u.Kind == UseReg {
			return u.Pos
		}
	}
	return -1
}

func addRange(iv *Interval, start, end int) {
	// Coalesce with an adjacent/overlapping range (Pass C: "append … with
	// coalescing when adjacent").
	for i := range iv.Ranges {
		r := &iv.Ranges[i]
		if start <= r.End && end >= r.Start {
			if start < r.Start {
				r.Start = start
			}
			if end > r.End {
				r.End = end
			}
			return
		}
	}
	iv.Ranges = append(iv.Ranges, Range{Start: start, End: end})
}

func sortIntervalRanges(iv *Interval) {
	sort.Slice(iv.Ranges, func(i, j int) bool { return iv.Ranges[i].Start < iv.Ranges[j].Start })
	sort.Slice(iv.Uses, func(i, j int) bool { return iv.Uses[i].Pos < iv.Uses[j].Pos })
}

// blockInfo is the per-block bookkeeping Pass A/B need.
type blockInfo struct {
	start, end *isel.Instruction
	gen, kill  *DenseSet
	liveIn, liveOut *DenseSet
}

// Analyze runs Pass A (timing + local gen/kill), Pass B (global
// liveness) and Pass C (interval construction) over fn, returning one
// Interval per virtual register that is ever live.
func Analyze(fn *isel.Function) map[int]*Interval {
	blocks := make(map[*cfg.BasicBlock]*blockInfo)
	for _, b := range fn.Blocks {
		blocks[b] = &blockInfo{gen: NewDenseSet(fn.NumVRegs), kill: NewDenseSet(fn.NumVRegs)}
	}

	// Pass A: timing and local gen/kill.
	time := 0
	for instr := fn.First; instr != nil; instr = instr.Next {
		instr.Time = time
		time += 2
		b := fn.BlockOf[instr]
		bi := blocks[b]
		if bi.start == nil {
			bi.start = instr
		}
		bi.end = instr
		for _, v := range instr.In {
			if v >= 0 && !bi.kill.Has(v) {
				bi.gen.Add(v)
			}
		}
		for _, v := range instr.Tmp {
			if v >= 0 && !bi.kill.Has(v) {
				bi.gen.Add(v)
			}
		}
		for _, v := range instr.Out {
			if v >= 0 {
				bi.kill.Add(v)
			}
		}
	}

	// Pass B: iterative worklist dataflow, live_in = gen ∪ (live_out −
	// kill), live_out = ⋃ live_in(successor).
	for _, bi := range blocks {
		bi.liveIn = NewDenseSet(fn.NumVRegs)
		bi.liveOut = NewDenseSet(fn.NumVRegs)
	}
	changed := true
	for changed {
		changed = false
		for i := len(fn.Blocks) - 1; i >= 0; i-- {
			b := fn.Blocks[i]
			bi := blocks[b]
			for _, succ := range b.Succs {
				if UnionInto(bi.liveOut, blocks[succ].liveIn) {
					changed = true
				}
			}
			newIn := Sub(bi.liveOut, bi.kill)
			UnionInto(newIn, bi.gen)
			if UnionInto(bi.liveIn, newIn) {
				changed = true
			}
		}
	}

	// Pass C: reverse-walk every block, building per-operand use/def
	// positions into each vreg's Interval.
	intervals := make(map[int]*Interval)
	get := func(v int) *Interval {
		iv, ok := intervals[v]
		if !ok {
			iv = &Interval{VReg: v, Fixed: v < isel.NumFixedRegs}
			intervals[v] = iv
		}
		return iv
	}

	for i := len(fn.Blocks) - 1; i >= 0; i-- {
		b := fn.Blocks[i]
		bi := blocks[b]
		// Seed every live-out vreg with a range spanning the whole block;
		// per-instruction uses below extend it, and a def adds a one-slot
		// range without shortening it.
		blockStart, blockEnd := bi.start.Time, bi.end.Time+2
		for _, v := range bi.liveOut.Members() {
			addRange(get(v), blockStart, blockEnd)
		}
		for instr := bi.end; instr != nil; instr = instr.Prev {
			if fn.BlockOf[instr] != b {
				break
			}
			for _, v := range instr.Out {
				if v < 0 {
					continue
				}
				iv := get(v)
				addRange(iv, instr.Time, instr.Time+1)
				iv.Uses = append(iv.Uses, UsePosition{Pos: instr.Time, Def: true, Kind: defUseKind(instr)})
			}
			for _, v := range instr.In {
				if v < 0 {
					continue
				}
				iv := get(v)
				addRange(iv, blockStart, instr.Time+1)
				iv.Uses = append(iv.Uses, UsePosition{Pos: instr.Time, Kind: useKind(instr)})
			}
			for _, v := range instr.Tmp {
				if v < 0 {
					continue
				}
				iv := get(v)
				addRange(iv, instr.Time, instr.Time+1)
				// Call/syscall temporaries (clobber lists) are untagged
				// for REG.
				if instr.Op != isel.OpCall {
					iv.Uses = append(iv.Uses, UsePosition{Pos: instr.Time, Kind: UseReg})
				}
			}
		}
	}

	for _, iv := range intervals {
		sortIntervalRanges(iv)
	}
	return intervals
}

// defUseKind/useKind tag whether an operand must sit in a register.
// Memory operands of LOAD/STORE may be satisfied by a spill slot
// directly; every other operand must be a register.
func defUseKind(instr *isel.Instruction) UseKind {
	if instr.Flags&isel.FlagMem != 0 && (instr.Op == isel.OpLoad) {
		return UseReg // the destination of a load is always a register
	}
	return UseReg
}

func useKind(instr *isel.Instruction) UseKind {
	if instr.Op == isel.OpCall {
		return UseReg
	}
	if instr.Flags&isel.FlagMem != 0 && instr.Mem != nil && instr.Mem.HasSlot {
		return UseMemOrReg
	}
	return UseReg
}
