// Package regalloc implements a linear-scan register allocator
// (Wimmer/Mössenböck, with interval splitting and spilling): it
// consumes internal/liverange's Interval map and produces a Result that
// maps each vreg, at each instruction time, to a physical register or a
// stack spill slot. Instruction operands are not rewritten; internal/emit
// reads the Result as it encodes each instruction.
package regalloc

import (
	"sort"

	"github.com/Goubermouche/sigma-sub002/internal/isel"
	"github.com/Goubermouche/sigma-sub002/internal/liverange"
)

const (
	numGPR = 16
	// halfFree biases allocateFreeReg away from callee-saved registers
	// so they are preferred last unless no caller-saved one remains.
	halfFreeBias = 1 << 20
)

// reservedReg excludes rsp/rbp (frame management) and r10/r11 from the
// allocatable pool; internal/emit uses r10/r11 as scratch registers to
// reload/store spilled operands inline at each use, so they must never
// also be handed out to a live interval.
func reservedReg(r int) bool {
	return r == isel.RSP || r == isel.RBP || r == isel.R10 || r == isel.R11
}

// Result is regalloc's output: each vreg's assigned physical register
// (or its spill slot if it never got one), plus the set of stack slots
// that must be reserved in the function's frame.
type Result struct {
	// PhysReg maps an instruction-time-local "child" interval's vreg
	// id (original vreg for unsplit intervals, or a synthesized id for a
	// split child) to its physical register, or -1 if it's spilled.
	PhysReg map[int]int
	// StackSlot maps a spilled interval's vreg id to a frame slot index
	// (allocated after the function's declared KindLocal slots).
	StackSlot map[int]int
	NumSpillSlots int

	// childAt lists, for each original vreg, the interval and its split
	// children; PhysRegAt/SlotAt search it for the child covering an
	// instruction time — internal/emit asks this to know
	// which physical register or spill slot an operand occupies at a
	// specific instruction.
	childAt map[int][]*liverange.Interval
}

// PhysRegAt returns the physical register (or -1 if spilled) holding
// vreg's value at instruction time t.
func (r *Result) PhysRegAt(vreg, t int) (int, bool) {
	for _, child := range r.childAt[vreg] {
		if child.Covers(t) || child.Start() == t {
			if p, ok := r.PhysReg[child.VReg]; ok {
				return p, p >= 0
			}
		}
	}
	if p, ok := r.PhysReg[vreg]; ok {
		return p, p >= 0
	}
	return -1, false
}

// SlotAt returns the spill slot holding vreg's value at time t, if it is
// spilled there.
func (r *Result) SlotAt(vreg, t int) (int, bool) {
	for _, child := range r.childAt[vreg] {
		if child.Covers(t) || child.Start() == t {
			if s, ok := r.StackSlot[child.VReg]; ok {
				return s, true
			}
		}
	}
	if s, ok := r.StackSlot[vreg]; ok {
		return s, true
	}
	return -1, false
}

type allocator struct {
	intervals map[int]*Interval
	active    [2]map[int]*Interval // indexed by register class: 0=GPR
	inactive  map[int]*Interval
	unhandled []*Interval
	result    *Result
	nextSplitID int
	numSpillSlots int
}

// Interval is a plain alias of liverange.Interval; the allocator keeps
// assigned registers and spill slots in Result, and split links in
// liverange.Interval's own SplitParent/SplitKids.
type Interval = liverange.Interval

// Allocate runs the main per-interval linear-scan loop over fn's
// intervals (from internal/liverange.Analyze), producing a Result.
func Allocate(fn *isel.Function, intervals map[int]*liverange.Interval) *Result {
	a := &allocator{
		intervals: intervals,
		inactive:  make(map[int]*Interval),
		result:    &Result{PhysReg: make(map[int]int), StackSlot: make(map[int]int), childAt: make(map[int][]*liverange.Interval)},
		nextSplitID: nextFreeVRegID(fn),
	}
	a.active[0] = make(map[int]*Interval)
	a.active[1] = make(map[int]*Interval)

	for vreg, iv := range intervals {
		if vreg < isel.NumFixedRegs {
			// Pre-allocated physical register alias: pin it to itself,
			// don't run it through allocation.
			a.result.PhysReg[vreg] = vreg
			continue
		}
		if len(iv.Ranges) == 0 {
			continue
		}
		a.unhandled = append(a.unhandled, iv)
	}
	sort.Slice(a.unhandled, func(i, j int) bool {
		if a.unhandled[i].Start() != a.unhandled[j].Start() {
			return a.unhandled[i].Start() < a.unhandled[j].Start()
		}
		return a.unhandled[i].VReg < a.unhandled[j].VReg
	})

	for len(a.unhandled) > 0 {
		cur := a.unhandled[0]
		a.unhandled = a.unhandled[1:]
		pos := cur.Start()
		a.expireActive(pos)
		a.shuffleInactive(pos)

		if !a.allocateFreeReg(cur) {
			a.allocateBlockedReg(cur)
		}
	}

	for vreg, iv := range intervals {
		a.result.childAt[vreg] = collectDescendants(iv)
	}
	a.result.NumSpillSlots = a.numSpillSlots
	return a.result
}

func nextFreeVRegID(fn *isel.Function) int {
	return fn.NumVRegs + 1
}

// collectDescendants flattens iv's split-child tree into the list
// Result.PhysRegAt/SlotAt search.
func collectDescendants(iv *Interval) []*Interval {
	out := []*Interval{iv}
	for _, kid := range iv.SplitKids {
		out = append(out, collectDescendants(kid)...)
	}
	return out
}

// expireActive moves every active interval whose range has ended by pos
// out of the active set.
func (a *allocator) expireActive(pos int) {
	for class := 0; class < 2; class++ {
		for vreg, iv := range a.active[class] {
			if iv.End() <= pos {
				delete(a.active[class], vreg)
			}
		}
	}
}

// shuffleInactive moves actives that are now in a lifetime hole to
// inactive, and brings inactive intervals that became active back
//.
func (a *allocator) shuffleInactive(pos int) {
	for class := 0; class < 2; class++ {
		for vreg, iv := range a.active[class] {
			if !iv.Covers(pos) {
				delete(a.active[class], vreg)
				a.inactive[vreg] = iv
			}
		}
	}
	for vreg, iv := range a.inactive {
		if iv.Covers(pos) {
			delete(a.inactive, vreg)
			a.active[0][vreg] = iv
		} else if iv.End() <= pos {
			delete(a.inactive, vreg)
		}
	}
}

// allocateFreeReg computes freeUntilPos[r] for every register, honors a
// valid hint, and either assigns a register for the interval's whole
// lifetime or splits it at the register's free point. Returns false if
// no register is free at all (the caller must
// fall back to allocate_blocked_reg).
func (a *allocator) allocateFreeReg(cur *Interval) bool {
	freeUntil := make([]int, numGPR)
	for r := 0; r < numGPR; r++ {
		freeUntil[r] = 1 << 30
	}
	for vreg := range a.active[0] {
		if vreg < numGPR {
			freeUntil[vreg] = 0
		}
	}
	for vreg, iv := range a.inactive {
		if vreg >= numGPR {
			continue
		}
		if until := firstIntersection(cur, iv); until >= 0 && until < freeUntil[vreg] {
			freeUntil[vreg] = until
		}
	}

	best, bestPos := -1, -1
	for r := 0; r < numGPR; r++ {
		if reservedReg(r) {
			continue
		}
		score := freeUntil[r]
		if isel.CalleeSaved[r] {
			score -= halfFreeBias
		}
		if score > bestPos {
			bestPos, best = score, r
		}
	}
	if best == -1 || freeUntil[best] == 0 {
		return false
	}
	if freeUntil[best] >= cur.End() {
		a.assign(cur, best)
		return true
	}
	// Free only for part of the interval: split at the free point and
	// requeue the tail.
	a.assign(cur, best)
	a.splitAt(cur, freeUntil[best])
	return true
}

// firstIntersection returns the earliest instruction time at which cur
// and other overlap, or -1 if they never do.
func firstIntersection(cur, other *Interval) int {
	best := -1
	for _, a := range cur.Ranges {
		for _, b := range other.Ranges {
			start := a.Start
			if b.Start > start {
				start = b.Start
			}
			end := a.End
			if b.End < end {
				end = b.End
			}
			if start < end {
				if best == -1 || start < best {
					best = start
				}
			}
		}
	}
	return best
}

// allocateBlockedReg computes nextUsePos[r] for every register; if
// cur's own first use is past the furthest one, cur itself is spilled,
// otherwise the blocking interval is split at the current position and
// evicted.
func (a *allocator) allocateBlockedReg(cur *Interval) {
	nextUse := make([]int, numGPR)
	owner := make([]*Interval, numGPR)
	for r := range nextUse {
		nextUse[r] = 1 << 30
	}
	for vreg, iv := range a.active[0] {
		if vreg < numGPR {
			if u := iv.NextUseAfter(cur.Start()); u >= 0 {
				nextUse[vreg] = u
				owner[vreg] = iv
			} else {
				nextUse[vreg] = 1 << 30
				owner[vreg] = iv
			}
		}
	}

	best, bestPos := -1, -1
	for r := 0; r < numGPR; r++ {
		if reservedReg(r) || owner[r] == nil {
			continue
		}
		if nextUse[r] > bestPos {
			bestPos, best = nextUse[r], r
		}
	}
	if best == -1 {
		a.spill(cur)
		return
	}
	firstUse := cur.NextRegUseAfter(cur.Start())
	if firstUse < 0 || firstUse > nextUse[best] {
		a.spill(cur)
		return
	}
	// Evict the blocking interval: split it at the current position,
	// free its register for cur, and requeue its tail.
	blocking := owner[best]
	delete(a.active[0], best)
	a.assign(cur, best)
	a.splitAt(blocking, cur.Start())
}

func (a *allocator) assign(iv *Interval, reg int) {
	a.result.PhysReg[iv.VReg] = reg
	a.active[0][reg] = iv
}

// splitAt creates a split child representing iv's tail starting at pos
// and inserts it into unhandled at the correct sorted position. The
// parent keeps only ranges before pos; the child inherits the rest and
// is requeued.
func (a *allocator) splitAt(iv *Interval, pos int) {
	child := &Interval{VReg: a.newSplitID(), SplitParent: iv}
	var parentRanges, childRanges []liverange.Range
	for _, r := range iv.Ranges {
		switch {
		case r.End <= pos:
			parentRanges = append(parentRanges, r)
		case r.Start >= pos:
			childRanges = append(childRanges, r)
		default:
			parentRanges = append(parentRanges, liverange.Range{Start: r.Start, End: pos})
			childRanges = append(childRanges, liverange.Range{Start: pos, End: r.End})
		}
	}
	var parentUses, childUses []liverange.UsePosition
	for _, u := range iv.Uses {
		if u.Pos < pos {
			parentUses = append(parentUses, u)
		} else {
			childUses = append(childUses, u)
		}
	}
	iv.Ranges, iv.Uses = parentRanges, parentUses
	child.Ranges, child.Uses = childRanges, childUses
	iv.SplitKids = append(iv.SplitKids, child)

	if len(child.Ranges) == 0 {
		return
	}
	a.insertSortedUnhandled(child)
}

func (a *allocator) newSplitID() int {
	id := a.nextSplitID
	a.nextSplitID++
	return id
}

func (a *allocator) insertSortedUnhandled(iv *Interval) {
	i := sort.Search(len(a.unhandled), func(i int) bool { return a.unhandled[i].Start() >= iv.Start() })
	a.unhandled = append(a.unhandled, nil)
	copy(a.unhandled[i+1:], a.unhandled[i:])
	a.unhandled[i] = iv
}

// spill assigns cur a stack slot instead of a register. If any of its
// uses require a register (UseReg), those positions need a reload split
// off into their own short-lived interval that does get a register —
// modeled here as a further split at the first such use, which re-enters
// allocateFreeReg/allocateBlockedReg on the next unhandled pass.
func (a *allocator) spill(cur *Interval) {
	slot := a.numSpillSlots
	a.numSpillSlots++
	a.result.StackSlot[cur.VReg] = slot
	a.result.PhysReg[cur.VReg] = -1

	if reload := cur.NextRegUseAfter(cur.Start() + 1); reload >= 0 {
		a.splitAt(cur, reload)
	}
}
