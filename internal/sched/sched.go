// Package sched implements global code motion: the classical two-pass
// (Click 1995) scheduler that assigns every non-pinned data node to a
// single basic block, built on internal/cfg's dominator-tree primitives
// (Dominates/LCA). The early pass finds the deepest legal placement from
// inputs; the late pass lifts each node to the least common ancestor of
// its uses.
package sched

import (
	"github.com/Goubermouche/sigma-sub002/internal/cfg"
	"github.com/Goubermouche/sigma-sub002/internal/ir"
)

// Schedule assigns every node of fn a *cfg.BasicBlock, stored in
// ir.Node.Block, and returns a map from each block to its node list,
// each list in inputs-first visit order, ready for internal/isel.
func Schedule(fn *ir.Function, g *cfg.Graph) map[*cfg.BasicBlock][]*ir.Node {
	s := &scheduler{fn: fn, g: g, early: make(map[*ir.Node]*cfg.BasicBlock)}
	s.seedPinned()

	nodes := fn.Nodes()
	order := make([]*ir.Node, 0, len(nodes))
	seen := make(map[*ir.Node]bool)
	var visitEarly func(n *ir.Node)
	visitEarly = func(n *ir.Node) {
		if seen[n] {
			return
		}
		seen[n] = true
		for _, in := range n.Inputs {
			visitEarly(in)
		}
		if _, fixed := n.Block.(*cfg.BasicBlock); !fixed {
			s.early[n] = s.computeEarly(n)
		}
		order = append(order, n)
	}
	for _, n := range nodes {
		visitEarly(n)
	}

	lateSeen := make(map[*ir.Node]bool)
	var late func(n *ir.Node) *cfg.BasicBlock
	late = func(n *ir.Node) *cfg.BasicBlock {
		if b, ok := n.Block.(*cfg.BasicBlock); ok {
			return b
		}
		if lateSeen[n] {
			return s.early[n]
		}
		lateSeen[n] = true
		var lca *cfg.BasicBlock
		for u := n.Users; u != nil; u = u.Next {
			useBlock := s.effectiveUseBlock(u, late)
			if useBlock == nil {
				continue
			}
			if lca == nil {
				lca = useBlock
			} else {
				lca = cfg.LCA(lca, useBlock)
			}
		}
		if lca == nil {
			lca = s.early[n]
		}
		n.Block = lca
		return lca
	}
	for _, n := range order {
		late(n)
	}

	items := make(map[*cfg.BasicBlock][]*ir.Node)
	for _, n := range order {
		b, _ := n.Block.(*cfg.BasicBlock)
		if b == nil {
			continue
		}
		items[b] = append(items[b], n)
	}
	return items
}

type scheduler struct {
	fn    *ir.Function
	g     *cfg.Graph
	early map[*ir.Node]*cfg.BasicBlock
}

// seedPinned assigns fixed blocks to every node the scheduler never
// moves: the control-chain nodes internal/cfg already placed, PHIs
// (attached to their REGION), LOCALs, anchored at the function entry
// like every other stack slot allocated up front, and parameter
// projections of the entry node, which also stay in the entry block.
func (s *scheduler) seedPinned() {
	entryBlock := s.g.NodeBlock[s.fn.Entry]
	for n, b := range s.g.NodeBlock {
		n.Block = b
	}
	for _, n := range s.fn.Nodes() {
		switch n.Kind {
		case ir.KindPhi:
			region := n.Inputs[0]
			if b, ok := region.Block.(*cfg.BasicBlock); ok {
				n.Block = b
			}
		case ir.KindLocal:
			n.Block = entryBlock
		case ir.KindProjection:
			if n.Inputs[0] == s.fn.Entry {
				n.Block = entryBlock
			}
		}
	}
}

// computeEarly finds the deepest (dominator-depth maximum) block among a
// node's already-scheduled inputs, falling back to the entry block for
// leaves, since parameter projections are never members of any control
// chain.
func (s *scheduler) computeEarly(n *ir.Node) *cfg.BasicBlock {
	best := s.g.NodeBlock[s.fn.Entry]
	for _, in := range n.Inputs {
		var ib *cfg.BasicBlock
		if b, ok := in.Block.(*cfg.BasicBlock); ok {
			ib = b
		} else {
			ib = s.early[in]
		}
		if ib != nil && (best == nil || ib.DominatorDepth > best.DominatorDepth) {
			best = ib
		}
	}
	return best
}

// effectiveUseBlock resolves the block a use should be weighed against
// for LCA purposes: for an ordinary consumer, its own block; for a PHI,
// the predecessor block feeding that specific phi input.
func (s *scheduler) effectiveUseBlock(u *ir.User, late func(*ir.Node) *cfg.BasicBlock) *cfg.BasicBlock {
	if u.User.Kind == ir.KindPhi && u.Slot > 0 {
		region := u.User.Inputs[0]
		pred := region.Inputs[u.Slot-1]
		if b, ok := pred.Block.(*cfg.BasicBlock); ok {
			return b
		}
		return s.g.NodeBlock[pred]
	}
	return late(u.User)
}
