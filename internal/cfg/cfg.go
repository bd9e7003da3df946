// Package cfg builds the reverse-postorder control-flow graph and
// dominator tree over a function's wired IR graph. Dominators use the
// Cooper/Harvey/Kennedy fixed-point over RPO numbers.
package cfg

import "github.com/Goubermouche/sigma-sub002/internal/ir"

// BasicBlock is a maximal run of non-terminator control nodes between
// two block heads.
type BasicBlock struct {
	ID             int
	Head           *ir.Node // REGION, ENTRY, or a branch-target PROJECTION
	Start, End     *ir.Node
	Preds, Succs   []*BasicBlock
	Dominator      *BasicBlock // immediate dominator; nil for the entry block
	DominatorDepth int
}

// Graph is the output of Build: every block keyed by its head node, the
// reverse-postorder block order, and a reverse index from every control
// node in the chain (head through terminator) to the block it belongs to
// — internal/sched's early/late placement needs to map a pinned control
// input back to its owning block, not just a block's head.
type Graph struct {
	Blocks    map[*ir.Node]*BasicBlock
	NodeBlock map[*ir.Node]*BasicBlock
	RPO       []*BasicBlock
}

// Build walks fn's IR graph from Entry and produces its Graph.
func Build(fn *ir.Function) *Graph {
	g := &Graph{Blocks: make(map[*ir.Node]*BasicBlock), NodeBlock: make(map[*ir.Node]*BasicBlock)}

	order := postOrder(fn.Entry)
	// order is post-order; reverse for RPO.
	for i := len(order) - 1; i >= 0; i-- {
		g.RPO = append(g.RPO, g.blockFor(order[i]))
	}
	for i, b := range g.RPO {
		b.ID = i
	}
	wireEdges(g)
	computeDominators(g)
	return g
}

// blockFor returns (allocating if needed) the BasicBlock headed at head,
// walking forward through the linear chain of non-terminator control
// nodes until a terminator (BRANCH, EXIT, UNREACHABLE, RETURN) is found.
func (g *Graph) blockFor(head *ir.Node) *BasicBlock {
	if b, ok := g.Blocks[head]; ok {
		return b
	}
	b := &BasicBlock{Head: head, Start: head}
	g.Blocks[head] = b
	g.NodeBlock[head] = b
	cur := head
	for {
		if isTerminator(cur) || feedsRegion(cur) {
			b.End = cur
			return b
		}
		next := chainSuccessor(cur)
		if next == nil {
			b.End = cur
			return b
		}
		cur = next
		g.NodeBlock[cur] = b
	}
}

// blockEnd walks forward from head along the single-threaded control
// chain until it reaches a terminator (BRANCH/EXIT/UNREACHABLE/RETURN) or
// a node that is itself wired as a predecessor input of some REGION — a
// REGION predecessor edge *is* the implicit jump CreateJump wires, so
// the node feeding it ends the block even though it's not a terminator
// kind itself.
func blockEnd(head *ir.Node) *ir.Node {
	cur := head
	for {
		if isTerminator(cur) || feedsRegion(cur) {
			return cur
		}
		next := chainSuccessor(cur)
		if next == nil {
			return cur
		}
		cur = next
	}
}

func isTerminator(n *ir.Node) bool {
	switch n.Kind {
	case ir.KindBranch, ir.KindExit, ir.KindUnreachable, ir.KindReturn:
		return true
	}
	return false
}

func feedsRegion(n *ir.Node) bool {
	for u := n.Users; u != nil; u = u.Next {
		if u.User.Kind == ir.KindRegion {
			return true
		}
	}
	return false
}

// chainSuccessor returns the next control-sequenced node after cur
// (the unique stateful consumer reading cur's control edge at slot 0).
func chainSuccessor(cur *ir.Node) *ir.Node {
	for u := cur.Users; u != nil; u = u.Next {
		if u.Slot == 0 && isControlConsumer(u.User) {
			return u.User
		}
	}
	return nil
}

func isControlConsumer(n *ir.Node) bool {
	switch n.Kind {
	case ir.KindLoad, ir.KindStore, ir.KindCall,
		ir.KindBranch, ir.KindReturn, ir.KindUnreachable:
		return true
	}
	return false
}

// blockHeadSuccessors returns the block-head nodes reachable as control
// successors of a block's terminator. A BRANCH fans out through its two
// projections; any other end node reaches its successor(s) directly as
// whichever REGION(s) it feeds (the implicit CreateJump edge).
func blockHeadSuccessors(end *ir.Node) []*ir.Node {
	switch end.Kind {
	case ir.KindBranch:
		p := end.Payload.(ir.BranchPayload)
		return []*ir.Node{regionAfter(p.True), regionAfter(p.False)}
	case ir.KindExit, ir.KindReturn, ir.KindUnreachable:
		return nil
	default:
		var succs []*ir.Node
		for u := end.Users; u != nil; u = u.Next {
			if u.User.Kind == ir.KindRegion {
				succs = append(succs, u.User)
			}
		}
		return succs
	}
}

// regionAfter finds the REGION that a BRANCH's projection feeds.
func regionAfter(proj *ir.Node) *ir.Node {
	for u := proj.Users; u != nil; u = u.Next {
		if u.User.Kind == ir.KindRegion {
			return u.User
		}
	}
	return proj
}

// postOrder does a DFS from entry over block-head nodes only, returning
// them in post-order (each visited exactly once).
func postOrder(entry *ir.Node) []*ir.Node {
	visited := make(map[*ir.Node]bool)
	var order []*ir.Node
	var visit func(head *ir.Node)
	visit = func(head *ir.Node) {
		if visited[head] {
			return
		}
		visited[head] = true
		end := blockEnd(head)
		for _, succ := range blockHeadSuccessors(end) {
			visit(succ)
		}
		order = append(order, head)
	}
	visit(entry)
	return order
}

func wireEdges(g *Graph) {
	for _, b := range g.RPO {
		for _, headNode := range blockHeadSuccessors(b.End) {
			succ, ok := g.Blocks[headNode]
			if !ok {
				continue
			}
			b.Succs = append(b.Succs, succ)
			succ.Preds = append(succ.Preds, b)
		}
	}
}

// computeDominators runs the Cooper/Harvey/Kennedy iterative fixed-point
// over RPO numbers.
func computeDominators(g *Graph) {
	if len(g.RPO) == 0 {
		return
	}
	entry := g.RPO[0]
	entry.Dominator = entry

	changed := true
	for changed {
		changed = false
		for _, b := range g.RPO[1:] {
			var newIdom *BasicBlock
			for _, p := range b.Preds {
				if p.Dominator == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = intersect(newIdom, p)
			}
			if newIdom != nil && b.Dominator != newIdom {
				b.Dominator = newIdom
				changed = true
			}
		}
	}
	entry.Dominator = nil
	for _, b := range g.RPO {
		b.DominatorDepth = dominatorDepth(b)
	}
}

func intersect(a, b *BasicBlock) *BasicBlock {
	for a != b {
		for a.ID > b.ID {
			a = a.Dominator
		}
		for b.ID > a.ID {
			b = b.Dominator
		}
	}
	return a
}

func dominatorDepth(b *BasicBlock) int {
	depth := 0
	for cur := b; cur.Dominator != nil; cur = cur.Dominator {
		depth++
	}
	return depth
}

// Dominates reports whether a dominates b (reflexive).
func Dominates(a, b *BasicBlock) bool {
	for cur := b; cur != nil; cur = cur.Dominator {
		if cur == a {
			return true
		}
		if cur.Dominator == cur {
			break
		}
	}
	return false
}

// LCA returns the lowest common ancestor of a and b in the dominator
// tree, used by the scheduler's late pass.
func LCA(a, b *BasicBlock) *BasicBlock {
	for a.DominatorDepth > b.DominatorDepth {
		a = a.Dominator
	}
	for b.DominatorDepth > a.DominatorDepth {
		b = b.Dominator
	}
	for a != b {
		a = a.Dominator
		b = b.Dominator
	}
	return a
}
