package ir_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Goubermouche/sigma-sub002/internal/ir"
)

func TestNewFunctionWiresExitToEntry(t *testing.T) {
	fn := ir.NewFunction("f", ir.TypeVoid, nil)
	require.Equal(t, []*ir.Node{fn.Entry}, fn.Exit.Inputs)
	require.Equal(t, 1, fn.Entry.NumUsers())
}

func TestParameterProjectionsArePinnedAndIndexed(t *testing.T) {
	fn := ir.NewFunction("f", ir.TypeI32, []ir.DataType{ir.TypeI32, ir.TypePtr})
	b := ir.NewBuilder(fn)

	p0 := b.GetFunctionParameter(0)
	p1 := b.GetFunctionParameter(1)
	require.True(t, p0.Pinned)
	require.Equal(t, ir.TypeI32, p0.Type)
	require.Equal(t, ir.TypePtr, p1.Type)
	require.Equal(t, ir.ProjectionPayload{Index: 0}, p0.Payload)
	require.Equal(t, ir.ProjectionPayload{Index: 1}, p1.Payload)
}

// Def-use edges must be symmetric: every input edge a node holds
// corresponds to exactly one User record on the definition it points at.
func TestUserListsMatchInputEdges(t *testing.T) {
	fn := ir.NewFunction("f", ir.TypeI32, []ir.DataType{ir.TypeI32})
	b := ir.NewBuilder(fn)
	p := b.GetFunctionParameter(0)

	sum := b.CreateAdd(p, p, ir.TypeI32)
	require.Equal(t, []*ir.Node{p, p}, sum.Inputs)
	require.Equal(t, 2, p.NumUsers())

	count := 0
	for u := p.Users; u != nil; u = u.Next {
		require.Equal(t, sum, u.User)
		count++
	}
	require.Equal(t, 2, count)
}

func TestCreatePhiRejectsMismatchedInputCount(t *testing.T) {
	fn := ir.NewFunction("f", ir.TypeI32, nil)
	b := ir.NewBuilder(fn)
	region := b.CreateRegion(fn.Entry)

	require.Panics(t, func() {
		b.CreatePhi(region, ir.TypeI32, nil)
	})
}

func TestCreatePhiAcceptsMatchingInputCount(t *testing.T) {
	fn := ir.NewFunction("f", ir.TypeI32, nil)
	b := ir.NewBuilder(fn)
	region := b.CreateRegion(fn.Entry)
	one := b.CreateSignedInteger(1, 32)

	phi := b.CreatePhi(region, ir.TypeI32, []*ir.Node{one})
	require.True(t, phi.Pinned)
	require.Equal(t, region, phi.Inputs[0])
	require.Equal(t, one, phi.Inputs[1])
}

func TestReplaceAllUsesMovesEveryUser(t *testing.T) {
	fn := ir.NewFunction("f", ir.TypeI32, nil)
	b := ir.NewBuilder(fn)
	one := b.CreateSignedInteger(1, 32)
	two := b.CreateSignedInteger(2, 32)
	sumA := b.CreateAdd(one, one, ir.TypeI32)
	sumB := b.CreateAdd(one, one, ir.TypeI32)

	fn.ReplaceAllUses(one, two)

	require.Equal(t, 0, one.NumUsers())
	require.Equal(t, 4, two.NumUsers())
	require.Equal(t, []*ir.Node{two, two}, sumA.Inputs)
	require.Equal(t, []*ir.Node{two, two}, sumB.Inputs)
}

func TestIsControlFollowsProjectionSource(t *testing.T) {
	fn := ir.NewFunction("f", ir.TypeI32, []ir.DataType{ir.TypeI32})
	b := ir.NewBuilder(fn)
	require.True(t, fn.Entry.IsControl())

	trueRegion := b.CreateRegion()
	falseRegion := b.CreateRegion()
	cond := b.GetFunctionParameter(0)
	br := b.CreateBranch(cond, trueRegion, falseRegion)

	payload := br.Payload.(ir.BranchPayload)
	require.True(t, payload.True.IsControl())
	require.True(t, payload.False.IsControl())

	sum := b.CreateAdd(cond, cond, ir.TypeI32)
	require.False(t, sum.IsControl())
}

func TestDataTypeBits(t *testing.T) {
	require.Equal(t, 8, ir.TypeI8.Bits())
	require.Equal(t, 32, ir.TypeI32.Bits())
	require.Equal(t, 64, ir.TypePtr.Bits())
	require.Equal(t, 0, ir.TypeVoid.Bits())
}
