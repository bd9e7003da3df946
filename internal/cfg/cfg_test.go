package cfg_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Goubermouche/sigma-sub002/internal/cfg"
	"github.com/Goubermouche/sigma-sub002/internal/ir"
)

// buildDiamond constructs:
//
//	entry -> branch(cond) -> {trueRegion, falseRegion} -> endRegion -> exit
//
// matching how internal/irgen's genIf lowers an if/else with a shared end
// region.
func buildDiamond(t *testing.T) (*ir.Function, *cfg.Graph) {
	t.Helper()
	fn := ir.NewFunction("diamond", ir.TypeI32, []ir.DataType{ir.TypeI32})
	b := ir.NewBuilder(fn)

	cond := b.GetFunctionParameter(0)
	trueRegion := b.CreateRegion()
	falseRegion := b.CreateRegion()
	b.CreateBranch(cond, trueRegion, falseRegion)

	endRegion := b.CreateRegion()

	b.SetControl(trueRegion)
	one := b.CreateSignedInteger(1, 32)
	b.CreateJump(endRegion)

	b.SetControl(falseRegion)
	two := b.CreateSignedInteger(2, 32)
	b.CreateJump(endRegion)

	b.SetControl(endRegion)
	phi := b.CreatePhi(endRegion, ir.TypeI32, []*ir.Node{one, two})
	b.CreateReturn(phi)

	g := cfg.Build(fn)
	return fn, g
}

func TestBuildProducesOneBlockPerHead(t *testing.T) {
	_, g := buildDiamond(t)
	// entry, trueRegion, falseRegion, endRegion == 4 blocks.
	require.Len(t, g.RPO, 4)
}

func TestEntryBlockHasNoDominatorAndLowestID(t *testing.T) {
	_, g := buildDiamond(t)
	entry := g.RPO[0]
	require.Equal(t, 0, entry.ID)
	require.Nil(t, entry.Dominator)
}

func TestDiamondDominatorStructure(t *testing.T) {
	fn, g := buildDiamond(t)
	entryBlock := g.NodeBlock[fn.Entry]

	require.Len(t, entryBlock.Succs, 2)
	require.Len(t, entryBlock.Succs[0].Preds, 1)
	require.Len(t, entryBlock.Succs[1].Preds, 1)

	// Both arms are dominated by entry, and entry dominates the merge.
	trueBlock := entryBlock.Succs[0]
	falseBlock := entryBlock.Succs[1]
	require.True(t, cfg.Dominates(entryBlock, trueBlock))
	require.True(t, cfg.Dominates(entryBlock, falseBlock))

	require.Len(t, trueBlock.Succs, 1)
	mergeBlock := trueBlock.Succs[0]
	require.Len(t, mergeBlock.Preds, 2)

	// The merge block is dominated by entry but not by either arm alone,
	// since either arm could have been skipped.
	require.True(t, cfg.Dominates(entryBlock, mergeBlock))
	require.False(t, cfg.Dominates(trueBlock, mergeBlock))
	require.False(t, cfg.Dominates(falseBlock, mergeBlock))
}

func TestLCAOfDiamondArmsIsEntry(t *testing.T) {
	fn, g := buildDiamond(t)
	entryBlock := g.NodeBlock[fn.Entry]
	trueBlock := entryBlock.Succs[0]
	falseBlock := entryBlock.Succs[1]

	require.Equal(t, entryBlock, cfg.LCA(trueBlock, falseBlock))
	require.Equal(t, entryBlock, cfg.LCA(entryBlock, falseBlock))
}

func TestDominatesIsReflexive(t *testing.T) {
	_, g := buildDiamond(t)
	for _, b := range g.RPO {
		require.True(t, cfg.Dominates(b, b))
	}
}

// buildLoop constructs a single-block-body while loop:
//
//	entry -> header <-> body, header -> exitRegion -> exit
func buildLoop(t *testing.T) (*ir.Function, *cfg.Graph) {
	t.Helper()
	fn := ir.NewFunction("loop", ir.TypeVoid, nil)
	b := ir.NewBuilder(fn)

	header := b.CreateRegion(fn.Entry)
	b.SetControl(header)
	body := b.CreateRegion()
	exitRegion := b.CreateRegion()
	cond := b.CreateBool(true)
	b.CreateBranch(cond, body, exitRegion)

	b.SetControl(body)
	b.CreateJump(header)

	b.SetControl(exitRegion)
	b.CreateReturn()

	g := cfg.Build(fn)
	return fn, g
}

func TestLoopHeaderDominatesBody(t *testing.T) {
	fn, g := buildLoop(t)
	entryBlock := g.NodeBlock[fn.Entry]
	headerBlock := entryBlock.Succs[0]
	require.Contains(t, headerBlock.Preds, entryBlock)

	var bodyBlock *cfg.BasicBlock
	for _, s := range headerBlock.Succs {
		if s != headerBlock && len(s.Succs) == 1 && s.Succs[0] == headerBlock {
			bodyBlock = s
		}
	}
	require.NotNil(t, bodyBlock)
	require.True(t, cfg.Dominates(headerBlock, bodyBlock))
	require.Contains(t, headerBlock.Preds, bodyBlock)
}
