// Copyright (c) 2026 The CFGFuse Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fuse_test

import (
	"testing"

	"github.com/cfgfuse/cfgfuse/fuse"
	"github.com/cfgfuse/cfgfuse/ir"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) { goleak.VerifyTestMain(m) }

// TestEmptyLinearBlockIsSplicedAway builds Entry --jmp--> empty --jmp--> join, where join has a single Join operand fed
// from empty's edge. After Optimize, empty must be gone and join's sole operand preserved.
func TestEmptyLinearBlockIsSplicedAway(t *testing.T) {
	t.Parallel()

	f := ir.NewFunc("f")
	empty := f.NewBlock()
	join := f.NewBlock()

	e1 := f.NewJump(f.Entry)
	f.Connect(f.Entry, e1, empty)
	e2 := f.NewJump(empty)
	f.Connect(empty, e2, join)

	val := f.NewValue(f.Entry, ir.OpValue, ir.ModeInt)
	phi := f.NewValue(join, ir.OpJoin, ir.ModeInt, val)
	f.End.KeepAlive = append(f.End.KeepAlive, phi)

	f.Pin()
	fuse.Optimize(f)

	require.False(t, empty.Live)
	require.Len(t, join.CFGPreds, 1)
	require.Equal(t, f.Entry, join.CFGPreds[0].Block)
	require.Equal(t, []*ir.Value{val}, phi.Args)
}

// TestDiamondOneArmFusesOtherSurvivesAtJoin builds a diamond: Entry branches boolean-ly to L (empty) and R (empty), both
// jumping to Merge, which joins a value from each arm. Eliding both arms would collapse two
// distinct join inputs into a single predecessor, destroying the join's semantics, so the oracle
// must let exactly one arm fuse away and force the other to survive. After Optimize, L is gone, R
// remains live, and phi's two operands are untouched (only their home edges were rewired).
func TestDiamondOneArmFusesOtherSurvivesAtJoin(t *testing.T) {
	t.Parallel()

	f := ir.NewFunc("f")
	left := f.NewBlock()
	right := f.NewBlock()
	merge := f.NewBlock()

	sel := f.NewValue(f.Entry, ir.OpValue, ir.ModeBool)
	branch := f.NewValue(f.Entry, ir.OpBranch, ir.ModeBool, sel)
	projL := f.NewValue(f.Entry, ir.OpProj, ir.ModeCtrl, branch)
	projL.Case = ir.Case{Val: 1}
	projR := f.NewValue(f.Entry, ir.OpProj, ir.ModeCtrl, branch)
	projR.Case = ir.Case{Default: true}
	f.Connect(f.Entry, projL, left)
	f.Connect(f.Entry, projR, right)

	lJump := f.NewJump(left)
	f.Connect(left, lJump, merge)
	rJump := f.NewJump(right)
	f.Connect(right, rJump, merge)

	// The per-arm values are computed unconditionally in Entry (before the branch) so that left and
	// right remain genuinely empty pass-through blocks; only which one reaches merge depends on the
	// branch.
	lVal := f.NewValue(f.Entry, ir.OpConst, ir.ModeInt)
	lVal.ConstVal = 10
	rVal := f.NewValue(f.Entry, ir.OpConst, ir.ModeInt)
	rVal.ConstVal = 20
	phi := f.NewValue(merge, ir.OpJoin, ir.ModeInt, lVal, rVal)
	f.End.KeepAlive = append(f.End.KeepAlive, phi)

	f.Pin()
	fuse.Optimize(f)

	require.False(t, left.Live)
	require.True(t, right.Live)
	require.Len(t, merge.CFGPreds, 2)
	require.Equal(t, f.Entry, merge.CFGPreds[0].Block)
	require.Equal(t, right, merge.CFGPreds[1].Block)
	require.Equal(t, []*ir.Value{lVal, rVal}, phi.Args)
}

// TestJoinInRemovedBlockRelocatesIntoSuccessor builds a diamond Entry -> {A, C} -> P -> B, where P
// is an empty pass-through block homing a join of values from A and C, and B has no other
// predecessor. P immediately dominates B, so when P fuses into B its join must relocate into B
// (Phase B) rather than die, with its two operands and their relative order preserved.
func TestJoinInRemovedBlockRelocatesIntoSuccessor(t *testing.T) {
	t.Parallel()

	f := ir.NewFunc("f")
	a := f.NewBlock()
	c := f.NewBlock()
	p := f.NewBlock()
	b := f.NewBlock()

	sel := f.NewValue(f.Entry, ir.OpValue, ir.ModeBool)
	branch := f.NewValue(f.Entry, ir.OpBranch, ir.ModeBool, sel)
	projA := f.NewValue(f.Entry, ir.OpProj, ir.ModeCtrl, branch)
	projA.Case = ir.Case{Val: 1}
	projC := f.NewValue(f.Entry, ir.OpProj, ir.ModeCtrl, branch)
	projC.Case = ir.Case{Default: true}
	f.Connect(f.Entry, projA, a)
	f.Connect(f.Entry, projC, c)

	// A real (non-Join, non-Jump) value in each arm pins it as non-empty, so the fixpoint loop
	// settles after P relocates into B rather than also collapsing A and C in a later round — this
	// test is about Phase B relocation, not further chain collapsing.
	f.NewValue(a, ir.OpValue, ir.ModeInt)
	f.NewValue(c, ir.OpValue, ir.ModeInt)
	f.Connect(a, f.NewJump(a), p)
	f.Connect(c, f.NewJump(c), p)
	f.Connect(p, f.NewJump(p), b)

	valA := f.NewValue(f.Entry, ir.OpConst, ir.ModeInt)
	valA.ConstVal = 1
	valC := f.NewValue(f.Entry, ir.OpConst, ir.ModeInt)
	valC.ConstVal = 2
	phi := f.NewValue(p, ir.OpJoin, ir.ModeInt, valA, valC)
	// A real consumer of phi in b gives the relocated join an actual use, so it survives driver
	// cleanup's keep-alive prune (see TestRelocatedJoinWithNoRealUserIsDroppedFromKeepAlive for the
	// unused case).
	user := f.NewValue(b, ir.OpValue, ir.ModeInt, phi)
	f.End.KeepAlive = append(f.End.KeepAlive, user)

	f.Pin()
	fuse.Optimize(f)

	require.False(t, p.Live)
	require.Equal(t, b, phi.Block)
	require.Len(t, b.CFGPreds, 2)
	require.Equal(t, a, b.CFGPreds[0].Block)
	require.Equal(t, c, b.CFGPreds[1].Block)
	require.Equal(t, []*ir.Value{valA, valC}, phi.Args)
	require.Equal(t, []*ir.Value{phi}, user.Args)
	require.Contains(t, f.End.KeepAlive, user)
}

// TestRelocatedJoinWithNoRealUserIsDroppedFromKeepAlive mirrors the relocation above but gives phi
// no consumer besides the keep-alive pin itself: once a join has been relocated out of a
// spliced-away block, End's keep-alive list is re-scanned and a relocated join with no real user is
// dropped.
func TestRelocatedJoinWithNoRealUserIsDroppedFromKeepAlive(t *testing.T) {
	t.Parallel()

	f := ir.NewFunc("f")
	a := f.NewBlock()
	c := f.NewBlock()
	p := f.NewBlock()
	b := f.NewBlock()

	sel := f.NewValue(f.Entry, ir.OpValue, ir.ModeBool)
	branch := f.NewValue(f.Entry, ir.OpBranch, ir.ModeBool, sel)
	projA := f.NewValue(f.Entry, ir.OpProj, ir.ModeCtrl, branch)
	projA.Case = ir.Case{Val: 1}
	projC := f.NewValue(f.Entry, ir.OpProj, ir.ModeCtrl, branch)
	projC.Case = ir.Case{Default: true}
	f.Connect(f.Entry, projA, a)
	f.Connect(f.Entry, projC, c)

	f.NewValue(a, ir.OpValue, ir.ModeInt)
	f.NewValue(c, ir.OpValue, ir.ModeInt)
	f.Connect(a, f.NewJump(a), p)
	f.Connect(c, f.NewJump(c), p)
	f.Connect(p, f.NewJump(p), b)

	valA := f.NewValue(f.Entry, ir.OpConst, ir.ModeInt)
	valC := f.NewValue(f.Entry, ir.OpConst, ir.ModeInt)
	phi := f.NewValue(p, ir.OpJoin, ir.ModeInt, valA, valC)
	f.End.KeepAlive = append(f.End.KeepAlive, phi)

	f.Pin()
	fuse.Optimize(f)

	require.False(t, p.Live)
	require.Equal(t, b, phi.Block)
	require.NotContains(t, f.End.KeepAlive, phi)
}

// TestEntityPinnedBlockSurvives ensures a block with an external entity label is never collapsed
// even though it is otherwise an empty pass-through block.
func TestEntityPinnedBlockSurvives(t *testing.T) {
	t.Parallel()

	f := ir.NewFunc("f")
	pinned := f.NewBlock()
	pinned.Entity = "label.exported"
	tail := f.NewBlock()

	f.Connect(f.Entry, f.NewJump(f.Entry), pinned)
	f.Connect(pinned, f.NewJump(pinned), tail)

	f.Pin()
	fuse.Optimize(f)

	require.True(t, pinned.Live)
	require.Len(t, tail.CFGPreds, 1)
	require.Equal(t, pinned, tail.CFGPreds[0].Block)
}

// TestSwitchOnConstantFoldsToJump builds a 3-way switch on a constant selector and checks that only
// the matching arm survives as a plain jump, with the others' edges replaced by Bad.
func TestSwitchOnConstantFoldsToJump(t *testing.T) {
	t.Parallel()

	f := ir.NewFunc("f")
	case0 := f.NewBlock()
	case1 := f.NewBlock()
	caseDefault := f.NewBlock()

	sel := f.NewValue(f.Entry, ir.OpConst, ir.ModeInt)
	sel.ConstVal = 1
	branch := f.NewValue(f.Entry, ir.OpBranch, ir.ModeInt, sel)
	p0 := f.NewValue(f.Entry, ir.OpProj, ir.ModeCtrl, branch)
	p0.Case = ir.Case{Val: 0}
	p1 := f.NewValue(f.Entry, ir.OpProj, ir.ModeCtrl, branch)
	p1.Case = ir.Case{Val: 1}
	pDef := f.NewValue(f.Entry, ir.OpProj, ir.ModeCtrl, branch)
	pDef.Case = ir.Case{Default: true}
	f.Connect(f.Entry, p0, case0)
	f.Connect(f.Entry, p1, case1)
	f.Connect(f.Entry, pDef, caseDefault)

	f.Pin()
	fuse.Optimize(f)

	require.Len(t, case1.CFGPreds, 1)
	require.Equal(t, f.Entry, case1.CFGPreds[0].Block)
	require.Equal(t, ir.OpJump, case1.CFGPreds[0].Op)

	require.Len(t, case0.CFGPreds, 1)
	require.True(t, ir.IsBad(case0.CFGPreds[0]))
	require.Len(t, caseDefault.CFGPreds, 1)
	require.True(t, ir.IsBad(caseDefault.CFGPreds[0]))
}

// TestSwitchWithoutMatchOrDefaultIsLeftAlone covers the edge case where a constant selector matches
// neither a case label nor a default arm: the pass has no way to represent "unreachable" here, so it
// must leave the branch untouched rather than guess.
func TestSwitchWithoutMatchOrDefaultIsLeftAlone(t *testing.T) {
	t.Parallel()

	f := ir.NewFunc("f")
	case0 := f.NewBlock()

	sel := f.NewValue(f.Entry, ir.OpConst, ir.ModeInt)
	sel.ConstVal = 7
	branch := f.NewValue(f.Entry, ir.OpBranch, ir.ModeInt, sel)
	p0 := f.NewValue(f.Entry, ir.OpProj, ir.ModeCtrl, branch)
	p0.Case = ir.Case{Val: 0}
	f.Connect(f.Entry, p0, case0)

	f.Pin()
	fuse.Optimize(f)

	require.Len(t, case0.CFGPreds, 1)
	require.Equal(t, ir.OpProj, case0.CFGPreds[0].Op)
	require.False(t, ir.IsBad(case0.CFGPreds[0]))
}

// TestSecondOptimizeIsNoOp checks the fixpoint property: running Optimize again over an
// already-optimized Func changes nothing further.
func TestSecondOptimizeIsNoOp(t *testing.T) {
	t.Parallel()

	f := ir.NewFunc("f")
	empty := f.NewBlock()
	tail := f.NewBlock()
	f.Connect(f.Entry, f.NewJump(f.Entry), empty)
	f.Connect(empty, f.NewJump(empty), tail)

	f.Pin()
	fuse.Optimize(f)

	predsBefore := append([]*ir.Value(nil), tail.CFGPreds...)
	liveBefore := map[*ir.Block]bool{}
	for _, b := range f.Blocks {
		liveBefore[b] = b.Live
	}

	fuse.Optimize(f)

	require.Equal(t, predsBefore, tail.CFGPreds)
	for _, b := range f.Blocks {
		require.Equal(t, liveBefore[b], b.Live)
	}
}

// TestOptimizePanicsOnUnpinnedFunc asserts the precondition check fires before any rewrite.
func TestOptimizePanicsOnUnpinnedFunc(t *testing.T) {
	t.Parallel()

	f := ir.NewFunc("f")
	require.Panics(t, func() { fuse.Optimize(f) })
}

// TestSingleProjectionSwitchFoldsUnconditionally covers a single-case switch: a branch with
// only its default projection left on its link chain folds into an unconditional jump regardless of whether
// its selector is itself a decidable constant — the single-projection case does not gate on
// constancy the way the two-or-more-projection case does.
func TestSingleProjectionSwitchFoldsUnconditionally(t *testing.T) {
	t.Parallel()

	f := ir.NewFunc("f")
	only := f.NewBlock()

	// sel is an opaque, non-constant value: the selector is not statically decidable.
	sel := f.NewValue(f.Entry, ir.OpValue, ir.ModeInt)
	branch := f.NewValue(f.Entry, ir.OpBranch, ir.ModeInt, sel)
	p := f.NewValue(f.Entry, ir.OpProj, ir.ModeCtrl, branch)
	p.Case = ir.Case{Default: true}
	f.Connect(f.Entry, p, only)

	f.Pin()
	fuse.Optimize(f)

	require.Len(t, only.CFGPreds, 1)
	require.Equal(t, ir.OpJump, only.CFGPreds[0].Op)
	require.Equal(t, f.Entry, only.CFGPreds[0].Block)
}

// TestSelfLoopHeadNeverRemoved covers a self-loop: a loop head L has two cfgpreds, one from Entry and one
// from L's own backedge, and homes a join threading a loop-carried value through the backedge. The
// self-loop check in the dispensability oracle must keep L live (eliding it through its own backedge
// would destroy the very edge that makes it a loop), and the join's arity must survive unchanged.
func TestSelfLoopHeadNeverRemoved(t *testing.T) {
	t.Parallel()

	f := ir.NewFunc("f")
	loop := f.NewBlock()

	entryJump := f.NewJump(f.Entry)
	f.Connect(f.Entry, entryJump, loop)
	selfJump := f.NewJump(loop)
	f.Connect(loop, selfJump, loop)

	init := f.NewValue(f.Entry, ir.OpConst, ir.ModeInt)
	init.ConstVal = 0
	phi := f.NewValue(loop, ir.OpJoin, ir.ModeInt, init, init)
	phi.Args[1] = phi // loop-carried: the backedge operand is the join itself.
	f.End.KeepAlive = append(f.End.KeepAlive, phi)

	f.Pin()
	fuse.Optimize(f)

	require.True(t, loop.Live)
	require.Len(t, loop.CFGPreds, 2)
	require.Equal(t, f.Entry, loop.CFGPreds[0].Block)
	require.Equal(t, loop, loop.CFGPreds[1].Block)
	require.Len(t, phi.Args, 2)
	require.Equal(t, phi, phi.Args[1])
}

// TestIndirectJumpBlockIsNeverFused ensures a block whose sole jump is marked Indirect (its real
// target is not statically confined to Target) is never collapsed.
func TestIndirectJumpBlockIsNeverFused(t *testing.T) {
	t.Parallel()

	f := ir.NewFunc("f")
	indirect := f.NewBlock()
	tail := f.NewBlock()

	f.Connect(f.Entry, f.NewJump(f.Entry), indirect)
	jump := f.NewJump(indirect)
	jump.Indirect = true
	f.Connect(indirect, jump, tail)

	f.Pin()
	fuse.Optimize(f)

	require.True(t, indirect.Live)
}
