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

package fuse

import (
	"github.com/cfgfuse/cfgfuse/ir"
	"github.com/cfgfuse/cfgfuse/scratch"
)

// foldBranches folds decidable branches: every multi-way branch on the worklist that has only its
// default projection left, or whose selector is a compile-time constant, is folded into a plain
// jump to the one outcome that remains or that the selector statically picks, and every other
// outcome's edge is killed (replaced by Bad). It reports whether it changed
// anything, which tells the driver the CFG moved under the collector's feet and needs re-collecting
// before the dispensability oracle runs.
func foldBranches(f *ir.Func, m *scratch.Manager, worklist []*ir.Value) bool {
	changed := false
	for _, branch := range worklist {
		if branch.Block == nil || !branch.Block.Live {
			continue
		}
		if foldOne(f, m, branch) {
			changed = true
		}
	}
	return changed
}

// foldOne folds a single branch when either only the default outgoing case remains (regardless of
// whether the selector is decidable — a collaborator upstream has already pruned the rest) or the
// selector is a known constant that picks out one case. It returns whether it did.
func foldOne(f *ir.Func, m *scratch.Manager, branch *ir.Value) bool {
	projs := m.ProjsOf(branch)

	var match *ir.Value
	if len(projs) == 1 && projs[0].Case.Default {
		// Only the default can be left once every other case has been pruned elsewhere; fold to a
		// jump unconditionally, independent of whether the selector itself is decidable.
		match = projs[0]
	} else {
		if len(branch.Args) == 0 || branch.Args[0].Op != ir.OpConst {
			return false
		}
		selector := branch.Args[0].ConstVal
		match = selectCase(projs, selector)
		if match == nil {
			// No case matches and there is no default arm: every outcome is statically
			// unreachable. Nothing in this IR models "the whole block is unreachable", so
			// conservatively leave the branch alone rather than guess which arm to keep.
			return false
		}
	}

	newJump := f.NewJump(branch.Block)
	newJump.Target = match.Target
	ir.Exchange(f, match, newJump)

	for _, p := range projs {
		if p == match {
			continue
		}
		ir.Exchange(f, p, f.Bad(ir.ModeCtrl))
		removeDeadSucc(branch.Block, p.Target, match.Target)
	}

	// The folded projections have no users left; drop them from the block so the next collect does
	// not thread them onto the branch again and fold it a second time.
	for _, p := range projs {
		removeValue(branch.Block, p)
	}

	return true
}

// selectCase returns the projection matching val among projs, falling back to the default arm (if
// any) when no case label matches. It returns nil if neither applies.
func selectCase(projs []*ir.Value, val int64) *ir.Value {
	var def *ir.Value
	for _, p := range projs {
		if p.Case.Default {
			def = p
			continue
		}
		if p.Case.Val == val {
			return p
		}
	}
	return def
}

// removeDeadSucc drops target from block.Succs, unless it is the one target the fold kept (a
// switch can label the same block from two different cases, in which case the surviving jump still
// needs it in Succs).
func removeDeadSucc(block, target, kept *ir.Block) {
	if target == nil || target == kept {
		return
	}
	for i, s := range block.Succs {
		if s == target {
			block.Succs = append(block.Succs[:i], block.Succs[i+1:]...)
			return
		}
	}
}
