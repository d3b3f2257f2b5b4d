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
	"github.com/cfgfuse/cfgfuse/config"
	"github.com/cfgfuse/cfgfuse/domtree"
	"github.com/cfgfuse/cfgfuse/ir"
	"github.com/cfgfuse/cfgfuse/scratch"
)

// Optimize runs the fuse pass to a fixpoint: fold decidable multi-way branches
// into jumps, then collapse empty blocks into their successors (duplicating join operands and
// relocating join nodes as needed), repeating until a round changes nothing. It panics with an
// *ir.PreconditionError if f has not been pinned.
func Optimize(f *ir.Func) {
	f.CheckPinned()

	phisMoved := false
	for round := 0; ; round++ {
		if round >= config.FixpointRoundLimit {
			panic(&ir.InvariantError{Msg: "fuse: exceeded fixpoint round limit without converging"})
		}
		changed, moved := runOnce(f)
		phisMoved = phisMoved || moved
		if !changed {
			break
		}
	}

	cleanup(f, phisMoved)
}

// runOnce performs one collect/fold/rewrite round. It reports whether anything changed, and
// whether Phase B relocated any join node out of a spliced-away block.
func runOnce(f *ir.Func) (changed, phisMoved bool) {
	m := scratch.Acquire(f)
	defer func() { m.Release() }()

	worklist := collect(f, m)
	foldChanged := foldBranches(f, m, worklist)

	if foldChanged {
		// Folding a branch changes which blocks are reachable and what each block's Values look
		// like (a dead Branch now sits beside a fresh Jump), so the removable/join classification
		// collect produced is stale; redo it before asking the oracle anything.
		m.Release()
		m = scratch.Acquire(f)
		collect(f, m)
	}

	dom := domtree.AssureDominators(f)
	rewriteChanged, moved := rewriteBlocks(f, m, dom)

	return foldChanged || rewriteChanged, moved
}

// cleanup is the pass's final step: once no further fold or fuse applies, the
// dead-edge and duplicate-keep-alive entries the rewrite may have left behind in End.KeepAlive
// (Phase B replaces a non-dominating join with Bad rather than deleting it in place) are
// compacted; if any join was relocated this run, End.KeepAlive is scanned once more to drop a
// relocated join that ended up with no real user beyond the keep-alive pin itself — it moved house
// but never had any actual consumer, so it is not worth keeping alive on its own; and the
// edge-cache deactivation hook is invoked for parity with a richer IR (see ir.DeactivateEdgeCache).
func cleanup(f *ir.Func, phisMoved bool) {
	ir.DeactivateEdgeCache(f)

	changed := ir.RemoveBadsAndDoublets(f)
	if phisMoved && dropDeadKeepAliveJoins(f) {
		changed = true
	}
	if changed {
		f.MarkDomsStale()
	}
}

// hasRealUser reports whether some live Value other than v itself takes v as an operand.
func hasRealUser(f *ir.Func, v *ir.Value) bool {
	for _, b := range f.Blocks {
		if !b.Live {
			continue
		}
		for _, other := range b.Values {
			if other == v {
				continue
			}
			for _, a := range other.Args {
				if a == v {
					return true
				}
			}
		}
	}
	return false
}

// dropDeadKeepAliveJoins removes every join node from f.End.KeepAlive whose only surviving
// reference is the keep-alive entry itself — a join Phase B relocated into a new home but that
// nothing else in the procedure ever reads is not worth pinning, so cleanup drops it too.
func dropDeadKeepAliveJoins(f *ir.Func) bool {
	out := make([]*ir.Value, 0, len(f.End.KeepAlive))
	changed := false
	for _, ka := range f.End.KeepAlive {
		if ka.Op == ir.OpJoin && !hasRealUser(f, ka) {
			changed = true
			continue
		}
		out = append(out, ka)
	}
	if changed {
		f.End.KeepAlive = out
	}
	return changed
}
