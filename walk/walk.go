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

// Package walk implements the graph-walker collaborator: a whole-node walk that
// visits every reachable node once with pre/post callbacks, and a block-only walk that visits
// every reachable block in deterministic post order. Both are plain forward traversals from the
// procedure's entry block, mirroring how golang.org/x/tools/go/cfg consumers iterate
// `for _, block := range graph.Blocks { if block.Live { ... } }` rather than chasing a def-use
// graph by hand.
package walk

import "github.com/cfgfuse/cfgfuse/ir"

// Reachable returns every live block reachable from f.Entry via Succs, in deterministic
// reverse-postorder (a block always appears after every block that can reach it along a forward
// path that isn't itself a backedge — good enough for "process predecessors of a diamond before
// the merge" without claiming to be a full topological sort in the presence of cycles).
func Reachable(f *ir.Func) []*ir.Block {
	post := postorder(f)
	rpo := make([]*ir.Block, len(post))
	for i, b := range post {
		rpo[len(post)-1-i] = b
	}
	return rpo
}

// postorder returns the reachable blocks from f.Entry in postorder (children before parents).
func postorder(f *ir.Func) []*ir.Block {
	seen := make(map[*ir.Block]bool, len(f.Blocks))
	var order []*ir.Block

	type frame struct {
		b   *ir.Block
		idx int
	}
	stack := []frame{{b: f.Entry}}
	seen[f.Entry] = true
	for len(stack) > 0 {
		top := len(stack) - 1
		fr := &stack[top]
		if fr.idx < len(fr.b.Succs) {
			succ := fr.b.Succs[fr.idx]
			fr.idx++
			if succ.Live && !seen[succ] {
				seen[succ] = true
				stack = append(stack, frame{b: succ})
			}
			continue
		}
		order = append(order, fr.b)
		stack = stack[:top]
	}
	return order
}

// BlockWalkPostorder visits every live block reachable from f.Entry exactly once, children before
// their (forward) parents, invoking pre and then post on each block. Since the traversal order
// already is postorder, pre and post fire back-to-back for each block, after its descendants;
// both are offered so a caller can mirror the source material's two-phase walk shape even though,
// for a pure postorder walk, pre vs. post is cosmetic.
func BlockWalkPostorder(f *ir.Func, pre, post func(*ir.Block)) {
	for _, b := range postorder(f) {
		if pre != nil {
			pre(b)
		}
		if post != nil {
			post(b)
		}
	}
}

// PostorderBlocks returns every live block reachable from f.Entry in true postorder: a block every
// one of whose (live) forward successors has already been visited comes before any of its own
// predecessors. The block/join rewriter (see fuse.rewriteBlocks) walks in this order rather than
// Reachable's reverse-postorder precisely so a merge block is rewritten before the empty
// predecessors feeding it: fusing a predecessor exposes its own predecessors as the merge's new
// cfgpreds, so visiting the merge first lets one driver round collapse as much of an empty chain as
// the oracle allows before the walker ever reaches the fused-away blocks (which it then skips, since
// they are no longer Live).
func PostorderBlocks(f *ir.Func) []*ir.Block {
	return postorder(f)
}

// Walk visits every Value homed in every live block reachable from f.Entry, in block-postorder and
// then Values order within a block. Order is not semantically significant to any caller in this
// module (the collector's classification of a block does not depend on visiting order), but a
// deterministic order keeps fixpoint convergence easy to test.
func Walk(f *ir.Func, pre, post func(*ir.Value)) {
	for _, b := range postorder(f) {
		for _, v := range b.Values {
			if pre != nil {
				pre(v)
			}
			if post != nil {
				post(v)
			}
		}
	}
}
