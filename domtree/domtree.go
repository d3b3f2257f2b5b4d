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

// Package domtree computes and caches immediate-dominator information for an ir.Func, using the
// iterative postorder/intersect algorithm (Cooper, Harvey & Kennedy, "A Simple, Fast Dominance
// Algorithm"). The dominator tree is a cache: it is rebuilt lazily on first use after a CFG
// mutation and must never be reused across a mutation without going back through AssureDominators.
package domtree

import "github.com/cfgfuse/cfgfuse/ir"

// Tree holds the immediate-dominator relation for one procedure snapshot.
type Tree struct {
	idom map[*ir.Block]*ir.Block
	post map[*ir.Block]int
}

// cache holds the last computed Tree per Func, so that a fixpoint loop calling AssureDominators
// every iteration only pays for recomputation when the CFG actually changed in between. Access is
// not synchronized: the pass this serves is single-threaded over any one Func.
var cache = map[*ir.Func]*Tree{}

// AssureDominators rebuilds the dominator tree if the function's cached dominance information is
// stale (or has never been built), and returns it. The returned *Tree must not be retained across
// a subsequent CFG mutation; request it again instead.
func AssureDominators(f *ir.Func) *Tree {
	if !f.StaleDoms() {
		if t, ok := cache[f]; ok {
			return t
		}
	}
	t := compute(f)
	cache[f] = t
	f.ClearDomsStale()
	return t
}

// Forget drops any cached dominance information for f. Tests that build many short-lived Funcs
// with coincidentally-reused pointers (unlikely, but possible once a Func is garbage collected and
// its address reused) can call this to avoid stale cross-talk; ordinary callers never need to.
func Forget(f *ir.Func) { delete(cache, f) }

// IDom returns the immediate dominator of b, or nil if b is the entry block (which has none).
func (t *Tree) IDom(b *ir.Block) *ir.Block { return t.idom[b] }

// postorder returns a postorder traversal of blocks reachable from f.Entry via Succs, along with
// each reached block's index in that order (used by intersect below).
func postorder(f *ir.Func) ([]*ir.Block, map[*ir.Block]int) {
	seen := make(map[*ir.Block]bool, len(f.Blocks))
	order := make([]*ir.Block, 0, len(f.Blocks))

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

	postnum := make(map[*ir.Block]int, len(order))
	for i, b := range order {
		postnum[b] = i
	}
	return order, postnum
}

// intersect finds the closest common dominator of b and c, given a postorder numbering and the
// (possibly partial) idom map built so far.
func intersect(b, c *ir.Block, postnum map[*ir.Block]int, idom map[*ir.Block]*ir.Block) *ir.Block {
	for b != c {
		for postnum[b] < postnum[c] {
			b = idom[b]
		}
		for postnum[c] < postnum[b] {
			c = idom[c]
		}
	}
	return b
}

// compute runs the fixpoint dominance computation over blocks reachable from f.Entry.
func compute(f *ir.Func) *Tree {
	order, postnum := postorder(f)

	// reversePostorder, skipping the entry block itself (it is its own dominator and is handled
	// specially below).
	rpo := make([]*ir.Block, len(order))
	for i, b := range order {
		rpo[len(order)-1-i] = b
	}

	idom := make(map[*ir.Block]*ir.Block, len(order))
	idom[f.Entry] = f.Entry

	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == f.Entry {
				continue
			}
			var newIdom *ir.Block
			for _, pred := range predsOf(b) {
				if _, ok := idom[pred]; !ok {
					continue
				}
				if newIdom == nil {
					newIdom = pred
					continue
				}
				newIdom = intersect(newIdom, pred, postnum, idom)
			}
			if newIdom == nil {
				continue
			}
			if idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	delete(idom, f.Entry)

	return &Tree{idom: idom, post: postnum}
}

// predsOf returns the live predecessor blocks of b, derived from its CFGPreds.
func predsOf(b *ir.Block) []*ir.Block {
	preds := make([]*ir.Block, 0, len(b.CFGPreds))
	for _, edge := range b.CFGPreds {
		if ir.IsBad(edge) || edge.Block == nil || !edge.Block.Live {
			continue
		}
		preds = append(preds, edge.Block)
	}
	return preds
}
