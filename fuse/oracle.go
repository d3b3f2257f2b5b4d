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

// dispensablePredCount decides whether an empty predecessor block can be safely elided, for cfgpred position pos of
// block b: it decides whether the block reachable through that edge may be elided, and returns the
// number of predecessors that slot contributes to b's new cfgpreds — 1 if kept, or the predecessor
// count of the elided block if it is spliced away in its place.
//
// Positions are expected to be queried in increasing pos order for a fixed b: the join-collision
// check below looks at every *other* position, treating those before pos as already decided (via
// the live removable/visited marks, which this function itself updates) and those after pos as not
// yet elided. Forcing a position non-dispensable also clears the elided block's removable mark, so
// a later position's collision probe — or a later driver round altogether — sees the decision.
func dispensablePredCount(b *ir.Block, pos int, m *scratch.Manager) int {
	pred := b.CFGPreds[pos]
	if ir.IsBad(pred) {
		return 1
	}
	predb := pred.Block
	if !m.Removable(predb) {
		return 1
	}

	// Can't remove self-loops: eliding the block would destroy the backedge it exists to carry.
	if predb == b {
		m.SetRemovable(predb, false)
		return 1
	}
	// An edge whose real target cannot be statically confined to b is never a fusion candidate.
	if pred.Indirect {
		m.SetRemovable(predb, false)
		return 1
	}

	if len(m.JoinsOf(b)) > 0 {
		// b has join nodes: predb's own predecessors and every *other* cfgpred's (effective)
		// predecessor block must be pairwise disjoint, or fusing predb would collapse two distinct
		// join inputs into one.
		for i := 0; i < pos; i++ {
			other := b.CFGPreds[i]
			if ir.IsBad(other) {
				continue
			}
			otherb := other.Block
			if m.Removable(otherb) && !m.Visited(otherb) {
				for _, gp := range otherb.CFGPreds {
					if ir.IsBad(gp) {
						continue
					}
					if isPredOf(gp.Block, predb) {
						m.SetRemovable(predb, false)
						return 1
					}
				}
			} else if isPredOf(otherb, predb) {
				m.SetRemovable(predb, false)
				return 1
			}
		}
		for i := pos + 1; i < len(b.CFGPreds); i++ {
			other := b.CFGPreds[i]
			if ir.IsBad(other) {
				continue
			}
			if isPredOf(other.Block, predb) {
				m.SetRemovable(predb, false)
				return 1
			}
		}
	}

	// Already committed elsewhere (can't happen structurally, since a block has exactly one jump
	// target, but mirrors the source material's defensive re-check).
	if m.Visited(predb) {
		return 1
	}
	return len(predb.CFGPreds)
}

// isPredOf reports whether x is (the producer block of) one of y's direct cfgpreds.
func isPredOf(x, y *ir.Block) bool {
	for _, e := range y.CFGPreds {
		if !ir.IsBad(e) && e.Block == x {
			return true
		}
	}
	return false
}

// isElided reports whether pred (a cfgpred edge of some block) should be treated as a spliced-away
// empty predecessor at the moment it is read — the same live removable/visited check the oracle and
// every rewrite phase consult, so a position forced non-dispensable mid-count is honored consistently
// by Phase A, B, and C even though they run after dispensablePredCount has already flipped some marks.
func isElided(pred *ir.Value, m *scratch.Manager) bool {
	return !ir.IsBad(pred) && m.Removable(pred.Block) && !m.Visited(pred.Block)
}
