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
	"github.com/cfgfuse/cfgfuse/walk"
)

// collect performs a single CFG walk: it classifies every reachable block as
// empty/non-empty, threads each block's join nodes and each branch's projections onto the scratch
// manager's chains, and returns the worklist of multi-way (non-boolean) branches found along the
// way, in discovery order.
func collect(f *ir.Func, m *scratch.Manager) []*ir.Value {
	// The entry block has no cfgpred of its own, so treating it as a dispensable predecessor would
	// splice zero edges into whatever it feeds — eliding it can never be correct regardless of how
	// empty it looks.
	m.SetRemovable(f.Entry, false)

	for _, b := range walk.Reachable(f) {
		if b.Entity != "" {
			m.SetRemovable(b, false)
		}
	}

	var switchWorklist []*ir.Value
	walk.Walk(f, nil, func(n *ir.Value) {
		switch {
		case n.Op == ir.OpJoin:
			m.AddJoin(n.Block, n)

		case n.Op == ir.OpJump:
			// A plain jump contributes no computation; the block may still be empty.

		default:
			// Any other node kind (Branch, Proj, Const, opaque Value) means the block performs
			// real work and cannot be elided.
			m.SetRemovable(n.Block, false)

			if n.Op == ir.OpProj {
				m.AddProj(n.Args[0], n)
			}
			if n.Op == ir.OpBranch && selectorMode(n) != ir.ModeBool {
				switchWorklist = append(switchWorklist, n)
			}
		}
	})

	return switchWorklist
}

// selectorMode returns the mode of a Branch's selector (Args[0]).
func selectorMode(branch *ir.Value) ir.Mode {
	if len(branch.Args) == 0 {
		return ir.ModeInvalid
	}
	return branch.Args[0].Mode
}
