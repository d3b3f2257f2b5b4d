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
	"github.com/cfgfuse/cfgfuse/regression"
	"github.com/cfgfuse/cfgfuse/scratch"
	"github.com/cfgfuse/cfgfuse/walk"
)

// rewriteBlocks collapses dispensable predecessors into their successors: every live block is
// visited once, in the post order returned by walk.PostorderBlocks, and for each its own cfgpreds
// are consulted through the dispensability oracle. Any position the oracle clears is spliced out of
// the graph, its own predecessors wired directly into the block being rewritten, and that block's
// join operands duplicated to match; a join node that lived in a spliced-away block is moved up or
// killed per Phase B. It reports whether anything changed, and whether any join node was relocated
// by Phase B (the driver needs the latter to know whether End's keep-alive list is worth
// re-scanning once the fixpoint loop settles).
func rewriteBlocks(f *ir.Func, m *scratch.Manager, dom *domtree.Tree) (changed, phisMoved bool) {
	for _, b := range walk.PostorderBlocks(f) {
		if !b.Live {
			continue
		}
		bChanged, bMoved := rewriteBlock(f, m, dom, b)
		changed = changed || bChanged
		phisMoved = phisMoved || bMoved
	}
	return changed, phisMoved
}

// rewriteBlock runs the rewrite's three phases — rewrite join operands, relocate-or-kill joins that
// lived in a spliced-away block, then rewrite cfgpred vectors — for one block b. It returns early,
// doing nothing, if the oracle finds no dispensable predecessor among b's cfgpreds.
func rewriteBlock(f *ir.Func, m *scratch.Manager, dom *domtree.Tree, b *ir.Block) (changed, phisMoved bool) {
	k := len(b.CFGPreds)
	if k == 0 {
		return false, false
	}

	maxPreds := 0
	for i := 0; i < k; i++ {
		maxPreds += dispensablePredCount(b, i, m)
	}

	anyElided := false
	for _, pred := range b.CFGPreds {
		if isElided(pred, m) {
			anyElided = true
			break
		}
	}
	if !anyElided {
		return false, false
	}

	// Phase A: rewrite b's own join nodes against the not-yet-mutated cfgpreds.
	for _, phi := range append([]*ir.Value(nil), m.JoinsOf(b)...) {
		rewriteJoinOperands(f, m, b, phi, k, maxPreds)
	}

	// Phase B: relocate or kill join nodes that lived in a block about to be spliced away.
	for i := 0; i < k; i++ {
		pred := b.CFGPreds[i]
		if !isElided(pred, m) {
			continue
		}
		predb := pred.Block
		for _, phi := range append([]*ir.Value(nil), m.JoinsOf(predb)...) {
			if phi.Op != ir.OpJoin {
				panic(&ir.InvariantError{Msg: "fuse: non-join node on a block's join chain"})
			}
			if dom.IDom(b) != predb {
				// predb does not dominate b: nothing downstream can observe phi's value, so it
				// dies with its home block rather than being relocated to no purpose.
				ir.Exchange(f, phi, f.Bad(phi.Mode))
				continue
			}
			relocateJoin(f, m, b, predb, phi, i, k, maxPreds)
			phisMoved = true
		}
	}

	// Phase C: rewrite b's own cfgpreds, splicing in each spliced block's own predecessors.
	newPreds := make([]*ir.Value, 0, maxPreds)
	for i := 0; i < k; i++ {
		pred := b.CFGPreds[i]
		switch {
		case ir.IsBad(pred):
			newPreds = append(newPreds, f.Bad(ir.ModeCtrl))
		case isElided(pred, m):
			predb := pred.Block
			for _, pp := range predb.CFGPreds {
				if ir.IsBad(pp) {
					newPreds = append(newPreds, f.Bad(ir.ModeCtrl))
					continue
				}
				pp.Target = b
				retargetSucc(pp.Block, predb, b)
				newPreds = append(newPreds, pp)
			}
			ir.Exchange(f, pred, f.Bad(ir.ModeCtrl))
			predb.Live = false
			m.MarkVisited(predb)
		default:
			newPreds = append(newPreds, pred)
		}
	}
	if len(newPreds) != maxPreds {
		panic(&ir.InvariantError{Msg: "fuse: rewritten cfgpred count does not match the oracle's predecessor count"})
	}
	b.CFGPreds = newPreds
	f.MarkDomsStale()

	return true, phisMoved
}

// rewriteJoinOperands implements Phase A for one join phi homed in b: it builds a new operand
// vector of length maxPreds from phi's original k operands, expanding each spliced-away
// predecessor's slot into its own surviving inputs (case 2a: the old operand is itself a join in
// the spliced block, so its own per-predecessor operands are spliced in; case 2b: the old operand
// is defined earlier than the spliced block, so it is simply repeated once per surviving input).
func rewriteJoinOperands(f *ir.Func, m *scratch.Manager, b *ir.Block, phi *ir.Value, k, maxPreds int) {
	newArgs := make([]*ir.Value, 0, maxPreds)
	for i := 0; i < k; i++ {
		pred := b.CFGPreds[i]
		switch {
		case ir.IsBad(pred):
			newArgs = append(newArgs, f.Bad(phi.Mode))
		case isElided(pred, m):
			predb := pred.Block
			phiPred := phi.Args[i]
			for j, pp := range predb.CFGPreds {
				if ir.IsBad(pp) {
					newArgs = append(newArgs, f.Bad(phi.Mode))
					continue
				}
				if phiPred.Block == predb {
					if phiPred.Op != ir.OpJoin {
						panic(&ir.InvariantError{Msg: "fuse: operand homed in an empty block is not a join"})
					}
					newArgs = append(newArgs, phiPred.Args[j]) // case 2a
				} else {
					newArgs = append(newArgs, phiPred) // case 2b
				}
			}
		default:
			newArgs = append(newArgs, phi.Args[i])
		}
	}
	commitJoinArgs(f, phi, newArgs, maxPreds)
}

// relocateJoin implements the relocation half of Phase B: phi, previously homed in predb (the
// block at cfgpred position pos of b, about to be spliced away), is re-homed into b and given a new
// operand vector of length maxPreds. Because predb immediately dominates b, every one of b's other
// cfgpreds is also dominated by phi's old definition, so any slot that isn't pos simply sees phi
// itself, repeated once per surviving input exactly as a Phase-A operand would be.
func relocateJoin(f *ir.Func, m *scratch.Manager, b, predb *ir.Block, phi *ir.Value, pos, k, maxPreds int) {
	phi.Block = b
	b.Values = append([]*ir.Value{phi}, b.Values...)
	m.AddJoin(b, phi)
	removeValue(predb, phi)

	newArgs := make([]*ir.Value, 0, maxPreds)
	for i := 0; i < k; i++ {
		if i == pos {
			for j, pp := range predb.CFGPreds {
				if ir.IsBad(pp) {
					newArgs = append(newArgs, f.Bad(phi.Mode))
					continue
				}
				newArgs = append(newArgs, phi.Args[j])
			}
			continue
		}
		pred := b.CFGPreds[i]
		switch {
		case ir.IsBad(pred):
			newArgs = append(newArgs, f.Bad(phi.Mode))
		case isElided(pred, m):
			for _, qp := range pred.Block.CFGPreds {
				if ir.IsBad(qp) {
					newArgs = append(newArgs, f.Bad(phi.Mode))
				} else {
					newArgs = append(newArgs, phi)
				}
			}
		default:
			newArgs = append(newArgs, phi)
		}
	}

	if config.StrictPhiArityFlag() && len(predb.CFGPreds) != maxPreds {
		regression.RecordArityMismatch(f.Name, int32(predb.ID()), int32(b.ID()), len(predb.CFGPreds), maxPreds)
	}
	commitJoinArgs(f, phi, newArgs, maxPreds)
}

// commitJoinArgs installs newArgs as phi's operand vector, or — when the rewrite has collapsed phi
// to a single surviving operand — replaces phi by that operand globally (a join with arity 1 is not
// a join at all). It panics if newArgs does not have the arity the oracle promised.
func commitJoinArgs(f *ir.Func, phi *ir.Value, newArgs []*ir.Value, maxPreds int) {
	if len(newArgs) != maxPreds {
		panic(&ir.InvariantError{Msg: "fuse: join operand count diverged from the oracle's predecessor count"})
	}
	if len(newArgs) == 1 {
		ir.Exchange(f, phi, newArgs[0])
		return
	}
	phi.Args = newArgs
}

// removeValue drops v from block.Values. The rewriter uses it to keep a spliced-away block's Values
// list tidy after one of its joins is relocated into its successor (the block is marked dead
// immediately afterward, so there it is housekeeping); the branch folder uses it to drop folded
// projections, so that a later collect does not fold the same branch again.
func removeValue(block *ir.Block, v *ir.Value) {
	for i, x := range block.Values {
		if x == v {
			block.Values = append(block.Values[:i], block.Values[i+1:]...)
			return
		}
	}
}

// retargetSucc repoints one entry of from.Succs that used to point at old so that it points at new
// instead. If old appears more than once (two distinct edges from `from` happened to share a
// target), every occurrence is retargeted; duplicate successors are harmless to the walker.
func retargetSucc(from, old, new *ir.Block) {
	for i, s := range from.Succs {
		if s == old {
			from.Succs[i] = new
		}
	}
}
