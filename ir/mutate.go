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

package ir

import "fmt"

// PreconditionError is panicked when the pass is asked to run over an IR that has not satisfied a
// hard precondition (not pinned, or requested during construction). It is never recovered inside
// this module; only an outer boundary (see package passmgr) may choose to convert it to an error.
type PreconditionError struct{ Msg string }

func (e *PreconditionError) Error() string { return "cfgfuse: precondition violated: " + e.Msg }

// InvariantError is panicked when an internal invariant the pass relies on (arity agreement
// between the join rewrite and the block rewrite, an unexpected node kind on a collected chain, ...)
// is found to be false. The IR is considered inconsistent afterward; the pass must not be retried.
type InvariantError struct{ Msg string }

func (e *InvariantError) Error() string { return "cfgfuse: invariant violated: " + e.Msg }

// CheckPinned panics with a PreconditionError if f is not ready for the pass to run.
func (f *Func) CheckPinned() {
	if !f.pinned {
		panic(&PreconditionError{Msg: fmt.Sprintf("func %q is not pinned (still under construction)", f.Name)})
	}
}

// NewJump allocates a new unconditional jump homed in block. The caller is responsible for wiring
// its Target via Connect.
func (f *Func) NewJump(block *Block) *Value {
	return f.NewValue(block, OpJump, ModeCtrl)
}

// Exchange rewires every use of old to new throughout f: every Value.Args entry, every
// Block.CFGPreds entry, and every End.KeepAlive entry that points at old is repointed at new. This
// is the single mutator all global rewrites are routed through (see design note on global
// rewriting): a future revision that wants a reverse-edge cache only has to change this function.
func Exchange(f *Func, old, new *Value) {
	if old == new {
		return
	}
	for _, b := range f.Blocks {
		for i, p := range b.CFGPreds {
			if p == old {
				b.CFGPreds[i] = new
			}
		}
		for _, v := range b.Values {
			for i, a := range v.Args {
				if a == old {
					v.Args[i] = new
				}
			}
		}
	}
	for i, ka := range f.End.KeepAlive {
		if ka == old {
			f.End.KeepAlive[i] = new
		}
	}
	f.MarkDomsStale()
}

// EquivalentBlock returns a replacement for b when b reduces to a trivial identity the explicit
// fuse algorithm does not itself special-case (for example, a block whose sole Value is a Jump to
// a block that is itself about to be proven identical). The stock implementation here only
// handles the case the rewriter actually leaves behind: a dead block (Live == false) that still has
// live successors reachable through it is never trivial, so this currently always returns b
// unchanged; it is a seam for local simplifications a richer optimizer would plug in here, exactly
// as the source material's equivalent_node is a hook the core rewrite deliberately does not
// duplicate.
func EquivalentBlock(b *Block) *Block { return b }

// RemoveBadsAndDoublets compacts f.End.KeepAlive: Bad entries and duplicate entries (by pointer
// identity) are dropped, preserving the relative order of the first occurrence of each surviving
// entry. It reports whether the list changed.
func RemoveBadsAndDoublets(f *Func) bool {
	seen := make(map[*Value]bool, len(f.End.KeepAlive))
	out := f.End.KeepAlive[:0:0]
	for _, ka := range f.End.KeepAlive {
		if IsBad(ka) || seen[ka] {
			continue
		}
		seen[ka] = true
		out = append(out, ka)
	}
	changed := len(out) != len(f.End.KeepAlive)
	f.End.KeepAlive = out
	return changed
}

// EndKeepAlives returns f's End keep-alive list.
func EndKeepAlives(f *Func) []*Value { return f.End.KeepAlive }

// SetEndKeepAlives replaces f's End keep-alive list.
func SetEndKeepAlives(f *Func, vec []*Value) { f.End.KeepAlive = vec }

// DeactivateEdgeCache is a no-op placeholder kept for interface parity with a richer IR: such an IR
// that maintains a reverse-edge (use-list) cache alongside CFGPreds would need to
// deactivate it before the rewriter mutates CFGPreds in place, since the rewriter does not keep
// such a cache up to date. This module's Block does not maintain one (Exchange always does a full
// scan instead), so there is nothing to deactivate; the hook exists so callers can be written
// against the richer interface without change.
func DeactivateEdgeCache(f *Func) {}
