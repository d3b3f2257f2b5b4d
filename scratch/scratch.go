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

// Package scratch implements a scoped scratch-state manager: for the duration
// of one fuse pass invocation it owns a side table of per-block "removable" marks and the
// link-threaded auxiliary lists (a block's join nodes, a branch's projections), and it guarantees
// those are released on every exit path, including a panic unwinding through InvariantError or
// PreconditionError.
//
// The two scratch resources are kept as side tables here rather than as fields on ir.Block/Value,
// per the design note on scratch side-tables vs. in-node fields: this isolates pass state to the
// lifetime of one Manager and makes reentrancy (running the pass twice, or nesting it inside a
// larger pipeline) explicit instead of relying on every node having been visited by a prior
// "clear_link" pass.
package scratch

import (
	"fmt"

	"github.com/cfgfuse/cfgfuse/ir"
)

// Manager owns the scratch resources for one pass invocation. The zero value is not usable; call
// Acquire.
type Manager struct {
	f *ir.Func

	removable map[*ir.Block]bool
	joinsOf   map[*ir.Block][]*ir.Value
	projsOf   map[*ir.Value][]*ir.Value

	// visited marks blocks the rewriter has already committed, per the oracle's "already visited"
	// non-dispensability rule.
	visited map[*ir.Block]bool

	released bool
}

// Acquire reserves the scratch resources for f: every block's removable mark is reset to true and
// the link-threaded chains are cleared. The caller must call Release exactly once, typically via
// `defer`, so that the resources are freed on every exit path including a panic.
func Acquire(f *ir.Func) *Manager {
	m := &Manager{
		f:         f,
		removable: make(map[*ir.Block]bool, len(f.Blocks)),
		joinsOf:   make(map[*ir.Block][]*ir.Value),
		projsOf:   make(map[*ir.Value][]*ir.Value),
		visited:   make(map[*ir.Block]bool, len(f.Blocks)),
	}
	for _, b := range f.Blocks {
		m.removable[b] = true
	}
	return m
}

// Release frees the scratch resources. Calling Release more than once, or using any accessor
// after Release, panics with an InvariantError — the scratch manager is meant to be held for
// exactly one scoped pass invocation.
func (m *Manager) Release() {
	m.checkNotReleased()
	m.released = true
	m.removable = nil
	m.joinsOf = nil
	m.projsOf = nil
	m.visited = nil
}

func (m *Manager) checkNotReleased() {
	if m.released {
		panic(&ir.InvariantError{Msg: "scratch manager used after Release"})
	}
}

// Removable reports the current removable mark for b (true until proven otherwise).
func (m *Manager) Removable(b *ir.Block) bool {
	m.checkNotReleased()
	return m.removable[b]
}

// SetRemovable sets b's removable mark.
func (m *Manager) SetRemovable(b *ir.Block, v bool) {
	m.checkNotReleased()
	m.removable[b] = v
}

// AddJoin threads join onto the chain of join nodes collected for block b.
func (m *Manager) AddJoin(b *ir.Block, join *ir.Value) {
	m.checkNotReleased()
	if join.Op != ir.OpJoin {
		panic(&ir.InvariantError{Msg: fmt.Sprintf("AddJoin called with non-join op %s", join.Op)})
	}
	m.joinsOf[b] = append(m.joinsOf[b], join)
}

// JoinsOf returns the join nodes collected for block b, in the order they were added.
func (m *Manager) JoinsOf(b *ir.Block) []*ir.Value {
	m.checkNotReleased()
	return m.joinsOf[b]
}

// AddProj threads proj onto the chain of projections collected for parent (a Branch, or any other
// multi-result producer).
func (m *Manager) AddProj(parent, proj *ir.Value) {
	m.checkNotReleased()
	if proj.Op != ir.OpProj {
		panic(&ir.InvariantError{Msg: fmt.Sprintf("AddProj called with non-proj op %s", proj.Op)})
	}
	m.projsOf[parent] = append(m.projsOf[parent], proj)
}

// ProjsOf returns the projections collected for parent, in the order they were added.
func (m *Manager) ProjsOf(parent *ir.Value) []*ir.Value {
	m.checkNotReleased()
	return m.projsOf[parent]
}

// Visited reports whether b has already been committed by the rewriter.
func (m *Manager) Visited(b *ir.Block) bool {
	m.checkNotReleased()
	return m.visited[b]
}

// MarkVisited records that b has been committed by the rewriter.
func (m *Manager) MarkVisited(b *ir.Block) {
	m.checkNotReleased()
	m.visited[b] = true
}
