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

// Package ir implements the minimal procedure-level intermediate representation consumed by the
// cfgfuse optimization pass: blocks joined by control edges, join (phi) nodes at merges, and the
// handful of sentinel node kinds (Jump, Branch, Projection, Bad, End) the pass needs to reason
// about. It deliberately does not implement a general SSA construction pipeline — building this IR
// from a real program is the job of the frontend package (or a hand-written fixture in tests).
package ir

// Mode is the type lattice of a value: just enough modes for the pass to distinguish control edges
// from data and to manufacture a type-correct Bad for any slot.
type Mode int

const (
	// ModeInvalid is the zero value and never a legal mode for a constructed node.
	ModeInvalid Mode = iota
	// ModeCtrl is the mode of a control edge (produced by Jump, Proj, or Bad).
	ModeCtrl
	// ModeBool is the mode of a boolean selector (a two-way conditional).
	ModeBool
	// ModeInt is the mode of an integer value (a switch selector, or an arbitrary data value).
	ModeInt
	// ModeMem is the mode of a memory/effect value threaded through joins like any other value.
	ModeMem
)

func (m Mode) String() string {
	switch m {
	case ModeCtrl:
		return "ctrl"
	case ModeBool:
		return "bool"
	case ModeInt:
		return "int"
	case ModeMem:
		return "mem"
	default:
		return "invalid"
	}
}

// Op tags the kind of a Value node.
type Op int

const (
	// OpInvalid is the zero value.
	OpInvalid Op = iota
	// OpJump is a single-successor unconditional control transfer.
	OpJump
	// OpBranch is a multi-way control transfer; Args[0] is the selector.
	OpBranch
	// OpProj picks one outcome of a multi-result parent (Args[0]).
	OpProj
	// OpJoin is a phi node: arity must equal len(Block.CFGPreds).
	OpJoin
	// OpBad is the dead-edge/dead-value sentinel.
	OpBad
	// OpConst is a compile-time-known scalar producer, consulted by the branch folder.
	OpConst
	// OpValue is an opaque, already-computed data value (a parameter, a load, an arithmetic
	// result, ...). Instruction-level simplification of such values is out of scope for this
	// pass; they are leaves as far as cfgfuse is concerned.
	OpValue
)

func (op Op) String() string {
	switch op {
	case OpJump:
		return "Jump"
	case OpBranch:
		return "Branch"
	case OpProj:
		return "Proj"
	case OpJoin:
		return "Join"
	case OpBad:
		return "Bad"
	case OpConst:
		return "Const"
	case OpValue:
		return "Value"
	default:
		return "Invalid"
	}
}

// ID identifies a node within a Func's arena. IDs are never reused within a Func's lifetime, which
// keeps the scratch side-tables in package scratch safe to key by pointer *or* ID.
type ID int32

// Case labels one outgoing Proj of a Branch. The zero value (Val: 0, Default: false) is a valid
// case label (case 0); use Default to mark the fallthrough/else arm instead of relying on Val.
type Case struct {
	Val     int64
	Default bool
}

// Value is a single IR node: a control-transfer, a join, a sentinel, or an opaque data producer.
// Every Value is pinned to exactly one home Block for its lifetime inside this package; the pass
// refuses to run over an IR that is not pinned (see Func.CheckPinned).
type Value struct {
	id    ID
	Op    Op
	Mode  Mode
	Block *Block
	Args  []*Value

	// Target is meaningful for OpJump and OpProj: the block this control edge reaches.
	Target *Block
	// Case is meaningful for OpProj children of a non-boolean OpBranch.
	Case Case
	// ConstVal is meaningful for OpConst.
	ConstVal int64
	// Indirect marks an OpJump whose target cannot be statically confined to Target alone (e.g. a
	// computed/indirect jump). Such an edge is never a candidate for fusion.
	Indirect bool
	// Name is an optional debug label; it has no semantic meaning.
	Name string
}

// ID returns the value's stable identity within its Func's arena.
func (v *Value) ID() ID { return v.id }

// IsControl reports whether v produces a control-mode value (the three control-edge producers).
func (v *Value) IsControl() bool {
	return v.Op == OpJump || v.Op == OpProj || (v.Op == OpBad && v.Mode == ModeCtrl)
}

// Block is a basic block: a home for a set of Values and an operand vector of incoming control
// edges (CFGPreds). Like golang.org/x/tools/go/cfg.Block, liveness is tracked with an explicit
// flag rather than by removing the struct from the arena, since other nodes may still hold
// pointers to a fused-away block during the rewrite.
type Block struct {
	id ID
	F  *Func

	// CFGPreds holds one control-edge Value per incoming edge. CFGPreds[i].Block is the i-th
	// predecessor block.
	CFGPreds []*Value
	// Succs is the forward complement of CFGPreds, maintained by Connect and by the fuse pass's
	// rewrites. It exists so
	// the walker can compute reachability from Entry without inverting CFGPreds every time.
	Succs []*Block
	// Values holds every node homed in this block, in construction order (the Jump/Branch that
	// ends it, any Join nodes, any opaque values). Order is never semantically significant to the
	// pass beyond "all joins for B are reachable via B.Values".
	Values []*Value

	// Entity is a non-empty external label/address-taken marker that pins the block against
	// removal, mirroring has_Block_entity in the source material.
	Entity string
	// Live is false once the block has been fused away; dead blocks are skipped by the walker and
	// must never be read by the rewriter again.
	Live bool
}

// ID returns the block's stable identity within its Func's arena.
func (b *Block) ID() ID { return b.id }

// Joins returns the Join nodes homed in b, in Values order. The pass threads this list itself
// during the collector walk (see fuse.collect) rather than caching it here permanently, per the
// link-threading design note: the list is a by-product of one walk, not part of the steady-state
// data model.
func (b *Block) Joins() []*Value {
	var joins []*Value
	for _, v := range b.Values {
		if v.Op == OpJoin {
			joins = append(joins, v)
		}
	}
	return joins
}

// End is the procedure-global sink. Its KeepAlive list pins values against dead-code elimination
// regardless of whether they are otherwise reachable from Entry.
type End struct {
	KeepAlive []*Value
}

// Func is one procedure: an arena of blocks plus the two fixed anchors (Entry, End).
type Func struct {
	Name   string
	Entry  *Block
	End    *End
	Blocks []*Block

	nextID   ID
	badCache map[Mode]*Value

	// domStale tracks whether cached dominance information (owned by package domtree) needs to be
	// rebuilt before next use. It is exported via StaleDoms/MarkDomsStale so domtree and fuse don't
	// need a back-reference to each other.
	domStale bool
	// pinned is set once construction finishes (see Pin); the pass asserts this before running.
	pinned bool
}

// NewFunc creates an empty procedure with an Entry block and an End sink. The caller must still
// populate the Entry block and call Pin before running any pass over it.
func NewFunc(name string) *Func {
	f := &Func{Name: name, End: &End{}, badCache: make(map[Mode]*Value)}
	f.Entry = f.NewBlock()
	f.domStale = true
	return f
}

// NewBlock allocates a fresh, live, empty block in f's arena.
func (f *Func) NewBlock() *Block {
	b := &Block{id: f.allocID(), F: f, Live: true}
	f.Blocks = append(f.Blocks, b)
	return b
}

// NewValue allocates a fresh Value homed in block, appending it to block.Values.
func (f *Func) NewValue(block *Block, op Op, mode Mode, args ...*Value) *Value {
	v := &Value{id: f.allocID(), Op: op, Mode: mode, Block: block, Args: args}
	block.Values = append(block.Values, v)
	return v
}

func (f *Func) allocID() ID {
	id := f.nextID
	f.nextID++
	return id
}

// Pin freezes the procedure: every node now has a fixed home block and the pass is permitted to
// run. Call this once IR construction (by a frontend, or by hand in a test) is complete.
func (f *Func) Pin() { f.pinned = true }

// Pinned reports whether Pin has been called. The pass must refuse to run otherwise.
func (f *Func) Pinned() bool { return f.pinned }

// StaleDoms reports whether cached dominance information needs to be rebuilt.
func (f *Func) StaleDoms() bool { return f.domStale }

// MarkDomsStale invalidates cached dominance information. Called by every mutation that changes
// CFGPreds/Succs.
func (f *Func) MarkDomsStale() { f.domStale = true }

// ClearDomsStale is called only by package domtree, immediately after it rebuilds the dominator
// tree, to mark the cache fresh again.
func (f *Func) ClearDomsStale() { f.domStale = false }

// Connect records a control edge: edge (homed in from, reaching into) becomes CFGPreds[len] of
// into, and into is appended to from's Succs. It also sets edge.Target and invalidates dominance.
func (f *Func) Connect(from *Block, edge *Value, into *Block) {
	edge.Target = into
	into.CFGPreds = append(into.CFGPreds, edge)
	from.Succs = append(from.Succs, into)
	f.MarkDomsStale()
}

// Bad returns the (cached, per-mode) sentinel node for an unreachable edge or dead value of mode.
// Bad nodes are not homed in any particular block; Bad.Block is nil.
func (f *Func) Bad(mode Mode) *Value {
	if v, ok := f.badCache[mode]; ok {
		return v
	}
	v := &Value{id: f.allocID(), Op: OpBad, Mode: mode}
	f.badCache[mode] = v
	return v
}

// IsBad reports whether v is the dead-value/dead-edge sentinel.
func IsBad(v *Value) bool { return v != nil && v.Op == OpBad }
