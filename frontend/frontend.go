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

// Package frontend lowers a real Go function body into the ir package's procedure representation,
// so that cmd/cfgfuse and the fuse package's tests can exercise the pass against actual source
// instead of only hand-built fixtures. It depends on ir; nothing in ir, domtree, walk, scratch, or
// fuse imports frontend back — those packages reason about the IR alone and must stay usable
// without a Go parser in the loop.
//
// The control-flow skeleton comes from golang.org/x/tools/go/cfg, the same building block
// preprocess/cfg.go in this codebase's nearest relative builds on. Where that package collapses a
// condition to a two-way branch (it never models switches as a single multi-way branch — see its
// own doc comment), this lowering keeps that boolean shape: every two-successor cfg.Block becomes
// an ir.Branch of ir.ModeBool; this frontend is a deliberately partial,
// fixture-building lowering, not a general Go-to-IR compiler, so a genuine multi-way ir.Branch
// (the shape the fuse pass's branch folder also exercises) is left to hand-built fixtures in the
// fuse package's own tests rather than reconstructed here from *ast.SwitchStmt.
//
// At every CFG merge (a block with more than one predecessor), this package also approximates SSA
// construction by emitting one ir.Join per local identifier assigned in more than one predecessor
// block — coarser than a real SSA construction pass (no attempt is made to track the identifier's
// actual reaching definition along each edge, only that it was assigned somewhere in the
// predecessor), but enough to give the fuse pass realistic join-node fixtures to collapse.
package frontend

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"
	"sort"

	"github.com/cfgfuse/cfgfuse/ir"
	"golang.org/x/tools/go/cfg"
)

// Build lowers fn's body into a freshly pinned ir.Func named fn.Name.Name. info supplies constant
// and type information for branch conditions; a nil info is accepted (every condition is
// then treated as an opaque runtime value, never foldable).
func Build(fset *token.FileSet, info *types.Info, fn *ast.FuncDecl) (*ir.Func, error) {
	if fn.Body == nil {
		return nil, fmt.Errorf("frontend: %s has no body", fn.Name.Name)
	}

	graph := cfg.New(fn.Body, func(*ast.CallExpr) bool { return true })
	if len(graph.Blocks) == 0 {
		return nil, fmt.Errorf("frontend: %s produced an empty control-flow graph", fn.Name.Name)
	}

	b := &builder{fset: fset, info: info, f: ir.NewFunc(fn.Name.Name)}
	b.lower(graph)
	b.f.Pin()
	return b.f, nil
}

type builder struct {
	fset *token.FileSet
	info *types.Info
	f    *ir.Func

	blocks map[*cfg.Block]*ir.Block
	cbOf   map[*ir.Block]*cfg.Block
}

func (b *builder) lower(graph *cfg.CFG) {
	b.blocks = make(map[*cfg.Block]*ir.Block, len(graph.Blocks))
	b.cbOf = make(map[*ir.Block]*cfg.Block, len(graph.Blocks))
	for i, cb := range graph.Blocks {
		if i == 0 {
			b.blocks[cb] = b.f.Entry
		} else {
			b.blocks[cb] = b.f.NewBlock()
		}
		b.cbOf[b.blocks[cb]] = cb
	}

	for _, cb := range graph.Blocks {
		block := b.blocks[cb]
		if !cb.Live {
			block.Live = false
			continue
		}
		b.lowerBlock(cb, block)
	}

	for _, cb := range graph.Blocks {
		block := b.blocks[cb]
		if block.Live {
			b.lowerJoins(block)
		}
	}
}

// lowerJoins approximates SSA construction at a merge block: for every local identifier assigned
// in more than one of block's predecessor blocks, it emits one ir.Join whose arity matches
// block's cfgpreds, with one freshly-minted opaque operand per predecessor standing in for "the
// value of that identifier flowing in along this edge" (this frontend does not attempt to resolve
// the identifier's actual reaching definition, only whether it is live across more than one
// incoming edge — see the package doc comment).
func (b *builder) lowerJoins(block *ir.Block) {
	if len(block.CFGPreds) < 2 {
		return
	}

	counts := map[string]int{}
	for _, edge := range block.CFGPreds {
		if ir.IsBad(edge) || edge.Block == nil {
			continue
		}
		predCb := b.cbOf[edge.Block]
		if predCb == nil {
			continue
		}
		for name := range assignedIdents(predCb.Nodes) {
			counts[name]++
		}
	}

	var live []string
	for name, n := range counts {
		if n > 1 {
			live = append(live, name)
		}
	}
	sort.Strings(live)

	for _, name := range live {
		args := make([]*ir.Value, len(block.CFGPreds))
		for i, edge := range block.CFGPreds {
			if ir.IsBad(edge) || edge.Block == nil {
				args[i] = b.f.Bad(ir.ModeInt)
				continue
			}
			args[i] = b.f.NewValue(edge.Block, ir.OpValue, ir.ModeInt)
		}
		phi := b.f.NewValue(block, ir.OpJoin, ir.ModeInt, args...)
		phi.Name = name
	}
}

// assignedIdents collects the names of every local identifier directly assigned (via `=`/`:=` or
// `++`/`--`) anywhere in nodes, the statements/expressions golang.org/x/tools/go/cfg records for
// one block.
func assignedIdents(nodes []ast.Node) map[string]bool {
	idents := map[string]bool{}
	for _, n := range nodes {
		ast.Inspect(n, func(node ast.Node) bool {
			switch s := node.(type) {
			case *ast.AssignStmt:
				for _, lhs := range s.Lhs {
					if id, ok := lhs.(*ast.Ident); ok && id.Name != "_" {
						idents[id.Name] = true
					}
				}
			case *ast.IncDecStmt:
				if id, ok := s.X.(*ast.Ident); ok {
					idents[id.Name] = true
				}
			}
			return true
		})
	}
	return idents
}

// lowerBlock populates block with one opaque ir.Value per non-control AST node in cb (so the
// collector never mistakes a block with real statements for an empty pass-through), then wires its
// outgoing control edge(s).
func (b *builder) lowerBlock(cb *cfg.Block, block *ir.Block) {
	nodes := cb.Nodes
	if len(cb.Succs) == 2 {
		// The last node is the branch condition; it gets folded into the Branch selector below
		// rather than emitted as an opaque value.
		nodes = nodes[:len(nodes)-1]
	}
	for range nodes {
		b.f.NewValue(block, ir.OpValue, ir.ModeMem)
	}

	switch len(cb.Succs) {
	case 0:
		return
	case 1:
		jump := b.f.NewJump(block)
		b.f.Connect(block, jump, b.blocks[cb.Succs[0]])
	case 2:
		b.lowerBranch(cb, block)
	default:
		panic(&ir.InvariantError{Msg: fmt.Sprintf("frontend: cfg block has %d successors", len(cb.Succs))})
	}
}

// lowerBranch handles a boolean cfg.Block: golang.org/x/tools/go/cfg has already collapsed the
// condition (whether it came from an if/else or one arm of a switch-over-chained-comparisons) to a
// single two-way decision by this point, so this always emits a two-projection ir.Branch of
// ir.ModeBool — one OpConst selector when go/types proves the condition statically decidable,
// an opaque OpValue otherwise.
func (b *builder) lowerBranch(cb *cfg.Block, block *ir.Block) {
	cond, _ := cb.Nodes[len(cb.Nodes)-1].(ast.Expr)

	selector := b.conditionValue(block, cond)
	branch := b.f.NewValue(block, ir.OpBranch, selector.Mode, selector)

	trueProj := b.f.NewValue(block, ir.OpProj, ir.ModeCtrl, branch)
	trueProj.Case = ir.Case{Val: 1}
	falseProj := b.f.NewValue(block, ir.OpProj, ir.ModeCtrl, branch)
	falseProj.Case = ir.Case{Default: true}

	b.f.Connect(block, trueProj, b.blocks[cb.Succs[0]])
	b.f.Connect(block, falseProj, b.blocks[cb.Succs[1]])
}

// conditionValue produces the selector Value for a boolean condition: an ir.OpConst when go/types
// proved it a compile-time constant, an opaque ir.OpValue otherwise.
func (b *builder) conditionValue(block *ir.Block, cond ast.Expr) *ir.Value {
	if b.info != nil && cond != nil {
		if tv, ok := b.info.Types[cond]; ok && tv.Value != nil && tv.Value.Kind() == constant.Bool {
			v := b.f.NewValue(block, ir.OpConst, ir.ModeBool)
			if constant.BoolVal(tv.Value) {
				v.ConstVal = 1
			}
			return v
		}
	}
	return b.f.NewValue(block, ir.OpValue, ir.ModeBool)
}
