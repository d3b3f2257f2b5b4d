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

// Package fuse implements the control-flow fusion optimization: folding trivially-decidable
// multi-way branches into plain jumps, and collapsing empty blocks into their successors while
// preserving join-node (phi) semantics at every merge the rewrite touches. See collector.go,
// branchfold.go, oracle.go, rewriter.go, and driver.go for the four collaborators and the fixpoint
// loop that drives them.
package fuse

import (
	"github.com/cfgfuse/cfgfuse/ir"
	"github.com/cfgfuse/cfgfuse/passmgr"
)

// NewPass returns the fuse transformation as a passmgr.Pass, ready to be composed into a larger
// pipeline or run standalone via passmgr.RunOn. Optimize panics on a precondition violation
// (an unpinned Func) or an internal invariant violation; passmgr.RunOn is what converts such a
// panic into the returned error here.
func NewPass() *passmgr.Pass {
	return &passmgr.Pass{
		Name: "fuse",
		Doc:  "folds decidable multi-way branches into jumps and collapses empty blocks into their successors",
		Run: func(f *ir.Func) error {
			Optimize(f)
			return nil
		},
	}
}
