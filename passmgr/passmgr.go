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

// Package passmgr implements a reusable pass-manager facade: a small registry
// of named, self-describing IR transformations with declared dependencies, styled directly on
// golang.org/x/tools/go/analysis.Analyzer's Name/Doc/Run/Requires shape. It cannot reuse that type
// as-is — analysis.Analyzer's Run is bound to an *analysis.Pass carrying an *ast.File/*types.Info
// view of a Go package, which this procedure-level IR does not have — so Pass is a new type with
// the same shape, and safeRun below ports analysishelper.WrapRun's panic-to-error boundary to the
// func(*ir.Func) error signature that shape implies.
package passmgr

import (
	"fmt"

	"github.com/cfgfuse/cfgfuse/ir"
)

// Pass is one named transformation over an ir.Func.
type Pass struct {
	// Name uniquely identifies the pass, for diagnostics and for Requires resolution.
	Name string
	// Doc is a one-line (or longer) human description of what the pass does.
	Doc string
	// Run performs the transformation. Run is permitted to rely on the core's panic-on-violation
	// convention (ir.PreconditionError, ir.InvariantError); RunOn below is the boundary that
	// converts such a panic into a returned error.
	Run func(*ir.Func) error
	// Requires lists passes that must run (and succeed) before this one.
	Requires []*Pass
}

// RunOn executes p (and, transitively, its Requires) against f, in dependency order, skipping any
// pass already executed earlier in this call. It returns the first error encountered (including
// one recovered from a panic raised by the core) and does not run further passes after a failure.
func RunOn(p *Pass, f *ir.Func) error {
	return runOn(p, f, make(map[*Pass]bool))
}

func runOn(p *Pass, f *ir.Func, seen map[*Pass]bool) error {
	if seen[p] {
		return nil
	}
	seen[p] = true

	for _, dep := range p.Requires {
		if err := runOn(dep, f, seen); err != nil {
			return fmt.Errorf("%s (required by %s): %w", dep.Name, p.Name, err)
		}
	}

	return safeRun(p, f)
}

// safeRun invokes p.Run, converting a panic raised by the core (an *ir.PreconditionError or
// *ir.InvariantError, or anything else) into a returned error instead of letting it cross the pass
// manager boundary. This is the one place in the module outer code is permitted to recover from a
// panic the core raises; the core itself never recovers its own panics.
func safeRun(p *Pass, f *ir.Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", p.Name, r)
		}
	}()
	return p.Run(f)
}
