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

// Command cfgfuse loads a Go package, lowers every function declaration it finds into the ir
// package's procedure representation via the frontend package, runs the fuse pass over each one,
// and prints a before/after block listing to stdout. It exists to give the pass a way to be
// exercised against real source from the command line; it is a thin demo
// binary, not part of the core's public API.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"os"

	"github.com/cfgfuse/cfgfuse/frontend"
	"github.com/cfgfuse/cfgfuse/fuse"
	"github.com/cfgfuse/cfgfuse/ir"
	"github.com/cfgfuse/cfgfuse/passmgr"
	"golang.org/x/tools/go/packages"
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: cfgfuse <package pattern>")
		os.Exit(2)
	}

	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, "cfgfuse:", err)
		os.Exit(1)
	}
}

func run(pattern string) error {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedSyntax | packages.NeedTypes | packages.NeedTypesInfo}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return fmt.Errorf("load %s: %w", pattern, err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		return fmt.Errorf("errors while loading %s", pattern)
	}

	pass := fuse.NewPass()
	for _, pkg := range pkgs {
		for _, file := range pkg.Syntax {
			for _, decl := range file.Decls {
				fn, ok := decl.(*ast.FuncDecl)
				if !ok {
					continue
				}
				if err := runFunc(pass, pkg, fn); err != nil {
					fmt.Fprintf(os.Stderr, "cfgfuse: %s.%s: %v\n", pkg.PkgPath, fn.Name.Name, err)
				}
			}
		}
	}
	return nil
}

// runFunc lowers a single function declaration, prints its block listing before the pass runs,
// runs the pass, and prints the listing again so the two can be compared by eye.
func runFunc(pass *passmgr.Pass, pkg *packages.Package, fn *ast.FuncDecl) error {
	f, err := frontend.Build(pkg.Fset, pkg.TypesInfo, fn)
	if err != nil {
		// A function with no body (an external/assembly declaration) or a degenerate CFG is not a
		// failure of the tool; skip it silently rather than reporting an error for every stub.
		return nil
	}

	fmt.Printf("=== %s.%s (before) ===\n", pkg.PkgPath, fn.Name.Name)
	printBlocks(f)

	if err := passmgr.RunOn(pass, f); err != nil {
		return fmt.Errorf("run fuse pass: %w", err)
	}

	fmt.Printf("=== %s.%s (after) ===\n", pkg.PkgPath, fn.Name.Name)
	printBlocks(f)
	fmt.Println()
	return nil
}

// printBlocks writes one line per live block, naming its id, its entity (if any), and the block
// ids reached via each live successor edge.
func printBlocks(f *ir.Func) {
	for _, b := range f.Blocks {
		if !b.Live {
			continue
		}
		entity := ""
		if b.Entity != "" {
			entity = fmt.Sprintf(" entity=%s", b.Entity)
		}
		fmt.Printf("  b%d%s preds=%d joins=%d succs=", b.ID(), entity, len(b.CFGPreds), len(b.Joins()))
		for i, s := range b.Succs {
			if i > 0 {
				fmt.Print(",")
			}
			fmt.Printf("b%d", s.ID())
		}
		fmt.Println()
	}
}
