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

package config

import "flag"

// strictPhiArity backs StrictPhiArityFlag. It defaults to off: the pass does not enforce the
// stronger arity restriction the source material asserts and then discards, and with the flag off
// it records nothing about it either. Driver programs (cmd/cfgfuse, or a test wanting to rebuild
// the counterexample corpus) can opt into recording every case where the discarded restriction
// would have fired.
var strictPhiArity = flag.Bool(
	"cfgfuse.strict_phi_arity",
	false,
	"record every fused block whose predecessor count differs from its merge successor's, for offline review of the disputed arity invariant",
)

// StrictPhiArityFlag reports whether the disputed predecessor/successor arity invariant
// should be recorded when violated, rather than silently relied upon being sound.
func StrictPhiArityFlag() bool { return *strictPhiArity }

// SetStrictPhiArityForTest overrides the flag's value for the duration of a test and returns a
// restore function. Tests should always `defer restore()` rather than mutating the flag directly.
func SetStrictPhiArityForTest(v bool) (restore func()) {
	prev := *strictPhiArity
	*strictPhiArity = v
	return func() { *strictPhiArity = prev }
}
