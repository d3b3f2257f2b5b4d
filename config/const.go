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

// Package config hosts the handful of debug/developer flags the cfgfuse pass consults. They are
// not meant for end users of the pass; they exist to gate the instrumentation (the regression
// corpus recorder) used while a disputed arity invariant is still under investigation.
package config

// FixpointRoundLimit bounds how many times the driver will re-run the collect/fold/rewrite cycle
// looking for a fixpoint before giving up with a panic of type *ir.InvariantError. It is a safety net, not a
// tuning knob: a correct implementation always reaches a fixpoint in at most len(f.Blocks) rounds
// (each round commits at least one block or one branch fold), so hitting this limit indicates a
// bug rather than a slow-converging input.
const FixpointRoundLimit = 4096
