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

package walk_test

import (
	"testing"

	"github.com/cfgfuse/cfgfuse/ir"
	"github.com/cfgfuse/cfgfuse/walk"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) { goleak.VerifyTestMain(m) }

func TestReachableSkipsDeadAndUnreachableBlocks(t *testing.T) {
	t.Parallel()

	f := ir.NewFunc("f")
	live := f.NewBlock()
	dead := f.NewBlock()
	unreachable := f.NewBlock()
	_ = unreachable

	f.Connect(f.Entry, f.NewJump(f.Entry), live)
	f.Connect(f.Entry, f.NewJump(f.Entry), dead)
	dead.Live = false

	blocks := walk.Reachable(f)
	require.Contains(t, blocks, f.Entry)
	require.Contains(t, blocks, live)
	require.NotContains(t, blocks, dead)
	require.NotContains(t, blocks, unreachable)
}

func TestReachableVisitsParentBeforeChild(t *testing.T) {
	t.Parallel()

	f := ir.NewFunc("f")
	b1 := f.NewBlock()
	b2 := f.NewBlock()
	f.Connect(f.Entry, f.NewJump(f.Entry), b1)
	f.Connect(b1, f.NewJump(b1), b2)

	blocks := walk.Reachable(f)
	pos := map[*ir.Block]int{}
	for i, b := range blocks {
		pos[b] = i
	}
	require.Less(t, pos[f.Entry], pos[b1])
	require.Less(t, pos[b1], pos[b2])
}

func TestPostorderBlocksVisitsChildBeforeParent(t *testing.T) {
	t.Parallel()

	f := ir.NewFunc("f")
	b1 := f.NewBlock()
	b2 := f.NewBlock()
	f.Connect(f.Entry, f.NewJump(f.Entry), b1)
	f.Connect(b1, f.NewJump(b1), b2)

	blocks := walk.PostorderBlocks(f)
	pos := map[*ir.Block]int{}
	for i, b := range blocks {
		pos[b] = i
	}
	require.Less(t, pos[b2], pos[b1])
	require.Less(t, pos[b1], pos[f.Entry])
}

func TestWalkVisitsEveryLiveValueOnce(t *testing.T) {
	t.Parallel()

	f := ir.NewFunc("f")
	v1 := f.NewValue(f.Entry, ir.OpValue, ir.ModeInt)
	b2 := f.NewBlock()
	f.Connect(f.Entry, f.NewJump(f.Entry), b2)
	v2 := f.NewValue(b2, ir.OpValue, ir.ModeInt)

	var seen []*ir.Value
	walk.Walk(f, nil, func(v *ir.Value) { seen = append(seen, v) })

	require.Contains(t, seen, v1)
	require.Contains(t, seen, v2)
	require.Len(t, seen, 3) // v1, the jump into b2, v2
}
