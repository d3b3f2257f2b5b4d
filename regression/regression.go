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

// Package regression implements the counterexample corpus for a disputed invariant: the source
// material asserts, then immediately discards, a check that a fused block's predecessor count
// equals its merge successor's. Package fuse does not enforce that assertion, but rather than
// deleting the question outright, every case where the discarded
// assertion would have fired is recorded here (gated behind config.StrictPhiArityFlag) so the
// decision can be revisited against real inputs instead of by argument alone.
//
// The corpus is encoded as an s2-compressed gob stream, with an OrderedMap backing it so the report
// it loads back into is reproducible across runs touching a fixed set of records.
package regression

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/cfgfuse/cfgfuse/util/orderedmap"
	"github.com/klauspost/compress/s2"
)

// ArityMismatch is one recorded instance of the disputed invariant failing to hold.
type ArityMismatch struct {
	Func           string
	Block          int32
	Successor      int32
	BlockPreds     int
	SuccessorPreds int
}

func (a ArityMismatch) String() string {
	return fmt.Sprintf("%s: block %d (preds=%d) -> successor %d (preds=%d)",
		a.Func, a.Block, a.BlockPreds, a.Successor, a.SuccessorPreds)
}

// Corpus accumulates ArityMismatch records in discovery order, keyed by (func, block, successor)
// so repeated fixpoint rounds over the same pair do not inflate the count.
type Corpus struct {
	records *orderedmap.OrderedMap[key, ArityMismatch]
}

type key struct {
	Func      string
	Block     int32
	Successor int32
}

// NewCorpus returns an empty corpus.
func NewCorpus() *Corpus {
	return &Corpus{records: orderedmap.New[key, ArityMismatch]()}
}

// defaultCorpus is the process-wide sink RecordArityMismatch writes to when the caller does not
// need its own isolated Corpus (the common case: a driver run gated by the debug flag).
var defaultCorpus = NewCorpus()

// Default returns the process-wide corpus populated by RecordArityMismatch.
func Default() *Corpus { return defaultCorpus }

// RecordArityMismatch records one occurrence of the discarded invariant failing to hold, in the
// process-wide default corpus.
func RecordArityMismatch(funcName string, block, successor int32, blockPreds, successorPreds int) {
	defaultCorpus.Record(ArityMismatch{
		Func:           funcName,
		Block:          block,
		Successor:      successor,
		BlockPreds:     blockPreds,
		SuccessorPreds: successorPreds,
	})
}

// Record stores m in the corpus, keyed so a repeat observation of the same (func, block,
// successor) triple overwrites rather than duplicates.
func (c *Corpus) Record(m ArityMismatch) {
	c.records.Store(key{Func: m.Func, Block: m.Block, Successor: m.Successor}, m)
}

// Len reports how many distinct mismatches have been recorded.
func (c *Corpus) Len() int { return len(c.records.Pairs) }

// All returns every recorded mismatch, in the order first observed.
func (c *Corpus) All() []ArityMismatch {
	out := make([]ArityMismatch, 0, len(c.records.Pairs))
	for _, p := range c.records.Pairs {
		out = append(out, p.Value)
	}
	return out
}

// GobEncode serializes the corpus through an s2-compressed gob stream, the same shape used to
// persist other inferred, fact-like data across package boundaries.
func (c *Corpus) GobEncode() (b []byte, err error) {
	var buf bytes.Buffer
	w := s2.NewWriter(&buf)
	defer func() {
		if cerr := w.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	if err := gob.NewEncoder(w).Encode(c.records); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode deserializes a corpus previously produced by GobEncode.
func (c *Corpus) GobDecode(input []byte) error {
	c.records = orderedmap.New[key, ArityMismatch]()
	r := s2.NewReader(bytes.NewReader(input))
	return gob.NewDecoder(r).Decode(&c.records)
}
