// Copyright (C) 2024 The graphvec Authors.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package agg

import (
	"sync"

	"github.com/kuzudb/graphvec/exec"
	"github.com/kuzudb/graphvec/vector"
)

// SimpleAggregate is the no-group-keys aggregate of spec.md §4.7: every
// worker accumulates its own AggregateState slice, combineAggregateStates
// merges them under the shared-state lock at sub-pipeline end, and the
// single finalized row is emitted once downstream pulls it.
type SimpleAggregate struct {
	exec.Base

	Specs []FuncSpec

	mu      sync.Mutex
	global  []AggregateState
	emitted bool

	outChunk *vector.Chunk
	outVecs  []*vector.Vector
}

func NewSimpleAggregate(child exec.Operator, specs []FuncSpec) *SimpleAggregate {
	a := &SimpleAggregate{Specs: specs, global: NewAggregateStates(specs)}
	a.SetChildren(child)
	return a
}

func (a *SimpleAggregate) Kind() exec.OpKind { return exec.KindSimpleAggregate }

func (a *SimpleAggregate) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	outTypes := make([]vector.LogicalType, len(a.Specs))
	for i, s := range a.Specs {
		outTypes[i] = s.OutType
	}
	a.outChunk = vector.NewChunk(outTypes, 1)
	a.outVecs = a.outChunk.Vectors
	// Outputs that share a ChunkIdx go into one chunk, each at its VectorIdx.
	chunks := map[uint32]*vector.Chunk{}
	for i, s := range a.Specs {
		c := chunks[s.OutPos.ChunkIdx]
		if c == nil {
			c = &vector.Chunk{State: a.outChunk.State}
			chunks[s.OutPos.ChunkIdx] = c
			rs.SetChunk(s.OutPos.ChunkIdx, c)
		}
		for uint32(len(c.Vectors)) <= s.OutPos.VectorIdx {
			c.Vectors = append(c.Vectors, nil)
		}
		c.Vectors[s.OutPos.VectorIdx] = a.outVecs[i]
	}
	return nil
}

// GetNextTuple is only ever called on the pipeline that consumes this
// aggregate's single output row: Build (the Breaker step) must already
// have run, since it alone drains the child and fills a.global.
func (a *SimpleAggregate) GetNextTuple(ctx *exec.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.emitted {
		return false, nil
	}
	a.emitted = true
	Finalize(a.global, a.Specs, a.outVecs, 0)
	a.outChunk.State.SetUnfiltered(1)
	return true, nil
}

func (a *SimpleAggregate) Clone() exec.Operator { return a }

// Build drains the child to completion via a dedicated per-worker
// accumulator sink, then merges every worker's local AggregateState slice
// into a.global (spec.md §4.7: "combineAggregateStates merges into a
// global state under the shared-state lock").
func (a *SimpleAggregate) Build(ctx *exec.Context, numWorkers int) error {
	sink := &simpleSink{specs: a.Specs, agg: a}
	sink.SetChildren(a.Children()[0])
	return exec.RunPipeline(ctx, sink, numWorkers)
}

type simpleSink struct {
	exec.Base

	specs []FuncSpec
	agg   *SimpleAggregate

	rs     *vector.ResultSet
	inVecs []*vector.Vector
	local  []AggregateState
}

func (s *simpleSink) Kind() exec.OpKind { return exec.KindSimpleAggregate }

func (s *simpleSink) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	if err := s.Children()[0].InitLocalState(rs, ctx); err != nil {
		return err
	}
	s.rs = rs
	s.local = NewAggregateStates(s.specs)
	return nil
}

func (s *simpleSink) GetNextTuple(ctx *exec.Context) (bool, error) {
	more, err := s.Children()[0].GetNextTuple(ctx)
	if err != nil || !more {
		if !more && err == nil {
			s.agg.mu.Lock()
			Combine(s.agg.global, s.local, s.specs)
			s.agg.mu.Unlock()
		}
		return more, err
	}
	if s.inVecs == nil {
		s.inVecs = make([]*vector.Vector, len(s.specs))
	}
	for i, spec := range s.specs {
		if spec.InPos == vector.Invalid {
			s.inVecs[i] = nil
			continue
		}
		s.inVecs[i] = s.rs.Chunks[spec.InPos.ChunkIdx].Vectors[spec.InPos.VectorIdx]
	}
	n := 0
	for _, v := range s.inVecs {
		if v != nil {
			n = v.State().Size()
			break
		}
	}
	for row := 0; row < n; row++ {
		h := uint64(0)
		for i, spec := range s.specs {
			if spec.Op == OpCountDistinct && s.inVecs[i] != nil {
				h = distinctHash(s.inVecs[i], spec.InType, row, ctx.Salt)
			}
		}
		Update(s.local, s.specs, s.inVecs, row, h)
	}
	return true, nil
}

func (s *simpleSink) Clone() exec.Operator {
	c := &simpleSink{specs: s.specs, agg: s.agg}
	c.SetChildren(s.Children()[0].Clone())
	return c
}
