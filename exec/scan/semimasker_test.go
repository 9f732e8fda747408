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

package scan

import (
	"testing"

	"github.com/google/uuid"

	"github.com/kuzudb/graphvec/exec"
	"github.com/kuzudb/graphvec/txn"
	"github.com/kuzudb/graphvec/vector"
)

// chunkSource is a one-shot leaf emitting chunks in order, mirroring the
// fixture exec's own tests use.
type chunkSource struct {
	exec.Base

	chunkIdx uint32
	chunks   []*vector.Chunk
	pos      int
	rs       *vector.ResultSet
}

func (s *chunkSource) Kind() exec.OpKind { return exec.KindScanNodeID }

func (s *chunkSource) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	s.rs = rs
	return nil
}

func (s *chunkSource) GetNextTuple(ctx *exec.Context) (bool, error) {
	if s.pos >= len(s.chunks) {
		return false, nil
	}
	s.rs.SetChunk(s.chunkIdx, s.chunks[s.pos])
	s.pos++
	return true, nil
}

func (s *chunkSource) Clone() exec.Operator {
	return &chunkSource{chunkIdx: s.chunkIdx, chunks: s.chunks}
}

func newTestContext() *exec.Context {
	tx := txn.Begin(txn.Write, uuid.New())
	return exec.NewContext(tx, nil, nil, nil, nil, nil, 1)
}

func nodeChunk(tableID uint32, offsets ...uint64) *vector.Chunk {
	c := vector.NewChunk([]vector.LogicalType{vector.NODE}, len(offsets))
	for i, off := range offsets {
		c.Vectors[0].SetNodeID(i, vector.NodeID{Offset: off, TableID: tableID})
	}
	return c
}

func TestSemiMaskerFiltersToSelectedRows(t *testing.T) {
	mask := NewSemiMask(10, 1)
	mask.Mark(1, 0)
	mask.Mark(3, 0)

	chunk := nodeChunk(1, 0, 1, 2, 3)
	src := &chunkSource{chunkIdx: 0, chunks: []*vector.Chunk{chunk}}
	m := NewSemiMasker(src, mask, vector.Pos{ChunkIdx: 0, VectorIdx: 0}, 0)

	ctx := newTestContext()
	rs := &vector.ResultSet{}
	if err := m.InitLocalState(rs, ctx); err != nil {
		t.Fatalf("InitLocalState: %v", err)
	}
	more, err := m.GetNextTuple(ctx)
	if err != nil {
		t.Fatalf("GetNextTuple: %v", err)
	}
	if !more {
		t.Fatal("expected more=true")
	}
	out := rs.Chunks[0]
	if got := out.Size(); got != 2 {
		t.Fatalf("filtered size = %d, want 2", got)
	}
	idVec := out.Vectors[0]
	gotOffsets := []uint64{idVec.GetNodeID(0).Offset, idVec.GetNodeID(1).Offset}
	if gotOffsets[0] != 1 || gotOffsets[1] != 3 {
		t.Errorf("filtered offsets = %v, want [1 3]", gotOffsets)
	}
}

func TestSemiMaskerSkipsChunksWithNoSurvivors(t *testing.T) {
	mask := NewSemiMask(10, 1)
	mask.Mark(9, 0)

	noneSelected := nodeChunk(1, 0, 1)
	hasSelected := nodeChunk(1, 9)
	src := &chunkSource{chunkIdx: 0, chunks: []*vector.Chunk{noneSelected, hasSelected}}
	m := NewSemiMasker(src, mask, vector.Pos{ChunkIdx: 0, VectorIdx: 0}, 0)

	ctx := newTestContext()
	rs := &vector.ResultSet{}
	if err := m.InitLocalState(rs, ctx); err != nil {
		t.Fatalf("InitLocalState: %v", err)
	}
	more, err := m.GetNextTuple(ctx)
	if err != nil {
		t.Fatalf("GetNextTuple: %v", err)
	}
	if !more {
		t.Fatal("expected more=true, skipping straight past the all-excluded chunk")
	}
	out := rs.Chunks[0]
	if got := out.Size(); got != 1 {
		t.Fatalf("filtered size = %d, want 1", got)
	}
	if got := out.Vectors[0].GetNodeID(0).Offset; got != 9 {
		t.Errorf("offset = %d, want 9", got)
	}
}
