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

package write

import (
	"testing"

	"github.com/kuzudb/graphvec/catalog"
	"github.com/kuzudb/graphvec/storage"
	"github.com/kuzudb/graphvec/vector"
)

const (
	testSrcTableID uint32 = 10
	testDstTableID uint32 = 11
	testRelTableID uint32 = 20
	testSincePropID catalog.PropertyID = 0
)

func relSchema() catalog.RelTableSchema {
	return catalog.RelTableSchema{
		ID:        testRelTableID,
		Name:      "Knows",
		FromTable: testSrcTableID,
		ToTable:   testDstTableID,
		Properties: []catalog.PropertySchema{
			{ID: testSincePropID, Name: "since", Type: vector.INT64},
		},
	}
}

func TestCreateRelInsertsEachRowAndLinksEndpoints(t *testing.T) {
	reg := storage.NewMemTableRegistry()
	rt := storage.NewMemRelTable(relSchema())
	reg.RegisterRelTable(testRelTableID, rt)

	wal := &countingWAL{}
	ctx := newTestContext(reg, wal)

	src := vector.NodeID{Offset: 0, TableID: testSrcTableID}
	dst1 := vector.NodeID{Offset: 0, TableID: testDstTableID}
	dst2 := vector.NodeID{Offset: 1, TableID: testDstTableID}

	srcChunk := vector.NewChunk([]vector.LogicalType{vector.NODE, vector.NODE, vector.INT64}, 2)
	srcChunk.Vectors[0].SetNodeID(0, src)
	srcChunk.Vectors[0].SetNodeID(1, src)
	srcChunk.Vectors[1].SetNodeID(0, dst1)
	srcChunk.Vectors[1].SetNodeID(1, dst2)
	srcChunk.Vectors[2].SetInt64(0, 2020)
	srcChunk.Vectors[2].SetInt64(1, 2021)

	input := newValuesSource(srcChunk, vector.Pos{ChunkIdx: 0, VectorIdx: 0})
	outPos := vector.Pos{ChunkIdx: 1, VectorIdx: 0}
	op := NewCreateRel(input, testRelTableID,
		vector.Pos{ChunkIdx: 0, VectorIdx: 0}, vector.Pos{ChunkIdx: 0, VectorIdx: 1},
		[]catalog.PropertyID{testSincePropID}, []vector.Pos{{ChunkIdx: 0, VectorIdx: 2}}, outPos)

	rs := &vector.ResultSet{}
	if err := op.InitLocalState(rs, ctx); err != nil {
		t.Fatalf("InitLocalState: %v", err)
	}
	more, err := op.GetNextTuple(ctx)
	if err != nil {
		t.Fatalf("GetNextTuple: %v", err)
	}
	if !more {
		t.Fatal("expected more=true")
	}
	outVec := rs.Vector(outPos)
	if got := outVec.State.Size(); got != 2 {
		t.Fatalf("output size = %d, want 2", got)
	}
	if len(wal.pageUpdates) != 2 {
		t.Fatalf("WAL page updates = %d, want 2", len(wal.pageUpdates))
	}

	readBack := vector.NewChunk([]vector.LogicalType{vector.INT64}, 2)
	if err := rt.Read(ctx.Tx, outVec, []catalog.PropertyID{testSincePropID}, []*vector.Vector{readBack.Vectors[0]}); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := readBack.Vectors[0].GetInt64(0); got != 2020 {
		t.Errorf("row 0 since = %d, want 2020", got)
	}
	if got := readBack.Vectors[0].GetInt64(1); got != 2021 {
		t.Errorf("row 1 since = %d, want 2021", got)
	}
}

func TestSetRelPropertyDispatchesByOwningTable(t *testing.T) {
	reg := storage.NewMemTableRegistry()
	rt1 := storage.NewMemRelTable(relSchema())
	other := relSchema()
	other.ID = testRelTableID + 1
	rt2 := storage.NewMemRelTable(other)
	reg.RegisterRelTable(testRelTableID, rt1)
	reg.RegisterRelTable(testRelTableID+1, rt2)

	wal := &countingWAL{}
	ctx := newTestContext(reg, wal)

	src := vector.NodeID{Offset: 0, TableID: testSrcTableID}
	dst := vector.NodeID{Offset: 0, TableID: testDstTableID}
	id1, err := rt1.Insert(ctx.Tx, src, dst, nil)
	if err != nil {
		t.Fatalf("seed rt1: %v", err)
	}
	id2, err := rt2.Insert(ctx.Tx, src, dst, nil)
	if err != nil {
		t.Fatalf("seed rt2: %v", err)
	}

	idChunk := vector.NewChunk([]vector.LogicalType{vector.REL}, 2)
	idChunk.Vectors[0].SetNodeID(0, id1)
	idChunk.Vectors[0].SetNodeID(1, id2)
	valChunk := vector.NewChunk([]vector.LogicalType{vector.INT64}, 2)
	valChunk.Vectors[0].SetInt64(0, 2020)
	valChunk.Vectors[0].SetInt64(1, 2021)
	combined := &vector.Chunk{State: idChunk.State, Vectors: []*vector.Vector{idChunk.Vectors[0], valChunk.Vectors[0]}}

	src2 := newValuesSource(combined, vector.Pos{ChunkIdx: 0, VectorIdx: 0})
	op := NewSetRelProperty(src2, vector.Pos{ChunkIdx: 0, VectorIdx: 0}, testSincePropID, vector.Pos{ChunkIdx: 0, VectorIdx: 1})

	rs := &vector.ResultSet{}
	if err := op.InitLocalState(rs, ctx); err != nil {
		t.Fatalf("InitLocalState: %v", err)
	}
	if _, err := op.GetNextTuple(ctx); err != nil {
		t.Fatalf("GetNextTuple: %v", err)
	}

	readBack := vector.NewChunk([]vector.LogicalType{vector.INT64}, 1)
	relIDVec := vector.New(vector.REL, vector.NewFlatState(0))
	relIDVec.SetNodeID(0, id1)
	if err := rt1.Read(ctx.Tx, relIDVec, []catalog.PropertyID{testSincePropID}, []*vector.Vector{readBack.Vectors[0]}); err != nil {
		t.Fatalf("Read rt1: %v", err)
	}
	if got := readBack.Vectors[0].GetInt64(0); got != 2020 {
		t.Errorf("rt1 since = %d, want 2020", got)
	}

	readBack2 := vector.NewChunk([]vector.LogicalType{vector.INT64}, 1)
	relIDVec2 := vector.New(vector.REL, vector.NewFlatState(0))
	relIDVec2.SetNodeID(0, id2)
	if err := rt2.Read(ctx.Tx, relIDVec2, []catalog.PropertyID{testSincePropID}, []*vector.Vector{readBack2.Vectors[0]}); err != nil {
		t.Fatalf("Read rt2: %v", err)
	}
	if got := readBack2.Vectors[0].GetInt64(0); got != 2021 {
		t.Errorf("rt2 since = %d, want 2021", got)
	}
}

func TestDeleteRelMarksRowDeleted(t *testing.T) {
	reg := storage.NewMemTableRegistry()
	rt := storage.NewMemRelTable(relSchema())
	reg.RegisterRelTable(testRelTableID, rt)

	wal := &countingWAL{}
	ctx := newTestContext(reg, wal)

	src := vector.NodeID{Offset: 0, TableID: testSrcTableID}
	dst := vector.NodeID{Offset: 0, TableID: testDstTableID}
	id, err := rt.Insert(ctx.Tx, src, dst, nil)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	idChunk := vector.NewChunk([]vector.LogicalType{vector.REL}, 1)
	idChunk.Vectors[0].SetNodeID(0, id)
	input := newValuesSource(idChunk, vector.Pos{ChunkIdx: 0, VectorIdx: 0})
	op := NewDeleteRel(input, vector.Pos{ChunkIdx: 0, VectorIdx: 0})

	rs := &vector.ResultSet{}
	if err := op.InitLocalState(rs, ctx); err != nil {
		t.Fatalf("InitLocalState: %v", err)
	}
	if _, err := op.GetNextTuple(ctx); err != nil {
		t.Fatalf("GetNextTuple: %v", err)
	}

	counts, err := rt.Scan(ctx.Tx, []uint64{src.Offset}, storage.Forward, vector.New(vector.NODE, vector.NewUnfilteredState(vector.V)), vector.New(vector.REL, vector.NewUnfilteredState(vector.V)))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if counts[0] != 0 {
		t.Errorf("expected the deleted rel to be excluded from Scan, got count %d", counts[0])
	}
	if len(wal.pageUpdates) != 1 {
		t.Fatalf("WAL page updates = %d, want 1", len(wal.pageUpdates))
	}
}
