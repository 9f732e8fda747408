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
	"github.com/kuzudb/graphvec/exec"
	"github.com/kuzudb/graphvec/storage"
	"github.com/kuzudb/graphvec/vector"
)

const (
	testTableID  uint32 = 1
	testPKPropID catalog.PropertyID = 0
	testNamePropID catalog.PropertyID = 1
)

func newNodeFixture(t *testing.T, pks []int64, names []string) (*storage.MemTableRegistry, *countingWAL, *CreateNode, *vector.Pos) {
	t.Helper()
	reg := storage.NewMemTableRegistry()
	reg.RegisterNodeTable(testTableID, storage.NewMemNodeTable(nameSchema(testTableID, testPKPropID)))

	in := vector.NewChunk([]vector.LogicalType{vector.INT64, vector.STRING}, len(pks))
	for i, pk := range pks {
		in.Vectors[0].SetInt64(i, pk)
		in.Vectors[1].SetString(i, []byte(names[i]))
	}

	src := newValuesSource(in, vector.Pos{ChunkIdx: 0, VectorIdx: 0})
	outPos := vector.Pos{ChunkIdx: 1, VectorIdx: 0}
	op := NewCreateNode(src, testTableID,
		vector.Pos{ChunkIdx: 0, VectorIdx: 0},
		[]catalog.PropertyID{testNamePropID},
		[]vector.Pos{{ChunkIdx: 0, VectorIdx: 1}},
		outPos)
	wal := &countingWAL{}
	return reg, wal, op, &outPos
}

func TestCreateNodeInsertsEachRow(t *testing.T) {
	reg, wal, op, outPos := newNodeFixture(t, []int64{10, 20, 30}, []string{"a", "b", "c"})
	ctx := newTestContext(reg, wal)
	rs := &vector.ResultSet{}

	if err := op.InitLocalState(rs, ctx); err != nil {
		t.Fatalf("InitLocalState: %v", err)
	}
	more, err := op.GetNextTuple(ctx)
	if err != nil {
		t.Fatalf("GetNextTuple: %v", err)
	}
	if !more {
		t.Fatal("expected more=true on the first call")
	}

	outVec := rs.Vector(*outPos)
	if got := outVec.State.Size(); got != 3 {
		t.Fatalf("output size = %d, want 3", got)
	}
	seen := map[uint64]bool{}
	for i := 0; i < 3; i++ {
		off := outVec.GetNodeID(i).Offset
		if seen[off] {
			t.Fatalf("offset %d assigned twice", off)
		}
		seen[off] = true
	}
	if len(wal.pageUpdates) != 3 {
		t.Fatalf("WAL page updates = %d, want 3 (one per inserted row)", len(wal.pageUpdates))
	}

	more, err = op.GetNextTuple(ctx)
	if err != nil {
		t.Fatalf("second GetNextTuple: %v", err)
	}
	if more {
		t.Fatal("expected more=false once the child source is exhausted")
	}
}

func TestCreateNodeDuplicatePKAborts(t *testing.T) {
	reg, wal, op, _ := newNodeFixture(t, []int64{10, 10}, []string{"a", "b"})
	ctx := newTestContext(reg, wal)
	rs := &vector.ResultSet{}
	if err := op.InitLocalState(rs, ctx); err != nil {
		t.Fatalf("InitLocalState: %v", err)
	}
	_, err := op.GetNextTuple(ctx)
	if err == nil {
		t.Fatal("expected a ConstraintViolation error on duplicate PK")
	}
	var execErr *exec.Error
	if !asExecError(err, &execErr) || execErr.Kind != exec.ConstraintViolation {
		t.Fatalf("error = %v, want *exec.Error{Kind: ConstraintViolation}", err)
	}
}

func TestMergeSkipsDuplicateAndRecordsWarning(t *testing.T) {
	reg := storage.NewMemTableRegistry()
	reg.RegisterNodeTable(testTableID, storage.NewMemNodeTable(nameSchema(testTableID, testPKPropID)))

	in := vector.NewChunk([]vector.LogicalType{vector.INT64, vector.STRING}, 3)
	pks := []int64{10, 10, 30}
	names := []string{"a", "a-dup", "c"}
	for i, pk := range pks {
		in.Vectors[0].SetInt64(i, pk)
		in.Vectors[1].SetString(i, []byte(names[i]))
	}
	src := newValuesSource(in, vector.Pos{ChunkIdx: 0, VectorIdx: 0})
	outPos := vector.Pos{ChunkIdx: 1, VectorIdx: 0}
	op := NewMerge(src, testTableID,
		vector.Pos{ChunkIdx: 0, VectorIdx: 0},
		[]catalog.PropertyID{testNamePropID},
		[]vector.Pos{{ChunkIdx: 0, VectorIdx: 1}},
		outPos)

	wal := &countingWAL{}
	ctx := newTestContext(reg, wal)
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
		t.Fatalf("output size = %d, want 2 (one row skipped)", got)
	}
	warnings := op.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("warnings = %d, want 1", len(warnings))
	}
	if warnings[0].Row != 1 {
		t.Errorf("warning row = %d, want 1", warnings[0].Row)
	}
}

func asExecError(err error, target **exec.Error) bool {
	for err != nil {
		if e, ok := err.(*exec.Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
