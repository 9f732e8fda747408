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

package plan

import (
	"testing"

	"github.com/google/uuid"

	"github.com/kuzudb/graphvec/catalog"
	"github.com/kuzudb/graphvec/exec"
	"github.com/kuzudb/graphvec/exec/scan"
	"github.com/kuzudb/graphvec/storage"
	"github.com/kuzudb/graphvec/txn"
	"github.com/kuzudb/graphvec/vector"
)

func newTestMapper(t *testing.T) (*Mapper, *exec.Context) {
	t.Helper()
	schema := catalog.NodeTableSchema{ID: 1, Name: "Person"}
	nt := storage.NewMemNodeTable(schema)
	reg := storage.NewMemTableRegistry()
	reg.RegisterNodeTable(1, nt)

	tx := txn.Begin(txn.Write, uuid.New())
	ctx := exec.NewContext(tx, nil, reg, nil, nil, nil, 1)
	return NewMapper(ctx), ctx
}

func TestMapScanNodeIDProducesScanOperator(t *testing.T) {
	m, ctx := newTestMapper(t)
	logical := &ScanNodeID{TableID: 1, OutPos: vector.Pos{ChunkIdx: 0, VectorIdx: 0}}

	op, err := m.Map(logical)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	s, ok := op.(*scan.ScanNodeID)
	if !ok {
		t.Fatalf("mapped to %T, want *scan.ScanNodeID", op)
	}
	if s.TableID != 1 {
		t.Errorf("TableID = %d, want 1", s.TableID)
	}
	_ = ctx
}

func TestMapQueryWrapsBareRootInResultCollector(t *testing.T) {
	m, _ := newTestMapper(t)
	logical := &ScanNodeID{TableID: 1, OutPos: vector.Pos{ChunkIdx: 0, VectorIdx: 0}}

	colPos := []vector.Pos{{ChunkIdx: 0, VectorIdx: 0}}
	colTypes := []vector.LogicalType{vector.INTERNAL_ID}
	outPos := []vector.Pos{{ChunkIdx: 1, VectorIdx: 0}}

	op, err := m.MapQuery(logical, colPos, colTypes, outPos)
	if err != nil {
		t.Fatalf("MapQuery: %v", err)
	}
	if _, ok := op.(*exec.ResultCollector); !ok {
		t.Fatalf("MapQuery root = %T, want *exec.ResultCollector", op)
	}
}

func TestMapQueryLeavesExplicitOrderByUnwrapped(t *testing.T) {
	m, _ := newTestMapper(t)
	scanOp := &ScanNodeID{TableID: 1, OutPos: vector.Pos{ChunkIdx: 0, VectorIdx: 0}}
	ob := &OrderBy{
		ColPos:   []vector.Pos{{ChunkIdx: 0, VectorIdx: 0}},
		ColTypes: []vector.LogicalType{vector.INTERNAL_ID},
		OutPos:   []vector.Pos{{ChunkIdx: 1, VectorIdx: 0}},
		Keys:     []exec.SortKey{{Col: 0}},
	}
	ob.SetInput(scanOp)

	op, err := m.MapQuery(ob, nil, nil, nil)
	if err != nil {
		t.Fatalf("MapQuery: %v", err)
	}
	if _, ok := op.(*exec.OrderBy); !ok {
		t.Fatalf("MapQuery root = %T, want *exec.OrderBy (not double-wrapped)", op)
	}
}

func TestMapRequiresFlatInputInsertsFlatten(t *testing.T) {
	m, _ := newTestMapper(t)
	scanOp := &ScanNodeID{TableID: 1, OutPos: vector.Pos{ChunkIdx: 0, VectorIdx: 0}}
	q := &QueryHNSWIndex{K: 1, OutPos: vector.Pos{ChunkIdx: 2, VectorIdx: 0}, NodeTableID: 1}
	q.SetInput(scanOp)

	if !q.RequiresFlatInput() {
		t.Fatal("QueryHNSWIndex must require flat input")
	}

	op, err := m.Map(q)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	qi, ok := op.(interface{ Children() []exec.Operator })
	if !ok {
		t.Fatalf("mapped op %T has no Children()", op)
	}
	children := qi.Children()
	if len(children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(children))
	}
	if _, ok := children[0].(*exec.Flatten); !ok {
		t.Fatalf("child = %T, want *exec.Flatten inserted ahead of the table function", children[0])
	}
}
