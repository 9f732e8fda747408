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

package storage

import (
	"testing"

	"github.com/google/uuid"

	"github.com/kuzudb/graphvec/catalog"
	"github.com/kuzudb/graphvec/txn"
	"github.com/kuzudb/graphvec/vector"
)

func relSchema() catalog.RelTableSchema {
	return catalog.RelTableSchema{
		ID:   9,
		Name: "Knows",
		Properties: []catalog.PropertySchema{
			{ID: 0, Name: "since", Type: vector.INT64},
		},
		FromTable: 1,
		ToTable:   1,
	}
}

func TestInsertAndScanForward(t *testing.T) {
	rt := NewMemRelTable(relSchema())
	tx := txn.Begin(txn.Write, uuid.New())
	n0 := vector.NodeID{Offset: 0, TableID: 1}
	n1 := vector.NodeID{Offset: 1, TableID: 1}
	n2 := vector.NodeID{Offset: 2, TableID: 1}

	if _, err := rt.Insert(tx, n0, n1, nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := rt.Insert(tx, n0, n2, nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	nbrOut := vector.NewChunk([]vector.LogicalType{vector.NODE}, vector.V).Vectors[0]
	relOut := vector.NewChunk([]vector.LogicalType{vector.REL}, vector.V).Vectors[0]
	counts, err := rt.Scan(tx, []uint64{0}, Forward, nbrOut, relOut)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(counts) != 1 || counts[0] != 2 {
		t.Fatalf("counts = %v, want [2]", counts)
	}
	got := map[uint64]bool{nbrOut.GetNodeID(0).Offset: true, nbrOut.GetNodeID(1).Offset: true}
	if !got[1] || !got[2] {
		t.Fatalf("forward scan neighbors = %v, want {1, 2}", got)
	}
}

func TestScanBackwardFollowsReverseEdge(t *testing.T) {
	rt := NewMemRelTable(relSchema())
	tx := txn.Begin(txn.Write, uuid.New())
	n0 := vector.NodeID{Offset: 0, TableID: 1}
	n1 := vector.NodeID{Offset: 1, TableID: 1}
	rt.Insert(tx, n0, n1, nil)

	nbrOut := vector.NewChunk([]vector.LogicalType{vector.NODE}, vector.V).Vectors[0]
	relOut := vector.NewChunk([]vector.LogicalType{vector.REL}, vector.V).Vectors[0]
	counts, err := rt.Scan(tx, []uint64{1}, Backward, nbrOut, relOut)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if counts[0] != 1 || nbrOut.GetNodeID(0).Offset != 0 {
		t.Fatalf("backward scan from 1 should find source 0, got counts=%v nbr=%v", counts, nbrOut.GetNodeID(0))
	}
}

func TestScanBothCombinesForwardAndBackward(t *testing.T) {
	rt := NewMemRelTable(relSchema())
	tx := txn.Begin(txn.Write, uuid.New())
	n0 := vector.NodeID{Offset: 0, TableID: 1}
	n1 := vector.NodeID{Offset: 1, TableID: 1}
	n2 := vector.NodeID{Offset: 2, TableID: 1}
	rt.Insert(tx, n1, n0, nil) // 1 -> 0
	rt.Insert(tx, n0, n2, nil) // 0 -> 2

	nbrOut := vector.NewChunk([]vector.LogicalType{vector.NODE}, vector.V).Vectors[0]
	relOut := vector.NewChunk([]vector.LogicalType{vector.REL}, vector.V).Vectors[0]
	counts, err := rt.Scan(tx, []uint64{0}, Both, nbrOut, relOut)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if counts[0] != 2 {
		t.Fatalf("Both-direction scan from 0 should see 2 edges, got %d", counts[0])
	}
}

func TestDeleteExcludesRowFromScan(t *testing.T) {
	rt := NewMemRelTable(relSchema())
	tx := txn.Begin(txn.Write, uuid.New())
	n0 := vector.NodeID{Offset: 0, TableID: 1}
	n1 := vector.NodeID{Offset: 1, TableID: 1}
	relID, _ := rt.Insert(tx, n0, n1, nil)
	if err := rt.Delete(tx, relID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	nbrOut := vector.NewChunk([]vector.LogicalType{vector.NODE}, vector.V).Vectors[0]
	relOut := vector.NewChunk([]vector.LogicalType{vector.REL}, vector.V).Vectors[0]
	counts, err := rt.Scan(tx, []uint64{0}, Forward, nbrOut, relOut)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if counts[0] != 0 {
		t.Fatalf("deleted edge should not be emitted, got count %d", counts[0])
	}
}

func TestUpdateAndReadProperty(t *testing.T) {
	rt := NewMemRelTable(relSchema())
	tx := txn.Begin(txn.Write, uuid.New())
	n0 := vector.NodeID{Offset: 0, TableID: 1}
	n1 := vector.NodeID{Offset: 1, TableID: 1}
	relID, _ := rt.Insert(tx, n0, n1, nil)

	sinceVec := vector.NewChunk([]vector.LogicalType{vector.INT64}, 1).Vectors[0]
	sinceVec.SetInt64(0, 2020)
	if err := rt.Update(tx, relID, 0, sinceVec); err != nil {
		t.Fatalf("Update: %v", err)
	}

	relIDVec := vector.NewChunk([]vector.LogicalType{vector.REL}, 1).Vectors[0]
	relIDVec.SetNodeID(0, relID)
	out := vector.NewChunk([]vector.LogicalType{vector.INT64}, 1)
	if err := rt.Read(tx, relIDVec, []catalog.PropertyID{0}, out.Vectors); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := out.Vectors[0].GetInt64(0); got != 2020 {
		t.Fatalf("Read since = %d, want 2020", got)
	}
}

func TestReadUnknownRelIDReturnsNull(t *testing.T) {
	rt := NewMemRelTable(relSchema())
	tx := txn.Begin(txn.Write, uuid.New())

	relIDVec := vector.NewChunk([]vector.LogicalType{vector.REL}, 1).Vectors[0]
	relIDVec.SetNodeID(0, vector.RelID{Offset: 999, TableID: 9})
	out := vector.NewChunk([]vector.LogicalType{vector.INT64}, 1)
	if err := rt.Read(tx, relIDVec, []catalog.PropertyID{0}, out.Vectors); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !out.Vectors[0].IsNull(0) {
		t.Fatal("Read of an unknown relID should be null")
	}
}
