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
	"sync"

	"github.com/kuzudb/graphvec/catalog"
	"github.com/kuzudb/graphvec/txn"
	"github.com/kuzudb/graphvec/vector"
)

type relRecord struct {
	id       vector.RelID
	src, dst vector.NodeID
	props    map[catalog.PropertyID]any
	deleted  bool
}

// MemRelTable is an in-memory RelTable reference implementation,
// adjacency-indexed by source and destination offset for Scan (spec.md
// §6).
type MemRelTable struct {
	mu       sync.RWMutex
	Schema   catalog.RelTableSchema
	rows     []relRecord
	byFrom   map[uint64][]int // from-node offset -> row indices (FWD)
	byTo     map[uint64][]int // to-node offset -> row indices (BWD)
	nextOff  uint64
}

// NewMemRelTable returns an empty table for the given schema.
func NewMemRelTable(schema catalog.RelTableSchema) *MemRelTable {
	return &MemRelTable{
		Schema: schema,
		byFrom: make(map[uint64][]int),
		byTo:   make(map[uint64][]int),
	}
}

// Insert implements RelTable.Insert.
func (t *MemRelTable) Insert(tx *txn.Transaction, srcID, dstID vector.NodeID, props []*vector.Vector) (vector.RelID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := vector.RelID{Offset: t.nextOff, TableID: t.Schema.ID}
	t.nextOff++
	propMap := make(map[catalog.PropertyID]any, len(props))
	for i, p := range t.Schema.Properties {
		if i < len(props) && props[i] != nil && !props[i].IsNull(0) {
			propMap[p.ID] = getTyped(props[i], p.Type, 0)
		}
	}
	idx := len(t.rows)
	t.rows = append(t.rows, relRecord{id: id, src: srcID, dst: dstID, props: propMap})
	t.byFrom[srcID.Offset] = append(t.byFrom[srcID.Offset], idx)
	t.byTo[dstID.Offset] = append(t.byTo[dstID.Offset], idx)
	return id, nil
}

// Delete implements RelTable.Delete.
func (t *MemRelTable) Delete(tx *txn.Transaction, relID vector.RelID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.rows {
		if t.rows[i].id == relID {
			t.rows[i].deleted = true
			return nil
		}
	}
	return nil
}

// Update implements RelTable.Update.
func (t *MemRelTable) Update(tx *txn.Transaction, relID vector.RelID, propID catalog.PropertyID, srcVec *vector.Vector) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.rows {
		if t.rows[i].id == relID {
			if srcVec.IsNull(0) {
				delete(t.rows[i].props, propID)
			} else {
				t.rows[i].props[propID] = getTyped(srcVec, srcVec.Type, 0)
			}
			return nil
		}
	}
	return nil
}

// Scan implements RelTable.Scan: emits neighbor IDs for each source
// offset in direction dir (spec.md §6: "a direction-aware scan(...) that
// emits one vector of neighbor IDs per call").
func (t *MemRelTable) Scan(tx *txn.Transaction, srcOffsets []uint64, dir Direction, nbrOut, relOut *vector.Vector) ([]int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	counts := make([]int, len(srcOffsets))
	row := 0
	emit := func(idx int, otherEnd vector.NodeID) {
		if row >= vector.V {
			return
		}
		r := t.rows[idx]
		if r.deleted {
			return
		}
		nbrOut.SetNodeID(row, otherEnd)
		relOut.SetNodeID(row, r.id)
		row++
	}
	for i, off := range srcOffsets {
		before := row
		if dir == Forward || dir == Both {
			for _, idx := range t.byFrom[off] {
				emit(idx, t.rows[idx].dst)
			}
		}
		if dir == Backward || dir == Both {
			for _, idx := range t.byTo[off] {
				emit(idx, t.rows[idx].src)
			}
		}
		counts[i] = row - before
	}
	return counts, nil
}

// Read implements RelTable.Read, the rel-table analogue of
// NodeTable.Read used by ScanRelProperty (spec.md §4.6).
func (t *MemRelTable) Read(tx *txn.Transaction, relIDVec *vector.Vector, colIDs []catalog.PropertyID, outputVecs []*vector.Vector) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := relIDVec.State().Size()
	for i := 0; i < n; i++ {
		id := relIDVec.GetNodeID(i)
		idx := t.indexOf(id)
		for ci, col := range colIDs {
			out := outputVecs[ci]
			if idx < 0 || col == catalog.InvalidPropertyID || t.rows[idx].deleted {
				out.SetNull(i, true)
				continue
			}
			val, ok := t.rows[idx].props[col]
			if !ok {
				out.SetNull(i, true)
				continue
			}
			setTyped(out, i, val)
		}
	}
	return nil
}

// indexOf finds a rel row by ID. The linear scan mirrors this package's
// reference-implementation scope (spec.md §1 puts the real row-lookup
// index out of scope); callers are the low-cardinality property scans,
// not the adjacency Scan hot path.
func (t *MemRelTable) indexOf(id vector.RelID) int {
	for i := range t.rows {
		if t.rows[i].id == id {
			return i
		}
	}
	return -1
}
