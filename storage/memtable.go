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
	"fmt"
	"sync"

	"github.com/kuzudb/graphvec/catalog"
	"github.com/kuzudb/graphvec/txn"
	"github.com/kuzudb/graphvec/vector"
)

// ErrDuplicatePK is returned by AddNodeAndResetPropertiesWithPK when the
// primary key already exists (spec.md §6: "returns DUPLICATE_PK as an
// error kind if it already exists").
var ErrDuplicatePK = fmt.Errorf("storage: duplicate primary key")

// MemNodeTable is an in-memory NodeTable reference implementation: the
// execution core's domain collaborator, not a durable storage engine.
// It exists so the operator core can be exercised end to end without the
// on-disk column/list layout spec.md §1 puts out of scope.
type MemNodeTable struct {
	mu         sync.RWMutex
	Schema     catalog.NodeTableSchema
	columns    map[catalog.PropertyID]map[uint64]any
	pkIndex    map[string]uint64
	nextOffset uint64
	ownerOf    map[uint64]txn.ID // 0 means committed/globally visible
	deletedBy  map[uint64]txn.ID // pending deletes; 0 after commit means hard-deleted
	committedDeleted map[uint64]bool
	pkKeyOf    map[uint64]string // offset -> pkIndex key, so rollback can free it
}

// NewMemNodeTable returns an empty table for the given schema.
func NewMemNodeTable(schema catalog.NodeTableSchema) *MemNodeTable {
	cols := make(map[catalog.PropertyID]map[uint64]any, len(schema.Properties))
	for _, p := range schema.Properties {
		cols[p.ID] = make(map[uint64]any)
	}
	return &MemNodeTable{
		Schema:           schema,
		columns:          cols,
		pkIndex:          make(map[string]uint64),
		ownerOf:          make(map[uint64]txn.ID),
		deletedBy:        make(map[uint64]txn.ID),
		committedDeleted: make(map[uint64]bool),
		pkKeyOf:          make(map[uint64]string),
	}
}

func pkKey(v *vector.Vector, row int) string {
	switch v.Type {
	case vector.STRING, vector.BLOB:
		return string(v.GetString(row))
	case vector.INT64:
		return fmt.Sprintf("i%d", v.GetInt64(row))
	case vector.INT32:
		return fmt.Sprintf("i%d", v.GetInt32(row))
	default:
		return fmt.Sprintf("v%v", v.GetInt64(row))
	}
}

func (t *MemNodeTable) visible(tx *txn.Transaction, offset uint64) bool {
	if t.committedDeleted[offset] {
		return false
	}
	if owner, deleted := t.deletedBy[offset]; deleted && owner == tx.ID {
		return false
	}
	if owner, ok := t.ownerOf[offset]; ok && owner != 0 && owner != tx.ID {
		return false // another transaction's uncommitted insert
	}
	return true
}

// Read implements NodeTable.Read.
func (t *MemNodeTable) Read(tx *txn.Transaction, inputIDVec *vector.Vector, colIDs []catalog.PropertyID, outputVecs []*vector.Vector) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := inputIDVec.State().Size()
	for i := 0; i < n; i++ {
		id := inputIDVec.GetNodeID(i)
		for ci, col := range colIDs {
			out := outputVecs[ci]
			if col == catalog.InvalidPropertyID || !t.visible(tx, id.Offset) {
				out.SetNull(i, true)
				continue
			}
			val, ok := t.columns[col][id.Offset]
			if !ok {
				out.SetNull(i, true)
				continue
			}
			setTyped(out, i, val)
		}
	}
	return nil
}

func setTyped(v *vector.Vector, i int, val any) {
	switch x := val.(type) {
	case bool:
		v.SetBool(i, x)
	case int32:
		v.SetInt32(i, x)
	case int64:
		v.SetInt64(i, x)
	case float64:
		v.SetDouble(i, x)
	case []byte:
		v.SetString(i, x)
	case vector.NodeID:
		v.SetNodeID(i, x)
	default:
		v.SetNull(i, true)
	}
}

func getTyped(v *vector.Vector, t vector.LogicalType, i int) any {
	switch t {
	case vector.BOOL:
		return v.GetBool(i)
	case vector.INT32:
		return v.GetInt32(i)
	case vector.INT64:
		return v.GetInt64(i)
	case vector.DOUBLE:
		return v.GetDouble(i)
	case vector.STRING, vector.BLOB:
		return append([]byte(nil), v.GetString(i)...)
	case vector.INTERNAL_ID, vector.NODE, vector.REL:
		return v.GetNodeID(i)
	default:
		return nil
	}
}

// Write implements NodeTable.Write: appends an update to tx's local
// chunk (spec.md §6). Our in-memory model writes directly into the
// column map but tags the write's owner via ownerOf only for brand-new
// offsets; updates to already-committed rows are modeled as immediately
// visible to the writer's own transaction and, on commit, to everyone
// -- WAL page-update logging (APPLY step, spec.md §4.9) happens at the
// writing-operator layer, not here.
func (t *MemNodeTable) Write(tx *txn.Transaction, nodeIDVec *vector.Vector, propID catalog.PropertyID, srcVec *vector.Vector) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	col, ok := t.columns[propID]
	if !ok {
		return fmt.Errorf("storage: unknown property %d", propID)
	}
	n := nodeIDVec.State().Size()
	for i := 0; i < n; i++ {
		id := nodeIDVec.GetNodeID(i)
		if srcVec.IsNull(i) {
			delete(col, id.Offset)
			continue
		}
		col[id.Offset] = getTyped(srcVec, srcVec.Type, i)
	}
	return nil
}

// AddNodeAndResetPropertiesWithPK implements NodeTable's insert contract.
func (t *MemNodeTable) AddNodeAndResetPropertiesWithPK(tx *txn.Transaction, pkVec *vector.Vector) (vector.NodeID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := pkKey(pkVec, 0)
	if _, exists := t.pkIndex[key]; exists {
		return vector.NodeID{}, ErrDuplicatePK
	}
	offset := t.nextOffset
	t.nextOffset++
	t.pkIndex[key] = offset
	t.pkKeyOf[offset] = key
	t.ownerOf[offset] = tx.ID
	if t.Schema.PrimaryKey != catalog.InvalidPropertyID {
		t.columns[t.Schema.PrimaryKey][offset] = getTyped(pkVec, pkVec.Type, 0)
	}
	return vector.NodeID{Offset: offset, TableID: t.Schema.ID}, nil
}

// Delete implements NodeTable.Delete.
func (t *MemNodeTable) Delete(tx *txn.Transaction, nodeID vector.NodeID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deletedBy[nodeID.Offset] = tx.ID
	return nil
}

// MaxOffset implements NodeTable.MaxOffset.
func (t *MemNodeTable) MaxOffset(tx *txn.Transaction) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.nextOffset == 0 {
		return 0
	}
	return t.nextOffset - 1
}

// IsDeleted implements NodeTable.IsDeleted.
func (t *MemNodeTable) IsDeleted(tx *txn.Transaction, offset uint64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return !t.visible(tx, offset)
}

// Commit promotes every change tx made to this table to globally visible
// state. Called by the transaction manager (out of scope per spec.md §1)
// on COMMIT; our reference storage exposes it directly since there is no
// separate transaction manager package in this module.
func (t *MemNodeTable) Commit(tx *txn.Transaction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for off, owner := range t.ownerOf {
		if owner == tx.ID {
			delete(t.ownerOf, off)
		}
	}
	for off, owner := range t.deletedBy {
		if owner == tx.ID {
			t.committedDeleted[off] = true
			delete(t.deletedBy, off)
		}
	}
}

// Rollback discards every change tx made to this table, the atomicity
// guarantee spec.md §8 tests: "on rollback, subsequent read-only scans
// observe zero effects of the aborted writes".
func (t *MemNodeTable) Rollback(tx *txn.Transaction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for off, owner := range t.ownerOf {
		if owner == tx.ID {
			delete(t.ownerOf, off)
			for _, col := range t.columns {
				delete(col, off)
			}
			if key, ok := t.pkKeyOf[off]; ok {
				delete(t.pkIndex, key)
				delete(t.pkKeyOf, off)
			}
		}
	}
	for off, owner := range t.deletedBy {
		if owner == tx.ID {
			delete(t.deletedBy, off)
		}
	}
}
