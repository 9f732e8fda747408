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

// Package storage declares the collaborator contracts the execution core
// depends on (spec.md §6): NodeTable/RelTable scan/lookup/update/delete,
// the buffer manager, and the memory manager, plus a direction type for
// relationship scans. It is explicitly out of scope to re-specify the
// on-disk column/list layout; these interfaces are the only obligations
// storage owes the execution core.
package storage

import (
	"github.com/kuzudb/graphvec/catalog"
	"github.com/kuzudb/graphvec/txn"
	"github.com/kuzudb/graphvec/vector"
)

// Direction selects which endpoint of a relationship Extend walks from
// (spec.md §4.8 step 2: "applying direction (FWD, BWD, or BOTH)").
type Direction int

const (
	Forward Direction = iota
	Backward
	Both
)

// NodeTable is the storage collaborator contract for one node table
// (spec.md §6).
type NodeTable interface {
	// Read reads properties for the active positions of inputIDVec,
	// guaranteeing null-on-missing for catalog.InvalidPropertyID.
	Read(tx *txn.Transaction, inputIDVec *vector.Vector, colIDs []catalog.PropertyID, outputVecs []*vector.Vector) error

	// Write appends an update to tx's local chunk for propID over the
	// rows named by nodeIDVec.
	Write(tx *txn.Transaction, nodeIDVec *vector.Vector, propID catalog.PropertyID, srcVec *vector.Vector) error

	// AddNodeAndResetPropertiesWithPK allocates a fresh offset, indexes
	// the primary key found in pkVec (which must be flat: one row), and
	// returns DUPLICATE_PK (as an *exec.Error-compatible error; storage
	// does not import exec, so this returns ErrDuplicatePK) if the key
	// already exists.
	AddNodeAndResetPropertiesWithPK(tx *txn.Transaction, pkVec *vector.Vector) (vector.NodeID, error)

	// Delete marks nodeID's row deleted within tx's local chunk.
	Delete(tx *txn.Transaction, nodeID vector.NodeID) error

	// MaxOffset is the highest allocated offset in this table as of the
	// call (committed + tx's own local inserts), used to size BFS
	// visited-state arrays (spec.md §3.7).
	MaxOffset(tx *txn.Transaction) uint64

	// IsDeleted reports whether offset has been deleted, as of tx's
	// snapshot plus tx's own local deletes (spec.md §4.6 step 5).
	IsDeleted(tx *txn.Transaction, offset uint64) bool
}

// RelTable is the storage collaborator contract for one rel table.
type RelTable interface {
	// Scan emits, for each srcOffsets[i] (one call per chunk of up to
	// vector.V sources), the neighbor IDs reachable via dir, into
	// nbrOut/relOut (nbrOut holds the neighbor nodeID, relOut the edge's
	// own relID for path reconstruction). Returns the per-source neighbor
	// counts so callers can recover which output rows belong to which
	// source.
	Scan(tx *txn.Transaction, srcOffsets []uint64, dir Direction, nbrOut, relOut *vector.Vector) (counts []int, err error)

	Insert(tx *txn.Transaction, srcID, dstID vector.NodeID, props []*vector.Vector) (vector.RelID, error)
	Delete(tx *txn.Transaction, relID vector.RelID) error
	Update(tx *txn.Transaction, relID vector.RelID, propID catalog.PropertyID, srcVec *vector.Vector) error

	// Read resolves properties for the active rows of relIDVec, the
	// RelTable analogue of NodeTable.Read, used by ScanRelProperty.
	Read(tx *txn.Transaction, relIDVec *vector.Vector, colIDs []catalog.PropertyID, outputVecs []*vector.Vector) error
}

// ReadPolicy selects buffer-manager pin behavior.
type ReadPolicy int

const (
	ReadIfPresent ReadPolicy = iota
	ReadAlways
	DoNotRead
)

// Frame is a pinned page handle.
type Frame struct {
	Data []byte
}

// BufferManager is the collaborator contract of spec.md §6: pages are
// pinned briefly per vector batch, and scans may not retain frames
// across chunk boundaries.
type BufferManager interface {
	Pin(fileID uint32, pageIdx uint64, policy ReadPolicy) (*Frame, error)
	Unpin(fileID uint32, pageIdx uint64)
	SetPinnedPageDirty(fileID uint32, pageIdx uint64)
}

// WAL is the collaborator contract of spec.md §6: the execution core
// only logs records, it never replays them.
type WAL interface {
	LogPageUpdateRecord(fileID uint32, pageIdx uint64)
	LogCommit(id txn.ID)
	LogCreateNodeTableRecord(schema catalog.NodeTableSchema)
	LogDropTableRecord(tableID uint32)
	LogAddPropertyRecord(tableID uint32, prop catalog.PropertySchema)
}

// TableProvider resolves catalog table IDs to the storage collaborator
// that actually holds their rows. The catalog (spec.md §6) only owns
// schema lookups; this is the execution core's other storage dependency,
// handing back the live NodeTable/RelTable a scan or Extend reads from.
type TableProvider interface {
	NodeTable(tableID uint32) (NodeTable, error)
	RelTable(tableID uint32) (RelTable, error)
}

// MemoryManager is the allocateBuffer/free contract of spec.md §6.
type MemoryManager interface {
	AllocateBuffer(initZero bool) (MemoryBuffer, error)
}

// MemoryBuffer is a buffer that frees itself back to the memory manager
// on Release.
type MemoryBuffer interface {
	Bytes() []byte
	Release()
}
