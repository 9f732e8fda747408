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

package rowtable

import "sync/atomic"

// noTuple is the null-pointer sentinel for a hash table slot or chain
// link: no row index is ever 0 and negative simultaneously valid, so we
// reserve -1 (encoded as ^uint64(0)) to mean "empty".
const noTuple = ^uint64(0)

// HashTable is the open-addressed-by-pointer-slot, chained-by-prev-
// pointer hash index of spec.md §3.6, built over the rows of a Table.
// The chain link for each row lives inside the row itself (the
// prev_ptr_col derived column), not in a separate structure.
type HashTable struct {
	table      *Table
	hashCol    int
	prevCol    int
	slots      []uint64 // slot -> row index+1, or 0 for empty
	slotMask   uint64
}

// NewHashTable allocates (but does not yet populate) the slot array for
// table, which must already have hashCol/prevCol derived columns in its
// schema. numTuples drives the slot count per spec.md §3.6:
// `k = ceil(log2(2 * num_tuples))`.
func NewHashTable(table *Table, hashCol, prevCol int, numTuples int) *HashTable {
	n := slotCount(numTuples)
	return &HashTable{
		table:    table,
		hashCol:  hashCol,
		prevCol:  prevCol,
		slots:    make([]uint64, n),
		slotMask: n - 1,
	}
}

func (h *HashTable) slotFor(hash uint64) uint64 {
	// "the slot for a tuple with hash h is (h >> low_bits) & slot_mask"
	// (spec.md §3.6); low_bits discards the bits already consumed by
	// Murmur's own avalanche so nearby hash values don't collide on
	// adjacent slots after masking.
	const lowBits = 8
	return (hash >> lowBits) & h.slotMask
}

// Insert CAS-inserts row idx (whose hash has already been written into
// hashCol by the caller) into the slot array, chaining through the
// existing head via prevCol. Concurrent Insert calls on different rows
// are safe; the teacher's concurrency note (spec.md §4.5: "slot
// insertion is serialized per slot via lock-free CAS on the slot
// pointer") is implemented with a CAS retry loop per slot.
func (h *HashTable) Insert(idx int) {
	hash := h.table.ColumnUint64(idx, h.hashCol)
	slot := h.slotFor(hash)
	encoded := uint64(idx) + 1
	for {
		head := atomic.LoadUint64(&h.slots[slot])
		h.table.SetColumnUint64(idx, h.prevCol, decodeChainLink(head))
		if atomic.CompareAndSwapUint64(&h.slots[slot], head, encoded) {
			return
		}
	}
}

func decodeChainLink(slotVal uint64) uint64 {
	if slotVal == 0 {
		return noTuple
	}
	return slotVal - 1
}

// Head returns the first row index chained off the slot that hash maps
// to, or (0, false) if the slot is empty.
func (h *HashTable) Head(hash uint64) (int, bool) {
	slot := h.slotFor(hash)
	v := atomic.LoadUint64(&h.slots[slot])
	if v == 0 {
		return 0, false
	}
	return int(v - 1), true
}

// Next returns the row index chained after idx, or (0, false) at the end
// of the chain.
func (h *HashTable) Next(idx int) (int, bool) {
	link := h.table.ColumnUint64(idx, h.prevCol)
	if link == noTuple {
		return 0, false
	}
	return int(link), true
}
