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

// Package scan holds the source operators (ScanNodeID, ScanNodeProperty,
// ScanRelProperty) and the semi-mask machinery hash-join build sides use
// to prune scans via Sideways Information Passing (spec.md §4.6).
package scan

import "github.com/kuzudb/graphvec/internal/bitset"

// SemiMask is a per-offset byte counter over one node table's offset
// domain. Every hash-join build side that can prune this scan is
// assigned a distinct masker index at plan time; Mark increments an
// offset's byte only when it currently equals that masker's index
// (AND-by-counting, spec.md §4.6), so a row only reads as "selected"
// once every registered masker has voted for it.
type SemiMask struct {
	bytes      *bitset.Bytes
	numMaskers byte
}

// NewSemiMask allocates a mask covering offsets [0, maxOffset], requiring
// numMaskers votes before an offset is considered selected.
func NewSemiMask(maxOffset uint64, numMaskers int) *SemiMask {
	return &SemiMask{
		bytes:      bitset.NewBytes(uint32(maxOffset)),
		numMaskers: byte(numMaskers),
	}
}

// Mark registers offset's key as present for maskerIdx (spec.md §4.6:
// "the build side populates a semi-mask over the probe side's scan key
// domain"). maskerIdx must be in [0, numMaskers).
func (m *SemiMask) Mark(offset uint64, maskerIdx int) {
	m.bytes.IncrIfEqual(uint32(offset), byte(maskerIdx))
}

// Selected reports whether offset has been marked by every registered
// masker.
func (m *SemiMask) Selected(offset uint64) bool {
	if offset >= uint64(m.bytes.Len()) {
		return false
	}
	return m.bytes.Get(uint32(offset)) == m.numMaskers
}

// AnySelected implements exec.MorselMask: it reports whether any offset
// in [start, end) currently reads as fully selected, letting
// SharedScanState skip morsels a semi-mask guarantees are empty.
func (m *SemiMask) AnySelected(start, end uint64) bool {
	if m.numMaskers == 0 {
		return true
	}
	n := uint64(m.bytes.Len())
	if start >= n {
		return false
	}
	if end > n {
		end = n
	}
	data := m.bytes.Data()
	for i := start; i < end; i++ {
		if data[i] == m.numMaskers {
			return true
		}
	}
	return false
}
