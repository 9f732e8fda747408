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

package vector

// State is the selection state shared by every vector in a data chunk
// (spec.md §3.2): a logical size and, when filtered, an explicit index
// array naming which of the up-to-V physical slots are active.
//
// All vectors sharing a *State must have identical logical size and
// apply identical filtering; State itself does not enforce this, callers
// (Chunk and its producers) do.
type State struct {
	size     int
	indexes  [V]uint32
	filtered bool
}

// NewFlatState returns a State with logical size 1 selecting physical
// slot idx: the degenerate "one active index" case spec.md §3.2 calls
// flat.
func NewFlatState(idx uint32) *State {
	s := &State{size: 1, filtered: true}
	s.indexes[0] = idx
	return s
}

// NewUnfilteredState returns a State of the given logical size with
// implicit identity indexing (indexes 0..size-1), i.e. "not filtered".
func NewUnfilteredState(size int) *State {
	if size > V {
		panic("vector: state size exceeds V")
	}
	return &State{size: size, filtered: false}
}

// Size returns the logical size: the number of active rows.
func (s *State) Size() int { return s.size }

// IsFlat reports whether this state selects exactly one row (spec.md
// §3.2: "A state is flat when size = 1").
func (s *State) IsFlat() bool { return s.size == 1 }

// Filtered reports whether indexes must be consulted, as opposed to the
// implicit 0..size-1 identity mapping.
func (s *State) Filtered() bool { return s.filtered }

// Index returns the physical slot for logical position i.
func (s *State) Index(i int) uint32 {
	if !s.filtered {
		return uint32(i)
	}
	return s.indexes[i]
}

// SetFiltered replaces the index array with idx (len(idx) <= V) and marks
// the state filtered, setting the logical size to len(idx).
func (s *State) SetFiltered(idx []uint32) {
	if len(idx) > V {
		panic("vector: selection exceeds V")
	}
	copy(s.indexes[:], idx)
	s.size = len(idx)
	s.filtered = true
}

// SetUnfiltered resets the state to unfiltered identity selection of the
// given size.
func (s *State) SetUnfiltered(size int) {
	if size > V {
		panic("vector: state size exceeds V")
	}
	s.size = size
	s.filtered = false
}

// Selected appends every active physical index to dst in logical order
// and returns the result; useful when a consumer needs the materialized
// index list regardless of whether the state is filtered.
func (s *State) Selected(dst []uint32) []uint32 {
	for i := 0; i < s.size; i++ {
		dst = append(dst, s.Index(i))
	}
	return dst
}

// Flatten returns a new flat State selecting the logical-position-th
// active row, the mechanism an operator that can only process one row at
// a time (spec.md §4.1 "Flattening") uses to iterate an unflat state one
// position at a time.
func (s *State) Flatten(logicalPos int) *State {
	return NewFlatState(s.Index(logicalPos))
}
