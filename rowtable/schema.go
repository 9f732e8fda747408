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

// Package rowtable implements the factorized table and its open-addressed
// hash index, per spec.md §3.5-§3.6: the row store used to materialize
// pipeline outputs and build hash-join/aggregate sides.
package rowtable

import (
	"fmt"
	"math/bits"

	"github.com/kuzudb/graphvec/vector"
)

// InvalidChunkIdx marks a column descriptor whose values are derived
// rather than copied from a source chunk (hash values, chain
// next-pointers), per spec.md §3.5.
const InvalidChunkIdx = ^uint32(0)

// ColumnDesc describes one column of a Table's row layout.
type ColumnDesc struct {
	Name     string
	Type     vector.LogicalType
	IsFlat   bool
	// SourceChunkIdx/SourceVectorIdx identify where this column's values
	// come from in the ResultSet being materialized, or InvalidChunkIdx
	// for derived columns.
	SourceChunkIdx  uint32
	SourceVectorIdx uint32

	offset int // byte offset within a row; computed by Schema.finalize
	width  int // byte width within a row
}

// Schema is the ordered column descriptor list of a Table (spec.md
// §3.5).
type Schema struct {
	Columns []ColumnDesc
	RowSize int // total byte width of a row; identical for every row
}

// overflowValueWidth is sizeof(overflow_value_t{count:uint64, pointer}).
const overflowValueWidth = 16

func columnWidth(t vector.LogicalType, isFlat bool) int {
	if !isFlat {
		return overflowValueWidth
	}
	switch t {
	case vector.BOOL:
		return 1
	case vector.INT32, vector.FLOAT, vector.DATE:
		return 4
	case vector.INT64, vector.DOUBLE, vector.TIMESTAMP, vector.INTERVAL:
		return 8
	case vector.STRING, vector.BLOB:
		// stored as an overflow_value_t{len, index into Table.strings}
		// regardless of flatness, since row bytes cannot hold a
		// variable-length payload inline.
		return overflowValueWidth
	case vector.INTERNAL_ID, vector.NODE, vector.REL:
		return 16
	default:
		return 8
	}
}

// NewSchema lays out columns in order, computing each one's byte offset
// and the table's total row width (spec.md §3.5 invariant: "all rows
// have identical byte width").
func NewSchema(cols []ColumnDesc) *Schema {
	s := &Schema{Columns: append([]ColumnDesc(nil), cols...)}
	off := 0
	for i := range s.Columns {
		w := columnWidth(s.Columns[i].Type, s.Columns[i].IsFlat)
		s.Columns[i].offset = off
		s.Columns[i].width = w
		off += w
	}
	s.RowSize = off
	return s
}

// AppendDerived adds a derived column (hash_col or prev_ptr_col) with
// InvalidChunkIdx sourcing, fixed 8-byte width, and returns its index.
func (s *Schema) AppendDerived(name string, width int) int {
	idx := len(s.Columns)
	s.Columns = append(s.Columns, ColumnDesc{
		Name:            name,
		IsFlat:          true,
		SourceChunkIdx:  InvalidChunkIdx,
		SourceVectorIdx: InvalidChunkIdx,
		offset:          s.RowSize,
		width:           width,
	})
	s.RowSize += width
	return idx
}

func (s *Schema) ColumnByName(name string) (int, error) {
	for i, c := range s.Columns {
		if c.Name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("rowtable: no such column %q", name)
}

// slotCount rounds n*2 up to the next power of two, per spec.md §3.6:
// "k = ceil(log2(2 * num_tuples))".
func slotCount(numTuples int) uint64 {
	if numTuples <= 0 {
		return 1
	}
	need := uint64(numTuples) * 2
	if need <= 1 {
		return 1
	}
	k := bits.Len64(need - 1)
	return 1 << uint(k)
}
