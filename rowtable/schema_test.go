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

import (
	"testing"

	"github.com/kuzudb/graphvec/vector"
)

func TestNewSchemaLaysOutColumnsSequentially(t *testing.T) {
	s := NewSchema([]ColumnDesc{
		{Name: "a", Type: vector.INT64, IsFlat: true},
		{Name: "b", Type: vector.BOOL, IsFlat: true},
		{Name: "c", Type: vector.STRING, IsFlat: true},
	})
	if s.Columns[0].offset != 0 || s.Columns[0].width != 8 {
		t.Errorf("col a: offset=%d width=%d, want 0,8", s.Columns[0].offset, s.Columns[0].width)
	}
	if s.Columns[1].offset != 8 || s.Columns[1].width != 1 {
		t.Errorf("col b: offset=%d width=%d, want 8,1", s.Columns[1].offset, s.Columns[1].width)
	}
	if s.Columns[2].offset != 9 || s.Columns[2].width != overflowValueWidth {
		t.Errorf("col c: offset=%d width=%d, want 9,%d", s.Columns[2].offset, s.Columns[2].width, overflowValueWidth)
	}
	if s.RowSize != 9+overflowValueWidth {
		t.Errorf("RowSize = %d, want %d", s.RowSize, 9+overflowValueWidth)
	}
}

func TestAppendDerivedGrowsRowSize(t *testing.T) {
	s := NewSchema([]ColumnDesc{{Name: "a", Type: vector.INT64, IsFlat: true}})
	before := s.RowSize
	idx := s.AppendDerived("hash_col", 8)
	if idx != 1 {
		t.Errorf("AppendDerived index = %d, want 1", idx)
	}
	if s.RowSize != before+8 {
		t.Errorf("RowSize = %d, want %d", s.RowSize, before+8)
	}
	if s.Columns[1].SourceChunkIdx != InvalidChunkIdx {
		t.Error("derived column should carry InvalidChunkIdx")
	}
}

func TestColumnByName(t *testing.T) {
	s := NewSchema([]ColumnDesc{
		{Name: "id", Type: vector.INT64, IsFlat: true},
		{Name: "name", Type: vector.STRING, IsFlat: true},
	})
	idx, err := s.ColumnByName("name")
	if err != nil {
		t.Fatalf("ColumnByName: %v", err)
	}
	if idx != 1 {
		t.Errorf("idx = %d, want 1", idx)
	}
	if _, err := s.ColumnByName("missing"); err == nil {
		t.Error("expected an error for a missing column name")
	}
}

func TestSlotCountRoundsUpToPowerOfTwo(t *testing.T) {
	cases := []struct {
		numTuples int
		want      uint64
	}{
		{0, 1},
		{1, 2},
		{2, 4},
		{3, 8},
		{5, 16},
	}
	for _, c := range cases {
		if got := slotCount(c.numTuples); got != c.want {
			t.Errorf("slotCount(%d) = %d, want %d", c.numTuples, got, c.want)
		}
	}
}
