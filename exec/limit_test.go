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

package exec

import (
	"testing"

	"github.com/kuzudb/graphvec/vector"
)

func TestLimitTruncatesMidChunk(t *testing.T) {
	chunk := vector.NewChunk([]vector.LogicalType{vector.INT64}, 5)
	for i := 0; i < 5; i++ {
		chunk.Vectors[0].SetInt64(i, int64(i))
	}
	src := newChunkSource(0, chunk)
	l := NewLimit(src, 0, 3)

	ctx := newTestContext()
	rs := &vector.ResultSet{}
	if err := l.InitLocalState(rs, ctx); err != nil {
		t.Fatalf("InitLocalState: %v", err)
	}
	more, err := l.GetNextTuple(ctx)
	if err != nil {
		t.Fatalf("GetNextTuple: %v", err)
	}
	if !more {
		t.Fatal("expected more=true")
	}
	if got := rs.Chunks[0].Size(); got != 3 {
		t.Fatalf("chunk size = %d, want 3", got)
	}
}

func TestLimitStopsAcrossChunks(t *testing.T) {
	c1 := vector.NewChunk([]vector.LogicalType{vector.INT64}, 2)
	c2 := vector.NewChunk([]vector.LogicalType{vector.INT64}, 2)
	src := newChunkSource(0, c1, c2)
	l := NewLimit(src, 0, 3)

	ctx := newTestContext()
	rs := &vector.ResultSet{}
	if err := l.InitLocalState(rs, ctx); err != nil {
		t.Fatalf("InitLocalState: %v", err)
	}
	more, err := l.GetNextTuple(ctx)
	if err != nil || !more {
		t.Fatalf("first GetNextTuple: more=%v err=%v", more, err)
	}
	if got := rs.Chunks[0].Size(); got != 2 {
		t.Fatalf("first chunk size = %d, want 2", got)
	}
	more, err = l.GetNextTuple(ctx)
	if err != nil {
		t.Fatalf("second GetNextTuple: %v", err)
	}
	if !more {
		t.Fatal("expected more=true for the second chunk (1 row remaining)")
	}
	if got := rs.Chunks[0].Size(); got != 1 {
		t.Fatalf("second chunk size = %d, want 1", got)
	}
	more, err = l.GetNextTuple(ctx)
	if err != nil {
		t.Fatalf("third GetNextTuple: %v", err)
	}
	if more {
		t.Fatal("expected more=false once the limit is exhausted")
	}
}
