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

package agg

import (
	"testing"

	"github.com/kuzudb/graphvec/vector"
)

func TestDistinctSuppressesDuplicateKeys(t *testing.T) {
	chunk := vector.NewChunk([]vector.LogicalType{vector.INT64}, 4)
	chunk.Vectors[0].SetInt64(0, 1)
	chunk.Vectors[0].SetInt64(1, 2)
	chunk.Vectors[0].SetInt64(2, 1)
	chunk.Vectors[0].SetInt64(3, 2)
	src := newChunkSource(0, chunk)

	keyPos := []vector.Pos{{ChunkIdx: 0, VectorIdx: 0}}
	keyTypes := []vector.LogicalType{vector.INT64}
	outKeyPos := []vector.Pos{{ChunkIdx: 1, VectorIdx: 0}}

	d := NewDistinct(src, keyPos, keyTypes, outKeyPos)
	ctx := newTestContext()
	rs := &vector.ResultSet{}
	if err := d.InitLocalState(rs, ctx); err != nil {
		t.Fatalf("InitLocalState: %v", err)
	}

	var got []int64
	for {
		more, err := d.GetNextTuple(ctx)
		if err != nil {
			t.Fatalf("GetNextTuple: %v", err)
		}
		if !more {
			break
		}
		out := rs.Vector(outKeyPos[0])
		for i := 0; i < out.State().Size(); i++ {
			got = append(got, out.GetInt64(i))
		}
	}
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 distinct keys", got)
	}
}
