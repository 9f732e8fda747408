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

	"github.com/kuzudb/graphvec/exec/join"
	"github.com/kuzudb/graphvec/vector"
)

func TestMarkAccumulateBuildsAMarkJoin(t *testing.T) {
	chunk := vector.NewChunk([]vector.LogicalType{vector.INT64}, 2)
	chunk.Vectors[0].SetInt64(0, 1)
	chunk.Vectors[0].SetInt64(1, 2)
	src := newChunkSource(0, chunk)

	keyPos := []vector.Pos{{ChunkIdx: 0, VectorIdx: 0}}
	keyTypes := []vector.LogicalType{vector.INT64}
	m := NewMarkAccumulate(src, keyPos, keyTypes)

	if m.JoinKind != join.Mark {
		t.Fatalf("JoinKind = %v, want join.Mark", m.JoinKind)
	}
	if len(m.PayloadPos) != 0 {
		t.Errorf("PayloadPos should be empty, got %v", m.PayloadPos)
	}

	ctx := newTestContext()
	if err := m.Build(ctx, 1); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if n := m.Table.NumTuples(); n != 2 {
		t.Fatalf("Table.NumTuples() = %d, want 2", n)
	}
}
