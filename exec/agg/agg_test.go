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
	"github.com/google/uuid"

	"github.com/kuzudb/graphvec/exec"
	"github.com/kuzudb/graphvec/txn"
	"github.com/kuzudb/graphvec/vector"
)

// chunkSource is a one-shot leaf operator emitting one fixed chunk.
type chunkSource struct {
	exec.Base
	chunkIdx uint32
	chunk    *vector.Chunk
	emitted  bool
}

func newChunkSource(chunkIdx uint32, chunk *vector.Chunk) *chunkSource {
	return &chunkSource{chunkIdx: chunkIdx, chunk: chunk}
}

func (s *chunkSource) Kind() exec.OpKind { return exec.KindScanNodeID }

func (s *chunkSource) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	rs.SetChunk(s.chunkIdx, s.chunk)
	return nil
}

func (s *chunkSource) GetNextTuple(ctx *exec.Context) (bool, error) {
	if s.emitted {
		return false, nil
	}
	s.emitted = true
	return true, nil
}

func (s *chunkSource) Clone() exec.Operator {
	return &chunkSource{chunkIdx: s.chunkIdx, chunk: s.chunk}
}

func newTestContext() *exec.Context {
	tx := txn.Begin(txn.Write, uuid.New())
	return exec.NewContext(tx, nil, nil, nil, nil, nil, 1)
}
