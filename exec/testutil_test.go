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
	"github.com/google/uuid"

	"github.com/kuzudb/graphvec/txn"
	"github.com/kuzudb/graphvec/vector"
)

// chunkSource is a one-shot leaf operator that emits the chunks in order,
// one per GetNextTuple call, publishing each at the given chunk index.
type chunkSource struct {
	Base

	chunkIdx uint32
	chunks   []*vector.Chunk
	pos      int
	rs       *vector.ResultSet
}

func newChunkSource(chunkIdx uint32, chunks ...*vector.Chunk) *chunkSource {
	return &chunkSource{chunkIdx: chunkIdx, chunks: chunks}
}

func (s *chunkSource) Kind() OpKind { return KindScanNodeID }

func (s *chunkSource) InitLocalState(rs *vector.ResultSet, ctx *Context) error {
	s.rs = rs
	return nil
}

func (s *chunkSource) GetNextTuple(ctx *Context) (bool, error) {
	if s.pos >= len(s.chunks) {
		return false, nil
	}
	s.rs.SetChunk(s.chunkIdx, s.chunks[s.pos])
	s.pos++
	return true, nil
}

func (s *chunkSource) Clone() Operator {
	return &chunkSource{chunkIdx: s.chunkIdx, chunks: s.chunks}
}

func newTestContext() *Context {
	tx := txn.Begin(txn.Write, uuid.New())
	return NewContext(tx, nil, nil, nil, nil, nil, 1)
}
