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

import "github.com/kuzudb/graphvec/vector"

// Flatten re-emits one selected position of its child's chunk per call
// (spec.md §4.1 "Flattening"), for operators downstream that can only
// process a flat (single-row) input, e.g. the per-row writing operators
// of package write. The plan mapper inserts this wherever a consumer
// requires a flat input but its child's group of factorization is not
// already flat (spec.md §4.10).
type Flatten struct {
	Base

	InChunkIdx  uint32
	OutChunkIdx uint32

	rs  *vector.ResultSet
	src *vector.Chunk
	pos int
	n   int
}

func NewFlatten(child Operator, inChunkIdx, outChunkIdx uint32) *Flatten {
	f := &Flatten{InChunkIdx: inChunkIdx, OutChunkIdx: outChunkIdx}
	f.SetChildren(child)
	return f
}

func (f *Flatten) Kind() OpKind { return KindFlatten }

func (f *Flatten) InitLocalState(rs *vector.ResultSet, ctx *Context) error {
	if err := f.Children()[0].InitLocalState(rs, ctx); err != nil {
		return err
	}
	f.rs = rs
	f.src = nil
	f.pos, f.n = 0, 0
	return nil
}

func (f *Flatten) GetNextTuple(ctx *Context) (bool, error) {
	if err := ctx.CheckInterrupted(); err != nil {
		return false, err
	}
	for f.pos >= f.n {
		more, err := f.Children()[0].GetNextTuple(ctx)
		if err != nil || !more {
			return more, err
		}
		f.src = f.rs.Chunks[f.InChunkIdx]
		f.n = f.src.Size()
		f.pos = 0
	}
	flat := vector.Flatten(f.src, f.pos)
	f.rs.SetChunk(f.OutChunkIdx, flat)
	f.pos++
	return true, nil
}

func (f *Flatten) Clone() Operator {
	c := NewFlatten(f.Children()[0].Clone(), f.InChunkIdx, f.OutChunkIdx)
	return c
}
