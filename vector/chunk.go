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

// Chunk is an ordered sequence of Vectors sharing one State (spec.md
// §3.3). Its lifetime is tied to the pipeline that produced it: each
// getNextTuple call on a source operator refills (or replaces) the
// vectors of its output Chunk in place.
type Chunk struct {
	State   *State
	Vectors []*Vector
}

// NewChunk allocates a Chunk with the given logical types, all bound to a
// fresh unfiltered State of the given size.
func NewChunk(types []LogicalType, size int) *Chunk {
	st := NewUnfilteredState(size)
	c := &Chunk{State: st, Vectors: make([]*Vector, len(types))}
	for i, t := range types {
		c.Vectors[i] = New(t, st)
	}
	return c
}

// Size returns the chunk's logical row count.
func (c *Chunk) Size() int { return c.State.Size() }

// Pos is a data-position: (chunkIdx, vectorIdx), per spec.md §3.4. The
// sentinel Invalid marks "no such position".
type Pos struct {
	ChunkIdx  uint32
	VectorIdx uint32
}

// Invalid is the data-position sentinel (UINT32_MAX, UINT32_MAX).
var Invalid = Pos{ChunkIdx: ^uint32(0), VectorIdx: ^uint32(0)}

// IsValid reports whether p is not the Invalid sentinel.
func (p Pos) IsValid() bool { return p != Invalid }

// ResultSet is an array of Chunks, the unit operators pass between
// getNextTuple calls (spec.md §3.4); every operator references its
// inputs and outputs by Pos into a ResultSet.
type ResultSet struct {
	Chunks []*Chunk
}

// Vector resolves a Pos against the ResultSet.
func (rs *ResultSet) Vector(p Pos) *Vector {
	return rs.Chunks[p.ChunkIdx].Vectors[p.VectorIdx]
}

// SetChunk installs c at chunkIdx, growing Chunks as needed. Source
// operators call this during InitLocalState to publish the output chunk
// their data-position handles were resolved against at plan time.
func (rs *ResultSet) SetChunk(chunkIdx uint32, c *Chunk) {
	for uint32(len(rs.Chunks)) <= chunkIdx {
		rs.Chunks = append(rs.Chunks, nil)
	}
	rs.Chunks[chunkIdx] = c
}

// Flatten produces a new Chunk of one logical row: the selected row at
// logical position pos of src, across every vector. This is the
// "Flatten operator" of spec.md §4.1, implemented here as a pure
// function rather than a stateful operator so both the Flatten physical
// operator and ad hoc call sites (e.g. indexed writes) can reuse it.
func Flatten(src *Chunk, pos int) *Chunk {
	flat := NewFlatStateFrom(src.State, pos)
	out := &Chunk{State: flat, Vectors: make([]*Vector, len(src.Vectors))}
	for i, v := range src.Vectors {
		fv := New(v.Type, flat)
		// the single selected row goes into physical slot flat.Index(0)
		// of the new vector, the slot logical row 0 reads, so callers
		// can always read logical row 0.
		copyOneRow(v, v.state.Index(pos), fv, flat.Index(0))
		out.Vectors[i] = fv
	}
	return out
}

// NewFlatStateFrom returns a flat State selecting the physical slot that
// src.State maps logical position pos to.
func NewFlatStateFrom(src *State, pos int) *State {
	return NewFlatState(src.Index(pos))
}

func copyOneRow(src *Vector, srcPhysical uint32, dst *Vector, dstPhysical uint32) {
	if src.nulls[srcPhysical/64]&(1<<(srcPhysical%64)) != 0 {
		dst.nulls[dstPhysical/64] |= 1 << (dstPhysical % 64)
		return
	}
	if src.width > 0 {
		copy(dst.slot(dstPhysical), src.slot(srcPhysical))
	}
	switch src.Type {
	case STRING, BLOB:
		// re-home the prefix+pointer tuple; if the value overflowed,
		// borrow the source arena directly rather than copying bytes,
		// since the flattened chunk's lifetime is <= the source's.
		dst.arena = src.arena
	}
}
