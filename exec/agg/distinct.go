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
	"bytes"
	"sync"

	"github.com/kuzudb/graphvec/exec"
	"github.com/kuzudb/graphvec/vector"
)

// Distinct suppresses duplicate key tuples, the auxiliary distinct hash
// table spec.md §4.7 describes feeding a downstream aggregate or a plain
// `DISTINCT` projection. There is no per-worker set: every row of every
// worker is checked against (and added to) the one global set below
// under its mutex, so cross-worker duplicates are caught.
// distinctShared is the one global dedup set every worker clone of a
// Distinct subtree shares, guarded by its own mutex so Clone() can copy
// the operator struct by value while every clone still serializes on the
// same lock (unlike a plain sync.Mutex field, which a struct copy would
// silently fork into an independent, unshared lock).
type distinctShared struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

type Distinct struct {
	exec.Base

	KeyPos    []vector.Pos
	KeyTypes  []vector.LogicalType
	OutKeyPos []vector.Pos

	shared *distinctShared

	keyVecs []*vector.Vector
	rs      *vector.ResultSet

	out      []*vector.Vector
	outChunk *vector.Chunk
}

func NewDistinct(child exec.Operator, keyPos []vector.Pos, keyTypes []vector.LogicalType, outKeyPos []vector.Pos) *Distinct {
	d := &Distinct{
		KeyPos: keyPos, KeyTypes: keyTypes, OutKeyPos: outKeyPos,
		shared: &distinctShared{seen: make(map[string]struct{})},
	}
	d.SetChildren(child)
	return d
}

func (d *Distinct) Kind() exec.OpKind { return exec.KindDistinct }

func (d *Distinct) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	if err := d.Children()[0].InitLocalState(rs, ctx); err != nil {
		return err
	}
	d.rs = rs
	d.outChunk = vector.NewChunk(d.KeyTypes, vector.V)
	d.out = d.outChunk.Vectors
	for i, pos := range d.OutKeyPos {
		rs.SetChunk(pos.ChunkIdx, &vector.Chunk{State: d.outChunk.State, Vectors: []*vector.Vector{d.out[i]}})
	}
	return nil
}

func (d *Distinct) GetNextTuple(ctx *exec.Context) (bool, error) {
	for {
		if err := ctx.CheckInterrupted(); err != nil {
			return false, err
		}
		more, err := d.Children()[0].GetNextTuple(ctx)
		if err != nil || !more {
			return more, err
		}
		if d.keyVecs == nil {
			d.keyVecs = make([]*vector.Vector, len(d.KeyPos))
		}
		for i, pos := range d.KeyPos {
			d.keyVecs[i] = d.rs.Chunks[pos.ChunkIdx].Vectors[pos.VectorIdx]
		}
		n := d.keyVecs[0].State().Size()
		m := 0
		for row := 0; row < n; row++ {
			key := encodeKey(d.keyVecs, d.KeyTypes, row)
			d.shared.mu.Lock()
			_, seen := d.shared.seen[key]
			if !seen {
				d.shared.seen[key] = struct{}{}
			}
			d.shared.mu.Unlock()
			if seen {
				continue
			}
			for i, v := range d.keyVecs {
				vector.CopyRow(d.out[i], m, v, row)
			}
			m++
		}
		if m > 0 {
			d.outChunk.State.SetUnfiltered(m)
			return true, nil
		}
	}
}

func (d *Distinct) Clone() exec.Operator {
	c := &Distinct{KeyPos: d.KeyPos, KeyTypes: d.KeyTypes, OutKeyPos: d.OutKeyPos, shared: d.shared}
	c.SetChildren(d.Children()[0].Clone())
	return c
}

// encodeKey serializes a key tuple's raw cell bytes for use as a Go map
// key; simpler than a custom open-addressed table. Distinct looks every
// row's encoded key up in its shared set.
func encodeKey(vecs []*vector.Vector, types []vector.LogicalType, row int) string {
	var buf bytes.Buffer
	for i, v := range vecs {
		if v.IsNull(row) {
			buf.WriteByte(0)
			continue
		}
		buf.WriteByte(1)
		if types[i] == vector.STRING || types[i] == vector.BLOB {
			buf.Write(v.GetString(row))
			buf.WriteByte(0xff)
			continue
		}
		buf.Write(rawCellBytes(v, types[i], row))
	}
	return buf.String()
}
