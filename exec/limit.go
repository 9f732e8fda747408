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
	"sync/atomic"

	"github.com/kuzudb/graphvec/vector"
)

// Limit truncates its child's output to at most Count rows in total
// across every worker clone (spec.md §4.2 names it alongside the
// pipeline-breaking operators but it does not appear in the "pipeline
// boundary is inserted at every pipeline-breaking operator" list, so it
// streams and truncates in place rather than materializing).
type Limit struct {
	Base

	ChunkIdx uint32 // the child output chunk this operator truncates
	Count    int64

	// remaining is shared by every worker clone of this pipeline so the
	// total across all of them, not each individually, stops at Count.
	remaining *atomic.Int64

	rs *vector.ResultSet
}

func NewLimit(child Operator, chunkIdx uint32, count int64) *Limit {
	l := &Limit{ChunkIdx: chunkIdx, Count: count, remaining: &atomic.Int64{}}
	l.remaining.Store(count)
	l.SetChildren(child)
	return l
}

func (l *Limit) Kind() OpKind { return KindLimit }

func (l *Limit) InitLocalState(rs *vector.ResultSet, ctx *Context) error {
	if err := l.Children()[0].InitLocalState(rs, ctx); err != nil {
		return err
	}
	l.rs = rs
	return nil
}

func (l *Limit) GetNextTuple(ctx *Context) (bool, error) {
	if err := ctx.CheckInterrupted(); err != nil {
		return false, err
	}
	if l.remaining.Load() <= 0 {
		return false, nil
	}
	more, err := l.Children()[0].GetNextTuple(ctx)
	if err != nil || !more {
		return more, err
	}
	chunk := l.rs.Chunks[l.ChunkIdx]
	n := int64(chunk.Size())
	before := l.remaining.Add(-n) + n
	if before <= 0 {
		return false, nil
	}
	if before >= n {
		return true, nil
	}
	truncateState(chunk.State, int(before))
	return true, nil
}

func (l *Limit) Clone() Operator {
	c := &Limit{ChunkIdx: l.ChunkIdx, Count: l.Count, remaining: l.remaining}
	c.SetChildren(l.Children()[0].Clone())
	return c
}

// truncateState shrinks st to its first n logical positions, preserving
// an existing selection index rather than discarding it the way
// SetUnfiltered would.
func truncateState(st *vector.State, n int) {
	if !st.Filtered() {
		st.SetUnfiltered(n)
		return
	}
	idx := make([]uint32, n)
	for i := 0; i < n; i++ {
		idx[i] = st.Index(i)
	}
	st.SetFiltered(idx)
}
