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

package recurse

import (
	"sync"
	"sync/atomic"

	"github.com/kuzudb/graphvec/exec"
	"github.com/kuzudb/graphvec/vector"
)

const defaultMorselSize = 256

// recursiveShared is the BFS result every worker clone of a
// RecursiveExtend reads from during the destination-writing pipeline:
// one IFEMorsel per source row, built once by Build, plus the shared
// morsel-index cursor partitioning them across workers (spec.md §4.8
// "Destination-writing pipeline").
type recursiveShared struct {
	morsels      []*IFEMorsel
	morselCursor atomic.Int64
}

// RecursiveExtend is spec.md §4.8's BFS/IFE engine wired in as a single
// physical operator: its child supplies the source node rows to expand
// from, Build (the Breaker phase) runs every source's BFS to fixed
// point, and GetNextTuple streams the resulting (destination, path
// length) pairs exactly like any other pipeline source once the build
// phase has finished.
type RecursiveExtend struct {
	exec.Base

	SrcPos     vector.Pos // child output: one row per BFS source node
	DstTableID uint32     // node table the BFS frontier ranges over

	Filters    []HopFilter
	NodeFilter func(vector.NodeID) bool

	LowerBound, UpperBound int
	Track                  TrackMode
	MorselSize             int

	DstOutPos    vector.Pos
	LengthOutPos vector.Pos

	shared *recursiveShared

	rs       *vector.ResultSet
	outChunk *vector.Chunk
	dstOut   *vector.Vector
	lenOut   *vector.Vector

	curMorselIdx  int
	curStart      uint64
	curEnd        uint64
	haveDstMorsel bool
}

func NewRecursiveExtend(child exec.Operator, srcPos vector.Pos, dstTableID uint32, filters []HopFilter, nodeFilter func(vector.NodeID) bool, lowerBound, upperBound int, track TrackMode, dstOutPos, lengthOutPos vector.Pos) *RecursiveExtend {
	r := &RecursiveExtend{
		SrcPos: srcPos, DstTableID: dstTableID, Filters: filters, NodeFilter: nodeFilter,
		LowerBound: lowerBound, UpperBound: upperBound, Track: track, MorselSize: defaultMorselSize,
		DstOutPos: dstOutPos, LengthOutPos: lengthOutPos,
		shared: &recursiveShared{},
	}
	r.SetChildren(child)
	return r
}

func (r *RecursiveExtend) Kind() exec.OpKind { return exec.KindRecursiveExtend }

func (r *RecursiveExtend) morselSize() int {
	if r.MorselSize > 0 {
		return r.MorselSize
	}
	return defaultMorselSize
}

func (r *RecursiveExtend) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	r.rs = rs
	r.outChunk = vector.NewChunk([]vector.LogicalType{vector.NODE, vector.INT64}, vector.V)
	r.dstOut = r.outChunk.Vectors[0]
	r.lenOut = r.outChunk.Vectors[1]
	// Outputs that share a ChunkIdx go into one chunk, each at its VectorIdx.
	chunks := map[uint32]*vector.Chunk{}
	for _, o := range []struct {
		pos vector.Pos
		v   *vector.Vector
	}{{r.DstOutPos, r.dstOut}, {r.LengthOutPos, r.lenOut}} {
		c := chunks[o.pos.ChunkIdx]
		if c == nil {
			c = &vector.Chunk{State: r.outChunk.State}
			chunks[o.pos.ChunkIdx] = c
			rs.SetChunk(o.pos.ChunkIdx, c)
		}
		for uint32(len(c.Vectors)) <= o.pos.VectorIdx {
			c.Vectors = append(c.Vectors, nil)
		}
		c.Vectors[o.pos.VectorIdx] = o.v
	}
	return nil
}

// GetNextTuple streams (dst, path_length) rows out of the visited-node
// state every IFEMorsel accumulated during Build, claiming ranges of the
// destination domain the same way an ordinary table scan claims morsels.
func (r *RecursiveExtend) GetNextTuple(ctx *exec.Context) (bool, error) {
	if err := ctx.CheckInterrupted(); err != nil {
		return false, err
	}
	for {
		if !r.haveDstMorsel {
			idx := int(r.shared.morselCursor.Load())
			if idx >= len(r.shared.morsels) {
				return false, nil
			}
			m := r.shared.morsels[idx]
			start, end, ok := m.NextDstScanMorsel(uint64(r.morselSize()))
			if !ok {
				r.shared.morselCursor.CompareAndSwap(int64(idx), int64(idx+1))
				continue
			}
			r.curMorselIdx, r.curStart, r.curEnd = idx, start, end
			r.haveDstMorsel = true
		}

		m := r.shared.morsels[r.curMorselIdx]
		n := 0
		for r.curStart < r.curEnd && n < vector.V {
			off := r.curStart
			r.curStart++
			state := m.VisitedNodes.Get(uint32(off))
			if state != Visited && state != VisitedDst {
				continue
			}
			plen := int(m.PathLength[off])
			if plen < r.LowerBound {
				continue
			}
			r.dstOut.SetNodeID(n, vector.NodeID{Offset: off, TableID: r.DstTableID})
			r.lenOut.SetInt64(n, int64(plen))
			n++
		}
		if r.curStart >= r.curEnd {
			r.haveDstMorsel = false
		}
		if n == 0 {
			continue
		}
		r.outChunk.State.SetUnfiltered(n)
		return true, nil
	}
}

func (r *RecursiveExtend) Clone() exec.Operator {
	c := &RecursiveExtend{
		SrcPos: r.SrcPos, DstTableID: r.DstTableID, Filters: r.Filters, NodeFilter: r.NodeFilter,
		LowerBound: r.LowerBound, UpperBound: r.UpperBound, Track: r.Track, MorselSize: r.MorselSize,
		DstOutPos: r.DstOutPos, LengthOutPos: r.LengthOutPos,
		shared: r.shared,
	}
	c.SetChildren(r.Children()[0].Clone())
	return c
}

// Build drains the child for its BFS source rows, allocates one
// IFEMorsel per source, then runs every source's frontier to fixed
// point with a pool of numWorkers goroutines pulling whichever source
// still has an incomplete frontier (spec.md §4.8 steps 1-4).
func (r *RecursiveExtend) Build(ctx *exec.Context, numWorkers int) error {
	childRS := &vector.ResultSet{}
	if err := r.Children()[0].InitLocalState(childRS, ctx); err != nil {
		return err
	}
	var sources []vector.NodeID
	for {
		more, err := r.Children()[0].GetNextTuple(ctx)
		if err != nil {
			return err
		}
		if !more {
			break
		}
		srcVec := childRS.Chunks[r.SrcPos.ChunkIdx].Vectors[r.SrcPos.VectorIdx]
		n := srcVec.State().Size()
		for i := 0; i < n; i++ {
			sources = append(sources, srcVec.GetNodeID(i))
		}
	}

	nt, err := ctx.Tables.NodeTable(r.DstTableID)
	if err != nil {
		return exec.Wrap(exec.StorageError, err, "recursive extend: dst node table %d", r.DstTableID)
	}
	maxOffset := nt.MaxOffset(ctx.Tx)

	r.shared.morsels = make([]*IFEMorsel, len(sources))
	for i, s := range sources {
		r.shared.morsels[i] = NewIFEMorsel(s.Offset, maxOffset, r.UpperBound, r.Track, 0)
	}

	if numWorkers <= 0 {
		numWorkers = ctx.NumThreads
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}

	ext := &Extend{Filters: r.Filters, NodeFilter: r.NodeFilter}
	var wg sync.WaitGroup
	errs := make([]error, numWorkers)
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		w := w
		go func() {
			defer wg.Done()
			errs[w] = r.bfsWorker(ctx, ext)
		}()
	}
	wg.Wait()
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// bfsWorker repeatedly claims a frontier morsel from whichever source is
// not yet complete, extends it, and marks newly-discovered destinations,
// until every source's BFS has reached fixed point.
func (r *RecursiveExtend) bfsWorker(ctx *exec.Context, ext *Extend) error {
	for {
		if err := ctx.CheckInterrupted(); err != nil {
			return err
		}
		allDone := true
		for _, m := range r.shared.morsels {
			if m.IsComplete() {
				continue
			}
			allDone = false
			sources, ok := m.GetMorsel(r.morselSize())
			if !ok {
				continue
			}
			nbrs, err := ext.Step(ctx, sources)
			if err != nil {
				m.Release()
				return err
			}
			level := int(atomic.LoadInt32(&m.currentLevel)) + 1
			for _, nb := range nbrs {
				m.MarkVisited(nb.Dst.Offset, level, nb.SrcOffset, nb.RelOffset, nb.RelTable)
			}
			m.Release()
		}
		if allDone {
			return nil
		}
	}
}
