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
	"fmt"

	"github.com/kuzudb/graphvec/rowtable"
	"github.com/kuzudb/graphvec/vector"
)

// ResultCollector is the pipeline-breaking materialization point of
// spec.md §4.2 ("result collector"): it drains its child sub-pipeline to
// completion into a factorized rowtable.Table, then itself becomes the
// source of the pipeline above, streamed back out in vector.V-sized
// chunks (spec.md §4.2 "its sink materializes into a factorized table
// that becomes the source of the pipeline above"). The plan mapper's
// MapQuery wraps a query root in one when the root is not already an
// OrderBy, Limit or ResultCollector; it inserts none between the
// sub-pipelines below the root.
type ResultCollector struct {
	Base

	ColPos  []vector.Pos
	ColTypes []vector.LogicalType
	OutPos  []vector.Pos

	schema *rowtable.Schema
	table  *rowtable.Table
	cols   []int

	scan     *SharedScanState
	rs       *vector.ResultSet
	outChunk *vector.Chunk
}

func NewResultCollector(child Operator, colPos []vector.Pos, colTypes []vector.LogicalType, outPos []vector.Pos) *ResultCollector {
	r := &ResultCollector{ColPos: colPos, ColTypes: colTypes, OutPos: outPos}
	r.SetChildren(child)
	return r
}

func (r *ResultCollector) Kind() OpKind { return KindResultCollector }

// Build implements Breaker: it drains the child through an internal
// appender sink, the same shape as exec/join's buildAppender, then
// finalizes the table for lock-free concurrent Scan reads.
func (r *ResultCollector) Build(ctx *Context, numWorkers int) error {
	cols := make([]rowtable.ColumnDesc, len(r.ColPos))
	r.cols = make([]int, len(r.ColPos))
	for i, p := range r.ColPos {
		r.cols[i] = i
		cols[i] = rowtable.ColumnDesc{
			Name: fmt.Sprintf("col%d", i), Type: r.ColTypes[i], IsFlat: true,
			SourceChunkIdx: p.ChunkIdx, SourceVectorIdx: p.VectorIdx,
		}
	}
	r.schema = rowtable.NewSchema(cols)
	r.table = rowtable.New(r.schema)

	appender := &collectorAppender{colPos: r.ColPos, table: r.table}
	appender.SetChildren(r.Children()[0])
	if err := RunPipeline(ctx, appender, numWorkers); err != nil {
		return err
	}
	r.table.Finalize()
	n := r.table.NumTuples()
	var maxOffset uint64
	if n > 0 {
		maxOffset = uint64(n - 1)
	}
	r.scan = NewSharedScanState(maxOffset, uint64(vector.V), nil)
	return nil
}

// InitLocalState allocates this worker clone's output chunk; the table
// itself is already built and shared read-only across every clone.
func (r *ResultCollector) InitLocalState(rs *vector.ResultSet, ctx *Context) error {
	r.rs = rs
	r.outChunk = vector.NewChunk(r.ColTypes, vector.V)
	for i, pos := range r.OutPos {
		rs.SetChunk(pos.ChunkIdx, &vector.Chunk{State: r.outChunk.State, Vectors: []*vector.Vector{r.outChunk.Vectors[i]}})
	}
	return nil
}

// GetNextTuple claims the next morsel of materialized rows (spec.md §4.3
// "Dispatch contract") and scans them into this worker's output vectors;
// every worker clone shares r.table/r.scan, built once in Build.
func (r *ResultCollector) GetNextTuple(ctx *Context) (bool, error) {
	if err := ctx.CheckInterrupted(); err != nil {
		return false, err
	}
	if r.table.NumTuples() == 0 {
		return false, nil
	}
	m := r.scan.GetNextRangeToRead()
	if !m.IsValid() {
		return false, nil
	}
	n := int(m.End - m.Start)
	r.table.Scan(r.outChunk.Vectors, int(m.Start), n, r.cols)
	r.outChunk.State.SetUnfiltered(n)
	return true, nil
}

func (r *ResultCollector) Clone() Operator {
	c := &ResultCollector{ColPos: r.ColPos, ColTypes: r.ColTypes, OutPos: r.OutPos, schema: r.schema, table: r.table, cols: r.cols, scan: r.scan}
	c.SetChildren(r.Children()[0])
	return c
}

// collectorAppender is ResultCollector's internal sink, the same
// one-operator-per-worker appender shape as exec/join's buildAppender,
// generalized to no key hashing since a result collector has no join key.
type collectorAppender struct {
	Base

	colPos []vector.Pos
	table  *rowtable.Table

	rs   *vector.ResultSet
	vecs []*vector.Vector
}

func (a *collectorAppender) Kind() OpKind { return KindResultCollector }

func (a *collectorAppender) InitLocalState(rs *vector.ResultSet, ctx *Context) error {
	if err := a.Children()[0].InitLocalState(rs, ctx); err != nil {
		return err
	}
	a.rs = rs
	return nil
}

func (a *collectorAppender) GetNextTuple(ctx *Context) (bool, error) {
	more, err := a.Children()[0].GetNextTuple(ctx)
	if err != nil || !more {
		return more, err
	}
	if a.vecs == nil {
		a.vecs = make([]*vector.Vector, len(a.colPos))
	}
	for i, p := range a.colPos {
		a.vecs[i] = a.rs.Chunks[p.ChunkIdx].Vectors[p.VectorIdx]
	}
	n := a.vecs[0].State().Size()
	for row := 0; row < n; row++ {
		a.table.AppendRow(a.rs, row)
	}
	return true, nil
}

func (a *collectorAppender) Clone() Operator {
	c := &collectorAppender{colPos: a.colPos, table: a.table}
	c.SetChildren(a.Children()[0].Clone())
	return c
}
