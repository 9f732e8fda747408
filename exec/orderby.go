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
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"

	"golang.org/x/exp/slices"

	"github.com/kuzudb/graphvec/rowtable"
	"github.com/kuzudb/graphvec/vector"
)

// SortKey is one ORDER BY term: a column of the materialized table and
// its direction.
type SortKey struct {
	Col  int // index into OrderBy.ColPos/ColTypes
	Desc bool
}

// OrderBy is the sort pipeline-breaker of spec.md §4.2: it materializes
// its child into a factorized rowtable.Table (the same shape as
// ResultCollector), sorts the row order once in Build, then streams rows
// back out in that order, claimed in vector.V batches by every worker
// clone of the pipeline above.
type OrderBy struct {
	Base

	ColPos   []vector.Pos
	ColTypes []vector.LogicalType
	OutPos   []vector.Pos
	Keys     []SortKey

	schema *rowtable.Schema
	table  *rowtable.Table
	cols   []int
	order  []int32

	cursor   *atomic.Int64
	rs       *vector.ResultSet
	outChunk *vector.Chunk
}

func NewOrderBy(child Operator, colPos []vector.Pos, colTypes []vector.LogicalType, outPos []vector.Pos, keys []SortKey) *OrderBy {
	o := &OrderBy{ColPos: colPos, ColTypes: colTypes, OutPos: outPos, Keys: keys, cursor: &atomic.Int64{}}
	o.SetChildren(child)
	return o
}

func (o *OrderBy) Kind() OpKind { return KindOrderBy }

// Build drains the child through the same appender shape ResultCollector
// uses, then sorts the materialized row indices by o.Keys
// (golang.org/x/exp/slices.SortFunc, a comparator-based sort).
func (o *OrderBy) Build(ctx *Context, numWorkers int) error {
	cols := make([]rowtable.ColumnDesc, len(o.ColPos))
	o.cols = make([]int, len(o.ColPos))
	for i, p := range o.ColPos {
		o.cols[i] = i
		cols[i] = rowtable.ColumnDesc{
			Name: fmt.Sprintf("col%d", i), Type: o.ColTypes[i], IsFlat: true,
			SourceChunkIdx: p.ChunkIdx, SourceVectorIdx: p.VectorIdx,
		}
	}
	o.schema = rowtable.NewSchema(cols)
	o.table = rowtable.New(o.schema)

	appender := &collectorAppender{colPos: o.ColPos, table: o.table}
	appender.SetChildren(o.Children()[0])
	if err := RunPipeline(ctx, appender, numWorkers); err != nil {
		return err
	}
	o.table.Finalize()

	n := o.table.NumTuples()
	order := make([]int32, n)
	for i := range order {
		order[i] = int32(i)
	}
	slices.SortFunc(order, func(a, b int32) int {
		return o.compareRows(int(a), int(b))
	})
	o.order = order
	return nil
}

func (o *OrderBy) compareRows(a, b int) int {
	for _, k := range o.Keys {
		c := compareColumn(o.table, a, b, o.cols[k.Col], o.ColTypes[k.Col])
		if c == 0 {
			continue
		}
		if k.Desc {
			c = -c
		}
		return c
	}
	return 0
}

// compareColumn orders two rows' values of one column, decoding the raw
// row bytes the same way exec/join's HashJoinProbe.scanPayloadCell does.
func compareColumn(t *rowtable.Table, rowA, rowB, col int, typ vector.LogicalType) int {
	if typ == vector.STRING || typ == vector.BLOB {
		return bytes.Compare(t.StringColumn(rowA, col), t.StringColumn(rowB, col))
	}
	ca, cb := t.Column(rowA, col), t.Column(rowB, col)
	switch typ {
	case vector.BOOL:
		return int(ca[0]) - int(cb[0])
	case vector.INT32:
		va := int32(binary.LittleEndian.Uint32(ca))
		vb := int32(binary.LittleEndian.Uint32(cb))
		return cmpInt64(int64(va), int64(vb))
	case vector.INT64:
		va := int64(binary.LittleEndian.Uint64(ca))
		vb := int64(binary.LittleEndian.Uint64(cb))
		return cmpInt64(va, vb)
	case vector.DOUBLE:
		va := math.Float64frombits(binary.LittleEndian.Uint64(ca))
		vb := math.Float64frombits(binary.LittleEndian.Uint64(cb))
		return cmpFloat64(va, vb)
	case vector.INTERNAL_ID, vector.NODE, vector.REL:
		oa := binary.LittleEndian.Uint64(ca[0:8])
		ob := binary.LittleEndian.Uint64(cb[0:8])
		if oa != ob {
			return cmpUint64(oa, ob)
		}
		ta := binary.LittleEndian.Uint32(ca[8:12])
		tb := binary.LittleEndian.Uint32(cb[8:12])
		return int(ta) - int(tb)
	default:
		return 0
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (o *OrderBy) InitLocalState(rs *vector.ResultSet, ctx *Context) error {
	o.rs = rs
	o.outChunk = vector.NewChunk(o.ColTypes, vector.V)
	for i, pos := range o.OutPos {
		rs.SetChunk(pos.ChunkIdx, &vector.Chunk{State: o.outChunk.State, Vectors: []*vector.Vector{o.outChunk.Vectors[i]}})
	}
	return nil
}

// GetNextTuple claims the next vector.V-sized span of the sorted row
// order and scans those rows, in order, into this worker's output chunk.
func (o *OrderBy) GetNextTuple(ctx *Context) (bool, error) {
	if err := ctx.CheckInterrupted(); err != nil {
		return false, err
	}
	total := int64(len(o.order))
	start := o.cursor.Add(int64(vector.V)) - int64(vector.V)
	if start >= total {
		return false, nil
	}
	end := start + int64(vector.V)
	if end > total {
		end = total
	}
	n := int(end - start)
	for i := 0; i < n; i++ {
		row := int(o.order[start+int64(i)])
		for outIdx, col := range o.cols {
			copyTypedColumn(o.table, row, col, o.ColTypes[outIdx], o.outChunk.Vectors[outIdx], i)
		}
	}
	o.outChunk.State.SetUnfiltered(n)
	return true, nil
}

// copyTypedColumn decodes table row/col into dst[dstRow], the same
// per-type switch as exec/join's scanPayloadCell.
func copyTypedColumn(t *rowtable.Table, row, col int, typ vector.LogicalType, dst *vector.Vector, dstRow int) {
	if typ == vector.STRING || typ == vector.BLOB {
		dst.SetString(dstRow, t.StringColumn(row, col))
		return
	}
	mem := t.Column(row, col)
	switch typ {
	case vector.BOOL:
		dst.SetBool(dstRow, mem[0] != 0)
	case vector.INT32:
		dst.SetInt32(dstRow, int32(binary.LittleEndian.Uint32(mem)))
	case vector.INT64:
		dst.SetInt64(dstRow, int64(binary.LittleEndian.Uint64(mem)))
	case vector.DOUBLE:
		dst.SetDouble(dstRow, math.Float64frombits(binary.LittleEndian.Uint64(mem)))
	case vector.INTERNAL_ID, vector.NODE, vector.REL:
		dst.SetNodeID(dstRow, vector.NodeID{
			Offset:  binary.LittleEndian.Uint64(mem[0:8]),
			TableID: binary.LittleEndian.Uint32(mem[8:12]),
		})
	}
}

func (o *OrderBy) Clone() Operator {
	c := &OrderBy{
		ColPos: o.ColPos, ColTypes: o.ColTypes, OutPos: o.OutPos, Keys: o.Keys,
		schema: o.schema, table: o.table, cols: o.cols, order: o.order, cursor: o.cursor,
	}
	c.SetChildren(o.Children()[0])
	return c
}
