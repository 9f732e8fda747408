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
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/kuzudb/graphvec/exec"
	"github.com/kuzudb/graphvec/internal/hashkey"
	"github.com/kuzudb/graphvec/rowtable"
	"github.com/kuzudb/graphvec/vector"
)

// HashAggregate is the GROUP BY core of spec.md §4.7: every worker groups
// its own input into a local Go map of groups keyed by hash, then at
// sub-pipeline end merges its local groups into the operator's single
// global rowtable.Table + rowtable.HashTable (the same structures the
// hash join build side uses) under the shared-state lock.
type HashAggregate struct {
	exec.Base

	KeyPos    []vector.Pos
	KeyTypes  []vector.LogicalType
	Specs     []FuncSpec
	KeyOutPos []vector.Pos

	mu      sync.Mutex
	schema  *rowtable.Schema
	table   *rowtable.Table
	hashTbl *rowtable.HashTable
	hashCol int
	prevCol int
	keyCols []int
	states  [][]AggregateState

	scanCursor int
	outChunk   *vector.Chunk
	outKeyVecs []*vector.Vector
	outAggVecs []*vector.Vector
}

func NewHashAggregate(child exec.Operator, keyPos []vector.Pos, keyTypes []vector.LogicalType, specs []FuncSpec, keyOutPos []vector.Pos) *HashAggregate {
	h := &HashAggregate{KeyPos: keyPos, KeyTypes: keyTypes, Specs: specs, KeyOutPos: keyOutPos}
	h.SetChildren(child)
	return h
}

func (h *HashAggregate) Kind() exec.OpKind { return exec.KindHashAggregate }

func (h *HashAggregate) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	keyTypes := h.KeyTypes
	outTypes := make([]vector.LogicalType, len(h.Specs))
	for i, s := range h.Specs {
		outTypes[i] = s.OutType
	}
	h.outChunk = vector.NewChunk(append(append([]vector.LogicalType(nil), keyTypes...), outTypes...), vector.V)
	h.outKeyVecs = h.outChunk.Vectors[:len(keyTypes)]
	h.outAggVecs = h.outChunk.Vectors[len(keyTypes):]
	// Outputs that share a ChunkIdx go into one chunk, each at its VectorIdx.
	chunks := map[uint32]*vector.Chunk{}
	place := func(pos vector.Pos, v *vector.Vector) {
		c := chunks[pos.ChunkIdx]
		if c == nil {
			c = &vector.Chunk{State: h.outChunk.State}
			chunks[pos.ChunkIdx] = c
			rs.SetChunk(pos.ChunkIdx, c)
		}
		for uint32(len(c.Vectors)) <= pos.VectorIdx {
			c.Vectors = append(c.Vectors, nil)
		}
		c.Vectors[pos.VectorIdx] = v
	}
	for i, pos := range h.KeyOutPos {
		place(pos, h.outKeyVecs[i])
	}
	for i, s := range h.Specs {
		place(s.OutPos, h.outAggVecs[i])
	}
	return nil
}

// GetNextTuple scans the finished global table vector.V rows at a time,
// finalizing each group's aggregate states as it goes. Build must already
// have run.
func (h *HashAggregate) GetNextTuple(ctx *exec.Context) (bool, error) {
	if err := ctx.CheckInterrupted(); err != nil {
		return false, err
	}
	total := h.table.NumTuples()
	if h.scanCursor >= total {
		return false, nil
	}
	n := total - h.scanCursor
	if n > vector.V {
		n = vector.V
	}
	h.table.Scan(h.outKeyVecs, h.scanCursor, n, h.keyCols)
	for i := 0; i < n; i++ {
		Finalize(h.states[h.scanCursor+i], h.Specs, h.outAggVecs, i)
	}
	h.scanCursor += n
	h.outChunk.State.SetUnfiltered(n)
	return true, nil
}

func (h *HashAggregate) Clone() exec.Operator { return h }

// Build drains the child through per-worker local aggregation sinks, then
// partition-merges every worker's local groups into the shared table
// (spec.md §4.7: "on sub-pipeline end, workers partition-merge into the
// global table").
func (h *HashAggregate) Build(ctx *exec.Context, numWorkers int) error {
	// SourceChunkIdx/VectorIdx are 0,i rather than the real plan-assigned
	// KeyPos: AppendRow is only ever called here with the synthetic
	// single-chunk ResultSet mergeGroup builds from a flushed local
	// group's decoded key values (see materializeKeyRow), never with the
	// live upstream ResultSet, so the schema only needs to agree with
	// that synthetic layout.
	cols := make([]rowtable.ColumnDesc, len(h.KeyPos))
	h.keyCols = make([]int, len(h.KeyPos))
	for i := range h.KeyPos {
		h.keyCols[i] = i
		cols[i] = rowtable.ColumnDesc{
			Name: fmt.Sprintf("key%d", i), Type: h.KeyTypes[i], IsFlat: true,
			SourceChunkIdx: 0, SourceVectorIdx: uint32(i),
		}
	}
	h.schema = rowtable.NewSchema(cols)
	h.hashCol = h.schema.AppendDerived("__hash", 8)
	h.prevCol = h.schema.AppendDerived("__prev", 8)
	h.table = rowtable.New(h.schema)
	h.hashTbl = rowtable.NewHashTable(h.table, h.hashCol, h.prevCol, 0)
	h.states = nil

	sink := &hashSink{agg: h}
	sink.SetChildren(h.Children()[0])
	return exec.RunPipeline(ctx, sink, numWorkers)
}

// mergeGroup finds or creates the group for keyVecs[*][row] in the shared
// table under h.mu, returning its state slice for Update to mutate. Called
// only from the merge step (never concurrently with the scan side), so
// h.mu serializes every worker's merge.
func (h *HashAggregate) mergeGroup(keyVecs []*vector.Vector, row int, hash uint64) []AggregateState {
	h.mu.Lock()
	defer h.mu.Unlock()
	if head, ok := h.hashTbl.Head(hash); ok {
		cur := head
		for {
			if groupKeysEqual(h.table, cur, h.keyCols, h.KeyTypes, keyVecs, row) {
				return h.states[cur]
			}
			nxt, ok := h.hashTbl.Next(cur)
			if !ok {
				break
			}
			cur = nxt
		}
	}
	idx := h.table.AppendRow(&vector.ResultSet{Chunks: []*vector.Chunk{{State: keyVecs[0].State(), Vectors: keyVecs}}}, row)
	h.table.SetColumnUint64(idx, h.hashCol, hash)
	h.hashTbl.Insert(idx)
	h.states = append(h.states, NewAggregateStates(h.Specs))
	return h.states[idx]
}

// hashSink is the per-worker local aggregation operator: it groups rows
// into its own scratch map first (cheap local grouping with no lock
// traffic), then at exhaustion folds every local group once into the
// shared table via mergeGroup.
type hashSink struct {
	exec.Base

	agg *HashAggregate

	rs      *vector.ResultSet
	keyVecs []*vector.Vector
	inVecs  []*vector.Vector

	local map[uint64][]localGroup
}

type localGroup struct {
	keyVals []any
	state   []AggregateState
}

func (s *hashSink) Kind() exec.OpKind { return exec.KindHashAggregate }

func (s *hashSink) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	if err := s.Children()[0].InitLocalState(rs, ctx); err != nil {
		return err
	}
	s.rs = rs
	s.local = make(map[uint64][]localGroup)
	return nil
}

func (s *hashSink) GetNextTuple(ctx *exec.Context) (bool, error) {
	more, err := s.Children()[0].GetNextTuple(ctx)
	if err != nil || !more {
		if !more && err == nil {
			s.flush(ctx)
		}
		return more, err
	}
	if s.keyVecs == nil {
		s.keyVecs = make([]*vector.Vector, len(s.agg.KeyPos))
		s.inVecs = make([]*vector.Vector, len(s.agg.Specs))
	}
	for i, pos := range s.agg.KeyPos {
		s.keyVecs[i] = s.rs.Chunks[pos.ChunkIdx].Vectors[pos.VectorIdx]
	}
	for i, spec := range s.agg.Specs {
		if spec.InPos == vector.Invalid {
			s.inVecs[i] = nil
			continue
		}
		s.inVecs[i] = s.rs.Chunks[spec.InPos.ChunkIdx].Vectors[spec.InPos.VectorIdx]
	}
	n := s.keyVecs[0].State().Size()
	for row := 0; row < n; row++ {
		h := groupHash(s.keyVecs, s.agg.KeyTypes, row, ctx.Salt)
		g := s.findOrCreateLocal(h, row)
		var distinctHashVal uint64
		for i, spec := range s.agg.Specs {
			if spec.Op == OpCountDistinct && s.inVecs[i] != nil {
				distinctHashVal = distinctHash(s.inVecs[i], spec.InType, row, ctx.Salt)
			}
		}
		Update(g.state, s.agg.Specs, s.inVecs, row, distinctHashVal)
	}
	return true, nil
}

func (s *hashSink) findOrCreateLocal(hash uint64, row int) *localGroup {
	bucket := s.local[hash]
	for i := range bucket {
		if localKeyEqual(bucket[i].keyVals, s.keyVecs, s.agg.KeyTypes, row) {
			return &bucket[i]
		}
	}
	vals := make([]any, len(s.keyVecs))
	for i, v := range s.keyVecs {
		vals[i] = typedCellValue(v, s.agg.KeyTypes[i], row)
	}
	bucket = append(bucket, localGroup{keyVals: vals, state: NewAggregateStates(s.agg.Specs)})
	s.local[hash] = bucket
	return &bucket[len(bucket)-1]
}

// flush folds every local group into the shared table exactly once,
// re-deriving a single-row vector view per key column so mergeGroup can
// use the same groupKeysEqual/AppendRow machinery on every group.
func (s *hashSink) flush(ctx *exec.Context) {
	for hash, bucket := range s.local {
		for _, g := range bucket {
			keyRow := materializeKeyRow(g.keyVals, s.agg.KeyTypes)
			dst := s.agg.mergeGroup(keyRow, 0, hash)
			s.agg.mu.Lock()
			Combine(dst, g.state, s.agg.Specs)
			s.agg.mu.Unlock()
		}
	}
}

func (s *hashSink) Clone() exec.Operator {
	c := &hashSink{agg: s.agg}
	c.SetChildren(s.Children()[0].Clone())
	return c
}

// --- group-key helpers -------------------------------------------------

func groupHash(vecs []*vector.Vector, types []vector.LogicalType, row int, salt hashkey.QuerySalt) uint64 {
	hashes := make([]uint64, len(vecs))
	for i, v := range vecs {
		hashes[i] = distinctHash(v, types[i], row, salt)
	}
	return hashkey.Combine(hashes...)
}

func typedCellValue(v *vector.Vector, t vector.LogicalType, row int) any {
	switch t {
	case vector.BOOL:
		return v.GetBool(row)
	case vector.INT32:
		return v.GetInt32(row)
	case vector.INT64:
		return v.GetInt64(row)
	case vector.DOUBLE:
		return v.GetDouble(row)
	case vector.STRING, vector.BLOB:
		return append([]byte(nil), v.GetString(row)...)
	case vector.INTERNAL_ID, vector.NODE, vector.REL:
		return v.GetNodeID(row)
	default:
		return nil
	}
}

func localKeyEqual(vals []any, vecs []*vector.Vector, types []vector.LogicalType, row int) bool {
	for i, val := range vals {
		if typedCellValue(vecs[i], types[i], row) != val {
			// []byte is not comparable with !=; STRING/BLOB handled below
			if s1, ok := val.([]byte); ok {
				s2, _ := typedCellValue(vecs[i], types[i], row).([]byte)
				if bytes.Equal(s1, s2) {
					continue
				}
			}
			return false
		}
	}
	return true
}

// materializeKeyRow builds a one-row-per-vector set of single-value
// vectors from decoded key values, so mergeGroup can treat a flushed
// local group exactly like a freshly scanned input row.
func materializeKeyRow(vals []any, types []vector.LogicalType) []*vector.Vector {
	st := vector.NewFlatState(0)
	out := make([]*vector.Vector, len(vals))
	for i, t := range types {
		v := vector.New(t, st)
		switch val := vals[i].(type) {
		case bool:
			v.SetBool(0, val)
		case int32:
			v.SetInt32(0, val)
		case int64:
			v.SetInt64(0, val)
		case float64:
			v.SetDouble(0, val)
		case []byte:
			v.SetString(0, val)
		case vector.NodeID:
			v.SetNodeID(0, val)
		}
		out[i] = v
	}
	return out
}

func groupKeysEqual(table *rowtable.Table, buildRow int, keyCols []int, keyTypes []vector.LogicalType, probeVecs []*vector.Vector, probeRow int) bool {
	for i, col := range keyCols {
		if keyTypes[i] == vector.STRING || keyTypes[i] == vector.BLOB {
			if !bytes.Equal(table.StringColumn(buildRow, col), probeVecs[i].GetString(probeRow)) {
				return false
			}
			continue
		}
		bcol := table.Column(buildRow, col)
		pcol := rawCellBytes(probeVecs[i], keyTypes[i], probeRow)
		if !bytes.Equal(bcol[:len(pcol)], pcol) {
			return false
		}
	}
	return true
}

func rawCellBytes(v *vector.Vector, t vector.LogicalType, row int) []byte {
	switch t {
	case vector.BOOL:
		if v.GetBool(row) {
			return []byte{1}
		}
		return []byte{0}
	case vector.INT32:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(v.GetInt32(row)))
		return b[:]
	case vector.INT64:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v.GetInt64(row)))
		return b[:]
	case vector.DOUBLE:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.GetDouble(row)))
		return b[:]
	case vector.INTERNAL_ID, vector.NODE, vector.REL:
		id := v.GetNodeID(row)
		var b [12]byte
		binary.LittleEndian.PutUint64(b[0:8], id.Offset)
		binary.LittleEndian.PutUint32(b[8:12], id.TableID)
		return b[:]
	default:
		return nil
	}
}
