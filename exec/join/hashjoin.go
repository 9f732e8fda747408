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

// Package join implements the parallel hash-join core of spec.md §4.5:
// a build side that materializes its input into a rowtable.Table and
// indexes it with a rowtable.HashTable, and a probe side that walks the
// resulting chains, with an optional semi-mask wired back to the probe
// scan for Sideways Information Passing.
package join

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/kuzudb/graphvec/exec"
	"github.com/kuzudb/graphvec/exec/scan"
	"github.com/kuzudb/graphvec/internal/hashkey"
	"github.com/kuzudb/graphvec/rowtable"
	"github.com/kuzudb/graphvec/vector"
)

// JoinKind selects hash-join semantics (spec.md §4.5).
type JoinKind int

const (
	Inner JoinKind = iota
	Left
	Mark
)

// HashJoinBuild is the build-side Breaker (spec.md §4.2 "Pipeline
// split"): it drains its child to completion into a factorized
// rowtable.Table, then builds the open-addressed hash index over it.
// HashJoinProbe reads Table/HashTable/Schema straight off this struct
// after Build returns, so build and probe share one HashJoinBuild value.
type HashJoinBuild struct {
	exec.Base

	JoinKind     JoinKind
	KeyPos       []vector.Pos
	KeyTypes     []vector.LogicalType
	PayloadPos   []vector.Pos
	PayloadTypes []vector.LogicalType

	// Mask/MaskerIndex wire this build side's keys into a probe-side
	// SemiMask (spec.md §4.6): every node-ID-typed key marks the
	// corresponding offset as present for MaskerIndex as it is appended.
	Mask        *scan.SemiMask
	MaskerIndex int

	Schema      *rowtable.Schema
	Table       *rowtable.Table
	HashTbl     *rowtable.HashTable
	HashCol     int
	PrevCol     int
	KeyCols     []int
	PayloadCols []int
}

// NewHashJoinBuild constructs a build-side operator over child.
func NewHashJoinBuild(kind JoinKind, child exec.Operator, keyPos []vector.Pos, keyTypes []vector.LogicalType, payloadPos []vector.Pos, payloadTypes []vector.LogicalType) *HashJoinBuild {
	b := &HashJoinBuild{JoinKind: kind, KeyPos: keyPos, KeyTypes: keyTypes, PayloadPos: payloadPos, PayloadTypes: payloadTypes}
	b.SetChildren(child)
	return b
}

// Kind implements exec.Operator.
func (b *HashJoinBuild) Kind() exec.OpKind { return exec.KindHashJoinBuild }

// InitLocalState/GetNextTuple are never called by RunPipeline's normal
// pull loop: buildBreakers calls Build instead, and HashJoinProbe reads
// Table/HashTbl directly afterwards. They exist only so HashJoinBuild
// itself satisfies exec.Operator and can sit in the tree buildBreakers
// walks looking for Breakers.
func (b *HashJoinBuild) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	return nil
}

func (b *HashJoinBuild) GetNextTuple(ctx *exec.Context) (bool, error) { return false, nil }

// Clone returns the same pointer: the build side's Table/HashTable are
// shared by every worker of the pipeline that probes it, never copied.
func (b *HashJoinBuild) Clone() exec.Operator { return b }

// Build implements exec.Breaker: it drains the build child through a
// dedicated appender sink, then builds the hash index (spec.md §4.5
// steps 1-4: "scan, compute hash, append to table, insert into slot
// array").
func (b *HashJoinBuild) Build(ctx *exec.Context, numWorkers int) error {
	cols := make([]rowtable.ColumnDesc, 0, len(b.KeyPos)+len(b.PayloadPos))
	b.KeyCols = make([]int, len(b.KeyPos))
	for i, p := range b.KeyPos {
		b.KeyCols[i] = len(cols)
		cols = append(cols, rowtable.ColumnDesc{
			Name: fmt.Sprintf("key%d", i), Type: b.KeyTypes[i], IsFlat: true,
			SourceChunkIdx: p.ChunkIdx, SourceVectorIdx: p.VectorIdx,
		})
	}
	payloadCols := make([]int, len(b.PayloadPos))
	for i, p := range b.PayloadPos {
		payloadCols[i] = len(cols)
		cols = append(cols, rowtable.ColumnDesc{
			Name: fmt.Sprintf("payload%d", i), Type: b.PayloadTypes[i], IsFlat: true,
			SourceChunkIdx: p.ChunkIdx, SourceVectorIdx: p.VectorIdx,
		})
	}
	b.PayloadCols = payloadCols
	schema := rowtable.NewSchema(cols)
	b.HashCol = schema.AppendDerived("__hash", 8)
	b.PrevCol = schema.AppendDerived("__prev", 8)
	b.Schema = schema
	b.Table = rowtable.New(schema)

	appender := &buildAppender{
		keyPos: b.KeyPos, keyTypes: b.KeyTypes,
		hashCol: b.HashCol, table: b.Table, salt: ctx.Salt,
		mask: b.Mask, maskerIndex: b.MaskerIndex,
	}
	appender.SetChildren(b.Children()[0])
	if err := exec.RunPipeline(ctx, appender, numWorkers); err != nil {
		return err
	}

	b.Table.Finalize()
	n := b.Table.NumTuples()
	b.HashTbl = rowtable.NewHashTable(b.Table, b.HashCol, b.PrevCol, n)
	for i := 0; i < n; i++ {
		b.HashTbl.Insert(i)
	}
	return nil
}

// buildAppender is the internal sink operator that drains the build
// child and materializes each row into the shared Table, one per worker
// clone, with AppendRow's own locking making concurrent appends safe
// (spec.md §4.5: "build scans are worker-parallel").
type buildAppender struct {
	exec.Base

	keyPos      []vector.Pos
	keyTypes    []vector.LogicalType
	hashCol     int
	table       *rowtable.Table
	salt        hashkey.QuerySalt
	mask        *scan.SemiMask
	maskerIndex int

	rs      *vector.ResultSet
	keyVecs []*vector.Vector
}

func (a *buildAppender) Kind() exec.OpKind { return exec.KindHashJoinBuild }

func (a *buildAppender) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	if err := a.Children()[0].InitLocalState(rs, ctx); err != nil {
		return err
	}
	a.rs = rs
	return nil
}

func (a *buildAppender) GetNextTuple(ctx *exec.Context) (bool, error) {
	more, err := a.Children()[0].GetNextTuple(ctx)
	if err != nil || !more {
		return more, err
	}
	if a.keyVecs == nil {
		a.keyVecs = make([]*vector.Vector, len(a.keyPos))
		for i, p := range a.keyPos {
			a.keyVecs[i] = a.rs.Chunks[p.ChunkIdx].Vectors[p.VectorIdx]
		}
	}
	n := a.keyVecs[0].State().Size()
	for row := 0; row < n; row++ {
		idx := a.table.AppendRow(a.rs, row)
		h := hashRow(a.keyVecs, a.keyTypes, row, a.salt)
		a.table.SetColumnUint64(idx, a.hashCol, h)
		if a.mask != nil && len(a.keyVecs) == 1 {
			if kt := a.keyTypes[0]; kt == vector.INTERNAL_ID || kt == vector.NODE || kt == vector.REL {
				a.mask.Mark(a.keyVecs[0].GetNodeID(row).Offset, a.maskerIndex)
			}
		}
	}
	return true, nil
}

func (a *buildAppender) Clone() exec.Operator {
	c := &buildAppender{
		keyPos: a.keyPos, keyTypes: a.keyTypes,
		hashCol: a.hashCol, table: a.table, salt: a.salt,
		mask: a.mask, maskerIndex: a.maskerIndex,
	}
	c.SetChildren(a.Children()[0].Clone())
	return c
}

// hashRow combines the per-column key hashes of spec.md §4.5 step 3:
// "hash = Murmur64(k1) XOR Murmur64(k2) XOR ...".
func hashRow(vecs []*vector.Vector, types []vector.LogicalType, row int, salt hashkey.QuerySalt) uint64 {
	hashes := make([]uint64, len(vecs))
	for i, v := range vecs {
		hashes[i] = hashColumn(v, types[i], row, salt)
	}
	return hashkey.Combine(hashes...)
}

func hashColumn(v *vector.Vector, t vector.LogicalType, row int, salt hashkey.QuerySalt) uint64 {
	switch t {
	case vector.STRING, vector.BLOB:
		return salt.Bytes(v.GetString(row))
	case vector.INTERNAL_ID, vector.NODE, vector.REL:
		id := v.GetNodeID(row)
		return hashkey.NodeID(id.Offset, id.TableID)
	case vector.BOOL:
		if v.GetBool(row) {
			return hashkey.Uint64(1)
		}
		return hashkey.Uint64(0)
	case vector.INT32:
		return hashkey.Uint64(uint64(uint32(v.GetInt32(row))))
	case vector.INT64:
		return hashkey.Uint64(uint64(v.GetInt64(row)))
	case vector.DOUBLE:
		return hashkey.Uint64(math.Float64bits(v.GetDouble(row)))
	default:
		return 0
	}
}

// rawColumnBytes encodes a probe-side scalar value the same way
// writeFlat in rowtable.Table lays out build-side row bytes, so
// keysEqual can compare against the build row's raw column bytes
// without decoding them back into Go values.
func rawColumnBytes(v *vector.Vector, t vector.LogicalType, row int) []byte {
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

// keysEqual compares a build-side row's key columns against a probe
// row's key vectors, the post-hash-match verification step spec.md
// §4.5 step 6 requires ("chains are walked and keys compared to rule
// out hash collisions").
func keysEqual(build *rowtable.Table, buildRow int, keyCols []int, keyTypes []vector.LogicalType, probeVecs []*vector.Vector, probeRow int) bool {
	for i, col := range keyCols {
		if keyTypes[i] == vector.STRING || keyTypes[i] == vector.BLOB {
			if !bytes.Equal(build.StringColumn(buildRow, col), probeVecs[i].GetString(probeRow)) {
				return false
			}
			continue
		}
		bcol := build.Column(buildRow, col)
		pcol := rawColumnBytes(probeVecs[i], keyTypes[i], probeRow)
		if !bytes.Equal(bcol[:len(pcol)], pcol) {
			return false
		}
	}
	return true
}
