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

package join

import (
	"encoding/binary"
	"math"

	"github.com/kuzudb/graphvec/exec"
	"github.com/kuzudb/graphvec/vector"
)

// HashJoinProbe is the probe side of spec.md §4.5: for each probe row it
// hashes the join keys, walks the build side's hash chain verifying key
// equality, and emits one output row per match (INNER/LEFT) or one
// output row per probe row carrying a matched flag (MARK).
//
// initializeForProbe's null-key filtering (spec.md §4.5 step 5: "probe
// rows with a null key can never match and are skipped immediately") is
// folded into the per-row loop below rather than a separate prepass,
// since a single pass already has every null check it needs.
type HashJoinProbe struct {
	exec.Base

	Build  *HashJoinBuild
	KeyPos []vector.Pos // probe-side key positions, aligned with Build.KeyTypes

	PassPos    []vector.Pos // probe-side columns to carry through to output
	PassTypes  []vector.LogicalType
	OutPassPos []vector.Pos

	PayloadOutPos []vector.Pos // output positions for Build.PayloadTypes, INNER/LEFT only
	MarkOutPos    vector.Pos   // output position for the BOOL matched flag, MARK only

	rs       *vector.ResultSet
	keyVecs  []*vector.Vector
	passVecs []*vector.Vector

	outPass    []*vector.Vector
	outPayload []*vector.Vector
	outMark    *vector.Vector
	outChunk   *vector.Chunk

	n          int
	probeRow   int
	chainIdx   int
	matchedRow bool
}

func NewHashJoinProbe(build *HashJoinBuild, child exec.Operator, keyPos []vector.Pos, passPos []vector.Pos, passTypes []vector.LogicalType, outPassPos []vector.Pos, payloadOutPos []vector.Pos, markOutPos vector.Pos) *HashJoinProbe {
	p := &HashJoinProbe{
		Build: build, KeyPos: keyPos,
		PassPos: passPos, PassTypes: passTypes, OutPassPos: outPassPos,
		PayloadOutPos: payloadOutPos, MarkOutPos: markOutPos,
		chainIdx: -1,
	}
	p.SetChildren(child)
	return p
}

func (p *HashJoinProbe) Kind() exec.OpKind { return exec.KindHashJoinProbe }

func (p *HashJoinProbe) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	if err := p.Children()[0].InitLocalState(rs, ctx); err != nil {
		return err
	}
	p.rs = rs
	outTypes := append(append([]vector.LogicalType(nil), p.PassTypes...), p.Build.PayloadTypes...)
	if p.Build.JoinKind == Mark {
		outTypes = append(append([]vector.LogicalType(nil), p.PassTypes...), vector.BOOL)
	}
	p.outChunk = vector.NewChunk(outTypes, vector.V)
	np := len(p.PassTypes)
	p.outPass = p.outChunk.Vectors[:np]
	for i, pos := range p.OutPassPos {
		rs.SetChunk(pos.ChunkIdx, &vector.Chunk{State: p.outChunk.State, Vectors: []*vector.Vector{p.outPass[i]}})
	}
	if p.Build.JoinKind == Mark {
		p.outMark = p.outChunk.Vectors[np]
		rs.SetChunk(p.MarkOutPos.ChunkIdx, &vector.Chunk{State: p.outChunk.State, Vectors: []*vector.Vector{p.outMark}})
	} else {
		p.outPayload = p.outChunk.Vectors[np:]
		for i, pos := range p.PayloadOutPos {
			rs.SetChunk(pos.ChunkIdx, &vector.Chunk{State: p.outChunk.State, Vectors: []*vector.Vector{p.outPayload[i]}})
		}
	}
	return nil
}

func (p *HashJoinProbe) GetNextTuple(ctx *exec.Context) (bool, error) {
	if err := ctx.CheckInterrupted(); err != nil {
		return false, err
	}
	if p.Build.JoinKind == Mark {
		return p.getNextMark(ctx)
	}
	return p.getNextFanout(ctx)
}

func (p *HashJoinProbe) pullProbeChunk(ctx *exec.Context) (bool, error) {
	more, err := p.Children()[0].GetNextTuple(ctx)
	if err != nil || !more {
		return more, err
	}
	if p.keyVecs == nil {
		p.keyVecs = make([]*vector.Vector, len(p.KeyPos))
		p.passVecs = make([]*vector.Vector, len(p.PassPos))
	}
	for i, pos := range p.KeyPos {
		p.keyVecs[i] = p.rs.Chunks[pos.ChunkIdx].Vectors[pos.VectorIdx]
	}
	for i, pos := range p.PassPos {
		p.passVecs[i] = p.rs.Chunks[pos.ChunkIdx].Vectors[pos.VectorIdx]
	}
	p.n = p.keyVecs[0].State().Size()
	p.probeRow = 0
	p.chainIdx = -1
	p.matchedRow = false
	return true, nil
}

func (p *HashJoinProbe) getNextFanout(ctx *exec.Context) (bool, error) {
	for {
		if p.keyVecs == nil || p.probeRow >= p.n {
			more, err := p.pullProbeChunk(ctx)
			if err != nil || !more {
				return more, err
			}
		}
		m := 0
		for p.probeRow < p.n && m < vector.V {
			if p.chainIdx == -1 {
				if p.anyKeyNull(p.probeRow) {
					if p.Build.JoinKind == Left {
						p.emitRow(m, p.probeRow, -1)
						m++
					}
					p.probeRow++
					continue
				}
				h := hashRow(p.keyVecs, p.Build.KeyTypes, p.probeRow, ctx.Salt)
				head, ok := p.Build.HashTbl.Head(h)
				if !ok {
					if p.Build.JoinKind == Left {
						p.emitRow(m, p.probeRow, -1)
						m++
					}
					p.probeRow++
					continue
				}
				p.chainIdx = head
				p.matchedRow = false
			}
			for p.chainIdx != -1 && m < vector.V {
				cur := p.chainIdx
				nxt, ok := p.Build.HashTbl.Next(cur)
				if ok {
					p.chainIdx = nxt
				} else {
					p.chainIdx = -1
				}
				if keysEqual(p.Build.Table, cur, p.Build.KeyCols, p.Build.KeyTypes, p.keyVecs, p.probeRow) {
					p.emitRow(m, p.probeRow, cur)
					m++
					p.matchedRow = true
				}
			}
			if p.chainIdx == -1 {
				if p.Build.JoinKind == Left && !p.matchedRow {
					p.emitRow(m, p.probeRow, -1)
					m++
				}
				p.probeRow++
			}
		}
		if m > 0 {
			p.outChunk.State.SetUnfiltered(m)
			return true, nil
		}
	}
}

func (p *HashJoinProbe) getNextMark(ctx *exec.Context) (bool, error) {
	more, err := p.pullProbeChunk(ctx)
	if err != nil || !more {
		return more, err
	}
	for row := 0; row < p.n; row++ {
		matched := false
		if !p.anyKeyNull(row) {
			h := hashRow(p.keyVecs, p.Build.KeyTypes, row, ctx.Salt)
			if head, ok := p.Build.HashTbl.Head(h); ok {
				cur := head
				for {
					if keysEqual(p.Build.Table, cur, p.Build.KeyCols, p.Build.KeyTypes, p.keyVecs, row) {
						matched = true
						break
					}
					nxt, ok := p.Build.HashTbl.Next(cur)
					if !ok {
						break
					}
					cur = nxt
				}
			}
		}
		for i, src := range p.passVecs {
			vector.CopyRow(p.outPass[i], row, src, row)
		}
		p.outMark.SetBool(row, matched)
	}
	p.outChunk.State.SetUnfiltered(p.n)
	return true, nil
}

func (p *HashJoinProbe) anyKeyNull(row int) bool {
	for _, v := range p.keyVecs {
		if v.IsNull(row) {
			return true
		}
	}
	return false
}

// emitRow writes output row outRow: the probe row's pass-through columns
// plus, for a real match (buildRow >= 0), the build side's payload
// columns; an unmatched LEFT row (buildRow == -1) leaves the payload
// columns null.
func (p *HashJoinProbe) emitRow(outRow, probeRow, buildRow int) {
	for i, src := range p.passVecs {
		vector.CopyRow(p.outPass[i], outRow, src, probeRow)
	}
	for i := range p.outPayload {
		if buildRow < 0 {
			p.outPayload[i].SetNull(outRow, true)
			continue
		}
		p.scanPayloadCell(buildRow, i, outRow)
	}
}

// scanPayloadCell decodes payload column i of the build row's raw bytes
// (written by rowtable.Table.AppendRow's writeFlat/string-overflow
// encoding) into the matching output vector at outRow.
func (p *HashJoinProbe) scanPayloadCell(buildRow, payloadIdx, outRow int) {
	col := p.Build.PayloadCols[payloadIdx]
	dst := p.outPayload[payloadIdx]
	switch p.Build.PayloadTypes[payloadIdx] {
	case vector.STRING, vector.BLOB:
		dst.SetString(outRow, p.Build.Table.StringColumn(buildRow, col))
	case vector.BOOL:
		dst.SetBool(outRow, p.Build.Table.Column(buildRow, col)[0] != 0)
	case vector.INT32:
		dst.SetInt32(outRow, int32(binary.LittleEndian.Uint32(p.Build.Table.Column(buildRow, col))))
	case vector.INT64:
		dst.SetInt64(outRow, int64(binary.LittleEndian.Uint64(p.Build.Table.Column(buildRow, col))))
	case vector.DOUBLE:
		dst.SetDouble(outRow, math.Float64frombits(binary.LittleEndian.Uint64(p.Build.Table.Column(buildRow, col))))
	case vector.INTERNAL_ID, vector.NODE, vector.REL:
		mem := p.Build.Table.Column(buildRow, col)
		dst.SetNodeID(outRow, vector.NodeID{
			Offset:  binary.LittleEndian.Uint64(mem[0:8]),
			TableID: binary.LittleEndian.Uint32(mem[8:12]),
		})
	}
}

func (p *HashJoinProbe) Clone() exec.Operator {
	c := &HashJoinProbe{
		Build: p.Build, KeyPos: p.KeyPos,
		PassPos: p.PassPos, PassTypes: p.PassTypes, OutPassPos: p.OutPassPos,
		PayloadOutPos: p.PayloadOutPos, MarkOutPos: p.MarkOutPos,
		chainIdx: -1,
	}
	c.SetChildren(p.Children()[0].Clone())
	return c
}
