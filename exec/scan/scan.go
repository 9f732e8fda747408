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

package scan

import (
	"github.com/kuzudb/graphvec/catalog"
	"github.com/kuzudb/graphvec/exec"
	"github.com/kuzudb/graphvec/storage"
	"github.com/kuzudb/graphvec/vector"
)

// ScanNodeID is the leaf source operator of spec.md §4.6: it produces
// chunks of up to vector.V live node IDs from one table, skipping
// deleted offsets and, when an upstream hash join has registered one,
// rows a SemiMask proves are absent from the probe.
type ScanNodeID struct {
	exec.Base

	TableID uint32
	OutPos  vector.Pos
	Mask    *SemiMask // nil when no SIP applies

	shared *exec.SharedScanState // shared across every worker clone

	nt     storage.NodeTable
	out    *vector.Chunk
	morsel exec.Morsel
	cursor uint64
	have   bool
}

// NewScanNodeID constructs the prototype operator; Clone produces the
// per-worker copies RunPipeline drives. shared must be built (via
// NewSharedNodeScan) once per query, after MaxOffset is known.
func NewScanNodeID(tableID uint32, outPos vector.Pos, shared *exec.SharedScanState, mask *SemiMask) *ScanNodeID {
	return &ScanNodeID{TableID: tableID, OutPos: outPos, shared: shared, Mask: mask}
}

// NewSharedNodeScan builds the SharedScanState for a node-table scan,
// wiring mask in as the MorselMask so morsels the mask proves empty are
// skipped entirely (spec.md §4.3, §4.6).
func NewSharedNodeScan(maxOffset uint64, morselSize uint64, mask *SemiMask) *exec.SharedScanState {
	var mm exec.MorselMask
	if mask != nil {
		mm = mask
	}
	return exec.NewSharedScanState(maxOffset, morselSize, mm)
}

func (s *ScanNodeID) Kind() exec.OpKind { return exec.KindScanNodeID }

func (s *ScanNodeID) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	nt, err := ctx.Tables.NodeTable(s.TableID)
	if err != nil {
		return exec.Wrap(exec.StorageError, err, "scan node table %d", s.TableID)
	}
	s.nt = nt
	s.out = vector.NewChunk([]vector.LogicalType{vector.INTERNAL_ID}, vector.V)
	rs.SetChunk(s.OutPos.ChunkIdx, s.out)
	return nil
}

func (s *ScanNodeID) GetNextTuple(ctx *exec.Context) (bool, error) {
	if err := ctx.CheckInterrupted(); err != nil {
		return false, err
	}
	for {
		if !s.have || s.cursor >= s.morsel.End {
			m := s.shared.GetNextRangeToRead()
			if !m.IsValid() {
				return false, nil
			}
			s.morsel = m
			s.cursor = m.Start
			s.have = true
		}

		idVec := s.out.Vectors[0]
		n := 0
		for s.cursor < s.morsel.End && n < vector.V {
			off := s.cursor
			s.cursor++
			if s.nt.IsDeleted(ctx.Tx, off) {
				continue
			}
			if s.Mask != nil && !s.Mask.Selected(off) {
				continue
			}
			idVec.SetNodeID(n, vector.NodeID{Offset: off, TableID: s.TableID})
			n++
		}
		if n == 0 {
			continue // whole morsel filtered out; claim the next one
		}
		s.out.State.SetUnfiltered(n)
		return true, nil
	}
}

func (s *ScanNodeID) Clone() exec.Operator {
	return &ScanNodeID{TableID: s.TableID, OutPos: s.OutPos, Mask: s.Mask, shared: s.shared}
}

// ScanNodeProperty reads a fixed list of properties for the node IDs
// already materialized in an input vector (spec.md §4.6: node/rel
// property scans follow the ID scan in the same pipeline, resolving
// columns through the NodeTable.Read contract). PropTypes is resolved
// once at plan time from the catalog, so InitLocalState never needs to
// consult it again.
type ScanNodeProperty struct {
	exec.Base

	TableID   uint32
	InPos     vector.Pos
	PropIDs   []catalog.PropertyID
	PropTypes []vector.LogicalType
	OutPos    []vector.Pos

	nt    storage.NodeTable
	inVec *vector.Vector
	out   []*vector.Vector
}

func NewScanNodeProperty(tableID uint32, inPos vector.Pos, propIDs []catalog.PropertyID, propTypes []vector.LogicalType, outPos []vector.Pos) *ScanNodeProperty {
	return &ScanNodeProperty{TableID: tableID, InPos: inPos, PropIDs: propIDs, PropTypes: propTypes, OutPos: outPos}
}

func (s *ScanNodeProperty) Kind() exec.OpKind { return exec.KindScanNodeProperty }

func (s *ScanNodeProperty) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	if err := s.Children()[0].InitLocalState(rs, ctx); err != nil {
		return err
	}
	nt, err := ctx.Tables.NodeTable(s.TableID)
	if err != nil {
		return exec.Wrap(exec.StorageError, err, "scan node property table %d", s.TableID)
	}
	s.nt = nt
	inChunk := rs.Chunks[s.InPos.ChunkIdx]
	s.inVec = inChunk.Vectors[s.InPos.VectorIdx]
	s.out = make([]*vector.Vector, len(s.PropIDs))
	for i, t := range s.PropTypes {
		v := vector.New(t, inChunk.State)
		s.out[i] = v
		rs.SetChunk(s.OutPos[i].ChunkIdx, &vector.Chunk{State: inChunk.State, Vectors: []*vector.Vector{v}})
	}
	return nil
}

func (s *ScanNodeProperty) GetNextTuple(ctx *exec.Context) (bool, error) {
	if err := ctx.CheckInterrupted(); err != nil {
		return false, err
	}
	more, err := s.Children()[0].GetNextTuple(ctx)
	if err != nil || !more {
		return more, err
	}
	if err := s.nt.Read(ctx.Tx, s.inVec, s.PropIDs, s.out); err != nil {
		return false, exec.Wrap(exec.StorageError, err, "read node properties")
	}
	return true, nil
}

func (s *ScanNodeProperty) Clone() exec.Operator {
	c := &ScanNodeProperty{TableID: s.TableID, InPos: s.InPos, PropIDs: s.PropIDs, PropTypes: s.PropTypes, OutPos: s.OutPos}
	c.SetChildren(cloneChildren(s.Children())...)
	return c
}

// ScanRelProperty reads relationship-table properties, dispatching to the
// correct storage.RelTable by the relationship's own table ID (spec.md
// §4.6: "multi-label dispatch by tableID" for rel scans over multiple
// rel tables sharing a query).
type ScanRelProperty struct {
	exec.Base

	InPos     vector.Pos // vector of vector.RelID
	PropIDs   []catalog.PropertyID
	PropTypes []vector.LogicalType
	OutPos    []vector.Pos

	tables storage.TableProvider
	inVec  *vector.Vector
	out    []*vector.Vector
}

func NewScanRelProperty(inPos vector.Pos, propIDs []catalog.PropertyID, propTypes []vector.LogicalType, outPos []vector.Pos) *ScanRelProperty {
	return &ScanRelProperty{InPos: inPos, PropIDs: propIDs, PropTypes: propTypes, OutPos: outPos}
}

func (s *ScanRelProperty) Kind() exec.OpKind { return exec.KindScanRelProperty }

func (s *ScanRelProperty) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	if err := s.Children()[0].InitLocalState(rs, ctx); err != nil {
		return err
	}
	s.tables = ctx.Tables
	inChunk := rs.Chunks[s.InPos.ChunkIdx]
	s.inVec = inChunk.Vectors[s.InPos.VectorIdx]
	s.out = make([]*vector.Vector, len(s.PropIDs))
	for i, t := range s.PropTypes {
		v := vector.New(t, inChunk.State)
		s.out[i] = v
		rs.SetChunk(s.OutPos[i].ChunkIdx, &vector.Chunk{State: inChunk.State, Vectors: []*vector.Vector{v}})
	}
	return nil
}

func (s *ScanRelProperty) GetNextTuple(ctx *exec.Context) (bool, error) {
	if err := ctx.CheckInterrupted(); err != nil {
		return false, err
	}
	more, err := s.Children()[0].GetNextTuple(ctx)
	if err != nil || !more {
		return more, err
	}
	n := s.inVec.State().Size()

	// Multi-label dispatch: group logical rows by the rel table their ID
	// belongs to, since a query may union rel tables with distinct
	// property sets into one RelID vector (spec.md §4.6).
	byTable := make(map[uint32][]uint32)
	for row := 0; row < n; row++ {
		id := s.inVec.GetNodeID(row)
		byTable[id.TableID] = append(byTable[id.TableID], uint32(row))
	}

	for tableID, rows := range byTable {
		rt, err := s.tables.RelTable(tableID)
		if err != nil {
			return false, exec.Wrap(exec.StorageError, err, "rel table %d", tableID)
		}
		subState := vector.NewUnfilteredState(0)
		subState.SetFiltered(rows)
		subVec := vector.NewView(s.inVec, subState)
		subOut := make([]*vector.Vector, len(s.out))
		for i, dst := range s.out {
			subOut[i] = vector.NewView(dst, subState)
		}
		if err := rt.Read(ctx.Tx, subVec, s.PropIDs, subOut); err != nil {
			return false, exec.Wrap(exec.StorageError, err, "read rel properties")
		}
	}
	return true, nil
}

func (s *ScanRelProperty) Clone() exec.Operator {
	c := &ScanRelProperty{InPos: s.InPos, PropIDs: s.PropIDs, PropTypes: s.PropTypes, OutPos: s.OutPos}
	c.SetChildren(cloneChildren(s.Children())...)
	return c
}

func cloneChildren(children []exec.Operator) []exec.Operator {
	out := make([]exec.Operator, len(children))
	for i, c := range children {
		out[i] = c.Clone()
	}
	return out
}
