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
	"github.com/kuzudb/graphvec/exec"
	"github.com/kuzudb/graphvec/vector"
)

// SemiMasker is the row-level filtering half of Sideways Information
// Passing (spec.md §4.6): SharedScanState's AnySelected already lets a
// scan skip whole morsels a semi-mask rules out, but a morsel can still
// contain a mix of selected and unselected offsets, so SemiMasker
// filters those down to exactly the rows every registered masker voted
// for. The plan mapper inserts it wherever SIP is requested (spec.md
// §4.10), directly above the scan whose ID column the mask indexes.
type SemiMasker struct {
	exec.Base

	Mask     *SemiMask
	IDPos    vector.Pos // the node/rel-ID column the mask's offsets index
	ChunkIdx uint32     // the chunk whose shared State is filtered in place

	rs *vector.ResultSet
}

func NewSemiMasker(child exec.Operator, mask *SemiMask, idPos vector.Pos, chunkIdx uint32) *SemiMasker {
	s := &SemiMasker{Mask: mask, IDPos: idPos, ChunkIdx: chunkIdx}
	s.SetChildren(child)
	return s
}

func (s *SemiMasker) Kind() exec.OpKind { return exec.KindSemiMasker }

func (s *SemiMasker) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	if err := s.Children()[0].InitLocalState(rs, ctx); err != nil {
		return err
	}
	s.rs = rs
	return nil
}

// GetNextTuple pulls chunks from its child until one has at least one
// row surviving the mask (or the child is exhausted), filtering the
// surviving chunk's shared State to exactly those rows in place.
func (s *SemiMasker) GetNextTuple(ctx *exec.Context) (bool, error) {
	if err := ctx.CheckInterrupted(); err != nil {
		return false, err
	}
	for {
		more, err := s.Children()[0].GetNextTuple(ctx)
		if err != nil || !more {
			return more, err
		}
		idVec := s.rs.Vector(s.IDPos)
		chunk := s.rs.Chunks[s.ChunkIdx]
		st := chunk.State
		n := st.Size()
		kept := make([]uint32, 0, n)
		for row := 0; row < n; row++ {
			if s.Mask.Selected(idVec.GetNodeID(row).Offset) {
				kept = append(kept, st.Index(row))
			}
		}
		if len(kept) == 0 {
			continue
		}
		st.SetFiltered(kept)
		return true, nil
	}
}

func (s *SemiMasker) Clone() exec.Operator {
	c := &SemiMasker{Mask: s.Mask, IDPos: s.IDPos, ChunkIdx: s.ChunkIdx}
	c.SetChildren(s.Children()[0].Clone())
	return c
}
