// Copyright (C) 2024 The graphvec Authors.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package recurse

import (
	"github.com/kuzudb/graphvec/exec"
	"github.com/kuzudb/graphvec/storage"
	"github.com/kuzudb/graphvec/vector"
)

// HopFilter names one rel table (and the direction to walk it) allowed
// at a given hop, spec.md §4.8 step 2's "stepActivationRelInfos".
type HopFilter struct {
	RelTable uint32
	Dir      storage.Direction
}

// Neighbor is one edge discovered by Extend: crossing RelID (in
// RelTable) reaches Dst from whichever source offset produced it.
type Neighbor struct {
	SrcOffset uint64
	Dst       vector.NodeID
	RelOffset uint64
	RelTable  uint32
}

// Extend reads neighbors for a batch of source offsets (spec.md §4.8
// step 2: "a chain of Extend operators reads neighbors from rel tables,
// applying direction... per-hop rel-table filters... and optional
// node-filter predicates"). It is not itself an exec.Operator: it is the
// plain helper RecursiveExtend's worker loop calls once per claimed
// morsel, since the BFS state machine (not the generic pipeline driver)
// owns scheduling here.
type Extend struct {
	Filters    []HopFilter
	NodeFilter func(vector.NodeID) bool // nil accepts every neighbor
}

// Step expands sources (one BFS source's morsel of frontier offsets)
// across every configured HopFilter, returning every admitted edge.
func (e *Extend) Step(ctx *exec.Context, sources []uint64) ([]Neighbor, error) {
	var out []Neighbor
	for _, f := range e.Filters {
		rt, err := ctx.Tables.RelTable(f.RelTable)
		if err != nil {
			return nil, exec.Wrap(exec.StorageError, err, "recursive extend: rel table %d", f.RelTable)
		}
		for i := 0; i < len(sources); i += vector.V {
			batch := sources[i:min(i+vector.V, len(sources))]
			nbrOut := vector.New(vector.INTERNAL_ID, vector.NewUnfilteredState(vector.V))
			relOut := vector.New(vector.INTERNAL_ID, vector.NewUnfilteredState(vector.V))
			counts, err := rt.Scan(ctx.Tx, batch, f.Dir, nbrOut, relOut)
			if err != nil {
				return nil, exec.Wrap(exec.StorageError, err, "recursive extend: scan rel table %d", f.RelTable)
			}
			row := 0
			for si, cnt := range counts {
				for k := 0; k < cnt; k++ {
					dst := nbrOut.GetNodeID(row)
					rel := relOut.GetNodeID(row)
					row++
					if e.NodeFilter != nil && !e.NodeFilter(dst) {
						continue
					}
					out = append(out, Neighbor{
						SrcOffset: batch[si],
						Dst:       dst,
						RelOffset: rel.Offset,
						RelTable:  f.RelTable,
					})
				}
			}
		}
	}
	return out, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
