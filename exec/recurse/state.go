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

// Package recurse implements the BFS/IFE engine backing shortest-path and
// variable-length-path queries (spec.md §3.7, §4.8), plus the HNSW table
// functions that reuse its morsel mechanism. Grounded on the teacher's
// vm/recursive_extend.go and its sssp/allsp/variable_length morsel
// variants: one state struct per BFS source handed between the
// scan-frontier, extend, and mark-visited stages, resumed instead of
// driven by a coroutine (spec.md §9 "Coroutine-like control flow: keep
// this pattern").
package recurse

import (
	"sync"
	"sync/atomic"

	"github.com/kuzudb/graphvec/internal/bitset"
)

// TrackMode selects how much path information MarkVisited records
// (spec.md §4.8 "Tracking variants").
type TrackMode int

const (
	TrackNone TrackMode = iota
	TrackPath
)

// Visited-state bytes for IFEMorsel.VisitedNodes (spec.md §3.7). The
// "Dst" variants mark offsets that are members of the destination set a
// query is searching for (used when num_dst_nodes_to_visit is nonzero,
// e.g. shortest path to a fixed node list); ordinary BFS over every
// reachable node never assigns the Dst variants.
const (
	NotVisited byte = iota
	NotVisitedDst
	Visited
	VisitedDst
)

// PredecessorEdge records one reconstructed hop for TrackPath morsels:
// dst was reached from src by crossing relID.
type PredecessorEdge struct {
	SrcOffset uint64
	RelOffset uint64
	RelTable  uint32
}

// levelState is swapped out wholesale on every level advance so that
// claiming a morsel and waiting for that level's in-flight extends to
// finish can never straddle two levels.
type levelState struct {
	wg   sync.WaitGroup
	once sync.Once
}

// IFEMorsel is the per-source BFS state of spec.md §3.7. One is created
// per distinct source offset a recursive-extend pulls from its input;
// ScanFrontier/Extend/MarkVisited share it across however many workers
// are concurrently extending the current level.
type IFEMorsel struct {
	SourceOffset uint64
	MaxOffset    uint64
	UpperBound   int
	Track        TrackMode

	// NumDstNodesToVisit is 0 for "visit everything reachable"; nonzero
	// names the size of a fixed destination set the search can stop
	// early for once every member has been visited.
	NumDstNodesToVisit int

	VisitedNodes *bitset.Bytes
	PathLength   []byte

	predMu       sync.Mutex
	predecessors map[uint64]PredecessorEdge // TrackPath only

	// frontier state; guarded by frontierMu during the read/append window
	// a level's workers share, and replaced wholesale (not mutated) by
	// advanceLevel so in-flight readers of the old slices stay valid.
	frontierMu sync.Mutex

	isSparseFrontier    bool
	currentFrontierSize int
	currentDense        *bitset.Bytes // nil when sparse
	currentSparse       []uint32      // nil when dense

	nextDense  *bitset.Bytes // accumulates this level's discoveries when dense
	sparseMu   sync.Mutex
	nextSparse []uint32 // accumulates this level's discoveries when sparse

	nextScanStartIdx    atomic.Uint64
	nextDstScanStartIdx atomic.Uint64
	numVisitedDstNodes  atomic.Int64
	nextFrontierSize    atomic.Int64

	currentLevel int32

	level atomic.Pointer[levelState]
}

// NewIFEMorsel allocates BFS state for one source over a neighbor-table
// domain of [0, maxOffset]. The source itself is the level-0 frontier.
func NewIFEMorsel(sourceOffset, maxOffset uint64, upperBound int, track TrackMode, numDstNodesToVisit int) *IFEMorsel {
	m := &IFEMorsel{
		SourceOffset:        sourceOffset,
		MaxOffset:           maxOffset,
		UpperBound:          upperBound,
		Track:               track,
		NumDstNodesToVisit:  numDstNodesToVisit,
		VisitedNodes:        bitset.NewBytes(uint32(maxOffset)),
		PathLength:          make([]byte, maxOffset+1),
		isSparseFrontier:    true,
		currentSparse:       []uint32{uint32(sourceOffset)},
		currentFrontierSize: 1,
	}
	if track == TrackPath {
		m.predecessors = make(map[uint64]PredecessorEdge)
	}
	m.level.Store(&levelState{})
	m.VisitedNodes.Set(uint32(sourceOffset), Visited)
	return m
}

// sparseThreshold is the density cutoff of spec.md §4.8 step 4: a level
// is represented sparsely when its frontier is smaller than
// ceil(maxOffset/8).
func (m *IFEMorsel) sparseThreshold() int {
	return int((m.MaxOffset + 7) / 8)
}

// GetMorsel claims up to morselSize source offsets from the current
// frontier, implementing ScanFrontier (spec.md §4.8 step 1). It returns
// ok=false once the frontier is exhausted for this level and every
// in-flight extend has completed and the next level (if any) has
// nothing left either, i.e. the whole BFS for this source is done.
//
// Every successful claim must be matched by exactly one call to
// Release, once the caller has finished extending and marking that
// batch, so level advance never races a still-running extend.
func (m *IFEMorsel) GetMorsel(morselSize int) (sources []uint64, ok bool) {
	for {
		if m.IsComplete() {
			return nil, false
		}
		lvl := m.level.Load()
		start := m.nextScanStartIdx.Add(uint64(morselSize)) - uint64(morselSize)
		if int(start) < m.currentFrontierSize {
			end := int(start) + morselSize
			if end > m.currentFrontierSize {
				end = m.currentFrontierSize
			}
			lvl.wg.Add(1)
			return m.frontierSlice(int(start), end), true
		}
		// Frontier exhausted for this level: wait for in-flight extends,
		// then exactly one caller performs the level advance; every
		// caller (the one that ran it and every one that waited on it)
		// then loops back to re-check completion against the new level.
		lvl.wg.Wait()
		lvl.once.Do(func() { m.advanceLevel() })
	}
}

// Release marks one claimed morsel's extend+mark-visited work complete.
func (m *IFEMorsel) Release() {
	m.level.Load().wg.Done()
}

func (m *IFEMorsel) frontierSlice(start, end int) []uint64 {
	out := make([]uint64, 0, end-start)
	if m.isSparseFrontier {
		for _, off := range m.currentSparse[start:end] {
			out = append(out, uint64(off))
		}
		return out
	}
	// Dense: start/end index into the set-bit ordinal space, not byte
	// offsets directly, so walk the mask counting set bytes.
	data := m.currentDense.Data()
	count := 0
	for off := 0; off < len(data) && count < end; off++ {
		if data[off] == 0 {
			continue
		}
		if count >= start {
			out = append(out, uint64(off))
		}
		count++
	}
	return out
}

// IsComplete reports BFS termination for this source (spec.md §4.8 step
// 4): level cap reached, nothing left to extend, or every destination of
// interest has been found.
func (m *IFEMorsel) IsComplete() bool {
	if int(atomic.LoadInt32(&m.currentLevel)) >= m.UpperBound {
		return true
	}
	if m.currentFrontierSize == 0 {
		return true
	}
	if m.NumDstNodesToVisit > 0 && m.numVisitedDstNodes.Load() >= int64(m.NumDstNodesToVisit) {
		return true
	}
	return false
}

// MarkVisited transitions dst from not-visited to visited under atomic
// CAS (spec.md §4.8 step 3), recording path_length and, for TrackPath,
// the crossed edge. Returns true if this call is the one that first
// visited dst (ties are broken by the CAS; a loser does nothing further).
func (m *IFEMorsel) MarkVisited(dst uint64, level int, viaSrc, viaRel uint64, viaRelTable uint32) bool {
	for {
		old := m.VisitedNodes.Get(uint32(dst))
		var next byte
		switch old {
		case NotVisited:
			next = Visited
		case NotVisitedDst:
			next = VisitedDst
		default:
			return false // already visited by this or a concurrent winner
		}
		if !m.VisitedNodes.CASByte(uint32(dst), old, next) {
			continue // lost the race against a concurrent MarkVisited(dst)
		}
		m.PathLength[dst] = byte(level)
		if next == VisitedDst {
			m.numVisitedDstNodes.Add(1)
		}
		if m.Track == TrackPath {
			m.predMu.Lock()
			m.predecessors[dst] = PredecessorEdge{SrcOffset: viaSrc, RelOffset: viaRel, RelTable: viaRelTable}
			m.predMu.Unlock()
		}
		m.appendNextFrontier(dst)
		return true
	}
}

func (m *IFEMorsel) appendNextFrontier(dst uint64) {
	if !m.isSparseFrontier && int(m.MaxOffset) >= int(dst) {
		if m.nextDense == nil {
			m.frontierMu.Lock()
			if m.nextDense == nil {
				m.nextDense = bitset.NewBytes(uint32(m.MaxOffset))
			}
			m.frontierMu.Unlock()
		}
		m.nextDense.Set(uint32(dst), 1)
		m.nextFrontierSize.Add(1)
		return
	}
	m.sparseMu.Lock()
	m.nextSparse = append(m.nextSparse, uint32(dst))
	m.sparseMu.Unlock()
	m.nextFrontierSize.Add(1)
}

// advanceLevel performs the frontier swap of spec.md §4.8 step 4: a
// dense frontier pointer-swaps into place, or (when the next level falls
// under the density threshold) compacts into a sparse list via
// bitset.CompactAscending; a sparse frontier always stays sparse, as a
// fresh list taken from the scratch discovered this level.
func (m *IFEMorsel) advanceLevel() {
	size := int(m.nextFrontierSize.Load())
	goSparse := size < m.sparseThreshold()

	if !m.isSparseFrontier && m.nextDense != nil {
		if goSparse {
			dst := bitset.CompactAscending(m.nextDense.Data(), func(b byte) bool { return b != 0 }, nil)
			m.currentSparse = dst
			m.currentDense = nil
			m.isSparseFrontier = true
		} else {
			m.currentDense = m.nextDense
			m.currentSparse = nil
			m.isSparseFrontier = false
		}
	} else {
		// Sparse source frontier (or a dense frontier whose first level
		// never populated nextDense because it discovered nothing):
		// always build sparse from the scratch list.
		m.currentSparse = append([]uint32(nil), m.nextSparse...)
		m.currentDense = nil
		m.isSparseFrontier = true
	}

	m.currentFrontierSize = size
	m.nextDense = nil
	m.nextSparse = nil
	m.nextFrontierSize.Store(0)
	m.nextScanStartIdx.Store(0)
	atomic.AddInt32(&m.currentLevel, 1)
	m.level.Store(&levelState{})
}

// Predecessors returns the TrackPath edge map; callers must not mutate
// it. Empty/nil for TrackNone morsels.
func (m *IFEMorsel) Predecessors() map[uint64]PredecessorEdge {
	return m.predecessors
}

// NextDstScanMorsel claims a range over the visited_nodes offset domain
// for the destination-writing pipeline (spec.md §4.8 "Destination-
// writing pipeline"), partitioning [0, maxOffset] into morselSize chunks
// the same way SharedScanState does for ordinary scans.
func (m *IFEMorsel) NextDstScanMorsel(morselSize uint64) (start, end uint64, ok bool) {
	s := m.nextDstScanStartIdx.Add(morselSize) - morselSize
	if s > m.MaxOffset {
		return 0, 0, false
	}
	e := s + morselSize
	if e > m.MaxOffset+1 {
		e = m.MaxOffset + 1
	}
	return s, e, true
}
