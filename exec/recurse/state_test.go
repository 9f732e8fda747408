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
	"testing"
)

// runChainBFS walks the chain src -> src+1 for offsets [0, n), a simple,
// deterministic BFS without needing a real storage.RelTable.
func runChainBFS(t *testing.T, n int, upperBound int) *IFEMorsel {
	t.Helper()
	m := NewIFEMorsel(0, uint64(n-1), upperBound, TrackNone, 0)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				sources, ok := m.GetMorsel(8)
				if !ok {
					return
				}
				for _, s := range sources {
					if s+1 < uint64(n) {
						m.MarkVisited(s+1, int(levelOf(m))+1, s, 0, 0)
					}
				}
				m.Release()
			}
		}()
	}
	wg.Wait()
	return m
}

func levelOf(m *IFEMorsel) int32 { return atomic.LoadInt32(&m.currentLevel) }

func TestIFEMorselChainReachesEveryOffset(t *testing.T) {
	const n = 50
	m := runChainBFS(t, n, n)
	for off := 0; off < n; off++ {
		state := m.VisitedNodes.Get(uint32(off))
		if state != Visited {
			t.Fatalf("offset %d: want Visited, got %d", off, state)
		}
		if got, want := int(m.PathLength[off]), off; got != want {
			t.Errorf("offset %d: path length = %d, want %d", off, got, want)
		}
	}
}

func TestIFEMorselUpperBoundStopsEarly(t *testing.T) {
	const n = 50
	const upperBound = 5
	m := runChainBFS(t, n, upperBound)
	for off := 0; off <= upperBound; off++ {
		if m.VisitedNodes.Get(uint32(off)) != Visited {
			t.Errorf("offset %d within upper bound: want Visited", off)
		}
	}
	for off := upperBound + 2; off < n; off++ {
		if m.VisitedNodes.Get(uint32(off)) == Visited {
			t.Errorf("offset %d beyond upper bound: want NotVisited, got Visited", off)
		}
	}
}

func TestIFEMorselMarkVisitedIsIdempotent(t *testing.T) {
	m := NewIFEMorsel(0, 10, 5, TrackNone, 0)
	if !m.MarkVisited(1, 1, 0, 0, 0) {
		t.Fatal("first MarkVisited(1) should win")
	}
	if m.MarkVisited(1, 1, 0, 0, 0) {
		t.Fatal("second MarkVisited(1) should lose the CAS")
	}
	if got := m.PathLength[1]; got != 1 {
		t.Errorf("path length = %d, want 1", got)
	}
}

func TestIFEMorselTrackPathRecordsPredecessor(t *testing.T) {
	m := NewIFEMorsel(0, 10, 5, TrackPath, 0)
	m.MarkVisited(1, 1, 0, 7, 3)
	pred, ok := m.Predecessors()[1]
	if !ok {
		t.Fatal("expected a recorded predecessor for offset 1")
	}
	if pred.SrcOffset != 0 || pred.RelOffset != 7 || pred.RelTable != 3 {
		t.Errorf("predecessor = %+v, want {0 7 3}", pred)
	}
}

func TestIFEMorselDestinationSetCompletesEarly(t *testing.T) {
	m := NewIFEMorsel(0, 10, 10, TrackNone, 1)
	m.VisitedNodes.Set(5, NotVisitedDst)
	if m.IsComplete() {
		t.Fatal("should not be complete before the destination is visited")
	}
	if !m.MarkVisited(5, 1, 0, 0, 0) {
		t.Fatal("MarkVisited(5) should succeed")
	}
	if !m.IsComplete() {
		t.Fatal("should be complete once the only tracked destination is visited")
	}
}

func TestIFEMorselDstScanMorselPartitionsOffsetDomain(t *testing.T) {
	m := NewIFEMorsel(0, 99, 5, TrackNone, 0)
	seen := make(map[uint64]bool)
	for {
		start, end, ok := m.NextDstScanMorsel(10)
		if !ok {
			break
		}
		for off := start; off < end; off++ {
			if seen[off] {
				t.Fatalf("offset %d claimed twice", off)
			}
			seen[off] = true
		}
	}
	if len(seen) != 100 {
		t.Fatalf("covered %d offsets, want 100", len(seen))
	}
}
