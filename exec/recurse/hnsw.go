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
	"math"
	"sort"
	"sync"

	"github.com/kuzudb/graphvec/catalog"
	"github.com/kuzudb/graphvec/exec"
	"github.com/kuzudb/graphvec/storage"
	"github.com/kuzudb/graphvec/vector"
)

// HNSWGraph is the in-memory layered graph CREATE_HNSW_INDEX builds and
// QUERY_HNSW_INDEX searches (spec.md §4.8 last paragraph): an upper
// layer with sparse long-range edges (degree capped at Mu) and a lower
// layer with dense short-range edges (degree capped at Ml), each node
// present in the upper layer with independent probability Pl.
type HNSWGraph struct {
	Config catalog.HNSWConfig

	mu     sync.RWMutex
	upper  map[uint64][]uint64
	lower  map[uint64][]uint64
	inUpper map[uint64]bool
	vectors map[uint64][]float64
}

// NewHNSWGraph validates cfg and allocates an empty graph.
func NewHNSWGraph(cfg catalog.HNSWConfig) (*HNSWGraph, error) {
	if err := cfg.Validate(); err != nil {
		return nil, exec.Wrap(exec.BindError, err, "invalid HNSW config")
	}
	return &HNSWGraph{
		Config:  cfg,
		upper:   make(map[uint64][]uint64),
		lower:   make(map[uint64][]uint64),
		inUpper: make(map[uint64]bool),
		vectors: make(map[uint64][]float64),
	}, nil
}

func distance(fn string, a, b []float64) float64 {
	switch fn {
	case "l2", "l2sq":
		var sum float64
		for i := range a {
			d := a[i] - b[i]
			sum += d * d
		}
		if fn == "l2sq" {
			return sum
		}
		return math.Sqrt(sum)
	case "dotproduct":
		var sum float64
		for i := range a {
			sum += a[i] * b[i]
		}
		return -sum // smaller is "closer" to match the other metrics
	default: // cosine
		var dot, na, nb float64
		for i := range a {
			dot += a[i] * b[i]
			na += a[i] * a[i]
			nb += b[i] * b[i]
		}
		if na == 0 || nb == 0 {
			return 1
		}
		return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	}
}

type candidate struct {
	offset uint64
	dist   float64
}

// greedySearch walks layer from entry toward query, keeping the efSearch
// closest candidates seen, the same frontier/visited-set shape
// spec.md §4.8's BFS engine uses for path search: a visited bitset
// (here a Go map, since HNSW graphs are built incrementally rather than
// over a fixed [0,maxOffset] domain known up front) and a frontier of
// candidates to expand.
func (g *HNSWGraph) greedySearch(layer map[uint64][]uint64, entry uint64, query []float64, ef int) []candidate {
	visited := map[uint64]bool{entry: true}
	best := []candidate{{entry, distance(g.Config.DistFunc, g.vectors[entry], query)}}
	frontier := []candidate{best[0]}

	for len(frontier) > 0 {
		sort.Slice(frontier, func(i, j int) bool { return frontier[i].dist < frontier[j].dist })
		cur := frontier[0]
		frontier = frontier[1:]
		if len(best) >= ef && cur.dist > best[len(best)-1].dist {
			break
		}
		for _, nbr := range layer[cur.offset] {
			if visited[nbr] {
				continue
			}
			visited[nbr] = true
			d := distance(g.Config.DistFunc, g.vectors[nbr], query)
			best = append(best, candidate{nbr, d})
			frontier = append(frontier, candidate{nbr, d})
		}
		sort.Slice(best, func(i, j int) bool { return best[i].dist < best[j].dist })
		if len(best) > ef {
			best = best[:ef]
		}
	}
	return best
}

// Insert adds one node at a time (spec.md §4.8: "workers insert / query
// one node at a time"). Each layer is searched greedily on its own,
// starting from an arbitrary node already in that layer, and the new
// node links to up to Ml (lower) / Mu (upper) of the nearest nodes found.
// A neighbor whose list grows past that degree drops its oldest entries;
// Alpha is not applied when choosing or pruning neighbors.
func (g *HNSWGraph) Insert(offset uint64, embedding []float64, inUpper bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.vectors[offset] = embedding
	g.inUpper[offset] = inUpper

	if len(g.lower) == 0 {
		g.lower[offset] = nil
		if inUpper {
			g.upper[offset] = nil
		}
		return
	}

	var entry uint64
	for e := range g.lower {
		entry = e
		break
	}

	lowerNbrs := g.linkLayer(g.lower, entry, offset, embedding, g.Config.Ml)
	g.lower[offset] = lowerNbrs
	for _, n := range lowerNbrs {
		g.lower[n] = appendShrunk(g.lower[n], offset, g.Config.Ml)
	}

	if inUpper {
		var upperEntry uint64
		for e := range g.upper {
			upperEntry = e
			break
		}
		upperNbrs := g.linkLayer(g.upper, upperEntry, offset, embedding, g.Config.Mu)
		g.upper[offset] = upperNbrs
		for _, n := range upperNbrs {
			g.upper[n] = appendShrunk(g.upper[n], offset, g.Config.Mu)
		}
	}
}

func (g *HNSWGraph) linkLayer(layer map[uint64][]uint64, entry, offset uint64, embedding []float64, degree int) []uint64 {
	if len(layer) == 0 {
		return nil
	}
	g.vectors[offset] = embedding
	found := g.greedySearch(layer, entry, embedding, int(g.Config.Efc))
	nbrs := make([]uint64, 0, degree)
	for _, c := range found {
		if c.offset == offset {
			continue
		}
		nbrs = append(nbrs, c.offset)
		if len(nbrs) >= degree {
			break
		}
	}
	return nbrs
}

func appendShrunk(nbrs []uint64, offset uint64, degree int) []uint64 {
	nbrs = append(nbrs, offset)
	if len(nbrs) > degree {
		nbrs = nbrs[len(nbrs)-degree:]
	}
	return nbrs
}

// Query returns the k nearest offsets to query (spec.md §4.8's
// QUERY_HNSW_INDEX), descending the upper layer first when non-empty.
func (g *HNSWGraph) Query(query []float64, k int) []uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	entry, ok := anyKey(g.lower)
	if !ok {
		return nil
	}
	if len(g.upper) > 0 {
		if ue, ok := anyKey(g.upper); ok {
			top := g.greedySearch(g.upper, ue, query, int(g.Config.Efs))
			if len(top) > 0 {
				entry = top[0].offset
			}
		}
	}
	found := g.greedySearch(g.lower, entry, query, int(g.Config.Efs))
	out := make([]uint64, 0, k)
	for i := 0; i < len(found) && i < k; i++ {
		out = append(out, found[i].offset)
	}
	return out
}

func anyKey(m map[uint64][]uint64) (uint64, bool) {
	for k := range m {
		return k, true
	}
	return 0, false
}

// FlushRelTables materializes the graph's upper/lower adjacency into two
// rel tables (spec.md §4.8: "a partitioner that later flushes two rel
// tables (upper, lower) representing the layered neighbors"), the final
// step of CREATE_HNSW_INDEX once every node has been inserted.
func FlushRelTables(ctx *exec.Context, g *HNSWGraph, nodeTableID, upperRelTable, lowerRelTable uint32) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	upper, err := ctx.Tables.RelTable(upperRelTable)
	if err != nil {
		return exec.Wrap(exec.StorageError, err, "hnsw: upper rel table %d", upperRelTable)
	}
	lower, err := ctx.Tables.RelTable(lowerRelTable)
	if err != nil {
		return exec.Wrap(exec.StorageError, err, "hnsw: lower rel table %d", lowerRelTable)
	}
	if err := flushLayer(ctx, lower, g.lower, nodeTableID); err != nil {
		return err
	}
	return flushLayer(ctx, upper, g.upper, nodeTableID)
}

// flushLayer inserts one rel-table edge per adjacency pair recorded
// during Insert. Each pair is written once, from the lower-numbered
// offset to the higher, since the layer graphs are undirected.
func flushLayer(ctx *exec.Context, rt storage.RelTable, layer map[uint64][]uint64, nodeTableID uint32) error {
	for src, nbrs := range layer {
		for _, dst := range nbrs {
			lo, hi := src, dst
			if src > dst {
				mirrored := false
				for _, back := range layer[dst] {
					if back == src {
						mirrored = true
						break
					}
				}
				if mirrored {
					continue // written from dst's own list
				}
				lo, hi = dst, src
			}
			srcID := vector.NodeID{Offset: lo, TableID: nodeTableID}
			dstID := vector.NodeID{Offset: hi, TableID: nodeTableID}
			if _, err := rt.Insert(ctx.Tx, srcID, dstID, nil); err != nil {
				return exec.Wrap(exec.StorageError, err, "hnsw: flush edge %d->%d", src, dst)
			}
		}
	}
	return nil
}
