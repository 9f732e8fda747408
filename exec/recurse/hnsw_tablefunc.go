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

	"github.com/kuzudb/graphvec/catalog"
	"github.com/kuzudb/graphvec/exec"
	"github.com/kuzudb/graphvec/vector"
)

// CreateHNSWIndex is the CREATE_HNSW_INDEX table function of spec.md
// §4.8: it is a Breaker so every source node is inserted into the graph
// before FlushRelTables runs, the same "build side drains to completion
// first" shape join.HashJoinBuild and agg.HashAggregate already use.
type CreateHNSWIndex struct {
	exec.Base

	NodeTableID             uint32
	Config                  catalog.HNSWConfig
	UpperRelTable, LowerRelTable uint32

	IDPos vector.Pos
	// EmbeddingPos names one DOUBLE column per embedding dimension: the
	// vector package has no list-of-double vector representation, so a
	// fixed-width embedding is carried the same way ScanNodeProperty
	// carries a fixed set of typed columns, one vector.Pos per dimension.
	EmbeddingPos []vector.Pos

	Graph *HNSWGraph

	rng  *rand32
	mu   sync.Mutex
	done bool
}

func NewCreateHNSWIndex(child exec.Operator, nodeTableID uint32, cfg catalog.HNSWConfig, upperRelTable, lowerRelTable uint32, idPos vector.Pos, embeddingPos []vector.Pos) (*CreateHNSWIndex, error) {
	g, err := NewHNSWGraph(cfg)
	if err != nil {
		return nil, err
	}
	op := &CreateHNSWIndex{
		NodeTableID: nodeTableID, Config: cfg,
		UpperRelTable: upperRelTable, LowerRelTable: lowerRelTable,
		IDPos: idPos, EmbeddingPos: embeddingPos,
		Graph: g,
		rng:   newRand32(1),
	}
	op.SetChildren(child)
	return op, nil
}

func (c *CreateHNSWIndex) Kind() exec.OpKind { return exec.KindInQueryCallTableFunc }

func (c *CreateHNSWIndex) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	return nil
}

// GetNextTuple never produces rows of its own; CREATE_HNSW_INDEX is a
// DDL-shaped statement whose only output is the side effect Build and
// Finalize perform.
func (c *CreateHNSWIndex) GetNextTuple(ctx *exec.Context) (bool, error) {
	return false, nil
}

func (c *CreateHNSWIndex) Clone() exec.Operator { return c }

// Build streams every (id, embedding) row from the child and inserts it
// into the graph one node at a time (spec.md §4.8: "workers insert...
// one node at a time"); insertion order is serialized by HNSWGraph's own
// lock, so this runs the child single-threaded rather than cloning it.
func (c *CreateHNSWIndex) Build(ctx *exec.Context, numWorkers int) error {
	rs := &vector.ResultSet{}
	if err := c.Children()[0].InitLocalState(rs, ctx); err != nil {
		return err
	}
	for {
		more, err := c.Children()[0].GetNextTuple(ctx)
		if err != nil {
			return err
		}
		if !more {
			break
		}
		idVec := rs.Chunks[c.IDPos.ChunkIdx].Vectors[c.IDPos.VectorIdx]
		embVecs := make([]*vector.Vector, len(c.EmbeddingPos))
		for d, pos := range c.EmbeddingPos {
			embVecs[d] = rs.Chunks[pos.ChunkIdx].Vectors[pos.VectorIdx]
		}
		n := idVec.State().Size()
		for row := 0; row < n; row++ {
			id := idVec.GetNodeID(row)
			emb := make([]float64, len(embVecs))
			for d, v := range embVecs {
				emb[d] = v.GetDouble(row)
			}
			inUpper := c.rng.float64() < c.Config.Pl
			c.Graph.Insert(id.Offset, emb, inUpper)
		}
	}
	return nil
}

func (c *CreateHNSWIndex) Finalize(ctx *exec.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return nil
	}
	c.done = true
	return FlushRelTables(ctx, c.Graph, c.NodeTableID, c.UpperRelTable, c.LowerRelTable)
}

// QueryHNSWIndex is the QUERY_HNSW_INDEX table function: for each query
// embedding pulled from its child, it emits up to K nearest node IDs.
type QueryHNSWIndex struct {
	exec.Base

	Graph *HNSWGraph
	K     int

	QueryEmbeddingPos []vector.Pos
	NodeTableID       uint32
	OutPos            vector.Pos

	rs       *vector.ResultSet
	outChunk *vector.Chunk
	out      *vector.Vector

	pending []uint64
}

func NewQueryHNSWIndex(child exec.Operator, graph *HNSWGraph, k int, queryEmbeddingPos []vector.Pos, outPos vector.Pos, nodeTableID uint32) *QueryHNSWIndex {
	q := &QueryHNSWIndex{Graph: graph, K: k, QueryEmbeddingPos: queryEmbeddingPos, OutPos: outPos, NodeTableID: nodeTableID}
	q.SetChildren(child)
	return q
}

func (q *QueryHNSWIndex) Kind() exec.OpKind { return exec.KindInQueryCallTableFunc }

func (q *QueryHNSWIndex) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	if err := q.Children()[0].InitLocalState(rs, ctx); err != nil {
		return err
	}
	q.rs = rs
	q.outChunk = vector.NewChunk([]vector.LogicalType{vector.NODE}, vector.V)
	q.out = q.outChunk.Vectors[0]
	rs.SetChunk(q.OutPos.ChunkIdx, &vector.Chunk{State: q.outChunk.State, Vectors: []*vector.Vector{q.out}})
	return nil
}

func (q *QueryHNSWIndex) GetNextTuple(ctx *exec.Context) (bool, error) {
	if err := ctx.CheckInterrupted(); err != nil {
		return false, err
	}
	for {
		if len(q.pending) == 0 {
			more, err := q.Children()[0].GetNextTuple(ctx)
			if err != nil || !more {
				return more, err
			}
			embVecs := make([]*vector.Vector, len(q.QueryEmbeddingPos))
			for d, pos := range q.QueryEmbeddingPos {
				embVecs[d] = q.rs.Chunks[pos.ChunkIdx].Vectors[pos.VectorIdx]
			}
			n := embVecs[0].State().Size()
			for row := 0; row < n; row++ {
				emb := make([]float64, len(embVecs))
				for d, v := range embVecs {
					emb[d] = v.GetDouble(row)
				}
				q.pending = append(q.pending, q.Graph.Query(emb, q.K)...)
			}
			if len(q.pending) == 0 {
				continue
			}
		}
		m := len(q.pending)
		if m > vector.V {
			m = vector.V
		}
		for i := 0; i < m; i++ {
			q.out.SetNodeID(i, vector.NodeID{Offset: q.pending[i], TableID: q.NodeTableID})
		}
		q.pending = q.pending[m:]
		q.outChunk.State.SetUnfiltered(m)
		return true, nil
	}
}

func (q *QueryHNSWIndex) Clone() exec.Operator {
	c := &QueryHNSWIndex{Graph: q.Graph, K: q.K, QueryEmbeddingPos: q.QueryEmbeddingPos, OutPos: q.OutPos, NodeTableID: q.NodeTableID}
	c.SetChildren(q.Children()[0].Clone())
	return c
}

// rand32 is a tiny deterministic xorshift generator used only to decide
// upper-layer membership during HNSW insertion; a query-scoped context
// has no seeded randomness source of its own (spec.md §9 forbids
// Math.random()/time-seeded globals breaking reproducible query plans).
type rand32 struct{ state uint32 }

func newRand32(seed uint32) *rand32 {
	if seed == 0 {
		seed = 1
	}
	return &rand32{state: seed}
}

func (r *rand32) next() uint32 {
	x := r.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	r.state = x
	return x
}

func (r *rand32) float64() float64 {
	return float64(r.next()) / float64(1<<32)
}
