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

// Package plan maps the logical operator tree the binder produces onto
// the physical exec.Operator tree spec.md §4.10 describes: "Mapping
// rules per logical operator type are a finite dispatch table; each
// mapping function resolves data-positions from the logical schema...
// and instantiates the matching physical operator." This package owns
// that dispatch table and the handful of structural insertions
// (Flatten, SemiMasker, result collection) the mapper is responsible
// for, not the physical operators themselves.
package plan

import (
	"github.com/kuzudb/graphvec/catalog"
	"github.com/kuzudb/graphvec/exec"
	"github.com/kuzudb/graphvec/exec/agg"
	"github.com/kuzudb/graphvec/exec/join"
	"github.com/kuzudb/graphvec/exec/recurse"
	"github.com/kuzudb/graphvec/exec/scan"
	"github.com/kuzudb/graphvec/exec/write"
	"github.com/kuzudb/graphvec/vector"
)

// Kind identifies the concrete Go type of a LogicalOp for dispatch
// table lookups, mirroring exec.OpKind on the physical side.
type Kind int

const (
	KindScanNodeID Kind = iota
	KindScanNodeProperty
	KindScanRelProperty
	KindSemiFilter
	KindHashJoinBuild
	KindHashJoinProbe
	KindSimpleAggregate
	KindHashAggregate
	KindDistinct
	KindMarkAccumulate
	KindRecursiveExtend
	KindCreateNode
	KindCreateRel
	KindSetNodeProperty
	KindSetRelProperty
	KindDeleteNode
	KindDeleteRel
	KindMerge
	KindCopyNode
	KindCopyRel
	KindCreateHNSWIndex
	KindQueryHNSWIndex
	KindOrderBy
	KindLimit
	KindResultCollector
)

// Op is one node of the logical plan tree. Terminal ops (scans) return
// nil from Input.
type Op interface {
	Kind() Kind
	Input() Op
	SetInput(o Op)
	// RequiresFlatInput reports whether this op's physical counterpart
	// needs a one-row-per-call Chunk from its child (spec.md §4.10:
	// "Flatten where the next operator requires a flat input") rather
	// than an arbitrary-width vectorized one.
	RequiresFlatInput() bool
}

// Nonterminal is embedded by every Op with a single child, the same
// shape the source material's plan package uses for its own Op tree.
type Nonterminal struct {
	From Op
}

func (n *Nonterminal) Input() Op     { return n.From }
func (n *Nonterminal) SetInput(o Op) { n.From = o }

// RequiresFlatInput defaults to false; only the handful of logical ops
// that need a flattened child (table-function apply) override it.
func (n *Nonterminal) RequiresFlatInput() bool { return false }

// ScanNodeID is the leaf op that claims morsels off a node table.
type ScanNodeID struct {
	TableID uint32
	OutPos  vector.Pos
	Mask    *scan.SemiMask
}

func (s *ScanNodeID) Kind() Kind                 { return KindScanNodeID }
func (s *ScanNodeID) Input() Op                  { return nil }
func (s *ScanNodeID) SetInput(Op)                {}
func (s *ScanNodeID) RequiresFlatInput() bool    { return false }

// ScanNodeProperty resolves stored properties for the IDs its child
// produces.
type ScanNodeProperty struct {
	Nonterminal
	TableID   uint32
	InPos     vector.Pos
	PropIDs   []catalog.PropertyID
	PropTypes []vector.LogicalType
	OutPos    []vector.Pos
}

func (s *ScanNodeProperty) Kind() Kind { return KindScanNodeProperty }

// ScanRelProperty resolves stored properties for relationship IDs,
// dispatching per owning rel table internally.
type ScanRelProperty struct {
	Nonterminal
	InPos     vector.Pos
	PropIDs   []catalog.PropertyID
	PropTypes []vector.LogicalType
	OutPos    []vector.Pos
}

func (s *ScanRelProperty) Kind() Kind { return KindScanRelProperty }

// SemiFilter names a SemiMask already populated by a join build side;
// the mapper turns this into a scan.SemiMasker wrapping its child.
type SemiFilter struct {
	Nonterminal
	Mask     *scan.SemiMask
	IDPos    vector.Pos
	ChunkIdx uint32
}

func (s *SemiFilter) Kind() Kind { return KindSemiFilter }

// HashJoinBuild is the build side of a hash join; Probe references the
// mapped *join.HashJoinBuild it produces.
type HashJoinBuild struct {
	Nonterminal
	JoinKind     join.JoinKind
	KeyPos       []vector.Pos
	KeyTypes     []vector.LogicalType
	PayloadPos   []vector.Pos
	PayloadTypes []vector.LogicalType
	// SemiMaskSlots, when > 0, allocates a scan.SemiMask with this many
	// markers for SIP (spec.md §4.6); 0 means no SIP mask is built.
	SemiMaskSlots int
	MaskerIndex   int
}

func (h *HashJoinBuild) Kind() Kind { return KindHashJoinBuild }

// HashJoinProbe is the probe side; Build names the logical build op so
// the mapper can resolve the built physical table before mapping this
// node's own child/output wiring.
type HashJoinProbe struct {
	Nonterminal
	Build         *HashJoinBuild
	KeyPos        []vector.Pos
	PassPos       []vector.Pos
	PassTypes     []vector.LogicalType
	OutPassPos    []vector.Pos
	PayloadOutPos []vector.Pos
	MarkOutPos    vector.Pos
}

func (h *HashJoinProbe) Kind() Kind { return KindHashJoinProbe }

// SimpleAggregate computes ungrouped aggregates.
type SimpleAggregate struct {
	Nonterminal
	Specs []agg.FuncSpec
}

func (s *SimpleAggregate) Kind() Kind { return KindSimpleAggregate }

// HashAggregate computes grouped aggregates.
type HashAggregate struct {
	Nonterminal
	KeyPos    []vector.Pos
	KeyTypes  []vector.LogicalType
	Specs     []agg.FuncSpec
	KeyOutPos []vector.Pos
}

func (h *HashAggregate) Kind() Kind { return KindHashAggregate }

// Distinct deduplicates by key.
type Distinct struct {
	Nonterminal
	KeyPos    []vector.Pos
	KeyTypes  []vector.LogicalType
	OutKeyPos []vector.Pos
}

func (d *Distinct) Kind() Kind { return KindDistinct }

// MarkAccumulate records which keys were seen, for EXISTS/NOT EXISTS
// subquery decorrelation.
type MarkAccumulate struct {
	Nonterminal
	KeyPos   []vector.Pos
	KeyTypes []vector.LogicalType
}

func (m *MarkAccumulate) Kind() Kind { return KindMarkAccumulate }

// RecursiveExtend is the BFS/IFE shortest-path and variable-length-path
// engine of spec.md §4.8.
type RecursiveExtend struct {
	Nonterminal
	SrcPos       vector.Pos
	DstTableID   uint32
	Filters      []recurse.HopFilter
	NodeFilter   func(vector.NodeID) bool
	LowerBound   int
	UpperBound   int
	Track        recurse.TrackMode
	DstOutPos    vector.Pos
	LengthOutPos vector.Pos
}

func (r *RecursiveExtend) Kind() Kind { return KindRecursiveExtend }

// CreateNode, CreateRel, SetNodeProperty, SetRelProperty, DeleteNode,
// DeleteRel, Merge, CopyNode, CopyRel mirror exec/write's physical
// operators one-for-one; the mapper resolves catalog-derived fields
// (property IDs, table IDs) the binder has already bound into
// vector.Pos/catalog.PropertyID values on these logical nodes.
type CreateNode struct {
	Nonterminal
	TableID uint32
	PKPos   vector.Pos
	PropIDs []catalog.PropertyID
	PropPos []vector.Pos
	OutPos  vector.Pos
}

func (c *CreateNode) Kind() Kind { return KindCreateNode }

type CreateRel struct {
	Nonterminal
	TableID         uint32
	SrcPos, DstPos  vector.Pos
	PropIDs         []catalog.PropertyID
	PropPos         []vector.Pos
	OutPos          vector.Pos
}

func (c *CreateRel) Kind() Kind { return KindCreateRel }

type SetNodeProperty struct {
	Nonterminal
	TableID uint32
	IDPos   vector.Pos
	PropID  catalog.PropertyID
	ValPos  vector.Pos
}

func (s *SetNodeProperty) Kind() Kind { return KindSetNodeProperty }

type SetRelProperty struct {
	Nonterminal
	IDPos  vector.Pos
	PropID catalog.PropertyID
	ValPos vector.Pos
}

func (s *SetRelProperty) Kind() Kind { return KindSetRelProperty }

type DeleteNode struct {
	Nonterminal
	TableID uint32
	IDPos   vector.Pos
}

func (d *DeleteNode) Kind() Kind { return KindDeleteNode }

type DeleteRel struct {
	Nonterminal
	IDPos vector.Pos
}

func (d *DeleteRel) Kind() Kind { return KindDeleteRel }

type Merge struct {
	Nonterminal
	TableID uint32
	PKPos   vector.Pos
	PropIDs []catalog.PropertyID
	PropPos []vector.Pos
	OutPos  vector.Pos
}

func (m *Merge) Kind() Kind { return KindMerge }

type CopyNode struct {
	Nonterminal
	TableID uint32
	PKPos   vector.Pos
	PropIDs []catalog.PropertyID
	PropPos []vector.Pos
	OutPos  vector.Pos
	Options write.CopyOptions
}

func (c *CopyNode) Kind() Kind { return KindCopyNode }

type CopyRel struct {
	Nonterminal
	TableID        uint32
	SrcPos, DstPos vector.Pos
	PropIDs        []catalog.PropertyID
	PropPos        []vector.Pos
	OutPos         vector.Pos
	Options        write.CopyOptions
}

func (c *CopyRel) Kind() Kind { return KindCopyRel }

// CreateHNSWIndex and QueryHNSWIndex are table functions (spec.md
// §4.8); they require a flattened input the same way any future
// correlated APPLY-style table function call would, so the mapper
// inserts a Flatten ahead of them even though today's two concrete
// implementations happen to iterate un-flattened vectors internally —
// this keeps the insertion rule generic across future table functions
// that do assume a one-row ResultSet view per call.
type CreateHNSWIndex struct {
	Nonterminal
	NodeTableID                 uint32
	Config                      catalog.HNSWConfig
	UpperRelTable, LowerRelTable uint32
	IDPos                        vector.Pos
	EmbeddingPos                 []vector.Pos
}

func (c *CreateHNSWIndex) Kind() Kind              { return KindCreateHNSWIndex }
func (c *CreateHNSWIndex) RequiresFlatInput() bool { return true }

type QueryHNSWIndex struct {
	Nonterminal
	Graph             *recurse.HNSWGraph
	K                 int
	QueryEmbeddingPos []vector.Pos
	OutPos            vector.Pos
	NodeTableID       uint32
}

func (q *QueryHNSWIndex) Kind() Kind              { return KindQueryHNSWIndex }
func (q *QueryHNSWIndex) RequiresFlatInput() bool { return true }

// OrderBy, Limit, ResultCollector are the pipeline-terminal ops;
// Mapper.MapQuery wraps a query root that is not one of these three in a
// bare ResultCollector. Map inserts no ResultCollector between the
// pipelines inside the tree.
type OrderBy struct {
	Nonterminal
	ColPos   []vector.Pos
	ColTypes []vector.LogicalType
	OutPos   []vector.Pos
	Keys     []exec.SortKey
}

func (o *OrderBy) Kind() Kind { return KindOrderBy }

type Limit struct {
	Nonterminal
	ChunkIdx uint32
	Count    int64
}

func (l *Limit) Kind() Kind { return KindLimit }

type ResultCollector struct {
	Nonterminal
	ColPos   []vector.Pos
	ColTypes []vector.LogicalType
	OutPos   []vector.Pos
}

func (r *ResultCollector) Kind() Kind { return KindResultCollector }
