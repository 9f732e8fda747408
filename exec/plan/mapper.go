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

package plan

import (
	"fmt"

	"github.com/kuzudb/graphvec/exec"
	"github.com/kuzudb/graphvec/exec/agg"
	"github.com/kuzudb/graphvec/exec/join"
	"github.com/kuzudb/graphvec/exec/recurse"
	"github.com/kuzudb/graphvec/exec/scan"
	"github.com/kuzudb/graphvec/exec/write"
	"github.com/kuzudb/graphvec/vector"
)

// mapFunc resolves one logical op (whose child has already been
// mapped) into its physical counterpart. child is nil for leaves.
type mapFunc func(m *Mapper, op Op, child exec.Operator) (exec.Operator, error)

// Mapper walks a logical Op tree and produces the physical exec.Operator
// tree exec.RunPipeline drives, per spec.md §4.10. One Mapper is built
// per query; it tracks the built *join.HashJoinBuild values so a
// HashJoinProbe logical node can find the side it probes against
// without re-mapping it.
type Mapper struct {
	ctx     *exec.Context
	builds  map[*HashJoinBuild]*join.HashJoinBuild
	dispatch map[Kind]mapFunc
}

// NewMapper builds a Mapper bound to ctx, which every physical
// constructor consults for table provider / catalog access indirectly
// through the operators themselves (the mapper only wires positions and
// table IDs; it never touches storage directly).
func NewMapper(ctx *exec.Context) *Mapper {
	m := &Mapper{ctx: ctx, builds: make(map[*HashJoinBuild]*join.HashJoinBuild)}
	m.dispatch = map[Kind]mapFunc{
		KindScanNodeID:       mapScanNodeID,
		KindScanNodeProperty: mapScanNodeProperty,
		KindScanRelProperty:  mapScanRelProperty,
		KindSemiFilter:       mapSemiFilter,
		KindHashJoinBuild:    mapHashJoinBuild,
		KindHashJoinProbe:    mapHashJoinProbe,
		KindSimpleAggregate:  mapSimpleAggregate,
		KindHashAggregate:    mapHashAggregate,
		KindDistinct:         mapDistinct,
		KindMarkAccumulate:   mapMarkAccumulate,
		KindRecursiveExtend:  mapRecursiveExtend,
		KindCreateNode:       mapCreateNode,
		KindCreateRel:        mapCreateRel,
		KindSetNodeProperty:  mapSetNodeProperty,
		KindSetRelProperty:   mapSetRelProperty,
		KindDeleteNode:       mapDeleteNode,
		KindDeleteRel:        mapDeleteRel,
		KindMerge:            mapMerge,
		KindCopyNode:         mapCopyNode,
		KindCopyRel:          mapCopyRel,
		KindCreateHNSWIndex:  mapCreateHNSWIndex,
		KindQueryHNSWIndex:   mapQueryHNSWIndex,
		KindOrderBy:          mapOrderBy,
		KindLimit:            mapLimit,
		KindResultCollector:  mapResultCollector,
	}
	return m
}

// Map recursively lowers op (and its input chain) to a physical
// operator tree, inserting a Flatten ahead of any op whose
// RequiresFlatInput is set, per spec.md §4.10 rule (b).
func (m *Mapper) Map(op Op) (exec.Operator, error) {
	var child exec.Operator
	if in := op.Input(); in != nil {
		c, err := m.Map(in)
		if err != nil {
			return nil, err
		}
		child = c
	}
	if op.RequiresFlatInput() && child != nil {
		child = exec.NewFlatten(child, flattenInChunk, flattenOutChunk)
	}
	fn, ok := m.dispatch[op.Kind()]
	if !ok {
		return nil, fmt.Errorf("plan: no mapping registered for logical kind %d", op.Kind())
	}
	return fn(m, op, child)
}

// flattenInChunk/flattenOutChunk are placeholder chunk slots a real
// binder would allocate per-query from a chunk-index arena; fixed here
// because this mapper, like the rest of the execution core, never
// allocates chunk indices itself (spec.md leaves chunk-index assignment
// to the binder/physical-plan builder that runs before Map).
const (
	flattenInChunk  uint32 = 0
	flattenOutChunk uint32 = 1
)

func mapScanNodeID(m *Mapper, op Op, _ exec.Operator) (exec.Operator, error) {
	l := op.(*ScanNodeID)
	nt, err := m.ctx.Tables.NodeTable(l.TableID)
	if err != nil {
		return nil, err
	}
	maxOffset := nt.MaxOffset(m.ctx.Tx)
	shared := scan.NewSharedNodeScan(maxOffset, uint64(vector.V), l.Mask)
	return scan.NewScanNodeID(l.TableID, l.OutPos, shared, l.Mask), nil
}

// mapScanNodeProperty/mapScanRelProperty wire the child in after
// construction: unlike most exec constructors, NewScanNodeProperty and
// NewScanRelProperty take no child parameter (they only ever read the
// ID vector a prior scan already placed at InPos), so SetChildren is
// the mapper's job here.
func mapScanNodeProperty(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*ScanNodeProperty)
	s := scan.NewScanNodeProperty(l.TableID, l.InPos, l.PropIDs, l.PropTypes, l.OutPos)
	s.SetChildren(child)
	return s, nil
}

func mapScanRelProperty(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*ScanRelProperty)
	s := scan.NewScanRelProperty(l.InPos, l.PropIDs, l.PropTypes, l.OutPos)
	s.SetChildren(child)
	return s, nil
}

func mapSemiFilter(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*SemiFilter)
	return scan.NewSemiMasker(child, l.Mask, l.IDPos, l.ChunkIdx), nil
}

func mapHashJoinBuild(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*HashJoinBuild)
	build := join.NewHashJoinBuild(l.JoinKind, child, l.KeyPos, l.KeyTypes, l.PayloadPos, l.PayloadTypes)
	if l.SemiMaskSlots > 0 {
		maxOffset := uint64(0)
		build.Mask = scan.NewSemiMask(maxOffset, l.SemiMaskSlots)
		build.MaskerIndex = l.MaskerIndex
	}
	m.builds[l] = build
	return build, nil
}

// mapHashJoinProbe resolves the already-mapped build side by re-running
// Map on the logical build node's subtree; since a HashJoinBuild and
// HashJoinProbe always share one Mapper within a single query, a probe
// visited after its build reuses the cached *join.HashJoinBuild from
// m.builds rather than constructing a second build side.
func mapHashJoinProbe(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*HashJoinProbe)
	build, ok := m.builds[l.Build]
	if !ok {
		built, err := m.Map(l.Build)
		if err != nil {
			return nil, err
		}
		build, ok = built.(*join.HashJoinBuild)
		if !ok {
			return nil, fmt.Errorf("plan: hash join probe's build side mapped to %T, not *join.HashJoinBuild", built)
		}
	}
	return join.NewHashJoinProbe(build, child, l.KeyPos, l.PassPos, l.PassTypes, l.OutPassPos, l.PayloadOutPos, l.MarkOutPos), nil
}

func mapSimpleAggregate(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*SimpleAggregate)
	return agg.NewSimpleAggregate(child, l.Specs), nil
}

func mapHashAggregate(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*HashAggregate)
	return agg.NewHashAggregate(child, l.KeyPos, l.KeyTypes, l.Specs, l.KeyOutPos), nil
}

func mapDistinct(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*Distinct)
	return agg.NewDistinct(child, l.KeyPos, l.KeyTypes, l.OutKeyPos), nil
}

func mapMarkAccumulate(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*MarkAccumulate)
	return agg.NewMarkAccumulate(child, l.KeyPos, l.KeyTypes), nil
}

func mapRecursiveExtend(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*RecursiveExtend)
	return recurse.NewRecursiveExtend(child, l.SrcPos, l.DstTableID, l.Filters, l.NodeFilter, l.LowerBound, l.UpperBound, l.Track, l.DstOutPos, l.LengthOutPos), nil
}

func mapCreateNode(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*CreateNode)
	return write.NewCreateNode(child, l.TableID, l.PKPos, l.PropIDs, l.PropPos, l.OutPos), nil
}

func mapCreateRel(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*CreateRel)
	return write.NewCreateRel(child, l.TableID, l.SrcPos, l.DstPos, l.PropIDs, l.PropPos, l.OutPos), nil
}

func mapSetNodeProperty(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*SetNodeProperty)
	return write.NewSetNodeProperty(child, l.TableID, l.IDPos, l.PropID, l.ValPos), nil
}

func mapSetRelProperty(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*SetRelProperty)
	return write.NewSetRelProperty(child, l.IDPos, l.PropID, l.ValPos), nil
}

func mapDeleteNode(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*DeleteNode)
	return write.NewDeleteNode(child, l.TableID, l.IDPos), nil
}

func mapDeleteRel(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*DeleteRel)
	return write.NewDeleteRel(child, l.IDPos), nil
}

func mapMerge(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*Merge)
	return write.NewMerge(child, l.TableID, l.PKPos, l.PropIDs, l.PropPos, l.OutPos), nil
}

func mapCopyNode(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*CopyNode)
	return write.NewCopyNode(child, l.TableID, l.PKPos, l.PropIDs, l.PropPos, l.OutPos, l.Options), nil
}

func mapCopyRel(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*CopyRel)
	return write.NewCopyRel(child, l.TableID, l.SrcPos, l.DstPos, l.PropIDs, l.PropPos, l.OutPos, l.Options), nil
}

func mapCreateHNSWIndex(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*CreateHNSWIndex)
	return recurse.NewCreateHNSWIndex(child, l.NodeTableID, l.Config, l.UpperRelTable, l.LowerRelTable, l.IDPos, l.EmbeddingPos)
}

func mapQueryHNSWIndex(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*QueryHNSWIndex)
	return recurse.NewQueryHNSWIndex(child, l.Graph, l.K, l.QueryEmbeddingPos, l.OutPos, l.NodeTableID), nil
}

func mapOrderBy(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*OrderBy)
	return exec.NewOrderBy(child, l.ColPos, l.ColTypes, l.OutPos, l.Keys), nil
}

func mapLimit(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*Limit)
	return exec.NewLimit(child, l.ChunkIdx, l.Count), nil
}

func mapResultCollector(m *Mapper, op Op, child exec.Operator) (exec.Operator, error) {
	l := op.(*ResultCollector)
	return exec.NewResultCollector(child, l.ColPos, l.ColTypes, l.OutPos), nil
}

// MapQuery maps the root of a logical plan and, when root is not
// already one of the pipeline-terminal kinds (OrderBy/Limit/
// ResultCollector), wraps it in a ResultCollector so the caller always
// gets back a single operator it can drive to completion via
// exec.RunPipeline followed by streaming GetNextTuple calls (spec.md
// §4.10 rule (a): "inserts result collectors between pipelines").
func (m *Mapper) MapQuery(root Op, colPos []vector.Pos, colTypes []vector.LogicalType, outPos []vector.Pos) (exec.Operator, error) {
	switch root.Kind() {
	case KindOrderBy, KindLimit, KindResultCollector:
		return m.Map(root)
	}
	mapped, err := m.Map(root)
	if err != nil {
		return nil, err
	}
	return exec.NewResultCollector(mapped, colPos, colTypes, outPos), nil
}
