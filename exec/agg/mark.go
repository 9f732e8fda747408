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

package agg

import (
	"github.com/kuzudb/graphvec/exec"
	"github.com/kuzudb/graphvec/exec/join"
	"github.com/kuzudb/graphvec/vector"
)

// MarkAccumulate is spec.md §4.7's "variant whose only aggregate is 'has
// any row'": it flattens the key groups and stores one entry per unique
// key tuple, with no payload columns, so a downstream HashJoinProbe in
// join.Mark mode can later test membership and materialize a mark column.
// Grounded directly on join.HashJoinBuild, which already implements
// exactly this build-index-then-probe shape; MarkAccumulate only fixes
// JoinKind to join.Mark and PayloadPos/PayloadTypes to empty.
type MarkAccumulate struct {
	*join.HashJoinBuild
}

func NewMarkAccumulate(child exec.Operator, keyPos []vector.Pos, keyTypes []vector.LogicalType) *MarkAccumulate {
	b := join.NewHashJoinBuild(join.Mark, child, keyPos, keyTypes, nil, nil)
	return &MarkAccumulate{HashJoinBuild: b}
}

func (m *MarkAccumulate) Kind() exec.OpKind { return exec.KindMarkAccumulate }

func (m *MarkAccumulate) Clone() exec.Operator {
	return &MarkAccumulate{HashJoinBuild: m.HashJoinBuild}
}
