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

package write

import (
	"github.com/google/uuid"

	"github.com/kuzudb/graphvec/catalog"
	"github.com/kuzudb/graphvec/exec"
	"github.com/kuzudb/graphvec/storage"
	"github.com/kuzudb/graphvec/txn"
	"github.com/kuzudb/graphvec/vector"
)

// valuesSource is a one-shot leaf operator emitting a fixed Chunk, the
// role a VALUES clause or an upstream scan plays ahead of a writing
// operator in a real plan.
type valuesSource struct {
	exec.Base
	chunk   *vector.Chunk
	pos     vector.Pos
	emitted bool
}

func newValuesSource(chunk *vector.Chunk, pos vector.Pos) *valuesSource {
	return &valuesSource{chunk: chunk, pos: pos}
}

func (v *valuesSource) Kind() exec.OpKind { return exec.KindScanNodeID }

func (v *valuesSource) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	rs.SetChunk(v.pos.ChunkIdx, v.chunk)
	return nil
}

func (v *valuesSource) GetNextTuple(ctx *exec.Context) (bool, error) {
	if v.emitted {
		return false, nil
	}
	v.emitted = true
	return true, nil
}

func (v *valuesSource) Clone() exec.Operator {
	return &valuesSource{chunk: v.chunk, pos: v.pos}
}

func newTestContext(tables storage.TableProvider, wal storage.WAL) *exec.Context {
	tx := txn.Begin(txn.Write, uuid.New())
	return exec.NewContext(tx, nil, tables, nil, nil, wal, 1)
}

func nameSchema(tableID uint32, pkID catalog.PropertyID) catalog.NodeTableSchema {
	return catalog.NodeTableSchema{
		ID:         tableID,
		Name:       "Person",
		PrimaryKey: pkID,
		Properties: []catalog.PropertySchema{
			{ID: pkID, Name: "id", Type: vector.INT64},
			{ID: pkID + 1, Name: "name", Type: vector.STRING},
		},
	}
}

// countingWAL records every page-update call, so tests can assert the
// writing operators honor spec.md §4.9's "one WAL record per dirtied
// row/page" APPLY obligation without needing a real WAL implementation.
type countingWAL struct {
	pageUpdates []struct {
		fileID  uint32
		pageIdx uint64
	}
}

func (w *countingWAL) LogPageUpdateRecord(fileID uint32, pageIdx uint64) {
	w.pageUpdates = append(w.pageUpdates, struct {
		fileID  uint32
		pageIdx uint64
	}{fileID, pageIdx})
}
func (w *countingWAL) LogCommit(id txn.ID)                                          {}
func (w *countingWAL) LogCreateNodeTableRecord(schema catalog.NodeTableSchema)       {}
func (w *countingWAL) LogDropTableRecord(tableID uint32)                             {}
func (w *countingWAL) LogAddPropertyRecord(tableID uint32, prop catalog.PropertySchema) {}
