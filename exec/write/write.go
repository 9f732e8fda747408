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

// Package write implements the writing operators of spec.md §4.9:
// CreateNode, CreateRel, SetNodeProperty, SetRelProperty, DeleteNode,
// DeleteRel, Merge, CopyNode, CopyRel. Every operator except
// SetNodeProperty drives the same per-row state machine (READ_INPUT ->
// VALIDATE -> APPLY -> EMIT_OUTPUT), flattening its child's chunk one row
// at a time since PK validation and WAL logging are inherently per-row
// operations, grounded on the teacher's per-row flattening helper
// (vector.Flatten) rather than a bespoke row cursor. SetNodeProperty
// writes the whole chunk with one NodeTable.Write call.
package write

import (
	"github.com/kuzudb/graphvec/storage"
)

// rowsPerPage is the synthetic page size this reference implementation
// uses to translate a node/rel offset into a WAL page index; the real
// on-disk page size is a storage-layer concern out of scope here (spec.md
// §1), but writing operators still owe the WAL one page-update record per
// dirtied page (spec.md §4.9), so a stand-in granularity is needed to
// exercise that contract.
const rowsPerPage = 256

func pageOf(offset uint64) uint64 { return offset / rowsPerPage }

// logWrite records one WAL page-update record for the page backing
// offset in table fileID (spec.md §4.9 APPLY step).
func logWrite(wal storage.WAL, fileID uint32, offset uint64) {
	if wal == nil {
		return
	}
	wal.LogPageUpdateRecord(fileID, pageOf(offset))
}

// conflictPolicy selects what VALIDATE does with a duplicate-PK failure
// (spec.md §4.9 state diagram: VALIDATE fails -> ERROR, except Merge's
// ON CONFLICT path, which SPEC_FULL.md §A.2 resolves by converting the
// ConstraintViolation into a recorded warning instead of aborting).
type conflictPolicy int

const (
	failOnConflict conflictPolicy = iota
	skipOnConflict
)

// Warning records one row that Merge, CopyNode or CopyRel skipped as a
// soft failure instead of aborting the transaction (SPEC_FULL.md §A.2).
type Warning struct {
	Row     int
	Message string
}

func isDuplicatePK(err error) bool {
	return err == storage.ErrDuplicatePK
}
