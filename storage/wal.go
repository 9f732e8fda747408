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

package storage

import (
	"encoding/binary"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/kuzudb/graphvec/catalog"
	"github.com/kuzudb/graphvec/txn"
)

// PageUpdateRecord is one entry of an in-memory WAL, enough to verify the
// "writing operators log a WAL page-update record per dirtied page"
// invariant (spec.md §4.9) without a durable log file; replay is storage's
// responsibility and out of scope (spec.md §6: "The core does not replay
// the WAL").
//
// Checksum is computed the same way blockfmt/index.go checksums its
// trailer: blake2b-256 over the record's identifying fields, so a
// corrupted or truncated in-memory record is detectable the same way a
// corrupted on-disk one would be, even though this WAL never hits disk.
type PageUpdateRecord struct {
	FileID   uint32
	PageIdx  uint64
	Checksum [32]byte
}

func checksumPage(fileID uint32, pageIdx uint64) [32]byte {
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[:4], fileID)
	binary.LittleEndian.PutUint64(buf[4:], pageIdx)
	return blake2b.Sum256(buf[:])
}

// MemWAL is an in-memory WAL reference implementation recording every
// call it receives, used by tests to assert the writing-operator state
// machine (spec.md §4.9) actually logged what it should have.
type MemWAL struct {
	mu       sync.Mutex
	Pages    []PageUpdateRecord
	Commits  []txn.ID
	created  []catalog.NodeTableSchema
	dropped  []uint32
	addedCol []catalog.PropertySchema
}

func NewMemWAL() *MemWAL { return &MemWAL{} }

func (w *MemWAL) LogPageUpdateRecord(fileID uint32, pageIdx uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Pages = append(w.Pages, PageUpdateRecord{FileID: fileID, PageIdx: pageIdx, Checksum: checksumPage(fileID, pageIdx)})
}

func (w *MemWAL) LogCommit(id txn.ID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Commits = append(w.Commits, id)
}

func (w *MemWAL) LogCreateNodeTableRecord(schema catalog.NodeTableSchema) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.created = append(w.created, schema)
}

func (w *MemWAL) LogDropTableRecord(tableID uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dropped = append(w.dropped, tableID)
}

func (w *MemWAL) LogAddPropertyRecord(tableID uint32, prop catalog.PropertySchema) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.addedCol = append(w.addedCol, prop)
}

// Uncommitted returns nil once id has a commit record, and otherwise every
// page-update record logged so far, used by the cancellation test scenario (spec.md §8
// scenario 5) to assert no WAL records are left dangling.
func (w *MemWAL) Uncommitted(id txn.ID) []PageUpdateRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range w.Commits {
		if c == id {
			return nil
		}
	}
	return append([]PageUpdateRecord(nil), w.Pages...)
}
