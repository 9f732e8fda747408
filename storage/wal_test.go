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
	"testing"

	"github.com/kuzudb/graphvec/txn"
)

func TestLogPageUpdateRecordStampsMatchingChecksum(t *testing.T) {
	w := NewMemWAL()
	w.LogPageUpdateRecord(3, 7)
	if len(w.Pages) != 1 {
		t.Fatalf("len(Pages) = %d, want 1", len(w.Pages))
	}
	rec := w.Pages[0]
	if rec.FileID != 3 || rec.PageIdx != 7 {
		t.Fatalf("recorded (FileID, PageIdx) = (%d, %d), want (3, 7)", rec.FileID, rec.PageIdx)
	}
	if rec.Checksum != checksumPage(3, 7) {
		t.Fatal("checksum does not match checksumPage(FileID, PageIdx)")
	}
}

func TestLogCommitRecordsTxID(t *testing.T) {
	w := NewMemWAL()
	w.LogCommit(txn.ID(5))
	if len(w.Commits) != 1 || w.Commits[0] != txn.ID(5) {
		t.Fatalf("Commits = %v, want [5]", w.Commits)
	}
}

func TestUncommittedReturnsPagesUntilCommitLogged(t *testing.T) {
	w := NewMemWAL()
	w.LogPageUpdateRecord(1, 1)
	w.LogPageUpdateRecord(1, 2)

	pending := w.Uncommitted(txn.ID(9))
	if len(pending) != 2 {
		t.Fatalf("Uncommitted before commit = %d records, want 2", len(pending))
	}

	w.LogCommit(txn.ID(9))
	pending = w.Uncommitted(txn.ID(9))
	if pending != nil {
		t.Fatalf("Uncommitted after commit = %v, want nil", pending)
	}
}

func TestUncommittedIsPerTransaction(t *testing.T) {
	w := NewMemWAL()
	w.LogPageUpdateRecord(1, 1)
	w.LogCommit(txn.ID(1))
	// A different, not-yet-committed transaction still sees the pages
	// logged so far (this WAL models one shared page log, not per-tx
	// isolation of page records).
	pending := w.Uncommitted(txn.ID(2))
	if len(pending) != 1 {
		t.Fatalf("Uncommitted(2) = %d records, want 1", len(pending))
	}
}
