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

package txn

import (
	"testing"

	"github.com/google/uuid"
)

func TestBeginAssignsDistinctIncreasingIDs(t *testing.T) {
	a := Begin(Write, uuid.New())
	b := Begin(ReadOnly, uuid.New())
	if a.ID == b.ID {
		t.Fatalf("Begin returned the same ID twice: %d", a.ID)
	}
	if b.ID <= a.ID {
		t.Fatalf("ID should be monotonically increasing, got a=%d b=%d", a.ID, b.ID)
	}
	if a.Type != Write || b.Type != ReadOnly {
		t.Fatal("Begin did not record the requested Type")
	}
}

func TestCommitAndRollbackAreObservable(t *testing.T) {
	tx := Begin(Write, uuid.New())
	if tx.Committed() || tx.RolledBack() {
		t.Fatal("a fresh transaction should be neither committed nor rolled back")
	}
	tx.Commit()
	if !tx.Committed() {
		t.Fatal("Committed() should report true after Commit()")
	}
	if tx.RolledBack() {
		t.Fatal("Commit() should not mark the transaction rolled back")
	}
}

func TestRollback(t *testing.T) {
	tx := Begin(Write, uuid.New())
	tx.Rollback()
	if !tx.RolledBack() {
		t.Fatal("RolledBack() should report true after Rollback()")
	}
	if tx.Committed() {
		t.Fatal("Rollback() should not mark the transaction committed")
	}
}

func TestVisibleOnlyToOwningTransaction(t *testing.T) {
	owner := Begin(Write, uuid.New())
	reader := Begin(ReadOnly, uuid.New())
	if !Visible(owner, owner) {
		t.Fatal("a transaction must see its own writes")
	}
	if Visible(reader, owner) {
		t.Fatal("a different transaction must not see owner's uncommitted writes")
	}
}
