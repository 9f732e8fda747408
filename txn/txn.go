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

// Package txn implements the transaction model of spec.md §6/§5/GLOSSARY:
// writes target local (uncommitted) storage chunks that readers in the
// owning transaction observe and readers in other transactions do not.
package txn

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Type is READ_ONLY | WRITE (GLOSSARY).
type Type int

const (
	ReadOnly Type = iota
	Write
)

var nextID atomic.Uint64

// ID uniquely identifies a transaction for the lifetime of the process,
// used both for local-chunk visibility checks and for WAL commit
// records (logCommit(txID), spec.md §6).
type ID uint64

// Transaction is the handle threaded through every storage/WAL call; the
// execution core never constructs on without going through Begin.
type Transaction struct {
	ID     ID
	Type   Type
	QueryID uuid.UUID

	committed atomic.Bool
	rolledBack atomic.Bool
}

// Begin starts a new transaction of the given type, tagged with the
// query UUID it belongs to (spec.md's ClientContext is query-scoped; the
// transaction outlives a single query only for explicit multi-statement
// transactions, which are out of scope here).
func Begin(t Type, queryID uuid.UUID) *Transaction {
	return &Transaction{
		ID:      ID(nextID.Add(1)),
		Type:    t,
		QueryID: queryID,
	}
}

// Commit marks the transaction committed. Safe to call once.
func (tx *Transaction) Commit() { tx.committed.Store(true) }

// Rollback marks the transaction rolled back, the terminal state for any
// query that returns with a non-Interrupted error before COMMIT, or any
// Interrupted query (spec.md §7: "Interrupted queries roll back their
// transaction").
func (tx *Transaction) Rollback() { tx.rolledBack.Store(true) }

func (tx *Transaction) Committed() bool  { return tx.committed.Load() }
func (tx *Transaction) RolledBack() bool { return tx.rolledBack.Load() }

// Visible reports whether a local (uncommitted) chunk written by owner
// should be visible to a read performed under tx: only the owning
// transaction itself observes its own uncommitted writes (spec.md §6,
// GLOSSARY "Transaction type").
func Visible(tx, owner *Transaction) bool {
	return tx.ID == owner.ID
}
