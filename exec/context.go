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

package exec

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kuzudb/graphvec/catalog"
	"github.com/kuzudb/graphvec/internal/hashkey"
	"github.com/kuzudb/graphvec/internal/logctx"
	"github.com/kuzudb/graphvec/storage"
	"github.com/kuzudb/graphvec/txn"
)

// Context is the query-scoped ClientContext of spec.md §9 Design Notes:
// "the query-scoped ClientContext bundles catalog, transaction handle,
// buffer/memory manager, interrupted flag, and deadline. Pass it by
// reference everywhere." There is no other global mutable state in the
// execution core.
type Context struct {
	QueryID uuid.UUID
	Tx      *txn.Transaction
	Catalog catalog.Catalog
	Tables  storage.TableProvider
	Buffer  storage.BufferManager
	Memory  storage.MemoryManager
	WAL     storage.WAL
	Salt    hashkey.QuerySalt

	NumThreads int

	deadline    time.Time
	hasDeadline bool
	interrupted atomic.Bool

	Progress ProgressBarDisplay
}

// NewContext builds a fresh query context. numThreads is the effective
// parallelism for this query (spec.md §4.3: fixed at connection
// construction or per-query).
func NewContext(tx *txn.Transaction, cat catalog.Catalog, tables storage.TableProvider, buf storage.BufferManager, mem storage.MemoryManager, wal storage.WAL, numThreads int) *Context {
	return &Context{
		QueryID:    tx.QueryID,
		Tx:         tx,
		Catalog:    cat,
		Tables:     tables,
		Buffer:     buf,
		Memory:     mem,
		WAL:        wal,
		NumThreads: numThreads,
		Progress:   noopProgress{},
	}
}

// WithDeadline attaches a hard deadline; after it passes, Interrupted
// reports true (spec.md §5: "a deadline timestamp... checked at every
// getNextTuple entry").
func (c *Context) WithDeadline(d time.Time) *Context {
	c.deadline = d
	c.hasDeadline = true
	return c
}

// Cancel sets the cooperative interrupted flag (spec.md §4.3:
// "Cancellation is cooperative: the context carries an atomic
// interrupted flag checked at every getNextTuple entry").
func (c *Context) Cancel() { c.interrupted.Store(true) }

// Interrupted reports whether the query has been cancelled or has passed
// its deadline. Every operator's getNextTuple must check this first.
func (c *Context) Interrupted() bool {
	if c.interrupted.Load() {
		return true
	}
	if c.hasDeadline && !c.deadline.IsZero() && time.Now().After(c.deadline) {
		c.interrupted.Store(true)
		return true
	}
	return false
}

// CheckInterrupted is the one-line guard every getNextTuple
// implementation calls first; it returns a properly tagged Interrupted
// error when tripped.
func (c *Context) CheckInterrupted() error {
	if c.Interrupted() {
		return New(Interrupted, "query %s cancelled or past deadline", c.QueryID)
	}
	return nil
}

// Logger returns a logctx.Logger tagged with this query and the given
// pipeline ID.
func (c *Context) Logger(pipelineID int) logctx.Logger {
	return logctx.Logger{QueryID: c.QueryID.String(), PipelineID: pipelineID}
}
