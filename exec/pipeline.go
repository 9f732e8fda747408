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
	"runtime"
	"sync"

	"github.com/kuzudb/graphvec/vector"
)

// Breaker marks an operator whose subtree must run to completion, as its
// own barrier-synchronized sub-pipeline, before the pipeline it feeds may
// start (spec.md §4.2 "Pipeline split": hash-join build and aggregate
// build sides). Build populates whatever shared structure the probe-side
// operator reads afterwards (a HashTable, an AggregateState slice); it
// may itself parallelize over d.Children() using RunPipeline.
type Breaker interface {
	Operator
	Build(ctx *Context, numWorkers int) error
}

// pool is a bounded goroutine work queue, grounded on the teacher's
// plan.pool (plan/exec.go): a buffered channel of closures read by a
// fixed set of long-lived goroutines, sized to the query's thread count
// rather than spawning one goroutine per morsel.
type pool chan func()

func newPool(n int) pool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	p := make(pool, n)
	for i := 0; i < n; i++ {
		go func() {
			for f := range p {
				f()
			}
		}()
	}
	return p
}

func (p pool) close() { close(p) }

// RunPipeline drives one pipeline to completion: any Breaker children are
// built first (each as its own barrier-synchronized sub-pipeline), then
// numWorkers clones of root pull morsels in parallel, each clone owning
// its own ResultSet (spec.md §3.4: a ResultSet's chunks are per-worker
// storage, never shared across threads), until every worker's
// GetNextTuple returns false, at which point root.Finalize runs once
// (spec.md §4.2, §4.3 "Parallelism": "a fixed worker pool pulls
// sub-pipelines to completion; the last worker to finish a sub-pipeline
// runs the barrier").
func RunPipeline(ctx *Context, root Operator, numWorkers int) error {
	if numWorkers <= 0 {
		numWorkers = ctx.NumThreads
	}
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	if err := buildBreakers(ctx, root, numWorkers); err != nil {
		return err
	}

	p := newPool(numWorkers)
	defer p.close()

	clones := make([]Operator, numWorkers)
	clones[0] = root
	for i := 1; i < numWorkers; i++ {
		clones[i] = root.Clone()
	}

	var wg sync.WaitGroup
	errs := make([]error, numWorkers)
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		i := i
		p <- func() {
			defer wg.Done()
			errs[i] = runWorker(ctx, clones[i])
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return root.Finalize(ctx)
}

func runWorker(ctx *Context, op Operator) error {
	rs := &vector.ResultSet{}
	if err := op.InitLocalState(rs, ctx); err != nil {
		return err
	}
	for {
		if err := ctx.CheckInterrupted(); err != nil {
			return err
		}
		more, err := op.GetNextTuple(ctx)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// buildBreakers walks the tree depth-first and runs every Breaker's
// subtree to completion before its parent pulls from it, implementing
// the "build side before probe side" half of pipeline splitting.
func buildBreakers(ctx *Context, op Operator, numWorkers int) error {
	for _, c := range op.Children() {
		if err := buildBreakers(ctx, c, numWorkers); err != nil {
			return err
		}
	}
	if b, ok := op.(Breaker); ok {
		return b.Build(ctx, numWorkers)
	}
	return nil
}
