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

// Package membuf is the allocator behind the memory manager's
// allocateBuffer contract (spec.md §6): a page-granularity arena reserved
// up front when the arena is created, the same shape as the teacher's vm/malloc.go
// VMM region, ported from the teacher's raw syscall.Mmap calls to the
// portable golang.org/x/sys/unix wrapper so the reservation logic isn't
// duplicated per-OS the way vm/malloc_linux.go / malloc_darwin.go /
// malloc_windows.go are.
package membuf

import (
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"
)

const (
	// PageBits/PageSize mirror the teacher's 1MiB allocation granularity
	// (vm/malloc.go: pageBits = 20).
	PageBits = 20
	PageSize = 1 << PageBits
)

// Buffer is a MemoryBuffer: a page-aligned slice that frees itself back
// to the arena when Release is called (spec.md §6: "returned buffers
// free themselves on drop").
type Buffer struct {
	mem   []byte
	arena *Arena
	page  int
}

// Bytes returns the buffer's backing memory.
func (b *Buffer) Bytes() []byte { return b.mem }

// Release returns the buffer's page to the arena's free list.
func (b *Buffer) Release() {
	if b.arena == nil {
		return
	}
	b.arena.free(b.page)
	b.arena = nil
}

// Arena is a fixed-capacity pool of PageSize-sized buffers, allocated up
// front (mmap'd on platforms where that's wired up; a plain make([]byte)
// reservation otherwise — see arena_linux.go) and handed out via a
// mutex-guarded free bitmap, mirroring vm/malloc.go's vmbits free bitmap.
type Arena struct {
	mem       []byte
	numPages  int
	freeWords []uint64
	mu        sync.Mutex // guards the bitmap scan and the claim of a free page
}

// NewArena reserves capacity bytes (rounded up to a whole number of
// pages) of arena space.
func NewArena(capacity int) *Arena {
	numPages := (capacity + PageSize - 1) / PageSize
	if numPages < 1 {
		numPages = 1
	}
	return &Arena{
		mem:       reserve(numPages * PageSize),
		numPages:  numPages,
		freeWords: make([]uint64, (numPages+63)/64),
	}
}

// Allocate returns a fresh, optionally zeroed Buffer of exactly one page.
// This is the allocateBuffer(initZero) contract of spec.md §6.
func (a *Arena) Allocate(initZero bool) (*Buffer, error) {
	a.mu.Lock()
	page := -1
	for w := range a.freeWords {
		word := a.freeWords[w]
		if word == ^uint64(0) {
			continue
		}
		bit := bits.TrailingZeros64(^word)
		idx := w*64 + bit
		if idx >= a.numPages {
			continue
		}
		a.freeWords[w] = word | (1 << bit)
		page = idx
		break
	}
	a.mu.Unlock()
	if page < 0 {
		return nil, fmt.Errorf("membuf: arena exhausted (%d pages)", a.numPages)
	}
	mem := a.mem[page*PageSize : (page+1)*PageSize]
	if initZero {
		for i := range mem {
			mem[i] = 0
		}
	}
	return &Buffer{mem: mem, arena: a, page: page}, nil
}

func (a *Arena) free(page int) {
	a.mu.Lock()
	a.freeWords[page/64] &^= 1 << uint(page%64)
	a.mu.Unlock()
}

// InUse reports the number of currently-allocated pages, used by tests
// and the CLI's memory stats display.
func (a *Arena) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for w, word := range a.freeWords {
		for bit := 0; bit < 64; bit++ {
			if w*64+bit >= a.numPages {
				break
			}
			if word&(1<<bit) != 0 {
				n++
			}
		}
	}
	return n
}

var exhaustedCount atomic.Uint64
