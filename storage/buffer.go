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
	"fmt"
	"sync"

	"github.com/kuzudb/graphvec/storage/membuf"
)

// MemBufferManager is an in-memory BufferManager reference
// implementation: every "page" is backed by a membuf.Buffer handed out
// from a fixed arena, and Pin/Unpin just track reference counts rather
// than performing real disk I/O, since the on-disk page format is out of
// scope (spec.md §1).
type MemBufferManager struct {
	arena *membuf.Arena

	mu     sync.Mutex
	pages  map[pageKey]*pageState
}

type pageKey struct {
	fileID  uint32
	pageIdx uint64
}

type pageState struct {
	buf    *membuf.Buffer
	pins   int
	dirty  bool
}

// NewMemBufferManager reserves an arena of the given capacity in bytes.
func NewMemBufferManager(capacity int) *MemBufferManager {
	return &MemBufferManager{
		arena: membuf.NewArena(capacity),
		pages: make(map[pageKey]*pageState),
	}
}

// Pin implements BufferManager.Pin.
func (m *MemBufferManager) Pin(fileID uint32, pageIdx uint64, policy ReadPolicy) (*Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pageKey{fileID, pageIdx}
	st, ok := m.pages[key]
	if !ok {
		buf, err := m.arena.Allocate(policy != DoNotRead)
		if err != nil {
			return nil, fmt.Errorf("storage: pin %v: %w", key, err)
		}
		st = &pageState{buf: buf}
		m.pages[key] = st
	}
	st.pins++
	return &Frame{Data: st.buf.Bytes()}, nil
}

// Unpin implements BufferManager.Unpin.
func (m *MemBufferManager) Unpin(fileID uint32, pageIdx uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pageKey{fileID, pageIdx}
	st, ok := m.pages[key]
	if !ok {
		return
	}
	st.pins--
	if st.pins <= 0 && !st.dirty {
		st.buf.Release()
		delete(m.pages, key)
	}
}

// SetPinnedPageDirty implements BufferManager.SetPinnedPageDirty.
func (m *MemBufferManager) SetPinnedPageDirty(fileID uint32, pageIdx uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.pages[pageKey{fileID, pageIdx}]; ok {
		st.dirty = true
	}
}

// MemMemoryManager adapts a membuf.Arena to the MemoryManager contract.
type MemMemoryManager struct {
	arena *membuf.Arena
}

func NewMemMemoryManager(capacity int) *MemMemoryManager {
	return &MemMemoryManager{arena: membuf.NewArena(capacity)}
}

func (m *MemMemoryManager) AllocateBuffer(initZero bool) (MemoryBuffer, error) {
	return m.arena.Allocate(initZero)
}
