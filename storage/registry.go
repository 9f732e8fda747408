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
)

// MemTableRegistry is the in-memory TableProvider reference
// implementation: a flat map from catalog table ID to the live
// MemNodeTable/MemRelTable backing it.
type MemTableRegistry struct {
	mu        sync.RWMutex
	nodes     map[uint32]*MemNodeTable
	rels      map[uint32]*MemRelTable
}

func NewMemTableRegistry() *MemTableRegistry {
	return &MemTableRegistry{
		nodes: make(map[uint32]*MemNodeTable),
		rels:  make(map[uint32]*MemRelTable),
	}
}

// RegisterNodeTable adds or replaces the node table backing tableID.
func (r *MemTableRegistry) RegisterNodeTable(tableID uint32, t *MemNodeTable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[tableID] = t
}

// RegisterRelTable adds or replaces the rel table backing tableID.
func (r *MemTableRegistry) RegisterRelTable(tableID uint32, t *MemRelTable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rels[tableID] = t
}

// NodeTable implements TableProvider.
func (r *MemTableRegistry) NodeTable(tableID uint32) (NodeTable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.nodes[tableID]
	if !ok {
		return nil, fmt.Errorf("storage: no node table registered for id %d", tableID)
	}
	return t, nil
}

// RelTable implements TableProvider.
func (r *MemTableRegistry) RelTable(tableID uint32) (RelTable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.rels[tableID]
	if !ok {
		return nil, fmt.Errorf("storage: no rel table registered for id %d", tableID)
	}
	return t, nil
}
