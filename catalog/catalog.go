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

// Package catalog is the read-only collaborator the execution core calls
// into for schema lookups (spec.md §1, §6: "The execution core calls
// into the catalog (schema lookups)"). Only the contract the core needs
// is specified here; binder/catalog-mutation logic is out of scope.
package catalog

import (
	"fmt"

	"github.com/kuzudb/graphvec/vector"
)

// PropertyID identifies one property/column of a node or rel table.
type PropertyID uint32

// InvalidPropertyID is returned by lookups that miss, per spec.md §6:
// "guarantees null-on-missing for INVALID_COLUMN_ID".
const InvalidPropertyID PropertyID = ^PropertyID(0)

// PropertySchema describes one property of a table.
type PropertySchema struct {
	ID   PropertyID
	Name string
	Type vector.LogicalType
}

// NodeTableSchema is the catalog entry for one node table.
type NodeTableSchema struct {
	ID         uint32
	Name       string
	Properties []PropertySchema
	PrimaryKey PropertyID
}

// RelTableSchema is the catalog entry for one rel table, naming its
// endpoint node tables so Extend (spec.md §4.8) can validate direction.
type RelTableSchema struct {
	ID         uint32
	Name       string
	Properties []PropertySchema
	FromTable  uint32
	ToTable    uint32
}

// HNSWIndexEntry is the catalog entry for an HNSW vector index (spec.md
// §4.8 last paragraph, GLOSSARY "HNSW config options").
type HNSWIndexEntry struct {
	Name       string
	NodeTable  uint32
	Property   PropertyID
	Config     HNSWConfig
}

// HNSWConfig validates per spec.md §4.8: "Mu in [1,100], Ml in [1,200],
// Pl in [0,1], DistFunc in {cosine, l2, l2sq, dotproduct}, Efc >= 1,
// Alpha >= 1, Efs in [1, 2^32)".
type HNSWConfig struct {
	Mu       int
	Ml       int
	Pl       float64
	DistFunc string
	Efc      int
	Alpha    float64
	Efs      uint64
}

// Validate checks the HNSW config invariants, returning a descriptive
// error naming the first violated constraint.
func (c HNSWConfig) Validate() error {
	switch {
	case c.Mu < 1 || c.Mu > 100:
		return fmt.Errorf("Mu must be in [1,100], got %d", c.Mu)
	case c.Ml < 1 || c.Ml > 200:
		return fmt.Errorf("Ml must be in [1,200], got %d", c.Ml)
	case c.Pl < 0 || c.Pl > 1:
		return fmt.Errorf("Pl must be in [0,1], got %f", c.Pl)
	case !validDistFunc(c.DistFunc):
		return fmt.Errorf("DistFunc must be one of cosine|l2|l2sq|dotproduct, got %q", c.DistFunc)
	case c.Efc < 1:
		return fmt.Errorf("Efc must be >= 1, got %d", c.Efc)
	case c.Alpha < 1:
		return fmt.Errorf("Alpha must be >= 1, got %f", c.Alpha)
	case c.Efs < 1 || c.Efs >= 1<<32:
		return fmt.Errorf("Efs must be in [1, 2^32), got %d", c.Efs)
	}
	return nil
}

func validDistFunc(s string) bool {
	switch s {
	case "cosine", "l2", "l2sq", "dotproduct":
		return true
	default:
		return false
	}
}

// Catalog is the read-only contract the execution core depends on.
type Catalog interface {
	NodeTable(id uint32) (NodeTableSchema, error)
	NodeTableByName(name string) (NodeTableSchema, error)
	RelTable(id uint32) (RelTableSchema, error)
	RelTableByName(name string) (RelTableSchema, error)
	HNSWIndex(name string) (HNSWIndexEntry, error)
}
