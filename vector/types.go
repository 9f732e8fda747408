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

// Package vector implements the columnar batch carriers of the execution
// core: value vectors and the selection state (data-chunk state) they
// share, per spec.md §3.1-§3.3.
package vector

import "fmt"

// LogicalType tags the type of values held by a Vector. This is the
// GLOSSARY's "logical type tag" enumeration, unchanged.
type LogicalType uint8

const (
	BOOL LogicalType = iota
	INT16
	INT32
	INT64
	FLOAT
	DOUBLE
	DATE
	TIMESTAMP
	INTERVAL
	STRING
	BLOB
	INTERNAL_ID
	LIST
	FIXED_LIST
	STRUCT
	NODE
	REL
)

func (t LogicalType) String() string {
	switch t {
	case BOOL:
		return "BOOL"
	case INT16:
		return "INT16"
	case INT32:
		return "INT32"
	case INT64:
		return "INT64"
	case FLOAT:
		return "FLOAT"
	case DOUBLE:
		return "DOUBLE"
	case DATE:
		return "DATE"
	case TIMESTAMP:
		return "TIMESTAMP"
	case INTERVAL:
		return "INTERVAL"
	case STRING:
		return "STRING"
	case BLOB:
		return "BLOB"
	case INTERNAL_ID:
		return "INTERNAL_ID"
	case LIST:
		return "LIST"
	case FIXED_LIST:
		return "FIXED_LIST"
	case STRUCT:
		return "STRUCT"
	case NODE:
		return "NODE"
	case REL:
		return "REL"
	default:
		return fmt.Sprintf("LogicalType(%d)", t)
	}
}

// width returns the fixed in-vector byte width of a value of type t, or 0
// for types that are stored entirely out-of-line (STRING overflow
// pointers still occupy a fixed inline slot; see stringSlotWidth).
func (t LogicalType) width() int {
	switch t {
	case BOOL:
		return 1
	case INT16:
		return 2
	case INT32, FLOAT, DATE:
		return 4
	case INT64, DOUBLE, TIMESTAMP, INTERVAL:
		return 8
	case STRING, BLOB:
		return stringSlotWidth
	case INTERNAL_ID, NODE, REL:
		return nodeIDWidth
	case LIST, FIXED_LIST:
		return listEntryWidth
	case STRUCT:
		return 0 // struct vectors hold no inline data of their own
	default:
		return 0
	}
}

const (
	// V is the maximum number of values held by one vector / data chunk,
	// per spec.md §3.1.
	V = 2048

	// stringPrefixLen is the inline prefix length for STRING/BLOB
	// values; longer values spill to the overflow arena (spec.md §4.1).
	stringPrefixLen = 12
	// stringSlotWidth is prefix + 8-byte overflow pointer/length tag.
	stringSlotWidth = stringPrefixLen + 8
	// nodeIDWidth is sizeof(nodeID): a 16-byte (offset, tableID) pair
	// (spec.md §3.8), also used for relID and INTERNAL_ID.
	nodeIDWidth = 16
	// listEntryWidth is sizeof(list_entry_t{offset, size}).
	listEntryWidth = 8
)

// NodeID identifies a node as (offset, tableID); fixed-width 16 bytes per
// spec.md §3.8. Offsets are stable within a table for the lifetime of a
// transaction.
type NodeID struct {
	Offset  uint64
	TableID uint32
	_       uint32 // padding to keep the type exactly 16 bytes wide
}

// RelID identifies a relationship the same way a NodeID identifies a
// node.
type RelID = NodeID

// ListEntry points into a child data vector owned by the parent LIST
// vector (spec.md §4.1).
type ListEntry struct {
	Offset uint32
	Size   uint32
}

// StringRef is the decoded form of a STRING/BLOB slot: either the inline
// prefix is the whole value (Len <= stringPrefixLen) or Overflow points
// into the per-pipeline bump arena.
type StringRef struct {
	Len      int
	Inline   [stringPrefixLen]byte
	Overflow []byte // nil unless Len > stringPrefixLen
}

// Bytes returns the logical value regardless of where it is stored.
func (s StringRef) Bytes() []byte {
	if s.Len <= stringPrefixLen {
		return s.Inline[:s.Len]
	}
	return s.Overflow
}
