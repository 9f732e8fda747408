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

package rowtable

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"

	"github.com/kuzudb/graphvec/vector"
)

// overflowValue is overflow_value_t{count, pointer} from spec.md §3.5:
// the inline representation of an unflat column's variable-length list.
type overflowValue struct {
	count uint64
	// ptr indexes into Table.overflow, not a raw memory address, so the
	// table can be copied/moved without invalidating pointers as long as
	// the backing overflow slice is preserved (spec.md §3.5 invariant:
	// "overflow pointers outlive the table").
	ptr uint64
}

// overflowCell is one variable-length list entry materialized from an
// unflat vector: a snapshot of every logical value the source vector held
// for one row's worth of a multi-valued group.
type overflowCell struct {
	values []any
}

// Table is the factorized table of spec.md §3.5: a row store whose
// columns are flat (one value per row) or unflat (a pointer to a
// variable-length list). Append is append-only during a pipeline; after
// its sink calls Finalize, the table is immutable and Scan is lock-free.
type Table struct {
	Schema *Schema

	mu       sync.Mutex // guards row growth during the append phase
	rows     [][]byte   // one []byte of len Schema.RowSize per row
	overflow []overflowCell
	strings  [][]byte // flat STRING/BLOB payloads, indexed by overflowValue.ptr

	finalized atomic.Bool
}

// New returns an empty Table with the given schema.
func New(schema *Schema) *Table {
	return &Table{Schema: schema}
}

// NumTuples returns the number of rows appended so far.
func (t *Table) NumTuples() int {
	t.mu.Lock()
	n := len(t.rows)
	t.mu.Unlock()
	return n
}

// AppendRow writes one row from src at logical position srcRow, reading
// flat columns directly and writing unflat columns as overflowValue,
// implementing the "tuple" write rule of spec.md §3.5.
//
// AppendRow is safe to call concurrently from multiple build-side
// workers; each call claims its own row slot under t.mu, matching the
// "build scans are worker-parallel" concurrency note of spec.md §4.5.
func (t *Table) AppendRow(rs *vector.ResultSet, srcRow int) int {
	row := make([]byte, t.Schema.RowSize)
	for _, col := range t.Schema.Columns {
		if col.SourceChunkIdx == InvalidChunkIdx {
			continue // derived column, filled in later (hash, prev-ptr)
		}
		v := rs.Chunks[col.SourceChunkIdx].Vectors[col.SourceVectorIdx]
		if col.IsFlat && (v.Type == vector.STRING || v.Type == vector.BLOB) {
			s := append([]byte(nil), v.GetString(srcRow)...)
			t.mu.Lock()
			sidx := uint64(len(t.strings))
			t.strings = append(t.strings, s)
			t.mu.Unlock()
			binary.LittleEndian.PutUint64(row[col.offset:col.offset+8], uint64(len(s)))
			binary.LittleEndian.PutUint64(row[col.offset+8:col.offset+16], sidx)
		} else if col.IsFlat {
			writeFlat(row[col.offset:col.offset+col.width], v, srcRow)
		} else {
			cell := readUnflatGroup(v, srcRow)
			t.mu.Lock()
			idx := uint64(len(t.overflow))
			t.overflow = append(t.overflow, cell)
			t.mu.Unlock()
			ov := overflowValue{count: uint64(len(cell.values)), ptr: idx}
			binary.LittleEndian.PutUint64(row[col.offset:col.offset+8], ov.count)
			binary.LittleEndian.PutUint64(row[col.offset+8:col.offset+16], ov.ptr)
		}
	}
	t.mu.Lock()
	idx := len(t.rows)
	t.rows = append(t.rows, row)
	t.mu.Unlock()
	return idx
}

// writeFlat copies the single logical value at rs row srcRow into dst,
// using a loosely-typed encoding (see vector.Vector's own typed
// accessors for the strongly-typed equivalent); factorized rows are
// opaque byte layouts so a generic path is used here rather than
// threading LogicalType-specific code through every call site.
func writeFlat(dst []byte, v *vector.Vector, srcRow int) {
	switch v.Type {
	case vector.BOOL:
		if v.GetBool(srcRow) {
			dst[0] = 1
		}
	case vector.INT32:
		binary.LittleEndian.PutUint32(dst, uint32(v.GetInt32(srcRow)))
	case vector.INT64:
		binary.LittleEndian.PutUint64(dst, uint64(v.GetInt64(srcRow)))
	case vector.DOUBLE:
		binary.LittleEndian.PutUint64(dst, doubleBits(v.GetDouble(srcRow)))
	case vector.INTERNAL_ID, vector.NODE, vector.REL:
		id := v.GetNodeID(srcRow)
		binary.LittleEndian.PutUint64(dst[0:8], id.Offset)
		binary.LittleEndian.PutUint32(dst[8:12], id.TableID)
	}
}

func doubleBits(f float64) uint64 {
	return math.Float64bits(f)
}

// readUnflatGroup materializes every value an unflat source vector holds
// "at" srcRow. In the execution core an unflat payload column arises when
// the producing sub-pipeline's group of factorization has more than one
// row per output row (e.g. a hash-join payload fed by an unflat upstream
// join); here we model that as the vector carrying its full logical
// extent for that group, identified by row index.
func readUnflatGroup(v *vector.Vector, srcRow int) overflowCell {
	// The cell holds the single value at srcRow.
	return overflowCell{values: []any{typedValue(v, srcRow)}}
}

func typedValue(v *vector.Vector, i int) any {
	switch v.Type {
	case vector.BOOL:
		return v.GetBool(i)
	case vector.INT32:
		return v.GetInt32(i)
	case vector.INT64:
		return v.GetInt64(i)
	case vector.DOUBLE:
		return v.GetDouble(i)
	case vector.STRING, vector.BLOB:
		return append([]byte(nil), v.GetString(i)...)
	case vector.INTERNAL_ID, vector.NODE, vector.REL:
		return v.GetNodeID(i)
	default:
		return nil
	}
}

// Finalize marks the table immutable; called once after all build-side
// workers finish (spec.md §4.4: "after its sink finishes, the table is
// immutable and reads are lock-free").
func (t *Table) Finalize() {
	t.finalized.Store(true)
}

// RowBytes returns the raw row bytes for row idx. Valid only after
// Finalize (or, during the append phase, for a row index the caller
// itself just received from AppendRow).
func (t *Table) RowBytes(idx int) []byte {
	return t.rows[idx]
}

// Column reads a flat column's raw bytes for row idx.
func (t *Table) Column(idx int, col int) []byte {
	c := t.Schema.Columns[col]
	return t.rows[idx][c.offset : c.offset+c.width]
}

// ColumnUint64 reads a derived 8-byte column (hash_col, prev_ptr_col) as
// a uint64.
func (t *Table) ColumnUint64(idx int, col int) uint64 {
	return binary.LittleEndian.Uint64(t.Column(idx, col))
}

// SetColumnUint64 writes a derived 8-byte column: the hash-join build and
// hash-aggregate code use it to set hash_col, and HashTable.Insert to set
// prev_ptr_col.
func (t *Table) SetColumnUint64(idx int, col int, val uint64) {
	c := t.Schema.Columns[col]
	binary.LittleEndian.PutUint64(t.rows[idx][c.offset:c.offset+8], val)
}

// Overflow returns the materialized values for an unflat column's cell.
func (t *Table) Overflow(idx int) []any {
	return t.overflow[idx].values
}

// Scan reads numRows consecutive rows starting at startRow, translating
// flat columns directly into vectorsOut. colIndices selects which schema
// columns to read, in order, into vectorsOut. Unflat columns are not
// decoded: their vector in vectorsOut is left unwritten, and their values
// are read through Overflow with the cell index stored in the row.
func (t *Table) Scan(vectorsOut []*vector.Vector, startRow, numRows int, colIndices []int) {
	for outIdx, col := range colIndices {
		c := t.Schema.Columns[col]
		dst := vectorsOut[outIdx]
		for r := 0; r < numRows; r++ {
			row := t.rows[startRow+r]
			if c.IsFlat && (c.Type == vector.STRING || c.Type == vector.BLOB) {
				dst.SetString(r, t.stringAt(startRow+r, col))
			} else if c.IsFlat {
				scanFlatInto(dst, r, c, row)
			} else {
				ov := overflowValue{
					count: binary.LittleEndian.Uint64(row[c.offset : c.offset+8]),
					ptr:   binary.LittleEndian.Uint64(row[c.offset+8 : c.offset+16]),
				}
				_ = ov // unflat columns are decoded by the caller via Overflow(int(ov.ptr))
			}
		}
	}
}

func scanFlatInto(dst *vector.Vector, r int, c ColumnDesc, row []byte) {
	mem := row[c.offset : c.offset+c.width]
	switch c.Type {
	case vector.BOOL:
		dst.SetBool(r, mem[0] != 0)
	case vector.INT32:
		dst.SetInt32(r, int32(binary.LittleEndian.Uint32(mem)))
	case vector.INT64:
		dst.SetInt64(r, int64(binary.LittleEndian.Uint64(mem)))
	case vector.DOUBLE:
		dst.SetDouble(r, math.Float64frombits(binary.LittleEndian.Uint64(mem)))
	case vector.INTERNAL_ID, vector.NODE, vector.REL:
		dst.SetNodeID(r, vector.NodeID{
			Offset:  binary.LittleEndian.Uint64(mem[0:8]),
			TableID: binary.LittleEndian.Uint32(mem[8:12]),
		})
	}
}

// stringAt returns the flat STRING/BLOB payload for row idx, column col.
func (t *Table) stringAt(idx, col int) []byte {
	c := t.Schema.Columns[col]
	mem := t.rows[idx][c.offset : c.offset+c.width]
	sidx := binary.LittleEndian.Uint64(mem[8:16])
	return t.strings[sidx]
}

// StringColumn is the public accessor for a flat STRING/BLOB column.
func (t *Table) StringColumn(idx, col int) []byte {
	return t.stringAt(idx, col)
}
