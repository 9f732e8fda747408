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

package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Vector is a column of up to V values of one logical type, plus the
// auxiliary state spec.md §3.1 names: a null bitmap, optional overflow
// storage, optional child vectors, and a pointer to the State shared by
// every vector in its chunk.
type Vector struct {
	Type LogicalType

	buf    []byte // raw fixed-width slots, V * width(Type)
	nulls  []uint64
	state  *State
	arena  *Arena // string/blob overflow; nil until first spill
	width  int

	// Sequential marks a vector whose logical values are a contiguous
	// range [seqStart, seqStart+size); scans use this to skip
	// materializing a full offset vector (spec.md §3.1).
	Sequential bool
	seqStart   uint64

	// Children holds child vectors for LIST/STRUCT types; they share no
	// state with the parent vector (spec.md §3.1 invariant).
	Children []*Vector
	// FieldNames names each child for STRUCT vectors.
	FieldNames []string
}

// New allocates a Vector of the given type bound to state. state must
// already reflect the chunk's logical size.
func New(t LogicalType, state *State) *Vector {
	w := t.width()
	v := &Vector{
		Type:  t,
		state: state,
		width: w,
	}
	if w > 0 {
		v.buf = make([]byte, V*w)
	}
	v.nulls = make([]uint64, (V+63)/64)
	return v
}

// NewSequential returns a Vector of INTERNAL_ID/INT64-like values that are
// the contiguous range [start, start+state.Size()), with Sequential set so
// that readers may skip materialization (spec.md §4.6 step 3).
func NewSequential(t LogicalType, state *State, start uint64) *Vector {
	v := New(t, state)
	v.Sequential = true
	v.seqStart = start
	return v
}

func (v *Vector) state_() *State { return v.state }

// State returns the selection state this vector is bound to.
func (v *Vector) State() *State { return v.state }

// NewView returns a Vector sharing v's backing storage (buf, null
// bitmap, overflow arena) but bound to a different selection State.
// Used to present a row subset of an existing vector — e.g. the rows of
// one rel table within a multi-label ID vector — without copying data
// (spec.md §4.6 multi-label dispatch).
func NewView(v *Vector, state *State) *Vector {
	view := *v
	view.state = state
	return &view
}

func (v *Vector) slot(physical uint32) []byte {
	off := int(physical) * v.width
	return v.buf[off : off+v.width]
}

// IsNull reports whether logical row i is null. A set null bit means
// readers must treat the slot as absent (spec.md §3.1 invariant).
func (v *Vector) IsNull(i int) bool {
	p := v.state.Index(i)
	return v.nulls[p/64]&(1<<(p%64)) != 0
}

// SetNull marks logical row i null or not-null.
func (v *Vector) SetNull(i int, isNull bool) {
	p := v.state.Index(i)
	if isNull {
		v.nulls[p/64] |= 1 << (p % 64)
	} else {
		v.nulls[p/64] &^= 1 << (p % 64)
	}
}

// --- typed accessors -------------------------------------------------
//
// Mismatched type on Get/Set or an out-of-range index is a programming
// error: spec.md §4.1 says to detect this in debug builds and leave it
// unchecked in release. debugAssertType is the single choke point for
// that check; setting the debugChecks constant to false turns it off.

func (v *Vector) debugAssertType(want LogicalType) {
	if debugChecks && v.Type != want {
		panic(fmt.Sprintf("vector: type mismatch: vector is %s, accessor wants %s", v.Type, want))
	}
}

func (v *Vector) physicalForLogical(i int) uint32 {
	if debugChecks && i >= v.state.Size() {
		panic(fmt.Sprintf("vector: index %d out of range (size %d)", i, v.state.Size()))
	}
	return v.state.Index(i)
}

func (v *Vector) GetBool(i int) bool {
	v.debugAssertType(BOOL)
	return v.slot(v.physicalForLogical(i))[0] != 0
}

func (v *Vector) SetBool(i int, val bool) {
	v.debugAssertType(BOOL)
	b := byte(0)
	if val {
		b = 1
	}
	v.slot(v.physicalForLogical(i))[0] = b
}

func (v *Vector) GetInt64(i int) int64 {
	if v.Sequential {
		return int64(v.seqStart) + int64(v.physicalForLogical(i))
	}
	v.debugAssertType(INT64)
	return int64(binary.LittleEndian.Uint64(v.slot(v.physicalForLogical(i))))
}

func (v *Vector) SetInt64(i int, val int64) {
	v.debugAssertType(INT64)
	binary.LittleEndian.PutUint64(v.slot(v.physicalForLogical(i)), uint64(val))
}

func (v *Vector) GetInt32(i int) int32 {
	v.debugAssertType(INT32)
	return int32(binary.LittleEndian.Uint32(v.slot(v.physicalForLogical(i))))
}

func (v *Vector) SetInt32(i int, val int32) {
	v.debugAssertType(INT32)
	binary.LittleEndian.PutUint32(v.slot(v.physicalForLogical(i)), uint32(val))
}

func (v *Vector) GetDouble(i int) float64 {
	v.debugAssertType(DOUBLE)
	bits := binary.LittleEndian.Uint64(v.slot(v.physicalForLogical(i)))
	return math.Float64frombits(bits)
}

func (v *Vector) SetDouble(i int, val float64) {
	v.debugAssertType(DOUBLE)
	binary.LittleEndian.PutUint64(v.slot(v.physicalForLogical(i)), math.Float64bits(val))
}

func (v *Vector) GetNodeID(i int) NodeID {
	if v.Type != INTERNAL_ID && v.Type != NODE && v.Type != REL {
		panic("vector: GetNodeID on non-id vector")
	}
	if v.Sequential {
		return NodeID{Offset: uint64(v.seqStart) + uint64(v.physicalForLogical(i))}
	}
	s := v.slot(v.physicalForLogical(i))
	return NodeID{
		Offset:  binary.LittleEndian.Uint64(s[0:8]),
		TableID: binary.LittleEndian.Uint32(s[8:12]),
	}
}

func (v *Vector) SetNodeID(i int, id NodeID) {
	s := v.slot(v.physicalForLogical(i))
	binary.LittleEndian.PutUint64(s[0:8], id.Offset)
	binary.LittleEndian.PutUint32(s[8:12], id.TableID)
}

// GetString materializes the logical STRING/BLOB value at row i. When the
// value is longer than the inline prefix it is read from the vector's
// overflow arena (spec.md §4.1).
func (v *Vector) GetString(i int) []byte {
	p := v.physicalForLogical(i)
	s := v.slot(p)
	n := int(binary.LittleEndian.Uint32(s[stringPrefixLen : stringPrefixLen+4]))
	if n <= stringPrefixLen {
		return s[:n]
	}
	ptr := binary.LittleEndian.Uint32(s[stringPrefixLen+4 : stringPrefixLen+8])
	return v.arena.slice(ptr, n)
}

// SetString stores val into row i, spilling to the overflow arena when it
// exceeds the inline prefix length.
func (v *Vector) SetString(i int, val []byte) {
	p := v.physicalForLogical(i)
	s := v.slot(p)
	n := len(val)
	binary.LittleEndian.PutUint32(s[stringPrefixLen:stringPrefixLen+4], uint32(n))
	if n <= stringPrefixLen {
		copy(s[:stringPrefixLen], val)
		return
	}
	copy(s[:stringPrefixLen], val[:stringPrefixLen])
	if v.arena == nil {
		v.arena = NewArena()
	}
	ptr := v.arena.append(val)
	binary.LittleEndian.PutUint32(s[stringPrefixLen+4:stringPrefixLen+8], ptr)
}

// ResetOverflow discards the vector's overflow arena, the per-batch reset
// spec.md §4.1/§5 describes for per-operator-local arenas.
func (v *Vector) ResetOverflow() {
	v.arena = nil
}

// CopyRow copies logical row srcRow of v into logical row dstRow of dst,
// handling nulls and STRING/BLOB overflow the same way Flatten does. Used
// anywhere a single arbitrary row (not a contiguous prefix) must be
// relocated, e.g. materializing fan-out join output.
func CopyRow(dst *Vector, dstRow int, v *Vector, srcRow int) {
	copyOneRow(v, v.physicalForLogical(srcRow), dst, dst.physicalForLogical(dstRow))
}

// CopyTo copies the logical rows [0,n) of v into dst, starting at dst row
// dstStart. dst must be of the same LogicalType.
func (v *Vector) CopyTo(dst *Vector, n int, dstStart int) {
	if v.Type != dst.Type {
		panic("vector.CopyTo: type mismatch")
	}
	for i := 0; i < n; i++ {
		if v.IsNull(i) {
			dst.SetNull(dstStart+i, true)
			continue
		}
		switch v.Type {
		case BOOL:
			dst.SetBool(dstStart+i, v.GetBool(i))
		case INT32:
			dst.SetInt32(dstStart+i, v.GetInt32(i))
		case INT64:
			dst.SetInt64(dstStart+i, v.GetInt64(i))
		case DOUBLE:
			dst.SetDouble(dstStart+i, v.GetDouble(i))
		case STRING, BLOB:
			dst.SetString(dstStart+i, v.GetString(i))
		case INTERNAL_ID, NODE, REL:
			dst.SetNodeID(dstStart+i, v.GetNodeID(i))
		default:
			panic(fmt.Sprintf("vector.CopyTo: unsupported type %s", v.Type))
		}
	}
}
