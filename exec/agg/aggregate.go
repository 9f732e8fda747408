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

// Package agg implements the aggregate/distinct/mark-accumulate cores of
// spec.md §4.7, grounded on the teacher's vm/aggregate.go (per-function op
// codes driving one typed accumulator per group) and vm/hash_aggregate.go
// (per-worker local hash tables partition-merged at sub-pipeline end).
package agg

import (
	"math"

	"github.com/kuzudb/graphvec/internal/hashkey"
	"github.com/kuzudb/graphvec/vector"
)

// Op is one of the aggregate function kinds, the same closed set the
// teacher's AggregateOpFn enumerates (vm/aggregate.go), trimmed to the
// functions a property-graph query layer actually binds.
type Op uint8

const (
	OpCount Op = iota
	OpCountDistinct
	OpSum
	OpAvg
	OpMin
	OpMax
)

func (o Op) String() string {
	switch o {
	case OpCount:
		return "COUNT"
	case OpCountDistinct:
		return "COUNT_DISTINCT"
	case OpSum:
		return "SUM"
	case OpAvg:
		return "AVG"
	case OpMin:
		return "MIN"
	case OpMax:
		return "MAX"
	default:
		return "UNKNOWN"
	}
}

// FuncSpec names one aggregate function in a SimpleAggregate/HashAggregate:
// which op, which input column (InPos, unused for COUNT(*)), its type, and
// where the finalized value is written.
type FuncSpec struct {
	Op      Op
	InPos   vector.Pos
	InType  vector.LogicalType
	OutPos  vector.Pos
	OutType vector.LogicalType
}

// AggregateState is one accumulator per FuncSpec, the "one AggregateState
// per aggregate function, per worker" of spec.md §4.7. Values are always
// accumulated in float64/int64 to keep combine logic type-generic; OutType
// governs only the final write-back.
type AggregateState struct {
	count    int64
	sum      float64
	sumIsInt bool
	sumInt   int64
	min      float64
	max      float64
	minInt   int64
	maxInt   int64
	isInt    bool
	hasValue bool

	distinct map[uint64]struct{} // OpCountDistinct only
}

// NewAggregateStates allocates one fresh AggregateState per spec, the
// per-worker-local state a SimpleAggregate/HashAggregate group carries.
func NewAggregateStates(specs []FuncSpec) []AggregateState {
	states := make([]AggregateState, len(specs))
	for i, s := range specs {
		if s.Op == OpCountDistinct {
			states[i].distinct = make(map[uint64]struct{})
		}
	}
	return states
}

// Update folds one input row into states, one state per spec, skipping
// nulls the way every SQL aggregate function does (nulls never
// participate except as COUNT(*)'s unconditional +1).
func Update(states []AggregateState, specs []FuncSpec, vecs []*vector.Vector, row int, hash uint64) {
	for i, spec := range specs {
		st := &states[i]
		if spec.Op == OpCount && spec.InPos == vector.Invalid {
			st.count++
			continue
		}
		v := vecs[i]
		if v == nil || v.IsNull(row) {
			continue
		}
		st.count++
		switch spec.Op {
		case OpCount:
			// counting a non-null column reference
		case OpCountDistinct:
			st.distinct[hash] = struct{}{}
		case OpSum, OpAvg:
			updateSum(st, spec.InType, v, row)
		case OpMin:
			updateMinMax(st, spec.InType, v, row, true)
		case OpMax:
			updateMinMax(st, spec.InType, v, row, false)
		}
	}
}

// distinctHash hashes the value at row for COUNT(DISTINCT ...) dedup
// purposes, reusing the same per-type hash scheme as the hash-join build
// side (internal/hashkey) since both need a stable, collision-resistant
// fingerprint of an arbitrary-typed cell.
func distinctHash(v *vector.Vector, t vector.LogicalType, row int, salt hashkey.QuerySalt) uint64 {
	switch t {
	case vector.STRING, vector.BLOB:
		return salt.Bytes(v.GetString(row))
	case vector.INTERNAL_ID, vector.NODE, vector.REL:
		id := v.GetNodeID(row)
		return hashkey.NodeID(id.Offset, id.TableID)
	case vector.BOOL:
		if v.GetBool(row) {
			return hashkey.Uint64(1)
		}
		return hashkey.Uint64(0)
	case vector.INT32:
		return hashkey.Uint64(uint64(uint32(v.GetInt32(row))))
	case vector.INT64:
		return hashkey.Uint64(uint64(v.GetInt64(row)))
	case vector.DOUBLE:
		return hashkey.Uint64(math.Float64bits(v.GetDouble(row)))
	default:
		return 0
	}
}

func numericValue(t vector.LogicalType, v *vector.Vector, row int) (f float64, i int64, isInt bool) {
	switch t {
	case vector.INT32:
		return 0, int64(v.GetInt32(row)), true
	case vector.INT64:
		return 0, v.GetInt64(row), true
	case vector.DOUBLE:
		return v.GetDouble(row), 0, false
	default:
		return 0, 0, true
	}
}

func updateSum(st *AggregateState, t vector.LogicalType, v *vector.Vector, row int) {
	f, i, isInt := numericValue(t, v, row)
	if !st.hasValue {
		st.isInt = isInt
	}
	if isInt {
		st.sumInt += i
		st.sumIsInt = true
	} else {
		st.sum += f
	}
	st.hasValue = true
}

func updateMinMax(st *AggregateState, t vector.LogicalType, v *vector.Vector, row int, isMin bool) {
	f, i, isInt := numericValue(t, v, row)
	if !st.hasValue {
		st.isInt = isInt
		if isInt {
			st.minInt, st.maxInt = i, i
		} else {
			st.min, st.max = f, f
		}
		st.hasValue = true
		return
	}
	if isInt {
		if isMin && i < st.minInt {
			st.minInt = i
		}
		if !isMin && i > st.maxInt {
			st.maxInt = i
		}
	} else {
		if isMin && f < st.min {
			st.min = f
		}
		if !isMin && f > st.max {
			st.max = f
		}
	}
}

// Combine merges src into dst, the "combineAggregateStates" step of
// spec.md §4.7 that runs under the shared-state lock at sub-pipeline end.
func Combine(dst, src []AggregateState, specs []FuncSpec) {
	for i := range specs {
		d, s := &dst[i], &src[i]
		d.count += s.count
		if s.distinct != nil {
			for h := range s.distinct {
				d.distinct[h] = struct{}{}
			}
			continue
		}
		if !s.hasValue {
			continue
		}
		if !d.hasValue {
			*d = *s
			// distinct map must stay independent per state even though
			// the struct copy above aliases nothing (s.distinct is nil
			// on this path for every op but OpCountDistinct, handled above)
			continue
		}
		d.sumInt += s.sumInt
		d.sum += s.sum
		d.sumIsInt = d.sumIsInt || s.sumIsInt
		if s.isInt {
			if s.minInt < d.minInt {
				d.minInt = s.minInt
			}
			if s.maxInt > d.maxInt {
				d.maxInt = s.maxInt
			}
		} else {
			if s.min < d.min {
				d.min = s.min
			}
			if s.max > d.max {
				d.max = s.max
			}
		}
	}
}

// Finalize writes each spec's finished value into its OutPos vector at
// outRow, the "finalizeAggregateStates" step of spec.md §4.7. COUNT/
// COUNT_DISTINCT always produce INT64; SUM/MIN/MAX preserve the input's
// int-vs-float shape; AVG always produces DOUBLE.
func Finalize(states []AggregateState, specs []FuncSpec, outVecs []*vector.Vector, outRow int) {
	for i, spec := range specs {
		st := &states[i]
		dst := outVecs[i]
		switch spec.Op {
		case OpCount:
			dst.SetInt64(outRow, st.count)
		case OpCountDistinct:
			dst.SetInt64(outRow, int64(len(st.distinct)))
		case OpSum:
			if !st.hasValue {
				dst.SetNull(outRow, true)
				continue
			}
			if st.isInt {
				dst.SetInt64(outRow, st.sumInt)
			} else {
				dst.SetDouble(outRow, st.sum)
			}
		case OpAvg:
			if st.count == 0 {
				dst.SetNull(outRow, true)
				continue
			}
			total := st.sum + float64(st.sumInt)
			dst.SetDouble(outRow, total/float64(st.count))
		case OpMin:
			if !st.hasValue {
				dst.SetNull(outRow, true)
				continue
			}
			if st.isInt {
				dst.SetInt64(outRow, st.minInt)
			} else {
				dst.SetDouble(outRow, st.min)
			}
		case OpMax:
			if !st.hasValue {
				dst.SetNull(outRow, true)
				continue
			}
			if st.isInt {
				dst.SetInt64(outRow, st.maxInt)
			} else {
				dst.SetDouble(outRow, st.max)
			}
		}
	}
}
