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

import "testing"

func TestInt64RoundTrip(t *testing.T) {
	st := NewUnfilteredState(3)
	v := New(INT64, st)
	v.SetInt64(0, 10)
	v.SetInt64(1, -20)
	v.SetInt64(2, 30)
	if got := v.GetInt64(0); got != 10 {
		t.Errorf("row 0 = %d, want 10", got)
	}
	if got := v.GetInt64(1); got != -20 {
		t.Errorf("row 1 = %d, want -20", got)
	}
	if got := v.GetInt64(2); got != 30 {
		t.Errorf("row 2 = %d, want 30", got)
	}
}

func TestSequentialInt64SkipsBuf(t *testing.T) {
	st := NewUnfilteredState(4)
	v := NewSequential(INT64, st, 100)
	for i := 0; i < 4; i++ {
		if got := v.GetInt64(i); got != int64(100+i) {
			t.Errorf("row %d = %d, want %d", i, got, 100+i)
		}
	}
}

func TestNullBitReflectsSetNull(t *testing.T) {
	st := NewUnfilteredState(2)
	v := New(INT64, st)
	if v.IsNull(0) || v.IsNull(1) {
		t.Fatal("fresh vector should have no nulls set")
	}
	v.SetNull(0, true)
	if !v.IsNull(0) {
		t.Error("row 0 should be null")
	}
	if v.IsNull(1) {
		t.Error("row 1 should not be null")
	}
	v.SetNull(0, false)
	if v.IsNull(0) {
		t.Error("row 0 should no longer be null")
	}
}

func TestStringInlineAndOverflow(t *testing.T) {
	st := NewUnfilteredState(2)
	v := New(STRING, st)
	v.SetString(0, []byte("short"))
	long := make([]byte, 200)
	for i := range long {
		long[i] = byte('a' + i%26)
	}
	v.SetString(1, long)

	if got := string(v.GetString(0)); got != "short" {
		t.Errorf("row 0 = %q, want %q", got, "short")
	}
	if got := v.GetString(1); string(got) != string(long) {
		t.Error("overflowed string did not round-trip")
	}
}

func TestNodeIDRoundTrip(t *testing.T) {
	st := NewUnfilteredState(1)
	v := New(INTERNAL_ID, st)
	id := NodeID{Offset: 42, TableID: 7}
	v.SetNodeID(0, id)
	got := v.GetNodeID(0)
	if got.Offset != id.Offset || got.TableID != id.TableID {
		t.Errorf("got %+v, want %+v", got, id)
	}
}

func TestCopyRowHandlesNull(t *testing.T) {
	st := NewUnfilteredState(2)
	src := New(INT64, st)
	src.SetInt64(0, 5)
	src.SetNull(1, true)

	dst := New(INT64, st)
	CopyRow(dst, 0, src, 0)
	CopyRow(dst, 1, src, 1)
	if got := dst.GetInt64(0); got != 5 {
		t.Errorf("dst row 0 = %d, want 5", got)
	}
	if !dst.IsNull(1) {
		t.Error("dst row 1 should be null after copying a null source row")
	}
}

func TestCopyToRespectsFilteredSource(t *testing.T) {
	srcState := NewUnfilteredState(3)
	src := New(INT64, srcState)
	src.SetInt64(0, 1)
	src.SetInt64(1, 2)
	src.SetInt64(2, 3)
	srcState.SetFiltered([]uint32{2, 0})

	dstState := NewUnfilteredState(2)
	dst := New(INT64, dstState)
	src.CopyTo(dst, 2, 0)

	if got := dst.GetInt64(0); got != 3 {
		t.Errorf("dst row 0 = %d, want 3 (filtered source row 0 -> physical 2)", got)
	}
	if got := dst.GetInt64(1); got != 1 {
		t.Errorf("dst row 1 = %d, want 1 (filtered source row 1 -> physical 0)", got)
	}
}
