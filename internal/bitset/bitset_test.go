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

package bitset

import (
	"sync"
	"testing"
)

func TestGetSetRoundTrip(t *testing.T) {
	b := NewBytes(9)
	if b.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", b.Len())
	}
	b.Set(0, 5)
	b.Set(9, 7)
	if got := b.Get(0); got != 5 {
		t.Errorf("Get(0) = %d, want 5", got)
	}
	if got := b.Get(9); got != 7 {
		t.Errorf("Get(9) = %d, want 7", got)
	}
	if got := b.Get(4); got != 0 {
		t.Errorf("Get(4) = %d, want 0 (untouched)", got)
	}
}

func TestSetDoesNotClobberNeighboringBytesInSameWord(t *testing.T) {
	b := NewBytes(3)
	b.Set(0, 0xAA)
	b.Set(1, 0xBB)
	b.Set(2, 0xCC)
	b.Set(3, 0xDD)
	if b.Get(0) != 0xAA || b.Get(1) != 0xBB || b.Get(2) != 0xCC || b.Get(3) != 0xDD {
		t.Fatalf("got %x %x %x %x, want AA BB CC DD", b.Get(0), b.Get(1), b.Get(2), b.Get(3))
	}
}

func TestIncrIfEqualOnlyIncrementsOnMatch(t *testing.T) {
	b := NewBytes(0)
	if !b.IncrIfEqual(0, 0) {
		t.Fatal("expected increment from 0 to succeed")
	}
	if got := b.Get(0); got != 1 {
		t.Fatalf("Get(0) = %d, want 1", got)
	}
	if b.IncrIfEqual(0, 0) {
		t.Fatal("IncrIfEqual should fail once the byte no longer equals want")
	}
	if got := b.Get(0); got != 1 {
		t.Fatalf("Get(0) = %d after failed CAS, want unchanged 1", got)
	}
}

func TestIncrIfEqualConcurrentCallersEachIncrementOnce(t *testing.T) {
	b := NewBytes(0)
	const n = 50
	var wg sync.WaitGroup
	successes := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			successes[i] = b.IncrIfEqual(0, 0)
		}(i)
	}
	wg.Wait()
	count := 0
	for _, ok := range successes {
		if ok {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 successful increment from value 0, got %d", count)
	}
	if got := b.Get(0); got != 1 {
		t.Fatalf("Get(0) = %d, want 1", got)
	}
}

func TestCASByteTransitionsOnlyFromOld(t *testing.T) {
	b := NewBytes(0)
	if b.CASByte(0, 1, 2) {
		t.Fatal("CASByte should fail when current byte does not match old")
	}
	if !b.CASByte(0, 0, 9) {
		t.Fatal("CASByte should succeed when current byte matches old")
	}
	if got := b.Get(0); got != 9 {
		t.Fatalf("Get(0) = %d, want 9", got)
	}
}

func TestReset(t *testing.T) {
	b := NewBytes(3)
	b.Set(0, 1)
	b.Set(3, 2)
	b.Reset()
	for i := uint32(0); i < 4; i++ {
		if b.Get(i) != 0 {
			t.Fatalf("Get(%d) = %d after Reset, want 0", i, b.Get(i))
		}
	}
}

func TestCompactAscendingPreservesOrderAcrossStrideBoundary(t *testing.T) {
	mask := make([]byte, 20)
	mask[0] = 1
	mask[15] = 1
	mask[16] = 1
	mask[19] = 1
	got := CompactAscending(mask, func(v byte) bool { return v != 0 }, nil)
	want := []uint32{0, 15, 16, 19}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestCompactAscendingAppendsToExistingDst(t *testing.T) {
	mask := []byte{0, 1, 0, 1}
	dst := []uint32{100}
	got := CompactAscending(mask, func(v byte) bool { return v != 0 }, dst)
	want := []uint32{100, 1, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
