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

// Package bitset provides the byte-per-element state arrays used by
// semi-masks (spec.md §4.6) and BFS frontiers (spec.md §3.7, §4.8). A byte
// per element (rather than a packed bit) is used deliberately: semi-masks
// need small per-offset counters (multiple maskers AND their votes by
// incrementing a shared byte) and BFS visited-state needs more than one
// bit per offset, so neither structure can be a plain bit vector.
//
// Bytes are updated with lock-free compare-and-swap by operating on the
// 32-bit-aligned word that contains the target byte, the same trick the
// teacher uses in internal/atomicext for sub-word atomics on float64 bit
// patterns.
package bitset

import (
	"sync/atomic"
	"unsafe"
)

// Bytes is a byte-addressable state array sized to cover offsets
// [0, maxOffset], with lock-free per-byte CAS.
type Bytes struct {
	data  []byte
	words []uint32 // data aliased as 4-byte words for atomic access
}

// NewBytes allocates a Bytes covering offsets [0, maxOffset] inclusive.
// The backing array is padded to a multiple of 4 bytes so every byte has
// a well-defined containing word.
func NewBytes(maxOffset uint32) *Bytes {
	n := int(maxOffset) + 1
	padded := (n + 3) &^ 3
	data := make([]byte, padded)
	words := unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), padded/4)
	return &Bytes{data: data[:n], words: words}
}

func (b *Bytes) Len() int { return len(b.data) }

func (b *Bytes) Get(i uint32) byte { return atomicLoadByte(b.words, i) }

func (b *Bytes) Set(i uint32, v byte) {
	for {
		word := i / 4
		shift := (i % 4) * 8
		old := atomic.LoadUint32(&b.words[word])
		next := (old &^ (0xff << shift)) | (uint32(v) << shift)
		if atomic.CompareAndSwapUint32(&b.words[word], old, next) {
			return
		}
	}
}

func atomicLoadByte(words []uint32, i uint32) byte {
	word := atomic.LoadUint32(&words[i/4])
	return byte(word >> ((i % 4) * 8))
}

// IncrIfEqual atomically increments the byte at i iff its current value
// equals want, implementing the semi-mask AND-by-counting rule of spec.md
// §4.6: "each masker increments the mask value only when the current
// value equals the masker's index". Returns true if the increment
// happened.
func (b *Bytes) IncrIfEqual(i uint32, want byte) bool {
	word := i / 4
	shift := (i % 4) * 8
	for {
		old := atomic.LoadUint32(&b.words[word])
		cur := byte(old >> shift)
		if cur != want {
			return false
		}
		next := (old &^ (0xff << shift)) | (uint32(cur+1) << shift)
		if atomic.CompareAndSwapUint32(&b.words[word], old, next) {
			return true
		}
	}
}

// CASByte performs a generic compare-and-swap of the byte at i, used by
// BFS mark-visited to transition visited_nodes/path_length atomically.
func (b *Bytes) CASByte(i uint32, old, new byte) bool {
	word := i / 4
	shift := (i % 4) * 8
	for {
		w := atomic.LoadUint32(&b.words[word])
		cur := byte(w >> shift)
		if cur != old {
			return false
		}
		next := (w &^ (0xff << shift)) | (uint32(new) << shift)
		if atomic.CompareAndSwapUint32(&b.words[word], w, next) {
			return true
		}
	}
}

// Reset zeroes the whole array.
func (b *Bytes) Reset() {
	for i := range b.data {
		b.data[i] = 0
	}
}

// Data exposes the raw backing slice for SIMD-style dense scanning (see
// CompactAscending).
func (b *Bytes) Data() []byte { return b.data }

// CompactAscending scans a dense byte mask (one byte per offset, non-zero
// meaning "set") and appends the offsets whose byte satisfies pred to
// dst, preserving ascending order. This is the behavioral contract for
// the dense->sparse frontier compaction in spec.md §4.8 step 4 and §9's
// resolved Open Question ("dense->sparse compaction preserves offsets in
// ascending order"); the SIMD intrinsic the source uses is an
// implementation detail left open by the spec, so this is a portable
// scalar scan processed in cache-line-sized (16-byte) strides to mirror
// the source's SSE2 batching without depending on any intrinsic.
func CompactAscending(mask []byte, pred func(byte) bool, dst []uint32) []uint32 {
	const stride = 16
	i := 0
	for ; i+stride <= len(mask); i += stride {
		chunk := mask[i : i+stride]
		for j, v := range chunk {
			if pred(v) {
				dst = append(dst, uint32(i+j))
			}
		}
	}
	for ; i < len(mask); i++ {
		if pred(mask[i]) {
			dst = append(dst, uint32(i))
		}
	}
	return dst
}
