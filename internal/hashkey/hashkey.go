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

// Package hashkey provides the key-hashing primitives used by the hash
// join build/probe path and the factorized table slot array: a keyed
// siphash for variable-width (string/blob) keys and a Murmur64 finalizer
// for combining fixed-width key hashes, per the hash table invariants in
// spec.md §3.6.
package hashkey

import (
	"encoding/binary"

	"github.com/dchest/siphash"
)

// QuerySalt is a per-query 128-bit key mixed into every siphash call so
// that hash values (and therefore slot placement) are not predictable
// across queries; it is derived once per exec.Context.
type QuerySalt struct {
	K0, K1 uint64
}

// Bytes hashes an arbitrary-width key (string/blob property values) into a
// single uint64 using SipHash-2-4, the same primitive the teacher's
// vm/interphash.go uses for ion string hashing.
func (s QuerySalt) Bytes(mem []byte) uint64 {
	lo, _ := siphash.Hash128(s.K0, s.K1, mem)
	return lo
}

// murmur64Finalizer is the 64-bit finalizer from MurmurHash3, used to mix
// fixed-width (int64/nodeID) key hashes before they are reduced modulo the
// hash table's slot_mask (spec.md §3.6).
func murmur64Finalizer(h uint64) uint64 {
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

// Uint64 mixes a fixed-width 64-bit key (an int64 value or a packed
// nodeID) through the Murmur64 finalizer.
func Uint64(v uint64) uint64 {
	return murmur64Finalizer(v)
}

// NodeID mixes a (offset, tableID) pair the same way the teacher mixes
// composite keys: pack into 16 bytes, reduce with the finalizer applied
// to each 8-byte half, then XOR the halves together (spec.md §4.5 step 3:
// "hash = Murmur64(k1) XOR Murmur64(k2) XOR ...").
func NodeID(offset uint64, tableID uint32) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], offset)
	lo := murmur64Finalizer(binary.LittleEndian.Uint64(buf[:]))
	hi := murmur64Finalizer(uint64(tableID))
	return lo ^ hi
}

// Combine XORs a sequence of per-column hash values together, implementing
// the multi-key combination rule of spec.md §4.5 step 3.
func Combine(hashes ...uint64) uint64 {
	var h uint64
	for _, v := range hashes {
		h ^= v
	}
	return h
}
