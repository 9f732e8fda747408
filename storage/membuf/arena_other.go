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

//go:build !linux

package membuf

// reserve falls back to a plain heap allocation on platforms the teacher
// would otherwise special-case with their own malloc_darwin.go /
// malloc_windows.go mmap variant; the execution core only needs a
// contiguous byte region, not the teacher's page-protection tricks, so a
// single portable fallback covers every non-Linux target.
func reserve(size int) []byte {
	return make([]byte, size)
}
