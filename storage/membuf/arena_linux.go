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

//go:build linux

package membuf

import "golang.org/x/sys/unix"

// reserve maps an anonymous, private region of the given size, the same
// call the teacher's vm/malloc_linux.go makes directly through
// syscall.Mmap; we go through golang.org/x/sys/unix instead so the same
// call shape extends to the other build-tagged platforms without
// depending on the (frozen) standard syscall package's per-OS constants.
func reserve(size int) []byte {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		panic("membuf: mmap: " + err.Error())
	}
	return mem
}
