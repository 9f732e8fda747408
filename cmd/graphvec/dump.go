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

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/s2"
)

// runDump implements the `dump` subcommand: write an s2-compressed copy
// of a factorized table or BFS frontier snapshot for postmortem
// debugging (spec.md's supplemented CLI-compression feature, §A.5).
// Unlike compr's fixed-size-page Compress/Decompress buffers, a CLI
// artifact has no known size up front, so this uses s2's streaming
// io.Writer/io.Reader wrappers instead of the buffer-to-buffer API.
func runDump(inPath, outPath string) error {
	in, err := openInput(inPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := openOutput(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	w := s2.NewWriter(out)
	if _, err := io.Copy(w, in); err != nil {
		w.Close()
		return fmt.Errorf("compressing %s: %w", inPath, err)
	}
	return w.Close()
}

// runUndump reverses runDump, for inspecting a previously written
// snapshot.
func runUndump(inPath, outPath string) error {
	in, err := openInput(inPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := openOutput(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	r := s2.NewReader(in)
	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("decompressing %s: %w", inPath, err)
	}
	return nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, nil
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
