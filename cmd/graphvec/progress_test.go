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
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestTerminalProgressRendersFilledFraction(t *testing.T) {
	var buf bytes.Buffer
	p := newTerminalProgress(&buf)
	p.Update(uuid.New(), 0.5, 2)
	out := buf.String()
	if !strings.Contains(out, " 50%") {
		t.Fatalf("output %q should contain the percentage label", out)
	}
	if !strings.Contains(out, "2 pipelines done") {
		t.Fatalf("output %q should mention the finished pipeline count", out)
	}
}

func TestTerminalProgressClampsFractionToZeroOne(t *testing.T) {
	var buf bytes.Buffer
	p := newTerminalProgress(&buf)
	p.Update(uuid.New(), -1, 0)
	if !strings.Contains(buf.String(), "  0%") {
		t.Fatalf("negative fraction should clamp to 0%%, got %q", buf.String())
	}

	buf.Reset()
	p.Update(uuid.New(), 2, 5)
	if !strings.Contains(buf.String(), "100%") {
		t.Fatalf("fraction > 1 should clamp to 100%%, got %q", buf.String())
	}
}

func TestTerminalProgressPrintsNewlineOnCompletion(t *testing.T) {
	var buf bytes.Buffer
	p := newTerminalProgress(&buf)
	p.Update(uuid.New(), 1.0, 1)
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Fatal("a completed progress update should end with a newline")
	}
}
