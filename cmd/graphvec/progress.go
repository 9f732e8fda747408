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

	"github.com/google/uuid"

	"github.com/kuzudb/graphvec/exec"
)

// terminalProgress is the default exec.ProgressBarDisplay: a single
// self-overwriting line on stderr, the same carriage-return redraw a
// terminal progress bar uses. Wrap it in exec.ThresholdDisplay so the
// scheduler's own coalescing still applies before a repaint reaches
// here.
type terminalProgress struct {
	w     io.Writer
	width int
}

func newTerminalProgress(w io.Writer) *terminalProgress {
	return &terminalProgress{w: w, width: 40}
}

func (t *terminalProgress) Update(queryID uuid.UUID, fraction float64, finishedPipelines int) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * float64(t.width))
	bar := make([]byte, t.width)
	for i := range bar {
		if i < filled {
			bar[i] = '='
		} else {
			bar[i] = ' '
		}
	}
	fmt.Fprintf(t.w, "\r[%s] %3.0f%% (%d pipelines done) %s", bar, fraction*100, finishedPipelines, queryID)
	if fraction >= 1 {
		fmt.Fprintln(t.w)
	}
}

// newProgressDisplay wraps a terminalProgress in exec.ThresholdDisplay
// so only whole-percent or finished-pipeline-count changes repaint.
func newProgressDisplay(w io.Writer) exec.ProgressBarDisplay {
	return &exec.ThresholdDisplay{Inner: newTerminalProgress(w)}
}
