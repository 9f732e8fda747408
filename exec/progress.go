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

package exec

import "github.com/google/uuid"

// ProgressBarDisplay is notified by the scheduler as pipelines advance.
// The contract is the one spec.md §9 resolves for this repository's
// historically inconsistent progress-display signatures: "display
// receives queryID, progress fraction, and finished-pipelines count; may
// coalesce updates below whole-percent granularity."
type ProgressBarDisplay interface {
	Update(queryID uuid.UUID, fraction float64, finishedPipelines int)
}

type noopProgress struct{}

func (noopProgress) Update(uuid.UUID, float64, int) {}

// ThresholdDisplay wraps a ProgressBarDisplay and only forwards updates
// when the whole-percent progress or the finished-pipeline count has
// changed, per spec.md §4.2: "the display decides whether to repaint
// (threshold: change in whole-percent progress or finished-pipeline
// count)".
type ThresholdDisplay struct {
	Inner ProgressBarDisplay

	lastPercent int
	lastFinished int
	started     bool
}

func (t *ThresholdDisplay) Update(queryID uuid.UUID, fraction float64, finishedPipelines int) {
	percent := int(fraction * 100)
	if t.started && percent == t.lastPercent && finishedPipelines == t.lastFinished {
		return
	}
	t.started = true
	t.lastPercent = percent
	t.lastFinished = finishedPipelines
	t.Inner.Update(queryID, fraction, finishedPipelines)
}
