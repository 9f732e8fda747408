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

// Package logctx is the execution core's ambient logger: a package-level
// verbosity gate in front of fmt.Fprintf to os.Stderr, the same shape as the
// teacher's vm/log.go (a global boolean flag checked before formatting
// and writing to stderr), extended with a query/pipeline prefix since the
// execution core runs many concurrent queries rather than one process per
// query.
package logctx

import (
	"fmt"
	"os"
	"sync/atomic"
)

var verbose atomic.Bool

// SetVerbose toggles trace-level logging process-wide.
func SetVerbose(v bool) { verbose.Store(v) }

// Verbose reports whether trace-level logging is enabled.
func Verbose() bool { return verbose.Load() }

// Logger carries the query/pipeline identity that every log line from a
// running pipeline is tagged with.
type Logger struct {
	QueryID    string
	PipelineID int
}

// Tracef logs a trace-level message only when verbose logging is enabled.
// Mirrors vm.Trace in spirit: a cheap no-op call when disabled.
func (l Logger) Tracef(format string, args ...any) {
	if !verbose.Load() {
		return
	}
	l.logf("TRACE", format, args...)
}

// Errorf always logs, used on operator error paths before the error is
// returned up the pipeline.
func (l Logger) Errorf(format string, args ...any) {
	l.logf("ERROR", format, args...)
}

func (l Logger) logf(level, format string, args ...any) {
	prefix := fmt.Sprintf("[%s] query=%s pipeline=%d ", level, l.QueryID, l.PipelineID)
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}
