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

// Package resultprinter formats a streamed result set for CLI display,
// spec.md §6: "a print type (box / table / csv / tsv / markdown /
// column / list / json / jsonlines / html / latex / line / trash)
// selected per output."
package resultprinter

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kuzudb/graphvec/vector"
)

// Type names one of the print types spec.md §6 enumerates.
type Type string

const (
	Box       Type = "box"
	Table     Type = "table"
	CSV       Type = "csv"
	TSV       Type = "tsv"
	Markdown  Type = "markdown"
	Column    Type = "column"
	List      Type = "list"
	JSON      Type = "json"
	JSONLines Type = "jsonlines"
	HTML      Type = "html"
	Latex     Type = "latex"
	Line      Type = "line"
	Trash     Type = "trash"
)

// Printer accumulates rows and renders them once the result set is
// exhausted, the same "flush once on Close" shape a CLI table printer
// needs whether or not its chosen format can stream incrementally
// (csv/tsv/jsonlines/trash can; box/table/markdown/column need the full
// column widths up front).
type Printer interface {
	// Row receives one decoded row, column values in column order.
	// Values are any of: nil (SQL null), bool, int64, float64, string,
	// or vector.NodeID.
	Row(values []any) error
	// Close flushes any buffered output and finalizes the format.
	Close() error
}

// New constructs a Printer of the named type, writing to w. columns
// names the output header (CSV/TSV write it as their first line, line
// labels every field with it); only trash ignores it.
func New(t Type, w io.Writer, columns []string) Printer {
	switch t {
	case Trash:
		return &trashPrinter{}
	case CSV:
		return &delimPrinter{w: w, sep: ",", header: columns}
	case TSV:
		return &delimPrinter{w: w, sep: "\t", header: columns}
	case JSONLines:
		return &jsonLinesPrinter{w: w, columns: columns}
	case JSON:
		return &jsonPrinter{w: w, columns: columns}
	case Line:
		return &linePrinter{w: w, columns: columns}
	case List:
		return &listPrinter{w: w, columns: columns}
	case Markdown:
		return &tablePrinter{w: w, columns: columns, style: styleMarkdown}
	case HTML:
		return &tablePrinter{w: w, columns: columns, style: styleHTML}
	case Latex:
		return &tablePrinter{w: w, columns: columns, style: styleLatex}
	case Box:
		return &tablePrinter{w: w, columns: columns, style: styleBox}
	case Column:
		return &tablePrinter{w: w, columns: columns, style: styleColumn}
	case Table:
		fallthrough
	default:
		return &tablePrinter{w: w, columns: columns, style: styleTable}
	}
}

// ValueOf decodes the value of column col at logical row i off v into
// one of Printer.Row's accepted types, or nil for a null slot.
func ValueOf(v *vector.Vector, i int, t vector.LogicalType) any {
	if v.IsNull(i) {
		return nil
	}
	switch t {
	case vector.BOOL:
		return v.GetBool(i)
	case vector.INT32:
		return int64(v.GetInt32(i))
	case vector.INT64:
		return v.GetInt64(i)
	case vector.DOUBLE:
		return v.GetDouble(i)
	case vector.STRING, vector.BLOB:
		return string(v.GetString(i))
	case vector.INTERNAL_ID, vector.NODE, vector.REL:
		return v.GetNodeID(i)
	default:
		return fmt.Sprintf("<%s>", t)
	}
}

func formatValue(val any) string {
	switch x := val.(type) {
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	case vector.NodeID:
		return fmt.Sprintf("%d:%d", x.TableID, x.Offset)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// trashPrinter discards every row, for benchmarking the execution core
// without output-formatting overhead skewing timings.
type trashPrinter struct{}

func (trashPrinter) Row([]any) error { return nil }
func (trashPrinter) Close() error    { return nil }

// delimPrinter streams rows immediately as CSV/TSV; no buffering since
// neither format needs column widths computed up front.
type delimPrinter struct {
	w      io.Writer
	sep    string
	header []string
	wrote  bool
}

func (p *delimPrinter) Row(values []any) error {
	if !p.wrote {
		if len(p.header) > 0 {
			if _, err := fmt.Fprintln(p.w, strings.Join(p.header, p.sep)); err != nil {
				return err
			}
		}
		p.wrote = true
	}
	fields := make([]string, len(values))
	for i, v := range values {
		fields[i] = escapeDelim(formatValue(v), p.sep)
	}
	_, err := fmt.Fprintln(p.w, strings.Join(fields, p.sep))
	return err
}

func (p *delimPrinter) Close() error { return nil }

func escapeDelim(s, sep string) string {
	if !strings.ContainsAny(s, sep+"\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// linePrinter prints a "-- row N --" header per row followed by one
// "column: value" line per field, with no blank line between rows.
type linePrinter struct {
	w       io.Writer
	columns []string
	row     int
}

func (p *linePrinter) Row(values []any) error {
	p.row++
	if _, err := fmt.Fprintf(p.w, "-- row %d --\n", p.row); err != nil {
		return err
	}
	for i, v := range values {
		name := columnName(p.columns, i)
		if _, err := fmt.Fprintf(p.w, "%s: %s\n", name, formatValue(v)); err != nil {
			return err
		}
	}
	return nil
}

func (p *linePrinter) Close() error { return nil }

// listPrinter prints one pipe-delimited line per row without a header
// separator rule, psql's unaligned \pset format list.
type listPrinter struct {
	w       io.Writer
	columns []string
	wrote   bool
}

func (p *listPrinter) Row(values []any) error {
	if !p.wrote {
		if len(p.columns) > 0 {
			if _, err := fmt.Fprintln(p.w, strings.Join(p.columns, "|")); err != nil {
				return err
			}
		}
		p.wrote = true
	}
	fields := make([]string, len(values))
	for i, v := range values {
		fields[i] = formatValue(v)
	}
	_, err := fmt.Fprintln(p.w, strings.Join(fields, "|"))
	return err
}

func (p *listPrinter) Close() error { return nil }

// jsonLinesPrinter emits one JSON object per row, streamed immediately.
type jsonLinesPrinter struct {
	w       io.Writer
	columns []string
}

func (p *jsonLinesPrinter) Row(values []any) error {
	obj := rowObject(p.columns, values)
	enc, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.w, string(enc))
	return err
}

func (p *jsonLinesPrinter) Close() error { return nil }

// jsonPrinter buffers every row and emits one JSON array on Close.
type jsonPrinter struct {
	w       io.Writer
	columns []string
	rows    []map[string]any
}

func (p *jsonPrinter) Row(values []any) error {
	p.rows = append(p.rows, rowObject(p.columns, values))
	return nil
}

func (p *jsonPrinter) Close() error {
	enc, err := json.MarshalIndent(p.rows, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.w, string(enc))
	return err
}

func rowObject(columns []string, values []any) map[string]any {
	obj := make(map[string]any, len(values))
	for i, v := range values {
		obj[columnName(columns, i)] = v
	}
	return obj
}

func columnName(columns []string, i int) string {
	if i < len(columns) {
		return columns[i]
	}
	return fmt.Sprintf("col%d", i)
}

// tableStyle governs how tablePrinter's buffered rows are rendered on
// Close; it is the one axis box/table/markdown/html/latex/column share
// (a fully-materialized grid of formatted cells) but differ on (border
// characters, separators, wrapping markup).
type tableStyle int

const (
	styleTable tableStyle = iota
	styleBox
	styleMarkdown
	styleHTML
	styleLatex
	styleColumn
)

// tablePrinter buffers every row so column widths (box/table/column) or
// a single well-formed document (markdown/html/latex) can be computed
// once all rows are known.
type tablePrinter struct {
	w       io.Writer
	columns []string
	style   tableStyle
	rows    [][]string
}

func (p *tablePrinter) Row(values []any) error {
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = formatValue(v)
	}
	p.rows = append(p.rows, cells)
	return nil
}

func (p *tablePrinter) Close() error {
	switch p.style {
	case styleMarkdown:
		return p.closeMarkdown()
	case styleHTML:
		return p.closeHTML()
	case styleLatex:
		return p.closeLatex()
	case styleColumn:
		return p.closeColumn(gridPlain)
	case styleBox:
		return p.closeColumn(gridBox)
	default:
		return p.closeColumn(gridRule)
	}
}

// gridMode selects how closeColumn borders its cells: gridPlain is bare
// space-aligned columns (`column -t`), gridRule underlines the header
// with a dash rule but draws no vertical borders (the default "table"
// style), gridBox draws a full ASCII box.
type gridMode int

const (
	gridPlain gridMode = iota
	gridRule
	gridBox
)

func (p *tablePrinter) widths() []int {
	n := len(p.columns)
	for _, r := range p.rows {
		if len(r) > n {
			n = len(r)
		}
	}
	w := make([]int, n)
	for i := 0; i < n; i++ {
		w[i] = len(columnName(p.columns, i))
	}
	for _, r := range p.rows {
		for i, c := range r {
			if len(c) > w[i] {
				w[i] = len(c)
			}
		}
	}
	return w
}

func (p *tablePrinter) closeColumn(mode gridMode) error {
	w := p.widths()
	sep := "  "
	if mode == gridBox {
		sep = " | "
	}
	if mode == gridBox {
		if err := writeRule(p.w, w, "+", "-"); err != nil {
			return err
		}
	}
	header := make([]string, len(w))
	for i := range w {
		header[i] = padRight(columnName(p.columns, i), w[i])
	}
	if err := writeLine(p.w, header, sep, mode == gridBox); err != nil {
		return err
	}
	switch mode {
	case gridBox:
		if err := writeRule(p.w, w, "+", "-"); err != nil {
			return err
		}
	case gridRule:
		if err := writeRule(p.w, w, "", "-"); err != nil {
			return err
		}
	}
	for _, r := range p.rows {
		padded := make([]string, len(w))
		for i := range w {
			if i < len(r) {
				padded[i] = padRight(r[i], w[i])
			} else {
				padded[i] = padRight("", w[i])
			}
		}
		if err := writeLine(p.w, padded, sep, mode == gridBox); err != nil {
			return err
		}
	}
	if mode == gridBox {
		return writeRule(p.w, w, "+", "-")
	}
	return nil
}

func writeRule(w io.Writer, widths []int, corner, fill string) error {
	parts := make([]string, len(widths))
	for i, wd := range widths {
		parts[i] = strings.Repeat(fill, wd+2)
	}
	_, err := fmt.Fprintln(w, corner+strings.Join(parts, corner)+corner)
	return err
}

func writeLine(w io.Writer, cells []string, sep string, border bool) error {
	line := strings.Join(cells, sep)
	if border {
		line = "| " + line + " |"
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}

func (p *tablePrinter) closeMarkdown() error {
	n := len(p.widths())
	header := make([]string, n)
	rule := make([]string, n)
	for i := 0; i < n; i++ {
		header[i] = columnName(p.columns, i)
		rule[i] = "---"
	}
	if _, err := fmt.Fprintln(p.w, "| "+strings.Join(header, " | ")+" |"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(p.w, "| "+strings.Join(rule, " | ")+" |"); err != nil {
		return err
	}
	for _, r := range p.rows {
		padded := padCells(r, n)
		if _, err := fmt.Fprintln(p.w, "| "+strings.Join(padded, " | ")+" |"); err != nil {
			return err
		}
	}
	return nil
}

func (p *tablePrinter) closeHTML() error {
	var b strings.Builder
	b.WriteString("<table>\n  <tr>")
	n := len(p.widths())
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "<th>%s</th>", columnName(p.columns, i))
	}
	b.WriteString("</tr>\n")
	for _, r := range p.rows {
		b.WriteString("  <tr>")
		padded := padCells(r, n)
		for _, c := range padded {
			fmt.Fprintf(&b, "<td>%s</td>", c)
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</table>\n")
	_, err := io.WriteString(p.w, b.String())
	return err
}

func (p *tablePrinter) closeLatex() error {
	n := len(p.widths())
	var b strings.Builder
	b.WriteString("\\begin{tabular}{" + strings.Repeat("l", n) + "}\n")
	header := make([]string, n)
	for i := 0; i < n; i++ {
		header[i] = columnName(p.columns, i)
	}
	fmt.Fprintf(&b, "%s \\\\\n", strings.Join(header, " & "))
	for _, r := range p.rows {
		fmt.Fprintf(&b, "%s \\\\\n", strings.Join(padCells(r, n), " & "))
	}
	b.WriteString("\\end{tabular}\n")
	_, err := io.WriteString(p.w, b.String())
	return err
}

func padCells(r []string, n int) []string {
	out := make([]string, n)
	copy(out, r)
	return out
}
