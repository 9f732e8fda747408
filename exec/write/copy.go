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

package write

import (
	"fmt"
	"sync"

	"github.com/kuzudb/graphvec/catalog"
	"github.com/kuzudb/graphvec/exec"
	"github.com/kuzudb/graphvec/storage"
	"github.com/kuzudb/graphvec/vector"
)

// CopyOption is one bound COPY FROM clause option, e.g. (DELIM=',').
type CopyOption struct {
	Name      string
	ExprKind  string // bind-time tag of the option's expression, e.g. "literal"
	StrValue  string
	BoolValue bool
}

// CopyOptions is the resolved set of options a CopyNode/CopyRel plans
// against.
type CopyOptions struct {
	Delimiter byte
	Quote     byte
	Header    bool
}

// DefaultCopyOptions matches a plain CSV file with a header row.
func DefaultCopyOptions() CopyOptions {
	return CopyOptions{Delimiter: ',', Quote: '"', Header: true}
}

// bindCopyOption enforces that a COPY option's value was resolved from a
// literal expression at bind time (DELIM/QUOTE/HEADER never take a column
// reference or subquery). It compares exprKind by exact string equality,
// not prefix or substring matching: an earlier revision used
// strings.Contains(kind, "literal"), which wrongly accepted values like
// "literal_list" (a list-typed literal, not the scalar COPY options
// require) as bindable. SPEC_FULL.md §C pins the corrected, exact-equality
// form as a regression test.
func bindCopyOption(opt CopyOption) error {
	if opt.ExprKind != "literal" {
		return fmt.Errorf("copy: option %s must be a scalar literal, got expression kind %q", opt.Name, opt.ExprKind)
	}
	return nil
}

// ParseCopyOptions binds a list of raw COPY options into CopyOptions,
// starting from DefaultCopyOptions and overriding only the names present.
func ParseCopyOptions(opts []CopyOption) (CopyOptions, error) {
	out := DefaultCopyOptions()
	for _, opt := range opts {
		if err := bindCopyOption(opt); err != nil {
			return CopyOptions{}, err
		}
		switch opt.Name {
		case "DELIM", "DELIMITER":
			if len(opt.StrValue) != 1 {
				return CopyOptions{}, fmt.Errorf("copy: DELIM must be one byte, got %q", opt.StrValue)
			}
			out.Delimiter = opt.StrValue[0]
		case "QUOTE":
			if len(opt.StrValue) != 1 {
				return CopyOptions{}, fmt.Errorf("copy: QUOTE must be one byte, got %q", opt.StrValue)
			}
			out.Quote = opt.StrValue[0]
		case "HEADER":
			out.Header = opt.BoolValue
		default:
			return CopyOptions{}, fmt.Errorf("copy: unknown option %q", opt.Name)
		}
	}
	return out, nil
}

// CopyNode is the bulk-load counterpart of CreateNode (spec.md §4.9): a
// row whose primary key is already present is recorded as a Warning and
// skipped instead of aborting the whole load. Any other insert or
// property-write error aborts the load.
type CopyNode struct {
	createNodeLike
	Options CopyOptions
}

func NewCopyNode(child exec.Operator, tableID uint32, pkPos vector.Pos, propIDs []catalog.PropertyID, propPos []vector.Pos, outPos vector.Pos, opts CopyOptions) *CopyNode {
	c := &CopyNode{
		createNodeLike: createNodeLike{TableID: tableID, PKPos: pkPos, PropIDs: propIDs, PropPos: propPos, OutPos: outPos, policy: skipOnConflict},
		Options:        opts,
	}
	c.SetChildren(child)
	return c
}

func (c *CopyNode) Kind() exec.OpKind { return exec.KindCopyNode }
func (c *CopyNode) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	return c.initLocalState(rs, ctx)
}
func (c *CopyNode) GetNextTuple(ctx *exec.Context) (bool, error) { return c.getNextTuple(ctx) }
func (c *CopyNode) Clone() exec.Operator {
	return NewCopyNode(c.Children()[0].Clone(), c.TableID, c.PKPos, c.PropIDs, c.PropPos, c.OutPos, c.Options)
}

// Warnings returns every row this worker clone skipped.
func (c *CopyNode) Warnings() []Warning {
	c.warnMu.Lock()
	defer c.warnMu.Unlock()
	return append([]Warning(nil), c.warnings...)
}

// CopyRel is the bulk-load counterpart of CreateRel: an Insert failure is
// recorded as a Warning and the row skipped, matching CopyNode's
// tolerant-of-bad-rows semantics.
type CopyRel struct {
	exec.Base

	TableID uint32
	SrcPos  vector.Pos
	DstPos  vector.Pos
	PropIDs []catalog.PropertyID
	PropPos []vector.Pos
	OutPos  vector.Pos
	Options CopyOptions

	rt       storage.RelTable
	srcVec   *vector.Vector
	dstVec   *vector.Vector
	propVecs []*vector.Vector
	out      *vector.Chunk
	outVec   *vector.Vector

	warnMu   sync.Mutex
	warnings []Warning
}

func NewCopyRel(child exec.Operator, tableID uint32, srcPos, dstPos vector.Pos, propIDs []catalog.PropertyID, propPos []vector.Pos, outPos vector.Pos, opts CopyOptions) *CopyRel {
	c := &CopyRel{TableID: tableID, SrcPos: srcPos, DstPos: dstPos, PropIDs: propIDs, PropPos: propPos, OutPos: outPos, Options: opts}
	c.SetChildren(child)
	return c
}

func (c *CopyRel) Kind() exec.OpKind { return exec.KindCopyRel }

func (c *CopyRel) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	if err := c.Children()[0].InitLocalState(rs, ctx); err != nil {
		return err
	}
	rt, err := ctx.Tables.RelTable(c.TableID)
	if err != nil {
		return exec.Wrap(exec.StorageError, err, "copy rel table %d", c.TableID)
	}
	c.rt = rt
	c.srcVec = rs.Vector(c.SrcPos)
	c.dstVec = rs.Vector(c.DstPos)
	c.propVecs = make([]*vector.Vector, len(c.PropPos))
	for i, p := range c.PropPos {
		c.propVecs[i] = rs.Vector(p)
	}
	c.out = vector.NewChunk([]vector.LogicalType{vector.REL}, vector.V)
	c.outVec = c.out.Vectors[0]
	rs.SetChunk(c.OutPos.ChunkIdx, c.out)
	return nil
}

func (c *CopyRel) GetNextTuple(ctx *exec.Context) (bool, error) {
	if err := ctx.CheckInterrupted(); err != nil {
		return false, err
	}
	more, err := c.Children()[0].GetNextTuple(ctx)
	if err != nil || !more {
		return more, err
	}
	n := c.srcVec.State().Size()
	outRow := 0
	for row := 0; row < n; row++ {
		src := c.srcVec.GetNodeID(row)
		dst := c.dstVec.GetNodeID(row)

		flat := vector.NewFlatState(c.srcVec.State().Index(row))
		props := make([]*vector.Vector, len(c.propVecs))
		for i, pv := range c.propVecs {
			props[i] = vector.NewView(pv, flat)
		}
		id, err := c.rt.Insert(ctx.Tx, src, dst, props)
		if err != nil {
			c.warnMu.Lock()
			c.warnings = append(c.warnings, Warning{Row: row, Message: err.Error()})
			c.warnMu.Unlock()
			continue
		}
		logWrite(ctx.WAL, c.TableID, id.Offset)
		c.outVec.SetNodeID(outRow, id)
		outRow++
	}
	c.out.State.SetUnfiltered(outRow)
	return true, nil
}

func (c *CopyRel) Clone() exec.Operator {
	return NewCopyRel(c.Children()[0].Clone(), c.TableID, c.SrcPos, c.DstPos, c.PropIDs, c.PropPos, c.OutPos, c.Options)
}

// Warnings returns every row this worker clone skipped.
func (c *CopyRel) Warnings() []Warning {
	c.warnMu.Lock()
	defer c.warnMu.Unlock()
	return append([]Warning(nil), c.warnings...)
}
