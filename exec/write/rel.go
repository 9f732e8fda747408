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
	"github.com/kuzudb/graphvec/catalog"
	"github.com/kuzudb/graphvec/exec"
	"github.com/kuzudb/graphvec/storage"
	"github.com/kuzudb/graphvec/vector"
)

// CreateRel inserts one relationship per input row (spec.md §4.9).
// RelTable.Insert takes one (src, dst, props) triple at a time, so unlike
// SetNodeProperty this operator must flatten every row, the same
// constraint CreateNode has for AddNodeAndResetPropertiesWithPK.
type CreateRel struct {
	exec.Base

	TableID uint32
	SrcPos  vector.Pos
	DstPos  vector.Pos
	PropIDs []catalog.PropertyID
	PropPos []vector.Pos
	OutPos  vector.Pos

	rt       storage.RelTable
	srcVec   *vector.Vector
	dstVec   *vector.Vector
	propVecs []*vector.Vector
	out      *vector.Chunk
	outVec   *vector.Vector
}

func NewCreateRel(child exec.Operator, tableID uint32, srcPos, dstPos vector.Pos, propIDs []catalog.PropertyID, propPos []vector.Pos, outPos vector.Pos) *CreateRel {
	c := &CreateRel{TableID: tableID, SrcPos: srcPos, DstPos: dstPos, PropIDs: propIDs, PropPos: propPos, OutPos: outPos}
	c.SetChildren(child)
	return c
}

func (c *CreateRel) Kind() exec.OpKind { return exec.KindCreateRel }

func (c *CreateRel) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	if err := c.Children()[0].InitLocalState(rs, ctx); err != nil {
		return err
	}
	rt, err := ctx.Tables.RelTable(c.TableID)
	if err != nil {
		return exec.Wrap(exec.StorageError, err, "create rel table %d", c.TableID)
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

func (c *CreateRel) GetNextTuple(ctx *exec.Context) (bool, error) {
	if err := ctx.CheckInterrupted(); err != nil {
		return false, err
	}
	more, err := c.Children()[0].GetNextTuple(ctx)
	if err != nil || !more {
		return more, err
	}
	n := c.srcVec.State().Size()
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
			return false, exec.Wrap(exec.ConstraintViolation, err, "create rel row %d", row)
		}
		logWrite(ctx.WAL, c.TableID, id.Offset)
		c.outVec.SetNodeID(row, id)
	}
	c.out.State.SetUnfiltered(n)
	return true, nil
}

func (c *CreateRel) Clone() exec.Operator {
	return NewCreateRel(c.Children()[0].Clone(), c.TableID, c.SrcPos, c.DstPos, c.PropIDs, c.PropPos, c.OutPos)
}

// SetRelProperty updates a property on already-identified relationships
// (spec.md §4.9). RelTable.Update takes one relID at a time and rels may
// come from more than one rel table in a single chunk (multi-label
// dispatch, the same pattern ScanRelProperty uses), so APPLY looks up each
// row's owning table (cached per table ID) and calls Update for that row;
// rows are not grouped by table.
type SetRelProperty struct {
	exec.Base

	IDPos  vector.Pos
	PropID catalog.PropertyID
	ValPos vector.Pos

	tables storage.TableProvider
	idVec  *vector.Vector
	valVec *vector.Vector
}

func NewSetRelProperty(child exec.Operator, idPos vector.Pos, propID catalog.PropertyID, valPos vector.Pos) *SetRelProperty {
	s := &SetRelProperty{IDPos: idPos, PropID: propID, ValPos: valPos}
	s.SetChildren(child)
	return s
}

func (s *SetRelProperty) Kind() exec.OpKind { return exec.KindSetRelProperty }

func (s *SetRelProperty) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	if err := s.Children()[0].InitLocalState(rs, ctx); err != nil {
		return err
	}
	s.tables = ctx.Tables
	s.idVec = rs.Vector(s.IDPos)
	s.valVec = rs.Vector(s.ValPos)
	return nil
}

func (s *SetRelProperty) GetNextTuple(ctx *exec.Context) (bool, error) {
	if err := ctx.CheckInterrupted(); err != nil {
		return false, err
	}
	more, err := s.Children()[0].GetNextTuple(ctx)
	if err != nil || !more {
		return more, err
	}
	n := s.idVec.State().Size()
	rtCache := make(map[uint32]storage.RelTable)
	for row := 0; row < n; row++ {
		id := s.idVec.GetNodeID(row)
		rt, ok := rtCache[id.TableID]
		if !ok {
			var err error
			rt, err = s.tables.RelTable(id.TableID)
			if err != nil {
				return false, exec.Wrap(exec.StorageError, err, "rel table %d", id.TableID)
			}
			rtCache[id.TableID] = rt
		}
		flat := vector.NewFlatState(s.valVec.State().Index(row))
		valOne := vector.NewView(s.valVec, flat)
		if err := rt.Update(ctx.Tx, id, s.PropID, valOne); err != nil {
			return false, exec.Wrap(exec.StorageError, err, "set rel property %d", s.PropID)
		}
		logWrite(ctx.WAL, id.TableID, id.Offset)
	}
	return true, nil
}

func (s *SetRelProperty) Clone() exec.Operator {
	return NewSetRelProperty(s.Children()[0].Clone(), s.IDPos, s.PropID, s.ValPos)
}

// DeleteRel marks each identified relationship deleted (spec.md §4.9),
// dispatching to its owning rel table the same way SetRelProperty does.
type DeleteRel struct {
	exec.Base

	IDPos vector.Pos

	tables storage.TableProvider
	idVec  *vector.Vector
}

func NewDeleteRel(child exec.Operator, idPos vector.Pos) *DeleteRel {
	d := &DeleteRel{IDPos: idPos}
	d.SetChildren(child)
	return d
}

func (d *DeleteRel) Kind() exec.OpKind { return exec.KindDeleteRel }

func (d *DeleteRel) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	if err := d.Children()[0].InitLocalState(rs, ctx); err != nil {
		return err
	}
	d.tables = ctx.Tables
	d.idVec = rs.Vector(d.IDPos)
	return nil
}

func (d *DeleteRel) GetNextTuple(ctx *exec.Context) (bool, error) {
	if err := ctx.CheckInterrupted(); err != nil {
		return false, err
	}
	more, err := d.Children()[0].GetNextTuple(ctx)
	if err != nil || !more {
		return more, err
	}
	n := d.idVec.State().Size()
	rtCache := make(map[uint32]storage.RelTable)
	for row := 0; row < n; row++ {
		id := d.idVec.GetNodeID(row)
		rt, ok := rtCache[id.TableID]
		if !ok {
			var err error
			rt, err = d.tables.RelTable(id.TableID)
			if err != nil {
				return false, exec.Wrap(exec.StorageError, err, "rel table %d", id.TableID)
			}
			rtCache[id.TableID] = rt
		}
		if err := rt.Delete(ctx.Tx, id); err != nil {
			return false, exec.Wrap(exec.StorageError, err, "delete rel %v", id)
		}
		logWrite(ctx.WAL, id.TableID, id.Offset)
	}
	return true, nil
}

func (d *DeleteRel) Clone() exec.Operator {
	return NewDeleteRel(d.Children()[0].Clone(), d.IDPos)
}
