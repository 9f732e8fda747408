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
	"sync"

	"github.com/kuzudb/graphvec/catalog"
	"github.com/kuzudb/graphvec/exec"
	"github.com/kuzudb/graphvec/storage"
	"github.com/kuzudb/graphvec/vector"
)

// createNodeLike is shared by CreateNode, Merge and CopyNode: each inserts one row
// per input row via AddNodeAndResetPropertiesWithPK, write the remaining
// properties, and differ only in how VALIDATE treats a duplicate PK
// (spec.md §4.9 state diagram).
type createNodeLike struct {
	exec.Base

	TableID uint32
	PKPos   vector.Pos
	PropIDs []catalog.PropertyID
	PropPos []vector.Pos
	OutPos  vector.Pos

	policy conflictPolicy

	nt       storage.NodeTable
	pkVec    *vector.Vector
	propVecs []*vector.Vector
	out      *vector.Chunk
	outVec   *vector.Vector

	warnMu   sync.Mutex
	warnings []Warning
}

func (c *createNodeLike) initLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	if err := c.Children()[0].InitLocalState(rs, ctx); err != nil {
		return err
	}
	nt, err := ctx.Tables.NodeTable(c.TableID)
	if err != nil {
		return exec.Wrap(exec.StorageError, err, "create node table %d", c.TableID)
	}
	c.nt = nt
	c.pkVec = rs.Vector(c.PKPos)
	c.propVecs = make([]*vector.Vector, len(c.PropPos))
	for i, p := range c.PropPos {
		c.propVecs[i] = rs.Vector(p)
	}
	c.out = vector.NewChunk([]vector.LogicalType{vector.NODE}, vector.V)
	c.outVec = c.out.Vectors[0]
	rs.SetChunk(c.OutPos.ChunkIdx, c.out)
	return nil
}

func (c *createNodeLike) getNextTuple(ctx *exec.Context) (bool, error) {
	if err := ctx.CheckInterrupted(); err != nil {
		return false, err
	}
	more, err := c.Children()[0].GetNextTuple(ctx)
	if err != nil || !more {
		return more, err
	}
	n := c.pkVec.State().Size()
	outRow := 0
	for row := 0; row < n; row++ {
		flat := vector.NewFlatState(c.pkVec.State().Index(row))
		pkOne := vector.NewView(c.pkVec, flat)

		id, err := c.nt.AddNodeAndResetPropertiesWithPK(ctx.Tx, pkOne)
		if err != nil {
			if isDuplicatePK(err) && c.policy == skipOnConflict {
				c.warnMu.Lock()
				c.warnings = append(c.warnings, Warning{Row: row, Message: "duplicate primary key, skipped"})
				c.warnMu.Unlock()
				continue
			}
			return false, exec.Wrap(exec.ConstraintViolation, err, "create node row %d", row)
		}
		logWrite(ctx.WAL, c.TableID, id.Offset)

		idFlat := vector.New(vector.NODE, vector.NewFlatState(0))
		idFlat.SetNodeID(0, id)
		for i, propID := range c.PropIDs {
			srcOne := vector.NewView(c.propVecs[i], flat)
			if err := c.nt.Write(ctx.Tx, idFlat, propID, srcOne); err != nil {
				return false, exec.Wrap(exec.StorageError, err, "write property %d on new node", propID)
			}
		}
		c.outVec.SetNodeID(outRow, id)
		outRow++
	}
	c.out.State.SetUnfiltered(outRow)
	return true, nil
}

// CreateNode is the node-insert writing operator of spec.md §4.9: every
// VALIDATE failure (duplicate PK) aborts the transaction.
type CreateNode struct{ createNodeLike }

func NewCreateNode(child exec.Operator, tableID uint32, pkPos vector.Pos, propIDs []catalog.PropertyID, propPos []vector.Pos, outPos vector.Pos) *CreateNode {
	c := &CreateNode{createNodeLike{TableID: tableID, PKPos: pkPos, PropIDs: propIDs, PropPos: propPos, OutPos: outPos, policy: failOnConflict}}
	c.SetChildren(child)
	return c
}

func (c *CreateNode) Kind() exec.OpKind { return exec.KindCreateNode }
func (c *CreateNode) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	return c.initLocalState(rs, ctx)
}
func (c *CreateNode) GetNextTuple(ctx *exec.Context) (bool, error) { return c.getNextTuple(ctx) }
func (c *CreateNode) Clone() exec.Operator {
	n := NewCreateNode(c.Children()[0].Clone(), c.TableID, c.PKPos, c.PropIDs, c.PropPos, c.OutPos)
	return n
}

// Merge is CreateNode's ON CONFLICT variant (spec.md §4.9, SPEC_FULL.md
// §A.2): a duplicate PK converts to a recorded Warning instead of
// aborting, and that row is simply absent from the output rather than
// updating the existing node (no find-by-PK lookup exists on NodeTable
// to resolve it to).
type Merge struct{ createNodeLike }

func NewMerge(child exec.Operator, tableID uint32, pkPos vector.Pos, propIDs []catalog.PropertyID, propPos []vector.Pos, outPos vector.Pos) *Merge {
	m := &Merge{createNodeLike{TableID: tableID, PKPos: pkPos, PropIDs: propIDs, PropPos: propPos, OutPos: outPos, policy: skipOnConflict}}
	m.SetChildren(child)
	return m
}

func (m *Merge) Kind() exec.OpKind { return exec.KindMerge }
func (m *Merge) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	return m.initLocalState(rs, ctx)
}
func (m *Merge) GetNextTuple(ctx *exec.Context) (bool, error) { return m.getNextTuple(ctx) }
func (m *Merge) Clone() exec.Operator {
	return NewMerge(m.Children()[0].Clone(), m.TableID, m.PKPos, m.PropIDs, m.PropPos, m.OutPos)
}

// Warnings returns every ON CONFLICT row skipped by this worker clone.
func (m *Merge) Warnings() []Warning {
	m.warnMu.Lock()
	defer m.warnMu.Unlock()
	return append([]Warning(nil), m.warnings...)
}

// SetNodeProperty applies an update to an already-scanned set of node IDs
// (spec.md §4.9): VALIDATE here is the schema type match already enforced
// at plan/bind time, so APPLY is a single vectorized NodeTable.Write call
// over the whole chunk.
type SetNodeProperty struct {
	exec.Base

	TableID uint32
	IDPos   vector.Pos
	PropID  catalog.PropertyID
	ValPos  vector.Pos

	nt     storage.NodeTable
	idVec  *vector.Vector
	valVec *vector.Vector
}

func NewSetNodeProperty(child exec.Operator, tableID uint32, idPos vector.Pos, propID catalog.PropertyID, valPos vector.Pos) *SetNodeProperty {
	s := &SetNodeProperty{TableID: tableID, IDPos: idPos, PropID: propID, ValPos: valPos}
	s.SetChildren(child)
	return s
}

func (s *SetNodeProperty) Kind() exec.OpKind { return exec.KindSetNodeProperty }

func (s *SetNodeProperty) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	if err := s.Children()[0].InitLocalState(rs, ctx); err != nil {
		return err
	}
	nt, err := ctx.Tables.NodeTable(s.TableID)
	if err != nil {
		return exec.Wrap(exec.StorageError, err, "set node property table %d", s.TableID)
	}
	s.nt = nt
	s.idVec = rs.Vector(s.IDPos)
	s.valVec = rs.Vector(s.ValPos)
	return nil
}

func (s *SetNodeProperty) GetNextTuple(ctx *exec.Context) (bool, error) {
	if err := ctx.CheckInterrupted(); err != nil {
		return false, err
	}
	more, err := s.Children()[0].GetNextTuple(ctx)
	if err != nil || !more {
		return more, err
	}
	if err := s.nt.Write(ctx.Tx, s.idVec, s.PropID, s.valVec); err != nil {
		return false, exec.Wrap(exec.StorageError, err, "set node property %d", s.PropID)
	}
	n := s.idVec.State().Size()
	for row := 0; row < n; row++ {
		logWrite(ctx.WAL, s.TableID, s.idVec.GetNodeID(row).Offset)
	}
	return true, nil
}

func (s *SetNodeProperty) Clone() exec.Operator {
	c := NewSetNodeProperty(s.Children()[0].Clone(), s.TableID, s.IDPos, s.PropID, s.ValPos)
	return c
}

// DeleteNode marks each scanned node ID deleted in the local transaction
// chunk (spec.md §4.9 VALIDATE: existence; our in-memory NodeTable.Delete
// is idempotent so a double-delete within one transaction is harmless).
type DeleteNode struct {
	exec.Base

	TableID uint32
	IDPos   vector.Pos

	nt    storage.NodeTable
	idVec *vector.Vector
}

func NewDeleteNode(child exec.Operator, tableID uint32, idPos vector.Pos) *DeleteNode {
	d := &DeleteNode{TableID: tableID, IDPos: idPos}
	d.SetChildren(child)
	return d
}

func (d *DeleteNode) Kind() exec.OpKind { return exec.KindDeleteNode }

func (d *DeleteNode) InitLocalState(rs *vector.ResultSet, ctx *exec.Context) error {
	if err := d.Children()[0].InitLocalState(rs, ctx); err != nil {
		return err
	}
	nt, err := ctx.Tables.NodeTable(d.TableID)
	if err != nil {
		return exec.Wrap(exec.StorageError, err, "delete node table %d", d.TableID)
	}
	d.nt = nt
	d.idVec = rs.Vector(d.IDPos)
	return nil
}

func (d *DeleteNode) GetNextTuple(ctx *exec.Context) (bool, error) {
	if err := ctx.CheckInterrupted(); err != nil {
		return false, err
	}
	more, err := d.Children()[0].GetNextTuple(ctx)
	if err != nil || !more {
		return more, err
	}
	n := d.idVec.State().Size()
	for row := 0; row < n; row++ {
		id := d.idVec.GetNodeID(row)
		if err := d.nt.Delete(ctx.Tx, id); err != nil {
			return false, exec.Wrap(exec.StorageError, err, "delete node %v", id)
		}
		logWrite(ctx.WAL, d.TableID, id.Offset)
	}
	return true, nil
}

func (d *DeleteNode) Clone() exec.Operator {
	return NewDeleteNode(d.Children()[0].Clone(), d.TableID, d.IDPos)
}
