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

// Command graphvec drives the execution core end to end: seed a small
// in-memory node table, build a logical plan.Op tree by hand (there is
// no Cypher parser in scope here), map it to a physical pipeline, run
// it, and print the rows. It also exposes the dump/undump subcommands
// for inspecting s2-compressed artifacts.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/kuzudb/graphvec/catalog"
	"github.com/kuzudb/graphvec/cmd/graphvec/resultprinter"
	"github.com/kuzudb/graphvec/exec"
	"github.com/kuzudb/graphvec/exec/plan"
	"github.com/kuzudb/graphvec/storage"
	"github.com/kuzudb/graphvec/txn"
	"github.com/kuzudb/graphvec/vector"
)

var (
	dashConfig  string
	dashPrint   string
	dashThreads int
	dashDump    string
	dashUndump  string
	dashOut     string
)

func init() {
	flag.StringVar(&dashConfig, "config", "", "path to a YAML config file (defaults applied when empty)")
	flag.StringVar(&dashPrint, "print", "", "override the configured result print type")
	flag.IntVar(&dashThreads, "threads", 0, "override the configured worker thread count")
	flag.StringVar(&dashDump, "dump", "", "s2-compress the given file (or - for stdin) instead of running the demo query")
	flag.StringVar(&dashUndump, "undump", "", "s2-decompress the given file (or - for stdin) instead of running the demo query")
	flag.StringVar(&dashOut, "o", "-", "output path for -dump/-undump (default stdout)")
}

func main() {
	flag.Parse()

	if dashDump != "" {
		if err := runDump(dashDump, dashOut); err != nil {
			fmt.Fprintln(os.Stderr, "graphvec:", err)
			os.Exit(1)
		}
		return
	}
	if dashUndump != "" {
		if err := runUndump(dashUndump, dashOut); err != nil {
			fmt.Fprintln(os.Stderr, "graphvec:", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := LoadConfig(dashConfig)
	if err != nil {
		fmt.Fprintln(os.Stderr, "graphvec:", err)
		os.Exit(1)
	}
	if dashPrint != "" {
		cfg.PrintType = dashPrint
	}
	if dashThreads > 0 {
		cfg.NumThreads = dashThreads
	}

	if err := runDemoQuery(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "graphvec:", err)
		os.Exit(1)
	}
}

const (
	demoTableID    uint32             = 1
	demoPKPropID   catalog.PropertyID = 0
	demoNamePropID catalog.PropertyID = 1
)

func demoSchema() catalog.NodeTableSchema {
	return catalog.NodeTableSchema{
		ID:         demoTableID,
		Name:       "Person",
		PrimaryKey: demoPKPropID,
		Properties: []catalog.PropertySchema{
			{ID: demoPKPropID, Name: "id", Type: vector.INT64},
			{ID: demoNamePropID, Name: "name", Type: vector.STRING},
		},
	}
}

// seedDemoTable populates a handful of rows so the demo query has
// something to scan; this stands in for a real loader or COPY FROM
// statement, which is out of scope here.
func seedDemoTable(tx *txn.Transaction, nt *storage.MemNodeTable, names []string) error {
	for i, name := range names {
		pk := vector.NewChunk([]vector.LogicalType{vector.INT64}, 1)
		pk.Vectors[0].SetInt64(0, int64(i+1))
		id, err := nt.AddNodeAndResetPropertiesWithPK(tx, pk.Vectors[0])
		if err != nil {
			return fmt.Errorf("seed row %d: %w", i, err)
		}

		idChunk := vector.NewChunk([]vector.LogicalType{vector.NODE}, 1)
		idChunk.Vectors[0].SetNodeID(0, id)
		nameChunk := vector.NewChunk([]vector.LogicalType{vector.STRING}, 1)
		nameChunk.Vectors[0].SetString(0, []byte(name))
		if err := nt.Write(tx, idChunk.Vectors[0], demoNamePropID, nameChunk.Vectors[0]); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	return nil
}

// runDemoQuery exercises the full stack: seed data, build a logical
// plan MATCH (p:Person) RETURN p.name would produce, map it to
// physical operators, drive the result collector, and print the rows.
func runDemoQuery(cfg Config) error {
	reg := storage.NewMemTableRegistry()
	nt := storage.NewMemNodeTable(demoSchema())
	reg.RegisterNodeTable(demoTableID, nt)

	tx := txn.Begin(txn.Write, uuid.New())
	if err := seedDemoTable(tx, nt, []string{"alice", "bob", "carol"}); err != nil {
		return err
	}

	ctx := exec.NewContext(tx, nil, reg, nil, nil, nil, cfg.NumThreads)
	ctx.Progress = newProgressDisplay(os.Stderr)

	idPos := vector.Pos{ChunkIdx: 0, VectorIdx: 0}
	namePos := vector.Pos{ChunkIdx: 1, VectorIdx: 0}
	outPos := vector.Pos{ChunkIdx: 2, VectorIdx: 0}

	logicalScanID := &plan.ScanNodeID{TableID: demoTableID, OutPos: idPos}
	logicalScanName := &plan.ScanNodeProperty{
		TableID:   demoTableID,
		InPos:     idPos,
		PropIDs:   []catalog.PropertyID{demoNamePropID},
		PropTypes: []vector.LogicalType{vector.STRING},
		OutPos:    []vector.Pos{namePos},
	}
	logicalScanName.SetInput(logicalScanID)

	m := plan.NewMapper(ctx)
	root, err := m.MapQuery(logicalScanName,
		[]vector.Pos{namePos}, []vector.LogicalType{vector.STRING}, []vector.Pos{outPos})
	if err != nil {
		return fmt.Errorf("mapping logical plan: %w", err)
	}

	collector, ok := root.(*exec.ResultCollector)
	if !ok {
		return fmt.Errorf("mapped query root is %T, not *exec.ResultCollector", root)
	}
	if err := collector.Build(ctx, cfg.NumThreads); err != nil {
		return fmt.Errorf("building result collector: %w", err)
	}

	rs := &vector.ResultSet{}
	if err := collector.InitLocalState(rs, ctx); err != nil {
		return fmt.Errorf("initializing result collector: %w", err)
	}

	printer := resultprinter.New(resultprinter.Type(cfg.PrintType), os.Stdout, []string{"name"})
	for {
		more, err := collector.GetNextTuple(ctx)
		if err != nil {
			return fmt.Errorf("fetching results: %w", err)
		}
		if !more {
			break
		}
		out := rs.Vector(outPos)
		for i := 0; i < out.State().Size(); i++ {
			v := resultprinter.ValueOf(out, i, vector.STRING)
			if err := printer.Row([]any{v}); err != nil {
				return fmt.Errorf("printing row: %w", err)
			}
		}
	}
	return printer.Close()
}
