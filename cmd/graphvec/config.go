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
	"os"

	"sigs.k8s.io/yaml"

	"github.com/kuzudb/graphvec/catalog"
)

// Config is the execution-context config graphvec loads at startup
// (spec.md's resolved Open Question on config surface: thread count,
// morsel size, HNSW defaults).
type Config struct {
	NumThreads int    `json:"numThreads"`
	MorselSize int    `json:"morselSize"`
	Verbose    bool   `json:"verbose"`
	PrintType  string `json:"printType"`

	HNSW catalog.HNSWConfig `json:"hnsw"`
}

// DefaultConfig mirrors the defaults spec.md §4.8 lists for HNSW
// (Mu=16, Ml=64, Pl=0.25) and a single-threaded, vector.V-sized morsel
// baseline safe for any machine.
func DefaultConfig() Config {
	return Config{
		NumThreads: 1,
		MorselSize: 2048,
		PrintType:  "table",
		HNSW: catalog.HNSWConfig{
			Mu:       16,
			Ml:       64,
			Pl:       0.25,
			DistFunc: "cosine",
			Efc:      40,
			Alpha:    1.2,
			Efs:      64,
		},
	}
}

// LoadConfig reads and decodes a YAML config file over DefaultConfig,
// the same sigs.k8s.io/yaml-over-JSON-tags decoding the teacher's own
// deployment manifests use.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.HNSW.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: hnsw: %w", path, err)
	}
	return cfg, nil
}
