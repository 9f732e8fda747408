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
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigWithEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig(\"\"): %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("LoadConfig(\"\") = %+v, want DefaultConfig()", cfg)
	}
}

func TestLoadConfigOverridesDefaultsFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "numThreads: 8\nprintType: csv\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.NumThreads != 8 {
		t.Errorf("NumThreads = %d, want 8", cfg.NumThreads)
	}
	if cfg.PrintType != "csv" {
		t.Errorf("PrintType = %q, want csv", cfg.PrintType)
	}
	// Unspecified fields should keep their defaults.
	if cfg.HNSW.Mu != DefaultConfig().HNSW.Mu {
		t.Errorf("HNSW.Mu = %d, want default %d", cfg.HNSW.Mu, DefaultConfig().HNSW.Mu)
	}
}

func TestLoadConfigRejectsInvalidHNSWConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "hnsw:\n  mu: 0\n")

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig with Mu=0 should fail HNSW validation")
	}
}

func TestLoadConfigErrorsOnMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("LoadConfig with a missing file should return an error")
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
