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

package catalog

import "testing"

func validConfig() HNSWConfig {
	return HNSWConfig{Mu: 30, Ml: 60, Pl: 0.5, DistFunc: "cosine", Efc: 200, Alpha: 1.2, Efs: 100}
}

func TestValidateAcceptsAValidConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() on a valid config = %v, want nil", err)
	}
}

func TestValidateRejectsOutOfRangeFields(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*HNSWConfig)
	}{
		{"Mu too low", func(c *HNSWConfig) { c.Mu = 0 }},
		{"Mu too high", func(c *HNSWConfig) { c.Mu = 101 }},
		{"Ml too low", func(c *HNSWConfig) { c.Ml = 0 }},
		{"Ml too high", func(c *HNSWConfig) { c.Ml = 201 }},
		{"Pl negative", func(c *HNSWConfig) { c.Pl = -0.1 }},
		{"Pl above 1", func(c *HNSWConfig) { c.Pl = 1.1 }},
		{"bad DistFunc", func(c *HNSWConfig) { c.DistFunc = "manhattan" }},
		{"Efc zero", func(c *HNSWConfig) { c.Efc = 0 }},
		{"Alpha below 1", func(c *HNSWConfig) { c.Alpha = 0.9 }},
		{"Efs zero", func(c *HNSWConfig) { c.Efs = 0 }},
		{"Efs too large", func(c *HNSWConfig) { c.Efs = 1 << 32 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			tc.mut(&c)
			if err := c.Validate(); err == nil {
				t.Fatalf("Validate() on %s = nil, want an error", tc.name)
			}
		})
	}
}

func TestValidateAcceptsEveryDistFunc(t *testing.T) {
	for _, df := range []string{"cosine", "l2", "l2sq", "dotproduct"} {
		c := validConfig()
		c.DistFunc = df
		if err := c.Validate(); err != nil {
			t.Errorf("Validate() with DistFunc=%q = %v, want nil", df, err)
		}
	}
}

func TestInvalidPropertyIDIsAllOnes(t *testing.T) {
	if InvalidPropertyID != ^PropertyID(0) {
		t.Fatalf("InvalidPropertyID = %d, want all-ones sentinel", InvalidPropertyID)
	}
}
