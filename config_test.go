// Copyright (C) 2022 Sneller, Inc.
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

package tyval

import "testing"

func TestLoadConfigAndResolvePolicy(t *testing.T) {
	raw := []byte("policy:\n  - converting_any\n  - converting_bool\nparseMode: liberal\nprintMaxLen: 256\n")
	c, err := LoadConfig(raw)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	p, err := c.ResolvePolicy()
	if err != nil {
		t.Fatalf("ResolvePolicy: %v", err)
	}
	if !p.Has(ConvertingAny) || !p.Has(ConvertingBool) {
		t.Fatalf("unexpected policy: %v", p)
	}
	mode, err := c.ResolveParseMode()
	if err != nil || mode != Liberal {
		t.Fatalf("ResolveParseMode: %v %v", mode, err)
	}
	if c.PrintMaxLen != 256 {
		t.Fatalf("PrintMaxLen = %d", c.PrintMaxLen)
	}
}

func TestResolvePolicyRejectsUnknownFlag(t *testing.T) {
	c := Config{Policy: []string{"converting_nonsense"}}
	if _, err := c.ResolvePolicy(); err == nil {
		t.Fatalf("expected error for unknown policy flag")
	}
}

func TestDefaultConfigRoundTrip(t *testing.T) {
	c := DefaultConfig()
	raw, err := c.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	c2, err := LoadConfig(raw)
	if err != nil {
		t.Fatalf("LoadConfig(round-trip): %v", err)
	}
	if c2.ParseMode != c.ParseMode {
		t.Fatalf("round trip mismatch: %+v vs %+v", c2, c)
	}
}
