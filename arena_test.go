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

func TestArenaAllocAndExhaustion(t *testing.T) {
	a, err := NewArena(64)
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	defer a.Close()

	b1, err := a.Alloc(16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if len(b1) != 16 {
		t.Fatalf("len(b1) = %d", len(b1))
	}
	b2, err := a.Alloc(16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	b1[0] = 1
	b2[0] = 2
	if b1[0] == b2[0] {
		t.Fatalf("allocations alias each other")
	}

	if _, err := a.Alloc(1 << 20); err == nil {
		t.Fatalf("expected exhaustion error")
	}
}

func TestArenaGenerationIsStable(t *testing.T) {
	a, err := NewArena(64)
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	defer a.Close()
	g1 := a.Generation()
	g2 := a.Generation()
	if g1 != g2 {
		t.Fatalf("generation changed across calls")
	}
}
