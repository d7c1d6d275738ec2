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

func TestDefaultOfScansClean(t *testing.T) {
	cases := []string{"b", "c", "i", "I", "d", "s", "li", "msi", "t2is", "oi", "xi", "X", "e", "a"}
	for _, s := range cases {
		ty := MustParseType(s)
		v := DefaultOf(ty)
		n, err := Scan(ty, v, true)
		if err != nil {
			t.Errorf("Scan(Default(%q)): %v", s, err)
			continue
		}
		if n != len(v) {
			t.Errorf("Default(%q) has trailing bytes: consumed %d of %d", s, n, len(v))
		}
	}
}

func TestDefaultVoidIsEmpty(t *testing.T) {
	if v := DefaultOf(MustParseType("")); len(v) != 0 {
		t.Fatalf("expected empty default for void, got %v", v)
	}
}

func TestDefaultOptIsAbsent(t *testing.T) {
	v := DefaultOf(MustParseType("oi"))
	if len(v) != 1 || v[0] != 0 {
		t.Fatalf("expected absent flag, got %v", v)
	}
}
