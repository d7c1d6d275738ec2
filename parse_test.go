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

func TestParseValuePrimitives(t *testing.T) {
	a, err := ParseValue("42", Normal)
	if err != nil {
		t.Fatalf("ParseValue(42): %v", err)
	}
	if a.Typ.Kind != Int32 {
		t.Fatalf("expected i32, got %v", a.Typ.Kind)
	}
	if v, _ := getInt32(a.Val); v != 42 {
		t.Fatalf("value = %d", v)
	}

	a, err = ParseValue("-1", Normal)
	if err != nil || a.Typ.Kind != Int32 {
		t.Fatalf("ParseValue(-1): %v %v", a, err)
	}

	a, err = ParseValue("3.5", Normal)
	if err != nil || a.Typ.Kind != Double {
		t.Fatalf("ParseValue(3.5): %v %v", a, err)
	}

	a, err = ParseValue("true", Normal)
	if err != nil || a.Typ.Kind != Bool {
		t.Fatalf("ParseValue(true): %v %v", a, err)
	}
}

func TestParseValueStringAndChar(t *testing.T) {
	a, err := ParseValue(`"hi%25there"`, Normal)
	if err != nil {
		t.Fatalf("ParseValue(string): %v", err)
	}
	n, _ := getLen(a.Val)
	if string(a.Val[lenPrefix:lenPrefix+n]) != "hi%there" {
		t.Fatalf("string decoded = %q", a.Val[lenPrefix:lenPrefix+n])
	}

	a, err = ParseValue(`'x'`, Normal)
	if err != nil || a.Typ.Kind != Char {
		t.Fatalf("ParseValue(char): %v %v", a, err)
	}
}

func TestParseValueTuple(t *testing.T) {
	a, err := ParseValue("(1,2,3)", Normal)
	if err != nil {
		t.Fatalf("ParseValue(tuple): %v", err)
	}
	if a.Typ.Kind != Tuple || len(a.Typ.Elem) != 3 {
		t.Fatalf("unexpected tuple type: %v", a.Typ)
	}
}

func TestParseValueUniformList(t *testing.T) {
	a, err := ParseValue("[1,2,3]", Normal)
	if err != nil {
		t.Fatalf("ParseValue(list): %v", err)
	}
	if a.Typ.String() != "li" {
		t.Fatalf("unexpected list type: %v", a.Typ)
	}
}

func TestParseValueMismatchedListLiberalFallback(t *testing.T) {
	_, err := ParseValue(`[1,"two"]`, Normal)
	if err == nil {
		t.Fatalf("expected Normal mode to reject mismatched list")
	}
	a, err := ParseValue(`[1,"two"]`, Liberal)
	if err != nil {
		t.Fatalf("ParseValue(liberal list): %v", err)
	}
	if a.Typ.String() != "la" {
		t.Fatalf("expected la, got %v", a.Typ)
	}
}

func TestParseValueMap(t *testing.T) {
	a, err := ParseValue(`{"k":1}`, Normal)
	if err != nil {
		t.Fatalf("ParseValue(map): %v", err)
	}
	if a.Typ.String() != "msi" {
		t.Fatalf("unexpected map type: %v", a.Typ)
	}
}

func TestParseValueCoercion(t *testing.T) {
	a, err := ParseValue("<I>[5]", Normal)
	if err != nil {
		t.Fatalf("ParseValue(coerced): %v", err)
	}
	if a.Typ.Kind != Int64 {
		t.Fatalf("expected I, got %v", a.Typ.Kind)
	}
	if v, _ := getInt64(a.Val); v != 5 {
		t.Fatalf("value = %d", v)
	}
}

func TestParseValueNull(t *testing.T) {
	a, err := ParseValue("null", Normal)
	if err != nil {
		t.Fatalf("ParseValue(null): %v", err)
	}
	if a.Typ.Kind != Opt {
		t.Fatalf("expected optional, got %v", a.Typ.Kind)
	}
}
