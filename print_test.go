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

func TestPrintJSONMapOfTuples(t *testing.T) {
	var mapVal []byte
	mapVal = AppendCount(mapVal, 1)
	mapVal = AppendString(mapVal, "k")
	var tup []byte
	tup = AppendInt32(tup, 7)
	tup = AppendDouble(tup, 1.5)
	mapVal = append(mapVal, tup...)

	a := &Any{Typ: MustParseType("mst2id"), Val: mapVal}
	got, err := a.PrintJSON(PrintOptions{})
	if err != nil {
		t.Fatalf("PrintJSON: %v", err)
	}
	want := `{"k":[7,1.5]}`
	if got != want {
		t.Fatalf("PrintJSON = %q, want %q", got, want)
	}
}

func TestPrintNativeScalarHeader(t *testing.T) {
	a := &Any{Typ: MustParseType("i"), Val: AppendInt32(nil, 42)}
	got, err := a.PrintNative(PrintOptions{})
	if err != nil {
		t.Fatalf("PrintNative: %v", err)
	}
	if got != "<i>42" {
		t.Fatalf("PrintNative = %q", got)
	}
}

func TestPrintNativeOptionalAbsent(t *testing.T) {
	a := &Any{Typ: MustParseType("oi"), Val: []byte{0}}
	got, err := a.PrintNative(PrintOptions{})
	if err != nil {
		t.Fatalf("PrintNative: %v", err)
	}
	if got != "<oi>null" {
		t.Fatalf("PrintNative = %q", got)
	}
}

func TestPrintJSONBooleanAndNull(t *testing.T) {
	a := &Any{Typ: MustParseType("b"), Val: AppendBool(nil, true)}
	got, err := a.PrintJSON(PrintOptions{})
	if err != nil || got != "true" {
		t.Fatalf("PrintJSON(bool) = %q, %v", got, err)
	}

	a = &Any{Typ: MustParseType(""), Val: nil}
	got, err = a.PrintJSON(PrintOptions{})
	if err != nil || got != "null" {
		t.Fatalf("PrintJSON(void) = %q, %v", got, err)
	}
}

func TestPrintTruncation(t *testing.T) {
	a := &Any{Typ: MustParseType("s"), Val: AppendString(nil, "a long string value")}
	_, err := a.PrintNative(PrintOptions{MaxLen: 3})
	if err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestQuoteStringEscaping(t *testing.T) {
	got := quoteString("100%")
	if got != `"100%25"` {
		t.Fatalf("quoteString = %q", got)
	}
}
