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

import (
	"bufio"
	"bytes"
	"testing"
)

func TestScanPrimitives(t *testing.T) {
	v := AppendInt32(nil, 7)
	n, err := Scan(MustParseType("i"), v, true)
	if err != nil || n != 4 {
		t.Fatalf("Scan(i): %d %v", n, err)
	}
}

func TestScanListAndMap(t *testing.T) {
	var v []byte
	v = AppendCount(v, 2)
	v = AppendInt32(v, 1)
	v = AppendInt32(v, 2)
	n, err := Scan(MustParseType("li"), v, true)
	if err != nil || n != len(v) {
		t.Fatalf("Scan(li): %d %v", n, err)
	}

	v = nil
	v = AppendCount(v, 1)
	v = AppendString(v, "k")
	v = AppendInt32(v, 9)
	n, err = Scan(MustParseType("msi"), v, true)
	if err != nil || n != len(v) {
		t.Fatalf("Scan(msi): %d %v", n, err)
	}
}

func TestScanAnyRecursive(t *testing.T) {
	a := &Any{Typ: MustParseType("i"), Val: AppendInt32(nil, 42)}
	v := a.Bytes()
	n, err := Scan(MustParseType("a"), v, true)
	if err != nil || n != len(v) {
		t.Fatalf("Scan(a) recursive: %d %v", n, err)
	}
}

func TestScanAnyMismatchedInnerLength(t *testing.T) {
	var v []byte
	ts := "i"
	v = AppendCount(v, len(ts))
	v = append(v, ts...)
	v = AppendCount(v, 8) // claims 8 value bytes but i only needs 4
	v = append(v, AppendInt32(nil, 1)...)
	v = append(v, 0, 0, 0, 0)
	if _, err := Scan(MustParseType("a"), v, true); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestScanReaderChunked(t *testing.T) {
	var v []byte
	v = AppendCount(v, 3)
	v = AppendInt32(v, 1)
	v = AppendInt32(v, 2)
	v = AppendInt32(v, 3)
	r := bufio.NewReader(bytes.NewReader(v))
	n, err := ScanReader(r, MustParseType("li"), true)
	if err != nil || n != len(v) {
		t.Fatalf("ScanReader: %d %v", n, err)
	}
}

func TestScanShortValue(t *testing.T) {
	if _, err := Scan(MustParseType("i"), []byte{0, 0}, true); err == nil {
		t.Fatalf("expected short-value error")
	}
}
