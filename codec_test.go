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

func TestAppendGetRoundTrip(t *testing.T) {
	if v, err := getBool(AppendBool(nil, true)); err != nil || v != true {
		t.Fatalf("bool round trip: %v %v", v, err)
	}
	if v, err := getChar(AppendChar(nil, 'Z')); err != nil || v != 'Z' {
		t.Fatalf("char round trip: %v %v", v, err)
	}
	if v, err := getInt32(AppendInt32(nil, -12345)); err != nil || v != -12345 {
		t.Fatalf("int32 round trip: %v %v", v, err)
	}
	if v, err := getInt64(AppendInt64(nil, -123456789012)); err != nil || v != -123456789012 {
		t.Fatalf("int64 round trip: %v %v", v, err)
	}
	if v, err := getDouble(AppendDouble(nil, 3.5)); err != nil || v != 3.5 {
		t.Fatalf("double round trip: %v %v", v, err)
	}
	s := AppendString(nil, "hello")
	n, err := getLen(s)
	if err != nil || n != 5 {
		t.Fatalf("string len: %v %v", n, err)
	}
	if string(s[lenPrefix:]) != "hello" {
		t.Fatalf("string bytes: %q", s[lenPrefix:])
	}
}

func TestCodecBigEndian(t *testing.T) {
	b := AppendInt32(nil, 1)
	if b[0] != 0 || b[1] != 0 || b[2] != 0 || b[3] != 1 {
		t.Fatalf("expected big-endian encoding, got %v", b)
	}
}

func TestGetBoolRejectsInvalidFlag(t *testing.T) {
	if _, err := getBool([]byte{2}); err == nil {
		t.Fatalf("expected error for flag byte 2")
	}
}
