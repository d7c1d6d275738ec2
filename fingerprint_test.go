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

func TestFingerprintStable(t *testing.T) {
	a := &Any{Typ: MustParseType("i"), Val: AppendInt32(nil, 7)}
	f1 := a.Fingerprint()
	f2 := a.Fingerprint()
	if f1 != f2 {
		t.Fatalf("fingerprint not stable across calls")
	}
}

func TestFingerprintDiffersOnValue(t *testing.T) {
	a := &Any{Typ: MustParseType("i"), Val: AppendInt32(nil, 7)}
	b := &Any{Typ: MustParseType("i"), Val: AppendInt32(nil, 8)}
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatalf("expected different fingerprints")
	}
}

func TestFingerprintDiffersOnType(t *testing.T) {
	a := &Any{Typ: MustParseType("i"), Val: AppendInt32(nil, 7)}
	b := FingerprintValue(MustParseType("I"), AppendInt64(nil, 7))
	if a.Fingerprint() == b {
		t.Fatalf("expected different fingerprints across types")
	}
}
