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

package wview

import (
	"testing"

	"github.com/tyval-io/tyval"
)

func listOfTuplesVal(keys []string, vals []int32) []byte {
	out := tyval.AppendCount(nil, len(keys))
	for i := range keys {
		out = tyval.AppendString(out, keys[i])
		out = tyval.AppendInt32(out, vals[i])
	}
	return out
}

func TestLinearSearchOverListOfTuples(t *testing.T) {
	val := listOfTuplesVal([]string{"alice", "bob", "carol"}, []int32{1, 2, 3})
	root, err := NewRoot("lt2si", val)
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	found, err := root.LinearSearch([]byte("bob"), 0)
	if err != nil {
		t.Fatalf("LinearSearch: %v", err)
	}
	second, err := found.Index(1)
	if err != nil {
		t.Fatalf("Index(1): %v", err)
	}
	if !bytesEqualInt32(second.Value(), 2) {
		t.Fatalf("LinearSearch(bob) found wrong tuple")
	}
}

func TestLinearSearchMissingKey(t *testing.T) {
	val := listOfTuplesVal([]string{"alice"}, []int32{1})
	root, err := NewRoot("lt2si", val)
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	if _, err := root.LinearSearch([]byte("nobody"), 0); err == nil {
		t.Fatalf("expected LinearSearch to fail for a missing key")
	}
}

func TestLinearSearchOverMap(t *testing.T) {
	val := tyval.AppendCount(nil, 2)
	val = tyval.AppendString(val, "x")
	val = tyval.AppendInt32(val, 10)
	val = tyval.AppendString(val, "y")
	val = tyval.AppendInt32(val, 20)
	root, err := NewRoot("msi", val)
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	found, err := root.LinearSearch([]byte("y"), 0)
	if err != nil {
		t.Fatalf("LinearSearch: %v", err)
	}
	if !bytesEqualInt32(found.Value(), 20) {
		t.Fatalf("LinearSearch(y) returned wrong value")
	}
}

func bytesEqualInt32(b []byte, v int32) bool {
	want := tyval.AppendInt32(nil, v)
	if len(b) != len(want) {
		return false
	}
	for i := range b {
		if b[i] != want[i] {
			return false
		}
	}
	return true
}
