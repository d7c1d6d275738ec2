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

import "testing"

func TestSviewRetainDemotesOnSecondRef(t *testing.T) {
	sv := newOwningSview([]byte("hello"))
	if !sv.isWritable() {
		t.Fatalf("fresh owning sview should be writable")
	}
	sv.retain()
	if sv.shared() != true {
		t.Fatalf("sview with 2 refs should be shared")
	}
	sv.release()
	if sv.isWritable() {
		t.Fatalf("sview should be demoted to read-only after being shared once")
	}
}

func TestSviewBorrowingIsNeverWritable(t *testing.T) {
	sv := newBorrowingSview([]byte("hello"))
	if sv.isWritable() {
		t.Fatalf("borrowing sview must never be writable")
	}
}
