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
	"bytes"
	"testing"

	"github.com/tyval-io/tyval"
)

func TestSnapshotRoundTrip(t *testing.T) {
	root, err := NewRoot("t2ii", tupleVal(7, 42))
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	blob, err := Snapshot(root)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	restored, err := Restore(blob)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.Type() != root.Type() {
		t.Fatalf("restored type = %q, want %q", restored.Type(), root.Type())
	}
	if !bytes.Equal(restored.Value(), root.Value()) {
		t.Fatalf("restored value mismatch")
	}
}

func TestRestoreRejectsTruncatedBlob(t *testing.T) {
	if _, err := Restore([]byte{0x01, 0x02}); err == nil {
		t.Fatalf("expected Restore to reject a non-zstd blob")
	}
}

func TestSnapshotPreservesEmptyValue(t *testing.T) {
	root, err := NewRoot("s", tyval.AppendString(nil, ""))
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	blob, err := Snapshot(root)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	restored, err := Restore(blob)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !bytes.Equal(restored.Value(), root.Value()) {
		t.Fatalf("restored empty-string value mismatch")
	}
}
