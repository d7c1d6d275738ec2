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
)

func TestChunkFlattenAndSize(t *testing.T) {
	c1 := newChunk(newOwningSview([]byte("abc")), 0, 3)
	c2 := newChunk(newOwningSview([]byte("defgh")), 0, 5)
	c1.next = c2

	if got := flattenSize(c1); got != 8 {
		t.Fatalf("flattenSize = %d, want 8", got)
	}
	if got := flattenTo(nil, c1); !bytes.Equal(got, []byte("abcdefgh")) {
		t.Fatalf("flattenTo = %q", got)
	}
}

func TestChunkSplitMiddle(t *testing.T) {
	c := newChunk(newOwningSview([]byte("0123456789")), 0, 10)
	before, middle, after := split(c, 3, 4)
	if before == nil || middle == nil || after == nil {
		t.Fatalf("expected three parts, got before=%v middle=%v after=%v", before, middle, after)
	}
	if !bytes.Equal(before.bytes(), []byte("012")) {
		t.Fatalf("before = %q", before.bytes())
	}
	if !bytes.Equal(middle.bytes(), []byte("3456")) {
		t.Fatalf("middle = %q", middle.bytes())
	}
	if !bytes.Equal(after.bytes(), []byte("789")) {
		t.Fatalf("after = %q", after.bytes())
	}
	if before.next != middle || middle.next != after {
		t.Fatalf("split did not preserve forward linkage")
	}
}

func TestChunkSplitAtBoundaries(t *testing.T) {
	c := newChunk(newOwningSview([]byte("0123456789")), 0, 10)
	before, middle, after := split(c, 0, 10)
	if before != nil || after != nil {
		t.Fatalf("split covering the whole chunk should not produce before/after")
	}
	if !bytes.Equal(middle.bytes(), []byte("0123456789")) {
		t.Fatalf("middle = %q", middle.bytes())
	}
}

func TestChunkSplitPreservesTail(t *testing.T) {
	head := newChunk(newOwningSview([]byte("abcdef")), 0, 6)
	tail := newChunk(newOwningSview([]byte("XYZ")), 0, 3)
	head.next = tail

	_, middle, after := split(head, 2, 2)
	if after == nil {
		t.Fatalf("expected a trailing chunk before tail")
	}
	if after.next != tail {
		t.Fatalf("split dropped the original tail link")
	}
	if !bytes.Equal(middle.bytes(), []byte("cd")) {
		t.Fatalf("middle = %q", middle.bytes())
	}
}

func TestChunkTryAppendAdjacentWritable(t *testing.T) {
	// Built without newChunk's extra retain so the backing sview has a
	// single outstanding reference, matching the one-owner window-pair
	// case tryAppend's fast path is meant to serve.
	sv := newOwningSview([]byte("0123456789"))
	a := &chunk{sv: sv, off: 0, ln: 4}
	b := &chunk{sv: sv, off: 4, ln: 3}
	if !a.tryAppend(b) {
		t.Fatalf("expected tryAppend to succeed on adjacent writable chunks")
	}
	if a.ln != 7 {
		t.Fatalf("a.ln = %d, want 7", a.ln)
	}
}

func TestChunkTryAppendRejectsSharedOrNonAdjacent(t *testing.T) {
	sv := newOwningSview([]byte("0123456789"))
	a := &chunk{sv: sv, off: 0, ln: 4}
	b := &chunk{sv: sv, off: 5, ln: 3} // gap at offset 4
	if a.tryAppend(b) {
		t.Fatalf("tryAppend should reject non-adjacent chunks")
	}
}

func TestChunkTryAppendRejectsWhenSharedAcrossOwners(t *testing.T) {
	sv := newOwningSview([]byte("0123456789"))
	a := newChunk(sv, 0, 4) // retains
	b := newChunk(sv, 4, 3) // retains again: sv now has 3 outstanding refs
	if a.tryAppend(b) {
		t.Fatalf("tryAppend should refuse to grow a chunk whose sview is held by other chunks too")
	}
}

func TestChunkCloneIsIndependent(t *testing.T) {
	orig := newChunk(newOwningSview([]byte("hello")), 0, 5)
	cp := orig.clone()
	cp.assign([]byte("WORLD"))
	if bytes.Equal(orig.bytes(), cp.bytes()) {
		t.Fatalf("mutating the clone should not affect the original")
	}
}

func TestChunkSwapContentWithPreservesIdentity(t *testing.T) {
	a := newChunk(newOwningSview([]byte("AAA")), 0, 3)
	b := newChunk(newOwningSview([]byte("BB")), 0, 2)
	aPtr, bPtr := a, b
	a.swapContentWith(b)
	if a != aPtr || b != bPtr {
		t.Fatalf("swapContentWith must not change chunk identity")
	}
	if !bytes.Equal(a.bytes(), []byte("BB")) || !bytes.Equal(b.bytes(), []byte("AAA")) {
		t.Fatalf("swapContentWith did not exchange content: a=%q b=%q", a.bytes(), b.bytes())
	}
}

func TestStartsWithAcrossChunkBoundary(t *testing.T) {
	a := newChunk(newOwningSview([]byte("ab")), 0, 2)
	b := newChunk(newOwningSview([]byte("cdef")), 0, 4)
	a.next = b
	if !startsWith(a, []byte("abcd")) {
		t.Fatalf("expected prefix to match across chunk boundary")
	}
	if startsWith(a, []byte("abzz")) {
		t.Fatalf("mismatched prefix reported as matching")
	}
}

func TestAdvanceByOffset(t *testing.T) {
	a := newChunk(newOwningSview([]byte("abc")), 0, 3)
	b := newChunk(newOwningSview([]byte("defgh")), 0, 5)
	a.next = b

	c, off := advanceByOffset(a, 4)
	if c != b || off != 1 {
		t.Fatalf("advanceByOffset(4) = (%v, %d), want (b, 1)", c, off)
	}
}

func TestChunkListAt(t *testing.T) {
	a := newChunk(newOwningSview([]byte("abc")), 0, 3)
	b := newChunk(newOwningSview([]byte("defgh")), 0, 5)
	a.next = b
	cl := buildChunkList(a)

	c, off := cl.at(5)
	if c != b || off != 2 {
		t.Fatalf("at(5) = (%v, %d), want (b, 2)", c, off)
	}
	c, off = cl.at(0)
	if c != a || off != 0 {
		t.Fatalf("at(0) = (%v, %d), want (a, 0)", c, off)
	}
}
