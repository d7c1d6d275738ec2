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
	"golang.org/x/exp/slices"

	"github.com/tyval-io/tyval"
)

// chunk is a window (off, len) into an sview plus a forward link to the
// next chunk in a byte-run's chain, per spec.md §4.9.
type chunk struct {
	sv   *sview
	off  int
	ln   int
	next *chunk
}

func newChunk(sv *sview, off, ln int) *chunk {
	return &chunk{sv: sv.retain(), off: off, ln: ln}
}

// bytes returns the chunk's own window, not following next.
func (c *chunk) bytes() []byte {
	if c == nil {
		return nil
	}
	return c.sv.buf[c.off : c.off+c.ln]
}

// clone makes an independently owned copy of this chunk's bytes (but not
// its link), for disown_children / set() semantics.
func (c *chunk) clone() *chunk {
	cp := make([]byte, c.ln)
	copy(cp, c.bytes())
	return newChunk(newOwningSview(cp), 0, c.ln)
}

// subChunk returns a non-owning window into c covering [off, off+ln),
// sharing c's sview.
func (c *chunk) subChunk(off, ln int) *chunk {
	return newChunk(c.sv, c.off+off, ln)
}

// tryAppend extends c in place if other is adjacent in memory within the
// same backing sview and c is uniquely owned and writable; it reports
// whether the fast path applied.
func (c *chunk) tryAppend(other *chunk) bool {
	if c.sv != other.sv || !c.sv.isWritable() || c.sv.shared() {
		return false
	}
	if c.off+c.ln != other.off {
		return false
	}
	c.ln += other.ln
	return true
}

// reserve grows c's backing storage to at least n bytes, reallocating
// (and losing existing content) if needed. next is preserved.
func (c *chunk) reserve(n int) {
	if c.sv.isWritable() && !c.sv.shared() && cap(c.sv.buf)-c.off >= n {
		c.ln = n
		return
	}
	buf := allocChunkBuf(n)
	next := c.next
	c.sv.release()
	c.sv = newOwningSview(buf)
	c.off = 0
	c.ln = n
	c.next = next
}

// allocChunkBuf carves n bytes out of the package-wide arena when one is
// available, falling back to a plain heap allocation once the arena is
// exhausted or its mapping couldn't be established.
func allocChunkBuf(n int) []byte {
	if a := tyval.DefaultArena(); a != nil {
		if b, err := a.Alloc(n); err == nil {
			return b
		}
	}
	return make([]byte, n)
}

// assign replaces c's window with data by copying into c's own storage,
// reallocating via reserve if it doesn't already fit.
func (c *chunk) assign(data []byte) {
	c.reserve(len(data))
	copy(c.bytes(), data)
}

// copyFrom replaces c entirely, including its link, with a clone of
// other's content and next pointer.
func (c *chunk) copyFrom(other *chunk) {
	c.assign(other.bytes())
	c.next = other.next
}

// swapContentWith exchanges the visible bytes of c and other by copying
// through a temporary, preserving each chunk's own identity (pointer)
// the way spec.md §4.10's swap_content_with requires so that external
// children that alias the first chunk are not invalidated.
func (c *chunk) swapContentWith(other *chunk) {
	a := append([]byte(nil), c.bytes()...)
	b := append([]byte(nil), other.bytes()...)
	cNext, oNext := c.next, other.next
	c.assign(b)
	other.assign(a)
	c.next, other.next = oNext, cNext
}

// unshare clones c's storage if shared, returning a chunk safe to
// mutate in place.
func (c *chunk) unshare() *chunk {
	if !c.sv.shared() {
		return c
	}
	return c.clone()
}

// flattenSize sums the length of c and every chunk reachable via next.
func flattenSize(c *chunk) int {
	n := 0
	for ; c != nil; c = c.next {
		n += c.ln
	}
	return n
}

// flattenTo copies the full chain starting at c into dst, returning the
// extended slice.
func flattenTo(dst []byte, c *chunk) []byte {
	for ; c != nil; c = c.next {
		dst = append(dst, c.bytes()...)
	}
	return dst
}

// findNonempty returns the first chunk in the chain with ln > 0.
func findNonempty(c *chunk) *chunk {
	for ; c != nil; c = c.next {
		if c.ln > 0 {
			return c
		}
	}
	return nil
}

// findBefore returns the chunk immediately preceding target in c's
// chain, or nil if target is the head or not found.
func findBefore(c, target *chunk) *chunk {
	for ; c != nil; c = c.next {
		if c.next == target {
			return c
		}
	}
	return nil
}

// advanceByOffset walks n bytes into the chain starting at c, returning
// the chunk containing that byte and the within-chunk offset.
func advanceByOffset(c *chunk, n int) (*chunk, int) {
	for c != nil {
		if n < c.ln {
			return c, n
		}
		n -= c.ln
		c = c.next
	}
	return nil, 0
}

// startsWith reports whether the flattened chain starting at c begins
// with prefix.
func startsWith(c *chunk, prefix []byte) bool {
	for len(prefix) > 0 {
		if c == nil {
			return false
		}
		b := c.bytes()
		n := len(b)
		if n > len(prefix) {
			n = len(prefix)
		}
		if string(b[:n]) != string(prefix[:n]) {
			return false
		}
		prefix = prefix[n:]
		c = c.next
	}
	return true
}

// split factors c into up to three consecutive chunks at [off, off+ln),
// preserving forward linkage, so the selected byte range occupies a
// chunk of its own. It returns (before, middle, after); before/after
// are nil when the range already starts/ends at a chunk boundary.
func split(c *chunk, off, ln int) (before, middle, after *chunk) {
	if off < 0 || ln < 0 || off+ln > c.ln {
		return nil, c, nil
	}
	tail := c.next
	if off > 0 {
		before = newChunk(c.sv, c.off, off)
	}
	middle = newChunk(c.sv, c.off+off, ln)
	if off+ln < c.ln {
		after = newChunk(c.sv, c.off+off+ln, c.ln-off-ln)
	}
	switch {
	case before != nil && after != nil:
		before.next = middle
		middle.next = after
		after.next = tail
	case before != nil:
		before.next = middle
		middle.next = tail
	case after != nil:
		middle.next = after
		after.next = tail
	default:
		middle.next = tail
	}
	return before, middle, after
}

// chunkList is a small sorted-by-start-offset index that locates the
// chunk owning a given flattened offset without a linear walk from the
// head every time. Only the package tests build one.
type chunkList struct {
	starts []int
	chunks []*chunk
}

func buildChunkList(head *chunk) *chunkList {
	cl := &chunkList{}
	off := 0
	for c := head; c != nil; c = c.next {
		cl.starts = append(cl.starts, off)
		cl.chunks = append(cl.chunks, c)
		off += c.ln
	}
	return cl
}

func (cl *chunkList) at(offset int) (*chunk, int) {
	i, found := slices.BinarySearch(cl.starts, offset)
	if !found {
		i--
	}
	if i < 0 || i >= len(cl.chunks) {
		return nil, 0
	}
	return cl.chunks[i], offset - cl.starts[i]
}
