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

import "bufio"

// ValueRefillFunc supplies more value bytes when the scanner's current
// window is exhausted, mirroring RefillFunc for the type parser.
type ValueRefillFunc func() ([]byte, error)

// valueCursor is a chunked byte cursor shared by the scanner. It behaves
// like Parser but over value bytes instead of type bytes, and its take()
// method copies across a chunk boundary when a single field spans two
// refills (any field can, fixed-width or length-prefixed, since a refill
// may end at any byte).
type valueCursor struct {
	buf    []byte
	pos    int
	refill ValueRefillFunc
	total  int
}

func newValueCursor(buf []byte) *valueCursor { return &valueCursor{buf: buf} }

func newChunkedValueCursor(refill ValueRefillFunc) *valueCursor {
	return &valueCursor{refill: refill}
}

func (c *valueCursor) offset() int { return c.total + c.pos }

func (c *valueCursor) ensure() bool {
	for c.pos >= len(c.buf) {
		if c.refill == nil {
			return false
		}
		more, err := c.refill()
		if err != nil || len(more) == 0 {
			c.refill = nil
			return false
		}
		c.total += c.pos
		c.buf = more
		c.pos = 0
	}
	return true
}

// take returns exactly n bytes starting at the cursor and advances past
// them, pulling additional chunks and copying when the span crosses a
// chunk boundary.
func (c *valueCursor) take(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if !c.ensure() {
		return nil, valueMismatch("short value", "", c.offset())
	}
	if c.pos+n <= len(c.buf) {
		out := c.buf[c.pos : c.pos+n]
		c.pos += n
		return out, nil
	}
	// spans a chunk boundary: copy.
	out := make([]byte, 0, n)
	for len(out) < n {
		if !c.ensure() {
			return nil, valueMismatch("short value", "", c.offset())
		}
		avail := len(c.buf) - c.pos
		need := n - len(out)
		if avail > need {
			avail = need
		}
		out = append(out, c.buf[c.pos:c.pos+avail]...)
		c.pos += avail
	}
	return out, nil
}

func (c *valueCursor) remaining() []byte {
	if c.pos < len(c.buf) {
		return c.buf[c.pos:]
	}
	return nil
}

// ScanState is returned by Scan; Tconsumed/Vconsumed report how many
// type and value bytes were consumed by the walk, per spec.md §4.3.
type ScanState struct {
	Tconsumed int
	Vconsumed int
}

// Scan walks buf against t and reports how many bytes of buf the value
// occupies. If checkRecursively is set, any `a` encountered has its
// inner (type, value) fully verified; otherwise `a` is skipped by its
// declared Tlen/Vlen alone.
func Scan(t *Type, buf []byte, checkRecursively bool) (int, error) {
	vc := newValueCursor(buf)
	if err := scanValue(t, vc, checkRecursively); err != nil {
		return vc.offset(), err
	}
	return vc.offset(), nil
}

// ScanReader scans a single value of type t from r without requiring the
// whole value to be buffered up front (spec.md §1: "the scanner supports
// chunked input"). It is built the same way ion.Peek is built: a
// *bufio.Reader the caller already owns.
func ScanReader(r *bufio.Reader, t *Type, checkRecursively bool) (int, error) {
	vc := newChunkedValueCursor(func() ([]byte, error) {
		b, err := r.Peek(1)
		if len(b) == 0 {
			return nil, err
		}
		n := r.Buffered()
		b, _ = r.Peek(n)
		r.Discard(len(b))
		return b, nil
	})
	if err := scanValue(t, vc, checkRecursively); err != nil {
		return vc.offset(), err
	}
	return vc.offset(), nil
}

func scanValue(t *Type, vc *valueCursor, recurse bool) error {
	switch t.Kind {
	case Void:
		return nil
	case Bool:
		b, err := vc.take(widthBool)
		if err != nil {
			return err
		}
		if b[0] != 0 && b[0] != 1 {
			return valueMismatch("bool flag not 0/1", "b", vc.offset())
		}
		return nil
	case Char:
		_, err := vc.take(widthChar)
		return err
	case Int32:
		_, err := vc.take(widthInt32)
		return err
	case Int64:
		_, err := vc.take(widthInt64)
		return err
	case Double:
		_, err := vc.take(widthDouble)
		return err
	case String:
		n, err := scanLen(vc)
		if err != nil {
			return err
		}
		_, err = vc.take(n)
		return err
	case List:
		n, err := scanLen(vc)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := scanValue(t.Elem[0], vc, recurse); err != nil {
				return encaps(err, 'l')
			}
		}
		return nil
	case Map:
		n, err := scanLen(vc)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := scanValue(t.Elem[0], vc, recurse); err != nil {
				return encaps(err, 'm')
			}
			if err := scanValue(t.Elem[1], vc, recurse); err != nil {
				return encaps(err, 'm')
			}
		}
		return nil
	case Tuple:
		for _, e := range t.Elem {
			if err := scanValue(e, vc, recurse); err != nil {
				return err
			}
		}
		return nil
	case Opt:
		flag, err := vc.take(widthBool)
		if err != nil {
			return err
		}
		switch flag[0] {
		case 0:
			return nil
		case 1:
			return scanValue(t.Elem[0], vc, recurse)
		default:
			return valueMismatch("optional flag not 0/1", "o"+t.Elem[0].String(), vc.offset())
		}
	case Exp:
		flag, err := vc.take(widthBool)
		if err != nil {
			return err
		}
		switch flag[0] {
		case 0:
			return scanValue(errType, vc, recurse)
		case 1:
			return scanValue(t.Elem[0], vc, recurse)
		default:
			return valueMismatch("expected flag not 0/1", "x"+t.Elem[0].String(), vc.offset())
		}
	case ExpVoid:
		flag, err := vc.take(widthBool)
		if err != nil {
			return err
		}
		switch flag[0] {
		case 0:
			return scanValue(errType, vc, recurse)
		case 1:
			return nil
		default:
			return valueMismatch("X flag not 0/1", "X", vc.offset())
		}
	case Err:
		return scanValue(errType, vc, recurse)
	case Any_:
		tlen, err := scanLen(vc)
		if err != nil {
			return err
		}
		tbytes, err := vc.take(tlen)
		if err != nil {
			return err
		}
		inner, perr := ParseType(string(tbytes))
		if perr != nil {
			return perr
		}
		vlen, err := scanLen(vc)
		if err != nil {
			return err
		}
		if !recurse {
			_, err = vc.take(vlen)
			return err
		}
		vbytes, err := vc.take(vlen)
		if err != nil {
			return err
		}
		n, err := Scan(inner, vbytes, true)
		if err != nil {
			return err
		}
		if n != len(vbytes) {
			return valueMismatch("any: inner value length mismatch", "a", vc.offset())
		}
		return nil
	}
	return internalErr("scanValue: unhandled kind " + t.Kind.String())
}

func scanLen(vc *valueCursor) (int, error) {
	b, err := vc.take(lenPrefix)
	if err != nil {
		return 0, err
	}
	return getLen(b)
}
