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

import "bytes"

// Precomputed sentinel byte slices for the cheap zero cases, the same
// "sentinel slice for the empty case" idiom the teacher uses for its
// empty-struct ion encoding (ion/datum.go's emptyStruct).
var (
	zeroLen    = []byte{0, 0, 0, 0}
	zeroBool   = []byte{0}
	zeroChar   = []byte{0}
	zeroInt32  = []byte{0, 0, 0, 0}
	zeroInt64  = []byte{0, 0, 0, 0, 0, 0, 0, 0}
	zeroDouble = []byte{0, 0, 0, 0, 0, 0, 0, 0}
	// e expands to t4sssa: three empty strings (one length prefix each)
	// plus an `a` wrapping void (Tlen=0, Vlen=0, two prefixes) — five
	// zero length-prefixes in total.
	zeroErr = bytes.Repeat(zeroLen, 5)
)

// Default appends the canonical zero encoding of t to dst and returns the
// extended slice, per spec.md §4.4.
func Default(dst []byte, t *Type) []byte {
	switch t.Kind {
	case Void:
		return dst
	case Bool:
		return append(dst, zeroBool...)
	case Char:
		return append(dst, zeroChar...)
	case Int32:
		return append(dst, zeroInt32...)
	case Int64:
		return append(dst, zeroInt64...)
	case Double:
		return append(dst, zeroDouble...)
	case String:
		return append(dst, zeroLen...) // empty string: 0 length, no bytes
	case List, Map:
		return append(dst, zeroLen...) // 0 elements
	case Tuple:
		for _, e := range t.Elem {
			dst = Default(dst, e)
		}
		return dst
	case Opt:
		return append(dst, 0) // absent
	case Exp:
		dst = append(dst, 1) // present
		return Default(dst, t.Elem[0])
	case ExpVoid:
		return append(dst, 1) // has the void value
	case Err:
		return append(dst, zeroErr...)
	case Any_:
		// default any wraps void: Tlen=0, empty type, Vlen=0.
		dst = append(dst, zeroLen...)
		return append(dst, zeroLen...)
	}
	return dst
}

// DefaultOf is a convenience wrapper returning a fresh slice.
func DefaultOf(t *Type) []byte { return Default(nil, t) }
