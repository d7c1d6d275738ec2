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
	"encoding/binary"
	"math"
)

// Fixed widths per spec.md §3. No padding, no alignment.
const (
	widthBool   = 1
	widthChar   = 1
	widthInt32  = 4
	widthInt64  = 8
	widthDouble = 8
	lenPrefix   = 4
)

func putBool(dst []byte, v bool) {
	if v {
		dst[0] = 1
	} else {
		dst[0] = 0
	}
}

func getBool(src []byte) (bool, error) {
	if len(src) < widthBool {
		return false, valueMismatch("bool: short read", "b", 0)
	}
	switch src[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, valueMismatch("bool: flag byte not 0/1", "b", 0)
	}
}

func putChar(dst []byte, v byte) { dst[0] = v }

func getChar(src []byte) (byte, error) {
	if len(src) < widthChar {
		return 0, valueMismatch("char: short read", "c", 0)
	}
	return src[0], nil
}

func putInt32(dst []byte, v int32) { binary.BigEndian.PutUint32(dst, uint32(v)) }

func getInt32(src []byte) (int32, error) {
	if len(src) < widthInt32 {
		return 0, valueMismatch("i32: short read", "i", 0)
	}
	return int32(binary.BigEndian.Uint32(src)), nil
}

func putInt64(dst []byte, v int64) { binary.BigEndian.PutUint64(dst, uint64(v)) }

func getInt64(src []byte) (int64, error) {
	if len(src) < widthInt64 {
		return 0, valueMismatch("i64: short read", "I", 0)
	}
	return int64(binary.BigEndian.Uint64(src)), nil
}

func putDouble(dst []byte, v float64) { binary.BigEndian.PutUint64(dst, math.Float64bits(v)) }

func getDouble(src []byte) (float64, error) {
	if len(src) < widthDouble {
		return 0, valueMismatch("d: short read", "d", 0)
	}
	return math.Float64frombits(binary.BigEndian.Uint64(src)), nil
}

func putLen(dst []byte, n int) { binary.BigEndian.PutUint32(dst, uint32(n)) }

func getLen(src []byte) (int, error) {
	if len(src) < lenPrefix {
		return 0, valueMismatch("length prefix: short read", "", 0)
	}
	n := binary.BigEndian.Uint32(src)
	return int(n), nil
}

// AppendBool appends the wire encoding of a bool to dst.
func AppendBool(dst []byte, v bool) []byte {
	var tmp [widthBool]byte
	putBool(tmp[:], v)
	return append(dst, tmp[:]...)
}

// AppendChar appends the wire encoding of a char to dst.
func AppendChar(dst []byte, v byte) []byte { return append(dst, v) }

// AppendInt32 appends the wire encoding of an i32 to dst.
func AppendInt32(dst []byte, v int32) []byte {
	var tmp [widthInt32]byte
	putInt32(tmp[:], v)
	return append(dst, tmp[:]...)
}

// AppendInt64 appends the wire encoding of an I64 to dst.
func AppendInt64(dst []byte, v int64) []byte {
	var tmp [widthInt64]byte
	putInt64(tmp[:], v)
	return append(dst, tmp[:]...)
}

// AppendDouble appends the wire encoding of a double to dst.
func AppendDouble(dst []byte, v float64) []byte {
	var tmp [widthDouble]byte
	putDouble(tmp[:], v)
	return append(dst, tmp[:]...)
}

// AppendString appends the wire encoding (4-byte length + bytes) of a
// string to dst.
func AppendString(dst []byte, v string) []byte {
	var tmp [lenPrefix]byte
	putLen(tmp[:], len(v))
	dst = append(dst, tmp[:]...)
	return append(dst, v...)
}

// AppendCount appends a raw 4-byte container count, used by l/m before
// their elements.
func AppendCount(dst []byte, n int) []byte {
	var tmp [lenPrefix]byte
	putLen(tmp[:], n)
	return append(dst, tmp[:]...)
}
