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

import "fmt"

// Any is the owned (type, value) container described in spec.md §3/§6:
// a self-describing value that pairs a type descriptor with its matching
// serialized bytes. It is the thin struct-over-a-byte-slice shape the
// teacher's ion.Datum uses (buf []byte, typed accessors re-derive from
// buf on demand), minus a symbol table since this wire format carries no
// symbol table.
type Any struct {
	Typ *Type
	Val []byte
}

// AnyView is the borrowing counterpart of Any: its Val must not outlive
// the buffer it was constructed from. Call ToOwned to copy out.
type AnyView struct {
	Typ *Type
	Val []byte
}

// ViewOf wraps (t, v) as a non-owning AnyView.
func ViewOf(t *Type, v []byte) AnyView { return AnyView{Typ: t, Val: v} }

// ToOwned copies v's value bytes into a freshly allocated Any.
func (v AnyView) ToOwned() Any {
	return Any{Typ: v.Typ, Val: append([]byte(nil), v.Val...)}
}

// FromTyped builds an Any from a (type, value) pair. When verify is set
// it scans the value against the type first and rejects trailing bytes,
// matching the "from (type,value) with optional scan" construction
// variant of spec.md §4.8.
func FromTyped(t *Type, v []byte, verify bool) (*Any, error) {
	if verify {
		n, err := Scan(t, v, true)
		if err != nil {
			return nil, err
		}
		if n != len(v) {
			return nil, valueMismatch("trailing value bytes", t.String(), n)
		}
	}
	return &Any{Typ: t, Val: v}, nil
}

// Encode appends a's framed wire representation
// (Tlen|type|Vlen|value) to dst, per spec.md §6.
func (a *Any) Encode(dst []byte) []byte {
	ts := a.Typ.String()
	dst = AppendCount(dst, len(ts))
	dst = append(dst, ts...)
	dst = AppendCount(dst, len(a.Val))
	dst = append(dst, a.Val...)
	return dst
}

// Bytes returns a's framed wire representation as a fresh slice.
func (a *Any) Bytes() []byte { return a.Encode(nil) }

// DecodeAny parses a framed any from the front of buf, returning the
// number of bytes consumed.
func DecodeAny(buf []byte) (*Any, int, error) {
	vc := newValueCursor(buf)
	a, err := decodeAnyFramed(vc)
	if err != nil {
		return nil, vc.offset(), err
	}
	return a, vc.offset(), nil
}

// decodeAnyFramed reads one framed any (Tlen|type|Vlen|value) from vc,
// verifying that the declared value matches the declared type exactly
// (the core invariant of spec.md §3's `a` row).
func decodeAnyFramed(vc *valueCursor) (*Any, error) {
	tlen, err := scanLen(vc)
	if err != nil {
		return nil, err
	}
	tbytes, err := vc.take(tlen)
	if err != nil {
		return nil, err
	}
	t, err := ParseType(string(tbytes))
	if err != nil {
		return nil, err
	}
	vlen, err := scanLen(vc)
	if err != nil {
		return nil, err
	}
	vbytes, err := vc.take(vlen)
	if err != nil {
		return nil, err
	}
	n, err := Scan(t, vbytes, true)
	if err != nil {
		return nil, err
	}
	if n != len(vbytes) {
		return nil, valueMismatch("any: inner value length mismatch", "a", vc.offset())
	}
	return &Any{Typ: t, Val: vbytes}, nil
}

// Size reports the container-specific child count used by the writable
// view and by iteration helpers, per spec.md §4.10 `size()`:
// 1 for a/x/X (whether holding a value or an error); 1 for an o holding
// a value, 0 if absent; 3 for e; the runtime count for l/m; the arity
// for t; 0 otherwise.
func (a *Any) Size() (int, error) {
	switch a.Typ.Kind {
	case Any_, Exp, ExpVoid:
		return 1, nil
	case Opt:
		if len(a.Val) == 0 {
			return 0, valueMismatch("opt: empty value", "o", 0)
		}
		if a.Val[0] == 1 {
			return 1, nil
		}
		return 0, nil
	case Err:
		return 3, nil
	case List, Map:
		n, err := getLen(a.Val)
		return n, err
	case Tuple:
		return len(a.Typ.Elem), nil
	default:
		return 0, nil
	}
}

// Index dissects the i-th logical child of a, re-deriving it from a.Val
// on demand (Any has no chunk/parent linkage; for surgical mutation use
// the wview package instead).
func (a *Any) Index(i int) (*Any, error) {
	if i < 0 {
		return nil, apiErr("any: negative index")
	}
	switch a.Typ.Kind {
	case Any_:
		if i != 0 {
			return nil, apiErr("any: index out of range")
		}
		inner, _, err := DecodeAny(a.Val)
		return inner, err
	case Opt:
		if i != 0 || len(a.Val) == 0 || a.Val[0] != 1 {
			return nil, apiErr("opt: index out of range")
		}
		return &Any{Typ: a.Typ.Elem[0], Val: a.Val[1:]}, nil
	case Exp:
		if i != 0 {
			return nil, apiErr("exp: index out of range")
		}
		if a.Val[0] == 0 {
			return &Any{Typ: errType, Val: a.Val[1:]}, nil
		}
		n, err := Scan(a.Typ.Elem[0], a.Val[1:], true)
		if err != nil {
			return nil, err
		}
		return &Any{Typ: a.Typ.Elem[0], Val: a.Val[1 : 1+n]}, nil
	case ExpVoid:
		if i != 0 {
			return nil, apiErr("X: index out of range")
		}
		if a.Val[0] == 0 {
			return &Any{Typ: errType, Val: a.Val[1:]}, nil
		}
		return &Any{Typ: voidT(), Val: nil}, nil
	case Err:
		return a.errField(i)
	case List:
		return a.listIndex(i)
	case Tuple:
		return a.tupleIndex(i)
	}
	return nil, apiErr(fmt.Sprintf("%s: index not supported", a.Typ.Kind))
}

func (a *Any) errField(i int) (*Any, error) {
	fields := errType.Elem
	off := 0
	for j := 0; j <= i; j++ {
		n, err := Scan(fields[j], a.Val[off:], true)
		if err != nil {
			return nil, err
		}
		if j == i {
			return &Any{Typ: fields[j], Val: a.Val[off : off+n]}, nil
		}
		off += n
	}
	return nil, apiErr("e: index out of range")
}

func (a *Any) listIndex(i int) (*Any, error) {
	n, err := getLen(a.Val)
	if err != nil {
		return nil, err
	}
	if i >= n {
		return nil, apiErr("l: index out of range")
	}
	off := lenPrefix
	elemT := a.Typ.Elem[0]
	for j := 0; j <= i; j++ {
		sz, err := Scan(elemT, a.Val[off:], true)
		if err != nil {
			return nil, err
		}
		if j == i {
			return &Any{Typ: elemT, Val: a.Val[off : off+sz]}, nil
		}
		off += sz
	}
	return nil, internalErr("listIndex: unreachable")
}

func (a *Any) tupleIndex(i int) (*Any, error) {
	if i >= len(a.Typ.Elem) {
		return nil, apiErr("t: index out of range")
	}
	off := 0
	for j := 0; j <= i; j++ {
		sz, err := Scan(a.Typ.Elem[j], a.Val[off:], true)
		if err != nil {
			return nil, err
		}
		if j == i {
			return &Any{Typ: a.Typ.Elem[j], Val: a.Val[off : off+sz]}, nil
		}
		off += sz
	}
	return nil, internalErr("tupleIndex: unreachable")
}

// MapEntry is one key/value pair of a Map-kind Any.
type MapEntry struct {
	Key *Any
	Val *Any
}

// MapEntries decodes every entry of a map-kind Any in wire order (map
// ordering is not semantically sorted, per spec.md §5).
func (a *Any) MapEntries() ([]MapEntry, error) {
	if a.Typ.Kind != Map {
		return nil, apiErr("MapEntries: not a map")
	}
	n, err := getLen(a.Val)
	if err != nil {
		return nil, err
	}
	out := make([]MapEntry, 0, n)
	off := lenPrefix
	kt, vt := a.Typ.Elem[0], a.Typ.Elem[1]
	for j := 0; j < n; j++ {
		ksz, err := Scan(kt, a.Val[off:], true)
		if err != nil {
			return nil, err
		}
		key := &Any{Typ: kt, Val: a.Val[off : off+ksz]}
		off += ksz
		vsz, err := Scan(vt, a.Val[off:], true)
		if err != nil {
			return nil, err
		}
		val := &Any{Typ: vt, Val: a.Val[off : off+vsz]}
		off += vsz
		out = append(out, MapEntry{Key: key, Val: val})
	}
	return out, nil
}
