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
	"fmt"
	"strconv"
)

// Writer is the append-only sink the conversion engine writes converted
// bytes into (spec.md §4.10's StringViewAccumulator). It collects
// borrowed or owned fragments and flattens them lazily on Bytes(), the
// same "accumulate fragments, flatten on demand" shape the teacher's
// ion.Buffer uses internally for nested segments.
type Writer struct {
	frags [][]byte
	n     int
}

// Append stores p as a borrowed fragment; the caller must not mutate p
// afterwards.
func (w *Writer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	w.frags = append(w.frags, p)
	w.n += len(p)
}

// AppendOwned copies p before storing it, for bytes built on the stack
// (flag bytes, length prefixes) that would otherwise be aliased.
func (w *Writer) AppendOwned(p []byte) {
	if len(p) == 0 {
		return
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	w.Append(cp)
}

// Bytes flattens every fragment into one contiguous slice.
func (w *Writer) Bytes() []byte {
	out := make([]byte, 0, w.n)
	for _, f := range w.frags {
		out = append(out, f...)
	}
	return out
}

// Mark returns a checkpoint usable with Rewind, for the tuple
// backtracking matcher.
func (w *Writer) Mark() int { return len(w.frags) }

// Rewind discards every fragment appended since mark.
func (w *Writer) Rewind(mark int) {
	for _, f := range w.frags[mark:] {
		w.n -= len(f)
	}
	w.frags = w.frags[:mark]
}

// vcMark is a cheap checkpoint of a valueCursor's read position, used by
// the tuple backtracking matcher to undo a failed greedy match.
type vcMark struct {
	buf    []byte
	pos    int
	total  int
	refill ValueRefillFunc
}

func (vc *valueCursor) snapshot() vcMark {
	return vcMark{buf: vc.buf, pos: vc.pos, total: vc.total, refill: vc.refill}
}

func (vc *valueCursor) restore(m vcMark) {
	vc.buf, vc.pos, vc.total, vc.refill = m.buf, m.pos, m.total, m.refill
}

// CheckConvert performs a type-only compatibility check: HAS_SOURCE=false,
// HAS_TARGET=false in spec.md §4.5's terms.
func CheckConvert(src, dst *Type, policy Policy) error {
	return conv(src, dst, nil, nil, policy, nil)
}

// ConvertDiscard consumes value (matching src) and validates it converts
// to dst, discarding the output: HAS_SOURCE=true, HAS_TARGET=false.
func ConvertDiscard(src, dst *Type, value []byte, policy Policy, errs *[]error) (consumed int, err error) {
	vc := newValueCursor(value)
	err = conv(src, dst, vc, nil, policy, errs)
	return vc.offset(), err
}

// Convert consumes value (matching src) and produces its conversion to
// dst: HAS_SOURCE=true, HAS_TARGET=true. errs, if non-nil, accumulates
// expected_with_error occurrences (spec.md §4.5 step 7 / §8 scenario S2)
// instead of failing outright.
func Convert(src, dst *Type, value []byte, policy Policy, errs *[]error) (out []byte, consumed int, err error) {
	vc := newValueCursor(value)
	w := &Writer{}
	err = conv(src, dst, vc, w, policy, errs)
	return w.Bytes(), vc.offset(), err
}

// conv is the single recursive routine behind C5. vc == nil means
// HAS_SOURCE=false; w == nil means HAS_TARGET=false. The combination
// vc == nil && w != nil is rejected at the boundary: every exported
// entry point above only ever constructs the three legal combinations.
func conv(src, dst *Type, vc *valueCursor, w *Writer, policy Policy, errs *[]error) error {
	if vc == nil && w != nil {
		return internalErr("conv: HAS_TARGET without HAS_SOURCE is not a legal combination")
	}

	// Step 1: fast path, identical types copy straight through. A list of
	// `a` is routed through convListToList even here, so a fingerprint
	// match against an earlier element in the same list still short-
	// circuits a redundant element copy.
	if src.Equal(dst) {
		if src.Kind == List && src.Elem[0].Kind == Any_ {
			return convListToList(src, dst, vc, w, policy, errs)
		}
		return copyValue(src, vc, w)
	}

	// Step 2: void source. Only void->a needs a policy flag
	// (converting_any); the rest are definitionally lossless because void
	// carries no information.
	if src.Kind == Void {
		switch dst.Kind {
		case Void:
			return nil
		case Any_:
			if !policy.Has(ConvertingAny) {
				return typeMismatch("", dst.String(), 0, ConvertingAny, "void->a needs converting_any")
			}
			if w != nil {
				w.AppendOwned(zeroLen)
				w.AppendOwned(zeroLen)
			}
			return nil
		case ExpVoid:
			if w != nil {
				w.AppendOwned([]byte{1})
			}
			return nil
		case Opt:
			if w != nil {
				w.AppendOwned([]byte{0})
			}
			return nil
		default:
			return typeMismatch("", dst.String(), 0, 0, "void value has no conversion to "+dst.String())
		}
	}

	// Step 3: target any (source is not any, not void - handled above).
	if dst.Kind == Any_ {
		if !policy.Has(ConvertingAny) {
			return typeMismatch(src.String(), dst.String(), 0, ConvertingAny, "wrapping into a needs converting_any")
		}
		return wrapAny(src, vc, w)
	}

	// Steps 4,5,6,7 all belong to the "cross between T, oT, xT, X, e"
	// family that converting_expected governs.
	if dst.Kind == Exp || dst.Kind == ExpVoid {
		if src.Kind != Err && src.Kind != Exp && src.Kind != ExpVoid {
			// Step 4: plain source becoming expected.
			if !policy.Has(ConvertingExpected) {
				return typeMismatch(src.String(), dst.String(), 0, ConvertingExpected, "wrapping into expected needs converting_expected")
			}
			if w != nil {
				w.AppendOwned([]byte{1})
			}
			var dstInner *Type
			if dst.Kind == Exp {
				dstInner = dst.Elem[0]
			} else {
				dstInner = voidT()
			}
			return conv(src, dstInner, vc, w, policy, errs)
		}
		if src.Kind == Err {
			// Step 5: error source crosses into expected/X as its error
			// branch, under converting_expected.
			if !policy.Has(ConvertingExpected) {
				return typeMismatch(src.String(), dst.String(), 0, ConvertingExpected, "error->expected needs converting_expected")
			}
			if w != nil {
				w.AppendOwned([]byte{0})
			}
			return copyValue(errType, vc, w)
		}
		// Step 6: both sides are expected-shaped.
		return convExpectedToExpected(src, dst, vc, w, policy, errs)
	}

	// Step 7: expected source, plain (non-expected, non-any, non-void)
	// target.
	if src.Kind == Exp || src.Kind == ExpVoid {
		return convExpectedToPlain(src, dst, vc, w, policy, errs)
	}

	// Step 8: any source, non-any target.
	if src.Kind == Any_ {
		if !policy.Has(ConvertingAny) {
			return typeMismatch(src.String(), dst.String(), 0, ConvertingAny, "unwrapping a needs converting_any")
		}
		return convAnySource(dst, vc, w, policy, errs)
	}

	// Step 9: optional source.
	if src.Kind == Opt {
		return convOptSource(src, dst, vc, w, policy, errs)
	}

	// Steps 10-12: list source.
	if src.Kind == List {
		switch dst.Kind {
		case List:
			return convListToList(src, dst, vc, w, policy, errs)
		case Tuple:
			return convListToTuple(src, dst, vc, w, policy, errs)
		case String:
			return convListToString(src, dst, vc, w, policy)
		}
		return typeMismatch(src.String(), dst.String(), 0, 0, "list has no conversion to "+dst.String())
	}

	// Steps 13-14: map source.
	if src.Kind == Map {
		switch dst.Kind {
		case Map:
			return convMapToMap(src, dst, vc, w, policy, errs)
		case List:
			return convMapToList(src, dst, vc, w, policy, errs)
		}
		return typeMismatch(src.String(), dst.String(), 0, 0, "map has no conversion to "+dst.String())
	}

	// Step 15: tuple source (including the single-non-void-field
	// collapse-to-scalar case and the full disappear-into-void case).
	if src.Kind == Tuple {
		return convTupleSource(src, dst, vc, w, policy, errs)
	}

	// Step 16: primitive to primitive.
	return convPrimitive(src, dst, vc, w, policy)
}

// copyValue copies src's encoded value through unchanged, validating its
// structure along the way. It prefers a raw byte blit when the cursor is
// not chunked (mirrors ion.Datum.Encode's fast path of re-appending raw
// bytes) and falls back to a structural field-by-field copy otherwise.
func copyValue(t *Type, vc *valueCursor, w *Writer) error {
	if vc == nil {
		return nil
	}
	if vc.refill == nil {
		start := vc.pos
		if err := scanValue(t, vc, true); err != nil {
			return err
		}
		if w != nil {
			w.Append(vc.buf[start:vc.pos])
		}
		return nil
	}
	return structuralCopy(t, vc, w)
}

// structuralCopy walks t recursively, copying each field's bytes
// individually; unlike copyValue's fast path it tolerates a source
// cursor whose chunk boundaries fall inside a single field.
func structuralCopy(t *Type, vc *valueCursor, w *Writer) error {
	switch t.Kind {
	case Void:
		return nil
	case Bool, Char, Int32, Int64, Double:
		b, err := vc.take(widthOf(t.Kind))
		if err != nil {
			return err
		}
		if w != nil {
			w.AppendOwned(b)
		}
		return nil
	case String:
		n, err := scanLen(vc)
		if err != nil {
			return err
		}
		if w != nil {
			w.AppendOwned(AppendCount(nil, n))
		}
		b, err := vc.take(n)
		if err != nil {
			return err
		}
		if w != nil {
			w.AppendOwned(b)
		}
		return nil
	case List:
		n, err := scanLen(vc)
		if err != nil {
			return err
		}
		if w != nil {
			w.AppendOwned(AppendCount(nil, n))
		}
		for i := 0; i < n; i++ {
			if err := structuralCopy(t.Elem[0], vc, w); err != nil {
				return encaps(err, 'l')
			}
		}
		return nil
	case Map:
		n, err := scanLen(vc)
		if err != nil {
			return err
		}
		if w != nil {
			w.AppendOwned(AppendCount(nil, n))
		}
		for i := 0; i < n; i++ {
			if err := structuralCopy(t.Elem[0], vc, w); err != nil {
				return encaps(err, 'm')
			}
			if err := structuralCopy(t.Elem[1], vc, w); err != nil {
				return encaps(err, 'm')
			}
		}
		return nil
	case Tuple:
		for _, e := range t.Elem {
			if err := structuralCopy(e, vc, w); err != nil {
				return err
			}
		}
		return nil
	case Opt:
		flag, err := vc.take(1)
		if err != nil {
			return err
		}
		if w != nil {
			w.AppendOwned(flag)
		}
		if flag[0] == 1 {
			return structuralCopy(t.Elem[0], vc, w)
		}
		return nil
	case Exp:
		flag, err := vc.take(1)
		if err != nil {
			return err
		}
		if w != nil {
			w.AppendOwned(flag)
		}
		if flag[0] == 1 {
			return structuralCopy(t.Elem[0], vc, w)
		}
		return structuralCopy(errType, vc, w)
	case ExpVoid:
		flag, err := vc.take(1)
		if err != nil {
			return err
		}
		if w != nil {
			w.AppendOwned(flag)
		}
		if flag[0] == 0 {
			return structuralCopy(errType, vc, w)
		}
		return nil
	case Err:
		return structuralCopy(errType, vc, w)
	case Any_:
		tlen, err := scanLen(vc)
		if err != nil {
			return err
		}
		tbytes, err := vc.take(tlen)
		if err != nil {
			return err
		}
		vlen, err := scanLen(vc)
		if err != nil {
			return err
		}
		vbytes, err := vc.take(vlen)
		if err != nil {
			return err
		}
		if w != nil {
			w.AppendOwned(AppendCount(nil, tlen))
			w.AppendOwned(tbytes)
			w.AppendOwned(AppendCount(nil, vlen))
			w.AppendOwned(vbytes)
		}
		return nil
	}
	return internalErr("structuralCopy: unhandled kind " + t.Kind.String())
}

func widthOf(k Kind) int {
	switch k {
	case Bool:
		return widthBool
	case Char:
		return widthChar
	case Int32:
		return widthInt32
	case Int64:
		return widthInt64
	case Double:
		return widthDouble
	}
	return 0
}

// wrapAny frames the upcoming source value as an `a`: Tlen, the source
// type string, Vlen, and the source's own encoded bytes (spec.md §4.5
// step 3).
func wrapAny(src *Type, vc *valueCursor, w *Writer) error {
	ts := src.String()
	if w == nil {
		return copyValue(src, vc, nil)
	}
	inner := &Writer{}
	if err := copyValue(src, vc, inner); err != nil {
		return err
	}
	val := inner.Bytes()
	w.AppendOwned(AppendCount(nil, len(ts)))
	w.AppendOwned([]byte(ts))
	w.AppendOwned(AppendCount(nil, len(val)))
	w.Append(val)
	return nil
}

// convExpectedToExpected implements spec.md §4.5 step 6: both sides are
// x/X. xT->X requires T convertible to void; X->xT default-initializes T.
func convExpectedToExpected(src, dst *Type, vc *valueCursor, w *Writer, policy Policy, errs *[]error) error {
	if !policy.Has(ConvertingExpected) {
		return typeMismatch(src.String(), dst.String(), 0, ConvertingExpected, "crossing expected kinds needs converting_expected")
	}
	var flag []byte
	var err error
	if vc != nil {
		flag, err = vc.take(1)
		if err != nil {
			return err
		}
	}
	isError := vc != nil && flag[0] == 0
	if vc == nil {
		// type-check only: both the error path and the value path must
		// be validated, since we don't know which one a future value
		// will take.
		if err := checkErrorPath(); err != nil {
			return err
		}
		return checkValuePath(src, dst, policy)
	}
	if isError {
		if w != nil {
			w.AppendOwned([]byte{0})
		}
		return copyValue(errType, vc, w)
	}
	if w != nil {
		w.AppendOwned([]byte{1})
	}
	var srcInner *Type = voidT()
	if src.Kind == Exp {
		srcInner = src.Elem[0]
	}
	if dst.Kind == Exp {
		if srcInner.Kind == Void {
			if w != nil {
				w.AppendOwned(DefaultOf(dst.Elem[0]))
			}
			return nil
		}
		return conv(srcInner, dst.Elem[0], vc, w, policy, errs)
	}
	// dst is ExpVoid: T must be convertible to void.
	return conv(srcInner, voidT(), vc, nil, policy, errs)
}

func checkErrorPath() error { return nil }

func checkValuePath(src, dst *Type, policy Policy) error {
	var srcInner *Type = voidT()
	if src.Kind == Exp {
		srcInner = src.Elem[0]
	}
	if dst.Kind == Exp {
		if srcInner.Kind == Void {
			return nil
		}
		return CheckConvert(srcInner, dst.Elem[0], policy)
	}
	return CheckConvert(srcInner, voidT(), policy)
}

// convExpectedToPlain implements spec.md §4.5 step 7.
func convExpectedToPlain(src, dst *Type, vc *valueCursor, w *Writer, policy Policy, errs *[]error) error {
	if !policy.Has(ConvertingExpected) {
		return typeMismatch(src.String(), dst.String(), 0, ConvertingExpected, "unwrapping expected needs converting_expected")
	}
	var srcInner *Type = voidT()
	if src.Kind == Exp {
		srcInner = src.Elem[0]
	}
	if vc == nil {
		// Check both branches statically: the error branch is always
		// representable, the value branch must type-check.
		return CheckConvert(srcInner, dst, policy)
	}
	flag, err := vc.take(1)
	if err != nil {
		return err
	}
	if flag[0] == 1 {
		return conv(srcInner, dst, vc, w, policy, errs)
	}
	// flag == 0: an error occupies this position. Verify the value path
	// would have type-checked, then record the error and emit nothing.
	if err := CheckConvert(srcInner, dst, policy); err != nil {
		return err
	}
	ed, err := decodeErrorDatum(vc)
	if err != nil {
		return err
	}
	if errs == nil {
		return typeMismatch(src.String(), dst.String(), 0, ConvertingExpected, "expected held an error and no error collector was supplied")
	}
	*errs = append(*errs, ed)
	return nil
}

// decodeErrorDatum reads one t4sssa-shaped error value from vc and
// returns it as a structured *Error (KindExpectedWithError), advancing
// the cursor past it.
func decodeErrorDatum(vc *valueCursor) (*Error, error) {
	tag, err := readWireString(vc)
	if err != nil {
		return nil, err
	}
	id, err := readWireString(vc)
	if err != nil {
		return nil, err
	}
	msg, err := readWireString(vc)
	if err != nil {
		return nil, err
	}
	attached, err := decodeAnyFramed(vc)
	if err != nil {
		return nil, err
	}
	return &Error{Kind: KindExpectedWithError, Tag: tag, ID: id, Message: msg, Attached: attached}, nil
}

func readWireString(vc *valueCursor) (string, error) {
	n, err := scanLen(vc)
	if err != nil {
		return "", err
	}
	b, err := vc.take(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// convAnySource implements spec.md §4.5 step 8: unwrap the incoming any
// and recurse against dst with its inner (type, value).
func convAnySource(dst *Type, vc *valueCursor, w *Writer, policy Policy, errs *[]error) error {
	if vc == nil {
		// Type-level only: the inner type is unknown until runtime, so
		// any target is provisionally compatible once converting_any is
		// enabled (policy-minimality property, spec.md §8 #4).
		return nil
	}
	inner, err := decodeAnyFramed(vc)
	if err != nil {
		return err
	}
	innerVC := newValueCursor(inner.Val)
	if err := conv(inner.Typ, dst, innerVC, w, policy, errs); err != nil {
		return err
	}
	if innerVC.offset() != len(inner.Val) {
		return valueMismatch("any: inner value has trailing bytes", "a", vc.offset())
	}
	return nil
}

// convOptSource implements spec.md §4.5 step 9.
func convOptSource(src, dst *Type, vc *valueCursor, w *Writer, policy Policy, errs *[]error) error {
	if vc == nil {
		if dst.Kind == Opt {
			return CheckConvert(src.Elem[0], dst.Elem[0], policy)
		}
		if dst.Kind == Void {
			if !policy.Has(ConvertingAux) {
				return typeMismatch(src.String(), dst.String(), 0, ConvertingAux, "absent optional -> void needs converting_aux")
			}
			return nil
		}
		return CheckConvert(src.Elem[0], dst, policy)
	}
	flag, err := vc.take(1)
	if err != nil {
		return err
	}
	if flag[0] == 0 {
		switch dst.Kind {
		case Opt:
			if err := CheckConvert(src.Elem[0], dst.Elem[0], policy); err != nil {
				return err
			}
			if w != nil {
				w.AppendOwned([]byte{0})
			}
			return nil
		case Void:
			if !policy.Has(ConvertingAux) {
				return typeMismatch(src.String(), dst.String(), 0, ConvertingAux, "absent optional -> void needs converting_aux")
			}
			return nil
		default:
			return typeMismatch(src.String(), dst.String(), 0, 0, "absent optional has no value to give "+dst.String())
		}
	}
	// present
	if dst.Kind == Opt {
		if w != nil {
			w.AppendOwned([]byte{1})
		}
		return conv(src.Elem[0], dst.Elem[0], vc, w, policy, errs)
	}
	return conv(src.Elem[0], dst, vc, w, policy, errs)
}

// convListToList implements spec.md §4.5 step 10.
func convListToList(src, dst *Type, vc *valueCursor, w *Writer, policy Policy, errs *[]error) error {
	if vc == nil {
		return CheckConvert(src.Elem[0], dst.Elem[0], policy)
	}
	n, err := scanLen(vc)
	if err != nil {
		return err
	}
	if w != nil {
		w.AppendOwned(AppendCount(nil, n))
	}
	// `a`-to-`a` elements are the shape most likely to repeat identical
	// values (tagged/enum-like payloads); a repeat is recognized by
	// fingerprint and its already-encoded bytes are reused instead of
	// re-walking conv's a-to-a fast path byte for byte.
	dedupe := src.Elem[0].Kind == Any_ && dst.Elem[0].Kind == Any_ && w != nil && vc.refill == nil
	var seen map[Fingerprint][]byte
	if dedupe {
		seen = make(map[Fingerprint][]byte)
	}
	for i := 0; i < n; i++ {
		if dedupe {
			start := vc.pos
			inner, err := decodeAnyFramed(vc)
			if err != nil {
				return encaps(err, 'l')
			}
			fp := inner.Fingerprint()
			if cached, ok := seen[fp]; ok {
				w.AppendOwned(cached)
				continue
			}
			raw := vc.buf[start:vc.pos]
			seen[fp] = append([]byte(nil), raw...)
			w.Append(raw)
			continue
		}
		if err := conv(src.Elem[0], dst.Elem[0], vc, w, policy, errs); err != nil {
			return encaps(err, 'l')
		}
	}
	return nil
}

// convListToTuple implements spec.md §4.5 step 11.
func convListToTuple(src, dst *Type, vc *valueCursor, w *Writer, policy Policy, errs *[]error) error {
	if !policy.Has(ConvertingTupleList) {
		return typeMismatch(src.String(), dst.String(), 0, ConvertingTupleList, "list->tuple needs converting_tuple_list")
	}
	if vc == nil {
		// arity can only be checked at runtime; assume compatible per
		// element type alone.
		for _, e := range dst.Elem {
			if err := CheckConvert(src.Elem[0], e, policy); err != nil {
				return err
			}
		}
		return nil
	}
	n, err := scanLen(vc)
	if err != nil {
		return err
	}
	if n != len(dst.Elem) {
		return valueMismatch(fmt.Sprintf("%d!=%d", n, len(dst.Elem)), dst.String(), vc.offset())
	}
	for _, e := range dst.Elem {
		if err := conv(src.Elem[0], e, vc, w, policy, errs); err != nil {
			return err
		}
	}
	return nil
}

// convListToString implements spec.md §4.5 step 12: l c <-> s share an
// identical wire layout (4-byte count then N raw bytes), so this is a
// reinterpretation rather than a real transform.
func convListToString(src, dst *Type, vc *valueCursor, w *Writer, policy Policy) error {
	if src.Elem[0].Kind != Char {
		return typeMismatch(src.String(), dst.String(), 0, ConvertingAux, "only lc converts to s")
	}
	if !policy.Has(ConvertingAux) {
		return typeMismatch(src.String(), dst.String(), 0, ConvertingAux, "lc->s needs converting_aux")
	}
	if vc == nil {
		return nil
	}
	n, err := scanLen(vc)
	if err != nil {
		return err
	}
	b, err := vc.take(n)
	if err != nil {
		return err
	}
	if w != nil {
		w.AppendOwned(AppendCount(nil, n))
		w.AppendOwned(b)
	}
	return nil
}

// convMapToMap implements spec.md §4.5 step 13.
func convMapToMap(src, dst *Type, vc *valueCursor, w *Writer, policy Policy, errs *[]error) error {
	if dst.Elem[0].Kind == Void || dst.Elem[1].Kind == Void {
		return typeMismatch(src.String(), dst.String(), 0, 0, "map key/value cannot disappear to void")
	}
	if vc == nil {
		if err := CheckConvert(src.Elem[0], dst.Elem[0], policy); err != nil {
			return err
		}
		return CheckConvert(src.Elem[1], dst.Elem[1], policy)
	}
	n, err := scanLen(vc)
	if err != nil {
		return err
	}
	if w != nil {
		w.AppendOwned(AppendCount(nil, n))
	}
	for i := 0; i < n; i++ {
		if err := conv(src.Elem[0], dst.Elem[0], vc, w, policy, errs); err != nil {
			return encaps(err, 'm')
		}
		if err := conv(src.Elem[1], dst.Elem[1], vc, w, policy, errs); err != nil {
			return encaps(err, 'm')
		}
	}
	return nil
}

// convMapToList implements spec.md §4.5 step 14: legal only if the key
// or the mapped type degenerates to void on the target side, i.e. one
// side of the map disappears and the other supplies the list's element.
func convMapToList(src, dst *Type, vc *valueCursor, w *Writer, policy Policy, errs *[]error) error {
	keyDisappears := CheckConvert(src.Elem[0], voidT(), policy) == nil
	valDisappears := CheckConvert(src.Elem[1], voidT(), policy) == nil
	var keepIdx int
	switch {
	case keyDisappears && !valDisappears:
		keepIdx = 1
	case valDisappears && !keyDisappears:
		keepIdx = 0
	case keyDisappears && valDisappears:
		keepIdx = 1 // both could; prefer keeping the value side
	default:
		return typeMismatch(src.String(), dst.String(), 0, 0, "map->list requires one side to disappear")
	}
	dropIdx := 1 - keepIdx
	if err := CheckConvert(src.Elem[keepIdx], dst.Elem[0], policy); err != nil {
		return err
	}
	if vc == nil {
		return nil
	}
	n, err := scanLen(vc)
	if err != nil {
		return err
	}
	if w != nil {
		w.AppendOwned(AppendCount(nil, n))
	}
	fields := src.Elem
	for i := 0; i < n; i++ {
		if dropIdx == 0 {
			if err := conv(fields[0], voidT(), vc, nil, policy, errs); err != nil {
				return encaps(err, 'm')
			}
			if err := conv(fields[1], dst.Elem[0], vc, w, policy, errs); err != nil {
				return encaps(err, 'm')
			}
		} else {
			if err := conv(fields[0], dst.Elem[0], vc, w, policy, errs); err != nil {
				return encaps(err, 'm')
			}
			if err := conv(fields[1], voidT(), vc, nil, policy, errs); err != nil {
				return encaps(err, 'm')
			}
		}
	}
	return nil
}

// tupleMatcher implements spec.md §4.5 step 15's greedy-with-backtracking
// field alignment.
type tupleMatcher struct {
	policy      Policy
	errs        *[]error
	first       error
	backtracked bool
}

func (m *tupleMatcher) note(err error) {
	if m.first == nil {
		m.first = err
	}
}

// disappear verifies that t's upcoming value can be legally omitted from
// the target, per the glossary's definition: it can be matched against a
// void target. This is exactly conv(t, void, ...) with no output.
func (m *tupleMatcher) disappear(t *Type, vc *valueCursor) error {
	return conv(t, voidT(), vc, nil, m.policy, m.errs)
}

func (m *tupleMatcher) match(src, dst []*Type, i, j int, vc *valueCursor, w *Writer) error {
	if j == len(dst) {
		for ; i < len(src); i++ {
			if err := m.disappear(src[i], vc); err != nil {
				m.note(err)
				return err
			}
		}
		return nil
	}
	if i == len(src) {
		err := valueMismatch(fmt.Sprintf("%d!=%d", len(src), len(dst)), "t"+strconv.Itoa(len(dst)), 0)
		m.note(err)
		return err
	}

	var vmark vcMark
	var wmark int
	if vc != nil {
		vmark = vc.snapshot()
	}
	if w != nil {
		wmark = w.Mark()
	}

	if err := conv(src[i], dst[j], vc, w, m.policy, m.errs); err == nil {
		if err2 := m.match(src, dst, i+1, j+1, vc, w); err2 == nil {
			return nil
		}
	} else {
		m.note(err)
	}

	if vc != nil {
		vc.restore(vmark)
	}
	if w != nil {
		w.Rewind(wmark)
	}
	m.backtracked = true

	if err := m.disappear(src[i], vc); err == nil {
		if err2 := m.match(src, dst, i+1, j, vc, w); err2 == nil {
			return nil
		}
	} else {
		m.note(err)
	}

	if vc != nil {
		vc.restore(vmark)
	}
	if w != nil {
		w.Rewind(wmark)
	}

	if m.first != nil {
		return m.first
	}
	return typeMismatch(src[i].String(), dst[j].String(), 0, 0, "tuple: no field alignment found")
}

// convTupleSource implements spec.md §4.5 step 15 in full, including the
// all-fields-disappear-to-void case and the single-non-void-field
// collapse-to-scalar case, by treating both as degenerate dst field
// lists (zero fields, one field).
func convTupleSource(src, dst *Type, vc *valueCursor, w *Writer, policy Policy, errs *[]error) error {
	var dstFields []*Type
	switch dst.Kind {
	case Void:
		dstFields = nil
	case Tuple:
		dstFields = dst.Elem
	default:
		dstFields = []*Type{dst}
	}
	mm := &tupleMatcher{policy: policy, errs: errs}
	err := mm.match(src.Elem, dstFields, 0, 0, vc, w)
	if err != nil {
		if mm.backtracked {
			return withAnyIncoming(mm.first)
		}
		return mm.first
	}
	return nil
}

// convPrimitive implements spec.md §4.5 step 16's primitive conversion
// table.
func convPrimitive(src, dst *Type, vc *valueCursor, w *Writer, policy Policy) error {
	switch src.Kind {
	case Bool:
		switch dst.Kind {
		case Char, Int32, Int64:
			if !policy.Has(ConvertingBool) {
				return typeMismatch(src.String(), dst.String(), 0, ConvertingBool, "b->"+dst.String()+" needs converting_bool")
			}
			return convBoolToNumeric(dst.Kind, vc, w)
		}
	case Char:
		switch dst.Kind {
		case Bool:
			if !policy.Has(ConvertingBool) {
				return typeMismatch(src.String(), dst.String(), 0, ConvertingBool, "c->b needs converting_bool")
			}
			return convNumericToBool(widthChar, vc, w, func(b []byte) bool { return b[0] != 0 })
		case Int32, Int64:
			if !policy.Has(ConvertingInts) && !policy.Has(ConvertingIntsNarrowing) {
				return typeMismatch(src.String(), dst.String(), 0, ConvertingInts, "c->"+dst.String()+" needs converting_ints")
			}
			return convCharToInt(dst.Kind, vc, w)
		}
	case Int32:
		switch dst.Kind {
		case Bool:
			if !policy.Has(ConvertingBool) {
				return typeMismatch(src.String(), dst.String(), 0, ConvertingBool, "i->b needs converting_bool")
			}
			return convNumericToBool(widthInt32, vc, w, func(b []byte) bool {
				v, _ := getInt32(b)
				return v != 0
			})
		case Char:
			if !policy.Has(ConvertingIntsNarrowing) {
				return typeMismatch(src.String(), dst.String(), 0, ConvertingIntsNarrowing, "i->c needs converting_ints_narrowing")
			}
			return convIntToChar(getInt32Adapter, vc, w)
		case Int64:
			if !policy.allowsIntWidening() {
				return typeMismatch(src.String(), dst.String(), 0, ConvertingInts, "i->I needs converting_ints")
			}
			return convIntWiden(vc, w)
		case Double:
			if !policy.Has(ConvertingDouble) {
				return typeMismatch(src.String(), dst.String(), 0, ConvertingDouble, "i->d needs converting_double")
			}
			return convInt32ToDouble(vc, w)
		}
	case Int64:
		switch dst.Kind {
		case Bool:
			if !policy.Has(ConvertingBool) {
				return typeMismatch(src.String(), dst.String(), 0, ConvertingBool, "I->b needs converting_bool")
			}
			return convNumericToBool(widthInt64, vc, w, func(b []byte) bool {
				v, _ := getInt64(b)
				return v != 0
			})
		case Char:
			if !policy.Has(ConvertingIntsNarrowing) {
				return typeMismatch(src.String(), dst.String(), 0, ConvertingIntsNarrowing, "I->c needs converting_ints_narrowing")
			}
			return convInt64ToChar(vc, w)
		case Int32:
			if !policy.Has(ConvertingIntsNarrowing) {
				return typeMismatch(src.String(), dst.String(), 0, ConvertingIntsNarrowing, "I->i needs converting_ints_narrowing")
			}
			return convInt64ToInt32(vc, w)
		case Double:
			if !policy.Has(ConvertingDouble) {
				return typeMismatch(src.String(), dst.String(), 0, ConvertingDouble, "I->d needs converting_double")
			}
			return convInt64ToDouble(vc, w)
		}
	case Double:
		switch dst.Kind {
		case Int32:
			if !policy.Has(ConvertingDouble) {
				return typeMismatch(src.String(), dst.String(), 0, ConvertingDouble, "d->i needs converting_double")
			}
			return convDoubleToInt32(vc, w)
		case Int64:
			if !policy.Has(ConvertingDouble) {
				return typeMismatch(src.String(), dst.String(), 0, ConvertingDouble, "d->I needs converting_double")
			}
			return convDoubleToInt64(vc, w)
		}
	}
	return typeMismatch(src.String(), dst.String(), 0, 0, src.String()+" has no conversion to "+dst.String())
}

func convBoolToNumeric(dstKind Kind, vc *valueCursor, w *Writer) error {
	if vc == nil {
		return nil
	}
	b, err := vc.take(widthBool)
	if err != nil {
		return err
	}
	v := int64(0)
	if b[0] != 0 {
		v = 1
	}
	return emitInt(dstKind, v, w)
}

func convNumericToBool(width int, vc *valueCursor, w *Writer, nonzero func([]byte) bool) error {
	if vc == nil {
		return nil
	}
	b, err := vc.take(width)
	if err != nil {
		return err
	}
	if w != nil {
		if nonzero(b) {
			w.AppendOwned([]byte{1})
		} else {
			w.AppendOwned([]byte{0})
		}
	}
	return nil
}

// getInt32Adapter reads an i32 for convIntToChar's generic shape.
func getInt32Adapter(b []byte) (int64, error) {
	v, err := getInt32(b)
	return int64(v), err
}

// convIntToChar narrows i to c, copying the low 8 bits ("bool" semantics
// table note in spec.md §4.5).
func convIntToChar(read func([]byte) (int64, error), vc *valueCursor, w *Writer) error {
	if vc == nil {
		return nil
	}
	b, err := vc.take(widthInt32)
	if err != nil {
		return err
	}
	v, err := read(b)
	if err != nil {
		return err
	}
	if w != nil {
		w.AppendOwned([]byte{byte(v)})
	}
	return nil
}

func convInt64ToChar(vc *valueCursor, w *Writer) error {
	if vc == nil {
		return nil
	}
	b, err := vc.take(widthInt64)
	if err != nil {
		return err
	}
	v, err := getInt64(b)
	if err != nil {
		return err
	}
	if w != nil {
		w.AppendOwned([]byte{byte(v)})
	}
	return nil
}

// convCharToInt widens c to i/I. spec.md §9 open question: the widening
// direction is taken as signed (the stored byte is interpreted as int8
// then sign-extended).
func convCharToInt(dstKind Kind, vc *valueCursor, w *Writer) error {
	if vc == nil {
		return nil
	}
	b, err := vc.take(widthChar)
	if err != nil {
		return err
	}
	v := int64(int8(b[0]))
	return emitInt(dstKind, v, w)
}

func convIntWiden(vc *valueCursor, w *Writer) error {
	if vc == nil {
		return nil
	}
	b, err := vc.take(widthInt32)
	if err != nil {
		return err
	}
	v, err := getInt32(b)
	if err != nil {
		return err
	}
	if w != nil {
		w.AppendOwned(AppendInt64(nil, int64(v)))
	}
	return nil
}

func convInt64ToInt32(vc *valueCursor, w *Writer) error {
	if vc == nil {
		return nil
	}
	b, err := vc.take(widthInt64)
	if err != nil {
		return err
	}
	v, err := getInt64(b)
	if err != nil {
		return err
	}
	if w != nil {
		w.AppendOwned(AppendInt32(nil, int32(v)))
	}
	return nil
}

func convInt32ToDouble(vc *valueCursor, w *Writer) error {
	if vc == nil {
		return nil
	}
	b, err := vc.take(widthInt32)
	if err != nil {
		return err
	}
	v, err := getInt32(b)
	if err != nil {
		return err
	}
	if w != nil {
		w.AppendOwned(AppendDouble(nil, float64(v)))
	}
	return nil
}

func convInt64ToDouble(vc *valueCursor, w *Writer) error {
	if vc == nil {
		return nil
	}
	b, err := vc.take(widthInt64)
	if err != nil {
		return err
	}
	v, err := getInt64(b)
	if err != nil {
		return err
	}
	if w != nil {
		w.AppendOwned(AppendDouble(nil, float64(v)))
	}
	return nil
}

func convDoubleToInt32(vc *valueCursor, w *Writer) error {
	if vc == nil {
		return nil
	}
	b, err := vc.take(widthDouble)
	if err != nil {
		return err
	}
	v, err := getDouble(b)
	if err != nil {
		return err
	}
	if w != nil {
		w.AppendOwned(AppendInt32(nil, int32(v)))
	}
	return nil
}

func convDoubleToInt64(vc *valueCursor, w *Writer) error {
	if vc == nil {
		return nil
	}
	b, err := vc.take(widthDouble)
	if err != nil {
		return err
	}
	v, err := getDouble(b)
	if err != nil {
		return err
	}
	if w != nil {
		w.AppendOwned(AppendInt64(nil, int64(v)))
	}
	return nil
}

func emitInt(dstKind Kind, v int64, w *Writer) error {
	if w == nil {
		return nil
	}
	switch dstKind {
	case Char:
		w.AppendOwned([]byte{byte(v)})
	case Int32:
		w.AppendOwned(AppendInt32(nil, int32(v)))
	case Int64:
		w.AppendOwned(AppendInt64(nil, v))
	default:
		return internalErr("emitInt: unsupported target " + dstKind.String())
	}
	return nil
}
