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
	"encoding/json"
	"strconv"
	"strings"
)

// ExpectedHandler renders an `e` value encountered while JSON-printing an
// x/X for the caller, per spec.md §4.6 ("error and X handled by the
// caller-supplied expected handler"). A nil handler falls back to
// printing `null`.
type ExpectedHandler func(tag, id, msg string, attached *Any) string

// PrintOptions configures both printers.
type PrintOptions struct {
	MaxLen          int // 0 means unbounded
	ExpectedHandler ExpectedHandler
}

// boundedWriter accumulates output and fails once it would exceed
// opts.MaxLen, the printer's "length budget" from spec.md §4.6. It
// mirrors the teacher's jswriter interface in ion/reader.go's toJSON.
type boundedWriter struct {
	b   strings.Builder
	max int
}

func (w *boundedWriter) ok() bool { return w.max == 0 || w.b.Len() <= w.max }

func (w *boundedWriter) writeString(s string) error {
	w.b.WriteString(s)
	if !w.ok() {
		return ErrTruncated
	}
	return nil
}

func (w *boundedWriter) writeByte(c byte) error {
	w.b.WriteByte(c)
	if !w.ok() {
		return ErrTruncated
	}
	return nil
}

// PrintNative renders a in the native form: `<type>value` at the top,
// nested `a` values recursively expanded the same way.
func (a *Any) PrintNative(opts PrintOptions) (string, error) {
	w := &boundedWriter{max: opts.MaxLen}
	if err := w.writeByte('<'); err != nil {
		return w.b.String(), err
	}
	if err := w.writeString(a.Typ.String()); err != nil {
		return w.b.String(), err
	}
	if err := w.writeByte('>'); err != nil {
		return w.b.String(), err
	}
	if err := printNativeValue(w, a.Typ, a.Val); err != nil {
		return w.b.String(), err
	}
	return w.b.String(), nil
}

func printNativeValue(w *boundedWriter, t *Type, v []byte) error {
	switch t.Kind {
	case Void:
		return w.writeString("void")
	case Bool:
		b, err := getBool(v)
		if err != nil {
			return err
		}
		if b {
			return w.writeString("true")
		}
		return w.writeString("false")
	case Char:
		c, err := getChar(v)
		if err != nil {
			return err
		}
		return w.writeString(quoteChar(c))
	case Int32:
		n, err := getInt32(v)
		if err != nil {
			return err
		}
		return w.writeString(strconv.FormatInt(int64(n), 10))
	case Int64:
		n, err := getInt64(v)
		if err != nil {
			return err
		}
		return w.writeString(strconv.FormatInt(n, 10))
	case Double:
		f, err := getDouble(v)
		if err != nil {
			return err
		}
		return w.writeString(formatDouble(f))
	case String:
		n, err := getLen(v)
		if err != nil {
			return err
		}
		return w.writeString(quoteString(string(v[lenPrefix : lenPrefix+n])))
	case List:
		return printNativeList(w, t, v)
	case Map:
		return printNativeMap(w, t, v)
	case Tuple:
		return printNativeTuple(w, t, v)
	case Opt:
		if len(v) == 0 || v[0] == 0 {
			return w.writeString("null")
		}
		return printNativeValue(w, t.Elem[0], v[1:])
	case Exp:
		if v[0] == 0 {
			return printNativeError(w, v[1:])
		}
		return printNativeValue(w, t.Elem[0], v[1:])
	case ExpVoid:
		if v[0] == 0 {
			return printNativeError(w, v[1:])
		}
		return w.writeString("void")
	case Err:
		return printNativeError(w, v)
	case Any_:
		vc := newValueCursor(v)
		inner, err := decodeAnyFramed(vc)
		if err != nil {
			return err
		}
		subMax := 0
		if w.max != 0 {
			subMax = w.max - w.b.Len()
		}
		sub, err := inner.PrintNative(PrintOptions{MaxLen: subMax})
		if err != nil {
			return err
		}
		return w.writeString(sub)
	}
	return internalErr("printNativeValue: unhandled kind " + t.Kind.String())
}

func printNativeList(w *boundedWriter, t *Type, v []byte) error {
	n, err := getLen(v)
	if err != nil {
		return err
	}
	if err := w.writeByte('['); err != nil {
		return err
	}
	off := lenPrefix
	elemT := t.Elem[0]
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := w.writeByte(','); err != nil {
				return err
			}
		}
		sz, err := Scan(elemT, v[off:], true)
		if err != nil {
			return err
		}
		if err := printNativeValue(w, elemT, v[off:off+sz]); err != nil {
			return err
		}
		off += sz
	}
	return w.writeByte(']')
}

func printNativeMap(w *boundedWriter, t *Type, v []byte) error {
	n, err := getLen(v)
	if err != nil {
		return err
	}
	if err := w.writeByte('{'); err != nil {
		return err
	}
	off := lenPrefix
	kt, vt := t.Elem[0], t.Elem[1]
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := w.writeByte(','); err != nil {
				return err
			}
		}
		ksz, err := Scan(kt, v[off:], true)
		if err != nil {
			return err
		}
		if err := printNativeValue(w, kt, v[off:off+ksz]); err != nil {
			return err
		}
		off += ksz
		if err := w.writeByte(':'); err != nil {
			return err
		}
		vsz, err := Scan(vt, v[off:], true)
		if err != nil {
			return err
		}
		if err := printNativeValue(w, vt, v[off:off+vsz]); err != nil {
			return err
		}
		off += vsz
	}
	return w.writeByte('}')
}

func printNativeTuple(w *boundedWriter, t *Type, v []byte) error {
	if err := w.writeByte('('); err != nil {
		return err
	}
	off := 0
	for i, e := range t.Elem {
		if i > 0 {
			if err := w.writeByte(','); err != nil {
				return err
			}
		}
		sz, err := Scan(e, v[off:], true)
		if err != nil {
			return err
		}
		if err := printNativeValue(w, e, v[off:off+sz]); err != nil {
			return err
		}
		off += sz
	}
	return w.writeByte(')')
}

func printNativeError(w *boundedWriter, v []byte) error {
	ev := &Any{Typ: errType, Val: v}
	tag, err := ev.Index(0)
	if err != nil {
		return err
	}
	id, err := ev.Index(1)
	if err != nil {
		return err
	}
	msg, err := ev.Index(2)
	if err != nil {
		return err
	}
	attached, err := ev.Index(3)
	if err != nil {
		return err
	}
	if err := w.writeString("error("); err != nil {
		return err
	}
	if err := printNativeValue(w, tag.Typ, tag.Val); err != nil {
		return err
	}
	if err := w.writeByte(','); err != nil {
		return err
	}
	if err := printNativeValue(w, id.Typ, id.Val); err != nil {
		return err
	}
	if err := w.writeByte(','); err != nil {
		return err
	}
	if err := printNativeValue(w, msg.Typ, msg.Val); err != nil {
		return err
	}
	if err := w.writeByte(','); err != nil {
		return err
	}
	sub, err := attached.PrintNative(PrintOptions{})
	if err != nil {
		return err
	}
	if err := w.writeString(sub); err != nil {
		return err
	}
	return w.writeByte(')')
}

// PrintJSON renders a in the JSON-like form described by spec.md §4.6.
func (a *Any) PrintJSON(opts PrintOptions) (string, error) {
	w := &boundedWriter{max: opts.MaxLen}
	if err := printJSONValue(w, a.Typ, a.Val, opts.ExpectedHandler); err != nil {
		return w.b.String(), err
	}
	return w.b.String(), nil
}

func printJSONValue(w *boundedWriter, t *Type, v []byte, onExp ExpectedHandler) error {
	switch t.Kind {
	case Void:
		return w.writeString("null")
	case Bool:
		b, err := getBool(v)
		if err != nil {
			return err
		}
		if b {
			return w.writeString("true")
		}
		return w.writeString("false")
	case Char:
		c, err := getChar(v)
		if err != nil {
			return err
		}
		j, _ := json.Marshal(string(rune(c)))
		return w.writeString(string(j))
	case Int32:
		n, err := getInt32(v)
		if err != nil {
			return err
		}
		return w.writeString(strconv.FormatInt(int64(n), 10))
	case Int64:
		n, err := getInt64(v)
		if err != nil {
			return err
		}
		return w.writeString(strconv.FormatInt(n, 10))
	case Double:
		f, err := getDouble(v)
		if err != nil {
			return err
		}
		return w.writeString(formatDouble(f))
	case String:
		n, err := getLen(v)
		if err != nil {
			return err
		}
		j, _ := json.Marshal(string(v[lenPrefix : lenPrefix+n]))
		return w.writeString(string(j))
	case List:
		return printJSONList(w, t, v, onExp)
	case Map:
		return printJSONMap(w, t, v, onExp)
	case Tuple:
		return printJSONTuple(w, t, v, onExp)
	case Opt:
		if len(v) == 0 || v[0] == 0 {
			return w.writeString("null")
		}
		return printJSONValue(w, t.Elem[0], v[1:], onExp)
	case Exp:
		if v[0] == 0 {
			return printJSONExpected(w, v[1:], onExp)
		}
		return printJSONValue(w, t.Elem[0], v[1:], onExp)
	case ExpVoid:
		if v[0] == 0 {
			return printJSONExpected(w, v[1:], onExp)
		}
		return w.writeString("null")
	case Err:
		return printJSONExpected(w, v, onExp)
	case Any_:
		vc := newValueCursor(v)
		inner, err := decodeAnyFramed(vc)
		if err != nil {
			return err
		}
		return printJSONValue(w, inner.Typ, inner.Val, onExp)
	}
	return internalErr("printJSONValue: unhandled kind " + t.Kind.String())
}

func printJSONExpected(w *boundedWriter, v []byte, onExp ExpectedHandler) error {
	ev := &Any{Typ: errType, Val: v}
	tag, err := ev.Index(0)
	if err != nil {
		return err
	}
	id, err := ev.Index(1)
	if err != nil {
		return err
	}
	msg, err := ev.Index(2)
	if err != nil {
		return err
	}
	attached, err := ev.Index(3)
	if err != nil {
		return err
	}
	if onExp == nil {
		return w.writeString("null")
	}
	tagS, _ := decodeInlineString(tag)
	idS, _ := decodeInlineString(id)
	msgS, _ := decodeInlineString(msg)
	return w.writeString(onExp(tagS, idS, msgS, attached))
}

func decodeInlineString(a *Any) (string, error) {
	n, err := getLen(a.Val)
	if err != nil {
		return "", err
	}
	return string(a.Val[lenPrefix : lenPrefix+n]), nil
}

func printJSONList(w *boundedWriter, t *Type, v []byte, onExp ExpectedHandler) error {
	n, err := getLen(v)
	if err != nil {
		return err
	}
	if err := w.writeByte('['); err != nil {
		return err
	}
	off := lenPrefix
	elemT := t.Elem[0]
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := w.writeByte(','); err != nil {
				return err
			}
		}
		sz, err := Scan(elemT, v[off:], true)
		if err != nil {
			return err
		}
		if err := printJSONValue(w, elemT, v[off:off+sz], onExp); err != nil {
			return err
		}
		off += sz
	}
	return w.writeByte(']')
}

func printJSONMap(w *boundedWriter, t *Type, v []byte, onExp ExpectedHandler) error {
	n, err := getLen(v)
	if err != nil {
		return err
	}
	if err := w.writeByte('{'); err != nil {
		return err
	}
	off := lenPrefix
	kt, vt := t.Elem[0], t.Elem[1]
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := w.writeByte(','); err != nil {
				return err
			}
		}
		ksz, err := Scan(kt, v[off:], true)
		if err != nil {
			return err
		}
		keyStr, err := jsonMapKey(kt, v[off:off+ksz])
		if err != nil {
			return err
		}
		j, _ := json.Marshal(keyStr)
		if err := w.writeString(string(j)); err != nil {
			return err
		}
		off += ksz
		if err := w.writeByte(':'); err != nil {
			return err
		}
		vsz, err := Scan(vt, v[off:], true)
		if err != nil {
			return err
		}
		if err := printJSONValue(w, vt, v[off:off+vsz], onExp); err != nil {
			return err
		}
		off += vsz
	}
	return w.writeByte('}')
}

// jsonMapKey stringifies a map key for JSON object-key position, since
// JSON keys must be strings regardless of the key's tyval type.
func jsonMapKey(t *Type, v []byte) (string, error) {
	if t.Kind == String {
		n, err := getLen(v)
		if err != nil {
			return "", err
		}
		return string(v[lenPrefix : lenPrefix+n]), nil
	}
	tmp := &boundedWriter{}
	if err := printNativeValue(tmp, t, v); err != nil {
		return "", err
	}
	return tmp.b.String(), nil
}

func printJSONTuple(w *boundedWriter, t *Type, v []byte, onExp ExpectedHandler) error {
	if err := w.writeByte('['); err != nil {
		return err
	}
	off := 0
	for i, e := range t.Elem {
		if i > 0 {
			if err := w.writeByte(','); err != nil {
				return err
			}
		}
		sz, err := Scan(e, v[off:], true)
		if err != nil {
			return err
		}
		if err := printJSONValue(w, e, v[off:off+sz], onExp); err != nil {
			return err
		}
		off += sz
	}
	return w.writeByte(']')
}

// formatDouble renders f in the shortest form that round-trips, per
// spec.md §4.6's "doubles without trailing dot" note: a whole-valued
// double has no fraction or trailing dot (7.0 prints as "7"), so the
// text alone does not distinguish it from an integer literal.
func formatDouble(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// quoteChar renders a char per spec.md §4.6/§4.7: `'c'` for a printable
// ASCII byte, `'%hh'` otherwise, symmetric with the text parser.
func quoteChar(c byte) string {
	if c >= 0x20 && c < 0x7f && c != '\'' && c != '%' {
		return "'" + string(c) + "'"
	}
	s := strconv.FormatInt(int64(c), 16)
	if len(s) < 2 {
		s = "0" + s
	}
	return "'%" + s + "'"
}

// quoteString escapes v using `%hh` for non-printable bytes and `%25`
// for a literal `%`, per spec.md §4's round-trip condition.
func quoteString(v string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c == '%':
			b.WriteString("%25")
		case c == '"':
			b.WriteString("%22")
		case c >= 0x20 && c < 0x7f:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			s := strconv.FormatInt(int64(c), 16)
			if len(s) < 2 {
				b.WriteByte('0')
			}
			b.WriteString(s)
		}
	}
	b.WriteByte('"')
	return b.String()
}
