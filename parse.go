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
	"strconv"
	"strings"
	"unicode/utf8"
)

// ParseMode selects the text surface syntax's strictness, per spec.md §4.7.
type ParseMode int

const (
	// Normal requires every list/map element to share one type.
	Normal ParseMode = iota
	// Liberal falls back to wrapping mismatched elements in `a`.
	Liberal
	// JSON accepts JSON's own literal grammar (no bare hex, no single
	// quotes) and falls back the same way Liberal does on mismatch.
	JSON
)

// textParser is a byte-oriented cursor over the surface syntax, built the
// same "buf []byte, pos int" shape as grammar.Parser rather than a
// generic io.Reader/bufio.Scanner pipeline, since the whole literal is
// always available up front for this surface language.
type textParser struct {
	s    string
	pos  int
	mode ParseMode
}

// ParseValue parses s as a single value under mode, returning the
// reconstructed Any with its inferred type.
func ParseValue(s string, mode ParseMode) (*Any, error) {
	p := &textParser{s: s, mode: mode}
	p.skipSpace()
	a, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return nil, typestringErr(ReasonTlong, s, p.pos)
	}
	return a, nil
}

func (p *textParser) skipSpace() {
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			p.pos++
			continue
		}
		break
	}
}

func (p *textParser) peek() (byte, bool) {
	if p.pos >= len(p.s) {
		return 0, false
	}
	return p.s[p.pos], true
}

func (p *textParser) parseValue() (*Any, error) {
	p.skipSpace()
	c, ok := p.peek()
	if !ok {
		return nil, typestringErr(ReasonEnd, p.s, p.pos)
	}
	switch {
	case c == '<':
		return p.parseCoerced()
	case c == '(':
		return p.parseTuple()
	case c == '[':
		return p.parseList()
	case c == '{':
		return p.parseMap()
	case c == '\'' && p.mode != JSON:
		return p.parseChar()
	case c == '"':
		return p.parseString()
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	case strings.HasPrefix(p.s[p.pos:], "true"):
		p.pos += 4
		return &Any{Typ: &Type{Kind: Bool}, Val: AppendBool(nil, true)}, nil
	case strings.HasPrefix(p.s[p.pos:], "false"):
		p.pos += 5
		return &Any{Typ: &Type{Kind: Bool}, Val: AppendBool(nil, false)}, nil
	case strings.HasPrefix(p.s[p.pos:], "null"):
		p.pos += 4
		return &Any{Typ: &Type{Kind: Opt, Elem: []*Type{voidT()}}, Val: []byte{0}}, nil
	case strings.HasPrefix(p.s[p.pos:], "error("):
		return p.parseError()
	}
	return nil, typestringErr(ReasonChr, string(c), p.pos)
}

func (p *textParser) parseChar() (*Any, error) {
	start := p.pos
	p.pos++ // opening quote
	if p.pos >= len(p.s) {
		return nil, typestringErr(ReasonEnd, p.s, start)
	}
	var v byte
	if p.s[p.pos] == '%' {
		if p.pos+3 > len(p.s) {
			return nil, typestringErr(ReasonEnd, p.s, start)
		}
		n, err := strconv.ParseUint(p.s[p.pos+1:p.pos+3], 16, 8)
		if err != nil {
			return nil, typestringErr(ReasonChr, p.s[p.pos:p.pos+3], p.pos)
		}
		v = byte(n)
		p.pos += 3
	} else {
		v = p.s[p.pos]
		p.pos++
	}
	if p.pos >= len(p.s) || p.s[p.pos] != '\'' {
		return nil, typestringErr(ReasonChr, p.s[start:p.pos], p.pos)
	}
	p.pos++
	return &Any{Typ: &Type{Kind: Char}, Val: AppendChar(nil, v)}, nil
}

func (p *textParser) parseString() (*Any, error) {
	start := p.pos
	p.pos++ // opening quote
	var b strings.Builder
	for {
		if p.pos >= len(p.s) {
			return nil, typestringErr(ReasonEnd, p.s, start)
		}
		c := p.s[p.pos]
		if c == '"' {
			p.pos++
			break
		}
		if c == '%' {
			if p.pos+3 > len(p.s) {
				return nil, typestringErr(ReasonEnd, p.s, p.pos)
			}
			n, err := strconv.ParseUint(p.s[p.pos+1:p.pos+3], 16, 8)
			if err != nil {
				return nil, typestringErr(ReasonChr, p.s[p.pos:p.pos+3], p.pos)
			}
			b.WriteByte(byte(n))
			p.pos += 3
			continue
		}
		b.WriteByte(c)
		p.pos++
	}
	if err := assertValidUTF8(b.String()); err != nil {
		return nil, err
	}
	return &Any{Typ: &Type{Kind: String}, Val: AppendString(nil, b.String())}, nil
}

// parseNumber recognizes a decimal or hex (outside JSON) integer literal,
// or a double if a '.'/'e'/'E' is present, per spec.md §4.7's integer
// rule: a literal that parses equally as int and double is an int;
// in-range values become `i`, otherwise `I`.
func (p *textParser) parseNumber() (*Any, error) {
	start := p.pos
	if p.s[p.pos] == '-' {
		p.pos++
	}
	if p.mode != JSON && strings.HasPrefix(p.s[p.pos:], "0x") {
		p.pos += 2
		for p.pos < len(p.s) && isHexDigit(p.s[p.pos]) {
			p.pos++
		}
		lit := p.s[start:p.pos]
		neg := strings.HasPrefix(lit, "-")
		hexPart := lit
		if neg {
			hexPart = lit[1:]
		}
		u, err := strconv.ParseUint(hexPart[2:], 16, 64)
		if err != nil {
			return nil, typestringErr(ReasonChr, lit, start)
		}
		v := int64(u)
		if neg {
			v = -v
		}
		return intAny(v), nil
	}
	isFloat := false
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		if c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-' {
			isFloat = true
			p.pos++
			continue
		}
		break
	}
	lit := p.s[start:p.pos]
	if isFloat {
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, typestringErr(ReasonChr, lit, start)
		}
		return &Any{Typ: &Type{Kind: Double}, Val: AppendDouble(nil, f)}, nil
	}
	n, err := strconv.ParseInt(lit, 10, 64)
	if err != nil {
		return nil, typestringErr(ReasonChr, lit, start)
	}
	return intAny(n), nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// intAny picks `i` for values in [0, 2^31) and for negative values that
// fit in an i32, and `I` otherwise, per spec.md §4.7.
func intAny(v int64) *Any {
	if v >= 0 && v < (1<<31) {
		return &Any{Typ: &Type{Kind: Int32}, Val: AppendInt32(nil, int32(v))}
	}
	if v >= -(1<<31) && v < (1<<31) {
		return &Any{Typ: &Type{Kind: Int32}, Val: AppendInt32(nil, int32(v))}
	}
	return &Any{Typ: &Type{Kind: Int64}, Val: AppendInt64(nil, v)}
}

func (p *textParser) expectByte(c byte) error {
	p.skipSpace()
	got, ok := p.peek()
	if !ok || got != c {
		return typestringErr(ReasonChr, p.s[p.pos:], p.pos)
	}
	p.pos++
	return nil
}

// parseTuple parses `(e1, e2[, ...])`, requiring at least 2 elements.
func (p *textParser) parseTuple() (*Any, error) {
	if err := p.expectByte('('); err != nil {
		return nil, err
	}
	var elems []*Any
	for {
		p.skipSpace()
		a, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		elems = append(elems, a)
		p.skipSpace()
		c, ok := p.peek()
		if !ok {
			return nil, typestringErr(ReasonEnd, p.s, p.pos)
		}
		if c == ',' || c == ';' {
			p.pos++
			continue
		}
		break
	}
	if err := p.expectByte(')'); err != nil {
		return nil, err
	}
	if len(elems) < 2 {
		return nil, typestringErr(ReasonNum, "t"+strconv.Itoa(len(elems)), p.pos)
	}
	types := make([]*Type, len(elems))
	var val []byte
	for i, e := range elems {
		types[i] = e.Typ
		val = append(val, e.Val...)
	}
	return &Any{Typ: &Type{Kind: Tuple, Elem: types}, Val: val}, nil
}

// parseList parses `[e1,e2,...]`, inferring one element type; on
// mismatch in Liberal/JSON mode it restarts with element type `a`.
func (p *textParser) parseList() (*Any, error) {
	if err := p.expectByte('['); err != nil {
		return nil, err
	}
	var elems []*Any
	p.skipSpace()
	if c, ok := p.peek(); ok && c == ']' {
		p.pos++
		return &Any{Typ: &Type{Kind: List, Elem: []*Type{voidT()}}, Val: AppendCount(nil, 0)}, nil
	}
	for {
		a, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		elems = append(elems, a)
		p.skipSpace()
		c, ok := p.peek()
		if !ok {
			return nil, typestringErr(ReasonEnd, p.s, p.pos)
		}
		if c == ',' {
			p.pos++
			p.skipSpace()
			continue
		}
		break
	}
	if err := p.expectByte(']'); err != nil {
		return nil, err
	}
	elemT, uniform := commonType(elems)
	if !uniform {
		if p.mode == Normal {
			return nil, typeMismatch(elems[0].Typ.String(), elemT.String(), 0, 0, "list elements have mismatched types")
		}
		elemT = &Type{Kind: Any_}
	}
	var val []byte
	val = AppendCount(val, len(elems))
	for _, e := range elems {
		if elemT.Kind == Any_ {
			val = append(val, e.Bytes()...)
		} else {
			val = append(val, e.Val...)
		}
	}
	return &Any{Typ: &Type{Kind: List, Elem: []*Type{elemT}}, Val: val}, nil
}

// parseMap parses `{k:v,...}` (or `=` in place of `:`), inferring key and
// value types the same way parseList infers the element type.
func (p *textParser) parseMap() (*Any, error) {
	if err := p.expectByte('{'); err != nil {
		return nil, err
	}
	var keys, vals []*Any
	p.skipSpace()
	if c, ok := p.peek(); ok && c == '}' {
		p.pos++
		return &Any{Typ: &Type{Kind: Map, Elem: []*Type{voidT(), voidT()}}, Val: AppendCount(nil, 0)}, nil
	}
	for {
		k, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		sep, ok := p.peek()
		if !ok || (sep != ':' && sep != '=') {
			return nil, typestringErr(ReasonChr, p.s[p.pos:], p.pos)
		}
		p.pos++
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
		vals = append(vals, v)
		p.skipSpace()
		c, ok := p.peek()
		if !ok {
			return nil, typestringErr(ReasonEnd, p.s, p.pos)
		}
		if c == ',' {
			p.pos++
			p.skipSpace()
			continue
		}
		break
	}
	if err := p.expectByte('}'); err != nil {
		return nil, err
	}
	kt, kUniform := commonType(keys)
	vt, vUniform := commonType(vals)
	if !kUniform || !vUniform {
		if p.mode == Normal {
			return nil, typeMismatch(kt.String(), vt.String(), 0, 0, "map keys/values have mismatched types")
		}
		if !kUniform {
			kt = &Type{Kind: Any_}
		}
		if !vUniform {
			vt = &Type{Kind: Any_}
		}
	}
	var val []byte
	val = AppendCount(val, len(keys))
	for i := range keys {
		if kt.Kind == Any_ {
			val = append(val, keys[i].Bytes()...)
		} else {
			val = append(val, keys[i].Val...)
		}
		if vt.Kind == Any_ {
			val = append(val, vals[i].Bytes()...)
		} else {
			val = append(val, vals[i].Val...)
		}
	}
	return &Any{Typ: &Type{Kind: Map, Elem: []*Type{kt, vt}}, Val: val}, nil
}

// commonType reports the shared type of as, or ok=false if they differ.
func commonType(as []*Any) (*Type, bool) {
	if len(as) == 0 {
		return voidT(), true
	}
	t := as[0].Typ
	for _, a := range as[1:] {
		if !a.Typ.Equal(t) {
			return t, false
		}
	}
	return t, true
}

// parseCoerced parses `<type>[value]`, coercing the bracketed literal
// into the named type descriptor (or wrapping it as `a`).
func (p *textParser) parseCoerced() (*Any, error) {
	if err := p.expectByte('<'); err != nil {
		return nil, err
	}
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] != '>' {
		p.pos++
	}
	if p.pos >= len(p.s) {
		return nil, typestringErr(ReasonEnd, p.s, start)
	}
	typeStr := p.s[start:p.pos]
	p.pos++ // '>'
	if err := p.expectByte('['); err != nil {
		return nil, err
	}
	inner, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if err := p.expectByte(']'); err != nil {
		return nil, err
	}
	want, err := ParseType(typeStr)
	if err != nil {
		return nil, err
	}
	if want.Equal(inner.Typ) {
		return &Any{Typ: want, Val: inner.Val}, nil
	}
	out, _, err := Convert(inner.Typ, want, inner.Val, ConvertingAll, nil)
	if err != nil {
		return nil, err
	}
	return &Any{Typ: want, Val: out}, nil
}

// parseError parses `error(tag, id, msg, attached)`.
func (p *textParser) parseError() (*Any, error) {
	p.pos += len("error(")
	tag, err := p.parseString()
	if err != nil {
		return nil, err
	}
	if err := p.expectByte(','); err != nil {
		return nil, err
	}
	id, err := p.parseString()
	if err != nil {
		return nil, err
	}
	if err := p.expectByte(','); err != nil {
		return nil, err
	}
	msg, err := p.parseString()
	if err != nil {
		return nil, err
	}
	if err := p.expectByte(','); err != nil {
		return nil, err
	}
	attached, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if err := p.expectByte(')'); err != nil {
		return nil, err
	}
	var attachedAny *Any
	if attached.Typ.Kind == Any_ {
		attachedAny, _, err = DecodeAny(attached.Val)
		if err != nil {
			return nil, err
		}
	} else {
		attachedAny = attached
	}
	var val []byte
	val = append(val, tag.Val...)
	val = append(val, id.Val...)
	val = append(val, msg.Val...)
	val = append(val, attachedAny.Bytes()...)
	return &Any{Typ: &Type{Kind: Err}, Val: val}, nil
}

// assertValidUTF8 guards against constructing a string literal whose
// %hh escapes produced an invalid UTF-8 sequence.
func assertValidUTF8(s string) error {
	if !utf8.ValidString(s) {
		return valueMismatch("string literal is not valid UTF-8", "s", 0)
	}
	return nil
}
