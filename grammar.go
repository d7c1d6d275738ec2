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

// Package tyval implements a self-describing binary serialization runtime:
// a compact type-descriptor grammar, a matching wire format, a structural
// conversion engine, a scanner/validator, a text parser and a
// pretty-printer, all built around a canonical (type, value) container
// named Any.
package tyval

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the shape of a Type node.
type Kind byte

const (
	Void Kind = iota
	Bool
	Char
	Int32
	Int64
	Double
	String
	List
	Map
	Tuple
	Opt
	Exp
	ExpVoid
	Any_
	Err
)

var kindNames = map[Kind]string{
	Void: "void", Bool: "b", Char: "c", Int32: "i", Int64: "I", Double: "d",
	String: "s", List: "l", Map: "m", Tuple: "t", Opt: "o", Exp: "x",
	ExpVoid: "X", Any_: "a", Err: "e",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Type is a parsed type descriptor, per spec.md §3/§6.
//
// Elem holds the nested types: one for List/Opt/Exp, two for Map
// (key, value), N for Tuple.
type Type struct {
	Kind Kind
	Elem []*Type
}

// errType is the canonical expansion of the `e` symbol: t4sssa.
// It is a single package-level value so Err's expansion can be shared
// by every caller.
var errType = &Type{Kind: Tuple, Elem: []*Type{
	{Kind: String}, {Kind: String}, {Kind: String}, {Kind: Any_},
}}

// ErrTupleShape returns the t4sssa tuple type that `e` scans/encodes
// identically to (spec.md §9 open question).
func ErrTupleShape() *Type { return errType }

func voidT() *Type { return &Type{Kind: Void} }

// String renders t back into its canonical type-descriptor form.
func (t *Type) String() string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case Void:
		return ""
	case Bool, Char, Int32, Int64, Double, String, Any_, Err, ExpVoid:
		return t.Kind.String()
	case List:
		return "l" + t.Elem[0].String()
	case Map:
		return "m" + t.Elem[0].String() + t.Elem[1].String()
	case Opt:
		return "o" + t.Elem[0].String()
	case Exp:
		return "x" + t.Elem[0].String()
	case Tuple:
		var b strings.Builder
		b.WriteByte('t')
		b.WriteString(strconv.Itoa(len(t.Elem)))
		for _, e := range t.Elem {
			b.WriteString(e.String())
		}
		return b.String()
	}
	return ""
}

// Equal reports whether t and o describe the same type.
func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind || len(t.Elem) != len(o.Elem) {
		return false
	}
	for i := range t.Elem {
		if !t.Elem[i].Equal(o.Elem[i]) {
			return false
		}
	}
	return true
}

// IsVoidLike reports whether t is void from its type alone: void itself,
// or a tuple whose fields are all void-like. X, o and a are never
// reported, since whether they disappear under a void target depends on
// the value (and on policy); the conversion engine decides those cases.
func (t *Type) IsVoidLike() bool {
	switch t.Kind {
	case Void:
		return true
	case ExpVoid:
		return false // X carries a flag byte; it's not statically void
	case Tuple:
		for _, e := range t.Elem {
			if !e.IsVoidLike() {
				return false
			}
		}
		return true
	}
	return false
}

// RefillFunc supplies more type-descriptor bytes when the parser's
// current view is exhausted. It returns io.EOF-compatible behavior by
// returning a nil/empty slice with a nil error to signal "no more
// input"; any other error aborts parsing.
type RefillFunc func() ([]byte, error)

// Parser consumes a type descriptor left to right, per spec.md §4.1.
type Parser struct {
	buf    []byte
	pos    int
	refill RefillFunc
	total  int // bytes consumed across refills, for Offset()
}

// NewParser returns a parser over a complete, in-memory type string.
func NewParser(s string) *Parser {
	return &Parser{buf: []byte(s)}
}

// NewChunkedParser returns a parser that pulls additional bytes from
// refill whenever its current view is exhausted.
func NewChunkedParser(refill RefillFunc) *Parser {
	return &Parser{refill: refill}
}

// Offset reports the total number of type bytes consumed so far, for use
// in located errors.
func (p *Parser) Offset() int { return p.total + p.pos }

func (p *Parser) peek() (byte, bool) {
	for p.pos >= len(p.buf) {
		if p.refill == nil {
			return 0, false
		}
		more, err := p.refill()
		if err != nil || len(more) == 0 {
			p.refill = nil
			return 0, false
		}
		p.total += p.pos
		p.buf = more
		p.pos = 0
	}
	return p.buf[p.pos], true
}

func (p *Parser) next() (byte, bool) {
	c, ok := p.peek()
	if ok {
		p.pos++
	}
	return c, ok
}

// Parse consumes exactly one type node (recursively) and returns it.
// A trailing-garbage check is the caller's responsibility via
// ParseComplete.
func (p *Parser) Parse() (*Type, error) {
	c, ok := p.peek()
	if !ok {
		return voidT(), nil
	}
	switch c {
	case 'b':
		p.next()
		return &Type{Kind: Bool}, nil
	case 'c':
		p.next()
		return &Type{Kind: Char}, nil
	case 'i':
		p.next()
		return &Type{Kind: Int32}, nil
	case 'I':
		p.next()
		return &Type{Kind: Int64}, nil
	case 'd':
		p.next()
		return &Type{Kind: Double}, nil
	case 's':
		p.next()
		return &Type{Kind: String}, nil
	case 'a':
		p.next()
		return &Type{Kind: Any_}, nil
	case 'e':
		p.next()
		return &Type{Kind: Err}, nil
	case 'X':
		p.next()
		return &Type{Kind: ExpVoid}, nil
	case 'o':
		p.next()
		inner, err := p.parseRequired()
		if err != nil {
			return nil, err
		}
		return &Type{Kind: Opt, Elem: []*Type{inner}}, nil
	case 'x':
		p.next()
		inner, err := p.parseRequired()
		if err != nil {
			return nil, err
		}
		return &Type{Kind: Exp, Elem: []*Type{inner}}, nil
	case 'l':
		p.next()
		inner, err := p.parseRequired()
		if err != nil {
			return nil, err
		}
		return &Type{Kind: List, Elem: []*Type{inner}}, nil
	case 'm':
		p.next()
		key, err := p.parseRequired()
		if err != nil {
			return nil, err
		}
		val, err := p.parseRequired()
		if err != nil {
			return nil, err
		}
		return &Type{Kind: Map, Elem: []*Type{key, val}}, nil
	case 't':
		p.next()
		return p.parseTuple()
	}
	return nil, typestringErr(ReasonChr, string(c), p.Offset())
}

// parseRequired parses a nested type node, turning an empty result
// (an immediate terminator or EOF) into an "end" error, since none of
// l/m/o/x/t accept a void child implicitly.
func (p *Parser) parseRequired() (*Type, error) {
	if _, ok := p.peek(); !ok {
		return nil, typestringErr(ReasonEnd, "", p.Offset())
	}
	return p.Parse()
}

func (p *Parser) parseTuple() (*Type, error) {
	start := p.Offset()
	var digits []byte
	for {
		c, ok := p.peek()
		if !ok || c < '0' || c > '9' {
			break
		}
		digits = append(digits, c)
		p.next()
	}
	if len(digits) == 0 {
		return nil, typestringErr(ReasonEnd, "t", start)
	}
	n, err := strconv.Atoi(string(digits))
	if err != nil || n < 2 {
		return nil, typestringErr(ReasonNum, "t"+string(digits), start)
	}
	elems := make([]*Type, 0, n)
	for i := 0; i < n; i++ {
		e, err := p.parseRequired()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	return &Type{Kind: Tuple, Elem: elems}, nil
}

// ParseType parses a complete type descriptor string, rejecting trailing
// garbage with a "tlong" error.
func ParseType(s string) (*Type, error) {
	p := NewParser(s)
	t, err := p.Parse()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.buf) {
		return t, typestringErr(ReasonTlong, s, p.Offset())
	}
	if _, ok := p.peek(); ok {
		return t, typestringErr(ReasonTlong, s, p.Offset())
	}
	return t, nil
}

// MustParseType is ParseType but panics on error; intended for
// compile-time-constant type descriptors in tests and call sites that
// already know the string is well-formed.
func MustParseType(s string) *Type {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}
