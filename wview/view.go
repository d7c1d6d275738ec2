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
	"sort"

	"github.com/tyval-io/tyval"
)

// View is a node in the writable-view tree: it points at a (type chain,
// value chain) pair, its parent, and a sorted set of already-dissected
// children, per spec.md §4.10.
type View struct {
	typ    *chunk
	val    *chunk
	parent *View
	index  int // this view's logical index within parent, -1 at the root
	typStr string
	ty     *tyval.Type

	children    map[int]*View
	childOrder  []int
	keyIdx      *keyIndex
}

// NewRoot builds a writable view over a complete framed `a` value's
// inner (type, value) pair, or directly over a (typeString, value) pair
// for a caller that already knows the type (the common entry point when
// mutating an Any in place).
func NewRoot(typeStr string, value []byte) (*View, error) {
	ty, err := tyval.ParseType(typeStr)
	if err != nil {
		return nil, err
	}
	return &View{
		typ:    newChunk(newOwningSview([]byte(typeStr)), 0, len(typeStr)),
		val:    newChunk(newOwningSview(value), 0, len(value)),
		index:  -1,
		typStr: typeStr,
		ty:     ty,
	}, nil
}

// Type flattens and returns the view's type descriptor string.
func (v *View) Type() string { return string(flattenTo(nil, v.typ)) }

// Value flattens and returns the view's value bytes.
func (v *View) Value() []byte { return flattenTo(nil, v.val) }

// TypeChar returns the first byte of the type chain, or 0 for void.
func (v *View) TypeChar() byte {
	s := v.Type()
	if len(s) == 0 {
		return 0
	}
	return s[0]
}

// Size reports the container-specific child count, per spec.md §4.10.
func (v *View) Size() (int, error) {
	val := v.Value()
	switch v.ty.Kind {
	case tyval.Any_, tyval.Exp, tyval.ExpVoid:
		return 1, nil
	case tyval.Opt:
		if len(val) == 0 {
			return 0, nil
		}
		if val[0] == 1 {
			return 1, nil
		}
		return 0, nil
	case tyval.Err:
		return 3, nil
	case tyval.List, tyval.Map:
		return countContainer(val)
	case tyval.Tuple:
		return len(v.ty.Elem), nil
	default:
		return 0, nil
	}
}

func countContainer(val []byte) (int, error) {
	if len(val) < 4 {
		return 0, &tyval.Error{Kind: tyval.KindValueMismatch, Message: "container: missing count prefix"}
	}
	return int(val[0])<<24 | int(val[1])<<16 | int(val[2])<<8 | int(val[3]), nil
}

// allowChild reports whether v's children may change type, per the
// allow_child table in spec.md §4.10: `a` accepts anything; `x`/`X`
// accept only a change to `e`; `o`/`e`/`l`/`m` reject all changes; `t`
// escalates to its own parent.
func (v *View) allowChild(newType string) bool {
	switch v.ty.Kind {
	case tyval.Any_:
		return true
	case tyval.Exp, tyval.ExpVoid:
		return newType == "e"
	case tyval.Opt, tyval.Err, tyval.List, tyval.Map:
		return false
	case tyval.Tuple:
		if v.parent != nil {
			return v.parent.allowChild(v.Type())
		}
		return true
	default:
		return false
	}
}

// Index dissects the i-th logical child into a View over its own copy
// of the child's type and value bytes; v's chunks are not split and the
// child shares no storage with them. Subsequent calls with the same i
// return the cached child, per spec.md §4.10.
func (v *View) Index(i int) (*View, error) {
	if v.children == nil {
		v.children = make(map[int]*View)
	}
	if c, ok := v.children[i]; ok {
		return c, nil
	}
	child, err := v.dissect(i)
	if err != nil {
		return nil, err
	}
	v.children[i] = child
	v.childOrder = append(v.childOrder, i)
	sort.Ints(v.childOrder)
	return child, nil
}

// dissect locates the i-th child's (type, value) byte ranges within v's
// flattened chains and builds a View over fresh chunks holding a copy of
// those bytes.
func (v *View) dissect(i int) (*View, error) {
	val := v.Value()
	switch v.ty.Kind {
	case tyval.Any_:
		if i != 0 {
			return nil, outOfRange("a")
		}
		inner, _, err := tyval.DecodeAny(val)
		if err != nil {
			return nil, err
		}
		return v.childView(i, inner.Typ.String(), inner.Val), nil
	case tyval.Opt:
		if i != 0 || len(val) == 0 || val[0] != 1 {
			return nil, outOfRange("o")
		}
		return v.childView(i, v.ty.Elem[0].String(), val[1:]), nil
	case tyval.Exp:
		if i != 0 {
			return nil, outOfRange("x")
		}
		if val[0] == 0 {
			return v.childView(i, "e", val[1:]), nil
		}
		n, err := tyval.Scan(v.ty.Elem[0], val[1:], true)
		if err != nil {
			return nil, err
		}
		return v.childView(i, v.ty.Elem[0].String(), val[1:1+n]), nil
	case tyval.ExpVoid:
		if i != 0 {
			return nil, outOfRange("X")
		}
		if val[0] == 0 {
			return v.childView(i, "e", val[1:]), nil
		}
		return v.childView(i, "", nil), nil
	case tyval.Err:
		return v.dissectTuple(tyval.ErrTupleShape(), val, i)
	case tyval.List:
		return v.dissectList(val, i)
	case tyval.Tuple:
		return v.dissectTuple(v.ty, val, i)
	}
	return nil, outOfRange(v.ty.String())
}

func (v *View) dissectList(val []byte, i int) (*View, error) {
	n, err := countContainer(val)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= n {
		return nil, outOfRange("l")
	}
	elemT := v.ty.Elem[0]
	off := 4
	for j := 0; ; j++ {
		n, err := tyval.Scan(elemT, val[off:], true)
		if err != nil {
			return nil, err
		}
		if j == i {
			return v.childView(i, elemT.String(), val[off:off+n]), nil
		}
		off += n
	}
}

func (v *View) dissectTuple(ty *tyval.Type, val []byte, i int) (*View, error) {
	if i >= len(ty.Elem) {
		return nil, outOfRange(ty.String())
	}
	off := 0
	for j := 0; j <= i; j++ {
		n, err := tyval.Scan(ty.Elem[j], val[off:], true)
		if err != nil {
			return nil, err
		}
		if j == i {
			return v.childView(i, ty.Elem[j].String(), val[off:off+n]), nil
		}
		off += n
	}
	return nil, outOfRange(ty.String())
}

func (v *View) childView(i int, typeStr string, val []byte) *View {
	ty, _ := tyval.ParseType(typeStr)
	return &View{
		typ:    newChunk(newOwningSview([]byte(typeStr)), 0, len(typeStr)),
		val:    newChunk(newOwningSview(append([]byte(nil), val...)), 0, len(val)),
		parent: v,
		index:  i,
		typStr: typeStr,
		ty:     ty,
	}
}

func outOfRange(t string) error {
	return &tyval.Error{Kind: tyval.KindAPIError, Message: t + ": index out of range"}
}

// Set replaces v's value (and type, when the parent allows it) with
// other's content. A self-assign is a no-op.
func (v *View) Set(other *View) error {
	if v == other {
		return nil
	}
	if v.parent != nil && other.Type() != v.Type() {
		if !v.parent.allowChild(other.Type()) {
			return &tyval.Error{Kind: tyval.KindTypeMismatch, Message: "set: parent rejects type change to " + other.Type()}
		}
	}
	v.disownChildren()
	v.typ = newChunk(newOwningSview([]byte(other.Type())), 0, len(other.Type()))
	v.val = newChunk(newOwningSview(append([]byte(nil), other.Value()...)), 0, len(other.Value()))
	ty, err := tyval.ParseType(other.Type())
	if err != nil {
		return err
	}
	v.ty = ty
	v.typStr = other.Type()
	v.updateParentAnySizes()
	return nil
}

// SetTyped replaces v's value directly from a (type, value) pair,
// bypassing the need to build a sibling View first.
func (v *View) SetTyped(typeStr string, val []byte) error {
	if v.parent != nil && typeStr != v.Type() {
		if !v.parent.allowChild(typeStr) {
			return &tyval.Error{Kind: tyval.KindTypeMismatch, Message: "set: parent rejects type change to " + typeStr}
		}
	}
	v.disownChildren()
	ty, err := tyval.ParseType(typeStr)
	if err != nil {
		return err
	}
	v.typ = newChunk(newOwningSview([]byte(typeStr)), 0, len(typeStr))
	v.val = newChunk(newOwningSview(append([]byte(nil), val...)), 0, len(val))
	v.ty = ty
	v.typStr = typeStr
	v.updateParentAnySizes()
	return nil
}

// disownChildren severs linkage to every live child by cloning its
// chains, so continued operations on this node don't retroactively
// affect children that were already dissected out of it.
func (v *View) disownChildren() {
	for _, idx := range v.childOrder {
		c := v.children[idx]
		c.typ = c.typ.clone()
		c.val = c.val.clone()
		c.parent = nil
	}
	v.children = nil
	v.childOrder = nil
	v.keyIdx = nil
}

// updateParentAnySizes walks upward fixing any ancestor `a`'s Vlen
// header after a mutation changed this node's flattened size.
func (v *View) updateParentAnySizes() {
	for p := v.parent; p != nil; p = p.parent {
		if p.ty.Kind != tyval.Any_ {
			continue
		}
		child, ok := p.children[0]
		if !ok {
			continue
		}
		newVal := tyval.Any{Typ: child.ty, Val: child.Value()}
		framed := newVal.Bytes()
		p.val = newChunk(newOwningSview(framed), 0, len(framed))
	}
}

// Erase removes the i-th child, reducing the parent container by one.
func (v *View) Erase(i int) error {
	val := v.Value()
	switch v.ty.Kind {
	case tyval.Opt:
		if i != 0 {
			return outOfRange("o")
		}
		return v.rewriteValue([]byte{0})
	case tyval.List:
		return v.eraseListElem(val, i)
	case tyval.Map:
		return v.eraseMapElem(val, i)
	case tyval.Tuple:
		if len(v.ty.Elem) <= 2 {
			return &tyval.Error{Kind: tyval.KindTypeMismatch, Message: "erase: tuple arity would collapse below 2"}
		}
		return v.eraseTupleElem(val, i)
	}
	return &tyval.Error{Kind: tyval.KindAPIError, Message: v.ty.String() + ": erase not supported"}
}

func (v *View) eraseListElem(val []byte, i int) error {
	n := int(val[0])<<24 | int(val[1])<<16 | int(val[2])<<8 | int(val[3])
	if i < 0 || i >= n {
		return outOfRange("l")
	}
	elemT := v.ty.Elem[0]
	off := 4
	for j := 0; j < i; j++ {
		sz, err := tyval.Scan(elemT, val[off:], true)
		if err != nil {
			return err
		}
		off += sz
	}
	sz, err := tyval.Scan(elemT, val[off:], true)
	if err != nil {
		return err
	}
	nv := make([]byte, 0, len(val)-sz)
	nv = append(nv, putCount(n-1)...)
	nv = append(nv, val[4:off]...)
	nv = append(nv, val[off+sz:]...)
	// every index at or past i shifts down by one: no cached child
	// survives an erase.
	v.disownChildren()
	return v.rewriteValue(nv)
}

func (v *View) eraseMapElem(val []byte, i int) error {
	n, err := countContainer(val)
	if err != nil {
		return err
	}
	if i < 0 || i >= n {
		return outOfRange("m")
	}
	kt, vt := v.ty.Elem[0], v.ty.Elem[1]
	off := 4
	for j := 0; j < i; j++ {
		ksz, err := tyval.Scan(kt, val[off:], true)
		if err != nil {
			return err
		}
		off += ksz
		vsz, err := tyval.Scan(vt, val[off:], true)
		if err != nil {
			return err
		}
		off += vsz
	}
	ksz, err := tyval.Scan(kt, val[off:], true)
	if err != nil {
		return err
	}
	vsz, err := tyval.Scan(vt, val[off+ksz:], true)
	if err != nil {
		return err
	}
	entrySz := ksz + vsz
	nv := make([]byte, 0, len(val)-entrySz)
	nv = append(nv, putCount(n-1)...)
	nv = append(nv, val[4:off]...)
	nv = append(nv, val[off+entrySz:]...)
	v.disownChildren()
	return v.rewriteValue(nv)
}

func (v *View) eraseTupleElem(val []byte, i int) error {
	newElems := make([]*tyval.Type, 0, len(v.ty.Elem)-1)
	nv := make([]byte, 0, len(val))
	off := 0
	for j, e := range v.ty.Elem {
		sz, err := tyval.Scan(e, val[off:], true)
		if err != nil {
			return err
		}
		if j != i {
			newElems = append(newElems, e)
			nv = append(nv, val[off:off+sz]...)
		}
		off += sz
	}
	newTy := &tyval.Type{Kind: tyval.Tuple, Elem: newElems}
	v.disownChildren()
	v.ty = newTy
	v.typStr = newTy.String()
	v.typ = newChunk(newOwningSview([]byte(v.typStr)), 0, len(v.typStr))
	return v.rewriteValue(nv)
}

func (v *View) rewriteValue(nv []byte) error {
	v.val = newChunk(newOwningSview(nv), 0, len(nv))
	v.updateParentAnySizes()
	return nil
}

func putCount(n int) []byte {
	return []byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
}

// InsertAfter inserts what's content as a new element positioned after
// the element currently at index where (or at the head, if where < 0).
func (v *View) InsertAfter(where int, what *View) error {
	switch v.ty.Kind {
	case tyval.List:
		return v.insertAfterList(where, what)
	case tyval.Map:
		return v.insertAfterMap(where, what)
	}
	return &tyval.Error{Kind: tyval.KindAPIError, Message: v.ty.String() + ": insert_after only supports l/m"}
}

func (v *View) insertAfterList(where int, what *View) error {
	elemT := v.ty.Elem[0]
	if what.Type() != elemT.String() && !v.allowChild(what.Type()) {
		return &tyval.Error{Kind: tyval.KindTypeMismatch, Message: "insert_after: incompatible element type " + what.Type()}
	}
	val := v.Value()
	n := int(val[0])<<24 | int(val[1])<<16 | int(val[2])<<8 | int(val[3])
	off := 4
	for j := 0; j <= where; j++ {
		sz, err := tyval.Scan(elemT, val[off:], true)
		if err != nil {
			return err
		}
		off += sz
	}
	nv := make([]byte, 0, len(val)+len(what.Value()))
	nv = append(nv, putCount(n+1)...)
	nv = append(nv, val[4:off]...)
	nv = append(nv, what.Value()...)
	nv = append(nv, val[off:]...)
	v.disownChildren()
	return v.rewriteValue(nv)
}

// insertAfterMap inserts a (key,value) entry into a map, taking what as a
// 2-tuple of (key type, value type). Map entries carry no intrinsic order,
// so where only selects the scan position after which the new pair is
// spliced; -1 inserts at the head.
func (v *View) insertAfterMap(where int, what *View) error {
	kt, vt := v.ty.Elem[0], v.ty.Elem[1]
	wantType := (&tyval.Type{Kind: tyval.Tuple, Elem: []*tyval.Type{kt, vt}}).String()
	if what.Type() != wantType {
		return &tyval.Error{Kind: tyval.KindTypeMismatch, Message: "insert_after: map entry must be " + wantType + ", got " + what.Type()}
	}
	wval := what.Value()
	ksz, err := tyval.Scan(kt, wval, true)
	if err != nil {
		return err
	}
	vsz, err := tyval.Scan(vt, wval[ksz:], true)
	if err != nil {
		return err
	}
	entry := wval[:ksz+vsz]

	val := v.Value()
	n, err := countContainer(val)
	if err != nil {
		return err
	}
	off := 4
	for j := 0; j <= where; j++ {
		eksz, err := tyval.Scan(kt, val[off:], true)
		if err != nil {
			return err
		}
		off += eksz
		evsz, err := tyval.Scan(vt, val[off:], true)
		if err != nil {
			return err
		}
		off += evsz
	}
	nv := make([]byte, 0, len(val)+len(entry))
	nv = append(nv, putCount(n+1)...)
	nv = append(nv, val[4:off]...)
	nv = append(nv, entry...)
	nv = append(nv, val[off:]...)
	v.disownChildren()
	return v.rewriteValue(nv)
}

// SwapContentWith exchanges v and other's type/value bytes in place,
// rejecting the swap if either is an ancestor of the other.
func (v *View) SwapContentWith(other *View) error {
	for p := v.parent; p != nil; p = p.parent {
		if p == other {
			return &tyval.Error{Kind: tyval.KindAPIError, Message: "swap_content_with: other is an ancestor"}
		}
	}
	for p := other.parent; p != nil; p = p.parent {
		if p == v {
			return &tyval.Error{Kind: tyval.KindAPIError, Message: "swap_content_with: v is an ancestor"}
		}
	}
	v.typ.swapContentWith(other.typ)
	v.val.swapContentWith(other.val)
	v.children, other.children = other.children, v.children
	v.childOrder, other.childOrder = other.childOrder, v.childOrder
	v.ty, other.ty = other.ty, v.ty
	v.typStr, other.typStr = other.typStr, v.typStr
	v.updateParentAnySizes()
	other.updateParentAnySizes()
	return nil
}

// LinearSearch scans an `l` of tuples or an `m` for the first element
// whose key's first n bytes (or all of key if n==0) match key, using a
// siphash-backed cache to avoid re-hashing on repeated searches.
func (v *View) LinearSearch(key []byte, n int) (*View, error) {
	if v.keyIdx == nil {
		v.keyIdx = newKeyIndex(v)
	}
	return v.keyIdx.find(key, n)
}
