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
	"github.com/dchest/siphash"
	"github.com/tyval-io/tyval"
)

// keyIndex caches a siphash of every entry's key in a list-of-tuples or
// map-kind View, so repeated LinearSearch calls over the same View don't
// re-decode every entry from scratch. The hash key is fixed per process;
// it only needs to be collision-resistant against accidental matches,
// not adversarial ones.
const (
	keyK0 = 0x9ae16a3b2f90404f
	keyK1 = 0xc2b2ae3d27d4eb4f
)

type keyEntry struct {
	key  []byte
	view *View
	hash uint64
}

type keyIndex struct {
	owner   *View
	entries []keyEntry
	built   bool
}

func newKeyIndex(v *View) *keyIndex {
	return &keyIndex{owner: v}
}

func (k *keyIndex) build() error {
	if k.built {
		return nil
	}
	switch k.owner.ty.Kind {
	case tyval.List:
		if err := k.buildFromList(); err != nil {
			return err
		}
	case tyval.Map:
		if err := k.buildFromMap(); err != nil {
			return err
		}
	default:
		return &tyval.Error{Kind: tyval.KindAPIError, Message: "linear_search: only l and m support key lookup"}
	}
	k.built = true
	return nil
}

// buildFromList treats the list's element tuples' first field as the
// key, per spec.md §4.10's "l of tuples" linear_search mode.
func (k *keyIndex) buildFromList() error {
	if k.owner.ty.Elem[0].Kind != tyval.Tuple {
		return &tyval.Error{Kind: tyval.KindAPIError, Message: "linear_search: list elements are not tuples"}
	}
	n, err := k.owner.Size()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		elem, err := k.owner.Index(i)
		if err != nil {
			return err
		}
		first, err := elem.Index(0)
		if err != nil {
			return err
		}
		key := rawKeyBytes(first.Type(), first.Value())
		k.entries = append(k.entries, keyEntry{key: key, view: elem, hash: siphash.Hash(keyK0, keyK1, key)})
	}
	return nil
}

// buildFromMap indexes each map entry by its raw key bytes, building
// child views directly from the decoded (key, value) pair since Map is
// not addressable through Index (spec.md §4.10: m has no operator[]).
func (k *keyIndex) buildFromMap() error {
	val := k.owner.Value()
	n, err := countContainer(val)
	if err != nil {
		return err
	}
	kt, vt := k.owner.ty.Elem[0], k.owner.ty.Elem[1]
	off := 4
	for i := 0; i < n; i++ {
		ksz, err := tyval.Scan(kt, val[off:], true)
		if err != nil {
			return err
		}
		key := rawKeyBytes(kt.String(), val[off:off+ksz])
		off += ksz
		vsz, err := tyval.Scan(vt, val[off:], true)
		if err != nil {
			return err
		}
		valView := k.owner.childView(i, vt.String(), val[off:off+vsz])
		off += vsz
		k.entries = append(k.entries, keyEntry{key: key, view: valView, hash: siphash.Hash(keyK0, keyK1, key)})
	}
	return nil
}

// rawKeyBytes strips the 4-byte length prefix from a wire-encoded string
// key so callers can probe with the key's plain content; every other
// type's wire encoding already is its comparable key.
func rawKeyBytes(typeStr string, wire []byte) []byte {
	if typeStr == "s" && len(wire) >= 4 {
		return wire[4:]
	}
	return wire
}

// find returns the view matching the first n bytes of key (or the whole
// key, if n == 0): the matched tuple for a list, or the matched entry's
// value for a map.
func (k *keyIndex) find(key []byte, n int) (*View, error) {
	if err := k.build(); err != nil {
		return nil, err
	}
	probe := key
	if n > 0 && n < len(key) {
		probe = key[:n]
	}
	target := siphash.Hash(keyK0, keyK1, probe)
	for _, e := range k.entries {
		if e.hash != target {
			continue
		}
		actual := e.key
		if n > 0 && n < len(actual) {
			actual = actual[:n]
		}
		if string(actual) == string(probe) {
			return e.view, nil
		}
	}
	return nil, &tyval.Error{Kind: tyval.KindAPIError, Message: "linear_search: key not found"}
}
