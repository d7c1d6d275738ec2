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

import "strings"

// Policy is a bitmask enabling specific classes of structural conversion.
// All flags default to off. Interfaces accept the bitmask as a single
// parameter, per spec.md §6.
type Policy uint32

const (
	ConvertingAny Policy = 1 << iota
	ConvertingExpected
	ConvertingAux
	ConvertingBool
	ConvertingInts
	ConvertingIntsNarrowing
	ConvertingDouble
	ConvertingTupleList
)

// ConvertingAll is the bitwise-or of every individual policy flag.
const ConvertingAll = ConvertingAny | ConvertingExpected | ConvertingAux |
	ConvertingBool | ConvertingInts | ConvertingIntsNarrowing |
	ConvertingDouble | ConvertingTupleList

var policyNames = []struct {
	bit  Policy
	name string
}{
	{ConvertingAny, "converting_any"},
	{ConvertingExpected, "converting_expected"},
	{ConvertingAux, "converting_aux"},
	{ConvertingBool, "converting_bool"},
	{ConvertingInts, "converting_ints"},
	{ConvertingIntsNarrowing, "converting_ints_narrowing"},
	{ConvertingDouble, "converting_double"},
	{ConvertingTupleList, "converting_tuple_list"},
}

// Has reports whether every bit in want is set in p.
func (p Policy) Has(want Policy) bool { return p&want == want }

func (p Policy) String() string {
	if p == 0 {
		return "none"
	}
	var names []string
	for _, n := range policyNames {
		if p.Has(n.bit) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// ConvertingIntsNarrowing subsumes ConvertingInts: enabling narrowing
// without widening would be a strange policy to author, so
// allowsIntWidening also accepts the narrowing bit being set alone
// (Has itself remains a plain bit test).
func (p Policy) allowsIntWidening() bool {
	return p.Has(ConvertingInts) || p.Has(ConvertingIntsNarrowing)
}
