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

import "golang.org/x/crypto/blake2b"

// Fingerprint is a content-addressed digest of an Any's wire
// representation (its type string plus its value bytes), used to
// deduplicate identical values across a snapshot or cache without
// comparing the full byte slices.
type Fingerprint [blake2b.Size256]byte

// Fingerprint hashes a's framed encoding with blake2b-256. Two Anys with
// the same logical value and the same type string always produce the
// same fingerprint; two structurally-equal-but-differently-spelled type
// strings (there are none in this grammar, since String() is canonical)
// would not collide by construction.
func (a *Any) Fingerprint() Fingerprint {
	return blake2b.Sum256(a.Bytes())
}

// FingerprintValue hashes t and v directly without constructing an Any,
// for callers that already hold a (type, value) pair from a scan.
func FingerprintValue(t *Type, v []byte) Fingerprint {
	a := &Any{Typ: t, Val: v}
	return a.Fingerprint()
}
