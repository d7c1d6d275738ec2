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
	"encoding/binary"

	"github.com/klauspost/compress/zstd"
	"github.com/tyval-io/tyval"
)

// Snapshot compresses v's flattened (type, value) pair into a single
// self-contained blob: a debug/golden-file dump that survives the chunk
// graph being torn down, used by tests to diff a view's state before
// and after a mutation.
func Snapshot(v *View) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, apiErr("snapshot: " + err.Error())
	}
	defer enc.Close()

	typ := v.Type()
	val := v.Value()
	raw := make([]byte, 0, 8+len(typ)+len(val))
	raw = appendUint32(raw, uint32(len(typ)))
	raw = append(raw, typ...)
	raw = appendUint32(raw, uint32(len(val)))
	raw = append(raw, val...)

	return enc.EncodeAll(raw, nil), nil
}

// Restore decompresses a blob produced by Snapshot into a fresh root
// View.
func Restore(blob []byte) (*View, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, apiErr("restore: " + err.Error())
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, apiErr("restore: " + err.Error())
	}
	if len(raw) < 4 {
		return nil, apiErr("restore: truncated snapshot")
	}
	tlen := binary.BigEndian.Uint32(raw)
	raw = raw[4:]
	if uint32(len(raw)) < tlen {
		return nil, apiErr("restore: truncated type string")
	}
	typ := string(raw[:tlen])
	raw = raw[tlen:]
	if len(raw) < 4 {
		return nil, apiErr("restore: truncated value length")
	}
	vlen := binary.BigEndian.Uint32(raw)
	raw = raw[4:]
	if uint32(len(raw)) < vlen {
		return nil, apiErr("restore: truncated value")
	}
	tyval.Debugf("wview: restored snapshot type=%s bytes=%d", typ, vlen)
	return NewRoot(typ, raw[:vlen])
}

func appendUint32(dst []byte, n uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	return append(dst, b[:]...)
}

func apiErr(msg string) *tyval.Error {
	return &tyval.Error{Kind: tyval.KindAPIError, Message: msg}
}
