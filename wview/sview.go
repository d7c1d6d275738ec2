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

// Package wview implements the writable-view layer: a refcounted,
// copy-on-write chunk graph (sview/chunk) and a parent/child tree over
// it (View) that lets a caller surgically mutate a serialized `any`
// without re-encoding the whole value.
package wview

import "sync/atomic"

// sview is a sized byte run shared by one or more chunks. Once shared
// (refcount > 1) it may be demoted to read-only; writable only ever
// transitions from true to false, matching spec.md §4.9/§5's acquire-
// release discipline for that flag.
type sview struct {
	buf      []byte
	refs     int32
	writable int32 // 0/1, read/written with atomic acquire-release semantics
	owning   bool
}

// newOwningSview takes ownership of buf, so the caller may mutate it
// until the sview is shared.
func newOwningSview(buf []byte) *sview {
	return &sview{buf: buf, refs: 1, writable: 1, owning: true}
}

// newBorrowingSview wraps memory the caller still owns; it is never
// writable, since the view layer has no right to mutate borrowed bytes.
func newBorrowingSview(buf []byte) *sview {
	return &sview{buf: buf, refs: 1, writable: 0, owning: false}
}

func (s *sview) retain() *sview {
	atomic.AddInt32(&s.refs, 1)
	return s
}

// release decrements the refcount and demotes the sview to read-only
// once it becomes shared from any caller's perspective; the last
// release is a no-op beyond the decrement since Go's GC reclaims buf.
func (s *sview) release() {
	if atomic.AddInt32(&s.refs, -1) > 0 {
		atomic.StoreInt32(&s.writable, 0)
	}
}

func (s *sview) shared() bool { return atomic.LoadInt32(&s.refs) > 1 }

func (s *sview) isWritable() bool { return atomic.LoadInt32(&s.writable) == 1 }

// demote clears the writable flag. Nothing in the package calls it;
// release clears the same flag inline when references remain.
func (s *sview) demote() { atomic.StoreInt32(&s.writable, 0) }
