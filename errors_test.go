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
	"errors"
	"strings"
	"testing"
)

func TestErrorIsMatchesKind(t *testing.T) {
	e1 := typeMismatch("i", "s", 0, 0, "nope")
	e2 := &Error{Kind: KindTypeMismatch}
	if !errors.Is(e1, e2) {
		t.Fatalf("expected Is match on Kind")
	}
	e3 := &Error{Kind: KindValueMismatch}
	if errors.Is(e1, e3) {
		t.Fatalf("expected Is mismatch across Kind")
	}
}

func TestStarAtMarksOffset(t *testing.T) {
	got := starAt("t2is", 2)
	if got != "t2*is" {
		t.Fatalf("starAt = %q", got)
	}
}

func TestEncapsPrependsOpener(t *testing.T) {
	base := valueMismatch("short", "i", 0)
	wrapped := encaps(base, 'l')
	e := wrapped.(*Error)
	if e.SrcType != "li" {
		t.Fatalf("SrcType = %q, want li", e.SrcType)
	}
}

func TestErrorFormat(t *testing.T) {
	e := typeMismatch("i", "s", 0, ConvertingBool, "bad")
	out := e.Format("cannot convert %1 to %2", nil)
	if !strings.Contains(out, "cannot convert i to s") {
		t.Fatalf("Format: %q", out)
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("root cause")
	e := &Error{Kind: KindAPIError, Message: "wrapping", wrapped: inner}
	if errors.Unwrap(e) != inner {
		t.Fatalf("Unwrap did not return wrapped error")
	}
}
