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
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// Arena is a monotonic, mmap-backed bump allocator for the byte runs
// behind wview's sview headers. Handing out carved-out slices of one
// large anonymous mapping avoids a malloc per reallocation in
// chunk.reserve (reached through assign and swapContentWith; insert and
// erase build their buffers on the heap); the mapping is released in one
// munmap when the arena is closed rather than per-allocation free calls.
//
// Arena is safe for concurrent use; allocation takes a single mutex, the
// same coarse-locking tradeoff the teacher makes in its own cgroup
// accounting paths (correctness over fine-grained contention avoidance).
type Arena struct {
	mu         sync.Mutex
	region     []byte
	off        int
	generation uuid.UUID
}

// NewArena mmaps an anonymous region of size bytes (rounded up by the
// kernel to a page) and stamps it with a fresh generation id, reported
// by Generation and in Alloc's exhaustion log line. Chunks do not record
// which arena they were carved from.
func NewArena(size int) (*Arena, error) {
	if size <= 0 {
		size = 1 << 20
	}
	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, apiErr("arena: mmap failed: " + err.Error())
	}
	return &Arena{region: region, generation: uuid.New()}, nil
}

// Generation identifies this arena's mapping, stable for its lifetime.
func (a *Arena) Generation() uuid.UUID { return a.generation }

// Alloc carves out n zeroed bytes from the arena. It returns an error
// once the backing mapping is exhausted; callers fall back to a plain
// heap allocation in that case (see wview/chunk.go's reserve).
func (a *Arena) Alloc(n int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.off+n > len(a.region) {
		logDebugf("arena: exhausted, generation %s, requested %d of %d remaining", a.generation, n, len(a.region)-a.off)
		return nil, apiErr("arena: exhausted")
	}
	b := a.region[a.off : a.off+n : a.off+n]
	a.off += n
	return b, nil
}

// Remaining reports how many bytes are left before the arena is
// exhausted.
func (a *Arena) Remaining() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.region) - a.off
}

// Close unmaps the arena's backing region. Every slice previously
// returned by Alloc becomes invalid to use after Close.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.region == nil {
		return nil
	}
	err := unix.Munmap(a.region)
	a.region = nil
	return err
}

var (
	defaultArenaOnce sync.Once
	defaultArena     *Arena
)

// DefaultArena returns a process-wide arena backing wview's chunk
// allocations, mmapping its region lazily on first use. If the mapping
// fails, it returns nil and callers fall back to a plain heap allocation.
func DefaultArena() *Arena {
	defaultArenaOnce.Do(func() {
		a, err := NewArena(0)
		if err != nil {
			logDebugf("arena: default arena unavailable: %s", err)
			return
		}
		defaultArena = a
	})
	return defaultArena
}
