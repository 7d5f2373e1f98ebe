// File: alloc/alloc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Process-wide aligned-allocator binding. The manager binds an
// implementation exactly once at start (heap by default, DMA/pinned for
// poll-mode backends); hot paths call the package-level helpers without
// further indirection.

package alloc

import (
	"sync/atomic"

	"github.com/momentics/hioload-iomgr/api"
)

var current atomic.Pointer[holder]

type holder struct{ impl api.AlignedAllocator }

func init() {
	current.Store(&holder{impl: NewHeapAllocator()})
}

// Bind installs the process-wide allocator. Bound once at manager start;
// not intended for per-call swapping.
func Bind(a api.AlignedAllocator) {
	if a == nil {
		a = NewHeapAllocator()
	}
	current.Store(&holder{impl: a})
}

// Current returns the bound allocator.
func Current() api.AlignedAllocator { return current.Load().impl }

// IOBufAlloc allocates an aligned I/O buffer through the bound allocator.
func IOBufAlloc(align, size uint64) ([]byte, error) {
	return Current().AlignedAlloc(align, size)
}

// IOBufFree releases a buffer obtained from IOBufAlloc.
func IOBufFree(buf []byte) { Current().AlignedFree(buf) }

// IOBufRealloc resizes a buffer preserving its prefix contents.
func IOBufRealloc(buf []byte, align, newSize uint64) ([]byte, error) {
	return Current().AlignedRealloc(buf, align, newSize)
}
