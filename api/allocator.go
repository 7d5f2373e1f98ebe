// File: api/allocator.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pluggable aligned-allocator contract backing iobuf_alloc/free/realloc.
// The implementation is bound once at manager start: the general-purpose
// heap allocator by default, a DMA/pinned allocator when a poll-mode drive
// backend is selected.

package api

// AlignedAllocator provides aligned buffer management for I/O paths.
// Failure is reported through the error return, never substituted.
type AlignedAllocator interface {
	// AlignedAlloc returns a buffer of exactly size bytes whose first byte
	// sits on an align boundary. align must be a power of two.
	AlignedAlloc(align, size uint64) ([]byte, error)

	// AlignedFree returns a buffer obtained from AlignedAlloc.
	AlignedFree(buf []byte)

	// AlignedRealloc grows or shrinks buf preserving its prefix contents.
	AlignedRealloc(buf []byte, align, newSize uint64) ([]byte, error)
}
