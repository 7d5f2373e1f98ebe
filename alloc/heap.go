// File: alloc/heap.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Default general-purpose aligned allocator. Over-allocates by the
// alignment and reslices so the first byte lands on the requested boundary;
// the Go runtime owns reclamation, so Free only drops the reference.

package alloc

import (
	"fmt"
	"unsafe"

	"github.com/momentics/hioload-iomgr/api"
)

// HeapAllocator is the default api.AlignedAllocator.
type HeapAllocator struct{}

var _ api.AlignedAllocator = (*HeapAllocator)(nil)

// NewHeapAllocator returns the general-purpose aligned allocator.
func NewHeapAllocator() *HeapAllocator { return &HeapAllocator{} }

// AlignedAlloc returns a size-byte slice aligned to align.
func (*HeapAllocator) AlignedAlloc(align, size uint64) ([]byte, error) {
	if align == 0 || align&(align-1) != 0 {
		return nil, fmt.Errorf("alloc: align %d is not a power of two: %w", align, api.ErrAllocFailed)
	}
	if size == 0 {
		return nil, fmt.Errorf("alloc: zero size: %w", api.ErrAllocFailed)
	}
	raw := make([]byte, size+align)
	off := uint64(0)
	if rem := uint64(uintptr(unsafe.Pointer(&raw[0]))) & (align - 1); rem != 0 {
		off = align - rem
	}
	return raw[off : off+size : off+size], nil
}

// AlignedFree is a no-op; the runtime reclaims the backing array.
func (*HeapAllocator) AlignedFree(buf []byte) {}

// AlignedRealloc allocates a new aligned buffer and copies the prefix.
func (a *HeapAllocator) AlignedRealloc(buf []byte, align, newSize uint64) ([]byte, error) {
	nb, err := a.AlignedAlloc(align, newSize)
	if err != nil {
		return nil, err
	}
	copy(nb, buf)
	return nb, nil
}
