//go:build !linux
// +build !linux

// File: alloc/dma_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-Linux fallback: poll-mode backends are Linux-only, so the DMA
// allocator degrades to the heap allocator elsewhere.

package alloc

// DMAAllocator falls back to heap allocation on platforms without the
// mmap/mlock path.
type DMAAllocator struct {
	HeapAllocator
}

// NewDMAAllocator returns the fallback allocator.
func NewDMAAllocator() *DMAAllocator { return &DMAAllocator{} }
