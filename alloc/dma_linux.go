//go:build linux
// +build linux

// File: alloc/dma_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// DMA/pinned aligned allocator for poll-mode drive backends. Buffers come
// from anonymous mmap regions (page aligned by construction) and are locked
// into RAM best-effort so DMA-capable hardware never faults on them.

package alloc

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-iomgr/api"
)

// DMAAllocator satisfies api.AlignedAllocator with mmap-backed, mlocked
// regions. Alignments up to the page size are honored by page alignment;
// larger alignments are rejected.
type DMAAllocator struct {
	mu      sync.Mutex
	regions map[uintptr][]byte // base address -> full mapping
}

var _ api.AlignedAllocator = (*DMAAllocator)(nil)

// NewDMAAllocator returns the pinned-memory allocator.
func NewDMAAllocator() *DMAAllocator {
	return &DMAAllocator{regions: make(map[uintptr][]byte)}
}

func (a *DMAAllocator) AlignedAlloc(align, size uint64) ([]byte, error) {
	pageSize := uint64(unix.Getpagesize())
	if align == 0 || align&(align-1) != 0 || align > pageSize {
		return nil, fmt.Errorf("alloc: dma align %d unsupported: %w", align, api.ErrAllocFailed)
	}
	if size == 0 {
		return nil, fmt.Errorf("alloc: zero size: %w", api.ErrAllocFailed)
	}
	mapLen := int((size + pageSize - 1) / pageSize * pageSize)
	region, err := unix.Mmap(-1, 0, mapLen,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("alloc: mmap %d bytes: %w", mapLen, err)
	}
	// Best effort: a failed mlock still yields usable (unpinned) memory.
	_ = unix.Mlock(region)

	base := uintptr(unsafe.Pointer(&region[0]))
	a.mu.Lock()
	a.regions[base] = region
	a.mu.Unlock()
	return region[:size:size], nil
}

func (a *DMAAllocator) AlignedFree(buf []byte) {
	if len(buf) == 0 {
		return
	}
	base := uintptr(unsafe.Pointer(&buf[0]))
	a.mu.Lock()
	region, ok := a.regions[base]
	if ok {
		delete(a.regions, base)
	}
	a.mu.Unlock()
	if ok {
		_ = unix.Munlock(region)
		_ = unix.Munmap(region)
	}
}

func (a *DMAAllocator) AlignedRealloc(buf []byte, align, newSize uint64) ([]byte, error) {
	nb, err := a.AlignedAlloc(align, newSize)
	if err != nil {
		return nil, err
	}
	copy(nb, buf)
	a.AlignedFree(buf)
	return nb, nil
}
