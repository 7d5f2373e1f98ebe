// File: fake/allocator.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"sync/atomic"

	"github.com/momentics/hioload-iomgr/api"
)

// Allocator is a counting api.AlignedAllocator for leak assertions in
// collaborator tests. Alignment is not honoured; only the bookkeeping is.
type Allocator struct {
	Allocs atomic.Int64
	Frees  atomic.Int64

	// FailAll makes every allocation return api.ErrAllocFailed.
	FailAll bool
}

var _ api.AlignedAllocator = (*Allocator)(nil)

func (a *Allocator) AlignedAlloc(align, size uint64) ([]byte, error) {
	if a.FailAll {
		return nil, api.ErrAllocFailed
	}
	a.Allocs.Add(1)
	return make([]byte, size), nil
}

func (a *Allocator) AlignedFree(buf []byte) { a.Frees.Add(1) }

func (a *Allocator) AlignedRealloc(buf []byte, align, newSize uint64) ([]byte, error) {
	nb, err := a.AlignedAlloc(align, newSize)
	if err != nil {
		return nil, err
	}
	copy(nb, buf)
	a.Frees.Add(1)
	return nb, nil
}

// Outstanding reports live allocations.
func (a *Allocator) Outstanding() int64 { return a.Allocs.Load() - a.Frees.Load() }
