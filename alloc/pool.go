// File: alloc/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Size-classed recycling pool on top of the bound aligned allocator. Hot
// paths that churn iobufs of similar sizes borrow from here instead of
// hitting the allocator on every operation.

package alloc

import "sync"

const (
	minClass  = 512
	poolDepth = 1024
)

// BufPool recycles aligned iobufs in power-of-two size classes. Safe for
// concurrent use from any thread.
type BufPool struct {
	align uint64

	mu      sync.Mutex
	classes map[uint64]chan []byte
}

// NewBufPool builds a pool whose buffers all share one alignment.
func NewBufPool(align uint64) *BufPool {
	return &BufPool{
		align:   align,
		classes: make(map[uint64]chan []byte),
	}
}

// sizeClass rounds size up to the next power of two, at least minClass.
func sizeClass(size uint64) uint64 {
	c := uint64(minClass)
	for c < size {
		c <<= 1
	}
	return c
}

func (p *BufPool) class(size uint64) chan []byte {
	p.mu.Lock()
	ch, ok := p.classes[size]
	if !ok {
		ch = make(chan []byte, poolDepth)
		p.classes[size] = ch
	}
	p.mu.Unlock()
	return ch
}

// Get returns an aligned buffer of exactly size bytes, recycled when a
// matching one is pooled.
func (p *BufPool) Get(size uint64) ([]byte, error) {
	class := sizeClass(size)
	select {
	case buf := <-p.class(class):
		return buf[:size], nil
	default:
	}
	buf, err := IOBufAlloc(p.align, class)
	if err != nil {
		return nil, err
	}
	return buf[:size], nil
}

// Put recycles buf; when its class is saturated the buffer goes back to
// the allocator.
func (p *BufPool) Put(buf []byte) {
	full := buf[:cap(buf)]
	class := uint64(len(full))
	// Only buffers carved by Get come back; anything off-class returns to
	// the allocator.
	if class < minClass || class != sizeClass(class) {
		IOBufFree(full)
		return
	}
	select {
	case p.class(class) <- full:
	default:
		IOBufFree(full)
	}
}

// Drain releases every pooled buffer back to the allocator.
func (p *BufPool) Drain() {
	p.mu.Lock()
	classes := p.classes
	p.classes = make(map[uint64]chan []byte)
	p.mu.Unlock()
	for _, ch := range classes {
	drain:
		for {
			select {
			case buf := <-ch:
				IOBufFree(buf)
			default:
				break drain
			}
		}
	}
}
