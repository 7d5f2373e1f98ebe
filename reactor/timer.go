// File: reactor/timer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Thread-local timer list. Entries live in a min-heap keyed by deadline and
// fire on the owning reactor's loop, so callbacks see no cross-thread
// interleaving. Cancellation goes through the token only; a fired one-shot
// token is inert.

package reactor

import (
	"container/heap"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/momentics/hioload-iomgr/api"
)

type timerEntry struct {
	token     uint64
	at        time.Time
	period    time.Duration
	recurring bool
	cookie    any
	cb        api.TimerCallback
	index     int // heap position, -1 when popped
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x any)         { e := x.(*timerEntry); e.index = len(*h); *h = append(*h, e) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// ThreadTimerList is the timer domain owned by one reactor.
type ThreadTimerList struct {
	mu        sync.Mutex
	clk       clock.Clock
	heap      timerHeap
	entries   map[uint64]*timerEntry
	nextToken uint64
	stopped   bool
}

var _ api.TimerOwner = (*ThreadTimerList)(nil)

// NewThreadTimerList builds a timer list on the given clock.
func NewThreadTimerList(clk clock.Clock) *ThreadTimerList {
	return &ThreadTimerList{
		clk:     clk,
		entries: make(map[uint64]*timerEntry),
	}
}

// Schedule arms a timer after d. Recurring timers re-arm with the same
// delay after each firing until cancelled or the owner stops.
func (tl *ThreadTimerList) Schedule(d time.Duration, recurring bool, cookie any, cb api.TimerCallback) api.TimerHandle {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.stopped {
		return api.InvalidTimerHandle
	}
	tl.nextToken++
	e := &timerEntry{
		token:     tl.nextToken,
		at:        tl.clk.Now().Add(d),
		period:    d,
		recurring: recurring,
		cookie:    cookie,
		cb:        cb,
	}
	tl.entries[e.token] = e
	heap.Push(&tl.heap, e)
	return api.TimerHandle{Owner: tl, Token: e.token}
}

// Cancel removes a pending firing. Cancelling a fired one-shot is a no-op.
func (tl *ThreadTimerList) Cancel(token uint64) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	e, ok := tl.entries[token]
	if !ok {
		return
	}
	delete(tl.entries, token)
	if e.index >= 0 {
		heap.Remove(&tl.heap, e.index)
	}
}

// FireDue runs every callback whose deadline has passed and returns the
// count fired. Callbacks execute outside the list lock, on the caller's
// (the reactor's) thread.
func (tl *ThreadTimerList) FireDue() int {
	now := tl.clk.Now()
	var due []*timerEntry
	tl.mu.Lock()
	for len(tl.heap) > 0 && !tl.heap[0].at.After(now) {
		e := heap.Pop(&tl.heap).(*timerEntry)
		due = append(due, e)
		if e.recurring {
			e.at = now.Add(e.period)
			heap.Push(&tl.heap, e)
		} else {
			delete(tl.entries, e.token)
		}
	}
	tl.mu.Unlock()

	for _, e := range due {
		e.cb(e.cookie)
	}
	return len(due)
}

// UntilNext returns the delay to the earliest pending deadline. ok is false
// when the list is empty.
func (tl *ThreadTimerList) UntilNext() (time.Duration, bool) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if len(tl.heap) == 0 {
		return 0, false
	}
	d := tl.heap[0].at.Sub(tl.clk.Now())
	if d < 0 {
		d = 0
	}
	return d, true
}

// StopAll cancels every pending timer; the list accepts no new ones.
func (tl *ThreadTimerList) StopAll() {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.stopped = true
	tl.heap = nil
	tl.entries = make(map[uint64]*timerEntry)
}
