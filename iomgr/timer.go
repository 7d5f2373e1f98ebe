// File: iomgr/timer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Timer subsystem facade and the global timer domain. Thread timers live
// on the calling reactor and fire on its own loop; global timers fire on a
// manager goroutine and fan out to a thread-group selector through the
// message bus.

package iomgr

import (
	"container/heap"
	"sync"
	"time"

	"github.com/momentics/hioload-iomgr/api"
	"github.com/momentics/hioload-iomgr/reactor"
)

// ScheduleThreadTimer arms a timer on the calling reactor's thread-local
// list. It must be called from inside a reactor loop; the callback fires
// on that same loop, so it sees no cross-thread interleaving.
func (m *Manager) ScheduleThreadTimer(after time.Duration, recurring bool, cookie any, cb api.TimerCallback) (api.TimerHandle, error) {
	r := reactor.Current()
	if r == nil {
		return api.InvalidTimerHandle, api.ErrNotIOThread
	}
	h := r.Timers().Schedule(after, recurring, cookie, cb)
	if !h.Valid() {
		return api.InvalidTimerHandle, api.ErrNotRunning
	}
	return h, nil
}

// ScheduleGlobalTimer arms a timer that fires by multicasting cb to the
// reactors matched by rgx at each deadline.
func (m *Manager) ScheduleGlobalTimer(after time.Duration, recurring bool, cookie any, rgx api.ThreadRegex, cb api.TimerCallback) (api.TimerHandle, error) {
	gt := m.globalTimer.Load()
	if gt == nil {
		return api.InvalidTimerHandle, api.ErrNotRunning
	}
	return gt.schedule(after, recurring, cookie, rgx, cb)
}

// CancelTimer removes a pending (or future, for recurring) firing.
// Cancelling an already-fired one-shot is a no-op.
func (m *Manager) CancelTimer(h api.TimerHandle) {
	if h.Valid() {
		h.Owner.Cancel(h.Token)
	}
}

/******** global timer domain ********/

type globalEntry struct {
	token     uint64
	at        time.Time
	period    time.Duration
	recurring bool
	cookie    any
	rgx       api.ThreadRegex
	cb        api.TimerCallback
	index     int
}

type globalHeap []*globalEntry

func (h globalHeap) Len() int           { return len(h) }
func (h globalHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h globalHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *globalHeap) Push(x any) {
	e := x.(*globalEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *globalHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

type globalTimer struct {
	m *Manager

	mu        sync.Mutex
	heap      globalHeap
	entries   map[uint64]*globalEntry
	nextToken uint64

	wake   chan struct{}
	stopCh chan struct{}
	done   chan struct{}
}

var _ api.TimerOwner = (*globalTimer)(nil)

func newGlobalTimer(m *Manager) *globalTimer {
	gt := &globalTimer{
		m:       m,
		entries: make(map[uint64]*globalEntry),
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go gt.run()
	return gt
}

func (gt *globalTimer) schedule(after time.Duration, recurring bool, cookie any, rgx api.ThreadRegex, cb api.TimerCallback) (api.TimerHandle, error) {
	gt.mu.Lock()
	gt.nextToken++
	e := &globalEntry{
		token:     gt.nextToken,
		at:        gt.m.clk.Now().Add(after),
		period:    after,
		recurring: recurring,
		cookie:    cookie,
		rgx:       rgx,
		cb:        cb,
	}
	gt.entries[e.token] = e
	heap.Push(&gt.heap, e)
	gt.mu.Unlock()

	select {
	case gt.wake <- struct{}{}:
	default:
	}
	return api.TimerHandle{Owner: gt, Token: e.token}, nil
}

// Cancel implements api.TimerOwner.
func (gt *globalTimer) Cancel(token uint64) {
	gt.mu.Lock()
	defer gt.mu.Unlock()
	e, ok := gt.entries[token]
	if !ok {
		return
	}
	delete(gt.entries, token)
	if e.index >= 0 {
		heap.Remove(&gt.heap, e.index)
	}
}

func (gt *globalTimer) stop() {
	close(gt.stopCh)
	<-gt.done
}

func (gt *globalTimer) run() {
	defer close(gt.done)
	for {
		gt.fireDue()

		gt.mu.Lock()
		var next time.Duration = -1
		if len(gt.heap) > 0 {
			next = gt.heap[0].at.Sub(gt.m.clk.Now())
			if next < 0 {
				next = 0
			}
		}
		gt.mu.Unlock()

		if next < 0 {
			select {
			case <-gt.wake:
			case <-gt.stopCh:
				return
			}
			continue
		}
		t := gt.m.clk.Timer(next)
		select {
		case <-t.C:
		case <-gt.wake:
			t.Stop()
		case <-gt.stopCh:
			t.Stop()
			return
		}
	}
}

func (gt *globalTimer) fireDue() {
	now := gt.m.clk.Now()
	var due []*globalEntry
	gt.mu.Lock()
	for len(gt.heap) > 0 && !gt.heap[0].at.After(now) {
		e := heap.Pop(&gt.heap).(*globalEntry)
		due = append(due, e)
		if e.recurring {
			e.at = now.Add(e.period)
			heap.Push(&gt.heap, e)
		} else {
			delete(gt.entries, e.token)
		}
	}
	gt.mu.Unlock()

	for _, e := range due {
		if gt.m.metrics != nil {
			gt.m.metrics.TimersFired.Inc()
		}
		cb, cookie := e.cb, e.cookie
		gt.m.RunOn(e.rgx, func() { cb(cookie) }, false)
	}
}
