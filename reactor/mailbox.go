// File: reactor/mailbox.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Inbound message queue of a reactor. Multiple senders, one consumer (the
// loop). A single FIFO under one mutex keeps per-sender delivery order; the
// wake channel carries at most one pending wakeup for blocking loops.

package reactor

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-iomgr/api"
)

// Mailbox is the MPSC inbound queue of one reactor.
type Mailbox struct {
	mu     sync.Mutex
	q      *queue.Queue
	wake   chan struct{}
	closed bool
}

// NewMailbox returns an empty open mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{
		q:    queue.New(),
		wake: make(chan struct{}, 1),
	}
}

// Push enqueues a message and signals the wake channel. Returns false once
// the mailbox is closed; the message is not retained.
func (mb *Mailbox) Push(msg *api.Msg) bool {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return false
	}
	mb.q.Add(msg)
	mb.mu.Unlock()

	select {
	case mb.wake <- struct{}{}:
	default:
	}
	return true
}

// Pop removes the oldest message, if any.
func (mb *Mailbox) Pop() (*api.Msg, bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.q.Length() == 0 {
		return nil, false
	}
	return mb.q.Remove().(*api.Msg), true
}

// Len returns the number of queued messages.
func (mb *Mailbox) Len() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.q.Length()
}

// Wake exposes the wakeup channel for blocking loops.
func (mb *Mailbox) Wake() <-chan struct{} { return mb.wake }

// Close rejects further pushes and returns the undelivered backlog so the
// closing loop can drain it.
func (mb *Mailbox) Close() []*api.Msg {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return nil
	}
	mb.closed = true
	backlog := make([]*api.Msg, 0, mb.q.Length())
	for mb.q.Length() > 0 {
		backlog = append(backlog, mb.q.Remove().(*api.Msg))
	}
	return backlog
}
