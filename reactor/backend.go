// File: reactor/backend.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Worker-loop wait backend. The backend owns the blocking event wait; the
// loop owns everything else. Linux workers get an epoll backend with an
// eventfd wakeup; other platforms fall back to a channel wait that carries
// mailbox and timer wakeups but no device readiness.

package reactor

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/momentics/hioload-iomgr/api"
)

// backendEvent is one readiness notification surfaced by a backend wait.
type backendEvent struct {
	Fd     int
	Events api.EventInterest
}

type backend interface {
	init() error
	arm(dev *api.IODevice) error
	rearm(dev *api.IODevice) error
	disarm(dev *api.IODevice) error

	// wait blocks until woken, a device is ready, or timeout elapses.
	// A negative timeout blocks indefinitely.
	wait(timeout time.Duration) ([]backendEvent, error)

	// wakeup interrupts a concurrent wait. Safe from any thread.
	wakeup()

	close() error
}

// chanBackend is the portable worker backend: it blocks on the mailbox
// wake channel and supports no device readiness.
type chanBackend struct {
	clk  clock.Clock
	wake <-chan struct{}
	stop chan struct{}
}

func newChanBackend(clk clock.Clock, wake <-chan struct{}) *chanBackend {
	return &chanBackend{clk: clk, wake: wake, stop: make(chan struct{}, 1)}
}

func (b *chanBackend) init() error                      { return nil }
func (b *chanBackend) arm(dev *api.IODevice) error      { return api.ErrNotSupported }
func (b *chanBackend) rearm(dev *api.IODevice) error    { return api.ErrNotSupported }
func (b *chanBackend) disarm(dev *api.IODevice) error   { return nil }
func (b *chanBackend) close() error                     { return nil }

func (b *chanBackend) wait(timeout time.Duration) ([]backendEvent, error) {
	if timeout < 0 {
		select {
		case <-b.wake:
		case <-b.stop:
		}
		return nil, nil
	}
	t := b.clk.Timer(timeout)
	defer t.Stop()
	select {
	case <-b.wake:
	case <-b.stop:
	case <-t.C:
	}
	return nil, nil
}

func (b *chanBackend) wakeup() {
	select {
	case b.stop <- struct{}{}:
	default:
	}
}
