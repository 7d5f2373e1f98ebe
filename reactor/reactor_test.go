// File: reactor/reactor_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Standalone loop tests: a reactor is run against minimal hooks, without
// a manager, so delivery and shutdown semantics can be observed directly.

package reactor

import (
	"sync"
	"testing"
	"time"

	"github.com/momentics/hioload-iomgr/api"
)

type loopHarness struct {
	r       *IOReactor
	started chan struct{}
	done    chan error
}

func startLoop(t *testing.T, tight bool) *loopHarness {
	t.Helper()
	h := &loopHarness{
		started: make(chan struct{}),
		done:    make(chan error, 1),
	}
	h.r = New(Options{
		Worker:    true,
		TightLoop: tight,
		CPU:       -1,
		Notifier: func(up bool) {
			if up {
				close(h.started)
			}
		},
		Hooks: Hooks{
			OnStarted: func(*IOReactor) (api.IOThread, error) {
				return api.IOThread{Slot: 1, Gen: 1}, nil
			},
			Dispatch: func(msg *api.Msg) {
				if msg.Fn != nil {
					msg.Fn()
				}
			},
		},
	})
	go func() { h.done <- h.r.Run() }()
	select {
	case <-h.started:
	case <-time.After(5 * time.Second):
		t.Fatal("reactor did not start")
	}
	return h
}

func (h *loopHarness) stop(t *testing.T) {
	t.Helper()
	h.r.Stop()
	select {
	case err := <-h.done:
		if err != nil {
			t.Fatalf("loop exited with error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reactor did not stop")
	}
}

func TestReactorDeliversInOrder(t *testing.T) {
	h := startLoop(t, false)

	const n = 100
	seen := make(chan int, n)
	for i := 0; i < n; i++ {
		i := i
		if !h.r.DeliverMsg(api.RunMethodMsg(0, func() { seen <- i })) {
			t.Fatalf("delivery %d rejected", i)
		}
	}
	for i := 0; i < n; i++ {
		select {
		case got := <-seen:
			if got != i {
				t.Fatalf("order broken: want %d got %d", i, got)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("message %d never ran", i)
		}
	}
	h.stop(t)
}

func TestReactorSyncCompletion(t *testing.T) {
	h := startLoop(t, false)
	defer h.stop(t)

	ran := false
	msg := api.RunMethodMsg(0, func() { ran = true })
	var wg sync.WaitGroup
	wg.Add(1)
	msg.Arm(&wg)
	if !h.r.DeliverMsg(msg) {
		t.Fatal("delivery rejected")
	}
	wg.Wait()
	if !ran {
		t.Fatal("completion released before the handler ran")
	}
}

func TestReactorIdentity(t *testing.T) {
	h := startLoop(t, false)
	defer h.stop(t)

	self := h.r.Self()
	if !self.Valid() || self.Slot != 1 || self.Gen != 1 {
		t.Fatalf("unexpected identity %+v", self)
	}
	if !h.r.IsIOReactor() {
		t.Fatal("running loop not reported as io reactor")
	}
	if !h.r.IsWorker() || h.r.IsTightLoopReactor() {
		t.Fatal("mode flags wrong for worker loop")
	}

	// Messages observe the loop-local identity through Current().
	got := make(chan *IOReactor, 1)
	h.r.DeliverMsg(api.RunMethodMsg(0, func() { got <- Current() }))
	select {
	case cur := <-got:
		if cur != h.r {
			t.Fatal("Current() did not resolve to the running loop")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("identity probe never ran")
	}
}

func TestReactorStopRejectsDelivery(t *testing.T) {
	h := startLoop(t, false)
	h.stop(t)

	if h.r.DeliverMsg(api.RunMethodMsg(0, func() {})) {
		t.Fatal("stopped reactor accepted a message")
	}
	if h.r.IsIOReactor() {
		t.Fatal("stopped loop still reported as io reactor")
	}
}

func TestReactorDrainReleasesSyncSenders(t *testing.T) {
	h := startLoop(t, false)

	// Queue enough work that some of it is still in the mailbox when the
	// stop request lands; the drain must release every armed completion.
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		msg := api.RunMethodMsg(0, func() { time.Sleep(time.Millisecond) })
		wg.Add(1)
		msg.Arm(&wg)
		if !h.r.DeliverMsg(msg) {
			wg.Done()
		}
	}
	h.stop(t)

	released := make(chan struct{})
	go func() { wg.Wait(); close(released) }()
	select {
	case <-released:
	case <-time.After(5 * time.Second):
		t.Fatal("sync sender left stranded after stop")
	}
}

func TestTightLoopRunsMessagesAndTimers(t *testing.T) {
	h := startLoop(t, true)
	defer h.stop(t)

	if !h.r.IsTightLoopReactor() {
		t.Fatal("mode flag wrong for tight loop")
	}

	ran := make(chan struct{})
	h.r.DeliverMsg(api.RunMethodMsg(0, func() { close(ran) }))
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("tight loop never drained its mailbox")
	}

	fired := make(chan struct{})
	h.r.DeliverMsg(api.RunMethodMsg(0, func() {
		Current().Timers().Schedule(10*time.Millisecond, false, nil, func(any) {
			close(fired)
		})
	}))
	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("tight loop never fired the thread timer")
	}
}

func TestReactorStopDuringStartupSticks(t *testing.T) {
	inReady := make(chan struct{})
	release := make(chan struct{})
	r := New(Options{
		Worker: true,
		CPU:    -1,
		Hooks: Hooks{
			OnStarted: func(*IOReactor) (api.IOThread, error) {
				return api.IOThread{Slot: 1, Gen: 1}, nil
			},
			OnReady: func(*IOReactor) error {
				close(inReady)
				<-release
				return nil
			},
			Dispatch: func(msg *api.Msg) {},
		},
	})
	done := make(chan error, 1)
	go func() { done <- r.Run() }()

	// Issue the stop while the loop is still inside its ready hook, before
	// it could observe the running state.
	<-inReady
	r.Stop()
	close(release)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("loop exited with error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stop issued during startup was lost")
	}
	if r.DeliverMsg(api.RunMethodMsg(0, func() {})) {
		t.Fatal("stopped reactor accepted a message")
	}
}

func TestReactorHandlerPanicIsContained(t *testing.T) {
	h := startLoop(t, false)
	defer h.stop(t)

	var wg sync.WaitGroup
	msg := api.RunMethodMsg(0, func() { panic("boom") })
	wg.Add(1)
	msg.Arm(&wg)
	h.r.DeliverMsg(msg)
	wg.Wait() // completion still released

	// The loop survives and keeps dispatching.
	ok := make(chan struct{})
	h.r.DeliverMsg(api.RunMethodMsg(0, func() { close(ok) }))
	select {
	case <-ok:
	case <-time.After(5 * time.Second):
		t.Fatal("loop dead after handler panic")
	}
}
