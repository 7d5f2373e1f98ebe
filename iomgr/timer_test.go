// File: iomgr/timer_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package iomgr

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/hioload-iomgr/api"
)

func TestScheduleThreadTimerOutsideLoop(t *testing.T) {
	m := startManager(t, &Config{NumThreads: 1})
	_, err := m.ScheduleThreadTimer(time.Millisecond, false, nil, func(any) {})
	if err != api.ErrNotIOThread {
		t.Fatalf("want ErrNotIOThread, got %v", err)
	}
}

func TestThreadTimerFiresOnOwningReactor(t *testing.T) {
	m := startManager(t, &Config{NumThreads: 2})
	th := m.IOThreads()[0]

	fired := make(chan api.IOThread, 1)
	if !m.RunOnThread(th, func() {
		_, err := m.ScheduleThreadTimer(10*time.Millisecond, false, "tick", func(cookie any) {
			if cookie != "tick" {
				t.Errorf("cookie corrupted: %v", cookie)
			}
			fired <- m.IOThreadSelf()
		})
		if err != nil {
			t.Errorf("schedule: %v", err)
		}
	}, true) {
		t.Fatal("schedule delivery failed")
	}

	select {
	case on := <-fired:
		if on != th {
			t.Fatalf("timer fired on %+v, scheduled on %+v", on, th)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("thread timer never fired")
	}
}

func TestThreadTimerCancelled(t *testing.T) {
	m := startManager(t, &Config{NumThreads: 1})
	th := m.IOThreads()[0]

	var fired atomic.Int32
	var handle api.TimerHandle
	m.RunOnThread(th, func() {
		h, err := m.ScheduleThreadTimer(50*time.Millisecond, false, nil, func(any) {
			fired.Add(1)
		})
		if err != nil {
			t.Errorf("schedule: %v", err)
		}
		handle = h
	}, true)

	// Cancel runs on the owning thread too; the loop serializes it ahead
	// of the deadline.
	m.RunOnThread(th, func() { m.CancelTimer(handle) }, true)
	time.Sleep(150 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("cancelled thread timer fired")
	}
}

func TestGlobalTimerRequiresRunning(t *testing.T) {
	m := New()
	_, err := m.ScheduleGlobalTimer(time.Millisecond, false, nil, api.RegexAll, func(any) {})
	if err != api.ErrNotRunning {
		t.Fatalf("want ErrNotRunning, got %v", err)
	}
}

func TestGlobalTimerOneShotFansOut(t *testing.T) {
	const n = 3
	m := startManager(t, &Config{NumThreads: n})

	var hits atomic.Int32
	_, err := m.ScheduleGlobalTimer(10*time.Millisecond, false, nil, api.RegexAllWorkers, func(any) {
		hits.Add(1)
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	waitFor(t, "global timer fan-out", func() bool { return hits.Load() == n })

	// One-shot: the count must not keep growing.
	time.Sleep(100 * time.Millisecond)
	if got := hits.Load(); got != n {
		t.Fatalf("one-shot fired again, %d hits", got)
	}
}

func TestGlobalTimerRecurringUntilCancel(t *testing.T) {
	m := startManager(t, &Config{NumThreads: 1})

	var hits atomic.Int32
	h, err := m.ScheduleGlobalTimer(10*time.Millisecond, true, nil, api.RegexAllWorkers, func(any) {
		hits.Add(1)
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	waitFor(t, "three recurring firings", func() bool { return hits.Load() >= 3 })
	m.CancelTimer(h)

	// A firing already in flight may still land; after it settles the
	// count must stay put.
	time.Sleep(50 * time.Millisecond)
	settled := hits.Load()
	time.Sleep(100 * time.Millisecond)
	if got := hits.Load(); got != settled {
		t.Fatalf("recurring timer still firing after cancel: %d -> %d", settled, got)
	}
}

func TestGlobalTimerSkipsTightLoops(t *testing.T) {
	m := startManager(t, &Config{NumThreads: 2})

	attached := make(chan struct{})
	go func() {
		_ = m.RunIOLoop(true, nil, func(started bool) {
			if started {
				close(attached)
			}
		})
	}()
	<-attached
	waitFor(t, "user reactor attach", func() bool { return len(m.IOThreads()) == 3 })

	var onWorker, onTight atomic.Int32
	_, err := m.ScheduleGlobalTimer(10*time.Millisecond, true, nil, api.RegexAllWorkers, func(any) {
		if m.AmITightLoopReactor() {
			onTight.Add(1)
		} else {
			onWorker.Add(1)
		}
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	waitFor(t, "worker firings", func() bool { return onWorker.Load() >= 4 })
	if onTight.Load() != 0 {
		t.Fatalf("worker-group timer ran %d times on a tight loop", onTight.Load())
	}
	m.RunOn(api.RegexAllTLoop, func() { m.StopIOLoop() }, false)
}

func TestGlobalTimerStoppedWithManager(t *testing.T) {
	m := startManager(t, &Config{NumThreads: 1})
	var hits atomic.Int32
	if _, err := m.ScheduleGlobalTimer(time.Hour, false, nil, api.RegexAll, func(any) {
		hits.Add(1)
	}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if hits.Load() != 0 {
		t.Fatal("far-future timer fired during shutdown")
	}
	if _, err := m.ScheduleGlobalTimer(time.Millisecond, false, nil, api.RegexAll, func(any) {}); err != api.ErrNotRunning {
		t.Fatalf("schedule after stop: want ErrNotRunning, got %v", err)
	}
}
