// File: reactor/timer_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Thread timer list semantics on a mocked clock: the list itself never
// sleeps, so every case here is fully deterministic.

package reactor

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestThreadTimerOneShot(t *testing.T) {
	clk := clock.NewMock()
	tl := NewThreadTimerList(clk)

	fired := 0
	var got any
	h := tl.Schedule(100*time.Millisecond, false, "cookie", func(cookie any) {
		fired++
		got = cookie
	})
	if !h.Valid() {
		t.Fatal("schedule returned invalid handle")
	}

	if n := tl.FireDue(); n != 0 {
		t.Fatalf("timer fired %d times before deadline", n)
	}
	clk.Add(99 * time.Millisecond)
	if n := tl.FireDue(); n != 0 {
		t.Fatalf("timer fired %d times %v early", n, time.Millisecond)
	}
	clk.Add(1 * time.Millisecond)
	if n := tl.FireDue(); n != 1 {
		t.Fatalf("expected one firing, got %d", n)
	}
	if got != "cookie" {
		t.Fatalf("cookie not delivered: %v", got)
	}

	// A fired one-shot must never fire again; cancelling it is a no-op.
	clk.Add(time.Second)
	if n := tl.FireDue(); n != 0 {
		t.Fatalf("one-shot refired %d times", n)
	}
	tl.Cancel(h.Token)
	if fired != 1 {
		t.Fatalf("fired %d times total", fired)
	}
}

func TestThreadTimerCancelPreventsFiring(t *testing.T) {
	clk := clock.NewMock()
	tl := NewThreadTimerList(clk)

	h := tl.Schedule(50*time.Millisecond, false, nil, func(any) {
		t.Error("cancelled timer fired")
	})
	tl.Cancel(h.Token)
	clk.Add(time.Second)
	if n := tl.FireDue(); n != 0 {
		t.Fatalf("cancelled timer fired %d times", n)
	}
}

func TestThreadTimerRecurring(t *testing.T) {
	clk := clock.NewMock()
	tl := NewThreadTimerList(clk)

	fired := 0
	h := tl.Schedule(50*time.Millisecond, true, nil, func(any) { fired++ })

	for i := 1; i <= 3; i++ {
		clk.Add(50 * time.Millisecond)
		if n := tl.FireDue(); n != 1 {
			t.Fatalf("round %d: expected one firing, got %d", i, n)
		}
	}
	tl.Cancel(h.Token)
	clk.Add(time.Second)
	if n := tl.FireDue(); n != 0 {
		t.Fatalf("recurring timer fired %d times after cancel", n)
	}
	if fired != 3 {
		t.Fatalf("expected 3 firings, got %d", fired)
	}
}

func TestThreadTimerUntilNext(t *testing.T) {
	clk := clock.NewMock()
	tl := NewThreadTimerList(clk)

	if _, ok := tl.UntilNext(); ok {
		t.Fatal("empty list reported a deadline")
	}
	tl.Schedule(200*time.Millisecond, false, nil, func(any) {})
	tl.Schedule(100*time.Millisecond, false, nil, func(any) {})

	d, ok := tl.UntilNext()
	if !ok || d != 100*time.Millisecond {
		t.Fatalf("expected 100ms to next deadline, got %v ok=%v", d, ok)
	}
}

func TestThreadTimerStopAll(t *testing.T) {
	clk := clock.NewMock()
	tl := NewThreadTimerList(clk)
	tl.Schedule(time.Millisecond, true, nil, func(any) {
		t.Error("timer fired after StopAll")
	})
	tl.StopAll()
	clk.Add(time.Second)
	if n := tl.FireDue(); n != 0 {
		t.Fatalf("fired %d after StopAll", n)
	}
	if h := tl.Schedule(time.Millisecond, false, nil, func(any) {}); h.Valid() {
		t.Fatal("schedule accepted after StopAll")
	}
}
