// File: api/timer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Timer handle model shared by the thread-local and global timer domains.

package api

// TimerCallback is invoked when a timer fires. The cookie is the value
// handed to the schedule call, typed at the call site.
type TimerCallback func(cookie any)

// TimerOwner is the subsystem a handle cancels against. Both the
// per-reactor timer list and the manager's global timer implement it.
type TimerOwner interface {
	Cancel(token uint64)
}

// TimerHandle pairs the owning timer subsystem with an opaque slot token.
// It is used only to cancel; it becomes inert once a one-shot fires or the
// timer is cancelled, and cancelling again is a no-op.
type TimerHandle struct {
	Owner TimerOwner
	Token uint64
}

// InvalidTimerHandle is returned when scheduling fails.
var InvalidTimerHandle = TimerHandle{}

// Valid reports whether the handle refers to a scheduled timer.
func (h TimerHandle) Valid() bool { return h.Owner != nil }
