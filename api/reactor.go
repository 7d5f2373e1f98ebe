// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reactor contract and thread addressing types. A reactor is a thread-bound
// event loop owning its devices, mailbox and thread-local timers. Callers
// never touch a reactor's private state directly; all cross-reactor
// interaction goes through the manager's message bus.

package api

// IOThread is an opaque, copyable handle identifying one reactor thread.
// It does not own the reactor and is valid only while the reactor is live.
// The generation counter lets the identity table reuse slots while keeping
// stale handles detectable.
type IOThread struct {
	Slot int32
	Gen  uint32
}

// InvalidIOThread is the zero-value-adjacent sentinel for "no thread".
var InvalidIOThread = IOThread{Slot: -1}

// Valid reports whether the handle ever referred to a reactor.
func (t IOThread) Valid() bool { return t.Slot >= 0 }

// ThreadRegex selects a dynamic subset of live reactors. It is resolved
// against the identity table at dispatch time, never cached.
type ThreadRegex int

const (
	RegexAll ThreadRegex = iota
	RegexAllWorkers
	RegexAllTLoop
	RegexRandomWorker
	RegexRandomTLoop
)

func (r ThreadRegex) String() string {
	switch r {
	case RegexAll:
		return "all"
	case RegexAllWorkers:
		return "all-workers"
	case RegexAllTLoop:
		return "all-tight-loop"
	case RegexRandomWorker:
		return "random-worker"
	case RegexRandomTLoop:
		return "random-tight-loop"
	default:
		return "unknown"
	}
}

// Reactor is the per-thread event loop consumed by the manager. Concrete
// implementations live in the reactor package; collaborators receive this
// interface and must not retain it past the thread-stopped notification.
type Reactor interface {
	// Self returns the identity handle assigned when the loop attached.
	Self() IOThread

	// Classification. IsIOReactor reports whether the loop services devices
	// at all; IsTightLoopReactor reports the spin-mode (poll) flavor;
	// IsWorker distinguishes pool-owned threads from user-attached ones.
	IsIOReactor() bool
	IsTightLoopReactor() bool
	IsWorker() bool

	// DeliverMsg enqueues a message and wakes the loop if it can block.
	// Returns false once the reactor has begun stopping; ownership of the
	// message then reverts to the caller.
	DeliverMsg(msg *Msg) bool

	// AddDevice and RemoveDevice bind or unbind a device on the loop's
	// thread. RescheduleDevice updates readiness interest in place.
	AddDevice(dev *IODevice) error
	RemoveDevice(dev *IODevice) error
	RescheduleDevice(dev *IODevice, interest EventInterest) error

	// Stop asks the loop to quiesce. Safe from any thread, idempotent.
	Stop()
}

// ThreadStateNotifier observes a reactor thread entering (started=true) or
// leaving (started=false) service. Invoked on the reactor's own thread.
type ThreadStateNotifier func(started bool)

// DeviceSelector filters which devices a user-attached reactor is willing
// to adopt. A nil selector accepts everything.
type DeviceSelector func(dev *IODevice) bool
