// File: api/msg.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Inter-reactor message model. Messages are created by the sender and
// consumed by exactly one receiving reactor; multicast delivery clones the
// message per receiver so no two loops ever share mutable payload state.
// Synchronous variants carry a completion armed by the sender and released
// exactly once per delivered clone.

package api

import "sync"

// MsgType discriminates built-in message kinds. Interfaces may define their
// own types at or above MsgUserBase.
type MsgType uint8

const (
	// MsgRunMethod carries a boxed, once-invoked unit of work in Msg.Fn.
	// Dispatched by the manager's internal module without user registration.
	MsgRunMethod MsgType = iota

	// MsgDeviceReschedule asks the owning reactor to update a device's
	// readiness interest. Payload is the new EventInterest.
	MsgDeviceReschedule

	// MsgUserBase is the first type value available to interface-defined
	// message kinds.
	MsgUserBase MsgType = 16
)

// ModuleID is the small-integer handle returned by module registration.
type ModuleID uint32

// InvalidModuleID is returned when the module table is exhausted.
const InvalidModuleID = ModuleID(1<<32 - 1)

// MsgHandler is a registered per-module dispatch callback. It runs on the
// receiving reactor's thread.
type MsgHandler func(msg *Msg)

// Msg is one unit of cross-thread work. The sender constructs it, the
// target reactor consumes it; if delivery fails ownership reverts to the
// sender for disposal.
type Msg struct {
	Type    MsgType
	Module  ModuleID
	Payload any    // typed at the call site; replaces an untyped pointer
	Fn      func() // set only for MsgRunMethod

	Device *IODevice // set only for device-targeted built-ins

	wait *sync.WaitGroup
}

// NewMsg constructs an asynchronous message.
func NewMsg(t MsgType, module ModuleID, payload any) *Msg {
	return &Msg{Type: t, Module: module, Payload: payload}
}

// RunMethodMsg boxes fn for execution on the target reactor.
func RunMethodMsg(module ModuleID, fn func()) *Msg {
	return &Msg{Type: MsgRunMethod, Module: module, Fn: fn}
}

// Arm attaches a completion the sender will block on. The sender owns the
// Add bookkeeping; each delivered clone releases it exactly once.
func (m *Msg) Arm(wg *sync.WaitGroup) { m.wait = wg }

// IsSync reports whether a sender is blocked on this message.
func (m *Msg) IsSync() bool { return m.wait != nil }

// Complete releases the sender-side completion, if armed. Idempotent per
// message instance.
func (m *Msg) Complete() {
	if m.wait != nil {
		m.wait.Done()
		m.wait = nil
	}
}

// Clone produces a per-receiver copy for multicast. The completion, when
// armed, is shared: every clone releases it once, the sender waits for all.
func (m *Msg) Clone() *Msg {
	c := *m
	return &c
}
