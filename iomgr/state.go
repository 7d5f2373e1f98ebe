// File: iomgr/state.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Lifecycle state machine. The state advances monotonically through the
// startup ladder and is driven back to Stopped only via Stop. The value
// lives in an atomic; transitions additionally take the waiter lock so a
// broadcast can never be lost between a waiter's predicate check and its
// wait.

package iomgr

import "sync"

// State is the manager lifecycle state.
type State int32

const (
	Stopped State = iota
	InterfaceInit
	ReactorInit
	SysInit
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case InterfaceInit:
		return "interface_init"
	case ReactorInit:
		return "reactor_init"
	case SysInit:
		return "sys_init"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// State returns the current lifecycle state with acquire semantics.
func (m *Manager) State() State { return State(m.state.Load()) }

// IsReady reports whether the manager is in steady running state.
func (m *Manager) IsReady() bool { return m.State() == Running }

func (m *Manager) setStateAndNotify(s State) {
	m.cvMu.Lock()
	m.state.Store(int32(s))
	m.cvMu.Unlock()
	m.cv.Broadcast()
}

// casState advances the state only from an expected predecessor, keeping
// concurrent Start/Stop callers from corrupting the barrier counters.
func (m *Manager) casState(from, to State) bool {
	m.cvMu.Lock()
	if State(m.state.Load()) != from {
		m.cvMu.Unlock()
		return false
	}
	m.state.Store(int32(to))
	m.cvMu.Unlock()
	m.cv.Broadcast()
	return true
}

// WaitForState blocks until the state equals s. Returns immediately when
// the predicate already holds; safe to call before Start.
func (m *Manager) WaitForState(s State) {
	m.cvMu.Lock()
	for State(m.state.Load()) != s {
		m.cv.Wait()
	}
	m.cvMu.Unlock()
}

// WaitToBeReady blocks the caller until the manager reaches Running.
func (m *Manager) WaitToBeReady() { m.WaitForState(Running) }

// WaitToBeStopped blocks the caller until the manager reaches Stopped.
func (m *Manager) WaitToBeStopped() { m.WaitForState(Stopped) }

// EnsureRunning logs and waits for readiness when the manager is not yet
// running.
func (m *Manager) EnsureRunning() {
	if !m.IsReady() {
		m.log.Info("io manager is not running, waiting for it to be ready")
		m.WaitToBeReady()
		m.log.Info("io manager is ready now")
	}
}

func newCond(mu *sync.Mutex) *sync.Cond { return sync.NewCond(mu) }
