// File: iomgr/msgbus.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Inter-thread message bus: unicast and group multicast, asynchronous and
// synchronous. Messages to a single target keep per-sender FIFO order; the
// synchronous variants block the sender on a completion shared with every
// delivered clone. The reached count of a multicast is the number of
// reactors actually enqueued to — partial delivery is reported, not hidden.

package iomgr

import (
	"sync"

	"go.uber.org/zap"

	"github.com/momentics/hioload-iomgr/api"
	"github.com/momentics/hioload-iomgr/reactor"
)

// RegisterMsgModule installs handler in the next free slot. Ids are unique
// and never reused while the process runs; registration fails once the
// fixed table is exhausted without corrupting existing entries.
func (m *Manager) RegisterMsgModule(handler api.MsgHandler) (api.ModuleID, error) {
	m.msgMu.Lock()
	defer m.msgMu.Unlock()
	if m.handlerCount >= MaxMsgModules {
		return api.InvalidModuleID, api.ErrModuleTableFull
	}
	id := api.ModuleID(m.handlerCount)
	m.handlers[id] = handler
	m.handlerCount++
	return id, nil
}

// GetMsgModule returns the handler registered under id, nil when unknown.
func (m *Manager) GetMsgModule(id api.ModuleID) api.MsgHandler {
	if id >= MaxMsgModules {
		return nil
	}
	m.msgMu.RLock()
	defer m.msgMu.RUnlock()
	return m.handlers[id]
}

// dispatchMsg runs on the receiving reactor's thread.
func (m *Manager) dispatchMsg(msg *api.Msg) {
	h := m.GetMsgModule(msg.Module)
	if h == nil {
		m.log.Warn("message for unregistered module dropped",
			zap.Uint32("module", uint32(msg.Module)))
		return
	}
	h(msg)
}

// internalMsgHandler services the manager's own module: boxed run-methods
// and device interest updates.
func (m *Manager) internalMsgHandler(msg *api.Msg) {
	switch msg.Type {
	case api.MsgRunMethod:
		if msg.Fn != nil {
			msg.Fn()
		}
	case api.MsgDeviceReschedule:
		r := reactor.Current()
		if r == nil || msg.Device == nil {
			return
		}
		interest, ok := msg.Payload.(api.EventInterest)
		if !ok {
			return
		}
		if err := r.RescheduleDevice(msg.Device, interest); err != nil {
			m.log.Warn("device reschedule failed",
				zap.String("dev", msg.Device.DevID), zap.Error(err))
		}
	}
}

// SendMsg enqueues msg on the target reactor and wakes it if it can block.
// Returns false when the handle no longer resolves to a live reactor;
// ownership of msg then reverts to the caller.
func (m *Manager) SendMsg(t api.IOThread, msg *api.Msg) bool {
	r := m.resolve(t)
	if r == nil || !r.DeliverMsg(msg) {
		if m.metrics != nil {
			m.metrics.MsgsDropped.Inc()
		}
		return false
	}
	if m.metrics != nil {
		m.metrics.MsgsSent.Inc()
	}
	return true
}

// SendMsgAndWait delivers msg and blocks until the target reactor has
// executed it exactly once.
func (m *Manager) SendMsgAndWait(t api.IOThread, msg *api.Msg) bool {
	var wg sync.WaitGroup
	wg.Add(1)
	msg.Arm(&wg)
	if !m.SendMsg(t, msg) {
		return false
	}
	wg.Wait()
	return true
}

// MulticastMsg delivers a per-receiver clone of msg to every reactor the
// selector matches. Returns the number of reactors actually reached.
func (m *Manager) MulticastMsg(rgx api.ThreadRegex, msg *api.Msg) int {
	if m.metrics != nil {
		m.metrics.Multicasts.Inc()
	}
	reached := 0
	for _, r := range m.pickReactors(rgx) {
		if r.DeliverMsg(msg.Clone()) {
			reached++
		}
	}
	return reached
}

// MulticastMsgAndWait is MulticastMsg blocking until every reached reactor
// has completed its clone. The count reflects actual deliveries, which can
// be fewer than the resolved match set when reactors leave mid-dispatch.
func (m *Manager) MulticastMsgAndWait(rgx api.ThreadRegex, msg *api.Msg) int {
	if m.metrics != nil {
		m.metrics.Multicasts.Inc()
	}
	var wg sync.WaitGroup
	reached := 0
	for _, r := range m.pickReactors(rgx) {
		c := msg.Clone()
		c.Arm(&wg)
		wg.Add(1)
		if r.DeliverMsg(c) {
			reached++
		} else {
			wg.Done()
		}
	}
	wg.Wait()
	return reached
}

// RunOnThread executes fn on the target reactor's thread via the internal
// run-method module. With wait set it blocks until fn has run.
func (m *Manager) RunOnThread(t api.IOThread, fn func(), wait bool) bool {
	msg := api.RunMethodMsg(m.internalModule, fn)
	if wait {
		return m.SendMsgAndWait(t, msg)
	}
	return m.SendMsg(t, msg)
}

// RunOn executes fn on every reactor the selector matches, returning the
// reached count.
func (m *Manager) RunOn(rgx api.ThreadRegex, fn func(), wait bool) int {
	msg := api.RunMethodMsg(m.internalModule, fn)
	if wait {
		return m.MulticastMsgAndWait(rgx, msg)
	}
	return m.MulticastMsg(rgx, msg)
}
