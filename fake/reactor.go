// File: fake/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Test doubles for collaborators of the kernel. Interfaces and embedding
// code can exercise their reactor-facing logic without spinning up a pool.

package fake

import (
	"sync"

	"github.com/momentics/hioload-iomgr/api"
)

// Reactor is an in-memory api.Reactor recording everything thrown at it.
type Reactor struct {
	SelfID    api.IOThread
	TightLoop bool
	Worker    bool

	// RejectDeliveries makes DeliverMsg return false, mimicking a reactor
	// that has begun stopping.
	RejectDeliveries bool

	mu        sync.Mutex
	delivered []*api.Msg
	devices   map[string]*api.IODevice
	stopped   bool
}

var _ api.Reactor = (*Reactor)(nil)

// NewReactor builds a fake worker reactor with the given identity.
func NewReactor(self api.IOThread) *Reactor {
	return &Reactor{
		SelfID:  self,
		Worker:  true,
		devices: make(map[string]*api.IODevice),
	}
}

func (f *Reactor) Self() api.IOThread       { return f.SelfID }
func (f *Reactor) IsIOReactor() bool        { return !f.IsStopped() }
func (f *Reactor) IsTightLoopReactor() bool { return f.TightLoop }
func (f *Reactor) IsWorker() bool           { return f.Worker }

func (f *Reactor) DeliverMsg(msg *api.Msg) bool {
	if f.RejectDeliveries || f.IsStopped() {
		return false
	}
	f.mu.Lock()
	f.delivered = append(f.delivered, msg)
	f.mu.Unlock()
	return true
}

func (f *Reactor) AddDevice(dev *api.IODevice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.devices[dev.DevID]; exists {
		return api.ErrDeviceBound
	}
	f.devices[dev.DevID] = dev
	dev.SetOwner(f.SelfID)
	return nil
}

func (f *Reactor) RemoveDevice(dev *api.IODevice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.devices[dev.DevID]; !exists {
		return api.ErrDeviceNotBound
	}
	delete(f.devices, dev.DevID)
	dev.SetOwner(api.InvalidIOThread)
	return nil
}

func (f *Reactor) RescheduleDevice(dev *api.IODevice, interest api.EventInterest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.devices[dev.DevID]; !exists {
		return api.ErrDeviceNotBound
	}
	dev.Interest = interest
	return nil
}

func (f *Reactor) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

// IsStopped reports whether Stop was called.
func (f *Reactor) IsStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// Delivered snapshots the messages accepted so far.
func (f *Reactor) Delivered() []*api.Msg {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*api.Msg, len(f.delivered))
	copy(out, f.delivered)
	return out
}

// DrainDelivered pops and completes every recorded message, simulating the
// loop executing its mailbox.
func (f *Reactor) DrainDelivered(dispatch func(msg *api.Msg)) int {
	f.mu.Lock()
	pending := f.delivered
	f.delivered = nil
	f.mu.Unlock()
	for _, msg := range pending {
		if dispatch != nil {
			dispatch(msg)
		}
		msg.Complete()
	}
	return len(pending)
}

// DeviceCount reports how many devices are bound.
func (f *Reactor) DeviceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.devices)
}
