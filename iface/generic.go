// File: iface/generic.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Built-in generic I/O interface: the default home for plain fd-backed
// devices (sockets, pipes, files) on worker reactors. Readiness events are
// forwarded to a per-device callback carried in the device cookie, so the
// interface itself stays protocol-free.

package iface

import (
	"sync"

	"go.uber.org/zap"

	"github.com/momentics/hioload-iomgr/api"
)

// EventCallback receives readiness notifications for one generic device.
// It runs on the reactor thread owning the device.
type EventCallback func(dev *api.IODevice, events api.EventInterest)

// GenericIOInterface is the default api.IOInterface.
type GenericIOInterface struct {
	log *zap.Logger

	mu      sync.RWMutex
	threads map[api.IOThread]struct{}
}

var _ api.IOInterface = (*GenericIOInterface)(nil)

// NewGeneric builds the generic interface.
func NewGeneric(log *zap.Logger) *GenericIOInterface {
	if log == nil {
		log = zap.NewNop()
	}
	return &GenericIOInterface{
		log:     log,
		threads: make(map[api.IOThread]struct{}),
	}
}

func (g *GenericIOInterface) Name() string { return "generic" }

func (g *GenericIOInterface) OnIOThreadStart(r api.Reactor) error {
	g.mu.Lock()
	g.threads[r.Self()] = struct{}{}
	g.mu.Unlock()
	g.log.Debug("generic interface attached to reactor", zap.Int32("slot", r.Self().Slot))
	return nil
}

func (g *GenericIOInterface) OnIOThreadStopped(r api.Reactor) {
	g.mu.Lock()
	delete(g.threads, r.Self())
	g.mu.Unlock()
}

// ThreadCount reports how many reactors currently host this interface.
func (g *GenericIOInterface) ThreadCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.threads)
}

// NewDevice wraps an fd as a generic device delivering readiness to cb.
func (g *GenericIOInterface) NewDevice(fd int, interest api.EventInterest, cb EventCallback) *api.IODevice {
	return api.NewIODevice(fd, g, interest, cb)
}

func (g *GenericIOInterface) OnDeviceEvent(dev *api.IODevice, events api.EventInterest) {
	if cb, ok := dev.Cookie.(EventCallback); ok && cb != nil {
		cb(dev, events)
	}
}
