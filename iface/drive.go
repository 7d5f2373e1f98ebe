// File: iface/drive.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Poll-mode drive interface scaffold. Real NVMe queue-pair mechanics stay
// in the driver; this type supplies the kernel-facing half: per-device
// completion queues reaped by tight-loop reactors via PollDevice, with a
// submission hook for the driver to park completions on.

package iface

import (
	"sync"

	"go.uber.org/zap"

	"github.com/momentics/hioload-iomgr/api"
)

// DriveCompletion is one finished drive operation handed to the device's
// completion callback.
type DriveCompletion struct {
	Cookie any
	Result int64
	Err    error
}

// CompletionCallback receives reaped completions on the polling reactor's
// thread.
type CompletionCallback func(dev *api.IODevice, c DriveCompletion)

// PollDrive is a DriveInterface whose devices are polled by tight-loop
// reactors. Drivers push completions from any thread; the owning loop
// reaps them in submission order.
type PollDrive struct {
	name string
	log  *zap.Logger

	mu     sync.Mutex
	queues map[string][]DriveCompletion // devID -> pending completions
}

var _ api.DriveInterface = (*PollDrive)(nil)

// NewPollDrive builds a named poll-mode drive interface.
func NewPollDrive(name string, log *zap.Logger) *PollDrive {
	if log == nil {
		log = zap.NewNop()
	}
	return &PollDrive{
		name:   name,
		log:    log,
		queues: make(map[string][]DriveCompletion),
	}
}

func (p *PollDrive) Name() string { return p.name }

func (p *PollDrive) OnIOThreadStart(r api.Reactor) error { return nil }

func (p *PollDrive) OnIOThreadStopped(r api.Reactor) {}

func (p *PollDrive) OnDeviceEvent(dev *api.IODevice, events api.EventInterest) {
	// Poll-mode devices have no readiness events; completions arrive
	// through PollDevice.
}

// NewDevice creates a non-fd drive device whose completions are delivered
// to cb by the polling reactor.
func (p *PollDrive) NewDevice(cb CompletionCallback) *api.IODevice {
	return api.NewIODevice(-1, p, 0, cb)
}

// Push parks a completion for dev; the owning tight-loop reactor reaps it
// on its next iteration.
func (p *PollDrive) Push(dev *api.IODevice, c DriveCompletion) {
	p.mu.Lock()
	p.queues[dev.DevID] = append(p.queues[dev.DevID], c)
	p.mu.Unlock()
}

// PollDevice reaps all pending completions for dev and invokes the
// device's callback for each. Returns the number reaped.
func (p *PollDrive) PollDevice(dev *api.IODevice) int {
	p.mu.Lock()
	pending := p.queues[dev.DevID]
	if len(pending) > 0 {
		p.queues[dev.DevID] = nil
	}
	p.mu.Unlock()
	if len(pending) == 0 {
		return 0
	}
	cb, _ := dev.Cookie.(CompletionCallback)
	for _, c := range pending {
		if cb != nil {
			cb(dev, c)
		}
	}
	return len(pending)
}
