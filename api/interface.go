// File: api/interface.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// IOInterface / DriveInterface contracts and the IODevice record binding a
// backing descriptor to exactly one reactor at a time. Wire and storage
// formats are the collaborator's concern; the kernel only moves devices,
// interest masks and readiness notifications between threads.

package api

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// EventInterest is the readiness interest mask of a device.
type EventInterest uint32

const (
	EventRead EventInterest = 1 << iota
	EventWrite
	EventError
)

// IOInterface handles device lifecycle for a class of devices. Thread
// start/stop hooks run on the reactor's own thread; readiness events are
// delivered on the thread currently owning the device.
type IOInterface interface {
	Name() string

	// OnIOThreadStart is invoked once per io-capable reactor, either when
	// the reactor starts (for interfaces registered earlier) or when the
	// interface is added (for reactors already live). An error fails the
	// reactor's startup.
	OnIOThreadStart(r Reactor) error

	// OnIOThreadStopped is invoked on the reactor's thread while it drains.
	OnIOThreadStopped(r Reactor)

	// OnDeviceEvent delivers readiness for a device owned by this interface.
	OnDeviceEvent(dev *IODevice, events EventInterest)
}

// DriveInterface extends IOInterface for poll-mode storage backends. A
// tight-loop reactor calls PollDevice continuously for every drive device
// it owns; the return value is the number of completions reaped.
type DriveInterface interface {
	IOInterface
	PollDevice(dev *IODevice) int
}

// IODevice represents one registered descriptor (socket, file, drive queue
// pair). It is bound to at most one reactor at any instant; rebinding goes
// through the manager, never through direct mutation.
type IODevice struct {
	Fd       int         // backing fd, -1 for non-fd devices
	DevID    string      // backing-device key in the manager's device map
	Iface    IOInterface // owning interface
	Interest EventInterest
	Cookie   any // call-site typed context handed back on events

	mu    sync.Mutex
	owner IOThread
}

// NewIODevice builds a device record. Non-fd devices are keyed by a fresh
// UUID so drive queue pairs and synthetic devices stay addressable.
func NewIODevice(fd int, iface IOInterface, interest EventInterest, cookie any) *IODevice {
	devID := ""
	if fd >= 0 {
		devID = fmt.Sprintf("fd:%d", fd)
	} else {
		devID = uuid.NewString()
	}
	return &IODevice{
		Fd:       fd,
		DevID:    devID,
		Iface:    iface,
		Interest: interest,
		Cookie:   cookie,
		owner:    InvalidIOThread,
	}
}

// Owner returns the reactor currently owning the device.
func (d *IODevice) Owner() IOThread {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.owner
}

// SetOwner records the owning reactor. Called by the reactor on bind and
// unbind; collaborators must not call it.
func (d *IODevice) SetOwner(t IOThread) {
	d.mu.Lock()
	d.owner = t
	d.mu.Unlock()
}
