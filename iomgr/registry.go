// File: iomgr/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Interface and drive registry plus the device map. Interfaces registered
// while reactors are live get their thread-start hooks fanned out through
// the bus; device binding and rescheduling always execute on the owning
// reactor's thread.

package iomgr

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/momentics/hioload-iomgr/api"
	"github.com/momentics/hioload-iomgr/iface"
	"github.com/momentics/hioload-iomgr/reactor"
)

// AddInterface registers a logical I/O interface. When the pool is already
// running, OnIOThreadStart runs on every live reactor before this returns.
func (m *Manager) AddInterface(ifc api.IOInterface) {
	m.ifaceMu.Lock()
	m.ifaces = append(m.ifaces, ifc)
	m.ifaceMu.Unlock()
	m.log.Debug("interface registered", zap.String("name", ifc.Name()))

	if m.State() == Running {
		m.RunOn(api.RegexAll, func() {
			if r := reactor.Current(); r != nil {
				if err := ifc.OnIOThreadStart(r); err != nil {
					m.log.Warn("interface thread start failed",
						zap.String("name", ifc.Name()), zap.Error(err))
				}
			}
		}, true)
	}
}

// AddDriveInterface registers a drive interface; with isDefault set it
// supersedes the previous default.
func (m *Manager) AddDriveInterface(d api.DriveInterface, isDefault bool) {
	m.ifaceMu.Lock()
	m.driveIfaces = append(m.driveIfaces, d)
	if isDefault {
		m.defaultDrive = d
	}
	m.ifaceMu.Unlock()
	m.AddInterface(d)
}

// DefaultDriveInterface returns the designated default drive interface,
// nil before one is registered.
func (m *Manager) DefaultDriveInterface() api.DriveInterface {
	m.ifaceMu.RLock()
	defer m.ifaceMu.RUnlock()
	return m.defaultDrive
}

// GenericInterface returns the built-in generic interface, nil before
// interface_init has completed.
func (m *Manager) GenericInterface() *iface.GenericIOInterface {
	m.ifaceMu.RLock()
	defer m.ifaceMu.RUnlock()
	return m.genericIface
}

// DriveInterfaces returns a snapshot of the registered drive interfaces.
func (m *Manager) DriveInterfaces() []api.DriveInterface {
	m.ifaceMu.RLock()
	defer m.ifaceMu.RUnlock()
	out := make([]api.DriveInterface, len(m.driveIfaces))
	copy(out, m.driveIfaces)
	return out
}

func (m *Manager) snapshotIfaces() []api.IOInterface {
	m.ifaceMu.RLock()
	defer m.ifaceMu.RUnlock()
	out := make([]api.IOInterface, len(m.ifaces))
	copy(out, m.ifaces)
	return out
}

// RegisterDevice binds dev to the reactor identified by t. The bind runs
// on that reactor's thread; on success the device joins the manager's
// device map under its backing-device key.
func (m *Manager) RegisterDevice(dev *api.IODevice, t api.IOThread) error {
	r := m.resolve(t)
	if r == nil {
		return api.ErrThreadGone
	}
	var bindErr error
	if !m.RunOnThread(t, func() { bindErr = r.AddDevice(dev) }, true) {
		return api.ErrThreadGone
	}
	if bindErr != nil {
		return fmt.Errorf("bind device %s: %w", dev.DevID, bindErr)
	}
	m.devMu.Lock()
	m.devices[dev.DevID] = dev
	m.devMu.Unlock()
	return nil
}

// UnregisterDevice unbinds dev from its owning reactor and drops it from
// the device map.
func (m *Manager) UnregisterDevice(dev *api.IODevice) error {
	owner := dev.Owner()
	if !owner.Valid() {
		return api.ErrDeviceNotBound
	}
	r := m.resolve(owner)
	if r == nil {
		return api.ErrThreadGone
	}
	var unbindErr error
	if !m.RunOnThread(owner, func() { unbindErr = r.RemoveDevice(dev) }, true) {
		return api.ErrThreadGone
	}
	m.devMu.Lock()
	delete(m.devices, dev.DevID)
	m.devMu.Unlock()
	return unbindErr
}

// LookupDevice resolves a backing-device key in the device map.
func (m *Manager) LookupDevice(devID string) *api.IODevice {
	m.devMu.RLock()
	defer m.devMu.RUnlock()
	return m.devices[devID]
}

// DeviceReschedule updates the readiness interest of a bound device on its
// owning reactor's thread.
func (m *Manager) DeviceReschedule(dev *api.IODevice, interest api.EventInterest) error {
	owner := dev.Owner()
	if !owner.Valid() {
		return api.ErrDeviceNotBound
	}
	msg := &api.Msg{
		Type:    api.MsgDeviceReschedule,
		Module:  m.internalModule,
		Payload: interest,
		Device:  dev,
	}
	if !m.SendMsg(owner, msg) {
		return api.ErrThreadGone
	}
	return nil
}
