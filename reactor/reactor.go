// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// IOReactor: one event loop bound to one OS thread. The manager spawns
// worker reactors and attaches user reactors through the same Run entry;
// hooks hand identity assignment, module dispatch and stop accounting back
// to the composition root without the loop knowing about the manager.

package reactor

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/momentics/hioload-iomgr/api"
)

const (
	stateCreated int32 = iota
	stateRunning
	stateStopping
	stateStopped
)

// Hooks connect a loop to its composition root, all invoked on the loop's
// own thread. OnStarted claims the identity handle; OnReady runs after the
// identity is visible (interface thread-start hooks, startup barrier) and
// an error from either fails the whole startup. OnStopped runs after the
// final mailbox drain, while the loop's devices are still bound. Dispatch
// resolves a message's module handler.
type Hooks struct {
	OnStarted func(r *IOReactor) (api.IOThread, error)
	OnReady   func(r *IOReactor) error
	OnStopped func(r *IOReactor)
	OnIdle    func(r *IOReactor)
	Dispatch  func(msg *api.Msg)
}

// Options configure one reactor.
type Options struct {
	Worker    bool // pool-owned thread vs. user-attached
	TightLoop bool // spin-mode loop for poll-mode drives
	CPU       int  // pin target, negative disables pinning

	// IdleTimeout, when positive, arms the idle watchdog: OnIdle fires on
	// the loop's thread after this long without messages, timers or events.
	IdleTimeout time.Duration

	Logger   *zap.Logger
	Clock    clock.Clock
	Notifier api.ThreadStateNotifier
	Selector api.DeviceSelector
	Hooks    Hooks
}

// IOReactor is the concrete api.Reactor.
type IOReactor struct {
	opts Options
	log  *zap.Logger
	clk  clock.Clock

	mailbox *Mailbox
	timers  *ThreadTimerList
	backend backend

	mu      sync.Mutex
	selfID  api.IOThread
	devices map[string]*api.IODevice
	byFd    map[int]*api.IODevice

	state atomic.Int32
}

var _ api.Reactor = (*IOReactor)(nil)

// New constructs a reactor; the loop starts when Run is called on the
// thread that will own it.
func New(opts Options) *IOReactor {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	r := &IOReactor{
		opts:    opts,
		log:     opts.Logger,
		clk:     opts.Clock,
		mailbox: NewMailbox(),
		devices: make(map[string]*api.IODevice),
		byFd:    make(map[int]*api.IODevice),
		selfID:  api.InvalidIOThread,
	}
	r.timers = NewThreadTimerList(opts.Clock)
	if !opts.TightLoop {
		r.backend = newWorkerBackend(r)
	}
	return r
}

// Run executes the loop on the calling goroutine, which is locked to its
// OS thread for the duration. It returns an error only when startup fails;
// loop-time errors are logged and absorbed.
func (r *IOReactor) Run() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	registerSelf(r)
	defer unregisterSelf()

	if err := pinCurrentThread(r.opts.CPU); err != nil {
		r.log.Warn("cpu pinning failed", zap.Int("cpu", r.opts.CPU), zap.Error(err))
	}

	if r.backend != nil {
		if err := r.backend.init(); err != nil {
			r.state.Store(stateStopped)
			return fmt.Errorf("reactor backend init: %w", err)
		}
	}

	self, err := r.opts.Hooks.OnStarted(r)
	if err != nil {
		if r.backend != nil {
			_ = r.backend.close()
		}
		r.state.Store(stateStopped)
		return fmt.Errorf("reactor start hook: %w", err)
	}
	r.mu.Lock()
	r.selfID = self
	r.mu.Unlock()

	if h := r.opts.Hooks.OnReady; h != nil {
		if err := h(r); err != nil {
			if r.backend != nil {
				_ = r.backend.close()
			}
			r.state.Store(stateStopped)
			return fmt.Errorf("reactor ready hook: %w", err)
		}
	}
	entered := r.state.CompareAndSwap(stateCreated, stateRunning)
	r.log.Debug("reactor loop entered",
		zap.Int32("slot", self.Slot),
		zap.Bool("worker", r.opts.Worker),
		zap.Bool("tight_loop", r.opts.TightLoop))

	if r.opts.Notifier != nil {
		r.opts.Notifier(true)
	}

	// A stop that raced the startup hooks has already moved the state to
	// stopping; the loop is skipped and shutdown proceeds below.
	if entered {
		if r.opts.TightLoop {
			r.runTight()
		} else {
			r.runWorker()
		}
	}

	r.drain()
	if r.opts.Notifier != nil {
		r.opts.Notifier(false)
	}
	if r.opts.Hooks.OnStopped != nil {
		r.opts.Hooks.OnStopped(r)
	}
	r.releaseDevices()
	r.state.Store(stateStopped)
	r.log.Debug("reactor loop exited", zap.Int32("slot", self.Slot))
	return nil
}

// Stop asks the loop to quiesce. Safe from any thread, idempotent, and
// sticky: a request landing while the loop is still in its startup hooks
// takes effect before the loop is entered.
func (r *IOReactor) Stop() {
	for {
		switch r.state.Load() {
		case stateCreated:
			if r.state.CompareAndSwap(stateCreated, stateStopping) {
				return
			}
		case stateRunning:
			if r.state.CompareAndSwap(stateRunning, stateStopping) {
				if r.backend != nil {
					r.backend.wakeup()
				}
				return
			}
		default:
			return
		}
	}
}

// Self returns the identity handle, or InvalidIOThread before attach.
func (r *IOReactor) Self() api.IOThread {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selfID
}

func (r *IOReactor) IsIOReactor() bool        { return r.state.Load() == stateRunning }
func (r *IOReactor) IsTightLoopReactor() bool { return r.opts.TightLoop }
func (r *IOReactor) IsWorker() bool           { return r.opts.Worker }

// Timers exposes the thread-local timer list for scheduling from the
// loop's own thread.
func (r *IOReactor) Timers() *ThreadTimerList { return r.timers }

// DeliverMsg enqueues msg and wakes a blocking loop. Returns false once
// the reactor has begun stopping; the caller keeps ownership then.
func (r *IOReactor) DeliverMsg(msg *api.Msg) bool {
	if r.state.Load() >= stateStopping {
		return false
	}
	if !r.mailbox.Push(msg) {
		return false
	}
	if r.backend != nil {
		r.backend.wakeup()
	}
	return true
}

// AddDevice binds a device to this loop and arms readiness interest where
// the backend supports it.
func (r *IOReactor) AddDevice(dev *api.IODevice) error {
	if r.opts.Selector != nil && !r.opts.Selector(dev) {
		return api.ErrNotSupported
	}
	r.mu.Lock()
	if _, exists := r.devices[dev.DevID]; exists {
		r.mu.Unlock()
		return api.ErrDeviceBound
	}
	r.devices[dev.DevID] = dev
	if dev.Fd >= 0 {
		r.byFd[dev.Fd] = dev
	}
	r.mu.Unlock()

	if r.backend != nil {
		if err := r.backend.arm(dev); err != nil && !errors.Is(err, api.ErrNotSupported) {
			r.mu.Lock()
			delete(r.devices, dev.DevID)
			if dev.Fd >= 0 {
				delete(r.byFd, dev.Fd)
			}
			r.mu.Unlock()
			return err
		}
	}
	dev.SetOwner(r.Self())
	return nil
}

// RemoveDevice unbinds a device from this loop.
func (r *IOReactor) RemoveDevice(dev *api.IODevice) error {
	r.mu.Lock()
	_, exists := r.devices[dev.DevID]
	if exists {
		delete(r.devices, dev.DevID)
		if dev.Fd >= 0 {
			delete(r.byFd, dev.Fd)
		}
	}
	r.mu.Unlock()
	if !exists {
		return api.ErrDeviceNotBound
	}
	if r.backend != nil {
		_ = r.backend.disarm(dev)
	}
	dev.SetOwner(api.InvalidIOThread)
	return nil
}

// RescheduleDevice updates the readiness interest of a bound device.
func (r *IOReactor) RescheduleDevice(dev *api.IODevice, interest api.EventInterest) error {
	r.mu.Lock()
	_, exists := r.devices[dev.DevID]
	r.mu.Unlock()
	if !exists {
		return api.ErrDeviceNotBound
	}
	dev.Interest = interest
	if r.backend != nil {
		if err := r.backend.rearm(dev); err != nil && !errors.Is(err, api.ErrNotSupported) {
			return err
		}
	}
	return nil
}

// Devices returns a snapshot of the bound devices.
func (r *IOReactor) Devices() []*api.IODevice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*api.IODevice, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	return out
}

func (r *IOReactor) runWorker() {
	lastActive := r.clk.Now()
	for r.state.Load() == stateRunning {
		n := r.processMailbox()
		n += r.timers.FireDue()

		timeout := time.Duration(-1)
		if d, ok := r.timers.UntilNext(); ok {
			timeout = d
		}
		if r.opts.IdleTimeout > 0 {
			idleIn := r.opts.IdleTimeout - r.clk.Now().Sub(lastActive)
			if idleIn < 0 {
				idleIn = 0
			}
			if timeout < 0 || idleIn < timeout {
				timeout = idleIn
			}
		}
		evs, err := r.backend.wait(timeout)
		if err != nil {
			r.log.Warn("reactor wait failed", zap.Error(err))
			continue
		}
		for _, ev := range evs {
			r.handleEvent(ev)
		}
		if n > 0 || len(evs) > 0 {
			lastActive = r.clk.Now()
		} else if r.opts.IdleTimeout > 0 && r.clk.Now().Sub(lastActive) >= r.opts.IdleTimeout {
			if h := r.opts.Hooks.OnIdle; h != nil {
				h(r)
			}
			lastActive = r.clk.Now()
		}
	}
}

func (r *IOReactor) runTight() {
	idleSpins := 0
	lastActive := r.clk.Now()
	for r.state.Load() == stateRunning {
		n := r.processMailbox()
		n += r.timers.FireDue()
		n += r.pollDrives()
		if n > 0 {
			idleSpins = 0
			lastActive = r.clk.Now()
			continue
		}
		idleSpins++
		if r.opts.IdleTimeout > 0 && r.clk.Now().Sub(lastActive) >= r.opts.IdleTimeout {
			if h := r.opts.Hooks.OnIdle; h != nil {
				h(r)
			}
			lastActive = r.clk.Now()
		}
		if idleSpins < 1024 {
			runtime.Gosched()
		} else {
			// Long-idle poll loops still must not park in the scheduler;
			// a one-microsecond yield bounds the CPU burn.
			time.Sleep(time.Microsecond)
		}
	}
}

func (r *IOReactor) processMailbox() int {
	n := 0
	for {
		msg, ok := r.mailbox.Pop()
		if !ok {
			break
		}
		r.dispatchMsg(msg)
		n++
	}
	return n
}

func (r *IOReactor) dispatchMsg(msg *api.Msg) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("message handler panicked",
				zap.Uint32("module", uint32(msg.Module)),
				zap.Any("panic", rec))
		}
		msg.Complete()
	}()
	r.opts.Hooks.Dispatch(msg)
}

func (r *IOReactor) pollDrives() int {
	r.mu.Lock()
	devs := make([]*api.IODevice, 0, len(r.devices))
	for _, d := range r.devices {
		devs = append(devs, d)
	}
	r.mu.Unlock()

	n := 0
	for _, dev := range devs {
		if di, ok := dev.Iface.(api.DriveInterface); ok {
			n += di.PollDevice(dev)
		}
	}
	return n
}

func (r *IOReactor) handleEvent(ev backendEvent) {
	r.mu.Lock()
	dev := r.byFd[ev.Fd]
	r.mu.Unlock()
	if dev != nil && dev.Iface != nil {
		dev.Iface.OnDeviceEvent(dev, ev.Events)
	}
}

// drain executes the undelivered backlog so no synchronous sender is left
// stranded, then stops the timer list. Devices stay bound until OnStopped
// has observed them.
func (r *IOReactor) drain() {
	for _, msg := range r.mailbox.Close() {
		r.dispatchMsg(msg)
	}
	r.timers.StopAll()
}

// releaseDevices unbinds everything and closes the backend.
func (r *IOReactor) releaseDevices() {
	for _, dev := range r.Devices() {
		if r.backend != nil {
			_ = r.backend.disarm(dev)
		}
		dev.SetOwner(api.InvalidIOThread)
	}
	r.mu.Lock()
	r.devices = make(map[string]*api.IODevice)
	r.byFd = make(map[int]*api.IODevice)
	r.mu.Unlock()

	if r.backend != nil {
		_ = r.backend.close()
	}
}
