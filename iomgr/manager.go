// File: iomgr/manager.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The Manager is the composition root of the iomgr kernel. It owns the
// reactor pool and identity table, the message bus, both timer domains and
// the interface/drive registry, and drives the startup/shutdown barriers.
// One explicitly constructed Manager per embedding context; Instance()
// offers the conventional process-wide one.

package iomgr

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-iomgr/alloc"
	"github.com/momentics/hioload-iomgr/api"
	"github.com/momentics/hioload-iomgr/control"
	"github.com/momentics/hioload-iomgr/iface"
	"github.com/momentics/hioload-iomgr/reactor"
)

const (
	// MaxMsgModules is the fixed capacity of the module handler table.
	MaxMsgModules = 64
	// MaxIOThreads bounds the identity table. Raising it grows the memory
	// footprint of every manager.
	MaxIOThreads = 1024
)

type reactorSlot struct {
	r   *reactor.IOReactor
	gen uint32
}

// Manager is the process-wide I/O management kernel.
type Manager struct {
	log     *zap.Logger
	clk     clock.Clock
	metrics *control.Metrics
	cfg     *Config

	state atomic.Int32
	cvMu  sync.Mutex
	cv    *sync.Cond

	tableMu sync.RWMutex
	table   []reactorSlot

	workers *errgroup.Group
	readyCh chan error
	stopWg  sync.WaitGroup

	// Module registration is guarded by its own lock so hot-path dispatch
	// never contends with the registry locks.
	msgMu          sync.RWMutex
	handlers       [MaxMsgModules]api.MsgHandler
	handlerCount   uint32
	internalModule api.ModuleID

	ifaceMu      sync.RWMutex
	ifaces       []api.IOInterface
	driveIfaces  []api.DriveInterface
	defaultDrive api.DriveInterface
	genericIface *iface.GenericIOInterface

	devMu   sync.RWMutex
	devices map[string]*api.IODevice

	bufPool     *alloc.BufPool
	globalTimer atomic.Pointer[globalTimer]
}

// ioBufAlign is the alignment of pooled iobufs, one page so the buffers
// stay DMA-safe under the pinned-memory allocator.
const ioBufAlign = 4096

// New constructs a stopped Manager. The internal run-method module is
// registered eagerly so RunOn works as soon as the pool is up.
func New() *Manager {
	m := &Manager{
		log:     zap.NewNop(),
		clk:     clock.New(),
		table:   make([]reactorSlot, MaxIOThreads),
		devices: make(map[string]*api.IODevice),
		bufPool: alloc.NewBufPool(ioBufAlign),
	}
	m.cv = newCond(&m.cvMu)
	id, err := m.RegisterMsgModule(m.internalMsgHandler)
	if err != nil {
		// Fresh table, first registration cannot fail.
		panic(err)
	}
	m.internalModule = id
	return m
}

var (
	instOnce sync.Once
	inst     *Manager
)

// Instance returns the process-wide Manager, creating it on first use.
// Intentionally global for ergonomic parity with embedding code that wants
// a single kernel; construct managers explicitly everywhere else.
func Instance() *Manager {
	instOnce.Do(func() { inst = New() })
	return inst
}

// Start brings up the reactor pool and advances the lifecycle ladder
// stopped -> interface_init -> reactor_init -> sys_init -> running. It
// blocks until every worker reactor has signaled readiness. Any reactor
// failing to initialize fails the whole startup and leaves the manager
// Stopped; partial pools are not a supported state.
func (m *Manager) Start(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.normalize()
	if !m.casState(Stopped, InterfaceInit) {
		return api.ErrAlreadyStarted
	}

	m.cfg = cfg
	m.log = cfg.Logger
	m.clk = cfg.Clock
	if m.metrics == nil {
		// Collectors register once per manager lifetime; a restart reuses
		// them so a caller-owned registry sees no duplicate registration.
		m.metrics = control.NewMetrics(cfg.Registerer)
	}
	m.log.Info("io manager starting",
		zap.Int("num_threads", cfg.NumThreads),
		zap.Bool("poll_mode", cfg.PollMode))

	if cfg.PollMode {
		alloc.Bind(alloc.NewDMAAllocator())
	} else {
		alloc.Bind(alloc.NewHeapAllocator())
	}

	// interface_init: built-in generic interface first, then the caller's.
	// A restarted manager gets a fresh registry; module ids, by contrast,
	// are never reused while the process runs.
	gen := iface.NewGeneric(m.log)
	m.ifaceMu.Lock()
	m.ifaces = nil
	m.driveIfaces = nil
	m.defaultDrive = nil
	m.genericIface = gen
	m.ifaceMu.Unlock()
	m.AddInterface(gen)
	if cfg.InterfaceAdder != nil {
		cfg.InterfaceAdder(m)
	}

	m.setStateAndNotify(ReactorInit)

	n := cfg.NumThreads
	m.readyCh = make(chan error, n)
	m.workers = &errgroup.Group{}
	for i := 0; i < n; i++ {
		cpu := -1
		if cfg.CPUAffinity {
			cpu = i % runtime.NumCPU()
		}
		r := reactor.New(reactor.Options{
			Worker:      true,
			TightLoop:   cfg.PollMode,
			CPU:         cpu,
			IdleTimeout: cfg.IdleTimeout,
			Logger:      m.log,
			Clock:       m.clk,
			Notifier:    cfg.Notifier,
			Hooks:       m.reactorHooks(),
		})
		m.workers.Go(func() error {
			if err := r.Run(); err != nil {
				m.readyCh <- err
				return err
			}
			return nil
		})
	}

	// Countdown barrier: one signal per worker, ready or failed.
	var startErr error
	for i := 0; i < n; i++ {
		if err := <-m.readyCh; err != nil && startErr == nil {
			startErr = err
		}
	}
	if startErr != nil {
		m.log.Error("reactor pool startup failed", zap.Error(startErr))
		return m.teardown(fmt.Errorf("reactor pool startup: %w", startErr))
	}

	m.setStateAndNotify(SysInit)
	m.globalTimer.Store(newGlobalTimer(m))

	m.setStateAndNotify(Running)
	m.log.Info("io manager running", zap.Int("reactors", n))
	return nil
}

// Stop reverses the startup barrier: every reactor is asked to quiesce,
// the manager waits for the matching countdown of stop acknowledgements,
// joins the worker threads and lands in Stopped. Stop while not Running is
// rejected.
func (m *Manager) Stop() error {
	if !m.casState(Running, Stopping) {
		return api.ErrNotRunning
	}
	m.log.Info("io manager stopping")
	if gt := m.globalTimer.Swap(nil); gt != nil {
		gt.stop()
	}

	for _, r := range m.liveReactors() {
		r.Stop()
	}
	m.stopWg.Wait()

	err := m.workers.Wait()
	// Pooled iobufs go back to the allocator before a restart rebinds it.
	m.bufPool.Drain()
	m.setStateAndNotify(Stopped)
	m.log.Info("io manager stopped")
	return err
}

// teardown rolls a failed startup back to Stopped, joining whatever part
// of the pool came up.
func (m *Manager) teardown(startErr error) error {
	for _, r := range m.liveReactors() {
		r.Stop()
	}
	m.stopWg.Wait()
	err := multierr.Append(startErr, m.workers.Wait())
	m.bufPool.Drain()
	m.setStateAndNotify(Stopped)
	return err
}

// RunIOLoop attaches the calling thread as a user reactor and runs its
// loop until StopIOLoop or manager shutdown. Blocks for the loop lifetime.
func (m *Manager) RunIOLoop(tightLoop bool, selector api.DeviceSelector, addlNotifier api.ThreadStateNotifier) error {
	if !m.IsReady() {
		return api.ErrNotRunning
	}
	notifier := m.combineNotifiers(addlNotifier)
	idle := time.Duration(0)
	if m.cfg != nil {
		idle = m.cfg.IdleTimeout
	}
	r := reactor.New(reactor.Options{
		Worker:      false,
		TightLoop:   tightLoop,
		CPU:         -1,
		IdleTimeout: idle,
		Logger:      m.log,
		Clock:       m.clk,
		Notifier:    notifier,
		Selector:    selector,
		Hooks:       m.reactorHooks(),
	})
	return r.Run()
}

// StopIOLoop detaches the calling thread's reactor. No-op outside a loop.
func (m *Manager) StopIOLoop() {
	if r := reactor.Current(); r != nil {
		r.Stop()
	}
}

func (m *Manager) combineNotifiers(addl api.ThreadStateNotifier) api.ThreadStateNotifier {
	common := api.ThreadStateNotifier(nil)
	if m.cfg != nil {
		common = m.cfg.Notifier
	}
	if common == nil {
		return addl
	}
	if addl == nil {
		return common
	}
	return func(started bool) {
		common(started)
		addl(started)
	}
}

// ThreadStateNotifier returns the common notifier bound at Start.
func (m *Manager) ThreadStateNotifier() api.ThreadStateNotifier {
	if m.cfg == nil {
		return nil
	}
	return m.cfg.Notifier
}

/******** reactor pool & identity ********/

func (m *Manager) reactorHooks() reactor.Hooks {
	return reactor.Hooks{
		OnStarted: m.reactorAttached,
		OnReady:   m.reactorReady,
		OnStopped: m.reactorStopped,
		OnIdle: func(r *reactor.IOReactor) {
			if m.cfg != nil && m.cfg.OnIdle != nil {
				m.cfg.OnIdle(r.Self())
			}
		},
		Dispatch: m.dispatchMsg,
	}
}

// reactorAttached claims an identity slot. Runs on the reactor's thread.
func (m *Manager) reactorAttached(r *reactor.IOReactor) (api.IOThread, error) {
	m.tableMu.Lock()
	// Workers attach during reactor_init; user reactors may only join a
	// Running pool. Checked under the table lock so an attach and the stop
	// snapshot cannot interleave: either the slot is claimed before Stop
	// reads the live set, or the attach observes Stopping and is refused.
	if !r.IsWorker() && m.State() != Running {
		m.tableMu.Unlock()
		return api.InvalidIOThread, api.ErrNotRunning
	}
	slot := -1
	for i := range m.table {
		if m.table[i].r == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		m.tableMu.Unlock()
		return api.InvalidIOThread, api.ErrMaxThreads
	}
	gen := m.table[slot].gen + 1
	m.table[slot] = reactorSlot{r: r, gen: gen}
	m.stopWg.Add(1)
	m.tableMu.Unlock()

	if m.metrics != nil {
		m.metrics.ReactorsLive.Inc()
	}
	return api.IOThread{Slot: int32(slot), Gen: gen}, nil
}

// reactorReady runs interface thread-start hooks on the new reactor's
// thread and releases the startup barrier for workers.
func (m *Manager) reactorReady(r *reactor.IOReactor) error {
	for _, ifc := range m.snapshotIfaces() {
		if err := ifc.OnIOThreadStart(r); err != nil {
			m.detachReactor(r)
			return fmt.Errorf("interface %q thread start: %w", ifc.Name(), err)
		}
	}
	if r.IsWorker() {
		m.readyCh <- nil
	}
	return nil
}

// reactorStopped runs on the reactor's thread after its final drain.
func (m *Manager) reactorStopped(r *reactor.IOReactor) {
	for _, ifc := range m.snapshotIfaces() {
		ifc.OnIOThreadStopped(r)
	}
	m.detachReactor(r)
}

func (m *Manager) detachReactor(r *reactor.IOReactor) {
	self := r.Self()
	if !self.Valid() {
		return
	}
	m.tableMu.Lock()
	if int(self.Slot) < len(m.table) && m.table[self.Slot].r == r {
		m.table[self.Slot].r = nil
	} else {
		m.tableMu.Unlock()
		return
	}
	m.tableMu.Unlock()

	// Devices owned by a dead reactor leave the map with it.
	m.devMu.Lock()
	for id, dev := range m.devices {
		if dev.Owner() == self {
			delete(m.devices, id)
		}
	}
	m.devMu.Unlock()

	if m.metrics != nil {
		m.metrics.ReactorsLive.Dec()
	}
	m.stopWg.Done()
}

// resolve maps a thread handle to its live reactor, nil when stale.
func (m *Manager) resolve(t api.IOThread) *reactor.IOReactor {
	if !t.Valid() || int(t.Slot) >= len(m.table) {
		return nil
	}
	m.tableMu.RLock()
	defer m.tableMu.RUnlock()
	s := m.table[t.Slot]
	if s.r == nil || s.gen != t.Gen {
		return nil
	}
	return s.r
}

func (m *Manager) liveReactors() []*reactor.IOReactor {
	m.tableMu.RLock()
	defer m.tableMu.RUnlock()
	var out []*reactor.IOReactor
	for i := range m.table {
		if m.table[i].r != nil {
			out = append(out, m.table[i].r)
		}
	}
	return out
}

// pickReactors resolves a group selector against a single snapshot of the
// live set, tolerating reactors joining or leaving concurrently.
func (m *Manager) pickReactors(rgx api.ThreadRegex) []*reactor.IOReactor {
	live := m.liveReactors()
	var matched []*reactor.IOReactor
	for _, r := range live {
		switch rgx {
		case api.RegexAll:
			matched = append(matched, r)
		case api.RegexAllWorkers, api.RegexRandomWorker:
			if r.IsWorker() {
				matched = append(matched, r)
			}
		case api.RegexAllTLoop, api.RegexRandomTLoop:
			if r.IsTightLoopReactor() {
				matched = append(matched, r)
			}
		}
	}
	if len(matched) > 1 && (rgx == api.RegexRandomWorker || rgx == api.RegexRandomTLoop) {
		matched = []*reactor.IOReactor{matched[rand.Intn(len(matched))]}
	}
	return matched
}

// IOThreads enumerates the handles of all live reactors.
func (m *Manager) IOThreads() []api.IOThread {
	live := m.liveReactors()
	out := make([]api.IOThread, 0, len(live))
	for _, r := range live {
		out = append(out, r.Self())
	}
	return out
}

/******** identity accessors ********/

// IOThreadSelf returns the calling thread's handle, invalid outside a
// reactor loop.
func (m *Manager) IOThreadSelf() api.IOThread {
	if r := reactor.Current(); r != nil {
		return r.Self()
	}
	return api.InvalidIOThread
}

// ThisReactor returns the calling thread's reactor, nil outside a loop.
func (m *Manager) ThisReactor() api.Reactor {
	if r := reactor.Current(); r != nil {
		return r
	}
	return nil
}

func (m *Manager) AmIIOReactor() bool {
	r := reactor.Current()
	return r != nil && r.IsIOReactor()
}

func (m *Manager) AmITightLoopReactor() bool {
	r := reactor.Current()
	return r != nil && r.IsTightLoopReactor()
}

func (m *Manager) AmIWorkerReactor() bool {
	r := reactor.Current()
	return r != nil && r.IsWorker()
}

/******** io buffers ********/

// IOBufAlloc allocates an aligned I/O buffer from the bound allocator.
func (m *Manager) IOBufAlloc(align, size uint64) ([]byte, error) {
	return alloc.IOBufAlloc(align, size)
}

// IOBufFree releases a buffer obtained from IOBufAlloc.
func (m *Manager) IOBufFree(buf []byte) { alloc.IOBufFree(buf) }

// IOBufRealloc resizes a buffer preserving its prefix contents.
func (m *Manager) IOBufRealloc(buf []byte, align, newSize uint64) ([]byte, error) {
	return alloc.IOBufRealloc(buf, align, newSize)
}

// IOBufGet borrows a page-aligned buffer from the manager's recycling
// pool. Hot paths that churn similarly sized iobufs should prefer this
// over IOBufAlloc.
func (m *Manager) IOBufGet(size uint64) ([]byte, error) { return m.bufPool.Get(size) }

// IOBufPut returns a buffer obtained from IOBufGet to the pool.
func (m *Manager) IOBufPut(buf []byte) { m.bufPool.Put(buf) }
