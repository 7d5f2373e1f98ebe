// File: iomgr/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Start-time configuration. All fields are bound once at Start; there is
// no hot reload of the reactor pool shape.

package iomgr

import (
	"runtime"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/momentics/hioload-iomgr/api"
)

// InterfaceAdder lets the embedding code register custom interfaces during
// the interface_init phase, before any reactor starts.
type InterfaceAdder func(m *Manager)

// Config holds the knobs recognized at Start.
type Config struct {
	// NumThreads is the worker reactor count. Defaults to runtime.NumCPU().
	NumThreads int

	// PollMode selects the poll-mode/DMA-capable backend for all workers:
	// tight-loop reactors and the pinned-memory allocator.
	PollMode bool

	// Notifier observes every reactor thread entering/leaving service.
	Notifier api.ThreadStateNotifier

	// InterfaceAdder runs during interface_init.
	InterfaceAdder InterfaceAdder

	// CPUAffinity pins worker reactors round-robin across CPUs.
	CPUAffinity bool

	// IdleTimeout, when positive, arms the per-reactor idle watchdog.
	IdleTimeout time.Duration

	// OnIdle runs on a reactor's own thread each time it has gone
	// IdleTimeout without messages, timers or device activity.
	OnIdle func(t api.IOThread)

	Logger     *zap.Logger
	Clock      clock.Clock
	Registerer prometheus.Registerer
}

// DefaultConfig returns the defaults: one worker per CPU, epoll-style
// workers, heap allocator, no pinning.
func DefaultConfig() *Config {
	return &Config{
		NumThreads: runtime.NumCPU(),
	}
}

func (c *Config) normalize() {
	if c.NumThreads <= 0 {
		c.NumThreads = runtime.NumCPU()
	}
	if c.NumThreads > MaxIOThreads {
		c.NumThreads = MaxIOThreads
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Registerer == nil {
		c.Registerer = prometheus.NewRegistry()
	}
}
