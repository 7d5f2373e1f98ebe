// File: control/metrics.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Runtime metrics for the iomgr kernel: message bus throughput, timer
// firings and live reactor count, exposed as prometheus collectors so an
// embedding process can scrape them alongside its own.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the kernel's counters. All fields are safe for
// concurrent use.
type Metrics struct {
	MsgsSent     prometheus.Counter
	MsgsDropped  prometheus.Counter
	Multicasts   prometheus.Counter
	TimersFired  prometheus.Counter
	ReactorsLive prometheus.Gauge
}

// NewMetrics registers the kernel collectors with reg. Passing a fresh
// prometheus.NewRegistry keeps tests and multi-manager setups isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MsgsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "iomgr", Name: "msgs_sent_total",
			Help: "Messages successfully enqueued to a reactor.",
		}),
		MsgsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "iomgr", Name: "msgs_dropped_total",
			Help: "Messages rejected because the target reactor was gone.",
		}),
		Multicasts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "iomgr", Name: "multicasts_total",
			Help: "Multicast dispatches resolved against the live reactor set.",
		}),
		TimersFired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "iomgr", Name: "timers_fired_total",
			Help: "Global timer firings fanned out to reactors.",
		}),
		ReactorsLive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "iomgr", Name: "reactors_live",
			Help: "Reactor threads currently in service.",
		}),
	}
}
