// File: control/metrics_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package control

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.MsgsSent.Inc()
	m.MsgsSent.Inc()
	m.ReactorsLive.Inc()
	m.ReactorsLive.Dec()

	if got := testutil.ToFloat64(m.MsgsSent); got != 2 {
		t.Fatalf("msgs_sent_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ReactorsLive); got != 0 {
		t.Fatalf("reactors_live = %v, want 0", got)
	}
	if n, err := testutil.GatherAndCount(reg,
		"iomgr_msgs_sent_total",
		"iomgr_msgs_dropped_total",
		"iomgr_multicasts_total",
		"iomgr_timers_fired_total",
		"iomgr_reactors_live",
	); err != nil || n != 5 {
		t.Fatalf("gathered %d collectors, err %v", n, err)
	}
}

func TestMetricsIsolatedRegistries(t *testing.T) {
	// Two managers with separate registries must not collide.
	a := NewMetrics(prometheus.NewRegistry())
	b := NewMetrics(prometheus.NewRegistry())
	a.MsgsSent.Inc()
	if got := testutil.ToFloat64(b.MsgsSent); got != 0 {
		t.Fatalf("registries share state: %v", got)
	}
}
