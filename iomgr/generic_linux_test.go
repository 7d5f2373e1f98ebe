// File: iomgr/generic_linux_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package iomgr

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-iomgr/api"
)

// End-to-end readiness path: pipe fd registered with a worker reactor's
// epoll set, written from the test, callback observed on the loop thread.
func TestGenericDevicePipeReadiness(t *testing.T) {
	m := startManager(t, &Config{NumThreads: 1})
	th := m.IOThreads()[0]

	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer unix.Close(p[0])
	defer unix.Close(p[1])

	got := make(chan api.EventInterest, 1)
	dev := m.GenericInterface().NewDevice(p[0], api.EventRead, func(d *api.IODevice, events api.EventInterest) {
		var buf [8]byte
		_, _ = unix.Read(d.Fd, buf[:]) // drain so level-triggered epoll quiesces
		select {
		case got <- events:
		default:
		}
	})
	if err := m.RegisterDevice(dev, th); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := unix.Write(p[1], []byte{0x01}); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case events := <-got:
		if events&api.EventRead == 0 {
			t.Fatalf("expected read readiness, got %v", events)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("readiness event never delivered")
	}

	if err := m.UnregisterDevice(dev); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	// Events stop once the fd leaves the epoll set.
	for len(got) > 0 {
		<-got
	}
	if _, err := unix.Write(p[1], []byte{0x02}); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-got:
		t.Fatal("event delivered for an unregistered device")
	case <-time.After(100 * time.Millisecond):
	}
}
