//go:build linux
// +build linux

// File: reactor/pin_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pure-Go CPU pinning for reactor threads via sched_setaffinity. The loop
// goroutine is already locked to its OS thread when this runs.

package reactor

import "golang.org/x/sys/unix"

// pinCurrentThread binds the calling OS thread to one CPU.
func pinCurrentThread(cpuID int) error {
	if cpuID < 0 {
		return nil
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	return unix.SchedSetaffinity(0, &set)
}
