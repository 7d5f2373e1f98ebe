//go:build !linux
// +build !linux

// File: reactor/pin_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// No-op pinning for platforms without sched_setaffinity.

package reactor

func pinCurrentThread(cpuID int) error { return nil }
