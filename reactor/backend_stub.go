//go:build !linux
// +build !linux

// File: reactor/backend_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Portable worker backend factory for platforms without epoll. Device
// readiness is unavailable; message and timer wakeups still work.

package reactor

func newWorkerBackend(r *IOReactor) backend {
	return newChanBackend(r.clk, r.mailbox.Wake())
}
