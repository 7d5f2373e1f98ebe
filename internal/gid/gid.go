// File: internal/gid/gid.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Goroutine id extraction backing the reactor self-lookup. Each reactor
// loop is exactly one goroutine locked to one OS thread, so the goroutine
// id is a stable per-thread key for the lifetime of the loop.

package gid

import (
	"bytes"
	"runtime"
	"strconv"
)

var prefix = []byte("goroutine ")

// ID returns the calling goroutine's id.
func ID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	b := bytes.TrimPrefix(buf[:n], prefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}
