// File: reactor/self.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reactor self-lookup. The loop goroutine is locked to its OS thread, so
// the goroutine id is a stable per-thread key; registration happens once on
// loop attach and is removed on detach. Lookup is a read-locked map hit,
// no identity-table scan.

package reactor

import (
	"sync"

	"github.com/momentics/hioload-iomgr/internal/gid"
)

var (
	selfMu    sync.RWMutex
	selfByGID = make(map[uint64]*IOReactor)
)

func registerSelf(r *IOReactor) {
	selfMu.Lock()
	selfByGID[gid.ID()] = r
	selfMu.Unlock()
}

func unregisterSelf() {
	selfMu.Lock()
	delete(selfByGID, gid.ID())
	selfMu.Unlock()
}

// Current returns the reactor running on the calling thread, or nil when
// the caller is not inside a reactor loop.
func Current() *IOReactor {
	selfMu.RLock()
	defer selfMu.RUnlock()
	return selfByGID[gid.ID()]
}
