// File: api/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Common error values shared across the hioload-iomgr packages.

package api

import "errors"

// Common errors used across the library.
var (
	ErrModuleTableFull = errors.New("message module table exhausted")
	ErrThreadGone      = errors.New("io thread is no longer live")
	ErrNotRunning      = errors.New("io manager is not running")
	ErrAlreadyStarted  = errors.New("io manager already started")
	ErrMaxThreads      = errors.New("max io threads exceeded")
	ErrNotIOThread     = errors.New("caller is not an io reactor thread")
	ErrDeviceBound     = errors.New("device already bound to a reactor")
	ErrDeviceNotBound  = errors.New("device is not bound to any reactor")
	ErrMailboxClosed   = errors.New("reactor mailbox is closed")
	ErrNotSupported    = errors.New("operation not supported")
	ErrAllocFailed     = errors.New("aligned allocation failed")
)
