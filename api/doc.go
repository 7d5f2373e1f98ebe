// File: api/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package api defines the public contracts of the hioload-iomgr kernel:
// reactor classification, thread addressing, message types, timer handles,
// I/O interface and drive interface lifecycles, and the pluggable aligned
// allocator. All concrete behavior lives in iomgr, reactor, iface and
// alloc; this package carries contracts and value types only.
package api
