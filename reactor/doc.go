// File: reactor/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package reactor implements the per-thread event loop of the iomgr kernel.
// Each IOReactor runs on exactly one goroutine locked to one OS thread and
// comes in two flavors: worker loops block in the platform backend (epoll on
// Linux, a channel wait elsewhere) until a message, timer or device event
// arrives; tight loops spin with adaptive backoff to service poll-mode
// drive hardware and never block.
//
// The loop owns its mailbox, its registered devices and its thread-local
// timer list. Everything that crosses a loop boundary arrives as a message.
package reactor
