//go:build linux
// +build linux

// File: reactor/backend_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux epoll(7) worker backend. Device fds are armed level-triggered with
// the device's interest mask; an eventfd is always armed so cross-thread
// message delivery can interrupt a blocking wait.

package reactor

import (
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-iomgr/api"
)

const epollMaxEvents = 128

type epollBackend struct {
	epfd   int
	wakeFd int
}

func newWorkerBackend(r *IOReactor) backend {
	return &epollBackend{epfd: -1, wakeFd: -1}
}

func (b *epollBackend) init() error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("epoll create: %w", err)
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &ev); err != nil {
		unix.Close(wakeFd)
		unix.Close(epfd)
		return fmt.Errorf("epoll ctl add wakeup: %w", err)
	}
	b.epfd = epfd
	b.wakeFd = wakeFd
	return nil
}

func interestToEpoll(interest api.EventInterest) uint32 {
	var ev uint32
	if interest&api.EventRead != 0 {
		ev |= unix.EPOLLIN
	}
	if interest&api.EventWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func epollToInterest(ev uint32) api.EventInterest {
	var interest api.EventInterest
	if ev&unix.EPOLLIN != 0 {
		interest |= api.EventRead
	}
	if ev&unix.EPOLLOUT != 0 {
		interest |= api.EventWrite
	}
	if ev&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		interest |= api.EventError
	}
	return interest
}

func (b *epollBackend) arm(dev *api.IODevice) error {
	if dev.Fd < 0 {
		return api.ErrNotSupported
	}
	ev := unix.EpollEvent{Events: interestToEpoll(dev.Interest), Fd: int32(dev.Fd)}
	if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, dev.Fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add fd %d: %w", dev.Fd, err)
	}
	return nil
}

func (b *epollBackend) rearm(dev *api.IODevice) error {
	if dev.Fd < 0 {
		return api.ErrNotSupported
	}
	ev := unix.EpollEvent{Events: interestToEpoll(dev.Interest), Fd: int32(dev.Fd)}
	if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, dev.Fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod fd %d: %w", dev.Fd, err)
	}
	return nil
}

func (b *epollBackend) disarm(dev *api.IODevice) error {
	if dev.Fd < 0 {
		return nil
	}
	if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, dev.Fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del fd %d: %w", dev.Fd, err)
	}
	return nil
}

func (b *epollBackend) wait(timeout time.Duration) ([]backendEvent, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
		if ms == 0 && timeout > 0 {
			ms = 1
		}
	}
	var raw [epollMaxEvents]unix.EpollEvent
	n, err := unix.EpollWait(b.epfd, raw[:], ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("epoll wait: %w", err)
	}
	var out []backendEvent
	for i := 0; i < n; i++ {
		fd := int(raw[i].Fd)
		if fd == b.wakeFd {
			b.drainWakeup()
			continue
		}
		out = append(out, backendEvent{Fd: fd, Events: epollToInterest(raw[i].Events)})
	}
	return out, nil
}

func (b *epollBackend) drainWakeup() {
	var buf [8]byte
	for {
		if _, err := unix.Read(b.wakeFd, buf[:]); err != nil {
			return
		}
	}
}

func (b *epollBackend) wakeup() {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, _ = unix.Write(b.wakeFd, buf[:])
}

func (b *epollBackend) close() error {
	if b.wakeFd >= 0 {
		unix.Close(b.wakeFd)
		b.wakeFd = -1
	}
	if b.epfd >= 0 {
		unix.Close(b.epfd)
		b.epfd = -1
	}
	return nil
}
