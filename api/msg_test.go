// File: api/msg_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import (
	"sync"
	"testing"
)

func TestMsgCompleteIdempotent(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)

	msg := RunMethodMsg(0, func() {})
	if msg.IsSync() {
		t.Fatal("unarmed message reports sync")
	}
	msg.Arm(&wg)
	if !msg.IsSync() {
		t.Fatal("armed message not reported sync")
	}
	msg.Complete()
	msg.Complete() // second release must be a no-op
	wg.Wait()
}

func TestMsgCloneSharesCompletion(t *testing.T) {
	var wg sync.WaitGroup
	msg := NewMsg(MsgUserBase, 3, "payload")
	msg.Arm(&wg)

	clones := []*Msg{msg.Clone(), msg.Clone(), msg.Clone()}
	wg.Add(len(clones))
	for _, c := range clones {
		if c.Payload != "payload" || c.Module != 3 {
			t.Fatalf("clone lost fields: %+v", c)
		}
		c.Complete()
	}
	wg.Wait() // all three releases landed
}

func TestIOThreadValidity(t *testing.T) {
	if InvalidIOThread.Valid() {
		t.Fatal("invalid handle reports valid")
	}
	if !(IOThread{Slot: 0, Gen: 1}).Valid() {
		t.Fatal("first-generation slot 0 reports invalid")
	}
}

func TestIODeviceIdentity(t *testing.T) {
	fdDev := NewIODevice(12, nil, EventRead, nil)
	if fdDev.DevID != "fd:12" {
		t.Fatalf("fd-backed device id %q", fdDev.DevID)
	}
	a := NewIODevice(-1, nil, 0, nil)
	b := NewIODevice(-1, nil, 0, nil)
	if a.DevID == "" || a.DevID == b.DevID {
		t.Fatalf("non-fd devices share id %q", a.DevID)
	}
	if a.Owner().Valid() {
		t.Fatal("fresh device already owned")
	}
}
