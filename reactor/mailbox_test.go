// File: reactor/mailbox_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"testing"

	"github.com/momentics/hioload-iomgr/api"
)

func TestMailboxFIFO(t *testing.T) {
	mb := NewMailbox()
	for i := 0; i < 10; i++ {
		if !mb.Push(api.NewMsg(api.MsgUserBase, 0, i)) {
			t.Fatalf("push %d rejected", i)
		}
	}
	if mb.Len() != 10 {
		t.Fatalf("expected 10 queued, got %d", mb.Len())
	}
	for i := 0; i < 10; i++ {
		msg, ok := mb.Pop()
		if !ok {
			t.Fatalf("pop %d failed", i)
		}
		if msg.Payload.(int) != i {
			t.Fatalf("order broken: want %d got %v", i, msg.Payload)
		}
	}
	if _, ok := mb.Pop(); ok {
		t.Fatal("pop from empty mailbox succeeded")
	}
}

func TestMailboxWakeSignal(t *testing.T) {
	mb := NewMailbox()
	mb.Push(api.NewMsg(api.MsgUserBase, 0, nil))
	select {
	case <-mb.Wake():
	default:
		t.Fatal("push did not signal wake channel")
	}
}

func TestMailboxCloseReturnsBacklogAndRejects(t *testing.T) {
	mb := NewMailbox()
	mb.Push(api.NewMsg(api.MsgUserBase, 0, 1))
	mb.Push(api.NewMsg(api.MsgUserBase, 0, 2))

	backlog := mb.Close()
	if len(backlog) != 2 {
		t.Fatalf("expected backlog of 2, got %d", len(backlog))
	}
	if mb.Push(api.NewMsg(api.MsgUserBase, 0, 3)) {
		t.Fatal("push accepted after close")
	}
	if again := mb.Close(); again != nil {
		t.Fatalf("second close returned backlog: %v", again)
	}
}
