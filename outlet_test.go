package insteon

import (
	"testing"
	"time"
)

func TestOutletFIFOQueueDrainsInOrder(t *testing.T) {
	link := newFakeLink()
	engine := NewProtocolEngine(link, 0)
	defer engine.Close()

	addr := Address{0x11, 0x22, 0x33}
	dev := NewOutletDevice(addr, "test outlet", engine, nil)

	const commands = 4
	done := make(chan struct{}, commands)
	for i := 0; i < commands; i++ {
		group := Group(i%2 + 1)
		dev.On(group, 0xff, ModeNormal, ReasonCommand, func(success bool, status string, payload interface{}) {
			done <- struct{}{}
		})
	}

	for i := 0; i < commands; i++ {
		msg := waitForNthWrite(t, link, i)
		link.inbound <- ack(msg)
		<-done
	}

	if n := dev.PendingLen(); n != 0 {
		t.Fatalf("pending queue = %d after every command ACKed, want 0", n)
	}
	if !dev.IsOn(1) || !dev.IsOn(2) {
		t.Fatal("both groups should report on after their ACKed commands")
	}
}

// waitForNthWrite polls fakeLink until its nth (0-indexed) write has
// landed, since the engine processes each Send on its own goroutine.
func waitForNthWrite(t *testing.T, link *fakeLink, n int) *Message {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		link.mu.Lock()
		ready := len(link.written) > n
		var msg *Message
		if ready {
			msg = link.written[n]
		}
		link.mu.Unlock()
		if ready {
			return msg
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for a write")
	return nil
}
