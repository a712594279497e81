package insteon

import (
	"testing"
	"time"
)

func TestBroadcastSuppressionDedupesWithinWindow(t *testing.T) {
	link := newFakeLink()
	engine := NewProtocolEngine(link, 50*time.Millisecond)
	defer engine.Close()

	src := Address{0x11, 0x22, 0x33}
	var calls int
	engine.AddBroadcastHandler(src, Group(1), func(msg *Message) { calls++ })

	broadcast := &Message{
		Src:     src,
		Dst:     Address{0x00, 0x00, 0x01},
		Flags:   NewFlags(MsgTypeAllLinkBroadcast, false, 3, 3),
		Command: CmdLightOn,
	}

	link.inbound <- broadcast
	link.inbound <- broadcast
	time.Sleep(20 * time.Millisecond)

	if calls != 1 {
		t.Fatalf("handler invoked %d times for two broadcasts within the suppress window, want 1", calls)
	}

	time.Sleep(60 * time.Millisecond)
	link.inbound <- broadcast
	time.Sleep(20 * time.Millisecond)
	if calls != 2 {
		t.Fatalf("handler invoked %d times after the suppress window elapsed, want 2", calls)
	}
}

func TestDirectNakFailsActiveHandlerImmediately(t *testing.T) {
	link := newFakeLink()
	engine := NewProtocolEngine(link, 0)
	defer engine.Close()

	addr := Address{0x44, 0x55, 0x66}
	result := make(chan bool, 1)
	handler := NewStandardCmd(addr, CmdLightOn, func(success bool, status string, payload interface{}) {
		result <- success
	})
	engine.Send(&Message{Dst: addr, Flags: StandardDirectMessage, Command: CmdLightOn}, handler, false)

	waitForNthWrite(t, link, 0)

	nak := &Message{
		Src:     addr,
		Flags:   NewFlags(MsgTypeDirectNak, false, 3, 3),
		Command: CmdLightOn,
	}
	link.inbound <- nak

	select {
	case success := <-result:
		if success {
			t.Fatal("expected a direct NAK to fail the active handler")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for handler completion")
	}
}

