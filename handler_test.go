package insteon

import "testing"

func TestStandardCmdMatches(t *testing.T) {
	addr := Address{0x11, 0x22, 0x33}
	var calls int
	h := NewStandardCmd(addr, CmdLightOn, func(success bool, status string, payload interface{}) {
		calls++
		if !success {
			t.Errorf("expected success, got status %q", status)
		}
	})

	ack := &Message{Src: addr, Flags: NewFlags(MsgTypeDirectAck, false, 3, 3), Command: CmdLightOn}
	if result := h.MsgReceived(ack); result != ResultFinished {
		t.Fatalf("MsgReceived = %v, want ResultFinished", result)
	}
	h.OnDone(true, "ok", ack)
	if calls != 1 {
		t.Fatalf("done called %d times, want 1", calls)
	}
}

func TestStandardCmdIgnoresOtherSources(t *testing.T) {
	addr := Address{0x11, 0x22, 0x33}
	other := Address{0x44, 0x55, 0x66}
	h := NewStandardCmd(addr, CmdLightOn, func(bool, string, interface{}) {})

	ack := &Message{Src: other, Flags: NewFlags(MsgTypeDirectAck, false, 3, 3), Command: CmdLightOn}
	if result := h.MsgReceived(ack); result != ResultUnknown {
		t.Fatalf("MsgReceived from unrelated source = %v, want ResultUnknown", result)
	}
}

func TestBaseHandlerOnDoneExactlyOnce(t *testing.T) {
	var calls int
	h := NewStandardCmd(Address{}, CmdLightOn, func(bool, string, interface{}) { calls++ })
	h.OnDone(true, "ok", nil)
	h.OnDone(true, "duplicate", nil)
	if calls != 1 {
		t.Fatalf("OnDone invoked %d times, want exactly 1", calls)
	}
}

func TestDeviceRefreshStaleDetection(t *testing.T) {
	addr := Address{0x11, 0x22, 0x33}
	db := NewDeviceDatabase(addr)
	db.delta = 0x05
	db.current = true

	var result *DeviceRefreshResult
	h := NewDeviceRefresh(addr, db, func(success bool, status string, payload interface{}) {
		if !success {
			t.Fatalf("refresh failed: %s", status)
		}
		result = payload.(*DeviceRefreshResult)
	})

	flags := NewFlags(MsgTypeDirectAck, false, 1, 1)
	ack := &Message{Src: addr, Flags: flags, Command: Command{CmdLightStatusReq01[0], 0xff}}
	if res := h.MsgReceived(ack); res != ResultFinished {
		t.Fatalf("MsgReceived = %v, want ResultFinished", res)
	}
	if result == nil {
		t.Fatal("expected a result")
	}
	if !result.Stale {
		t.Fatal("delta mismatch should report Stale = true")
	}
}
