package insteon

import "testing"

func TestMessageStandardRoundTrip(t *testing.T) {
	msg := &Message{
		Dst:     Address{0x11, 0x22, 0x33},
		Flags:   StandardDirectMessage,
		Command: CmdLightOn,
	}
	buf, err := msg.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	var got Message
	if err := got.UnmarshalBinary(buf); err != nil {
		t.Fatal(err)
	}
	if got.Dst != msg.Dst || got.Flags != msg.Flags || got.Command != msg.Command {
		t.Fatalf("round trip = %+v, want %+v", got, msg)
	}
}

func TestMessageExtendedChecksum(t *testing.T) {
	msg := &Message{
		Dst:     Address{0x11, 0x22, 0x33},
		Flags:   ExtendedDirectMessage,
		Command: CmdReadWriteALDB,
		Payload: []byte{0x00, 0x00, 0x0f, 0xff, 0x01},
	}
	buf, err := msg.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	var got Message
	if err := got.UnmarshalBinary(buf); err != nil {
		t.Fatal(err)
	}
	if !got.VerifyChecksum() {
		t.Fatalf("checksum did not verify after round trip: D14=%#x", got.Payload[13])
	}

	got.Payload[13] ^= 0xff
	if got.VerifyChecksum() {
		t.Fatal("checksum verified after corrupting D14, want failure")
	}
}

func TestMessageVerifyChecksumIgnoresStandard(t *testing.T) {
	msg := &Message{Flags: StandardDirectMessage, Command: CmdLightOn}
	if !msg.VerifyChecksum() {
		t.Fatal("standard messages have no checksum to verify; VerifyChecksum should report true")
	}
}

func TestMessageMatchesCommandIgnoresCmd2(t *testing.T) {
	msg := &Message{Command: Command{0x19, 0x7f}}
	if !msg.MatchesCommand(CmdLightStatusReq) {
		t.Fatal("MatchesCommand should compare cmd1 only")
	}
	if msg.MatchesCommand(CmdLightOn) {
		t.Fatal("MatchesCommand should not match a different cmd1")
	}
}

func TestMessageBroadcastAccessors(t *testing.T) {
	msg := &Message{
		Src:   Address{0xaa, 0xbb, 0xcc},
		Dst:   Address{0x01, 0x02, 0x03},
		Flags: NewFlags(MsgTypeAllLinkBroadcast, false, 3, 3),
	}
	if !msg.Broadcast() {
		t.Fatal("expected Broadcast() true")
	}
	if msg.Group() != Group(0x03) {
		t.Fatalf("Group() = %v, want 3", msg.Group())
	}
	if got := msg.DevCat(); got != (DevCat{0x01, 0x02}) {
		t.Fatalf("DevCat() = %v, want {01 02}", got)
	}
}
