package plm

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/krkeegan/insteon-mqtt"
)

// readRequest reads one outbound PLM frame off conn: the 0x02 start
// byte, the command byte, and its request-side body -- the number of
// bytes a real modem would expect to receive before replying, which
// for the ack-only commands exercised here matches commandLens minus
// the trailing ack byte the modem itself appends.
func readRequest(t *testing.T, conn io.Reader, reqBodyLen int) byte {
	t.Helper()
	hdr := make([]byte, 2)
	if _, err := io.ReadFull(conn, hdr); err != nil {
		t.Fatalf("reading request header: %v", err)
	}
	if hdr[0] != 0x02 {
		t.Fatalf("expected start byte 0x02, got %#x", hdr[0])
	}
	if reqBodyLen > 0 {
		body := make([]byte, reqBodyLen)
		if _, err := io.ReadFull(conn, body); err != nil {
			t.Fatalf("reading request body: %v", err)
		}
	}
	return hdr[1]
}

func TestPLMLinkDBLinksWalksUntilNAK(t *testing.T) {
	modemSide, plmSide := net.Pipe()
	defer modemSide.Close()

	p := New(plmSide, time.Second)

	rec := &insteon.LinkRecord{
		Flags:   0x80 | 0x40,
		Group:   1,
		Address: insteon.Address{0x11, 0x22, 0x33},
		Data1:   0x03,
	}
	recBytes, err := rec.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		// CmdGetFirstAllLink (0x69) has a 0-byte request body; the modem
		// ACKs immediately, then the record itself arrives separately as
		// an unsolicited All-Link Record Response (0x57) notification.
		cmd := readRequest(t, modemSide, 0)
		if cmd != byte(CmdGetFirstAllLink) {
			t.Errorf("expected CmdGetFirstAllLink, got %#x", cmd)
		}
		if _, err := modemSide.Write([]byte{0x02, byte(CmdGetFirstAllLink), 0x06}); err != nil {
			t.Errorf("writing first-link ACK: %v", err)
		}
		recordResp := append([]byte{0x02, byte(CmdAllLinkRecordResp)}, recBytes...)
		if _, err := modemSide.Write(recordResp); err != nil {
			t.Errorf("writing record response: %v", err)
		}

		cmd = readRequest(t, modemSide, 0)
		if cmd != byte(CmdGetNextAllLink) {
			t.Errorf("expected CmdGetNextAllLink, got %#x", cmd)
		}
		// NAK: no more records.
		if _, err := modemSide.Write([]byte{0x02, byte(CmdGetNextAllLink), 0x15}); err != nil {
			t.Errorf("writing next-link NAK: %v", err)
		}
	}()

	links, err := p.LinkDB().Links()
	if err != nil {
		t.Fatal(err)
	}
	<-done

	if len(links) != 1 {
		t.Fatalf("got %d links, want 1", len(links))
	}
	if links[0].Address != rec.Address {
		t.Fatalf("link address = %v, want %v", links[0].Address, rec.Address)
	}
}

func TestPLMWriteReturnsErrOnNAK(t *testing.T) {
	modemSide, plmSide := net.Pipe()
	defer modemSide.Close()

	p := New(plmSide, time.Second)

	msg := &insteon.Message{
		Dst:     insteon.Address{0x11, 0x22, 0x33},
		Flags:   insteon.StandardDirectMessage,
		Command: insteon.CmdLightOn,
	}

	go func() {
		// Outbound request body is the bare message encoding (dst(3)+
		// flags+cmd1+cmd2 = 6 bytes for a standard message); the ack byte
		// commandLens accounts for belongs only to the modem's reply.
		cmd := readRequest(t, modemSide, 6)
		if cmd != byte(CmdSendInsteonMsg) {
			t.Errorf("expected CmdSendInsteonMsg, got %#x", cmd)
		}
		msgBytes, err := msg.MarshalBinary()
		if err != nil {
			t.Errorf("marshaling echoed message: %v", err)
			return
		}
		reply := append([]byte{0x02, byte(CmdSendInsteonMsg)}, msgBytes...)
		reply = append(reply, 0x15) // NAK
		modemSide.Write(reply)
	}()

	if err := p.Write(msg); err != insteon.ErrUnexpectedResponse {
		t.Fatalf("Write() = %v, want ErrUnexpectedResponse", err)
	}
}

func TestPLMInfo(t *testing.T) {
	modemSide, plmSide := net.Pipe()
	defer modemSide.Close()

	p := New(plmSide, time.Second)

	go func() {
		hdr := make([]byte, 2)
		io.ReadFull(modemSide, hdr)
		reply := []byte{
			0x02, byte(CmdGetInfo),
			0x11, 0x22, 0x33, // address
			0x01, 0x00, // devcat/subcat
			0x02,       // firmware
			0x06,       // ACK
		}
		modemSide.Write(reply)
	}()

	info, err := p.Info()
	if err != nil {
		t.Fatal(err)
	}
	if info.Address != (insteon.Address{0x11, 0x22, 0x33}) {
		t.Fatalf("Address = %v, want 11.22.33", info.Address)
	}
}
