// Package plm drives a PowerLinc Modem over its serial interface,
// framing outbound insteon.Message values as PLM packets and
// delivering inbound ones back to the insteon package's
// ProtocolEngine through the insteon.Link interface.
package plm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/krkeegan/insteon-mqtt"
)

var ErrNotImplemented = errors.New("plm: command not implemented")

// frameError marks a malformed-frame condition (bad start byte,
// unrecognized command, short or unparseable body) as distinct from a
// transport failure. readPktLoop resyncs on a frameError instead of
// tearing down the connection.
type frameError struct{ err error }

func (e *frameError) Error() string { return e.err.Error() }
func (e *frameError) Unwrap() error { return e.err }

// PLM owns the serial connection to the modem. A single read goroutine
// parses the byte stream into Packets; a single write/dispatch
// goroutine serializes writes and correlates ACK/NAK replies to the
// command that triggered them, the same split the teacher used to
// keep the wire protocol single-threaded.
type PLM struct {
	in      *bufio.Reader
	out     io.Writer
	timeout time.Duration

	txPktCh chan *txPacketInfo
	rxPktCh chan *Packet

	inbound      chan *insteon.Message
	disconnected chan error
	recordResp   chan *Packet

	linkDB *PLMLinkDB
}

type txPacketInfo struct {
	packet *Packet
	ackCh  chan *Packet
}

// New wraps port (already opened, e.g. via github.com/tarm/serial) as
// a PLM and starts its read/dispatch goroutines.
func New(port io.ReadWriter, timeout time.Duration) *PLM {
	p := &PLM{
		in:      bufio.NewReader(port),
		out:     port,
		timeout: timeout,

		txPktCh: make(chan *txPacketInfo, 1),
		rxPktCh: make(chan *Packet, 4),

		inbound:      make(chan *insteon.Message, 4),
		disconnected: make(chan error, 1),
		recordResp:   make(chan *Packet, 1),
	}
	p.linkDB = &PLMLinkDB{plm: p}
	go p.readPktLoop()
	go p.dispatchLoop()
	return p
}

func traceBuf(prefix string, buf []byte) {
	bb := make([]string, len(buf))
	for i, b := range buf {
		bb[i] = fmt.Sprintf("%02x", b)
	}
	insteon.Log.Tracef("%-5s buffer %s", prefix, strings.Join(bb, " "))
}

func (p *PLM) readPacket() (*Packet, error) {
	var buf []byte
	b, err := p.in.ReadByte()
	if err != nil {
		return nil, err
	}
	if b != 0x02 {
		return nil, &frameError{fmt.Errorf("plm: expected start byte 0x02, got 0x%02x", b)}
	}

	b, err = p.in.ReadByte()
	if err != nil {
		return nil, err
	}
	buf = append(buf, b)

	bodyLen, ok := commandLens[b]
	if !ok {
		return nil, &frameError{fmt.Errorf("plm: received unknown command 0x%02x", b)}
	}
	body := make([]byte, bodyLen)
	if _, err := io.ReadAtLeast(p.in, body, bodyLen); err != nil {
		return nil, err
	}
	buf = append(buf, body...)

	// Extended messages carry 14 more bytes than the fixed standard
	// frame; commandLens only accounts for the standard length. The
	// flags byte sits at a different offset for an inbound message
	// (after from+to addresses) than for the modem's echo of an
	// outbound send (after dst only).
	extended := false
	switch Command(b) {
	case CmdStandardMsgReceived, CmdExtendedMsgReceived:
		extended = insteon.Flags(body[6]).IsExtended()
	case CmdSendInsteonMsg:
		extended = insteon.Flags(body[3]).IsExtended()
	}
	if extended {
		extra := make([]byte, 14)
		if _, err := io.ReadAtLeast(p.in, extra, 14); err != nil {
			return nil, err
		}
		buf = append(buf, extra...)
	}

	traceBuf("RX", append([]byte{0x02}, buf...))
	packet := &Packet{}
	if err := packet.UnmarshalBinary(buf); err != nil {
		return nil, &frameError{err}
	}
	return packet, nil
}

// readPktLoop resyncs on a malformed frame by logging and continuing:
// each read advances at least one byte into the stream, so garbage or
// an unmodeled command byte is skipped rather than killing the link.
// Only a genuine transport failure (closed port, EOF) disconnects.
func (p *PLM) readPktLoop() {
	for {
		packet, err := p.readPacket()
		if err != nil {
			var fe *frameError
			if errors.As(err, &fe) {
				insteon.Log.Infof("plm: resyncing after malformed frame: %v", err)
				continue
			}
			insteon.Log.Infof("plm: read error: %v", err)
			select {
			case p.disconnected <- err:
			default:
			}
			return
		}
		insteon.Log.Tracef("RX %s", packet)
		p.rxPktCh <- packet
	}
}

func (p *PLM) writePacket(packet *Packet) error {
	payload, err := packet.MarshalBinary()
	if err != nil {
		return err
	}
	traceBuf("TX", payload)
	_, err = p.out.Write(payload)
	return err
}

// dispatchLoop is the PLM's single goroutine serializing writes
// against reads: it owns ackChannels and needs no locking because
// every access happens on this one goroutine, mirroring the
// ProtocolEngine's own run loop.
func (p *PLM) dispatchLoop() {
	ackChannels := make(map[Command]chan *Packet)
	for {
		select {
		case send := <-p.txPktCh:
			ackChannels[send.packet.Command] = send.ackCh
			if err := p.writePacket(send.packet); err != nil {
				insteon.Log.Infof("plm: write error: %v", err)
			}
		case packet := <-p.rxPktCh:
			switch {
			case packet.Command == CmdStandardMsgReceived || packet.Command == CmdExtendedMsgReceived:
				select {
				case p.inbound <- packet.Msg:
				default:
					insteon.Log.Infof("plm: inbound channel full, dropping message")
				}
			case packet.Command == CmdAllLinkRecordResp:
				select {
				case p.recordResp <- packet:
				default:
					insteon.Log.Infof("plm: record response channel full, dropping record")
				}
			case packet.Command == CmdSendInsteonMsg || packet.Command == CmdGetInfo ||
				packet.Command == CmdSendAllLink || packet.Command == CmdGetFirstAllLink ||
				packet.Command == CmdGetNextAllLink || packet.Command == CmdManageAllLinkRecord ||
				packet.Command == CmdStartAllLinking || packet.Command == CmdCancelAllLinking:
				if ackCh, ok := ackChannels[packet.Command]; ok && ackCh != nil {
					ackCh <- packet
					ackChannels[packet.Command] = nil
				}
			default:
				// Button events and cleanup reports: no consumer
				// currently subscribes to these asynchronously.
				insteon.Log.Debugf("plm: unhandled notification %s", packet)
			}
		}
	}
}

func (p *PLM) send(packet *Packet) (*Packet, error) {
	ackCh := make(chan *Packet, 1)
	p.txPktCh <- &txPacketInfo{packet: packet, ackCh: ackCh}
	select {
	case ack := <-ackCh:
		return ack, nil
	case <-time.After(p.timeout):
		return nil, insteon.ErrAckTimeout
	}
}

// Write implements insteon.Link: it frames msg as a CmdSendInsteonMsg
// packet, or a CmdSendAllLink packet when msg.Local is set (a PLM-local
// scene trigger rather than a message addressed to a device).
func (p *PLM) Write(msg *insteon.Message) error {
	var packet *Packet
	if msg.Local {
		packet = &Packet{
			Command: CmdSendAllLink,
			Payload: []byte{msg.Dst[2], msg.Command[0], msg.Command[1]},
		}
	} else {
		packet = &Packet{Command: CmdSendInsteonMsg, Msg: msg}
	}
	ack, err := p.send(packet)
	if err != nil {
		return err
	}
	if ack.NAK() {
		return insteon.ErrUnexpectedResponse
	}
	return nil
}

// Inbound implements insteon.Link.
func (p *PLM) Inbound() <-chan *insteon.Message { return p.inbound }

// Disconnected implements insteon.Link.
func (p *PLM) Disconnected() <-chan error { return p.disconnected }

// Info retrieves the modem's own Insteon identity.
func (p *PLM) Info() (*IMInfo, error) {
	ack, err := p.send(&Packet{Command: CmdGetInfo})
	if err != nil {
		return nil, err
	}
	if ack.NAK() {
		return nil, insteon.ErrUnexpectedResponse
	}
	info := &IMInfo{}
	if err := info.UnmarshalBinary(ack.Payload); err != nil {
		return nil, err
	}
	return info, nil
}

// LinkDB returns the modem's own all-link database accessor,
// satisfying insteon.ModemLinkDB.
func (p *PLM) LinkDB() *PLMLinkDB { return p.linkDB }
