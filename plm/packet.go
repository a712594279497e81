package plm

import (
	"fmt"

	"github.com/krkeegan/insteon-mqtt"
)

// Command is the PLM-level command byte that follows the 0x02 start
// byte on the modem's serial link. It names a distinct framing from
// insteon.Command, which identifies an Insteon message's cmd1/cmd2 --
// a PLM command wraps zero or one insteon.Message plus its own
// fixed-length housekeeping fields.
type Command byte

// PLM command bytes, as documented in the Insteon Modem Developer's
// Guide. Only the subset needed to drive message send/receive and
// all-link database management is implemented.
const (
	CmdStandardMsgReceived   Command = 0x50
	CmdExtendedMsgReceived   Command = 0x51
	CmdX10Received           Command = 0x52
	CmdAllLinkComplete       Command = 0x53
	CmdButtonEvent           Command = 0x54
	CmdUserReset             Command = 0x55
	CmdAllLinkCleanupFailure Command = 0x56
	CmdAllLinkRecordResp     Command = 0x57
	CmdAllLinkCleanupStatus  Command = 0x58
	CmdGetInfo               Command = 0x60
	CmdSendAllLink           Command = 0x61
	CmdSendInsteonMsg        Command = 0x62
	CmdStartAllLinking       Command = 0x64
	CmdCancelAllLinking      Command = 0x65
	CmdGetFirstAllLink       Command = 0x69
	CmdGetNextAllLink        Command = 0x6a
	CmdManageAllLinkRecord   Command = 0x6f
)

func (c Command) String() string {
	return fmt.Sprintf("0x%02x", byte(c))
}

// commandLens gives the number of bytes that follow the command byte
// for each fixed-length PLM command, not counting the 14 extra bytes
// an extended insteon.Message appends. readPacket consults this to
// know how much to read before attempting to decode.
var commandLens = map[byte]int{
	byte(CmdStandardMsgReceived):   9,
	byte(CmdExtendedMsgReceived):   9,
	byte(CmdX10Received):           2,
	byte(CmdAllLinkComplete):       8,
	byte(CmdButtonEvent):           1,
	byte(CmdUserReset):             0,
	byte(CmdAllLinkCleanupFailure): 5,
	byte(CmdAllLinkRecordResp):     8,
	byte(CmdAllLinkCleanupStatus):  1,
	byte(CmdGetInfo):               7,
	byte(CmdSendAllLink):           4,
	byte(CmdSendInsteonMsg):        7,
	byte(CmdStartAllLinking):       3,
	byte(CmdCancelAllLinking):      1,
	byte(CmdGetFirstAllLink):       1,
	byte(CmdGetNextAllLink):        1,
	byte(CmdManageAllLinkRecord):   10,
}

// IMInfo is the response body of CmdGetInfo: the modem's own
// Insteon identity.
type IMInfo struct {
	Address  insteon.Address
	DevCat   insteon.DevCat
	Firmware insteon.FirmwareVersion
}

func (info *IMInfo) UnmarshalBinary(buf []byte) error {
	if len(buf) < 6 {
		return fmt.Errorf("plm: short IM info, need 6 bytes got %d", len(buf))
	}
	copy(info.Address[:], buf[0:3])
	info.DevCat = insteon.DevCat{buf[3], buf[4]}
	info.Firmware = insteon.FirmwareVersion(buf[5])
	return nil
}

// Packet is one frame on the PLM serial link: a 0x02 start byte (not
// stored), a command byte, and a fixed-length body. Frames that carry
// an Insteon message (0x50/0x51 inbound, the 0x62 send echo) embed an
// insteon.Message; the 0x62 echo and the other modem replies end with
// one trailing ACK/NAK byte.
type Packet struct {
	Command Command
	Ack     byte
	Payload []byte
	Msg     *insteon.Message

	retryCount int
}

// NAK reports whether the modem rejected this packet. A nil packet
// (e.g. on a send timeout) is treated as a NAK so callers can chain
// without an extra nil check.
func (p *Packet) NAK() bool {
	return p == nil || p.Ack == 0x15
}

func (p *Packet) String() string {
	if p == nil {
		return "<nil packet>"
	}
	if p.Msg != nil {
		return fmt.Sprintf("%s %s", p.Command, p.Msg)
	}
	return fmt.Sprintf("%s % x", p.Command, p.Payload)
}

// MarshalBinary encodes an outbound packet: 0x02, command byte, body.
// CmdSendInsteonMsg bodies are the wrapped Message; all other
// commands send Payload verbatim.
func (p *Packet) MarshalBinary() ([]byte, error) {
	buf := []byte{0x02, byte(p.Command)}
	if p.Command == CmdSendInsteonMsg && p.Msg != nil {
		body, err := p.Msg.MarshalBinary()
		if err != nil {
			return nil, err
		}
		return append(buf, body...), nil
	}
	return append(buf, p.Payload...), nil
}

// UnmarshalBinary decodes an inbound frame. buf does not include the
// leading 0x02; buf[0] is the command byte.
func (p *Packet) UnmarshalBinary(buf []byte) error {
	if len(buf) < 1 {
		return fmt.Errorf("plm: empty packet")
	}
	p.Command = Command(buf[0])
	body := buf[1:]

	switch p.Command {
	case CmdStandardMsgReceived, CmdExtendedMsgReceived:
		// Inbound frames carry fromAddress(3) + toAddress(3) + flags +
		// cmd1 + cmd2 [+ 14 extended bytes], unlike the dst-only layout
		// insteon.Message.UnmarshalBinary expects for outbound encoding,
		// so the src/dst split is handled here rather than delegated.
		if len(body) < 9 {
			return fmt.Errorf("plm: short message packet, need 9 bytes got %d", len(body))
		}
		msg := &insteon.Message{}
		copy(msg.Src[:], body[0:3])
		copy(msg.Dst[:], body[3:6])
		msg.Flags = insteon.Flags(body[6])
		msg.Command = insteon.Command{body[7], body[8]}
		if msg.Flags.IsExtended() {
			if len(body) < 23 {
				return fmt.Errorf("plm: short extended message packet, need 23 bytes got %d", len(body))
			}
			msg.Payload = append([]byte(nil), body[9:23]...)
		}
		p.Msg = msg
		return nil
	case CmdSendInsteonMsg:
		if len(body) == 0 {
			return fmt.Errorf("plm: short send-insteon-msg ack")
		}
		p.Ack = body[len(body)-1]
		msg := &insteon.Message{}
		if err := msg.UnmarshalBinary(body[:len(body)-1]); err != nil {
			return err
		}
		p.Msg = msg
		return nil
	case CmdGetFirstAllLink, CmdGetNextAllLink, CmdManageAllLinkRecord, CmdStartAllLinking, CmdCancelAllLinking, CmdGetInfo, CmdSendAllLink:
		if len(body) == 0 {
			return fmt.Errorf("plm: short ack-only packet")
		}
		p.Ack = body[len(body)-1]
		p.Payload = append([]byte(nil), body[:len(body)-1]...)
		return nil
	default:
		// Unsolicited notifications (X10, all-link completed, button
		// events, link record responses, cleanup reports) carry no
		// trailing ack byte -- the whole body is payload.
		p.Payload = append([]byte(nil), body...)
		return nil
	}
}
