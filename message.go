package insteon

import (
	"fmt"
)

// StandardLen and ExtendedLen are the encoded payload sizes (address,
// address/group, flags, cmd1, cmd2, plus 14 extra bytes for extended)
// used throughout decode to decide how many bytes remain to be read.
const (
	StandardLen = 9
	ExtendedLen = 23
)

// Message models both inbound and outbound standard/extended Insteon
// messages (spec.md's OutStandard/OutExtended/InpStandard/
// InpExtended). A single struct is used for all four variants, the
// same way the teacher's Message type is shared between send and
// receive paths; callers branch on Flags.Type() and Flags.Broadcast()
// to interpret Dst as either a destination address or a
// (group, devcat, subcat) triple.
type Message struct {
	Src     Address
	Dst     Address
	Flags   Flags
	Command Command
	Payload []byte // 14 bytes, only present when Flags.IsExtended()

	// Local marks an OutAllLinkTrigger: a PLM-local "send all-link
	// command" rather than a message routed to a specific device
	// address. The PLM link layer encodes these as a distinct packet
	// type (spec.md 3's modem local commands).
	Local bool
}

// Group returns the all-link group number carried in Dst[2] for
// broadcast messages. Callers must check Flags.Broadcast() first.
func (m *Message) Group() Group {
	return Group(m.Dst[2])
}

// DevCat returns the device category/subcategory carried in Dst[0:2]
// for Set-Button-Pressed broadcast messages.
func (m *Message) DevCat() DevCat {
	return DevCat{m.Dst[0], m.Dst[1]}
}

// Broadcast reports whether this message is an all-link broadcast or
// plain (ID-request) broadcast.
func (m *Message) Broadcast() bool { return m.Flags.Broadcast() }

// Ack reports whether this message is a direct ACK.
func (m *Message) Ack() bool { return m.Flags.Ack() }

// Nak reports whether this message is a direct NAK.
func (m *Message) Nak() bool { return m.Flags.Nak() }

// MatchesCommand compares cmd1 only, which is how the protocol
// correlates replies to requests (cmd2 often carries response data).
func (m *Message) MatchesCommand(c Command) bool {
	return m.Command[0] == c[0]
}

// checksum implements the D14 algorithm from spec.md 4.1: sum cmd1,
// cmd2, D1..D13 modulo 256, then two's complement negate.
func checksum(cmd1, cmd2 byte, data []byte) byte {
	var sum byte
	sum += cmd1
	sum += cmd2
	for _, b := range data {
		sum += b
	}
	return byte((^sum) + 1)
}

// MarshalBinary encodes the message body (destination address, flags,
// cmd1, cmd2, and the 14 payload bytes when extended). It does not
// include the leading 0x02/type-byte framing or a source address;
// the framing is added by the plm package.
func (m *Message) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, ExtendedLen)
	buf = append(buf, m.Dst[:]...)
	buf = append(buf, byte(m.Flags), m.Command[0], m.Command[1])

	if m.Flags.IsExtended() {
		payload := make([]byte, 14)
		copy(payload, m.Payload)
		defaultChecksum := len(m.Payload) < 14 || m.Payload[13] == 0
		if defaultChecksum {
			payload[13] = checksum(m.Command[0], m.Command[1], payload[:13])
		}
		buf = append(buf, payload...)
	}
	return buf, nil
}

// UnmarshalBinary decodes a message body. buf must begin with the
// 3-byte address/group field followed by flags, cmd1, cmd2, and (if
// the extended bit is set) 14 data bytes.
func (m *Message) UnmarshalBinary(buf []byte) error {
	if len(buf) < 6 {
		return fmt.Errorf("insteon: short message, need at least 6 bytes got %d", len(buf))
	}
	copy(m.Dst[:], buf[0:3])
	m.Flags = Flags(buf[3])
	m.Command = Command{buf[4], buf[5]}

	if m.Flags.IsExtended() {
		if len(buf) < 20 {
			return fmt.Errorf("insteon: short extended message, need 20 bytes got %d", len(buf))
		}
		m.Payload = append([]byte(nil), buf[6:20]...)
	}
	return nil
}

func (m *Message) String() string {
	if m.Flags.Broadcast() {
		return fmt.Sprintf("%s -> group %d %s %s", m.Src, m.Group(), m.Flags, m.Command)
	}
	return fmt.Sprintf("%s -> %s %s %s", m.Src, m.Dst, m.Flags, m.Command)
}

// VerifyChecksum reports whether an extended message's D14 matches
// the checksum computed over cmd1, cmd2, D1..D13 -- used by receivers
// per spec.md 4.1's invariant that a mismatch is rejected.
func (m *Message) VerifyChecksum() bool {
	if !m.Flags.IsExtended() || len(m.Payload) != 14 {
		return true
	}
	return m.Payload[13] == checksum(m.Command[0], m.Command[1], m.Payload[:13])
}
