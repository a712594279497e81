package insteon

import "fmt"

// MsgType classifies the type field of a message's Flags byte.
type MsgType byte

const (
	MsgTypeDirect              MsgType = 0x00
	MsgTypeDirectAck           MsgType = 0x01
	MsgTypeAllLinkCleanup      MsgType = 0x02
	MsgTypeAllLinkCleanupAck   MsgType = 0x03
	MsgTypeBroadcast           MsgType = 0x04
	MsgTypeDirectNak           MsgType = 0x05
	MsgTypeAllLinkBroadcast    MsgType = 0x06
	MsgTypeAllLinkCleanupNak   MsgType = 0x07
)

func (t MsgType) String() string {
	switch t {
	case MsgTypeDirect:
		return "Direct"
	case MsgTypeDirectAck:
		return "Direct ACK"
	case MsgTypeAllLinkCleanup:
		return "All-Link Cleanup"
	case MsgTypeAllLinkCleanupAck:
		return "All-Link Cleanup ACK"
	case MsgTypeBroadcast:
		return "Broadcast"
	case MsgTypeDirectNak:
		return "Direct NAK"
	case MsgTypeAllLinkBroadcast:
		return "All-Link Broadcast"
	case MsgTypeAllLinkCleanupNak:
		return "All-Link Cleanup NAK"
	}
	return "unknown"
}

// Flags is the single byte that precedes cmd1/cmd2 in every standard
// and extended Insteon message. It packs the message type, the
// extended bit and the hop counters: type<<5 | extended<<4 |
// max_hops<<2 | hops_left.
type Flags byte

// NewFlags builds a Flags byte from its components. maxHops and
// hopsLeft are clamped to the 2-bit range (0-3).
func NewFlags(t MsgType, extended bool, maxHops, hopsLeft int) Flags {
	maxHops &= 0x03
	hopsLeft &= 0x03
	var e byte
	if extended {
		e = 1
	}
	return Flags(byte(t)<<5 | e<<4 | byte(maxHops)<<2 | byte(hopsLeft))
}

// StandardDirectMessage and ExtendedDirectMessage are the flag values
// used for outbound direct commands, defaulting to 3 max-hops/3
// hops-left as the teacher's messages always do.
var (
	StandardDirectMessage = NewFlags(MsgTypeDirect, false, 3, 3)
	ExtendedDirectMessage = NewFlags(MsgTypeDirect, true, 3, 3)
)

// Type returns the message type encoded in the flags.
func (f Flags) Type() MsgType { return MsgType(f >> 5) }

// IsExtended reports whether the extended bit is set.
func (f Flags) IsExtended() bool { return f&0x10 != 0 }

// MaxHops returns the configured maximum hop count (0-3).
func (f Flags) MaxHops() int { return int(f>>2) & 0x03 }

// HopsLeft returns the remaining hop count (0-3).
func (f Flags) HopsLeft() int { return int(f) & 0x03 }

// StripHops clears the hop fields, useful when comparing flags for
// logical equality regardless of how far a message has propagated.
func (f Flags) StripHops() Flags {
	return f &^ 0x0f
}

// Broadcast reports whether this flag marks an all-link broadcast or
// a plain (e.g. Set-Button-Pressed) broadcast message.
func (f Flags) Broadcast() bool {
	t := f.Type()
	return t == MsgTypeAllLinkBroadcast || t == MsgTypeBroadcast
}

// Ack reports whether this flag marks a direct ACK.
func (f Flags) Ack() bool { return f.Type() == MsgTypeDirectAck }

// Nak reports whether this flag marks a direct NAK.
func (f Flags) Nak() bool { return f.Type() == MsgTypeDirectNak }

func (f Flags) String() string {
	return fmt.Sprintf("%s(ext=%v,hops=%d/%d)", f.Type(), f.IsExtended(), f.HopsLeft(), f.MaxHops())
}
