package plm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krkeegan/insteon-mqtt"
)

func TestPacketUnmarshalStandardMsgReceived(t *testing.T) {
	flags := byte(insteon.NewFlags(insteon.MsgTypeDirectAck, false, 3, 3))
	body := []byte{
		byte(CmdStandardMsgReceived),
		0x11, 0x22, 0x33, // from
		0x44, 0x55, 0x66, // to
		flags,
		0x11, 0x00, // cmd1/cmd2
	}

	p := &Packet{}
	require.NoError(t, p.UnmarshalBinary(body))
	require.NotNil(t, p.Msg)
	assert.Equal(t, insteon.Address{0x11, 0x22, 0x33}, p.Msg.Src)
	assert.Equal(t, insteon.Address{0x44, 0x55, 0x66}, p.Msg.Dst)
	assert.Equal(t, insteon.Command{0x11, 0x00}, p.Msg.Command)
}

func TestPacketUnmarshalExtendedMsgReceivedCarriesPayload(t *testing.T) {
	flags := byte(insteon.NewFlags(insteon.MsgTypeDirectAck, true, 3, 3))
	body := append([]byte{
		byte(CmdExtendedMsgReceived),
		0x11, 0x22, 0x33,
		0x44, 0x55, 0x66,
		flags,
		0x2f, 0x00,
	}, make([]byte, 14)...)

	p := &Packet{}
	require.NoError(t, p.UnmarshalBinary(body))
	assert.Len(t, p.Msg.Payload, 14)
}

func TestPacketUnmarshalAckOnlyCommand(t *testing.T) {
	body := []byte{byte(CmdGetFirstAllLink), 0x06}
	p := &Packet{}
	require.NoError(t, p.UnmarshalBinary(body))
	assert.EqualValues(t, 0x06, p.Ack)
	assert.False(t, p.NAK(), "0x06 is an ACK, not a NAK")
}

func TestPacketNAKByte(t *testing.T) {
	body := []byte{byte(CmdGetFirstAllLink), 0x15}
	p := &Packet{}
	require.NoError(t, p.UnmarshalBinary(body))
	assert.True(t, p.NAK())
}

func TestPacketNilIsNAK(t *testing.T) {
	var p *Packet
	assert.True(t, p.NAK(), "a nil packet should be treated as a NAK")
}

func TestPacketUnmarshalUnsolicitedNotificationHasNoAckByte(t *testing.T) {
	body := []byte{byte(CmdButtonEvent), 0x02}
	p := &Packet{}
	require.NoError(t, p.UnmarshalBinary(body))
	assert.Equal(t, []byte{0x02}, p.Payload)
}

func TestPacketMarshalSendInsteonMsg(t *testing.T) {
	p := &Packet{
		Command: CmdSendInsteonMsg,
		Msg: &insteon.Message{
			Dst:     insteon.Address{0x11, 0x22, 0x33},
			Flags:   insteon.StandardDirectMessage,
			Command: insteon.CmdLightOn,
		},
	}
	buf, err := p.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, byte(0x02), buf[0])
	assert.Equal(t, byte(CmdSendInsteonMsg), buf[1])
}
