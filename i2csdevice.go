package insteon

import "fmt"

// i2csDevice extends i1Device with the linking-mode commands
// introduced by the I2Cs engine: entering linking/unlinking mode is
// driven directly by command rather than the physical set button
// (spec.md 4.10's engine-version dispatch).
type i2csDevice struct {
	*i1Device
}

// newI2CsDevice wraps an already-constructed i1Device, the same way
// the teacher's NewI2CsDevice composed over an I2Device.
func newI2CsDevice(base *i1Device) *i2csDevice {
	base.engineVersion = VerI2Cs
	return &i2csDevice{base}
}

// EnterLinkingMode puts the device into all-linking mode for group,
// as though its set button had been held down.
func (i2cs *i2csDevice) EnterLinkingMode(group Group, done DoneFunc) {
	msg := &Message{
		Dst:     i2cs.addr,
		Flags:   ExtendedDirectMessage,
		Command: CmdEnterLinkingModeExt.SubCommand(int(group)),
		Payload: make([]byte, 14),
	}
	handler := NewStandardCmd(i2cs.addr, msg.Command, done)
	i2cs.engine.Send(msg, handler, false)
}

// EnterUnlinkingMode puts the device into all-link unlinking mode for
// group.
func (i2cs *i2csDevice) EnterUnlinkingMode(group Group, done DoneFunc) {
	i2cs.sendStandard(CmdEnterUnlinkingMode.SubCommand(int(group)), done)
}

func (i2cs *i2csDevice) String() string {
	return fmt.Sprintf("I2CS Device (%s)", i2cs.Address())
}
