package insteon

// CmdRampRate is the extended "start manual ramp to level" command
// used by DimmerDevice.On when Mode is ModeRamp.
var CmdRampRate = Command{0x2e, 0x00}

// DimmerDevice is a single-load dimmable switch. It embeds
// OnOffDevice for the normal/fast on/off paths and adds a ramp-to-
// level extended command (spec.md 4.7).
type DimmerDevice struct {
	*OnOffDevice
}

// NewDimmerDevice constructs a dimmer bound to addr.
func NewDimmerDevice(addr Address, name string, engine *ProtocolEngine, modem *Modem) *DimmerDevice {
	d := &DimmerDevice{OnOffDevice: NewOnOffDevice(addr, name, engine, modem)}
	d.RegisterCommand("on", func(req CommandRequest, done DoneFunc) {
		d.On(req.Group, req.Level, req.Mode, req.Reason, done)
	})
	return d
}

// On overrides OnOffDevice.On to add ramp-mode support: NORMAL and
// FAST delegate to the embedded switch logic; RAMP encodes the
// transition rate into the extended command's 4-bit field and sends
// it as an extended message. No RAMP->NORMAL coercion happens here
// (spec.md 7); this type always sends RAMP as the ramp command.
func (d *DimmerDevice) On(group Group, level byte, mode Mode, reason StateReason, done DoneFunc) {
	if mode != ModeRamp {
		d.OnOffDevice.On(group, level, mode, reason, done)
		return
	}
	d.rampOn(group, level, 0x02, reason, done)
}

// rampOn issues the extended ramp command; rate is a 4-bit value
// (0-15) selecting one of the device's pre-configured ramp rates.
func (d *DimmerDevice) rampOn(group Group, level byte, rate byte, reason StateReason, done DoneFunc) {
	payload := make([]byte, 14)
	payload[0] = level
	payload[1] = (rate & 0x0f) << 4
	msg := &Message{Dst: d.addr, Flags: ExtendedDirectMessage, Command: CmdRampRate, Payload: payload}

	handler := NewStandardCmd(d.addr, CmdRampRate, func(success bool, status string, payload interface{}) {
		if success {
			d.isOn = level > 0
			d.level = level
			d.setState(group, d.isOn, level, ModeRamp, reason)
		}
		done(success, status, payload)
	})
	d.engine.Send(msg, handler, false)
}
