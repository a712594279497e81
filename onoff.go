package insteon

// OnOffDevice is a single-load on/off switch -- the simplest concrete
// Device, always addressing group 1 (spec.md 4.7).
type OnOffDevice struct {
	baseDevice
	isOn  bool
	level byte
}

// NewOnOffDevice constructs a switch bound to addr.
func NewOnOffDevice(addr Address, name string, engine *ProtocolEngine, modem *Modem) *OnOffDevice {
	d := &OnOffDevice{baseDevice: newBaseDevice(addr, name, engine, modem)}
	d.RegisterCommand("on", func(req CommandRequest, done DoneFunc) {
		d.On(req.Group, req.Level, req.Mode, req.Reason, done)
	})
	d.RegisterCommand("off", func(req CommandRequest, done DoneFunc) {
		d.Off(req.Group, req.Mode, req.Reason, done)
	})
	d.RegisterGroupHandler(1, d.handleBroadcast)
	return d
}

// On sends the appropriate on command for mode (normal or fast) at
// level, and on ACK updates local state and emits signal_state with
// reason (spec.md 8 end-to-end scenario 1).
func (d *OnOffDevice) On(group Group, level byte, mode Mode, reason StateReason, done DoneFunc) {
	cmd := CmdLightOn
	if mode == ModeFast {
		cmd = CmdLightOnFast
	}
	d.sendOnOff(group, cmd.SubCommand(int(level)), true, level, reason, done)
}

// Off sends the off command and, on ACK, updates local state.
func (d *OnOffDevice) Off(group Group, mode Mode, reason StateReason, done DoneFunc) {
	cmd := CmdLightOff
	if mode == ModeFast {
		cmd = CmdLightOffFast
	}
	d.sendOnOff(group, cmd, false, 0, reason, done)
}

func (d *OnOffDevice) sendOnOff(group Group, cmd Command, isOn bool, level byte, reason StateReason, done DoneFunc) {
	msg := &Message{Dst: d.addr, Flags: StandardDirectMessage, Command: cmd}
	handler := NewStandardCmd(d.addr, cmd, func(success bool, status string, payload interface{}) {
		if success {
			d.isOn = isOn
			d.level = level
			d.setState(group, isOn, level, ModeNormal, reason)
		}
		done(success, status, payload)
	})
	d.engine.Send(msg, handler, false)
}

// Refresh implements Device.
func (d *OnOffDevice) Refresh(force bool, done DoneFunc) {
	d.refreshCommon(force, func(stateByte byte) {
		d.isOn = stateByte != 0
		if d.isOn {
			d.level = 0xff
		} else {
			d.level = 0
		}
		d.setState(1, d.isOn, d.level, ModeNormal, ReasonRefresh)
	}, done)
}

// IsOn reports the last known on/off state.
func (d *OnOffDevice) IsOn() bool { return d.isOn }

// handleBroadcast processes this device's own all-link broadcast
// (e.g. a physical button press) and updates state with reason
// "device" (spec.md 4.7's state update pathway).
func (d *OnOffDevice) handleBroadcast(msg *Message) {
	isOn := msg.Command[0] == CmdLightOn[0] || msg.Command[0] == CmdLightOnFast[0]
	isOff := msg.Command[0] == CmdLightOff[0] || msg.Command[0] == CmdLightOffFast[0]
	if !isOn && !isOff {
		return
	}
	d.isOn = isOn
	if isOn {
		d.level = 0xff
	} else {
		d.level = 0
	}
	d.setState(msg.Group(), d.isOn, d.level, ModeNormal, ReasonDevice)
}
