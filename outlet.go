package insteon

// outletCmd is the pending completion captured when an Outlet sends
// an on/off command, queued FIFO and popped on the matching ACK
// (spec.md 4.7's pending_group_of_command correlation hack: the
// device's reply never echoes which of the two loads it addressed).
type outletCmd struct {
	group  Group
	isOn   bool
	level  byte
	mode   Mode
	reason StateReason
}

// OutletDevice models a dual-load in-wall outlet. Group 1 (the top
// receptacle) uses plain standard commands; group 2 (the bottom
// receptacle) overloads the same commands onto an extended message
// with D1=0x02 since the device otherwise has no way to steer a
// standard command at the second load (spec.md 4.7).
type OutletDevice struct {
	baseDevice
	isOn    [2]bool
	levels  [2]byte
	pending []outletCmd
}

// NewOutletDevice constructs an outlet bound to addr.
func NewOutletDevice(addr Address, name string, engine *ProtocolEngine, modem *Modem) *OutletDevice {
	d := &OutletDevice{baseDevice: newBaseDevice(addr, name, engine, modem)}
	d.RegisterCommand("on", func(req CommandRequest, done DoneFunc) {
		d.On(req.Group, req.Level, req.Mode, req.Reason, done)
	})
	d.RegisterCommand("off", func(req CommandRequest, done DoneFunc) {
		d.Off(req.Group, req.Mode, req.Reason, done)
	})
	d.RegisterGroupHandler(1, d.handleBroadcast)
	d.RegisterGroupHandler(2, d.handleBroadcast)
	return d
}

// On turns a load on. group must be 1 or 2.
func (d *OutletDevice) On(group Group, level byte, mode Mode, reason StateReason, done DoneFunc) {
	cmd := CmdLightOn
	if mode == ModeFast {
		cmd = CmdLightOnFast
	}
	d.send(group, cmd, true, level, reason, done)
}

// Off turns a load off. group must be 1 or 2.
func (d *OutletDevice) Off(group Group, mode Mode, reason StateReason, done DoneFunc) {
	cmd := CmdLightOff
	if mode == ModeFast {
		cmd = CmdLightOffFast
	}
	d.send(group, cmd, false, 0, reason, done)
}

func (d *OutletDevice) send(group Group, cmd Command, isOn bool, level byte, reason StateReason, done DoneFunc) {
	msg := &Message{Dst: d.addr, Command: cmd}
	if group == 2 {
		msg.Flags = ExtendedDirectMessage
		payload := make([]byte, 14)
		payload[0] = 0x02
		msg.Payload = payload
	} else {
		msg.Flags = StandardDirectMessage
	}

	d.pending = append(d.pending, outletCmd{group: group, isOn: isOn, level: level, mode: ModeNormal, reason: reason})

	handler := NewStandardCmd(d.addr, cmd, func(success bool, status string, payload interface{}) {
		d.handleAck(success, status, payload, done)
	})
	d.engine.Send(msg, handler, false)
}

// handleAck pops the oldest pending command and, on success,
// attributes the resulting state to the group that command targeted
// (spec.md 8 invariant 6: after N ACKed on/off calls, the pending
// queue is empty and _is_on reflects the last command per group).
func (d *OutletDevice) handleAck(success bool, status string, payload interface{}, done DoneFunc) {
	if len(d.pending) == 0 {
		Log.Errorf("insteon: outlet %s received ACK with no pending command", d.addr)
		done(success, status, payload)
		return
	}
	cmd := d.pending[0]
	d.pending = d.pending[1:]

	if success {
		idx := cmd.group - 1
		d.isOn[idx] = cmd.isOn
		d.levels[idx] = cmd.level
		d.setState(cmd.group, cmd.isOn, cmd.level, cmd.mode, cmd.reason)
	}
	done(success, status, payload)
}

// Refresh requests status and, per spec.md 8 scenario 2, interprets
// cmd2 as a two-bit mask (bit0=group1, bit1=group2) and emits a
// signal_state for each group.
func (d *OutletDevice) Refresh(force bool, done DoneFunc) {
	d.refreshCommon(force, func(stateByte byte) {
		for i := 0; i < 2; i++ {
			on := stateByte&(1<<uint(i)) != 0
			d.isOn[i] = on
			if on {
				d.levels[i] = 0xff
			} else {
				d.levels[i] = 0
			}
			d.setState(Group(i+1), on, d.levels[i], ModeNormal, ReasonRefresh)
		}
	}, done)
}

// IsOn reports the last known state of the given group (1 or 2).
func (d *OutletDevice) IsOn(group Group) bool { return d.isOn[group-1] }

// PendingLen exposes the current queue depth, used by tests to assert
// spec.md 8 invariant 6 (queue empties once every command ACKs).
func (d *OutletDevice) PendingLen() int { return len(d.pending) }

func (d *OutletDevice) handleBroadcast(msg *Message) {
	isOn := msg.Command[0] == CmdLightOn[0] || msg.Command[0] == CmdLightOnFast[0]
	isOff := msg.Command[0] == CmdLightOff[0] || msg.Command[0] == CmdLightOffFast[0]
	if !isOn && !isOff {
		return
	}
	group := msg.Group()
	if group < 1 || group > 2 {
		return
	}
	idx := group - 1
	d.isOn[idx] = isOn
	if isOn {
		d.levels[idx] = 0xff
	} else {
		d.levels[idx] = 0
	}
	d.setState(group, isOn, d.levels[idx], ModeNormal, ReasonDevice)
}
