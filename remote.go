package insteon

// CmdExtendedFlagsRequest is the 0x2e 0x00 extended "get extended
// flags" command; D1=0x01 requests the battery status page on
// battery-powered controllers (spec.md 4.7).
var CmdExtendedFlagsRequest = Command{0x2e, 0x00}

// batteryDivisor is the divisor applied to the raw D11 byte to
// yield a voltage reading (spec.md 4.7: "divide raw byte by 50").
const batteryDivisor = 50.0

// RemoteMetaNamespace is the DeviceDatabase meta key under which a
// Remote's last known battery voltage is stored.
const RemoteMetaNamespace = "Remote"

// RemoteDevice is a one-way, battery-powered controller (a keypad
// remote or similar). It never receives direct commands; it only
// originates all-link broadcasts on its configured button groups and
// answers an extended flags request with its battery voltage (spec.md
// 4.7).
type RemoteDevice struct {
	baseDevice
	groups []Group
}

// NewRemoteDevice constructs a Remote bound to addr, listening for
// broadcasts on each of groups.
func NewRemoteDevice(addr Address, name string, engine *ProtocolEngine, modem *Modem, groups []Group) *RemoteDevice {
	d := &RemoteDevice{baseDevice: newBaseDevice(addr, name, engine, modem), groups: groups}
	for _, g := range groups {
		d.RegisterGroupHandler(g, d.handleBroadcast)
	}
	return d
}

// Refresh on a Remote only requests the battery voltage -- there is
// no device-side state to poll for a one-way controller.
func (d *RemoteDevice) Refresh(force bool, done DoneFunc) {
	d.RequestBattery(func(success bool, status string, payload interface{}) {
		done(success, status, nil)
	})
}

// RequestBattery sends the extended flags request and, on reply,
// converts D11 to volts, stores it under the "Remote" meta namespace,
// and calls done with the raw byte as payload (spec.md 8 scenario 3).
func (d *RemoteDevice) RequestBattery(done DoneFunc) {
	payload := make([]byte, 14)
	payload[0] = 0x01
	msg := &Message{Dst: d.addr, Flags: ExtendedDirectMessage, Command: CmdExtendedFlagsRequest, Payload: payload}

	handler := NewExtendedCmdResponse(d.addr, CmdExtendedFlagsRequest, CmdExtendedFlagsRequest, func(success bool, status string, payload interface{}) {
		if !success {
			done(false, status, nil)
			return
		}
		reply := payload.(*Message)
		raw := reply.Payload[10]
		volts := float64(raw) / batteryDivisor
		d.db.SetMeta(RemoteMetaNamespace, map[string]interface{}{"battery_voltage": volts})
		done(true, status, raw)
	})
	d.engine.Send(msg, handler, false)
}

// BatteryVolts returns the last recorded battery voltage, if any.
func (d *RemoteDevice) BatteryVolts() (float64, bool) {
	v, ok := d.db.GetMeta(RemoteMetaNamespace)
	if !ok {
		return 0, false
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return 0, false
	}
	volts, ok := m["battery_voltage"].(float64)
	return volts, ok
}

func (d *RemoteDevice) handleBroadcast(msg *Message) {
	isOn := msg.Command[0] == CmdLightOn[0] || msg.Command[0] == CmdLightOnFast[0]
	isOff := msg.Command[0] == CmdLightOff[0] || msg.Command[0] == CmdLightOffFast[0]
	if !isOn && !isOff {
		return
	}
	d.setState(msg.Group(), isOn, 0, ModeNormal, ReasonDevice)
}
