package insteon

import "fmt"

// Device is the common surface spec.md 3 requires of every stateful
// entity keyed by an Insteon address: address/name identity, a
// refresh cycle, and a state-change signal subscribers can connect
// to. Capability-specific behavior (on/off, dimmable, battery, scene)
// is exposed by the concrete device types in onoff.go, dimmer.go,
// outlet.go, remote.go and modem.go.
type Device interface {
	Address() Address
	Name() string
	DB() *DeviceDatabase
	Refresh(force bool, done DoneFunc)
	StateSignal() *Signal
}

// CommandFunc is the signature registered in a device's cmd map for
// MQTT-driven invocation (spec.md 3's cmd_map, generalized per the
// DESIGN NOTES into a typed request variant rather than bare kwargs).
type CommandFunc func(req CommandRequest, done DoneFunc)

// CommandRequest is the structured request variant an MQTT adapter
// constructs and a device dispatches, replacing the source's
// string-keyed kwargs dict (spec.md 9 DESIGN NOTES).
type CommandRequest struct {
	Group  Group
	Level  byte
	Mode   Mode
	Reason StateReason
}

// baseDevice supplies the identity, database, engine handle, group
// broadcast registration and state signal shared by every concrete
// device, mirroring spec.md 3's Device fields.
type baseDevice struct {
	addr   Address
	name   string
	engine *ProtocolEngine
	modem  *Modem
	db     *DeviceDatabase

	groupHandlers map[Group]BroadcastFunc
	cmdMap        map[string]CommandFunc
	state         Signal
}

func newBaseDevice(addr Address, name string, engine *ProtocolEngine, modem *Modem) baseDevice {
	return baseDevice{
		addr:          addr,
		name:          name,
		engine:        engine,
		modem:         modem,
		db:            NewDeviceDatabase(addr),
		groupHandlers: make(map[Group]BroadcastFunc),
		cmdMap:        make(map[string]CommandFunc),
	}
}

func (d *baseDevice) Address() Address       { return d.addr }
func (d *baseDevice) Name() string           { return d.name }
func (d *baseDevice) DB() *DeviceDatabase    { return d.db }
func (d *baseDevice) StateSignal() *Signal   { return &d.state }

// RegisterGroupHandler installs fn to handle this device's own
// broadcasts on group, via the engine's broadcast listener registry
// (spec.md 3's group_map, spec.md 4.3's dispatch step 2).
func (d *baseDevice) RegisterGroupHandler(group Group, fn BroadcastFunc) {
	d.groupHandlers[group] = fn
	d.engine.AddBroadcastHandler(d.addr, group, fn)
}

// RegisterCommand installs fn under name in the device's command
// table for MQTT-driven dispatch.
func (d *baseDevice) RegisterCommand(name string, fn CommandFunc) {
	d.cmdMap[name] = fn
}

// Dispatch looks up and invokes a registered command by name,
// replacing the source's string->method cmd_map lookup.
func (d *baseDevice) Dispatch(name string, req CommandRequest, done DoneFunc) error {
	fn, ok := d.cmdMap[name]
	if !ok {
		return fmt.Errorf("insteon: device %s has no command %q", d.addr, name)
	}
	fn(req, done)
	return nil
}

// setState updates local state and emits signal_state, the common
// pathway every concrete device's handler funnels through (spec.md
// 4.7).
func (d *baseDevice) setState(group Group, isOn bool, level byte, mode Mode, reason StateReason) {
	d.state.Emit(StateChange{
		Address: d.addr,
		Group:   group,
		IsOn:    isOn,
		Level:   level,
		Mode:    mode,
		Reason:  reason,
	})
}

// refreshCommon implements the shared Refresh(force, done) logic
// (spec.md 4.7): skip the round trip when not forced and the local
// database is already current, otherwise issue a DeviceRefresh and
// chain into a database download when the reported delta is stale.
func (d *baseDevice) refreshCommon(force bool, applyState func(stateByte byte), done DoneFunc) {
	if !force && d.db.IsCurrent() {
		done(true, "ok", nil)
		return
	}

	handler := NewDeviceRefresh(d.addr, d.db, func(success bool, status string, payload interface{}) {
		if !success {
			done(false, status, nil)
			return
		}
		result := payload.(*DeviceRefreshResult)
		if applyState != nil {
			applyState(result.State)
		}
		if !result.Stale {
			done(true, "ok", nil)
			return
		}
		d.db.Refresh(d.engine, result.Delta, func(success bool, status string, payload interface{}) {
			done(success, status, payload)
		})
	})
	d.engine.Send(RefreshRequest(d.addr), handler, false)
}

// Registry owns every constructed Device, keyed by Address, the way
// spec.md 3 requires ("Devices are owned by a top-level registry").
// Devices hold only a non-owning reference back to the Registry's
// Engine and Modem.
type Registry struct {
	engine  *ProtocolEngine
	modem   *Modem
	devices map[Address]Device
}

// NewRegistry creates an empty registry bound to engine. modem may be
// nil until the Modem device itself is constructed and installed with
// SetModem.
func NewRegistry(engine *ProtocolEngine) *Registry {
	return &Registry{engine: engine, devices: make(map[Address]Device)}
}

// SetModem installs the distinguished Modem device used by every
// other device's non-owning modem reference.
func (r *Registry) SetModem(m *Modem) { r.modem = m }

// Modem returns the registered Modem, or nil if none has been set.
func (r *Registry) Modem() *Modem { return r.modem }

// Engine returns the shared ProtocolEngine.
func (r *Registry) Engine() *ProtocolEngine { return r.engine }

// Add installs dev into the registry.
func (r *Registry) Add(dev Device) { r.devices[dev.Address()] = dev }

// Get looks up a previously added device.
func (r *Registry) Get(addr Address) (Device, bool) {
	dev, ok := r.devices[addr]
	return dev, ok
}

// Remove drops a device from the registry.
func (r *Registry) Remove(addr Address) { delete(r.devices, addr) }

// All returns every registered device, order unspecified.
func (r *Registry) All() []Device {
	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	return out
}
