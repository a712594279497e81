// Copyright 2018 Andrew Bates
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package insteon

// i1Device is the generic fallback Device used by network.Connect
// when a category-specific constructor isn't registered for a
// device's devcat (spec.md 4.10). It speaks the lowest common
// denominator of the Insteon command set: linking group assignment,
// product data, and ping. Where the teacher's i1Device blocked on a
// Connection's Send/Receive, this version drives the same commands
// through the ProtocolEngine's async Handler contract.
type i1Device struct {
	baseDevice
	engineVersion EngineVersion
	devCat        DevCat
}

// newI1Device constructs the generic device for addr.
func newI1Device(addr Address, name string, engine *ProtocolEngine, modem *Modem) *i1Device {
	return &i1Device{
		baseDevice:    newBaseDevice(addr, name, engine, modem),
		engineVersion: VerI1,
		devCat:        DevCat{0xff, 0xff},
	}
}

// Refresh confirms the device answers a status request; a generic
// device has no typed state byte to decode beyond that.
func (d *i1Device) Refresh(force bool, done DoneFunc) {
	d.refreshCommon(force, nil, done)
}

// AssignToAllLinkGroup informs the device what group to use during
// the next all-linking session.
func (d *i1Device) AssignToAllLinkGroup(group Group, done DoneFunc) {
	d.sendStandard(CmdAssignToAllLinkGroup.SubCommand(int(group)), done)
}

// DeleteFromAllLinkGroup informs the device which group to unlink
// during the next all-link unlinking session.
func (d *i1Device) DeleteFromAllLinkGroup(group Group, done DoneFunc) {
	d.sendStandard(CmdDeleteFromAllLinkGroup.SubCommand(int(group)), done)
}

// Ping sends a Ping command to the device.
func (d *i1Device) Ping(done DoneFunc) {
	d.sendStandard(CmdPing, done)
}

// ProductData retrieves the device's product data and records its
// category and subcategory; done receives the resulting *DevCat. The
// firmware revision is not extracted.
func (d *i1Device) ProductData(done DoneFunc) {
	handler := NewExtendedCmdResponse(d.addr, CmdProductDataReq, CmdProductDataResp, func(success bool, status string, payload interface{}) {
		if !success {
			done(false, status, nil)
			return
		}
		msg := payload.(*Message)
		if len(msg.Payload) >= 3 {
			d.devCat = DevCat{msg.Payload[0], msg.Payload[1]}
		}
		done(true, status, &d.devCat)
	})
	d.engine.Send(&Message{Dst: d.addr, Flags: StandardDirectMessage, Command: CmdProductDataReq}, handler, false)
}

func (d *i1Device) sendStandard(cmd Command, done DoneFunc) {
	msg := &Message{Dst: d.addr, Flags: StandardDirectMessage, Command: cmd}
	handler := NewStandardCmd(d.addr, cmd, done)
	d.engine.Send(msg, handler, false)
}

// EngineVersion returns which engine generation (I1/I2/I2Cs) this
// device is assumed to run.
func (d *i1Device) EngineVersion() EngineVersion { return d.engineVersion }

// String returns "I1 Device (<address>)".
func (d *i1Device) String() string { return "I1 Device (" + d.addr.String() + ")" }

// NewGenericDevice builds the default Device for addr when no
// category-specific constructor is registered for its devcat
// (spec.md 4.10's fallback path). I2 and I1 devices share the same
// generic command set; I2Cs devices additionally get the
// command-driven linking-mode entry points.
func NewGenericDevice(addr Address, name string, engine *ProtocolEngine, modem *Modem, ver EngineVersion) Device {
	base := newI1Device(addr, name, engine, modem)
	if ver == VerI2Cs {
		return newI2CsDevice(base)
	}
	base.engineVersion = ver
	return base
}
