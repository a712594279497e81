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

// Package network resolves an address into a fully constructed
// Device: it sends an ID Request, waits for the device's
// Set-Button-Pressed broadcast to learn its device category, and
// looks up a category-specific constructor, falling back to the
// generic device when none is registered (spec.md 4.10). The
// teacher's network package dialed a blocking Connection per device
// and tracked discovered devcats in an in-memory ProductDatabase;
// here the same two-step discovery flow is driven through the
// asynchronous ProtocolEngine/Handler machinery, and the learned
// DeviceInfo is passed to the constructor rather than cached.
package network

import (
	"sync"
	"time"

	"github.com/krkeegan/insteon-mqtt"
)

// ConstructorFunc builds a category-specific Device once its
// DeviceInfo is known.
type ConstructorFunc func(info insteon.DeviceInfo, name string, engine *insteon.ProtocolEngine, modem *insteon.Modem) insteon.Device

var (
	registryMu   sync.Mutex
	constructors = map[insteon.Category]ConstructorFunc{}
)

// RegisterConstructor associates cat with a device constructor. Device
// packages call this from an init() the way the teacher's
// insteon.Devices registry was populated.
func RegisterConstructor(cat insteon.Category, fn ConstructorFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	constructors[cat] = fn
}

func lookupConstructor(cat insteon.Category) (ConstructorFunc, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	fn, ok := constructors[cat]
	return fn, ok
}

// IDRequest sends an ID Request to dst and resolves once either the
// device's Set-Button-Pressed Controller/Responder broadcast arrives
// (carrying its devcat and firmware version) or timeout elapses. done
// is invoked exactly once.
func IDRequest(engine *insteon.ProtocolEngine, dst insteon.Address, timeout time.Duration, done func(insteon.DeviceInfo, error)) {
	if timeout <= 0 {
		timeout = insteon.DefaultTimeout
	}
	var once sync.Once
	finish := func(info insteon.DeviceInfo, err error) {
		once.Do(func() {
			engine.RemoveBroadcastHandler(dst, 1)
			done(info, err)
		})
	}

	timer := time.AfterFunc(timeout, func() {
		finish(insteon.DeviceInfo{Address: dst}, insteon.ErrReadTimeout)
	})

	engine.AddBroadcastHandler(dst, 1, func(msg *insteon.Message) {
		if msg.Command[1] != 0x01 && msg.Command[1] != 0x02 {
			return
		}
		timer.Stop()
		finish(insteon.DeviceInfo{
			Address:         dst,
			DevCat:          msg.DevCat(),
			FirmwareVersion: insteon.FirmwareVersion(msg.Dst[2]),
		}, nil)
	})

	handler := insteon.NewStandardCmd(dst, insteon.CmdIDRequest, func(success bool, status string, payload interface{}) {
		if !success {
			timer.Stop()
			finish(insteon.DeviceInfo{Address: dst}, insteon.ErrUnexpectedResponse)
		}
	})
	engine.Send(&insteon.Message{Dst: dst, Flags: insteon.StandardDirectMessage, Command: insteon.CmdIDRequest}, handler, false)
}

// Connect resolves addr's device category via IDRequest, constructs
// the matching Device (or the generic fallback), registers it, and
// invokes done.
func Connect(engine *insteon.ProtocolEngine, modem *insteon.Modem, registry *insteon.Registry, addr insteon.Address, name string, timeout time.Duration, done func(insteon.Device, error)) {
	IDRequest(engine, addr, timeout, func(info insteon.DeviceInfo, err error) {
		var dev insteon.Device
		if err == nil {
			if ctor, ok := lookupConstructor(info.DevCat.Category()); ok {
				dev = ctor(info, name, engine, modem)
			}
		}
		if dev == nil {
			dev = insteon.NewGenericDevice(addr, name, engine, modem, info.EngineVersion)
		}
		registry.Add(dev)
		done(dev, nil)
	})
}
