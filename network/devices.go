package network

import "github.com/krkeegan/insteon-mqtt"

// Device categories used to pick a constructor once IDRequest learns
// a device's devcat. Real Insteon devcats distinguish finer subcat
// variants within a category than this gateway models; each constant
// here stands in for the category byte of the representative devices
// the insteon package implements (spec.md 4.10).
const (
	CategoryDimmer = insteon.Category(0x01)
	CategorySwitch = insteon.Category(0x02)
	CategoryOutlet = insteon.Category(0x09)
	CategoryRemote = insteon.Category(0x00)
)

func init() {
	RegisterConstructor(CategoryDimmer, func(info insteon.DeviceInfo, name string, engine *insteon.ProtocolEngine, modem *insteon.Modem) insteon.Device {
		return insteon.NewDimmerDevice(info.Address, name, engine, modem)
	})
	RegisterConstructor(CategorySwitch, func(info insteon.DeviceInfo, name string, engine *insteon.ProtocolEngine, modem *insteon.Modem) insteon.Device {
		return insteon.NewOnOffDevice(info.Address, name, engine, modem)
	})
	RegisterConstructor(CategoryOutlet, func(info insteon.DeviceInfo, name string, engine *insteon.ProtocolEngine, modem *insteon.Modem) insteon.Device {
		return insteon.NewOutletDevice(info.Address, name, engine, modem)
	})
	RegisterConstructor(CategoryRemote, func(info insteon.DeviceInfo, name string, engine *insteon.ProtocolEngine, modem *insteon.Modem) insteon.Device {
		return insteon.NewRemoteDevice(info.Address, name, engine, modem, []insteon.Group{1, 2, 3, 4, 5, 6, 7, 8})
	})
}
