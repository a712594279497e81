package insteon

// ModemLinkDB is the interface the PLM link layer's own all-link
// database satisfies (grounded on plm/linkdb.go's LinkDB type, which
// already exposes exactly this surface). The Modem device talks to
// its own all-link database through this interface rather than the
// extended-message DeviceDatabase protocol used for ordinary devices,
// since the modem's database is read and written with PLM-local
// commands (spec.md 4.7).
type ModemLinkDB interface {
	Links() ([]*LinkRecord, error)
	AddLink(rec *LinkRecord) error
	RemoveLinks(old ...*LinkRecord) error
}

// Modem is the distinguished Device representing the PLM itself: it
// exposes scene triggering and the modem-side all-link database used
// for pairing (spec.md 3, 4.7).
type Modem struct {
	baseDevice
	linkDB ModemLinkDB
}

// NewModem constructs the Modem device for addr. linkDB may be nil
// and set later via SetLinkDB; RefreshLinks and AddLink call through
// it without a nil check, while TriggerScene does not use it.
func NewModem(addr Address, name string, engine *ProtocolEngine, linkDB ModemLinkDB) *Modem {
	m := &Modem{linkDB: linkDB}
	m.baseDevice = newBaseDevice(addr, name, engine, nil)
	m.modem = m
	return m
}

// SetLinkDB installs the modem's all-link database accessor.
func (m *Modem) SetLinkDB(linkDB ModemLinkDB) { m.linkDB = linkDB }

// Refresh is a no-op for the modem: it reports success without any
// round trip, since the modem has no device-side state to poll the
// way a load does.
func (m *Modem) Refresh(force bool, done DoneFunc) {
	done(true, "ok", nil)
}

// TriggerScene issues a PLM-local "send all-link command" for group,
// causing every responder linked on that group to act (spec.md 3's
// Scene glossary entry). Completion is the modem's own ACK of the
// send (see LocalCmd), not a response from any device on the scene.
func (m *Modem) TriggerScene(group Group, cmd Command, done DoneFunc) {
	msg := &Message{Local: true, Dst: Address{0, 0, byte(group)}, Command: cmd}
	handler := NewLocalCmd(done)
	m.engine.Send(msg, handler, true)
}

// FindLink locates a link record in the modem's own all-link
// database. It does not hit the network; callers should have called
// RefreshLinks first.
func (m *Modem) FindLink(addr Address, group Group, isController bool) (*LinkRecord, bool) {
	return m.db.Find(addr, group, isController)
}

// RefreshLinks downloads the modem's all-link database through
// linkDB and caches it locally.
func (m *Modem) RefreshLinks() error {
	links, err := m.linkDB.Links()
	if err != nil {
		return err
	}
	m.db.beginRefresh()
	for _, l := range links {
		m.db.applyRecord(l)
	}
	m.db.finishRefresh(m.db.delta)
	return nil
}

// AddLink adds addr as controller (or responder) of the modem on
// group, both on the physical modem and in the local cache.
func (m *Modem) AddLink(isController bool, addr Address, group Group, d1, d2, d3 byte) error {
	rec := &LinkRecord{
		Flags:   newRecordFlags(true, isController, false),
		Group:   group,
		Address: addr,
		Data1:   d1,
		Data2:   d2,
		Data3:   d3,
	}
	if err := m.linkDB.AddLink(rec); err != nil {
		return err
	}
	m.db.applyWrite(rec)
	return nil
}
