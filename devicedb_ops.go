package insteon

// maxEmptyRecords bounds a DeviceDbGet walk when a device never sends
// a terminal unused+last record (spec.md 4.4's "or after N empty
// records").
const maxEmptyRecords = 4

// Refresh performs the iterative all-link database download described
// in spec.md 4.4 (DeviceDbGet): walk memory addresses descending by 8
// bytes from 0x0fff until a record is both unused and marked last, or
// maxEmptyRecords consecutive unused records have been seen. delta is
// the device's own delta counter as observed by the caller's preceding
// DeviceRefresh (spec.md 4.6); it is recorded via finishRefresh once
// the walk completes, so a later refresh reporting the same delta is
// recognized as already coherent instead of re-downloading. done is
// invoked exactly once with the final outcome.
func (db *DeviceDatabase) Refresh(engine *ProtocolEngine, delta byte, done DoneFunc) {
	db.beginRefresh()
	db.walk(engine, BaseLinkDBAddress, 0, delta, done)
}

func (db *DeviceDatabase) walk(engine *ProtocolEngine, mem MemAddress, emptySeen int, delta byte, done DoneFunc) {
	handler := NewDeviceDbGetStep(db.addr, func(success bool, status string, payload interface{}) {
		if !success {
			done(false, status, nil)
			return
		}

		rec, _ := payload.(*LinkRecord)
		if rec == nil {
			done(false, "malformed record", nil)
			return
		}
		db.applyRecord(rec)

		if !rec.Flags.InUse() {
			emptySeen++
			if rec.Flags.Last() || emptySeen >= maxEmptyRecords {
				db.finishRefresh(delta)
				done(true, "ok", db.Records())
				return
			}
		} else {
			emptySeen = 0
		}

		next := mem - 8
		if next > mem { // underflowed past zero
			db.finishRefresh(delta)
			done(true, "ok", db.Records())
			return
		}
		db.walk(engine, next, emptySeen, delta, done)
	})
	engine.Send(DbReadRequest(db.addr, mem), handler, false)
}

// AddLink composes an all-link-record-write extended message for the
// next unused memory slot, installs a DeviceDbModify-style ACK
// handler, and updates the in-memory list only once the device ACKs
// (spec.md 4.6).
func (db *DeviceDatabase) AddLink(engine *ProtocolEngine, isController bool, addr Address, group Group, d1, d2, d3 byte, done DoneFunc) {
	if !db.IsCurrent() {
		done(false, ErrStale.Error(), nil)
		return
	}

	mem, ok := db.nextFreeMemAddress()
	if !ok {
		done(false, ErrNoFreeMemory.Error(), nil)
		return
	}

	rec := &LinkRecord{
		MemAddress: mem,
		Flags:      newRecordFlags(true, isController, false),
		Group:      group,
		Address:    addr,
		Data1:      d1,
		Data2:      d2,
		Data3:      d3,
	}

	msg := dbWriteMessage(db.addr, rec)
	handler := NewStandardCmd(db.addr, CmdReadWriteALDB, func(success bool, status string, payload interface{}) {
		if success {
			db.applyWrite(rec)
		}
		done(success, status, rec)
	})
	engine.Send(msg, handler, false)
}

// AddCtrlOf registers this device's database as controller of
// (addr, group).
func (db *DeviceDatabase) AddCtrlOf(engine *ProtocolEngine, addr Address, group Group, d1, d2, d3 byte, done DoneFunc) {
	db.AddLink(engine, true, addr, group, d1, d2, d3, done)
}

// AddRespOf registers this device's database as responder of
// (addr, group).
func (db *DeviceDatabase) AddRespOf(engine *ProtocolEngine, addr Address, group Group, d1, d2, d3 byte, done DoneFunc) {
	db.AddLink(engine, false, addr, group, d1, d2, d3, done)
}

// Delete marks rec unused on the device and, once ACKed, locally.
func (db *DeviceDatabase) Delete(engine *ProtocolEngine, rec *LinkRecord, done DoneFunc) {
	deleted := *rec
	deleted.Flags = newRecordFlags(false, rec.Flags.Controller(), rec.Flags.Last())

	msg := dbWriteMessage(db.addr, &deleted)
	handler := NewStandardCmd(db.addr, CmdReadWriteALDB, func(success bool, status string, payload interface{}) {
		if success {
			db.applyDelete(rec)
		}
		done(success, status, rec)
	})
	engine.Send(msg, handler, false)
}

// dbWriteMessage builds the extended all-link-record-write request
// for rec.
func dbWriteMessage(addr Address, rec *LinkRecord) *Message {
	payload := make([]byte, 14)
	payload[1] = 0x02 // write one record
	payload[2] = byte(rec.MemAddress >> 8)
	payload[3] = byte(rec.MemAddress)
	payload[4] = 0x08 // record length
	payload[5] = byte(rec.Flags)
	payload[6] = byte(rec.Group)
	copy(payload[7:10], rec.Address[:])
	payload[10] = rec.Data1
	payload[11] = rec.Data2
	payload[12] = rec.Data3
	return &Message{Dst: addr, Flags: ExtendedDirectMessage, Command: CmdReadWriteALDB, Payload: payload}
}
