package insteon

// Pair links dev to modem, following spec.md 4.8: refresh the device,
// ensure it is a responder of the modem on group 1 (so the modem can
// directly control it), then for each of the device's own controller
// groups, write the matching controller/responder pair of records so
// the device's button presses reach the modem. Each step is a
// CommandSequence step driven by a database write; the first failure
// stops the sequence and is reported via done.
func Pair(engine *ProtocolEngine, modem *Modem, dev Device, controllerGroups []Group, done DoneFunc) {
	steps := []SequenceStep{
		func(done DoneFunc) { dev.Refresh(false, done) },
		func(done DoneFunc) { ensureResponderOf(engine, dev.DB(), modem.Address(), 1, done) },
	}

	for _, g := range controllerGroups {
		group := g
		steps = append(steps,
			func(done DoneFunc) { ensureResponderOf(engine, modem.db, dev.Address(), group, done) },
			func(done DoneFunc) { ensureControllerOf(engine, dev.DB(), modem.Address(), group, done) },
		)
	}

	NewCommandSequence("pair "+dev.Address().String(), done, steps...).Run()
}

func ensureResponderOf(engine *ProtocolEngine, db *DeviceDatabase, addr Address, group Group, done DoneFunc) {
	if _, ok := db.Find(addr, group, false); ok {
		done(true, "ok", nil)
		return
	}
	db.AddRespOf(engine, addr, group, 0, 0, 0, done)
}

func ensureControllerOf(engine *ProtocolEngine, db *DeviceDatabase, addr Address, group Group, done DoneFunc) {
	if _, ok := db.Find(addr, group, true); ok {
		done(true, "ok", nil)
		return
	}
	db.AddCtrlOf(engine, addr, group, 0, 0, 0, done)
}
