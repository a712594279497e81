package plm

import (
	"fmt"
	"time"

	"github.com/krkeegan/insteon-mqtt"
)

type recordRequestCommand byte

const (
	linkCmdModFirstCtrl recordRequestCommand = 0x40
	linkCmdModFirstResp recordRequestCommand = 0x41
	linkCmdDeleteFirst  recordRequestCommand = 0x80
)

type manageRecordRequest struct {
	command recordRequestCommand
	link    *insteon.LinkRecord
}

func (mrr *manageRecordRequest) MarshalBinary() ([]byte, error) {
	payload, err := mrr.link.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, len(payload)+1)
	buf[0] = byte(mrr.command)
	copy(buf[1:], payload)
	return buf, nil
}

// PLMLinkDB is the modem's own all-link database, read and written
// through PLM-local Get-First/Get-Next/Manage-Record commands rather
// than the extended-message protocol ordinary devices use. It
// satisfies insteon.ModemLinkDB.
type PLMLinkDB struct {
	plm *PLM
}

// Links downloads the full all-link database. Get-First/Get-Next only
// ACK or NAK whether a record exists; the record itself arrives as a
// separate, asynchronous All-Link Record Response notification, so
// each ACK is followed by a wait on that channel before requesting the
// next record.
func (db *PLMLinkDB) Links() ([]*insteon.LinkRecord, error) {
	var links []*insteon.LinkRecord

	resp, err := db.plm.send(&Packet{Command: CmdGetFirstAllLink})
	if err != nil {
		return nil, err
	}
	for !resp.NAK() {
		select {
		case packet := <-db.plm.recordResp:
			rec := &insteon.LinkRecord{}
			if len(packet.Payload) < 8 {
				return links, fmt.Errorf("plm: short all-link record, got %d bytes", len(packet.Payload))
			}
			if err := rec.UnmarshalBinary(packet.Payload); err != nil {
				return links, err
			}
			links = append(links, rec)
		case <-time.After(db.plm.timeout):
			return links, insteon.ErrAckTimeout
		}

		resp, err = db.plm.send(&Packet{Command: CmdGetNextAllLink})
		if err != nil {
			return links, err
		}
	}
	return links, nil
}

// AddLink writes rec to the modem's database via a Manage-Record
// modify-first-controller/responder request.
func (db *PLMLinkDB) AddLink(rec *insteon.LinkRecord) error {
	cmd := linkCmdModFirstResp
	if rec.Flags.Controller() {
		cmd = linkCmdModFirstCtrl
	}
	rr := &manageRecordRequest{command: cmd, link: rec}
	payload, err := rr.MarshalBinary()
	if err != nil {
		return err
	}
	resp, err := db.plm.send(&Packet{Command: CmdManageAllLinkRecord, Payload: payload})
	if err != nil {
		return err
	}
	if resp.NAK() {
		return fmt.Errorf("plm: modem rejected all-link record write")
	}
	return nil
}

// RemoveLinks sends one Manage-Record delete-first request for each
// of old, removing the first modem record matching its (group,
// address) pair; further matching records are left in place.
func (db *PLMLinkDB) RemoveLinks(old ...*insteon.LinkRecord) error {
	for _, rec := range old {
		rr := &manageRecordRequest{command: linkCmdDeleteFirst, link: rec}
		payload, err := rr.MarshalBinary()
		if err != nil {
			return err
		}
		resp, err := db.plm.send(&Packet{Command: CmdManageAllLinkRecord, Payload: payload})
		if err != nil {
			return err
		}
		if resp.NAK() {
			return fmt.Errorf("plm: modem rejected all-link record delete for %s", rec.Address)
		}
	}
	return nil
}
