package insteon

import "fmt"

// MemAddress is a device all-link database memory location. The
// database is ordered descending from 0x0fff in 8 byte records.
type MemAddress uint16

// BaseLinkDBAddress is the highest (first) record address in every
// device and modem all-link database.
const BaseLinkDBAddress MemAddress = 0x0fff

// RecordFlags packs the in-use, controller and last-record bits of a
// link record's flags byte.
type RecordFlags byte

const (
	recordFlagInUse      RecordFlags = 0x80
	recordFlagController RecordFlags = 0x40
	recordFlagLast       RecordFlags = 0x02
)

// InUse reports whether the slot holds a live record.
func (f RecordFlags) InUse() bool { return f&recordFlagInUse != 0 }

// Controller reports whether this device is configured as controller
// (true) or responder (false) for the link.
func (f RecordFlags) Controller() bool { return f&recordFlagController != 0 }

// Last reports whether this record is (or, when unused, marks) the
// final slot in the database.
func (f RecordFlags) Last() bool { return f&recordFlagLast != 0 }

func newRecordFlags(inUse, controller, last bool) RecordFlags {
	var f RecordFlags
	if inUse {
		f |= recordFlagInUse
	}
	if controller {
		f |= recordFlagController
	}
	if last {
		f |= recordFlagLast
	}
	return f
}

// LinkRecord is a single 8 byte all-link database entry.
type LinkRecord struct {
	MemAddress MemAddress
	Flags      RecordFlags
	Group      Group
	Address    Address
	Data1      byte
	Data2      byte
	Data3      byte
}

// Equal compares two records field by field, ignoring MemAddress so
// that records relocated to a different slot still compare equal.
func (r *LinkRecord) Equal(o *LinkRecord) bool {
	return r.Flags.Controller() == o.Flags.Controller() &&
		r.Group == o.Group &&
		r.Address == o.Address &&
		r.Data1 == o.Data1 &&
		r.Data2 == o.Data2 &&
		r.Data3 == o.Data3
}

// MarshalBinary encodes an 8 byte record: flags, group, address(3),
// data1-3.
func (r *LinkRecord) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 8)
	buf[0] = byte(r.Flags)
	buf[1] = byte(r.Group)
	copy(buf[2:5], r.Address[:])
	buf[5] = r.Data1
	buf[6] = r.Data2
	buf[7] = r.Data3
	return buf, nil
}

// UnmarshalBinary decodes an 8 byte record.
func (r *LinkRecord) UnmarshalBinary(buf []byte) error {
	if len(buf) < 8 {
		return fmt.Errorf("insteon: short link record, need 8 bytes got %d", len(buf))
	}
	r.Flags = RecordFlags(buf[0])
	r.Group = Group(buf[1])
	copy(r.Address[:], buf[2:5])
	r.Data1 = buf[5]
	r.Data2 = buf[6]
	r.Data3 = buf[7]
	return nil
}

func (r *LinkRecord) String() string {
	role := "responder"
	if r.Flags.Controller() {
		role = "controller"
	}
	return fmt.Sprintf("%04x %s used=%v group=%d addr=%s data=%02x.%02x.%02x",
		r.MemAddress, role, r.Flags.InUse(), r.Group, r.Address, r.Data1, r.Data2, r.Data3)
}
