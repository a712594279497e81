package insteon

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// dbRecord is the on-disk (YAML) shape of a LinkRecord -- field names
// chosen for readability in the persisted file rather than reusing
// LinkRecord's wire-oriented layout directly.
type dbRecord struct {
	MemAddress uint16 `yaml:"mem_addr"`
	InUse      bool   `yaml:"in_use"`
	Controller bool   `yaml:"is_controller"`
	Last       bool   `yaml:"last"`
	Group      byte   `yaml:"group"`
	Address    string `yaml:"address"`
	Data1      byte   `yaml:"data1"`
	Data2      byte   `yaml:"data2"`
	Data3      byte   `yaml:"data3"`
}

// dbFile is the root document written to <address>.yaml (spec.md 6's
// "structured object containing {delta, entries, meta}").
type dbFile struct {
	Delta   byte                   `yaml:"delta"`
	Entries []dbRecord             `yaml:"entries"`
	Meta    map[string]interface{} `yaml:"meta"`
}

// DeviceDatabase is a device's (or the modem's) per-address all-link
// database: an ordered record list, a delta staleness counter, and an
// opaque per-namespace metadata map (spec.md 4.6).
type DeviceDatabase struct {
	mu sync.Mutex

	addr        Address
	delta       byte
	current     bool // delta_matches_device
	lastRefresh time.Time
	records     []*LinkRecord
	meta        map[string]interface{}
}

// NewDeviceDatabase creates an empty, stale database for addr.
func NewDeviceDatabase(addr Address) *DeviceDatabase {
	return &DeviceDatabase{
		addr: addr,
		meta: make(map[string]interface{}),
	}
}

// IsCurrent reports whether the record list is authoritative (delta
// matches the device's own delta as last observed via refresh).
func (db *DeviceDatabase) IsCurrent() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.current
}

// DeltaMatches reports whether delta equals the locally cached delta
// and the local copy is current.
func (db *DeviceDatabase) DeltaMatches(delta byte) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.current && db.delta == delta
}

// MarkStale forces the next mutation attempt to require a refresh
// first (spec.md 7's "database inconsistency" handling).
func (db *DeviceDatabase) MarkStale() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.current = false
}

// Delta returns the locally cached delta counter.
func (db *DeviceDatabase) Delta() byte {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.delta
}

// Records returns a snapshot of the record list ordered by
// descending memory address.
func (db *DeviceDatabase) Records() []*LinkRecord {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]*LinkRecord, len(db.records))
	copy(out, db.records)
	return out
}

// Find locates the record for (addr, group, isController), returning
// ok=false if no such record exists.
func (db *DeviceDatabase) Find(addr Address, group Group, isController bool) (*LinkRecord, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, r := range db.records {
		if r.Flags.InUse() && r.Address == addr && r.Group == group && r.Flags.Controller() == isController {
			return r, true
		}
	}
	return nil, false
}

// GetMeta returns the opaque value stored under namespace, if any.
func (db *DeviceDatabase) GetMeta(namespace string) (interface{}, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	v, ok := db.meta[namespace]
	return v, ok
}

// SetMeta stores an opaque value under namespace, used for ancillary
// per-device state such as the Remote's battery voltage.
func (db *DeviceDatabase) SetMeta(namespace string, value interface{}) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.meta[namespace] = value
}

// beginRefresh clears the record list before an all-link database
// download begins.
func (db *DeviceDatabase) beginRefresh() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.records = nil
	db.current = false
}

// applyRecord inserts or replaces a downloaded record, keeping the
// list sorted by descending memory address. It does not mark the
// database current; the download walk calls finishRefresh for that.
func (db *DeviceDatabase) applyRecord(rec *LinkRecord) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i, existing := range db.records {
		if existing.MemAddress == rec.MemAddress {
			db.records[i] = rec
			db.sortLocked()
			return
		}
	}
	db.records = append(db.records, rec)
	db.sortLocked()
}

func (db *DeviceDatabase) sortLocked() {
	sort.Slice(db.records, func(i, j int) bool {
		return db.records[i].MemAddress > db.records[j].MemAddress
	})
}

// finishRefresh marks the database current as of delta and records
// the refresh time (spec.md 4.6's "a subsequent refresh that returns
// an identical delta confirms coherence").
func (db *DeviceDatabase) finishRefresh(delta byte) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.delta = delta
	db.current = true
	db.lastRefresh = time.Now()
}

// recordIncrement accounts for a successful device-side database
// write: spec.md 4.6's "after any successful write, the local db's
// delta is incremented by one".
func (db *DeviceDatabase) recordIncrement() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.delta++
}

// nextFreeMemAddress scans descending from BaseLinkDBAddress for the
// first slot that is either absent from the list or marked unused,
// stopping before the terminal "last" record so a new entry is never
// appended past it. Returns ok=false if no slot is available.
func (db *DeviceDatabase) nextFreeMemAddress() (MemAddress, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, r := range db.records {
		if !r.Flags.InUse() && !r.Flags.Last() {
			return r.MemAddress, true
		}
	}

	if len(db.records) == 0 {
		return BaseLinkDBAddress, true
	}

	last := db.records[len(db.records)-1]
	if last.Flags.Last() {
		return 0, false
	}
	return last.MemAddress - 8, true
}

// applyWrite installs a newly-written record into the in-memory list
// only after the device has ACKed it, per spec.md 4.6's "on failure,
// do not mutate in-memory state".
func (db *DeviceDatabase) applyWrite(rec *LinkRecord) {
	db.applyRecord(rec)
	db.recordIncrement()
}

// applyDelete marks a record unused in place, leaving the slot
// reusable (spec.md 4.6's "Deletion marks in_use=false").
func (db *DeviceDatabase) applyDelete(rec *LinkRecord) {
	db.mu.Lock()
	for _, r := range db.records {
		if r.MemAddress == rec.MemAddress {
			r.Flags = newRecordFlags(false, r.Flags.Controller(), r.Flags.Last())
			break
		}
	}
	db.mu.Unlock()
	db.recordIncrement()
}

// LoadFromFile populates the database from a YAML file previously
// written by SaveToFile. A missing file is not an error; the database
// is simply left empty and stale.
func (db *DeviceDatabase) LoadFromFile(path string) error {
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("insteon: reading device database %s: %w", path, err)
	}

	var f dbFile
	if err := yaml.Unmarshal(buf, &f); err != nil {
		return fmt.Errorf("insteon: parsing device database %s: %w", path, err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	db.delta = f.Delta
	db.meta = f.Meta
	if db.meta == nil {
		db.meta = make(map[string]interface{})
	}
	db.records = make([]*LinkRecord, 0, len(f.Entries))
	for _, e := range f.Entries {
		addr, err := ParseAddress(e.Address)
		if err != nil {
			return fmt.Errorf("insteon: device database %s: %w", path, err)
		}
		db.records = append(db.records, &LinkRecord{
			MemAddress: MemAddress(e.MemAddress),
			Flags:      newRecordFlags(e.InUse, e.Controller, e.Last),
			Group:      Group(e.Group),
			Address:    addr,
			Data1:      e.Data1,
			Data2:      e.Data2,
			Data3:      e.Data3,
		})
	}
	db.sortLocked()
	db.current = true
	return nil
}

// SaveToFile persists the database to path using the write-temp-
// then-rename idiom for atomicity (spec.md 5's "Database files are
// written atomically").
func (db *DeviceDatabase) SaveToFile(path string) error {
	db.mu.Lock()
	f := dbFile{Delta: db.delta, Meta: db.meta}
	for _, r := range db.records {
		f.Entries = append(f.Entries, dbRecord{
			MemAddress: uint16(r.MemAddress),
			InUse:      r.Flags.InUse(),
			Controller: r.Flags.Controller(),
			Last:       r.Flags.Last(),
			Group:      byte(r.Group),
			Address:    r.Address.String(),
			Data1:      r.Data1,
			Data2:      r.Data2,
			Data3:      r.Data3,
		})
	}
	db.mu.Unlock()

	buf, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("insteon: encoding device database: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("insteon: writing device database %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("insteon: renaming device database into place %s: %w", path, err)
	}
	return nil
}

// DbFilePath derives the per-device database file path from an
// address the way spec.md 3 requires ("persisted to a file whose name
// derives from the address").
func DbFilePath(dir string, addr Address) string {
	return fmt.Sprintf("%s/%s.yaml", dir, addr)
}
