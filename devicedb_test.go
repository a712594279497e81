package insteon

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceDatabaseSaveLoadRoundTrip(t *testing.T) {
	addr := Address{0x11, 0x22, 0x33}
	db := NewDeviceDatabase(addr)
	db.applyRecord(&LinkRecord{
		MemAddress: BaseLinkDBAddress,
		Flags:      newRecordFlags(true, true, false),
		Group:      1,
		Address:    Address{0x44, 0x55, 0x66},
		Data1:      0x03,
		Data2:      0x00,
		Data3:      0x01,
	})
	db.finishRefresh(0x07)
	db.SetMeta("battery", "3.1v")

	path := filepath.Join(t.TempDir(), "11.22.33.yaml")
	require.NoError(t, db.SaveToFile(path))

	loaded := NewDeviceDatabase(addr)
	require.NoError(t, loaded.LoadFromFile(path))

	assert.EqualValues(t, 0x07, loaded.Delta())
	assert.True(t, loaded.IsCurrent(), "a freshly loaded database should be marked current")

	records := loaded.Records()
	require.Len(t, records, 1)
	assert.Equal(t, Address{0x44, 0x55, 0x66}, records[0].Address)

	v, ok := loaded.GetMeta("battery")
	assert.True(t, ok)
	assert.Equal(t, "3.1v", v)
}

func TestDeviceDatabaseLoadMissingFileIsNotError(t *testing.T) {
	db := NewDeviceDatabase(Address{0x01, 0x02, 0x03})
	require.NoError(t, db.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))
	assert.False(t, db.IsCurrent(), "a database with no file to load should remain stale")
}

func TestDeviceDatabaseDeltaMatchesRequiresCurrent(t *testing.T) {
	db := NewDeviceDatabase(Address{0x01, 0x02, 0x03})
	db.delta = 0x05
	assert.False(t, db.DeltaMatches(0x05), "DeltaMatches should require the database to be current")

	db.finishRefresh(0x05)
	assert.True(t, db.DeltaMatches(0x05))
}
