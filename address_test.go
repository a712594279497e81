package insteon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddressRoundTrip(t *testing.T) {
	cases := map[string]string{
		"1a.2b.3c": "1a.2b.3c",
		"00.00.00": "00.00.00",
		"ff.ff.ff": "ff.ff.ff",
		"1A.2B.3C": "1a.2b.3c",
	}
	for in, want := range cases {
		addr, err := ParseAddress(in)
		require.NoError(t, err, "ParseAddress(%q)", in)
		assert.Equal(t, want, addr.String())
	}
}

func TestParseAddressInvalid(t *testing.T) {
	for _, s := range []string{"1a.2b", "1a.2b.3c.4d", "zz.00.00", ""} {
		_, err := ParseAddress(s)
		assert.Error(t, err, "ParseAddress(%q) should fail", s)
	}
}

func TestAddressUint24RoundTrip(t *testing.T) {
	addr := Address{0x1a, 0x2b, 0x3c}
	assert.Equal(t, addr, AddressFromUint24(addr.Uint24()))
}

func TestAddressBinaryRoundTrip(t *testing.T) {
	addr := Address{0x12, 0x34, 0x56}
	buf, err := addr.MarshalBinary()
	require.NoError(t, err)

	var got Address
	require.NoError(t, got.UnmarshalBinary(buf))
	assert.Equal(t, addr, got)
}

func TestAddressLess(t *testing.T) {
	a := Address{0x00, 0x00, 0x01}
	b := Address{0x00, 0x00, 0x02}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
}
