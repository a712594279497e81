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

package insteon

import (
	"fmt"
	"strconv"
	"strings"
)

// Address is a 3 byte Insteon address that uniquely identifies a device
// on the network. Addresses are immutable and totally ordered so they
// can be used as map keys and sorted.
type Address [3]byte

// ParseAddress converts a string of the form AA.BB.CC into an Address.
// The hex pairs are case insensitive and may omit leading zeros.
func ParseAddress(s string) (Address, error) {
	var addr Address
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return addr, fmt.Errorf("insteon: %q is not a valid address", s)
	}

	for i, part := range parts {
		v, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return Address{}, fmt.Errorf("insteon: %q is not a valid address: %v", s, err)
		}
		addr[i] = byte(v)
	}
	return addr, nil
}

// AddressFromUint24 builds an Address from the low 24 bits of v.
func AddressFromUint24(v uint32) Address {
	return Address{byte(v >> 16), byte(v >> 8), byte(v)}
}

// String renders the address as AA.BB.CC
func (a Address) String() string {
	return fmt.Sprintf("%02x.%02x.%02x", a[0], a[1], a[2])
}

// Uint24 returns the address packed into the low 24 bits of a uint32.
func (a Address) Uint24() uint32 {
	return uint32(a[0])<<16 | uint32(a[1])<<8 | uint32(a[2])
}

// Less provides a total order over addresses, used for deterministic
// iteration of the device registry.
func (a Address) Less(b Address) bool {
	return a.Uint24() < b.Uint24()
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (a Address) MarshalBinary() ([]byte, error) {
	return []byte{a[0], a[1], a[2]}, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (a *Address) UnmarshalBinary(buf []byte) error {
	if len(buf) < 3 {
		return fmt.Errorf("insteon: short buffer for address, need 3 got %d", len(buf))
	}
	a[0], a[1], a[2] = buf[0], buf[1], buf[2]
	return nil
}
