// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package epochdb

import (
	"encoding/hex"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// Bytes32 array of 32 bytes. State roots, trie keys and node hashes are all Bytes32.
type Bytes32 [32]byte

var bytes32Type = reflect.TypeOf(Bytes32{})

func (b Bytes32) String() string {
	return hexutil.Encode(b[:])
}

// Bytes returns byte slice form of Bytes32.
func (b Bytes32) Bytes() []byte {
	return b[:]
}

// IsZero returns if Bytes32 has all zero bytes.
func (b Bytes32) IsZero() bool {
	return b == Bytes32{}
}

// MarshalText encodes b as 0x prefixed hex.
func (b Bytes32) MarshalText() ([]byte, error) {
	return hexutil.Bytes(b[:]).MarshalText()
}

// UnmarshalJSON decodes a 0x prefixed hex string of exactly 32 bytes.
func (b *Bytes32) UnmarshalJSON(input []byte) error {
	return hexutil.UnmarshalFixedJSON(bytes32Type, input, b[:])
}

// ParseBytes32 parses the hex string, with or without the 0x prefix.
func ParseBytes32(s string) (Bytes32, error) {
	if len(s) >= 2 && strings.EqualFold(s[:2], "0x") {
		s = s[2:]
	}
	if len(s) != 64 {
		return Bytes32{}, errors.Errorf("invalid length %d", len(s))
	}
	var b Bytes32
	if _, err := hex.Decode(b[:], []byte(s)); err != nil {
		return Bytes32{}, err
	}
	return b, nil
}

// BytesToBytes32 converts bytes slice into Bytes32, cropped or left padded.
func BytesToBytes32(b []byte) Bytes32 {
	return Bytes32(common.BytesToHash(b))
}
