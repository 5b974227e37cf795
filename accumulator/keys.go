// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accumulator

import (
	"encoding/binary"

	"github.com/vechain/epochdb/epochdb"
	"github.com/vechain/epochdb/kv"
)

const (
	valueKeyPrefix = byte('v') // shard + key + epoch => flag + value
	shardKeyPrefix = byte('s') // shard + epoch => shard hash
	indexKeyPrefix = byte('i') // raw key + epoch => flag
	rootKeyPrefix  = byte('h') // epoch => root
	epochKeyPrefix = byte('r') // root => epoch
)

var (
	lastEpochKey = []byte("m")
	boundaryKey  = []byte("p")
)

const (
	epochSize = 8
	shardSize = 2
	// maxEpoch must be less than the max value to fit into limit range
	maxEpoch = 0xFFFFFFFFFFFFFFFE
)

// limitEpoch is greater than any encoded epoch.
var limitEpoch = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// appendEpoch appends the epoch as an inverse value, so versions sort from the highest epoch.
func appendEpoch(b []byte, epoch uint64) []byte {
	return binary.BigEndian.AppendUint64(b, maxEpoch-epoch)
}

func decodeEpoch(b []byte) uint64 {
	return maxEpoch - binary.BigEndian.Uint64(b)
}

// versionRange returns the range iterating versions of the keyed item from the given epoch down to the first.
func versionRange(key []byte, epoch uint64) kv.Range {
	return kv.Range{
		Start: appendEpoch(key, epoch),
		Limit: append(key[:len(key):len(key)], limitEpoch...),
	}
}

func valueKey(shard uint16, key epochdb.Bytes32) []byte {
	k := make([]byte, 0, 1+shardSize+32+epochSize)
	k = append(k, valueKeyPrefix)
	k = binary.BigEndian.AppendUint16(k, shard)
	return append(k, key[:]...)
}

func shardKey(shard uint16) []byte {
	k := make([]byte, 0, 1+shardSize+epochSize)
	k = append(k, shardKeyPrefix)
	return binary.BigEndian.AppendUint16(k, shard)
}

func indexKey(rawKey []byte) []byte {
	k := make([]byte, 0, 1+len(rawKey)+epochSize)
	k = append(k, indexKeyPrefix)
	return append(k, rawKey...)
}

func rootKey(epoch uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte{rootKeyPrefix}, epoch)
}

func epochKey(root epochdb.Bytes32) []byte {
	return append([]byte{epochKeyPrefix}, root[:]...)
}

// encodeValue prefixes the value with a presence flag. Empty value marks deletion.
func encodeValue(val []byte) []byte {
	if len(val) == 0 {
		return []byte{0}
	}
	return append([]byte{1}, val...)
}

func decodeValue(data []byte) []byte {
	if len(data) == 0 || data[0] == 0 {
		return nil
	}
	return data[1:]
}
