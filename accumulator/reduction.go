// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accumulator

import (
	"github.com/vechain/epochdb/epochdb"
)

// reduceHashes computes the root of a tree with the given branching factor over
// the leaf hashes. Each level is padded with zero hashes to a multiple of the
// branching factor. A single leaf is its own root.
//
// If pos is a valid leaf position, the groups of hashes hashed together on the
// path from that leaf to the root are returned bottom-up.
func reduceHashes(branching int, leaves []epochdb.Bytes32, pos int) (epochdb.Bytes32, [][]epochdb.Bytes32) {
	if len(leaves) == 0 {
		return epochdb.Bytes32{}, nil
	}
	if len(leaves) == 1 {
		return leaves[0], nil
	}

	hashes := make([]epochdb.Bytes32, len(leaves))
	copy(hashes, leaves)
	for len(hashes)%branching != 0 {
		hashes = append(hashes, epochdb.Bytes32{})
	}

	var path [][]epochdb.Bytes32
	for len(hashes) > 1 {
		if pos >= 0 && pos < len(hashes) {
			start := pos - pos%branching
			path = append(path, append([]epochdb.Bytes32(nil), hashes[start:start+branching]...))
			pos /= branching
		}
		for i := 0; i < len(hashes); i += branching {
			hashes[i/branching] = hashGroup(hashes[i : i+branching])
		}
		hashes = hashes[0 : len(hashes)/branching]
		for len(hashes) > 1 && len(hashes)%branching != 0 {
			hashes = append(hashes, epochdb.Bytes32{})
		}
	}
	return hashes[0], path
}

func hashGroup(group []epochdb.Bytes32) epochdb.Bytes32 {
	data := make([][]byte, len(group))
	for i := range group {
		data[i] = group[i][:]
	}
	return epochdb.Blake2b(data...)
}
