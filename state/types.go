// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"fmt"

	"github.com/vechain/epochdb/epochdb"
)

// AuxInfo is the witness metadata committed along with a state root.
type AuxInfo struct {
	// IndexRoot is the root of the prefix index trie. Zero for the accumulator engine.
	IndexRoot epochdb.Bytes32 `json:"indexRoot"`
	Epoch     uint64          `json:"epoch"`
}

// StateRootWithAuxInfo is the authenticated root of a state.
type StateRootWithAuxInfo struct {
	StateRoot epochdb.Bytes32 `json:"stateRoot"`
	AuxInfo   AuxInfo         `json:"auxInfo"`
}

func (r StateRootWithAuxInfo) String() string {
	return fmt.Sprintf("%v@%d", r.StateRoot, r.AuxInfo.Epoch)
}

// StateIndex addresses a state snapshot.
//
// A read-only index must refer to a committed root. A writable index is never
// handed out for a committed epoch.
type StateIndex struct {
	Epoch     *uint64 // optional, the root is located by itself if nil
	StateRoot epochdb.Bytes32
	ReadOnly  bool
}

// NewIndex creates a state index of the given epoch.
func NewIndex(epoch uint64, root epochdb.Bytes32, readOnly bool) StateIndex {
	return StateIndex{&epoch, root, readOnly}
}

func (i StateIndex) String() string {
	if i.Epoch == nil {
		return fmt.Sprintf("%v@? ro=%v", i.StateRoot, i.ReadOnly)
	}
	return fmt.Sprintf("%v@%d ro=%v", i.StateRoot, *i.Epoch, i.ReadOnly)
}

// KeyValue is a storage key with its value.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// NodeMerkle is the structural hash of a key's value at one version.
type NodeMerkle struct {
	Epoch     uint64
	StateRoot epochdb.Bytes32
	// Merkle is blake2b of the value, zero if the key is absent.
	Merkle epochdb.Bytes32
	Proof  *Proof
}
