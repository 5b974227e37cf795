// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"github.com/pkg/errors"

	"github.com/vechain/epochdb/accumulator"
	"github.com/vechain/epochdb/epochdb"
	"github.com/vechain/epochdb/trie"
)

// Proof proves the value or the absence of a key against a state root.
type Proof struct {
	Engine string
	// Nodes are the encoded trie nodes along the key path, for the trie engine.
	Nodes [][]byte `json:",omitempty"`
	// Accumulator is the shard proof, for the accumulator engine.
	Accumulator *accumulator.Proof `json:",omitempty"`
}

// VerifyProof verifies the proof of the key against the state root, without
// accessing the database. The config must be the one the root was built with.
// It returns the proven value, nil if the proof proves absence.
func VerifyProof(cfg Config, root epochdb.Bytes32, key []byte, proof *Proof) ([]byte, error) {
	if proof == nil {
		return nil, errors.New("verify proof: nil proof")
	}
	if proof.Engine != cfg.Engine {
		return nil, errors.Errorf("verify proof: %s proof for %s engine", proof.Engine, cfg.Engine)
	}
	switch proof.Engine {
	case EngineTrie:
		return trie.VerifyProof(root, epochdb.TrieKey(key).Bytes(), proof.Nodes)
	case EngineAccumulator:
		return accumulator.VerifyProof(root, key, proof.Accumulator, cfg.AccumulatorShards, cfg.AccumulatorBranching)
	default:
		return nil, errors.Errorf("verify proof: unknown engine %q", proof.Engine)
	}
}
