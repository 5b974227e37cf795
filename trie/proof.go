// Copyright 2015 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package trie

import (
	"bytes"
	"fmt"

	"github.com/vechain/epochdb/epochdb"
)

// Prove constructs a merkle proof for key. The result contains all encoded nodes
// on the path to the value at key. The value itself is also included in the last
// node and can be retrieved by verifying the proof.
//
// If the trie does not contain a value for key, the returned proof contains all
// nodes of the longest existing prefix of the key (at least the root node), ending
// with the node that proves the absence of the key.
//
// The trie is not modified.
func (t *Trie) Prove(key []byte) ([][]byte, error) {
	// Collect all nodes on the path to key.
	key = keybytesToHex(key)
	var nodes []node
	tn := t.root
	for len(key) > 0 && tn != nil {
		switch n := tn.(type) {
		case *shortNode:
			if len(key) < len(n.Key) || !bytes.Equal(n.Key, key[:len(n.Key)]) {
				// The trie doesn't contain the key.
				tn = nil
			} else {
				tn = n.Val
				key = key[len(n.Key):]
			}
			nodes = append(nodes, n)
		case *fullNode:
			tn = n.Children[key[0]]
			key = key[1:]
			nodes = append(nodes, n)
		case hashNode:
			var err error
			tn, err = t.resolveHash(n, nil)
			if err != nil {
				return nil, err
			}
		case valueNode:
			// reached a value before the key is exhausted, no further nodes to prove
			tn = nil
		default:
			panic(fmt.Sprintf("%T: invalid node: %v", tn, tn))
		}
	}
	h := newHasher()
	defer returnHasherToPool(h)

	var proof [][]byte
	for i, n := range nodes {
		enc, err := h.encode(n)
		if err != nil {
			return nil, err
		}
		// Embedded nodes are contained in their parent's encoding.
		// The root is always included.
		if len(enc) >= 32 || i == 0 {
			proof = append(proof, enc)
		}
	}
	return proof, nil
}

// VerifyProof checks merkle proofs. The given proof must contain the value for
// key in a trie with the given root hash. VerifyProof returns an error if the
// proof contains invalid trie nodes or the wrong value.
//
// Nil value returned without error if the proof proves the absence of key.
func VerifyProof(rootHash epochdb.Bytes32, key []byte, proof [][]byte) ([]byte, error) {
	if rootHash == emptyRoot || rootHash.IsZero() {
		return nil, nil
	}
	db := make(map[epochdb.Bytes32][]byte, len(proof))
	for _, enc := range proof {
		db[epochdb.Blake2b(enc)] = enc
	}

	key = keybytesToHex(key)
	wantHash := rootHash
	for i := 0; ; i++ {
		buf := db[wantHash]
		if buf == nil {
			return nil, fmt.Errorf("proof node %d (hash %v) missing", i, wantHash)
		}
		n, err := decodeNode(wantHash.Bytes(), buf)
		if err != nil {
			return nil, fmt.Errorf("bad proof node %d: %v", i, err)
		}
		keyrest, cld := get(n, key)
		switch cld := cld.(type) {
		case nil:
			// The trie doesn't contain the key.
			return nil, nil
		case hashNode:
			key = keyrest
			wantHash = epochdb.BytesToBytes32(cld)
		case valueNode:
			return cld, nil
		}
	}
}

// get walks the decoded node towards key until it reaches a value, a hash
// reference or a dead end.
func get(tn node, key []byte) ([]byte, node) {
	for {
		switch n := tn.(type) {
		case *shortNode:
			if len(key) < len(n.Key) || !bytes.Equal(n.Key, key[:len(n.Key)]) {
				return nil, nil
			}
			tn = n.Val
			key = key[len(n.Key):]
		case *fullNode:
			if len(key) == 0 {
				return nil, nil
			}
			tn = n.Children[key[0]]
			key = key[1:]
		case hashNode:
			return key, n
		case nil:
			return key, nil
		case valueNode:
			if len(key) != 0 {
				return nil, nil
			}
			return nil, n
		default:
			panic(fmt.Sprintf("%T: invalid node: %v", tn, tn))
		}
	}
}
