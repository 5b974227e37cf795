// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package trie

import (
	"bytes"
	"fmt"

	"github.com/vechain/epochdb/epochdb"
)

// Walk visits, in key order, every key-value pair whose key has the given prefix.
// The walk stops when fn returns false.
func (t *Trie) Walk(prefix []byte, fn func(key, value []byte) (bool, error)) error {
	hexPrefix := keybytesToHex(prefix)
	hexPrefix = hexPrefix[:len(hexPrefix)-1] // strip the terminator
	_, err := t.walk(t.root, nil, hexPrefix, fn)
	return err
}

// valueFirst orders the value slot ahead of the branches, so shorter keys come first.
var valueFirst = [17]int{16, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

func (t *Trie) walk(n node, path, prefix []byte, fn func(key, value []byte) (bool, error)) (bool, error) {
	switch n := n.(type) {
	case nil:
		return true, nil
	case valueNode:
		if !bytes.HasPrefix(path, prefix) {
			return true, nil
		}
		return fn(hexToKeybytes(path), n)
	case *shortNode:
		p := concat(path, n.Key...)
		if !pathMatches(p, prefix) {
			return true, nil
		}
		return t.walk(n.Val, p, prefix, fn)
	case *fullNode:
		for _, i := range valueFirst {
			if n.Children[i] == nil {
				continue
			}
			p := concat(path, byte(i))
			if !pathMatches(p, prefix) {
				continue
			}
			if cont, err := t.walk(n.Children[i], p, prefix, fn); err != nil || !cont {
				return cont, err
			}
		}
		return true, nil
	case hashNode:
		rn, err := t.resolveHash(n, path)
		if err != nil {
			return false, err
		}
		return t.walk(rn, path, prefix, fn)
	default:
		panic(fmt.Sprintf("%T: invalid node: %v", n, n))
	}
}

// pathMatches reports whether path and prefix agree on their common length.
func pathMatches(path, prefix []byte) bool {
	l := min(len(path), len(prefix))
	return bytes.Equal(path[:l], prefix[:l])
}

// WalkNodes visits the hash of every node stored in the database and reachable from the root.
// The subtree under a node is skipped when visit returns false.
func (t *Trie) WalkNodes(visit func(hash epochdb.Bytes32) bool) error {
	return t.walkNodes(t.root, nil, visit)
}

func (t *Trie) walkNodes(n node, path []byte, visit func(hash epochdb.Bytes32) bool) error {
	switch n := n.(type) {
	case hashNode:
		if !visit(epochdb.BytesToBytes32(n)) {
			return nil
		}
		rn, err := t.resolveHash(n, path)
		if err != nil {
			return err
		}
		return t.walkNodes(rn, path, visit)
	case *shortNode:
		return t.walkNodes(n.Val, concat(path, n.Key...), visit)
	case *fullNode:
		for i := range 16 {
			if n.Children[i] != nil {
				if err := t.walkNodes(n.Children[i], concat(path, byte(i)), visit); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
