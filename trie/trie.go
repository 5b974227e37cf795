// Copyright 2014 The go-ethereum Authors
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

// Package trie implements Merkle Patricia Tries.
package trie

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/vechain/epochdb/epochdb"
)

// emptyRoot is the known root hash of an empty trie.
var emptyRoot = epochdb.Blake2b(rlp.EmptyString)

// EmptyRoot returns the root hash of an empty trie.
func EmptyRoot() epochdb.Bytes32 { return emptyRoot }

// Database must be implemented by backing stores for the trie.
type Database interface {
	// GetNode returns the encoded node, or nil if absent.
	GetNode(hash epochdb.Bytes32) ([]byte, error)
}

// DatabaseWriter wraps the PutNode method of a backing store for the trie.
type DatabaseWriter interface {
	// PutNode stores the encoded node. Implementations must not retain blob.
	PutNode(hash epochdb.Bytes32, blob []byte) error
}

// MissingNodeError is returned by the trie functions (Get, Update, Delete)
// in the case where a trie node is not present in the local database.
type MissingNodeError struct {
	NodeHash epochdb.Bytes32 // hash of the missing node
	Path     []byte          // hex-encoded path to the missing node
}

func (err *MissingNodeError) Error() string {
	return fmt.Sprintf("missing trie node %v (path %x)", err.NodeHash, err.Path)
}

// Trie is a Merkle Patricia Trie.
// The zero value is an empty trie with no database.
//
// Get, Prove and Walk never modify the trie, so they are safe for concurrent use
// as long as no Update or Delete runs at the same time.
type Trie struct {
	root node
	db   Database
}

// New creates a trie with an existing root node from db.
//
// If root is the zero hash or the empty root hash, the trie is initially empty.
// Accessing the trie loads nodes from db on demand.
func New(root epochdb.Bytes32, db Database) *Trie {
	t := &Trie{db: db}
	if !root.IsZero() && root != emptyRoot {
		t.root = hashNode(root.Bytes())
	}
	return t
}

// Get returns the value for key stored in the trie.
// Nil returned if the key is absent.
func (t *Trie) Get(key []byte) ([]byte, error) {
	key = keybytesToHex(key)
	var (
		n   = t.root
		pos = 0
	)
	for {
		switch nn := n.(type) {
		case nil:
			return nil, nil
		case valueNode:
			return nn, nil
		case *shortNode:
			if len(key)-pos < len(nn.Key) || !bytes.Equal(nn.Key, key[pos:pos+len(nn.Key)]) {
				return nil, nil
			}
			n = nn.Val
			pos += len(nn.Key)
		case *fullNode:
			n = nn.Children[key[pos]]
			pos++
		case hashNode:
			resolved, err := t.resolveHash(nn, key[:pos])
			if err != nil {
				return nil, err
			}
			n = resolved
		default:
			panic(fmt.Sprintf("%T: invalid node: %v", n, n))
		}
	}
}

// Update associates key with value in the trie. Subsequent calls to
// Get will return value. If value has length zero, any existing value
// is deleted from the trie and calls to Get will return nil.
func (t *Trie) Update(key, value []byte) error {
	k := keybytesToHex(key)
	if len(value) != 0 {
		_, n, err := t.insert(t.root, nil, k, valueNode(bytes.Clone(value)))
		if err != nil {
			return err
		}
		t.root = n
	} else {
		_, n, err := t.delete(t.root, nil, k)
		if err != nil {
			return err
		}
		t.root = n
	}
	return nil
}

// Delete removes any existing value for key from the trie.
func (t *Trie) Delete(key []byte) error {
	return t.Update(key, nil)
}

func (t *Trie) insert(n node, prefix, key []byte, value node) (bool, node, error) {
	if len(key) == 0 {
		if v, ok := n.(valueNode); ok {
			return !bytes.Equal(v, value.(valueNode)), value, nil
		}
		return true, value, nil
	}
	switch n := n.(type) {
	case *shortNode:
		matchlen := prefixLen(key, n.Key)
		// If the whole key matches, keep this short node as is
		// and only update the value.
		if matchlen == len(n.Key) {
			dirty, nn, err := t.insert(n.Val, concat(prefix, key[:matchlen]...), key[matchlen:], value)
			if !dirty || err != nil {
				return false, n, err
			}
			return true, &shortNode{n.Key, nn, nodeFlag{dirty: true}}, nil
		}
		// Otherwise branch out at the index where they differ.
		branch := &fullNode{flags: nodeFlag{dirty: true}}
		var err error
		_, branch.Children[n.Key[matchlen]], err = t.insert(nil, concat(prefix, n.Key[:matchlen+1]...), n.Key[matchlen+1:], n.Val)
		if err != nil {
			return false, nil, err
		}
		_, branch.Children[key[matchlen]], err = t.insert(nil, concat(prefix, key[:matchlen+1]...), key[matchlen+1:], value)
		if err != nil {
			return false, nil, err
		}
		// Replace this shortNode with the branch if it occurs at index 0.
		if matchlen == 0 {
			return true, branch, nil
		}
		// Otherwise, replace it with a short node leading up to the branch.
		return true, &shortNode{key[:matchlen], branch, nodeFlag{dirty: true}}, nil

	case *fullNode:
		dirty, nn, err := t.insert(n.Children[key[0]], concat(prefix, key[0]), key[1:], value)
		if !dirty || err != nil {
			return false, n, err
		}
		n = n.copy()
		n.flags = nodeFlag{dirty: true}
		n.Children[key[0]] = nn
		return true, n, nil

	case nil:
		return true, &shortNode{key, value, nodeFlag{dirty: true}}, nil

	case hashNode:
		// We've hit a part of the trie that isn't loaded yet. Load
		// the node and insert into it. This leaves all child nodes on
		// the path to the value in the trie.
		rn, err := t.resolveHash(n, prefix)
		if err != nil {
			return false, nil, err
		}
		dirty, nn, err := t.insert(rn, prefix, key, value)
		if !dirty || err != nil {
			return false, rn, err
		}
		return true, nn, nil

	default:
		panic(fmt.Sprintf("%T: invalid node: %v", n, n))
	}
}

// delete returns the new root of the trie with key deleted.
// It reduces the trie to minimal form by simplifying
// nodes on the way up after deleting recursively.
func (t *Trie) delete(n node, prefix, key []byte) (bool, node, error) {
	switch n := n.(type) {
	case *shortNode:
		matchlen := prefixLen(key, n.Key)
		if matchlen < len(n.Key) {
			return false, n, nil // don't replace n on mismatch
		}
		if matchlen == len(key) {
			return true, nil, nil // remove n entirely for whole matches
		}
		// The key is longer than n.Key. Remove the remaining suffix
		// from the subtrie. Child can never be nil here since the
		// subtrie must contain at least two other values with keys
		// longer than n.Key.
		dirty, child, err := t.delete(n.Val, concat(prefix, key[:len(n.Key)]...), key[len(n.Key):])
		if !dirty || err != nil {
			return false, n, err
		}
		switch child := child.(type) {
		case *shortNode:
			// Deleting from the subtrie reduced it to another
			// short node. Merge the nodes to avoid creating a
			// shortNode{..., shortNode{...}}.
			return true, &shortNode{concat(n.Key, child.Key...), child.Val, nodeFlag{dirty: true}}, nil
		default:
			return true, &shortNode{n.Key, child, nodeFlag{dirty: true}}, nil
		}

	case *fullNode:
		dirty, nn, err := t.delete(n.Children[key[0]], concat(prefix, key[0]), key[1:])
		if !dirty || err != nil {
			return false, n, err
		}
		n = n.copy()
		n.flags = nodeFlag{dirty: true}
		n.Children[key[0]] = nn

		// Check how many non-nil entries are left after deleting and
		// reduce the full node to a short node if only one entry is
		// left. Since n must've contained at least two children
		// before deletion (otherwise it would not be a full node) n
		// can never be reduced to nil.
		//
		// When the loop is done, pos contains the index of the single
		// value that is left in n or -2 if n contains at least two
		// values.
		pos := -1
		for i, cld := range &n.Children {
			if cld != nil {
				if pos == -1 {
					pos = i
				} else {
					pos = -2
					break
				}
			}
		}
		if pos >= 0 {
			if pos != 16 {
				// If the remaining entry is a short node, it replaces
				// n and its key gets the missing nibble tacked to the
				// front. This avoids creating an invalid
				// shortNode{..., shortNode{...}}.
				cnode, err := t.resolve(n.Children[pos], concat(prefix, byte(pos)))
				if err != nil {
					return false, nil, err
				}
				if cnode, ok := cnode.(*shortNode); ok {
					k := concat([]byte{byte(pos)}, cnode.Key...)
					return true, &shortNode{k, cnode.Val, nodeFlag{dirty: true}}, nil
				}
			}
			// Otherwise, n is replaced by a one-nibble short node
			// containing the child.
			return true, &shortNode{[]byte{byte(pos)}, n.Children[pos], nodeFlag{dirty: true}}, nil
		}
		// n still contains at least two values and cannot be reduced.
		return true, n, nil

	case valueNode:
		return true, nil, nil

	case nil:
		return false, nil, nil

	case hashNode:
		// We've hit a part of the trie that isn't loaded yet. Load
		// the node and delete from it. This leaves all child nodes on
		// the path to the value in the trie.
		rn, err := t.resolveHash(n, prefix)
		if err != nil {
			return false, nil, err
		}
		dirty, nn, err := t.delete(rn, prefix, key)
		if !dirty || err != nil {
			return false, rn, err
		}
		return true, nn, nil

	default:
		panic(fmt.Sprintf("%T: invalid node: %v (%v)", n, n, key))
	}
}

func (t *Trie) resolve(n node, prefix []byte) (node, error) {
	if n, ok := n.(hashNode); ok {
		return t.resolveHash(n, prefix)
	}
	return n, nil
}

func (t *Trie) resolveHash(n hashNode, prefix []byte) (node, error) {
	hash := epochdb.BytesToBytes32(n)
	if t.db == nil {
		return nil, &MissingNodeError{NodeHash: hash, Path: bytes.Clone(prefix)}
	}
	blob, err := t.db.GetNode(hash)
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return nil, &MissingNodeError{NodeHash: hash, Path: bytes.Clone(prefix)}
	}
	dec, err := decodeNode(n, blob)
	if err != nil {
		return nil, fmt.Errorf("decode node %v: %w", hash, err)
	}
	return dec, nil
}

// Hash returns the root hash of the trie. It does not write to the
// database and can be used even if the trie doesn't have one.
func (t *Trie) Hash() epochdb.Bytes32 {
	hash, cached, _ := t.hashRoot(nil)
	t.root = cached
	return epochdb.BytesToBytes32(hash.(hashNode))
}

// Commit writes all nodes to the trie's database.
// Nodes are stored with their blake2b hash as the key.
//
// Committed nodes stay in memory with their dirty flags cleared.
func (t *Trie) Commit(db DatabaseWriter) (epochdb.Bytes32, error) {
	hash, cached, err := t.hashRoot(db)
	if err != nil {
		return epochdb.Bytes32{}, err
	}
	t.root = cached
	return epochdb.BytesToBytes32(hash.(hashNode)), nil
}

func (t *Trie) hashRoot(db DatabaseWriter) (node, node, error) {
	if t.root == nil {
		return hashNode(emptyRoot.Bytes()), nil, nil
	}
	h := newHasher()
	defer returnHasherToPool(h)
	return h.hash(t.root, db, true)
}
