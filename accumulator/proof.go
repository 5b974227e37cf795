// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accumulator

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/vechain/epochdb/epochdb"
)

// Leaf is a live pair of a shard in hashed form.
type Leaf struct {
	Key       epochdb.Bytes32
	ValueHash epochdb.Bytes32
}

// Proof proves the value of a key against an accumulator root.
type Proof struct {
	Shard  uint16
	Leaves []Leaf              // all live pairs of the shard, in key order
	Value  []byte              // the proven value, empty if the key is absent
	Path   [][]epochdb.Bytes32 // hash groups from the shard up to the root
}

// hashLeaves hashes the leaves of a shard. The empty shard hashes to zero.
func hashLeaves(leaves []Leaf) epochdb.Bytes32 {
	if len(leaves) == 0 {
		return epochdb.Bytes32{}
	}
	return epochdb.Blake2bFn(func(w io.Writer) {
		for _, l := range leaves {
			w.Write(l.Key[:])
			w.Write(l.ValueHash[:])
		}
	})
}

// pathLen returns the length of the reduction path over the given count of leaves.
func pathLen(leaves, branching int) int {
	if leaves <= 1 {
		return 0
	}
	n, l := leaves, 0
	for n%branching != 0 {
		n++
	}
	for n > 1 {
		l++
		n /= branching
		for n > 1 && n%branching != 0 {
			n++
		}
	}
	return l
}

// Prove creates the proof of the raw key at the given epoch.
func (a *Accumulator) Prove(epoch uint64, rawKey []byte) (*Proof, error) {
	if err := a.checkEpoch(epoch); err != nil {
		return nil, err
	}
	key := epochdb.TrieKey(rawKey)
	shard := a.shardOf(key)

	pairs, err := a.shardPairs(shard, epoch)
	if err != nil {
		return nil, err
	}
	proof := &Proof{
		Shard:  shard,
		Leaves: make([]Leaf, len(pairs)),
	}
	for i, p := range pairs {
		proof.Leaves[i] = Leaf{p.key, epochdb.Blake2b(p.val)}
		if p.key == key {
			proof.Value = p.val
		}
	}

	leaves := make([]epochdb.Bytes32, a.shards)
	for i := range leaves {
		if leaves[i], err = a.shardHash(uint16(i), epoch); err != nil {
			return nil, err
		}
	}
	_, proof.Path = reduceHashes(a.branching, leaves, int(shard))
	return proof, nil
}

// VerifyProof verifies the proof of the raw key against the root of an accumulator
// with the given shape. It returns the proven value, nil if the proof proves absence.
func VerifyProof(root epochdb.Bytes32, rawKey []byte, proof *Proof, shards, branching int) ([]byte, error) {
	if proof == nil {
		return nil, errors.New("accumulator proof: nil")
	}
	key := epochdb.TrieKey(rawKey)
	if proof.Shard != shardOf(key, shards) {
		return nil, errors.New("accumulator proof: shard mismatch")
	}
	if len(proof.Path) != pathLen(shards, branching) {
		return nil, errors.New("accumulator proof: invalid path length")
	}

	var value []byte
	for i, l := range proof.Leaves {
		if i > 0 && bytes.Compare(proof.Leaves[i-1].Key[:], l.Key[:]) >= 0 {
			return nil, errors.New("accumulator proof: leaves not in order")
		}
		if l.Key == key {
			if epochdb.Blake2b(proof.Value) != l.ValueHash || len(proof.Value) == 0 {
				return nil, errors.New("accumulator proof: value mismatch")
			}
			value = bytes.Clone(proof.Value)
		}
	}
	if value == nil && len(proof.Value) > 0 {
		return nil, errors.New("accumulator proof: value of absent key")
	}

	h, pos := hashLeaves(proof.Leaves), int(proof.Shard)
	for i, group := range proof.Path {
		if len(group) != branching || group[pos%branching] != h {
			return nil, errors.Errorf("accumulator proof: invalid group at level %d", i)
		}
		h = hashGroup(group)
		pos /= branching
	}
	if h != root {
		return nil, errors.New("accumulator proof: root mismatch")
	}
	return value, nil
}

// Version is a version of a key's value.
type Version struct {
	Epoch uint64
	Value []byte // nil if the key was deleted at Epoch
}

// Versions returns the versions of the raw key not above the given epoch, from the latest.
// A version collapsed by pruning is reported at the prune boundary.
func (a *Accumulator) Versions(epoch uint64, rawKey []byte) ([]Version, error) {
	if err := a.checkEpoch(epoch); err != nil {
		return nil, err
	}
	key := epochdb.TrieKey(rawKey)
	it := a.store.Iterate(versionRange(valueKey(a.shardOf(key), key), epoch))
	defer it.Release()

	var versions []Version
	for it.Next() {
		k := it.Key()
		v := Version{
			Epoch: decodeEpoch(k[len(k)-epochSize:]),
			Value: bytes.Clone(decodeValue(it.Value())),
		}
		if v.Epoch < a.boundary {
			if v.Value != nil && (len(versions) == 0 || versions[len(versions)-1].Epoch != a.boundary) {
				v.Epoch = a.boundary
				versions = append(versions, v)
			}
			break
		}
		versions = append(versions, v)
	}
	return versions, it.Error()
}
