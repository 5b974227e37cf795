// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package accumulator implements the sequential accumulator, an authenticated
// key-value structure advanced exactly one epoch at a time.
//
// Values are kept as versioned rows grouped into a fixed number of shards. Each
// shard hashes its live pairs, and shard hashes are reduced into the root by a
// tree of fixed branching factor. History is implicit in the epoch counter: the
// version of a row effective at epoch E is its latest version not above E.
package accumulator

import (
	"bytes"
	"encoding/binary"
	"runtime"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/vechain/epochdb/epochdb"
	"github.com/vechain/epochdb/kv"
	"github.com/vechain/epochdb/log"
)

var logger = log.WithContext("pkg", "accumulator")

var (
	// ErrNonSequential is returned when staging an epoch other than the next one.
	ErrNonSequential = errors.New("accumulator: non-sequential epoch")
	// ErrPruned is returned when accessing an epoch below the prune boundary.
	ErrPruned = errors.New("accumulator: epoch pruned")
	// ErrFutureEpoch is returned when accessing an epoch not committed yet.
	ErrFutureEpoch = errors.New("accumulator: epoch not committed")
)

// Update is a pending write. Empty Value deletes the key.
type Update struct {
	Key   []byte // the raw storage key
	Value []byte
}

// Accumulator is the sequential accumulator over a kv store.
//
// Readers may run concurrently. Commit and Prune must be serialized by the caller,
// and must not run concurrently with readers.
type Accumulator struct {
	store     kv.Store
	shards    int
	branching int
	emptyRoot epochdb.Bytes32

	lastEpoch uint64
	boundary  uint64
}

// New creates an accumulator persisted in store.
func New(store kv.Store, shards, branching int) (*Accumulator, error) {
	if shards <= 0 || shards > 1<<16 {
		return nil, errors.Errorf("invalid shard count %d", shards)
	}
	if branching < 2 {
		return nil, errors.Errorf("invalid branching factor %d", branching)
	}
	a := &Accumulator{
		store:     store,
		shards:    shards,
		branching: branching,
		emptyRoot: EmptyRoot(shards, branching),
	}
	var err error
	if a.lastEpoch, err = a.loadUint64(lastEpochKey); err != nil {
		return nil, err
	}
	if a.boundary, err = a.loadUint64(boundaryKey); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Accumulator) loadUint64(key []byte) (uint64, error) {
	data, err := a.store.Get(key)
	if err != nil {
		if a.store.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	if len(data) != 8 {
		return 0, errors.Errorf("accumulator: invalid value of %q", key)
	}
	return binary.BigEndian.Uint64(data), nil
}

// EmptyRoot returns the root of an accumulator without any key.
func EmptyRoot(shards, branching int) epochdb.Bytes32 {
	root, _ := reduceHashes(branching, make([]epochdb.Bytes32, shards), -1)
	return root
}

// EmptyRoot returns the root of the empty key space.
func (a *Accumulator) EmptyRoot() epochdb.Bytes32 { return a.emptyRoot }

// LastEpoch returns the last committed epoch, 0 if nothing committed.
func (a *Accumulator) LastEpoch() uint64 { return a.lastEpoch }

// NextEpoch returns the only epoch that can be committed next.
func (a *Accumulator) NextEpoch() uint64 { return a.lastEpoch + 1 }

// Boundary returns the prune boundary. Epochs below it are no longer accessible.
func (a *Accumulator) Boundary() uint64 { return a.boundary }

func (a *Accumulator) shardOf(key epochdb.Bytes32) uint16 {
	return shardOf(key, a.shards)
}

func shardOf(key epochdb.Bytes32, shards int) uint16 {
	return uint16(int(binary.BigEndian.Uint16(key[:2])) % shards)
}

func (a *Accumulator) checkEpoch(epoch uint64) error {
	if epoch > a.lastEpoch {
		return errors.Wrapf(ErrFutureEpoch, "epoch %d", epoch)
	}
	if epoch < a.boundary {
		return errors.Wrapf(ErrPruned, "epoch %d, boundary %d", epoch, a.boundary)
	}
	return nil
}

// Root returns the root at the given epoch. Epoch 0 always has the empty root.
func (a *Accumulator) Root(epoch uint64) (epochdb.Bytes32, error) {
	if err := a.checkEpoch(epoch); err != nil {
		return epochdb.Bytes32{}, err
	}
	if epoch == 0 {
		return a.emptyRoot, nil
	}
	data, err := a.store.Get(rootKey(epoch))
	if err != nil {
		return epochdb.Bytes32{}, err
	}
	return epochdb.BytesToBytes32(data), nil
}

// LookupRoot returns the latest retained epoch whose root is the given root.
func (a *Accumulator) LookupRoot(root epochdb.Bytes32) (uint64, bool, error) {
	data, err := a.store.Get(epochKey(root))
	if err != nil {
		if a.store.IsNotFound(err) {
			if root == a.emptyRoot && a.boundary == 0 {
				return 0, true, nil
			}
			return 0, false, nil
		}
		return 0, false, err
	}
	return binary.BigEndian.Uint64(data), true, nil
}

// firstVersion returns the latest version of the keyed item not above epoch.
func (a *Accumulator) firstVersion(key []byte, epoch uint64) ([]byte, bool, error) {
	it := a.store.Iterate(versionRange(key, epoch))
	defer it.Release()
	if it.Next() {
		return bytes.Clone(it.Value()), true, nil
	}
	return nil, false, it.Error()
}

// Get returns the value of the raw key at the given epoch. Nil returned if absent.
func (a *Accumulator) Get(epoch uint64, rawKey []byte) ([]byte, error) {
	if err := a.checkEpoch(epoch); err != nil {
		return nil, err
	}
	key := epochdb.TrieKey(rawKey)
	data, _, err := a.firstVersion(valueKey(a.shardOf(key), key), epoch)
	if err != nil {
		return nil, err
	}
	return decodeValue(data), nil
}

// KeysWithPrefix returns raw keys present at the given epoch with the prefix, in key order.
func (a *Accumulator) KeysWithPrefix(epoch uint64, prefix []byte) ([][]byte, error) {
	if err := a.checkEpoch(epoch); err != nil {
		return nil, err
	}
	it := a.store.Iterate(kv.PrefixRange(indexKey(prefix)))
	defer it.Release()

	// versions of one key are ordered from the highest epoch, but rows of
	// longer keys may interleave, so track decided keys.
	decided := make(map[string]bool)
	for it.Next() {
		k := it.Key()
		if len(k) < 1+epochSize {
			continue
		}
		raw := string(k[1 : len(k)-epochSize])
		if _, ok := decided[raw]; ok || !strings.HasPrefix(raw, string(prefix)) {
			continue
		}
		if decodeEpoch(k[len(k)-epochSize:]) > epoch {
			continue
		}
		decided[raw] = decodeValue(it.Value()) != nil
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	var keys [][]byte
	for raw, present := range decided {
		if present {
			keys = append(keys, []byte(raw))
		}
	}
	slices.SortFunc(keys, bytes.Compare)
	return keys, nil
}

// pair is a live key-value pair of a shard.
type pair struct {
	key epochdb.Bytes32
	val []byte
}

// shardPairs returns the live pairs of the shard at the given epoch, in key order.
func (a *Accumulator) shardPairs(shard uint16, epoch uint64) ([]pair, error) {
	prefix := binary.BigEndian.AppendUint16([]byte{valueKeyPrefix}, shard)
	it := a.store.Iterate(kv.PrefixRange(prefix))
	defer it.Release()

	var (
		pairs   []pair
		decided epochdb.Bytes32
		hasLast bool
	)
	for it.Next() {
		k := it.Key()
		if len(k) != len(prefix)+32+epochSize {
			continue
		}
		key := epochdb.BytesToBytes32(k[len(prefix) : len(prefix)+32])
		if hasLast && key == decided {
			continue
		}
		if decodeEpoch(k[len(prefix)+32:]) > epoch {
			continue
		}
		decided, hasLast = key, true
		if val := decodeValue(it.Value()); val != nil {
			pairs = append(pairs, pair{key, bytes.Clone(val)})
		}
	}
	return pairs, it.Error()
}

// shardHash returns the hash of the shard at the given epoch.
func (a *Accumulator) shardHash(shard uint16, epoch uint64) (epochdb.Bytes32, error) {
	data, found, err := a.firstVersion(shardKey(shard), epoch)
	if err != nil || !found {
		return epochdb.Bytes32{}, err
	}
	return epochdb.BytesToBytes32(data), nil
}

// hashPairs hashes the live pairs of a shard, which must be in key order.
func hashPairs(pairs []pair) epochdb.Bytes32 {
	leaves := make([]Leaf, len(pairs))
	for i, p := range pairs {
		leaves[i] = Leaf{p.key, epochdb.Blake2b(p.val)}
	}
	return hashLeaves(leaves)
}

// Staged is the result of applying updates to the last committed epoch.
type Staged struct {
	a      *Accumulator
	epoch  uint64
	root   epochdb.Bytes32
	values map[epochdb.Bytes32][]byte // trie key => value
	index  map[string]bool            // raw key => present, changed presence only
	shards map[uint16]epochdb.Bytes32 // dirty shard => hash
}

// Root returns the root of the staged epoch.
func (s *Staged) Root() epochdb.Bytes32 { return s.root }

// Epoch returns the staged epoch.
func (s *Staged) Epoch() uint64 { return s.epoch }

// Stage applies updates on top of the last committed epoch and computes the root of the next epoch.
// Nothing is persisted until the staged result is committed.
func (a *Accumulator) Stage(epoch uint64, updates []Update) (*Staged, error) {
	if epoch != a.NextEpoch() {
		return nil, errors.Wrapf(ErrNonSequential, "stage epoch %d, next %d", epoch, a.NextEpoch())
	}
	parent := a.lastEpoch

	// the latest update of each key wins
	values := make(map[epochdb.Bytes32][]byte, len(updates))
	rawKeys := make(map[epochdb.Bytes32][]byte, len(updates))
	dirty := make(map[uint16][]epochdb.Bytes32)
	for _, u := range updates {
		key := epochdb.TrieKey(u.Key)
		if _, ok := values[key]; !ok {
			shard := a.shardOf(key)
			dirty[shard] = append(dirty[shard], key)
			rawKeys[key] = u.Key
		}
		values[key] = u.Value
	}

	type result struct {
		shard uint16
		hash  epochdb.Bytes32
		prev  map[epochdb.Bytes32][]byte
	}
	results := make([]result, 0, len(dirty))
	for shard := range dirty {
		results = append(results, result{shard: shard})
	}

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i := range results {
		r := &results[i]
		g.Go(func() error {
			pairs, err := a.shardPairs(r.shard, parent)
			if err != nil {
				return err
			}
			r.prev = make(map[epochdb.Bytes32][]byte)
			m := make(map[epochdb.Bytes32][]byte, len(pairs))
			for _, p := range pairs {
				m[p.key] = p.val
			}
			for _, key := range dirty[r.shard] {
				r.prev[key] = m[key]
				if v := values[key]; len(v) > 0 {
					m[key] = v
				} else {
					delete(m, key)
				}
			}
			merged := make([]pair, 0, len(m))
			for k, v := range m {
				merged = append(merged, pair{k, v})
			}
			slices.SortFunc(merged, func(x, y pair) int { return bytes.Compare(x.key[:], y.key[:]) })
			r.hash = hashPairs(merged)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	staged := &Staged{
		a:      a,
		epoch:  epoch,
		values: values,
		index:  make(map[string]bool),
		shards: make(map[uint16]epochdb.Bytes32, len(results)),
	}
	for _, r := range results {
		staged.shards[r.shard] = r.hash
		for key, prev := range r.prev {
			present := len(values[key]) > 0
			if present != (len(prev) > 0) {
				staged.index[string(rawKeys[key])] = present
			}
		}
	}

	leaves := make([]epochdb.Bytes32, a.shards)
	for i := range leaves {
		if h, ok := staged.shards[uint16(i)]; ok {
			leaves[i] = h
			continue
		}
		h, err := a.shardHash(uint16(i), parent)
		if err != nil {
			return nil, err
		}
		leaves[i] = h
	}
	staged.root, _ = reduceHashes(a.branching, leaves, -1)
	return staged, nil
}

// Commit persists the staged epoch atomically.
func (s *Staged) Commit() error {
	a := s.a
	if s.epoch != a.NextEpoch() {
		return errors.Wrapf(ErrNonSequential, "commit epoch %d, next %d", s.epoch, a.NextEpoch())
	}
	bulk := a.store.Bulk()
	for key, val := range s.values {
		if err := bulk.Put(appendEpoch(valueKey(a.shardOf(key), key), s.epoch), encodeValue(val)); err != nil {
			return err
		}
	}
	for shard, hash := range s.shards {
		if err := bulk.Put(appendEpoch(shardKey(shard), s.epoch), hash[:]); err != nil {
			return err
		}
	}
	for raw, present := range s.index {
		flag := []byte{0}
		if present {
			flag[0] = 1
		}
		if err := bulk.Put(appendEpoch(indexKey([]byte(raw)), s.epoch), flag); err != nil {
			return err
		}
	}
	epoch := binary.BigEndian.AppendUint64(nil, s.epoch)
	if err := bulk.Put(rootKey(s.epoch), s.root[:]); err != nil {
		return err
	}
	if err := bulk.Put(epochKey(s.root), epoch); err != nil {
		return err
	}
	if err := bulk.Put(lastEpochKey, epoch); err != nil {
		return err
	}
	if err := bulk.Write(); err != nil {
		return err
	}
	a.lastEpoch = s.epoch
	logger.Debug("epoch committed", "epoch", s.epoch, "root", s.root, "keys", len(s.values), "shards", len(s.shards))
	return nil
}
