// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accumulator

import (
	"encoding/binary"

	"github.com/vechain/epochdb/epochdb"
	"github.com/vechain/epochdb/kv"
)

// Prune moves the prune boundary up to the given epoch and drops history below it.
// For every versioned row, only the version effective at the boundary is kept.
// The last committed epoch is never pruned. It returns the count of deleted rows.
func (a *Accumulator) Prune(boundary uint64) (int, error) {
	boundary = min(boundary, a.lastEpoch)
	if boundary <= a.boundary {
		return 0, nil
	}
	// the boundary goes first, so that an interrupted prune never exposes partial history.
	if err := a.store.Put(boundaryKey, binary.BigEndian.AppendUint64(nil, boundary)); err != nil {
		return 0, err
	}
	prev := a.boundary
	a.boundary = boundary

	bulk := a.store.Bulk()
	bulk.EnableAutoFlush()

	var deleted int
	for _, prefix := range []byte{valueKeyPrefix, shardKeyPrefix, indexKeyPrefix} {
		n, err := a.pruneVersions(bulk, prefix, boundary)
		if err != nil {
			return 0, err
		}
		deleted += n
	}

	for epoch := max(prev, 1); epoch < boundary; epoch++ {
		data, err := a.store.Get(rootKey(epoch))
		if err != nil {
			if a.store.IsNotFound(err) {
				continue
			}
			return 0, err
		}
		root := epochdb.BytesToBytes32(data)
		if latest, found, err := a.LookupRoot(root); err != nil {
			return 0, err
		} else if found && latest == epoch {
			if err := bulk.Delete(epochKey(root)); err != nil {
				return 0, err
			}
		}
		if err := bulk.Delete(rootKey(epoch)); err != nil {
			return 0, err
		}
		deleted++
	}
	if err := bulk.Write(); err != nil {
		return 0, err
	}
	logger.Info("pruned", "boundary", boundary, "rows", deleted)
	return deleted, nil
}

// pruneVersions deletes versions below the boundary, except the latest of them if it marks a present value.
func (a *Accumulator) pruneVersions(bulk kv.Bulk, prefix byte, boundary uint64) (int, error) {
	it := a.store.Iterate(kv.PrefixRange([]byte{prefix}))
	defer it.Release()

	// item => whether its version effective at the boundary was met
	met := make(map[string]bool)
	var deleted int
	for it.Next() {
		k := it.Key()
		if len(k) < 1+epochSize {
			continue
		}
		if decodeEpoch(k[len(k)-epochSize:]) >= boundary {
			continue
		}
		item := string(k[:len(k)-epochSize])
		if !met[item] {
			met[item] = true
			if prefix == shardKeyPrefix || decodeValue(it.Value()) != nil {
				continue
			}
		}
		if err := bulk.Delete(it.Key()); err != nil {
			return 0, err
		}
		deleted++
	}
	return deleted, it.Error()
}
