// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/vechain/epochdb/epochdb"
	"github.com/vechain/epochdb/kv"
)

const snapshotStoreName = "state.snapshots"

// SnapshotInfo is the checkpoint metadata written every SnapshotEpochCount epochs.
type SnapshotInfo struct {
	Epoch     uint64          `json:"epoch"`
	StateRoot epochdb.Bytes32 `json:"stateRoot"`
	AuxInfo   AuxInfo         `json:"auxInfo"`
	Engine    string          `json:"engine"`
	// Location names where the state is kept, as kv-engine/structure.
	Location string `json:"location"`
}

func snapshotKey(epoch uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, epoch)
}

// committed is called under the write lock after an epoch is committed.
func (b *sharedBackend) committed(root StateRootWithAuxInfo) error {
	epoch := root.AuxInfo.Epoch
	metricLatestEpoch().Set(int64(epoch))
	if epoch%b.snapCount != 0 {
		return nil
	}
	info := SnapshotInfo{
		Epoch:     epoch,
		StateRoot: root.StateRoot,
		AuxInfo:   root.AuxInfo,
		Engine:    b.impl.kind(),
		Location:  fmt.Sprintf("%s/%s", b.db.Engine(), b.impl.kind()),
	}
	data, err := json.Marshal(&info)
	if err != nil {
		return err
	}
	if err := b.snapshots.Put(snapshotKey(epoch), data); err != nil {
		return err
	}
	logger.Info("snapshot info written", "epoch", epoch, "root", root.StateRoot)
	return nil
}

func (b *sharedBackend) getSnapshot(epoch uint64) (*SnapshotInfo, error) {
	data, err := b.snapshots.Get(snapshotKey(epoch))
	if err != nil {
		if b.snapshots.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var info SnapshotInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, errors.Wrap(err, "decode snapshot info")
	}
	return &info, nil
}

// pruneSnapshots removes snapshot infos of epochs below the boundary.
func (b *sharedBackend) pruneSnapshots(boundary uint64) (int, error) {
	it := b.snapshots.Iterate(kv.Range{Limit: snapshotKey(boundary)})
	defer it.Release()

	bulk := b.snapshots.Bulk()
	var n int
	for it.Next() {
		if err := bulk.Delete(it.Key()); err != nil {
			return 0, err
		}
		n++
	}
	if err := it.Error(); err != nil {
		return 0, err
	}
	if err := bulk.Write(); err != nil {
		return 0, err
	}
	metricPrunedCount().AddWithLabel(int64(n), map[string]string{"type": "snapshot"})
	return n, nil
}
