// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"github.com/pkg/errors"

	"github.com/vechain/epochdb/accumulator"
	"github.com/vechain/epochdb/epochdb"
)

// accBackend keeps states in the sequential accumulator.
// It has a single line of history, so only the last committed epoch can be a parent.
type accBackend struct {
	acc *accumulator.Accumulator
}

func (b *accBackend) kind() string { return EngineAccumulator }

func (b *accBackend) emptyRoot() StateRootWithAuxInfo {
	return StateRootWithAuxInfo{StateRoot: b.acc.EmptyRoot()}
}

func (b *accBackend) locate(root epochdb.Bytes32, epoch *uint64) (StateRootWithAuxInfo, bool, error) {
	if epoch == nil {
		e, found, err := b.acc.LookupRoot(root)
		if err != nil || !found {
			return StateRootWithAuxInfo{}, false, err
		}
		return StateRootWithAuxInfo{root, AuxInfo{Epoch: e}}, true, nil
	}

	r, err := b.acc.Root(*epoch)
	if err != nil {
		if errors.Is(err, accumulator.ErrPruned) || errors.Is(err, accumulator.ErrFutureEpoch) {
			return StateRootWithAuxInfo{}, false, nil
		}
		return StateRootWithAuxInfo{}, false, err
	}
	if r != root {
		return StateRootWithAuxInfo{}, false, nil
	}
	return StateRootWithAuxInfo{root, AuxInfo{Epoch: *epoch}}, true, nil
}

func (b *accBackend) latest() (StateRootWithAuxInfo, error) {
	last := b.acc.LastEpoch()
	root, err := b.acc.Root(last)
	if err != nil {
		return StateRootWithAuxInfo{}, err
	}
	return StateRootWithAuxInfo{root, AuxInfo{Epoch: last}}, nil
}

func (b *accBackend) canDerive(parentEpoch uint64) error {
	if parentEpoch != b.acc.LastEpoch() {
		return violation("accumulator can't branch: parent epoch %d, current epoch %d",
			parentEpoch, b.acc.LastEpoch())
	}
	return nil
}

func (b *accBackend) open(root StateRootWithAuxInfo) engine {
	return &accEngine{b.acc, root}
}

func (b *accBackend) prune(boundary uint64) (int, error) {
	n, err := b.acc.Prune(boundary)
	if err != nil {
		return 0, err
	}
	metricPrunedCount().AddWithLabel(int64(n), map[string]string{"type": "row"})
	return n, nil
}

type accEngine struct {
	acc  *accumulator.Accumulator
	root StateRootWithAuxInfo
}

func (e *accEngine) Get(key []byte) ([]byte, error) {
	return e.acc.Get(e.root.AuxInfo.Epoch, key)
}

func (e *accEngine) KeysWithPrefix(prefix []byte) ([][]byte, error) {
	return e.acc.KeysWithPrefix(e.root.AuxInfo.Epoch, prefix)
}

func (e *accEngine) Prove(key []byte) (*Proof, error) {
	p, err := e.acc.Prove(e.root.AuxInfo.Epoch, key)
	if err != nil {
		return nil, err
	}
	return &Proof{Engine: EngineAccumulator, Accumulator: p}, nil
}

func (e *accEngine) Versions(key []byte) ([]version, error) {
	vs, err := e.acc.Versions(e.root.AuxInfo.Epoch, key)
	if err != nil {
		return nil, err
	}
	versions := make([]version, 0, len(vs))
	for _, v := range vs {
		root, err := e.acc.Root(v.Epoch)
		if err != nil {
			return nil, err
		}
		versions = append(versions, version{StateRootWithAuxInfo{root, AuxInfo{Epoch: v.Epoch}}, v.Value})
	}
	return versions, nil
}

func (e *accEngine) Stage(epoch uint64, changes []KeyValue) (stage, error) {
	updates := make([]accumulator.Update, 0, len(changes))
	for _, kv := range changes {
		updates = append(updates, accumulator.Update{Key: kv.Key, Value: kv.Value})
	}
	staged, err := e.acc.Stage(epoch, updates)
	if err != nil {
		return nil, err
	}
	return accStage{staged}, nil
}

type accStage struct {
	staged *accumulator.Staged
}

func (s accStage) Root() StateRootWithAuxInfo {
	return StateRootWithAuxInfo{s.staged.Root(), AuxInfo{Epoch: s.staged.Epoch()}}
}

func (s accStage) Commit() error { return s.staged.Commit() }
