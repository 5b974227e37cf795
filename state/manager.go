// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vechain/epochdb/accumulator"
	"github.com/vechain/epochdb/epochdb"
	"github.com/vechain/epochdb/journaldb"
)

// Manager hands out states over the backend database.
// The engine is selected once, and roots of different engines never mix.
type Manager struct {
	backend *sharedBackend
	cfg     Config
}

// NewManager creates a manager which owns the db.
func NewManager(db *journaldb.DB, cfg Config) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := loadOrSaveProps(db.NewStore(propsStoreName), &cfg); err != nil {
		return nil, err
	}

	var impl backend
	switch cfg.Engine {
	case EngineTrie:
		impl = &trieBackend{db}
	case EngineAccumulator:
		acc, err := accumulator.New(db.AccumulatorStore(), cfg.AccumulatorShards, cfg.AccumulatorBranching)
		if err != nil {
			return nil, err
		}
		impl = &accBackend{acc}
	}

	latest, err := impl.latest()
	if err != nil {
		return nil, &StorageError{err}
	}
	metricLatestEpoch().Set(int64(latest.AuxInfo.Epoch))
	logger.Info("state manager opened", "engine", cfg.Engine, "db", db.Engine(), "epoch", latest.AuxInfo.Epoch, "root", latest.StateRoot)

	return &Manager{
		backend: &sharedBackend{
			db:        db,
			impl:      impl,
			snapshots: db.NewStore(snapshotStoreName),
			snapCount: cfg.SnapshotEpochCount,
		},
		cfg: cfg,
	}, nil
}

// Close closes the underlying db.
func (m *Manager) Close() error {
	m.backend.Lock()
	defer m.backend.Unlock()
	return m.backend.db.Close()
}

// EngineKind returns the kind of the engine.
func (m *Manager) EngineKind() string {
	return m.cfg.Engine
}

// Config returns the config in effect.
func (m *Manager) Config() Config {
	return m.cfg
}

// SnapshotEpochCount returns the interval of epochs at which snapshot info is written.
func (m *Manager) SnapshotEpochCount() uint64 {
	return m.cfg.SnapshotEpochCount
}

// LatestIndex returns the read-only index of the highest committed epoch.
func (m *Manager) LatestIndex() (StateIndex, error) {
	m.backend.RLock()
	defer m.backend.RUnlock()

	latest, err := m.backend.impl.latest()
	if err != nil {
		return StateIndex{}, &StorageError{err}
	}
	return NewIndex(latest.AuxInfo.Epoch, latest.StateRoot, true), nil
}

// GetStateNoCommit opens the read-only state of a committed root.
//
// Nil state returned without error if the root is unknown. If tryOpen is set,
// faults when locating the root are also reported as an unknown root.
func (m *Manager) GetStateNoCommit(index StateIndex, tryOpen bool) (*State, error) {
	if !index.ReadOnly {
		return nil, violation("open writable index %v without commit", index)
	}
	m.backend.RLock()
	root, found, err := m.backend.impl.locate(index.StateRoot, index.Epoch)
	m.backend.RUnlock()
	if err != nil {
		if tryOpen {
			logger.Warn("failed to locate state", "index", index, "err", err)
			return nil, nil
		}
		return nil, &StorageError{err}
	}
	if !found {
		return nil, nil
	}
	return newState(m.backend, root, true), nil
}

// GetStateForNextEpoch derives the writable state of the epoch after parent.
//
// Nil state returned without error if the parent root is unknown. The accumulator
// engine only accepts the last committed epoch as the parent.
func (m *Manager) GetStateForNextEpoch(parent StateIndex) (*State, error) {
	m.backend.RLock()
	defer m.backend.RUnlock()

	if parent.Epoch != nil {
		if err := m.backend.impl.canDerive(*parent.Epoch); err != nil {
			return nil, err
		}
	}
	root, found, err := m.backend.impl.locate(parent.StateRoot, parent.Epoch)
	if err != nil {
		return nil, &StorageError{err}
	}
	if !found {
		return nil, nil
	}
	if err := m.backend.impl.canDerive(root.AuxInfo.Epoch); err != nil {
		return nil, err
	}
	return newState(m.backend, root, false), nil
}

// GetStateForGenesisWrite returns the writable state on top of the empty genesis state.
// It's only allowed before any epoch is committed.
func (m *Manager) GetStateForGenesisWrite() (*State, error) {
	m.backend.RLock()
	defer m.backend.RUnlock()

	latest, err := m.backend.impl.latest()
	if err != nil {
		return nil, &StorageError{err}
	}
	if latest.AuxInfo.Epoch != 0 {
		return nil, violation("genesis write after epoch %d committed", latest.AuxInfo.Epoch)
	}
	return newState(m.backend, m.backend.impl.emptyRoot(), false), nil
}

// MaintainStateConfirmed drops history that is no longer needed.
//
// Epochs below min(stableCheckpointHeight, confirmedHeight-eraEpochCount) are discarded,
// so epochs within eraEpochCount of the confirmed height stay reachable. The last
// committed epoch is never discarded.
func (m *Manager) MaintainStateConfirmed(stableCheckpointHeight, eraEpochCount, confirmedHeight uint64) error {
	if confirmedHeight <= eraEpochCount {
		return nil
	}
	boundary := min(stableCheckpointHeight, confirmedHeight-eraEpochCount)

	m.backend.Lock()
	defer m.backend.Unlock()

	latest, err := m.backend.impl.latest()
	if err != nil {
		return &StorageError{err}
	}
	boundary = min(boundary, latest.AuxInfo.Epoch)
	if boundary == 0 {
		return nil
	}

	start := time.Now()
	n, err := m.backend.impl.prune(boundary)
	if err != nil {
		return wrapError(err)
	}
	snapshots, err := m.backend.pruneSnapshots(boundary)
	if err != nil {
		return &StorageError{err}
	}
	logger.Info("state maintained",
		"boundary", boundary,
		"removed", n,
		"snapshots", snapshots,
		"elapsed", common.PrettyDuration(time.Since(start)),
	)
	return nil
}

// GetSnapshotInfoAtEpoch returns the snapshot info of the epoch. Nil returned if none.
func (m *Manager) GetSnapshotInfoAtEpoch(epoch uint64) (*SnapshotInfo, error) {
	m.backend.RLock()
	defer m.backend.RUnlock()

	info, err := m.backend.getSnapshot(epoch)
	if err != nil {
		return nil, &StorageError{err}
	}
	return info, nil
}

// VerifyProof verifies the proof against a root built by this manager's engine.
func (m *Manager) VerifyProof(root epochdb.Bytes32, key []byte, proof *Proof) ([]byte, error) {
	return VerifyProof(m.cfg, root, key, proof)
}
