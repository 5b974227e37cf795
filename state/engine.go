// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"sync"

	"github.com/vechain/epochdb/epochdb"
	"github.com/vechain/epochdb/journaldb"
	"github.com/vechain/epochdb/kv"
)

// backend is an authenticated structure variant persisted in the backend database.
type backend interface {
	kind() string
	emptyRoot() StateRootWithAuxInfo
	// locate resolves a committed root. The epoch hint is optional.
	locate(root epochdb.Bytes32, epoch *uint64) (StateRootWithAuxInfo, bool, error)
	// latest returns the root of the highest committed epoch.
	latest() (StateRootWithAuxInfo, error)
	// canDerive checks whether the next epoch can be built on top of the parent epoch.
	canDerive(parentEpoch uint64) error
	// open returns the engine bound to the root.
	open(root StateRootWithAuxInfo) engine
	// prune drops history below the boundary, returns the count of removed entries.
	prune(boundary uint64) (int, error)
}

// engine is a backend structure bound to one committed root.
type engine interface {
	Get(key []byte) ([]byte, error)
	KeysWithPrefix(prefix []byte) ([][]byte, error)
	Prove(key []byte) (*Proof, error)
	// Versions returns versions of the key along the retained ancestry, from the latest.
	Versions(key []byte) ([]version, error)
	// Stage applies changes on top of the bound root to build the given epoch.
	Stage(epoch uint64, changes []KeyValue) (stage, error)
}

// stage is a computed but not yet persisted epoch.
type stage interface {
	Root() StateRootWithAuxInfo
	Commit() error
}

// version is the value of a key at one committed root.
type version struct {
	root  StateRootWithAuxInfo
	value []byte
}

// sharedBackend is shared by the manager and every state it hands out.
// Readers hold the read lock, staging, commit and sweep hold the write lock.
type sharedBackend struct {
	sync.RWMutex
	db        *journaldb.DB
	impl      backend
	snapshots kv.Store
	snapCount uint64
}
