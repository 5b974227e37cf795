// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"bytes"
	"slices"
	"time"

	"github.com/vechain/epochdb/epochdb"
	"github.com/vechain/epochdb/log"
	"github.com/vechain/epochdb/stackedmap"
)

var logger = log.WithContext("pkg", "state")

// State is a handle bound to one epoch's root.
//
// A read-only state is a snapshot of a committed epoch, and may be shared by
// concurrent readers. A writable state buffers changes on top of its parent
// epoch until committed, after which it becomes a read-only state of the
// committed epoch. Writable states are not safe for concurrent use.
type State struct {
	backend  *sharedBackend
	eng      engine
	parent   StateRootWithAuxInfo // the root the engine is bound to
	root     StateRootWithAuxInfo // the root known to this handle
	computed bool
	readOnly bool
	sm       *stackedmap.StackedMap[string, []byte] // nil if read-only
}

func newState(b *sharedBackend, root StateRootWithAuxInfo, readOnly bool) *State {
	s := &State{
		backend:  b,
		eng:      b.impl.open(root),
		parent:   root,
		root:     root,
		readOnly: readOnly,
	}
	if !readOnly {
		s.sm = stackedmap.New(func(key string) ([]byte, bool, error) {
			val, err := s.getCommitted([]byte(key))
			return val, true, err
		})
	}
	return s
}

// Epoch returns the committed epoch of a read-only state, or the parent epoch of a writable state.
func (s *State) Epoch() uint64 {
	return s.parent.AuxInfo.Epoch
}

// IsReadOnly returns whether the state is read-only.
func (s *State) IsReadOnly() bool {
	return s.readOnly
}

// Index returns the index of the state. A writable state reports the epoch it is
// going to commit, with the root last computed.
func (s *State) Index() StateIndex {
	if s.readOnly {
		return NewIndex(s.parent.AuxInfo.Epoch, s.parent.StateRoot, true)
	}
	var root epochdb.Bytes32
	if s.computed {
		root = s.root.StateRoot
	}
	return NewIndex(s.parent.AuxInfo.Epoch+1, root, false)
}

// GetStateRoot returns the root known to this handle. It never recomputes.
func (s *State) GetStateRoot() StateRootWithAuxInfo {
	return s.root
}

func (s *State) getCommitted(key []byte) ([]byte, error) {
	s.backend.RLock()
	defer s.backend.RUnlock()

	val, err := s.eng.Get(key)
	if err != nil {
		return nil, wrapError(err)
	}
	if len(val) == 0 {
		return nil, nil
	}
	return val, nil
}

// Get returns the value of the key. Nil returned if absent.
func (s *State) Get(key []byte) ([]byte, error) {
	defer observe("get", s.backend.impl.kind(), time.Now())

	if s.sm == nil {
		return s.getCommitted(key)
	}
	val, _, err := s.sm.Get(string(key))
	if err != nil || len(val) == 0 {
		return nil, err
	}
	return bytes.Clone(val), nil
}

// Set sets the value of the key. Empty value deletes the key.
func (s *State) Set(key, value []byte) error {
	if s.readOnly {
		return violation("set on read-only state %v", s.root)
	}
	defer observe("set", s.backend.impl.kind(), time.Now())

	s.sm.Put(string(key), bytes.Clone(value))
	s.computed = false
	return nil
}

// Delete deletes the key.
func (s *State) Delete(key []byte) error {
	if s.readOnly {
		return violation("delete on read-only state %v", s.root)
	}
	s.sm.Put(string(key), nil)
	s.computed = false
	return nil
}

// KeysWithPrefix returns the present keys with the prefix in key order,
// the working set of a writable state included.
func (s *State) KeysWithPrefix(prefix []byte) ([][]byte, error) {
	defer observe("keys", s.backend.impl.kind(), time.Now())

	s.backend.RLock()
	keys, err := s.eng.KeysWithPrefix(prefix)
	s.backend.RUnlock()
	if err != nil {
		return nil, wrapError(err)
	}
	if s.sm == nil {
		return keys, nil
	}

	// keys only present in the working set
	s.sm.Journal(func(key string, _ []byte) bool {
		if bytes.HasPrefix([]byte(key), prefix) {
			keys = append(keys, []byte(key))
		}
		return true
	})
	slices.SortFunc(keys, bytes.Compare)
	keys = slices.CompactFunc(keys, bytes.Equal)

	present := keys[:0]
	for _, key := range keys {
		val, _, err := s.sm.Get(string(key))
		if err != nil {
			return nil, err
		}
		if len(val) > 0 {
			present = append(present, key)
		}
	}
	return present, nil
}

// DeleteAll deletes all keys with the prefix, and returns the deleted pairs in key order.
func (s *State) DeleteAll(prefix []byte) ([]KeyValue, error) {
	if s.readOnly {
		return nil, violation("delete all on read-only state %v", s.root)
	}
	keys, err := s.KeysWithPrefix(prefix)
	if err != nil {
		return nil, err
	}

	deleted := make([]KeyValue, 0, len(keys))
	for _, key := range keys {
		val, err := s.Get(key)
		if err != nil {
			return nil, err
		}
		deleted = append(deleted, KeyValue{key, val})
		s.sm.Put(string(key), nil)
	}
	if len(deleted) > 0 {
		s.computed = false
	}
	return deleted, nil
}

// NewCheckpoint makes a checkpoint of the working set, and returns its revision.
func (s *State) NewCheckpoint() int {
	if s.sm == nil {
		return 0
	}
	return s.sm.Push()
}

// RevertTo reverts the working set to the revision returned by NewCheckpoint.
func (s *State) RevertTo(revision int) {
	if s.sm == nil {
		return
	}
	s.sm.PopTo(max(revision, 1))
	s.computed = false
}

// changes returns the latest value of each key changed in the working set.
func (s *State) changes() []KeyValue {
	var (
		latest = make(map[string]int)
		kvs    []KeyValue
	)
	s.sm.Journal(func(key string, val []byte) bool {
		if i, ok := latest[key]; ok {
			kvs[i].Value = val
		} else {
			latest[key] = len(kvs)
			kvs = append(kvs, KeyValue{[]byte(key), val})
		}
		return true
	})
	return kvs
}

// ComputeStateRoot computes the root of the next epoch without persisting anything.
func (s *State) ComputeStateRoot() (StateRootWithAuxInfo, error) {
	if s.readOnly {
		return StateRootWithAuxInfo{}, violation("compute root of read-only state %v", s.root)
	}
	s.backend.Lock()
	defer s.backend.Unlock()

	st, err := s.eng.Stage(s.parent.AuxInfo.Epoch+1, s.changes())
	if err != nil {
		return StateRootWithAuxInfo{}, wrapError(err)
	}
	s.root, s.computed = st.Root(), true
	return s.root, nil
}

// Commit commits the working set as the given epoch, which must follow the parent epoch.
// The state becomes a read-only state of the committed epoch.
func (s *State) Commit(epoch uint64) (StateRootWithAuxInfo, error) {
	if s.readOnly {
		return StateRootWithAuxInfo{}, violation("commit on read-only state %v", s.root)
	}
	if epoch != s.parent.AuxInfo.Epoch+1 {
		return StateRootWithAuxInfo{}, violation("commit epoch %d on parent epoch %d", epoch, s.parent.AuxInfo.Epoch)
	}
	defer observe("commit", s.backend.impl.kind(), time.Now())

	s.backend.Lock()
	defer s.backend.Unlock()

	changes := s.changes()
	st, err := s.eng.Stage(epoch, changes)
	if err != nil {
		return StateRootWithAuxInfo{}, wrapError(err)
	}
	if err := st.Commit(); err != nil {
		return StateRootWithAuxInfo{}, wrapError(err)
	}
	root := st.Root()

	// sealed
	s.eng = s.backend.impl.open(root)
	s.parent, s.root, s.computed = root, root, true
	s.readOnly = true
	s.sm = nil

	logger.Debug("epoch committed", "engine", s.backend.impl.kind(), "epoch", epoch, "root", root.StateRoot, "changes", len(changes))
	if err := s.backend.committed(root); err != nil {
		return StateRootWithAuxInfo{}, &StorageError{err}
	}
	return root, nil
}

// GetWithProof returns the value of the key together with the proof against the state root.
// Nil value returned if absent, and the proof proves the absence.
func (s *State) GetWithProof(key []byte) ([]byte, *Proof, error) {
	if !s.readOnly && len(s.changes()) > 0 {
		return nil, nil, unsupported("proof of uncommitted changes")
	}
	s.backend.RLock()
	defer s.backend.RUnlock()

	val, err := s.eng.Get(key)
	if err != nil {
		return nil, nil, wrapError(err)
	}
	proof, err := s.eng.Prove(key)
	if err != nil {
		return nil, nil, wrapError(err)
	}
	if len(val) == 0 {
		val = nil
	}
	return val, proof, nil
}

// GetNodeMerkleAllVersions returns the value hash of the key at each retained version
// where it changed, from the latest. The oldest retained version is included if the key
// is present at it.
func (s *State) GetNodeMerkleAllVersions(key []byte, withProof bool) ([]NodeMerkle, error) {
	s.backend.RLock()
	defer s.backend.RUnlock()

	versions, err := s.eng.Versions(key)
	if err != nil {
		return nil, wrapError(err)
	}
	var merkles []NodeMerkle
	for i, v := range versions {
		if i+1 < len(versions) {
			if bytes.Equal(v.value, versions[i+1].value) {
				continue
			}
		} else if len(v.value) == 0 {
			continue
		}
		nm := NodeMerkle{
			Epoch:     v.root.AuxInfo.Epoch,
			StateRoot: v.root.StateRoot,
		}
		if len(v.value) > 0 {
			nm.Merkle = epochdb.Blake2b(v.value)
		}
		if withProof {
			if nm.Proof, err = s.backend.impl.open(v.root).Prove(key); err != nil {
				return nil, wrapError(err)
			}
		}
		merkles = append(merkles, nm)
	}
	return merkles, nil
}
