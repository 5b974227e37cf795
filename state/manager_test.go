// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/epochdb/epochdb"
)

func TestGetWithProof(t *testing.T) {
	forEachEngine(t, func(t *testing.T, m *Manager) {
		var kvs []string
		for i := range 30 {
			kvs = append(kvs, fmt.Sprintf("key%d", i), fmt.Sprintf("val%d", i))
		}
		st := commitNext(t, m, kvs...)
		root := st.GetStateRoot().StateRoot

		for i := 0; i < len(kvs); i += 2 {
			val, proof, err := st.GetWithProof([]byte(kvs[i]))
			require.NoError(t, err)
			assert.Equal(t, []byte(kvs[i+1]), val)

			proven, err := m.VerifyProof(root, []byte(kvs[i]), proof)
			require.NoError(t, err)
			assert.Equal(t, val, proven)
		}

		val, proof, err := st.GetWithProof([]byte("absent"))
		require.NoError(t, err)
		assert.Nil(t, val)
		proven, err := VerifyProof(m.Config(), root, []byte("absent"), proof)
		require.NoError(t, err)
		assert.Nil(t, proven)

		_, proof, err = st.GetWithProof([]byte("key1"))
		require.NoError(t, err)
		_, err = m.VerifyProof(epochdb.Blake2b([]byte("other root")), []byte("key1"), proof)
		assert.Error(t, err)

		cfg := m.Config()
		if cfg.Engine == EngineTrie {
			cfg.Engine = EngineAccumulator
		} else {
			cfg.Engine = EngineTrie
		}
		_, err = VerifyProof(cfg, root, []byte("key1"), proof)
		assert.Error(t, err)
		_, err = m.VerifyProof(root, []byte("key1"), nil)
		assert.Error(t, err)

		// uncommitted changes can't be proven
		w, err := m.GetStateForNextEpoch(st.Index())
		require.NoError(t, err)
		_, _, err = w.GetWithProof([]byte("key1"))
		require.NoError(t, err)
		require.NoError(t, w.Set([]byte("key1"), []byte("changed")))
		_, _, err = w.GetWithProof([]byte("key1"))
		assert.True(t, errors.Is(err, ErrUnsupported))
	})
}

func TestGetNodeMerkleAllVersions(t *testing.T) {
	forEachEngine(t, func(t *testing.T, m *Manager) {
		key := []byte("k")
		commitNext(t, m, "k", "a")
		commitNext(t, m, "other", "x")
		commitNext(t, m, "k", "b")
		commitNext(t, m, "k", "")
		st := commitNext(t, m, "k", "c", "other", "y")

		check := func(want []uint64, values map[uint64]string) {
			merkles, err := st.GetNodeMerkleAllVersions(key, true)
			require.NoError(t, err)

			var epochs []uint64
			for _, nm := range merkles {
				epochs = append(epochs, nm.Epoch)

				ro, err := m.GetStateNoCommit(NewIndex(nm.Epoch, nm.StateRoot, true), false)
				require.NoError(t, err)
				require.NotNil(t, ro)
				val, err := ro.Get(key)
				require.NoError(t, err)

				if v := values[nm.Epoch]; v == "" {
					assert.True(t, nm.Merkle.IsZero())
					assert.Nil(t, val)
				} else {
					assert.Equal(t, epochdb.Blake2b([]byte(v)), nm.Merkle)
					assert.Equal(t, []byte(v), val)
				}

				require.NotNil(t, nm.Proof)
				proven, err := m.VerifyProof(nm.StateRoot, key, nm.Proof)
				require.NoError(t, err)
				assert.Equal(t, val, proven)
			}
			assert.Equal(t, want, epochs)
		}
		values := map[uint64]string{5: "c", 4: "", 3: "b", 1: "a"}
		check([]uint64{5, 4, 3, 1}, values)

		merkles, err := st.GetNodeMerkleAllVersions([]byte("never"), false)
		require.NoError(t, err)
		assert.Empty(t, merkles)

		require.NoError(t, m.MaintainStateConfirmed(3, 1, 10))
		check([]uint64{5, 4, 3}, values)
	})
}

func TestSnapshotInfo(t *testing.T) {
	forEachEngine(t, func(t *testing.T, m *Manager) {
		assert.Equal(t, uint64(2), m.SnapshotEpochCount())

		roots := make(map[uint64]StateRootWithAuxInfo)
		for i := uint64(1); i <= 6; i++ {
			st := commitNext(t, m, "k", fmt.Sprint(i))
			roots[i] = st.GetStateRoot()
		}

		for i := uint64(0); i <= 7; i++ {
			info, err := m.GetSnapshotInfoAtEpoch(i)
			require.NoError(t, err)
			if i == 0 || i%2 == 1 || i > 6 {
				assert.Nil(t, info, "epoch %d", i)
				continue
			}
			require.NotNil(t, info, "epoch %d", i)
			assert.Equal(t, i, info.Epoch)
			assert.Equal(t, roots[i].StateRoot, info.StateRoot)
			assert.Equal(t, roots[i].AuxInfo, info.AuxInfo)
			assert.Equal(t, m.EngineKind(), info.Engine)
			assert.NotEmpty(t, info.Location)

			// a snapshot locates its state
			ro, err := m.GetStateNoCommit(NewIndex(info.Epoch, info.StateRoot, true), false)
			require.NoError(t, err)
			val, err := ro.Get([]byte("k"))
			require.NoError(t, err)
			assert.Equal(t, []byte(fmt.Sprint(i)), val)
		}
	})
}

func TestMaintainStateConfirmed(t *testing.T) {
	forEachEngine(t, func(t *testing.T, m *Manager) {
		var states []*State
		for i := 1; i <= 10; i++ {
			states = append(states, commitNext(t, m, "k", fmt.Sprint(i), fmt.Sprintf("k%d", i), "x"))
		}
		index := func(epoch uint64) StateIndex { return states[epoch-1].Index() }

		// nothing confirmed beyond the era
		require.NoError(t, m.MaintainStateConfirmed(10, 10, 10))
		ro, err := m.GetStateNoCommit(index(1), false)
		require.NoError(t, err)
		assert.NotNil(t, ro)

		var oldRoot epochdb.Bytes32
		if m.EngineKind() == EngineTrie {
			oldRoot = index(3).StateRoot
			has, err := m.backend.db.HasNode(oldRoot)
			require.NoError(t, err)
			require.True(t, has)
		}

		// boundary = min(8, 10-3)
		require.NoError(t, m.MaintainStateConfirmed(8, 3, 10))

		for epoch := uint64(1); epoch <= 10; epoch++ {
			ro, err := m.GetStateNoCommit(index(epoch), false)
			require.NoError(t, err)
			if epoch < 7 {
				assert.Nil(t, ro, "epoch %d", epoch)
				continue
			}
			require.NotNil(t, ro, "epoch %d", epoch)
			val, err := ro.Get([]byte("k"))
			require.NoError(t, err)
			assert.Equal(t, []byte(fmt.Sprint(epoch)), val)

			// keys written before the boundary survive
			for i := uint64(1); i <= 10; i++ {
				val, err := ro.Get(fmt.Appendf(nil, "k%d", i))
				require.NoError(t, err)
				if i <= epoch {
					assert.Equal(t, []byte("x"), val)
				} else {
					assert.Nil(t, val)
				}
			}
			keys, err := ro.eng.KeysWithPrefix([]byte("k"))
			require.NoError(t, err)
			assert.Len(t, keys, int(epoch)+1)
		}

		if m.EngineKind() == EngineTrie {
			has, err := m.backend.db.HasNode(oldRoot)
			require.NoError(t, err)
			assert.False(t, has)
		}

		for epoch := uint64(1); epoch <= 10; epoch++ {
			info, err := m.GetSnapshotInfoAtEpoch(epoch)
			require.NoError(t, err)
			assert.Equal(t, epoch >= 7 && epoch%2 == 0, info != nil, "epoch %d", epoch)
		}

		// a sweep never passes the last epoch
		require.NoError(t, m.MaintainStateConfirmed(100, 1, 100))
		latest, err := m.LatestIndex()
		require.NoError(t, err)
		assert.Equal(t, index(10), latest)
		ro, err = m.GetStateNoCommit(latest, false)
		require.NoError(t, err)
		require.NotNil(t, ro)

		st := commitNext(t, m, "k", "11")
		val, err := st.Get([]byte("k10"))
		require.NoError(t, err)
		assert.Equal(t, []byte("x"), val)
	})
}

func TestMaintainKeepsForks(t *testing.T) {
	m := newTestManager(t, EngineTrie)
	var states []*State
	for i := 1; i <= 4; i++ {
		states = append(states, commitNext(t, m, "k", fmt.Sprint(i)))
	}
	// a fork off epoch 3, above the boundary
	fork, err := m.GetStateForNextEpoch(states[2].Index())
	require.NoError(t, err)
	require.NoError(t, fork.Set([]byte("k"), []byte("fork")))
	_, err = fork.Commit(4)
	require.NoError(t, err)

	// a fork off epoch 1, below the boundary
	stale, err := m.GetStateForNextEpoch(states[0].Index())
	require.NoError(t, err)
	require.NoError(t, stale.Set([]byte("k"), []byte("stale")))
	_, err = stale.Commit(2)
	require.NoError(t, err)

	require.NoError(t, m.MaintainStateConfirmed(3, 0, 4))

	for _, st := range []*State{states[2], states[3], fork} {
		ro, err := m.GetStateNoCommit(st.Index(), false)
		require.NoError(t, err)
		require.NotNil(t, ro)
		val, err := ro.Get([]byte("k"))
		require.NoError(t, err)
		assert.NotNil(t, val)
	}
	ro, err := m.GetStateNoCommit(stale.Index(), false)
	require.NoError(t, err)
	assert.Nil(t, ro)
}

func TestRootRecommittedByLowerFork(t *testing.T) {
	m := newTestManager(t, EngineTrie)
	genesis, err := m.GetStateForGenesisWrite()
	require.NoError(t, err)
	r0 := genesis.GetStateRoot()

	s1 := commitNext(t, m, "k", "1")
	commitNext(t, m, "k", "2")
	s3 := commitNext(t, m, "k", "1")
	r1 := s1.GetStateRoot().StateRoot
	require.Equal(t, r1, s3.GetStateRoot().StateRoot)

	// a fork off genesis reaching the same root at epoch 1
	fork, err := m.GetStateForNextEpoch(NewIndex(0, r0.StateRoot, true))
	require.NoError(t, err)
	require.NotNil(t, fork)
	require.NoError(t, fork.Set([]byte("k"), []byte("1")))
	root, err := fork.Commit(1)
	require.NoError(t, err)
	require.Equal(t, r1, root.StateRoot)

	byRoot := StateIndex{StateRoot: r1, ReadOnly: true}
	st, err := m.GetStateNoCommit(byRoot, false)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, uint64(3), st.Epoch())

	// boundary = min(2, 3-1) = 2
	require.NoError(t, m.MaintainStateConfirmed(2, 1, 3))

	st, err = m.GetStateNoCommit(byRoot, false)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, uint64(3), st.Epoch())
	val, err := st.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), val)

	st, err = m.GetStateNoCommit(NewIndex(1, r1, true), false)
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestStorageFault(t *testing.T) {
	forEachEngine(t, func(t *testing.T, m *Manager) {
		commitNext(t, m, "k", "1")
		ro := commitNext(t, m, "k", "2")
		latest, err := m.LatestIndex()
		require.NoError(t, err)
		w, err := m.GetStateForNextEpoch(latest)
		require.NoError(t, err)
		require.NotNil(t, w)
		require.NoError(t, w.Set([]byte("k"), []byte("3")))

		require.NoError(t, m.Close())

		assertFault := func(err error) {
			t.Helper()
			require.Error(t, err)
			assert.True(t, IsStorageFault(err), err)
			var se *StorageError
			assert.True(t, errors.As(err, &se))
		}

		_, err = ro.Get([]byte("k"))
		assertFault(err)
		_, err = ro.Get([]byte("absent"))
		assertFault(err)
		_, err = w.Commit(3)
		assertFault(err)

		st, err := m.GetStateNoCommit(ro.Index(), false)
		assertFault(err)
		assert.Nil(t, st)

		st, err = m.GetStateNoCommit(ro.Index(), true)
		assert.NoError(t, err)
		assert.Nil(t, st)
	})
}
