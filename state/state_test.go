// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/epochdb/epochdb"
	"github.com/vechain/epochdb/journaldb"
)

var engines = []string{EngineTrie, EngineAccumulator}

func newTestManager(t *testing.T, engine string) *Manager {
	cfg := DefaultConfig()
	cfg.Engine = engine
	cfg.SnapshotEpochCount = 2
	cfg.AccumulatorShards = 16

	m, err := NewManager(journaldb.NewMem(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func forEachEngine(t *testing.T, fn func(t *testing.T, m *Manager)) {
	for _, engine := range engines {
		t.Run(engine, func(t *testing.T) {
			fn(t, newTestManager(t, engine))
		})
	}
}

// commitNext derives the next epoch from the latest one, applies the pairs and commits.
func commitNext(t *testing.T, m *Manager, kvs ...string) *State {
	latest, err := m.LatestIndex()
	require.NoError(t, err)

	st, err := m.GetStateForNextEpoch(latest)
	require.NoError(t, err)
	require.NotNil(t, st)

	for i := 0; i < len(kvs); i += 2 {
		require.NoError(t, st.Set([]byte(kvs[i]), []byte(kvs[i+1])))
	}
	_, err = st.Commit(*latest.Epoch + 1)
	require.NoError(t, err)
	return st
}

func TestEndToEnd(t *testing.T) {
	forEachEngine(t, func(t *testing.T, m *Manager) {
		alice := []byte("balance:alice")

		genesis, err := m.GetStateForGenesisWrite()
		require.NoError(t, err)
		assert.Equal(t, uint64(0), genesis.Epoch())
		r0 := genesis.GetStateRoot()

		require.NoError(t, genesis.Set(alice, []byte("100")))
		r1, err := genesis.Commit(1)
		require.NoError(t, err)
		assert.NotEqual(t, r0.StateRoot, r1.StateRoot)
		assert.Equal(t, uint64(1), r1.AuxInfo.Epoch)
		assert.True(t, genesis.IsReadOnly())

		snap1, err := m.GetStateNoCommit(NewIndex(1, r1.StateRoot, true), false)
		require.NoError(t, err)
		require.NotNil(t, snap1)
		val, err := snap1.Get(alice)
		require.NoError(t, err)
		assert.Equal(t, []byte("100"), val)

		next, err := m.GetStateForNextEpoch(NewIndex(1, r1.StateRoot, false))
		require.NoError(t, err)
		require.NotNil(t, next)
		require.NoError(t, next.Set(alice, []byte("50")))
		r2, err := next.Commit(2)
		require.NoError(t, err)
		assert.NotEqual(t, r1.StateRoot, r2.StateRoot)

		val, err = snap1.Get(alice)
		require.NoError(t, err)
		assert.Equal(t, []byte("100"), val)

		snap2, err := m.GetStateNoCommit(next.Index(), false)
		require.NoError(t, err)
		val, err = snap2.Get(alice)
		require.NoError(t, err)
		assert.Equal(t, []byte("50"), val)

		// located without the epoch
		snap1, err = m.GetStateNoCommit(StateIndex{StateRoot: r1.StateRoot, ReadOnly: true}, false)
		require.NoError(t, err)
		require.NotNil(t, snap1)
		assert.Equal(t, uint64(1), snap1.Epoch())
	})
}

func TestRoundTrip(t *testing.T) {
	forEachEngine(t, func(t *testing.T, m *Manager) {
		st, err := m.GetStateForGenesisWrite()
		require.NoError(t, err)

		val, err := st.Get([]byte("k"))
		require.NoError(t, err)
		assert.Nil(t, val)

		require.NoError(t, st.Set([]byte("k"), []byte("v1")))
		val, err = st.Get([]byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), val)

		require.NoError(t, st.Set([]byte("k"), []byte("v2")))
		val, err = st.Get([]byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), val)

		require.NoError(t, st.Delete([]byte("k")))
		val, err = st.Get([]byte("k"))
		require.NoError(t, err)
		assert.Nil(t, val)

		require.NoError(t, st.Set([]byte("k"), []byte("v3")))
		require.NoError(t, st.Set([]byte("gone"), []byte("x")))
		require.NoError(t, st.Set([]byte("gone"), nil))
		root, err := st.Commit(1)
		require.NoError(t, err)

		ro, err := m.GetStateNoCommit(NewIndex(1, root.StateRoot, true), false)
		require.NoError(t, err)
		val, err = ro.Get([]byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v3"), val)
		val, err = ro.Get([]byte("gone"))
		require.NoError(t, err)
		assert.Nil(t, val)
	})
}

func TestReadOnlyImmutable(t *testing.T) {
	forEachEngine(t, func(t *testing.T, m *Manager) {
		st := commitNext(t, m, "a", "1", "b", "2")
		ro, err := m.GetStateNoCommit(st.Index(), false)
		require.NoError(t, err)

		for _, s := range []*State{st, ro} {
			assert.True(t, errors.Is(s.Set([]byte("a"), []byte("x")), ErrContractViolation))
			assert.True(t, errors.Is(s.Delete([]byte("a")), ErrContractViolation))
			_, err := s.DeleteAll([]byte("a"))
			assert.True(t, errors.Is(err, ErrContractViolation))
			_, err = s.ComputeStateRoot()
			assert.True(t, errors.Is(err, ErrContractViolation))
			_, err = s.Commit(2)
			assert.True(t, errors.Is(err, ErrContractViolation))
		}

		// writable index can't be opened without commit
		_, err = m.GetStateNoCommit(NewIndex(1, st.GetStateRoot().StateRoot, false), false)
		assert.True(t, errors.Is(err, ErrContractViolation))

		var wg sync.WaitGroup
		for range 8 {
			wg.Go(func() {
				for i := range 50 {
					val, err := ro.Get([]byte("a"))
					assert.NoError(t, err)
					assert.Equal(t, []byte("1"), val)
					val, err = ro.Get([]byte("b"))
					assert.NoError(t, err)
					assert.Equal(t, []byte("2"), val)
					if i%10 == 0 {
						_, _, err = ro.GetWithProof([]byte("a"))
						assert.NoError(t, err)
					}
				}
			})
		}
		// a concurrent writer on the same backend
		wg.Go(func() {
			for i := range 5 {
				latest, err := m.LatestIndex()
				assert.NoError(t, err)
				w, err := m.GetStateForNextEpoch(latest)
				assert.NoError(t, err)
				assert.NoError(t, w.Set([]byte("a"), []byte(fmt.Sprint(i))))
				_, err = w.Commit(*latest.Epoch + 1)
				assert.NoError(t, err)
			}
		})
		wg.Wait()

		val, err := ro.Get([]byte("a"))
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), val)
	})
}

func TestRootDeterminism(t *testing.T) {
	pairs := [][2]string{{"a", "1"}, {"b", "2"}, {"ab", "3"}, {"c", "4"}, {"abc", "5"}}
	orders := [][]int{{0, 1, 2, 3, 4}, {4, 3, 2, 1, 0}, {2, 0, 4, 1, 3}}

	for _, engine := range engines {
		t.Run(engine, func(t *testing.T) {
			var roots []StateRootWithAuxInfo
			for _, order := range orders {
				m := newTestManager(t, engine)
				st, err := m.GetStateForGenesisWrite()
				require.NoError(t, err)
				require.NoError(t, st.Set([]byte("tmp"), []byte("x")))
				for _, i := range order {
					require.NoError(t, st.Set([]byte(pairs[i][0]), []byte(pairs[i][1])))
				}
				require.NoError(t, st.Delete([]byte("tmp")))

				computed, err := st.ComputeStateRoot()
				require.NoError(t, err)
				assert.Equal(t, computed, st.GetStateRoot())
				committed, err := st.Commit(1)
				require.NoError(t, err)
				assert.Equal(t, computed, committed)
				roots = append(roots, committed)
			}
			for _, r := range roots[1:] {
				assert.Equal(t, roots[0], r)
			}

			// the same set reached over two epochs
			m := newTestManager(t, engine)
			commitNext(t, m, "a", "1", "b", "2", "ab", "3")
			st := commitNext(t, m, "c", "4", "abc", "5")
			assert.Equal(t, roots[0].StateRoot, st.GetStateRoot().StateRoot)
		})
	}
}

func TestBranching(t *testing.T) {
	for _, engine := range engines {
		t.Run(engine, func(t *testing.T) {
			m := newTestManager(t, engine)
			st1 := commitNext(t, m, "k", "1")
			st2 := commitNext(t, m, "k", "2")

			fork, err := m.GetStateForNextEpoch(st1.Index())
			if engine == EngineAccumulator {
				assert.True(t, errors.Is(err, ErrContractViolation))
				assert.Nil(t, fork)

				// a stale writable state can't commit either
				latest := st2.Index()
				a, err := m.GetStateForNextEpoch(latest)
				require.NoError(t, err)
				b, err := m.GetStateForNextEpoch(latest)
				require.NoError(t, err)
				require.NoError(t, a.Set([]byte("k"), []byte("a")))
				require.NoError(t, b.Set([]byte("k"), []byte("b")))
				_, err = a.Commit(3)
				require.NoError(t, err)
				_, err = b.Commit(3)
				assert.True(t, errors.Is(err, ErrContractViolation))
				return
			}

			require.NoError(t, err)
			require.NoError(t, fork.Set([]byte("k"), []byte("fork")))
			forkRoot, err := fork.Commit(2)
			require.NoError(t, err)
			assert.NotEqual(t, st2.GetStateRoot(), forkRoot)

			for want, idx := range map[string]StateIndex{"2": st2.Index(), "fork": fork.Index()} {
				ro, err := m.GetStateNoCommit(idx, false)
				require.NoError(t, err)
				val, err := ro.Get([]byte("k"))
				require.NoError(t, err)
				assert.Equal(t, []byte(want), val)
			}
		})
	}
}

func TestCommitEpoch(t *testing.T) {
	forEachEngine(t, func(t *testing.T, m *Manager) {
		st, err := m.GetStateForGenesisWrite()
		require.NoError(t, err)
		require.NoError(t, st.Set([]byte("k"), []byte("v")))

		_, err = st.Commit(2)
		assert.True(t, errors.Is(err, ErrContractViolation))
		_, err = st.Commit(0)
		assert.True(t, errors.Is(err, ErrContractViolation))

		_, err = st.Commit(1)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), st.Epoch())

		_, err = m.GetStateForGenesisWrite()
		assert.True(t, errors.Is(err, ErrContractViolation))
	})
}

func TestLocate(t *testing.T) {
	forEachEngine(t, func(t *testing.T, m *Manager) {
		st := commitNext(t, m, "k", "v")
		root := st.GetStateRoot().StateRoot

		ro, err := m.GetStateNoCommit(NewIndex(2, root, true), false)
		require.NoError(t, err)
		assert.Nil(t, ro)

		ro, err = m.GetStateNoCommit(NewIndex(1, epochdb.Blake2b([]byte("unknown")), true), true)
		require.NoError(t, err)
		assert.Nil(t, ro)

		next, err := m.GetStateForNextEpoch(StateIndex{StateRoot: root})
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, uint64(1), next.Epoch())
		assert.False(t, next.IsReadOnly())
		assert.Equal(t, uint64(2), *next.Index().Epoch)
		assert.False(t, next.Index().ReadOnly)

		// the empty genesis state
		empty := m.backend.impl.emptyRoot()
		ro, err = m.GetStateNoCommit(NewIndex(0, empty.StateRoot, true), false)
		require.NoError(t, err)
		require.NotNil(t, ro)
		val, err := ro.Get([]byte("k"))
		require.NoError(t, err)
		assert.Nil(t, val)
	})
}

func TestDeleteAll(t *testing.T) {
	forEachEngine(t, func(t *testing.T, m *Manager) {
		commitNext(t, m, "acct:a", "1", "acct:b", "2", "acct", "0", "other", "3")

		latest, err := m.LatestIndex()
		require.NoError(t, err)
		st, err := m.GetStateForNextEpoch(latest)
		require.NoError(t, err)
		require.NoError(t, st.Set([]byte("acct:c"), []byte("4")))
		require.NoError(t, st.Set([]byte("acct:b"), []byte("22")))
		require.NoError(t, st.Delete([]byte("acct:a")))

		deleted, err := st.DeleteAll([]byte("acct:"))
		require.NoError(t, err)
		assert.Equal(t, []KeyValue{
			{[]byte("acct:b"), []byte("22")},
			{[]byte("acct:c"), []byte("4")},
		}, deleted)

		deleted, err = st.DeleteAll([]byte("acct:"))
		require.NoError(t, err)
		assert.Empty(t, deleted)

		_, err = st.Commit(2)
		require.NoError(t, err)

		for key, want := range map[string][]byte{
			"acct:a": nil,
			"acct:b": nil,
			"acct:c": nil,
			"acct":   []byte("0"),
			"other":  []byte("3"),
		} {
			val, err := st.Get([]byte(key))
			require.NoError(t, err)
			assert.Equal(t, want, val, key)
		}
	})
}

func TestCheckpoint(t *testing.T) {
	forEachEngine(t, func(t *testing.T, m *Manager) {
		st, err := m.GetStateForGenesisWrite()
		require.NoError(t, err)

		require.NoError(t, st.Set([]byte("k"), []byte("1")))
		rev := st.NewCheckpoint()
		require.NoError(t, st.Set([]byte("k"), []byte("2")))
		require.NoError(t, st.Set([]byte("j"), []byte("2")))
		st.NewCheckpoint()
		require.NoError(t, st.Delete([]byte("k")))

		val, err := st.Get([]byte("k"))
		require.NoError(t, err)
		assert.Nil(t, val)

		st.RevertTo(rev)
		val, err = st.Get([]byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), val)
		val, err = st.Get([]byte("j"))
		require.NoError(t, err)
		assert.Nil(t, val)

		_, err = st.Commit(1)
		require.NoError(t, err)
		val, err = st.Get([]byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), val)
		val, err = st.Get([]byte("j"))
		require.NoError(t, err)
		assert.Nil(t, val)
	})
}

func TestReopen(t *testing.T) {
	for _, engine := range engines {
		t.Run(engine, func(t *testing.T) {
			path := t.TempDir()
			cfg := DefaultConfig()
			cfg.Engine = engine

			db, err := journaldb.Open(path, &journaldb.Options{Engine: journaldb.Pebble})
			require.NoError(t, err)
			m, err := NewManager(db, cfg)
			require.NoError(t, err)
			commitNext(t, m, "k", "v1")
			st := commitNext(t, m, "k", "v2")
			require.NoError(t, m.Close())

			db, err = journaldb.Open(path, &journaldb.Options{Engine: journaldb.Pebble})
			require.NoError(t, err)
			m, err = NewManager(db, cfg)
			require.NoError(t, err)
			defer m.Close()

			latest, err := m.LatestIndex()
			require.NoError(t, err)
			assert.Equal(t, st.Index(), latest)

			ro, err := m.GetStateNoCommit(latest, false)
			require.NoError(t, err)
			val, err := ro.Get([]byte("k"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), val)

			commitNext(t, m, "k", "v3")
		})
	}
}

func TestConfigMismatch(t *testing.T) {
	db := journaldb.NewMem()
	defer db.Close()

	cfg := DefaultConfig()
	_, err := NewManager(db, cfg)
	require.NoError(t, err)

	cfg.Engine = EngineAccumulator
	_, err = NewManager(db, cfg)
	assert.Error(t, err)

	cfg.Engine = "unknown"
	_, err = NewManager(db, cfg)
	assert.Error(t, err)
}

func TestKeysWithPrefix(t *testing.T) {
	forEachEngine(t, func(t *testing.T, m *Manager) {
		commitNext(t, m, "acct:a", "1", "acct:b", "2", "other", "3")

		latest, err := m.LatestIndex()
		require.NoError(t, err)
		ro, err := m.GetStateNoCommit(latest, false)
		require.NoError(t, err)
		keys, err := ro.KeysWithPrefix([]byte("acct:"))
		require.NoError(t, err)
		assert.Equal(t, [][]byte{[]byte("acct:a"), []byte("acct:b")}, keys)

		st, err := m.GetStateForNextEpoch(latest)
		require.NoError(t, err)
		require.NoError(t, st.Set([]byte("acct:0"), []byte("x")))
		require.NoError(t, st.Delete([]byte("acct:b")))
		keys, err = st.KeysWithPrefix([]byte("acct:"))
		require.NoError(t, err)
		assert.Equal(t, [][]byte{[]byte("acct:0"), []byte("acct:a")}, keys)

		keys, err = st.KeysWithPrefix(nil)
		require.NoError(t, err)
		assert.Len(t, keys, 3)
	})
}
