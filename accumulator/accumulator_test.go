// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accumulator

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/epochdb/epochdb"
	"github.com/vechain/epochdb/journaldb"
)

func newTestAccumulator(t *testing.T, shards, branching int) *Accumulator {
	db := journaldb.NewMem()
	t.Cleanup(func() { db.Close() })
	a, err := New(db.AccumulatorStore(), shards, branching)
	require.NoError(t, err)
	return a
}

func commit(t *testing.T, a *Accumulator, updates ...Update) epochdb.Bytes32 {
	staged, err := a.Stage(a.NextEpoch(), updates)
	require.NoError(t, err)
	require.NoError(t, staged.Commit())
	return staged.Root()
}

func set(k, v string) Update { return Update{[]byte(k), []byte(v)} }
func del(k string) Update    { return Update{Key: []byte(k)} }

func TestNewInvalid(t *testing.T) {
	db := journaldb.NewMem()
	defer db.Close()

	_, err := New(db.AccumulatorStore(), 0, 4)
	assert.Error(t, err)
	_, err = New(db.AccumulatorStore(), 64, 1)
	assert.Error(t, err)
}

func TestReduceHashes(t *testing.T) {
	assert.Equal(t, epochdb.Bytes32{}, EmptyRoot(1, 4))
	assert.NotEqual(t, epochdb.Bytes32{}, EmptyRoot(64, 4))

	for _, shards := range []int{1, 2, 3, 4, 5, 16, 17, 64} {
		for _, branching := range []int{2, 3, 4} {
			leaves := make([]epochdb.Bytes32, shards)
			for i := range leaves {
				leaves[i] = epochdb.Blake2b([]byte{byte(i)})
			}
			root, _ := reduceHashes(branching, leaves, -1)
			for pos := range shards {
				r, path := reduceHashes(branching, leaves, pos)
				assert.Equal(t, root, r)
				assert.Len(t, path, pathLen(shards, branching), "shards %d branching %d", shards, branching)
			}
		}
	}
}

func TestStageCommitGet(t *testing.T) {
	a := newTestAccumulator(t, 16, 4)
	assert.Equal(t, uint64(0), a.LastEpoch())
	assert.Equal(t, uint64(1), a.NextEpoch())

	r0, err := a.Root(0)
	require.NoError(t, err)
	assert.Equal(t, a.EmptyRoot(), r0)

	r1 := commit(t, a, set("alice", "100"), set("bob", "7"))
	assert.NotEqual(t, r0, r1)
	assert.Equal(t, uint64(1), a.LastEpoch())

	r2 := commit(t, a, set("alice", "50"), del("bob"), set("carol", "1"))
	assert.NotEqual(t, r1, r2)

	for _, c := range []struct {
		epoch uint64
		key   string
		want  []byte
	}{
		{0, "alice", nil},
		{1, "alice", []byte("100")},
		{1, "bob", []byte("7")},
		{1, "carol", nil},
		{2, "alice", []byte("50")},
		{2, "bob", nil},
		{2, "carol", []byte("1")},
	} {
		got, err := a.Get(c.epoch, []byte(c.key))
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "%s@%d", c.key, c.epoch)
	}

	_, err = a.Get(3, []byte("alice"))
	assert.True(t, errors.Is(err, ErrFutureEpoch))

	root, err := a.Root(1)
	require.NoError(t, err)
	assert.Equal(t, r1, root)

	epoch, found, err := a.LookupRoot(r2)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(2), epoch)

	epoch, found, err = a.LookupRoot(a.EmptyRoot())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(0), epoch)

	_, found, err = a.LookupRoot(epochdb.Blake2b([]byte("unknown")))
	require.NoError(t, err)
	assert.False(t, found)

	// reopen
	b, err := New(a.store, 16, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), b.LastEpoch())
}

func TestNonSequential(t *testing.T) {
	a := newTestAccumulator(t, 4, 2)
	_, err := a.Stage(2, nil)
	assert.True(t, errors.Is(err, ErrNonSequential))

	staged, err := a.Stage(1, []Update{set("k", "v")})
	require.NoError(t, err)
	commit(t, a, set("x", "y"))
	assert.True(t, errors.Is(staged.Commit(), ErrNonSequential))
}

func TestRootDeterminism(t *testing.T) {
	var updates []Update
	for i := range 100 {
		updates = append(updates, set(fmt.Sprintf("key%d", i), fmt.Sprintf("val%d", i)))
	}
	reversed := make([]Update, len(updates))
	for i, u := range updates {
		reversed[len(updates)-1-i] = u
	}

	a := newTestAccumulator(t, 64, 4)
	root := commit(t, a, updates...)

	b := newTestAccumulator(t, 64, 4)
	assert.Equal(t, root, commit(t, b, reversed...))

	// the same final set reached over several epochs
	c := newTestAccumulator(t, 64, 4)
	commit(t, c, updates[:50]...)
	commit(t, c, append(updates[50:], set("tmp", "x"))...)
	assert.Equal(t, root, commit(t, c, del("tmp")))

	// an empty epoch keeps the root
	assert.Equal(t, root, commit(t, c))
}

func TestKeysWithPrefix(t *testing.T) {
	a := newTestAccumulator(t, 8, 2)
	commit(t, a, set("ab", "1"), set("abc", "2"), set("b", "3"), set("ab\x00", "4"))
	commit(t, a, del("abc"), set("abd", "5"))

	keys, err := a.KeysWithPrefix(1, []byte("ab"))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("ab"), []byte("ab\x00"), []byte("abc")}, keys)

	keys, err = a.KeysWithPrefix(2, []byte("ab"))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("ab"), []byte("ab\x00"), []byte("abd")}, keys)

	keys, err = a.KeysWithPrefix(2, nil)
	require.NoError(t, err)
	assert.Len(t, keys, 4)

	keys, err = a.KeysWithPrefix(0, nil)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestProof(t *testing.T) {
	a := newTestAccumulator(t, 16, 4)
	var updates []Update
	for i := range 40 {
		updates = append(updates, set(fmt.Sprintf("key%d", i), fmt.Sprintf("val%d", i)))
	}
	root := commit(t, a, updates...)

	for _, u := range updates {
		proof, err := a.Prove(1, u.Key)
		require.NoError(t, err)
		val, err := VerifyProof(root, u.Key, proof, 16, 4)
		require.NoError(t, err)
		assert.Equal(t, u.Value, val)
	}

	proof, err := a.Prove(1, []byte("absent"))
	require.NoError(t, err)
	val, err := VerifyProof(root, []byte("absent"), proof, 16, 4)
	require.NoError(t, err)
	assert.Nil(t, val)

	proof, err = a.Prove(1, []byte("key1"))
	require.NoError(t, err)

	_, err = VerifyProof(epochdb.Blake2b([]byte("other")), []byte("key1"), proof, 16, 4)
	assert.Error(t, err)

	_, err = VerifyProof(root, []byte("key1"), proof, 16, 2)
	assert.Error(t, err)

	forged := *proof
	forged.Value = []byte("forged")
	_, err = VerifyProof(root, []byte("key1"), &forged, 16, 4)
	assert.Error(t, err)

	// the proof of the empty epoch
	proof, err = a.Prove(0, []byte("key1"))
	require.NoError(t, err)
	val, err = VerifyProof(a.EmptyRoot(), []byte("key1"), proof, 16, 4)
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestPrune(t *testing.T) {
	a := newTestAccumulator(t, 4, 2)
	roots := []epochdb.Bytes32{a.EmptyRoot()}
	for i := 1; i <= 5; i++ {
		updates := []Update{set("counter", fmt.Sprint(i))}
		if i == 2 {
			updates = append(updates, set("gone", "x"))
		}
		if i == 3 {
			updates = append(updates, del("gone"))
		}
		if i == 1 {
			updates = append(updates, set("stable", "s"))
		}
		roots = append(roots, commit(t, a, updates...))
	}

	n, err := a.Prune(4)
	require.NoError(t, err)
	assert.True(t, n > 0)
	assert.Equal(t, uint64(4), a.Boundary())

	for epoch := uint64(4); epoch <= 5; epoch++ {
		got, err := a.Get(epoch, []byte("counter"))
		require.NoError(t, err)
		assert.Equal(t, []byte(fmt.Sprint(epoch)), got)

		got, err = a.Get(epoch, []byte("stable"))
		require.NoError(t, err)
		assert.Equal(t, []byte("s"), got)

		got, err = a.Get(epoch, []byte("gone"))
		require.NoError(t, err)
		assert.Nil(t, got)

		root, err := a.Root(epoch)
		require.NoError(t, err)
		assert.Equal(t, roots[epoch], root)

		proof, err := a.Prove(epoch, []byte("stable"))
		require.NoError(t, err)
		val, err := VerifyProof(root, []byte("stable"), proof, 4, 2)
		require.NoError(t, err)
		assert.Equal(t, []byte("s"), val)
	}

	_, err = a.Get(3, []byte("counter"))
	assert.True(t, errors.Is(err, ErrPruned))
	_, err = a.Root(0)
	assert.True(t, errors.Is(err, ErrPruned))

	_, found, err := a.LookupRoot(roots[2])
	require.NoError(t, err)
	assert.False(t, found)

	versions, err := a.Versions(5, []byte("stable"))
	require.NoError(t, err)
	assert.Equal(t, []Version{{Epoch: 4, Value: []byte("s")}}, versions)

	versions, err = a.Versions(5, []byte("counter"))
	require.NoError(t, err)
	assert.Equal(t, []Version{{5, []byte("5")}, {4, []byte("4")}}, versions)

	keys, err := a.KeysWithPrefix(5, nil)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("counter"), []byte("stable")}, keys)

	// next commit on top of pruned history
	root6 := commit(t, a, set("counter", "6"))
	got, err := a.Get(6, []byte("counter"))
	require.NoError(t, err)
	assert.Equal(t, []byte("6"), got)
	assert.NotEqual(t, roots[5], root6)

	// boundary survives reopening, and never moves back
	b, err := New(a.store, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), b.Boundary())
	n, err = b.Prune(2)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
