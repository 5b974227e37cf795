// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/vechain/epochdb/kv"
)

// memStore is a minimal kv.Store over an in-memory leveldb.
func newMemStore(t *testing.T) kv.Store {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	assert.Nil(t, err)
	t.Cleanup(func() { db.Close() })

	isNotFound := func(err error) bool { return err == leveldb.ErrNotFound }
	getter := &struct {
		kv.GetFunc
		kv.HasFunc
		kv.IsNotFoundFunc
	}{
		func(key []byte) ([]byte, error) { return db.Get(key, nil) },
		func(key []byte) (bool, error) { return db.Has(key, nil) },
		isNotFound,
	}
	putter := &struct {
		kv.PutFunc
		kv.DeleteFunc
	}{
		func(key, val []byte) error { return db.Put(key, val, nil) },
		func(key []byte) error { return db.Delete(key, nil) },
	}

	return &struct {
		kv.Getter
		kv.Putter
		kv.SnapshotFunc
		kv.BulkFunc
		kv.IterateFunc
	}{
		getter,
		putter,
		func() kv.Snapshot {
			return &struct {
				kv.Getter
				kv.ReleaseFunc
			}{getter, func() {}}
		},
		func() kv.Bulk {
			batch := &leveldb.Batch{}
			return &struct {
				kv.PutFunc
				kv.DeleteFunc
				kv.EnableAutoFlushFunc
				kv.WriteFunc
			}{
				func(key, val []byte) error { batch.Put(key, val); return nil },
				func(key []byte) error { batch.Delete(key); return nil },
				func() {},
				func() error { return db.Write(batch, nil) },
			}
		},
		func(r kv.Range) kv.Iterator {
			return db.NewIterator(&util.Range{Start: r.Start, Limit: r.Limit}, nil)
		},
	}
}

func TestBucket(t *testing.T) {
	src := newMemStore(t)

	b1 := kv.Bucket("b1")
	b2 := kv.Bucket("b2")

	s1 := b1.NewStore(src)
	s2 := b2.NewStore(src)

	assert.Nil(t, s1.Put([]byte("k"), []byte("v1")))
	assert.Nil(t, s2.Put([]byte("k"), []byte("v2")))

	v, err := s1.Get([]byte("k"))
	assert.Nil(t, err)
	assert.Equal(t, []byte("v1"), v)

	v, err = src.Get([]byte("b2k"))
	assert.Nil(t, err)
	assert.Equal(t, []byte("v2"), v)

	has, err := s2.Has([]byte("k"))
	assert.Nil(t, err)
	assert.True(t, has)

	assert.Nil(t, s1.Delete([]byte("k")))
	_, err = s1.Get([]byte("k"))
	assert.True(t, s1.IsNotFound(err))

	bulk := s1.Bulk()
	for _, k := range []string{"a", "b", "c"} {
		assert.Nil(t, bulk.Put([]byte(k), []byte(k)))
	}
	assert.Nil(t, bulk.Write())

	snapshot := s1.Snapshot()
	v, err = snapshot.Get([]byte("b"))
	assert.Nil(t, err)
	assert.Equal(t, []byte("b"), v)
	snapshot.Release()

	var keys []string
	it := s1.Iterate(kv.Range{})
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	it.Release()
	assert.Nil(t, it.Error())
	assert.Equal(t, []string{"a", "b", "c"}, keys)

	keys = keys[:0]
	it = s1.Iterate(kv.Range{Start: []byte("b"), Limit: []byte("c")})
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	it.Release()
	assert.Equal(t, []string{"b"}, keys)
}

func TestPrefixRange(t *testing.T) {
	r := kv.PrefixRange([]byte{1, 2})
	assert.Equal(t, []byte{1, 2}, r.Start)
	assert.Equal(t, []byte{1, 3}, r.Limit)

	r = kv.PrefixRange([]byte{1, 0xff})
	assert.Equal(t, []byte{2}, r.Limit)
}
