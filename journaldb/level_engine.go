// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package journaldb

import (
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/vechain/epochdb/kv"
)

var (
	writeOpt = opt.WriteOptions{}
	syncOpt  = opt.WriteOptions{Sync: true}
	readOpt  = opt.ReadOptions{}
	scanOpt  = opt.ReadOptions{DontFillCache: true}
)

type levelEngine struct {
	db        *leveldb.DB
	batchPool *sync.Pool
}

// newLevelEngine wraps the leveldb instance as an engine.
func newLevelEngine(db *leveldb.DB) engine {
	pool := &sync.Pool{
		New: func() any { return new(leveldb.Batch) },
	}
	return &levelEngine{db, pool}
}

func (ldb *levelEngine) Close() error {
	return ldb.db.Close()
}

func (ldb *levelEngine) IsNotFound(err error) bool {
	return err == leveldb.ErrNotFound
}

func (ldb *levelEngine) Get(key []byte) ([]byte, error) {
	val, err := ldb.db.Get(key, &readOpt)
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (ldb *levelEngine) Has(key []byte) (bool, error) {
	return ldb.db.Has(key, &readOpt)
}

func (ldb *levelEngine) Put(key, val []byte) error {
	return ldb.db.Put(key, val, &writeOpt)
}

func (ldb *levelEngine) Delete(key []byte) error {
	return ldb.db.Delete(key, &writeOpt)
}

func (ldb *levelEngine) Snapshot() kv.Snapshot {
	s, err := ldb.db.GetSnapshot()
	return &levelSnapshot{s, err}
}

// levelSnapshot defers the error of taking the snapshot to its reads.
type levelSnapshot struct {
	snap *leveldb.Snapshot
	err  error
}

func (s *levelSnapshot) Get(key []byte) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	val, err := s.snap.Get(key, &readOpt)
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (s *levelSnapshot) Has(key []byte) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.snap.Has(key, &readOpt)
}

func (s *levelSnapshot) IsNotFound(err error) bool {
	return err == leveldb.ErrNotFound
}

func (s *levelSnapshot) Release() {
	if s.snap != nil {
		s.snap.Release()
	}
}

// Bulk returns a bulk putter. Without auto flush, the final Write is atomic and synced.
func (ldb *levelEngine) Bulk() kv.Bulk {
	return &levelBulk{ldb: ldb}
}

type levelBulk struct {
	ldb       *levelEngine
	batch     *leveldb.Batch
	autoFlush bool
}

func (b *levelBulk) current() *leveldb.Batch {
	if b.batch == nil {
		b.batch = b.ldb.batchPool.Get().(*leveldb.Batch)
		b.batch.Reset()
	}
	return b.batch
}

// flush writes the pending batch once its encoded size reaches minSize.
func (b *levelBulk) flush(minSize int, wo *opt.WriteOptions) error {
	if b.batch == nil || len(b.batch.Dump()) < minSize {
		return nil
	}
	if b.batch.Len() > 0 {
		if err := b.ldb.db.Write(b.batch, wo); err != nil {
			return err
		}
	}
	b.ldb.batchPool.Put(b.batch)
	b.batch = nil
	return nil
}

func (b *levelBulk) Put(key, val []byte) error {
	b.current().Put(key, val)
	if b.autoFlush {
		return b.flush(idealBatchSize, &writeOpt)
	}
	return nil
}

func (b *levelBulk) Delete(key []byte) error {
	b.current().Delete(key)
	if b.autoFlush {
		return b.flush(idealBatchSize, &writeOpt)
	}
	return nil
}

func (b *levelBulk) EnableAutoFlush() { b.autoFlush = true }

func (b *levelBulk) Write() error { return b.flush(0, &syncOpt) }

func (ldb *levelEngine) Iterate(r kv.Range) kv.Iterator {
	return ldb.db.NewIterator(&util.Range{Start: r.Start, Limit: r.Limit}, &scanOpt)
}
