// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package journaldb

import (
	"bytes"
	"errors"

	"github.com/cockroachdb/pebble"

	"github.com/vechain/epochdb/kv"
)

type pebbleEngine struct {
	db *pebble.DB
}

// newPebbleEngine wraps the pebble instance as an engine.
func newPebbleEngine(db *pebble.DB) engine {
	return &pebbleEngine{db}
}

func (p *pebbleEngine) Close() error {
	return p.db.Close()
}

func (p *pebbleEngine) IsNotFound(err error) bool {
	return errors.Is(err, pebble.ErrNotFound)
}

func (p *pebbleEngine) Get(key []byte) ([]byte, error) {
	val, closer, err := p.db.Get(key)
	if err != nil {
		return nil, err
	}
	// the returned slice is only valid before closer is closed
	val = bytes.Clone(val)
	return val, closer.Close()
}

func (p *pebbleEngine) Has(key []byte) (bool, error) {
	_, closer, err := p.db.Get(key)
	if err != nil {
		if p.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, closer.Close()
}

func (p *pebbleEngine) Put(key, val []byte) error {
	return p.db.Set(key, val, pebble.NoSync)
}

func (p *pebbleEngine) Delete(key []byte) error {
	return p.db.Delete(key, pebble.NoSync)
}

func (p *pebbleEngine) Snapshot() kv.Snapshot {
	s := p.db.NewSnapshot()
	return &struct {
		kv.GetFunc
		kv.HasFunc
		kv.IsNotFoundFunc
		kv.ReleaseFunc
	}{
		func(key []byte) ([]byte, error) {
			val, closer, err := s.Get(key)
			if err != nil {
				return nil, err
			}
			val = bytes.Clone(val)
			return val, closer.Close()
		},
		func(key []byte) (bool, error) {
			_, closer, err := s.Get(key)
			if err != nil {
				if p.IsNotFound(err) {
					return false, nil
				}
				return false, err
			}
			return true, closer.Close()
		},
		p.IsNotFound,
		func() { _ = s.Close() },
	}
}

// Bulk returns a bulk putter. Without auto flush, the final Write is atomic and synced.
func (p *pebbleEngine) Bulk() kv.Bulk {
	var (
		batch     *pebble.Batch
		autoFlush bool
	)

	getBatch := func() *pebble.Batch {
		if batch == nil {
			batch = p.db.NewBatch()
		}
		return batch
	}
	flush := func(minSize int, wo *pebble.WriteOptions) error {
		if batch != nil && batch.Len() >= minSize {
			defer func() { batch = nil }()
			if batch.Count() > 0 {
				if err := batch.Commit(wo); err != nil {
					_ = batch.Close()
					return err
				}
			}
			return batch.Close()
		}
		return nil
	}

	return &struct {
		kv.PutFunc
		kv.DeleteFunc
		kv.EnableAutoFlushFunc
		kv.WriteFunc
	}{
		func(key, val []byte) error {
			if err := getBatch().Set(key, val, nil); err != nil {
				return err
			}
			if autoFlush {
				return flush(idealBatchSize, pebble.NoSync)
			}
			return nil
		},
		func(key []byte) error {
			if err := getBatch().Delete(key, nil); err != nil {
				return err
			}
			if autoFlush {
				return flush(idealBatchSize, pebble.NoSync)
			}
			return nil
		},
		func() { autoFlush = true },
		func() error { return flush(0, pebble.Sync) },
	}
}

func (p *pebbleEngine) Iterate(r kv.Range) kv.Iterator {
	it, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: r.Start,
		UpperBound: r.Limit,
	})
	if err != nil {
		return &pebbleIterator{err: err}
	}
	return &pebbleIterator{it: it}
}

// pebbleIterator adapts pebble iterator to the leveldb manner,
// where Next/Prev on an unpositioned iterator seek to the first/last entry.
type pebbleIterator struct {
	it         *pebble.Iterator
	positioned bool
	err        error
}

func (i *pebbleIterator) First() bool {
	if i.it == nil {
		return false
	}
	i.positioned = true
	return i.it.First()
}

func (i *pebbleIterator) Last() bool {
	if i.it == nil {
		return false
	}
	i.positioned = true
	return i.it.Last()
}

func (i *pebbleIterator) Next() bool {
	if !i.positioned {
		return i.First()
	}
	if i.it == nil {
		return false
	}
	return i.it.Next()
}

func (i *pebbleIterator) Prev() bool {
	if !i.positioned {
		return i.Last()
	}
	if i.it == nil {
		return false
	}
	return i.it.Prev()
}

func (i *pebbleIterator) Key() []byte {
	if i.it == nil || !i.it.Valid() {
		return nil
	}
	return i.it.Key()
}

func (i *pebbleIterator) Value() []byte {
	if i.it == nil || !i.it.Valid() {
		return nil
	}
	return i.it.Value()
}

func (i *pebbleIterator) Release() {
	if i.it != nil {
		if err := i.it.Close(); err != nil && i.err == nil {
			i.err = err
		}
		i.it = nil
	}
}

func (i *pebbleIterator) Error() error {
	if i.err != nil {
		return i.err
	}
	if i.it != nil {
		return i.it.Error()
	}
	return nil
}
