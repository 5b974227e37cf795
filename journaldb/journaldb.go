// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package journaldb implements the backend database of the state store.
// It persists content-addressed nodes, journals the nodes inserted by each
// epoch under its parent epoch, and hosts general purpose named kv-stores.
package journaldb

import (
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	dberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/vechain/epochdb/cache"
	"github.com/vechain/epochdb/epochdb"
	"github.com/vechain/epochdb/kv"
	"github.com/vechain/epochdb/log"
)

var logger = log.WithContext("pkg", "journaldb")

const (
	nodeSpace        = byte(0) // the key space for content-addressed nodes.
	journalSpace     = byte(1) // the key space for journal records.
	namedStoreSpace  = byte(2) // the key space for named store.
	accumulatorSpace = byte(3) // the key space for the sequential accumulator.
)

// Engine names.
const (
	LevelDB = "leveldb"
	Pebble  = "pebble"
)

// Options optional parameters for DB.
type Options struct {
	// Engine is the underlying kv engine, LevelDB if empty.
	Engine string
	// NodeCacheSizeMB is the size of the cache for node blobs.
	NodeCacheSizeMB int
	// RecordCacheSize is the capacity of the cache for root-to-epoch lookups.
	RecordCacheSize int

	// OpenFilesCacheCapacity is the capacity of open files caching for underlying database.
	OpenFilesCacheCapacity int
	// ReadCacheMB is the size of read cache for underlying database.
	ReadCacheMB int
	// WriteBufferMB is the size of write buffer for underlying database.
	WriteBufferMB int
}

// DB is the journaling database.
type DB struct {
	engine    engine
	kind      string
	nodeCache *nodeCache
	epochs    *cache.LRU // root => epoch
}

// Open opens or creates DB at the given path.
func Open(path string, options *Options) (*DB, error) {
	if options == nil {
		options = &Options{}
	}
	var (
		eng engine
		err error
	)
	switch options.Engine {
	case "", LevelDB:
		eng, err = openLevel(path, options)
	case Pebble:
		eng, err = openPebble(path, options)
	default:
		return nil, errors.Errorf("unsupported engine %q", options.Engine)
	}
	if err != nil {
		return nil, err
	}
	kind := options.Engine
	if kind == "" {
		kind = LevelDB
	}
	return newDB(eng, kind, options), nil
}

func openLevel(path string, options *Options) (engine, error) {
	// prepare leveldb options
	ldbOpts := opt.Options{
		OpenFilesCacheCapacity: options.OpenFilesCacheCapacity,
		BlockCacheCapacity:     options.ReadCacheMB * opt.MiB,
		WriteBuffer:            options.WriteBufferMB * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
		BlockSize:              1024 * 32, // balance performance of point reads and compression ratio.
		CompactionTableSize:    4 * opt.MiB,
	}

	ldb, err := leveldb.OpenFile(path, &ldbOpts)
	if _, corrupted := err.(*dberrors.ErrCorrupted); corrupted {
		logger.Warn("database corrupted, recovering", "path", path)
		ldb, err = leveldb.RecoverFile(path, &ldbOpts)
	}
	if err != nil {
		return nil, errors.Wrap(err, "open leveldb")
	}
	return newLevelEngine(ldb), nil
}

func openPebble(path string, options *Options) (engine, error) {
	pOpts := &pebble.Options{
		MaxOpenFiles: options.OpenFilesCacheCapacity,
		Logger:       pebbleLogger{},
	}
	if options.WriteBufferMB > 0 {
		pOpts.MemTableSize = uint64(options.WriteBufferMB) * 1024 * 1024
	}
	if options.ReadCacheMB > 0 {
		c := pebble.NewCache(int64(options.ReadCacheMB) * 1024 * 1024)
		defer c.Unref()
		pOpts.Cache = c
	}
	pdb, err := pebble.Open(path, pOpts)
	if err != nil {
		return nil, errors.Wrap(err, "open pebble")
	}
	return newPebbleEngine(pdb), nil
}

func newDB(eng engine, kind string, options *Options) *DB {
	size := options.RecordCacheSize
	if size <= 0 {
		size = 256
	}
	epochs, _ := cache.NewLRU(size)
	return &DB{
		engine:    eng,
		kind:      kind,
		nodeCache: newNodeCache(options.NodeCacheSizeMB),
		epochs:    epochs,
	}
}

// NewMem creates a memory-backed DB over leveldb.
func NewMem() *DB {
	storage := storage.NewMemStorage()
	ldb, _ := leveldb.Open(storage, nil)
	return newDB(newLevelEngine(ldb), LevelDB, &Options{})
}

// NewMemPebble creates a memory-backed DB over pebble.
func NewMemPebble() *DB {
	pdb, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem(), Logger: pebbleLogger{}})
	if err != nil {
		panic(err)
	}
	return newDB(newPebbleEngine(pdb), Pebble, &Options{})
}

// Close closes the DB.
func (db *DB) Close() error {
	return db.engine.Close()
}

// Engine returns the name of the underlying kv engine.
func (db *DB) Engine() string {
	return db.kind
}

// NewStore creates named kv-store.
func (db *DB) NewStore(name string) kv.Store {
	return kv.Bucket(string(namedStoreSpace) + name).NewStore(db.engine)
}

// AccumulatorStore returns the kv-store reserved for the sequential accumulator.
func (db *DB) AccumulatorStore() kv.Store {
	return kv.Bucket([]byte{accumulatorSpace}).NewStore(db.engine)
}

// IsNotFound returns if the error indicates key not found.
func (db *DB) IsNotFound(err error) bool {
	return db.engine.IsNotFound(err)
}

func (db *DB) nodeStore() kv.Store {
	return kv.Bucket([]byte{nodeSpace}).NewStore(db.engine)
}

// GetNode returns the encoded node by its hash.
// Nil blob returned without error if the node is absent.
func (db *DB) GetNode(hash epochdb.Bytes32) ([]byte, error) {
	if blob := db.nodeCache.Get(hash[:]); len(blob) > 0 {
		return blob, nil
	}
	blob, err := db.nodeStore().Get(hash[:])
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	db.nodeCache.Add(hash[:], blob, false)
	return blob, nil
}

// HasNode returns whether the node is present.
func (db *DB) HasNode(hash epochdb.Bytes32) (bool, error) {
	return db.nodeStore().Has(hash[:])
}

type pebbleLogger struct{}

func (pebbleLogger) Infof(format string, args ...any) {
	logger.Debug("pebble: " + fmt.Sprintf(format, args...))
}

func (pebbleLogger) Errorf(format string, args ...any) {
	logger.Error("pebble: " + fmt.Sprintf(format, args...))
}

func (pebbleLogger) Fatalf(format string, args ...any) {
	logger.Crit("pebble: " + fmt.Sprintf(format, args...))
}
