// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package journaldb

import (
	"bytes"
	"encoding/binary"
	"slices"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/vechain/epochdb/epochdb"
	"github.com/vechain/epochdb/kv"
)

const (
	recordKeyPrefix = byte('e') // epoch + root => record
	rootKeyPrefix   = byte('r') // root => epoch
)

// Record is the journal entry of one committed epoch.
// It links the epoch to its parent and lists the nodes the commit inserted.
type Record struct {
	Epoch       uint64
	ParentEpoch uint64
	ParentRoot  epochdb.Bytes32
	Root        epochdb.Bytes32
	IndexRoot   epochdb.Bytes32
	Inserted    []epochdb.Bytes32
}

// recordRLP is the persisted form of Record.
type recordRLP struct {
	Epoch       uint64
	ParentEpoch uint64
	ParentRoot  epochdb.Bytes32
	Root        epochdb.Bytes32
	IndexRoot   epochdb.Bytes32
	Nodes       []byte // snappy compressed node hashes
}

func (r *Record) encode() ([]byte, error) {
	hashes := make([]byte, 0, len(r.Inserted)*32)
	for _, h := range r.Inserted {
		hashes = append(hashes, h[:]...)
	}
	return rlp.EncodeToBytes(&recordRLP{
		r.Epoch,
		r.ParentEpoch,
		r.ParentRoot,
		r.Root,
		r.IndexRoot,
		snappy.Encode(nil, hashes),
	})
}

func decodeRecord(data []byte) (*Record, error) {
	var rr recordRLP
	if err := rlp.DecodeBytes(data, &rr); err != nil {
		return nil, errors.Wrap(err, "decode record")
	}
	hashes, err := snappy.Decode(nil, rr.Nodes)
	if err != nil {
		return nil, errors.Wrap(err, "decompress record nodes")
	}
	if len(hashes)%32 != 0 {
		return nil, errors.New("decode record: invalid node list")
	}
	rec := &Record{
		Epoch:       rr.Epoch,
		ParentEpoch: rr.ParentEpoch,
		ParentRoot:  rr.ParentRoot,
		Root:        rr.Root,
		IndexRoot:   rr.IndexRoot,
		Inserted:    make([]epochdb.Bytes32, len(hashes)/32),
	}
	for i := range rec.Inserted {
		copy(rec.Inserted[i][:], hashes[i*32:])
	}
	return rec, nil
}

func recordKey(epoch uint64, root epochdb.Bytes32) []byte {
	k := make([]byte, 0, 2+8+32)
	k = append(k, journalSpace, recordKeyPrefix)
	k = binary.BigEndian.AppendUint64(k, epoch)
	return append(k, root[:]...)
}

func rootKey(root epochdb.Bytes32) []byte {
	k := make([]byte, 0, 2+32)
	k = append(k, journalSpace, rootKeyPrefix)
	return append(k, root[:]...)
}

// Batch collects nodes and the journal record of one commit, and writes them atomically.
type Batch struct {
	db       *DB
	bulk     kv.Bulk
	inserted []epochdb.Bytes32
	blobs    [][]byte
	rec      *Record
	// indexRoot is set if the root index moves to rec.
	indexRoot bool
}

// NewBatch creates a batch.
func (db *DB) NewBatch() *Batch {
	return &Batch{
		db:   db,
		bulk: db.engine.Bulk(),
	}
}

// PutNode puts the encoded node into the batch.
func (b *Batch) PutNode(hash epochdb.Bytes32, blob []byte) error {
	key := make([]byte, 0, 33)
	key = append(append(key, nodeSpace), hash[:]...)
	if err := b.bulk.Put(key, blob); err != nil {
		return err
	}
	b.inserted = append(b.inserted, hash)
	b.blobs = append(b.blobs, bytes.Clone(blob))
	return nil
}

// JournalUnder journals the nodes put so far as the delta of rec.Epoch,
// keyed to the parent epoch recorded in rec.
//
// If a record of the same epoch and root exists, reached through another parent,
// the inserted nodes are merged into it and its parent link is kept. The root index
// only moves up, so it always points to the highest epoch of the root.
func (b *Batch) JournalUnder(rec Record) error {
	if rec.Epoch != rec.ParentEpoch+1 {
		return errors.Errorf("journal epoch %v under non-parent epoch %v", rec.Epoch, rec.ParentEpoch)
	}
	rec.Inserted = b.inserted

	existing, err := b.db.GetRecord(rec.Epoch, rec.Root)
	if err != nil {
		return err
	}
	if existing != nil {
		rec.ParentEpoch, rec.ParentRoot = existing.ParentEpoch, existing.ParentRoot
		rec.Inserted = mergeHashes(existing.Inserted, rec.Inserted)
	}
	data, err := rec.encode()
	if err != nil {
		return err
	}
	if err := b.bulk.Put(recordKey(rec.Epoch, rec.Root), data); err != nil {
		return err
	}

	epoch, found, err := b.db.LookupEpoch(rec.Root)
	if err != nil {
		return err
	}
	b.indexRoot = !found || epoch < rec.Epoch
	if b.indexRoot {
		if err := b.bulk.Put(rootKey(rec.Root), binary.BigEndian.AppendUint64(nil, rec.Epoch)); err != nil {
			return err
		}
	}
	b.rec = &rec
	return nil
}

// mergeHashes appends hashes in b missing from a.
func mergeHashes(a, b []epochdb.Bytes32) []epochdb.Bytes32 {
	seen := make(map[epochdb.Bytes32]struct{}, len(a))
	for _, h := range a {
		seen[h] = struct{}{}
	}
	merged := slices.Clone(a)
	for _, h := range b {
		if _, ok := seen[h]; !ok {
			seen[h] = struct{}{}
			merged = append(merged, h)
		}
	}
	return merged
}

// Write writes the batch atomically.
func (b *Batch) Write() error {
	if err := b.bulk.Write(); err != nil {
		return err
	}
	for i, h := range b.inserted {
		b.db.nodeCache.Add(h[:], b.blobs[i], true)
	}
	metricNodeWrites().AddWithLabel(int64(len(b.inserted)), map[string]string{"op": "insert"})
	if b.rec != nil {
		if b.indexRoot {
			b.db.epochs.Add(b.rec.Root, b.rec.Epoch)
		}
		metricJournalRecords().AddWithLabel(1, map[string]string{"op": "journal"})
	}
	return nil
}

// GetRecord returns the journal record of the given epoch and root.
// Nil returned without error if not found.
func (db *DB) GetRecord(epoch uint64, root epochdb.Bytes32) (*Record, error) {
	data, err := db.engine.Get(recordKey(epoch, root))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return decodeRecord(data)
}

// LookupEpoch returns the highest epoch at which the root was committed.
func (db *DB) LookupEpoch(root epochdb.Bytes32) (epoch uint64, found bool, err error) {
	v, err := db.epochs.GetOrLoad(root, func(any) (any, error) {
		data, err := db.engine.Get(rootKey(root))
		if err != nil {
			if db.IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		if len(data) != 8 {
			return nil, errors.New("invalid root index entry")
		}
		return binary.BigEndian.Uint64(data), nil
	})
	if err != nil || v == nil {
		return 0, false, err
	}
	return v.(uint64), true, nil
}

// LastEpoch returns the highest journaled epoch, 0 if nothing journaled.
func (db *DB) LastEpoch() (uint64, error) {
	it := db.engine.Iterate(kv.PrefixRange([]byte{journalSpace, recordKeyPrefix}))
	defer it.Release()

	if it.Last() {
		return binary.BigEndian.Uint64(it.Key()[2:]), nil
	}
	return 0, it.Error()
}

// IterateRecords iterates journal records with epoch in [start, limit) in ascending order.
// The iteration stops when fn returns false.
func (db *DB) IterateRecords(start, limit uint64, fn func(*Record) (bool, error)) error {
	r := kv.Range{
		Start: binary.BigEndian.AppendUint64([]byte{journalSpace, recordKeyPrefix}, start),
		Limit: binary.BigEndian.AppendUint64([]byte{journalSpace, recordKeyPrefix}, limit),
	}
	if limit == 0 {
		r.Limit = kv.PrefixRange([]byte{journalSpace, recordKeyPrefix}).Limit
	}
	it := db.engine.Iterate(r)
	defer it.Release()

	for it.Next() {
		rec, err := decodeRecord(it.Value())
		if err != nil {
			return err
		}
		cont, err := fn(rec)
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return it.Error()
}

// DiscardRecords removes the journal records together with the nodes they inserted,
// except nodes for which keep returns true. It returns the count of deleted nodes.
//
// The retained records are those left in place. When the root index points to a
// discarded record, it is moved to the highest retained record of the same root,
// or removed if there is none.
//
// Deletions are flushed in chunks. Nodes go first, so an interrupted discard
// can be safely retried.
func (db *DB) DiscardRecords(recs, retained []*Record, keep func(epochdb.Bytes32) bool) (int, error) {
	bulk := db.engine.Bulk()
	bulk.EnableAutoFlush()

	deleted := make(map[epochdb.Bytes32]struct{})
	for _, rec := range recs {
		for _, h := range rec.Inserted {
			if _, ok := deleted[h]; ok || keep(h) {
				continue
			}
			if err := bulk.Delete(append([]byte{nodeSpace}, h[:]...)); err != nil {
				return 0, err
			}
			deleted[h] = struct{}{}
		}
	}

	highest := make(map[epochdb.Bytes32]uint64) // root => highest retained epoch
	for _, rec := range retained {
		if e, ok := highest[rec.Root]; !ok || rec.Epoch > e {
			highest[rec.Root] = rec.Epoch
		}
	}
	discarded := make(map[epochdb.Bytes32]map[uint64]struct{}) // root => discarded epochs
	for _, rec := range recs {
		if err := bulk.Delete(recordKey(rec.Epoch, rec.Root)); err != nil {
			return 0, err
		}
		if discarded[rec.Root] == nil {
			discarded[rec.Root] = make(map[uint64]struct{})
		}
		discarded[rec.Root][rec.Epoch] = struct{}{}
	}
	reindexed := make(map[epochdb.Bytes32]uint64)
	for root, epochs := range discarded {
		epoch, found, err := db.LookupEpoch(root)
		if err != nil {
			return 0, err
		}
		if _, ok := epochs[epoch]; !found || !ok {
			continue
		}
		if e, ok := highest[root]; ok {
			if err := bulk.Put(rootKey(root), binary.BigEndian.AppendUint64(nil, e)); err != nil {
				return 0, err
			}
			reindexed[root] = e
		} else if err := bulk.Delete(rootKey(root)); err != nil {
			return 0, err
		}
		db.epochs.Remove(root)
	}
	if err := bulk.Write(); err != nil {
		return 0, err
	}
	for root, e := range reindexed {
		db.epochs.Add(root, e)
	}
	metricNodeWrites().AddWithLabel(int64(len(deleted)), map[string]string{"op": "discard"})
	metricJournalRecords().AddWithLabel(int64(len(recs)), map[string]string{"op": "discard"})
	return len(deleted), nil
}
