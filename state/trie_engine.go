// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"bytes"

	"github.com/vechain/epochdb/epochdb"
	"github.com/vechain/epochdb/journaldb"
	"github.com/vechain/epochdb/trie"
)

// indexFlag is the value of keys in the prefix index trie.
var indexFlag = []byte{1}

// trieBackend keeps states as merkle patricia tries over the journaling database.
// The main trie is keyed by the hashed storage key, and the index trie by the raw
// storage key to serve prefix queries. Any committed root may be a parent.
type trieBackend struct {
	db *journaldb.DB
}

func (b *trieBackend) kind() string { return EngineTrie }

func (b *trieBackend) emptyRoot() StateRootWithAuxInfo {
	return StateRootWithAuxInfo{
		StateRoot: trie.EmptyRoot(),
		AuxInfo:   AuxInfo{IndexRoot: trie.EmptyRoot()},
	}
}

func (b *trieBackend) locate(root epochdb.Bytes32, epoch *uint64) (StateRootWithAuxInfo, bool, error) {
	var e uint64
	if epoch != nil {
		e = *epoch
	} else {
		var (
			found bool
			err   error
		)
		if e, found, err = b.db.LookupEpoch(root); err != nil {
			return StateRootWithAuxInfo{}, false, err
		}
		if !found {
			if root == trie.EmptyRoot() {
				return b.emptyRoot(), true, nil
			}
			return StateRootWithAuxInfo{}, false, nil
		}
	}
	if e == 0 {
		if root == trie.EmptyRoot() {
			return b.emptyRoot(), true, nil
		}
		return StateRootWithAuxInfo{}, false, nil
	}

	rec, err := b.db.GetRecord(e, root)
	if err != nil || rec == nil {
		return StateRootWithAuxInfo{}, false, err
	}
	return StateRootWithAuxInfo{rec.Root, AuxInfo{rec.IndexRoot, rec.Epoch}}, true, nil
}

func (b *trieBackend) latest() (StateRootWithAuxInfo, error) {
	last, err := b.db.LastEpoch()
	if err != nil {
		return StateRootWithAuxInfo{}, err
	}
	if last == 0 {
		return b.emptyRoot(), nil
	}
	var root StateRootWithAuxInfo
	if err := b.db.IterateRecords(last, last+1, func(rec *journaldb.Record) (bool, error) {
		root = StateRootWithAuxInfo{rec.Root, AuxInfo{rec.IndexRoot, rec.Epoch}}
		return false, nil
	}); err != nil {
		return StateRootWithAuxInfo{}, err
	}
	return root, nil
}

func (b *trieBackend) canDerive(uint64) error { return nil }

func (b *trieBackend) open(root StateRootWithAuxInfo) engine {
	return &trieEngine{
		backend: b,
		root:    root,
		main:    trie.New(root.StateRoot, b.db),
		index:   trie.New(root.AuxInfo.IndexRoot, b.db),
	}
}

// prune discards journal records of epochs below the boundary. Nodes they inserted
// are deleted unless reachable from a retained root.
func (b *trieBackend) prune(boundary uint64) (int, error) {
	var discarded, retained []*journaldb.Record
	if err := b.db.IterateRecords(0, 0, func(rec *journaldb.Record) (bool, error) {
		if rec.Epoch < boundary {
			discarded = append(discarded, rec)
		} else {
			retained = append(retained, rec)
		}
		return true, nil
	}); err != nil {
		return 0, err
	}
	if len(discarded) == 0 {
		return 0, nil
	}

	marked := make(map[epochdb.Bytes32]struct{})
	visit := func(h epochdb.Bytes32) bool {
		if _, ok := marked[h]; ok {
			return false
		}
		marked[h] = struct{}{}
		return true
	}
	for _, rec := range retained {
		if err := trie.New(rec.Root, b.db).WalkNodes(visit); err != nil {
			return 0, err
		}
		if err := trie.New(rec.IndexRoot, b.db).WalkNodes(visit); err != nil {
			return 0, err
		}
	}
	logger.Debug("marked retained nodes", "records", len(retained), "nodes", len(marked))

	n, err := b.db.DiscardRecords(discarded, retained, func(h epochdb.Bytes32) bool {
		_, ok := marked[h]
		return ok
	})
	if err != nil {
		return 0, err
	}
	metricPrunedCount().AddWithLabel(int64(len(discarded)), map[string]string{"type": "record"})
	metricPrunedCount().AddWithLabel(int64(n), map[string]string{"type": "node"})
	return n + len(discarded), nil
}

type trieEngine struct {
	backend *trieBackend
	root    StateRootWithAuxInfo
	main    *trie.Trie
	index   *trie.Trie
}

func (e *trieEngine) Get(key []byte) ([]byte, error) {
	return e.main.Get(epochdb.TrieKey(key).Bytes())
}

func (e *trieEngine) KeysWithPrefix(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	if err := e.index.Walk(prefix, func(key, _ []byte) (bool, error) {
		keys = append(keys, bytes.Clone(key))
		return true, nil
	}); err != nil {
		return nil, err
	}
	return keys, nil
}

func (e *trieEngine) Prove(key []byte) (*Proof, error) {
	nodes, err := e.main.Prove(epochdb.TrieKey(key).Bytes())
	if err != nil {
		return nil, err
	}
	return &Proof{Engine: EngineTrie, Nodes: nodes}, nil
}

// Versions follows the journal parent links until the history is exhausted or pruned.
func (e *trieEngine) Versions(key []byte) ([]version, error) {
	var (
		hashed   = epochdb.TrieKey(key).Bytes()
		versions []version
		cur      = e.root
	)
	for {
		val, err := trie.New(cur.StateRoot, e.backend.db).Get(hashed)
		if err != nil {
			return nil, err
		}
		versions = append(versions, version{cur, val})
		if cur.AuxInfo.Epoch == 0 {
			return versions, nil
		}
		rec, err := e.backend.db.GetRecord(cur.AuxInfo.Epoch, cur.StateRoot)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return versions, nil
		}
		parent, found, err := e.backend.locate(rec.ParentRoot, &rec.ParentEpoch)
		if err != nil {
			return nil, err
		}
		if !found {
			return versions, nil
		}
		cur = parent
	}
}

func (e *trieEngine) Stage(epoch uint64, changes []KeyValue) (stage, error) {
	main := trie.New(e.root.StateRoot, e.backend.db)
	index := trie.New(e.root.AuxInfo.IndexRoot, e.backend.db)
	for _, kv := range changes {
		if err := main.Update(epochdb.TrieKey(kv.Key).Bytes(), kv.Value); err != nil {
			return nil, err
		}
		var flag []byte
		if len(kv.Value) > 0 {
			flag = indexFlag
		}
		if err := index.Update(kv.Key, flag); err != nil {
			return nil, err
		}
	}
	return &trieStage{
		db:     e.backend.db,
		parent: e.root,
		main:   main,
		index:  index,
		root: StateRootWithAuxInfo{
			StateRoot: main.Hash(),
			AuxInfo:   AuxInfo{IndexRoot: index.Hash(), Epoch: epoch},
		},
	}, nil
}

type trieStage struct {
	db     *journaldb.DB
	parent StateRootWithAuxInfo
	main   *trie.Trie
	index  *trie.Trie
	root   StateRootWithAuxInfo
}

func (s *trieStage) Root() StateRootWithAuxInfo { return s.root }

// Commit writes nodes of both tries with the journal record in one batch.
func (s *trieStage) Commit() error {
	batch := s.db.NewBatch()
	if _, err := s.main.Commit(batch); err != nil {
		return err
	}
	if _, err := s.index.Commit(batch); err != nil {
		return err
	}
	if err := batch.JournalUnder(journaldb.Record{
		Epoch:       s.root.AuxInfo.Epoch,
		ParentEpoch: s.parent.AuxInfo.Epoch,
		ParentRoot:  s.parent.StateRoot,
		Root:        s.root.StateRoot,
		IndexRoot:   s.root.AuxInfo.IndexRoot,
	}); err != nil {
		return err
	}
	return batch.Write()
}
