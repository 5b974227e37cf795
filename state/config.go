// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/vechain/epochdb/kv"
)

// Engine kinds.
const (
	EngineTrie        = "trie"
	EngineAccumulator = "accumulator"
)

const propsStoreName = "state.props"

var propsKey = []byte("config")

// Config configures the state manager.
type Config struct {
	// Engine is the authenticated structure, EngineTrie or EngineAccumulator.
	Engine string `yaml:"engine" json:"engine"`
	// SnapshotEpochCount is the interval of epochs at which snapshot info is written.
	SnapshotEpochCount uint64 `yaml:"snapshot-epoch-count" json:"snapshotEpochCount"`
	// AccumulatorShards is the count of shards of the accumulator.
	AccumulatorShards int `yaml:"accumulator-shards" json:"accumulatorShards"`
	// AccumulatorBranching is the branching factor of the accumulator's reduction tree.
	AccumulatorBranching int `yaml:"accumulator-branching" json:"accumulatorBranching"`
}

// DefaultConfig returns the default config.
func DefaultConfig() Config {
	return Config{
		Engine:               EngineTrie,
		SnapshotEpochCount:   2000,
		AccumulatorShards:    256,
		AccumulatorBranching: 4,
	}
}

func (c *Config) validate() error {
	switch c.Engine {
	case EngineTrie, EngineAccumulator:
	default:
		return errors.Errorf("unknown engine %q", c.Engine)
	}
	if c.SnapshotEpochCount == 0 {
		return errors.New("snapshot epoch count must be positive")
	}
	if c.Engine == EngineAccumulator {
		if c.AccumulatorShards <= 0 || c.AccumulatorShards > 1<<16 {
			return errors.Errorf("invalid accumulator shards %d", c.AccumulatorShards)
		}
		if c.AccumulatorBranching < 2 {
			return errors.Errorf("invalid accumulator branching %d", c.AccumulatorBranching)
		}
	}
	return nil
}

// props are the persisted settings that must stay the same across restarts.
type props struct {
	Engine               string `json:"engine"`
	AccumulatorShards    int    `json:"accumulatorShards,omitempty"`
	AccumulatorBranching int    `json:"accumulatorBranching,omitempty"`
}

func (c *Config) props() props {
	p := props{Engine: c.Engine}
	if c.Engine == EngineAccumulator {
		p.AccumulatorShards = c.AccumulatorShards
		p.AccumulatorBranching = c.AccumulatorBranching
	}
	return p
}

// loadOrSaveProps saves the props of the config on first open, or checks
// the config against the saved ones.
func loadOrSaveProps(store kv.Store, cfg *Config) error {
	want := cfg.props()
	data, err := store.Get(propsKey)
	if err != nil {
		if !store.IsNotFound(err) {
			return err
		}
		enc, err := json.Marshal(&want)
		if err != nil {
			return err
		}
		return store.Put(propsKey, enc)
	}
	var saved props
	if err := json.Unmarshal(data, &saved); err != nil {
		return errors.Wrap(err, "decode props")
	}
	if saved != want {
		return errors.Errorf("config %+v mismatches the saved %+v", want, saved)
	}
	return nil
}
