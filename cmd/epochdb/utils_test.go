// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/epochdb/state"
)

func newTestContext(t *testing.T, args ...string) *cli.Context {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range dbFlags {
		f.Apply(set)
	}
	require.NoError(t, set.Parse(args))
	return cli.NewContext(nil, set, nil)
}

func TestParseBytes(t *testing.T) {
	b, err := parseBytes("abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), b)

	b, err = parseBytes("0x0102")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, b)

	_, err = parseBytes("0xzz")
	assert.Error(t, err)

	b, err = parseBytes("")
	require.NoError(t, err)
	assert.Empty(t, b)
}

func TestParsePair(t *testing.T) {
	key, value, err := parsePair("k=v")
	require.NoError(t, err)
	assert.Equal(t, []byte("k"), key)
	assert.Equal(t, []byte("v"), value)

	key, value, err = parsePair("0x01=")
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, key)
	assert.Empty(t, value)

	key, value, err = parsePair("k=a=b")
	require.NoError(t, err)
	assert.Equal(t, []byte("k"), key)
	assert.Equal(t, []byte("a=b"), value)

	for _, arg := range []string{"k", "=v", "0xz=v"} {
		_, _, err := parsePair(arg)
		assert.Error(t, err, arg)
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig(newTestContext(t))
	require.NoError(t, err)
	assert.Equal(t, state.DefaultConfig(), cfg)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: accumulator\nsnapshot-epoch-count: 10\naccumulator-shards: 16\n"), 0o600))

	cfg, err = loadConfig(newTestContext(t, "--config", path))
	require.NoError(t, err)
	assert.Equal(t, state.Config{
		Engine:               state.EngineAccumulator,
		SnapshotEpochCount:   10,
		AccumulatorShards:    16,
		AccumulatorBranching: state.DefaultConfig().AccumulatorBranching,
	}, cfg)

	cfg, err = loadConfig(newTestContext(t, "--config", path, "--state-engine", state.EngineTrie))
	require.NoError(t, err)
	assert.Equal(t, state.EngineTrie, cfg.Engine)
	assert.Equal(t, uint64(10), cfg.SnapshotEpochCount)

	require.NoError(t, os.WriteFile(path, []byte("engine: [\n"), 0o600))
	_, err = loadConfig(newTestContext(t, "--config", path))
	assert.Error(t, err)

	_, err = loadConfig(newTestContext(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, err)
}
