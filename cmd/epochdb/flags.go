// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"time"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/epochdb/journaldb"
	"github.com/vechain/epochdb/state"
)

var (
	dataDirFlag = cli.StringFlag{
		Name:  "data-dir",
		Value: defaultDataDir(),
		Usage: "directory for the state database",
	}
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "path to a YAML file overriding the state config",
	}
	dbEngineFlag = cli.StringFlag{
		Name:  "db-engine",
		Value: journaldb.LevelDB,
		Usage: "kv engine of the database (leveldb|pebble)",
	}
	stateEngineFlag = cli.StringFlag{
		Name:  "state-engine",
		Usage: "authenticated structure of the state (trie|accumulator), overrides the config file",
	}
	cacheFlag = cli.IntFlag{
		Name:  "cache",
		Value: 256,
		Usage: "megabytes of ram allocated to the node cache",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Value: 3,
		Usage: "log verbosity (0-5)",
	}
	jsonLogsFlag = cli.BoolFlag{
		Name:  "json-logs",
		Usage: "output logs in JSON format",
	}
	enableMetricsFlag = cli.BoolFlag{
		Name:  "enable-metrics",
		Usage: "enables metrics collection",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics-addr",
		Value: "localhost:2112",
		Usage: "metrics service listening address",
	}

	epochFlag = cli.Int64Flag{
		Name:  "epoch",
		Value: -1,
		Usage: "epoch of the state to read, the latest if negative",
	}
	allVersionsFlag = cli.BoolFlag{
		Name:  "all-versions",
		Usage: "list the value hash of every retained version",
	}
	rootFlag = cli.StringFlag{
		Name:  "root",
		Usage: "state root to verify against, the root of --epoch if empty",
	}
	prefixFlag = cli.StringFlag{
		Name:  "prefix",
		Usage: "key prefix to walk",
	}

	stableFlag = cli.Uint64Flag{
		Name:  "stable",
		Usage: "stable checkpoint height, the latest epoch if zero",
	}
	confirmedFlag = cli.Uint64Flag{
		Name:  "confirmed",
		Usage: "confirmed height, the latest epoch if zero",
	}
	eraFlag = cli.Uint64Flag{
		Name:  "era",
		Value: state.DefaultConfig().SnapshotEpochCount,
		Usage: "count of epochs kept below the confirmed height",
	}
	followFlag = cli.BoolFlag{
		Name:  "follow",
		Usage: "keep pruning as new epochs are committed, until interrupted",
	}
	intervalFlag = cli.DurationFlag{
		Name:  "interval",
		Value: 10 * time.Second,
		Usage: "interval between sweeps with --follow",
	}
)

// dbFlags are accepted by every command opening the database.
var dbFlags = []cli.Flag{
	dataDirFlag,
	configFlag,
	dbEngineFlag,
	stateEngineFlag,
	cacheFlag,
	verbosityFlag,
	jsonLogsFlag,
}
