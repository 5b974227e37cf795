// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package epochdb

// Constants of the state store.
const (
	GenesisEpoch uint64 = 0

	// DefaultSnapshotEpochCount is the interval of epochs between two snapshot infos.
	DefaultSnapshotEpochCount uint64 = 2000
	// DefaultEraEpochCount is the default retention window used by the command line tools.
	DefaultEraEpochCount uint64 = 50000

	// DefaultAccumulatorShards is the default count of leaves of the accumulator.
	DefaultAccumulatorShards = 64
	// DefaultAccumulatorBranching is the default branching factor of the accumulator reduction tree.
	DefaultAccumulatorBranching = 4
)
