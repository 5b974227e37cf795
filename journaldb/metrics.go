// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package journaldb

import "github.com/vechain/epochdb/metrics"

var (
	metricCacheHitMiss   = metrics.LazyLoadGaugeVec("node_cache_hit_miss_count", []string{"event"})
	metricJournalRecords = metrics.LazyLoadCounterVec("journal_record_count", []string{"op"})
	metricNodeWrites     = metrics.LazyLoadCounterVec("node_write_count", []string{"op"})
)
