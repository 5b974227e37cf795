// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"time"

	"github.com/vechain/epochdb/metrics"
)

var (
	metricOpDuration  = metrics.LazyLoadHistogramVec("state_op_duration_us", []string{"op", "engine"}, metrics.BucketOpMicros)
	metricPrunedCount = metrics.LazyLoadCounterVec("state_pruned_count", []string{"type"})
	metricLatestEpoch = metrics.LazyLoadGauge("state_latest_epoch")
)

// observe records the duration of a state operation since start.
func observe(op, engine string, start time.Time) {
	metricOpDuration().ObserveWithLabels(time.Since(start).Microseconds(), map[string]string{"op": op, "engine": engine})
}
