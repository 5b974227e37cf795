// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package journaldb

import (
	"io"

	"github.com/vechain/epochdb/kv"
)

// engine defines the interface of K-V engine.
type engine interface {
	kv.Store
	io.Closer
}

const idealBatchSize = 128 * 1024
