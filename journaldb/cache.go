// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package journaldb

import (
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/qianbin/directcache"
)

// nodeCache caches encoded node blobs by hash.
// Nodes are content addressed, so a cached blob never goes stale.
type nodeCache struct {
	queriedNodes   *directcache.Cache // caches recently queried node blobs.
	committedNodes *directcache.Cache // caches newly committed node blobs.

	stats       cacheStats
	lastLogTime atomic.Int64
}

// newNodeCache creates a cache object with the given cache size.
// It returns nil if size is not positive.
func newNodeCache(sizeMB int) *nodeCache {
	if sizeMB <= 0 {
		return nil
	}
	sizeBytes := sizeMB * 1024 * 1024
	c := &nodeCache{
		queriedNodes:   directcache.New(sizeBytes / 4),
		committedNodes: directcache.New(sizeBytes - sizeBytes/4),
	}
	c.lastLogTime.Store(time.Now().UnixNano())
	return c
}

func (c *nodeCache) log() {
	now := time.Now().UnixNano()
	last := c.lastLogTime.Swap(now)

	if now-last > int64(time.Second*20) {
		changed, hit, miss := c.stats.Stats()
		if changed {
			logStats("node cache stats", hit, miss)
		}
		// metrics will reported every 20 seconds
		metricCacheHitMiss().SetWithLabel(hit, map[string]string{"event": "hit"})
		metricCacheHitMiss().SetWithLabel(miss, map[string]string{"event": "miss"})
	} else {
		c.lastLogTime.CompareAndSwap(now, last)
	}
}

// Add adds the node blob into the cache.
func (c *nodeCache) Add(hash, blob []byte, isCommitting bool) {
	if c == nil {
		return
	}
	if isCommitting {
		_ = c.committedNodes.Set(hash, blob)
	} else {
		_ = c.queriedNodes.Set(hash, blob)
	}
}

// Get returns the cached node blob.
func (c *nodeCache) Get(hash []byte) []byte {
	if c == nil {
		return nil
	}
	var blob []byte
	if c.committedNodes.AdvGet(hash, func(val []byte) {
		blob = slices.Clone(val)
	}, false) && len(blob) > 0 {
		c.hit()
		return blob
	}
	if c.queriedNodes.AdvGet(hash, func(val []byte) {
		blob = slices.Clone(val)
	}, false) && len(blob) > 0 {
		c.hit()
		return blob
	}
	c.stats.Miss()
	return nil
}

func (c *nodeCache) hit() {
	if c.stats.Hit()%2000 == 0 {
		c.log()
	}
}

type cacheStats struct {
	hit, miss atomic.Int64
	flag      atomic.Int32
}

func (cs *cacheStats) Hit() int64  { return cs.hit.Add(1) }
func (cs *cacheStats) Miss() int64 { return cs.miss.Add(1) }

// Stats returns the hit/miss counts and whether the hit rate changed since last call.
func (cs *cacheStats) Stats() (bool, int64, int64) {
	hit := cs.hit.Load()
	miss := cs.miss.Load()
	lookups := hit + miss

	hitRate := float64(0)
	if lookups > 0 {
		hitRate = float64(hit) / float64(lookups)
	}
	flag := int32(hitRate * 1000)

	return cs.flag.Swap(flag) != flag, hit, miss
}

func logStats(msg string, hit, miss int64) {
	lookups := hit + miss
	var str string
	if lookups > 0 {
		str = fmt.Sprintf("%.3f", float64(hit)/float64(lookups))
	} else {
		str = "n/a"
	}

	logger.Info(msg,
		"lookups", lookups,
		"hitrate", str,
	)
}
