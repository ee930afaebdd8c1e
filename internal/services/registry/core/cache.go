package core

import (
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/louisbranch/recordkeep/internal/services/registry/domain"
)

const snapshotCleanupInterval = 5 * time.Minute

// snapshotCache holds committed record snapshots. A nil cache never hits.
type snapshotCache struct {
	cache *gocache.Cache
}

func newSnapshotCache(ttl time.Duration) *snapshotCache {
	if ttl <= 0 {
		return nil
	}
	return &snapshotCache{cache: gocache.New(ttl, snapshotCleanupInterval)}
}

func (c *snapshotCache) get(key uint64) (domain.Record, bool) {
	if c == nil {
		return domain.Record{}, false
	}
	value, found := c.cache.Get(cacheKey(key))
	if !found {
		return domain.Record{}, false
	}
	record, ok := value.(domain.Record)
	if !ok {
		return domain.Record{}, false
	}
	return record.Clone(), true
}

func (c *snapshotCache) put(record domain.Record) {
	if c == nil {
		return
	}
	c.cache.SetDefault(cacheKey(record.Key), record.Clone())
}

func (c *snapshotCache) flush() {
	if c == nil {
		return
	}
	c.cache.Flush()
}

func cacheKey(key uint64) string {
	return strconv.FormatUint(key, 10)
}
