package traverse

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// cachedArchive holds a fully-buffered zip archive's bytes, keyed by
// nodePath in e.archiveCache.
type cachedArchive struct {
	data []byte
}

// newArchiveCache builds the TTL/capacity-bounded cache bufferZip
// consults. Eviction just drops the buffer; there is no ref-counted
// handle to release, unlike a live file descriptor.
func newArchiveCache(e *Engine, capacity uint64, ttl time.Duration) *ttlcache.Cache[string, *cachedArchive] {
	c := ttlcache.New(
		ttlcache.WithTTL[string, *cachedArchive](ttl),
		ttlcache.WithCapacity[string, *cachedArchive](capacity),
	)

	c.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, _ *ttlcache.Item[string, *cachedArchive]) {
		e.Metrics.TotalClosed.Add(1)
	})

	go c.Start()

	return c
}
