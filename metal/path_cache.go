package metal

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

type pathCacheEntry struct {
	key      string
	firstDot int
}

// pathCache remembers the first dot index of recently seen keys. Once full it
// is cleared wholesale, same as the bounded cache it replaces.
type pathCache struct {
	limit    int
	entries  map[uint64]pathCacheEntry
	counters *Counters
}

func newPathCache(limit int, counters *Counters) *pathCache {
	if limit <= 0 {
		limit = 1000
	}
	return &pathCache{
		limit:    limit,
		entries:  make(map[uint64]pathCacheEntry, limit),
		counters: counters,
	}
}

func (c *pathCache) firstDot(key string) int {
	h := xxhash.Sum64String(key)
	if e, ok := c.entries[h]; ok && e.key == key {
		if c.counters != nil {
			c.counters.PathCacheHits++
		}
		return e.firstDot
	}
	if c.counters != nil {
		c.counters.PathCacheMisses++
	}

	if len(c.entries) >= c.limit {
		clear(c.entries)
	}
	idx := strings.IndexByte(key, '.')
	c.entries[h] = pathCacheEntry{key: key, firstDot: idx}
	return idx
}

func (c *pathCache) isPath(key string) bool {
	return c.firstDot(key) != -1
}

// IsPath reports whether key has more than one segment.
func (rt *Runtime) IsPath(key string) bool {
	return rt.paths.isPath(key)
}

// splitFirst returns the first segment of path and everything after the
// first dot.
func splitFirst(path string) (key, tail string) {
	key, tail, _ = strings.Cut(path, ".")
	return key, tail
}
