package keys

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of local hours kept by a Cache.
const DefaultCacheSize = 256

// Cache memoises For per local wall-clock hour. The tick loop asks for the
// keys of "now" every second and the answer only changes once an hour.
type Cache struct {
	loc   *time.Location
	cache *lru.Cache[int64, Set]
}

// NewCache creates a key cache for loc holding up to size hours.
func NewCache(loc *time.Location, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[int64, Set](size)
	if err != nil {
		return nil, fmt.Errorf("create key cache: %w", err)
	}
	return &Cache{loc: location(loc), cache: cache}, nil
}

// Location returns the location keys are derived in.
func (c *Cache) Location() *time.Location {
	return c.loc
}

// For returns the bucket keys of t, computing them at most once per hour.
func (c *Cache) For(t time.Time) Set {
	local := t.In(c.loc)
	_, offset := local.Zone()
	// Index of the local wall-clock hour; unique per (date, hour) in loc.
	slot := floorDiv(local.Unix()+int64(offset), 3600)

	if set, ok := c.cache.Get(slot); ok {
		return set
	}
	set := For(local, c.loc)
	c.cache.Add(slot, set)
	return set
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
