package cache

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"power-observer/src/helpers"
	"power-observer/src/logger"
	"power-observer/src/models"
)

// KeySeparator joins the key parts. Node ids must not contain it, which keeps
// per-node prefix clearing unambiguous ("C-1|" never matches "C-10|").
const KeySeparator = "|"

// DefaultTTL is applied when Set is called with a non-positive ttl.
const DefaultTTL = 3600 * time.Second

// -----------------------------------------------------------------------------

type entry struct {
	node     string
	readings []models.MReading
	expires  time.Time
}

// TimeWindowCache maps (node, year, month, day) to that day's decoded readings.
// Expiry is lazy: the Get that finds an expired entry deletes it.
type TimeWindowCache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time

	// heap budget in MB; 0 disables the check
	maxMemoryMB int
	heapMB      func() float64

	hits   atomic.Int64
	misses atomic.Int64

	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

// NewTimeWindowCache creates a cache. maxMemoryMB of 0 disables the memory guard.
func NewTimeWindowCache(ttl time.Duration, maxMemoryMB int, log *logger.Logger) *TimeWindowCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TimeWindowCache{
		entries:     make(map[string]entry),
		ttl:         ttl,
		now:         time.Now,
		maxMemoryMB: maxMemoryMB,
		heapMB:      helpers.ProcessHeapMB,
		Logger:      log,
	}
}

// -----------------------------------------------------------------------------

// WithClock replaces the time source (tests).
func (c *TimeWindowCache) WithClock(now func() time.Time) *TimeWindowCache {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

// -----------------------------------------------------------------------------

// Key builds the cache key for one node-day.
func Key(node string, year, month, day int) string {
	return fmt.Sprintf("%s%s%04d%s%02d%s%02d", node, KeySeparator, year, KeySeparator, month, KeySeparator, day)
}

// -----------------------------------------------------------------------------

// Get returns a private copy of the cached readings.
func (c *TimeWindowCache) Get(node string, year, month, day int) ([]models.MReading, bool) {
	key := Key(node, year, month, day)

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && c.now().After(e.expires) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return models.CloneReadings(e.readings), true
}

// -----------------------------------------------------------------------------

// Set stores a copy of readings for the node-day, replacing any previous entry.
// It refuses (CacheError) when the node id contains the separator or the
// process heap is above budget; callers then proceed uncached.
func (c *TimeWindowCache) Set(node string, year, month, day int, readings []models.MReading, ttl time.Duration) error {
	if node == "" || strings.Contains(node, KeySeparator) {
		return helpers.NewCacheError(fmt.Sprintf("invalid node id %q for cache key", node), nil)
	}
	if c.maxMemoryMB > 0 {
		if used := c.heapMB(); used > float64(c.maxMemoryMB) {
			return helpers.NewCacheError(fmt.Sprintf("heap %.1fMB above cache budget %dMB", used, c.maxMemoryMB), nil)
		}
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	stored := models.CloneReadings(readings)
	if stored == nil {
		stored = []models.MReading{}
	}

	c.mu.Lock()
	c.entries[Key(node, year, month, day)] = entry{
		node:     node,
		readings: stored,
		expires:  c.now().Add(ttl),
	}
	c.mu.Unlock()
	return nil
}

// -----------------------------------------------------------------------------

// Clear removes every entry for node, or all entries when node is empty.
// Returns the number of entries removed.
func (c *TimeWindowCache) Clear(node string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node == "" {
		n := len(c.entries)
		c.entries = make(map[string]entry)
		if c.Logger != nil {
			c.Logger.Info("Cleared entire cache (%d entries)", n)
		}
		return n
	}

	prefix := node + KeySeparator
	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	if c.Logger != nil {
		c.Logger.Info("Cleared %d cache entries for node %s", removed, node)
	}
	return removed
}

// -----------------------------------------------------------------------------

// ClearDay removes a single node-day. Returns true if an entry existed.
func (c *TimeWindowCache) ClearDay(node string, year, month, day int) bool {
	key := Key(node, year, month, day)

	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// -----------------------------------------------------------------------------

// Stats reports the cache content. Expired-but-unread entries are counted
// until a Get discovers them, matching lazy expiry.
func (c *TimeWindowCache) Stats() models.MCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	byNode := make(map[string]int)
	remaining := 0.0
	active := 0

	for _, e := range c.entries {
		byNode[e.node]++
		if left := e.expires.Sub(now).Seconds(); left > 0 {
			remaining += left
			active++
		}
	}

	avg := 0
	if active > 0 {
		avg = int(remaining / float64(active))
	}

	return models.MCacheStats{
		TotalItems:          len(c.entries),
		TotalNodes:          len(byNode),
		ItemsByNode:         byNode,
		AvgSecondsRemaining: avg,
		Hits:                c.hits.Load(),
		Misses:              c.misses.Load(),
	}
}

// -----------------------------------------------------------------------------

// ListCachedNodes returns the distinct nodes present in the cache, sorted.
func (c *TimeWindowCache) ListCachedNodes() []string {
	c.mu.Lock()
	seen := make(map[string]struct{})
	for _, e := range c.entries {
		seen[e.node] = struct{}{}
	}
	c.mu.Unlock()

	nodes := make([]string, 0, len(seen))
	for n := range seen {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	return nodes
}
