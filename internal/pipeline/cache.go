package pipeline

import (
	"sync"

	"github.com/pspoerri/geocrs/internal/crs"
)

// pairKey identifies a pipeline by the text of its two definitions.
type pairKey struct {
	source string
	target string
}

// BuildFunc builds the pipeline for a pair missing from a Cache.
type BuildFunc func(source, target *crs.Definition) (*Pipeline, error)

// Cache keeps recently built pipelines keyed by definition pair, evicting
// the oldest entry when full. Pipelines handed out by Get stay open until
// released, even if they are evicted in the meantime.
type Cache struct {
	build BuildFunc

	mu      sync.Mutex
	cache   map[pairKey]*cacheEntry
	order   []pairKey
	maxSize int
	closed  bool
}

type cacheEntry struct {
	p       *Pipeline
	refs    int
	evicted bool
}

// NewCache creates a cache holding at most maxEntries pipelines.
func NewCache(maxEntries int, build BuildFunc) *Cache {
	if maxEntries <= 0 {
		maxEntries = 16
	}
	return &Cache{
		build:   build,
		cache:   make(map[pairKey]*cacheEntry, maxEntries),
		order:   make([]pairKey, 0, maxEntries),
		maxSize: maxEntries,
	}
}

// Get returns the pipeline for the pair, building it on a miss. The
// caller must call release when done with the pipeline and must not
// close it. Pipelines are shared, so concurrent callers of the same pair
// are serialized on it.
func (c *Cache) Get(source, target *crs.Definition) (p *Pipeline, release func(), err error) {
	if source == nil || target == nil {
		return nil, nil, ErrInvalidArgument
	}
	key := pairKey{source: source.WellKnownText, target: target.WellKnownText}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, nil, ErrClosed
	}

	entry, ok := c.cache[key]
	if !ok {
		p, err := c.build(source, target)
		if err != nil {
			return nil, nil, err
		}
		for len(c.cache) >= c.maxSize && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			c.evictLocked(oldest)
		}
		entry = &cacheEntry{p: p}
		c.cache[key] = entry
		c.order = append(c.order, key)
	}
	entry.refs++

	var once sync.Once
	return entry.p, func() { once.Do(func() { c.release(entry) }) }, nil
}

func (c *Cache) release(entry *cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry.refs--
	if entry.evicted && entry.refs == 0 {
		entry.p.Close()
	}
}

func (c *Cache) evictLocked(key pairKey) {
	entry := c.cache[key]
	delete(c.cache, key)
	entry.evicted = true
	if entry.refs == 0 {
		entry.p.Close()
	}
}

// Len returns the number of cached pipelines.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Close evicts every pipeline. Pipelines still in use are closed on their
// last release. Get fails with ErrClosed afterwards.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, key := range c.order {
		c.evictLocked(key)
	}
	c.order = nil
}
