// Package llmcache memoizes language-model replies keyed on the exact input
// text and model name.
//
// The in-memory tier is a bounded LRU. Concurrent misses for one key share a
// single load; each waiter still honours its own context. Only successful
// replies are stored, so a failed or cancelled load leaves no entry behind.
// An optional persistent Store sits behind the LRU and survives restarts.
package llmcache

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fyrsmithlabs/pacer/internal/logging"
)

// DefaultCapacity is the number of replies kept in memory.
const DefaultCapacity = 100

// Key identifies a cached reply.
type Key struct {
	Text  string
	Model string
}

func (k Key) flightKey() string {
	return k.Model + "\x00" + k.Text
}

// Loader produces the reply for a key on a cache miss.
type Loader func(ctx context.Context) (string, error)

// Store is a persistent tier consulted after the in-memory LRU.
type Store interface {
	Get(ctx context.Context, key Key) (string, bool, error)
	Put(ctx context.Context, key Key, reply string) error
	Clear(ctx context.Context) (int, error)
	Close() error
}

// Options configures a Cache.
type Options struct {
	Capacity int
	Store    Store
	Logger   *logging.Logger
	Metrics  *Metrics
}

// Stats is a point-in-time snapshot of cache activity.
type Stats struct {
	Len       int   `json:"len"`
	Capacity  int   `json:"capacity"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Loads     int64 `json:"loads"`
	Evictions int64 `json:"evictions"`
}

// Cache is a bounded LRU of model replies with single-flight loading.
type Cache struct {
	lru      *lru.Cache[Key, string]
	capacity int
	group    singleflight.Group
	store    Store
	logger   *logging.Logger
	metrics  *Metrics

	hits      atomic.Int64
	misses    atomic.Int64
	loads     atomic.Int64
	evictions atomic.Int64
}

// New creates a Cache. A zero capacity means DefaultCapacity.
func New(opts Options) (*Cache, error) {
	capacity := opts.Capacity
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if capacity < 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	c := &Cache{
		capacity: capacity,
		store:    opts.Store,
		logger:   logger.Named("llmcache"),
		metrics:  opts.Metrics,
	}

	l, err := lru.New[Key, string](capacity)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	c.lru = l

	return c, nil
}

// Get returns the in-memory reply for key without loading.
func (c *Cache) Get(key Key) (string, bool) {
	return c.lru.Get(key)
}

// GetOrLoad returns the cached reply for key, calling load on a miss.
//
// Concurrent callers missing on the same key wait for one shared load. The
// load runs detached from any single caller's cancellation; a caller whose
// ctx ends stops waiting and gets ctx.Err().
func (c *Cache) GetOrLoad(ctx context.Context, key Key, load Loader) (string, error) {
	if reply, ok := c.lru.Get(key); ok {
		c.recordHit()
		return reply, nil
	}

	ch := c.group.DoChan(key.flightKey(), func() (interface{}, error) {
		// A concurrent flight may have filled the entry between our miss and
		// this flight starting.
		if reply, ok := c.lru.Get(key); ok {
			return reply, nil
		}
		return c.fill(context.WithoutCancel(ctx), key, load)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Cache) fill(ctx context.Context, key Key, load Loader) (string, error) {
	if c.store != nil {
		reply, ok, err := c.store.Get(ctx, key)
		if err != nil {
			c.logger.Warn(ctx, "persistent cache read failed", zap.Error(err))
		} else if ok {
			c.recordHit()
			c.add(key, reply)
			return reply, nil
		}
	}

	c.recordMiss()
	c.loads.Add(1)

	reply, err := load(ctx)
	if err != nil {
		return "", err
	}

	c.add(key, reply)
	if c.store != nil {
		if err := c.store.Put(ctx, key, reply); err != nil {
			c.logger.Warn(ctx, "persistent cache write failed", zap.Error(err))
		}
	}
	return reply, nil
}

func (c *Cache) add(key Key, reply string) {
	evicted := c.lru.Add(key, reply)
	if evicted {
		c.evictions.Add(1)
	}
	if c.metrics != nil {
		if evicted {
			c.metrics.Evictions.Inc()
		}
		c.metrics.Size.Set(float64(c.lru.Len()))
	}
}

func (c *Cache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.Hits.Inc()
	}
}

func (c *Cache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.Misses.Inc()
	}
}

// Clear removes every entry from both tiers and returns how many in-memory
// entries were dropped.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	n := c.lru.Len()
	c.lru.Purge()
	if c.metrics != nil {
		c.metrics.Clears.Inc()
		c.metrics.Size.Set(0)
	}

	var storeErr error
	persisted := 0
	if c.store != nil {
		persisted, storeErr = c.store.Clear(ctx)
	}

	c.logger.Info(ctx, "llm reply cache cleared",
		zap.Int("entries", n),
		zap.Int("persisted_entries", persisted),
	)

	if storeErr != nil {
		return n, fmt.Errorf("clear persistent cache: %w", storeErr)
	}
	return n, nil
}

// Len returns the number of in-memory entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Len:       c.lru.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Loads:     c.loads.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Close releases the persistent tier.
func (c *Cache) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}
