// Package offset is the durable, monotonically advancing import offset:
// "all source rows with id < offset have been enqueued for insertion."
// Modeled as a single process-wide atomic integer with a write-through
// cache adapter, per spec.md's explicit instruction to keep this one piece
// of global mutable state rather than thread it through every call site.
package offset

import (
	"context"
	"sync/atomic"

	"github.com/skyblock-archive/auctions/internal/metrics"
	"github.com/skyblock-archive/auctions/internal/obslog"
)

// Cache is the key-value collaborator the offset is persisted to (Redis in
// production, see cmd/importer wiring).
type Cache interface {
	Get(ctx context.Context, key string) (int64, bool, error)
	Set(ctx context.Context, key string, value int64) error
}

const cacheKey = "import_offset"

// Tracker holds the process-wide offset value and debounces writes to the
// backing cache.
type Tracker struct {
	current        int64
	debounceWindow int64
	cache          Cache
	log            obslog.Logger
}

// NewTracker builds a Tracker whose Set only writes through to the cache
// once the in-memory value has moved by more than debounceWindow (spec.md
// section 4.8: "updates ... only when |n - current| > 10*batch_size").
func NewTracker(cache Cache, debounceWindow int64) *Tracker {
	return &Tracker{cache: cache, debounceWindow: debounceWindow, log: obslog.New("component", "offset")}
}

// Load hydrates the in-memory offset from the cache at startup.
func (t *Tracker) Load(ctx context.Context) error {
	v, ok, err := t.cache.Get(ctx, cacheKey)
	if err != nil {
		return err
	}
	if ok {
		atomic.StoreInt64(&t.current, v)
	}
	return nil
}

// Current returns the in-memory offset without touching the cache.
func (t *Tracker) Current() int64 {
	return atomic.LoadInt64(&t.current)
}

// Set debounces: only when the delta exceeds debounceWindow does it update
// the atomic and write through to the cache.
func (t *Tracker) Set(ctx context.Context, n int64) error {
	cur := atomic.LoadInt64(&t.current)
	delta := n - cur
	if delta < 0 {
		delta = -delta
	}
	if delta <= t.debounceWindow {
		return nil
	}

	atomic.StoreInt64(&t.current, n)
	metrics.ImportOffset.Set(float64(n))
	if err := t.cache.Set(ctx, cacheKey, n); err != nil {
		t.log.Warn("offset write-through failed, in-memory value already advanced", "offset", n, "err", err)
		return err
	}
	return nil
}

// MemCache is an in-process Cache, for tests.
type MemCache struct {
	values map[string]int64
}

func NewMemCache() *MemCache { return &MemCache{values: make(map[string]int64)} }

func (c *MemCache) Get(_ context.Context, key string) (int64, bool, error) {
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *MemCache) Set(_ context.Context, key string, value int64) error {
	c.values[key] = value
	return nil
}
