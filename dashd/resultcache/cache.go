// Package resultcache memoizes expensive computations for a short TTL.
//
// There is no background refresh and no stampede protection: callers that
// race past an expired entry may each compute, and the last one to finish
// wins. Staleness is the only hazard, which is acceptable for the
// dashboard's polling workload.
package resultcache

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/coder/quartz"
)

type entry struct {
	value any
	at    time.Time
}

// Cache maps logical keys to the most recent computed value.
type Cache struct {
	clock quartz.Clock

	mu      sync.Mutex
	entries map[string]entry

	lookups *prometheus.CounterVec
}

type Option func(*Cache)

// WithClock overrides the clock used to stamp and expire entries.
func WithClock(clock quartz.Clock) Option {
	return func(c *Cache) {
		c.clock = clock
	}
}

// WithRegisterer registers hit and miss counters.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Cache) {
		c.lookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "resultcache",
			Name:      "lookups_total",
			Help:      "Result cache lookups by key and outcome.",
		}, []string{"key", "result"})
		reg.MustRegister(c.lookups)
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		clock:   quartz.NewReal(),
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCompute returns the value cached under key if it is younger than
// ttl. Otherwise it calls compute, caches a successful result and returns
// it. Errors are never cached.
//
// It is a function rather than a method because methods cannot take type
// parameters.
func GetOrCompute[T any](c *Cache, key string, ttl time.Duration, compute func() (T, error)) (T, error) {
	if v, ok := c.lookup(key, ttl); ok {
		if typed, ok := v.(T); ok {
			c.observe(key, "hit")
			return typed, nil
		}
	}
	c.observe(key, "miss")

	v, err := compute()
	if err != nil {
		return v, err
	}
	c.store(key, v)
	return v, nil
}

// Invalidate drops the given keys so the next lookup recomputes.
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
}

// Age reports how old the entry for key is.
func (c *Cache) Age(key string) (time.Duration, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return 0, false
	}
	return c.clock.Since(e.at), true
}

func (c *Cache) lookup(key string, ttl time.Duration) (any, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	if c.clock.Since(e.at) >= ttl {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) store(key string, v any) {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: v, at: now}
}

func (c *Cache) observe(key, result string) {
	if c.lookups == nil {
		return
	}
	c.lookups.WithLabelValues(key, result).Inc()
}
