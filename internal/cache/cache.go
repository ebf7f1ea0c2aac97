// SPDX-License-Identifier: MIT

// Package cache memoizes derived model metadata: capability probes,
// language lists, registry scans. Entries carry a TTL; the admin cache
// clear endpoint wipes everything.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache is the shared store behind the model registry. Implementations
// are safe for concurrent use.
type Cache interface {
	// Get returns the cached value, or false when absent or expired.
	Get(key string) (any, bool)
	// Set stores value under key for ttl.
	Set(key string, value any, ttl time.Duration)
	// Delete removes one key.
	Delete(key string)
	// Clear removes everything.
	Clear()
	// Stats returns counters since process start.
	Stats() Stats
}

// Stats holds cache counters.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Sets        int64 `json:"sets"`
	Evictions   int64 `json:"evictions"`
	CurrentSize int   `json:"current_size"`
}

type entry struct {
	value     any
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Memory is the in-process implementation. A janitor goroutine evicts
// expired entries so the map does not grow without bound between reads.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64

	stopJanitor chan struct{}
	stopOnce    sync.Once
}

// NewMemory creates an in-memory cache. cleanupInterval <= 0 disables
// the janitor; expired entries are then only dropped lazily on Get.
func NewMemory(cleanupInterval time.Duration) *Memory {
	c := &Memory{
		entries:     make(map[string]entry),
		stopJanitor: make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	}
	return c
}

func (c *Memory) Get(key string) (any, bool) {
	c.mu.RLock()
	e, found := c.entries[key]
	c.mu.RUnlock()

	if !found || e.expired(time.Now()) {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.value, true
}

func (c *Memory) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
	c.sets.Add(1)
}

func (c *Memory) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *Memory) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

func (c *Memory) Stats() Stats {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		Evictions:   c.evictions.Load(),
		CurrentSize: size,
	}
}

// Stop terminates the janitor. Idempotent.
func (c *Memory) Stop() {
	c.stopOnce.Do(func() { close(c.stopJanitor) })
}

func (c *Memory) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stopJanitor:
			return
		}
	}
}

func (c *Memory) deleteExpired() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			n++
		}
	}
	c.evictions.Add(int64(n))
	return n
}

// NewNoOp returns a cache that stores nothing. Used when caching is
// disabled by configuration.
func NewNoOp() Cache { return noOp{} }

type noOp struct{}

func (noOp) Get(string) (any, bool)             { return nil, false }
func (noOp) Set(string, any, time.Duration)     {}
func (noOp) Delete(string)                      {}
func (noOp) Clear()                             {}
func (noOp) Stats() Stats                       { return Stats{} }
