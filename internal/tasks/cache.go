package tasks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/watchsync/internal/models"
)

// Detail cache defaults, overridable per instance.
const (
	DefaultCacheTTL        = 30 * 24 * time.Hour
	DefaultCacheMaxEntries = 10000
)

// DetailCache is a persistent, expiring, capacity-bounded store of resolved
// item details keyed by watchlist-entry fingerprint.
//
// All methods are safe for concurrent use. The cache owns its backing file
// exclusively; persistence is best-effort and never a correctness requirement
// for the rest of the pipeline.
type DetailCache struct {
	path       string
	maxAge     time.Duration
	maxEntries int
	logger     *log.Logger

	mu      sync.Mutex
	entries map[string]models.CacheEntry
	hits    int
	misses  int
}

// CacheStats reports store size and process-lifetime hit/miss counters.
type CacheStats struct {
	Size    int     `json:"size"`
	Hits    int     `json:"hits"`
	Misses  int     `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// NewDetailCache loads a cache from path. A missing, unreadable, or corrupt
// file degrades to an empty store. maxAge and maxEntries fall back to the
// package defaults when non-positive.
func NewDetailCache(path string, maxAge time.Duration, maxEntries int, logger *log.Logger) *DetailCache {
	if maxAge <= 0 {
		maxAge = DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}

	c := &DetailCache{
		path:       path,
		maxAge:     maxAge,
		maxEntries: maxEntries,
		logger:     logger,
		entries:    map[string]models.CacheEntry{},
	}
	c.load()
	return c
}

func (c *DetailCache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("cache file unreadable, starting fresh", "path", c.path, "err", err)
		}
		return
	}

	var entries map[string]models.CacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		c.logger.Warn("cache file corrupted, starting fresh", "path", c.path, "err", err)
		return
	}
	c.entries = entries
}

// Get returns the non-expired entry for fingerprint. An expired entry, or one
// that was stored without a timestamp, is purged as a side effect of the
// lookup.
func (c *DetailCache) Get(fingerprint string) (models.CacheEntry, bool) {
	if fingerprint == "" {
		return models.CacheEntry{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[fingerprint]
	if !ok {
		c.misses++
		return models.CacheEntry{}, false
	}

	if entry.CachedAt.IsZero() || time.Since(entry.CachedAt) >= c.maxAge {
		delete(c.entries, fingerprint)
		c.misses++
		return models.CacheEntry{}, false
	}

	c.hits++
	return entry, true
}

// Set inserts or overwrites the entry for fingerprint, stamping CachedAt with
// the current time regardless of any caller-supplied value. When the store is
// at capacity the oldest tenth of entries is evicted first.
func (c *DetailCache) Set(fingerprint string, entry models.CacheEntry) {
	if fingerprint == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictOldest(max(1, c.maxEntries/10))
	}

	entry.CachedAt = time.Now()
	c.entries[fingerprint] = entry
}

// evictOldest removes n entries ordered by CachedAt, oldest first. Tie order
// among equal timestamps is unspecified. Caller holds the lock.
func (c *DetailCache) evictOldest(n int) {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].CachedAt.Before(c.entries[keys[j]].CachedAt)
	})

	if n > len(keys) {
		n = len(keys)
	}
	for _, k := range keys[:n] {
		delete(c.entries, k)
	}
	c.logger.Debug("evicted oldest cache entries", "count", n, "remaining", len(c.entries))
}

// Commit persists the full store as a complete snapshot, written to a
// temporary file and renamed into place so a crash mid-write never corrupts
// the previous snapshot. Safe to call when nothing changed.
func (c *DetailCache) Commit() error {
	c.mu.Lock()
	data, err := json.MarshalIndent(c.entries, "", "  ")
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache snapshot: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}

// Clear drops every entry from the in-memory store. The caller decides
// whether to Commit the empty snapshot.
func (c *DetailCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]models.CacheEntry{}
}

// Stats returns store size and the process-lifetime hit/miss counters.
func (c *DetailCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{Size: len(c.entries), Hits: c.hits, Misses: c.misses}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}
