package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/watchsync/internal/models"
)

// Fetcher resolves details for a batch of requests. Implemented by
// [DetailFetcher]; abstracted for testing the coordinator against doubles.
type Fetcher interface {
	FetchAll(ctx context.Context, reqs []models.FetchRequest, token string) []models.FetchResult
}

// FetchCoordinator partitions a watchlist into cache hits and misses, drives
// the fetcher for the misses, and commits the merged outcome back into the
// cache. It is the only writer into the detail cache.
type FetchCoordinator struct {
	cache   *DetailCache
	fetcher Fetcher
	logger  *log.Logger
}

// NewFetchCoordinator creates a FetchCoordinator.
func NewFetchCoordinator(cache *DetailCache, fetcher Fetcher, logger *log.Logger) *FetchCoordinator {
	return &FetchCoordinator{cache: cache, fetcher: fetcher, logger: logger}
}

// Resolve produces a detail result for every addressable watchlist entry.
// Cached entries are served without network calls; the rest are fetched and
// written back to the cache, failures included, so a persistently broken item
// is only retried once per cache lifetime. Entries that carry no detail URL
// cannot be fetched and are dropped with a warning.
func (c *FetchCoordinator) Resolve(ctx context.Context, watchlist []models.WatchlistEntry, token string) ([]models.FetchResult, models.FetchStats) {
	var cached []models.FetchResult
	var toFetch []models.FetchRequest

	for _, entry := range watchlist {
		if hit, ok := c.cache.Get(entry.Fingerprint()); ok {
			cached = append(cached, models.ResultFromCache(entry, hit))
			continue
		}
		if entry.DetailURL == "" {
			c.logger.Warn("skipping unaddressable watchlist entry", "title", entry.Title, "type", entry.Type)
			continue
		}
		toFetch = append(toFetch, models.FetchRequest{Title: entry.Title, URL: entry.DetailURL, Entry: entry})
	}

	c.logger.Info("cache split", "hits", len(cached), "toFetch", len(toFetch))

	var fetched []models.FetchResult
	if len(toFetch) > 0 {
		start := time.Now()
		fetched = c.fetcher.FetchAll(ctx, toFetch, token)
		c.logger.Info("fetched item details", "items", len(fetched), "elapsed", time.Since(start))

		for _, result := range fetched {
			c.cache.Set(result.Entry.Fingerprint(), result.ToCacheEntry())
		}
		if err := c.cache.Commit(); err != nil {
			c.logger.Error("failed to persist detail cache", "err", err)
		} else {
			c.logger.Info("updated detail cache", "newEntries", len(fetched), "totalEntries", c.cache.Stats().Size)
		}
	}

	results := append(cached, fetched...)
	stats := models.FetchStats{
		CacheHits:    len(cached),
		FetchedCount: len(fetched),
		TotalItems:   len(results),
	}
	return results, stats
}
