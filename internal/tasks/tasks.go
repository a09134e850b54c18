package tasks

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/watchsync/internal/models"
	"github.com/desertthunder/watchsync/internal/services"
	"github.com/desertthunder/watchsync/internal/shared"
)

// Account pairs an account service with the username its token is expected to
// belong to. ExpectUsername may be empty for the main account.
type Account struct {
	Service        services.AccountService
	ExpectUsername string
}

// SyncRunResult contains all data from one account's watchlist sync.
type SyncRunResult struct {
	Username   string
	RunID      string
	Wanted     []models.ProcessedItem
	Fetch      models.FetchStats
	Processing models.ProcessingStats
	Cache      CacheStats
}

// EngineOpts configures a [WatchlistEngine].
type EngineOpts struct {
	CacheDir        string
	CacheTTL        time.Duration
	CacheMaxEntries int
	Processing      ProcessorOpts
}

// WatchlistEngine orchestrates the full pipeline for one or more accounts:
// connect, fetch watchlist, resolve details through the cache-aware
// coordinator, and process items into the wanted list. Each account gets its
// own detail cache file.
type WatchlistEngine struct {
	metadata services.MetadataService
	presence PresenceChecker
	fetcher  Fetcher
	opts     EngineOpts
	logger   *log.Logger
}

// NewWatchlistEngine creates a WatchlistEngine with the provided collaborators.
func NewWatchlistEngine(metadata services.MetadataService, presence PresenceChecker, fetcher Fetcher, opts EngineOpts, logger *log.Logger) *WatchlistEngine {
	return &WatchlistEngine{
		metadata: metadata,
		presence: presence,
		fetcher:  fetcher,
		opts:     opts,
		logger:   logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *WatchlistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// RunAll syncs every account in order. An account whose run fails yields an
// empty result for that account only; sibling accounts are unaffected.
func (e *WatchlistEngine) RunAll(ctx context.Context, progress chan<- ProgressUpdate, accounts []Account) []*SyncRunResult {
	results := make([]*SyncRunResult, 0, len(accounts))
	for _, account := range accounts {
		result, err := e.Run(ctx, progress, account)
		if err != nil {
			e.logger.Error("watchlist sync failed, returning empty result for account",
				"account", account.ExpectUsername, "err", err)
			result = &SyncRunResult{Username: account.ExpectUsername}
		}
		results = append(results, result)
	}
	return results
}

// Run syncs a single account's watchlist into a wanted-items result.
func (e *WatchlistEngine) Run(ctx context.Context, progress chan<- ProgressUpdate, account Account) (*SyncRunResult, error) {
	if account.Service == nil {
		return nil, fmt.Errorf("%w: account service not initialized", shared.ErrServiceUnavailable)
	}

	start := time.Now()
	runID := shared.RunID()

	e.sendProgress(progress, connectUpdate(account.ExpectUsername))
	user, err := account.Service.User(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect account: %w", err)
	}
	if account.ExpectUsername != "" && user.Username != account.ExpectUsername {
		return nil, fmt.Errorf("%w: token for %s belongs to %s", shared.ErrUserMismatch, account.ExpectUsername, user.Username)
	}

	logger := shared.WithLogger(e.logger, "run", runID, "account", user.Username)
	logger.Info("starting watchlist sync")

	watchlist, err := account.Service.Watchlist(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch watchlist: %w", err)
	}
	e.sendProgress(progress, fetchWatchlistUpdate(len(watchlist)))

	result := &SyncRunResult{Username: user.Username, RunID: runID}
	if len(watchlist) == 0 {
		logger.Info("watchlist is empty")
		return result, nil
	}

	cache := e.OpenCache(user.Username)
	coordinator := NewFetchCoordinator(cache, e.fetcher, logger)
	resolved, fetchStats := coordinator.Resolve(ctx, watchlist, account.Service.Token())
	result.Fetch = fetchStats
	result.Cache = cache.Stats()
	e.sendProgress(progress, resolveUpdate(fetchStats.CacheHits, fetchStats.FetchedCount))

	processor := NewItemProcessor(account.Service, e.metadata, e.presence, user.Username, e.opts.Processing, logger)
	wanted, procStats := processor.Process(ctx, resolved)
	result.Wanted = wanted
	result.Processing = procStats
	e.sendProgress(progress, processUpdate(len(wanted), len(resolved)))

	logger.Info("watchlist sync complete",
		"totalItems", len(watchlist),
		"processed", procStats.Processed,
		"skipped", procStats.Skipped,
		"removed", procStats.Removed,
		"collectedKept", procStats.CollectedKept,
		"elapsed", time.Since(start))
	e.sendProgress(progress, completeUpdate(user.Username))

	return result, nil
}

// OpenCache opens (or creates) the per-account detail cache.
func (e *WatchlistEngine) OpenCache(username string) *DetailCache {
	return NewDetailCache(e.CachePath(username), e.opts.CacheTTL, e.opts.CacheMaxEntries, e.logger)
}

// CachePath returns the detail-cache file path for an account.
func (e *WatchlistEngine) CachePath(username string) string {
	return filepath.Join(e.opts.CacheDir, fmt.Sprintf("detail_cache_%s.json", username))
}
