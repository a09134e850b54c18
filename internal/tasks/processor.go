package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/watchsync/internal/models"
	"github.com/desertthunder/watchsync/internal/services"
)

// PresenceChecker answers batched presence lookups against the local media
// library. Implemented by repositories.MediaRepository.
type PresenceChecker interface {
	BatchPresence(ctx context.Context, imdbIDs []string) (map[string]string, error)
}

// ProcessorOpts carries the configuration flags consumed by the processor.
type ProcessorOpts struct {
	RemovalEnabled bool
	KeepSeries     bool
}

// ItemProcessor applies the keep/remove/want decision to resolved watchlist
// items. It never mutates the detail cache.
type ItemProcessor struct {
	account  services.AccountService
	metadata services.MetadataService
	presence PresenceChecker
	username string
	opts     ProcessorOpts
	logger   *log.Logger
}

// NewItemProcessor creates an ItemProcessor for one account. username labels
// every produced item as its content source.
func NewItemProcessor(account services.AccountService, metadata services.MetadataService, presence PresenceChecker, username string, opts ProcessorOpts, logger *log.Logger) *ItemProcessor {
	return &ItemProcessor{
		account:  account,
		metadata: metadata,
		presence: presence,
		username: username,
		opts:     opts,
		logger:   logger,
	}
}

// resolvedItem is a fetch result whose primary identifier resolution settled.
type resolvedItem struct {
	entry     models.WatchlistEntry
	imdbID    string
	mediaType string
}

// Process turns fetch results into the run's wanted items.
//
// Identifier resolution (including the TMDB fallback conversion) happens
// first so that a single batched presence lookup covers every resolved ID in
// the run. Items whose removal call fails are dropped from the output
// entirely rather than downgraded to wanted.
func (p *ItemProcessor) Process(ctx context.Context, results []models.FetchResult) ([]models.ProcessedItem, models.ProcessingStats) {
	var stats models.ProcessingStats
	start := time.Now()

	resolved := p.resolveIDs(ctx, results, &stats)

	presence := p.batchPresence(ctx, resolved)

	var wanted []models.ProcessedItem
	for _, item := range resolved {
		state, ok := presence[item.imdbID]
		if !ok {
			state = models.PresenceNotFound
		}
		p.logger.Debug("presence state", "title", item.entry.Title, "imdb", item.imdbID, "state", state)

		if p.shouldRemove(ctx, state, item) {
			if err := p.account.RemoveFromWatchlist(ctx, item.entry); err != nil {
				// Deliberate policy: a failed removal drops the item from this
				// run's output instead of falling back to wanted.
				p.logger.Error("failed to remove from watchlist", "title", item.entry.Title, "imdb", item.imdbID, "err", err)
				stats.Skipped++
				continue
			}
			stats.Removed++
			continue
		}

		if state == models.PresenceCollected && p.opts.RemovalEnabled {
			p.logger.Debug("keeping collected item", "title", item.entry.Title, "imdb", item.imdbID)
			stats.CollectedKept++
			continue
		}

		wanted = append(wanted, models.ProcessedItem{
			IMDBID:    item.imdbID,
			MediaType: item.mediaType,
			Source:    p.username,
		})
	}

	stats.Processed = len(wanted)
	p.logger.Info("processing complete", "items", len(results), "wanted", len(wanted), "elapsed", time.Since(start))
	return wanted, stats
}

// resolveIDs settles the primary identifier for every result, attempting the
// TMDB fallback conversion where direct extraction came up short.
func (p *ItemProcessor) resolveIDs(ctx context.Context, results []models.FetchResult, stats *models.ProcessingStats) []resolvedItem {
	resolved := make([]resolvedItem, 0, len(results))

	for _, result := range results {
		title := result.Entry.Title

		if result.Err != "" {
			p.logger.Warn("skipping item with fetch error", "title", title, "err", result.Err)
			stats.Skipped++
			continue
		}

		mediaType := result.MediaType
		if mediaType == "" {
			mediaType = result.Entry.Type
		}

		imdbID := result.IMDBID
		if imdbID == "" && result.TMDBID != "" && mediaType != "" {
			converted, source, err := p.metadata.TMDBToIMDB(ctx, result.TMDBID, mediaType)
			if err != nil {
				p.logger.Debug("identifier conversion failed", "title", title, "tmdb", result.TMDBID, "err", err)
			} else {
				p.logger.Info("converted identifier", "title", title, "tmdb", result.TMDBID, "imdb", converted, "via", source)
				imdbID = converted
			}
		}

		if imdbID == "" {
			p.logger.Debug("skipping item without primary identifier", "title", title)
			stats.Skipped++
			continue
		}

		resolved = append(resolved, resolvedItem{
			entry:     result.Entry,
			imdbID:    imdbID,
			mediaType: models.NormalizeMediaType(mediaType),
		})
	}

	return resolved
}

// batchPresence performs the run's single presence round-trip. A lookup
// failure degrades to an empty map, treating every item as not collected.
func (p *ItemProcessor) batchPresence(ctx context.Context, resolved []resolvedItem) map[string]string {
	if len(resolved) == 0 {
		return map[string]string{}
	}

	seen := make(map[string]struct{}, len(resolved))
	ids := make([]string, 0, len(resolved))
	for _, item := range resolved {
		if _, ok := seen[item.imdbID]; ok {
			continue
		}
		seen[item.imdbID] = struct{}{}
		ids = append(ids, item.imdbID)
	}

	start := time.Now()
	presence, err := p.presence.BatchPresence(ctx, ids)
	if err != nil {
		p.logger.Error("batch presence check failed", "items", len(ids), "err", err)
		return map[string]string{}
	}
	p.logger.Info("batch presence check complete", "items", len(ids), "elapsed", time.Since(start))
	return presence
}

// shouldRemove decides whether a collected item comes off the remote
// watchlist. Uncertainty always resolves toward keeping: a series whose
// status cannot be determined is treated as ongoing.
func (p *ItemProcessor) shouldRemove(ctx context.Context, state string, item resolvedItem) bool {
	if state != models.PresenceCollected || !p.opts.RemovalEnabled {
		return false
	}

	if item.mediaType != models.TypeSeries {
		p.logger.Debug("collected movie marked for removal", "title", item.entry.Title, "imdb", item.imdbID)
		return true
	}

	if p.opts.KeepSeries {
		p.logger.Debug("keeping collected series, keep_series enabled", "title", item.entry.Title, "imdb", item.imdbID)
		return false
	}

	status, err := p.metadata.ShowStatus(ctx, item.imdbID)
	if err != nil {
		p.logger.Error("show status lookup failed", "title", item.entry.Title, "imdb", item.imdbID, "err", err)
		status = ""
	}
	if status != "ended" {
		p.logger.Debug("keeping collected ongoing series", "title", item.entry.Title, "imdb", item.imdbID, "status", status)
		return false
	}

	p.logger.Debug("collected ended series marked for removal", "title", item.entry.Title, "imdb", item.imdbID)
	return true
}
