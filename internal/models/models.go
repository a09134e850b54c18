package models

import (
	"fmt"
	"time"
)

// Media type strings as the account provider reports them, and the canonical
// form the rest of the pipeline consumes.
const (
	TypeMovie  = "movie"
	TypeShow   = "show"
	TypeSeries = "series"
)

// Presence states reported by the local media library.
const (
	PresenceCollected = "Collected"
	PresenceNotFound  = "Not Found"
)

// WatchlistEntry is an opaque reference to a watchlist item as returned by the
// account service. Fields other than Title and Type may be absent depending on
// how the provider catalogued the item.
type WatchlistEntry struct {
	GUID      string // provider GUID (e.g. "plex://movie/5d776b59ad5437001f79c6f8")
	RatingKey string // provider key used for watchlist mutations
	Title     string
	Type      string // coarse provider type: movie or show
	DetailURL string // absolute URL for the item's full metadata document
}

// Fingerprint derives the stable cache key for an entry: the provider GUID when
// present, otherwise a type:title fallback. The fallback is lossy (two items
// with the same title and type collide) and is kept for compatibility with
// existing cache files. Returns "" when no key can be derived.
func (e WatchlistEntry) Fingerprint() string {
	if e.GUID != "" {
		return e.GUID
	}
	if e.Title != "" && e.Type != "" {
		return fmt.Sprintf("%s:%s", e.Type, e.Title)
	}
	return ""
}

// CacheEntry is a persisted detail-resolution result. An entry with a zero
// CachedAt is never considered valid. Err is set when the resolution itself
// failed; failed resolutions are cached under the same TTL as successes so a
// persistently broken item is not refetched every run.
type CacheEntry struct {
	IMDBID    string    `json:"imdb_id,omitempty"`
	TMDBID    string    `json:"tmdb_id,omitempty"`
	MediaType string    `json:"media_type,omitempty"`
	Err       string    `json:"error,omitempty"`
	CachedAt  time.Time `json:"cached_at"`
}

// FetchRequest is a single unit of work for the detail fetcher.
type FetchRequest struct {
	Title string
	URL   string
	Entry WatchlistEntry // originating watchlist entry, carried through untouched
}

// FetchResult is the per-item outcome of either a cache hit or a network
// fetch. Callers correlate results by Entry, never by position.
type FetchResult struct {
	IMDBID    string
	TMDBID    string
	MediaType string
	Err       string // "" on success; "Timeout", "HTTP<code>", "ParseError", ...
	Entry     WatchlistEntry
}

// ToCacheEntry converts a fetch result into its cacheable form. The cache
// stamps CachedAt at insertion time; the zero value here is intentional.
func (r FetchResult) ToCacheEntry() CacheEntry {
	return CacheEntry{
		IMDBID:    r.IMDBID,
		TMDBID:    r.TMDBID,
		MediaType: r.MediaType,
		Err:       r.Err,
	}
}

// ResultFromCache synthesizes a fetch result from a cached entry, reattaching
// the originating watchlist entry.
func ResultFromCache(entry WatchlistEntry, cached CacheEntry) FetchResult {
	return FetchResult{
		IMDBID:    cached.IMDBID,
		TMDBID:    cached.TMDBID,
		MediaType: cached.MediaType,
		Err:       cached.Err,
		Entry:     entry,
	}
}

// ProcessedItem is the unit handed to the downstream wanted-items consumer.
// IMDBID is always non-empty.
type ProcessedItem struct {
	IMDBID    string `json:"imdb_id"`
	MediaType string `json:"media_type"`
	Source    string `json:"content_source_detail"` // account username the item came from
}

// FetchStats summarizes one coordinator invocation.
type FetchStats struct {
	CacheHits    int
	FetchedCount int
	TotalItems   int
}

// ProcessingStats summarizes one processor invocation.
type ProcessingStats struct {
	Skipped       int // fetch error, or no primary ID after conversion attempts
	Removed       int // removed from the remote watchlist
	CollectedKept int // collected but deliberately kept (ongoing series, keep_series)
	Processed     int // emitted as wanted items
}

// NormalizeMediaType maps the provider's coarse "show" type to the pipeline's
// canonical "series" type. All other values pass through unchanged.
func NormalizeMediaType(mediaType string) string {
	if mediaType == TypeShow {
		return TypeSeries
	}
	return mediaType
}
