package tasks

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/watchsync/internal/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Fetcher defaults, overridable via [FetcherOpts].
const (
	DefaultConcurrency    = 10
	DefaultBatchThreshold = 500
	DefaultBatchSize      = 100
	DefaultFetchTimeout   = 20 * time.Second
	defaultBatchPause     = time.Second
)

// Identifier prefixes recognized in provider metadata.
const (
	imdbPrefix = "imdb://"
	tmdbPrefix = "tmdb://"
)

// Fetch error codes carried on [models.FetchResult].
const (
	errTimeout = "Timeout"
	errParse   = "ParseError"
	errRequest = "RequestError"
)

// DetailFetcher resolves full metadata for batches of watchlist items with
// bounded concurrency. Per-item failures never abort sibling requests; every
// request in a batch settles before the batch completes.
type DetailFetcher struct {
	client         *http.Client
	logger         *log.Logger
	concurrency    int
	batchThreshold int
	batchSize      int
	timeout        time.Duration
	batchPause     time.Duration
}

// FetcherOpts configures optional DetailFetcher behavior. Zero values fall
// back to the package defaults.
type FetcherOpts struct {
	Client         *http.Client
	Concurrency    int
	BatchThreshold int
	BatchSize      int
	Timeout        time.Duration
	BatchPause     time.Duration
}

// NewDetailFetcher creates a DetailFetcher.
func NewDetailFetcher(logger *log.Logger, opts FetcherOpts) *DetailFetcher {
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.BatchThreshold <= 0 {
		opts.BatchThreshold = DefaultBatchThreshold
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFetchTimeout
	}
	if opts.BatchPause <= 0 {
		opts.BatchPause = defaultBatchPause
	}

	return &DetailFetcher{
		client:         opts.Client,
		logger:         logger,
		concurrency:    opts.Concurrency,
		batchThreshold: opts.BatchThreshold,
		batchSize:      opts.BatchSize,
		timeout:        opts.Timeout,
		batchPause:     opts.BatchPause,
	}
}

// FetchAll resolves details for every request. Runs larger than the batch
// threshold are split into sequential batches paced by a rate limiter so a
// huge watchlist cannot hammer the provider. The result order is unspecified;
// callers correlate by the embedded source entry.
func (f *DetailFetcher) FetchAll(ctx context.Context, reqs []models.FetchRequest, token string) []models.FetchResult {
	if len(reqs) == 0 {
		return nil
	}

	if len(reqs) <= f.batchThreshold {
		return f.fetchBatch(ctx, reqs, token)
	}

	chunks := chunkRequests(reqs, f.batchSize)
	f.logger.Info("watchlist exceeds batch threshold, fetching in batches",
		"items", len(reqs), "batches", len(chunks), "batchSize", f.batchSize)

	// Burst of one: the first batch starts immediately, each later batch
	// waits out the pause.
	limiter := rate.NewLimiter(rate.Every(f.batchPause), 1)

	results := make([]models.FetchResult, 0, len(reqs))
	for i, chunk := range chunks {
		if err := limiter.Wait(ctx); err != nil {
			f.logger.Warn("fetch run canceled between batches", "completedBatches", i, "err", err)
			break
		}
		f.logger.Info("fetching batch", "batch", i+1, "of", len(chunks), "items", len(chunk))
		results = append(results, f.fetchBatch(ctx, chunk, token)...)
	}
	return results
}

// chunkRequests splits reqs into consecutive slices of at most size elements.
func chunkRequests(reqs []models.FetchRequest, size int) [][]models.FetchRequest {
	var chunks [][]models.FetchRequest
	for start := 0; start < len(reqs); start += size {
		end := min(start+size, len(reqs))
		chunks = append(chunks, reqs[start:end])
	}
	return chunks
}

// fetchBatch issues every request in the batch concurrently, bounded by the
// configured concurrency cap, and waits for all of them to settle.
func (f *DetailFetcher) fetchBatch(ctx context.Context, reqs []models.FetchRequest, token string) []models.FetchResult {
	results := make([]models.FetchResult, len(reqs))

	g := new(errgroup.Group)
	g.SetLimit(f.concurrency)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			results[i] = f.fetchOne(ctx, req, token)
			return nil
		})
	}
	g.Wait()

	return results
}

// fetchOne resolves a single item. Failures are reported on the result's Err
// field, never as a panic or a batch-level error.
func (f *DetailFetcher) fetchOne(ctx context.Context, req models.FetchRequest, token string) models.FetchResult {
	result := models.FetchResult{Entry: req.Entry}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, req.URL, nil)
	if err != nil {
		f.logger.Error("failed to build detail request", "title", req.Title, "url", req.URL, "err", err)
		result.Err = errRequest
		return result
	}
	httpReq.Header.Set("X-Plex-Token", token)
	httpReq.Header.Set("Accept", "application/xml")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() == context.DeadlineExceeded {
			f.logger.Error("timeout fetching details", "title", req.Title, "url", req.URL)
			result.Err = errTimeout
		} else {
			f.logger.Error("failed to fetch details", "title", req.Title, "url", req.URL, "err", err)
			result.Err = errRequest
		}
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logger.Error("detail request rejected", "title", req.Title, "url", req.URL, "status", resp.StatusCode)
		result.Err = fmt.Sprintf("HTTP%d", resp.StatusCode)
		return result
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.logger.Error("failed to read detail response", "title", req.Title, "err", err)
		result.Err = errRequest
		return result
	}

	imdbID, tmdbID, mediaType, ok := extractIDs(body)
	if !ok || (imdbID == "" && tmdbID == "") {
		f.logger.Warn("no identifiers found in metadata", "title", req.Title, "url", req.URL)
		result.Err = errParse
		return result
	}

	f.logger.Debug("extracted metadata", "title", req.Title, "imdb", imdbID, "tmdb", tmdbID, "type", mediaType)
	result.IMDBID = imdbID
	result.TMDBID = tmdbID
	result.MediaType = mediaType
	return result
}

// metadataContainer mirrors the provider's metadata envelope. The item appears
// as a Video element for movies and a Directory element for shows.
type metadataContainer struct {
	XMLName     xml.Name          `xml:"MediaContainer"`
	Videos      []metadataElement `xml:"Video"`
	Directories []metadataElement `xml:"Directory"`
}

type metadataElement struct {
	Type  string        `xml:"type,attr"`
	GUIDs []metadataGUID `xml:"Guid"`
}

type metadataGUID struct {
	ID string `xml:"id,attr"`
}

// extractIDs parses a provider metadata document and extracts the typed
// external identifiers and coarse media type. ok is false when the document
// has no recognizable root or media element.
func extractIDs(body []byte) (imdbID, tmdbID, mediaType string, ok bool) {
	var container metadataContainer
	if err := xml.Unmarshal(body, &container); err != nil {
		return "", "", "", false
	}

	var element *metadataElement
	switch {
	case len(container.Videos) > 0:
		element = &container.Videos[0]
	case len(container.Directories) > 0:
		element = &container.Directories[0]
	default:
		return "", "", "", false
	}

	for _, guid := range element.GUIDs {
		switch {
		case strings.HasPrefix(guid.ID, imdbPrefix):
			imdbID = strings.TrimPrefix(guid.ID, imdbPrefix)
		case strings.HasPrefix(guid.ID, tmdbPrefix):
			tmdbID = strings.TrimPrefix(guid.ID, tmdbPrefix)
		}
	}

	return imdbID, tmdbID, element.Type, true
}
