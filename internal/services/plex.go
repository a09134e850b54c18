// Plex discover API implementation of [AccountService]
//
// The legacy metadata.provider.plex.tv host is dead; requests addressed to it
// are rewritten to the discover host by an explicit transport-level rewrite
// table instead of patching call sites.
package services

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/watchsync/internal/models"
	"github.com/desertthunder/watchsync/internal/shared"
)

const (
	DefaultDiscoverURL = "https://discover.provider.plex.tv"
	plexUserURL        = "https://plex.tv/api/v2/user"

	legacyMetadataHost = "metadata.provider.plex.tv"
	discoverHost       = "discover.provider.plex.tv"
)

// DefaultEndpointRewrites maps retired provider hosts to their replacements.
func DefaultEndpointRewrites() map[string]string {
	return map[string]string{legacyMetadataHost: discoverHost}
}

// rewriteTransport is an [http.RoundTripper] that applies a host-rewrite table
// to outgoing requests and debug-logs every request it forwards.
type rewriteTransport struct {
	base     http.RoundTripper
	rewrites map[string]string
	logger   *log.Logger
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if target, ok := t.rewrites[req.URL.Host]; ok {
		clone := req.Clone(req.Context())
		clone.URL.Host = target
		clone.Host = target
		t.logger.Debug("rewrote endpoint host", "from", req.URL.Host, "to", target, "path", req.URL.Path)
		req = clone
	}
	t.logger.Debug("account request", "method", req.Method, "url", req.URL.String())
	return t.base.RoundTrip(req)
}

// PlexService implements [AccountService] against the Plex discover API.
type PlexService struct {
	token   string
	baseURL string
	authURL string
	client  *http.Client
	logger  *log.Logger
}

// PlexOpts configures optional PlexService behavior.
type PlexOpts struct {
	BaseURL          string            // defaults to DefaultDiscoverURL
	AuthURL          string            // user-profile endpoint, defaults to the plex.tv API
	Client           *http.Client      // defaults to a fresh client
	EndpointRewrites map[string]string // defaults to DefaultEndpointRewrites()
}

// NewPlexService creates a PlexService for the given account token. The
// provided client's transport is wrapped with the endpoint-rewrite table.
func NewPlexService(token string, logger *log.Logger, opts PlexOpts) *PlexService {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultDiscoverURL
	}
	if opts.AuthURL == "" {
		opts.AuthURL = plexUserURL
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	rewrites := opts.EndpointRewrites
	if rewrites == nil {
		rewrites = DefaultEndpointRewrites()
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *client
	wrapped.Transport = &rewriteTransport{base: base, rewrites: rewrites, logger: logger}

	return &PlexService{
		token:   token,
		baseURL: opts.BaseURL,
		authURL: opts.AuthURL,
		client:  &wrapped,
		logger:  logger,
	}
}

// Token returns the raw account token.
func (s *PlexService) Token() string { return s.token }

// watchlistContainer mirrors the discover API's XML envelope. Movies arrive as
// Video elements, shows as Directory elements.
type watchlistContainer struct {
	XMLName     xml.Name           `xml:"MediaContainer"`
	Videos      []watchlistElement `xml:"Video"`
	Directories []watchlistElement `xml:"Directory"`
}

type watchlistElement struct {
	GUID      string `xml:"guid,attr"`
	RatingKey string `xml:"ratingKey,attr"`
	Key       string `xml:"key,attr"`
	Title     string `xml:"title,attr"`
	Type      string `xml:"type,attr"`
}

// User fetches the profile for the configured token, validating it as a side
// effect.
func (s *PlexService) User(ctx context.Context) (*AccountUser, error) {
	body, err := s.get(ctx, s.authURL, "application/json")
	if err != nil {
		return nil, err
	}

	var user AccountUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("%w: failed to parse account profile: %v", shared.ErrAPIRequest, err)
	}
	if user.Username == "" {
		return nil, fmt.Errorf("%w: account profile carried no username", shared.ErrTokenInvalid)
	}
	return &user, nil
}

// Watchlist retrieves all watchlist entries. Each entry's DetailURL points at
// the item's full metadata document on the discover host.
func (s *PlexService) Watchlist(ctx context.Context) ([]models.WatchlistEntry, error) {
	body, err := s.get(ctx, s.baseURL+"/library/sections/watchlist/all", "application/xml")
	if err != nil {
		return nil, err
	}

	var container watchlistContainer
	if err := xml.Unmarshal(body, &container); err != nil {
		return nil, fmt.Errorf("%w: failed to parse watchlist response: %v", shared.ErrAPIRequest, err)
	}

	elements := append(container.Videos, container.Directories...)
	entries := make([]models.WatchlistEntry, 0, len(elements))
	for _, el := range elements {
		entry := models.WatchlistEntry{
			GUID:      el.GUID,
			RatingKey: el.RatingKey,
			Title:     el.Title,
			Type:      el.Type,
		}
		if el.Key != "" {
			entry.DetailURL = s.baseURL + el.Key
		}
		entries = append(entries, entry)
	}

	s.logger.Info("fetched watchlist", "items", len(entries))
	return entries, nil
}

// RemoveFromWatchlist removes a single entry from the remote watchlist.
func (s *PlexService) RemoveFromWatchlist(ctx context.Context, entry models.WatchlistEntry) error {
	if entry.RatingKey == "" {
		return fmt.Errorf("%w: entry %q has no rating key", shared.ErrRemovalFailed, entry.Title)
	}

	endpoint := fmt.Sprintf("%s/actions/removeFromWatchlist?ratingKey=%s", s.baseURL, url.QueryEscape(entry.RatingKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRemovalFailed, err)
	}
	req.Header.Set("X-Plex-Token", s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRemovalFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", shared.ErrRemovalFailed, resp.StatusCode)
	}

	s.logger.Info("removed from watchlist", "title", entry.Title, "ratingKey", entry.RatingKey)
	return nil
}

// get performs an authenticated GET and returns the response body.
func (s *PlexService) get(ctx context.Context, endpoint, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", shared.ErrAPIRequest, err)
	}
	req.Header.Set("X-Plex-Token", s.token)
	req.Header.Set("Accept", accept)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: HTTP %d", shared.ErrTokenInvalid, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d from %s", shared.ErrAPIRequest, resp.StatusCode, endpoint)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrAPIRequest, err)
	}
	return body, nil
}
