// Trakt API implementation of [MetadataService]
//
// Trakt API response types based on https://trakt.docs.apiary.io/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/watchsync/internal/models"
	"github.com/desertthunder/watchsync/internal/shared"
)

const defaultTraktURL = "https://api.trakt.tv"

// TraktService implements [MetadataService] against the Trakt API.
type TraktService struct {
	baseURL  string
	clientID string
	client   *http.Client
	logger   *log.Logger
}

// NewTraktService creates a TraktService. baseURL defaults to the public Trakt
// API; client defaults to [http.DefaultClient].
func NewTraktService(clientID, baseURL string, client *http.Client, logger *log.Logger) *TraktService {
	if baseURL == "" {
		baseURL = defaultTraktURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &TraktService{baseURL: baseURL, clientID: clientID, client: client, logger: logger}
}

type traktIDs struct {
	Trakt int    `json:"trakt"`
	Slug  string `json:"slug"`
	IMDB  string `json:"imdb"`
	TMDB  int    `json:"tmdb"`
}

type traktSearchResult struct {
	Type  string `json:"type"`
	Movie *struct {
		Title string   `json:"title"`
		IDs   traktIDs `json:"ids"`
	} `json:"movie,omitempty"`
	Show *struct {
		Title string   `json:"title"`
		IDs   traktIDs `json:"ids"`
	} `json:"show,omitempty"`
}

type traktShowDetail struct {
	Title  string   `json:"title"`
	Status string   `json:"status"`
	IDs    traktIDs `json:"ids"`
}

// TMDBToIMDB converts a TMDB identifier to the canonical IMDB identifier via
// Trakt's ID-lookup endpoint. The returned source label is "trakt".
func (s *TraktService) TMDBToIMDB(ctx context.Context, tmdbID, mediaType string) (string, string, error) {
	if tmdbID == "" || mediaType == "" {
		return "", "", fmt.Errorf("%w: tmdb id and media type are required", shared.ErrInvalidInput)
	}

	searchType := "movie"
	switch mediaType {
	case models.TypeShow, models.TypeSeries, "tv":
		searchType = "show"
	}

	endpoint := fmt.Sprintf("%s/search/tmdb/%s?type=%s", s.baseURL, url.PathEscape(tmdbID), searchType)
	var results []traktSearchResult
	if err := s.getJSON(ctx, endpoint, &results); err != nil {
		return "", "", err
	}

	for _, result := range results {
		switch {
		case result.Movie != nil && result.Movie.IDs.IMDB != "":
			return result.Movie.IDs.IMDB, "trakt", nil
		case result.Show != nil && result.Show.IDs.IMDB != "":
			return result.Show.IDs.IMDB, "trakt", nil
		}
	}

	return "", "", fmt.Errorf("%w: tmdb %s (%s)", shared.ErrNoMapping, tmdbID, searchType)
}

// ShowStatus returns the lowercase airing status for a show. Trakt's
// "canceled" status is collapsed into "ended"; a show that cannot be found
// yields an empty status and no error.
func (s *TraktService) ShowStatus(ctx context.Context, imdbID string) (string, error) {
	endpoint := fmt.Sprintf("%s/search/imdb/%s?type=show", s.baseURL, url.PathEscape(imdbID))
	var results []traktSearchResult
	if err := s.getJSON(ctx, endpoint, &results); err != nil {
		return "", err
	}

	var slug string
	for _, result := range results {
		if result.Type == "show" && result.Show != nil {
			slug = result.Show.IDs.Slug
			break
		}
	}
	if slug == "" {
		s.logger.Debug("no show found for status lookup", "imdb", imdbID)
		return "", nil
	}

	var detail traktShowDetail
	if err := s.getJSON(ctx, fmt.Sprintf("%s/shows/%s?extended=full", s.baseURL, url.PathEscape(slug)), &detail); err != nil {
		return "", err
	}

	status := strings.ToLower(detail.Status)
	if status == "canceled" {
		status = "ended"
	}
	s.logger.Debug("show status", "imdb", imdbID, "status", status)
	return status, nil
}

// getJSON performs an authenticated GET and decodes the JSON response into out.
func (s *TraktService) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", shared.ErrAPIRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("trakt-api-version", "2")
	req.Header.Set("trakt-api-key", s.clientID)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d from %s", shared.ErrAPIRequest, resp.StatusCode, endpoint)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", shared.ErrAPIRequest, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to parse response: %v", shared.ErrAPIRequest, err)
	}
	return nil
}
