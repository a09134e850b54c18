// package services defines interfaces for the external HTTP collaborators
package services

import (
	"context"

	"github.com/desertthunder/watchsync/internal/models"
)

// AccountService is the remote account collaborator that owns the watchlist.
// Token lifecycle (refresh, expiry) is out of scope; implementations carry a
// static token.
type AccountService interface {
	// User fetches the account profile for the configured token.
	User(ctx context.Context) (*AccountUser, error)

	// Watchlist retrieves all watchlist entries for the account.
	Watchlist(ctx context.Context) ([]models.WatchlistEntry, error)

	// RemoveFromWatchlist removes a single entry from the remote watchlist.
	RemoveFromWatchlist(ctx context.Context, entry models.WatchlistEntry) error

	// Token returns the raw account token, used by the detail fetcher for
	// per-request authentication headers.
	Token() string
}

// MetadataService is the external metadata catalog used for best-effort
// identifier conversion and show-status lookup.
type MetadataService interface {
	// TMDBToIMDB converts a TMDB identifier to the canonical IMDB identifier.
	// Returns the source label of the catalog that answered. A missing mapping
	// yields shared.ErrNoMapping.
	TMDBToIMDB(ctx context.Context, tmdbID, mediaType string) (imdbID, source string, err error)

	// ShowStatus returns the lowercase airing status for a show ("ended",
	// "returning series", ...). A "canceled" status is reported as "ended".
	ShowStatus(ctx context.Context, imdbID string) (string, error)
}

// AccountUser is the account profile returned by [AccountService.User].
type AccountUser struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	ExpiresAt string `json:"rememberExpiresAt,omitempty"`
}
