package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/watchsync/internal/models"
	"github.com/desertthunder/watchsync/internal/shared"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

const watchlistXML = `<?xml version="1.0"?>
<MediaContainer size="2">
  <Video guid="plex://movie/abc" ratingKey="101" key="/library/metadata/101" title="The Matrix" type="movie" />
  <Directory guid="plex://show/def" ratingKey="202" key="/library/metadata/202" title="Breaking Bad" type="show" />
</MediaContainer>`

func TestPlexService_User(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("X-Plex-Token"); got != "secret" {
				t.Errorf("expected token header, got %q", got)
			}
			fmt.Fprint(w, `{"username": "alice", "email": "alice@example.com", "rememberExpiresAt": "2027-01-01"}`)
		}))
		defer server.Close()

		service := NewPlexService("secret", testLogger(), PlexOpts{AuthURL: server.URL, Client: server.Client()})
		user, err := service.User(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.Username != "alice" {
			t.Errorf("expected alice, got %q", user.Username)
		}
		if user.ExpiresAt != "2027-01-01" {
			t.Errorf("expected expiry passthrough, got %q", user.ExpiresAt)
		}
	})

	t.Run("rejected token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		service := NewPlexService("bad", testLogger(), PlexOpts{AuthURL: server.URL, Client: server.Client()})
		if _, err := service.User(context.Background()); !errors.Is(err, shared.ErrTokenInvalid) {
			t.Errorf("expected ErrTokenInvalid, got %v", err)
		}
	})

	t.Run("profile without username", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"email": "alice@example.com"}`)
		}))
		defer server.Close()

		service := NewPlexService("secret", testLogger(), PlexOpts{AuthURL: server.URL, Client: server.Client()})
		if _, err := service.User(context.Background()); !errors.Is(err, shared.ErrTokenInvalid) {
			t.Errorf("expected ErrTokenInvalid, got %v", err)
		}
	})

	t.Run("malformed profile", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "not json")
		}))
		defer server.Close()

		service := NewPlexService("secret", testLogger(), PlexOpts{AuthURL: server.URL, Client: server.Client()})
		if _, err := service.User(context.Background()); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})
}

func TestPlexService_Watchlist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/library/sections/watchlist/all" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, watchlistXML)
	}))
	defer server.Close()

	service := NewPlexService("secret", testLogger(), PlexOpts{BaseURL: server.URL, Client: server.Client()})
	entries, err := service.Watchlist(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	byTitle := map[string]models.WatchlistEntry{}
	for _, entry := range entries {
		byTitle[entry.Title] = entry
	}

	movie := byTitle["The Matrix"]
	if movie.GUID != "plex://movie/abc" || movie.RatingKey != "101" || movie.Type != "movie" {
		t.Errorf("unexpected movie entry: %+v", movie)
	}
	if want := server.URL + "/library/metadata/101"; movie.DetailURL != want {
		t.Errorf("expected detail url %s, got %s", want, movie.DetailURL)
	}

	show := byTitle["Breaking Bad"]
	if show.Type != "show" || show.RatingKey != "202" {
		t.Errorf("unexpected show entry: %+v", show)
	}
}

func TestPlexService_Watchlist_Errors(t *testing.T) {
	t.Run("malformed response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "not xml")
		}))
		defer server.Close()

		service := NewPlexService("secret", testLogger(), PlexOpts{BaseURL: server.URL, Client: server.Client()})
		if _, err := service.Watchlist(context.Background()); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		service := NewPlexService("secret", testLogger(), PlexOpts{BaseURL: server.URL, Client: server.Client()})
		if _, err := service.Watchlist(context.Background()); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})
}

func TestPlexService_RemoveFromWatchlist(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var gotMethod, gotKey string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotKey = r.URL.Query().Get("ratingKey")
		}))
		defer server.Close()

		service := NewPlexService("secret", testLogger(), PlexOpts{BaseURL: server.URL, Client: server.Client()})
		entry := models.WatchlistEntry{RatingKey: "101", Title: "The Matrix"}
		if err := service.RemoveFromWatchlist(context.Background(), entry); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotMethod != http.MethodPut {
			t.Errorf("expected PUT, got %s", gotMethod)
		}
		if gotKey != "101" {
			t.Errorf("expected ratingKey 101, got %q", gotKey)
		}
	})

	t.Run("missing rating key", func(t *testing.T) {
		service := NewPlexService("secret", testLogger(), PlexOpts{})
		err := service.RemoveFromWatchlist(context.Background(), models.WatchlistEntry{Title: "No Key"})
		if !errors.Is(err, shared.ErrRemovalFailed) {
			t.Errorf("expected ErrRemovalFailed, got %v", err)
		}
	})

	t.Run("server rejects removal", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		service := NewPlexService("secret", testLogger(), PlexOpts{BaseURL: server.URL, Client: server.Client()})
		err := service.RemoveFromWatchlist(context.Background(), models.WatchlistEntry{RatingKey: "101"})
		if !errors.Is(err, shared.ErrRemovalFailed) {
			t.Errorf("expected ErrRemovalFailed, got %v", err)
		}
	})
}

func TestRewriteTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, watchlistXML)
	}))
	defer server.Close()

	serverURL, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("failed to parse server url: %v", err)
	}

	// Requests addressed to the retired host land on the test server.
	service := NewPlexService("secret", testLogger(), PlexOpts{
		BaseURL:          "http://" + legacyMetadataHost,
		Client:           server.Client(),
		EndpointRewrites: map[string]string{legacyMetadataHost: serverURL.Host},
	})

	entries, err := service.Watchlist(context.Background())
	if err != nil {
		t.Fatalf("expected rewrite to reach the test server: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries via rewritten host, got %d", len(entries))
	}
}

func TestDefaultEndpointRewrites(t *testing.T) {
	rewrites := DefaultEndpointRewrites()
	if got := rewrites[legacyMetadataHost]; got != discoverHost {
		t.Errorf("expected legacy host mapped to %s, got %s", discoverHost, got)
	}
}
