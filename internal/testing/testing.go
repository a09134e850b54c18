// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/desertthunder/watchsync/internal/models"
	"github.com/desertthunder/watchsync/internal/services"
)

// MockAccountService is a test double for [services.AccountService]
type MockAccountService struct {
	Username    string
	Entries     []models.WatchlistEntry
	UserErr     error
	ListErr     error
	RemoveErr   error
	Removed     []models.WatchlistEntry // entries RemoveFromWatchlist was called with
	RemoveCalls int
}

func (m *MockAccountService) User(ctx context.Context) (*services.AccountUser, error) {
	if m.UserErr != nil {
		return nil, m.UserErr
	}
	return &services.AccountUser{Username: m.Username}, nil
}

func (m *MockAccountService) Watchlist(ctx context.Context) ([]models.WatchlistEntry, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Entries, nil
}

func (m *MockAccountService) RemoveFromWatchlist(ctx context.Context, entry models.WatchlistEntry) error {
	m.RemoveCalls++
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	m.Removed = append(m.Removed, entry)
	return nil
}

func (m *MockAccountService) Token() string { return "mock-token" }

// MockMetadataService is a test double for [services.MetadataService]
type MockMetadataService struct {
	Conversions map[string]string // tmdb id -> imdb id
	ConvertErr  error
	Statuses    map[string]string // imdb id -> status
	StatusErr   error
	StatusCalls int
}

func (m *MockMetadataService) TMDBToIMDB(ctx context.Context, tmdbID, mediaType string) (string, string, error) {
	if m.ConvertErr != nil {
		return "", "", m.ConvertErr
	}
	if imdbID, ok := m.Conversions[tmdbID]; ok {
		return imdbID, "mock", nil
	}
	return "", "", errors.New("no mapping found")
}

func (m *MockMetadataService) ShowStatus(ctx context.Context, imdbID string) (string, error) {
	m.StatusCalls++
	if m.StatusErr != nil {
		return "", m.StatusErr
	}
	return m.Statuses[imdbID], nil
}

// MockPresence is a test double for the processor's presence collaborator
type MockPresence struct {
	States    map[string]string
	Err       error
	CallCount int
	LastIDs   []string
}

func (m *MockPresence) BatchPresence(ctx context.Context, imdbIDs []string) (map[string]string, error) {
	m.CallCount++
	m.LastIDs = imdbIDs
	if m.Err != nil {
		return nil, m.Err
	}
	states := map[string]string{}
	for _, id := range imdbIDs {
		if state, ok := m.States[id]; ok {
			states[id] = state
		}
	}
	return states, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

var _ io.ReadCloser = (*FCloser)(nil)

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
