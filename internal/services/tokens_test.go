package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/watchsync/internal/models"
)

// fakeAccount is a minimal in-package AccountService double; the shared mocks
// live in a package that imports this one.
type fakeAccount struct {
	user *AccountUser
	err  error
}

func (f *fakeAccount) User(ctx context.Context) (*AccountUser, error) {
	return f.user, f.err
}

func (f *fakeAccount) Watchlist(ctx context.Context) ([]models.WatchlistEntry, error) {
	return nil, nil
}

func (f *fakeAccount) RemoveFromWatchlist(ctx context.Context, entry models.WatchlistEntry) error {
	return nil
}

func (f *fakeAccount) Token() string { return "fake-token" }

func statusPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "token_status.json")
}

func TestTokenManager_Status(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		manager := NewTokenManager(statusPath(t), testLogger())
		if status := manager.Status(); len(status) != 0 {
			t.Errorf("expected empty status map, got %v", status)
		}
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := statusPath(t)
		if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
			t.Fatalf("failed to write corrupt file: %v", err)
		}
		manager := NewTokenManager(path, testLogger())
		if status := manager.Status(); len(status) != 0 {
			t.Errorf("expected empty status map from corrupt file, got %v", status)
		}
	})
}

func TestTokenManager_Update(t *testing.T) {
	path := statusPath(t)
	manager := NewTokenManager(path, testLogger())

	if err := manager.Update("alice", true, "2027-01-01", "alice"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := manager.Update("bob", false, "", ""); err != nil {
		t.Fatalf("second update failed: %v", err)
	}

	status := manager.Status()
	if len(status) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(status))
	}
	if !status["alice"].Valid || status["alice"].Username != "alice" {
		t.Errorf("unexpected alice status: %+v", status["alice"])
	}
	if status["bob"].Valid {
		t.Errorf("expected bob invalid, got %+v", status["bob"])
	}
	if status["alice"].LastChecked.IsZero() {
		t.Error("expected LastChecked to be stamped")
	}
}

func TestTokenManager_UpdateCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token_status.json")
	manager := NewTokenManager(path, testLogger())

	if err := manager.Update("alice", true, "", "alice"); err != nil {
		t.Fatalf("expected update to create parent directory: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected status file at %s: %v", path, err)
	}
}

func TestTokenManager_Validate(t *testing.T) {
	t.Run("valid token persisted", func(t *testing.T) {
		path := statusPath(t)
		manager := NewTokenManager(path, testLogger())
		account := &fakeAccount{user: &AccountUser{Username: "alice", ExpiresAt: "2027-01-01"}}

		status := manager.Validate(context.Background(), "alice", account)
		if !status.Valid || status.Username != "alice" {
			t.Errorf("unexpected status: %+v", status)
		}

		persisted := manager.Status()["alice"]
		if !persisted.Valid || persisted.ExpiresAt != "2027-01-01" {
			t.Errorf("unexpected persisted status: %+v", persisted)
		}
	})

	t.Run("invalid token recorded not returned", func(t *testing.T) {
		path := statusPath(t)
		manager := NewTokenManager(path, testLogger())
		account := &fakeAccount{err: os.ErrPermission}

		status := manager.Validate(context.Background(), "bob", account)
		if status.Valid {
			t.Error("expected invalid status")
		}

		persisted := manager.Status()["bob"]
		if persisted.Valid {
			t.Errorf("expected failure persisted, got %+v", persisted)
		}
		if persisted.LastChecked.IsZero() {
			t.Error("expected LastChecked stamped on failure")
		}
	})
}
