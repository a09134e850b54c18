package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

// TokenStatus records the last known validation state of one account token.
type TokenStatus struct {
	Valid       bool      `json:"valid"`
	LastChecked time.Time `json:"last_checked"`
	ExpiresAt   string    `json:"expires_at,omitempty"`
	Username    string    `json:"username,omitempty"`
}

// TokenManager persists per-account token validation status to a JSON file.
// A corrupt or missing status file degrades to an empty status map.
type TokenManager struct {
	path   string
	logger *log.Logger
}

// NewTokenManager creates a TokenManager backed by the given file path.
func NewTokenManager(path string, logger *log.Logger) *TokenManager {
	return &TokenManager{path: path, logger: logger}
}

// Status returns the persisted status for all known accounts.
func (m *TokenManager) Status() map[string]TokenStatus {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("failed to read token status file", "path", m.path, "err", err)
		}
		return map[string]TokenStatus{}
	}

	var status map[string]TokenStatus
	if err := json.Unmarshal(data, &status); err != nil {
		m.logger.Warn("token status file corrupted, starting fresh", "path", m.path, "err", err)
		return map[string]TokenStatus{}
	}
	return status
}

// Update records the validation result for one account and persists the file.
func (m *TokenManager) Update(name string, valid bool, expiresAt, username string) error {
	status := m.Status()
	status[name] = TokenStatus{
		Valid:       valid,
		LastChecked: time.Now(),
		ExpiresAt:   expiresAt,
		Username:    username,
	}

	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create token status directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token status: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write token status: %w", err)
	}
	return nil
}

// Validate pings the account service and records the outcome under name.
// A failed validation is recorded, not returned as an error.
func (m *TokenManager) Validate(ctx context.Context, name string, account AccountService) TokenStatus {
	user, err := account.User(ctx)
	if err != nil {
		m.logger.Error("token validation failed", "account", name, "err", err)
		if err := m.Update(name, false, "", ""); err != nil {
			m.logger.Error("failed to persist token status", "account", name, "err", err)
		}
		return TokenStatus{Valid: false, LastChecked: time.Now()}
	}

	m.logger.Info("token valid", "account", name, "username", user.Username)
	if err := m.Update(name, true, user.ExpiresAt, user.Username); err != nil {
		m.logger.Error("failed to persist token status", "account", name, "err", err)
	}
	return TokenStatus{Valid: true, LastChecked: time.Now(), ExpiresAt: user.ExpiresAt, Username: user.Username}
}
