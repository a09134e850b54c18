package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Plex       PlexConfig       `toml:"plex"`
	Cache      CacheConfig      `toml:"cache"`
	Fetch      FetchConfig      `toml:"fetch"`
	Processing ProcessingConfig `toml:"processing"`
	Trakt      TraktConfig      `toml:"trakt"`
	Database   DatabaseConfig   `toml:"database"`
}

// PlexConfig contains the main account token plus any additional accounts whose
// watchlists should be synced.
type PlexConfig struct {
	Token    string          `toml:"token"`
	Username string          `toml:"username"`
	BaseURL  string          `toml:"base_url"`
	Accounts []AccountConfig `toml:"accounts"`
}

// AccountConfig identifies an additional watchlist account.
type AccountConfig struct {
	Username string `toml:"username"`
	Token    string `toml:"token"`
}

// CacheConfig controls the persistent detail cache.
type CacheConfig struct {
	Directory  string `toml:"directory"`
	TTLDays    int    `toml:"ttl_days"`
	MaxEntries int    `toml:"max_entries"`
}

// TTL returns the configured entry lifetime as a [time.Duration].
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLDays) * 24 * time.Hour
}

// FetchConfig controls the concurrent detail fetcher.
type FetchConfig struct {
	Concurrency    int `toml:"concurrency"`
	BatchThreshold int `toml:"batch_threshold"`
	BatchSize      int `toml:"batch_size"`
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Timeout returns the per-request timeout as a [time.Duration].
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ProcessingConfig controls the keep/remove decision engine.
type ProcessingConfig struct {
	RemovalEnabled bool `toml:"removal_enabled"`
	KeepSeries     bool `toml:"keep_series"`
}

// TraktConfig contains metadata-service credentials.
type TraktConfig struct {
	ClientID string `toml:"client_id"`
	BaseURL  string `toml:"base_url"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
