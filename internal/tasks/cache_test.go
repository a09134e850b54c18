package tasks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/watchsync/internal/models"
	tu "github.com/desertthunder/watchsync/internal/testing"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func cachePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "detail_cache.json")
}

// writeCacheFile writes a cache snapshot directly, bypassing Set's CachedAt
// stamping so tests can control entry age.
func writeCacheFile(t *testing.T, path string, entries map[string]models.CacheEntry) {
	t.Helper()
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		t.Fatalf("failed to encode cache fixture: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write cache fixture: %v", err)
	}
}

func TestDetailCache_SetGet(t *testing.T) {
	cache := NewDetailCache(cachePath(t), 0, 0, testLogger())

	entry := models.CacheEntry{IMDBID: "tt0133093", MediaType: "movie"}
	cache.Set("plex://movie/abc", entry)

	got, ok := cache.Get("plex://movie/abc")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.IMDBID != "tt0133093" {
		t.Errorf("expected imdb id tt0133093, got %s", got.IMDBID)
	}
	if got.CachedAt.IsZero() {
		t.Error("expected Set to stamp CachedAt")
	}

	if _, ok := cache.Get("plex://movie/unknown"); ok {
		t.Error("expected miss for unknown fingerprint")
	}
}

func TestDetailCache_EmptyFingerprint(t *testing.T) {
	cache := NewDetailCache(cachePath(t), 0, 0, testLogger())

	cache.Set("", models.CacheEntry{IMDBID: "tt0000001"})
	if cache.Stats().Size != 0 {
		t.Error("expected Set with empty fingerprint to be a no-op")
	}
	if _, ok := cache.Get(""); ok {
		t.Error("expected Get with empty fingerprint to miss")
	}
}

func TestDetailCache_Expiry(t *testing.T) {
	path := cachePath(t)
	writeCacheFile(t, path, map[string]models.CacheEntry{
		"plex://movie/old":       {IMDBID: "tt0000001", CachedAt: time.Now().Add(-40 * 24 * time.Hour)},
		"plex://movie/new":       {IMDBID: "tt0000002", CachedAt: time.Now().Add(-time.Hour)},
		"plex://movie/unstamped": {IMDBID: "tt0000003"},
	})

	cache := NewDetailCache(path, 30*24*time.Hour, 0, testLogger())
	if size := cache.Stats().Size; size != 3 {
		t.Fatalf("expected 3 loaded entries, got %d", size)
	}

	if _, ok := cache.Get("plex://movie/old"); ok {
		t.Error("expected expired entry to miss")
	}
	if _, ok := cache.Get("plex://movie/unstamped"); ok {
		t.Error("expected entry without timestamp to miss")
	}
	if _, ok := cache.Get("plex://movie/new"); !ok {
		t.Error("expected fresh entry to hit")
	}

	// Expired entries are purged on lookup, not just skipped.
	if size := cache.Stats().Size; size != 1 {
		t.Errorf("expected 1 entry after expiry purge, got %d", size)
	}
}

func TestDetailCache_CorruptFile(t *testing.T) {
	path := cachePath(t)
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to write corrupt file: %v", err)
	}

	cache := NewDetailCache(path, 0, 0, testLogger())
	if size := cache.Stats().Size; size != 0 {
		t.Errorf("expected empty cache from corrupt file, got %d entries", size)
	}

	cache.Set("plex://movie/abc", models.CacheEntry{IMDBID: "tt0000001"})
	if err := cache.Commit(); err != nil {
		t.Fatalf("expected commit over corrupt file to succeed: %v", err)
	}
}

func TestDetailCache_Eviction(t *testing.T) {
	path := cachePath(t)
	entries := map[string]models.CacheEntry{}
	for i := 0; i < 5; i++ {
		entries[fmt.Sprintf("plex://movie/%d", i)] = models.CacheEntry{
			IMDBID:   fmt.Sprintf("tt000000%d", i),
			CachedAt: time.Now().Add(-time.Duration(5-i) * time.Hour),
		}
	}
	writeCacheFile(t, path, entries)

	cache := NewDetailCache(path, 0, 5, testLogger())
	cache.Set("plex://movie/new", models.CacheEntry{IMDBID: "tt9999999"})

	if size := cache.Stats().Size; size != 5 {
		t.Errorf("expected size to stay at capacity, got %d", size)
	}
	// The oldest entry made room for the new one.
	if _, ok := cache.Get("plex://movie/0"); ok {
		t.Error("expected oldest entry to be evicted")
	}
	if _, ok := cache.Get("plex://movie/new"); !ok {
		t.Error("expected new entry to be present")
	}
}

func TestDetailCache_CommitAndReload(t *testing.T) {
	path := cachePath(t)

	cache := NewDetailCache(path, 0, 0, testLogger())
	cache.Set("plex://movie/abc", models.CacheEntry{IMDBID: "tt0133093", MediaType: "movie"})
	cache.Set("plex://show/def", models.CacheEntry{TMDBID: "1396", MediaType: "show", Err: "ParseError"})
	if err := cache.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	reloaded := NewDetailCache(path, 0, 0, testLogger())
	if size := reloaded.Stats().Size; size != 2 {
		t.Fatalf("expected 2 persisted entries, got %d", size)
	}
	got, ok := reloaded.Get("plex://show/def")
	if !ok {
		t.Fatal("expected persisted entry to hit")
	}
	if got.Err != "ParseError" {
		t.Errorf("expected failed resolution to survive persistence, got err %q", got.Err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("expected temporary snapshot to be renamed away")
	}
}

func TestDetailCache_CommitCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "detail_cache.json")
	cache := NewDetailCache(path, 0, 0, testLogger())
	cache.Set("plex://movie/abc", models.CacheEntry{IMDBID: "tt0000001"})

	if err := cache.Commit(); err != nil {
		t.Fatalf("expected commit to create parent directories: %v", err)
	}
	tu.AssertFileExists(t, path)

	if !strings.Contains(tu.MustReadFile(t, path), "tt0000001") {
		t.Error("expected snapshot to contain the stored entry")
	}
}

func TestDetailCache_Clear(t *testing.T) {
	cache := NewDetailCache(cachePath(t), 0, 0, testLogger())
	cache.Set("plex://movie/abc", models.CacheEntry{IMDBID: "tt0000001"})

	cache.Clear()
	if size := cache.Stats().Size; size != 0 {
		t.Errorf("expected empty cache after clear, got %d entries", size)
	}
}

func TestDetailCache_Stats(t *testing.T) {
	cache := NewDetailCache(cachePath(t), 0, 0, testLogger())
	cache.Set("plex://movie/abc", models.CacheEntry{IMDBID: "tt0000001"})

	cache.Get("plex://movie/abc")
	cache.Get("plex://movie/abc")
	cache.Get("plex://movie/missing")

	stats := cache.Stats()
	if stats.Hits != 2 {
		t.Errorf("expected 2 hits, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
	if stats.HitRate < 0.66 || stats.HitRate > 0.67 {
		t.Errorf("expected hit rate ~0.67, got %f", stats.HitRate)
	}

	empty := NewDetailCache(cachePath(t), 0, 0, testLogger())
	if rate := empty.Stats().HitRate; rate != 0 {
		t.Errorf("expected zero hit rate with no lookups, got %f", rate)
	}
}
