package ui

import (
	"fmt"
	"strings"

	"github.com/desertthunder/watchsync/internal/tasks"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// RenderRunSummary renders a styled per-account summary of a sync run.
func RenderRunSummary(result *tasks.SyncRunResult) string {
	var b strings.Builder

	b.WriteString(styles.Title(fmt.Sprintf("Watchlist sync: %s", result.Username)))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Resolved:  %d (%d cached, %d fetched)\n",
		result.Fetch.TotalItems, result.Fetch.CacheHits, result.Fetch.FetchedCount))
	b.WriteString(fmt.Sprintf("  Wanted:    %s\n", styles.OK(fmt.Sprintf("%d", result.Processing.Processed))))
	b.WriteString(fmt.Sprintf("  Removed:   %d\n", result.Processing.Removed))
	b.WriteString(fmt.Sprintf("  Kept:      %d\n", result.Processing.CollectedKept))
	if result.Processing.Skipped > 0 {
		b.WriteString(fmt.Sprintf("  Skipped:   %s\n", styles.Warn(fmt.Sprintf("%d", result.Processing.Skipped))))
	}
	b.WriteString(styles.Help(fmt.Sprintf("  run %s", result.RunID)))
	b.WriteString("\n")

	return b.String()
}

// RenderCacheStats renders styled cache statistics for one account.
func RenderCacheStats(username string, stats tasks.CacheStats) string {
	var b strings.Builder

	b.WriteString(styles.Title(fmt.Sprintf("Detail cache: %s", username)))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Entries:   %d\n", stats.Size))
	b.WriteString(fmt.Sprintf("  Hits:      %d\n", stats.Hits))
	b.WriteString(fmt.Sprintf("  Misses:    %d\n", stats.Misses))
	b.WriteString(fmt.Sprintf("  Hit rate:  %.1f%%\n", stats.HitRate*100))

	return b.String()
}
