// package formatter provides functions to export sync run results to various formats (JSON, CSV, Markdown)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/watchsync/internal/tasks"
)

// ExportToJSON converts a run result to indented JSON.
func ExportToJSON(result *tasks.SyncRunResult) ([]byte, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode run result: %w", err)
	}
	return data, nil
}

// ExportToCSV converts a run result's wanted items to CSV format with columns: IMDB ID, Media Type, Source
func ExportToCSV(result *tasks.SyncRunResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"IMDB ID", "Media Type", "Source"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, item := range result.Wanted {
		record := []string{item.IMDBID, item.MediaType, item.Source}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a run result to a Markdown summary with a wanted-items table.
func ExportToMarkdown(result *tasks.SyncRunResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Watchlist sync: %s\n\n", result.Username))
	buf.WriteString(fmt.Sprintf("- Total resolved: %d (%d cached, %d fetched)\n",
		result.Fetch.TotalItems, result.Fetch.CacheHits, result.Fetch.FetchedCount))
	buf.WriteString(fmt.Sprintf("- Wanted: %d\n", result.Processing.Processed))
	buf.WriteString(fmt.Sprintf("- Skipped: %d\n", result.Processing.Skipped))
	buf.WriteString(fmt.Sprintf("- Removed: %d\n", result.Processing.Removed))
	buf.WriteString(fmt.Sprintf("- Collected, kept: %d\n\n", result.Processing.CollectedKept))

	if len(result.Wanted) > 0 {
		buf.WriteString("| IMDB ID | Type | Source |\n")
		buf.WriteString("|---------|------|--------|\n")
		for _, item := range result.Wanted {
			buf.WriteString(fmt.Sprintf("| %s | %s | %s |\n", item.IMDBID, item.MediaType, item.Source))
		}
	}

	return buf.Bytes(), nil
}
