package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/watchsync/internal/shared"
)

// SQLite caps bound parameters per statement; stay comfortably inside it.
const presenceChunkSize = 500

// MediaItem is one row of the local media library.
type MediaItem struct {
	ID        string
	IMDBID    string
	Title     string
	MediaType string
	State     string // e.g. "Collected", "Wanted"
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MediaRepository provides presence lookups and basic persistence for the
// media_items table.
type MediaRepository struct {
	db *sql.DB
}

// NewMediaRepository creates a new MediaRepository with the given database connection
func NewMediaRepository(db *sql.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// BatchPresence returns the library state for every given IMDB ID in a single
// logical round-trip. IDs not present in the library are omitted from the map;
// callers treat omission as "Not Found". Large ID sets are chunked to respect
// SQLite's bound-parameter limit.
func (r *MediaRepository) BatchPresence(ctx context.Context, imdbIDs []string) (map[string]string, error) {
	presence := make(map[string]string, len(imdbIDs))

	for start := 0; start < len(imdbIDs); start += presenceChunkSize {
		end := min(start+presenceChunkSize, len(imdbIDs))
		chunk := imdbIDs[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		query := fmt.Sprintf("SELECT imdb_id, state FROM media_items WHERE imdb_id IN (%s)", placeholders)

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query presence: %w", err)
		}
		for rows.Next() {
			var imdbID, state string
			if err := rows.Scan(&imdbID, &state); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan presence row: %w", err)
			}
			presence[imdbID] = state
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to read presence rows: %w", err)
		}
		rows.Close()
	}

	return presence, nil
}

// Upsert inserts a media item or updates its state and metadata if the IMDB ID
// is already present.
func (r *MediaRepository) Upsert(ctx context.Context, item MediaItem) error {
	if item.IMDBID == "" {
		return fmt.Errorf("%w: imdb id is required", shared.ErrInvalidInput)
	}
	if item.ID == "" {
		item.ID = shared.RunID()
	}

	now := time.Now()
	query := `
		INSERT INTO media_items (id, imdb_id, title, media_type, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (imdb_id) DO UPDATE SET
			title = excluded.title,
			media_type = excluded.media_type,
			state = excluded.state,
			updated_at = excluded.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, item.ID, item.IMDBID, item.Title, item.MediaType, item.State, now, now); err != nil {
		return fmt.Errorf("failed to upsert media item: %w", err)
	}
	return nil
}

// Get retrieves a media item by IMDB ID.
func (r *MediaRepository) Get(ctx context.Context, imdbID string) (*MediaItem, error) {
	query := `
		SELECT id, imdb_id, title, media_type, state, created_at, updated_at
		FROM media_items
		WHERE imdb_id = ?
	`

	var item MediaItem
	err := r.db.QueryRowContext(ctx, query, imdbID).Scan(
		&item.ID, &item.IMDBID, &item.Title, &item.MediaType, &item.State, &item.CreatedAt, &item.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media item: %w", err)
	}
	return &item, nil
}

// List retrieves media items, optionally filtered by state.
func (r *MediaRepository) List(ctx context.Context, state string) ([]MediaItem, error) {
	query := `
		SELECT id, imdb_id, title, media_type, state, created_at, updated_at
		FROM media_items
	`
	var args []any
	if state != "" {
		query += " WHERE state = ?"
		args = append(args, state)
	}
	query += " ORDER BY created_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list media items: %w", err)
	}
	defer rows.Close()

	var items []MediaItem
	for rows.Next() {
		var item MediaItem
		if err := rows.Scan(&item.ID, &item.IMDBID, &item.Title, &item.MediaType, &item.State, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan media item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read media items: %w", err)
	}
	return items, nil
}
