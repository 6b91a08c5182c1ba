package db

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/go-spotify-stats/internal/entities"
)

// TrackRepository handles track database operations.
type TrackRepository struct {
	pool *pgxpool.Pool
}

type trackColumns struct {
	ids, names, previewURLs, images, artists []string
}

func trackRows(tracks []entities.Track) (trackColumns, error) {
	cols := trackColumns{
		ids:         make([]string, len(tracks)),
		names:       make([]string, len(tracks)),
		previewURLs: make([]string, len(tracks)),
		images:      make([]string, len(tracks)),
		artists:     make([]string, len(tracks)),
	}
	for i, t := range tracks {
		images, err := jsonText(t.AlbumImages)
		if err != nil {
			return cols, fmt.Errorf("encoding images of track %s: %w", t.ID, err)
		}
		artists, err := jsonText(t.Artists)
		if err != nil {
			return cols, fmt.Errorf("encoding artists of track %s: %w", t.ID, err)
		}
		cols.ids[i] = t.ID
		cols.names[i] = t.Name
		cols.previewURLs[i] = t.PreviewURL
		cols.images[i] = images
		cols.artists[i] = artists
	}
	return cols, nil
}

// UpsertBatch inserts or updates multiple tracks.
func (r *TrackRepository) UpsertBatch(ctx context.Context, tracks []entities.Track) error {
	if len(tracks) == 0 {
		return nil
	}

	query := `
		INSERT INTO tracks (id, name, preview_url, album_images, artists, updated_at)
		SELECT id, name, preview_url, album_images, artists, NOW()
		FROM unnest($1::text[], $2::text[], $3::text[], $4::jsonb[], $5::jsonb[])
			AS t(id, name, preview_url, album_images, artists)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			preview_url = EXCLUDED.preview_url,
			album_images = EXCLUDED.album_images,
			artists = EXCLUDED.artists,
			updated_at = EXCLUDED.updated_at
	`

	cols, err := trackRows(tracks)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, query, cols.ids, cols.names, cols.previewURLs, cols.images, cols.artists)
	if err != nil {
		return fmt.Errorf("batch upserting tracks: %w", err)
	}
	return nil
}

// All retrieves every stored track.
func (r *TrackRepository) All(ctx context.Context) ([]entities.Track, error) {
	query := `SELECT id, name, preview_url, album_images, artists FROM tracks ORDER BY id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying tracks: %w", err)
	}
	defer rows.Close()

	var tracks []entities.Track
	for rows.Next() {
		var track entities.Track
		var images, artists []byte
		if err := rows.Scan(&track.ID, &track.Name, &track.PreviewURL, &images, &artists); err != nil {
			return nil, fmt.Errorf("scanning track: %w", err)
		}
		if err := json.Unmarshal(images, &track.AlbumImages); err != nil {
			return nil, fmt.Errorf("decoding images of track %s: %w", track.ID, err)
		}
		if err := json.Unmarshal(artists, &track.Artists); err != nil {
			return nil, fmt.Errorf("decoding artists of track %s: %w", track.ID, err)
		}
		tracks = append(tracks, track)
	}
	return tracks, rows.Err()
}

// jsonText encodes v for a jsonb parameter, mapping nil slices to "[]".
func jsonText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return "[]", nil
	}
	return string(b), nil
}
