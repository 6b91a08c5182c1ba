package db

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/go-spotify-stats/internal/entities"
)

// ArtistRepository handles artist database operations.
type ArtistRepository struct {
	pool *pgxpool.Pool
}

type artistColumns struct {
	ids, names, genres, images []string
	popularity                 []*int
}

func artistRows(artists []entities.Artist) (artistColumns, error) {
	cols := artistColumns{
		ids:        make([]string, len(artists)),
		names:      make([]string, len(artists)),
		genres:     make([]string, len(artists)),
		images:     make([]string, len(artists)),
		popularity: make([]*int, len(artists)),
	}
	for i, a := range artists {
		genres, err := jsonText(a.Genres)
		if err != nil {
			return cols, fmt.Errorf("encoding genres of artist %s: %w", a.ID, err)
		}
		images, err := jsonText(a.Images)
		if err != nil {
			return cols, fmt.Errorf("encoding images of artist %s: %w", a.ID, err)
		}
		cols.ids[i] = a.ID
		cols.names[i] = a.Name
		cols.genres[i] = genres
		cols.images[i] = images
		cols.popularity[i] = a.Popularity
	}
	return cols, nil
}

// UpsertBatch inserts or updates multiple artists.
func (r *ArtistRepository) UpsertBatch(ctx context.Context, artists []entities.Artist) error {
	if len(artists) == 0 {
		return nil
	}

	query := `
		INSERT INTO artists (id, name, genres, images, popularity, updated_at)
		SELECT id, name, genres, images, popularity, NOW()
		FROM unnest($1::text[], $2::text[], $3::jsonb[], $4::jsonb[], $5::int[])
			AS a(id, name, genres, images, popularity)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			genres = EXCLUDED.genres,
			images = EXCLUDED.images,
			popularity = EXCLUDED.popularity,
			updated_at = EXCLUDED.updated_at
	`

	cols, err := artistRows(artists)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, query, cols.ids, cols.names, cols.genres, cols.images, cols.popularity)
	if err != nil {
		return fmt.Errorf("batch upserting artists: %w", err)
	}
	return nil
}

// All retrieves every stored artist.
func (r *ArtistRepository) All(ctx context.Context) ([]entities.Artist, error) {
	query := `SELECT id, name, genres, images, popularity FROM artists ORDER BY id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying artists: %w", err)
	}
	defer rows.Close()

	var artists []entities.Artist
	for rows.Next() {
		var artist entities.Artist
		var genres, images []byte
		if err := rows.Scan(&artist.ID, &artist.Name, &genres, &images, &artist.Popularity); err != nil {
			return nil, fmt.Errorf("scanning artist: %w", err)
		}
		if err := json.Unmarshal(genres, &artist.Genres); err != nil {
			return nil, fmt.Errorf("decoding genres of artist %s: %w", artist.ID, err)
		}
		if err := json.Unmarshal(images, &artist.Images); err != nil {
			return nil, fmt.Errorf("decoding images of artist %s: %w", artist.ID, err)
		}
		artists = append(artists, artist)
	}
	return artists, rows.Err()
}
