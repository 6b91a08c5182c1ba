// Package persist warms the entity cache from durable storage and writes it
// back. Pending display-name markers are never persisted.
package persist

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/justestif/go-spotify-stats/internal/db"
	"github.com/justestif/go-spotify-stats/internal/entities"
	"github.com/justestif/go-spotify-stats/internal/state"
)

// TrackStore persists tracks.
type TrackStore interface {
	UpsertBatch(ctx context.Context, tracks []entities.Track) error
	All(ctx context.Context) ([]entities.Track, error)
}

// ArtistStore persists artists.
type ArtistStore interface {
	UpsertBatch(ctx context.Context, artists []entities.Artist) error
	All(ctx context.Context) ([]entities.Artist, error)
}

// DisplayNameStore persists resolved display names. Get returns
// db.ErrNotFound for a username that was never stored.
type DisplayNameStore interface {
	Get(ctx context.Context, username string) (string, error)
	UpsertBatch(ctx context.Context, names map[string]string) error
	All(ctx context.Context) (map[string]string, error)
}

// Repos groups the stores backing the cache.
type Repos struct {
	Tracks       TrackStore
	Artists      ArtistStore
	DisplayNames DisplayNameStore
}

// Counts reports how many records were moved.
type Counts struct {
	Tracks       int
	Artists      int
	DisplayNames int
}

// Load reads every stored entity and dispatches it into s in one batch.
func Load(ctx context.Context, s *state.Store, r Repos) (Counts, error) {
	tracks, err := r.Tracks.All(ctx)
	if err != nil {
		return Counts{}, fmt.Errorf("loading tracks: %w", err)
	}
	artists, err := r.Artists.All(ctx)
	if err != nil {
		return Counts{}, fmt.Errorf("loading artists: %w", err)
	}
	names, err := r.DisplayNames.All(ctx)
	if err != nil {
		return Counts{}, fmt.Errorf("loading display names: %w", err)
	}

	tracksByID := make(map[string]entities.Track, len(tracks))
	for _, t := range tracks {
		tracksByID[t.ID] = t
	}
	artistsByID := make(map[string]entities.Artist, len(artists))
	for _, a := range artists {
		artistsByID[a.ID] = a
	}

	batch := state.Batch{
		entities.AddTracks{ByID: tracksByID},
		entities.AddArtists{ByID: artistsByID},
	}
	for _, username := range slices.Sorted(maps.Keys(names)) {
		batch = append(batch, entities.SetUserDisplayName{
			Username: username,
			Name:     entities.Name(names[username]),
		})
	}
	if err := s.Dispatch(batch); err != nil {
		return Counts{}, fmt.Errorf("hydrating store: %w", err)
	}

	return Counts{Tracks: len(tracksByID), Artists: len(artistsByID), DisplayNames: len(names)}, nil
}

// Save writes the entity slice of st. Only resolved display names are saved.
func Save(ctx context.Context, st entities.State, r Repos) (Counts, error) {
	tracks := slices.Collect(maps.Values(st.Tracks))
	if err := r.Tracks.UpsertBatch(ctx, tracks); err != nil {
		return Counts{}, fmt.Errorf("saving tracks: %w", err)
	}

	artists := slices.Collect(maps.Values(st.Artists))
	if err := r.Artists.UpsertBatch(ctx, artists); err != nil {
		return Counts{}, fmt.Errorf("saving artists: %w", err)
	}

	names := make(map[string]string, len(st.UserDisplayNames))
	for username, name := range st.UserDisplayNames {
		if name != nil {
			names[username] = *name
		}
	}
	if err := r.DisplayNames.UpsertBatch(ctx, names); err != nil {
		return Counts{}, fmt.Errorf("saving display names: %w", err)
	}

	return Counts{Tracks: len(tracks), Artists: len(artists), DisplayNames: len(names)}, nil
}

// NameFetcher resolves a username to a display name, nil meaning none.
type NameFetcher interface {
	DisplayName(ctx context.Context, username string) (*string, error)
}

// Names reads display names through the warm cache. Stored names win, so a
// name saved by another process since Load is not fetched again. Names
// found upstream are written back by Save.
type Names struct {
	store DisplayNameStore
	next  NameFetcher
}

// NewNames creates a read-through fetcher over store and next.
func NewNames(store DisplayNameStore, next NameFetcher) *Names {
	return &Names{store: store, next: next}
}

// DisplayName implements fetch.DisplayNameFetcher.
func (n *Names) DisplayName(ctx context.Context, username string) (*string, error) {
	name, err := n.store.Get(ctx, username)
	switch {
	case err == nil:
		return &name, nil
	case !errors.Is(err, db.ErrNotFound):
		return nil, fmt.Errorf("reading stored display name: %w", err)
	}
	return n.next.DisplayName(ctx, username)
}
