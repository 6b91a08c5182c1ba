package statsapi

import (
	"context"
	"fmt"
	"time"

	"github.com/justestif/go-spotify-stats/internal/entities"
	"github.com/justestif/go-spotify-stats/internal/userstats"
)

// UserSnapshot is a user's ranking snapshot with the entities it references.
type UserSnapshot struct {
	LastUpdateTime *time.Time
	TrackIDs       userstats.TimeframeBuckets
	ArtistIDs      userstats.TimeframeBuckets
	Tracks         map[string]entities.Track
	Artists        map[string]entities.Artist
}

// ArtistStats is a user's stats for one artist with the entities it
// references. Artist is nil when the response carried no artist object.
type ArtistStats struct {
	Artist     *entities.Artist
	TracksByID map[string]entities.Track
	Stats      userstats.ArtistStats
}

// GenreStats is a user's stats for one genre with the artists it references.
type GenreStats struct {
	ArtistsByID map[string]entities.Artist
	Stats       userstats.GenreStats
}

// Comparison is the shared listening of two users.
type Comparison struct {
	TrackIDs  []string
	ArtistIDs []string
	Tracks    map[string]entities.Track
	Artists   map[string]entities.Artist
}

// UserStats fetches GET /stats/{username}.
func (c *Client) UserStats(ctx context.Context, username string) (*UserSnapshot, error) {
	var resp userStatsResponse
	found, err := c.get(ctx, c.endpoint("stats", username), &resp)
	if err != nil || !found {
		return nil, wrap("fetching user stats", err)
	}

	snap := &UserSnapshot{
		TrackIDs: userstats.TimeframeBuckets{
			Short:  trackIDs(resp.Tracks.Short),
			Medium: trackIDs(resp.Tracks.Medium),
			Long:   trackIDs(resp.Tracks.Long),
		},
		ArtistIDs: userstats.TimeframeBuckets{
			Short:  artistIDs(resp.Artists.Short),
			Medium: artistIDs(resp.Artists.Medium),
			Long:   artistIDs(resp.Artists.Long),
		},
		Tracks:  tracksByID(resp.Tracks.Short, resp.Tracks.Medium, resp.Tracks.Long),
		Artists: artistsByID(resp.Artists.Short, resp.Artists.Medium, resp.Artists.Long),
	}
	if resp.LastUpdateTime != nil {
		t := time.Time(*resp.LastUpdateTime)
		snap.LastUpdateTime = &t
	}
	return snap, nil
}

// ArtistStats fetches GET /stats/{username}/artist/{artistID}.
func (c *Client) ArtistStats(ctx context.Context, username, artistID string) (*ArtistStats, error) {
	var resp artistStatsResponse
	found, err := c.get(ctx, c.endpoint("stats", username, "artist", artistID), &resp)
	if err != nil || !found {
		return nil, wrap("fetching artist stats", err)
	}

	tracks := make(map[string]entities.Track, len(resp.TracksByID))
	for id, t := range resp.TracksByID {
		tracks[id] = convertTrack(t)
	}

	topTracks := make([]userstats.TrackScore, len(resp.TopTracks))
	for i, s := range resp.TopTracks {
		topTracks[i] = userstats.TrackScore{TrackID: s.ID, Score: s.Score}
	}

	var artist *entities.Artist
	if resp.Artist != nil && resp.Artist.ID != "" {
		a := convertArtist(*resp.Artist)
		artist = &a
	}

	return &ArtistStats{
		Artist:     artist,
		TracksByID: tracks,
		Stats: userstats.ArtistStats{
			TopTracks:         topTracks,
			PopularityHistory: popularityHistory(resp.PopularityHistory),
		},
	}, nil
}

// GenreHistory fetches GET /stats/{username}/genre_history.
func (c *Client) GenreHistory(ctx context.Context, username string) (*userstats.GenreHistory, error) {
	var resp genreHistoryResponse
	found, err := c.get(ctx, c.endpoint("stats", username, "genre_history"), &resp)
	if err != nil || !found {
		return nil, wrap("fetching genre history", err)
	}

	byGenre := resp.HistoryByGenre
	if byGenre == nil {
		byGenre = map[string][]*float64{}
	}
	return &userstats.GenreHistory{
		PopularityByGenre: byGenre,
		Timestamps:        timestamps(resp.Timestamps),
	}, nil
}

// GenreStats fetches GET /stats/{username}/genre/{genre}.
func (c *Client) GenreStats(ctx context.Context, username, genre string) (*GenreStats, error) {
	var resp genreStatsResponse
	found, err := c.get(ctx, c.endpoint("stats", username, "genre", genre), &resp)
	if err != nil || !found {
		return nil, wrap("fetching genre stats", err)
	}
	if len(resp.Timestamps) != len(resp.PopularityHistory) {
		return nil, fmt.Errorf("fetching genre stats: %d timestamps for %d popularity entries",
			len(resp.Timestamps), len(resp.PopularityHistory))
	}

	artists := make(map[string]entities.Artist, len(resp.ArtistsByID))
	for id, a := range resp.ArtistsByID {
		artists[id] = convertArtist(a)
	}

	topArtists := make([]userstats.ArtistScore, len(resp.TopArtists))
	for i, s := range resp.TopArtists {
		topArtists[i] = userstats.ArtistScore{ArtistID: s.ID, Score: s.Score}
	}

	history := make([]userstats.PopularitySnapshot, len(resp.Timestamps))
	for i, ts := range resp.Timestamps {
		history[i] = userstats.PopularitySnapshot{
			Timestamp:               time.Time(ts),
			PopularityPerTimePeriod: resp.PopularityHistory[i],
		}
	}

	return &GenreStats{
		ArtistsByID: artists,
		Stats: userstats.GenreStats{
			TopArtists:        topArtists,
			PopularityHistory: history,
		},
	}, nil
}

// Compare fetches GET /compare/{user1}/{user2}.
func (c *Client) Compare(ctx context.Context, user1, user2 string) (*Comparison, error) {
	var resp compareResponse
	found, err := c.get(ctx, c.endpoint("compare", user1, user2), &resp)
	if err != nil || !found {
		return nil, wrap("fetching comparison", err)
	}

	return &Comparison{
		TrackIDs:  trackIDs(resp.Tracks),
		ArtistIDs: artistIDs(resp.Artists),
		Tracks:    tracksByID(resp.Tracks),
		Artists:   artistsByID(resp.Artists),
	}, nil
}

// DisplayName fetches GET /display_name/{username}. A nil result means the
// user has no display name or does not exist.
func (c *Client) DisplayName(ctx context.Context, username string) (*string, error) {
	var name *string
	found, err := c.get(ctx, c.endpoint("display_name", username), &name)
	if err != nil || !found {
		return nil, wrap("fetching display name", err)
	}
	if name != nil && *name == "" {
		return nil, nil
	}
	return name, nil
}

// wrap annotates err, passing nil through so that a 404 stays a nil error.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
