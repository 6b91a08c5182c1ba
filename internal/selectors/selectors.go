// Package selectors derives read-side views from the store state.
package selectors

import (
	"context"

	"github.com/justestif/go-spotify-stats/internal/entities"
	"github.com/justestif/go-spotify-stats/internal/location"
	"github.com/justestif/go-spotify-stats/internal/state"
	"github.com/justestif/go-spotify-stats/internal/userstats"
)

// DisplayNameRequester starts a display-name lookup at most once per
// username and reports the entry as it stands.
type DisplayNameRequester interface {
	RequestDisplayName(ctx context.Context, username string) entities.DisplayName
}

// CurrentUser is the user addressed by the current location. Username is
// empty when nothing addresses a user.
type CurrentUser struct {
	Username    string
	DisplayName entities.DisplayName
}

// Resolver resolves the current user against a store.
type Resolver struct {
	store *state.Store
	names DisplayNameRequester
}

// NewResolver creates a Resolver.
func NewResolver(s *state.Store, names DisplayNameRequester) *Resolver {
	return &Resolver{store: s, names: names}
}

// CurrentUser resolves the user from explicit, or from loc when explicit is
// empty, and requests its display name.
func (r *Resolver) CurrentUser(ctx context.Context, loc location.Location, explicit string) CurrentUser {
	username := explicit
	if username == "" {
		u, ok := location.Username(loc)
		if !ok {
			return CurrentUser{DisplayName: entities.DisplayName{Status: entities.StatusAbsent}}
		}
		username = u
	}

	return CurrentUser{
		Username:    username,
		DisplayName: r.names.RequestDisplayName(ctx, username),
	}
}

// Current resolves the user from the location held in the store.
func (r *Resolver) Current(ctx context.Context, explicit string) CurrentUser {
	return r.CurrentUser(ctx, r.store.GetState().Location, explicit)
}

// TopTracks joins a user's ranked track ids for tf to cached tracks. Ids
// missing from the entity cache are skipped.
func TopTracks(st state.State, username string, tf userstats.Timeframe) []entities.Track {
	u, ok := st.UserStats.User(username)
	if !ok {
		return nil
	}
	ids := u.Tracks.Get(tf)
	out := make([]entities.Track, 0, len(ids))
	for _, id := range ids {
		if t, ok := st.Entities.Track(id); ok {
			out = append(out, t)
		}
	}
	return out
}

// TopArtists joins a user's ranked artist ids for tf to cached artists.
func TopArtists(st state.State, username string, tf userstats.Timeframe) []entities.Artist {
	u, ok := st.UserStats.User(username)
	if !ok {
		return nil
	}
	ids := u.Artists.Get(tf)
	out := make([]entities.Artist, 0, len(ids))
	for _, id := range ids {
		if a, ok := st.Entities.Artist(id); ok {
			out = append(out, a)
		}
	}
	return out
}

// ScoredTrack is a cached track with the user's score for it.
type ScoredTrack struct {
	Track entities.Track `json:"track"`
	Score float64        `json:"score"`
}

// ArtistDetail is an artist page: the artist, the user's top tracks by it
// and its popularity history.
type ArtistDetail struct {
	Artist            entities.Artist                `json:"artist"`
	TopTracks         []ScoredTrack                  `json:"topTracks"`
	PopularityHistory []userstats.PopularitySnapshot `json:"popularityHistory"`
}

// ArtistDetailFor builds the artist page for username. It reports false
// until both the artist and the user's stats for it are cached.
func ArtistDetailFor(st state.State, username, artistID string) (ArtistDetail, bool) {
	artist, ok := st.Entities.Artist(artistID)
	if !ok {
		return ArtistDetail{}, false
	}
	stats, ok := st.UserStats.ArtistStats(username, artistID)
	if !ok {
		return ArtistDetail{}, false
	}

	tracks := make([]ScoredTrack, 0, len(stats.TopTracks))
	for _, s := range stats.TopTracks {
		if t, ok := st.Entities.Track(s.TrackID); ok {
			tracks = append(tracks, ScoredTrack{Track: t, Score: s.Score})
		}
	}
	return ArtistDetail{
		Artist:            artist,
		TopTracks:         tracks,
		PopularityHistory: stats.PopularityHistory,
	}, true
}
