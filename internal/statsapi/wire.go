package statsapi

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-spotify-stats/internal/entities"
	"github.com/justestif/go-spotify-stats/internal/userstats"
)

// scoredID decodes an [id, score] tuple.
type scoredID struct {
	ID    string
	Score float64
}

func (s *scoredID) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decoding scored id: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("scored id: want 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &s.ID); err != nil {
		return fmt.Errorf("scored id: decoding id: %w", err)
	}
	if err := json.Unmarshal(raw[1], &s.Score); err != nil {
		return fmt.Errorf("scored id: decoding score: %w", err)
	}
	return nil
}

// timestamp accepts RFC 3339 and zone-less ISO 8601 values (read as UTC).
type timestamp time.Time

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func (t *timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("decoding timestamp: %w", err)
	}
	parsed, err := parseTimestamp(s)
	if err != nil {
		return err
	}
	*t = timestamp(parsed)
	return nil
}

func timestamps(ts []timestamp) []time.Time {
	out := make([]time.Time, len(ts))
	for i, t := range ts {
		out[i] = time.Time(t)
	}
	return out
}

// rankings decodes a [short, medium, long] tuple. Each element may be null.
type rankings [3]*int

func (r *rankings) UnmarshalJSON(b []byte) error {
	var raw []*int
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decoding rankings: %w", err)
	}
	if len(raw) != len(r) {
		return fmt.Errorf("rankings: want %d elements, got %d", len(r), len(raw))
	}
	copy(r[:], raw)
	return nil
}

// popularityEntry decodes [timestamp, [short, medium, long]].
type popularityEntry struct {
	Timestamp  timestamp
	Popularity rankings
}

func (p *popularityEntry) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decoding popularity entry: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("popularity entry: want 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Timestamp); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[1], &p.Popularity); err != nil {
		return fmt.Errorf("popularity entry: %w", err)
	}
	return nil
}

type timeframeTracks struct {
	Short  []spotify.FullTrack `json:"short"`
	Medium []spotify.FullTrack `json:"medium"`
	Long   []spotify.FullTrack `json:"long"`
}

type timeframeArtists struct {
	Short  []spotify.FullArtist `json:"short"`
	Medium []spotify.FullArtist `json:"medium"`
	Long   []spotify.FullArtist `json:"long"`
}

type userStatsResponse struct {
	LastUpdateTime *timestamp       `json:"last_update_time"`
	Tracks         timeframeTracks  `json:"tracks"`
	Artists        timeframeArtists `json:"artists"`
}

type artistStatsResponse struct {
	Artist            *spotify.FullArtist          `json:"artist"`
	TopTracks         []scoredID                   `json:"top_tracks"`
	PopularityHistory []popularityEntry            `json:"popularity_history"`
	TracksByID        map[string]spotify.FullTrack `json:"tracks_by_id"`
}

type genreHistoryResponse struct {
	Timestamps     []timestamp           `json:"timestamps"`
	HistoryByGenre map[string][]*float64 `json:"history_by_genre"`
}

type genreStatsResponse struct {
	ArtistsByID       map[string]spotify.FullArtist `json:"artists_by_id"`
	TopArtists        []scoredID                    `json:"top_artists"`
	Timestamps        []timestamp                   `json:"timestamps"`
	PopularityHistory []rankings                    `json:"popularity_history"`
}

type compareResponse struct {
	Artists []spotify.FullArtist `json:"artists"`
	Tracks  []spotify.FullTrack  `json:"tracks"`
}

// convertTrack converts a Spotify track object into a cache entity.
func convertTrack(t spotify.FullTrack) entities.Track {
	artists := make([]entities.ArtistRef, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = entities.ArtistRef{ID: string(a.ID), Name: a.Name}
	}

	return entities.Track{
		ID:          string(t.ID),
		Name:        t.Name,
		PreviewURL:  t.PreviewURL,
		AlbumImages: convertImages(t.Album.Images),
		Artists:     artists,
	}
}

// convertArtist converts a Spotify artist object into a cache entity.
func convertArtist(a spotify.FullArtist) entities.Artist {
	popularity := int(a.Popularity)
	genres := a.Genres
	if genres == nil {
		genres = []string{}
	}

	return entities.Artist{
		ID:         string(a.ID),
		Name:       a.Name,
		Genres:     genres,
		Images:     convertImages(a.Images),
		Popularity: &popularity,
	}
}

func convertImages(images []spotify.Image) []entities.Image {
	out := make([]entities.Image, len(images))
	for i, img := range images {
		out[i] = entities.Image{URL: img.URL, Width: int(img.Width), Height: int(img.Height)}
	}
	return out
}

func tracksByID(groups ...[]spotify.FullTrack) map[string]entities.Track {
	out := make(map[string]entities.Track)
	for _, g := range groups {
		for _, t := range g {
			out[string(t.ID)] = convertTrack(t)
		}
	}
	return out
}

func artistsByID(groups ...[]spotify.FullArtist) map[string]entities.Artist {
	out := make(map[string]entities.Artist)
	for _, g := range groups {
		for _, a := range g {
			out[string(a.ID)] = convertArtist(a)
		}
	}
	return out
}

func trackIDs(tracks []spotify.FullTrack) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = string(t.ID)
	}
	return ids
}

func artistIDs(artists []spotify.FullArtist) []string {
	ids := make([]string, len(artists))
	for i, a := range artists {
		ids[i] = string(a.ID)
	}
	return ids
}

func popularityHistory(entries []popularityEntry) []userstats.PopularitySnapshot {
	out := make([]userstats.PopularitySnapshot, len(entries))
	for i, e := range entries {
		out[i] = userstats.PopularitySnapshot{
			Timestamp:               time.Time(e.Timestamp),
			PopularityPerTimePeriod: e.Popularity,
		}
	}
	return out
}
