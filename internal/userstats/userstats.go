// Package userstats caches per-user ranking snapshots, per-artist stats and
// genre popularity history.
package userstats

import "time"

// Timeframe is one of the ranking periods.
type Timeframe int

// Ranking periods, in the order popularity tuples use.
const (
	Short Timeframe = iota
	Medium
	Long
)

// Timeframes lists every ranking period in tuple order.
var Timeframes = [...]Timeframe{Short, Medium, Long}

func (t Timeframe) String() string {
	switch t {
	case Short:
		return "short"
	case Medium:
		return "medium"
	case Long:
		return "long"
	default:
		return "unknown"
	}
}

// ParseTimeframe parses short, medium or long.
func ParseTimeframe(s string) (Timeframe, bool) {
	for _, tf := range Timeframes {
		if tf.String() == s {
			return tf, true
		}
	}
	return 0, false
}

// TimeframeBuckets holds ordered ids per ranking period.
type TimeframeBuckets struct {
	Short  []string `json:"short"`
	Medium []string `json:"medium"`
	Long   []string `json:"long"`
}

// Get returns the bucket for tf.
func (b TimeframeBuckets) Get(tf Timeframe) []string {
	switch tf {
	case Short:
		return b.Short
	case Medium:
		return b.Medium
	default:
		return b.Long
	}
}

// TrackScore is a ranked track within an artist's stats.
type TrackScore struct {
	TrackID string  `json:"trackId"`
	Score   float64 `json:"score"`
}

// ArtistScore is a ranked artist within a genre's stats.
type ArtistScore struct {
	ArtistID string  `json:"artistId"`
	Score    float64 `json:"score"`
}

// PopularitySnapshot records rankings at one point in time, indexed by
// Timeframe. Lower is more popular; nil means unranked in that period.
type PopularitySnapshot struct {
	Timestamp               time.Time `json:"timestamp"`
	PopularityPerTimePeriod [3]*int   `json:"popularityPerTimePeriod"`
}

// ArtistStats is a user's history with one artist.
type ArtistStats struct {
	TopTracks         []TrackScore         `json:"topTracks"`
	PopularityHistory []PopularitySnapshot `json:"popularityHistory"`
}

// GenreHistory is the popularity of each genre at every timestamp.
type GenreHistory struct {
	PopularityByGenre map[string][]*float64 `json:"popularityByGenre"`
	Timestamps        []time.Time           `json:"timestamps"`
}

// GenreStats is a user's history with one genre.
type GenreStats struct {
	TopArtists        []ArtistScore        `json:"topArtists"`
	PopularityHistory []PopularitySnapshot `json:"popularityHistory"`
}

// UserStats is everything cached for a single user.
type UserStats struct {
	LastUpdateTime *time.Time `json:"lastUpdateTime,omitempty"`
	// HasSnapshot is set once a ranking snapshot has been stored.
	HasSnapshot  bool                   `json:"hasSnapshot"`
	Tracks       TimeframeBuckets       `json:"tracks"`
	Artists      TimeframeBuckets       `json:"artists"`
	ArtistStats  map[string]ArtistStats `json:"artistStats"`
	GenreHistory *GenreHistory          `json:"genreHistory,omitempty"`
	GenreStats   map[string]GenreStats  `json:"genreStats"`
}

// NewUserStats returns a fully defaulted record.
func NewUserStats() UserStats {
	return UserStats{
		ArtistStats: map[string]ArtistStats{},
		GenreStats:  map[string]GenreStats{},
	}
}

// State maps usernames to their cached stats.
type State map[string]UserStats

// NewState returns an empty module state.
func NewState() State {
	return State{}
}

// User returns the record for username.
func (s State) User(username string) (UserStats, bool) {
	u, ok := s[username]
	return u, ok
}

// ArtistStats returns the cached stats for (username, artistID).
func (s State) ArtistStats(username, artistID string) (ArtistStats, bool) {
	u, ok := s[username]
	if !ok {
		return ArtistStats{}, false
	}
	a, ok := u.ArtistStats[artistID]
	return a, ok
}

// GenreStats returns the cached stats for (username, genre).
func (s State) GenreStats(username, genre string) (GenreStats, bool) {
	u, ok := s[username]
	if !ok {
		return GenreStats{}, false
	}
	g, ok := u.GenreStats[genre]
	return g, ok
}
