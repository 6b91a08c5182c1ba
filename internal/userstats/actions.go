package userstats

import (
	"maps"
	"time"

	"github.com/justestif/go-spotify-stats/internal/store"
)

// Action is implemented by every action this module reduces.
type Action interface {
	store.Action
	userStatsAction()
}

// SetUserSnapshot stores the ranking snapshot for a user.
type SetUserSnapshot struct {
	Username       string
	LastUpdateTime *time.Time
	Tracks         TimeframeBuckets
	Artists        TimeframeBuckets
}

// SetArtistStats stores one artist's stats for a user.
type SetArtistStats struct {
	Username          string
	ArtistID          string
	TopTracks         []TrackScore
	PopularityHistory []PopularitySnapshot
}

// SetGenreHistory stores a user's genre popularity history.
type SetGenreHistory struct {
	Username string
	History  GenreHistory
}

// SetGenreStats stores one genre's stats for a user.
type SetGenreStats struct {
	Username string
	Genre    string
	Stats    GenreStats
}

// ClearUserStats drops everything cached for a user.
type ClearUserStats struct {
	Username string
}

// Reset clears the whole module.
type Reset struct{}

func (SetUserSnapshot) ActionType() string { return "userStats/setUserSnapshot" }
func (SetArtistStats) ActionType() string  { return "userStats/setArtistStats" }
func (SetGenreHistory) ActionType() string { return "userStats/setGenreHistory" }
func (SetGenreStats) ActionType() string   { return "userStats/setGenreStats" }
func (ClearUserStats) ActionType() string  { return "userStats/clearUserStats" }
func (Reset) ActionType() string           { return "userStats/reset" }

func (SetUserSnapshot) userStatsAction() {}
func (SetArtistStats) userStatsAction()  {}
func (SetGenreHistory) userStatsAction() {}
func (SetGenreStats) userStatsAction()   {}
func (ClearUserStats) userStatsAction()  {}
func (Reset) userStatsAction()           {}

// Reduce applies a userstats action. Each Set* replaces only the slice it
// names; sibling fields and sibling map entries are carried over.
func Reduce(s State, a Action) (State, error) {
	switch a := a.(type) {
	case SetUserSnapshot:
		return s.update(a.Username, func(u UserStats) UserStats {
			u.LastUpdateTime = a.LastUpdateTime
			u.HasSnapshot = true
			u.Tracks = a.Tracks
			u.Artists = a.Artists
			return u
		}), nil
	case SetArtistStats:
		return s.update(a.Username, func(u UserStats) UserStats {
			u.ArtistStats = with(u.ArtistStats, a.ArtistID, ArtistStats{
				TopTracks:         a.TopTracks,
				PopularityHistory: a.PopularityHistory,
			})
			return u
		}), nil
	case SetGenreHistory:
		return s.update(a.Username, func(u UserStats) UserStats {
			history := a.History
			u.GenreHistory = &history
			return u
		}), nil
	case SetGenreStats:
		return s.update(a.Username, func(u UserStats) UserStats {
			u.GenreStats = with(u.GenreStats, a.Genre, a.Stats)
			return u
		}), nil
	case ClearUserStats:
		if _, ok := s[a.Username]; !ok {
			return s, nil
		}
		next := maps.Clone(s)
		delete(next, a.Username)
		return next, nil
	case Reset:
		return NewState(), nil
	default:
		return s, store.UnknownAction(a)
	}
}

// update returns a copy of s with username's record replaced by fn's result.
// Missing records start from NewUserStats.
func (s State) update(username string, fn func(UserStats) UserStats) State {
	u, ok := s[username]
	if !ok {
		u = NewUserStats()
	}
	next := make(State, len(s)+1)
	maps.Copy(next, s)
	next[username] = fn(u)
	return next
}

func with[V any](m map[string]V, key string, v V) map[string]V {
	out := make(map[string]V, len(m)+1)
	maps.Copy(out, m)
	out[key] = v
	return out
}
