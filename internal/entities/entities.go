// Package entities is the normalized cache of tracks, artists and user
// display names, keyed by their natural ids.
package entities

// Image is a sized artwork URL.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// ArtistRef is the artist summary embedded in a track.
type ArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Track is a cached Spotify track.
type Track struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	PreviewURL  string      `json:"previewUrl,omitempty"`
	AlbumImages []Image     `json:"albumImages"`
	Artists     []ArtistRef `json:"artists"`
}

// Artist is a cached Spotify artist. Popularity is nil when unknown.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Images     []Image  `json:"images"`
	Popularity *int     `json:"popularity,omitempty"`
}

// Status is the lifecycle of a display-name entry.
type Status int

const (
	// StatusUnrequested means no lookup was ever started for the username.
	StatusUnrequested Status = iota
	// StatusAbsent means a lookup is in flight or confirmed there is no name.
	// Consumers must not start another lookup.
	StatusAbsent
	// StatusResolved means Name holds the display name.
	StatusResolved
)

func (s Status) String() string {
	switch s {
	case StatusAbsent:
		return "absent"
	case StatusResolved:
		return "resolved"
	default:
		return "unrequested"
	}
}

// DisplayName is a read-side view of one UserDisplayNames entry.
type DisplayName struct {
	Name   string `json:"name,omitempty"`
	Status Status `json:"-"`
}

// Settled reports whether a lookup was ever started. Callers use it to
// decide whether to fetch.
func (d DisplayName) Settled() bool {
	return d.Status != StatusUnrequested
}

// State is the entity cache slice of the store.
type State struct {
	Tracks  map[string]Track  `json:"tracks"`
	Artists map[string]Artist `json:"artists"`
	// UserDisplayNames: key absent = never requested, nil = pending or no
	// name, non-nil = resolved.
	UserDisplayNames map[string]*string `json:"userDisplayNames"`
}

// NewState returns an empty entity cache.
func NewState() State {
	return State{
		Tracks:           map[string]Track{},
		Artists:          map[string]Artist{},
		UserDisplayNames: map[string]*string{},
	}
}

// Track returns the cached track for id.
func (s State) Track(id string) (Track, bool) {
	t, ok := s.Tracks[id]
	return t, ok
}

// Artist returns the cached artist for id.
func (s State) Artist(id string) (Artist, bool) {
	a, ok := s.Artists[id]
	return a, ok
}

// DisplayName returns the display-name entry for username.
func (s State) DisplayName(username string) DisplayName {
	name, ok := s.UserDisplayNames[username]
	switch {
	case !ok:
		return DisplayName{Status: StatusUnrequested}
	case name == nil:
		return DisplayName{Status: StatusAbsent}
	default:
		return DisplayName{Name: *name, Status: StatusResolved}
	}
}
