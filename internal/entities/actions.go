package entities

import (
	"maps"

	"github.com/justestif/go-spotify-stats/internal/store"
)

// Action is implemented by every action this module reduces.
type Action interface {
	store.Action
	entitiesAction()
}

// AddTracks merges tracks into the cache, replacing entries with the same id.
type AddTracks struct {
	ByID map[string]Track
}

// AddArtists merges artists into the cache, replacing entries with the same id.
type AddArtists struct {
	ByID map[string]Artist
}

// SetUserDisplayName sets one display-name entry. A nil Name records a
// pending or confirmed-empty lookup.
type SetUserDisplayName struct {
	Username string
	Name     *string
}

// Reset clears the whole module.
type Reset struct{}

func (AddTracks) ActionType() string          { return "entities/addTracks" }
func (AddArtists) ActionType() string         { return "entities/addArtists" }
func (SetUserDisplayName) ActionType() string { return "entities/setUserDisplayName" }
func (Reset) ActionType() string              { return "entities/reset" }

func (AddTracks) entitiesAction()          {}
func (AddArtists) entitiesAction()         {}
func (SetUserDisplayName) entitiesAction() {}
func (Reset) entitiesAction()              {}

// Name wraps a resolved display name for SetUserDisplayName.
func Name(s string) *string {
	return &s
}

// Reduce applies an entities action. Maps are copied on write so that
// previously published states are never mutated; untouched maps keep their
// identity.
func Reduce(s State, a Action) (State, error) {
	switch a := a.(type) {
	case AddTracks:
		if len(a.ByID) > 0 {
			s.Tracks = merged(s.Tracks, a.ByID)
		}
		return s, nil
	case AddArtists:
		if len(a.ByID) > 0 {
			s.Artists = merged(s.Artists, a.ByID)
		}
		return s, nil
	case SetUserDisplayName:
		var name *string
		if a.Name != nil {
			name = Name(*a.Name)
		}
		s.UserDisplayNames = merged(s.UserDisplayNames, map[string]*string{a.Username: name})
		return s, nil
	case Reset:
		return NewState(), nil
	default:
		return s, store.UnknownAction(a)
	}
}

func merged[V any](existing, updates map[string]V) map[string]V {
	out := make(map[string]V, len(existing)+len(updates))
	maps.Copy(out, existing)
	maps.Copy(out, updates)
	return out
}
