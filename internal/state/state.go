// Package state assembles the application state tree from its modules and
// builds the store that owns it.
package state

import (
	"github.com/rs/zerolog"

	"github.com/justestif/go-spotify-stats/internal/entities"
	"github.com/justestif/go-spotify-stats/internal/location"
	"github.com/justestif/go-spotify-stats/internal/store"
	"github.com/justestif/go-spotify-stats/internal/userstats"
)

// State is the global state tree.
type State struct {
	Entities  entities.State    `json:"entities"`
	UserStats userstats.State   `json:"userStats"`
	Location  location.Location `json:"location"`
}

// Store is the store type used throughout the application.
type Store = store.Store[State]

// Initial returns the empty state tree.
func Initial() State {
	return State{
		Entities:  entities.NewState(),
		UserStats: userstats.NewState(),
	}
}

// Reduce routes an action to the module that owns it. The location slice is
// owned by the location package and only mounted here.
func Reduce(s State, a store.Action) (State, error) {
	switch a := a.(type) {
	case Batch:
		next := s
		for _, inner := range a {
			var err error
			if next, err = Reduce(next, inner); err != nil {
				return s, err
			}
		}
		return next, nil
	case entities.Action:
		next, err := entities.Reduce(s.Entities, a)
		if err != nil {
			return s, err
		}
		s.Entities = next
	case userstats.Action:
		next, err := userstats.Reduce(s.UserStats, a)
		if err != nil {
			return s, err
		}
		s.UserStats = next
	case location.Action:
		next, err := location.Reduce(s.Location, a)
		if err != nil {
			return s, err
		}
		s.Location = next
	default:
		return s, store.UnknownAction(a)
	}
	return s, nil
}

// NewStore creates a store holding the initial tree.
func NewStore(log zerolog.Logger) *Store {
	return store.New(Initial(), Reduce, store.WithLogger(log))
}

// Batch applies several actions as one dispatch. They are reduced in order
// and committed only if every one succeeds.
type Batch []store.Action

func (Batch) ActionType() string { return "batch" }
