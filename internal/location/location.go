// Package location holds the router-location slice of the store and
// extracts the addressed username from it.
package location

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/justestif/go-spotify-stats/internal/store"
)

// Location is the current navigable location.
type Location struct {
	Path string `json:"path"`
}

// Action is implemented by every action this slice reduces.
type Action interface {
	store.Action
	locationAction()
}

// Navigated records a route change.
type Navigated struct {
	Path string
}

func (Navigated) ActionType() string { return "location/navigated" }
func (Navigated) locationAction()    {}

// Reduce applies a location action.
func Reduce(l Location, a Action) (Location, error) {
	switch a := a.(type) {
	case Navigated:
		return Location{Path: a.Path}, nil
	default:
		return l, store.UnknownAction(a)
	}
}

// Route patterns that address a user. Stats routes are checked first.
var (
	statsRoutes   = routes("/stats/{username}", "/stats/{username}/*")
	compareRoutes = routes("/compare/{username}/{other}", "/compare/{username}/{other}/*")
)

func routes(patterns ...string) chi.Router {
	r := chi.NewRouter()
	noop := func(http.ResponseWriter, *http.Request) {}
	for _, p := range patterns {
		r.Get(p, noop)
	}
	return r
}

// Username extracts the username addressed by loc: the stats profile pattern
// first, then the comparison pattern (first user). It reports false when
// neither matches.
func Username(loc Location) (string, bool) {
	for _, r := range []chi.Router{statsRoutes, compareRoutes} {
		rctx := chi.NewRouteContext()
		if !r.Match(rctx, http.MethodGet, loc.Path) {
			continue
		}
		raw := rctx.URLParam("username")
		username, err := url.PathUnescape(raw)
		if err != nil {
			username = raw
		}
		if username == "" {
			continue
		}
		return username, true
	}
	return "", false
}
