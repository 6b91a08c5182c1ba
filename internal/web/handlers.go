package web

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/justestif/go-spotify-stats/internal/entities"
	"github.com/justestif/go-spotify-stats/internal/fetch"
	"github.com/justestif/go-spotify-stats/internal/galaxy"
	"github.com/justestif/go-spotify-stats/internal/location"
	"github.com/justestif/go-spotify-stats/internal/selectors"
	"github.com/justestif/go-spotify-stats/internal/store"
	"github.com/justestif/go-spotify-stats/internal/userstats"
)

// Handlers contains the HTTP handlers.
type Handlers struct {
	coord    *fetch.Coordinator
	resolver *selectors.Resolver
	log      zerolog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(coord *fetch.Coordinator, resolver *selectors.Resolver, log zerolog.Logger) *Handlers {
	return &Handlers{coord: coord, resolver: resolver, log: log}
}

// State dumps the whole state tree (GET /debug/state).
func (h *Handlers) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.coord.Store().GetState())
}

// Reset clears one module (POST /debug/reset/{module}).
func (h *Handlers) Reset(w http.ResponseWriter, r *http.Request) {
	var action store.Action
	switch module := chi.URLParam(r, "module"); module {
	case "entities":
		action = entities.Reset{}
	case "userstats":
		action = userstats.Reset{}
	default:
		writeError(w, http.StatusNotFound, "unknown module "+strconv.Quote(module))
		return
	}

	if err := h.coord.Store().Dispatch(action); err != nil {
		h.internalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type currentUserResponse struct {
	Username    *string `json:"username"`
	DisplayName *string `json:"displayName"`
	Status      string  `json:"status"`
}

// CurrentUser resolves the addressed user (GET /api/current-user). A path
// parameter is resolved as given and also recorded as the current location;
// without one the stored location is used.
func (h *Handlers) CurrentUser(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var cur selectors.CurrentUser
	if q.Has("path") {
		loc := location.Location{Path: q.Get("path")}
		if err := h.coord.Store().Dispatch(location.Navigated{Path: loc.Path}); err != nil {
			h.internalError(w, r, err)
			return
		}
		cur = h.resolver.CurrentUser(r.Context(), loc, q.Get("username"))
	} else {
		cur = h.resolver.Current(r.Context(), q.Get("username"))
	}

	resp := currentUserResponse{Status: cur.DisplayName.Status.String()}
	if cur.Username != "" {
		resp.Username = &cur.Username
	}
	if cur.DisplayName.Status == entities.StatusResolved {
		resp.DisplayName = &cur.DisplayName.Name
	}
	writeJSON(w, http.StatusOK, resp)
}

type timeframeTracks struct {
	Short  []entities.Track `json:"short"`
	Medium []entities.Track `json:"medium"`
	Long   []entities.Track `json:"long"`
}

type timeframeArtists struct {
	Short  []entities.Artist `json:"short"`
	Medium []entities.Artist `json:"medium"`
	Long   []entities.Artist `json:"long"`
}

type userStatsResponse struct {
	LastUpdateTime *time.Time       `json:"lastUpdateTime"`
	Tracks         timeframeTracks  `json:"tracks"`
	Artists        timeframeArtists `json:"artists"`
}

type timeframeStatsResponse struct {
	LastUpdateTime *time.Time        `json:"lastUpdateTime"`
	Timeframe      string            `json:"timeframe"`
	Tracks         []entities.Track  `json:"tracks"`
	Artists        []entities.Artist `json:"artists"`
}

// UserStats serves a user's top tracks and artists (GET /api/stats/{username}).
// A timeframe query narrows the response to one ranking period.
func (h *Handlers) UserStats(w http.ResponseWriter, r *http.Request) {
	username := param(r, "username")

	var (
		tf       userstats.Timeframe
		narrowed bool
	)
	if raw := r.URL.Query().Get("timeframe"); raw != "" {
		var ok bool
		if tf, ok = userstats.ParseTimeframe(raw); !ok {
			writeError(w, http.StatusBadRequest, "invalid timeframe: must be short, medium or long")
			return
		}
		narrowed = true
	}

	stats, err := h.coord.UserStats(r.Context(), username)
	if err != nil {
		h.upstreamError(w, r, err)
		return
	}
	if stats == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	st := h.coord.Store().GetState()
	if narrowed {
		writeJSON(w, http.StatusOK, timeframeStatsResponse{
			LastUpdateTime: stats.LastUpdateTime,
			Timeframe:      tf.String(),
			Tracks:         selectors.TopTracks(st, username, tf),
			Artists:        selectors.TopArtists(st, username, tf),
		})
		return
	}
	writeJSON(w, http.StatusOK, userStatsResponse{
		LastUpdateTime: stats.LastUpdateTime,
		Tracks: timeframeTracks{
			Short:  selectors.TopTracks(st, username, userstats.Short),
			Medium: selectors.TopTracks(st, username, userstats.Medium),
			Long:   selectors.TopTracks(st, username, userstats.Long),
		},
		Artists: timeframeArtists{
			Short:  selectors.TopArtists(st, username, userstats.Short),
			Medium: selectors.TopArtists(st, username, userstats.Medium),
			Long:   selectors.TopArtists(st, username, userstats.Long),
		},
	})
}

// ArtistStats serves an artist page (GET /api/stats/{username}/artist/{artistID}).
func (h *Handlers) ArtistStats(w http.ResponseWriter, r *http.Request) {
	username, artistID := param(r, "username"), param(r, "artistID")
	stats, err := h.coord.ArtistStats(r.Context(), username, artistID)
	if err != nil {
		h.upstreamError(w, r, err)
		return
	}
	if stats == nil {
		writeError(w, http.StatusNotFound, "artist stats not found")
		return
	}

	detail, ok := selectors.ArtistDetailFor(h.coord.Store().GetState(), username, artistID)
	if !ok {
		writeError(w, http.StatusNotFound, "artist not cached")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// GenreHistory serves genre popularity over time (GET /api/stats/{username}/genre_history).
func (h *Handlers) GenreHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.coord.GenreHistory(r.Context(), param(r, "username"))
	if err != nil {
		h.upstreamError(w, r, err)
		return
	}
	if history == nil {
		writeError(w, http.StatusNotFound, "genre history not found")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

type scoredArtist struct {
	Artist entities.Artist `json:"artist"`
	Score  float64         `json:"score"`
}

type genreStatsResponse struct {
	Genre             string                         `json:"genre"`
	TopArtists        []scoredArtist                 `json:"topArtists"`
	PopularityHistory []userstats.PopularitySnapshot `json:"popularityHistory"`
}

// GenreStats serves a genre page (GET /api/stats/{username}/genre/{genre}).
func (h *Handlers) GenreStats(w http.ResponseWriter, r *http.Request) {
	genre := param(r, "genre")
	stats, err := h.coord.GenreStats(r.Context(), param(r, "username"), genre)
	if err != nil {
		h.upstreamError(w, r, err)
		return
	}
	if stats == nil {
		writeError(w, http.StatusNotFound, "genre stats not found")
		return
	}

	st := h.coord.Store().GetState()
	artists := make([]scoredArtist, 0, len(stats.TopArtists))
	for _, s := range stats.TopArtists {
		if a, ok := st.Entities.Artist(s.ArtistID); ok {
			artists = append(artists, scoredArtist{Artist: a, Score: s.Score})
		}
	}
	writeJSON(w, http.StatusOK, genreStatsResponse{
		Genre:             genre,
		TopArtists:        artists,
		PopularityHistory: stats.PopularityHistory,
	})
}

type compareResponse struct {
	Tracks  []entities.Track  `json:"tracks"`
	Artists []entities.Artist `json:"artists"`
}

// Compare serves shared listening (GET /api/compare/{user1}/{user2}).
func (h *Handlers) Compare(w http.ResponseWriter, r *http.Request) {
	cmp, err := h.coord.Compare(r.Context(), param(r, "user1"), param(r, "user2"))
	if err != nil {
		h.upstreamError(w, r, err)
		return
	}
	if cmp == nil {
		writeError(w, http.StatusNotFound, "comparison not found")
		return
	}

	resp := compareResponse{
		Tracks:  make([]entities.Track, 0, len(cmp.TrackIDs)),
		Artists: make([]entities.Artist, 0, len(cmp.ArtistIDs)),
	}
	for _, id := range cmp.TrackIDs {
		resp.Tracks = append(resp.Tracks, cmp.Tracks[id])
	}
	for _, id := range cmp.ArtistIDs {
		resp.Artists = append(resp.Artists, cmp.Artists[id])
	}
	writeJSON(w, http.StatusOK, resp)
}

type galaxyResponse struct {
	Clusters []galaxy.Cluster `json:"clusters"`
	Outliers []string         `json:"outliers"`
}

// Galaxy clusters every cached artist (GET /api/galaxy?k=&min=).
func (h *Handlers) Galaxy(w http.ResponseWriter, r *http.Request) {
	cfg := galaxy.DefaultConfig()
	for name, dst := range map[string]*int{"k": &cfg.NumClusters, "min": &cfg.MinClusterSize} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid "+name+": must be a positive integer")
			return
		}
		*dst = n
	}

	clusters, outliers, err := galaxy.Build(galaxy.Artists(h.coord.Store().GetState().Entities), cfg)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if clusters == nil {
		clusters = []galaxy.Cluster{}
	}
	if outliers == nil {
		outliers = []string{}
	}
	writeJSON(w, http.StatusOK, galaxyResponse{Clusters: clusters, Outliers: outliers})
}

// param returns a decoded route parameter.
func param(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func (h *Handlers) upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Error().Err(err).Str("path", r.URL.Path).Msg("upstream fetch failed")
	writeError(w, http.StatusBadGateway, "upstream request failed")
}

func (h *Handlers) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
