// Package fetch coordinates loading remote data into the store.
//
// Display names use the pending-marker protocol: the first caller for a
// username writes a nil entry before awaiting the collaborator, so any later
// caller sees the lookup as settled and does not fetch again. A failed lookup
// leaves the marker in place; the name stays absent until the entities
// module is reset.
//
// Stats resources are fetched at most once per key at a time. Concurrent
// callers share one in-flight request, and a 404 from the collaborator
// resolves to a nil result without touching the store.
package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/justestif/go-spotify-stats/internal/entities"
	"github.com/justestif/go-spotify-stats/internal/metrics"
	"github.com/justestif/go-spotify-stats/internal/state"
	"github.com/justestif/go-spotify-stats/internal/statsapi"
	"github.com/justestif/go-spotify-stats/internal/store"
	"github.com/justestif/go-spotify-stats/internal/userstats"
)

const defaultPrefetchConcurrency = 4

// Resource label values.
const (
	ResourceDisplayName  = "display_name"
	ResourceUserStats    = "user_stats"
	ResourceArtistStats  = "artist_stats"
	ResourceGenreHistory = "genre_history"
	ResourceGenreStats   = "genre_stats"
	ResourceCompare      = "compare"
)

// DisplayNameFetcher resolves a username to a display name. A nil name with
// a nil error means the user has none.
type DisplayNameFetcher interface {
	DisplayName(ctx context.Context, username string) (*string, error)
}

// StatsFetcher loads stats resources. Every method returns nil, nil when the
// resource does not exist.
type StatsFetcher interface {
	UserStats(ctx context.Context, username string) (*statsapi.UserSnapshot, error)
	ArtistStats(ctx context.Context, username, artistID string) (*statsapi.ArtistStats, error)
	GenreHistory(ctx context.Context, username string) (*userstats.GenreHistory, error)
	GenreStats(ctx context.Context, username, genre string) (*statsapi.GenreStats, error)
	Compare(ctx context.Context, user1, user2 string) (*statsapi.Comparison, error)
}

// Coordinator loads data into an injected store.
type Coordinator struct {
	store *state.Store
	names DisplayNameFetcher
	stats StatsFetcher

	group    singleflight.Group
	wg       sync.WaitGroup
	mu       sync.Mutex
	inflight map[string]chan struct{}

	prefetchLimit int
	log           zerolog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.log = log
	}
}

// WithPrefetchConcurrency bounds PrefetchArtistStats fan-out. Values below
// one are ignored.
func WithPrefetchConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.prefetchLimit = n
		}
	}
}

// New creates a Coordinator.
func New(s *state.Store, names DisplayNameFetcher, stats StatsFetcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:         s,
		names:         names,
		stats:         stats,
		inflight:      make(map[string]chan struct{}),
		prefetchLimit: defaultPrefetchConcurrency,
		log:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the store the coordinator writes to.
func (c *Coordinator) Store() *state.Store {
	return c.store
}

// Wait blocks until every background lookup started by RequestDisplayName
// has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// RequestDisplayName starts a background lookup for username unless one was
// already started, and returns the entry as it stands now. The lookup
// outlives ctx cancellation.
func (c *Coordinator) RequestDisplayName(ctx context.Context, username string) entities.DisplayName {
	done, err := c.claimDisplayName(username)
	if err != nil {
		c.log.Error().Err(err).Str("username", username).Msg("claiming display name lookup")
		return c.displayName(username)
	}

	if done == nil {
		c.recordSettled(username)
		return c.displayName(username)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = c.resolveDisplayName(context.WithoutCancel(ctx), username, done)
	}()
	return c.displayName(username)
}

// LoadDisplayName is the blocking form of RequestDisplayName. If another
// caller's lookup is in flight it waits for that one instead of fetching.
// A lookup error is returned, and the pending marker stays.
func (c *Coordinator) LoadDisplayName(ctx context.Context, username string) (entities.DisplayName, error) {
	done, err := c.claimDisplayName(username)
	if err != nil {
		return c.displayName(username), err
	}

	if done != nil {
		err = c.resolveDisplayName(ctx, username, done)
		return c.displayName(username), err
	}

	c.recordSettled(username)
	if err := c.waitInflight(ctx, username); err != nil {
		return c.displayName(username), err
	}
	return c.displayName(username), nil
}

func (c *Coordinator) displayName(username string) entities.DisplayName {
	return c.store.GetState().Entities.DisplayName(username)
}

// claimDisplayName writes the pending marker if no lookup was ever started.
// It returns a non-nil channel only to the caller that wrote the marker; that
// caller must pass it to resolveDisplayName.
func (c *Coordinator) claimDisplayName(username string) (chan struct{}, error) {
	var done chan struct{}
	_, err := c.store.DispatchFunc(func(st state.State) store.Action {
		if st.Entities.DisplayName(username).Settled() {
			return nil
		}
		done = make(chan struct{})
		c.mu.Lock()
		c.inflight[username] = done
		c.mu.Unlock()
		return entities.SetUserDisplayName{Username: username}
	})
	if err != nil {
		if done != nil {
			c.finish(username, done)
		}
		return nil, err
	}
	return done, nil
}

func (c *Coordinator) resolveDisplayName(ctx context.Context, username string, done chan struct{}) error {
	defer c.finish(username, done)

	start := time.Now()
	name, err := c.names.DisplayName(ctx, username)
	if err != nil {
		metrics.RecordFetch(ResourceDisplayName, metrics.ResultError, start)
		c.log.Warn().Err(err).Str("username", username).Msg("display name lookup failed, leaving pending marker")
		return fmt.Errorf("resolving display name for %s: %w", username, err)
	}
	if name == nil {
		metrics.RecordFetch(ResourceDisplayName, metrics.ResultNotFound, start)
		c.log.Debug().Str("username", username).Msg("user has no display name")
		return nil
	}

	metrics.RecordFetch(ResourceDisplayName, metrics.ResultOK, start)
	return c.store.Dispatch(entities.SetUserDisplayName{Username: username, Name: name})
}

func (c *Coordinator) finish(username string, done chan struct{}) {
	c.mu.Lock()
	if c.inflight[username] == done {
		delete(c.inflight, username)
	}
	c.mu.Unlock()
	close(done)
}

func (c *Coordinator) waitInflight(ctx context.Context, username string) error {
	c.mu.Lock()
	done := c.inflight[username]
	c.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) recordSettled(username string) {
	result := metrics.ResultPending
	if c.displayName(username).Status == entities.StatusResolved {
		result = metrics.ResultCached
	}
	metrics.RecordFetch(ResourceDisplayName, result, time.Time{})
}

// UserStats returns the user's ranking snapshot, fetching it if it has not
// been loaded.
func (c *Coordinator) UserStats(ctx context.Context, username string) (*userstats.UserStats, error) {
	cached := func(st state.State) bool {
		u, ok := st.UserStats.User(username)
		return ok && u.HasSnapshot
	}
	v, err := c.load(ctx, ResourceUserStats, "user/"+username, cached, func(ctx context.Context) (any, error) {
		snap, err := c.stats.UserStats(ctx, username)
		if err != nil || snap == nil {
			return nil, err
		}
		return snap, c.store.Dispatch(state.Batch{
			entities.AddTracks{ByID: snap.Tracks},
			entities.AddArtists{ByID: snap.Artists},
			userstats.SetUserSnapshot{
				Username:       username,
				LastUpdateTime: snap.LastUpdateTime,
				Tracks:         snap.TrackIDs,
				Artists:        snap.ArtistIDs,
			},
		})
	})
	if err != nil || v == nil {
		return nil, err
	}

	u, _ := c.store.GetState().UserStats.User(username)
	return &u, nil
}

// ArtistStats returns the user's stats for one artist, fetching them if they
// have not been loaded.
func (c *Coordinator) ArtistStats(ctx context.Context, username, artistID string) (*userstats.ArtistStats, error) {
	cached := func(st state.State) bool {
		_, ok := st.UserStats.ArtistStats(username, artistID)
		return ok
	}
	key := "artist/" + username + "/" + artistID
	v, err := c.load(ctx, ResourceArtistStats, key, cached, func(ctx context.Context) (any, error) {
		res, err := c.stats.ArtistStats(ctx, username, artistID)
		if err != nil || res == nil {
			return nil, err
		}
		batch := state.Batch{entities.AddTracks{ByID: res.TracksByID}}
		if res.Artist != nil {
			batch = append(batch, entities.AddArtists{ByID: map[string]entities.Artist{res.Artist.ID: *res.Artist}})
		}
		batch = append(batch, userstats.SetArtistStats{
			Username:          username,
			ArtistID:          artistID,
			TopTracks:         res.Stats.TopTracks,
			PopularityHistory: res.Stats.PopularityHistory,
		})
		return res, c.store.Dispatch(batch)
	})
	if err != nil || v == nil {
		return nil, err
	}

	stats, _ := c.store.GetState().UserStats.ArtistStats(username, artistID)
	return &stats, nil
}

// GenreHistory returns the user's genre popularity history, fetching it if
// it has not been loaded.
func (c *Coordinator) GenreHistory(ctx context.Context, username string) (*userstats.GenreHistory, error) {
	cached := func(st state.State) bool {
		u, ok := st.UserStats.User(username)
		return ok && u.GenreHistory != nil
	}
	v, err := c.load(ctx, ResourceGenreHistory, "genre_history/"+username, cached, func(ctx context.Context) (any, error) {
		history, err := c.stats.GenreHistory(ctx, username)
		if err != nil || history == nil {
			return nil, err
		}
		return history, c.store.Dispatch(userstats.SetGenreHistory{Username: username, History: *history})
	})
	if err != nil || v == nil {
		return nil, err
	}

	u, _ := c.store.GetState().UserStats.User(username)
	return u.GenreHistory, nil
}

// GenreStats returns the user's stats for one genre, fetching them if they
// have not been loaded.
func (c *Coordinator) GenreStats(ctx context.Context, username, genre string) (*userstats.GenreStats, error) {
	cached := func(st state.State) bool {
		_, ok := st.UserStats.GenreStats(username, genre)
		return ok
	}
	key := "genre/" + username + "/" + genre
	v, err := c.load(ctx, ResourceGenreStats, key, cached, func(ctx context.Context) (any, error) {
		res, err := c.stats.GenreStats(ctx, username, genre)
		if err != nil || res == nil {
			return nil, err
		}
		return res, c.store.Dispatch(state.Batch{
			entities.AddArtists{ByID: res.ArtistsByID},
			userstats.SetGenreStats{Username: username, Genre: genre, Stats: res.Stats},
		})
	})
	if err != nil || v == nil {
		return nil, err
	}

	stats, _ := c.store.GetState().UserStats.GenreStats(username, genre)
	return &stats, nil
}

// Compare fetches the shared listening of two users. Comparisons have no
// slice of their own; only their entities are cached, so every call that
// does not join an in-flight request goes to the collaborator.
func (c *Coordinator) Compare(ctx context.Context, user1, user2 string) (*statsapi.Comparison, error) {
	v, err := c.load(ctx, ResourceCompare, "compare/"+user1+"/"+user2, nil, func(ctx context.Context) (any, error) {
		res, err := c.stats.Compare(ctx, user1, user2)
		if err != nil || res == nil {
			return nil, err
		}
		return res, c.store.Dispatch(state.Batch{
			entities.AddTracks{ByID: res.Tracks},
			entities.AddArtists{ByID: res.Artists},
		})
	})
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*statsapi.Comparison), nil
}

// PrefetchArtistStats loads stats for several artists with bounded
// concurrency. It stops at the first error.
func (c *Coordinator) PrefetchArtistStats(ctx context.Context, username string, artistIDs []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.prefetchLimit)

	for _, id := range artistIDs {
		g.Go(func() error {
			_, err := c.ArtistStats(ctx, username, id)
			return err
		})
	}
	return g.Wait()
}

// load returns a nil value when the resource does not exist. cached is
// checked before joining a flight and again inside it, so a caller that
// missed the cache just as a flight finished does not fetch twice.
func (c *Coordinator) load(
	ctx context.Context,
	resource, key string,
	cached func(state.State) bool,
	fetch func(context.Context) (any, error),
) (any, error) {
	isCached := func() bool {
		return cached != nil && cached(c.store.GetState())
	}
	if isCached() {
		metrics.RecordFetch(resource, metrics.ResultCached, time.Time{})
		return true, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		if isCached() {
			metrics.RecordFetch(resource, metrics.ResultCached, time.Time{})
			return true, nil
		}

		start := time.Now()
		v, err := fetch(context.WithoutCancel(ctx))
		switch {
		case err != nil:
			metrics.RecordFetch(resource, metrics.ResultError, start)
			c.log.Error().Err(err).Str("resource", resource).Str("key", key).Msg("fetch failed")
		case v == nil:
			metrics.RecordFetch(resource, metrics.ResultNotFound, start)
			c.log.Debug().Str("resource", resource).Str("key", key).Msg("resource not found")
		default:
			metrics.RecordFetch(resource, metrics.ResultOK, start)
		}
		return v, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			metrics.SharedFlights.WithLabelValues(resource).Inc()
		}
		if res.Err != nil {
			return nil, fmt.Errorf("loading %s %s: %w", resource, key, res.Err)
		}
		return res.Val, nil
	}
}
