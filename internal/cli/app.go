package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/justestif/go-spotify-stats/internal/config"
	"github.com/justestif/go-spotify-stats/internal/db"
	"github.com/justestif/go-spotify-stats/internal/fetch"
	"github.com/justestif/go-spotify-stats/internal/logging"
	"github.com/justestif/go-spotify-stats/internal/persist"
	"github.com/justestif/go-spotify-stats/internal/selectors"
	"github.com/justestif/go-spotify-stats/internal/spotify"
	"github.com/justestif/go-spotify-stats/internal/state"
	"github.com/justestif/go-spotify-stats/internal/statsapi"
)

// warmCache is durable storage for the entity cache.
type warmCache interface {
	Repos() persist.Repos
	Close()
}

type postgresCache struct {
	db *db.DB
}

func (c postgresCache) Repos() persist.Repos {
	return persist.Repos{
		Tracks:       c.db.Tracks(),
		Artists:      c.db.Artists(),
		DisplayNames: c.db.DisplayNames(),
	}
}

func (c postgresCache) Close() {
	c.db.Close()
}

func openPostgresCache(ctx context.Context, url string) (warmCache, error) {
	database, err := db.New(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return postgresCache{db: database}, nil
}

// app is the wired object graph shared by every command.
type app struct {
	cfg      config.Config
	log      zerolog.Logger
	store    *state.Store
	coord    *fetch.Coordinator
	resolver *selectors.Resolver
	cache    warmCache
}

func setup(ctx context.Context, stderr io.Writer, opts *options) (*app, error) {
	environ := opts.environ()
	for k, v := range opts.overrides() {
		if v != "" {
			environ[k] = v
		}
	}

	cfg, err := config.LoadFrom(environ)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: stderr})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	stats, err := opts.newStats(statsapi.Config{BaseURL: cfg.StatsAPIURL, Timeout: cfg.HTTPTimeout})
	if err != nil {
		return nil, fmt.Errorf("init stats client: %w", err)
	}

	var names fetch.DisplayNameFetcher = stats
	if cfg.UseSpotify() {
		names, err = opts.newProfiles(ctx, spotify.Credentials{ClientID: cfg.SpotifyID, ClientSecret: cfg.SpotifySecret})
		if err != nil {
			return nil, fmt.Errorf("init spotify client: %w", err)
		}
		log.Debug().Msg("resolving display names through Spotify")
	}

	var cache warmCache
	if cfg.DatabaseURL != "" {
		cache, err = opts.openWarmCache(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open warm cache: %w", err)
		}
		names = persist.NewNames(cache.Repos().DisplayNames, names)
	}

	s := state.NewStore(log)
	coord := fetch.New(s, names, stats,
		fetch.WithLogger(log),
		fetch.WithPrefetchConcurrency(cfg.PrefetchConcurrency),
	)
	a := &app{
		cfg:      cfg,
		log:      log,
		store:    s,
		coord:    coord,
		resolver: selectors.NewResolver(s, coord),
		cache:    cache,
	}

	if cache != nil {
		counts, err := persist.Load(ctx, s, cache.Repos())
		if err != nil {
			cache.Close()
			return nil, err
		}
		log.Info().
			Int("tracks", counts.Tracks).
			Int("artists", counts.Artists).
			Int("display_names", counts.DisplayNames).
			Msg("warm cache loaded")
	}

	return a, nil
}

// close waits for background lookups and saves the warm cache.
func (a *app) close(ctx context.Context) error {
	a.coord.Wait()
	if a.cache == nil {
		return nil
	}
	defer a.cache.Close()

	counts, err := persist.Save(ctx, a.store.GetState().Entities, a.cache.Repos())
	if err != nil {
		return err
	}
	a.log.Info().
		Int("tracks", counts.Tracks).
		Int("artists", counts.Artists).
		Int("display_names", counts.DisplayNames).
		Msg("warm cache saved")
	return nil
}
