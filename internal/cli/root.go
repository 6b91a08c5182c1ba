// Package cli implements the spotify-stats command line.
package cli

import (
	"context"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/justestif/go-spotify-stats/internal/fetch"
	"github.com/justestif/go-spotify-stats/internal/spotify"
	"github.com/justestif/go-spotify-stats/internal/statsapi"
)

// Execute runs the root CLI command.
func Execute(ctx context.Context) error {
	opts := newOptions()
	rootCmd := newRootCmd(opts)
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "spotify-stats",
		Short:         "Cached Spotify listening statistics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.statsURL, "stats-url", "", "Stats API base URL (or STATS_API_URL)")
	cmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "", "Postgres URL for the warm cache (or DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (or LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: json or console (or LOG_FORMAT)")

	cmd.AddCommand(
		newServeCmd(opts),
		newArtistCmd(opts),
		newWhoisCmd(opts),
		newGalaxyCmd(opts),
		newPrefetchCmd(opts),
	)

	return cmd
}

// statsBackend serves both stats resources and display names.
type statsBackend interface {
	fetch.StatsFetcher
	fetch.DisplayNameFetcher
}

type options struct {
	statsURL    string
	databaseURL string
	logLevel    string
	logFormat   string
	addr        string

	environ       func() map[string]string
	newStats      func(statsapi.Config) (statsBackend, error)
	newProfiles   func(context.Context, spotify.Credentials) (fetch.DisplayNameFetcher, error)
	openWarmCache func(context.Context, string) (warmCache, error)
}

func newOptions() *options {
	return &options{
		environ: func() map[string]string {
			return env.ToMap(os.Environ())
		},
		newStats: func(cfg statsapi.Config) (statsBackend, error) {
			return statsapi.NewClient(cfg)
		},
		newProfiles: func(ctx context.Context, creds spotify.Credentials) (fetch.DisplayNameFetcher, error) {
			return spotify.NewWithCredentials(ctx, creds)
		},
		openWarmCache: openPostgresCache,
	}
}

// overrides maps flag values onto the environment variables they replace.
func (o *options) overrides() map[string]string {
	return map[string]string{
		"STATS_API_URL": o.statsURL,
		"DATABASE_URL":  o.databaseURL,
		"LOG_LEVEL":     o.logLevel,
		"LOG_FORMAT":    o.logFormat,
		"ADDR":          o.addr,
	}
}
