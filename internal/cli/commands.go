package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/justestif/go-spotify-stats/internal/entities"
	"github.com/justestif/go-spotify-stats/internal/galaxy"
	"github.com/justestif/go-spotify-stats/internal/location"
	"github.com/justestif/go-spotify-stats/internal/selectors"
	"github.com/justestif/go-spotify-stats/internal/userstats"
	"github.com/justestif/go-spotify-stats/internal/web"
)

const saveTimeout = 30 * time.Second

// withApp wires the application, runs fn and then saves the warm cache.
func withApp(cmd *cobra.Command, opts *options, fn func(ctx context.Context, a *app) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := setup(ctx, cmd.ErrOrStderr(), opts)
	if err != nil {
		return err
	}
	defer func() {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
		defer cancel()
		if cerr := a.close(saveCtx); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	return fn(ctx, a)
}

func newServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and devtools routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				srv := web.NewServer(web.ServerConfig{Addr: a.cfg.Addr, Logger: a.log}, a.coord, a.resolver)
				return srv.Run(ctx)
			})
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address (or ADDR)")

	return cmd
}

func newArtistCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "artist <username> <artist-id>",
		Short: "Show a user's stats for one artist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return runArtist(ctx, cmd.OutOrStdout(), a, args[0], args[1])
			})
		},
	}
}

func runArtist(ctx context.Context, out io.Writer, a *app, username, artistID string) error {
	stats, err := a.coord.ArtistStats(ctx, username, artistID)
	if err != nil {
		return err
	}
	if stats == nil {
		return fmt.Errorf("no stats for artist %s of user %s", artistID, username)
	}

	detail, ok := selectors.ArtistDetailFor(a.store.GetState(), username, artistID)
	if !ok {
		return fmt.Errorf("artist %s is not cached", artistID)
	}

	fmt.Fprintf(out, "%s (%s)\n", detail.Artist.Name, strings.Join(detail.Artist.Genres, ", "))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRACK\tSCORE")
	for _, t := range detail.TopTracks {
		fmt.Fprintf(tw, "%s\t%g\n", t.Track.Name, t.Score)
	}
	fmt.Fprintln(tw, "\nDATE\tSHORT\tMEDIUM\tLONG")
	for _, p := range detail.PopularityHistory {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Timestamp.Format(time.DateOnly),
			rank(p.PopularityPerTimePeriod[userstats.Short]),
			rank(p.PopularityPerTimePeriod[userstats.Medium]),
			rank(p.PopularityPerTimePeriod[userstats.Long]))
	}
	return tw.Flush()
}

func rank(r *int) string {
	if r == nil {
		return "-"
	}
	return strconv.Itoa(*r)
}

func newWhoisCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whois <path>",
		Short: "Resolve the user addressed by a route path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return runWhois(ctx, cmd.OutOrStdout(), a, args[0])
			})
		},
	}
}

func runWhois(ctx context.Context, out io.Writer, a *app, path string) error {
	if err := a.store.Dispatch(location.Navigated{Path: path}); err != nil {
		return err
	}

	cur := a.resolver.Current(ctx, "")
	if cur.Username == "" {
		fmt.Fprintln(out, "no user in path")
		return nil
	}

	name, err := a.coord.LoadDisplayName(ctx, cur.Username)
	if err != nil {
		return err
	}
	if name.Status != entities.StatusResolved {
		fmt.Fprintf(out, "%s (no display name)\n", cur.Username)
		return nil
	}
	fmt.Fprintf(out, "%s (%s)\n", cur.Username, name.Name)
	return nil
}

func newGalaxyCmd(opts *options) *cobra.Command {
	cfg := galaxy.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "galaxy <username>",
		Short: "Cluster a user's top artists by genre",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return runGalaxy(ctx, cmd.OutOrStdout(), a, args[0], cfg)
			})
		},
	}

	cmd.Flags().IntVarP(&cfg.NumClusters, "clusters", "k", cfg.NumClusters, "Number of clusters")
	cmd.Flags().IntVar(&cfg.MinClusterSize, "min-size", cfg.MinClusterSize, "Smaller clusters become outliers")

	return cmd
}

func runGalaxy(ctx context.Context, out io.Writer, a *app, username string, cfg galaxy.Config) error {
	stats, err := a.coord.UserStats(ctx, username)
	if err != nil {
		return err
	}
	if stats == nil {
		return fmt.Errorf("no stats for user %s", username)
	}

	st := a.store.GetState()
	seen := make(map[string]bool)
	var artists []entities.Artist
	for _, tf := range userstats.Timeframes {
		for _, artist := range selectors.TopArtists(st, username, tf) {
			if !seen[artist.ID] {
				seen[artist.ID] = true
				artists = append(artists, artist)
			}
		}
	}

	clusters, outliers, err := galaxy.Build(artists, cfg)
	if err != nil {
		return err
	}

	for i, c := range clusters {
		names := make([]string, len(c.ArtistIDs))
		for j, id := range c.ArtistIDs {
			names[j] = id
			if artist, ok := st.Entities.Artist(id); ok {
				names[j] = artist.Name
			}
		}
		fmt.Fprintf(out, "%d. %s (popularity %.0f)\n   %s\n", i+1,
			strings.Join(c.Genres, " & "), c.Popularity, strings.Join(names, ", "))
	}
	if len(outliers) > 0 {
		fmt.Fprintf(out, "outliers: %d\n", len(outliers))
	}
	return nil
}

func newPrefetchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "prefetch <username>",
		Short: "Load a user's snapshot and the stats of every ranked artist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return runPrefetch(ctx, cmd.OutOrStdout(), a, args[0])
			})
		},
	}
}

func runPrefetch(ctx context.Context, out io.Writer, a *app, username string) error {
	stats, err := a.coord.UserStats(ctx, username)
	if err != nil {
		return err
	}
	if stats == nil {
		return fmt.Errorf("no stats for user %s", username)
	}

	seen := make(map[string]bool)
	var ids []string
	for _, tf := range userstats.Timeframes {
		for _, id := range stats.Artists.Get(tf) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	if err := a.coord.PrefetchArtistStats(ctx, username, ids); err != nil {
		return err
	}
	fmt.Fprintf(out, "Prefetched %d artists for %s\n", len(ids), username)
	return nil
}
