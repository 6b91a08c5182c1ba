package selectors

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/justestif/go-spotify-stats/internal/entities"
	"github.com/justestif/go-spotify-stats/internal/fetch"
	"github.com/justestif/go-spotify-stats/internal/location"
	"github.com/justestif/go-spotify-stats/internal/state"
	"github.com/justestif/go-spotify-stats/internal/userstats"
)

type fakeNames struct {
	calls   atomic.Int32
	release chan struct{}
	names   map[string]string
}

func (f *fakeNames) DisplayName(_ context.Context, username string) (*string, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	name, ok := f.names[username]
	if !ok {
		return nil, nil
	}
	return &name, nil
}

func newResolver(names *fakeNames) (*Resolver, *fetch.Coordinator) {
	s := state.NewStore(zerolog.Nop())
	coord := fetch.New(s, names, nil)
	return NewResolver(s, coord), coord
}

func TestCurrentUser_ArtistPageScenario(t *testing.T) {
	names := &fakeNames{release: make(chan struct{}), names: map[string]string{"ameobea": "Ameo"}}
	r, coord := newResolver(names)
	ctx := context.Background()

	if err := coord.Store().Dispatch(location.Navigated{Path: "/stats/ameobea/artist/123"}); err != nil {
		t.Fatal(err)
	}

	first := r.Current(ctx, "")
	if first.Username != "ameobea" {
		t.Fatalf("Username = %q, want ameobea", first.Username)
	}
	if first.DisplayName.Status != entities.StatusAbsent {
		t.Errorf("first Status = %v, want pending marker", first.DisplayName.Status)
	}

	close(names.release)
	coord.Wait()

	second := r.Current(ctx, "")
	if second.DisplayName.Status != entities.StatusResolved || second.DisplayName.Name != "Ameo" {
		t.Errorf("second DisplayName = %+v, want resolved Ameo", second.DisplayName)
	}
	if n := names.calls.Load(); n != 1 {
		t.Errorf("display name fetches = %d, want 1", n)
	}
}

func TestCurrentUser_TwiceInOneTurnFetchesOnce(t *testing.T) {
	names := &fakeNames{release: make(chan struct{}), names: map[string]string{}}
	r, coord := newResolver(names)
	loc := location.Location{Path: "/stats/newuser"}

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.CurrentUser(context.Background(), loc, "")
		}()
	}
	wg.Wait()
	close(names.release)
	coord.Wait()

	if n := names.calls.Load(); n != 1 {
		t.Errorf("display name fetches = %d, want 1", n)
	}
}

func TestCurrentUser_Resolution(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		explicit string
		want     string
	}{
		{name: "stats profile", path: "/stats/ameobea", want: "ameobea"},
		{name: "stats subpage", path: "/stats/ameobea/genre/rock", want: "ameobea"},
		{name: "comparison uses first user", path: "/compare/alice/bob", want: "alice"},
		{name: "explicit wins over path", path: "/stats/ameobea", explicit: "other", want: "other"},
		{name: "explicit without path", path: "/", explicit: "other", want: "other"},
		{name: "no match", path: "/about", want: ""},
		{name: "empty path", path: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names := &fakeNames{names: map[string]string{}}
			r, coord := newResolver(names)
			defer coord.Wait()

			got := r.CurrentUser(context.Background(), location.Location{Path: tt.path}, tt.explicit)
			if got.Username != tt.want {
				t.Errorf("Username = %q, want %q", got.Username, tt.want)
			}
			if tt.want == "" {
				if got.DisplayName.Status != entities.StatusAbsent {
					t.Errorf("Status = %v, want absent", got.DisplayName.Status)
				}
				if n := names.calls.Load(); n != 0 {
					t.Errorf("display name fetches = %d, want 0", n)
				}
			}
		})
	}
}

func seededState(t *testing.T) state.State {
	t.Helper()
	s := state.NewStore(zerolog.Nop())
	err := s.Dispatch(state.Batch{
		entities.AddTracks{ByID: map[string]entities.Track{
			"t1": {ID: "t1", Name: "One"},
			"t2": {ID: "t2", Name: "Two"},
		}},
		entities.AddArtists{ByID: map[string]entities.Artist{"a1": {ID: "a1", Name: "Band"}}},
		userstats.SetUserSnapshot{
			Username: "ameobea",
			Tracks:   userstats.TimeframeBuckets{Short: []string{"t2", "missing", "t1"}},
			Artists:  userstats.TimeframeBuckets{Long: []string{"a1"}},
		},
		userstats.SetArtistStats{
			Username:  "ameobea",
			ArtistID:  "a1",
			TopTracks: []userstats.TrackScore{{TrackID: "t1", Score: 5}, {TrackID: "gone", Score: 4}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s.GetState()
}

func TestTopTracksAndArtists(t *testing.T) {
	st := seededState(t)

	tracks := TopTracks(st, "ameobea", userstats.Short)
	if len(tracks) != 2 || tracks[0].ID != "t2" || tracks[1].ID != "t1" {
		t.Errorf("TopTracks() = %+v, want [t2 t1]", tracks)
	}
	if got := TopTracks(st, "ameobea", userstats.Long); len(got) != 0 {
		t.Errorf("TopTracks(long) = %+v, want empty", got)
	}
	if got := TopTracks(st, "stranger", userstats.Short); got != nil {
		t.Errorf("TopTracks(stranger) = %+v, want nil", got)
	}

	artists := TopArtists(st, "ameobea", userstats.Long)
	if len(artists) != 1 || artists[0].Name != "Band" {
		t.Errorf("TopArtists() = %+v", artists)
	}
}

func TestArtistDetailFor(t *testing.T) {
	st := seededState(t)

	detail, ok := ArtistDetailFor(st, "ameobea", "a1")
	if !ok {
		t.Fatal("ArtistDetailFor() reported missing")
	}
	if detail.Artist.Name != "Band" {
		t.Errorf("Artist = %+v", detail.Artist)
	}
	if len(detail.TopTracks) != 1 || detail.TopTracks[0].Track.Name != "One" || detail.TopTracks[0].Score != 5 {
		t.Errorf("TopTracks = %+v", detail.TopTracks)
	}

	if _, ok := ArtistDetailFor(st, "stranger", "a1"); ok {
		t.Error("ArtistDetailFor() found stats for unknown user")
	}
	if _, ok := ArtistDetailFor(st, "ameobea", "a2"); ok {
		t.Error("ArtistDetailFor() found uncached artist")
	}
}
