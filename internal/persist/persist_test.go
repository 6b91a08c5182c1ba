package persist

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/rs/zerolog"

	"github.com/justestif/go-spotify-stats/internal/db"
	"github.com/justestif/go-spotify-stats/internal/entities"
	"github.com/justestif/go-spotify-stats/internal/state"
)

var errDown = errors.New("database down")

type memTracks struct {
	rows []entities.Track
	err  error
}

func (m *memTracks) UpsertBatch(_ context.Context, tracks []entities.Track) error {
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, tracks...)
	return nil
}

func (m *memTracks) All(context.Context) ([]entities.Track, error) {
	return m.rows, m.err
}

type memArtists struct {
	rows []entities.Artist
}

func (m *memArtists) UpsertBatch(_ context.Context, artists []entities.Artist) error {
	m.rows = append(m.rows, artists...)
	return nil
}

func (m *memArtists) All(context.Context) ([]entities.Artist, error) {
	return m.rows, nil
}

type memNames struct {
	rows   map[string]string
	getErr error
}

func (m *memNames) Get(_ context.Context, username string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	name, ok := m.rows[username]
	if !ok {
		return "", db.ErrNotFound
	}
	return name, nil
}

func (m *memNames) UpsertBatch(_ context.Context, names map[string]string) error {
	if m.rows == nil {
		m.rows = make(map[string]string)
	}
	for k, v := range names {
		m.rows[k] = v
	}
	return nil
}

func (m *memNames) All(context.Context) (map[string]string, error) {
	return m.rows, nil
}

func TestLoad(t *testing.T) {
	repos := Repos{
		Tracks:       &memTracks{rows: []entities.Track{{ID: "t1", Name: "One"}}},
		Artists:      &memArtists{rows: []entities.Artist{{ID: "a1"}, {ID: "a2"}}},
		DisplayNames: &memNames{rows: map[string]string{"ameobea": "Ameo"}},
	}
	s := state.NewStore(zerolog.Nop())

	counts, err := Load(context.Background(), s, repos)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if counts != (Counts{Tracks: 1, Artists: 2, DisplayNames: 1}) {
		t.Errorf("Load() counts = %+v", counts)
	}

	st := s.GetState().Entities
	if _, ok := st.Track("t1"); !ok {
		t.Error("track not loaded")
	}
	if got := st.DisplayName("ameobea"); got.Status != entities.StatusResolved || got.Name != "Ameo" {
		t.Errorf("DisplayName() = %+v", got)
	}
}

func TestLoad_Error(t *testing.T) {
	repos := Repos{
		Tracks:       &memTracks{err: errDown},
		Artists:      &memArtists{},
		DisplayNames: &memNames{},
	}
	s := state.NewStore(zerolog.Nop())

	if _, err := Load(context.Background(), s, repos); !errors.Is(err, errDown) {
		t.Errorf("Load() error = %v, want errDown", err)
	}
	if len(s.GetState().Entities.Artists) != 0 {
		t.Error("store hydrated despite error")
	}
}

func TestSave_SkipsPendingMarkers(t *testing.T) {
	st := entities.NewState()
	st.Tracks["t1"] = entities.Track{ID: "t1"}
	st.Artists["a1"] = entities.Artist{ID: "a1"}
	st.UserDisplayNames["ameobea"] = entities.Name("Ameo")
	st.UserDisplayNames["pending"] = nil

	names := &memNames{}
	repos := Repos{Tracks: &memTracks{}, Artists: &memArtists{}, DisplayNames: names}

	counts, err := Save(context.Background(), st, repos)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if counts != (Counts{Tracks: 1, Artists: 1, DisplayNames: 1}) {
		t.Errorf("Save() counts = %+v", counts)
	}
	if _, ok := names.rows["pending"]; ok {
		t.Error("pending marker was persisted")
	}
	if names.rows["ameobea"] != "Ameo" {
		t.Errorf("saved names = %v", names.rows)
	}
}

func TestSaveThenLoad(t *testing.T) {
	tracks, artists, names := &memTracks{}, &memArtists{}, &memNames{}
	repos := Repos{Tracks: tracks, Artists: artists, DisplayNames: names}

	src := state.NewStore(zerolog.Nop())
	_ = src.Dispatch(state.Batch{
		entities.AddTracks{ByID: map[string]entities.Track{"t1": {ID: "t1"}, "t2": {ID: "t2"}}},
		entities.SetUserDisplayName{Username: "ameobea", Name: entities.Name("Ameo")},
	})
	if _, err := Save(context.Background(), src.GetState().Entities, repos); err != nil {
		t.Fatal(err)
	}

	dst := state.NewStore(zerolog.Nop())
	if _, err := Load(context.Background(), dst, repos); err != nil {
		t.Fatal(err)
	}
	got := dst.GetState().Entities
	ids := make([]string, 0, len(got.Tracks))
	for id := range got.Tracks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	if !slices.Equal(ids, []string{"t1", "t2"}) {
		t.Errorf("loaded tracks = %v", ids)
	}
	if got.DisplayName("ameobea").Name != "Ameo" {
		t.Error("display name not round-tripped")
	}
}

type upstreamNames struct {
	calls int
	names map[string]string
	err   error
}

func (u *upstreamNames) DisplayName(_ context.Context, username string) (*string, error) {
	u.calls++
	if u.err != nil {
		return nil, u.err
	}
	if name, ok := u.names[username]; ok {
		return &name, nil
	}
	return nil, nil
}

func TestNames_DisplayName(t *testing.T) {
	tests := []struct {
		name      string
		stored    map[string]string
		getErr    error
		upstream  *upstreamNames
		want      *string
		wantErr   error
		wantCalls int
	}{
		{
			name:     "stored name skips upstream",
			stored:   map[string]string{"ameobea": "Ameo"},
			upstream: &upstreamNames{names: map[string]string{"ameobea": "Other"}},
			want:     entities.Name("Ameo"),
		},
		{
			name:      "missing name asks upstream",
			upstream:  &upstreamNames{names: map[string]string{"ameobea": "Ameo"}},
			want:      entities.Name("Ameo"),
			wantCalls: 1,
		},
		{
			name:      "unknown everywhere",
			upstream:  &upstreamNames{},
			wantCalls: 1,
		},
		{
			name:     "storage failure",
			getErr:   errDown,
			upstream: &upstreamNames{names: map[string]string{"ameobea": "Ameo"}},
			wantErr:  errDown,
		},
		{
			name:      "upstream failure",
			upstream:  &upstreamNames{err: errDown},
			wantErr:   errDown,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNames(&memNames{rows: tt.stored, getErr: tt.getErr}, tt.upstream)

			got, err := n.DisplayName(context.Background(), "ameobea")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("DisplayName() error = %v, want %v", err, tt.wantErr)
			}
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("DisplayName() = %q, want nil", *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("DisplayName() = %v, want %q", got, *tt.want)
			}
			if tt.upstream.calls != tt.wantCalls {
				t.Errorf("upstream calls = %d, want %d", tt.upstream.calls, tt.wantCalls)
			}
		})
	}
}
