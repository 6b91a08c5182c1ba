package galaxy

import (
	"slices"
	"testing"

	"github.com/justestif/go-spotify-stats/internal/entities"
)

func artist(id string, popularity int, genres ...string) entities.Artist {
	return entities.Artist{ID: id, Name: id, Genres: genres, Popularity: &popularity}
}

func TestBuild_Empty(t *testing.T) {
	got, outliers, err := Build(nil, DefaultConfig())
	if err != nil || got != nil || outliers != nil {
		t.Errorf("Build(nil) = %v, %v, %v; want nil, nil, nil", got, outliers, err)
	}
}

func TestBuild_NoGenres(t *testing.T) {
	artists := []entities.Artist{
		{ID: "b", Genres: []string{}},
		{ID: "a"},
	}

	got, outliers, err := Build(artists, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected 0 clusters, got %d", len(got))
	}
	if !slices.Equal(outliers, []string{"a", "b"}) {
		t.Errorf("outliers = %v, want [a b]", outliers)
	}
}

func TestBuild_FewerArtistsThanClusters(t *testing.T) {
	artists := []entities.Artist{artist("a1", 50, "rock")}

	got, outliers, err := Build(artists, Config{NumClusters: 3, MinClusterSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 || len(outliers) != 1 {
		t.Errorf("got %d clusters, %d outliers; want 0, 1", len(got), len(outliers))
	}
}

func TestBuild_ClustersByGenre(t *testing.T) {
	artists := []entities.Artist{
		artist("r1", 70, "rock", "indie rock"),
		artist("r2", 65, "Rock", "indie rock"),
		artist("r3", 60, "rock", "indie rock"),
		artist("e1", 40, "house", "techno"),
		artist("e2", 45, "house", "techno"),
		artist("e3", 50, "house", "techno"),
		artist("x", 10),
	}

	got, outliers, err := Build(artists, Config{NumClusters: 2, MinClusterSize: 3})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 clusters, got %d: %+v", len(got), got)
	}
	if !slices.Equal(outliers, []string{"x"}) {
		t.Errorf("outliers = %v, want [x]", outliers)
	}

	for _, c := range got {
		if len(c.ArtistIDs) != 3 {
			t.Errorf("cluster %v: expected 3 artists, got %d", c.Genres, len(c.ArtistIDs))
		}
		if len(c.Genres) != 2 {
			t.Errorf("cluster %v: expected 2 genres", c.Genres)
		}
		switch c.ArtistIDs[0] {
		case "e1":
			if !slices.Contains(c.Genres, "house") || c.Popularity != 45 {
				t.Errorf("electronic cluster = %+v", c)
			}
		case "r1":
			if !slices.Contains(c.Genres, "rock") || c.Popularity != 65 {
				t.Errorf("rock cluster = %+v", c)
			}
		default:
			t.Errorf("unexpected cluster %+v", c)
		}
	}
}

func TestBuild_SmallClustersBecomeOutliers(t *testing.T) {
	artists := []entities.Artist{
		artist("r1", 70, "rock"),
		artist("r2", 70, "rock"),
		artist("j1", 30, "jazz"),
	}

	got, outliers, err := Build(artists, Config{NumClusters: 2, MinClusterSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !slices.Equal(got[0].ArtistIDs, []string{"r1", "r2"}) {
		t.Errorf("clusters = %+v, want one rock cluster", got)
	}
	if !slices.Equal(outliers, []string{"j1"}) {
		t.Errorf("outliers = %v, want [j1]", outliers)
	}
}

func TestGenreVocabulary(t *testing.T) {
	a := artist("a", 0, "rock", "pop")
	b := artist("b", 0, "Rock", "jazz")
	c := artist("c", 0, "pop")

	got := genreVocabulary([]*entities.Artist{&a, &b, &c}, 2)
	if !slices.Equal(got, []string{"pop", "rock"}) {
		t.Errorf("genreVocabulary() = %v, want [pop rock]", got)
	}
}

func TestGenreVector(t *testing.T) {
	a := artist("a", 80, "Jazz", "unknown")
	got := genreVector(&a, []string{"rock", "jazz"})

	want := []float64{0, 1, 0.8}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("vector[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestArtists_SortedByID(t *testing.T) {
	st := entities.NewState()
	st.Artists["b"] = entities.Artist{ID: "b"}
	st.Artists["a"] = entities.Artist{ID: "a"}

	got := Artists(st)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("Artists() = %+v", got)
	}
}
