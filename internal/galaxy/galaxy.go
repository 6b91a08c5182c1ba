// Package galaxy groups cached artists into genre clusters with k-means.
package galaxy

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/justestif/go-spotify-stats/internal/entities"
)

// Config holds clustering parameters.
type Config struct {
	NumClusters    int // default 5
	MaxGenres      int // vocabulary size, default 50
	MinClusterSize int // smaller clusters become outliers
}

// DefaultConfig returns the recommended configuration.
func DefaultConfig() Config {
	return Config{
		NumClusters:    5,
		MaxGenres:      50,
		MinClusterSize: 2,
	}
}

// Cluster is a group of artists with similar genres.
type Cluster struct {
	Genres     []string `json:"genres"`     // up to 3 dominant genres
	ArtistIDs  []string `json:"artistIds"`  // sorted
	Popularity float64  `json:"popularity"` // mean 0-100, 0 when unknown
}

type artistObservation struct {
	artist *entities.Artist
	coords clusters.Coordinates
}

func (o artistObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o artistObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// Build partitions artists by genre similarity. Artists without genres, and
// members of clusters below MinClusterSize, are returned as outlier ids.
func Build(artists []entities.Artist, cfg Config) ([]Cluster, []string, error) {
	if len(artists) == 0 {
		return nil, nil, nil
	}

	def := DefaultConfig()
	if cfg.NumClusters <= 0 {
		cfg.NumClusters = def.NumClusters
	}
	if cfg.MaxGenres <= 0 {
		cfg.MaxGenres = def.MaxGenres
	}

	var valid []*entities.Artist
	var outliers []string
	for i := range artists {
		a := &artists[i]
		if len(a.Genres) > 0 {
			valid = append(valid, a)
		} else {
			outliers = append(outliers, a.ID)
		}
	}

	vocabulary := genreVocabulary(valid, cfg.MaxGenres)
	if len(valid) < cfg.NumClusters || len(vocabulary) == 0 {
		for _, a := range valid {
			outliers = append(outliers, a.ID)
		}
		slices.Sort(outliers)
		return nil, outliers, nil
	}

	obs := make(clusters.Observations, len(valid))
	for i, a := range valid {
		obs[i] = artistObservation{artist: a, coords: genreVector(a, vocabulary)}
	}

	result, err := kmeans.New().Partition(obs, cfg.NumClusters)
	if err != nil {
		return nil, nil, fmt.Errorf("partitioning %d artists: %w", len(valid), err)
	}

	var out []Cluster
	for _, c := range result {
		members := make([]*entities.Artist, 0, len(c.Observations))
		for _, o := range c.Observations {
			if ao, ok := o.(artistObservation); ok {
				members = append(members, ao.artist)
			}
		}
		if len(members) == 0 {
			continue
		}
		if len(members) < cfg.MinClusterSize {
			for _, a := range members {
				outliers = append(outliers, a.ID)
			}
			continue
		}
		out = append(out, newCluster(members, c.Center, vocabulary))
	}

	slices.SortFunc(out, func(a, b Cluster) int {
		if c := cmp.Compare(len(b.ArtistIDs), len(a.ArtistIDs)); c != 0 {
			return c
		}
		return cmp.Compare(strings.Join(a.Genres, ","), strings.Join(b.Genres, ","))
	})
	slices.Sort(outliers)
	return out, outliers, nil
}

func newCluster(members []*entities.Artist, center clusters.Coordinates, vocabulary []string) Cluster {
	ids := make([]string, len(members))
	var total, known int
	for i, a := range members {
		ids[i] = a.ID
		if a.Popularity != nil {
			total += *a.Popularity
			known++
		}
	}
	slices.Sort(ids)

	var popularity float64
	if known > 0 {
		popularity = float64(total) / float64(known)
	}
	return Cluster{
		Genres:     topGenres(center, vocabulary, 3),
		ArtistIDs:  ids,
		Popularity: popularity,
	}
}

// genreVocabulary returns the maxGenres most common genres, ties broken
// alphabetically.
func genreVocabulary(artists []*entities.Artist, maxGenres int) []string {
	counts := make(map[string]int)
	for _, a := range artists {
		for _, g := range a.Genres {
			counts[strings.ToLower(g)]++
		}
	}

	genres := make([]string, 0, len(counts))
	for g := range counts {
		genres = append(genres, g)
	}
	slices.SortFunc(genres, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	return genres[:min(maxGenres, len(genres))]
}

// genreVector is a one-hot genre vector with the artist's popularity, scaled
// to 0-1, as the last coordinate.
func genreVector(a *entities.Artist, vocabulary []string) clusters.Coordinates {
	index := make(map[string]int, len(vocabulary))
	for i, g := range vocabulary {
		index[g] = i
	}

	vector := make(clusters.Coordinates, len(vocabulary)+1)
	for _, g := range a.Genres {
		if i, ok := index[strings.ToLower(g)]; ok {
			vector[i] = 1
		}
	}
	if a.Popularity != nil {
		vector[len(vocabulary)] = float64(*a.Popularity) / 100
	}
	return vector
}

// topGenres returns up to n genres with the highest centroid weight.
func topGenres(center clusters.Coordinates, vocabulary []string, n int) []string {
	type weighted struct {
		genre  string
		weight float64
	}
	weights := make([]weighted, 0, len(vocabulary))
	for i, g := range vocabulary {
		if i < len(center) && center[i] > 0 {
			weights = append(weights, weighted{genre: g, weight: center[i]})
		}
	}
	slices.SortStableFunc(weights, func(a, b weighted) int {
		return cmp.Compare(b.weight, a.weight)
	})

	out := make([]string, 0, n)
	for i := 0; i < len(weights) && len(out) < n; i++ {
		out = append(out, weights[i].genre)
	}
	return out
}

// Artists returns every cached artist, ordered by id.
func Artists(st entities.State) []entities.Artist {
	out := make([]entities.Artist, 0, len(st.Artists))
	for _, a := range st.Artists {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b entities.Artist) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
