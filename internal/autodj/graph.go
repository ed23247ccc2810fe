// Package autodj walks a graph of related genres, publishing a smooth
// style change whenever the current genre has played long enough.
package autodj

import (
	"maps"
	"slices"
)

// Genre represents a node in the mood graph.
type Genre struct {
	Name     string
	Adjacent []string
}

// MoodGraph maps genre names to their graph nodes with adjacency edges.
// Transitions only follow edges -- no jumping across the graph.
var MoodGraph = map[string]*Genre{
	"ambient": {
		Name:     "ambient",
		Adjacent: []string{"chillwave", "classical"},
	},
	"chillwave": {
		Name:     "chillwave",
		Adjacent: []string{"ambient", "lofi hip hop", "classical", "synthwave"},
	},
	"lofi hip hop": {
		Name:     "lofi hip hop",
		Adjacent: []string{"chillwave", "jazz"},
	},
	"jazz": {
		Name:     "jazz",
		Adjacent: []string{"lofi hip hop", "bossa nova", "acoustic folk"},
	},
	"bossa nova": {
		Name:     "bossa nova",
		Adjacent: []string{"jazz"},
	},
	"acoustic folk": {
		Name:     "acoustic folk",
		Adjacent: []string{"jazz"},
	},
	"classical": {
		Name:     "classical",
		Adjacent: []string{"ambient", "chillwave", "cinematic"},
	},
	"cinematic": {
		Name:     "cinematic",
		Adjacent: []string{"classical", "indie rock"},
	},
	"synthwave": {
		Name:     "synthwave",
		Adjacent: []string{"chillwave", "electronic", "indie rock"},
	},
	"electronic": {
		Name:     "electronic",
		Adjacent: []string{"synthwave", "drum and bass", "disco funk"},
	},
	"drum and bass": {
		Name:     "drum and bass",
		Adjacent: []string{"electronic"},
	},
	"disco funk": {
		Name:     "disco funk",
		Adjacent: []string{"electronic", "rock"},
	},
	"indie rock": {
		Name:     "indie rock",
		Adjacent: []string{"cinematic", "synthwave", "rock"},
	},
	"rock": {
		Name:     "rock",
		Adjacent: []string{"indie rock", "disco funk"},
	},
}

// GenreNames returns all genre names in the mood graph, sorted.
func GenreNames() []string {
	return slices.Sorted(maps.Keys(MoodGraph))
}

// IsValidGenre checks if a genre exists in the mood graph.
func IsValidGenre(name string) bool {
	_, ok := MoodGraph[name]
	return ok
}

// Next picks the genre to move to from current. Inside the graph it follows
// an edge; from a genre outside the graph it enters at any node. intn must
// return a value in [0, n).
func Next(current string, intn func(n int) int) string {
	if g, ok := MoodGraph[current]; ok && len(g.Adjacent) > 0 {
		return g.Adjacent[intn(len(g.Adjacent))]
	}
	names := GenreNames()
	return names[intn(len(names))]
}
