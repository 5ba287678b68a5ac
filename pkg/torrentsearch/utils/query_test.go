package utils

import (
	"testing"

	"github.com/amaumene/debridstream/pkg/torrentsearch/models"
	"github.com/stretchr/testify/assert"
)

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name string
		q    models.SearchQuery
		want string
	}{
		{"movie with year", models.SearchQuery{Title: "Oppenheimer", Type: models.MediaMovie, Year: 2023}, "Oppenheimer 2023"},
		{"punctuation", models.SearchQuery{Title: "Spider-Man: Across the Spider-Verse", Type: models.MediaMovie}, "Spider Man Across the Spider Verse"},
		{"episode", models.SearchQuery{Title: "Severance", Type: models.MediaTV, Season: 2, Episode: 3}, "Severance s02e03"},
		{"season", models.SearchQuery{Title: "Severance", Type: models.MediaTV, Season: 1}, "Severance s01"},
		{"accents kept", models.SearchQuery{Title: "Amélie", Type: models.MediaMovie}, "Amélie"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildSearchQuery(tt.q))
		})
	}
}

func TestMatchesEpisodeAndSeason(t *testing.T) {
	assert.True(t, MatchesEpisode("Show.S01E05.720p.HDTV", 1, 5))
	assert.False(t, MatchesEpisode("Show.S01E06.720p.HDTV", 1, 5))
	assert.True(t, MatchesSeason("Show.S02.1080p.WEB", 2))
	assert.False(t, MatchesSeason("Show.S02E01.1080p.WEB", 2))
}

func TestIsMoviePack(t *testing.T) {
	assert.True(t, IsMoviePack("The Matrix Trilogy 1080p"))
	assert.True(t, IsMoviePack("Alien 1979-1997 Quadrilogy"))
	assert.True(t, IsMoviePack("Rocky 1976 - 2006 1080p"))
	assert.False(t, IsMoviePack("Oppenheimer.2023.1080p"))
}
