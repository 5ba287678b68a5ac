package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/amaumene/debridstream/pkg/torrentsearch/models"
	"github.com/cehbz/torrentname"
)

// BuildSearchQuery builds the free-text query sent to keyword providers:
// "title year" for movies, "title sXXeYY" or "title sXX" for TV.
func BuildSearchQuery(q models.SearchQuery) string {
	title := formatQueryString(q.Title)

	switch q.Type {
	case models.MediaMovie:
		if q.Year > 0 {
			return fmt.Sprintf("%s %d", title, q.Year)
		}
		return title
	case models.MediaTV:
		if q.Season > 0 && q.Episode > 0 {
			return fmt.Sprintf("%s s%02de%02d", title, q.Season, q.Episode)
		}
		if q.Season > 0 {
			return fmt.Sprintf("%s s%02d", title, q.Season)
		}
		return title
	default:
		return title
	}
}

var (
	alphanumericRegex = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	spacesRegex       = regexp.MustCompile(`\s+`)
)

// formatQueryString replaces punctuation with spaces and collapses runs of whitespace.
func formatQueryString(query string) string {
	query = alphanumericRegex.ReplaceAllString(query, " ")
	query = spacesRegex.ReplaceAllString(query, " ")
	return strings.TrimSpace(query)
}

// MatchesEpisode checks if a release name matches a specific season and episode.
func MatchesEpisode(name string, season, episode int) bool {
	parsed := torrentname.Parse(name)
	return parsed != nil && parsed.Season == season && parsed.Episode == episode
}

// MatchesSeason checks if a release name is a full-season pack for season.
func MatchesSeason(name string, season int) bool {
	parsed := torrentname.Parse(name)
	return parsed != nil && parsed.Season == season && parsed.Episode == 0
}

var (
	packPatterns = []string{
		"collection", "trilogy", "quadrilogy", "pentalogy",
		"hexalogy", "saga", "duology", "anthology",
		"box set", "boxset", " pack", "movie series", "film series",
		"all parts", "all movies", "movies collection",
	}
	yearRangePattern = regexp.MustCompile(`\d{4}\s*[-–—]\s*\d{4}`)
)

// IsMoviePack reports whether a release bundles several films.
func IsMoviePack(name string) bool {
	nameLower := strings.ToLower(name)
	for _, pattern := range packPatterns {
		if strings.Contains(nameLower, pattern) {
			return true
		}
	}
	return yearRangePattern.MatchString(name)
}
