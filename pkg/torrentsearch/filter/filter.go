package filter

import (
	"strings"

	"github.com/amaumene/debridstream/pkg/torrentsearch/models"
)

// FilterResults drops every candidate failing one of the supplied criteria or
// carrying undesirable content. Order is preserved.
func FilterResults(list []models.SourceCandidate, opts models.FilterOptions) []models.SourceCandidate {
	out := make([]models.SourceCandidate, 0, len(list))
	for _, c := range list {
		if HasUndesirableContent(c.Name) {
			continue
		}
		if opts.Quality != "" && c.Quality != opts.Quality {
			continue
		}
		if c.Seeders < opts.MinSeeders {
			continue
		}
		if opts.MaxSize > 0 && c.SizeBytes > opts.MaxSize {
			continue
		}
		if opts.Language != "" && !languageMatches(c.Language, opts.Language) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func languageMatches(have, want string) bool {
	return strings.EqualFold(have, want) || strings.EqualFold(have, "multi")
}

// MatchQuery keeps the candidates whose names match the query title, and for
// episode queries drops releases parsed as a different season or episode.
// Queries carrying only an IMDB id skip the title check.
func MatchQuery(list []models.SourceCandidate, q models.SearchQuery) []models.SourceCandidate {
	year := q.Year
	if q.Type == models.MediaTV {
		// later seasons carry later years than the show's first air date
		year = 0
	}

	out := make([]models.SourceCandidate, 0, len(list))
	for _, c := range list {
		if q.Title != "" && !CheckTitleMatch(q.Title, c.Name, year, q.Aliases) {
			continue
		}
		if q.Type == models.MediaTV && q.Season > 0 && c.Season > 0 && c.Season != q.Season {
			continue
		}
		if q.IsEpisode() && c.Episode > 0 && c.Episode != q.Episode {
			continue
		}
		out = append(out, c)
	}
	return out
}
