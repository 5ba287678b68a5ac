package sorter

import (
	"regexp"
	"sort"

	"github.com/amaumene/debridstream/pkg/torrentsearch/models"
	"github.com/cehbz/torrentname"
)

const (
	gib = int64(1) << 30

	// preferred size band for a single movie or episode
	minPreferredSize = 1 * gib
	maxPreferredSize = 8 * gib
)

var baseScores = map[models.Quality]int{
	models.Quality4K:      100,
	models.Quality1080p:   80,
	models.Quality720p:    60,
	models.QualityWEB:     50,
	models.Quality480p:    40,
	models.QualitySCR:     15,
	models.QualityCAM:     10,
	models.QualityUnknown: 0,
}

var (
	blurayHint = regexp.MustCompile(`(?i)blu-?ray|bdrip|brrip|remux`)
	webHint    = regexp.MustCompile(`(?i)web-?dl|web-?rip|(?:^|[^a-z])web(?:$|[^a-z])`)
	camHint    = regexp.MustCompile(`(?i)(?:^|[^a-z])(cam|hdcam|camrip|ts|hdts|telesync|scr|screener|dvdscr)(?:$|[^a-z])`)
)

// QualityScore ranks a candidate by its quality class, nudged by source hints
// found in the name.
func QualityScore(c models.SourceCandidate) int {
	score := baseScores[c.Quality]
	switch {
	case blurayHint.MatchString(c.Name):
		score += 5
	case webHint.MatchString(c.Name):
		score += 3
	}
	if camHint.MatchString(c.Name) {
		score -= 30
	}
	return score
}

func inPreferredBand(size int64) bool {
	return size >= minPreferredSize && size <= maxPreferredSize
}

// SortResults orders candidates by quality score, then seeders, then
// preference for the 1-8 GiB band. Ties keep their input order.
func SortResults(list []models.SourceCandidate) []models.SourceCandidate {
	sorted := make([]models.SourceCandidate, len(list))
	copy(sorted, list)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		sa, sb := QualityScore(a), QualityScore(b)
		if sa != sb {
			return sa > sb
		}
		if a.Seeders != b.Seeders {
			return a.Seeders > b.Seeders
		}
		return inPreferredBand(a.SizeBytes) && !inPreferredBand(b.SizeBytes)
	})
	return sorted
}

// Annotate fills season, episode and parse info from the release name when
// the provider did not supply them.
func Annotate(c *models.SourceCandidate) {
	parsed := torrentname.Parse(c.Name)
	if parsed == nil {
		return
	}
	c.ParsedInfo = parsed
	if c.Season == 0 && parsed.Season > 0 {
		c.Season = parsed.Season
	}
	if c.Episode == 0 && parsed.Episode > 0 {
		c.Episode = parsed.Episode
	}
}
