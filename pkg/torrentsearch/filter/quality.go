// Package filter holds the pure evaluation functions applied to raw provider
// output: quality and language detection, title matching, content exclusion,
// size handling and criteria filtering.
package filter

import (
	"regexp"

	"github.com/amaumene/debridstream/pkg/torrentsearch/models"
)

// token wraps a pattern so it only matches as a whole release-name token.
// Release names use '.', '_', '-' and spaces as separators, so \b is not enough.
func token(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^a-z0-9])(?:` + pattern + `)(?:$|[^a-z0-9])`)
}

type qualityRule struct {
	quality models.Quality
	pattern *regexp.Regexp
}

// ordered: the first matching class wins
var qualityRules = []qualityRule{
	{models.Quality4K, token(`2160p|4k|uhd`)},
	{models.Quality1080p, token(`1080[pi]`)},
	{models.Quality720p, token(`720p`)},
	{models.Quality480p, token(`480p|576p|sd`)},
	{models.QualityCAM, token(`cam|camrip|hdcam|ts|hdts|telesync|tc|telecine`)},
	{models.QualitySCR, token(`scr|screener|dvdscr|bdscr`)},
	{models.QualityWEB, token(`web|web-?dl|web-?rip|webrip`)},
}

// DetectQuality classifies a release name. Unknown when nothing matches.
func DetectQuality(name string) models.Quality {
	for _, rule := range qualityRules {
		if rule.pattern.MatchString(name) {
			return rule.quality
		}
	}
	return models.QualityUnknown
}

var languageRules = []struct {
	language string
	pattern  *regexp.Regexp
}{
	{"multi", token(`multi|dual|dual-audio`)},
	{"french", token(`french|truefrench|vff|vfq|vf2|vfi|vf`)},
	{"vostfr", token(`vostfr|subfrench`)},
	{"spanish", token(`spanish|castellano|latino|esp`)},
	{"german", token(`german|deutsch`)},
	{"italian", token(`italian|ita`)},
}

// DetectLanguage guesses the audio language of a release. English by default.
func DetectLanguage(name string) string {
	for _, rule := range languageRules {
		if rule.pattern.MatchString(name) {
			return rule.language
		}
	}
	return "english"
}
