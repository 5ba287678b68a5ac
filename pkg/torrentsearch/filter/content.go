package filter

import "regexp"

var undesirablePatterns = []*regexp.Regexp{
	// adult
	token(`xxx|porn|porno|adult|hentai|brazzers|onlyfans`),
	// samples and promo material
	token(`sample|trailer|teaser|featurette`),
	// protected archives
	regexp.MustCompile(`(?i)password[\s._-]*(protected)?|passworded`),
	// subtitle-only releases
	regexp.MustCompile(`(?i)(subs?|subtitles?)[\s._-]*only|subpack|\.(srt|sub|idx|ass)$`),
}

// HasUndesirableContent reports whether a release should never be offered.
func HasUndesirableContent(name string) bool {
	for _, p := range undesirablePatterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}
