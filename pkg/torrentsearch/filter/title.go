package filter

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinTokenOverlap is the share of words two titles must have in common to
// match when neither contains the other.
const MinTokenOverlap = 0.7

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
	yearToken       = regexp.MustCompile(`^(19|20)\d{2}$`)
)

// foldAccents turns "Amélie" into "Amelie".
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeTitle lowercases, folds accents, strips punctuation and year
// tokens and collapses whitespace.
func NormalizeTitle(title string) string {
	return normalizeKeeping(title, nil)
}

// normalizeKeeping is NormalizeTitle except that the year tokens in keep
// stay in place.
func normalizeKeeping(title string, keep map[string]bool) string {
	words := titleWords(title)
	kept := words[:0]
	for _, w := range words {
		if yearToken.MatchString(w) && !keep[w] {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

func titleWords(title string) []string {
	s := strings.ToLower(foldAccents(title))
	s = nonAlphanumeric.ReplaceAllString(s, " ")
	return strings.Fields(s)
}

// titleYears returns the year-shaped words that belong to the title itself,
// as in "1917" or "Blade Runner 2049". A token within a year of the release
// year is taken as the release year, unless it is all the title has.
func titleYears(searchTitle string, year int) map[string]bool {
	words := titleWords(searchTitle)
	keep := make(map[string]bool)
	plain := 0
	for _, w := range words {
		if !yearToken.MatchString(w) {
			plain++
			continue
		}
		y, _ := strconv.Atoi(w)
		if year == 0 || y < year-1 || y > year+1 {
			keep[w] = true
		}
	}
	if plain == 0 {
		for _, w := range words {
			keep[w] = true
		}
	}
	return keep
}

func yearsIn(title string, skip map[string]bool) []int {
	var years []int
	for _, w := range titleWords(title) {
		if yearToken.MatchString(w) && !skip[w] {
			y, _ := strconv.Atoi(w)
			years = append(years, y)
		}
	}
	return years
}

// containsPhrase checks containment on word boundaries.
func containsPhrase(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

// CheckTitleMatch decides whether a candidate release name refers to the
// searched title. Containment in either direction or through an alias wins,
// otherwise the word overlap has to reach MinTokenOverlap. When year is set
// and the candidate names years other than those in the title, one of them
// must be within a year of it.
func CheckTitleMatch(searchTitle, candidateTitle string, year int, aliases []string) bool {
	keep := titleYears(searchTitle, year)
	search := normalizeKeeping(searchTitle, keep)
	candidate := normalizeKeeping(candidateTitle, keep)
	if search == "" || candidate == "" {
		return false
	}

	if year > 0 && !yearCompatible(candidateTitle, year, keep) {
		return false
	}

	if containsPhrase(candidate, search) || containsPhrase(search, candidate) {
		return true
	}

	for _, alias := range aliases {
		if containsPhrase(candidate, normalizeKeeping(alias, keep)) {
			return true
		}
	}

	return tokenOverlap(search, candidate) >= MinTokenOverlap
}

func yearCompatible(candidateTitle string, year int, titleYears map[string]bool) bool {
	years := yearsIn(candidateTitle, titleYears)
	if len(years) == 0 {
		return true
	}
	for _, y := range years {
		if y >= year-1 && y <= year+1 {
			return true
		}
	}
	return false
}

// tokenOverlap is |A ∩ B| / max(|A|, |B|) over distinct words.
func tokenOverlap(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	larger := len(setA)
	if len(setB) > larger {
		larger = len(setB)
	}
	if larger == 0 {
		return 0
	}

	common := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			common++
		}
	}
	return float64(common) / float64(larger)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}
