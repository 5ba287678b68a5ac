package handlers

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	imdbIDRegex  = regexp.MustCompile(`^tt\d+$`)
	episodeRegex = regexp.MustCompile(`^tt\d+:(\d+):(\d+)$`)
)

// parseIMDBEpisodeFormat splits "tt0903747:1:2" into id, season and episode.
func parseIMDBEpisodeFormat(id string) (string, int, int, bool) {
	matches := episodeRegex.FindStringSubmatch(id)
	if len(matches) != 3 {
		return "", 0, 0, false
	}

	imdbID := strings.Split(id, ":")[0]
	season, _ := strconv.Atoi(matches[1])
	episode, _ := strconv.Atoi(matches[2])
	return imdbID, season, episode, true
}

func isMovieFormat(id string) bool {
	return imdbIDRegex.MatchString(id)
}
