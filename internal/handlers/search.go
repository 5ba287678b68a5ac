package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/amaumene/debridstream/internal/errors"
	"github.com/amaumene/debridstream/internal/services"
	"github.com/amaumene/debridstream/pkg/torrentsearch/filter"
	"github.com/amaumene/debridstream/pkg/torrentsearch/models"
	"github.com/gin-gonic/gin"
)

func (h *Handler) handleSearch(c *gin.Context) {
	req, err := parseSearchRequest(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if req.MaxResults == 0 || req.MaxResults > h.config.Search.MaxResults {
		req.MaxResults = h.config.Search.MaxResults
	}

	res, err := h.services.Search.Search(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func parseSearchRequest(c *gin.Context) (services.SearchRequest, error) {
	var (
		req services.SearchRequest
		err error
	)
	q := &req.Query
	q.Title = strings.TrimSpace(c.Query("title"))

	switch t := strings.ToLower(c.Query("type")); t {
	case "", "movie":
		q.Type = models.MediaMovie
	case "tv", "series":
		q.Type = models.MediaTV
	default:
		return req, errors.NewInvalidRequestError("type must be movie or tv")
	}

	if id := strings.TrimSpace(c.Query("imdb")); id != "" {
		if imdbID, season, episode, ok := parseIMDBEpisodeFormat(id); ok {
			q.IMDBID, q.Season, q.Episode = imdbID, season, episode
			q.Type = models.MediaTV
		} else if isMovieFormat(id) {
			q.IMDBID = id
		} else {
			return req, errors.NewInvalidRequestError("imdb must look like tt1234567 or tt1234567:1:2")
		}
	}

	ints := map[string]*int{
		"year":       &q.Year,
		"minSeeders": &req.Filters.MinSeeders,
		"maxResults": &req.MaxResults,
	}
	if q.Season == 0 {
		ints["season"] = &q.Season
		ints["episode"] = &q.Episode
	}
	for name, dst := range ints {
		if *dst, err = queryInt(c, name); err != nil {
			return req, err
		}
	}

	if quality := c.Query("quality"); quality != "" {
		req.Filters.Quality = models.Quality(quality)
	}
	req.Filters.Language = strings.TrimSpace(c.Query("language"))
	if maxSize := c.Query("maxSize"); maxSize != "" {
		size := filter.ParseSize(maxSize)
		if size <= 0 {
			return req, errors.NewInvalidRequestError("maxSize must be a size such as 4GB")
		}
		req.Filters.MaxSize = size
	}
	req.Instant = c.Query("instant") == "true" || c.Query("instant") == "1"

	if q.Title == "" && q.IMDBID == "" {
		return req, errors.NewInvalidRequestError("title or imdb is required")
	}
	return req, nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.NewInvalidRequestError(name + " must be a non-negative integer")
	}
	return n, nil
}
