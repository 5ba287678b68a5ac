package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/amaumene/debridstream/pkg/logger"
	"github.com/amaumene/debridstream/pkg/torrentsearch/models"
	"github.com/amaumene/debridstream/pkg/torrentsearch/utils"
)

var DefaultEZTVMirrors = []string{"https://eztvx.to", "https://eztv.re"}

// EZTVProvider looks TV episodes up by IMDB id. Without an id it has nothing to search.
type EZTVProvider struct {
	Base
}

type EZTVTorrent struct {
	Hash      string `json:"hash"`
	Filename  string `json:"filename"`
	MagnetURL string `json:"magnet_url"`
	Title     string `json:"title"`
	Season    string `json:"season"`
	Episode   string `json:"episode"`
	Seeds     int    `json:"seeds"`
	Peers     int    `json:"peers"`
	SizeBytes string `json:"size_bytes"`
}

type EZTVResponse struct {
	IMDBID        string        `json:"imdb_id"`
	TorrentsCount int           `json:"torrents_count"`
	Torrents      []EZTVTorrent `json:"torrents"`
}

func NewEZTVProvider(mirrors []string, log logger.Logger) *EZTVProvider {
	if len(mirrors) == 0 {
		mirrors = DefaultEZTVMirrors
	}
	return &EZTVProvider{Base: newBase(ProviderEZTV, mirrors, log)}
}

func (e *EZTVProvider) Supports(t models.MediaType) bool { return t == models.MediaTV }

func (e *EZTVProvider) Search(ctx context.Context, options models.SearchOptions) ([]models.SourceCandidate, error) {
	imdbID := strings.TrimPrefix(options.Query.IMDBID, "tt")
	if imdbID == "" {
		return nil, nil
	}

	return e.withMirrors(ctx, func(ctx context.Context, baseURL string) ([]models.SourceCandidate, error) {
		apiURL := fmt.Sprintf("%s/api/get-torrents?imdb_id=%s&limit=100", baseURL, imdbID)
		e.logger.Debugf("[EZTV] API call to search torrents - URL: %s", apiURL)

		body, err := e.get(ctx, apiURL)
		if err != nil {
			return nil, err
		}

		var resp EZTVResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode EZTV response: %w", err)
		}
		return e.toCandidates(resp.Torrents, options.Query), nil
	})
}

func (e *EZTVProvider) toCandidates(torrents []EZTVTorrent, q models.SearchQuery) []models.SourceCandidate {
	candidates := make([]models.SourceCandidate, 0, len(torrents))
	for _, t := range torrents {
		hash := strings.ToLower(t.Hash)
		if !validHash(hash) {
			continue
		}
		if q.IsEpisode() && !utils.MatchesEpisode(t.Title, q.Season, q.Episode) && !utils.MatchesSeason(t.Title, q.Season) {
			continue
		}

		season, _ := strconv.Atoi(t.Season)
		episode, _ := strconv.Atoi(t.Episode)
		size, _ := strconv.ParseInt(t.SizeBytes, 10, 64)
		link := t.MagnetURL
		if link == "" {
			link = BuildMagnet(hash, t.Title)
		}

		candidates = append(candidates, models.SourceCandidate{
			Provider:       ProviderEZTV,
			Name:           t.Title,
			URL:            link,
			InfoHash:       hash,
			SizeBytes:      size,
			Seeders:        t.Seeds,
			Leechers:       t.Peers,
			RequiresDebrid: true,
			Type:           models.MediaTV,
			Season:         season,
			Episode:        episode,
		})
	}
	return candidates
}
