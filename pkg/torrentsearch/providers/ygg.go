package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/amaumene/debridstream/pkg/logger"
	"github.com/amaumene/debridstream/pkg/torrentsearch/filter"
	"github.com/amaumene/debridstream/pkg/torrentsearch/models"
	"github.com/amaumene/debridstream/pkg/torrentsearch/utils"
)

const (
	yggSearchEndpoint  = "/torrents"
	yggTorrentEndpoint = "/torrent"
	movieCategories    = "&category_id=2178&category_id=2181&category_id=2183"
	seriesCategories   = "&category_id=2179&category_id=2181&category_id=2182&category_id=2184"
	yggPerPage         = 100
	// hash lookups cost one request each
	yggMaxHashLookups = 10
)

var DefaultYGGMirrors = []string{"https://yggapi.eu"}

// YGGProvider searches the YGG API, a French tracker. Search results carry
// no info hash, so the best entries get a detail lookup.
type YGGProvider struct {
	Base
}

// YGGTorrent represents a torrent from YGG API.
type YGGTorrent struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Size     int64  `json:"size"`
	Seeders  int    `json:"seeders"`
	Leechers int    `json:"leechers"`
	Hash     string `json:"hash,omitempty"`
}

// YGGTorrentDetail represents detailed torrent information from YGG API.
type YGGTorrentDetail struct {
	ID   int    `json:"id"`
	Hash string `json:"hash"`
}

func NewYGGProvider(mirrors []string, log logger.Logger) *YGGProvider {
	if len(mirrors) == 0 {
		mirrors = DefaultYGGMirrors
	}
	return &YGGProvider{Base: newBase(ProviderYGG, mirrors, log)}
}

func (y *YGGProvider) Supports(models.MediaType) bool { return true }

// Search searches for torrents using YGG API.
func (y *YGGProvider) Search(ctx context.Context, options models.SearchOptions) ([]models.SourceCandidate, error) {
	query := utils.BuildSearchQuery(options.Query)

	return y.withMirrors(ctx, func(ctx context.Context, baseURL string) ([]models.SourceCandidate, error) {
		body, err := y.get(ctx, y.buildAPIURL(baseURL, query, options.Query.Type))
		if err != nil {
			return nil, err
		}

		// YGG API returns an array directly, not wrapped in an object
		var torrents []YGGTorrent
		if err := json.Unmarshal(body, &torrents); err != nil {
			return nil, fmt.Errorf("failed to decode YGG response: %w", err)
		}
		return y.toCandidates(ctx, baseURL, torrents, options.Query), nil
	})
}

// buildAPIURL constructs the YGG API URL with query parameters.
func (y *YGGProvider) buildAPIURL(baseURL, query string, mediaType models.MediaType) string {
	categories := ""
	switch mediaType {
	case models.MediaMovie:
		categories = movieCategories
	case models.MediaTV:
		categories = seriesCategories
	}
	return fmt.Sprintf("%s%s?q=%s&page=1&per_page=%d%s",
		baseURL, yggSearchEndpoint, url.QueryEscape(query), yggPerPage, categories)
}

func (y *YGGProvider) toCandidates(ctx context.Context, baseURL string, torrents []YGGTorrent, q models.SearchQuery) []models.SourceCandidate {
	candidates := make([]models.SourceCandidate, 0, len(torrents))
	lookups := 0
	for _, torrent := range torrents {
		hash := strings.ToLower(torrent.Hash)
		if hash == "" && lookups < yggMaxHashLookups {
			lookups++
			fetched, err := y.fetchTorrentHash(ctx, baseURL, torrent.ID)
			if err != nil {
				y.logger.Debugf("[%s] hash lookup for %d failed: %v", y.name, torrent.ID, err)
				continue
			}
			hash = strings.ToLower(fetched)
		}
		if !validHash(hash) {
			continue
		}

		language := filter.DetectLanguage(torrent.Title)
		if language == "english" {
			language = "french"
		}
		candidates = append(candidates, models.SourceCandidate{
			Provider:       ProviderYGG,
			Name:           torrent.Title,
			URL:            BuildMagnet(hash, torrent.Title),
			InfoHash:       hash,
			SizeBytes:      torrent.Size,
			Seeders:        torrent.Seeders,
			Leechers:       torrent.Leechers,
			Language:       language,
			RequiresDebrid: true,
			Type:           q.Type,
		})
	}
	return candidates
}

// fetchTorrentHash gets the info hash of one torrent.
func (y *YGGProvider) fetchTorrentHash(ctx context.Context, baseURL string, id int) (string, error) {
	body, err := y.get(ctx, fmt.Sprintf("%s%s/%d", baseURL, yggTorrentEndpoint, id))
	if err != nil {
		return "", err
	}

	var detail YGGTorrentDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return "", fmt.Errorf("failed to decode YGG response: %w", err)
	}
	return detail.Hash, nil
}
