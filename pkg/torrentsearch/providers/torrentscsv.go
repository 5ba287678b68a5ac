package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/amaumene/debridstream/pkg/logger"
	"github.com/amaumene/debridstream/pkg/torrentsearch/models"
	"github.com/amaumene/debridstream/pkg/torrentsearch/utils"
)

const (
	torrentsCSVSearchEndpoint = "/service/search"
	torrentsCSVPageSize       = 100
)

var DefaultTorrentsCSVMirrors = []string{"https://torrents-csv.com"}

type TorrentsCSVProvider struct {
	Base
}

type torrentsCSVResponse struct {
	Torrents []torrentsCSVTorrent `json:"torrents"`
	Next     int64                `json:"next"`
}

type torrentsCSVTorrent struct {
	RowID       int64  `json:"rowid"`
	InfoHash    string `json:"infohash"`
	Name        string `json:"name"`
	SizeBytes   int64  `json:"size_bytes"`
	CreatedUnix int64  `json:"created_unix"`
	Seeders     int    `json:"seeders"`
	Leechers    int    `json:"leechers"`
	Completed   int    `json:"completed"`
}

func NewTorrentsCSVProvider(mirrors []string, log logger.Logger) *TorrentsCSVProvider {
	if len(mirrors) == 0 {
		mirrors = DefaultTorrentsCSVMirrors
	}
	return &TorrentsCSVProvider{Base: newBase(ProviderTorrentsCSV, mirrors, log)}
}

func (p *TorrentsCSVProvider) Supports(models.MediaType) bool { return true }

func (p *TorrentsCSVProvider) Search(ctx context.Context, options models.SearchOptions) ([]models.SourceCandidate, error) {
	query := utils.BuildSearchQuery(options.Query)

	return p.withMirrors(ctx, func(ctx context.Context, baseURL string) ([]models.SourceCandidate, error) {
		apiURL := fmt.Sprintf("%s%s?q=%s&size=%d", baseURL, torrentsCSVSearchEndpoint, url.QueryEscape(query), torrentsCSVPageSize)
		body, err := p.get(ctx, apiURL)
		if err != nil {
			return nil, err
		}

		var response torrentsCSVResponse
		if err := json.Unmarshal(body, &response); err != nil {
			return nil, fmt.Errorf("failed to parse torrents-csv response: %w", err)
		}
		return p.toCandidates(response.Torrents, options.Query), nil
	})
}

func (p *TorrentsCSVProvider) toCandidates(torrents []torrentsCSVTorrent, q models.SearchQuery) []models.SourceCandidate {
	candidates := make([]models.SourceCandidate, 0, len(torrents))
	for _, torrent := range torrents {
		hash := strings.ToLower(torrent.InfoHash)
		if !validHash(hash) {
			continue
		}
		// Filter out movie packs for movie searches
		if q.Type == models.MediaMovie && utils.IsMoviePack(torrent.Name) {
			continue
		}
		candidates = append(candidates, models.SourceCandidate{
			Provider:       ProviderTorrentsCSV,
			Name:           torrent.Name,
			URL:            BuildMagnet(hash, torrent.Name),
			InfoHash:       hash,
			SizeBytes:      torrent.SizeBytes,
			Seeders:        torrent.Seeders,
			Leechers:       torrent.Leechers,
			RequiresDebrid: true,
			Type:           q.Type,
		})
	}
	return candidates
}
