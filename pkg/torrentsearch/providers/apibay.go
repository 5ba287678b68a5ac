package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/amaumene/debridstream/pkg/logger"
	"github.com/amaumene/debridstream/pkg/torrentsearch/models"
	"github.com/amaumene/debridstream/pkg/torrentsearch/utils"
)

const (
	apibaySearchEndpoint = "/q.php"
	apibayVideoCategory  = "video"
)

// DefaultApiBayMirrors is the failover order used when none is configured.
var DefaultApiBayMirrors = []string{"https://apibay.org"}

// ApiBayProvider searches The Pirate Bay JSON API.
type ApiBayProvider struct {
	Base
}

// ApiBayTorrent represents a torrent from ApiBay API.
type ApiBayTorrent struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	InfoHash string `json:"info_hash"`
	Seeders  string `json:"seeders"`
	Leechers string `json:"leechers"`
	Size     string `json:"size"`
	Category string `json:"category"`
	IMDB     string `json:"imdb"`
}

func NewApiBayProvider(mirrors []string, log logger.Logger) *ApiBayProvider {
	if len(mirrors) == 0 {
		mirrors = DefaultApiBayMirrors
	}
	return &ApiBayProvider{Base: newBase(ProviderApiBay, mirrors, log)}
}

func (a *ApiBayProvider) Supports(models.MediaType) bool { return true }

// Search searches for torrents using ApiBay API.
func (a *ApiBayProvider) Search(ctx context.Context, options models.SearchOptions) ([]models.SourceCandidate, error) {
	query := utils.BuildSearchQuery(options.Query)
	return a.withMirrors(ctx, func(ctx context.Context, baseURL string) ([]models.SourceCandidate, error) {
		body, err := a.get(ctx, a.buildAPIURL(baseURL, query))
		if err != nil {
			return nil, err
		}
		torrents, err := decodeApiBay(body)
		if err != nil {
			return nil, err
		}
		return a.toCandidates(torrents, options.Query), nil
	})
}

// buildAPIURL constructs the ApiBay API URL with query parameters.
func (a *ApiBayProvider) buildAPIURL(baseURL, query string) string {
	return fmt.Sprintf("%s%s?q=%s&cat=%s",
		baseURL, apibaySearchEndpoint, url.QueryEscape(query), apibayVideoCategory)
}

func decodeApiBay(body []byte) ([]ApiBayTorrent, error) {
	var torrents []ApiBayTorrent
	if err := json.Unmarshal(body, &torrents); err != nil {
		return nil, fmt.Errorf("failed to decode ApiBay response: %w", err)
	}

	// Check for "No results returned" response
	if len(torrents) == 1 && torrents[0].Name == "No results returned" && torrents[0].ID == "0" {
		return []ApiBayTorrent{}, nil
	}
	return torrents, nil
}

func (a *ApiBayProvider) toCandidates(torrents []ApiBayTorrent, q models.SearchQuery) []models.SourceCandidate {
	candidates := make([]models.SourceCandidate, 0, len(torrents))
	for _, torrent := range torrents {
		hash := strings.ToLower(torrent.InfoHash)
		if torrent.ID == "0" || !validHash(hash) {
			continue
		}
		seeders, _ := strconv.Atoi(torrent.Seeders)
		leechers, _ := strconv.Atoi(torrent.Leechers)
		size, _ := strconv.ParseInt(torrent.Size, 10, 64)

		candidates = append(candidates, models.SourceCandidate{
			Provider:       ProviderApiBay,
			Name:           torrent.Name,
			URL:            BuildMagnet(hash, torrent.Name),
			InfoHash:       hash,
			SizeBytes:      size,
			Seeders:        seeders,
			Leechers:       leechers,
			RequiresDebrid: true,
			Type:           q.Type,
		})
	}
	return candidates
}
