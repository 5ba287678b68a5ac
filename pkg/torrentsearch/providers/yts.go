package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/amaumene/debridstream/pkg/logger"
	"github.com/amaumene/debridstream/pkg/torrentsearch/models"
	"github.com/tidwall/gjson"
)

const ytsListEndpoint = "/api/v2/list_movies.json"

var DefaultYTSMirrors = []string{"https://yts.mx", "https://yts.lt"}

// YTSProvider searches the YTS movie API. Movies only.
type YTSProvider struct {
	Base
}

func NewYTSProvider(mirrors []string, log logger.Logger) *YTSProvider {
	if len(mirrors) == 0 {
		mirrors = DefaultYTSMirrors
	}
	return &YTSProvider{Base: newBase(ProviderYTS, mirrors, log)}
}

func (y *YTSProvider) Supports(t models.MediaType) bool { return t == models.MediaMovie }

func (y *YTSProvider) Search(ctx context.Context, options models.SearchOptions) ([]models.SourceCandidate, error) {
	term := options.Query.IMDBID
	if term == "" {
		term = options.Query.Title
	}

	return y.withMirrors(ctx, func(ctx context.Context, baseURL string) ([]models.SourceCandidate, error) {
		apiURL := fmt.Sprintf("%s%s?query_term=%s&limit=20", baseURL, ytsListEndpoint, url.QueryEscape(term))
		body, err := y.get(ctx, apiURL)
		if err != nil {
			return nil, err
		}
		if !gjson.ValidBytes(body) {
			return nil, fmt.Errorf("yts: invalid JSON response")
		}

		result := gjson.ParseBytes(body)
		if status := result.Get("status").String(); status != "ok" {
			return nil, fmt.Errorf("yts: status %q: %s", status, result.Get("status_message").String())
		}
		return y.toCandidates(result, options.Query), nil
	})
}

func (y *YTSProvider) toCandidates(result gjson.Result, q models.SearchQuery) []models.SourceCandidate {
	var candidates []models.SourceCandidate
	result.Get("data.movies").ForEach(func(_, movie gjson.Result) bool {
		if q.Year > 0 && movie.Get("year").Int() != 0 && movie.Get("year").Int() != int64(q.Year) {
			return true
		}
		title := movie.Get("title_long").String()
		movie.Get("torrents").ForEach(func(_, torrent gjson.Result) bool {
			hash := strings.ToLower(torrent.Get("hash").String())
			if !validHash(hash) {
				return true
			}
			// YTS names omit the scene tags, rebuild them for quality detection
			name := fmt.Sprintf("%s %s %s %s", title, torrent.Get("quality").String(),
				torrent.Get("type").String(), torrent.Get("video_codec").String())
			name = strings.Join(strings.Fields(name), " ")

			candidates = append(candidates, models.SourceCandidate{
				Provider:       ProviderYTS,
				Name:           name,
				URL:            BuildMagnet(hash, name),
				InfoHash:       hash,
				SizeBytes:      torrent.Get("size_bytes").Int(),
				Seeders:        int(torrent.Get("seeds").Int()),
				Leechers:       int(torrent.Get("peers").Int()),
				RequiresDebrid: true,
				Type:           models.MediaMovie,
			})
			return true
		})
		return true
	})
	return candidates
}
