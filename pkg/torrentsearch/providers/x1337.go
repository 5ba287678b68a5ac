package providers

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/amaumene/debridstream/pkg/logger"
	"github.com/amaumene/debridstream/pkg/torrentsearch/filter"
	"github.com/amaumene/debridstream/pkg/torrentsearch/models"
	"github.com/amaumene/debridstream/pkg/torrentsearch/utils"
)

// detail pages are fetched one by one to read the magnet
const x1337MaxDetailPages = 8

var Default1337xMirrors = []string{"https://1337x.to", "https://1337x.st", "https://x1337x.ws"}

// X1337Provider scrapes the 1337x HTML listing and detail pages.
type X1337Provider struct {
	Base
}

type x1337Row struct {
	name     string
	href     string
	seeders  int
	leechers int
	size     int64
}

func NewX1337Provider(mirrors []string, log logger.Logger) *X1337Provider {
	if len(mirrors) == 0 {
		mirrors = Default1337xMirrors
	}
	return &X1337Provider{Base: newBase(Provider1337x, mirrors, log)}
}

func (x *X1337Provider) Supports(models.MediaType) bool { return true }

func (x *X1337Provider) Search(ctx context.Context, options models.SearchOptions) ([]models.SourceCandidate, error) {
	query := utils.BuildSearchQuery(options.Query)

	return x.withMirrors(ctx, func(ctx context.Context, baseURL string) ([]models.SourceCandidate, error) {
		body, err := x.get(ctx, x.searchURL(baseURL, query, options.Query.Type))
		if err != nil {
			return nil, err
		}
		rows, err := parse1337xRows(body)
		if err != nil {
			return nil, err
		}
		return x.resolveMagnets(ctx, baseURL, rows, options.Query), nil
	})
}

func (x *X1337Provider) searchURL(baseURL, query string, mediaType models.MediaType) string {
	escaped := url.PathEscape(query)
	switch mediaType {
	case models.MediaMovie:
		return fmt.Sprintf("%s/category-search/%s/Movies/1/", baseURL, escaped)
	case models.MediaTV:
		return fmt.Sprintf("%s/category-search/%s/TV/1/", baseURL, escaped)
	default:
		return fmt.Sprintf("%s/search/%s/1/", baseURL, escaped)
	}
}

func parse1337xRows(body []byte) ([]x1337Row, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse 1337x page: %w", err)
	}

	var rows []x1337Row
	doc.Find("table.table-list tbody tr").Each(func(_ int, tr *goquery.Selection) {
		link := tr.Find("td.name a[href^='/torrent/']").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		seeders, _ := strconv.Atoi(strings.TrimSpace(tr.Find("td.seeds").Text()))
		leechers, _ := strconv.Atoi(strings.TrimSpace(tr.Find("td.leeches").Text()))
		// the size cell repeats the seeder count in a nested span
		sizeText := tr.Find("td.size").Clone().Children().Remove().End().Text()

		rows = append(rows, x1337Row{
			name:     strings.TrimSpace(link.Text()),
			href:     href,
			seeders:  seeders,
			leechers: leechers,
			size:     filter.ParseSize(sizeText),
		})
	})
	return rows, nil
}

func (x *X1337Provider) resolveMagnets(ctx context.Context, baseURL string, rows []x1337Row, q models.SearchQuery) []models.SourceCandidate {
	candidates := make([]models.SourceCandidate, 0, len(rows))
	for i, row := range rows {
		if i >= x1337MaxDetailPages || ctx.Err() != nil {
			break
		}
		magnet, err := x.fetchMagnet(ctx, baseURL+row.href)
		if err != nil {
			x.logger.Debugf("[1337x] detail page %s failed: %v", row.href, err)
			continue
		}
		candidates = append(candidates, models.SourceCandidate{
			Provider:       Provider1337x,
			Name:           row.name,
			URL:            magnet,
			InfoHash:       InfoHashFromMagnet(magnet),
			SizeBytes:      row.size,
			Seeders:        row.seeders,
			Leechers:       row.leechers,
			RequiresDebrid: true,
			Type:           q.Type,
		})
	}
	return candidates
}

func (x *X1337Provider) fetchMagnet(ctx context.Context, detailURL string) (string, error) {
	body, err := x.get(ctx, detailURL)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	magnet, ok := doc.Find("a[href^='magnet:']").First().Attr("href")
	if !ok {
		return "", fmt.Errorf("no magnet link on %s", detailURL)
	}
	return magnet, nil
}
