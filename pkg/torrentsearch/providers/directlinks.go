package providers

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/amaumene/debridstream/pkg/hosters"
	"github.com/amaumene/debridstream/pkg/logger"
	"github.com/amaumene/debridstream/pkg/torrentsearch/models"
)

const directLinksMaxPosts = 5

// DirectLinkProvider searches a blog-style direct download index and returns
// the file-hoster links it publishes. Those links need the debrid service to
// become streamable.
type DirectLinkProvider struct {
	Base
	searchPath string
}

// NewDirectLinkProvider builds the adapter. searchPath is appended to each
// mirror with the escaped query substituted for %s, e.g. "/?s=%s".
func NewDirectLinkProvider(mirrors []string, searchPath string, log logger.Logger) *DirectLinkProvider {
	if searchPath == "" {
		searchPath = "/?s=%s"
	}
	return &DirectLinkProvider{
		Base:       newBase(ProviderDirectLinks, mirrors, log),
		searchPath: searchPath,
	}
}

func (d *DirectLinkProvider) Supports(models.MediaType) bool { return true }

func (d *DirectLinkProvider) Search(ctx context.Context, options models.SearchOptions) ([]models.SourceCandidate, error) {
	query := options.Query.Title
	if options.Query.Year > 0 {
		query = fmt.Sprintf("%s %d", query, options.Query.Year)
	}

	return d.withMirrors(ctx, func(ctx context.Context, baseURL string) ([]models.SourceCandidate, error) {
		searchURL := baseURL + fmt.Sprintf(d.searchPath, url.QueryEscape(query))
		body, err := d.get(ctx, searchURL)
		if err != nil {
			return nil, err
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", searchURL, err)
		}

		seen := make(map[string]bool)
		candidates := d.collect(doc, options.Query.Title, options.Query, seen)

		for _, post := range d.postLinks(doc, baseURL) {
			if ctx.Err() != nil {
				break
			}
			postBody, err := d.get(ctx, post.href)
			if err != nil {
				d.logger.Debugf("[DirectLinks] post %s failed: %v", post.href, err)
				continue
			}
			postDoc, err := goquery.NewDocumentFromReader(bytes.NewReader(postBody))
			if err != nil {
				continue
			}
			candidates = append(candidates, d.collect(postDoc, post.title, options.Query, seen)...)
		}
		return candidates, nil
	})
}

type postLink struct {
	title string
	href  string
}

func (d *DirectLinkProvider) postLinks(doc *goquery.Document, baseURL string) []postLink {
	base, _ := url.Parse(baseURL)
	var posts []postLink
	doc.Find("article h2 a, h2.entry-title a, .post-title a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		posts = append(posts, postLink{title: strings.TrimSpace(a.Text()), href: ref.String()})
		return len(posts) < directLinksMaxPosts
	})
	return posts
}

// collect turns every supported hoster anchor of doc into a candidate.
func (d *DirectLinkProvider) collect(doc *goquery.Document, title string, q models.SearchQuery, seen map[string]bool) []models.SourceCandidate {
	var candidates []models.SourceCandidate
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		links := hosters.ExtractLinks(href)
		if len(links) == 0 || seen[links[0]] {
			return
		}
		link := links[0]
		seen[link] = true

		name := hosters.FileName(link)
		bare := path.Ext(name) == "" || name == hosters.Validate(link).Host
		if bare && title != "" {
			name = title
		}
		candidates = append(candidates, models.SourceCandidate{
			Provider:       ProviderDirectLinks,
			Name:           name,
			URL:            link,
			RequiresDebrid: true,
			Type:           q.Type,
		})
	})
	return candidates
}
