package services

import (
	"context"

	"github.com/amaumene/debridstream/internal/cache"
	"github.com/amaumene/debridstream/internal/errors"
	"github.com/amaumene/debridstream/pkg/logger"
	"github.com/amaumene/debridstream/pkg/torrentsearch"
	"github.com/amaumene/debridstream/pkg/torrentsearch/models"
)

// SearchRequest is one user search.
type SearchRequest struct {
	Query      models.SearchQuery
	Filters    models.FilterOptions
	MaxResults int
	Instant    bool
}

type SearchResponse struct {
	Results        []models.SourceCandidate `json:"results"`
	Count          int                      `json:"count"`
	Cached         bool                     `json:"cached"`
	ProviderErrors map[string]string        `json:"providerErrors,omitempty"`
}

// SearchService puts the search cache and catalog title resolution in front
// of the provider registry.
type SearchService struct {
	registry *torrentsearch.TorrentSearch
	cache    *cache.SearchCache
	catalog  CatalogService
	debrid   DebridService
	logger   logger.Logger
}

func NewSearchService(registry *torrentsearch.TorrentSearch, searchCache *cache.SearchCache, catalog CatalogService, debrid DebridService, log logger.Logger) *SearchService {
	if log == nil {
		log = logger.Discard()
	}
	return &SearchService{
		registry: registry,
		cache:    searchCache,
		catalog:  catalog,
		debrid:   debrid,
		logger:   log,
	}
}

func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if err := s.completeQuery(ctx, &req.Query); err != nil {
		return nil, err
	}
	if req.Query.Type == "" {
		req.Query.Type = models.MediaMovie
	}

	var providerErrors map[string]string
	key := cache.SearchKey(req.Query, req.Filters)
	results, cached, err := s.cache.GetOrSearch(ctx, key, func(ctx context.Context) ([]models.SourceCandidate, error) {
		res, err := s.registry.Search(ctx, models.SearchOptions{
			Query:   req.Query,
			Filters: req.Filters,
		})
		if err != nil {
			return nil, err
		}
		providerErrors = res.ProviderErrors
		return res.Candidates, nil
	})
	if err != nil {
		return nil, err
	}
	if cached {
		s.logger.Debugf("[Cache] hit for %q", req.Query.Title)
	}

	if req.MaxResults > 0 && len(results) > req.MaxResults {
		results = results[:req.MaxResults]
	}
	if req.Instant {
		results = s.annotateInstant(ctx, results)
	}

	return &SearchResponse{
		Results:        results,
		Count:          len(results),
		Cached:         cached,
		ProviderErrors: providerErrors,
	}, nil
}

// completeQuery fills a missing title (and year) from the catalog.
func (s *SearchService) completeQuery(ctx context.Context, q *models.SearchQuery) error {
	if q.Title != "" {
		return nil
	}
	if q.IMDBID == "" {
		return errors.NewInvalidRequestError("a title or an IMDB id is required")
	}
	if s.catalog == nil {
		return errors.NewInvalidRequestError("a title is required when no catalog is configured")
	}

	title, err := s.catalog.ResolveTitle(ctx, q.IMDBID)
	if err != nil {
		return err
	}
	q.Title = title.Title
	q.Aliases = title.Aliases
	if q.Year == 0 {
		q.Year = title.Year
	}
	if q.Type == "" {
		q.Type = models.MediaType(title.Type)
	}
	return nil
}

// annotateInstant returns a copy of results with Instant set for every
// candidate the debrid service answered for. The cached slice is untouched.
func (s *SearchService) annotateInstant(ctx context.Context, results []models.SourceCandidate) []models.SourceCandidate {
	if s.debrid == nil || !s.debrid.IsConfigured() || len(results) == 0 {
		return results
	}

	magnets := make([]string, 0, len(results))
	for _, c := range results {
		if c.InfoHash != "" {
			magnets = append(magnets, c.URL)
		}
	}
	answers := s.debrid.CheckInstant(ctx, magnets)
	if len(answers) == 0 {
		return results
	}

	byMagnet := make(map[string]bool, len(answers))
	for _, a := range answers {
		byMagnet[a.Magnet] = a.Instant
	}

	annotated := make([]models.SourceCandidate, len(results))
	copy(annotated, results)
	for i := range annotated {
		if instant, ok := byMagnet[annotated[i].URL]; ok {
			v := instant
			annotated[i].Instant = &v
		}
	}
	return annotated
}
