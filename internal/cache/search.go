package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/amaumene/debridstream/internal/constants"
	"github.com/amaumene/debridstream/internal/metrics"
	"github.com/amaumene/debridstream/pkg/torrentsearch/models"
	"golang.org/x/sync/singleflight"
)

// SearchKey serializes the fields that identify a search. encoding/json
// writes map keys sorted, so field order at the call site never matters.
func SearchKey(q models.SearchQuery, f models.FilterOptions) string {
	fields := map[string]interface{}{
		"title":      strings.ToLower(strings.TrimSpace(q.Title)),
		"type":       q.Type,
		"year":       q.Year,
		"season":     q.Season,
		"episode":    q.Episode,
		"imdb":       strings.ToLower(q.IMDBID),
		"quality":    f.Quality,
		"minSeeders": f.MinSeeders,
		"maxSize":    f.MaxSize,
		"language":   strings.ToLower(f.Language),
	}
	b, _ := json.Marshal(fields)
	return string(b)
}

// SearchFunc performs an uncached search.
type SearchFunc func(ctx context.Context) ([]models.SourceCandidate, error)

// SearchCache memoizes search results and coalesces identical concurrent misses.
type SearchCache struct {
	entries *TTLCache[[]models.SourceCandidate]
	group   singleflight.Group
}

func NewSearchCache(capacity int, ttl time.Duration, clock Clock) *SearchCache {
	return &SearchCache{entries: New[[]models.SourceCandidate](capacity, ttl, clock)}
}

// GetOrSearch returns the cached list for key or runs search once for all
// concurrent callers and stores its result. Failed searches are not cached.
// The shared search does not inherit the caller's cancellation; a caller
// that goes away stops waiting without failing the others.
func (s *SearchCache) GetOrSearch(ctx context.Context, key string, search SearchFunc) ([]models.SourceCandidate, bool, error) {
	if results, ok := s.entries.Get(key); ok {
		metrics.SearchCache.WithLabelValues("hit").Inc()
		return results, true, nil
	}
	metrics.SearchCache.WithLabelValues("miss").Inc()

	ch := s.group.DoChan(key, func() (interface{}, error) {
		if results, ok := s.entries.Get(key); ok {
			return results, nil
		}
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.SearchTimeout)
		defer cancel()
		results, err := search(shared)
		if err != nil {
			return nil, err
		}
		s.entries.Set(key, results)
		return results, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]models.SourceCandidate), false, nil
	}
}

func (s *SearchCache) Clear() {
	s.entries.Clear()
}

func (s *SearchCache) Len() int {
	return s.entries.Len()
}

// StartCleanup runs the background sweep.
func (s *SearchCache) StartCleanup(ctx context.Context, interval time.Duration) {
	s.entries.StartCleanup(ctx, interval)
}
