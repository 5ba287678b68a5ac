// Package torrentsearch fans a content query out to every registered source
// provider, isolates their failures and returns one merged, filtered and
// ranked candidate list.
package torrentsearch

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/amaumene/debridstream/internal/errors"
	"github.com/amaumene/debridstream/internal/metrics"
	"github.com/amaumene/debridstream/pkg/logger"
	"github.com/amaumene/debridstream/pkg/ratelimiter"
	"github.com/amaumene/debridstream/pkg/torrentsearch/filter"
	"github.com/amaumene/debridstream/pkg/torrentsearch/models"
	"github.com/amaumene/debridstream/pkg/torrentsearch/sorter"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

const (
	DefaultTimeout     = 15 * time.Second
	DefaultMaxResults  = 50
	DefaultMinInterval = time.Second
	healthTimeout      = 5 * time.Second
)

// Provider is the uniform search contract every adapter implements.
type Provider interface {
	Name() string
	Supports(t models.MediaType) bool
	Search(ctx context.Context, options models.SearchOptions) ([]models.SourceCandidate, error)
	HealthCheck(ctx context.Context) error
}

type registeredProvider struct {
	provider Provider
	limiter  ratelimiter.RateLimiter
}

// TorrentSearch is the provider registry.
type TorrentSearch struct {
	mu         sync.RWMutex
	providers  []registeredProvider
	timeout    time.Duration
	maxResults int
	logger     logger.Logger
}

// Results is the outcome of one registry search.
type Results struct {
	Candidates     []models.SourceCandidate `json:"results"`
	Count          int                      `json:"count"`
	ProviderErrors map[string]string        `json:"providerErrors,omitempty"`
}

// ProviderHealth is one line of the diagnostics report.
type ProviderHealth struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
}

func New(timeout time.Duration, maxResults int, log logger.Logger) *TorrentSearch {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if log == nil {
		log = logger.Discard()
	}
	return &TorrentSearch{
		timeout:    timeout,
		maxResults: maxResults,
		logger:     log,
	}
}

// RegisterProvider adds a provider gated by its own minimum-interval limiter.
// Registration order is the merge order.
func (ts *TorrentSearch) RegisterProvider(provider Provider, minInterval time.Duration) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.providers = append(ts.providers, registeredProvider{
		provider: provider,
		limiter:  ratelimiter.NewMinInterval(minInterval),
	})
}

// Providers lists registered provider names in registration order.
func (ts *TorrentSearch) Providers() []string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	names := make([]string, len(ts.providers))
	for i, p := range ts.providers {
		names[i] = p.provider.Name()
	}
	return names
}

func (ts *TorrentSearch) eligible(t models.MediaType) []registeredProvider {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	var out []registeredProvider
	for _, p := range ts.providers {
		if p.provider.Supports(t) {
			out = append(out, p)
		}
	}
	return out
}

// Search queries every eligible provider concurrently and waits for all of
// them to settle. A failing or slow provider contributes nothing.
func (ts *TorrentSearch) Search(ctx context.Context, options models.SearchOptions) (*Results, error) {
	if options.Query.Title == "" && options.Query.IMDBID == "" {
		return nil, errors.NewInvalidRequestError("a title or an IMDB id is required")
	}

	providers := ts.eligible(options.Query.Type)
	perProvider := make([][]models.SourceCandidate, len(providers))
	providerErrs := make([]error, len(providers))

	var wg conc.WaitGroup
	for i, reg := range providers {
		i, reg := i, reg
		wg.Go(func() {
			perProvider[i], providerErrs[i] = ts.searchOne(ctx, reg, options)
		})
	}
	wg.Wait()

	results := &Results{ProviderErrors: make(map[string]string)}
	var merged []models.SourceCandidate
	for i, reg := range providers {
		if providerErrs[i] != nil {
			results.ProviderErrors[reg.provider.Name()] = providerErrs[i].Error()
			continue
		}
		merged = append(merged, perProvider[i]...)
	}

	candidates := ts.rank(merged, options)
	results.Candidates = candidates
	results.Count = len(candidates)

	ts.logger.Infof("[Registry] %q: %d providers, %d failed, %d merged, %d returned",
		options.Query.Title, len(providers), len(results.ProviderErrors), len(merged), len(candidates))
	return results, nil
}

// searchOne runs one provider under its rate limiter and the registry
// timeout. Panics and errors become ProviderUnavailable.
func (ts *TorrentSearch) searchOne(ctx context.Context, reg registeredProvider, options models.SearchOptions) ([]models.SourceCandidate, error) {
	name := reg.provider.Name()
	pctx, cancel := context.WithTimeout(ctx, ts.timeout)
	defer cancel()

	type outcome struct {
		results []models.SourceCandidate
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		var res outcome
		var pc panics.Catcher
		pc.Try(func() {
			if err := reg.limiter.Wait(pctx); err != nil {
				res.err = err
				return
			}
			res.results, res.err = reg.provider.Search(pctx, options)
		})
		if r := pc.Recovered(); r != nil {
			metrics.ProviderSearches.WithLabelValues(name, "panic").Inc()
			res.err = r.AsError()
		}
		done <- res
	}()

	// a provider that ignores cancellation is abandoned at the deadline
	var res outcome
	select {
	case res = <-done:
	case <-pctx.Done():
		res.err = pctx.Err()
	}

	if res.err != nil {
		outcome := "error"
		if stderrors.Is(res.err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		metrics.ProviderSearches.WithLabelValues(name, outcome).Inc()
		err := errors.NewProviderUnavailableError(name, res.err)
		ts.logger.WithField("kind", err.Kind).Warnf("[Registry] %s contributed no results: %v", name, res.err)
		return nil, err
	}

	metrics.ProviderSearches.WithLabelValues(name, "ok").Inc()
	ts.logger.Debugf("[Registry] %s returned %d candidates", name, len(res.results))
	return res.results, nil
}

// rank normalizes, de-duplicates, filters, sorts and caps the merged list.
func (ts *TorrentSearch) rank(merged []models.SourceCandidate, options models.SearchOptions) []models.SourceCandidate {
	seen := make(map[string]int, len(merged))
	normalized := make([]models.SourceCandidate, 0, len(merged))
	for _, c := range merged {
		normalize(&c)
		key := c.InfoHash
		if key == "" {
			key = c.URL
		}
		if idx, ok := seen[key]; ok {
			// same torrent from two providers: keep the better-seeded entry in the first slot
			if c.Seeders > normalized[idx].Seeders {
				normalized[idx] = c
			}
			continue
		}
		seen[key] = len(normalized)
		normalized = append(normalized, c)
	}

	matched := filter.MatchQuery(normalized, options.Query)
	filtered := filter.FilterResults(matched, options.Filters)
	sorted := sorter.SortResults(filtered)

	limit := ts.maxResults
	if options.MaxResults > 0 && options.MaxResults < limit {
		limit = options.MaxResults
	}
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func normalize(c *models.SourceCandidate) {
	if c.Quality == "" {
		c.Quality = filter.DetectQuality(c.Name)
	}
	if c.Language == "" {
		c.Language = filter.DetectLanguage(c.Name)
	}
	c.Size = filter.FormatSize(c.SizeBytes)
	sorter.Annotate(c)
}

// HealthCheck probes every provider concurrently. Diagnostics only.
func (ts *TorrentSearch) HealthCheck(ctx context.Context) []ProviderHealth {
	ts.mu.RLock()
	providers := append([]registeredProvider(nil), ts.providers...)
	ts.mu.RUnlock()

	report := make([]ProviderHealth, len(providers))
	var wg conc.WaitGroup
	for i, reg := range providers {
		i, reg := i, reg
		wg.Go(func() {
			hctx, cancel := context.WithTimeout(ctx, healthTimeout)
			defer cancel()

			start := time.Now()
			err := reg.provider.HealthCheck(hctx)
			report[i] = ProviderHealth{
				Name:      reg.provider.Name(),
				Healthy:   err == nil,
				LatencyMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				report[i].Error = err.Error()
			}
		})
	}
	wg.Wait()
	return report
}

// String describes the registry for status output.
func (ts *TorrentSearch) String() string {
	return fmt.Sprintf("registry(%d providers, timeout %s, max %d)", len(ts.Providers()), ts.timeout, ts.maxResults)
}
