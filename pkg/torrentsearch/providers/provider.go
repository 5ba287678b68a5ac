// Package providers contains torrent and direct-link search provider implementations.
package providers

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amaumene/debridstream/pkg/httputil"
	"github.com/amaumene/debridstream/pkg/logger"
	"github.com/amaumene/debridstream/pkg/torrentsearch/models"
)

// Provider name constants for consistent usage across the codebase
const (
	ProviderApiBay      = "apibay"
	ProviderTorrentsCSV = "torrentscsv"
	ProviderYTS         = "yts"
	ProviderEZTV        = "eztv"
	ProviderYGG         = "ygg"
	Provider1337x       = "1337x"
	ProviderDirectLinks = "directlinks"
)

const (
	userAgent       = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	providerTimeout = 30 * time.Second
	maxBodySize     = 8 << 20
)

// StatusError is returned when an upstream answers with a non-200 status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.Code)
}

// Base carries what every adapter shares: an ordered mirror list, an HTTP
// client and a logger.
type Base struct {
	name       string
	mirrors    []string
	httpClient *http.Client
	logger     logger.Logger
}

func newBase(name string, mirrors []string, log logger.Logger) Base {
	if log == nil {
		log = logger.Discard()
	}
	return Base{
		name:       name,
		mirrors:    mirrors,
		httpClient: httputil.NewHTTPClient(providerTimeout),
		logger:     log,
	}
}

func (b *Base) Name() string { return b.name }

// Mirrors returns the configured base URLs in failover order.
func (b *Base) Mirrors() []string { return b.mirrors }

// SetHTTPClient replaces the client, mostly for tests.
func (b *Base) SetHTTPClient(c *http.Client) { b.httpClient = c }

// withMirrors runs fn against each mirror in order, moving to the next one
// only when the failure looks like the mirror itself is unreachable.
func (b *Base) withMirrors(ctx context.Context, fn func(ctx context.Context, baseURL string) ([]models.SourceCandidate, error)) ([]models.SourceCandidate, error) {
	if len(b.mirrors) == 0 {
		return nil, fmt.Errorf("%s: no mirrors configured", b.name)
	}

	var lastErr error
	for i, mirror := range b.mirrors {
		results, err := fn(ctx, strings.TrimRight(mirror, "/"))
		if err == nil {
			return results, nil
		}
		lastErr = err
		if !shouldFailover(ctx, err) {
			return nil, err
		}
		if i < len(b.mirrors)-1 {
			b.logger.Debugf("[%s] mirror %s failed, trying next: %v", b.name, mirror, err)
		}
	}
	return nil, fmt.Errorf("%s: all mirrors failed: %w", b.name, lastErr)
}

func shouldFailover(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var statusErr *StatusError
	if stderrors.As(err, &statusErr) {
		return statusErr.Code >= 500 || statusErr.Code == http.StatusForbidden || statusErr.Code == http.StatusTooManyRequests
	}
	var netErr net.Error
	var urlErr *url.Error
	return stderrors.As(err, &netErr) || stderrors.As(err, &urlErr)
}

// get fetches rawURL and returns the body when the status is 200.
func (b *Base) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", b.name, err)
	}
	return body, nil
}

// HealthCheck probes the first mirror that answers.
func (b *Base) HealthCheck(ctx context.Context) error {
	var lastErr error
	for _, mirror := range b.mirrors {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, mirror, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", userAgent)
		resp, err := b.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < 500 {
			return nil
		}
		lastErr = &StatusError{URL: mirror, Code: resp.StatusCode}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%s: no mirrors configured", b.name)
	}
	return lastErr
}

