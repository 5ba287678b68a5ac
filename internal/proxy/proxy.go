// Package proxy relays video bytes from allow-listed upstream hosts to the
// browser, keeping Range semantics intact.
package proxy

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"syscall"

	"github.com/amaumene/debridstream/internal/errors"
	"github.com/amaumene/debridstream/internal/metrics"
	"github.com/amaumene/debridstream/pkg/logger"
)

const userAgent = "VLC/3.0.18 LibVLC/3.0.18"

// contentTypes is consulted when upstream sends no type or a generic one.
var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".ts":   "video/mp2t",
	".m3u8": "application/vnd.apple.mpegurl",
	".vtt":  "text/vtt",
	".srt":  "application/x-subrip",
}

var mirrored = []string{
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
	"Content-Disposition",
	"Last-Modified",
	"ETag",
}

type Proxy struct {
	client  *http.Client
	allowed []string
	logger  logger.Logger
}

// New returns a proxy restricted to the given hosts and their subdomains.
// Redirects leaving the allow-list are refused.
func New(allowed []string, client *http.Client, log logger.Logger) *Proxy {
	if log == nil {
		log = logger.Discard()
	}
	p := &Proxy{logger: log}
	for _, h := range allowed {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			p.allowed = append(p.allowed, h)
		}
	}

	c := *client
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return fmt.Errorf("stopped after %d redirects", len(via))
		}
		if !p.Allowed(req.URL.Hostname()) {
			return errors.NewHostNotAllowedError(req.URL.Hostname())
		}
		return nil
	}
	p.client = &c
	return p
}

// Allowed reports whether host is on the allow-list or below an entry.
func (p *Proxy) Allowed(host string) bool {
	host = strings.ToLower(host)
	for _, a := range p.allowed {
		if host == a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}

// Serve relays target to w. The response is always written; the returned
// error is for logging.
func (p *Proxy) Serve(w http.ResponseWriter, r *http.Request, target string) error {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return p.fail(w, errors.NewInvalidRequestError("stream target must be an http(s) URL"))
	}
	host := u.Hostname()
	if !p.Allowed(host) {
		return p.fail(w, errors.NewHostNotAllowedError(host))
	}

	method := http.MethodGet
	if r.Method == http.MethodHead {
		method = http.MethodHead
	}
	req, err := http.NewRequestWithContext(r.Context(), method, u.String(), nil)
	if err != nil {
		return p.fail(w, errors.NewInvalidRequestError(err.Error()))
	}
	for _, h := range []string{"Range", "If-Range"} {
		if v := r.Header.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, errors.KindHostNotAllowed) {
			return p.fail(w, errors.NewHostNotAllowedError(host))
		}
		return p.fail(w, classify(host, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		p.logger.Warnf("[Proxy] %s answered %d for %s", host, resp.StatusCode, u.Path)
		metrics.ProxyErrors.WithLabelValues("upstream_status").Inc()
		writeJSON(w, resp.StatusCode, map[string]string{
			"error": fmt.Sprintf("upstream returned %d", resp.StatusCode),
			"kind":  string(errors.KindUpstreamRejected),
		})
		return fmt.Errorf("upstream %s returned %d", host, resp.StatusCode)
	}

	header := w.Header()
	for _, h := range mirrored {
		if v := resp.Header.Get(h); v != "" {
			header.Set(h, v)
		}
	}
	if resp.StatusCode == http.StatusPartialContent && header.Get("Accept-Ranges") == "" {
		header.Set("Accept-Ranges", "bytes")
	}
	header.Set("Content-Type", contentType(resp.Header.Get("Content-Type"), u.Path))
	w.WriteHeader(resp.StatusCode)

	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		if r.Context().Err() != nil {
			return nil
		}
		se := classify(host, err)
		metrics.ProxyErrors.WithLabelValues(string(se.Kind)).Inc()
		p.logger.WithField("kind", se.Kind).Debugf("[Proxy] transfer from %s interrupted: %v", host, err)
		return se
	}
	return nil
}

func (p *Proxy) fail(w http.ResponseWriter, se *errors.StreamError) error {
	metrics.ProxyErrors.WithLabelValues(string(se.Kind)).Inc()
	p.logger.WithField("kind", se.Kind).Warnf("[Proxy] %v", se)
	writeJSON(w, errors.HTTPStatus(se), errors.Body(se))
	return se
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func contentType(upstream, urlPath string) string {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(upstream, ";")[0]))
	if mediaType != "" && mediaType != "application/octet-stream" && mediaType != "binary/octet-stream" {
		return upstream
	}
	if ct, ok := contentTypes[strings.ToLower(path.Ext(urlPath))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// classify separates hosts that cannot be reached from connections that
// broke or stalled, so clients can pick a retry strategy.
func classify(host string, err error) *errors.StreamError {
	var dnsErr *net.DNSError
	if stderrors.As(err, &dnsErr) ||
		stderrors.Is(err, syscall.ECONNREFUSED) ||
		stderrors.Is(err, syscall.EHOSTUNREACH) ||
		stderrors.Is(err, syscall.ENETUNREACH) {
		return errors.NewProxyUnreachableError(host, err)
	}

	var netErr net.Error
	if stderrors.Is(err, syscall.ECONNRESET) ||
		stderrors.Is(err, io.EOF) ||
		stderrors.Is(err, io.ErrUnexpectedEOF) ||
		stderrors.Is(err, context.DeadlineExceeded) ||
		(stderrors.As(err, &netErr) && netErr.Timeout()) {
		return errors.NewProxyResetError(host, err)
	}

	var opErr *net.OpError
	if stderrors.As(err, &opErr) && opErr.Op == "dial" {
		return errors.NewProxyUnreachableError(host, err)
	}
	return errors.NewProxyTransferError(err)
}
