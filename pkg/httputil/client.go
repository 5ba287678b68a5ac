// Package httputil builds the HTTP clients shared by providers, the debrid
// client and the streaming proxy.
package httputil

import (
	"net"
	"net/http"
	"time"
)

const (
	maxIdleConns        = 32
	maxIdleConnsPerHost = 4
	idleConnTimeout     = 90 * time.Second
	dialTimeout         = 10 * time.Second
	tlsHandshakeTimeout = 10 * time.Second
)

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: tlsHandshakeTimeout,
	}
}

// NewHTTPClient creates a client whose whole request, body included, must
// finish within timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: newTransport(),
	}
}

// NewStreamingClient has no overall timeout: bodies are long-lived video
// transfers bounded by the request context. Only the wait for response
// headers is limited.
func NewStreamingClient(headerTimeout time.Duration) *http.Client {
	t := newTransport()
	t.ResponseHeaderTimeout = headerTimeout
	t.DisableCompression = true
	return &http.Client{Transport: t}
}
