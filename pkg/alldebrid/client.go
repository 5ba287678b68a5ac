// Package alldebrid is a thin wire client for the AllDebrid v4 API.
package alldebrid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amaumene/debridstream/pkg/httputil"
)

const (
	DefaultBaseURL = "https://api.alldebrid.com/v4"
	DefaultAgent   = "debridstream"
	maxBodySize    = 4 << 20
)

// Magnet status codes reported by the service.
const (
	StatusInQueue     = 0
	StatusDownloading = 1
	StatusCompressing = 2
	StatusUploading   = 3
	StatusReady       = 4
)

// HTTPError carries a non-2xx transport status so callers can decide on retries.
type HTTPError struct {
	Endpoint string
	Code     int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("alldebrid %s: HTTP %d", e.Endpoint, e.Code)
}

// APIError is an error envelope returned with status "error".
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alldebrid API error: %s - %s", e.Code, e.Message)
}

type envelope[T any] struct {
	Status string    `json:"status"`
	Data   T         `json:"data"`
	Error  *APIError `json:"error,omitempty"`
}

// UploadedMagnet is one entry of a magnet upload answer.
type UploadedMagnet struct {
	Magnet string    `json:"magnet"`
	ID     int64     `json:"id"`
	Hash   string    `json:"hash"`
	Name   string    `json:"name"`
	Size   int64     `json:"size"`
	Ready  bool      `json:"ready"`
	Error  *APIError `json:"error,omitempty"`
}

// Link is one downloadable file of a magnet.
type Link struct {
	Link     string `json:"link"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// MagnetStatus describes a magnet on the account.
type MagnetStatus struct {
	ID         int64  `json:"id"`
	Filename   string `json:"filename"`
	Hash       string `json:"hash"`
	Size       int64  `json:"size"`
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
	Downloaded int64  `json:"downloaded"`
	UploadDate int64  `json:"uploadDate"`
	Links      []Link `json:"links"`
}

// Unlocked is a direct download URL produced from a file link.
type Unlocked struct {
	Link     string `json:"link"`
	Filename string `json:"filename"`
	Host     string `json:"host"`
	Filesize int64  `json:"filesize"`
	ID       string `json:"id"`
}

// InstantMagnet reports whether a magnet is already cached by the service.
type InstantMagnet struct {
	Magnet  string `json:"magnet"`
	Hash    string `json:"hash"`
	Instant bool   `json:"instant"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	agent      string
}

func NewClient() *Client {
	return &Client{
		httpClient: httputil.NewHTTPClient(30 * time.Second),
		baseURL:    DefaultBaseURL,
		agent:      DefaultAgent,
	}
}

// WithBaseURL points the client at another endpoint, mostly for tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

func (c *Client) WithAgent(agent string) *Client {
	if agent != "" {
		c.agent = agent
	}
	return c
}

// UploadMagnet submits one magnet or info hash and returns the service handle.
func (c *Client) UploadMagnet(ctx context.Context, apiKey, magnet string) (*UploadedMagnet, error) {
	form := url.Values{}
	form.Add("magnets[]", magnet)

	var data struct {
		Magnets []UploadedMagnet `json:"magnets"`
	}
	if err := c.do(ctx, http.MethodPost, "/magnet/upload", apiKey, form, &data); err != nil {
		return nil, err
	}
	if len(data.Magnets) == 0 {
		return nil, &APIError{Code: "NO_MAGNET", Message: "no magnet data returned"}
	}
	m := data.Magnets[0]
	if m.Error != nil {
		return nil, m.Error
	}
	return &m, nil
}

// MagnetStatus returns the status and file links of one magnet.
func (c *Client) MagnetStatus(ctx context.Context, apiKey, id string) (*MagnetStatus, error) {
	params := url.Values{}
	params.Set("id", id)

	var data struct {
		Magnets json.RawMessage `json:"magnets"`
	}
	if err := c.do(ctx, http.MethodGet, "/magnet/status", apiKey, params, &data); err != nil {
		return nil, err
	}
	magnets, err := decodeMagnets(data.Magnets)
	if err != nil {
		return nil, err
	}
	if len(magnets) == 0 {
		return nil, &APIError{Code: "MAGNET_INVALID_ID", Message: "magnet not found"}
	}
	return &magnets[0], nil
}

// RecentMagnets lists the magnets currently on the account.
func (c *Client) RecentMagnets(ctx context.Context, apiKey string) ([]MagnetStatus, error) {
	var data struct {
		Magnets json.RawMessage `json:"magnets"`
	}
	if err := c.do(ctx, http.MethodGet, "/magnet/status", apiKey, url.Values{}, &data); err != nil {
		return nil, err
	}
	return decodeMagnets(data.Magnets)
}

// decodeMagnets accepts the single-object form used for id lookups and the
// array form used for listings.
func decodeMagnets(raw json.RawMessage) ([]MagnetStatus, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "{") {
		var one MagnetStatus
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, fmt.Errorf("failed to decode magnet: %w", err)
		}
		return []MagnetStatus{one}, nil
	}
	var many []MagnetStatus
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, fmt.Errorf("failed to decode magnets: %w", err)
	}
	return many, nil
}

// UnlockLink turns a file or hoster link into a direct download URL.
func (c *Client) UnlockLink(ctx context.Context, apiKey, link string) (*Unlocked, error) {
	params := url.Values{}
	params.Set("link", link)

	var data Unlocked
	if err := c.do(ctx, http.MethodGet, "/link/unlock", apiKey, params, &data); err != nil {
		return nil, err
	}
	if data.Link == "" {
		return nil, &APIError{Code: "LINK_EMPTY", Message: "no direct link returned"}
	}
	return &data, nil
}

// InstantAvailability checks a batch of magnets against the service cache.
func (c *Client) InstantAvailability(ctx context.Context, apiKey string, magnets []string) ([]InstantMagnet, error) {
	params := url.Values{}
	for _, m := range magnets {
		params.Add("magnets[]", m)
	}

	var data struct {
		Magnets []InstantMagnet `json:"magnets"`
	}
	if err := c.do(ctx, http.MethodGet, "/magnet/instant", apiKey, params, &data); err != nil {
		return nil, err
	}
	return data.Magnets, nil
}

func (c *Client) DeleteMagnet(ctx context.Context, apiKey string, id int64) error {
	params := url.Values{}
	params.Set("id", strconv.FormatInt(id, 10))

	var data json.RawMessage
	return c.do(ctx, http.MethodGet, "/magnet/delete", apiKey, params, &data)
}

// do sends one request and decodes the envelope into out.
func (c *Client) do(ctx context.Context, method, endpoint, apiKey string, params url.Values, out interface{}) error {
	params.Set("agent", c.agent)
	params.Set("apikey", apiKey)

	var (
		req *http.Request
		err error
	)
	fullURL := c.baseURL + endpoint
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, fullURL, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, fullURL+"?"+params.Encode(), nil)
	}
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var result envelope[json.RawMessage]
	if jsonErr := json.Unmarshal(body, &result); jsonErr != nil {
		if resp.StatusCode >= 300 {
			return &HTTPError{Endpoint: endpoint, Code: resp.StatusCode}
		}
		return fmt.Errorf("failed to decode response: %w", jsonErr)
	}

	if result.Status != "success" {
		if result.Error != nil {
			return result.Error
		}
		if resp.StatusCode >= 300 {
			return &HTTPError{Endpoint: endpoint, Code: resp.StatusCode}
		}
		return &APIError{Code: "UNKNOWN", Message: fmt.Sprintf("unexpected status %q", result.Status)}
	}

	if len(result.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", endpoint, err)
	}
	return nil
}
