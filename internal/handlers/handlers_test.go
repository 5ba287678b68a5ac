package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amaumene/debridstream/internal/cache"
	"github.com/amaumene/debridstream/internal/config"
	"github.com/amaumene/debridstream/internal/models"
	"github.com/amaumene/debridstream/internal/proxy"
	"github.com/amaumene/debridstream/internal/resolver"
	"github.com/amaumene/debridstream/internal/services"
	"github.com/amaumene/debridstream/internal/transcode"
	"github.com/amaumene/debridstream/pkg/logger"
	"github.com/amaumene/debridstream/pkg/torrentsearch"
	searchmodels "github.com/amaumene/debridstream/pkg/torrentsearch/models"
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDebrid struct {
	mu       sync.Mutex
	files    []models.DebridFile
	unlocked []string
}

func (f *fakeDebrid) AddMagnet(context.Context, string) (string, error) { return "42", nil }

func (f *fakeDebrid) GetTorrentInfo(_ context.Context, id string) (*models.TorrentInfo, error) {
	return &models.TorrentInfo{ID: id, Status: "Ready", Ready: true, Files: f.files}, nil
}

func (f *fakeDebrid) UnrestrictLink(_ context.Context, link string) (*models.UnlockResult, error) {
	f.mu.Lock()
	f.unlocked = append(f.unlocked, link)
	f.mu.Unlock()
	name := link[strings.LastIndex(link, "/")+1:]
	return &models.UnlockResult{DirectURL: "https://cdn.example.net/dl/" + name, Filename: name}, nil
}

func (f *fakeDebrid) CheckInstant(context.Context, []string) []models.InstantResult { return nil }

func (f *fakeDebrid) ListRecentMagnets(context.Context) ([]models.MagnetSummary, error) {
	return nil, nil
}

func (f *fakeDebrid) DeleteMagnet(context.Context, string) error { return nil }
func (f *fakeDebrid) IsConfigured() bool { return true }

type fakeProvider struct{}

func (fakeProvider) Name() string { return "fake" }
func (fakeProvider) Supports(searchmodels.MediaType) bool { return true }
func (fakeProvider) HealthCheck(context.Context) error { return nil }

func (fakeProvider) Search(_ context.Context, opts searchmodels.SearchOptions) ([]searchmodels.SourceCandidate, error) {
	return []searchmodels.SourceCandidate{{
		Provider: "fake",
		Name:     opts.Query.Title + ".2010.1080p.BluRay.x264",
		URL:      "magnet:?xt=urn:btih:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Seeders:  12,
		Type:     opts.Query.Type,
	}}, nil
}

type writeRunner struct {
	fs afero.Fs
}

func (r writeRunner) Run(_ context.Context, args []string, report func(transcode.Progress)) error {
	return afero.WriteFile(r.fs, args[len(args)-1], []byte("remuxed video"), 0o644)
}

type testServer struct {
	router     *gin.Engine
	debrid     *fakeDebrid
	transcoder *transcode.Manager
}

func newTestServer(t *testing.T, allowed ...string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Discard()

	debrid := &fakeDebrid{}
	registry := torrentsearch.New(time.Second, 10, log)
	registry.RegisterProvider(fakeProvider{}, 0)
	searchCache := cache.NewSearchCache(10, time.Minute, nil)
	links := services.NewLinkService(debrid, log)
	links.SetSleep(func(context.Context, time.Duration) error { return nil })

	fs := afero.NewMemMapFs()
	transcoder, err := transcode.NewManager(transcode.Options{Enabled: true, Dir: "/transcode"}, fs, writeRunner{fs: fs}, log)
	require.NoError(t, err)
	t.Cleanup(transcoder.Close)

	container := &services.Container{
		Registry:    registry,
		SearchCache: searchCache,
		Search:      services.NewSearchService(registry, searchCache, nil, debrid, log),
		Debrid:      debrid,
		Links:       links,
		Logger:      log,
	}
	cfg := &config.Config{Search: config.SearchConfig{MaxResults: 5}}
	h := New(container, resolver.New(debrid, transcoder, log), transcoder, proxy.New(allowed, http.DefaultClient, log), cfg)

	r := gin.New()
	h.RegisterRoutes(r)
	return &testServer{router: r, debrid: debrid, transcoder: transcoder}
}

func (s *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["debridConfigured"])
	assert.Equal(t, []interface{}{"fake"}, body["providers"])
}

func TestSearchHandler(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/search?title=Inception&year=2010", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, float64(1), body["count"])

	w = s.do(http.MethodGet, "/search?title=Inception&year=2010", "")
	assert.Equal(t, true, decode(t, w)["cached"])
}

func TestSearchHandlerRejectsBadInput(t *testing.T) {
	s := newTestServer(t)
	for _, target := range []string{
		"/search",
		"/search?title=Inception&type=music",
		"/search?title=Inception&year=abc",
		"/search?imdb=nm0000138",
		"/search?title=Inception&maxSize=huge",
	} {
		w := s.do(http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.Equal(t, "INVALID_REQUEST", decode(t, w)["kind"], target)
	}
}

func TestParseSearchRequestEpisodeID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/search?imdb=tt0903747:2:5&season=9&maxSize=4GB&instant=true", nil)

	req, err := parseSearchRequest(c)
	require.NoError(t, err)
	assert.Equal(t, "tt0903747", req.Query.IMDBID)
	assert.Equal(t, searchmodels.MediaTV, req.Query.Type)
	assert.Equal(t, 2, req.Query.Season)
	assert.Equal(t, 5, req.Query.Episode)
	assert.Equal(t, int64(4_000_000_000), req.Filters.MaxSize)
	assert.True(t, req.Instant)
}

func TestResolveHandler(t *testing.T) {
	s := newTestServer(t)
	s.debrid.files = []models.DebridFile{
		{Name: "Movie.mkv", Link: "https://alldebrid.com/f/Movie.mkv"},
		{Name: "Movie.mp4", Link: "https://alldebrid.com/f/Movie.mp4"},
	}

	w := s.do(http.MethodPost, "/resolve", `{"link":"magnet:?xt=urn:btih:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "Movie.mp4", body["filename"])
	assert.Equal(t, resolver.StreamURL("https://cdn.example.net/dl/Movie.mp4"), body["directUrl"])
}

func TestResolveHandlerErrors(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/resolve", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/resolve", `{"link":"magnet:?xt=urn:btih:a","prefer":"audio"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/resolve", `{"link":"magnet:?xt=urn:btih:a","provider":"realdebrid"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDebridStatusHandler(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/debrid/status/alldebrid/42", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "processing", body["status"])
	assert.Equal(t, "42", body["torrentId"])
}

func TestTranscodeLifecycle(t *testing.T) {
	s := newTestServer(t)
	source := "https://cdn.example.net/dl/Movie.mkv"
	fallback := s.transcoder.FallbackURL(source, "Movie.mkv")
	id := transcode.SessionID(source, "Movie.mkv")
	require.Equal(t, "/transcode/"+id+"/output.mp4", fallback)

	w := s.do(http.MethodGet, "/transcode/"+id+"/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decode(t, w)["id"])

	require.Eventually(t, func() bool {
		return s.do(http.MethodGet, fallback, "").Code == http.StatusOK
	}, 2*time.Second, 5*time.Millisecond)

	w = s.do(http.MethodGet, fallback, "")
	assert.Equal(t, "video/mp4", w.Header().Get("Content-Type"))
	assert.Equal(t, "remuxed video", w.Body.String())

	w = s.do(http.MethodGet, "/transcode/"+id+"/playlist.m3u8", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodDelete, "/transcode/"+id, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, "/transcode/"+id+"/status", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodDelete, "/transcode", "")
	assert.Equal(t, float64(0), decode(t, w)["cleared"])
}

func TestStreamHandlerProxies(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie.mp4", r.URL.Path)
		assert.Equal(t, "token=abc", r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("payload"))
	}))
	defer upstream.Close()
	u, err := url.Parse(upstream.URL)
	require.NoError(t, err)

	s := newTestServer(t, u.Hostname())
	w := s.do(http.MethodGet, resolver.StreamURL(upstream.URL+"/movie.mp4")+"?token=abc", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video/mp4", w.Header().Get("Content-Type"))
	assert.Equal(t, "payload", w.Body.String())
}

func TestStreamHandlerRejectsHost(t *testing.T) {
	s := newTestServer(t, "cdn.example.net")
	w := s.do(http.MethodGet, resolver.StreamURL("https://evil.example.org/movie.mp4"), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLinksUnlockHandler(t *testing.T) {
	s := newTestServer(t)
	body := `{"text":"grab https://rapidgator.net/file/abc/Movie.mp4 now","links":["https://rapidgator.net/file/abc/Movie.mp4","https://example.org/x"]}`

	w := s.do(http.MethodPost, "/links/unlock", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	assert.Equal(t, float64(2), out["total"])
	assert.Equal(t, float64(1), out["successful"])
	assert.Len(t, s.debrid.unlocked, 1)

	w = s.do(http.MethodPost, "/links/unlock", `{"text":"nothing here"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMergeLinks(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, mergeLinks([]string{"a", " b ", ""}, []string{"b", "c", "a"}))
	assert.Nil(t, mergeLinks(nil, nil))
}
