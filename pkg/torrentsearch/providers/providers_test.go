package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/amaumene/debridstream/pkg/torrentsearch/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHash = "0123456789abcdef0123456789abcdef01234567"

func movieQuery() models.SearchOptions {
	return models.SearchOptions{Query: models.SearchQuery{Title: "Oppenheimer", Type: models.MediaMovie, Year: 2023}}
}

// deadMirror returns the URL of a server that is already closed.
func deadMirror(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	return srv.URL
}

func TestApiBayFailsOverToNextMirror(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/q.php", r.URL.Path)
		assert.Equal(t, "Oppenheimer 2023", r.URL.Query().Get("q"))
		fmt.Fprintf(w, `[{"id":"1","name":"Oppenheimer.2023.1080p.BluRay.x264","info_hash":"%s","seeders":"120","leechers":"4","size":"4000000000"}]`,
			strings.ToUpper(testHash))
	}))
	defer srv.Close()

	p := NewApiBayProvider([]string{deadMirror(t), srv.URL}, nil)
	results, err := p.Search(context.Background(), movieQuery())
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, testHash, results[0].InfoHash)
	assert.Equal(t, 120, results[0].Seeders)
	assert.Equal(t, int64(4000000000), results[0].SizeBytes)
	assert.True(t, results[0].RequiresDebrid)
	assert.True(t, strings.HasPrefix(results[0].URL, "magnet:?xt=urn:btih:"+testHash))
}

func TestApiBayNoResultsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":"0","name":"No results returned","info_hash":"0000000000000000000000000000000000000000"}]`)
	}))
	defer srv.Close()

	results, err := NewApiBayProvider([]string{srv.URL}, nil).Search(context.Background(), movieQuery())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClientErrorDoesNotFailOver(t *testing.T) {
	first := httptest.NewServer(http.NotFoundHandler())
	defer first.Close()
	var secondHits int32
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&secondHits, 1)
		fmt.Fprint(w, `[]`)
	}))
	defer second.Close()

	_, err := NewApiBayProvider([]string{first.URL, second.URL}, nil).Search(context.Background(), movieQuery())
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Zero(t, atomic.LoadInt32(&secondHits))
}

func TestServerErrorFailsOver(t *testing.T) {
	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer first.Close()
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer second.Close()

	results, err := NewApiBayProvider([]string{first.URL, second.URL}, nil).Search(context.Background(), movieQuery())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestYTSParsesTorrents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/list_movies.json", r.URL.Path)
		fmt.Fprintf(w, `{"status":"ok","data":{"movies":[
			{"title_long":"Oppenheimer (2023)","year":2023,"torrents":[
				{"hash":"%s","quality":"1080p","type":"bluray","video_codec":"x264","size_bytes":2900000000,"seeds":800,"peers":30}
			]},
			{"title_long":"Oppenheimer (1980)","year":1980,"torrents":[
				{"hash":"%s","quality":"720p","type":"web","size_bytes":800000000,"seeds":2,"peers":0}
			]}
		]}}`, testHash, strings.Repeat("b", 40))
	}))
	defer srv.Close()

	results, err := NewYTSProvider([]string{srv.URL}, nil).Search(context.Background(), movieQuery())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Oppenheimer (2023) 1080p bluray x264", results[0].Name)
	assert.Equal(t, 800, results[0].Seeders)
	assert.Equal(t, models.MediaMovie, results[0].Type)
}

func TestYTSRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"error","status_message":"bad query"}`)
	}))
	defer srv.Close()

	_, err := NewYTSProvider([]string{srv.URL}, nil).Search(context.Background(), movieQuery())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad query")
}

func TestSupportsByMediaType(t *testing.T) {
	assert.True(t, NewYTSProvider(nil, nil).Supports(models.MediaMovie))
	assert.False(t, NewYTSProvider(nil, nil).Supports(models.MediaTV))
	assert.True(t, NewEZTVProvider(nil, nil).Supports(models.MediaTV))
	assert.False(t, NewEZTVProvider(nil, nil).Supports(models.MediaMovie))
	assert.True(t, NewApiBayProvider(nil, nil).Supports(models.MediaTV))
}

func TestEZTVFiltersEpisodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0903747", r.URL.Query().Get("imdb_id"))
		fmt.Fprintf(w, `{"torrents":[
			{"hash":"%s","title":"Breaking Bad S02E03 720p HDTV x264","season":"2","episode":"3","seeds":50,"peers":2,"size_bytes":"400000000"},
			{"hash":"%s","title":"Breaking Bad S02E04 720p HDTV x264","season":"2","episode":"4","seeds":60,"peers":1,"size_bytes":"400000000"}
		]}`, testHash, strings.Repeat("c", 40))
	}))
	defer srv.Close()

	opts := models.SearchOptions{Query: models.SearchQuery{
		Title: "Breaking Bad", Type: models.MediaTV, IMDBID: "tt0903747", Season: 2, Episode: 3,
	}}
	results, err := NewEZTVProvider([]string{srv.URL}, nil).Search(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Season)
	assert.Equal(t, 3, results[0].Episode)
}

func TestEZTVWithoutIMDBReturnsNothing(t *testing.T) {
	results, err := NewEZTVProvider([]string{"http://127.0.0.1:1"}, nil).Search(context.Background(),
		models.SearchOptions{Query: models.SearchQuery{Title: "Breaking Bad", Type: models.MediaTV}})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func Test1337xScrapesListingAndDetail(t *testing.T) {
	magnet := BuildMagnet(testHash, "Oppenheimer 2023")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/category-search/"):
			assert.Contains(t, r.URL.Path, "/Movies/1/")
			fmt.Fprint(w, `<html><body><table class="table-list"><tbody>
				<tr>
					<td class="name"><a href="/sub/1/">icon</a><a href="/torrent/42/oppenheimer-2023/">Oppenheimer.2023.2160p.WEB-DL</a></td>
					<td class="seeds">321</td><td class="leeches">12</td>
					<td class="size">3.1 GB<span class="seeds">321</span></td>
				</tr>
			</tbody></table></body></html>`)
		case r.URL.Path == "/torrent/42/oppenheimer-2023/":
			fmt.Fprintf(w, `<html><body><a href="%s">Magnet Download</a></body></html>`, magnet)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	results, err := NewX1337Provider([]string{srv.URL}, nil).Search(context.Background(), movieQuery())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Oppenheimer.2023.2160p.WEB-DL", results[0].Name)
	assert.Equal(t, testHash, results[0].InfoHash)
	assert.Equal(t, 321, results[0].Seeders)
	assert.Equal(t, 12, results[0].Leechers)
	assert.Positive(t, results[0].SizeBytes)
}

func TestDirectLinksCollectsHosterLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			assert.Equal(t, "Oppenheimer 2023", r.URL.Query().Get("s"))
			fmt.Fprint(w, `<html><body>
				<article><h2><a href="/post/oppenheimer">Oppenheimer 2023 MULTi 1080p</a></h2></article>
				<a href="https://example.com/not-a-hoster">ad</a>
			</body></html>`)
		case "/post/oppenheimer":
			fmt.Fprint(w, `<html><body>
				<a href="https://rapidgator.net/file/abc/Oppenheimer.2023.MULTi.1080p.WEB.mkv.html">RG</a>
				<a href="https://rapidgator.net/file/abc/Oppenheimer.2023.MULTi.1080p.WEB.mkv.html">RG mirror</a>
				<a href="https://1fichier.com/?xyz">1F</a>
			</body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	results, err := NewDirectLinkProvider([]string{srv.URL}, "", nil).Search(context.Background(), movieQuery())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "https://rapidgator.net/file/abc/Oppenheimer.2023.MULTi.1080p.WEB.mkv.html", results[0].URL)
	assert.Equal(t, "Oppenheimer.2023.MULTi.1080p.WEB.mkv.html", results[0].Name)
	assert.Equal(t, "Oppenheimer 2023 MULTi 1080p", results[1].Name)
	for _, r := range results {
		assert.Equal(t, ProviderDirectLinks, r.Provider)
		assert.True(t, r.RequiresDebrid)
		assert.Empty(t, r.InfoHash)
	}
}

func TestMagnetRoundTrip(t *testing.T) {
	magnet := BuildMagnet(strings.ToUpper(testHash), "Some Name")
	assert.Equal(t, testHash, InfoHashFromMagnet(magnet))
	assert.Empty(t, InfoHashFromMagnet("https://example.com"))
	assert.False(t, validHash(strings.Repeat("0", 40)))
	assert.False(t, validHash("abc"))
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
	}))
	defer srv.Close()

	assert.NoError(t, NewApiBayProvider([]string{deadMirror(t), srv.URL}, nil).HealthCheck(context.Background()))
	assert.Error(t, NewApiBayProvider([]string{deadMirror(t)}, nil).HealthCheck(context.Background()))
}
