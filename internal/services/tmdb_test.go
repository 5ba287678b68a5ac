package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/amaumene/debridstream/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTitleMemoized(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/find/tt15398776", r.URL.Path)
		assert.Equal(t, "imdb_id", r.URL.Query().Get("external_source"))
		fmt.Fprint(w, `{"movie_results":[{"id":1,"title":"Oppenheimer","release_date":"2023-07-19"}],"tv_results":[]}`)
	}))
	defer srv.Close()

	secrets := NewMemorySecretStore()
	secrets.Set("catalog", "tmdb", "0123456789abcdef0123456789abcdef")
	tmdb := NewTMDB(secrets, 0, nil)
	tmdb.SetBaseURL(srv.URL)

	for i := 0; i < 2; i++ {
		title, err := tmdb.ResolveTitle(context.Background(), "tt15398776")
		require.NoError(t, err)
		assert.Equal(t, "Oppenheimer", title.Title)
		assert.Equal(t, 2023, title.Year)
		assert.Equal(t, "movie", title.Type)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestResolveTitleTV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"movie_results":[],"tv_results":[{"id":2,"name":"Breaking Bad","first_air_date":"2008-01-20"}]}`)
	}))
	defer srv.Close()

	secrets := NewMemorySecretStore()
	secrets.Set("catalog", "tmdb", "0123456789abcdef0123456789abcdef")
	tmdb := NewTMDB(secrets, 0, nil)
	tmdb.SetBaseURL(srv.URL)

	title, err := tmdb.ResolveTitle(context.Background(), "tt0903747")
	require.NoError(t, err)
	assert.Equal(t, "tv", title.Type)
	assert.Equal(t, 2008, title.Year)
}

func TestResolveTitleKeepsOriginalAsAlias(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"movie_results":[{"id":3,"title":"The Intouchables","original_title":"Intouchables","release_date":"2011-11-02"}]}`)
	}))
	defer srv.Close()

	secrets := NewMemorySecretStore()
	secrets.Set("catalog", "tmdb", "0123456789abcdef0123456789abcdef")
	tmdb := NewTMDB(secrets, 0, nil)
	tmdb.SetBaseURL(srv.URL)

	title, err := tmdb.ResolveTitle(context.Background(), "tt1675434")
	require.NoError(t, err)
	assert.Equal(t, "The Intouchables", title.Title)
	assert.Equal(t, []string{"Intouchables"}, title.Aliases)
}

func TestResolveTitleErrors(t *testing.T) {
	tmdb := NewTMDB(NewMemorySecretStore(), 0, nil)

	_, err := tmdb.ResolveTitle(context.Background(), "12345")
	assert.True(t, errors.Is(err, errors.KindInvalidRequest))

	_, err = tmdb.ResolveTitle(context.Background(), "tt0000001")
	assert.True(t, errors.Is(err, errors.KindAPIKeyMissing))
}
