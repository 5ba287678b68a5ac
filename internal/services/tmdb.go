package services

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

	"github.com/amaumene/debridstream/internal/constants"
	"github.com/amaumene/debridstream/internal/database"
	"github.com/amaumene/debridstream/internal/errors"
	"github.com/amaumene/debridstream/internal/models"
	"github.com/amaumene/debridstream/pkg/httputil"
	"github.com/amaumene/debridstream/pkg/logger"
	gocache "github.com/patrickmn/go-cache"
)

const tmdbBaseURL = "https://api.themoviedb.org/3"

// CatalogService turns an IMDB id into the human title used for searching.
type CatalogService interface {
	ResolveTitle(ctx context.Context, imdbID string) (*models.CatalogTitle, error)
}

type TMDB struct {
	baseURL    string
	secrets    SecretStore
	memo       *gocache.Cache
	db         database.Database
	httpClient *http.Client
	logger     logger.Logger
}

func NewTMDB(secrets SecretStore, ttl time.Duration, log logger.Logger) *TMDB {
	if ttl <= 0 {
		ttl = constants.CatalogTTL
	}
	if log == nil {
		log = logger.Discard()
	}
	return &TMDB{
		baseURL:    tmdbBaseURL,
		secrets:    secrets,
		memo:       gocache.New(ttl, 2*ttl),
		httpClient: httputil.NewHTTPClient(10 * time.Second),
		logger:     log,
	}
}

func (t *TMDB) SetDB(db database.Database) {
	t.db = db
}

// SetBaseURL is used by tests.
func (t *TMDB) SetBaseURL(u string) {
	t.baseURL = strings.TrimRight(u, "/")
}

// ResolveTitle checks the in-memory memo, then the store, then TMDB find.
func (t *TMDB) ResolveTitle(ctx context.Context, imdbID string) (*models.CatalogTitle, error) {
	imdbID = strings.TrimSpace(imdbID)
	if !strings.HasPrefix(imdbID, "tt") {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("invalid IMDB id %q", imdbID))
	}

	if v, ok := t.memo.Get(imdbID); ok {
		return v.(*models.CatalogTitle), nil
	}

	if t.db != nil {
		if cached, err := t.db.GetCachedTitle(imdbID); err == nil && cached != nil {
			title := &models.CatalogTitle{Type: cached.Type, Title: cached.Title, Year: cached.Year, Aliases: cached.Aliases}
			t.memo.SetDefault(imdbID, title)
			return title, nil
		}
	}

	apiKey := t.secrets.GetSecret(constants.ScopeCatalog, constants.SecretTMDB)
	if apiKey == "" {
		return nil, errors.NewAPIKeyMissingError("tmdb")
	}

	title, err := t.find(ctx, apiKey, imdbID)
	if err != nil {
		return nil, err
	}
	t.memo.SetDefault(imdbID, title)

	if t.db != nil {
		err := t.db.StoreTitle(&database.CatalogTitle{
			IMDBID:  imdbID,
			Type:    title.Type,
			Title:   title.Title,
			Year:    title.Year,
			Aliases: title.Aliases,
		})
		if err != nil {
			t.logger.Warnf("[TMDB] failed to store title: %v", err)
		}
	}
	return title, nil
}

func (t *TMDB) find(ctx context.Context, apiKey, imdbID string) (*models.CatalogTitle, error) {
	params := url.Values{}
	params.Set("api_key", apiKey)
	params.Set("external_source", "imdb_id")
	endpoint := fmt.Sprintf("%s/find/%s?%s", t.baseURL, url.PathEscape(imdbID), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	t.logger.Debugf("[TMDB] fetching info for %s", imdbID)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewProviderUnavailableError("tmdb", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, errors.NewProviderUnavailableError("tmdb", fmt.Errorf("status %d", resp.StatusCode))
	}

	var found models.TMDBFindResponse
	if err := json.NewDecoder(resp.Body).Decode(&found); err != nil {
		return nil, fmt.Errorf("failed to decode TMDB response: %w", err)
	}

	switch {
	case len(found.MovieResults) > 0:
		m := found.MovieResults[0]
		return newCatalogTitle("movie", m.Title, m.OriginalTitle, m.ReleaseDate), nil
	case len(found.TVResults) > 0:
		tv := found.TVResults[0]
		return newCatalogTitle("tv", tv.Name, tv.OriginalName, tv.FirstAirDate), nil
	default:
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("no catalog entry for %s", imdbID))
	}
}

// newCatalogTitle keeps the original title as an alias so releases named in
// the original language still match.
func newCatalogTitle(kind, title, original, date string) *models.CatalogTitle {
	ct := &models.CatalogTitle{Type: kind, Title: firstNonEmpty(title, original), Year: yearOf(date)}
	if original != "" && !strings.EqualFold(original, ct.Title) {
		ct.Aliases = []string{original}
	}
	return ct
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// yearOf reads the year of a YYYY-MM-DD date, 0 when absent.
func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, _ := strconv.Atoi(date[:4])
	return y
}
