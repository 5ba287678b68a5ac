package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amaumene/debridstream/internal/constants"
	"github.com/amaumene/debridstream/internal/database"
	"github.com/amaumene/debridstream/internal/errors"
	"github.com/amaumene/debridstream/internal/models"
	"github.com/amaumene/debridstream/pkg/alldebrid"
	"github.com/amaumene/debridstream/pkg/logger"
	"github.com/amaumene/debridstream/pkg/ratelimiter"
	"github.com/avast/retry-go/v4"
)

// DebridService is the unlocking workflow the resolver and the link tools
// depend on.
type DebridService interface {
	AddMagnet(ctx context.Context, magnetOrHash string) (string, error)
	GetTorrentInfo(ctx context.Context, id string) (*models.TorrentInfo, error)
	UnrestrictLink(ctx context.Context, link string) (*models.UnlockResult, error)
	CheckInstant(ctx context.Context, magnets []string) []models.InstantResult
	ListRecentMagnets(ctx context.Context) ([]models.MagnetSummary, error)
	DeleteMagnet(ctx context.Context, id string) error
	IsConfigured() bool
}

// AllDebridOptions tunes retries. Zero values take the defaults.
type AllDebridOptions struct {
	Retries     int
	Backoff     time.Duration
	MinInterval time.Duration
}

type AllDebrid struct {
	client  *alldebrid.Client
	token   TokenSupplier
	db      database.Database
	limiter ratelimiter.RateLimiter
	retries int
	backoff time.Duration
	logger  logger.Logger
}

func NewAllDebrid(client *alldebrid.Client, token TokenSupplier, opts AllDebridOptions, log logger.Logger) *AllDebrid {
	if opts.Retries <= 0 {
		opts.Retries = constants.DebridRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = constants.DebridBackoff
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = constants.DebridMinInterval
	}
	if log == nil {
		log = logger.Discard()
	}
	return &AllDebrid{
		client:  client,
		token:   token,
		limiter: ratelimiter.NewMinInterval(opts.MinInterval),
		retries: opts.Retries,
		backoff: opts.Backoff,
		logger:  log,
	}
}

// SetDB enables magnet bookkeeping.
func (a *AllDebrid) SetDB(db database.Database) {
	a.db = db
}

func (a *AllDebrid) IsConfigured() bool {
	_, err := a.token.Token(context.Background())
	return err == nil
}

func (a *AllDebrid) prepare(ctx context.Context) (string, error) {
	apiKey, err := a.token.Token(ctx)
	if err != nil {
		return "", err
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return apiKey, nil
}

// AddMagnet submits a magnet URI or bare info hash and returns the handle.
// Any refusal by the service is UpstreamRejected and is not retried.
func (a *AllDebrid) AddMagnet(ctx context.Context, magnetOrHash string) (string, error) {
	magnetOrHash = strings.TrimSpace(magnetOrHash)
	if magnetOrHash == "" {
		return "", errors.NewInvalidRequestError("magnet or info hash is required")
	}
	apiKey, err := a.prepare(ctx)
	if err != nil {
		return "", err
	}

	uploaded, err := a.client.UploadMagnet(ctx, apiKey, magnetOrHash)
	if err != nil {
		a.logger.Warnf("[AllDebrid] magnet upload rejected: %v", err)
		return "", errors.NewUpstreamRejectedError("debrid service refused the magnet", err).
			WithSuggestion("try another source")
	}

	id := strconv.FormatInt(uploaded.ID, 10)
	a.logger.Infof("[AllDebrid] magnet added: id=%s ready=%v name=%s", id, uploaded.Ready, uploaded.Name)
	a.remember(uploaded)
	return id, nil
}

func (a *AllDebrid) remember(m *alldebrid.UploadedMagnet) {
	if a.db == nil {
		return
	}
	err := a.db.StoreMagnet(&database.Magnet{
		ID:       strconv.FormatInt(m.ID, 10),
		DebridID: m.ID,
		Hash:     strings.ToLower(m.Hash),
		Name:     m.Name,
	})
	if err != nil {
		a.logger.Warnf("[AllDebrid] failed to record magnet %d: %v", m.ID, err)
	}
}

// GetTorrentInfo polls one magnet, retrying transient failures with linear
// backoff before giving up with TorrentStatusUnavailable.
func (a *AllDebrid) GetTorrentInfo(ctx context.Context, id string) (*models.TorrentInfo, error) {
	apiKey, err := a.prepare(ctx)
	if err != nil {
		return nil, err
	}

	status, err := retry.DoWithData(
		func() (*alldebrid.MagnetStatus, error) {
			return a.client.MagnetStatus(ctx, apiKey, id)
		},
		retry.Context(ctx),
		retry.Attempts(uint(a.retries)+1),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return time.Duration(n+1) * a.backoff
		}),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			a.logger.Debugf("[AllDebrid] status %s attempt %d failed: %v", id, n+1, err)
		}),
	)
	if err != nil {
		if !isTransient(err) {
			return nil, errors.NewUpstreamRejectedError("debrid service refused the status request", err)
		}
		a.logger.WithField("kind", errors.KindTorrentStatusUnavailable).
			Warnf("[AllDebrid] status %s unavailable: %v", id, err)
		return nil, errors.NewTorrentStatusUnavailableError(id, err)
	}

	return toTorrentInfo(status), nil
}

func toTorrentInfo(s *alldebrid.MagnetStatus) *models.TorrentInfo {
	info := &models.TorrentInfo{
		ID:         strconv.FormatInt(s.ID, 10),
		Name:       s.Filename,
		Hash:       s.Hash,
		Status:     s.Status,
		StatusCode: s.StatusCode,
		Ready:      s.StatusCode == alldebrid.StatusReady,
		Files:      make([]models.DebridFile, 0, len(s.Links)),
	}
	for _, l := range s.Links {
		info.Files = append(info.Files, models.DebridFile{Name: l.Filename, Link: l.Link, Size: l.Size})
	}
	return info
}

// isTransient reports 5xx answers and network failures. API error envelopes
// and 4xx answers are final.
func isTransient(err error) bool {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *alldebrid.HTTPError
	if stderrors.As(err, &httpErr) {
		return httpErr.Code >= 500
	}
	var apiErr *alldebrid.APIError
	if stderrors.As(err, &apiErr) {
		return false
	}
	var netErr net.Error
	var urlErr *url.Error
	return stderrors.As(err, &netErr) || stderrors.As(err, &urlErr)
}

// UnrestrictLink converts one file link into a direct URL. Callers fall back
// to the original link on error.
func (a *AllDebrid) UnrestrictLink(ctx context.Context, link string) (*models.UnlockResult, error) {
	apiKey, err := a.prepare(ctx)
	if err != nil {
		return nil, err
	}
	unlocked, err := a.client.UnlockLink(ctx, apiKey, link)
	if err != nil {
		return nil, errors.NewUpstreamRejectedError("link unlock failed", err)
	}
	return &models.UnlockResult{
		DirectURL: unlocked.Link,
		Filename:  unlocked.Filename,
		Host:      unlocked.Host,
		Size:      unlocked.Filesize,
	}, nil
}

// CheckInstant is best effort: any failure yields an empty list.
func (a *AllDebrid) CheckInstant(ctx context.Context, magnets []string) []models.InstantResult {
	if len(magnets) == 0 {
		return []models.InstantResult{}
	}
	apiKey, err := a.prepare(ctx)
	if err != nil {
		a.logger.Debugf("[AllDebrid] instant check skipped: %v", err)
		return []models.InstantResult{}
	}

	results := make([]models.InstantResult, 0, len(magnets))
	for start := 0; start < len(magnets); start += constants.InstantBatchSize {
		end := start + constants.InstantBatchSize
		if end > len(magnets) {
			end = len(magnets)
		}
		batch, err := a.client.InstantAvailability(ctx, apiKey, magnets[start:end])
		if err != nil {
			a.logger.WithField("kind", errors.KindProviderUnavailable).
				Warnf("[AllDebrid] instant availability failed: %v", err)
			return []models.InstantResult{}
		}
		for _, m := range batch {
			results = append(results, models.InstantResult{Magnet: m.Magnet, Instant: m.Instant})
		}
	}
	return results
}

// ListRecentMagnets reads the account listing, or the local store when the
// service cannot be reached.
func (a *AllDebrid) ListRecentMagnets(ctx context.Context) ([]models.MagnetSummary, error) {
	apiKey, err := a.prepare(ctx)
	if err == nil {
		var list []alldebrid.MagnetStatus
		list, err = a.client.RecentMagnets(ctx, apiKey)
		if err == nil {
			out := make([]models.MagnetSummary, 0, len(list))
			for _, m := range list {
				out = append(out, models.MagnetSummary{
					ID:         strconv.FormatInt(m.ID, 10),
					Name:       m.Filename,
					Hash:       m.Hash,
					StatusCode: m.StatusCode,
					Ready:      m.StatusCode == alldebrid.StatusReady,
					AddedAt:    time.Unix(m.UploadDate, 0),
				})
			}
			return out, nil
		}
	}

	if a.db == nil {
		return nil, errors.NewTorrentStatusUnavailableError("recent", err)
	}
	a.logger.Debugf("[AllDebrid] recent magnets from local store: %v", err)
	stored, dbErr := a.db.GetMagnets()
	if dbErr != nil {
		return nil, dbErr
	}
	out := make([]models.MagnetSummary, 0, len(stored))
	for _, m := range stored {
		out = append(out, models.MagnetSummary{ID: m.ID, Name: m.Name, Hash: m.Hash, AddedAt: m.AddedAt})
	}
	return out, nil
}

// DeleteMagnet removes a magnet from the account and the local store.
func (a *AllDebrid) DeleteMagnet(ctx context.Context, id string) error {
	debridID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return errors.NewInvalidRequestError(fmt.Sprintf("invalid magnet id %q", id))
	}
	apiKey, err := a.prepare(ctx)
	if err != nil {
		return err
	}
	if err := a.client.DeleteMagnet(ctx, apiKey, debridID); err != nil {
		return errors.NewUpstreamRejectedError("magnet delete failed", err)
	}
	if a.db != nil {
		if err := a.db.DeleteMagnet(id); err != nil {
			a.logger.Warnf("[AllDebrid] failed to forget magnet %s: %v", id, err)
		}
	}
	return nil
}
