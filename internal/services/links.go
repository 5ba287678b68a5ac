package services

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/amaumene/debridstream/internal/constants"
	"github.com/amaumene/debridstream/internal/errors"
	"github.com/amaumene/debridstream/internal/models"
	"github.com/amaumene/debridstream/pkg/alldebrid"
	"github.com/amaumene/debridstream/pkg/hosters"
	"github.com/amaumene/debridstream/pkg/logger"
)

// probeLink is unlocked by TestConnection; it is expected to fail with a
// link error when the credentials are good.
const probeLink = "https://uploaded.net/file/test123"

// LinkService validates and unlocks one-click hoster links in batches.
type LinkService struct {
	debrid  DebridService
	spacing time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
	logger  logger.Logger
}

func NewLinkService(debrid DebridService, log logger.Logger) *LinkService {
	if log == nil {
		log = logger.Discard()
	}
	return &LinkService{
		debrid:  debrid,
		spacing: constants.LinkUnlockSpacing,
		sleep:   sleepContext,
		logger:  log,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SetSleep replaces the pause between unlocks, for tests.
func (l *LinkService) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	l.sleep = fn
}

func (l *LinkService) ExtractLinks(text string) []string {
	return hosters.ExtractLinks(text)
}

func (l *LinkService) ValidateLink(link string) hosters.LinkInfo {
	return hosters.Validate(link)
}

// UnlockBatch reports one outcome per link, in input order. Supported links
// are unlocked one at a time with a pause between them.
func (l *LinkService) UnlockBatch(ctx context.Context, links []string) []models.LinkOutcome {
	outcomes := make([]models.LinkOutcome, 0, len(links))
	configured := l.debrid != nil && l.debrid.IsConfigured()
	unlocked := 0

	for _, link := range links {
		info := hosters.Validate(link)
		outcome := models.LinkOutcome{OriginalLink: link, Host: info.Host}

		switch {
		case !info.Valid:
			outcome.Error = info.Error
		case !info.Supported:
			outcome.Error = "Unsupported host"
		case !configured:
			outcome.Error = "No debrid API key"
		default:
			if unlocked > 0 {
				if err := l.sleep(ctx, l.spacing); err != nil {
					outcome.Error = err.Error()
					outcomes = append(outcomes, outcome)
					continue
				}
			}
			unlocked++
			res, err := l.debrid.UnrestrictLink(ctx, link)
			if err != nil {
				outcome.Error = err.Error()
				l.logger.Debugf("[Links] unlock failed for %s: %v", info.Host, err)
				break
			}
			outcome.Success = true
			outcome.Link = res.DirectURL
			outcome.Filename = res.Filename
			outcome.Size = res.Size
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// TestConnection unlocks a dead probe link. A link-level refusal proves the
// credentials were accepted.
func (l *LinkService) TestConnection(ctx context.Context) error {
	if l.debrid == nil || !l.debrid.IsConfigured() {
		return errors.NewAPIKeyMissingError(constants.SecretAllDebrid)
	}
	_, err := l.debrid.UnrestrictLink(ctx, probeLink)
	if err == nil {
		return nil
	}

	var apiErr *alldebrid.APIError
	if !stderrors.As(err, &apiErr) {
		return err
	}
	code := strings.ToUpper(apiErr.Code)
	msg := strings.ToLower(apiErr.Message)
	switch {
	case strings.HasPrefix(code, "AUTH"), strings.Contains(msg, "api key"), strings.Contains(msg, "apikey"):
		return errors.NewConfigurationError("debrid API key rejected", err)
	case strings.HasPrefix(code, "LINK"), strings.Contains(msg, "link"):
		return nil
	default:
		return err
	}
}
