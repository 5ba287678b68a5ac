package resolver

import (
	"context"
	"time"

	"github.com/amaumene/debridstream/internal/models"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type PollOptions struct {
	MaxAttempts int
	Interval    time.Duration
	Sleep       SleepFunc
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PollUntilReady calls Status until the torrent leaves processing or the
// attempts run out. The last result is returned either way; only errors from
// Status or from the context end the loop early.
func (r *Resolver) PollUntilReady(ctx context.Context, provider, torrentID string, prefer Prefer, opts PollOptions) (*models.ResolutionResult, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 60
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}

	var last *models.ResolutionResult
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		res, err := r.Status(ctx, provider, torrentID, prefer)
		if err != nil {
			return nil, err
		}
		last = res
		if res.Status != models.ResolutionProcessing {
			return res, nil
		}
		r.logger.Debugf("[Resolver] %s still processing (%d/%d): %s", torrentID, attempt, opts.MaxAttempts, res.Details)
		if attempt == opts.MaxAttempts {
			break
		}
		if err := opts.Sleep(ctx, opts.Interval); err != nil {
			return last, err
		}
	}
	return last, nil
}
