package services

import (
	"context"
	"sync"

	"github.com/amaumene/debridstream/internal/models"
)

type fakeDebrid struct {
	mu         sync.Mutex
	configured bool
	unlock     func(link string) (*models.UnlockResult, error)
	instant    map[string]bool
	deleted    []string
	unlocked   []string
}

func (f *fakeDebrid) AddMagnet(context.Context, string) (string, error) { return "1", nil }

func (f *fakeDebrid) GetTorrentInfo(context.Context, string) (*models.TorrentInfo, error) {
	return &models.TorrentInfo{}, nil
}

func (f *fakeDebrid) UnrestrictLink(_ context.Context, link string) (*models.UnlockResult, error) {
	f.mu.Lock()
	f.unlocked = append(f.unlocked, link)
	f.mu.Unlock()
	return f.unlock(link)
}

func (f *fakeDebrid) CheckInstant(_ context.Context, magnets []string) []models.InstantResult {
	var out []models.InstantResult
	for _, m := range magnets {
		if v, ok := f.instant[m]; ok {
			out = append(out, models.InstantResult{Magnet: m, Instant: v})
		}
	}
	return out
}

func (f *fakeDebrid) ListRecentMagnets(context.Context) ([]models.MagnetSummary, error) {
	return nil, nil
}

func (f *fakeDebrid) DeleteMagnet(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeDebrid) IsConfigured() bool { return f.configured }
