package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amaumene/debridstream/internal/constants"
	"github.com/amaumene/debridstream/internal/database"
	"github.com/amaumene/debridstream/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Purger drops expired entries and reports how many went.
type Purger interface {
	PurgeExpired() int
}

// CleanupService removes old magnets from the debrid account and the store
// and purges expired transcode output, on a cron schedule.
type CleanupService struct {
	cron      *cron.Cron
	schedule  string
	retention time.Duration
	db        database.Database
	debrid    DebridService
	purgers   []Purger
	logger    logger.Logger

	mu      sync.Mutex
	running bool
}

func NewCleanupService(db database.Database, debrid DebridService, schedule string, retention time.Duration, log logger.Logger) *CleanupService {
	if schedule == "" {
		schedule = "@every 1h"
	}
	if retention <= 0 {
		retention = constants.CleanupRetention
	}
	if log == nil {
		log = logger.Discard()
	}
	return &CleanupService{
		cron:      cron.New(),
		schedule:  schedule,
		retention: retention,
		db:        db,
		debrid:    debrid,
		logger:    log,
	}
}

// AddPurger registers another cache to purge on each run.
func (c *CleanupService) AddPurger(p Purger) {
	c.purgers = append(c.purgers, p)
}

func (c *CleanupService) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() { c.CleanupNow(context.Background()) }); err != nil {
		return fmt.Errorf("failed to add cleanup job: %w", err)
	}
	c.cron.Start()
	c.running = true
	c.logger.Infof("[Cleanup] scheduled %q, retention %v", c.schedule, c.retention)
	return nil
}

func (c *CleanupService) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	<-c.cron.Stop().Done()
	c.running = false
	c.logger.Infof("[Cleanup] stopped")
}

// CleanupNow runs one pass and returns how many magnets were removed.
func (c *CleanupService) CleanupNow(ctx context.Context) int {
	for _, p := range c.purgers {
		if n := p.PurgeExpired(); n > 0 {
			c.logger.Infof("[Cleanup] purged %d expired entries", n)
		}
	}

	if c.db == nil {
		return 0
	}
	old, err := c.db.GetOldMagnets(c.retention)
	if err != nil {
		c.logger.Errorf("[Cleanup] failed to list old magnets: %v", err)
		return 0
	}
	if len(old) == 0 {
		c.logger.Debugf("[Cleanup] no old magnets")
		return 0
	}

	removed := 0
	for _, m := range old {
		if ctx.Err() != nil {
			break
		}
		if c.debrid != nil && c.debrid.IsConfigured() {
			if err := c.debrid.DeleteMagnet(ctx, m.ID); err != nil {
				c.logger.Warnf("[Cleanup] failed to delete magnet %s from the debrid account: %v", m.ID, err)
			}
		}
		if err := c.db.DeleteMagnet(m.ID); err != nil {
			c.logger.Warnf("[Cleanup] failed to delete magnet %s from the store: %v", m.ID, err)
			continue
		}
		removed++
	}
	c.logger.Infof("[Cleanup] removed %d of %d old magnets", removed, len(old))
	return removed
}
