// Package scheduler drives due-brand scraping on a tick, per spec §4.12.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"mediawatch/internal/coordinator"
	"mediawatch/internal/orchestrator"
	"mediawatch/internal/store"
)

// jitterWindow bounds the per-brand random delay applied before a due
// brand is actually scraped, spreading load across brands that all became
// due at the same tick (spec §4.12).
const jitterWindow = 10 * time.Minute

// Scheduler periodically scrapes every brand whose scrape_frequency_hours
// window has elapsed.
type Scheduler struct {
	store       store.Store
	coordinator *coordinator.Coordinator
	budgets     orchestrator.Budgets
	log         *slog.Logger
	tick        time.Duration
	jitter      time.Duration

	rand *rand.Rand
}

// New creates a Scheduler with the default 1-minute tick interval.
func New(st store.Store, c *coordinator.Coordinator, budgets orchestrator.Budgets, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		store:       st,
		coordinator: c,
		budgets:     budgets,
		log:         log,
		tick:        1 * time.Minute,
		jitter:      jitterWindow,
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetTickInterval overrides the default 1-minute check interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// SetJitterWindow overrides the default 10-minute per-brand jitter
// (primarily for tests, which can't afford to wait out the real window).
func (s *Scheduler) SetJitterWindow(d time.Duration) {
	s.jitter = d
}

// Run starts the scheduler loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.checkAll(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAll(ctx)
		}
	}
}

func (s *Scheduler) checkAll(ctx context.Context) {
	brands, err := s.store.ListDueBrands(ctx, time.Now().UTC())
	if err != nil {
		s.log.Error("list due brands", "error", err)
		return
	}

	for _, brand := range brands {
		if ctx.Err() != nil {
			return
		}
		go s.scrapeBrand(ctx, brand.ID)
	}
}

// scrapeBrand applies the per-brand jitter and then runs the coordinator,
// silently skipping brands another run already holds the lock on (spec
// §4.12: "Locked is not an error at the scheduler level").
func (s *Scheduler) scrapeBrand(ctx context.Context, brandID int64) {
	delay := time.Duration(0)
	if s.jitter > 0 {
		delay = time.Duration(s.rand.Int63n(int64(s.jitter)))
	}
	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}

	s.log.Debug("scraping due brand", "brand_id", brandID, "jitter", delay)

	_, _, err := s.coordinator.Run(ctx, brandID, coordinator.TriggerSchedule, s.budgets)
	if err != nil {
		if errors.Is(err, store.ErrLocked) {
			return
		}
		s.log.Error("scheduled scrape failed", "brand_id", brandID, "error", err)
	}
}
