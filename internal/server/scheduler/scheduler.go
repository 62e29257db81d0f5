// Package scheduler runs the recurring unlock pass: scan the store for due
// capsules and feed each one into the lifecycle engine, isolating failures so
// one bad capsule never aborts the batch.
package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrijs2005/timecapsule/internal/logging"
	"github.com/dmitrijs2005/timecapsule/internal/server/models"
	"github.com/dmitrijs2005/timecapsule/internal/server/repositories/repomanager"
)

// Unlocker is the lifecycle engine seam; satisfied by services.UnlockService.
type Unlocker interface {
	Unlock(ctx context.Context, capsule *models.Capsule) error
}

// Scheduler drives RunUnlockPass at a fixed interval.
type Scheduler struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	unlocker    Unlocker
	logger      logging.Logger
	interval    time.Duration
	cron        *cron.Cron
}

// New constructs a Scheduler. The interval is a deployment tunable, not a
// correctness parameter; unlock precision is bounded by it.
func New(db *sql.DB, m repomanager.RepositoryManager, unlocker Unlocker, logger logging.Logger, interval time.Duration) *Scheduler {
	return &Scheduler{
		db:          db,
		repomanager: m,
		unlocker:    unlocker,
		logger:      logger.With("module", "scheduler"),
		interval:    interval,
	}
}

// Start registers the recurring trigger and runs it until ctx is cancelled.
// The first pass fires one interval after start.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.RunUnlockPass(ctx, time.Now().UTC())
	})
	if err != nil {
		return fmt.Errorf("error registering unlock pass: %w", err)
	}

	s.logger.Info(ctx, "starting unlock scheduler", "interval", s.interval.String())
	s.cron.Start()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "stopping unlock scheduler")
		// wait for an in-flight pass to finish
		<-s.cron.Stop().Done()
	}()

	return nil
}

// RunUnlockPass executes one due-capsule scan-and-transition cycle. It
// returns nothing to any caller; its only observable effects are persisted
// state changes, dispatched notifications, and log entries. A pass with zero
// due capsules is a no-op.
func (s *Scheduler) RunUnlockPass(ctx context.Context, now time.Time) {
	due, err := s.repomanager.Capsules(s.db).SelectDue(ctx, now)
	if err != nil {
		s.logger.Error(ctx, "due capsule scan failed", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	s.logger.Info(ctx, "found capsules ready to unlock", "count", len(due))

	for _, capsule := range due {
		s.processOne(ctx, capsule)
	}
}

// processOne is the per-capsule fault boundary: both returned errors and
// panics are contained here so the batch continues with the next capsule.
func (s *Scheduler) processOne(ctx context.Context, capsule *models.Capsule) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "panic while unlocking capsule",
				"capsule_id", capsule.ID, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if err := s.unlocker.Unlock(ctx, capsule); err != nil {
		s.logger.Error(ctx, "failed to unlock capsule", "capsule_id", capsule.ID, "error", err)
	}
}
