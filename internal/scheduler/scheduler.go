package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/prop-edge/internal/edge"
	"github.com/yourusername/prop-edge/internal/metrics"
	"github.com/yourusername/prop-edge/internal/models"
)

const sweepTimeout = 10 * time.Minute

// Sweeper recomputes the active edge set for one sport.
type Sweeper interface {
	RecomputeEdgesForSport(ctx context.Context, sport models.Sport) (*edge.SweepStats, error)
}

// Scheduler runs recurring edge sweeps on cron schedules.
type Scheduler struct {
	cron      *cron.Cron
	sweeper   Sweeper
	log       *logrus.Entry
	mu        sync.RWMutex
	isRunning bool
	jobIDs    []cron.EntryID
}

// NewScheduler creates a new scheduler
func NewScheduler(sweeper Sweeper, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		sweeper: sweeper,
		log:     logger.WithField("component", "scheduler"),
		jobIDs:  make([]cron.EntryID, 0),
	}
}

// ScheduleSweep registers a recurring sweep for one sport.
func (s *Scheduler) ScheduleSweep(cronExpression string, sport models.Sport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	jobFunc := func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		start := time.Now()
		sweep, err := s.sweeper.RecomputeEdgesForSport(ctx, sport)
		if err != nil {
			if errors.Is(err, models.ErrSweepInProgress) {
				s.log.WithField("sport", sport).Warn("Sweep skipped, previous run still in progress")
				metrics.RecordSweep(string(sport), "skipped", time.Since(start).Seconds())
				return
			}
			s.log.WithError(err).WithField("sport", sport).Error("Scheduled sweep failed")
			metrics.RecordSweep(string(sport), "error", time.Since(start).Seconds())
			return
		}

		metrics.RecordSweep(string(sport), "success", time.Since(start).Seconds())
		s.log.WithFields(logrus.Fields{
			"sport":     sport,
			"evaluated": sweep.Evaluated,
			"new":       sweep.New,
			"updated":   sweep.Updated,
			"retired":   sweep.Retired,
			"duration":  time.Since(start),
		}).Info("Scheduled sweep completed")
	}

	entryID, err := s.cron.AddFunc(cronExpression, jobFunc)
	if err != nil {
		return fmt.Errorf("failed to add job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.log.WithFields(logrus.Fields{
		"sport": sport,
		"cron":  cronExpression,
	}).Info("Sweep scheduled")

	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.log.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	<-s.cron.Stop().Done()
	s.isRunning = false
	s.log.Info("Scheduler stopped")
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || len(s.jobIDs) == 0 {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			if nextRun.IsZero() || entry.Next.Before(nextRun) {
				nextRun = entry.Next
			}
		}
	}
	return nextRun
}
