// Package scheduler manages the system's job lifecycle.
//
// Job schedule:
//
// Nightly jobs (most important):
//   - Sync market data via the ingestion orchestrator
//   - Refresh the regime snapshot
//   - Generate next-day/next-week watchlist
//
// Market hour jobs:
//   - Monitor open positions
//   - Manage exits only (no new entries outside the Monday/Tuesday cadence)
//
// Weekly jobs:
//   - Run the Monday plan-generation step
//   - Refresh sector/ticker reference data
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nitinkhare/swingdss/internal/market"
)

// JobType categorizes when a job should run.
type JobType string

const (
	JobTypeNightly    JobType = "NIGHTLY"
	JobTypeMarketHour JobType = "MARKET_HOUR"
	JobTypeWeekly     JobType = "WEEKLY"
)

// Job represents a scheduled task.
type Job struct {
	Name    string
	Type    JobType
	RunFunc func(ctx context.Context) error
}

// Scheduler manages and executes jobs based on market state.
type Scheduler struct {
	calendar *market.Calendar
	jobs     []Job
	logger   zerolog.Logger
}

// New creates a new scheduler.
func New(calendar *market.Calendar, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		calendar: calendar,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

// RegisterJob adds a job to the scheduler.
func (s *Scheduler) RegisterJob(job Job) {
	s.jobs = append(s.jobs, job)
	s.logger.Info().Str("job", job.Name).Str("type", string(job.Type)).Msg("registered job")
}

// RunNightlyJobs executes all nightly jobs in sequence. These run after
// market close and prepare the next trading day's ingestion/regime state.
func (s *Scheduler) RunNightlyJobs(ctx context.Context) error {
	s.logger.Info().Msg("starting nightly job cycle")

	for _, job := range s.jobs {
		if job.Type != JobTypeNightly {
			continue
		}

		s.logger.Info().Str("job", job.Name).Msg("running nightly job")
		start := time.Now()

		if err := job.RunFunc(ctx); err != nil {
			s.logger.Error().Str("job", job.Name).Err(err).Msg("nightly job failed")
			return fmt.Errorf("nightly job %s failed: %w", job.Name, err)
		}

		s.logger.Info().Str("job", job.Name).Dur("elapsed", time.Since(start)).Msg("completed nightly job")
	}

	s.logger.Info().Msg("nightly job cycle complete")
	return nil
}

// RunMarketHourJobs executes market-hour jobs, skipping entirely when the
// market is closed.
func (s *Scheduler) RunMarketHourJobs(ctx context.Context) error {
	now := time.Now()

	if !s.calendar.IsMarketOpen(now) {
		s.logger.Debug().Msg("market is closed, skipping market-hour jobs")
		return nil
	}

	return s.runMarketHourJobs(ctx)
}

// ForceRunMarketHourJobs runs market-hour jobs without checking whether
// the market is currently open, for exercising the pipeline off-hours.
func (s *Scheduler) ForceRunMarketHourJobs(ctx context.Context) error {
	s.logger.Debug().Msg("force-running market-hour jobs (calendar check skipped)")
	return s.runMarketHourJobs(ctx)
}

func (s *Scheduler) runMarketHourJobs(ctx context.Context) error {
	s.logger.Info().Msg("starting market-hour job cycle")

	for _, job := range s.jobs {
		if job.Type != JobTypeMarketHour {
			continue
		}

		s.logger.Info().Str("job", job.Name).Msg("running market-hour job")
		if err := job.RunFunc(ctx); err != nil {
			s.logger.Error().Str("job", job.Name).Err(err).Msg("market-hour job failed, continuing")
		}
	}

	return nil
}

// RunWeeklyJobs executes weekly maintenance jobs, typically run on the
// weekend ahead of Monday's plan generation.
func (s *Scheduler) RunWeeklyJobs(ctx context.Context) error {
	s.logger.Info().Msg("starting weekly job cycle")

	for _, job := range s.jobs {
		if job.Type != JobTypeWeekly {
			continue
		}

		s.logger.Info().Str("job", job.Name).Msg("running weekly job")
		if err := job.RunFunc(ctx); err != nil {
			s.logger.Error().Str("job", job.Name).Err(err).Msg("weekly job failed")
			return fmt.Errorf("weekly job %s failed: %w", job.Name, err)
		}
	}

	s.logger.Info().Msg("weekly job cycle complete")
	return nil
}

// Status returns current market state information.
func (s *Scheduler) Status() string {
	now := time.Now()
	isOpen := s.calendar.IsMarketOpen(now)
	isTrading := s.calendar.IsTradingDay(now)
	nextSession := s.calendar.TimeUntilNextSession(now)

	status := fmt.Sprintf(
		"Market Status: open=%v trading_day=%v next_session_in=%v",
		isOpen, isTrading, nextSession.Round(time.Minute),
	)

	if reason := s.calendar.HolidayReason(now); reason != "" {
		status += fmt.Sprintf(" holiday=%s", reason)
	}

	return status
}
