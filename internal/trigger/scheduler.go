// Package trigger runs batch jobs on a cron schedule.
package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Job is one scheduled unit of work, typically a batch run over the notes
// database.
type Job func(ctx context.Context) error

// Scheduler manages cron-based batch execution.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
}

// NewScheduler creates a scheduler whose runs are bounded by timeout
// (zero for none). A tick that fires while the previous run of the same job
// is still going is skipped.
// Cron expressions use the standard 5-field format: minute hour day-of-month month day-of-week
// (e.g. "0 2 * * *" for 02:00 daily). Descriptors such as "@hourly" or "@every 15m" are accepted.
func NewScheduler(timeout time.Duration) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout: timeout,
	}
}

// Add registers job under spec. Runs derive their context from ctx, so
// cancelling ctx aborts a run in progress and suppresses later ones.
func (s *Scheduler) Add(ctx context.Context, name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		runCtx, cancel := ctx, context.CancelFunc(func() {})
		if s.timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		}
		defer cancel()

		log.Info().Str("job", name).Msg("scheduled_trigger_fired")
		start := time.Now()
		if err := job(runCtx); err != nil {
			log.Error().Err(err).
				Str("job", name).
				Msg("scheduled_trigger_failed")
			return
		}
		log.Info().
			Str("job", name).
			Dur("duration", time.Since(start)).
			Msg("scheduled_trigger_done")
	})
	if err != nil {
		return fmt.Errorf("registering cron %q for %s: %w", spec, name, err)
	}
	return nil
}

// Start begins executing registered cron jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs to complete.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Run starts the scheduler and blocks until ctx is done, then stops it.
func (s *Scheduler) Run(ctx context.Context) {
	s.Start()
	for _, e := range s.cron.Entries() {
		log.Info().Time("next", e.Next).Msg("scheduled_trigger_registered")
	}
	<-ctx.Done()
	s.Stop()
}

// Entries returns the number of registered cron entries (for testing).
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
