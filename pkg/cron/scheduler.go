// Package cron runs scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DigestSource provides the previous day's reconciliation counts.
type DigestSource interface {
	DailyDigest(ctx context.Context, since time.Time) (map[string]int, error)
}

// Scheduler manages background jobs on a standard 5-field cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	source   DigestSource
	schedule string
	logger   *slog.Logger
}

// NewScheduler creates a scheduler that emits a daily reconciliation
// digest on the given cron expression.
func NewScheduler(source DigestSource, schedule string, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:     c,
		source:   source,
		schedule: schedule,
		logger:   logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.emitDailyDigest); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("digest_schedule", s.schedule),
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the digest, for admin use.
func (s *Scheduler) RunNow() {
	go s.emitDailyDigest()
}

// emitDailyDigest logs yesterday's reconciliation activity per status so
// operators see unmatched volume without querying the database.
func (s *Scheduler) emitDailyDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	since := time.Now().AddDate(0, 0, -1)
	counts, err := s.source.DailyDigest(ctx, since)
	if err != nil {
		s.logger.Error("failed to build reconciliation digest", slog.Any("error", err))
		return
	}

	attrs := []any{slog.Time("since", since)}
	for status, count := range counts {
		attrs = append(attrs, slog.Int(status, count))
	}
	s.logger.Info("daily reconciliation digest", attrs...)
}
