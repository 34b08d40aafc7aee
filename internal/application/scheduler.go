package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner is the entry point a scheduling trigger fires. DigestService is the
// production implementation; tests substitute their own.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler fires digest runs on a cron expression. Start is non-blocking;
// Stop waits for an in-flight run to finish.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner

	schedule string
}

// NewScheduler builds a Scheduler for the given cron expression. Both
// five-field and six-field (leading seconds) expressions are accepted, as
// are @every and @daily style descriptors.
func NewScheduler(schedule string, runner Runner) (*Scheduler, error) {
	logger := cronLogger{logger: slog.Default()}
	parser := cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)

	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)

	s := &Scheduler{
		cron:     c,
		runner:   runner,
		schedule: schedule,
	}

	if _, err := c.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	return s, nil
}

// Start begins firing ticks. It returns immediately.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "schedule", s.schedule, "next_run", s.NextRun())
}

// Stop halts scheduling and blocks until any in-flight run returns or ctx
// expires.
func (s *Scheduler) Stop(ctx context.Context) {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		slog.Info("scheduler stopped")
	case <-ctx.Done():
		slog.Warn("scheduler stop timed out with a run still in flight")
	}
}

// NextRun returns the time of the next scheduled tick, or the zero time when
// the scheduler holds no entries.
func (s *Scheduler) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// tick executes one scheduled run. Errors are logged and swallowed so later
// ticks keep firing.
func (s *Scheduler) tick() {
	err := s.runner.Run(context.Background())
	switch {
	case err == nil:
	case errors.Is(err, ErrRunInProgress):
		slog.Warn("scheduled run skipped", "error", err)
	default:
		slog.Error("scheduled run failed", "error", err)
	}
}

// cronLogger adapts slog to the cron.Logger interface. Routine scheduling
// chatter lands at debug; job panics recovered by the cron chain land at
// error.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append([]interface{}{"error", err}, keysAndValues...)
	l.logger.Error(msg, args...)
}
