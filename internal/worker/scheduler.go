// Package worker runs the background halves of reminder delivery: the
// periodic deadline scan and the consumer that sends notifications.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"usaha/internal/log"
	"usaha/internal/reminder"
)

// Scanner is one pass of the reminder dispatcher.
type Scanner interface {
	RunOnce(ctx context.Context) (reminder.Stats, error)
}

// ReminderScheduler runs a Scanner at startup and then on a fixed interval.
// A scan still running when the next tick fires makes that tick a no-op.
type ReminderScheduler struct {
	scanner  Scanner
	interval time.Duration
	loc      *time.Location
	logger   *log.Logger
}

func NewReminderScheduler(scanner Scanner, interval time.Duration, loc *time.Location, logger *log.Logger) *ReminderScheduler {
	if interval < time.Second {
		interval = time.Second
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &ReminderScheduler{
		scanner:  scanner,
		interval: interval,
		loc:      loc,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Run blocks until ctx is cancelled, then waits for a running scan.
func (s *ReminderScheduler) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Running initial reminder scan")
	s.scan(ctx)

	cl := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(EveryExpr(s.interval), func() { s.scan(ctx) }); err != nil {
		return fmt.Errorf("schedule reminder scan: %w", err)
	}
	c.Start()
	s.logger.InfoContext(ctx, "Reminder scheduler started", "interval", s.interval.String())

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("Reminder scheduler stopped")
	return nil
}

func (s *ReminderScheduler) scan(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	stats, err := s.scanner.RunOnce(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Reminder scan finished with errors", log.NewFields().
			WithOperation(log.OpScan).WithError(err).ToSlice()...)
		return
	}
	s.logger.DebugContext(ctx, "Reminder scan finished", "delivered", stats.Delivered, "next_check",
		time.Now().In(s.loc).Add(s.interval).Format("15:04:05"))
}

// EveryExpr renders d as a cron "@every" expression in whole seconds.
func EveryExpr(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d < time.Second {
		d = time.Second
	}
	return "@every " + d.String()
}

// cronLogger routes cron's own messages into the structured logger.
type cronLogger struct {
	logger *log.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, log.FieldError, err.Error())...)
}
