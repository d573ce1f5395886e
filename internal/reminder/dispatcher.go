package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"usaha/internal/core"
	"usaha/internal/log"
	"usaha/internal/metrics"
)

// Source lists owners and loads their businesses.
type Source interface {
	Owners(ctx context.Context) ([]string, error)
	Load(ctx context.Context, owner string) ([]core.Business, error)
}

// MarkerStore persists the keys of delivered reminders per owner.
type MarkerStore interface {
	Notified(ctx context.Context, owner string) (Set, error)
	Mark(ctx context.Context, owner string, keys ...string) error
}

// Sink takes delivery of one event. An error leaves the event unmarked so
// the next scan offers it again.
type Sink interface {
	Deliver(ctx context.Context, owner string, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, owner string, ev Event) error

func (f SinkFunc) Deliver(ctx context.Context, owner string, ev Event) error { return f(ctx, owner, ev) }

// DispatcherConfig holds dispatcher tuning.
type DispatcherConfig struct {
	LookaheadDays int
	Location      *time.Location
	Now           func() time.Time
}

// DefaultDispatcherConfig scans three days ahead in UTC.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		LookaheadDays: DefaultLookaheadDays,
		Location:      time.UTC,
		Now:           time.Now,
	}
}

// Stats summarizes one RunOnce.
type Stats struct {
	Owners    int
	Found     int
	Delivered int
	Failed    int
}

// Dispatcher runs FindDue for every owner and hands events to a Sink.
type Dispatcher struct {
	source  Source
	markers MarkerStore
	sink    Sink
	config  DispatcherConfig
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewDispatcher wires a dispatcher. Zero config fields take their defaults.
func NewDispatcher(source Source, markers MarkerStore, sink Sink, cfg DispatcherConfig, logger *log.Logger, m *metrics.Metrics) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.LookaheadDays <= 0 {
		cfg.LookaheadDays = def.LookaheadDays
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Dispatcher{
		source:  source,
		markers: markers,
		sink:    sink,
		config:  cfg,
		logger:  logger.WithComponent(log.ComponentReminder),
		metrics: m,
	}
}

// RunOnce scans every owner a single time. A failing owner is logged and
// skipped; the joined errors are returned after all owners ran.
func (d *Dispatcher) RunOnce(ctx context.Context) (Stats, error) {
	start := time.Now()
	defer func() { d.metrics.ObserveScan(time.Since(start)) }()

	owners, err := d.source.Owners(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("list owners: %w", err)
	}

	var stats Stats
	var errs []error
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Owners++
		if err := d.runOwner(ctx, owner, &stats); err != nil {
			d.logger.ErrorContext(ctx, "Reminder scan failed for owner", log.NewFields().
				WithOwner(owner, false).WithError(err).WithOperation(log.OpScan).ToSlice()...)
			errs = append(errs, fmt.Errorf("owner %s: %w", owner, err))
		}
	}

	d.logger.InfoContext(ctx, "Reminder scan completed",
		"owners", stats.Owners, "found", stats.Found, "delivered", stats.Delivered, "failed", stats.Failed)
	return stats, errors.Join(errs...)
}

func (d *Dispatcher) runOwner(ctx context.Context, owner string, stats *Stats) error {
	businesses, err := d.source.Load(ctx, owner)
	if err != nil {
		return fmt.Errorf("load businesses: %w", err)
	}
	notified, err := d.markers.Notified(ctx, owner)
	if err != nil {
		return fmt.Errorf("load markers: %w", err)
	}

	now := d.config.Now().In(d.config.Location)
	for _, b := range businesses {
		for _, ev := range FindDueInBusiness(b, now, d.config.LookaheadDays, notified) {
			stats.Found++
			if err := d.sink.Deliver(ctx, owner, ev); err != nil {
				stats.Failed++
				d.metrics.ReminderDispatched("failed")
				d.logger.WarnContext(ctx, "Reminder delivery failed", log.NewFields().
					WithOwner(owner, false).WithJob(ev.BusinessID, ev.JobID).WithError(err).ToSlice()...)
				continue
			}
			if err := d.markers.Mark(ctx, owner, ev.Key); err != nil {
				return fmt.Errorf("mark %s: %w", ev.Key, err)
			}
			notified.Add(ev.Key)
			stats.Delivered++
			d.metrics.ReminderDispatched("delivered")
			d.logger.DebugContext(ctx, "Reminder delivered",
				log.FieldReminderKey, ev.Key, log.FieldDaysUntil, ev.DaysUntil)
		}
	}
	return nil
}
