package store

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"usaha/internal/core"
	"usaha/internal/log"
)

// maxParallelCalendarDeletes caps concurrent calls when a business goes away.
const maxParallelCalendarDeletes = 4

// CreateBusiness adds a business with empty collections.
func (s *Store) CreateBusiness(ctx context.Context, name string) (core.Business, error) {
	if strings.TrimSpace(name) == "" {
		return core.Business{}, core.ErrEmptyName
	}
	b := core.NewBusiness(name)

	snapshot := b.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.businesses)
	s.businesses = append(s.businesses, b)
	err := s.commitLocked(ctx, "create_business", func(ctx context.Context) error {
		return s.backend.SaveBusiness(ctx, s.owner.Key, snapshot)
	}, func() { s.businesses = s.businesses[:n] })
	if err != nil {
		return core.Business{}, err
	}
	return b, nil
}

// RenameBusiness changes the name in place.
func (s *Store) RenameBusiness(ctx context.Context, businessID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyName
	}
	return s.mutate(ctx, "rename_business", businessID, func(b *core.Business) (func(context.Context) error, error) {
		b.Name = name
		snapshot := b.Clone()
		return func(ctx context.Context) error {
			return s.backend.SaveBusiness(ctx, s.owner.Key, snapshot)
		}, nil
	})
}

// DeleteBusiness removes the business and everything it owns. Linked
// calendar events are deleted first; their failures are logged only.
func (s *Store) DeleteBusiness(ctx context.Context, businessID string) error {
	b, ok := s.Business(businessID)
	if !ok {
		s.logger.DebugContext(ctx, "Business not found", log.FieldOperation, "delete_business", log.FieldBusinessID, businessID)
		return fmt.Errorf("business %s: %w", businessID, core.ErrNotFound)
	}
	s.deleteCalendarEvents(ctx, b.Jobs)

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(businessID)
	if i < 0 {
		return fmt.Errorf("business %s: %w", businessID, core.ErrNotFound)
	}
	prev := s.businesses
	s.businesses = append(s.businesses[:i:i], s.businesses[i+1:]...)
	return s.commitLocked(ctx, "delete_business", func(ctx context.Context) error {
		return s.backend.DeleteBusiness(ctx, s.owner.Key, businessID)
	}, func() { s.businesses = prev })
}

func (s *Store) deleteCalendarEvents(ctx context.Context, jobs []core.Job) {
	if s.calendar == nil {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelCalendarDeletes)
	for _, j := range jobs {
		if j.CalendarEventID == "" {
			continue
		}
		j := j
		g.Go(func() error {
			if err := s.calendar.Delete(gctx, s.owner.Key, j.CalendarEventID); err != nil {
				s.logger.WarnContext(gctx, "Calendar event delete failed", log.NewFields().
					WithJob("", j.ID).WithError(err).ToSlice()...)
			}
			return nil
		})
	}
	_ = g.Wait()
}
