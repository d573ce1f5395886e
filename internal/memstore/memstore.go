// Package memstore is an in-process persistence backend. It also carries the
// collection logic the file-backed guest store builds on.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"usaha/internal/core"
	"usaha/internal/reminder"
	"usaha/internal/store"
)

// OwnerData is everything persisted for one owner.
type OwnerData struct {
	Businesses []core.Business `json:"businesses"`
	Notified   []string        `json:"notified,omitempty"`
}

func (d OwnerData) clone() OwnerData {
	return OwnerData{
		Businesses: core.CloneAll(d.Businesses),
		Notified:   append([]string(nil), d.Notified...),
	}
}

// CommitFunc persists an owner's data after a write. A failing commit
// rolls the write back.
type CommitFunc func(owner string, data OwnerData) error

type Store struct {
	*store.Broadcaster

	mu       sync.Mutex
	data     map[string]OwnerData
	profiles map[string]reminder.Recipient
	commit   CommitFunc
}

var (
	_ store.Backend        = (*Store)(nil)
	_ reminder.Source      = (*Store)(nil)
	_ reminder.Recipients  = (*Store)(nil)
	_ reminder.MarkerStore = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		Broadcaster: store.NewBroadcaster(),
		data:        make(map[string]OwnerData),
		profiles:    make(map[string]reminder.Recipient),
	}
}

// NewWithCommit returns a store that calls commit after every write.
func NewWithCommit(commit CommitFunc) *Store {
	s := New()
	s.commit = commit
	return s
}

// Seed replaces an owner's data without committing or publishing.
func (s *Store) Seed(owner string, data OwnerData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[owner] = data.clone()
}

// Snapshot returns a copy of everything stored for owner.
func (s *Store) Snapshot(owner string) OwnerData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[owner].clone()
}

func (s *Store) Load(_ context.Context, owner string) ([]core.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.CloneAll(s.data[owner].Businesses), nil
}

func (s *Store) Owners(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// update applies fn to a copy of the owner's data, commits it and publishes
// the new collection. Nothing changes when fn or the commit fails.
func (s *Store) update(owner string, fn func(d *OwnerData) error) error {
	s.mu.Lock()
	next := s.data[owner].clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.commit != nil {
		if err := s.commit(owner, next); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("commit: %w", err)
		}
	}
	s.data[owner] = next
	snapshot := core.CloneAll(next.Businesses)
	s.mu.Unlock()

	s.Publish(owner, snapshot)
	return nil
}

// withBusiness runs fn on the business with id, failing with ErrNotFound.
func (s *Store) withBusiness(owner, businessID string, fn func(b *core.Business) error) error {
	return s.update(owner, func(d *OwnerData) error {
		for i := range d.Businesses {
			if d.Businesses[i].ID == businessID {
				return fn(&d.Businesses[i])
			}
		}
		return fmt.Errorf("business %s: %w", businessID, core.ErrNotFound)
	})
}

func (s *Store) SaveBusiness(_ context.Context, owner string, b core.Business) error {
	return s.update(owner, func(d *OwnerData) error {
		for i := range d.Businesses {
			if d.Businesses[i].ID == b.ID {
				d.Businesses[i].Name = b.Name
				return nil
			}
		}
		d.Businesses = append(d.Businesses, b.Clone())
		return nil
	})
}

func (s *Store) DeleteBusiness(_ context.Context, owner, businessID string) error {
	return s.update(owner, func(d *OwnerData) error {
		for i := range d.Businesses {
			if d.Businesses[i].ID == businessID {
				d.Businesses = append(d.Businesses[:i:i], d.Businesses[i+1:]...)
				return nil
			}
		}
		return nil
	})
}

func (s *Store) PutJob(_ context.Context, owner, businessID string, j core.Job) error {
	return s.withBusiness(owner, businessID, func(b *core.Business) error {
		putJob(b, j)
		return nil
	})
}

func putJob(b *core.Business, j core.Job) {
	if i := b.JobIndex(j.ID); i >= 0 {
		b.Jobs[i] = j.Clone()
		return
	}
	b.Jobs = append(b.Jobs, j.Clone())
}

func (s *Store) DeleteJob(_ context.Context, owner, businessID, jobID string) error {
	return s.withBusiness(owner, businessID, func(b *core.Business) error {
		if i := b.JobIndex(jobID); i >= 0 {
			b.Jobs = append(b.Jobs[:i:i], b.Jobs[i+1:]...)
		}
		return nil
	})
}

func (s *Store) DetachOccurrence(_ context.Context, owner, businessID string, updated, standalone core.Job) error {
	return s.withBusiness(owner, businessID, func(b *core.Business) error {
		if b.JobIndex(updated.ID) < 0 {
			return fmt.Errorf("job %s: %w", updated.ID, core.ErrNotFound)
		}
		putJob(b, updated)
		putJob(b, standalone)
		return nil
	})
}

func (s *Store) PutIncome(_ context.Context, owner, businessID string, in core.OtherIncome) error {
	return s.withBusiness(owner, businessID, func(b *core.Business) error {
		for i := range b.OtherIncomes {
			if b.OtherIncomes[i].ID == in.ID {
				b.OtherIncomes[i] = in
				return nil
			}
		}
		b.OtherIncomes = append(b.OtherIncomes, in)
		return nil
	})
}

func (s *Store) DeleteIncome(_ context.Context, owner, businessID, id string) error {
	return s.withBusiness(owner, businessID, func(b *core.Business) error {
		for i := range b.OtherIncomes {
			if b.OtherIncomes[i].ID == id {
				b.OtherIncomes = append(b.OtherIncomes[:i:i], b.OtherIncomes[i+1:]...)
				break
			}
		}
		return nil
	})
}

func (s *Store) PutExpense(_ context.Context, owner, businessID string, ex core.OtherExpense) error {
	return s.withBusiness(owner, businessID, func(b *core.Business) error {
		for i := range b.OtherExpenses {
			if b.OtherExpenses[i].ID == ex.ID {
				b.OtherExpenses[i] = ex
				return nil
			}
		}
		b.OtherExpenses = append(b.OtherExpenses, ex)
		return nil
	})
}

func (s *Store) DeleteExpense(_ context.Context, owner, businessID, id string) error {
	return s.withBusiness(owner, businessID, func(b *core.Business) error {
		for i := range b.OtherExpenses {
			if b.OtherExpenses[i].ID == id {
				b.OtherExpenses = append(b.OtherExpenses[:i:i], b.OtherExpenses[i+1:]...)
				break
			}
		}
		return nil
	})
}

func (s *Store) PutLabel(_ context.Context, owner, businessID string, l core.Label) error {
	return s.withBusiness(owner, businessID, func(b *core.Business) error {
		for i := range b.Labels {
			if b.Labels[i].ID == l.ID {
				b.Labels[i] = l
				return nil
			}
		}
		b.Labels = append(b.Labels, l)
		return nil
	})
}

func (s *Store) DeleteLabel(_ context.Context, owner, businessID, labelID string) error {
	return s.withBusiness(owner, businessID, func(b *core.Business) error {
		for i := range b.Labels {
			if b.Labels[i].ID == labelID {
				b.Labels = append(b.Labels[:i:i], b.Labels[i+1:]...)
				break
			}
		}
		for i := range b.Jobs {
			if b.Jobs[i].LabelID == labelID {
				b.Jobs[i].LabelID = ""
			}
		}
		return nil
	})
}

func (s *Store) Notified(_ context.Context, owner string) (reminder.Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := reminder.Set{}
	set.Add(s.data[owner].Notified...)
	return set, nil
}

func (s *Store) Mark(_ context.Context, owner string, keys ...string) error {
	return s.update(owner, func(d *OwnerData) error {
		have := reminder.Set{}
		have.Add(d.Notified...)
		for _, k := range keys {
			if !have.Has(k) {
				d.Notified = append(d.Notified, k)
				have.Add(k)
			}
		}
		return nil
	})
}

// SetProfile records where reminders for owner go.
func (s *Store) SetProfile(_ context.Context, owner string, r reminder.Recipient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[owner] = r
	return nil
}

func (s *Store) Recipient(_ context.Context, owner string) (reminder.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[owner], nil
}
