// Package store holds the authoritative in-memory copy of an owner's
// businesses and forwards every mutation to a persistence backend.
package store

import (
	"context"
	"errors"
	"strings"

	"usaha/internal/core"
	"usaha/internal/reminder"
)

// Owner says whose data a Store holds and where it lives. Guests persist to
// local storage only.
type Owner struct {
	Key   string
	Guest bool
}

var ErrInvalidOwner = errors.New("invalid owner")

func (o Owner) Validate() error {
	if strings.TrimSpace(o.Key) == "" || len(o.Key) > 128 {
		return ErrInvalidOwner
	}
	return nil
}

func (o Owner) id() string {
	if o.Guest {
		return "guest:" + o.Key
	}
	return "user:" + o.Key
}

// Backend persists businesses per owner key. Every write either fully
// applies or fully fails. After a committed write the backend publishes the
// owner's full collection to subscribers.
type Backend interface {
	Load(ctx context.Context, owner string) ([]core.Business, error)
	Owners(ctx context.Context) ([]string, error)
	Subscribe(owner string) (<-chan []core.Business, func())

	SaveBusiness(ctx context.Context, owner string, b core.Business) error
	DeleteBusiness(ctx context.Context, owner, businessID string) error

	PutJob(ctx context.Context, owner, businessID string, j core.Job) error
	DeleteJob(ctx context.Context, owner, businessID, jobID string) error
	// DetachOccurrence stores the updated template and the new standalone
	// job as one unit.
	DetachOccurrence(ctx context.Context, owner, businessID string, updated, standalone core.Job) error

	PutIncome(ctx context.Context, owner, businessID string, in core.OtherIncome) error
	DeleteIncome(ctx context.Context, owner, businessID, id string) error
	PutExpense(ctx context.Context, owner, businessID string, ex core.OtherExpense) error
	DeleteExpense(ctx context.Context, owner, businessID, id string) error

	PutLabel(ctx context.Context, owner, businessID string, l core.Label) error
	// DeleteLabel removes the label and clears labelId on every job that
	// referenced it, in the same write.
	DeleteLabel(ctx context.Context, owner, businessID, labelID string) error

	reminder.MarkerStore
}

// Calendar mirrors one-off jobs into an external calendar for an owner.
type Calendar interface {
	Upsert(ctx context.Context, owner, businessName string, j core.Job) (string, error)
	Delete(ctx context.Context, owner, eventID string) error
}
