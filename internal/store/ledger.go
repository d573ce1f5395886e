package store

import (
	"context"
	"fmt"

	"usaha/internal/core"
	"usaha/internal/reminder"
)

// AddIncome stores a new other income with a fresh id.
func (s *Store) AddIncome(ctx context.Context, businessID string, in core.OtherIncome) (core.OtherIncome, error) {
	if err := in.Validate(); err != nil {
		return core.OtherIncome{}, err
	}
	in.ID = core.NewID()
	err := s.mutate(ctx, "add_income", businessID, func(b *core.Business) (func(context.Context) error, error) {
		b.OtherIncomes = append(b.OtherIncomes, in)
		return s.putIncome(businessID, in), nil
	})
	return in, err
}

// UpdateIncome replaces an existing other income.
func (s *Store) UpdateIncome(ctx context.Context, businessID string, in core.OtherIncome) error {
	if err := in.Validate(); err != nil {
		return err
	}
	return s.mutate(ctx, "update_income", businessID, func(b *core.Business) (func(context.Context) error, error) {
		for i := range b.OtherIncomes {
			if b.OtherIncomes[i].ID == in.ID {
				b.OtherIncomes[i] = in
				return s.putIncome(businessID, in), nil
			}
		}
		return nil, fmt.Errorf("income %s: %w", in.ID, core.ErrNotFound)
	})
}

func (s *Store) DeleteIncome(ctx context.Context, businessID, id string) error {
	return s.mutate(ctx, "delete_income", businessID, func(b *core.Business) (func(context.Context) error, error) {
		for i := range b.OtherIncomes {
			if b.OtherIncomes[i].ID == id {
				b.OtherIncomes = append(b.OtherIncomes[:i:i], b.OtherIncomes[i+1:]...)
				return func(ctx context.Context) error {
					return s.backend.DeleteIncome(ctx, s.owner.Key, businessID, id)
				}, nil
			}
		}
		return nil, fmt.Errorf("income %s: %w", id, core.ErrNotFound)
	})
}

func (s *Store) putIncome(businessID string, in core.OtherIncome) func(context.Context) error {
	return func(ctx context.Context) error {
		return s.backend.PutIncome(ctx, s.owner.Key, businessID, in)
	}
}

// AddExpense stores a new other expense with a fresh id.
func (s *Store) AddExpense(ctx context.Context, businessID string, ex core.OtherExpense) (core.OtherExpense, error) {
	if err := ex.Validate(); err != nil {
		return core.OtherExpense{}, err
	}
	ex.ID = core.NewID()
	err := s.mutate(ctx, "add_expense", businessID, func(b *core.Business) (func(context.Context) error, error) {
		b.OtherExpenses = append(b.OtherExpenses, ex)
		return s.putExpense(businessID, ex), nil
	})
	return ex, err
}

// UpdateExpense replaces an existing other expense.
func (s *Store) UpdateExpense(ctx context.Context, businessID string, ex core.OtherExpense) error {
	if err := ex.Validate(); err != nil {
		return err
	}
	return s.mutate(ctx, "update_expense", businessID, func(b *core.Business) (func(context.Context) error, error) {
		for i := range b.OtherExpenses {
			if b.OtherExpenses[i].ID == ex.ID {
				b.OtherExpenses[i] = ex
				return s.putExpense(businessID, ex), nil
			}
		}
		return nil, fmt.Errorf("expense %s: %w", ex.ID, core.ErrNotFound)
	})
}

func (s *Store) DeleteExpense(ctx context.Context, businessID, id string) error {
	return s.mutate(ctx, "delete_expense", businessID, func(b *core.Business) (func(context.Context) error, error) {
		for i := range b.OtherExpenses {
			if b.OtherExpenses[i].ID == id {
				b.OtherExpenses = append(b.OtherExpenses[:i:i], b.OtherExpenses[i+1:]...)
				return func(ctx context.Context) error {
					return s.backend.DeleteExpense(ctx, s.owner.Key, businessID, id)
				}, nil
			}
		}
		return nil, fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
	})
}

func (s *Store) putExpense(businessID string, ex core.OtherExpense) func(context.Context) error {
	return func(ctx context.Context) error {
		return s.backend.PutExpense(ctx, s.owner.Key, businessID, ex)
	}
}

// AddLabel stores a new label with a fresh id.
func (s *Store) AddLabel(ctx context.Context, businessID string, l core.Label) (core.Label, error) {
	if err := l.Validate(); err != nil {
		return core.Label{}, err
	}
	l.ID = core.NewID()
	err := s.mutate(ctx, "add_label", businessID, func(b *core.Business) (func(context.Context) error, error) {
		b.Labels = append(b.Labels, l)
		return s.putLabel(businessID, l), nil
	})
	return l, err
}

func (s *Store) UpdateLabel(ctx context.Context, businessID string, l core.Label) error {
	if err := l.Validate(); err != nil {
		return err
	}
	return s.mutate(ctx, "update_label", businessID, func(b *core.Business) (func(context.Context) error, error) {
		for i := range b.Labels {
			if b.Labels[i].ID == l.ID {
				b.Labels[i] = l
				return s.putLabel(businessID, l), nil
			}
		}
		return nil, fmt.Errorf("label %s: %w", l.ID, core.ErrNotFound)
	})
}

// DeleteLabel removes a label and clears labelId on every job that used it.
// The jobs themselves stay.
func (s *Store) DeleteLabel(ctx context.Context, businessID, labelID string) error {
	return s.mutate(ctx, "delete_label", businessID, func(b *core.Business) (func(context.Context) error, error) {
		idx := -1
		for i := range b.Labels {
			if b.Labels[i].ID == labelID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("label %s: %w", labelID, core.ErrNotFound)
		}
		b.Labels = append(b.Labels[:idx:idx], b.Labels[idx+1:]...)
		for i := range b.Jobs {
			if b.Jobs[i].LabelID == labelID {
				b.Jobs[i].LabelID = ""
			}
		}
		return func(ctx context.Context) error {
			return s.backend.DeleteLabel(ctx, s.owner.Key, businessID, labelID)
		}, nil
	})
}

func (s *Store) putLabel(businessID string, l core.Label) func(context.Context) error {
	return func(ctx context.Context) error {
		return s.backend.PutLabel(ctx, s.owner.Key, businessID, l)
	}
}

// Notified returns the reminder keys already delivered for this owner.
func (s *Store) Notified(ctx context.Context) (reminder.Set, error) {
	return s.backend.Notified(ctx, s.owner.Key)
}

// MarkNotified records reminder keys as delivered.
func (s *Store) MarkNotified(ctx context.Context, keys ...string) error {
	return s.backend.Mark(ctx, s.owner.Key, keys...)
}
