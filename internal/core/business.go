package core

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a fresh random identifier for any stored entity.
func NewID() string {
	return uuid.NewString()
}

// OtherIncome is a dated income not tied to a job. Always realized.
type OtherIncome struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Date   Date   `json:"date"`
	Amount Amount `json:"amount"`
}

// OtherExpense is a dated expense not tied to a job. Always realized.
type OtherExpense struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Date   Date   `json:"date"`
	Amount Amount `json:"amount"`
}

func (i OtherIncome) Validate() error  { return validateEntry(i.Title, i.Date, i.Amount) }
func (e OtherExpense) Validate() error { return validateEntry(e.Title, e.Date, e.Amount) }

func validateEntry(title string, d Date, amount Amount) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}
	if err := d.Validate(); err != nil {
		return err
	}
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// Label tags jobs. Jobs reference it by id only.
type Label struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Color string `json:"color,omitempty"`
}

func (l Label) Validate() error {
	if strings.TrimSpace(l.Title) == "" {
		return ErrEmptyName
	}
	return nil
}

// Business owns its four collections exclusively.
type Business struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Jobs          []Job          `json:"jobs"`
	OtherIncomes  []OtherIncome  `json:"otherIncomes"`
	OtherExpenses []OtherExpense `json:"otherExpenses"`
	Labels        []Label        `json:"labels"`
}

// NewBusiness returns a business with a fresh id and empty collections.
func NewBusiness(name string) Business {
	return Business{
		ID:            NewID(),
		Name:          strings.TrimSpace(name),
		Jobs:          []Job{},
		OtherIncomes:  []OtherIncome{},
		OtherExpenses: []OtherExpense{},
		Labels:        []Label{},
	}
}

func (b Business) JobIndex(id string) int {
	for i := range b.Jobs {
		if b.Jobs[i].ID == id {
			return i
		}
	}
	return -1
}

func (b Business) Job(id string) (Job, bool) {
	if i := b.JobIndex(id); i >= 0 {
		return b.Jobs[i], true
	}
	return Job{}, false
}

func (b Business) Label(id string) (Label, bool) {
	for _, l := range b.Labels {
		if l.ID == id {
			return l, true
		}
	}
	return Label{}, false
}

// Clone returns a deep copy safe to hand to other goroutines.
func (b Business) Clone() Business {
	out := b
	out.Jobs = make([]Job, len(b.Jobs))
	for i, j := range b.Jobs {
		out.Jobs[i] = j.Clone()
	}
	out.OtherIncomes = append([]OtherIncome{}, b.OtherIncomes...)
	out.OtherExpenses = append([]OtherExpense{}, b.OtherExpenses...)
	out.Labels = append([]Label{}, b.Labels...)
	return out
}

// CloneAll deep-copies a slice of businesses.
func CloneAll(bs []Business) []Business {
	out := make([]Business, len(bs))
	for i, b := range bs {
		out[i] = b.Clone()
	}
	return out
}
