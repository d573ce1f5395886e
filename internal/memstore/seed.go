package memstore

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"usaha/internal/core"
	"usaha/internal/reminder"
)

// seedFile is the YAML layout of a demo fixture.
type seedFile struct {
	Owners map[string]seedOwner `yaml:"owners"`
}

type seedOwner struct {
	Email      string         `yaml:"email"`
	ChatID     int64          `yaml:"telegram_chat_id"`
	Businesses []seedBusiness `yaml:"businesses"`
}

type seedBusiness struct {
	Name     string      `yaml:"name"`
	Labels   []seedLabel `yaml:"labels"`
	Jobs     []seedJob   `yaml:"jobs"`
	Incomes  []seedEntry `yaml:"incomes"`
	Expenses []seedEntry `yaml:"expenses"`
}

type seedLabel struct {
	Title string `yaml:"title"`
	Color string `yaml:"color"`
}

type seedJob struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Category    string   `yaml:"category"`
	Date        string   `yaml:"date"`
	Deadline    string   `yaml:"deadline"`
	Gross       string   `yaml:"gross"`
	Expenses    string   `yaml:"expenses"`
	Recurring   bool     `yaml:"recurring"`
	Completed   bool     `yaml:"completed"`
	Completions []string `yaml:"completions"`
	Exceptions  []string `yaml:"exceptions"`
	Remind      bool     `yaml:"remind"`
	Label       string   `yaml:"label"`
}

type seedEntry struct {
	Title  string `yaml:"title"`
	Date   string `yaml:"date"`
	Amount string `yaml:"amount"`
}

// NewFromFile builds a store from a YAML fixture. A missing path gives an
// empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	if err := s.LoadSeed(raw); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return s, nil
}

// LoadSeed adds every owner described by the YAML document.
func (s *Store) LoadSeed(raw []byte) error {
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return err
	}
	for owner, o := range f.Owners {
		data := OwnerData{Businesses: make([]core.Business, 0, len(o.Businesses))}
		for _, sb := range o.Businesses {
			data.Businesses = append(data.Businesses, sb.build())
		}
		s.Seed(owner, data)
		s.mu.Lock()
		s.profiles[owner] = reminder.Recipient{Email: o.Email, ChatID: o.ChatID}
		s.mu.Unlock()
	}
	return nil
}

func (sb seedBusiness) build() core.Business {
	b := core.NewBusiness(sb.Name)
	labelIDs := map[string]string{}
	for _, l := range sb.Labels {
		lbl := core.Label{ID: core.NewID(), Title: l.Title, Color: l.Color}
		labelIDs[l.Title] = lbl.ID
		b.Labels = append(b.Labels, lbl)
	}
	for _, sj := range sb.Jobs {
		b.Jobs = append(b.Jobs, sj.build(labelIDs))
	}
	for _, e := range sb.Incomes {
		d, _ := core.ParseDate(e.Date)
		b.OtherIncomes = append(b.OtherIncomes, core.OtherIncome{ID: core.NewID(), Title: e.Title, Date: d, Amount: core.ParseAmount(e.Amount)})
	}
	for _, e := range sb.Expenses {
		d, _ := core.ParseDate(e.Date)
		b.OtherExpenses = append(b.OtherExpenses, core.OtherExpense{ID: core.NewID(), Title: e.Title, Date: d, Amount: core.ParseAmount(e.Amount)})
	}
	return b
}

func (sj seedJob) build(labelIDs map[string]string) core.Job {
	d, _ := core.ParseDate(sj.Date)
	j := core.Job{
		ID:                core.NewID(),
		Title:             sj.Title,
		Description:       sj.Description,
		Category:          core.ParseCategory(sj.Category),
		Date:              d,
		GrossIncome:       core.ParseAmount(sj.Gross),
		Expenses:          core.ParseAmount(sj.Expenses),
		RemindForDeadline: sj.Remind,
		LabelID:           labelIDs[sj.Label],
		Schedule:          core.OneOff{Completed: sj.Completed},
	}
	if dl, err := core.ParseDeadline(sj.Deadline); err == nil {
		j.Deadline = &dl
	}
	if sj.Recurring {
		w := core.Weekly{Completions: core.DateSet{}, Exceptions: core.DateSet{}}
		for _, c := range sj.Completions {
			if cd, err := core.ParseDate(c); err == nil {
				w.Completions = w.Completions.With(cd)
			}
		}
		for _, e := range sj.Exceptions {
			if ed, err := core.ParseDate(e); err == nil {
				w.Exceptions = w.Exceptions.With(ed)
			}
		}
		j.Schedule = w
	}
	return j.Normalize()
}
