// Package report buckets realized transactions into reporting periods.
package report

import (
	"sort"
	"strconv"
	"strings"

	"usaha/internal/core"
)

// Granularity selects the bucket size.
type Granularity string

const (
	Daily   Granularity = "daily"
	Monthly Granularity = "monthly"
	Yearly  Granularity = "yearly"
)

// AllYears disables the year filter.
const AllYears = "all"

// ParseGranularity defaults to monthly.
func ParseGranularity(s string) Granularity {
	switch Granularity(strings.ToLower(strings.TrimSpace(s))) {
	case Daily:
		return Daily
	case Yearly:
		return Yearly
	default:
		return Monthly
	}
}

// Filter narrows the transaction stream before bucketing. StartMonth and
// EndMonth are 1-12 and inclusive.
type Filter struct {
	Granularity Granularity `json:"granularity"`
	StartMonth  int         `json:"startMonth"`
	EndMonth    int         `json:"endMonth"`
	Year        string      `json:"year"`
}

// DefaultFilter covers every month of every year, bucketed monthly.
func DefaultFilter() Filter {
	return Filter{Granularity: Monthly, StartMonth: 1, EndMonth: 12, Year: AllYears}
}

// Row is one bucket of the report.
type Row struct {
	Key      string      `json:"name"`
	Gross    core.Amount `json:"gross"`
	Net      core.Amount `json:"net"`
	Expenses core.Amount `json:"expenses"`
}

type entry struct {
	date     core.Date
	gross    core.Amount
	expenses core.Amount
}

// Realized lists every realized transaction: one per completed occurrence,
// one per other income and one per other expense.
func realized(jobs []core.Job, incomes []core.OtherIncome, expenses []core.OtherExpense) []entry {
	var out []entry
	for _, j := range jobs {
		switch s := j.Sched().(type) {
		case core.Weekly:
			for _, d := range s.Completions.Dates() {
				out = append(out, entry{date: d, gross: j.GrossIncome, expenses: j.Expenses})
			}
		case core.OneOff:
			if s.Completed && !j.Date.IsZero() {
				out = append(out, entry{date: j.Date, gross: j.GrossIncome, expenses: j.Expenses})
			}
		}
	}
	for _, in := range incomes {
		if !in.Date.IsZero() {
			out = append(out, entry{date: in.Date, gross: in.Amount})
		}
	}
	for _, ex := range expenses {
		if !ex.Date.IsZero() {
			out = append(out, entry{date: ex.Date, expenses: ex.Amount})
		}
	}
	return out
}

func (f Filter) keep(d core.Date) bool {
	if f.StartMonth > f.EndMonth {
		return false
	}
	if f.Year != "" && f.Year != AllYears && d.YearKey() != f.Year {
		return false
	}
	m := d.Month()
	return m >= f.StartMonth && m <= f.EndMonth
}

func (g Granularity) key(d core.Date) string {
	switch g {
	case Daily:
		return d.String()
	case Yearly:
		return d.YearKey()
	default:
		return d.MonthKey()
	}
}

// Build sums the realized transactions per bucket. Rows come back sorted
// by key, which is chronological because keys are zero padded.
func Build(jobs []core.Job, incomes []core.OtherIncome, expenses []core.OtherExpense, f Filter) []Row {
	buckets := make(map[string]*Row)
	for _, e := range realized(jobs, incomes, expenses) {
		if !f.keep(e.date) {
			continue
		}
		k := f.Granularity.key(e.date)
		row, ok := buckets[k]
		if !ok {
			row = &Row{Key: k}
			buckets[k] = row
		}
		row.Gross = row.Gross.Add(e.gross)
		row.Expenses = row.Expenses.Add(e.expenses)
	}

	rows := make([]Row, 0, len(buckets))
	for _, r := range buckets {
		r.Net = r.Gross.Sub(r.Expenses)
		rows = append(rows, *r)
	}
	sort.Slice(rows, func(a, b int) bool { return rows[a].Key < rows[b].Key })
	return rows
}

// BuildForBusiness runs Build over a business's collections.
func BuildForBusiness(b core.Business, f Filter) []Row {
	return Build(b.Jobs, b.OtherIncomes, b.OtherExpenses, f)
}

// Totals sums rows into a single row keyed "total".
func Totals(rows []Row) Row {
	t := Row{Key: "total"}
	for _, r := range rows {
		t.Gross = t.Gross.Add(r.Gross)
		t.Expenses = t.Expenses.Add(r.Expenses)
	}
	t.Net = t.Gross.Sub(t.Expenses)
	return t
}

// AvailableYears lists every year that has a dated record, newest first.
// Uncompleted jobs count too so the filter can offer their years.
func AvailableYears(jobs []core.Job, incomes []core.OtherIncome, expenses []core.OtherExpense) []string {
	seen := map[string]struct{}{}
	add := func(d core.Date) {
		if !d.IsZero() {
			seen[d.YearKey()] = struct{}{}
		}
	}
	for _, j := range jobs {
		add(j.Date)
	}
	for _, in := range incomes {
		add(in.Date)
	}
	for _, ex := range expenses {
		add(ex.Date)
	}
	years := make([]string, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(years)))
	return years
}

// Bound names which end of a month range the user just moved.
type Bound int

const (
	StartBound Bound = iota
	EndBound
)

// ReconcileMonths keeps start <= end after one bound changed by dragging the
// other bound along. Values are clamped to 1-12.
func ReconcileMonths(start, end int, changed Bound) (int, int) {
	start, end = clampMonth(start), clampMonth(end)
	if start <= end {
		return start, end
	}
	if changed == StartBound {
		return start, start
	}
	return end, end
}

func clampMonth(m int) int {
	switch {
	case m < 1:
		return 1
	case m > 12:
		return 12
	default:
		return m
	}
}

// ParseMonth reads a 1-12 month, falling back to def.
func ParseMonth(s string, def int) int {
	m, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || m < 1 || m > 12 {
		return def
	}
	return m
}
