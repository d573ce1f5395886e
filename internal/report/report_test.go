package report

import (
	"testing"

	"usaha/internal/core"
)

func done(id string, d core.Date, gross, exp int64) core.Job {
	return core.Job{ID: id, Title: id, Date: d, GrossIncome: core.AmountFromInt(gross), Expenses: core.AmountFromInt(exp), Schedule: core.OneOff{Completed: true}}
}

func TestBuildOnlyRealized(t *testing.T) {
	open := done("open", core.NewDate(2024, 1, 5), 999, 0)
	open.Schedule = core.OneOff{}
	rec := core.Job{
		ID: "r", Title: "r", Date: core.NewDate(2024, 1, 1),
		GrossIncome: core.AmountFromInt(100), Expenses: core.AmountFromInt(10),
		Schedule: core.Weekly{Completions: core.NewDateSet(core.NewDate(2024, 1, 1), core.NewDate(2024, 2, 5))},
	}
	jobs := []core.Job{open, rec, done("a", core.NewDate(2024, 1, 20), 50, 5)}
	incomes := []core.OtherIncome{{ID: "i", Title: "tip", Date: core.NewDate(2024, 2, 1), Amount: core.AmountFromInt(7)}}
	expenses := []core.OtherExpense{{ID: "e", Title: "fuel", Date: core.NewDate(2024, 2, 2), Amount: core.AmountFromInt(3)}}

	rows := Build(jobs, incomes, expenses, DefaultFilter())
	if len(rows) != 2 {
		t.Fatalf("rows = %+v", rows)
	}
	jan, feb := rows[0], rows[1]
	if jan.Key != "2024-01" || jan.Gross.String() != "150" || jan.Expenses.String() != "15" || jan.Net.String() != "135" {
		t.Fatalf("jan = %+v", jan)
	}
	if feb.Key != "2024-02" || feb.Gross.String() != "107" || feb.Expenses.String() != "13" || feb.Net.String() != "94" {
		t.Fatalf("feb = %+v", feb)
	}
}

func TestBuildGranularityKeys(t *testing.T) {
	jobs := []core.Job{
		done("a", core.NewDate(2024, 1, 2), 1, 0),
		done("b", core.NewDate(2023, 12, 31), 1, 0),
		done("c", core.NewDate(2024, 1, 2), 1, 0),
	}
	cases := []struct {
		g    Granularity
		want []string
	}{
		{Daily, []string{"2023-12-31", "2024-01-02"}},
		{Monthly, []string{"2023-12", "2024-01"}},
		{Yearly, []string{"2023", "2024"}},
	}
	for _, tc := range cases {
		t.Run(string(tc.g), func(t *testing.T) {
			f := DefaultFilter()
			f.Granularity = tc.g
			rows := Build(jobs, nil, nil, f)
			if len(rows) != len(tc.want) {
				t.Fatalf("rows = %+v", rows)
			}
			for i, k := range tc.want {
				if rows[i].Key != k {
					t.Fatalf("row %d key = %s, want %s", i, rows[i].Key, k)
				}
			}
		})
	}
}

func TestBuildFilters(t *testing.T) {
	jobs := []core.Job{
		done("a", core.NewDate(2023, 3, 1), 10, 0),
		done("b", core.NewDate(2024, 3, 1), 20, 0),
		done("c", core.NewDate(2024, 7, 1), 40, 0),
	}

	f := Filter{Granularity: Monthly, StartMonth: 1, EndMonth: 6, Year: "2024"}
	rows := Build(jobs, nil, nil, f)
	if len(rows) != 1 || rows[0].Key != "2024-03" {
		t.Fatalf("rows = %+v", rows)
	}

	f = Filter{Granularity: Yearly, StartMonth: 3, EndMonth: 3, Year: AllYears}
	if got := Totals(Build(jobs, nil, nil, f)); got.Gross.String() != "30" {
		t.Fatalf("total gross = %s", got.Gross)
	}
}

func TestBuildMisorderedMonthsIsEmpty(t *testing.T) {
	jobs := []core.Job{
		done("a", core.NewDate(2024, 1, 1), 1, 0),
		done("b", core.NewDate(2024, 4, 1), 1, 0),
		done("c", core.NewDate(2024, 8, 1), 1, 0),
		done("d", core.NewDate(2024, 12, 1), 1, 0),
	}
	rows := Build(jobs, nil, nil, Filter{Granularity: Monthly, StartMonth: 6, EndMonth: 3, Year: AllYears})
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %+v", rows)
	}
}

func TestTotalsMatchRealizedGross(t *testing.T) {
	var jobs []core.Job
	want := int64(0)
	for m := 1; m <= 12; m++ {
		jobs = append(jobs, done("j", core.NewDate(2024, m, 10), int64(m*100), 1))
		if m >= 4 && m <= 9 {
			want += int64(m * 100)
		}
	}
	rows := Build(jobs, nil, nil, Filter{Granularity: Daily, StartMonth: 4, EndMonth: 9, Year: "2024"})
	if got := Totals(rows).Gross; !got.Equal(core.AmountFromInt(want)) {
		t.Fatalf("total gross = %s, want %d", got, want)
	}
	for _, r := range rows {
		if r.Key < "2024-04" || r.Key >= "2024-10" {
			t.Fatalf("row outside range: %s", r.Key)
		}
	}
}

func TestAvailableYears(t *testing.T) {
	open := done("open", core.NewDate(2021, 1, 1), 0, 0)
	open.Schedule = core.OneOff{}
	got := AvailableYears(
		[]core.Job{open, done("a", core.NewDate(2024, 1, 1), 0, 0)},
		[]core.OtherIncome{{Date: core.NewDate(2023, 5, 5)}},
		[]core.OtherExpense{{Date: core.NewDate(2024, 7, 7)}, {}},
	)
	want := []string{"2024", "2023", "2021"}
	if len(got) != len(want) {
		t.Fatalf("years = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("years = %v, want %v", got, want)
		}
	}
}

func TestReconcileMonths(t *testing.T) {
	cases := []struct {
		start, end int
		changed    Bound
		ws, we     int
	}{
		{3, 6, StartBound, 3, 6},
		{8, 6, StartBound, 8, 8},
		{6, 3, EndBound, 3, 3},
		{0, 13, EndBound, 1, 12},
	}
	for _, tc := range cases {
		s, e := ReconcileMonths(tc.start, tc.end, tc.changed)
		if s != tc.ws || e != tc.we {
			t.Errorf("ReconcileMonths(%d,%d) = %d,%d want %d,%d", tc.start, tc.end, s, e, tc.ws, tc.we)
		}
	}
}

func TestParseHelpers(t *testing.T) {
	if ParseGranularity("DAILY") != Daily || ParseGranularity("") != Monthly {
		t.Fatal("ParseGranularity")
	}
	if ParseMonth("13", 1) != 1 || ParseMonth("7", 1) != 7 {
		t.Fatal("ParseMonth")
	}
}
