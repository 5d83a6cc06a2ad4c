package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"proptrack/internal/core"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func expense(id int64, t time.Time, cents int64, category string) core.Expense {
	return core.Expense{ID: id, Date: t, Amount: core.Money{Cents: cents}, CategoryName: category}
}

func TestBuildFiltersAndGroups(t *testing.T) {
	property := core.Property{ID: 7, Name: "Via Roma 1"}
	expenses := []core.Expense{
		expense(1, day(2024, time.January, 15), 10000, "Utilities"),
		expense(2, day(2024, time.June, 15), 20000, "Utilities"),
		expense(3, day(2023, time.December, 1), 5000, "Repairs"),
	}

	r, err := Build(property, expenses, nil, YearWindow(2024))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.Summary.TotalExpenses != 300.00 {
		t.Fatalf("totalExpenses = %v, want 300.00", r.Summary.TotalExpenses)
	}
	if r.Summary.ExpenseCount != 2 {
		t.Fatalf("expenseCount = %d, want 2", r.Summary.ExpenseCount)
	}
	if len(r.ExpensesByCategory) != 1 {
		t.Fatalf("categories = %d, want 1", len(r.ExpensesByCategory))
	}
	cat := r.ExpensesByCategory[0]
	if cat.Category != "Utilities" || cat.Total != 300.00 || cat.Count != 2 {
		t.Fatalf("unexpected category total: %+v", cat)
	}
	if len(r.Expenses) != 2 {
		t.Fatalf("expense lines = %d, want 2", len(r.Expenses))
	}
	if r.Expenses[0].Date != "2024-01-15" {
		t.Fatalf("first line date = %q", r.Expenses[0].Date)
	}
	if r.Property.ID != 7 || r.Property.Name != "Via Roma 1" {
		t.Fatalf("unexpected property ref: %+v", r.Property)
	}
	if r.Period.StartDate != "2024-01-01" || r.Period.EndDate != "2024-12-31" {
		t.Fatalf("unexpected period: %+v", r.Period)
	}
}

func TestBuildCategoryOrderIsFirstSeen(t *testing.T) {
	expenses := []core.Expense{
		expense(1, day(2024, time.March, 1), 100, "Zeta"),
		expense(2, day(2024, time.March, 2), 100, "Alpha"),
		expense(3, day(2024, time.March, 3), 100, "Zeta"),
	}

	r, err := Build(core.Property{ID: 1}, expenses, nil, YearWindow(2024))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.ExpensesByCategory) != 2 {
		t.Fatalf("categories = %d, want 2", len(r.ExpensesByCategory))
	}
	if r.ExpensesByCategory[0].Category != "Zeta" || r.ExpensesByCategory[1].Category != "Alpha" {
		t.Fatalf("unexpected order: %+v", r.ExpensesByCategory)
	}
	if r.ExpensesByCategory[0].Total != 2.00 || r.ExpensesByCategory[0].Count != 2 {
		t.Fatalf("unexpected Zeta group: %+v", r.ExpensesByCategory[0])
	}
}

func TestBuildDebtorBalances(t *testing.T) {
	debtors := []core.Debtor{
		{Name: "Mario", Payments: []core.Payment{
			{Amount: core.Money{Cents: 5000}, Date: day(2024, time.February, 1)},
			{Amount: core.Money{Cents: 2500}, Date: day(2023, time.February, 1)}, // outside window
		}},
		{Name: "Luigi"}, // no payments at all
	}
	expenses := []core.Expense{
		expense(1, day(2024, time.May, 1), 10000, "Rent"),
	}

	r, err := Build(core.Property{ID: 1}, expenses, debtors, YearWindow(2024))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(r.DebtorBalances) != 2 {
		t.Fatalf("balances = %d, want one entry per debtor", len(r.DebtorBalances))
	}
	mario := r.DebtorBalances[0]
	if mario.Debtor != "Mario" || mario.TotalPaid != 50.00 || mario.PaymentCount != 1 {
		t.Fatalf("unexpected balance: %+v", mario)
	}
	luigi := r.DebtorBalances[1]
	if luigi.Debtor != "Luigi" || luigi.TotalPaid != 0 || luigi.PaymentCount != 0 {
		t.Fatalf("zero-payment debtor must still appear: %+v", luigi)
	}

	if r.Summary.TotalPayments != 50.00 {
		t.Fatalf("totalPayments = %v, want 50.00", r.Summary.TotalPayments)
	}
	if r.Summary.NetBalance != 50.00 {
		t.Fatalf("netBalance = %v, want expenses minus payments = 50.00", r.Summary.NetBalance)
	}
}

func TestBuildEmptyProperty(t *testing.T) {
	r, err := Build(core.Property{ID: 3, Name: "Empty"}, nil, nil, Window{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.Summary.TotalExpenses != 0 || r.Summary.TotalPayments != 0 || r.Summary.NetBalance != 0 || r.Summary.ExpenseCount != 0 {
		t.Fatalf("expected zero summary, got %+v", r.Summary)
	}
	if r.Period.StartDate != "Beginning" || r.Period.EndDate != "Now" {
		t.Fatalf("unexpected period labels: %+v", r.Period)
	}

	// Empty collections must serialize as [], never null.
	buf, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(buf), "null") {
		t.Fatalf("report JSON contains null collections: %s", buf)
	}
}

func TestBuildInclusiveBounds(t *testing.T) {
	w, err := ResolveWindow("2024-06-01", "2024-06-30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expenses := []core.Expense{
		expense(1, day(2024, time.June, 1), 100, "A"),
		expense(2, time.Date(2024, time.June, 30, 23, 59, 59, 0, time.UTC), 100, "A"),
		expense(3, day(2024, time.May, 31), 100, "A"),
		expense(4, day(2024, time.July, 1), 100, "A"),
	}

	r, err := Build(core.Property{ID: 1}, expenses, nil, w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Summary.ExpenseCount != 2 {
		t.Fatalf("expenseCount = %d, both boundary expenses must count", r.Summary.ExpenseCount)
	}
}

func TestBuildRejectsInvalidWindow(t *testing.T) {
	start := day(2024, time.December, 1)
	end := day(2024, time.January, 1)
	_, err := Build(core.Property{ID: 1}, nil, nil, Window{Start: &start, End: &end})
	if err != ErrInvalidWindow {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestBuildYearly(t *testing.T) {
	expenses := []core.Expense{
		expense(1, day(2024, time.January, 10), 10000, "Rent"),
		expense(2, day(2023, time.January, 10), 9999, "Rent"), // other year, ignored
	}

	yr, err := BuildYearly(core.Property{ID: 1, Name: "Casa"}, expenses, nil, 2024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if yr.Year != 2024 {
		t.Fatalf("year = %d", yr.Year)
	}
	if len(yr.MonthlyBreakdown) != 12 {
		t.Fatalf("breakdown entries = %d, must always be 12", len(yr.MonthlyBreakdown))
	}
	jan := yr.MonthlyBreakdown[0]
	if jan.Month != 1 || jan.Total != 100.00 || jan.Count != 1 {
		t.Fatalf("unexpected January entry: %+v", jan)
	}
	for i, m := range yr.MonthlyBreakdown[1:] {
		if m.Month != i+2 || m.Total != 0 || m.Count != 0 {
			t.Fatalf("month %d must be zeroed: %+v", i+2, m)
		}
	}
	if yr.Summary.TotalExpenses != 100.00 || yr.Summary.ExpenseCount != 1 {
		t.Fatalf("unexpected summary: %+v", yr.Summary)
	}
}
