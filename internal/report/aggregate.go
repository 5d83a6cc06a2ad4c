package report

import (
	"proptrack/internal/core"
)

type (
	PropertyRef struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	Period struct {
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
	}

	Summary struct {
		TotalExpenses float64 `json:"totalExpenses"`
		TotalPayments float64 `json:"totalPayments"`
		NetBalance    float64 `json:"netBalance"`
		ExpenseCount  int     `json:"expenseCount"`
	}

	CategoryTotal struct {
		Category string  `json:"category"`
		Total    float64 `json:"total"`
		Count    int     `json:"count"`
	}

	DebtorBalance struct {
		Debtor       string  `json:"debtor"`
		TotalPaid    float64 `json:"totalPaid"`
		PaymentCount int     `json:"paymentCount"`
	}

	ExpenseLine struct {
		ID          int64   `json:"id"`
		Date        string  `json:"date"`
		Amount      float64 `json:"amount"`
		Category    string  `json:"category"`
		Description string  `json:"description,omitempty"`
	}

	MonthTotal struct {
		Month int     `json:"month"`
		Total float64 `json:"total"`
		Count int     `json:"count"`
	}

	Report struct {
		Property           PropertyRef     `json:"property"`
		Period             Period          `json:"period"`
		Summary            Summary         `json:"summary"`
		ExpensesByCategory []CategoryTotal `json:"expensesByCategory"`
		DebtorBalances     []DebtorBalance `json:"debtorBalances"`
		Expenses           []ExpenseLine   `json:"expenses"`
	}

	YearlyReport struct {
		Report
		Year             int          `json:"year"`
		MonthlyBreakdown []MonthTotal `json:"monthlyBreakdown"`
	}
)

// Build reduces a property's expenses and debtors to a report over the given
// window. It is pure: inputs are read-only snapshots and the computation has
// no side effects, so identical inputs always yield identical output.
//
// Expenses and each debtor's payments are filtered by the window
// independently. Sums accumulate in integer cents; the two-decimal floats in
// the result are exact conversions at the boundary. Category groups keep
// first-seen order. Every debtor appears in the balances, zero payments
// included.
func Build(property core.Property, expenses []core.Expense, debtors []core.Debtor, window Window) (Report, error) {
	if err := window.Validate(); err != nil {
		return Report{}, err
	}

	r := Report{
		Property: PropertyRef{ID: property.ID, Name: property.Name},
		Period:   Period{StartDate: window.StartLabel(), EndDate: window.EndLabel()},
		// Keep empty collections as [] rather than null in JSON.
		ExpensesByCategory: []CategoryTotal{},
		DebtorBalances:     []DebtorBalance{},
		Expenses:           []ExpenseLine{},
	}

	var totalExpenseCents int64
	// Explicit slice + index map keeps category groups in first-seen order.
	categoryIdx := make(map[string]int)
	categoryCents := []int64{}

	for _, e := range expenses {
		if !window.Contains(e.Date) {
			continue
		}
		totalExpenseCents += e.Amount.Cents
		r.Summary.ExpenseCount++

		i, ok := categoryIdx[e.CategoryName]
		if !ok {
			i = len(r.ExpensesByCategory)
			categoryIdx[e.CategoryName] = i
			r.ExpensesByCategory = append(r.ExpensesByCategory, CategoryTotal{Category: e.CategoryName})
			categoryCents = append(categoryCents, 0)
		}
		categoryCents[i] += e.Amount.Cents
		r.ExpensesByCategory[i].Count++

		r.Expenses = append(r.Expenses, ExpenseLine{
			ID:          e.ID,
			Date:        e.Date.Format("2006-01-02"),
			Amount:      e.Amount.Float(),
			Category:    e.CategoryName,
			Description: e.Description,
		})
	}
	for i, cents := range categoryCents {
		r.ExpensesByCategory[i].Total = core.Money{Cents: cents}.Float()
	}

	var totalPaymentCents int64
	for _, d := range debtors {
		balance := DebtorBalance{Debtor: d.Name}
		var paidCents int64
		for _, p := range d.Payments {
			if !window.Contains(p.Date) {
				continue
			}
			paidCents += p.Amount.Cents
			balance.PaymentCount++
		}
		balance.TotalPaid = core.Money{Cents: paidCents}.Float()
		totalPaymentCents += paidCents
		r.DebtorBalances = append(r.DebtorBalances, balance)
	}

	r.Summary.TotalExpenses = core.Money{Cents: totalExpenseCents}.Float()
	r.Summary.TotalPayments = core.Money{Cents: totalPaymentCents}.Float()
	r.Summary.NetBalance = core.Money{Cents: totalExpenseCents - totalPaymentCents}.Float()

	return r, nil
}

// BuildYearly builds the yearly variant: the window is the full calendar
// year (constructed here, which is what guarantees the monthly breakdown's
// invariant) and the result carries exactly 12 month entries in order, zero
// months included.
func BuildYearly(property core.Property, expenses []core.Expense, debtors []core.Debtor, year int) (YearlyReport, error) {
	window := YearWindow(year)

	base, err := Build(property, expenses, debtors, window)
	if err != nil {
		return YearlyReport{}, err
	}

	yr := YearlyReport{
		Report:           base,
		Year:             year,
		MonthlyBreakdown: make([]MonthTotal, 12),
	}
	monthCents := make([]int64, 12)
	for i := range yr.MonthlyBreakdown {
		yr.MonthlyBreakdown[i].Month = i + 1
	}
	for _, e := range expenses {
		if !window.Contains(e.Date) {
			continue
		}
		m := int(e.Date.Month()) - 1
		monthCents[m] += e.Amount.Cents
		yr.MonthlyBreakdown[m].Count++
	}
	for i, cents := range monthCents {
		yr.MonthlyBreakdown[i].Total = core.Money{Cents: cents}.Float()
	}

	return yr, nil
}
