package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"proptrack/internal/core"
	"proptrack/internal/storage"
)

func (r *testRepo) CreateDebtor(_ context.Context, d core.Debtor) (core.Debtor, error) {
	for _, existing := range r.debtors {
		if existing.PropertyID == d.PropertyID && existing.Name == d.Name {
			return core.Debtor{}, storage.ErrDuplicate
		}
	}
	d.ID = r.id()
	r.debtors[d.ID] = d
	return d, nil
}

func (r *testRepo) GetDebtorForUser(_ context.Context, userID, debtorID int64) (core.Debtor, error) {
	d, ok := r.debtors[debtorID]
	if !ok {
		return core.Debtor{}, storage.ErrNotFound
	}
	p, ok := r.properties[d.PropertyID]
	if !ok || p.UserID != userID {
		return core.Debtor{}, storage.ErrNotFound
	}
	return d, nil
}

func (r *testRepo) CreatePayment(_ context.Context, p core.Payment) (core.Payment, error) {
	p.ID = r.id()
	d := r.debtors[p.DebtorID]
	d.Payments = append(d.Payments, p)
	r.debtors[p.DebtorID] = d
	return p, nil
}

func TestCreateDebtor(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/properties/1/debtors", f.userToken,
		`{"name":"Mario Rossi"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID        int64         `json:"id"`
		Name      string        `json:"name"`
		TotalPaid float64       `json:"totalPaid"`
		Payments  []paymentItem `json:"payments"`
	}
	decodeBody(t, rec, &created)
	if created.Name != "Mario Rossi" || created.TotalPaid != 0 {
		t.Fatalf("unexpected debtor: %+v", created)
	}
	if created.Payments == nil {
		t.Fatal("payments must serialize as [], never null")
	}

	rec = f.do(t, http.MethodPost, "/api/properties/1/debtors", f.userToken,
		`{"name":"Mario Rossi"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate status = %d, want 400", rec.Code)
	}
}

func TestPaymentsOwnership(t *testing.T) {
	f := newFixture(t)
	f.repo.debtors[5] = core.Debtor{ID: 5, Name: "Mario Rossi", PropertyID: 1}

	rec := f.do(t, http.MethodGet, "/api/debtors/5/payments", f.userToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("owner status = %d, body %s", rec.Code, rec.Body.String())
	}

	// A debtor under someone else's property is a plain 404.
	rec = f.do(t, http.MethodGet, "/api/debtors/5/payments", f.otherToken, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign status = %d, want 404", rec.Code)
	}
}

func TestCreatePayment(t *testing.T) {
	f := newFixture(t)
	f.repo.debtors[5] = core.Debtor{ID: 5, Name: "Mario Rossi", PropertyID: 1}

	rec := f.do(t, http.MethodPost, "/api/debtors/5/payments", f.userToken,
		`{"amount":50.005,"date":"2024-02-01","notes":"february share"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created paymentItem
	decodeBody(t, rec, &created)
	// Amounts round half up at the third decimal.
	if created.Amount != 50.01 {
		t.Fatalf("amount = %v, want 50.01", created.Amount)
	}
	if created.Date != "2024-02-01" || created.Notes != "february share" {
		t.Fatalf("unexpected payment: %+v", created)
	}

	rec = f.do(t, http.MethodPost, "/api/debtors/5/payments", f.userToken,
		`{"amount":0,"date":"2024-02-01"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("zero amount status = %d, want 400", rec.Code)
	}
}

func TestDebtorListingIsUnwindowed(t *testing.T) {
	f := newFixture(t)
	f.repo.debtors[5] = core.Debtor{
		ID: 5, Name: "Mario Rossi", PropertyID: 1,
		Payments: []core.Payment{
			{ID: 1, DebtorID: 5, Amount: core.Money{Cents: 2000},
				Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
			{ID: 2, DebtorID: 5, Amount: core.Money{Cents: 3000},
				Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
	}

	rec := f.do(t, http.MethodGet, "/api/properties/1/debtors", f.userToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var items []struct {
		Name      string  `json:"name"`
		TotalPaid float64 `json:"totalPaid"`
	}
	decodeBody(t, rec, &items)
	if len(items) != 1 {
		t.Fatalf("debtors = %d, want 1", len(items))
	}
	// Listings always show the all-time total.
	if items[0].TotalPaid != 50.00 {
		t.Fatalf("totalPaid = %v, want 50.00", items[0].TotalPaid)
	}
}
