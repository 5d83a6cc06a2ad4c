package core

import (
	"strings"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: -50}).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}

func TestPropertyValidate(t *testing.T) {
	good := Property{Name: "Via Roma 1", Description: "apartment", UserID: 1}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Property{
		{Name: ""},
		{Name: "   "},
		{Name: strings.Repeat("x", 101)},
		{Name: "ok", Description: strings.Repeat("x", 501)},
	}
	for i, p := range bads {
		if err := p.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Date:       date(2025, 1, 1),
		Amount:     Money{Cents: 100},
		CategoryID: 1,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Expense{
		{Date: time.Time{}, Amount: Money{Cents: 1}, CategoryID: 1}, // zero date
		{Date: date(2025, 1, 1), Amount: Money{Cents: 0}, CategoryID: 1},
		{Date: date(2025, 1, 1), Amount: Money{Cents: 1}, CategoryID: 0},
		{Date: date(2025, 1, 1), Amount: Money{Cents: 1}, CategoryID: 1, Description: strings.Repeat("x", 501)},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestPaymentValidate(t *testing.T) {
	good := Payment{Date: date(2025, 3, 1), Amount: Money{Cents: 5000}, DebtorID: 1}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Payment{
		{Date: time.Time{}, Amount: Money{Cents: 1}},
		{Date: date(2025, 3, 1), Amount: Money{Cents: 0}},
		{Date: date(2025, 3, 1), Amount: Money{Cents: 1}, Notes: strings.Repeat("x", 501)},
	}
	for i, p := range bads {
		if err := p.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDebtorTotalPaid(t *testing.T) {
	d := Debtor{
		Name: "Rossi",
		Payments: []Payment{
			{Amount: Money{Cents: 1000}, Date: date(2020, 1, 1)},
			{Amount: Money{Cents: 2500}, Date: date(2025, 6, 15)},
		},
	}
	if got := d.TotalPaid().Cents; got != 3500 {
		t.Fatalf("TotalPaid = %d, want 3500", got)
	}

	empty := Debtor{Name: "Bianchi"}
	if got := empty.TotalPaid().Cents; got != 0 {
		t.Fatalf("TotalPaid (no payments) = %d, want 0", got)
	}
}
