package core

import (
	"errors"
	"strings"
	"time"
)

type (
	Money struct {
		Cents int64
	}

	User struct {
		ID           int64
		Username     string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}

	// Property is the root aggregate: it owns categories, expenses and
	// debtors and is scoped to exactly one user.
	Property struct {
		ID          int64
		Name        string
		Description string
		UserID      int64
		CreatedAt   time.Time
	}

	Category struct {
		ID         int64
		Name       string
		PropertyID int64
	}

	Expense struct {
		ID           int64
		Date         time.Time
		Amount       Money
		Description  string
		CategoryID   int64
		CategoryName string
		PropertyID   int64
		ReceiptPath  string
	}

	Debtor struct {
		ID         int64
		Name       string
		PropertyID int64
		Payments   []Payment
	}

	Payment struct {
		ID       int64
		Amount   Money
		Date     time.Time
		Notes    string
		DebtorID int64
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyName       = errors.New("empty name")
	ErrEmptyUsername   = errors.New("empty username")
	ErrEmptyPassword   = errors.New("empty password")
	ErrMissingCategory = errors.New("missing category")
	ErrDescriptionSize = errors.New("description too long (max 500 characters)")
	ErrNameSize        = errors.New("name too long (max 100 characters)")
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (p Property) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if len(p.Name) > 100 {
		return ErrNameSize
	}
	if len(p.Description) > 500 {
		return ErrDescriptionSize
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return ErrNameSize
	}
	return nil
}

func (e Expense) Validate() error {
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if len(e.Description) > 500 {
		return ErrDescriptionSize
	}
	if e.CategoryID == 0 {
		return ErrMissingCategory
	}
	return nil
}

func (d Debtor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyName
	}
	if len(d.Name) > 100 {
		return ErrNameSize
	}
	return nil
}

func (p Payment) Validate() error {
	if p.Date.IsZero() {
		return ErrInvalidDate
	}
	if err := p.Amount.Validate(); err != nil {
		return err
	}
	if len(p.Notes) > 500 {
		return ErrDescriptionSize
	}
	return nil
}

// TotalPaid sums all of a debtor's payments regardless of any report window.
// Debtor listings deliberately show all-time balances; only reports filter
// payments by date.
func (d Debtor) TotalPaid() Money {
	var cents int64
	for _, p := range d.Payments {
		cents += p.Amount.Cents
	}
	return Money{Cents: cents}
}
