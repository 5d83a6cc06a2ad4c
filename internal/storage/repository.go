// Package storage persists the proptrack schema (users, properties,
// categories, expenses, debtors, payments) and provides ownership-scoped
// queries. Two implementations exist: SQLite (default) and Postgres.
package storage

import (
	"context"
	"errors"
	"time"

	"proptrack/internal/core"
)

var (
	// ErrNotFound covers both missing rows and rows owned by another user:
	// foreign resources are indistinguishable from absent ones.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned on unique-constraint violations
	// (category/debtor names are unique per property).
	ErrDuplicate = errors.New("already exists")
)

type (
	// PropertyWithCounts is the listing shape: the property plus row counts
	// of its children.
	PropertyWithCounts struct {
		core.Property
		ExpenseCount  int
		CategoryCount int
		DebtorCount   int
	}

	// PropertyDetail is the single-property shape: categories and debtors
	// (with payments) fully loaded.
	PropertyDetail struct {
		core.Property
		Categories   []core.Category
		Debtors      []core.Debtor
		ExpenseCount int
	}

	CategoryWithCount struct {
		core.Category
		ExpenseCount int
	}

	// ExpenseFilter narrows expense listings. Nil bounds are unbounded;
	// bounds are inclusive. Zero CategoryID means all categories.
	ExpenseFilter struct {
		Start      *time.Time
		End        *time.Time
		CategoryID int64
		Ascending  bool
	}

	// PendingExport identifies an expense row the worker still has to push
	// to the ledger.
	PendingExport struct {
		ID        int64
		Version   int64
		CreatedAt time.Time
	}
)

// Repository is the persistence port. Every method that takes a userID
// enforces ownership and reports foreign rows as ErrNotFound.
type Repository interface {
	// Users
	CreateUser(ctx context.Context, username, email, passwordHash string) (core.User, error)
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
	GetUserByID(ctx context.Context, id int64) (core.User, error)

	// Properties
	ListProperties(ctx context.Context, userID int64) ([]PropertyWithCounts, error)
	GetProperty(ctx context.Context, userID, id int64) (core.Property, error)
	GetPropertyDetail(ctx context.Context, userID, id int64) (PropertyDetail, error)
	CreateProperty(ctx context.Context, p core.Property) (core.Property, error)
	UpdateProperty(ctx context.Context, p core.Property) (core.Property, error)
	DeleteProperty(ctx context.Context, userID, id int64) error

	// Categories (propertyID is assumed already ownership-checked)
	ListCategories(ctx context.Context, propertyID int64) ([]CategoryWithCount, error)
	GetCategory(ctx context.Context, propertyID, id int64) (core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
	DeleteCategory(ctx context.Context, propertyID, id int64) error

	// Expenses
	ListExpenses(ctx context.Context, propertyID int64, f ExpenseFilter) ([]core.Expense, error)
	GetExpense(ctx context.Context, propertyID, id int64) (core.Expense, error)
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	DeleteExpense(ctx context.Context, propertyID, id int64) error

	// Debtors
	ListDebtors(ctx context.Context, propertyID int64) ([]core.Debtor, error)
	GetDebtor(ctx context.Context, propertyID, id int64) (core.Debtor, error)
	GetDebtorForUser(ctx context.Context, userID, debtorID int64) (core.Debtor, error)
	CreateDebtor(ctx context.Context, d core.Debtor) (core.Debtor, error)
	UpdateDebtor(ctx context.Context, d core.Debtor) (core.Debtor, error)
	DeleteDebtor(ctx context.Context, propertyID, id int64) error

	// Payments (ownership resolved through debtor -> property -> user)
	ListPayments(ctx context.Context, debtorID int64) ([]core.Payment, error)
	GetPaymentForUser(ctx context.Context, userID, paymentID int64) (core.Payment, error)
	CreatePayment(ctx context.Context, p core.Payment) (core.Payment, error)
	UpdatePayment(ctx context.Context, p core.Payment) (core.Payment, error)
	DeletePayment(ctx context.Context, userID, paymentID int64) error

	// Ledger export queue (worker side, unscoped)
	GetExpenseByID(ctx context.Context, id int64) (core.Expense, error)
	GetPendingExportExpenses(ctx context.Context, limit int) ([]PendingExport, error)
	MarkExported(ctx context.Context, id int64) error
	MarkExportError(ctx context.Context, id int64) error

	Close() error
}
