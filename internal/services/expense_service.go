// Package services orchestrates expense writes across the database, the
// receipt store and the ledger export queue.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"proptrack/internal/amqp"
	"proptrack/internal/core"
	"proptrack/internal/storage"
	"proptrack/internal/uploads"
)

// ExportPublisher publishes ledger export messages. Nil publishers are
// tolerated: the worker's startup sweep picks up rows that were never
// announced.
type ExportPublisher interface {
	PublishExport(ctx context.Context, msg *amqp.LedgerExportMessage) error
}

// ExpenseService coordinates expense writes. The database is the source
// of truth; publish and file failures never fail the request.
type ExpenseService struct {
	repo      storage.Repository
	publisher ExportPublisher
	receipts  *uploads.Store
}

func NewExpenseService(repo storage.Repository, publisher ExportPublisher, receipts *uploads.Store) *ExpenseService {
	return &ExpenseService{
		repo:      repo,
		publisher: publisher,
		receipts:  receipts,
	}
}

// CreateExpense saves an expense and announces it to the export queue.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	created, err := s.repo.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.publish(ctx, amqp.NewUpsertMessage(created.ID, 1))
	return created, nil
}

// UpdateExpense saves changes to an expense, removing the previous
// receipt file when a new one replaced it.
func (s *ExpenseService) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	existing, err := s.repo.GetExpense(ctx, e.PropertyID, e.ID)
	if err != nil {
		return core.Expense{}, err
	}

	updated, err := s.repo.UpdateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}

	if existing.ReceiptPath != "" && existing.ReceiptPath != updated.ReceiptPath {
		if err := s.receipts.Remove(existing.ReceiptPath); err != nil {
			slog.WarnContext(ctx, "Failed to remove replaced receipt",
				"expense_id", e.ID, "file", existing.ReceiptPath, "error", err)
		}
	}

	s.publish(ctx, amqp.NewUpsertMessage(updated.ID, 0))
	return updated, nil
}

// DeleteExpense removes an expense, its receipt file, and announces a
// ledger reversal carrying a snapshot of the deleted row.
func (s *ExpenseService) DeleteExpense(ctx context.Context, propertyID, id int64) error {
	existing, err := s.repo.GetExpense(ctx, propertyID, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteExpense(ctx, propertyID, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	if existing.ReceiptPath != "" {
		if err := s.receipts.Remove(existing.ReceiptPath); err != nil {
			slog.WarnContext(ctx, "Failed to remove receipt of deleted expense",
				"expense_id", id, "file", existing.ReceiptPath, "error", err)
		}
	}

	s.publish(ctx, amqp.NewDeleteMessage(existing))
	return nil
}

func (s *ExpenseService) publish(ctx context.Context, msg *amqp.LedgerExportMessage) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Export publisher not available, skipping message",
			"op", msg.Op, "id", msg.ID)
		return
	}
	if err := s.publisher.PublishExport(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger export message",
			"op", msg.Op, "id", msg.ID, "error", err)
	}
}
