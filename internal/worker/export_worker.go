// Package worker exports expense changes from the database to the ledger
// spreadsheet. Messages arrive over AMQP; a periodic sweep of pending rows
// covers lost messages and worker downtime.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"proptrack/internal/amqp"
	"proptrack/internal/core"
	"proptrack/internal/sheets"
	"proptrack/internal/storage"
)

type ExportWorker struct {
	repo      storage.Repository
	ledger    sheets.LedgerWriter
	batchSize int
}

func NewExportWorker(repo storage.Repository, ledger sheets.LedgerWriter, batchSize int) *ExportWorker {
	return &ExportWorker{
		repo:      repo,
		ledger:    ledger,
		batchSize: batchSize,
	}
}

// HandleMessage processes a single ledger export message from AMQP.
func (w *ExportWorker) HandleMessage(ctx context.Context, msg *amqp.LedgerExportMessage) error {
	switch msg.Op {
	case amqp.OpUpsert:
		return w.handleUpsert(ctx, msg)
	case amqp.OpDelete:
		return w.handleDelete(ctx, msg)
	default:
		slog.WarnContext(ctx, "Unknown export operation, dropping message",
			"op", msg.Op, "id", msg.ID)
		return nil
	}
}

func (w *ExportWorker) handleUpsert(ctx context.Context, msg *amqp.LedgerExportMessage) error {
	expense, err := w.repo.GetExpenseByID(ctx, msg.ID)
	if err != nil {
		// The row may have been deleted before we got to it. The delete
		// message carries its own snapshot, so there is nothing to do.
		if isNotFound(err) {
			slog.InfoContext(ctx, "Expense gone before export, skipping", "id", msg.ID)
			return nil
		}
		return fmt.Errorf("get expense: %w", err)
	}

	return w.exportExpense(ctx, expense)
}

func (w *ExportWorker) handleDelete(ctx context.Context, msg *amqp.LedgerExportMessage) error {
	if msg.Snapshot == nil {
		slog.WarnContext(ctx, "Delete message without snapshot, dropping", "id", msg.ID)
		return nil
	}

	entry := sheets.LedgerEntry{
		ExpenseID:   msg.ID,
		PropertyID:  msg.Snapshot.PropertyID,
		Date:        msg.Snapshot.Date,
		AmountCents: msg.Snapshot.AmountCents,
		Category:    msg.Snapshot.Category,
		Description: msg.Snapshot.Description,
		Reversal:    true,
	}

	ref, err := w.ledger.Append(ctx, entry)
	if err != nil {
		return fmt.Errorf("append reversal: %w", err)
	}

	slog.InfoContext(ctx, "Reversal exported", "id", msg.ID, "row_ref", ref)
	return nil
}

func (w *ExportWorker) exportExpense(ctx context.Context, expense core.Expense) error {
	entry := sheets.LedgerEntry{
		ExpenseID:   expense.ID,
		PropertyID:  expense.PropertyID,
		Date:        expense.Date,
		AmountCents: expense.Amount.Cents,
		Category:    expense.CategoryName,
		Description: expense.Description,
	}

	ref, err := w.ledger.Append(ctx, entry)
	if err != nil {
		if markErr := w.repo.MarkExportError(ctx, expense.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error",
				"id", expense.ID, "error", markErr)
		}
		return fmt.Errorf("append ledger row: %w", err)
	}

	if err := w.repo.MarkExported(ctx, expense.ID); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}

	slog.InfoContext(ctx, "Expense exported", "id", expense.ID, "row_ref", ref)
	return nil
}

// ProcessPending exports expenses still marked pending. This is the backup
// path for lost AMQP messages.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	return w.processPendingBatch(ctx, w.batchSize)
}

// StartupCheck drains a larger pending batch at worker startup to recover
// from downtime.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	return w.processPendingBatch(ctx, w.batchSize*5)
}

func (w *ExportWorker) processPendingBatch(ctx context.Context, limit int) error {
	pending, err := w.repo.GetPendingExportExpenses(ctx, limit)
	if err != nil {
		return fmt.Errorf("get pending export expenses: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	successCount := 0
	errorCount := 0

	for _, p := range pending {
		expense, err := w.repo.GetExpenseByID(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get pending expense", "id", p.ID, "error", err)
			if err := w.repo.MarkExportError(ctx, p.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark export error", "id", p.ID, "error", err)
			}
			errorCount++
			continue
		}

		if err := w.exportExpense(ctx, expense); err != nil {
			slog.ErrorContext(ctx, "Failed to export pending expense", "id", p.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Pending export pass completed",
		"total", len(pending),
		"exported", successCount,
		"errors", errorCount)

	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
