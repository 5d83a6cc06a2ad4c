package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"proptrack/internal/amqp"
	"proptrack/internal/core"
	"proptrack/internal/sheets"
	"proptrack/internal/sheets/memory"
	"proptrack/internal/storage"
)

// stubRepo implements only the Repository methods the worker touches.
type stubRepo struct {
	storage.Repository

	expenses map[int64]core.Expense
	pending  []storage.PendingExport

	exported    []int64
	exportErrs  []int64
	pendingErr  error
	getByIDErr  error
	gotLimit    int
}

func newStubRepo() *stubRepo {
	return &stubRepo{expenses: make(map[int64]core.Expense)}
}

func (r *stubRepo) GetExpenseByID(_ context.Context, id int64) (core.Expense, error) {
	if r.getByIDErr != nil {
		return core.Expense{}, r.getByIDErr
	}
	e, ok := r.expenses[id]
	if !ok {
		return core.Expense{}, storage.ErrNotFound
	}
	return e, nil
}

func (r *stubRepo) GetPendingExportExpenses(_ context.Context, limit int) ([]storage.PendingExport, error) {
	r.gotLimit = limit
	if r.pendingErr != nil {
		return nil, r.pendingErr
	}
	if len(r.pending) > limit {
		return r.pending[:limit], nil
	}
	return r.pending, nil
}

func (r *stubRepo) MarkExported(_ context.Context, id int64) error {
	r.exported = append(r.exported, id)
	return nil
}

func (r *stubRepo) MarkExportError(_ context.Context, id int64) error {
	r.exportErrs = append(r.exportErrs, id)
	return nil
}

// failingLedger rejects every append.
type failingLedger struct{}

func (failingLedger) Append(context.Context, sheets.LedgerEntry) (string, error) {
	return "", errors.New("sheet unavailable")
}

func testExpense(id int64) core.Expense {
	return core.Expense{
		ID:           id,
		PropertyID:   1,
		Date:         time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Amount:       core.Money{Cents: 7500},
		CategoryName: "Utilities",
	}
}

func TestHandleMessageUpsert(t *testing.T) {
	repo := newStubRepo()
	repo.expenses[5] = testExpense(5)
	ledger := memory.New()
	w := NewExportWorker(repo, ledger, 10)

	if err := w.HandleMessage(context.Background(), amqp.NewUpsertMessage(5, 1)); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	entries := ledger.Entries()
	if len(entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(entries))
	}
	entry := entries[0]
	if entry.ExpenseID != 5 || entry.AmountCents != 7500 || entry.Category != "Utilities" || entry.Reversal {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if len(repo.exported) != 1 || repo.exported[0] != 5 {
		t.Fatalf("expense must be marked exported, got %v", repo.exported)
	}
}

func TestHandleMessageUpsertRowGone(t *testing.T) {
	repo := newStubRepo()
	ledger := memory.New()
	w := NewExportWorker(repo, ledger, 10)

	// The row was deleted before the upsert was processed. The delete
	// message carries its own snapshot, so this one is just dropped.
	if err := w.HandleMessage(context.Background(), amqp.NewUpsertMessage(99, 1)); err != nil {
		t.Fatalf("gone row must not fail the message: %v", err)
	}
	if len(ledger.Entries()) != 0 {
		t.Fatal("nothing must be appended for a gone row")
	}
}

func TestHandleMessageDeleteAppendsReversal(t *testing.T) {
	repo := newStubRepo()
	ledger := memory.New()
	w := NewExportWorker(repo, ledger, 10)

	msg := amqp.NewDeleteMessage(testExpense(7))
	if err := w.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	entries := ledger.Entries()
	if len(entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(entries))
	}
	entry := entries[0]
	if !entry.Reversal {
		t.Fatal("delete must append a reversal entry")
	}
	if entry.ExpenseID != 7 || entry.AmountCents != 7500 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if len(repo.exported) != 0 {
		t.Fatal("reversals do not touch export state")
	}
}

func TestHandleMessageDeleteWithoutSnapshot(t *testing.T) {
	w := NewExportWorker(newStubRepo(), memory.New(), 10)

	msg := &amqp.LedgerExportMessage{Op: amqp.OpDelete, ID: 3}
	if err := w.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("snapshot-less delete must be dropped, not retried: %v", err)
	}
}

func TestHandleMessageUnknownOp(t *testing.T) {
	w := NewExportWorker(newStubRepo(), memory.New(), 10)

	msg := &amqp.LedgerExportMessage{Op: "compact", ID: 1}
	if err := w.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("unknown op must be dropped, not retried: %v", err)
	}
}

func TestHandleMessageAppendFailure(t *testing.T) {
	repo := newStubRepo()
	repo.expenses[5] = testExpense(5)
	w := NewExportWorker(repo, failingLedger{}, 10)

	err := w.HandleMessage(context.Background(), amqp.NewUpsertMessage(5, 1))
	if err == nil {
		t.Fatal("append failure must propagate so the message is requeued")
	}
	if len(repo.exportErrs) != 1 || repo.exportErrs[0] != 5 {
		t.Fatalf("expense must be marked errored, got %v", repo.exportErrs)
	}
	if len(repo.exported) != 0 {
		t.Fatal("failed export must not be marked exported")
	}
}

func TestProcessPending(t *testing.T) {
	repo := newStubRepo()
	repo.expenses[1] = testExpense(1)
	repo.expenses[2] = testExpense(2)
	repo.pending = []storage.PendingExport{{ID: 1}, {ID: 2}, {ID: 3}}
	ledger := memory.New()
	w := NewExportWorker(repo, ledger, 10)

	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if repo.gotLimit != 10 {
		t.Fatalf("batch limit = %d, want 10", repo.gotLimit)
	}

	// Rows 1 and 2 export; row 3 is gone and gets marked errored.
	if len(ledger.Entries()) != 2 {
		t.Fatalf("ledger entries = %d, want 2", len(ledger.Entries()))
	}
	if len(repo.exported) != 2 {
		t.Fatalf("exported = %v, want two rows", repo.exported)
	}
	if len(repo.exportErrs) != 1 || repo.exportErrs[0] != 3 {
		t.Fatalf("exportErrs = %v, want [3]", repo.exportErrs)
	}
}

func TestProcessPendingEmpty(t *testing.T) {
	repo := newStubRepo()
	w := NewExportWorker(repo, memory.New(), 10)

	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
}

func TestStartupCheckUsesLargerBatch(t *testing.T) {
	repo := newStubRepo()
	w := NewExportWorker(repo, memory.New(), 10)

	if err := w.StartupCheck(context.Background()); err != nil {
		t.Fatalf("StartupCheck: %v", err)
	}
	if repo.gotLimit != 50 {
		t.Fatalf("startup batch limit = %d, want 50", repo.gotLimit)
	}
}
