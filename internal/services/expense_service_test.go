package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"proptrack/internal/amqp"
	"proptrack/internal/core"
	"proptrack/internal/storage"
	"proptrack/internal/uploads"
)

// stubRepo implements only the Repository methods the service touches.
// Unused methods panic through the embedded nil interface.
type stubRepo struct {
	storage.Repository

	expenses map[int64]core.Expense
	nextID   int64

	createErr error
	updateErr error
	deleteErr error
}

func newStubRepo() *stubRepo {
	return &stubRepo{expenses: make(map[int64]core.Expense), nextID: 1}
}

func (r *stubRepo) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if r.createErr != nil {
		return core.Expense{}, r.createErr
	}
	e.ID = r.nextID
	r.nextID++
	r.expenses[e.ID] = e
	return e, nil
}

func (r *stubRepo) GetExpense(_ context.Context, propertyID, id int64) (core.Expense, error) {
	e, ok := r.expenses[id]
	if !ok || e.PropertyID != propertyID {
		return core.Expense{}, storage.ErrNotFound
	}
	return e, nil
}

func (r *stubRepo) UpdateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if r.updateErr != nil {
		return core.Expense{}, r.updateErr
	}
	if _, ok := r.expenses[e.ID]; !ok {
		return core.Expense{}, storage.ErrNotFound
	}
	r.expenses[e.ID] = e
	return e, nil
}

func (r *stubRepo) DeleteExpense(_ context.Context, propertyID, id int64) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	e, ok := r.expenses[id]
	if !ok || e.PropertyID != propertyID {
		return storage.ErrNotFound
	}
	delete(r.expenses, id)
	return nil
}

type stubPublisher struct {
	messages []*amqp.LedgerExportMessage
	err      error
}

func (p *stubPublisher) PublishExport(_ context.Context, msg *amqp.LedgerExportMessage) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func testReceipts(t *testing.T) *uploads.Store {
	t.Helper()
	s, err := uploads.NewStore(t.TempDir(), 1<<20, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func validExpense(propertyID int64) core.Expense {
	return core.Expense{
		Date:       time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		Amount:     core.Money{Cents: 10000},
		CategoryID: 1,
		PropertyID: propertyID,
	}
}

func TestCreateExpensePublishesUpsert(t *testing.T) {
	repo := newStubRepo()
	pub := &stubPublisher{}
	svc := NewExpenseService(repo, pub, testReceipts(t))

	created, err := svc.CreateExpense(context.Background(), validExpense(1))
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("created expense must have an ID")
	}

	if len(pub.messages) != 1 {
		t.Fatalf("published messages = %d, want 1", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.Op != amqp.OpUpsert || msg.ID != created.ID {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.Snapshot != nil {
		t.Fatal("upsert message must not carry a snapshot")
	}
}

func TestCreateExpenseRejectsInvalid(t *testing.T) {
	repo := newStubRepo()
	pub := &stubPublisher{}
	svc := NewExpenseService(repo, pub, testReceipts(t))

	e := validExpense(1)
	e.Amount = core.Money{}
	if _, err := svc.CreateExpense(context.Background(), e); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if len(pub.messages) != 0 {
		t.Fatal("nothing must be published for a rejected expense")
	}
}

func TestCreateExpenseNilPublisher(t *testing.T) {
	repo := newStubRepo()
	svc := NewExpenseService(repo, nil, testReceipts(t))

	if _, err := svc.CreateExpense(context.Background(), validExpense(1)); err != nil {
		t.Fatalf("CreateExpense must tolerate a nil publisher: %v", err)
	}
}

func TestCreateExpensePublishFailureIsNotFatal(t *testing.T) {
	repo := newStubRepo()
	pub := &stubPublisher{err: errors.New("broker down")}
	svc := NewExpenseService(repo, pub, testReceipts(t))

	if _, err := svc.CreateExpense(context.Background(), validExpense(1)); err != nil {
		t.Fatalf("publish failures must not fail the write: %v", err)
	}
}

func TestUpdateExpenseRemovesReplacedReceipt(t *testing.T) {
	repo := newStubRepo()
	pub := &stubPublisher{}
	receipts := testReceipts(t)
	svc := NewExpenseService(repo, pub, receipts)

	oldFile, err := receipts.Save(strings.NewReader("old"), "old.png")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	e := validExpense(1)
	e.ReceiptPath = oldFile
	created, err := svc.CreateExpense(context.Background(), e)
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	newFile, err := receipts.Save(strings.NewReader("new"), "new.png")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	created.ReceiptPath = newFile
	if _, err := svc.UpdateExpense(context.Background(), created); err != nil {
		t.Fatalf("UpdateExpense: %v", err)
	}

	if _, err := os.Stat(filepath.Join(receipts.Dir(), oldFile)); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("replaced receipt file must be removed")
	}
	if _, err := os.Stat(filepath.Join(receipts.Dir(), newFile)); err != nil {
		t.Fatalf("new receipt must survive: %v", err)
	}
}

func TestUpdateExpenseMissing(t *testing.T) {
	repo := newStubRepo()
	svc := NewExpenseService(repo, nil, testReceipts(t))

	e := validExpense(1)
	e.ID = 99
	if _, err := svc.UpdateExpense(context.Background(), e); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteExpenseRemovesReceiptAndPublishesSnapshot(t *testing.T) {
	repo := newStubRepo()
	pub := &stubPublisher{}
	receipts := testReceipts(t)
	svc := NewExpenseService(repo, pub, receipts)

	file, err := receipts.Save(strings.NewReader("x"), "r.pdf")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	e := validExpense(2)
	e.ReceiptPath = file
	e.CategoryName = "Repairs"
	created, err := svc.CreateExpense(context.Background(), e)
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	pub.messages = nil

	if err := svc.DeleteExpense(context.Background(), 2, created.ID); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}

	if _, err := os.Stat(filepath.Join(receipts.Dir(), file)); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("receipt of deleted expense must be removed")
	}

	if len(pub.messages) != 1 {
		t.Fatalf("published messages = %d, want 1", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.Op != amqp.OpDelete || msg.Snapshot == nil {
		t.Fatalf("expected delete message with snapshot: %+v", msg)
	}
	if msg.Snapshot.PropertyID != 2 || msg.Snapshot.AmountCents != 10000 || msg.Snapshot.Category != "Repairs" {
		t.Fatalf("unexpected snapshot: %+v", msg.Snapshot)
	}
}

func TestDeleteExpenseMissing(t *testing.T) {
	repo := newStubRepo()
	svc := NewExpenseService(repo, nil, testReceipts(t))

	if err := svc.DeleteExpense(context.Background(), 1, 99); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
