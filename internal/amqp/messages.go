package amqp

import (
	"encoding/json"
	"time"

	"proptrack/internal/core"
)

// Operations carried by ledger export messages.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// LedgerExportMessage asks the worker to reflect an expense change in the
// ledger spreadsheet. Upserts carry only ID and version; the worker fetches
// the current row from the database. Deletes carry a snapshot because the
// row is already gone by the time the worker runs.
type LedgerExportMessage struct {
	Op        string    `json:"op"`
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`

	// Snapshot of the deleted expense, set only when Op is "delete".
	Snapshot *ExpenseSnapshot `json:"snapshot,omitempty"`
}

// ExpenseSnapshot is the part of an expense the ledger needs after the
// database row is deleted.
type ExpenseSnapshot struct {
	PropertyID  int64     `json:"property_id"`
	Date        time.Time `json:"date"`
	AmountCents int64     `json:"amount_cents"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
}

// NewUpsertMessage creates an export message for a created or updated
// expense.
func NewUpsertMessage(id, version int64) *LedgerExportMessage {
	return &LedgerExportMessage{
		Op:        OpUpsert,
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// NewDeleteMessage creates an export message carrying a snapshot of the
// deleted expense.
func NewDeleteMessage(e core.Expense) *LedgerExportMessage {
	return &LedgerExportMessage{
		Op:        OpDelete,
		ID:        e.ID,
		Timestamp: time.Now(),
		Snapshot: &ExpenseSnapshot{
			PropertyID:  e.PropertyID,
			Date:        e.Date,
			AmountCents: e.Amount.Cents,
			Category:    e.CategoryName,
			Description: e.Description,
		},
	}
}

// ToJSON converts the message to JSON bytes.
func (m *LedgerExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerExportMessageFromJSON creates a message from JSON bytes.
func LedgerExportMessageFromJSON(data []byte) (*LedgerExportMessage, error) {
	var msg LedgerExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
