// Package sheets defines the outbound ledger port. The export worker
// appends one row per expense change to a spreadsheet that serves as an
// audit ledger outside the database.
package sheets

import (
	"context"
	"time"
)

// LedgerEntry is one row of the ledger. Deletions are recorded as
// reversal entries rather than removed, so the ledger stays append-only.
type LedgerEntry struct {
	ExpenseID   int64
	PropertyID  int64
	Date        time.Time
	AmountCents int64
	Category    string
	Description string
	Reversal    bool
}

// LedgerWriter appends entries to the ledger.
type LedgerWriter interface {
	// Append writes one entry and returns a reference to the created row.
	Append(ctx context.Context, entry LedgerEntry) (rowRef string, err error)
}
