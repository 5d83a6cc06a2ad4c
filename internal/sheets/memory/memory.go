// Package memory is an in-process ledger used in tests and when no
// spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"proptrack/internal/sheets"
)

type Store struct {
	mu      sync.Mutex
	entries []sheets.LedgerEntry
}

var _ sheets.LedgerWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Append stores the entry and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, entry sheets.LedgerEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return fmt.Sprintf("mem:%d", len(s.entries)), nil
}

// Entries returns a copy of everything appended so far.
func (s *Store) Entries() []sheets.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.LedgerEntry(nil), s.entries...)
}
