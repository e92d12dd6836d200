package memory

import (
	"context"
	"sync"

	"github.com/NeoArcanjo/ex-banking/internal/interfaces"
	"github.com/NeoArcanjo/ex-banking/internal/models"
)

// JournalStore is the in-memory implementation of interfaces.Journal and the
// default audit sink. It is safe for concurrent writers.
type JournalStore struct {
	mu        sync.Mutex
	entries   []models.LedgerEntry
	transfers []models.Transfer
}

// NewJournalStore returns an empty in-memory journal.
func NewJournalStore() *JournalStore {
	return &JournalStore{}
}

// SaveEntry appends a single ledger entry.
func (m *JournalStore) SaveEntry(ctx context.Context, entry models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, entry)

	return nil
}

// SaveTransfer appends a transfer record together with its double-entry
// debit and credit legs.
func (m *JournalStore) SaveTransfer(ctx context.Context, tr models.Transfer, debit, credit models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transfers = append(m.transfers, tr)
	m.entries = append(m.entries, debit, credit)

	return nil
}

// GetLedgerEntries returns a copy of all recorded entries, so callers cannot
// mutate internal state.
func (m *JournalStore) GetLedgerEntries() ([]models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]models.LedgerEntry, len(m.entries))
	copy(copied, m.entries)

	return copied, nil
}

// GetEntriesByAccount returns the entries recorded for one account.
func (m *JournalStore) GetEntriesByAccount(accountID string) ([]models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.LedgerEntry

	for _, e := range m.entries {
		if e.AccountID == accountID {
			result = append(result, e)
		}
	}

	return result, nil
}

// GetTransfers returns a copy of all recorded transfers.
func (m *JournalStore) GetTransfers() ([]models.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]models.Transfer, len(m.transfers))
	copy(copied, m.transfers)

	return copied, nil
}

var _ interfaces.Journal = (*JournalStore)(nil)
