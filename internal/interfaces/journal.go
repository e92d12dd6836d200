package interfaces

import (
	"context"

	"github.com/NeoArcanjo/ex-banking/internal/models"
)

// Journal is a write-mostly audit sink for balance movements. It is never
// read back to compute balances: account state lives in the actors and is
// intentionally volatile.
type Journal interface {
	SaveEntry(ctx context.Context, entry models.LedgerEntry) error
	SaveTransfer(ctx context.Context, tr models.Transfer, debit, credit models.LedgerEntry) error
	GetEntriesByAccount(accountID string) ([]models.LedgerEntry, error)
	GetLedgerEntries() ([]models.LedgerEntry, error)
}
