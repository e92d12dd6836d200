package postgres

import (
	"context"
	"database/sql"

	"github.com/NeoArcanjo/ex-banking/internal/interfaces"
	"github.com/NeoArcanjo/ex-banking/internal/models"
)

// JournalStore writes the audit journal to postgres. Balances are never
// reconstructed from it; account state stays volatile in the actors.
type JournalStore struct {
	db *sql.DB
}

// NewJournalStore wraps an open database handle.
func NewJournalStore(db *sql.DB) *JournalStore {
	return &JournalStore{db: db}
}

// SaveEntry inserts one ledger entry.
func (p *JournalStore) SaveEntry(ctx context.Context, entry models.LedgerEntry) error {
	const query = `INSERT INTO ledger_entries (id, account_id, currency, amount, created_at)
	VALUES ($1, $2, $3, $4, $5)`

	_, err := p.db.ExecContext(ctx, query,
		entry.ID, entry.AccountID, entry.Currency, entry.Amount, entry.CreatedAt)

	return err
}

// SaveTransfer inserts the transfer record and both of its legs in one
// database transaction, so the journal never shows half a transfer.
func (p *JournalStore) SaveTransfer(ctx context.Context, tr models.Transfer, debit, credit models.LedgerEntry) error {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	const transferQuery = `INSERT INTO transfers (id, from_account, to_account, currency, amount, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err = dbTx.ExecContext(ctx, transferQuery,
		tr.ID, tr.FromAccount, tr.ToAccount, tr.Currency, tr.Amount, tr.CreatedAt); err != nil {
		return err
	}

	const entryQuery = `INSERT INTO ledger_entries (id, account_id, currency, amount, created_at)
	VALUES ($1, $2, $3, $4, $5)`

	for _, entry := range []models.LedgerEntry{debit, credit} {
		if _, err = dbTx.ExecContext(ctx, entryQuery,
			entry.ID, entry.AccountID, entry.Currency, entry.Amount, entry.CreatedAt); err != nil {
			return err
		}
	}

	return dbTx.Commit()
}

// GetLedgerEntries returns every recorded entry.
func (p *JournalStore) GetLedgerEntries() ([]models.LedgerEntry, error) {
	const query = `SELECT id, account_id, currency, amount, created_at FROM ledger_entries`

	return p.queryEntries(query)
}

// GetEntriesByAccount returns the entries recorded for one account.
func (p *JournalStore) GetEntriesByAccount(accountID string) ([]models.LedgerEntry, error) {
	const query = `SELECT id, account_id, currency, amount, created_at FROM ledger_entries
	WHERE account_id = $1`

	return p.queryEntries(query, accountID)
}

func (p *JournalStore) queryEntries(query string, args ...any) ([]models.LedgerEntry, error) {
	rows, err := p.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LedgerEntry

	for rows.Next() {
		var entry models.LedgerEntry
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.Currency, &entry.Amount, &entry.CreatedAt); err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

var _ interfaces.Journal = (*JournalStore)(nil)
