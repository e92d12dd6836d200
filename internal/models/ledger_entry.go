package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is one side of a balance movement as recorded in the audit
// journal: negative amounts are debits, positive amounts are credits.
type LedgerEntry struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}
