package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer records a completed peer-to-peer transfer for the audit journal.
type Transfer struct {
	ID          string          `json:"id"`
	FromAccount string          `json:"from_account"`
	ToAccount   string          `json:"to_account"`
	Currency    string          `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
}
