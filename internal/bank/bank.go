// Package bank is the public in-process surface of the ledger service. It
// validates argument shapes, converts decimal amounts to integer minor units
// exactly once, resolves identities through the directory, and dispatches to
// the per-account actors.
package bank

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/NeoArcanjo/ex-banking/internal/account"
	"github.com/NeoArcanjo/ex-banking/internal/directory"
	"github.com/NeoArcanjo/ex-banking/internal/interfaces"
	"github.com/NeoArcanjo/ex-banking/internal/models"
	"github.com/NeoArcanjo/ex-banking/internal/models/events"
	"github.com/NeoArcanjo/ex-banking/internal/money"
)

// TopicTransferCompleted is the event topic for confirmed transfers.
const TopicTransferCompleted = "transfer_completed"

// Config wires the bank's collaborators and actor tunables.
type Config struct {
	// AdmissionLimit bounds in-flight asynchronous requests per account.
	// Zero means account.DefaultAdmissionLimit.
	AdmissionLimit int

	// TransferDeadline bounds the sender's wait for a credit confirmation.
	// Zero means account.DefaultTransferDeadline.
	TransferDeadline time.Duration

	// Journal receives the audit trail of applied movements. Optional.
	Journal interfaces.Journal

	// Events receives TransferCompleted events. Optional.
	Events interfaces.EventPublisher

	// Metrics is the prometheus registerer for operation metrics. Nil keeps
	// the collectors unregistered.
	Metrics prometheus.Registerer
}

// Bank owns the directory and supervisor and exposes the five public
// operations. All methods are safe for concurrent use.
type Bank struct {
	dir     *directory.Directory[*account.Actor]
	sup     *account.Supervisor
	journal interfaces.Journal
	events  interfaces.EventPublisher
	metrics *Metrics
	log     *zap.Logger
}

// New builds a bank with its own directory and supervisor.
func New(cfg Config, log *zap.Logger) *Bank {
	if log == nil {
		log = zap.NewNop()
	}

	dir := directory.New[*account.Actor]()
	sup := account.NewSupervisor(dir, account.Config{
		AdmissionLimit:   cfg.AdmissionLimit,
		TransferDeadline: cfg.TransferDeadline,
	}, log)

	return &Bank{
		dir:     dir,
		sup:     sup,
		journal: cfg.Journal,
		events:  cfg.Events,
		metrics: NewMetrics(cfg.Metrics),
		log:     log,
	}
}

// CreateUser registers identity and starts its account actor with an empty
// ledger. Exactly one of any number of concurrent calls for the same
// identity succeeds; the rest get ErrUserAlreadyExists.
func (b *Bank) CreateUser(identity string) (err error) {
	defer func() { b.metrics.observe("create_user", err) }()

	if strings.TrimSpace(identity) == "" {
		return ErrWrongArguments
	}

	if _, err := b.sup.EnsureStarted(identity); err != nil {
		if errors.Is(err, directory.ErrAlreadyRegistered) {
			return ErrUserAlreadyExists
		}

		return err
	}

	return nil
}

// Deposit adds amount to the user's balance in the given currency and
// returns the new balance. Deposits are not subject to admission control.
func (b *Bank) Deposit(ctx context.Context, identity string, amount decimal.Decimal, currency string) (_ decimal.Decimal, err error) {
	defer func() { b.metrics.observe("deposit", err) }()

	minor, ccy, err := boundaryAmount(amount, currency)
	if err != nil {
		return decimal.Zero, err
	}

	if strings.TrimSpace(identity) == "" {
		return decimal.Zero, ErrWrongArguments
	}

	act, ok := b.dir.Lookup(identity)
	if !ok {
		return decimal.Zero, ErrUserDoesNotExist
	}

	bal, err := act.Deposit(ctx, ccy, minor)
	if err != nil {
		return decimal.Zero, mapAccountErr(err)
	}

	b.record(ctx, models.LedgerEntry{
		ID:        uuid.New().String(),
		AccountID: identity,
		Currency:  ccy,
		Amount:    money.FromMinor(minor),
		CreatedAt: time.Now().UTC(),
	})

	return money.FromMinor(bal), nil
}

// Withdraw removes amount from the user's balance in the given currency and
// returns the new balance.
func (b *Bank) Withdraw(ctx context.Context, identity string, amount decimal.Decimal, currency string) (_ decimal.Decimal, err error) {
	defer func() { b.metrics.observe("withdraw", err) }()

	minor, ccy, err := boundaryAmount(amount, currency)
	if err != nil {
		return decimal.Zero, err
	}

	if strings.TrimSpace(identity) == "" {
		return decimal.Zero, ErrWrongArguments
	}

	act, ok := b.dir.Lookup(identity)
	if !ok {
		return decimal.Zero, ErrUserDoesNotExist
	}

	bal, err := act.Withdraw(ctx, ccy, minor)
	if err != nil {
		return decimal.Zero, mapAccountErr(err)
	}

	b.record(ctx, models.LedgerEntry{
		ID:        uuid.New().String(),
		AccountID: identity,
		Currency:  ccy,
		Amount:    money.FromMinor(minor).Neg(),
		CreatedAt: time.Now().UTC(),
	})

	return money.FromMinor(bal), nil
}

// GetBalance returns the user's balance in the given currency; currencies
// the user never touched read as zero.
func (b *Bank) GetBalance(ctx context.Context, identity string, currency string) (_ decimal.Decimal, err error) {
	defer func() { b.metrics.observe("get_balance", err) }()

	ccy := money.Normalize(currency)
	if strings.TrimSpace(identity) == "" || ccy == "" {
		return decimal.Zero, ErrWrongArguments
	}

	act, ok := b.dir.Lookup(identity)
	if !ok {
		return decimal.Zero, ErrUserDoesNotExist
	}

	bal, err := act.Balance(ctx, ccy)
	if err != nil {
		return decimal.Zero, mapAccountErr(err)
	}

	return money.FromMinor(bal), nil
}

// Send transfers amount from one user to another and returns both new
// balances. The sender's debit and the receiver's credit are serialized by
// their own actors; the two-phase handshake between them is bounded by the
// configured transfer deadline.
func (b *Bank) Send(ctx context.Context, fromIdentity, toIdentity string, amount decimal.Decimal, currency string) (_, _ decimal.Decimal, err error) {
	defer func() { b.metrics.observe("send", err) }()

	minor, ccy, err := boundaryAmount(amount, currency)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	if strings.TrimSpace(fromIdentity) == "" || strings.TrimSpace(toIdentity) == "" || fromIdentity == toIdentity {
		return decimal.Zero, decimal.Zero, ErrWrongArguments
	}

	sender, ok := b.dir.Lookup(fromIdentity)
	if !ok {
		return decimal.Zero, decimal.Zero, ErrSenderDoesNotExist
	}

	receiver, ok := b.dir.Lookup(toIdentity)
	if !ok {
		return decimal.Zero, decimal.Zero, ErrReceiverDoesNotExist
	}

	b.metrics.transfersInFlight.Inc()
	defer b.metrics.transfersInFlight.Dec()

	fromBal, toBal, err := sender.Transfer(ctx, receiver, ccy, minor)
	if err != nil {
		return decimal.Zero, decimal.Zero, mapTransferErr(err)
	}

	b.journalTransfer(ctx, fromIdentity, toIdentity, ccy, minor)

	return money.FromMinor(fromBal), money.FromMinor(toBal), nil
}

// journalTransfer records a confirmed transfer as a transfer row plus its
// double-entry legs, then publishes the TransferCompleted event. Both are
// best-effort: audit failures are logged, never bounced back to the caller
// whose money already moved.
func (b *Bank) journalTransfer(ctx context.Context, from, to, currency string, minor int64) {
	id := uuid.New().String()
	now := time.Now().UTC()
	amount := money.FromMinor(minor)

	if b.journal != nil {
		tr := models.Transfer{
			ID:          id,
			FromAccount: from,
			ToAccount:   to,
			Currency:    currency,
			Amount:      amount,
			CreatedAt:   now,
		}
		debit := models.LedgerEntry{
			ID:        id + "-debit",
			AccountID: from,
			Currency:  currency,
			Amount:    amount.Neg(),
			CreatedAt: now,
		}
		credit := models.LedgerEntry{
			ID:        id + "-credit",
			AccountID: to,
			Currency:  currency,
			Amount:    amount,
			CreatedAt: now,
		}

		if err := b.journal.SaveTransfer(ctx, tr, debit, credit); err != nil {
			b.log.Error("journal transfer failed",
				zap.String("transfer_id", id), zap.Error(err))
		}
	}

	if b.events != nil {
		evt := events.TransferCompleted{
			TransferID:  id,
			FromAccount: from,
			ToAccount:   to,
			Currency:    currency,
			Amount:      amount,
			OccurredAt:  now,
		}

		if err := b.events.Publish(TopicTransferCompleted, evt); err != nil {
			b.log.Warn("publish transfer event failed",
				zap.String("transfer_id", id), zap.Error(err))
		}
	}
}

func (b *Bank) record(ctx context.Context, entry models.LedgerEntry) {
	if b.journal == nil {
		return
	}

	if err := b.journal.SaveEntry(ctx, entry); err != nil {
		b.log.Error("journal entry failed",
			zap.String("entry_id", entry.ID), zap.Error(err))
	}
}

// LedgerEntries exposes the audit journal, when one is configured.
func (b *Bank) LedgerEntries() ([]models.LedgerEntry, error) {
	if b.journal == nil {
		return nil, nil
	}

	return b.journal.GetLedgerEntries()
}

// Close stops every account actor normally.
func (b *Bank) Close(ctx context.Context) error {
	return b.sup.Shutdown(ctx)
}

// boundaryAmount validates and converts a boundary amount: positive decimal,
// non-empty currency, and at least one minor unit after rounding half away
// from zero at two places.
func boundaryAmount(amount decimal.Decimal, currency string) (int64, string, error) {
	ccy := money.Normalize(currency)
	if ccy == "" || !amount.IsPositive() {
		return 0, "", ErrWrongArguments
	}

	minor, err := money.ToMinor(amount)
	if err != nil || minor <= 0 {
		return 0, "", ErrWrongArguments
	}

	return minor, ccy, nil
}

func mapAccountErr(err error) error {
	switch {
	case errors.Is(err, account.ErrNotEnoughMoney):
		return ErrNotEnoughMoney
	case errors.Is(err, account.ErrTooManyRequests):
		return ErrTooManyRequestsToUser
	case errors.Is(err, account.ErrBalanceOverflow):
		return ErrWrongArguments
	default:
		return err
	}
}

func mapTransferErr(err error) error {
	switch {
	case errors.Is(err, account.ErrNotEnoughMoney):
		return ErrNotEnoughMoney
	case errors.Is(err, account.ErrTooManyRequests):
		return ErrTooManyRequestsToSender
	case errors.Is(err, account.ErrReceiverTooManyRequests):
		return ErrTooManyRequestsToReceiver
	case errors.Is(err, account.ErrTimeout):
		return ErrTimeout
	case errors.Is(err, account.ErrStopped), errors.Is(err, account.ErrCrashed),
		errors.Is(err, account.ErrBalanceOverflow):
		return ErrTransferFailed
	default:
		return err
	}
}
