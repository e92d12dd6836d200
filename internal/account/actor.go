// Package account implements the per-account actor, its admission
// controller, and the supervisor that owns actor lifecycles.
//
// Each account is a single goroutine with a private ledger and a FIFO
// mailbox. All balance mutation happens on that goroutine, which is the sole
// source of per-account consistency; no mutex is ever taken across accounts.
package account

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// Defaults for actor construction. The transfer deadline bounds how long a
// sender waits for the receiver's credit confirmation.
const (
	DefaultTransferDeadline = 60 * time.Second
	DefaultMailboxSize      = 64
)

// Sentinel errors produced by account operations. The bank layer maps them
// onto the public error atoms.
var (
	// ErrNotEnoughMoney rejects a withdrawal or transfer that would drive a
	// balance below zero. State is unchanged on rejection.
	ErrNotEnoughMoney = errors.New("account: not enough money")

	// ErrTooManyRequests is an immediate admission rejection by this
	// account's own controller.
	ErrTooManyRequests = errors.New("account: too many requests in flight")

	// ErrReceiverTooManyRequests is an immediate admission rejection by the
	// receiving account of a transfer.
	ErrReceiverTooManyRequests = errors.New("account: too many requests in flight at receiver")

	// ErrTimeout means the transfer deadline expired before the receiver
	// confirmed the credit.
	ErrTimeout = errors.New("account: transfer deadline expired")

	// ErrBalanceOverflow rejects a credit that would overflow the int64
	// minor-unit balance.
	ErrBalanceOverflow = errors.New("account: balance overflow")

	// ErrStopped is returned for requests caught by a normal actor stop.
	ErrStopped = errors.New("account: actor stopped")

	// ErrCrashed is returned to the caller whose request was being handled
	// when the actor panicked. The actor restarts with an empty ledger.
	ErrCrashed = errors.New("account: actor crashed while handling request")
)

type opKind int

const (
	opDeposit opKind = iota
	opWithdraw
	opBalance
	opTransfer
	opCredit
	opStop
)

// request is one mailbox message. Amounts are integer minor units; currency
// codes are already normalized.
type request struct {
	op       opKind
	currency string
	amount   int64
	to       *Actor
	reply    chan response
}

type response struct {
	balance     int64
	peerBalance int64
	err         error
}

// Actor owns one user's ledger entries and processes requests one at a time
// from its mailbox. Handles to an Actor are message-sendable only: the
// ledger map is touched exclusively by the run goroutine.
type Actor struct {
	identity  string
	mailbox   chan request
	done      chan struct{}
	admission *Admission
	deadline  time.Duration
	log       *zap.Logger

	// ledger maps currency code to balance in minor units. Owned by the run
	// goroutine; invariant: every balance >= 0 after every handled request.
	ledger map[string]int64
}

func newActor(identity string, cfg Config, log *zap.Logger) *Actor {
	deadline := cfg.TransferDeadline
	if deadline <= 0 {
		deadline = DefaultTransferDeadline
	}

	size := cfg.MailboxSize
	if size <= 0 {
		size = DefaultMailboxSize
	}

	return &Actor{
		identity:  identity,
		mailbox:   make(chan request, size),
		done:      make(chan struct{}),
		admission: NewAdmission(cfg.AdmissionLimit),
		deadline:  deadline,
		log:       log,
		ledger:    make(map[string]int64),
	}
}

// Identity returns the immutable identity the actor was created with.
func (a *Actor) Identity() string {
	return a.identity
}

// Admission exposes the actor's admission controller.
func (a *Actor) Admission() *Admission {
	return a.admission
}

// Deposit adds amount minor units to the currency's entry, creating it at
// zero first if absent. Deposits issued by the account's own caller are not
// subject to admission control.
func (a *Actor) Deposit(ctx context.Context, currency string, amount int64) (int64, error) {
	resp, err := a.call(ctx, request{op: opDeposit, currency: currency, amount: amount})
	if err != nil {
		return 0, err
	}

	return resp.balance, nil
}

// Withdraw removes amount minor units from the currency's entry, failing
// with ErrNotEnoughMoney if the balance is insufficient.
func (a *Actor) Withdraw(ctx context.Context, currency string, amount int64) (int64, error) {
	resp, err := a.call(ctx, request{op: opWithdraw, currency: currency, amount: amount})
	if err != nil {
		return 0, err
	}

	return resp.balance, nil
}

// Balance reads the currency's balance; untouched currencies read as zero
// and no entry is created as a side effect.
func (a *Actor) Balance(ctx context.Context, currency string) (int64, error) {
	resp, err := a.call(ctx, request{op: opBalance, currency: currency})
	if err != nil {
		return 0, err
	}

	return resp.balance, nil
}

// Transfer moves amount minor units from this account to the receiver via
// the two-phase debit/credit handshake. The initiation is admitted against
// this account's controller; the slot is held until the transfer resolves.
// On success it returns the sender's and receiver's new balances.
func (a *Actor) Transfer(ctx context.Context, to *Actor, currency string, amount int64) (int64, int64, error) {
	if !a.admission.TryAdmit() {
		return 0, 0, ErrTooManyRequests
	}
	defer a.admission.Release()

	resp, err := a.call(ctx, request{op: opTransfer, currency: currency, amount: amount, to: to})
	if err != nil {
		return 0, 0, err
	}

	return resp.balance, resp.peerBalance, nil
}

// Stop terminates the actor normally. Requests still queued at that point
// are drained with ErrStopped; queued credits release their admission slot.
// A normal stop is never restarted by the supervisor.
func (a *Actor) Stop(ctx context.Context) error {
	_, err := a.call(ctx, request{op: opStop})
	if errors.Is(err, ErrStopped) {
		// Already stopped; nothing left to do.
		return nil
	}

	return err
}

// call enqueues a request and waits for its reply. Mailbox order is the only
// ordering guarantee: requests are applied in the order the actor accepts
// them, which preserves program order per caller.
func (a *Actor) call(ctx context.Context, req request) (response, error) {
	req.reply = make(chan response, 1)

	// Checked before the send so a long-stopped actor rejects
	// deterministically instead of racing the buffered mailbox.
	select {
	case <-a.done:
		return response{}, ErrStopped
	default:
	}

	select {
	case a.mailbox <- req:
	case <-a.done:
		return response{}, ErrStopped
	case <-ctx.Done():
		return response{}, ctx.Err()
	}

	select {
	case resp := <-req.reply:
		return resp, resp.err
	case <-a.done:
		// The reply channel is buffered, so a reply racing the stop is not
		// lost: prefer it over reporting the stop.
		select {
		case resp := <-req.reply:
			return resp, resp.err
		default:
			return response{}, ErrStopped
		}
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
}

// run processes the mailbox until a normal stop or a panic. It reports
// whether the actor crashed so the supervisor can apply its restart policy.
func (a *Actor) run() (crashed bool) {
	var current *request

	defer func() {
		if r := recover(); r != nil {
			crashed = true

			a.log.Error("panic while handling account request",
				zap.String("identity", a.identity),
				zap.Any("panic", r),
				zap.Stack("stack"))

			if current != nil {
				current.reply <- response{err: ErrCrashed}
			}
		}
	}()

	for {
		req := <-a.mailbox

		if req.op == opStop {
			close(a.done)
			// Requests that slipped into the mailbox around the stop still
			// get an answer, and queued credits still release their
			// admission slots.
			go a.drainStopped()
			req.reply <- response{}

			return false
		}

		current = &req
		a.handle(req)
		current = nil
	}
}

// reset discards the ledger after a crash. The admission counter is kept:
// slots held by still-outstanding admitted work must be released by that
// work, not zeroed away.
func (a *Actor) reset() {
	a.ledger = make(map[string]int64)
}

// drainStopped answers everything behind (or racing) a normal stop. The
// mailbox is never closed, so this goroutine lives until process exit; stops
// only happen at shutdown, so that is a bounded, deliberate cost.
func (a *Actor) drainStopped() {
	for req := range a.mailbox {
		if req.op == opCredit {
			a.admission.Release()
		}

		req.reply <- response{err: ErrStopped}
	}
}

func (a *Actor) handle(req request) {
	switch req.op {
	case opDeposit:
		bal, err := a.credit(req.currency, req.amount)
		req.reply <- response{balance: bal, err: err}
	case opWithdraw:
		bal, err := a.debit(req.currency, req.amount)
		req.reply <- response{balance: bal, err: err}
	case opBalance:
		req.reply <- response{balance: a.ledger[req.currency]}
	case opTransfer:
		a.handleTransfer(req)
	case opCredit:
		a.handleCredit(req)
	default:
		panic(fmt.Sprintf("account: unknown mailbox op %d", req.op))
	}
}

// handleCredit applies the receiving side of a transfer. The admission slot
// was taken by the sender before the credit was enqueued; releasing it here,
// deferred, keeps the admit/release pairing exact on every path, panics
// included.
func (a *Actor) handleCredit(req request) {
	defer a.admission.Release()

	bal, err := a.credit(req.currency, req.amount)
	req.reply <- response{balance: bal, err: err}
}

// handleTransfer drives the two-phase handshake from inside the sender's
// serialized request handling.
//
// The debit is applied before the credit request goes out. It is refunded
// only on confirmed failure (admission rejection, undelivered credit, or an
// error reply); once the credit has been delivered and the deadline expires,
// the debit stands, because the admitted credit completes independently and
// refunding would duplicate money.
func (a *Actor) handleTransfer(req request) {
	to := req.to

	bal := a.ledger[req.currency]
	if bal < req.amount {
		req.reply <- response{err: ErrNotEnoughMoney}
		return
	}

	a.ledger[req.currency] = bal - req.amount
	senderBal := a.ledger[req.currency]

	if !to.admission.TryAdmit() {
		a.ledger[req.currency] += req.amount
		req.reply <- response{err: ErrReceiverTooManyRequests}

		return
	}

	credit := request{
		op:       opCredit,
		currency: req.currency,
		amount:   req.amount,
		reply:    make(chan response, 1),
	}

	timer := time.NewTimer(a.deadline)
	defer timer.Stop()

	// Same priority check as call: a stopped receiver must lose to the done
	// channel, not race it.
	select {
	case <-to.done:
		to.admission.Release()
		a.ledger[req.currency] += req.amount
		req.reply <- response{err: ErrStopped}

		return
	default:
	}

	select {
	case to.mailbox <- credit:
	case <-to.done:
		// Receiver stopped before delivery: the slot is still ours.
		to.admission.Release()
		a.ledger[req.currency] += req.amount
		req.reply <- response{err: ErrStopped}

		return
	case <-timer.C:
		to.admission.Release()
		a.ledger[req.currency] += req.amount
		req.reply <- response{err: ErrTimeout}

		return
	}

	select {
	case resp := <-credit.reply:
		if resp.err != nil {
			a.ledger[req.currency] += req.amount
			req.reply <- response{err: resp.err}

			return
		}

		req.reply <- response{balance: senderBal, peerBalance: resp.balance}
	case <-timer.C:
		// Delivered but unconfirmed. The receiver-side work is not
		// cancelled: it completes (or fails) on its own and still releases
		// its admission slot. No refund on ambiguity.
		req.reply <- response{err: ErrTimeout}
	}
}

func (a *Actor) credit(currency string, amount int64) (int64, error) {
	bal := a.ledger[currency]
	if amount > math.MaxInt64-bal {
		return bal, ErrBalanceOverflow
	}

	a.ledger[currency] = bal + amount

	return bal + amount, nil
}

func (a *Actor) debit(currency string, amount int64) (int64, error) {
	bal := a.ledger[currency]
	if bal < amount {
		return bal, ErrNotEnoughMoney
	}

	a.ledger[currency] = bal - amount

	return bal - amount, nil
}
