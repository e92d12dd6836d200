package bank

import "errors"

// Error atoms of the public operation surface. Callers match them with
// errors.Is.
var (
	// ErrWrongArguments rejects malformed input before any account is
	// reached: empty identities, empty currency codes, non-positive amounts,
	// amounts that round to zero minor units, or a self-transfer.
	ErrWrongArguments = errors.New("wrong arguments")

	// ErrUserAlreadyExists rejects a duplicate CreateUser. The existing
	// account's balances are unaffected.
	ErrUserAlreadyExists = errors.New("user already exists")

	// Existence errors: the directory lookup failed, no account state was
	// touched.
	ErrUserDoesNotExist     = errors.New("user does not exist")
	ErrSenderDoesNotExist   = errors.New("sender does not exist")
	ErrReceiverDoesNotExist = errors.New("receiver does not exist")

	// ErrNotEnoughMoney rejects a withdrawal or transfer that would drive a
	// balance below zero. State is unchanged on rejection.
	ErrNotEnoughMoney = errors.New("not enough money")

	// Capacity errors: immediate admission-control rejections, nothing
	// mutated on the rejected side. ErrTooManyRequestsToUser belongs to the
	// surface taxonomy; the core produces the sender/receiver variants.
	ErrTooManyRequestsToUser     = errors.New("too many requests to user")
	ErrTooManyRequestsToSender   = errors.New("too many requests to sender")
	ErrTooManyRequestsToReceiver = errors.New("too many requests to receiver")

	// ErrTimeout means the transfer deadline expired before the receiver
	// confirmed the credit. The admitted credit still completes on its own.
	ErrTimeout = errors.New("transfer timed out")

	// ErrTransferFailed covers a transfer broken by a receiver stop or an
	// actor crash after the debit phase.
	ErrTransferFailed = errors.New("transfer failed")
)
