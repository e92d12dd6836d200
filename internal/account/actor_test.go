package account

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NeoArcanjo/ex-banking/internal/directory"
)

func startSupervisor(t *testing.T, cfg Config) *Supervisor {
	t.Helper()

	sup := NewSupervisor(directory.New[*Actor](), cfg, zap.NewNop())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		require.NoError(t, sup.Shutdown(ctx))
	})

	return sup
}

func startActor(t *testing.T, sup *Supervisor, identity string) *Actor {
	t.Helper()

	a, err := sup.EnsureStarted(identity)
	require.NoError(t, err)

	return a
}

func TestDepositWithdrawBalance(t *testing.T) {
	t.Parallel()

	sup := startSupervisor(t, Config{})
	a := startActor(t, sup, "alice")
	ctx := context.Background()

	bal, err := a.Deposit(ctx, "USD", 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), bal)

	bal, err = a.Balance(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), bal)

	// Untouched currencies read as zero.
	bal, err = a.Balance(ctx, "EUR")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal)

	// Rejected withdrawal leaves the balance unchanged.
	_, err = a.Withdraw(ctx, "USD", 15000)
	require.ErrorIs(t, err, ErrNotEnoughMoney)

	bal, err = a.Balance(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), bal)

	bal, err = a.Withdraw(ctx, "USD", 4000)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), bal)
}

func TestBalanceDoesNotCreateEntry(t *testing.T) {
	t.Parallel()

	dir := directory.New[*Actor]()
	sup := NewSupervisor(dir, Config{}, zap.NewNop())
	a, err := sup.EnsureStarted("alice")
	require.NoError(t, err)

	ctx := context.Background()

	_, err = a.Balance(ctx, "EUR")
	require.NoError(t, err)

	// Stopping synchronizes with the run goroutine, after which the ledger
	// may be inspected directly.
	require.NoError(t, sup.Shutdown(ctx))

	_, ok := a.ledger["EUR"]
	assert.False(t, ok, "balance query must not create a ledger entry")
}

func TestEnsureStartedDuplicate(t *testing.T) {
	t.Parallel()

	sup := startSupervisor(t, Config{})
	startActor(t, sup, "alice")

	_, err := sup.EnsureStarted("alice")
	require.ErrorIs(t, err, directory.ErrAlreadyRegistered)
}

func TestTransferSuccess(t *testing.T) {
	t.Parallel()

	sup := startSupervisor(t, Config{})
	alice := startActor(t, sup, "alice")
	bob := startActor(t, sup, "bob")
	ctx := context.Background()

	_, err := alice.Deposit(ctx, "USD", 10000)
	require.NoError(t, err)

	fromBal, toBal, err := alice.Transfer(ctx, bob, "USD", 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), fromBal)
	assert.Equal(t, int64(5000), toBal)

	bal, err := bob.Balance(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), bal)
}

func TestTransferNotEnoughMoney(t *testing.T) {
	t.Parallel()

	sup := startSupervisor(t, Config{})
	alice := startActor(t, sup, "alice")
	bob := startActor(t, sup, "bob")
	ctx := context.Background()

	_, err := alice.Deposit(ctx, "USD", 100)
	require.NoError(t, err)

	_, _, err = alice.Transfer(ctx, bob, "USD", 200)
	require.ErrorIs(t, err, ErrNotEnoughMoney)

	// Nothing moved on either side.
	bal, err := alice.Balance(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal)

	bal, err = bob.Balance(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal)
}

func TestTransferReceiverAdmissionFull(t *testing.T) {
	t.Parallel()

	sup := startSupervisor(t, Config{AdmissionLimit: 2})
	alice := startActor(t, sup, "alice")
	bob := startActor(t, sup, "bob")
	ctx := context.Background()

	_, err := alice.Deposit(ctx, "USD", 10000)
	require.NoError(t, err)

	// Saturate the receiver's controller as an outstanding flood would.
	require.True(t, bob.Admission().TryAdmit())
	require.True(t, bob.Admission().TryAdmit())

	_, _, err = alice.Transfer(ctx, bob, "USD", 5000)
	require.ErrorIs(t, err, ErrReceiverTooManyRequests)

	// The debit was refunded.
	bal, err := alice.Balance(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), bal)

	bob.Admission().Release()
	bob.Admission().Release()

	_, _, err = alice.Transfer(ctx, bob, "USD", 5000)
	require.NoError(t, err)
}

func TestTransferSenderAdmissionFull(t *testing.T) {
	t.Parallel()

	sup := startSupervisor(t, Config{AdmissionLimit: 2})
	alice := startActor(t, sup, "alice")
	bob := startActor(t, sup, "bob")
	ctx := context.Background()

	_, err := alice.Deposit(ctx, "USD", 10000)
	require.NoError(t, err)

	require.True(t, alice.Admission().TryAdmit())
	require.True(t, alice.Admission().TryAdmit())

	_, _, err = alice.Transfer(ctx, bob, "USD", 5000)
	require.ErrorIs(t, err, ErrTooManyRequests)

	alice.Admission().Release()
	alice.Admission().Release()
}

func TestTransferTimeout(t *testing.T) {
	t.Parallel()

	sup := startSupervisor(t, Config{TransferDeadline: 50 * time.Millisecond})
	alice := startActor(t, sup, "alice")
	ctx := context.Background()

	// A receiver whose goroutine never runs: the credit is delivered into
	// its mailbox but no confirmation ever comes back.
	stuck := newActor("bob", Config{}, zap.NewNop())

	_, err := alice.Deposit(ctx, "USD", 10000)
	require.NoError(t, err)

	_, _, err = alice.Transfer(ctx, stuck, "USD", 4000)
	require.ErrorIs(t, err, ErrTimeout)

	// Delivered but unconfirmed: the debit stands and the receiver's slot
	// remains held by the still-outstanding credit.
	bal, err := alice.Balance(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(6000), bal)
	assert.Equal(t, 1, stuck.Admission().InFlight())
}

func TestTransferToStoppedReceiver(t *testing.T) {
	t.Parallel()

	sup := startSupervisor(t, Config{})
	alice := startActor(t, sup, "alice")
	bob := startActor(t, sup, "bob")
	ctx := context.Background()

	_, err := alice.Deposit(ctx, "USD", 10000)
	require.NoError(t, err)

	require.NoError(t, bob.Stop(ctx))

	_, _, err = alice.Transfer(ctx, bob, "USD", 5000)
	require.ErrorIs(t, err, ErrStopped)

	// Confirmed failure: the debit was refunded and no slot leaked.
	bal, err := alice.Balance(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), bal)
	assert.Equal(t, 0, bob.Admission().InFlight())
}

func TestCrashRestartsWithEmptyLedger(t *testing.T) {
	t.Parallel()

	sup := startSupervisor(t, Config{})
	alice := startActor(t, sup, "alice")
	bob := startActor(t, sup, "bob")
	ctx := context.Background()

	_, err := alice.Deposit(ctx, "USD", 10000)
	require.NoError(t, err)

	_, err = bob.Deposit(ctx, "USD", 7000)
	require.NoError(t, err)

	// An unknown op panics the handler; the supervisor restarts the actor
	// with a fresh empty ledger under the same identity and mailbox.
	bad := request{op: opKind(99), reply: make(chan response, 1)}
	alice.mailbox <- bad

	resp := <-bad.reply
	require.ErrorIs(t, resp.err, ErrCrashed)

	bal, err := alice.Balance(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal, "crash discards account state")

	// The crash is isolated: other accounts are untouched and the restarted
	// actor keeps serving.
	bal, err = bob.Balance(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(7000), bal)

	bal, err = alice.Deposit(ctx, "USD", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal)
}

func TestConcurrentDepositsSerialize(t *testing.T) {
	t.Parallel()

	const (
		callers = 300
		amount  = 100
	)

	sup := startSupervisor(t, Config{})
	alice := startActor(t, sup, "alice")
	ctx := context.Background()

	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := alice.Deposit(ctx, "USD", amount)
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	bal, err := alice.Balance(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(callers*amount), bal, "no deposit lost or duplicated")
}

func TestConcurrentDepositWithdrawSerialize(t *testing.T) {
	t.Parallel()

	const (
		pairs  = 100
		amount = 250
		seed   = 1000000
	)

	sup := startSupervisor(t, Config{})
	alice := startActor(t, sup, "alice")
	ctx := context.Background()

	_, err := alice.Deposit(ctx, "USD", seed)
	require.NoError(t, err)

	var wg sync.WaitGroup

	for i := 0; i < pairs; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()

			_, err := alice.Deposit(ctx, "USD", amount)
			assert.NoError(t, err)
		}()

		go func() {
			defer wg.Done()

			_, err := alice.Withdraw(ctx, "USD", amount)
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	bal, err := alice.Balance(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(seed), bal, "deposits and withdrawals cancel exactly")
}

func TestConcurrentTransfersConserveMoneyAndReleaseSlots(t *testing.T) {
	t.Parallel()

	const senders = 30

	sup := startSupervisor(t, Config{})
	receiver := startActor(t, sup, "sink")
	ctx := context.Background()

	actors := make([]*Actor, senders)
	for i := range actors {
		actors[i] = startActor(t, sup, fmt.Sprintf("sender-%d", i))

		_, err := actors[i].Deposit(ctx, "USD", 1000)
		require.NoError(t, err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered int64
	)

	for _, sender := range actors {
		wg.Add(1)

		go func(sender *Actor) {
			defer wg.Done()

			if _, _, err := sender.Transfer(ctx, receiver, "USD", 1000); err != nil {
				// Excess concurrent credits are rejected immediately.
				assert.ErrorIs(t, err, ErrReceiverTooManyRequests)
				return
			}

			mu.Lock()
			delivered += 1000
			mu.Unlock()
		}(sender)
	}

	wg.Wait()

	bal, err := receiver.Balance(ctx, "USD")
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, delivered, bal, "admitted transfers all land, rejected ones do not")
	mu.Unlock()

	require.Eventually(t, func() bool {
		return receiver.Admission().InFlight() == 0
	}, time.Second, 10*time.Millisecond, "in-flight count returns to zero")
}
