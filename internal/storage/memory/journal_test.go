package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NeoArcanjo/ex-banking/internal/models"
)

func entry(id, account string, amount string) models.LedgerEntry {
	return models.LedgerEntry{
		ID:        id,
		AccountID: account,
		Currency:  "USD",
		Amount:    decimal.RequireFromString(amount),
		CreatedAt: time.Now().UTC(),
	}
}

func TestSaveAndGetEntries(t *testing.T) {
	t.Parallel()

	store := NewJournalStore()
	ctx := context.Background()

	require.NoError(t, store.SaveEntry(ctx, entry("e1", "alice", "100.00")))
	require.NoError(t, store.SaveEntry(ctx, entry("e2", "bob", "25.00")))

	all, err := store.GetLedgerEntries()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	aliceEntries, err := store.GetEntriesByAccount("alice")
	require.NoError(t, err)
	require.Len(t, aliceEntries, 1)
	assert.Equal(t, "e1", aliceEntries[0].ID)
}

func TestSaveTransfer(t *testing.T) {
	t.Parallel()

	store := NewJournalStore()
	ctx := context.Background()

	tr := models.Transfer{
		ID:          "t1",
		FromAccount: "alice",
		ToAccount:   "bob",
		Currency:    "USD",
		Amount:      decimal.RequireFromString("40.00"),
		CreatedAt:   time.Now().UTC(),
	}

	require.NoError(t, store.SaveTransfer(ctx, tr,
		entry("t1-debit", "alice", "-40.00"),
		entry("t1-credit", "bob", "40.00")))

	transfers, err := store.GetTransfers()
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "t1", transfers[0].ID)

	all, err := store.GetLedgerEntries()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetLedgerEntriesReturnsCopy(t *testing.T) {
	t.Parallel()

	store := NewJournalStore()
	ctx := context.Background()

	require.NoError(t, store.SaveEntry(ctx, entry("e1", "alice", "1.00")))

	all, err := store.GetLedgerEntries()
	require.NoError(t, err)

	all[0].ID = "mutated"

	again, err := store.GetLedgerEntries()
	require.NoError(t, err)
	assert.Equal(t, "e1", again[0].ID, "callers cannot mutate internal state")
}

func TestConcurrentSaves(t *testing.T) {
	t.Parallel()

	const writers = 100

	store := NewJournalStore()
	ctx := context.Background()

	var wg sync.WaitGroup

	for i := 0; i < writers; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			assert.NoError(t, store.SaveEntry(ctx, entry(fmt.Sprintf("e%d", i), "alice", "1.00")))
		}(i)
	}

	wg.Wait()

	all, err := store.GetLedgerEntries()
	require.NoError(t, err)
	assert.Len(t, all, writers)
}
