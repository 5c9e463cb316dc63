package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

// ledgers runs a subtest against every Ledger implementation so both stay
// behaviorally identical.
func ledgers(t *testing.T, fn func(t *testing.T, l Ledger)) {
	t.Helper()
	t.Run("mem", func(t *testing.T) {
		fn(t, NewMemLedger())
	})
	t.Run("bolt", func(t *testing.T) {
		db, err := bolt.Open(filepath.Join(t.TempDir(), "ledger.db"), 0600, nil)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		l, err := NewBoltLedger(db)
		require.NoError(t, err)
		fn(t, l)
	})
}

func TestTransfer(t *testing.T) {
	ledgers(t, func(t *testing.T, l Ledger) {
		ctx := context.Background()
		alice := Account("player/alice")
		bob := Account("player/bob")

		require.NoError(t, Mint(ctx, l, "dcr", alice, 1000))
		require.NoError(t, Transfer(ctx, l, "dcr", alice, bob, 400))

		ab, err := l.Balance(ctx, "dcr", alice)
		require.NoError(t, err)
		bb, err := l.Balance(ctx, "dcr", bob)
		require.NoError(t, err)
		assert.Equal(t, uint64(600), ab)
		assert.Equal(t, uint64(400), bb)

		err = Transfer(ctx, l, "dcr", alice, bob, 601)
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		err = Transfer(ctx, l, "dcr", alice, alice, 1)
		assert.ErrorIs(t, err, ErrSameAccount)

		err = Transfer(ctx, l, "dcr", alice, bob, 0)
		assert.ErrorIs(t, err, ErrZeroAmount)
	})
}

func TestMintBurnSupply(t *testing.T) {
	ledgers(t, func(t *testing.T, l Ledger) {
		ctx := context.Background()
		holder := Account("player/holder")

		require.NoError(t, Mint(ctx, l, "lp", holder, 500))
		sup, err := l.Supply(ctx, "lp")
		require.NoError(t, err)
		assert.Equal(t, uint64(500), sup)

		require.NoError(t, Burn(ctx, l, "lp", holder, 200))
		sup, err = l.Supply(ctx, "lp")
		require.NoError(t, err)
		assert.Equal(t, uint64(300), sup)
		bal, err := l.Balance(ctx, "lp", holder)
		require.NoError(t, err)
		assert.Equal(t, uint64(300), bal)

		err = Burn(ctx, l, "lp", holder, 301)
		assert.ErrorIs(t, err, ErrInsufficientFunds)
	})
}

func TestBatchAtomicity(t *testing.T) {
	ledgers(t, func(t *testing.T, l Ledger) {
		ctx := context.Background()
		a := Account("player/a")
		b := Account("player/b")
		require.NoError(t, Mint(ctx, l, "dcr", a, 100))

		// Second entry overdraws; the first must not land either.
		err := l.Apply(ctx, []Entry{
			{Op: OpTransfer, Asset: "dcr", From: a, To: b, Amount: 50},
			{Op: OpTransfer, Asset: "dcr", From: a, To: b, Amount: 60},
		})
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		bal, err := l.Balance(ctx, "dcr", a)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), bal)
		bal, err = l.Balance(ctx, "dcr", b)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), bal)

		// A batch that spends funds an earlier entry of the same batch
		// provided is valid.
		require.NoError(t, l.Apply(ctx, []Entry{
			{Op: OpTransfer, Asset: "dcr", From: a, To: b, Amount: 100},
			{Op: OpTransfer, Asset: "dcr", From: b, To: a, Amount: 30},
		}))
		bal, err = l.Balance(ctx, "dcr", a)
		require.NoError(t, err)
		assert.Equal(t, uint64(30), bal)
	})
}

func TestCloseAccount(t *testing.T) {
	ledgers(t, func(t *testing.T, l Ledger) {
		ctx := context.Background()
		acct := Account("escrow/x")

		require.NoError(t, Mint(ctx, l, "dcr", acct, 10))
		assert.ErrorIs(t, l.CloseAccount(ctx, "dcr", acct), ErrAccountNotEmpty)

		require.NoError(t, Burn(ctx, l, "dcr", acct, 10))
		assert.NoError(t, l.CloseAccount(ctx, "dcr", acct))
	})
}
