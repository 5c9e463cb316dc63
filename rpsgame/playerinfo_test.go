package rpsgame

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayerInfoLifecycle(t *testing.T) {
	pi := NewPlayerInfo(testPlayer(1), "dcr")

	require.NoError(t, pi.RecordWager(100))
	require.NoError(t, pi.RecordWager(50))
	assert.Equal(t, uint64(150), pi.AmountInGames)
	assert.Equal(t, uint64(150), pi.LifetimeWagering)

	require.NoError(t, pi.ReleaseWager(100))
	require.NoError(t, pi.RecordWin(100))
	assert.Equal(t, uint64(50), pi.AmountInGames)
	assert.Equal(t, uint64(150), pi.LifetimeWagering)
	assert.Equal(t, int64(100), pi.LifetimeEarnings)
	assert.Equal(t, uint64(1), pi.GamesWon)

	require.NoError(t, pi.ReleaseWager(50))
	require.NoError(t, pi.RecordLoss(50))
	assert.Equal(t, uint64(0), pi.AmountInGames)
	assert.Equal(t, int64(50), pi.LifetimeEarnings)
	assert.Equal(t, uint64(1), pi.GamesLost)

	pi.RecordDraw()
	assert.Equal(t, uint64(1), pi.GamesDrawn)
	assert.Equal(t, int64(50), pi.LifetimeEarnings)
}

func TestPlayerInfoEarningsGoNegative(t *testing.T) {
	pi := NewPlayerInfo(testPlayer(1), "dcr")
	require.NoError(t, pi.RecordLoss(500))
	assert.Equal(t, int64(-500), pi.LifetimeEarnings)
}

func TestPlayerInfoOverflowGuards(t *testing.T) {
	pi := NewPlayerInfo(testPlayer(1), "dcr")
	require.NoError(t, pi.RecordWager(math.MaxUint64))

	// Another satoshi of exposure cannot fit.
	assert.ErrorIs(t, pi.RecordWager(1), ErrBetTooLarge)

	// Releasing more than is at stake is a bookkeeping integrity error.
	pi2 := NewPlayerInfo(testPlayer(2), "dcr")
	assert.ErrorIs(t, pi2.ReleaseWager(1), ErrMathOverflow)
}
