package rpsgame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlayer(b byte) PlayerID {
	var id PlayerID
	id[0] = b
	return id
}

func openGame(t *testing.T, gameID GameID, p1 PlayerID, salt uint64, choice Choice,
	wager uint64, proof *EntryProof, nowSlot uint64) GameState {
	t.Helper()
	state, err := Apply(gameID, Initialized(), CreateGame{
		Player1:    p1,
		Commitment: Commit(p1, salt, choice),
		Config:     GameConfig{WagerAmount: wager, EntryProof: proof},
	}, nowSlot)
	require.NoError(t, err)
	return state
}

func TestFullLifecycle(t *testing.T) {
	p1 := testPlayer(1)
	p2 := testPlayer(2)
	gameID := GameIDFromSeed(7)

	state := openGame(t, gameID, p1, 36, Rock, 1000, nil, 100)
	assert.Equal(t, PhaseAcceptingChallenge, state.Phase)
	assert.Equal(t, uint64(100+TimeoutSlots), state.ExpirySlot)
	assert.False(t, state.Player1.Revealed)
	assert.True(t, state.Config.Public())

	state, err := Apply(gameID, state, JoinGame{Player2: p2, Choice: Paper}, 150)
	require.NoError(t, err)
	assert.Equal(t, PhaseAcceptingReveal, state.Phase)
	assert.Equal(t, uint64(150+TimeoutSlots), state.ExpirySlot)
	assert.True(t, state.Player2.Revealed)

	state, err = Apply(gameID, state, Reveal{Player1: p1, Salt: 36, Choice: Rock}, 200)
	require.NoError(t, err)
	assert.Equal(t, PhaseAcceptingSettle, state.Phase)
	assert.Equal(t, WinnerP2, state.Result)
	assert.True(t, state.Player1.Revealed)
	assert.False(t, state.SelfPlay())

	state, err = Apply(gameID, state, Settle{}, 300)
	require.NoError(t, err)
	assert.Equal(t, PhaseSettled, state.Phase)
	assert.Equal(t, WinnerP2, state.Result)
}

func TestWinnerMatrix(t *testing.T) {
	tests := []struct {
		p1, p2 Choice
		want   Winner
	}{
		{Rock, Rock, WinnerTie},
		{Rock, Paper, WinnerP2},
		{Rock, Scissors, WinnerP1},
		{Paper, Rock, WinnerP1},
		{Paper, Paper, WinnerTie},
		{Paper, Scissors, WinnerP2},
		{Scissors, Rock, WinnerP2},
		{Scissors, Paper, WinnerP1},
		{Scissors, Scissors, WinnerTie},
	}

	p1 := testPlayer(1)
	p2 := testPlayer(2)
	gameID := GameIDFromSeed(1)
	for _, tc := range tests {
		t.Run(tc.p1.String()+"_vs_"+tc.p2.String(), func(t *testing.T) {
			state := openGame(t, gameID, p1, 99, tc.p1, 500, nil, 0)
			state, err := Apply(gameID, state, JoinGame{Player2: p2, Choice: tc.p2}, 1)
			require.NoError(t, err)
			state, err = Apply(gameID, state, Reveal{Player1: p1, Salt: 99, Choice: tc.p1}, 2)
			require.NoError(t, err)
			assert.Equal(t, tc.want, state.Result)
		})
	}
}

func TestPrivateGameEntryGate(t *testing.T) {
	p1 := testPlayer(1)
	p2 := testPlayer(2)
	gameID := GameIDFromSeed(42)
	secret := uint64(777)
	proof := NewEntryProof(gameID, secret)

	state := openGame(t, gameID, p1, 5, Rock, 1000, &proof, 0)
	assert.False(t, state.Config.Public())

	// No secret at all.
	_, err := Apply(gameID, state, JoinGame{Player2: p2, Choice: Paper}, 1)
	assert.ErrorIs(t, err, ErrBadEntrySecret)

	// Wrong secret.
	wrong := uint64(778)
	_, err = Apply(gameID, state, JoinGame{Player2: p2, Choice: Paper, Secret: &wrong}, 1)
	assert.ErrorIs(t, err, ErrBadEntrySecret)

	// Right secret admits.
	next, err := Apply(gameID, state, JoinGame{Player2: p2, Choice: Paper, Secret: &secret}, 1)
	require.NoError(t, err)
	assert.Equal(t, PhaseAcceptingReveal, next.Phase)
}

func TestJoinGuards(t *testing.T) {
	p1 := testPlayer(1)
	p2 := testPlayer(2)
	gameID := GameIDFromSeed(3)
	state := openGame(t, gameID, p1, 1, Rock, 1000, nil, 100)

	// Joining exactly at the expiry slot still works.
	_, err := Apply(gameID, state, JoinGame{Player2: p2, Choice: Paper}, state.ExpirySlot)
	assert.NoError(t, err)

	// One slot past is too late.
	_, err = Apply(gameID, state, JoinGame{Player2: p2, Choice: Paper}, state.ExpirySlot+1)
	assert.ErrorIs(t, err, ErrChallengeExpired)

	// Joining your own game would forge the self-play refund marker and
	// strand the second wager in escrow.
	_, err = Apply(gameID, state, JoinGame{Player2: p1, Choice: Paper}, 101)
	assert.ErrorIs(t, err, ErrWrongPlayer)

	// Rejecting the creator must not have closed the challenge.
	next, err := Apply(gameID, state, JoinGame{Player2: p2, Choice: Paper}, 101)
	require.NoError(t, err)
	assert.Equal(t, p2, next.Player2.ID)
}

func TestExpireUnmatched(t *testing.T) {
	p1 := testPlayer(1)
	p2 := testPlayer(2)
	gameID := GameIDFromSeed(4)
	state := openGame(t, gameID, p1, 1, Rock, 1000, nil, 100)

	// Not yet expired, even at the boundary slot.
	_, err := Apply(gameID, state, ExpireGame{Caller: p1}, state.ExpirySlot)
	assert.ErrorIs(t, err, ErrNotExpired)

	// Only player 1 may claim the timeout.
	_, err = Apply(gameID, state, ExpireGame{Caller: p2}, state.ExpirySlot+1)
	assert.ErrorIs(t, err, ErrWrongPlayer)

	next, err := Apply(gameID, state, ExpireGame{Caller: p1}, state.ExpirySlot+1)
	require.NoError(t, err)
	assert.Equal(t, PhaseAcceptingSettle, next.Phase)
	assert.Equal(t, WinnerP1, next.Result)
	assert.True(t, next.SelfPlay())
	assert.False(t, next.Player1.Revealed)
}

func TestExpireUnrevealed(t *testing.T) {
	p1 := testPlayer(1)
	p2 := testPlayer(2)
	gameID := GameIDFromSeed(5)
	state := openGame(t, gameID, p1, 1, Rock, 1000, nil, 100)
	state, err := Apply(gameID, state, JoinGame{Player2: p2, Choice: Paper}, 150)
	require.NoError(t, err)

	// Only player 2 may punish a withheld reveal.
	_, err = Apply(gameID, state, ExpireGame{Caller: p1}, state.ExpirySlot+1)
	assert.ErrorIs(t, err, ErrWrongPlayer)

	next, err := Apply(gameID, state, ExpireGame{Caller: p2}, state.ExpirySlot+1)
	require.NoError(t, err)
	assert.Equal(t, WinnerP2, next.Result)
	assert.False(t, next.SelfPlay())
	// Player 1's choice stays hidden forever.
	assert.Nil(t, next.Player1.ChoiceOrUnrevealed())
}

func TestRevealGuards(t *testing.T) {
	p1 := testPlayer(1)
	p2 := testPlayer(2)
	gameID := GameIDFromSeed(6)
	state := openGame(t, gameID, p1, 12, Scissors, 1000, nil, 0)
	state, err := Apply(gameID, state, JoinGame{Player2: p2, Choice: Rock}, 1)
	require.NoError(t, err)

	// Wrong salt does not open the commitment and mutates nothing.
	before := state
	_, err = Apply(gameID, state, Reveal{Player1: p1, Salt: 13, Choice: Scissors}, 2)
	assert.ErrorIs(t, err, ErrBadCommitment)
	assert.Equal(t, before, state)

	// Wrong choice is just as bad.
	_, err = Apply(gameID, state, Reveal{Player1: p1, Salt: 12, Choice: Rock}, 2)
	assert.ErrorIs(t, err, ErrBadCommitment)

	// Player 2 cannot reveal on player 1's behalf.
	_, err = Apply(gameID, state, Reveal{Player1: p2, Salt: 12, Choice: Scissors}, 2)
	assert.ErrorIs(t, err, ErrWrongPlayer)

	// Too late.
	_, err = Apply(gameID, state, Reveal{Player1: p1, Salt: 12, Choice: Scissors}, state.ExpirySlot+1)
	assert.ErrorIs(t, err, ErrChallengeExpired)
}

func TestInvalidTransitions(t *testing.T) {
	p1 := testPlayer(1)
	p2 := testPlayer(2)
	gameID := GameIDFromSeed(8)

	create := CreateGame{Player1: p1, Commitment: Commit(p1, 1, Rock),
		Config: GameConfig{WagerAmount: 100}}

	// Nothing but CreateGame works on a fresh state.
	for _, action := range []Action{
		JoinGame{Player2: p2, Choice: Rock},
		Reveal{Player1: p1, Salt: 1, Choice: Rock},
		ExpireGame{Caller: p1},
		Settle{},
	} {
		_, err := Apply(gameID, Initialized(), action, 0)
		assert.ErrorIs(t, err, ErrInvalidTransition, "action %T", action)
	}

	state, err := Apply(gameID, Initialized(), create, 0)
	require.NoError(t, err)

	// Creating twice, revealing early and settling early all fail.
	for _, action := range []Action{create, Reveal{Player1: p1, Salt: 1, Choice: Rock}, Settle{}} {
		_, err := Apply(gameID, state, action, 1)
		assert.ErrorIs(t, err, ErrInvalidTransition, "action %T", action)
	}

	state, err = Apply(gameID, state, JoinGame{Player2: p2, Choice: Paper}, 1)
	require.NoError(t, err)
	for _, action := range []Action{create, JoinGame{Player2: p2, Choice: Rock}, Settle{}} {
		_, err := Apply(gameID, state, action, 2)
		assert.ErrorIs(t, err, ErrInvalidTransition, "action %T", action)
	}

	state, err = Apply(gameID, state, Reveal{Player1: p1, Salt: 1, Choice: Rock}, 2)
	require.NoError(t, err)
	for _, action := range []Action{create, JoinGame{Player2: p2, Choice: Rock},
		Reveal{Player1: p1, Salt: 1, Choice: Rock}, ExpireGame{Caller: p1}} {
		_, err := Apply(gameID, state, action, 3)
		assert.ErrorIs(t, err, ErrInvalidTransition, "action %T", action)
	}

	// Settled is terminal.
	state, err = Apply(gameID, state, Settle{}, 3)
	require.NoError(t, err)
	_, err = Apply(gameID, state, Settle{}, 4)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestFeeFor(t *testing.T) {
	fee, err := FeeFor(10_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(350), fee)

	fee, err = FeeFor(1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(35), fee)

	// Truncates, never rounds up.
	fee, err = FeeFor(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), fee)

	_, err = FeeFor(^uint64(0) / 2)
	assert.ErrorIs(t, err, ErrBetTooLarge)
}
