package rpsgame

import "fmt"

// Apply is the whole game lifecycle: it validates action against the
// current state at nowSlot and returns the successor state. It is a pure
// function; on error the input state is returned unchanged and the caller
// must not mutate anything. gameID is the identity entry secrets are bound
// to.
//
// The transition table, and nothing else:
//
//	Initialized        + CreateGame -> AcceptingChallenge
//	AcceptingChallenge + JoinGame   -> AcceptingReveal
//	AcceptingChallenge + ExpireGame -> AcceptingSettle (P1 self-refund)
//	AcceptingReveal    + Reveal     -> AcceptingSettle
//	AcceptingReveal    + ExpireGame -> AcceptingSettle (P2 wins)
//	AcceptingSettle    + Settle     -> Settled
func Apply(gameID GameID, state GameState, action Action, nowSlot uint64) (GameState, error) {
	switch state.Phase {
	case PhaseInitialized:
		if a, ok := action.(CreateGame); ok {
			return applyCreate(state, a, nowSlot)
		}

	case PhaseAcceptingChallenge:
		switch a := action.(type) {
		case JoinGame:
			return applyJoin(gameID, state, a, nowSlot)
		case ExpireGame:
			return applyExpireUnmatched(state, a, nowSlot)
		}

	case PhaseAcceptingReveal:
		switch a := action.(type) {
		case Reveal:
			return applyReveal(state, a, nowSlot)
		case ExpireGame:
			return applyExpireUnrevealed(state, a, nowSlot)
		}

	case PhaseAcceptingSettle:
		if _, ok := action.(Settle); ok {
			next := state
			next.Phase = PhaseSettled
			next.ExpirySlot = 0
			return next, nil
		}
	}

	return state, fmt.Errorf("%w: %s in %s", ErrInvalidTransition,
		action.actionName(), state.Phase)
}

func applyCreate(state GameState, a CreateGame, nowSlot uint64) (GameState, error) {
	return GameState{
		Phase:      PhaseAcceptingChallenge,
		Config:     a.Config,
		Player1:    CommittedPlayer(a.Player1, a.Commitment),
		ExpirySlot: nowSlot + TimeoutSlots,
	}, nil
}

func applyJoin(gameID GameID, state GameState, a JoinGame, nowSlot uint64) (GameState, error) {
	if nowSlot > state.ExpirySlot {
		return state, ErrChallengeExpired
	}
	// Identity equality of the two slots is the self-play marker reserved
	// for expired-unmatched games; a genuine join must never produce it.
	if a.Player2 == state.Player1.ID {
		return state, fmt.Errorf("%w: cannot join own game", ErrWrongPlayer)
	}
	if proof := state.Config.EntryProof; proof != nil {
		if a.Secret == nil || !VerifyEntry(gameID, *proof, *a.Secret) {
			return state, ErrBadEntrySecret
		}
	}
	return GameState{
		Phase:      PhaseAcceptingReveal,
		Config:     state.Config,
		Player1:    state.Player1,
		Player2:    RevealedPlayer(a.Player2, a.Choice),
		ExpirySlot: nowSlot + TimeoutSlots,
	}, nil
}

// applyExpireUnmatched forfeits a challenge no one joined. Player 1 is
// copied into the player 2 slot as the self-play marker so settlement
// refunds a single wager.
func applyExpireUnmatched(state GameState, a ExpireGame, nowSlot uint64) (GameState, error) {
	if nowSlot <= state.ExpirySlot {
		return state, ErrNotExpired
	}
	if a.Caller != state.Player1.ID {
		return state, fmt.Errorf("%w: only player 1 can expire unmatched games", ErrWrongPlayer)
	}
	return GameState{
		Phase:   PhaseAcceptingSettle,
		Config:  state.Config,
		Result:  WinnerP1,
		Player1: state.Player1,
		Player2: state.Player1,
	}, nil
}

func applyReveal(state GameState, a Reveal, nowSlot uint64) (GameState, error) {
	if nowSlot > state.ExpirySlot {
		return state, ErrChallengeExpired
	}
	if a.Player1 != state.Player1.ID {
		return state, fmt.Errorf("%w: player 1 must reveal", ErrWrongPlayer)
	}
	if state.Player1.Revealed {
		return state, fmt.Errorf("%w: reveal in %s", ErrInvalidTransition, state.Phase)
	}
	if !VerifyCommitment(a.Player1, state.Player1.Commitment, a.Salt, a.Choice) {
		return state, ErrBadCommitment
	}
	return GameState{
		Phase:   PhaseAcceptingSettle,
		Config:  state.Config,
		Result:  winnerOf(a.Choice, state.Player2.Choice),
		Player1: RevealedPlayer(a.Player1, a.Choice),
		Player2: state.Player2,
	}, nil
}

// applyExpireUnrevealed forfeits to player 2 when player 1 sat on an
// unopened commitment past the deadline.
func applyExpireUnrevealed(state GameState, a ExpireGame, nowSlot uint64) (GameState, error) {
	if nowSlot <= state.ExpirySlot {
		return state, ErrNotExpired
	}
	if a.Caller != state.Player2.ID {
		return state, fmt.Errorf("%w: only player 2 can expire unrevealed games", ErrWrongPlayer)
	}
	return GameState{
		Phase:   PhaseAcceptingSettle,
		Config:  state.Config,
		Result:  WinnerP2,
		Player1: state.Player1,
		Player2: state.Player2,
	}, nil
}
