package rpsgame

import "errors"

// Transition errors: the action is not valid for the current state, or a
// guard failed. The action is rejected whole; no state or funds move.
var (
	ErrInvalidTransition = errors.New("invalid (state, action) pair")
	ErrChallengeExpired  = errors.New("challenge expired")
	ErrNotExpired        = errors.New("challenge not expired yet")
	ErrWrongPlayer       = errors.New("action not permitted for this player")
	ErrBadCommitment     = errors.New("invalid commitment")
	ErrBadEntrySecret    = errors.New("invalid entry secret")
	ErrUnknownChoice     = errors.New("unknown choice")
)

// Arithmetic and integrity errors: money math overflowed, or a ledger
// invariant would be violated. Both are fatal for the submitted action.
var (
	ErrBetTooLarge  = errors.New("bet too large")
	ErrMathOverflow = errors.New("math overflow")
)

// Registry errors.
var (
	ErrGameNotFound = errors.New("game not found")
	ErrGameExists   = errors.New("game already exists")
)
